package router

import (
	"strconv"
	"strings"
	"time"

	"github.com/gdbrns/go-whatsapp-erp-dispatcher/pkg/env"
)

var BaseURL, CORSOrigin, BodyLimit string
var GZipLevel int
var CacheTTLSeconds int
var RequestTimeout time.Duration
var bodyLimitBytes int

func init() {
	// HTTP_BASE_URL: empty by default (no prefix)
	BaseURL = normalizeBaseURL(env.GetEnvStringOrDefault("HTTP_BASE_URL", ""))

	// HTTP_CORS_ORIGIN: default "*" (allow all)
	CORSOrigin = env.GetEnvStringOrDefault("HTTP_CORS_ORIGIN", "*")

	// HTTP_BODY_LIMIT_SIZE: default "10M", base64 reports grow by a third
	BodyLimit = env.GetEnvStringOrDefault("HTTP_BODY_LIMIT_SIZE", "10M")
	bodyLimitBytes = parseBodyLimit(BodyLimit)

	// HTTP_GZIP_LEVEL: default 1
	GZipLevel = env.GetEnvIntOrDefault("HTTP_GZIP_LEVEL", 1)

	// HTTP_CACHE_TTL_SECONDS: default 5
	CacheTTLSeconds = env.GetEnvIntOrDefault("HTTP_CACHE_TTL_SECONDS", 5)

	// HTTP_REQUEST_TIMEOUT: default 30s
	RequestTimeout = env.GetEnvDurationOrDefault("HTTP_REQUEST_TIMEOUT", 30*time.Second)
}

func BodyLimitBytes() int {
	return bodyLimitBytes
}

func normalizeBaseURL(base string) string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		return ""
	}
	return "/" + strings.TrimLeft(base, "/")
}

func parseBodyLimit(limit string) int {
	const defaultLimit = 10 * 1024 * 1024
	limit = strings.TrimSpace(strings.ToUpper(limit))
	limit = strings.TrimSuffix(limit, "B")
	if limit == "" {
		return defaultLimit
	}
	multiplier := 1
	switch {
	case strings.HasSuffix(limit, "K"):
		multiplier = 1024
		limit = strings.TrimSuffix(limit, "K")
	case strings.HasSuffix(limit, "M"):
		multiplier = 1024 * 1024
		limit = strings.TrimSuffix(limit, "M")
	case strings.HasSuffix(limit, "G"):
		multiplier = 1024 * 1024 * 1024
		limit = strings.TrimSuffix(limit, "G")
	}
	value, err := strconv.Atoi(strings.TrimSpace(limit))
	if err != nil || value <= 0 {
		return defaultLimit
	}
	return value * multiplier
}
