package log

import (
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

var logger = logrus.New()

func init() {
	logger.Formatter = &logrus.TextFormatter{
		TimestampFormat: time.RFC3339,
		FullTimestamp:   true,
		DisableColors:   false,
		ForceColors:     true,
	}

	if level, err := logrus.ParseLevel(strings.TrimSpace(os.Getenv("LOG_LEVEL"))); err == nil {
		logger.SetLevel(level)
	}
}

// Logger exposes the process logger for components that take a logrus.FieldLogger.
func Logger() *logrus.Logger {
	return logger
}

func Print(c *fiber.Ctx) *logrus.Entry {
	if c == nil {
		return logger.WithFields(logrus.Fields{})
	}

	remoteIP := c.IP()
	if v := c.Locals("remote_ip"); v != nil {
		if ip, ok := v.(string); ok && ip != "" {
			remoteIP = ip
		}
	}
	fields := logrus.Fields{
		"remote_ip": remoteIP,
		"method":    c.Method(),
		"uri":       c.OriginalURL(),
	}
	if id, ok := c.Locals("request_id").(string); ok && id != "" {
		fields["request_id"] = id
	}
	return logger.WithFields(fields)
}

// DispatchOp tags an entry with the operation and the masked destination.
func DispatchOp(op string, destination string) *logrus.Entry {
	return logger.WithFields(logrus.Fields{
		"op":          op,
		"destination": MaskDestination(destination),
	})
}

// MaskDestination hides the last four characters of a phone number or chat id.
func MaskDestination(destination string) string {
	user, server, hasServer := strings.Cut(destination, "@")
	if len(user) < 4 {
		return destination
	}
	masked := user[:len(user)-4] + "xxxx"
	if hasServer {
		masked += "@" + server
	}
	return masked
}
