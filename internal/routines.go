package internal

import (
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/gdbrns/go-whatsapp-erp-dispatcher/pkg/env"
	"github.com/gdbrns/go-whatsapp-erp-dispatcher/pkg/log"
)

// Routines schedules the periodic jobs and starts the scheduler. Specs use
// the seconds field.
func Routines(cron *cron.Cron, svc *Services) {
	log.Print(nil).Info("Running Routine Tasks")

	if _, err := cron.AddFunc(getCronSpec("LOG_RETENTION_CRON_SPEC", "0 0 3 * * *"), func() {
		cleanJournal(svc)
	}); err != nil {
		log.Print(nil).WithField("error", err.Error()).Error("Failed to add log retention cron job")
	}

	if isHealthCheckEnabled() && svc.Session != nil {
		_, err := cron.AddFunc("0 */5 * * * *", func() {
			checkSessionHealth(svc)
		})
		if err != nil {
			log.Print(nil).WithField("error", err.Error()).Error("Failed to add health check cron job")
		}
	} else {
		log.Print(nil).Info("Health check cron disabled; relying on whatsmeow event handlers")
	}

	if maxAge := env.GetEnvDurationOrDefault("WHATSAPP_KNOWN_CHATS_MAX_AGE", 90*24*time.Hour); maxAge > 0 && svc.Session != nil {
		_, err := cron.AddFunc(getCronSpec("WHATSAPP_KNOWN_CHATS_PRUNE_CRON_SPEC", "0 30 3 * * *"), func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			removed, err := svc.Session.PruneKnownChats(ctx, maxAge)
			if err != nil {
				log.Print(nil).WithError(err).Error("Known chats prune failed")
				return
			}
			log.Print(nil).WithField("removed", removed).WithField("max_age", maxAge.String()).Info("Known chats pruned")
		})
		if err != nil {
			log.Print(nil).WithField("error", err.Error()).Error("Failed to add known chats prune cron job")
		}
	}

	if isWAVersionRefreshCronEnabled() && svc.Session != nil {
		spec := getCronSpec("WHATSAPP_WAVERSION_REFRESH_CRON_SPEC", "0 0 3 * * *")
		force := getWAVersionRefreshCronForce()
		_, err := cron.AddFunc(spec, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			status, refreshed, err := svc.Session.Version().Refresh(ctx, force)
			if err != nil {
				log.Print(nil).WithField("version", status.Current).WithField("force", force).Error("WA Web version refresh failed: " + err.Error())
				return
			}
			log.Print(nil).WithField("version", status.Current).WithField("refreshed", refreshed).WithField("force", force).Info("WA Web version refresh completed")
		})
		if err != nil {
			log.Print(nil).WithField("error", err.Error()).Error("Failed to add WA Web version refresh cron job")
		} else {
			log.Print(nil).WithField("spec", spec).WithField("force", force).Info("WA Web version refresh cron enabled")
		}
	}

	cron.Start()
}

func cleanJournal(svc *Services) {
	removed, err := svc.Journal.Clean(LogRetentionDays())
	if err != nil {
		log.Print(nil).WithError(err).Error("Activity log retention failed")
		return
	}
	log.Print(nil).WithField("removed", len(removed)).Info("Activity log retention completed")
}

func checkSessionHealth(svc *Services) {
	status := svc.Session.Status()
	entry := log.Print(nil).
		WithField("state", status.State).
		WithField("known_chats", status.KnownChats)
	if status.JID != "" {
		entry = entry.WithField("jid", log.MaskDestination(status.JID))
	}
	if !status.Ready {
		entry.Warn("WhatsApp session unhealthy")
		svc.Journal.Warn("WhatsApp desconectado", map[string]interface{}{"state": string(status.State)})
		return
	}
	entry.Info("WhatsApp session healthy")
}

func isHealthCheckEnabled() bool {
	envValue, ok := os.LookupEnv("WHATSAPP_ENABLE_HEALTH_CHECK_CRON")
	if !ok {
		return true
	}
	enabled, err := strconv.ParseBool(strings.TrimSpace(envValue))
	if err != nil {
		log.Print(nil).Warn("Invalid WHATSAPP_ENABLE_HEALTH_CHECK_CRON value; defaulting to enabled")
		return true
	}
	return enabled
}

func isWAVersionRefreshCronEnabled() bool {
	envValue, ok := os.LookupEnv("WHATSAPP_ENABLE_WAVERSION_REFRESH_CRON")
	if !ok {
		return false
	}
	enabled, err := strconv.ParseBool(strings.TrimSpace(envValue))
	if err != nil {
		log.Print(nil).Warn("Invalid WHATSAPP_ENABLE_WAVERSION_REFRESH_CRON value; defaulting to disabled")
		return false
	}
	return enabled
}

// getCronSpec reads a six field robfig/cron spec.
func getCronSpec(name string, fallback string) string {
	spec := strings.TrimSpace(os.Getenv(name))
	if spec == "" {
		return fallback
	}
	return spec
}

func getWAVersionRefreshCronForce() bool {
	raw := strings.TrimSpace(os.Getenv("WHATSAPP_WAVERSION_REFRESH_CRON_FORCE"))
	if raw == "" {
		return false
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false
	}
	return b
}
