package internal

import (
	"context"
	"errors"
	"fmt"
	mathrand "math/rand/v2"
	"os"
	"time"

	"github.com/gdbrns/go-whatsapp-erp-dispatcher/pkg/artifact"
	"github.com/gdbrns/go-whatsapp-erp-dispatcher/pkg/directory"
	"github.com/gdbrns/go-whatsapp-erp-dispatcher/pkg/dispatch"
	"github.com/gdbrns/go-whatsapp-erp-dispatcher/pkg/env"
	"github.com/gdbrns/go-whatsapp-erp-dispatcher/pkg/log"
	"github.com/gdbrns/go-whatsapp-erp-dispatcher/pkg/outcome"
	pkgWhatsApp "github.com/gdbrns/go-whatsapp-erp-dispatcher/pkg/whatsapp"
)

// Connector is the part of the session startup drives.
type Connector interface {
	Connect(ctx context.Context) error
}

// Services holds everything the routes and routines share.
type Services struct {
	Journal    *log.Journal
	Directory  *directory.Store
	Artifacts  *artifact.Store
	Session    *pkgWhatsApp.Session
	Gateway    dispatch.SessionGateway
	Dispatcher *dispatch.Dispatcher
	Publisher  *outcome.Publisher

	amqp *outcome.AMQPSink
}

func LogRetentionDays() int {
	return env.GetEnvIntOrDefault("LOG_RETENTION_DAYS", 30)
}

func directoryConfigFromEnv() directory.Config {
	defaults := directory.DefaultConfig()
	return directory.Config{
		Driver:            env.GetEnvStringOrDefault("DIRECTORY_DB_DRIVER", defaults.Driver),
		DSN:               env.GetEnvStringOrDefault("DIRECTORY_DB_DSN", ""),
		Table:             env.GetEnvStringOrDefault("DIRECTORY_TABLE", defaults.Table),
		TaxIDColumn:       env.GetEnvStringOrDefault("DIRECTORY_TAX_ID_COLUMN", defaults.TaxIDColumn),
		DestinationColumn: env.GetEnvStringOrDefault("DIRECTORY_DESTINATION_COLUMN", defaults.DestinationColumn),
		NameColumn:        env.GetEnvStringOrDefault("DIRECTORY_NAME_COLUMN", defaults.NameColumn),
		MaxOpenConns:      env.GetEnvIntOrDefault("DIRECTORY_DB_MAX_OPEN_CONNS", defaults.MaxOpenConns),
	}
}

// OpenDirectory connects the company database. A missing DSN is not an
// error: the directory is reported as not configured.
func OpenDirectory(ctx context.Context) (*directory.Store, error) {
	cfg := directoryConfigFromEnv()
	if cfg.DSN == "" {
		return nil, nil
	}
	return directory.Open(ctx, cfg)
}

func ArtifactsFromEnv() *artifact.Store {
	return artifact.NewStore(
		env.GetEnvStringOrDefault("REPORTS_BASE_PATH", "./relatorios"),
		env.GetEnvStringOrDefault("REPORT_FILENAME", "RelatorioVendas.jpg"),
	)
}

func dispatchConfigFromEnv() dispatch.Config {
	defaults := dispatch.DefaultConfig()
	return dispatch.Config{
		CountryCode:   env.GetEnvStringOrDefault("WHATSAPP_COUNTRY_CODE", defaults.CountryCode),
		BootstrapText: env.GetEnvStringOrDefault("WHATSAPP_BOOTSTRAP_TEXT", defaults.BootstrapText),
		SettleDelay:   env.GetEnvDurationOrDefault("WHATSAPP_BOOTSTRAP_SETTLE", defaults.SettleDelay),
		Timeout:       env.GetEnvDurationOrDefault("WHATSAPP_DISPATCH_TIMEOUT", defaults.Timeout),
	}
}

func outcomeConfigFromEnv() outcome.Config {
	defaults := outcome.DefaultConfig()
	return outcome.Config{
		Workers:    env.GetEnvIntOrDefault("OUTCOME_WORKERS", defaults.Workers),
		RetryLimit: env.GetEnvIntOrDefault("OUTCOME_RETRY_LIMIT", defaults.RetryLimit),
		QueueSize:  env.GetEnvIntOrDefault("OUTCOME_QUEUE_SIZE", defaults.QueueSize),
		Backoff:    env.GetEnvDurationOrDefault("OUTCOME_RETRY_BACKOFF", defaults.Backoff),
	}
}

func jitterSleep(ctx context.Context, max time.Duration) {
	if max <= 0 {
		return
	}
	ms := mathrand.Int64N(max.Milliseconds() + 1)
	select {
	case <-ctx.Done():
	case <-time.After(time.Duration(ms) * time.Millisecond):
	}
}

func connectWithRetry(ctx context.Context, session Connector, retries int, baseBackoff time.Duration, maxBackoff time.Duration) error {
	if retries <= 1 {
		return session.Connect(ctx)
	}
	if baseBackoff <= 0 {
		baseBackoff = 2 * time.Second
	}
	if maxBackoff <= 0 {
		maxBackoff = 30 * time.Second
	}

	var lastErr error
	for attempt := 1; attempt <= retries; attempt++ {
		lastErr = session.Connect(ctx)
		if lastErr == nil {
			return nil
		}
		if attempt == retries {
			break
		}
		log.Print(nil).WithField("attempt", attempt).WithError(lastErr).Warn("WhatsApp connect failed, retrying")

		// Exponential backoff with small jitter.
		backoff := baseBackoff * time.Duration(1<<(attempt-1))
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
		select {
		case <-ctx.Done():
			return errors.Join(lastErr, ctx.Err())
		case <-time.After(backoff):
		}
		jitterSleep(ctx, 500*time.Millisecond)
	}
	return lastErr
}

// Startup opens the journal, the directory, the report store and the
// WhatsApp session, and builds the dispatcher and the outcome publisher on
// top of them.
func Startup(ctx context.Context) (*Services, error) {
	log.Print(nil).Info("Running Startup Tasks")

	svc := &Services{Artifacts: ArtifactsFromEnv()}

	journal, err := log.OpenJournal(env.GetEnvStringOrDefault("LOG_DIR", "./logs"))
	if err != nil {
		return nil, fmt.Errorf("open activity journal: %w", err)
	}
	svc.Journal = journal
	if removed, err := journal.Clean(LogRetentionDays()); err != nil {
		log.Print(nil).WithError(err).Warn("Failed to clean old activity logs")
	} else if len(removed) > 0 {
		log.Print(nil).WithField("files", removed).Info("Removed old activity logs")
	}

	if dir, err := OpenDirectory(ctx); err != nil {
		// The service still answers; report lookups fail until restart.
		log.Print(nil).WithError(err).Error("Failed to connect company directory")
		journal.Error("Erro ao conectar banco de dados", map[string]interface{}{"error": err.Error()})
	} else if dir == nil {
		log.Print(nil).Warn("DIRECTORY_DB_DSN not set, company lookups disabled")
	} else {
		svc.Directory = dir
		log.Print(nil).WithField("driver", dir.Config().Driver).WithField("table", dir.Config().Table).Info("Company directory connected")
	}

	if _, err := os.Stat(svc.Artifacts.Base()); err != nil {
		log.Print(nil).WithField("path", svc.Artifacts.Base()).Warn("Reports directory not found")
	}

	session, err := pkgWhatsApp.Open(ctx, pkgWhatsApp.ConfigFromEnv(), log.Logger().WithField("module", "whatsapp"))
	if err != nil {
		svc.Close()
		return nil, fmt.Errorf("open whatsapp session: %w", err)
	}
	svc.Session = session

	var gateway dispatch.SessionGateway = session
	if env.GetEnvBoolOrDefault("WHATSAPP_SERIALIZE_GATEWAY", false) {
		gateway = dispatch.Serialize(session)
	}
	svc.Gateway = gateway

	dispatcher, err := dispatch.NewDispatcher(gateway, dispatchConfigFromEnv(), log.Logger().WithField("module", "dispatch"))
	if err != nil {
		svc.Close()
		return nil, fmt.Errorf("configure dispatcher: %w", err)
	}
	svc.Dispatcher = dispatcher

	sinks := []outcome.Sink{outcome.NewJournalSink(journal)}
	if url := env.GetEnvStringOrDefault("AMQP_URL", ""); url != "" {
		sink, err := outcome.NewAMQPSink(url, env.GetEnvStringOrDefault("AMQP_OUTCOME_EXCHANGE", outcome.DefaultExchange), log.Logger().WithField("module", "amqp"))
		if err != nil {
			log.Print(nil).WithError(err).Error("Failed to configure AMQP outcome sink")
		} else {
			svc.amqp = sink
			sinks = append(sinks, sink)
		}
	}
	svc.Publisher = outcome.NewPublisher(outcomeConfigFromEnv(), log.Logger().WithField("module", "outcome"), sinks...)

	retries := env.GetEnvIntOrDefault("WHATSAPP_STARTUP_RECONNECT_RETRIES", 5)
	baseBackoff := env.GetEnvDurationOrDefault("WHATSAPP_STARTUP_RECONNECT_BACKOFF_BASE", 2*time.Second)
	maxBackoff := env.GetEnvDurationOrDefault("WHATSAPP_STARTUP_RECONNECT_BACKOFF_MAX", 30*time.Second)
	if err := connectWithRetry(ctx, session, retries, baseBackoff, maxBackoff); err != nil {
		// Requests get SessionNotReady; the health routine keeps reporting.
		log.Print(nil).WithError(err).Error("Failed to connect WhatsApp session")
		journal.Error("Erro ao conectar WhatsApp", map[string]interface{}{"error": err.Error()})
	}

	journal.Info("Servidor inicializado", map[string]interface{}{"sinks": svc.Publisher.Sinks()})
	return svc, nil
}

// Shutdown drains pending outcomes and closes every resource.
func (s *Services) Shutdown(ctx context.Context) {
	if s.Publisher != nil {
		s.Publisher.Shutdown(ctx)
	}
	s.Journal.Info("Graceful shutdown concluído", nil)
	s.Close()
}

func (s *Services) Close() {
	if s.amqp != nil {
		if err := s.amqp.Close(); err != nil {
			log.Print(nil).WithError(err).Warn("Failed to close AMQP connection")
		}
	}
	if s.Session != nil {
		if err := s.Session.Close(); err != nil {
			log.Print(nil).WithError(err).Warn("Failed to close WhatsApp session")
		}
	}
	if s.Directory != nil {
		if err := s.Directory.Close(); err != nil {
			log.Print(nil).WithError(err).Warn("Failed to close company directory")
		}
	}
	if s.Journal != nil {
		_ = s.Journal.Close()
	}
}
