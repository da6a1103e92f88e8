// Package whatsapp runs the single WhatsApp Web session the dispatcher sends
// through and adapts it to dispatch.SessionGateway.
package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	qrCode "github.com/skip2/go-qrcode"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waCompanionReg"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types/events"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
	"google.golang.org/protobuf/proto"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/gdbrns/go-whatsapp-erp-dispatcher/pkg/dispatch"
	"github.com/gdbrns/go-whatsapp-erp-dispatcher/pkg/env"
)

const DefaultDatastoreURI = "file:state/session.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"

var ErrNotReady = errors.New("whatsapp session is not connected")

const chatSaveTimeout = 5 * time.Second

type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StatePairing      State = "pairing"
	StateConnected    State = "connected"
	StateLoggedOut    State = "logged_out"
)

type Config struct {
	DatastoreType string
	DatastoreURI  string
	ProxyURL      string
	StatusCommand string

	// Outbound sends per second and burst. A rate of zero disables pacing.
	SendRate  float64
	SendBurst int

	RegistrySize int

	// Zero keeps the library default.
	VersionMajor, VersionMinor, VersionPatch int
	VersionRefreshInterval                   time.Duration
}

func ConfigFromEnv() Config {
	return Config{
		DatastoreType:          env.GetEnvStringOrDefault("WHATSAPP_DATASTORE_TYPE", "sqlite"),
		DatastoreURI:           env.GetEnvStringOrDefault("WHATSAPP_DATASTORE_URI", DefaultDatastoreURI),
		ProxyURL:               env.GetEnvStringOrDefault("WHATSAPP_CLIENT_PROXY_URL", ""),
		StatusCommand:          env.GetEnvStringOrDefault("WHATSAPP_STATUS_COMMAND", DefaultStatusCommand),
		SendRate:               env.GetEnvFloat64OrDefault("WHATSAPP_SEND_RATE", 1),
		SendBurst:              env.GetEnvIntOrDefault("WHATSAPP_SEND_BURST", 5),
		RegistrySize:           env.GetEnvIntOrDefault("WHATSAPP_KNOWN_CHATS_LIMIT", defaultRegistrySize),
		VersionMajor:           env.GetEnvIntOrDefault("WHATSAPP_VERSION_MAJOR", 0),
		VersionMinor:           env.GetEnvIntOrDefault("WHATSAPP_VERSION_MINOR", 0),
		VersionPatch:           env.GetEnvIntOrDefault("WHATSAPP_VERSION_PATCH", 0),
		VersionRefreshInterval: env.GetEnvDurationOrDefault("WHATSAPP_WAVERSION_REFRESH_MIN_INTERVAL", defaultVersionRefreshInterval),
	}
}

// Status is a point in time view of the session.
type Status struct {
	State       State         `json:"state"`
	Connected   bool          `json:"connected"`
	LoggedIn    bool          `json:"loggedIn"`
	Ready       bool          `json:"ready"`
	Paired      bool          `json:"paired"`
	JID         string        `json:"jid,omitempty"`
	PushName    string        `json:"pushName,omitempty"`
	KnownChats  int           `json:"knownChats"`
	LastEventAt *time.Time    `json:"lastEventAt,omitempty"`
	Version     VersionStatus `json:"version"`
}

type Session struct {
	cfg       Config
	log       logrus.FieldLogger
	container *sqlstore.Container
	client    *whatsmeow.Client
	chats     *ChatStore
	registry  *Registry
	limiter   *rate.Limiter
	version   *VersionRefresher
	listings  singleflight.Group

	persisting sync.WaitGroup
	qrOut     io.Writer

	mu        sync.RWMutex
	state     State
	lastEvent time.Time
}

// Open prepares the device store and the client. It does not connect.
func Open(ctx context.Context, cfg Config, logger logrus.FieldLogger) (*Session, error) {
	if cfg.DatastoreURI == "" {
		cfg.DatastoreURI = DefaultDatastoreURI
	}
	if cfg.StatusCommand == "" {
		cfg.StatusCommand = DefaultStatusCommand
	}

	driver := normalizeDatastoreDriver(cfg.DatastoreType)
	dsn := normalizeDatastoreDSN(driver, cfg.DatastoreURI)
	if err := ensureDatastoreDir(driver, dsn); err != nil {
		return nil, err
	}

	logger.WithField("driver", driver).Info("Initializing WhatsApp datastore")
	container, err := sqlstore.New(ctx, driver, dsn, NewLogger(logger, "Database"))
	if err != nil {
		return nil, fmt.Errorf("initialize whatsapp datastore: %w", err)
	}

	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		_ = container.Close()
		return nil, fmt.Errorf("load whatsapp device: %w", err)
	}

	chats, err := openChatStore(ctx, driver, dsn)
	if err != nil {
		_ = container.Close()
		return nil, err
	}

	s := newSession(cfg, logger, whatsmeow.NewClient(device, NewLogger(logger, "Client")))
	s.container = container
	s.chats = chats
	s.loadKnownChats(ctx)
	return s, nil
}

func newSession(cfg Config, logger logrus.FieldLogger, client *whatsmeow.Client) *Session {
	applyDeviceProps(cfg)

	if cfg.ProxyURL != "" {
		if err := client.SetProxyAddress(cfg.ProxyURL); err != nil {
			logger.WithError(err).Warn("Ignoring invalid WhatsApp proxy address")
		}
	}
	client.EnableAutoReconnect = true
	client.AutoTrustIdentity = true

	limit := rate.Inf
	if cfg.SendRate > 0 {
		limit = rate.Limit(cfg.SendRate)
	}
	burst := cfg.SendBurst
	if burst <= 0 {
		burst = 1
	}

	s := &Session{
		cfg:      cfg,
		log:      logger,
		client:   client,
		registry: NewRegistry(cfg.RegistrySize),
		limiter:  rate.NewLimiter(limit, burst),
		version:  NewVersionRefresher(cfg.VersionRefreshInterval),
		qrOut:    os.Stdout,
		state:    StateDisconnected,
	}
	client.AddEventHandler(s.handleEvent)
	return s
}

func applyDeviceProps(cfg Config) {
	store.DeviceProps.Os = proto.String(runtime.GOOS)
	store.DeviceProps.PlatformType = waCompanionReg.DeviceProps_CHROME.Enum()
	store.DeviceProps.RequireFullSync = proto.Bool(false)

	if cfg.VersionMajor > 0 {
		store.DeviceProps.Version.Primary = proto.Uint32(uint32(cfg.VersionMajor))
	}
	if cfg.VersionMinor > 0 {
		store.DeviceProps.Version.Secondary = proto.Uint32(uint32(cfg.VersionMinor))
	}
	if cfg.VersionPatch > 0 {
		store.DeviceProps.Version.Tertiary = proto.Uint32(uint32(cfg.VersionPatch))
	}
}

func normalizeDatastoreDriver(driver string) string {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "postgresql", "postgres", "pgx":
		return "pgx"
	case "", "sqlite", "sqlite3":
		return "sqlite"
	default:
		return strings.ToLower(driver)
	}
}

func normalizeDatastoreDSN(driver string, dsn string) string {
	if driver != "pgx" {
		return dsn
	}
	appendParam := func(current string, key string, value string) string {
		if strings.Contains(current, key+"=") {
			return current
		}
		separator := "?"
		if strings.Contains(current, "?") {
			if strings.HasSuffix(current, "?") || strings.HasSuffix(current, "&") {
				separator = ""
			} else {
				separator = "&"
			}
		}
		return current + separator + key + "=" + value
	}
	dsn = appendParam(dsn, "prefer_simple_protocol", "true")
	dsn = appendParam(dsn, "statement_cache_capacity", "0")
	dsn = appendParam(dsn, "default_query_exec_mode", "simple_protocol")
	return dsn
}

// ensureDatastoreDir creates the parent directory of a file backed sqlite
// datastore.
func ensureDatastoreDir(driver string, dsn string) error {
	if driver != "sqlite" {
		return nil
	}
	path, _, _ := strings.Cut(strings.TrimPrefix(dsn, "file:"), "?")
	if path == "" || path == ":memory:" || strings.Contains(dsn, "mode=memory") {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create datastore directory: %w", err)
	}
	return nil
}

func (s *Session) loadKnownChats(ctx context.Context) {
	if s.chats == nil {
		return
	}
	chats, err := s.chats.Load(ctx, s.registrySize())
	if err != nil {
		s.log.WithError(err).Warn("Could not load known chats")
		return
	}
	// Load returns newest first; remember oldest first so eviction order holds.
	for i := len(chats) - 1; i >= 0; i-- {
		s.registry.Remember(chats[i])
	}
	s.log.WithField("count", len(chats)).Debug("Loaded known chats")
}

func (s *Session) registrySize() int {
	if s.cfg.RegistrySize > 0 {
		return s.cfg.RegistrySize
	}
	return defaultRegistrySize
}

// remember updates the registry at once and persists the chat in the
// background. Close waits for pending writes.
func (s *Session) remember(conv dispatch.Conversation) {
	s.registry.Remember(conv)
	if s.chats == nil {
		return
	}
	seenAt := time.Now()
	s.persisting.Add(1)
	go func() {
		defer s.persisting.Done()
		ctx, cancel := context.WithTimeout(context.Background(), chatSaveTimeout)
		defer cancel()
		if err := s.chats.Save(ctx, conv, seenAt); err != nil {
			s.log.WithError(err).Debug("Could not persist known chat")
		}
	}()
}

// Connect connects to WhatsApp. An unpaired device prints a QR code on the
// console and keeps waiting for it to be scanned in the background.
func (s *Session) Connect(ctx context.Context) error {
	if s.client.Store.ID == nil {
		qrChan, err := s.client.GetQRChannel(context.Background())
		if err != nil {
			return fmt.Errorf("open qr channel: %w", err)
		}
		s.setState(StatePairing)
		if err := s.client.Connect(); err != nil {
			s.setState(StateDisconnected)
			return fmt.Errorf("connect: %w", err)
		}
		go s.watchQR(qrChan)
		return nil
	}

	s.setState(StateConnecting)
	if err := s.client.Connect(); err != nil {
		s.setState(StateDisconnected)
		return fmt.Errorf("connect: %w", err)
	}
	return nil
}

func (s *Session) watchQR(qrChan <-chan whatsmeow.QRChannelItem) {
	for evt := range qrChan {
		switch evt.Event {
		case "code":
			art, err := renderQR(evt.Code)
			if err != nil {
				s.log.WithError(err).Error("Could not render QR code")
				continue
			}
			s.log.WithField("expires_in", evt.Timeout.String()).Info("QR code received, scan it with WhatsApp")
			fmt.Fprintln(s.qrOut, art)
		case whatsmeow.QRChannelSuccess.Event:
			s.log.Info("WhatsApp device paired")
		case whatsmeow.QRChannelTimeout.Event:
			s.log.Warn("QR code pairing timed out, restart to get a new code")
		case whatsmeow.QRChannelClientOutdated.Event:
			s.log.Error("WhatsApp client version is outdated for QR pairing")
		case whatsmeow.QRChannelScannedWithoutMultidevice.Event:
			s.log.Warn("QR scanned without multi-device enabled")
		case whatsmeow.QRChannelErrUnexpectedEvent.Event:
			s.log.Error("QR channel entered an unexpected state")
		case "error":
			s.log.WithError(evt.Error).Error("QR channel reported an error")
		}
	}
}

func renderQR(code string) (string, error) {
	qr, err := qrCode.New(code, qrCode.Medium)
	if err != nil {
		return "", err
	}
	return qr.ToSmallString(false), nil
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.lastEvent = time.Now()
	s.mu.Unlock()
}

func (s *Session) handleEvent(evt interface{}) {
	switch e := evt.(type) {
	case *events.Connected:
		s.setState(StateConnected)
		s.log.Info("WhatsApp connected")
	case *events.Disconnected:
		s.setState(StateDisconnected)
		s.log.Warn("WhatsApp disconnected")
	case *events.LoggedOut:
		s.setState(StateLoggedOut)
		s.log.WithField("reason", e.Reason.String()).Error("WhatsApp session logged out, pair the device again")
	case *events.StreamReplaced:
		s.setState(StateDisconnected)
		s.log.Warn("WhatsApp session replaced by another connection")
	case *events.PairSuccess:
		s.log.WithField("jid", e.ID.String()).Info("WhatsApp pairing succeeded")
	case *events.KeepAliveTimeout:
		s.log.WithFields(logrus.Fields{
			"errors":       e.ErrorCount,
			"last_success": e.LastSuccess.Format(time.RFC3339),
		}).Warn("WhatsApp keepalive timeout")
	case *events.TemporaryBan:
		s.log.WithFields(logrus.Fields{"code": e.Code.String(), "expires": e.Expire.String()}).Error("WhatsApp account temporarily banned")
	case *events.ConnectFailure:
		s.setState(StateDisconnected)
		s.log.WithFields(logrus.Fields{"reason": e.Reason.String(), "message": e.Message}).Error("WhatsApp connection failure")
	case *events.Message:
		s.handleMessage(e)
	}
}

// IsReady reports whether the session is connected and logged in.
func (s *Session) IsReady() bool {
	return s.client.IsConnected() && s.client.IsLoggedIn()
}

func (s *Session) Status() Status {
	s.mu.RLock()
	state, lastEvent := s.state, s.lastEvent
	s.mu.RUnlock()

	status := Status{
		State:      state,
		Connected:  s.client.IsConnected(),
		LoggedIn:   s.client.IsLoggedIn(),
		KnownChats: s.registry.Len(),
		Version:    s.version.Status(),
	}
	status.Ready = status.Connected && status.LoggedIn
	if s.client.Store != nil && s.client.Store.ID != nil {
		status.Paired = true
		status.JID = s.client.Store.ID.ToNonAD().String()
		status.PushName = s.client.Store.PushName
	}
	if !lastEvent.IsZero() {
		status.LastEventAt = &lastEvent
	}
	return status
}

func (s *Session) Version() *VersionRefresher {
	return s.version
}

// PruneKnownChats forgets persisted chats not seen for maxAge.
func (s *Session) PruneKnownChats(ctx context.Context, maxAge time.Duration) (int64, error) {
	if s.chats == nil {
		return 0, nil
	}
	return s.chats.Prune(ctx, time.Now().Add(-maxAge))
}

func (s *Session) Close() error {
	s.client.Disconnect()
	s.setState(StateDisconnected)

	s.persisting.Wait()

	var errs []error
	if s.chats != nil {
		errs = append(errs, s.chats.Close())
	}
	if s.container != nil {
		errs = append(errs, s.container.Close())
	}
	return errors.Join(errs...)
}
