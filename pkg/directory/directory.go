// Package directory looks up which WhatsApp destination receives the
// reports of a company, keyed by its CNPJ.
package directory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

var (
	ErrNotFound      = errors.New("company not found")
	ErrNoDestination = errors.New("company has no whatsapp destination")
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*(\.[A-Za-z_][A-Za-z0-9_$]*)?$`)

type Config struct {
	Driver            string
	DSN               string
	Table             string
	TaxIDColumn       string
	DestinationColumn string
	NameColumn        string
	MaxOpenConns      int
}

func DefaultConfig() Config {
	return Config{
		Driver:            "pgx",
		Table:             "D_EMPRESAS",
		TaxIDColumn:       "CNPJ_C02",
		DestinationColumn: "NUMERO_WHATSAPP_GRUPO",
		NameColumn:        "XNOME_C03",
		MaxOpenConns:      4,
	}
}

// Company is one row of the company table.
type Company struct {
	TaxID       string `json:"cnpj"`
	Name        string `json:"razao_social"`
	Destination string `json:"numero_whatsapp_grupo"`
}

type Store struct {
	db          *sql.DB
	cfg         Config
	lookupQuery string
	probeQuery  string
	listQuery   string
}

// Open connects to the configured database and verifies it answers.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	driver := NormalizeDriver(cfg.Driver)
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, errors.New("directory database dsn is empty")
	}

	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open directory database: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxOpenConns)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)

	cfg.Driver = driver
	store, err := NewStore(db, cfg)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := store.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// NewStore wraps an open database. Table and column names are validated
// because they are interpolated into the queries.
func NewStore(db *sql.DB, cfg Config) (*Store, error) {
	defaults := DefaultConfig()
	if cfg.Table == "" {
		cfg.Table = defaults.Table
	}
	if cfg.TaxIDColumn == "" {
		cfg.TaxIDColumn = defaults.TaxIDColumn
	}
	if cfg.DestinationColumn == "" {
		cfg.DestinationColumn = defaults.DestinationColumn
	}
	if cfg.NameColumn == "" {
		cfg.NameColumn = defaults.NameColumn
	}
	cfg.Driver = NormalizeDriver(cfg.Driver)

	for _, ident := range []string{cfg.Table, cfg.TaxIDColumn, cfg.DestinationColumn, cfg.NameColumn} {
		if !identifierPattern.MatchString(ident) {
			return nil, fmt.Errorf("invalid sql identifier %q", ident)
		}
	}

	columns := fmt.Sprintf("%s, %s, %s", cfg.TaxIDColumn, cfg.DestinationColumn, cfg.NameColumn)
	return &Store{
		db:          db,
		cfg:         cfg,
		lookupQuery: fmt.Sprintf("SELECT %s FROM %s WHERE %s = %s", columns, cfg.Table, cfg.TaxIDColumn, placeholder(cfg.Driver, 1)),
		probeQuery:  fmt.Sprintf("SELECT %s FROM %s WHERE 1 = 0", columns, cfg.Table),
		listQuery:   fmt.Sprintf("SELECT %s FROM %s ORDER BY %s", columns, cfg.Table, cfg.NameColumn),
	}, nil
}

// NormalizeDriver maps driver aliases to registered database/sql names.
func NormalizeDriver(driver string) string {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "pgx", "postgresql":
		return "pgx"
	case "postgres", "pq":
		return "postgres"
	case "sqlite", "sqlite3":
		return "sqlite"
	default:
		return strings.ToLower(strings.TrimSpace(driver))
	}
}

func placeholder(driver string, n int) string {
	switch driver {
	case "pgx", "postgres":
		return fmt.Sprintf("$%d", n)
	default:
		return "?"
	}
}

func (s *Store) Config() Config {
	return s.cfg
}

// LookupByTaxID returns the company registered under taxID.
func (s *Store) LookupByTaxID(ctx context.Context, taxID string) (Company, error) {
	var (
		id, destination, name sql.NullString
	)
	err := s.db.QueryRowContext(ctx, s.lookupQuery, taxID).Scan(&id, &destination, &name)
	if errors.Is(err, sql.ErrNoRows) {
		return Company{}, ErrNotFound
	}
	if err != nil {
		return Company{}, fmt.Errorf("lookup company %s: %w", taxID, err)
	}

	company := Company{
		TaxID:       strings.TrimSpace(id.String),
		Name:        strings.TrimSpace(name.String),
		Destination: strings.TrimSpace(destination.String),
	}
	if company.Destination == "" {
		return company, ErrNoDestination
	}
	return company, nil
}

// List returns every company ordered by name.
func (s *Store) List(ctx context.Context) ([]Company, error) {
	rows, err := s.db.QueryContext(ctx, s.listQuery)
	if err != nil {
		return nil, fmt.Errorf("list companies: %w", err)
	}
	defer rows.Close()

	var companies []Company
	for rows.Next() {
		var id, destination, name sql.NullString
		if err := rows.Scan(&id, &destination, &name); err != nil {
			return nil, err
		}
		companies = append(companies, Company{
			TaxID:       strings.TrimSpace(id.String),
			Name:        strings.TrimSpace(name.String),
			Destination: strings.TrimSpace(destination.String),
		})
	}
	return companies, rows.Err()
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping directory database: %w", err)
	}
	var one int
	if err := s.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("query directory database: %w", err)
	}
	return nil
}

// CheckTable verifies the configured table and columns exist.
func (s *Store) CheckTable(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, s.probeQuery)
	if err != nil {
		return fmt.Errorf("table %s with columns %s, %s, %s is not readable: %w",
			s.cfg.Table, s.cfg.TaxIDColumn, s.cfg.DestinationColumn, s.cfg.NameColumn, err)
	}
	return rows.Close()
}

func (s *Store) Close() error {
	return s.db.Close()
}
