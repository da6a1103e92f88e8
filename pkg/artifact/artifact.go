// Package artifact finds the report files the ERP writes for each company.
//
// Reports live at {base}/ERP_{cnpj}_VENDAS_COMERCIO/{filename}.
package artifact

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
)

const (
	DefaultFilename = "RelatorioVendas.jpg"
	dirPrefix       = "ERP_"
	dirSuffix       = "_VENDAS_COMERCIO"
)

var (
	ErrNotFound = errors.New("report file not found")
	ErrEmpty    = errors.New("report file is empty")
)

var reportDirPattern = regexp.MustCompile(`^ERP_(\d+)_VENDAS_COMERCIO$`)

// Artifact describes a report file on disk.
type Artifact struct {
	TaxID      string    `json:"cnpj"`
	Path       string    `json:"path"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"lastModified"`
}

// Info adds presentation fields to an Artifact.
type Info struct {
	Artifact
	SizeFormatted string `json:"sizeFormatted"`
	ModifiedAgo   string `json:"lastModifiedFormatted"`
	Extension     string `json:"extension"`
	Filename      string `json:"filename"`
}

// LocateError carries the path that was expected.
type LocateError struct {
	Path string
	Err  error
}

func (e *LocateError) Error() string {
	return e.Err.Error() + ": " + e.Path
}

func (e *LocateError) Unwrap() error {
	return e.Err
}

type Store struct {
	base     string
	filename string
	now      func() time.Time
}

func NewStore(base string, filename string) *Store {
	if strings.TrimSpace(filename) == "" {
		filename = DefaultFilename
	}
	return &Store{base: filepath.Clean(base), filename: filepath.Base(filename), now: time.Now}
}

func (s *Store) Base() string {
	return s.base
}

// Dir is the report directory of a company.
func (s *Store) Dir(taxID string) string {
	return filepath.Join(s.base, dirPrefix+taxID+dirSuffix)
}

// Path is where the report of a company is expected.
func (s *Store) Path(taxID string) string {
	return filepath.Join(s.Dir(taxID), s.filename)
}

// Locate returns the report of taxID. Missing and empty files are errors
// wrapping ErrNotFound and ErrEmpty.
func (s *Store) Locate(taxID string) (Artifact, error) {
	path := s.Path(taxID)
	st, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Artifact{}, &LocateError{Path: path, Err: ErrNotFound}
	}
	if err != nil {
		return Artifact{}, &LocateError{Path: path, Err: err}
	}
	if st.IsDir() {
		return Artifact{}, &LocateError{Path: path, Err: ErrNotFound}
	}
	if st.Size() == 0 {
		return Artifact{}, &LocateError{Path: path, Err: ErrEmpty}
	}
	return Artifact{TaxID: taxID, Path: path, Size: st.Size(), ModifiedAt: st.ModTime()}, nil
}

// Info locates the report and describes it.
func (s *Store) Info(taxID string) (Info, error) {
	a, err := s.Locate(taxID)
	if err != nil {
		return Info{}, err
	}
	return s.describe(a), nil
}

func (s *Store) describe(a Artifact) Info {
	return Info{
		Artifact:      a,
		SizeFormatted: humanize.IBytes(uint64(a.Size)),
		ModifiedAgo:   humanize.RelTime(a.ModifiedAt, s.now(), "ago", "from now"),
		Extension:     filepath.Ext(a.Path),
		Filename:      filepath.Base(a.Path),
	}
}

// Read loads the report and detects its media type from content.
func (s *Store) Read(a Artifact) ([]byte, string, error) {
	data, err := os.ReadFile(a.Path)
	if err != nil {
		return nil, "", fmt.Errorf("read report %s: %w", a.Path, err)
	}
	if len(data) == 0 {
		return nil, "", &LocateError{Path: a.Path, Err: ErrEmpty}
	}
	mt := mimetype.Detect(data)
	return data, mt.String(), nil
}

// List returns every non empty report under the base directory, ordered by
// CNPJ.
func (s *Store) List() ([]Info, error) {
	entries, err := os.ReadDir(s.base)
	if err != nil {
		return nil, fmt.Errorf("read reports directory %s: %w", s.base, err)
	}

	var reports []Info
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		m := reportDirPattern.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		a, err := s.Locate(m[1])
		if err != nil {
			continue
		}
		reports = append(reports, s.describe(a))
	}

	sort.Slice(reports, func(i, j int) bool {
		return reports[i].TaxID < reports[j].TaxID
	})
	return reports, nil
}

// EnsureDir creates the report directory of a company.
func (s *Store) EnsureDir(taxID string) (string, error) {
	dir := s.Dir(taxID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create report directory: %w", err)
	}
	return dir, nil
}

// ExpectedPath extracts the path from a Locate error.
func ExpectedPath(err error) string {
	var le *LocateError
	if errors.As(err, &le) {
		return le.Path
	}
	return ""
}
