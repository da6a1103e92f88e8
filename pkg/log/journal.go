package log

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Level is the severity written to the activity journal. SUCCESS has no
// logrus equivalent and is logged at info on the console.
type Level string

const (
	LevelInfo    Level = "INFO"
	LevelWarn    Level = "WARN"
	LevelError   Level = "ERROR"
	LevelSuccess Level = "SUCCESS"
)

const (
	journalPrefix     = "erp-whatsapp-"
	journalSuffix     = ".log"
	journalDateLayout = "2006-01-02"
)

func (l Level) logrus() logrus.Level {
	switch l {
	case LevelWarn:
		return logrus.WarnLevel
	case LevelError:
		return logrus.ErrorLevel
	default:
		return logrus.InfoLevel
	}
}

// Entry is one decoded journal line.
type Entry map[string]interface{}

func (e Entry) Time() time.Time {
	raw, _ := e["timestamp"].(string)
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Journal appends activity records as JSON lines to one file per day.
type Journal struct {
	dir    string
	out    *dailyFile
	logger *logrus.Logger
	now    func() time.Time
}

func OpenJournal(dir string) (*Journal, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("journal directory is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}

	j := &Journal{dir: dir, now: time.Now}
	j.out = &dailyFile{dir: dir, now: func() time.Time { return j.now() }}

	j.logger = logrus.New()
	j.logger.SetOutput(j.out)
	j.logger.SetLevel(logrus.TraceLevel)
	j.logger.Formatter = &logrus.JSONFormatter{
		TimestampFormat: time.RFC3339Nano,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyMsg:   "message",
			logrus.FieldKeyLevel: "severity",
		},
	}
	return j, nil
}

func (j *Journal) Dir() string {
	if j == nil {
		return ""
	}
	return j.dir
}

// Record writes one activity line and mirrors it on the console logger.
// A nil journal only logs to the console.
func (j *Journal) Record(level Level, message string, data map[string]interface{}) {
	fields := logrus.Fields{}
	for k, v := range data {
		switch k {
		case "timestamp", "message", "level", "severity":
			k = "data." + k
		}
		fields[k] = v
	}

	logger.WithFields(fields).Log(level.logrus(), "["+string(level)+"] "+message)

	if j == nil {
		return
	}
	fields["level"] = string(level)
	j.logger.WithTime(j.now().UTC()).WithFields(fields).Log(level.logrus(), message)
}

func (j *Journal) Info(message string, data map[string]interface{}) {
	j.Record(LevelInfo, message, data)
}

func (j *Journal) Warn(message string, data map[string]interface{}) {
	j.Record(LevelWarn, message, data)
}

func (j *Journal) Error(message string, data map[string]interface{}) {
	j.Record(LevelError, message, data)
}

func (j *Journal) Success(message string, data map[string]interface{}) {
	j.Record(LevelSuccess, message, data)
}

// Recent returns entries newer than hours, newest first. Unparseable lines
// are skipped.
func (j *Journal) Recent(hours int) ([]Entry, error) {
	if j == nil {
		return nil, nil
	}
	if hours <= 0 {
		hours = 24
	}
	cutoff := j.now().Add(-time.Duration(hours) * time.Hour)

	files, err := j.files()
	if err != nil {
		return nil, err
	}

	var entries []Entry
	for _, name := range files {
		day, err := time.ParseInLocation(journalDateLayout, journalDate(name), time.UTC)
		if err == nil && day.Add(24*time.Hour).Before(cutoff) {
			continue
		}
		if err := readEntries(filepath.Join(j.dir, name), cutoff, &entries); err != nil {
			return nil, err
		}
	}

	sort.SliceStable(entries, func(a, b int) bool {
		return entries[a].Time().After(entries[b].Time())
	})
	return entries, nil
}

// Clean removes journal files last modified more than days ago.
func (j *Journal) Clean(days int) ([]string, error) {
	if j == nil {
		return nil, nil
	}
	if days <= 0 {
		days = 30
	}
	cutoff := j.now().AddDate(0, 0, -days)

	files, err := j.files()
	if err != nil {
		return nil, err
	}

	var removed []string
	for _, name := range files {
		path := filepath.Join(j.dir, name)
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(path); err != nil {
				return removed, err
			}
			removed = append(removed, name)
		}
	}
	return removed, nil
}

func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	return j.out.Close()
}

func (j *Journal) files() ([]string, error) {
	dirEntries, err := os.ReadDir(j.dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, de := range dirEntries {
		name := de.Name()
		if de.IsDir() || !strings.HasPrefix(name, journalPrefix) || !strings.HasSuffix(name, journalSuffix) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func journalDate(name string) string {
	return strings.TrimSuffix(strings.TrimPrefix(name, journalPrefix), journalSuffix)
}

func readEntries(path string, cutoff time.Time, into *[]Entry) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var e Entry
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			continue
		}
		if e.Time().Before(cutoff) {
			continue
		}
		*into = append(*into, e)
	}
	return scanner.Err()
}

// dailyFile is an io.Writer that switches to a new file when the UTC date
// changes.
type dailyFile struct {
	dir string
	now func() time.Time

	mu   sync.Mutex
	day  string
	file *os.File
}

var _ io.WriteCloser = (*dailyFile)(nil)

func (d *dailyFile) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	day := d.now().UTC().Format(journalDateLayout)
	if d.file == nil || day != d.day {
		if d.file != nil {
			_ = d.file.Close()
		}
		f, err := os.OpenFile(filepath.Join(d.dir, journalPrefix+day+journalSuffix), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			d.file = nil
			return 0, err
		}
		d.file = f
		d.day = day
	}
	return d.file.Write(p)
}

func (d *dailyFile) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.file == nil {
		return nil
	}
	err := d.file.Close()
	d.file = nil
	return err
}
