// Package logging creates the run's loggers: a summary logger mirrored to
// the console and one log file per protocol template.
package logging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/protocolqc/protocolqc/internal/template"
)

// SummaryName is the base name of the summary log.
const SummaryName = "summary"

// ParseLevel maps the configured debug level to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToUpper(s) {
	case "", "INFO":
		return slog.LevelInfo, nil
	case "DEBUG":
		return slog.LevelDebug, nil
	default:
		return 0, fmt.Errorf("unsupported debug level %q", s)
	}
}

// Manager owns the log files written into one directory.
type Manager struct {
	dir     string
	level   slog.Level
	console io.Writer

	mu    sync.Mutex
	files map[string]*os.File
}

// NewManager creates dir if needed. An empty dir means the working directory.
func NewManager(dir string, level slog.Level, console io.Writer) (*Manager, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create logs directory: %w", err)
	}
	if console == nil {
		console = io.Discard
	}
	return &Manager{dir: dir, level: level, console: console, files: make(map[string]*os.File)}, nil
}

// Dir returns the logs directory.
func (m *Manager) Dir() string { return m.dir }

// Path returns the log file path of a template or of the summary.
func (m *Manager) Path(name string) string {
	return filepath.Join(m.dir, template.Stem(name)+".log")
}

// Summary returns the logger written to the console and to summary.log.
func (m *Manager) Summary() (*slog.Logger, error) {
	f, err := m.open(SummaryName)
	if err != nil {
		return nil, err
	}
	return slog.New(newLineHandler(io.MultiWriter(m.console, f), m.level)), nil
}

// Template returns the logger writing to the template's own log file.
func (m *Manager) Template(name string) (*slog.Logger, error) {
	f, err := m.open(name)
	if err != nil {
		return nil, err
	}
	return slog.New(newLineHandler(f, m.level)), nil
}

func (m *Manager) open(name string) (*os.File, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stem := template.Stem(name)
	if f, ok := m.files[stem]; ok {
		return f, nil
	}
	f, err := os.Create(m.Path(name))
	if err != nil {
		return nil, fmt.Errorf("create log file: %w", err)
	}
	m.files[stem] = f
	return f, nil
}

// Discard closes and removes a template's log file.
func (m *Manager) Discard(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.remove(template.Stem(name))
}

func (m *Manager) remove(stem string) error {
	if f, ok := m.files[stem]; ok {
		_ = f.Close()
		delete(m.files, stem)
	}
	err := os.Remove(filepath.Join(m.dir, stem+".log"))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove log file: %w", err)
	}
	return nil
}

// KeepOnly removes every template log in the directory except that of name.
// The summary log is always kept.
func (m *Manager) KeepOnly(name string) error {
	keep := template.Stem(name)
	logs, err := filepath.Glob(filepath.Join(m.dir, "*.log"))
	if err != nil {
		return fmt.Errorf("list log files: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	var errs []error
	for _, path := range logs {
		stem := strings.TrimSuffix(filepath.Base(path), ".log")
		if stem == SummaryName || stem == keep {
			continue
		}
		errs = append(errs, m.remove(stem))
	}
	return errors.Join(errs...)
}

// Close closes every open log file.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var errs []error
	for stem, f := range m.files {
		errs = append(errs, f.Close())
		delete(m.files, stem)
	}
	return errors.Join(errs...)
}
