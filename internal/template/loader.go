package template

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/protocolqc/protocolqc/internal/domain"
)

// Source is one template file read from storage.
type Source struct {
	Name   string `json:"name"`
	Format Format `json:"format"`
	Data   []byte `json:"data"`
}

// Stem returns the template name without its extension. It names the
// template's log file and tags file.
func (s Source) Stem() string { return Stem(s.Name) }

// Stem strips a template file extension from name.
func Stem(name string) string {
	if _, ok := FormatFromPath(name); ok {
		return strings.TrimSuffix(name, filepath.Ext(name))
	}
	return name
}

// Discover returns the template files at path: the file itself, or every
// JSON and YAML file directly inside a directory, sorted by name.
func Discover(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("template file or directory does not exist: %w", err)
	}

	if !info.IsDir() {
		if _, ok := FormatFromPath(path); !ok {
			return nil, fmt.Errorf("%w: %s is not a json or yaml file", domain.ErrNoTemplates, path)
		}
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("read template directory: %w", err)
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := FormatFromPath(e.Name()); ok {
			files = append(files, filepath.Join(path, e.Name()))
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w in %s", domain.ErrNoTemplates, path)
	}
	sort.Strings(files)
	return files, nil
}

// Load reads every template discovered at path.
func Load(path string) ([]Source, error) {
	files, err := Discover(path)
	if err != nil {
		return nil, err
	}
	sources := make([]Source, 0, len(files))
	for _, f := range files {
		src, err := ReadSource(f)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return sources, nil
}

// ReadSource reads a single template file.
func ReadSource(path string) (Source, error) {
	format, ok := FormatFromPath(path)
	if !ok {
		return Source{}, fmt.Errorf("%w: %s is not a json or yaml file", domain.ErrNoTemplates, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Source{}, fmt.Errorf("read template %s: %w", path, err)
	}
	return Source{Name: filepath.Base(path), Format: format, Data: data}, nil
}
