// Package sidebar implements the live sidebar: template loading, content
// rendering, per-client objective tracking and the periodic driver that
// streams scoreboard packets to every connected client.
package sidebar

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

const (
	// TemplateFileName is the template resource inside the data directory.
	TemplateFileName = "scoreboard.txt"

	// MaxLines caps the number of overlay lines below the title.
	MaxLines = 15
)

// Template is the raw, unrendered overlay definition.
type Template struct {
	Title string   `json:"title"`
	Lines []string `json:"lines"`
}

// DefaultTemplate is used when no template file exists or it cannot be read.
func DefaultTemplate(title string) Template {
	return Template{
		Title: title,
		Lines: []string{
			"Online: " + PlaceholderOnline,
			"TPS: " + PlaceholderTPS,
			"Uptime: " + PlaceholderUptime,
		},
	}
}

// Format serializes t in the template file format.
func (t Template) Format() string {
	var sb strings.Builder
	sb.WriteString(t.Title)
	sb.WriteByte('\n')
	for _, line := range t.Lines {
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// ParseTemplate reads the template file format: the first non-empty line is
// the title and up to MaxLines further non-empty lines are the overlay.
// Trailing whitespace is trimmed, blank lines are dropped and lines past
// the cap are ignored.
func ParseTemplate(content, fallbackTitle string) Template {
	var lines []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimRightFunc(line, unicode.IsSpace)
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}

	t := Template{Title: fallbackTitle}
	if len(lines) > 0 {
		t.Title, lines = lines[0], lines[1:]
	}
	if len(lines) > MaxLines {
		lines = lines[:MaxLines]
	}
	t.Lines = lines
	return t
}

// TemplateStore reads the template from disk on every Load so external
// edits apply without a restart.
type TemplateStore struct {
	path string
}

// NewTemplateStore stores the template as TemplateFileName under dataDir.
func NewTemplateStore(dataDir string) *TemplateStore {
	return &TemplateStore{path: filepath.Join(dataDir, TemplateFileName)}
}

// Path returns the template file location.
func (s *TemplateStore) Path() string {
	return s.path
}

// Load returns the current template. A missing file is created with the
// default content; any I/O failure degrades to DefaultTemplate.
func (s *TemplateStore) Load(fallbackTitle string) Template {
	if err := s.ensure(fallbackTitle); err != nil {
		log.Printf("⚠️ Sidebar template not created at %s: %v", s.path, err)
	}

	content, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Printf("⚠️ Sidebar template unreadable, using defaults: %v", err)
		}
		return DefaultTemplate(fallbackTitle)
	}
	return ParseTemplate(string(content), fallbackTitle)
}

// Save replaces the template file.
func (s *TemplateStore) Save(t Template) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(t.Format()), 0o644); err != nil {
		return fmt.Errorf("write template: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace template: %w", err)
	}
	return nil
}

func (s *TemplateStore) ensure(fallbackTitle string) error {
	_, err := os.Stat(s.path)
	if err == nil || !errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := s.Save(DefaultTemplate(fallbackTitle)); err != nil {
		return err
	}
	log.Printf("📋 Created sidebar template %s", s.path)
	return nil
}
