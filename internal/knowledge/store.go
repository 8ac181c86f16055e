// File: internal/knowledge/store.go

// Package knowledge persists what the agent learns about an app's UI
// elements: one plain-text doc per element identifier, plus a JSON summary
// per run. Docs survive across sessions, which is what makes exploration
// runs worth doing.
package knowledge

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Store is a file-backed documentation store rooted at a docs directory.
type Store struct {
	logger  *zap.Logger
	docsDir string
}

// NewStore creates the docs directory if needed and returns a Store.
func NewStore(logger *zap.Logger, docsDir string) (*Store, error) {
	if err := os.MkdirAll(docsDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating docs directory %s: %w", docsDir, err)
	}
	return &Store{
		logger:  logger.Named("knowledge"),
		docsDir: docsDir,
	}, nil
}

// ReadDoc returns the stored documentation for an element identifier, and
// whether any exists.
func (s *Store) ReadDoc(identifier string) (string, bool) {
	data, err := os.ReadFile(s.docPath(identifier))
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("Failed to read element doc",
				zap.String("identifier", identifier), zap.Error(err))
		}
		return "", false
	}
	doc := strings.TrimSpace(string(data))
	if doc == "" {
		return "", false
	}
	return doc, true
}

// WriteDoc stores documentation for an element identifier, replacing any
// previous version.
func (s *Store) WriteDoc(identifier, doc string) error {
	if identifier == "" {
		return fmt.Errorf("empty element identifier")
	}
	path := s.docPath(identifier)
	if err := os.WriteFile(path, []byte(strings.TrimSpace(doc)+"\n"), 0o644); err != nil {
		return fmt.Errorf("writing element doc %s: %w", path, err)
	}
	return nil
}

// WriteSessionSummary records the run summary as JSON next to the docs,
// under sessions/<runID>.json.
func (s *Store) WriteSessionSummary(runID string, summary any) error {
	sessionsDir := filepath.Join(s.docsDir, "sessions")
	if err := os.MkdirAll(sessionsDir, 0o755); err != nil {
		return fmt.Errorf("creating sessions directory: %w", err)
	}
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding session summary: %w", err)
	}
	path := filepath.Join(sessionsDir, sanitizeName(runID)+".json")
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing session summary %s: %w", path, err)
	}
	s.logger.Info("Session summary written", zap.String("path", path))
	return nil
}

func (s *Store) docPath(identifier string) string {
	return filepath.Join(s.docsDir, sanitizeName(identifier)+".txt")
}

// sanitizeName makes an identifier safe as a file name. Element identifiers
// are already mostly filesystem-safe; this catches path separators and the
// odd stray character.
func sanitizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '_' || r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "_"
	}
	return b.String()
}
