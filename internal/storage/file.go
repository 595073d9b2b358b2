package storage

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"indibot/pkg/logx"
)

// textStore keeps the dedup set in memory and persists it as a flat text
// file: one "bot_id event_id" pair per line, space-separated, no escaping.
// Identifiers must not contain spaces or newlines.
type textStore struct {
	log  logx.Logger
	path string

	mu   sync.Mutex
	data map[string]map[string]struct{} // event id -> set of bot ids
}

func newTextStore(path string, log logx.Logger) *textStore {
	return &textStore{
		log:  log,
		path: path,
		data: map[string]map[string]struct{}{},
	}
}

func (s *textStore) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.path); errors.Is(err, os.ErrNotExist) {
		s.log.Info("storage file missing, creating it", logx.String("path", s.path))
		return s.saveLocked()
	}

	f, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("open storage file: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		botID, eventID, ok := strings.Cut(line, " ")
		if !ok {
			return fmt.Errorf("corrupt storage line %q in %s", line, s.path)
		}
		s.addLocked(eventID, botID)
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read storage file: %w", err)
	}
	return nil
}

func (s *textStore) Save(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

// saveLocked overwrites the file with the full in-memory state. The write
// goes through a temp file and rename so a crash mid-save never truncates
// the previous contents.
func (s *textStore) saveLocked() error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create storage directory: %w", err)
	}

	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("write storage file: %w", err)
	}

	w := bufio.NewWriter(f)
	for eventID, botIDs := range s.data {
		for botID := range botIDs {
			fmt.Fprintf(w, "%s %s\n", botID, eventID)
		}
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return fmt.Errorf("write storage file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("write storage file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace storage file: %w", err)
	}
	return nil
}

func (s *textStore) Has(ctx context.Context, eventID, botID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.data[eventID][botID]
	return ok, nil
}

func (s *textStore) Add(ctx context.Context, eventID, botID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addLocked(eventID, botID)
	return nil
}

func (s *textStore) addLocked(eventID, botID string) {
	set, ok := s.data[eventID]
	if !ok {
		set = map[string]struct{}{}
		s.data[eventID] = set
	}
	set[botID] = struct{}{}
}

func (s *textStore) Close() error { return nil }
