// Package history implements the append-only chat log: every global,
// room, and private-message line is appended to a flat text file under a
// configured root directory, and the tail of a given file can be read
// back (the chat package does not call the tail readers) — filepath.Join
// against a configured root plus
// os.MkdirAll before any write.
package history

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cherryrecorder/edge-server/internal/logger"
)

// Store is a single append-only log rooted at a directory. All writes and
// tail-reads are serialized through one mutex: history volume is low
// enough (chat traffic, not telemetry) that a single global lock never
// becomes a bottleneck, and it keeps partial-line writes impossible.
type Store struct {
	root string
	mu   sync.Mutex
}

// New returns a Store rooted at dir. An empty dir disables persistence:
// the append methods (Global, Room, Private) and the Tail* readers all
// become no-ops, since history is optional.
func New(dir string) *Store {
	return &Store{root: dir}
}

// Enabled reports whether this Store actually persists anything.
func (s *Store) Enabled() bool {
	return s.root != ""
}

// Global appends a line to the server-wide history log.
func (s *Store) Global(sender, message string) error {
	return s.append(filepath.Join(s.root, "global", "history.txt"), sender, message)
}

// Room appends a line to the named room's history log.
func (s *Store) Room(room, sender, message string) error {
	return s.append(filepath.Join(s.root, "rooms", sanitize(room)+".txt"), sender, message)
}

// Private appends a line to the history log shared by two nicknames. The
// pair is sorted lexicographically so "alice"/"bob" and "bob"/"alice"
// resolve to the same file.
func (s *Store) Private(a, b, sender, message string) error {
	u1, u2 := a, b
	if u2 < u1 {
		u1, u2 = u2, u1
	}
	name := sanitize(u1) + "_" + sanitize(u2) + ".txt"
	return s.append(filepath.Join(s.root, "private", name), sender, message)
}

// sanitize strips path separators out of a nickname or room name before it
// is used as part of a filename, so a crafted nickname can never escape
// the configured root.
func sanitize(name string) string {
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	return name
}

func (s *Store) append(path, sender, message string) error {
	if !s.Enabled() {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		logger.History().Error().Err(err).Str("path", path).Msg("failed to create history directory")
		return fmt.Errorf("history: create dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		logger.History().Error().Err(err).Str("path", path).Msg("failed to open history file")
		return fmt.Errorf("history: open: %w", err)
	}
	defer f.Close()

	line := formatLine(uuid.NewString(), time.Now(), sender, message)
	if _, err := f.WriteString(line); err != nil {
		logger.History().Error().Err(err).Str("path", path).Msg("failed to append history line")
		return fmt.Errorf("history: write: %w", err)
	}
	return nil
}

// formatLine renders one history record as a flat text line, prefixed with
// a unique message ID so a record can be referenced unambiguously even
// though the log itself is an append-only file, not an indexed store.
func formatLine(id string, at time.Time, sender, message string) string {
	message = strings.ReplaceAll(message, "\n", " ")
	return fmt.Sprintf("%s %s [%s]: %s\n", id, at.UTC().Format("2006-01-02 15:04:05"), sender, message)
}

// TailGlobal returns up to n of the most recent lines from the global log.
func (s *Store) TailGlobal(n int) ([]string, error) {
	return s.tail(filepath.Join(s.root, "global", "history.txt"), n)
}

// TailRoom returns up to n of the most recent lines from room's log.
func (s *Store) TailRoom(room string, n int) ([]string, error) {
	return s.tail(filepath.Join(s.root, "rooms", sanitize(room)+".txt"), n)
}

// TailPrivate returns up to n of the most recent lines shared by a and b.
func (s *Store) TailPrivate(a, b string, n int) ([]string, error) {
	u1, u2 := a, b
	if u2 < u1 {
		u1, u2 = u2, u1
	}
	name := sanitize(u1) + "_" + sanitize(u2) + ".txt"
	return s.tail(filepath.Join(s.root, "private", name), n)
}

func (s *Store) tail(path string, n int) ([]string, error) {
	if !s.Enabled() || n <= 0 {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("history: open for tail: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("history: scan: %w", err)
	}

	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines, nil
}

// Rooms lists the room names that currently have a history file, sorted
// alphabetically. No chat command calls it; kept small and dependency-free
// deliberately.
func (s *Store) Rooms() ([]string, error) {
	if !s.Enabled() {
		return nil, nil
	}
	dir := filepath.Join(s.root, "rooms")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("history: list rooms: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".txt"))
	}
	sort.Strings(names)
	return names, nil
}
