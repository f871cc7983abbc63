package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// MediaRecord describes a message's attachment in the export log
type MediaRecord struct {
	Type string `json:"type"`
	Path string `json:"path,omitempty"`
}

// MessageRecord is one entry of the cumulative export log
type MessageRecord struct {
	ID    int          `json:"id"`
	Text  string       `json:"text,omitempty"`
	Date  int64        `json:"date"`
	Out   bool         `json:"out"`
	Media *MediaRecord `json:"media,omitempty"`
}

// Manager owns one channel's export directory: artifact files, duplicate
// detection and the cumulative message log.
type Manager struct {
	dir     string
	logName string

	mu    sync.RWMutex
	files map[string]bool
}

// NewManager creates a storage manager for the given export directory.
// The directory is not touched until Init is called.
func NewManager(dir, logName string) *Manager {
	return &Manager{
		dir:     dir,
		logName: logName,
		files:   make(map[string]bool),
	}
}

// Init creates the export directory and scans existing files for duplicate
// detection. Directory creation has its own failure path (permissions).
func (m *Manager) Init() error {
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return fmt.Errorf("create export directory: %w", err)
	}

	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return fmt.Errorf("scan export directory: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		if !e.IsDir() {
			m.files[e.Name()] = true
		}
	}
	return nil
}

// Dir returns the export directory path
func (m *Manager) Dir() string {
	return m.dir
}

// TargetPath returns the absolute path for an artifact name
func (m *Manager) TargetPath(name string) string {
	return filepath.Join(m.dir, name)
}

// Exists reports whether an artifact with this name was already written.
// The in-memory index is backed by a stat check so files written by a
// previous run are honored.
func (m *Manager) Exists(name string) bool {
	m.mu.RLock()
	known := m.files[name]
	m.mu.RUnlock()
	if known {
		return true
	}

	if _, err := os.Stat(m.TargetPath(name)); err == nil {
		m.Mark(name)
		return true
	}
	return false
}

// Mark records an artifact as written
func (m *Manager) Mark(name string) {
	m.mu.Lock()
	m.files[name] = true
	m.mu.Unlock()
}

// WriteSidecar writes an ancillary file atomically
func (m *Manager) WriteSidecar(name string, data []byte) error {
	path := m.TargetPath(name)
	tmp := path + ".tmp"

	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write sidecar: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename sidecar: %w", err)
	}

	m.Mark(name)
	return nil
}

// AppendMessages appends records to the cumulative JSON-array log. The log
// is rewritten atomically so a crash never leaves a truncated array.
func (m *Manager) AppendMessages(records []MessageRecord) error {
	if len(records) == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	path := filepath.Join(m.dir, m.logName)

	existing, err := readLog(path)
	if err != nil {
		return err
	}
	existing = append(existing, records...)

	data, err := json.MarshalIndent(existing, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal message log: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write message log: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename message log: %w", err)
	}
	return nil
}

// Messages returns all records currently in the log
func (m *Manager) Messages() ([]MessageRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return readLog(filepath.Join(m.dir, m.logName))
}

func readLog(path string) ([]MessageRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read message log: %w", err)
	}

	var records []MessageRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode message log: %w", err)
	}
	return records, nil
}
