// Package state persists the export cursor so an interrupted run resumes
// where it stopped instead of refetching the whole history.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/harhitroot/tgexport/pkg/logger"
)

// Cursor is the resumable position within one channel's history. The offset
// is the highest message ID whose page fully settled.
type Cursor struct {
	ChannelID       int64     `json:"channel_id"`
	OffsetMessageID int       `json:"offset_message_id"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Store reads and writes the cursor file for one channel
type Store struct {
	path string
	log  logger.Logger
}

// NewStore creates a cursor store rooted in the given directory
func NewStore(dir string, channelID int64, log logger.Logger) *Store {
	return &Store{
		path: filepath.Join(dir, fmt.Sprintf("cursor_%d.json", channelID)),
		log:  log,
	}
}

// Path returns the cursor file location
func (s *Store) Path() string {
	return s.path
}

// Load reads the persisted cursor. A missing file is not an error and
// yields a nil cursor.
func (s *Store) Load() (*Cursor, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read cursor: %w", err)
	}

	var c Cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode cursor: %w", err)
	}

	s.log.WithFields(map[string]interface{}{
		"channel_id": c.ChannelID,
		"offset_id":  c.OffsetMessageID,
	}).Debug("Cursor loaded")

	return &c, nil
}

// CursorFor returns the persisted cursor for the given channel, or a fresh
// zero cursor when none exists or the stored one belongs to another channel.
func (s *Store) CursorFor(channelID int64) (*Cursor, error) {
	c, err := s.Load()
	if err != nil {
		return nil, err
	}
	if c == nil || c.ChannelID != channelID {
		return &Cursor{ChannelID: channelID}, nil
	}
	return c, nil
}

// Save writes the cursor atomically. Crashing mid-save leaves the previous
// cursor intact, so resume never skips an unsettled page.
func (s *Store) Save(c *Cursor) error {
	c.UpdatedAt = time.Now()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	tmp := s.path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create cursor file: %w", err)
	}

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(c); err != nil {
		file.Close()
		os.Remove(tmp)
		return fmt.Errorf("encode cursor: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tmp)
		return fmt.Errorf("sync cursor file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close cursor file: %w", err)
	}

	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace cursor file: %w", err)
	}

	s.log.WithFields(map[string]interface{}{
		"channel_id": c.ChannelID,
		"offset_id":  c.OffsetMessageID,
	}).Debug("Cursor saved")

	return nil
}

// Reset removes the cursor file so the next run starts from scratch
func (s *Store) Reset() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete cursor: %w", err)
	}
	return nil
}
