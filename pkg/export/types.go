// Package export drives the channel export: paginated history reads, batched
// media downloads with a strict settle-all barrier, cursor persistence and
// flood-wait recovery.
package export

import (
	"context"
	"time"

	"github.com/harhitroot/tgexport/pkg/media"
)

// Message is a transport-independent view of one channel message
type Message struct {
	ID       int
	Text     string
	Date     time.Time
	Out      bool
	SenderID int64
	// Media is nil for text-only messages
	Media *media.Descriptor
	// Raw holds the transport's original message record, used by the
	// downloader to build file locations
	Raw any
}

// Page is one slice of channel history, ascending by message ID
type Page struct {
	Messages []Message
	// Total is the service-reported full history size when known
	Total int
}

// LastID returns the highest message ID on the page, 0 when empty
func (p *Page) LastID() int {
	if len(p.Messages) == 0 {
		return 0
	}
	return p.Messages[len(p.Messages)-1].ID
}

// MessageFetcher reads channel history from the remote service
type MessageFetcher interface {
	// History returns up to limit messages with ID greater than offsetID,
	// in ascending order. An empty page signals end of history.
	History(ctx context.Context, offsetID, limit int) (*Page, error)
	// Details refetches complete message records for the given IDs
	Details(ctx context.Context, ids []int) ([]Message, error)
}

// MediaDownloader fetches one message's media bytes into a local file
type MediaDownloader interface {
	Download(ctx context.Context, msg Message, path string, onProgress func(got, total int64)) error
}
