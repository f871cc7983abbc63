// Package media classifies message attachments and derives their target
// artifacts: primary file name, allow-set tag and ancillary sidecar files.
package media

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Type enumerates the attachment variants the exporter understands
type Type string

const (
	TypePhoto    Type = "photo"
	TypeDocument Type = "document"
	TypePoll     Type = "poll"
	TypeWebPage  Type = "webpage"
	TypeOther    Type = "other"
)

// Descriptor describes one message's attachment. It is produced by the
// transport layer and never mutated afterwards.
type Descriptor struct {
	Type Type
	// Tag is the classification tag matched against the allow-set
	// (photo, video, audio, pdf, ...)
	Tag string
	// Ext is the target file extension without the leading dot
	Ext string
	// Size is the expected byte size when known (0 otherwise)
	Size int64

	// WebPage fields
	WebPageID int64
	URL       string
	HasPhoto  bool

	// Poll payload, present only for TypePoll
	Poll *Poll
}

// Poll is a flat, cycle-free serialization of poll data
type Poll struct {
	ID          int64        `json:"id"`
	Question    string       `json:"question"`
	Answers     []PollAnswer `json:"answers"`
	TotalVoters int          `json:"total_voters,omitempty"`
	Closed      bool         `json:"closed"`
}

// PollAnswer is one poll option
type PollAnswer struct {
	Text   string `json:"text"`
	Voters int    `json:"voters,omitempty"`
}

// Filename derives the primary artifact name for the message carrying this
// descriptor. A webpage's primary target is redirected to an image named
// after the webpage's own identifier; a poll's primary artifact is its JSON
// sidecar.
func (d *Descriptor) Filename(messageID int) string {
	switch d.Type {
	case TypePhoto:
		return fmt.Sprintf("%d.jpg", messageID)
	case TypeDocument:
		ext := d.Ext
		if ext == "" {
			ext = "bin"
		}
		return fmt.Sprintf("%d.%s", messageID, ext)
	case TypeWebPage:
		if d.HasPhoto {
			return fmt.Sprintf("webpage_%d.jpg", d.WebPageID)
		}
		return fmt.Sprintf("%d_url.txt", messageID)
	case TypePoll:
		return fmt.Sprintf("poll_%d.json", messageID)
	default:
		return fmt.Sprintf("%d.bin", messageID)
	}
}

// Downloadable reports whether the descriptor has bytes to fetch from the
// remote service. Polls and photo-less webpages only produce sidecars.
func (d *Descriptor) Downloadable() bool {
	switch d.Type {
	case TypePhoto, TypeDocument:
		return true
	case TypeWebPage:
		return d.HasPhoto
	default:
		return false
	}
}

// Sidecar is an ancillary file written next to the primary artifact
type Sidecar struct {
	Name string
	Data []byte
}

// Sidecars returns the ancillary files this descriptor requires
func (d *Descriptor) Sidecars(messageID int) ([]Sidecar, error) {
	switch d.Type {
	case TypeWebPage:
		if d.URL == "" {
			return nil, nil
		}
		name := fmt.Sprintf("%d_url.txt", messageID)
		return []Sidecar{{Name: name, Data: []byte(d.URL + "\n")}}, nil
	case TypePoll:
		if d.Poll == nil {
			return nil, nil
		}
		data, err := json.MarshalIndent(d.Poll, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal poll: %w", err)
		}
		return []Sidecar{{Name: fmt.Sprintf("poll_%d.json", messageID), Data: data}}, nil
	default:
		return nil, nil
	}
}

// AllowSet is the configured set of admissible media tags and extensions
type AllowSet map[string]bool

// Wildcard is the allow-set entry admitting every media type
const Wildcard = "all"

// NewAllowSet builds an allow-set from configured type names
func NewAllowSet(types []string) AllowSet {
	set := make(AllowSet, len(types))
	for _, t := range types {
		if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
			set[t] = true
		}
	}
	return set
}

// Allows reports whether the descriptor's tag or extension is admitted
func (s AllowSet) Allows(d *Descriptor) bool {
	if d == nil {
		return false
	}
	if s[Wildcard] {
		return true
	}
	return s[strings.ToLower(d.Tag)] || (d.Ext != "" && s[strings.ToLower(d.Ext)])
}
