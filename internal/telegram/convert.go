package telegram

import (
	"path"
	"strings"
	"time"

	"github.com/gotd/td/tg"

	"github.com/harhitroot/tgexport/pkg/export"
	"github.com/harhitroot/tgexport/pkg/media"
)

// convertMessage maps a raw MTProto message onto the pipeline's message
// type. Service messages and empty messages yield nil.
func convertMessage(msg tg.MessageClass) *export.Message {
	m, ok := msg.(*tg.Message)
	if !ok {
		return nil
	}

	out := &export.Message{
		ID:   m.ID,
		Text: m.Message,
		Date: time.Unix(int64(m.Date), 0),
		Out:  m.Out,
		Raw:  m,
	}
	if from, ok := m.GetFromID(); ok {
		if peer, ok := from.(*tg.PeerUser); ok {
			out.SenderID = peer.UserID
		}
	}
	if m.Media != nil {
		out.Media = classifyMedia(m.Media)
	}
	return out
}

// classifyMedia derives the attachment descriptor for one message's media
func classifyMedia(mc tg.MessageMediaClass) *media.Descriptor {
	switch mm := mc.(type) {
	case *tg.MessageMediaPhoto:
		photo, ok := mm.GetPhoto()
		if !ok {
			return nil
		}
		p, ok := photo.(*tg.Photo)
		if !ok {
			return nil
		}
		_, size := largestPhotoSize(p)
		return &media.Descriptor{
			Type: media.TypePhoto,
			Tag:  "photo",
			Ext:  "jpg",
			Size: size,
		}

	case *tg.MessageMediaDocument:
		doc, ok := mm.GetDocument()
		if !ok {
			return nil
		}
		d, ok := doc.(*tg.Document)
		if !ok {
			return nil
		}
		tag, ext := classifyDocument(d)
		return &media.Descriptor{
			Type: media.TypeDocument,
			Tag:  tag,
			Ext:  ext,
			Size: d.Size,
		}

	case *tg.MessageMediaPoll:
		return &media.Descriptor{
			Type: media.TypePoll,
			Tag:  "poll",
			Poll: convertPoll(&mm.Poll, &mm.Results),
		}

	case *tg.MessageMediaWebPage:
		wp, ok := mm.Webpage.(*tg.WebPage)
		if !ok {
			return nil
		}
		_, hasPhoto := wp.GetPhoto()
		return &media.Descriptor{
			Type:      media.TypeWebPage,
			Tag:       "webpage",
			WebPageID: wp.ID,
			URL:       wp.URL,
			HasPhoto:  hasPhoto,
		}

	default:
		return &media.Descriptor{Type: media.TypeOther, Tag: "other"}
	}
}

// classifyDocument picks the allow-set tag and file extension for a document
func classifyDocument(d *tg.Document) (tag, ext string) {
	tag = "document"

	switch {
	case strings.HasPrefix(d.MimeType, "video/"):
		tag = "video"
	case strings.HasPrefix(d.MimeType, "audio/"):
		tag = "audio"
	case strings.HasPrefix(d.MimeType, "image/"):
		tag = "image"
	case d.MimeType == "application/pdf":
		tag = "pdf"
	}

	for _, attr := range d.Attributes {
		switch a := attr.(type) {
		case *tg.DocumentAttributeFilename:
			if e := strings.TrimPrefix(path.Ext(a.FileName), "."); e != "" {
				ext = strings.ToLower(e)
			}
		case *tg.DocumentAttributeSticker:
			tag = "sticker"
		case *tg.DocumentAttributeAudio:
			if a.Voice {
				tag = "voice"
			}
		}
	}

	if ext == "" {
		if i := strings.LastIndex(d.MimeType, "/"); i >= 0 && i < len(d.MimeType)-1 {
			ext = d.MimeType[i+1:]
		}
	}
	return tag, ext
}

// convertPoll flattens poll data and merges in vote counts when present
func convertPoll(p *tg.Poll, results *tg.PollResults) *media.Poll {
	votersByOption := make(map[string]int)
	for _, r := range results.Results {
		votersByOption[string(r.Option)] = r.Voters
	}

	out := &media.Poll{
		ID:          p.ID,
		Question:    p.Question.Text,
		TotalVoters: results.TotalVoters,
		Closed:      p.Closed,
	}
	for _, a := range p.Answers {
		out.Answers = append(out.Answers, media.PollAnswer{
			Text:   a.Text.Text,
			Voters: votersByOption[string(a.Option)],
		})
	}
	return out
}

// largestPhotoSize returns the thumb type and byte size of the largest
// available photo rendition.
func largestPhotoSize(p *tg.Photo) (thumbType string, size int64) {
	for _, s := range p.Sizes {
		switch ps := s.(type) {
		case *tg.PhotoSize:
			if int64(ps.Size) >= size {
				size = int64(ps.Size)
				thumbType = ps.Type
			}
		case *tg.PhotoSizeProgressive:
			if len(ps.Sizes) > 0 {
				last := int64(ps.Sizes[len(ps.Sizes)-1])
				if last >= size {
					size = last
					thumbType = ps.Type
				}
			}
		}
	}
	return thumbType, size
}
