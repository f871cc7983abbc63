package telegram

import (
	"context"
	"sort"

	"github.com/gotd/td/tg"

	"github.com/harhitroot/tgexport/pkg/export"
	"github.com/harhitroot/tgexport/pkg/logger"
)

// ChannelFetcher reads one channel's history in ascending order. It
// implements export.MessageFetcher.
type ChannelFetcher struct {
	api     *tg.Client
	channel *Channel
	log     logger.Logger
}

// NewChannelFetcher creates a fetcher bound to a resolved channel
func NewChannelFetcher(client *Client, channel *Channel, log logger.Logger) *ChannelFetcher {
	return &ChannelFetcher{
		api:     client.API(),
		channel: channel,
		log:     log,
	}
}

// historyChunk is the per-request message cap imposed by the API
const historyChunk = 100

// History returns up to limit messages with ID greater than offsetID, oldest
// first. The service pages newest-first; a negative AddOffset flips each
// request into a forward read, and requests are chained until the page is
// full or history ends.
func (f *ChannelFetcher) History(ctx context.Context, offsetID, limit int) (*export.Page, error) {
	page := &export.Page{}
	cursor := offsetID

	for len(page.Messages) < limit {
		chunk := limit - len(page.Messages)
		if chunk > historyChunk {
			chunk = historyChunk
		}

		history, err := f.api.MessagesGetHistory(ctx, &tg.MessagesGetHistoryRequest{
			Peer:      f.channel.inputPeer(),
			OffsetID:  cursor,
			AddOffset: -chunk,
			Limit:     chunk,
		})
		if err != nil {
			return nil, wrapErr("get history", err)
		}

		raw, total := unpackMessages(history)
		page.Total = total

		maxID := cursor
		for _, mc := range raw {
			if id := mc.GetID(); id > maxID {
				maxID = id
			}
			m := convertMessage(mc)
			if m == nil || m.ID <= cursor {
				continue
			}
			page.Messages = append(page.Messages, *m)
		}
		if maxID == cursor {
			break
		}
		cursor = maxID
	}

	sortAscending(page.Messages)
	return page, nil
}

// Details refetches complete message records for the given IDs, chunked to
// the API's per-request cap.
func (f *ChannelFetcher) Details(ctx context.Context, ids []int) ([]export.Message, error) {
	var msgs []export.Message

	for start := 0; start < len(ids); start += historyChunk {
		end := start + historyChunk
		if end > len(ids) {
			end = len(ids)
		}

		inputIDs := make([]tg.InputMessageClass, 0, end-start)
		for _, id := range ids[start:end] {
			inputIDs = append(inputIDs, &tg.InputMessageID{ID: id})
		}

		result, err := f.api.ChannelsGetMessages(ctx, &tg.ChannelsGetMessagesRequest{
			Channel: f.channel.inputChannel(),
			ID:      inputIDs,
		})
		if err != nil {
			return nil, wrapErr("get messages", err)
		}

		raw, _ := unpackMessages(result)
		for _, mc := range raw {
			if m := convertMessage(mc); m != nil {
				msgs = append(msgs, *m)
			}
		}
	}

	sortAscending(msgs)
	return msgs, nil
}

func unpackMessages(result tg.MessagesMessagesClass) ([]tg.MessageClass, int) {
	switch r := result.(type) {
	case *tg.MessagesChannelMessages:
		return r.Messages, r.Count
	case *tg.MessagesMessagesSlice:
		return r.Messages, r.Count
	case *tg.MessagesMessages:
		return r.Messages, len(r.Messages)
	default:
		return nil, 0
	}
}

func sortAscending(msgs []export.Message) {
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].ID < msgs[j].ID })
}
