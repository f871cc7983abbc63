package export

import (
	"context"

	"github.com/harhitroot/tgexport/pkg/logger"
	"github.com/harhitroot/tgexport/pkg/retry"
)

// Paginator walks channel history page by page. Every remote read goes
// through the shared retrier, which gates it against the burst limiter.
type Paginator struct {
	fetcher MessageFetcher
	retrier *retry.Retrier
	limit   int
	log     logger.Logger
}

// NewPaginator creates a paginator reading pages of up to limit messages
func NewPaginator(fetcher MessageFetcher, retrier *retry.Retrier, limit int, log logger.Logger) *Paginator {
	return &Paginator{
		fetcher: fetcher,
		retrier: retrier,
		limit:   limit,
		log:     log,
	}
}

// NextPage fetches the page following offsetID
func (p *Paginator) NextPage(ctx context.Context, offsetID int) (*Page, error) {
	var page *Page

	err := p.retrier.Do(ctx, func(ctx context.Context) error {
		var err error
		page, err = p.fetcher.History(ctx, offsetID, p.limit)
		return err
	})
	if err != nil {
		return nil, err
	}

	p.log.WithFields(map[string]interface{}{
		"offset_id": offsetID,
		"messages":  len(page.Messages),
	}).Debug("page fetched")

	return page, nil
}

// Details refetches full message records for the given IDs
func (p *Paginator) Details(ctx context.Context, ids []int) ([]Message, error) {
	var msgs []Message

	err := p.retrier.Do(ctx, func(ctx context.Context) error {
		var err error
		msgs, err = p.fetcher.Details(ctx, ids)
		return err
	})
	if err != nil {
		return nil, err
	}
	return msgs, nil
}

// NextCounts reports one page's message and media totals for the read-only
// count pass. It satisfies progress.PageCounter.
func (p *Paginator) NextCounts(ctx context.Context, offsetID int) (total, mediaCount, lastID int, err error) {
	page, err := p.NextPage(ctx, offsetID)
	if err != nil {
		return 0, 0, 0, err
	}

	for _, msg := range page.Messages {
		if msg.Media != nil {
			mediaCount++
		}
	}
	return len(page.Messages), mediaCount, page.LastID(), nil
}
