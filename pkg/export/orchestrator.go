package export

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/harhitroot/tgexport/pkg/errors"
	"github.com/harhitroot/tgexport/pkg/logger"
	"github.com/harhitroot/tgexport/pkg/media"
	"github.com/harhitroot/tgexport/pkg/progress"
	"github.com/harhitroot/tgexport/pkg/retry"
	"github.com/harhitroot/tgexport/pkg/state"
	"github.com/harhitroot/tgexport/pkg/storage"
)

// Orchestrator runs one channel's export end to end: count pass, page loop,
// batched downloads, message log and cursor persistence.
type Orchestrator struct {
	paginator *Paginator
	scheduler *Scheduler
	store     *storage.Manager
	cursor    *state.Store
	tracker   *progress.Tracker
	allow     media.AllowSet
	pageDelay time.Duration
	log       logger.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

// NewOrchestrator wires an orchestrator from its collaborators
func NewOrchestrator(paginator *Paginator, scheduler *Scheduler, store *storage.Manager, cursor *state.Store, tracker *progress.Tracker, allow media.AllowSet, pageDelay time.Duration, log logger.Logger) *Orchestrator {
	o := &Orchestrator{
		paginator: paginator,
		scheduler: scheduler,
		store:     store,
		cursor:    cursor,
		tracker:   tracker,
		allow:     allow,
		pageDelay: pageDelay,
		log:       log,
		sleep:     retry.Wait,
	}
	o.scheduler.FileProgress = tracker.FileProgress
	return o
}

// Run exports the channel's history starting from the persisted cursor.
// The loop is iterative: each round fetches one page, settles its whole
// batch, appends the page to the message log and only then advances the
// cursor, so an interrupted run never skips an unsettled page.
func (o *Orchestrator) Run(ctx context.Context, channelID int64) error {
	if err := o.store.Init(); err != nil {
		return err
	}

	cur, err := o.cursor.CursorFor(channelID)
	if err != nil {
		return err
	}
	if cur.OffsetMessageID > 0 {
		o.log.WithField("offset_id", cur.OffsetMessageID).Info("resuming from saved cursor")
	}

	o.tracker.CountPass(ctx, o.paginator)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		page, err := o.paginator.NextPage(ctx, cur.OffsetMessageID)
		if err != nil {
			if o.recoverFlood(ctx, err) {
				continue
			}
			return fmt.Errorf("fetch history: %w", err)
		}

		if len(page.Messages) == 0 {
			o.log.Info("export complete, no more messages")
			return nil
		}

		msgs, err := o.paginator.Details(ctx, messageIDs(page.Messages))
		if err != nil {
			if o.recoverFlood(ctx, err) {
				continue
			}
			return fmt.Errorf("fetch message details: %w", err)
		}
		if len(msgs) == 0 {
			msgs = page.Messages
		}

		eligible, skipped := o.partition(msgs)

		result := o.scheduler.Run(ctx, eligible)
		if wait, flooded := floodAmong(result.Errors); flooded {
			o.log.WithField("wait_seconds", int(wait.Seconds())).Warn("flood wait during downloads, retrying page")
			if err := o.sleep(ctx, wait); err != nil {
				return err
			}
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if err := o.store.AppendMessages(toRecords(msgs)); err != nil {
			return err
		}

		cur.OffsetMessageID = page.LastID()
		if err := o.cursor.Save(cur); err != nil {
			return err
		}

		o.tracker.Record(result.Downloaded, skipped)

		if err := o.sleep(ctx, o.pageDelay); err != nil {
			return err
		}
	}
}

// recoverFlood sleeps out a flood-wait signal. It reports whether the error
// was a flood signal; the caller retries the same page afterwards.
func (o *Orchestrator) recoverFlood(ctx context.Context, err error) bool {
	wait, ok := apperrors.FloodWait(err)
	if !ok {
		return false
	}

	o.log.WithField("wait_seconds", int(wait.Seconds())).Warn("flood wait requested, suspending")
	if serr := o.sleep(ctx, wait); serr != nil {
		return false
	}
	return true
}

// partition splits a page into messages needing artifact work and counts
// the media messages skipped because their file already exists or their type
// is outside the allow-set. Text-only messages carry no artifacts and are
// not counted either way.
func (o *Orchestrator) partition(msgs []Message) (eligible []Message, skipped int) {
	for _, msg := range msgs {
		if msg.Media == nil {
			continue
		}
		if !o.allow.Allows(msg.Media) || o.store.Exists(msg.Media.Filename(msg.ID)) {
			skipped++
			continue
		}
		eligible = append(eligible, msg)
	}
	return eligible, skipped
}

func messageIDs(msgs []Message) []int {
	ids := make([]int, len(msgs))
	for i, m := range msgs {
		ids[i] = m.ID
	}
	return ids
}

func toRecords(msgs []Message) []storage.MessageRecord {
	records := make([]storage.MessageRecord, len(msgs))
	for i, m := range msgs {
		rec := storage.MessageRecord{
			ID:   m.ID,
			Text: m.Text,
			Date: m.Date.Unix(),
			Out:  m.Out,
		}
		if m.Media != nil {
			rec.Media = &storage.MediaRecord{
				Type: string(m.Media.Type),
				Path: m.Media.Filename(m.ID),
			}
		}
		records[i] = rec
	}
	return records
}

// floodAmong returns the longest flood wait among the batch's errors
func floodAmong(errs []error) (time.Duration, bool) {
	var max time.Duration
	for _, err := range errs {
		if wait, ok := apperrors.FloodWait(err); ok && wait > max {
			max = wait
		}
	}
	return max, max > 0
}
