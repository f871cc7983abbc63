package progress

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/harhitroot/tgexport/pkg/logger"
)

// PageCounter yields per-page message counts during the read-only count
// pass. lastID is the highest message id seen on the page; a page with
// total == 0 signals end of history.
type PageCounter interface {
	NextCounts(ctx context.Context, offsetID int) (total, media, lastID int, err error)
}

// Tracker maintains running export counters and renders periodic reports.
// All mutation goes through the tracker; callers only read snapshots.
type Tracker struct {
	mu                 sync.Mutex
	totalMessages      int
	totalMediaMessages int
	totalDownloaded    int
	skippedFiles       int
	startTime          time.Time

	out io.Writer
	log logger.Logger
}

// Snapshot is a read-only copy of the tracker state
type Snapshot struct {
	TotalMessages      int
	TotalMediaMessages int
	TotalDownloaded    int
	SkippedFiles       int
}

// NewTracker creates a tracker reporting to out (os.Stdout when nil)
func NewTracker(out io.Writer, log logger.Logger) *Tracker {
	if out == nil {
		out = os.Stdout
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Tracker{
		out:       out,
		log:       log,
		startTime: time.Now(),
	}
}

// CountPass performs a dedicated read-only traversal of the full channel
// history to compute the message and media totals. Counting is best-effort:
// on failure both totals are left at zero and downloading proceeds.
func (t *Tracker) CountPass(ctx context.Context, pages PageCounter) {
	var total, media int
	offsetID := 0

	for {
		n, m, lastID, err := pages.NextCounts(ctx, offsetID)
		if err != nil {
			t.log.WithError(err).Warn("count pass failed, totals unavailable")
			t.setTotals(0, 0)
			return
		}
		if n == 0 {
			break
		}
		total += n
		media += m
		offsetID = lastID
	}

	t.setTotals(total, media)
	t.log.WithFields(map[string]interface{}{
		"total_messages": total,
		"media_messages": media,
	}).Info("count pass completed")
}

func (t *Tracker) setTotals(total, media int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.totalMessages = total
	t.totalMediaMessages = media
}

// Record updates cumulative counters with one batch's figures and emits a
// formatted report.
func (t *Tracker) Record(batchDownloaded, batchSkipped int) {
	t.mu.Lock()
	t.totalDownloaded += batchDownloaded
	t.skippedFiles += batchSkipped

	processed := t.totalDownloaded + t.skippedFiles
	percent := 0.0
	if t.totalMediaMessages > 0 {
		percent = float64(processed) / float64(t.totalMediaMessages) * 100
	}
	remaining := t.totalMediaMessages - processed
	if remaining < 0 {
		remaining = 0
	}
	downloaded, skipped := t.totalDownloaded, t.skippedFiles
	t.mu.Unlock()

	fmt.Fprintf(t.out,
		"progress: downloaded=%d skipped=%d completed=%.1f%% remaining=%d (batch: +%d downloaded, +%d skipped)\n",
		downloaded, skipped, percent, remaining, batchDownloaded, batchSkipped)

	t.log.WithFields(map[string]interface{}{
		"downloaded":       downloaded,
		"skipped":          skipped,
		"remaining":        remaining,
		"batch_downloaded": batchDownloaded,
		"batch_skipped":    batchSkipped,
	}).Debug("progress recorded")
}

// FileProgress streams a single file's byte progress to the console
func (t *Tracker) FileProgress(name string, got, total int64) {
	if total <= 0 {
		return
	}
	percent := got * 100 / total
	t.mu.Lock()
	fmt.Fprintf(t.out, "\r%s: %d%%", name, percent)
	if got >= total {
		fmt.Fprintln(t.out)
	}
	t.mu.Unlock()
}

// Snapshot returns a copy of the current counters
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Snapshot{
		TotalMessages:      t.totalMessages,
		TotalMediaMessages: t.totalMediaMessages,
		TotalDownloaded:    t.totalDownloaded,
		SkippedFiles:       t.skippedFiles,
	}
}

// Elapsed returns the time since tracking started
func (t *Tracker) Elapsed() time.Duration {
	return time.Since(t.startTime)
}
