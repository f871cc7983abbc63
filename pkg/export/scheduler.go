package export

import (
	"context"
	"sync"
	"time"

	"github.com/harhitroot/tgexport/pkg/logger"
	"github.com/harhitroot/tgexport/pkg/retry"
	"github.com/harhitroot/tgexport/pkg/storage"
)

// BatchResult summarizes one batch of downloads
type BatchResult struct {
	Downloaded int
	Failed     int
	Errors     []error
}

// Scheduler runs media downloads in bounded-concurrency batches. A batch is
// a strict barrier: every item settles (success or failure) before the next
// batch starts, and individual failures never abort the batch.
type Scheduler struct {
	downloader  MediaDownloader
	store       *storage.Manager
	retrier     *retry.Retrier
	maxParallel int
	itemDelay   time.Duration
	batchDelay  time.Duration
	log         logger.Logger

	// FileProgress, when set, receives per-file byte progress
	FileProgress func(name string, got, total int64)

	sleep func(ctx context.Context, d time.Duration) error
}

// NewScheduler creates a download scheduler
func NewScheduler(downloader MediaDownloader, store *storage.Manager, retrier *retry.Retrier, maxParallel int, itemDelay, batchDelay time.Duration, log logger.Logger) *Scheduler {
	if maxParallel < 1 {
		maxParallel = 1
	}
	return &Scheduler{
		downloader:  downloader,
		store:       store,
		retrier:     retrier,
		maxParallel: maxParallel,
		itemDelay:   itemDelay,
		batchDelay:  batchDelay,
		log:         log,
		sleep:       retry.Wait,
	}
}

// Run downloads every message's media, in batches of at most maxParallel.
// Every item observes itemDelay before its attempt and consecutive batches
// are separated by batchDelay. It returns once every item has settled.
func (s *Scheduler) Run(ctx context.Context, msgs []Message) BatchResult {
	var result BatchResult
	var mu sync.Mutex

	for start := 0; start < len(msgs); start += s.maxParallel {
		if ctx.Err() != nil {
			break
		}
		if start > 0 {
			if err := s.sleep(ctx, s.batchDelay); err != nil {
				break
			}
		}

		end := start + s.maxParallel
		if end > len(msgs) {
			end = len(msgs)
		}
		batch := msgs[start:end]

		var wg sync.WaitGroup
		for _, msg := range batch {
			wg.Add(1)
			go func(msg Message) {
				defer wg.Done()

				err := s.processOne(ctx, msg)

				mu.Lock()
				if err != nil {
					result.Failed++
					result.Errors = append(result.Errors, err)
				} else {
					result.Downloaded++
				}
				mu.Unlock()

				if err != nil {
					s.log.WithError(err).WithField("message_id", msg.ID).Error("media download failed")
				}
			}(msg)
		}
		wg.Wait()
	}

	return result
}

// processOne settles a single message's artifacts: the primary download when
// the media carries bytes, plus any sidecar files. The per-item delay runs
// first, unconditionally.
func (s *Scheduler) processOne(ctx context.Context, msg Message) error {
	if err := s.sleep(ctx, s.itemDelay); err != nil {
		return err
	}

	name := msg.Media.Filename(msg.ID)

	if msg.Media.Downloadable() {
		path := s.store.TargetPath(name)

		onProgress := func(got, total int64) {
			if s.FileProgress != nil {
				s.FileProgress(name, got, total)
			}
		}

		err := s.retrier.Do(ctx, func(ctx context.Context) error {
			return s.downloader.Download(ctx, msg, path, onProgress)
		})
		if err != nil {
			return err
		}
		s.store.Mark(name)
	}

	sidecars, err := msg.Media.Sidecars(msg.ID)
	if err != nil {
		return err
	}
	for _, sc := range sidecars {
		if s.store.Exists(sc.Name) {
			continue
		}
		if err := s.store.WriteSidecar(sc.Name, sc.Data); err != nil {
			return err
		}
	}
	return nil
}
