package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/photopilot/photopilot/internal/cache"
	"github.com/photopilot/photopilot/internal/feed"
	"github.com/photopilot/photopilot/internal/store"
	"github.com/photopilot/photopilot/pkg/models"
)

const jobStatusTTL = 30 * time.Minute

// Worker drains one job: it claims the job through the conditional
// pending->processing transition, runs items through the ItemProcessor in
// chunk-synchronous bounded-concurrency groups, and writes progress back
// after every item. Per-item failures are data; only faults outside the item
// boundary fail the job.
type Worker struct {
	store     store.Store
	cache     cache.Cache
	publisher feed.Publisher
	processor ItemProcessor

	chunkSize       int
	interChunkDelay time.Duration
}

// WorkerConfig wires a Worker.
type WorkerConfig struct {
	Store     store.Store
	Cache     cache.Cache
	Publisher feed.Publisher
	Processor ItemProcessor
	// ChunkSize bounds concurrent item tasks; at most this many inference
	// calls are in flight per job.
	ChunkSize int
	// InterChunkDelay smooths load on the inference service between chunks.
	InterChunkDelay time.Duration
}

func NewWorker(cfg WorkerConfig) *Worker {
	chunkSize := cfg.ChunkSize
	if chunkSize < 1 {
		chunkSize = 3
	}
	return &Worker{
		store:           cfg.Store,
		cache:           cfg.Cache,
		publisher:       cfg.Publisher,
		processor:       cfg.Processor,
		chunkSize:       chunkSize,
		interChunkDelay: cfg.InterChunkDelay,
	}
}

// Run processes jobID to a terminal state. Safe to invoke more than once for
// the same job: a second caller loses the conditional claim and returns
// without side effects. Panics, whether in Run itself or inside an item task,
// are recovered and leave the job failed rather than taking the process down.
func (w *Worker) Run(jobID uuid.UUID) {
	ctx := context.Background()

	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in job worker", "error", r, "job_id", jobID)
			w.fail(ctx, jobID, fmt.Sprintf("panic: %v", r))
		}
	}()

	job, err := w.store.TransitionJob(ctx, jobID, models.JobStatusPending, models.JobStatusProcessing)
	if errors.Is(err, store.ErrConflict) {
		// Another runner already owns this job.
		slog.Info("job already claimed", "job_id", jobID)
		return
	}
	if err != nil {
		slog.Error("claim job", "error", err, "job_id", jobID)
		return
	}

	_ = w.cache.SetJobStatus(ctx, jobID, models.JobStatusProcessing, jobStatusTTL)
	feed.PublishJob(ctx, w.publisher, models.ChangeOpUpdate, job)

	if err := w.processItems(ctx, job); err != nil {
		w.fail(ctx, jobID, err.Error())
		return
	}

	completed, err := w.store.TransitionJob(ctx, jobID, models.JobStatusProcessing, models.JobStatusCompleted)
	if err != nil {
		slog.Error("complete job", "error", err, "job_id", jobID)
		return
	}

	_ = w.cache.SetJobStatus(ctx, jobID, models.JobStatusCompleted, jobStatusTTL)
	feed.PublishJob(ctx, w.publisher, models.ChangeOpUpdate, completed)
	slog.Info("job completed",
		"job_id", jobID,
		"total_items", completed.TotalItems,
		"processed_items", completed.ProcessedItems,
	)
}

// processItems walks the input in chunks of chunkSize, waiting for each chunk
// to fully settle before starting the next. Item outcomes, success or
// failure, are appended as progress; an error return here means a pipeline
// fault, not an item fault.
func (w *Worker) processItems(ctx context.Context, job *models.Job) error {
	items := job.Input.PhotoIDs
	opts := job.Input.Options

	var (
		faultMu sync.Mutex
		fault   error
	)
	recordFault := func(err error) {
		faultMu.Lock()
		if fault == nil {
			fault = err
		}
		faultMu.Unlock()
	}

	for start := 0; start < len(items); start += w.chunkSize {
		end := min(start+w.chunkSize, len(items))

		var wg sync.WaitGroup
		for _, itemID := range items[start:end] {
			wg.Add(1)
			go func(itemID uuid.UUID) {
				defer wg.Done()
				// A panic here is a code defect, not an item outcome; surface
				// it as a pipeline fault so the job terminates failed instead
				// of taking the process down.
				defer func() {
					if r := recover(); r != nil {
						slog.Error("panic in item task", "error", r, "item_id", itemID, "job_id", job.ID)
						recordFault(fmt.Errorf("panic: %v", r))
					}
				}()

				result := w.processor.Process(ctx, job.OwnerID, itemID, opts)

				updated, err := w.store.AppendJobProgress(ctx, job.ID, result)
				if errors.Is(err, store.ErrConflict) {
					// Result for this item already recorded; idempotent re-run.
					return
				}
				if err != nil {
					recordFault(fmt.Errorf("append progress for item %s: %w", itemID, err))
					return
				}
				feed.PublishJob(ctx, w.publisher, models.ChangeOpUpdate, updated)
			}(itemID)
		}
		wg.Wait()

		if fault != nil {
			return fault
		}
		if end < len(items) && w.interChunkDelay > 0 {
			time.Sleep(w.interChunkDelay)
		}
	}
	return nil
}

// fail force-terminates the job from whichever non-terminal state it is in.
func (w *Worker) fail(ctx context.Context, jobID uuid.UUID, msg string) {
	for _, from := range []string{models.JobStatusProcessing, models.JobStatusPending} {
		failed, err := w.store.TransitionJob(ctx, jobID, from, models.JobStatusFailed,
			store.WithErrorMessage(msg))
		if err == nil {
			_ = w.cache.SetJobStatus(ctx, jobID, models.JobStatusFailed, jobStatusTTL)
			feed.PublishJob(ctx, w.publisher, models.ChangeOpUpdate, failed)
			return
		}
		if !errors.Is(err, store.ErrConflict) {
			slog.Error("mark job failed", "error", err, "job_id", jobID)
			return
		}
	}
}
