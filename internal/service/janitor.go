package service

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/einsatzpix/gallery-api/internal/models"
	"github.com/einsatzpix/gallery-api/pkg/jobs"
)

type indexReader interface {
	ReadAll() []models.Photo
}

type sweepStorage interface {
	ListOlderThan(age time.Duration) ([]string, error)
	Delete(filename string) error
}

// JanitorService periodically removes asset files that have no record in the
// photo index. A successful upload always commits its record last, so a file
// older than the grace age without one is leftover from a crashed request.
type JanitorService struct {
	store     indexReader
	originals sweepStorage
	public    sweepStorage
	queue     *jobs.Queue
	logger    *zap.Logger
	interval  time.Duration
	minAge    time.Duration
	protected map[string]struct{}
	cancel    context.CancelFunc
}

type removeTarget struct {
	storage sweepStorage
	name    string
}

// NewJanitorService constructs the sweeper with its removal worker queue.
// indexPath names the photo index; the index and its lock sidecar are never
// swept, in case they are configured inside one of the asset directories.
func NewJanitorService(store indexReader, originals, public sweepStorage, indexPath string, logger *zap.Logger, interval, minAge time.Duration, workers int) *JanitorService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Hour
	}
	if minAge <= 0 {
		minAge = 30 * time.Minute
	}

	protected := make(map[string]struct{}, 2)
	if indexPath != "" {
		base := filepath.Base(indexPath)
		protected[base] = struct{}{}
		protected[base+".lock"] = struct{}{}
	}

	j := &JanitorService{
		store:     store,
		originals: originals,
		public:    public,
		logger:    logger,
		interval:  interval,
		minAge:    minAge,
		protected: protected,
	}
	j.queue = jobs.NewQueue("janitor", j.handleRemove, jobs.QueueConfig{
		Workers: workers,
		Logger:  logger,
	})
	return j
}

// Start launches the removal workers and the periodic sweep loop.
func (j *JanitorService) Start(ctx context.Context) {
	ctx, j.cancel = context.WithCancel(ctx)
	j.queue.Start(ctx)
	go j.run(ctx)
	j.logger.Sugar().Infow("janitor started", "interval", j.interval, "min_age", j.minAge)
}

// Stop halts the sweep loop and drains the workers.
func (j *JanitorService) Stop() {
	if j.cancel != nil {
		j.cancel()
	}
	j.queue.Stop()
}

func (j *JanitorService) run(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.Sweep()
		}
	}
}

// Sweep enqueues removal of every aged file not referenced by the index.
func (j *JanitorService) Sweep() {
	known := j.knownFiles()
	j.sweepDir(j.originals, known)
	j.sweepDir(j.public, known)
}

func (j *JanitorService) sweepDir(storage sweepStorage, known map[string]struct{}) {
	names, err := storage.ListOlderThan(j.minAge)
	if err != nil {
		j.logger.Warn("janitor listing failed", zap.Error(err))
		return
	}
	for _, name := range names {
		if _, ok := known[name]; ok {
			continue
		}
		if _, ok := j.protected[name]; ok {
			continue
		}
		if strings.HasPrefix(name, ".") {
			continue
		}
		job := jobs.Job{ID: name, Type: "remove_orphan", Payload: removeTarget{storage: storage, name: name}}
		if err := j.queue.Enqueue(job); err != nil {
			j.logger.Warn("janitor enqueue failed", zap.String("file", name), zap.Error(err))
			return
		}
	}
}

// knownFiles maps every filename a record accounts for, in both directories.
func (j *JanitorService) knownFiles() map[string]struct{} {
	photos := j.store.ReadAll()
	known := make(map[string]struct{}, len(photos)*2)
	for _, p := range photos {
		known[p.ID+p.OriginalExt] = struct{}{}
		known[p.ID+".webp"] = struct{}{}
	}
	return known
}

func (j *JanitorService) handleRemove(_ context.Context, job jobs.Job) error {
	target, ok := job.Payload.(removeTarget)
	if !ok {
		return nil
	}
	if err := target.storage.Delete(target.name); err != nil {
		return err
	}
	j.logger.Sugar().Infow("removed orphaned file", "file", target.name)
	return nil
}
