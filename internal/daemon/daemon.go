package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"neuroskip/internal/api"
	"neuroskip/internal/classify"
	"neuroskip/internal/config"
	"neuroskip/internal/lock"
	"neuroskip/internal/logging"
	"neuroskip/internal/pipeline"
	"neuroskip/internal/segments"
	"neuroskip/internal/source"
	"neuroskip/internal/tasks"
	"neuroskip/internal/transcribe"
	"neuroskip/internal/vad"
	"neuroskip/internal/workspace"

	"neuroskip/internal/media"
)

const stopReason = "daemon stopped"

// Daemon coordinates the worker pool, the workspace reaper, and the HTTP
// API, and enforces single-instance execution through a file lock.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger

	segmentStore *segments.Store
	taskStore    *tasks.Store
	locks        *lock.Coordinator
	lockStore    *lock.RedisStore
	pool         *tasks.Pool
	reaper       *workspace.Reaper
	segmentSvc   *api.SegmentService
	apiServer    *apiServer

	lockPath string
	flk      *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
	group   *errgroup.Group
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	TaskDBPath   string
	LockFilePath string
	Tasks        tasks.HealthSummary
	Segments     map[string]int
}

// New constructs a daemon with all collaborators wired from configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil {
		return nil, errors.New("daemon requires configuration")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	segmentStore, err := segments.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open segment store: %w", err)
	}
	taskStore, err := tasks.Open(cfg)
	if err != nil {
		_ = segmentStore.Close()
		return nil, fmt.Errorf("open task store: %w", err)
	}

	workspaces := workspace.NewManager(cfg.Paths.TempDir, logger)
	lockStore := lock.NewRedisStore(cfg.Redis)
	locks := lock.NewCoordinator(lockStore,
		lock.WithTTL(time.Duration(cfg.Workflow.LockTTLSeconds)*time.Second),
		lock.WithCleanup(func(id string) {
			_ = workspaces.Cleanup(id)
		}),
		lock.WithLogger(logger),
	)

	fetcher := source.NewFetcher(cfg.Paths.TempDir, logger)
	mediaEngine := media.NewEngine("ffmpeg", "ffprobe", logger)
	detector := vad.NewToolDetector(cfg.VAD.Binary, cfg.VAD.SampleRate, logger)
	whisper := transcribe.NewWhisperEngine(cfg.Whisper)
	stage := transcribe.NewStage(whisper, mediaEngine, workspaces, logger)

	dispatcher := tasks.NewDispatcher(taskStore, locks, logger)
	orchestrator := pipeline.New(fetcher, mediaEngine, detector, stage, segmentStore, dispatcher, workspaces, logger)

	classifier, err := classify.New(cfg.Classifier)
	if err != nil {
		_ = taskStore.Close()
		_ = segmentStore.Close()
		return nil, fmt.Errorf("build classifier client: %w", err)
	}
	classifyDispatcher := classify.NewDispatcher(classifier, segmentStore, logger)

	pool := tasks.NewPool(taskStore, cfg, logger)
	pool.Register(tasks.KindProcessVideo, pipeline.ProcessVideoHandler(orchestrator, locks, logger))
	pool.Register(tasks.KindClassifySegments, pipeline.ClassifySegmentsHandler(classifyDispatcher))

	reaper := workspace.NewReaper(workspaces, locks,
		time.Duration(cfg.Workflow.ReaperInterval)*time.Second,
		time.Duration(cfg.Workflow.ReaperMaxAge)*time.Second,
		logger)

	segmentSvc := api.NewSegmentService(segmentStore, dispatcher)

	lockPath := filepath.Join(cfg.Paths.LogDir, "neuroskipd.lock")
	d := &Daemon{
		cfg:          cfg,
		logger:       logger,
		segmentStore: segmentStore,
		taskStore:    taskStore,
		locks:        locks,
		lockStore:    lockStore,
		pool:         pool,
		reaper:       reaper,
		segmentSvc:   segmentSvc,
		lockPath:     lockPath,
		flk:          flock.New(lockPath),
	}
	d.apiServer = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the instance lock and launches background processing.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.flk.TryLock()
	if err != nil {
		return fmt.Errorf("acquire instance lock: %w", err)
	}
	if !ok {
		return errors.New("another neuroskip daemon instance is already running")
	}

	if err := d.lockStore.Ping(ctx); err != nil {
		d.logger.Warn("redis unreachable at startup, lock operations will fail until it recovers",
			logging.Error(err))
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.pool.Start(runCtx); err != nil {
		cancel()
		_ = d.flk.Unlock()
		return fmt.Errorf("start worker pool: %w", err)
	}

	group, groupCtx := errgroup.WithContext(runCtx)
	group.Go(func() error {
		if err := d.reaper.Run(groupCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	if d.apiServer != nil {
		if err := d.apiServer.start(runCtx); err != nil {
			d.pool.Stop()
			cancel()
			_ = d.flk.Unlock()
			return err
		}
	}

	d.cancel = cancel
	d.group = group
	d.running.Store(true)
	d.logger.Info("daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop terminates background processing and releases the instance lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.pool.Stop()
	if d.group != nil {
		_ = d.group.Wait()
		d.group = nil
	}
	if d.apiServer != nil {
		d.apiServer.stop()
	}

	if count, err := d.taskStore.FailRunning(context.Background(), stopReason); err != nil {
		d.logger.Warn("failed to fail running tasks on shutdown", logging.Error(err))
	} else if count > 0 {
		d.logger.Info("failed running tasks on shutdown", logging.Int64("count", count))
	}

	if err := d.flk.Unlock(); err != nil {
		d.logger.Warn("failed to release instance lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("daemon stopped")
}

// Close stops the daemon and releases held resources.
func (d *Daemon) Close() error {
	d.Stop()
	var errs []error
	if d.lockStore != nil {
		errs = append(errs, d.lockStore.Close())
	}
	if d.taskStore != nil {
		errs = append(errs, d.taskStore.Close())
	}
	if d.segmentStore != nil {
		errs = append(errs, d.segmentStore.Close())
	}
	return errors.Join(errs...)
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		TaskDBPath:   d.taskStore.Path(),
		LockFilePath: d.lockPath,
	}
	if summary, err := d.taskStore.Health(ctx); err == nil {
		status.Tasks = summary
	}
	if counts, err := d.segmentStore.Stats(ctx); err == nil {
		status.Segments = counts
	}
	return status
}

// SegmentService exposes the lookup service for the HTTP and CLI layers.
func (d *Daemon) SegmentService() *api.SegmentService {
	return d.segmentSvc
}

// APIAddr reports the bound API address, empty until Start succeeds.
func (d *Daemon) APIAddr() string {
	if d.apiServer == nil {
		return ""
	}
	return d.apiServer.addr()
}
