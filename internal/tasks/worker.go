package tasks

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"neuroskip/internal/config"
	"neuroskip/internal/logging"
)

// Handler executes one claimed task.
type Handler func(ctx context.Context, task *Task) error

// Pool consumes tasks from both priority lanes. Each lane gets its own
// polling goroutine so urgent work never queues behind background work.
type Pool struct {
	store        *Store
	cfg          *config.Config
	logger       *slog.Logger
	handlers     map[Kind]Handler
	pollInterval time.Duration

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewPool builds a worker pool over the task store.
func NewPool(store *Store, cfg *config.Config, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = logging.NewNop()
	}
	poll := time.Duration(cfg.Workflow.QueuePollInterval) * time.Second
	if poll <= 0 {
		poll = 5 * time.Second
	}
	return &Pool{
		store:        store,
		cfg:          cfg,
		logger:       logging.NewComponentLogger(logger, "workers"),
		handlers:     make(map[Kind]Handler),
		pollInterval: poll,
	}
}

// Register installs the handler for a task kind. Must be called before Start.
func (p *Pool) Register(kind Kind, handler Handler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handlers[kind] = handler
}

// Start begins lane processing.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return errors.New("worker pool already running")
	}
	if len(p.handlers) == 0 {
		return errors.New("no task handlers registered")
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.running = true

	lanes := []Lane{LaneUrgent, LaneDefault}
	p.wg.Add(len(lanes))
	for _, lane := range lanes {
		go p.runLane(runCtx, lane)
	}
	return nil
}

// Stop terminates lane processing and waits for in-flight tasks.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	cancel := p.cancel
	p.running = false
	p.cancel = nil
	p.mu.Unlock()

	cancel()
	p.wg.Wait()
}

func (p *Pool) runLane(ctx context.Context, lane Lane) {
	defer p.wg.Done()
	logger := p.logger.With(logging.String(logging.FieldLane, string(lane)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		task, err := p.store.NextForLane(ctx, lane)
		if err != nil {
			logger.Error("failed to fetch next task",
				logging.Error(err),
				logging.String(logging.FieldEventType, "task_fetch_failed"),
				logging.String(logging.FieldErrorHint, "check task database access"))
			p.sleep(ctx, time.Duration(p.cfg.Workflow.ErrorRetryInterval)*time.Second)
			continue
		}
		if task == nil {
			p.sleep(ctx, p.pollInterval)
			continue
		}

		p.runTask(ctx, logger, task)
	}
}

func (p *Pool) runTask(ctx context.Context, logger *slog.Logger, task *Task) {
	logger = logger.With(
		logging.String(logging.FieldTaskID, task.ID),
		logging.String("kind", string(task.Kind)))

	p.mu.Lock()
	handler := p.handlers[task.Kind]
	p.mu.Unlock()
	if handler == nil {
		logger.Error("no handler registered for task kind")
		if err := p.store.MarkFailed(ctx, task.ID, "no handler for kind "+string(task.Kind)); err != nil {
			logger.Error("failed to mark task failed", logging.Error(err))
		}
		return
	}

	logger.Info("task started")
	if err := handler(ctx, task); err != nil {
		logger.Error("task failed", logging.Error(err))
		if markErr := p.store.MarkFailed(ctx, task.ID, err.Error()); markErr != nil {
			logger.Error("failed to mark task failed", logging.Error(markErr))
		}
		return
	}

	if err := p.store.MarkCompleted(ctx, task.ID); err != nil {
		logger.Error("failed to mark task completed", logging.Error(err))
		return
	}
	logger.Info("task completed")
}

func (p *Pool) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		d = time.Second
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
