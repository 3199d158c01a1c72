package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/linzen78111/pos2/internal/config"
	"github.com/linzen78111/pos2/internal/messaging"
)

const jobTimeout = time.Minute

// HandlerRegistration binds an event type to a handler.
type HandlerRegistration struct {
	EventType string
	Handler   messaging.Handler
}

// JobRegistration binds a cron schedule to a job.
type JobRegistration struct {
	Name     string
	Schedule string
	Run      func(ctx context.Context) error
}

// Params collects dependencies via Fx.
type Params struct {
	fx.In

	Client        messaging.Client
	Logger        *zap.Logger
	Config        config.Config
	Registrations []HandlerRegistration `group:"worker.handlers"`
	Jobs          []JobRegistration     `group:"worker.jobs"`
}

// Engine consumes bus events and runs scheduled jobs.
type Engine struct {
	client        messaging.Client
	logger        *zap.Logger
	cfg           config.Config
	registrations map[string]messaging.Handler
	jobs          []JobRegistration
	scheduler     *cron.Cron
	cancel        context.CancelFunc
	wg            *sync.WaitGroup
}

// NewEngine constructs the worker Engine. Jobs with an invalid schedule are
// rejected here so a typo fails startup.
func NewEngine(p Params) (*Engine, error) {
	reg := make(map[string]messaging.Handler, len(p.Registrations))
	for _, r := range p.Registrations {
		if r.EventType == "" || r.Handler == nil {
			continue
		}
		reg[r.EventType] = r.Handler
	}

	e := &Engine{
		client:        p.Client,
		logger:        p.Logger,
		cfg:           p.Config,
		registrations: reg,
		scheduler: cron.New(cron.WithChain(
			cron.Recover(cronLogger{p.Logger.Sugar()}),
			cron.SkipIfStillRunning(cronLogger{p.Logger.Sugar()}),
		)),
	}

	for _, job := range p.Jobs {
		if job.Schedule == "" || job.Run == nil {
			continue
		}
		if _, err := e.scheduler.AddFunc(job.Schedule, e.jobFunc(job)); err != nil {
			return nil, fmt.Errorf("schedule job %s (%q): %w", job.Name, job.Schedule, err)
		}
		e.jobs = append(e.jobs, job)
	}

	return e, nil
}

// Module wires the engine into Fx lifecycle.
var Module = fx.Options(
	fx.Provide(NewEngine),
	fx.Invoke(func(lc fx.Lifecycle, engine *Engine) {
		lc.Append(fx.Hook{
			OnStart: engine.start,
			OnStop:  engine.stop,
		})
	}),
)

func (e *Engine) start(ctx context.Context) error {
	if !e.cfg.Messaging.Workers.Enabled {
		e.logger.Info("worker engine disabled")

		return nil
	}

	runCtx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.wg = &sync.WaitGroup{}

	if len(e.jobs) > 0 {
		e.scheduler.Start()
		e.logger.Info("job scheduler started", zap.Int("jobs", len(e.jobs)))
	}

	if !e.cfg.Messaging.Enabled || len(e.registrations) == 0 {
		e.logger.Info("event consumption disabled or no handlers; skipping consumers")

		return nil
	}

	concurrency := e.cfg.Messaging.Workers.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	for i := 0; i < concurrency; i++ {
		workerID := i
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.consumeLoop(runCtx, workerID)
		}()
	}

	e.logger.Info("worker engine started", zap.Int("workers", concurrency))

	return nil
}

func (e *Engine) stop(ctx context.Context) error {
	if e.cancel == nil {
		return nil
	}
	e.cancel()
	jobsDone := e.scheduler.Stop()

	done := make(chan struct{})
	go func() {
		if e.wg != nil {
			e.wg.Wait()
		}
		<-jobsDone.Done()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		e.logger.Info("worker engine stopped")

		return nil
	}
}

// Dispatch routes one message to the handler registered for its event type.
// Unknown event types are acknowledged and skipped.
func (e *Engine) Dispatch(ctx context.Context, msg messaging.Message) error {
	eventType := msg.EventType()
	handler, ok := e.registrations[eventType]
	if !ok {
		e.logger.Debug("no handler for event", zap.String("event_type", eventType), zap.String("topic", msg.Topic))

		return nil
	}
	return handler(ctx, msg)
}

// RunJob runs a registered job once, outside its schedule.
func (e *Engine) RunJob(ctx context.Context, name string) error {
	for _, job := range e.jobs {
		if job.Name == name {
			return job.Run(ctx)
		}
	}
	return fmt.Errorf("unknown job %q", name)
}

func (e *Engine) jobFunc(job JobRegistration) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		started := time.Now()
		if err := job.Run(ctx); err != nil {
			e.logger.Error("scheduled job failed", zap.String("job", job.Name), zap.Error(err))
			return
		}
		e.logger.Debug("scheduled job finished", zap.String("job", job.Name), zap.Duration("duration", time.Since(started)))
	}
}

func (e *Engine) consumeLoop(ctx context.Context, workerID int) {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}

		err := e.client.Consume(ctx, func(msgCtx context.Context, msg messaging.Message) error {
			e.logger.Debug("processing message",
				zap.String("event_type", msg.EventType()),
				zap.String("topic", msg.Topic),
				zap.Int("worker", workerID),
			)

			return e.Dispatch(msgCtx, msg)
		})

		if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return
		}

		e.logger.Error("consume loop error", zap.Error(err))

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return
		}

		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
