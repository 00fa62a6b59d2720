package cronrunner

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type Runner struct {
	cron    *cron.Cron
	logger  *zap.Logger
	baseCtx context.Context
}

func New(logger *zap.Logger, baseCtx context.Context) *Runner {
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cl := cronLogger{l: logger.Named("cron")}
	return &Runner{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger:  logger,
		baseCtx: baseCtx,
	}
}

// Add schedules job. A trigger that fires while the previous run of the
// same job is still going is skipped.
func (r *Runner) Add(spec string, job func(context.Context)) (cron.EntryID, error) {
	return r.cron.AddFunc(spec, func() {
		job(r.baseCtx)
	})
}

// RunNow starts job once in the background outside the schedule.
func (r *Runner) RunNow(name string, job func(context.Context)) {
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				r.logger.Error("job panicked", zap.String("job", name), zap.Any("panic", rec))
			}
		}()
		started := time.Now()
		job(r.baseCtx)
		r.logger.Info("job finished", zap.String("job", name), zap.Duration("took", time.Since(started)))
	}()
}

func (r *Runner) Start() {
	r.logger.Info("cron started", zap.Int("entries", len(r.cron.Entries())))
	r.cron.Start()
}

// Stop waits for running jobs to return.
func (r *Runner) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	r.logger.Info("cron stopped")
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	l *zap.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Sugar().Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Sugar().Errorw(msg, append(keysAndValues, "error", err)...)
}
