package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler führt Wartungsjobs (Sweep, Outbox, Zitationen) per Cron-Ausdruck aus.
// Läufe desselben Jobs überlappen nicht.
type Scheduler struct {
	Logger *zap.Logger

	cron   *cron.Cron
	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler erstellt einen neuen Scheduler.
func NewScheduler(logger *zap.Logger) *Scheduler {
	cl := cronLogger{logger.Sugar()}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		Logger: logger,
		cron:   cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Add registriert job unter name. schedule ist ein Cron-Ausdruck oder "@every <dauer>".
func (s *Scheduler) Add(name, schedule string, job func(ctx context.Context) error) error {
	_, err := s.cron.AddFunc(schedule, func() {
		start := time.Now()
		log := s.Logger.With(zap.String("job", name))
		log.Info("Running scheduled job...")
		if err := job(s.ctx); err != nil {
			log.Error("Scheduled job failed", zap.Error(err), zap.Duration("duration", time.Since(start)))
			return
		}
		log.Info("Scheduled job completed", zap.Duration("duration", time.Since(start)))
	})
	if err != nil {
		return fmt.Errorf("schedule %s (%q): %w", name, schedule, err)
	}
	return nil
}

// Start startet den Scheduler im Hintergrund.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop bricht laufende Jobs ab und wartet, bis sie beendet sind oder ctx abläuft.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	s.cancel()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger leitet die Meldungen von cron an zap weiter.
type cronLogger struct {
	s *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}
