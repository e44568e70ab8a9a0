package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DefaultReminderSchedule runs the overdue sweep at the top of every hour
const DefaultReminderSchedule = "0 0 * * * *"

// OverdueReminder sends overdue-assignment notifications
type OverdueReminder interface {
	RemindOverdue(ctx context.Context) (int, error)
}

// ReminderWorker runs the overdue-assignment sweep on a cron schedule
type ReminderWorker struct {
	schedule string
	reminder OverdueReminder
	timeout  time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	cron    *cron.Cron
	ctx     context.Context
	lastRun time.Time
	sent    int
}

// NewReminderWorker creates a reminder worker. An empty schedule uses DefaultReminderSchedule.
func NewReminderWorker(schedule string, reminder OverdueReminder, logger *zap.Logger) *ReminderWorker {
	if schedule == "" {
		schedule = DefaultReminderSchedule
	}
	return &ReminderWorker{
		schedule: schedule,
		reminder: reminder,
		timeout:  2 * time.Minute,
		logger:   logger,
	}
}

// Name implements Worker
func (w *ReminderWorker) Name() string {
	return "overdue-reminder"
}

// Start implements Worker
func (w *ReminderWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.cron != nil {
		return fmt.Errorf("reminder worker already started")
	}

	c := cron.New(cron.WithSeconds(), cron.WithLocation(time.UTC))
	if _, err := c.AddFunc(w.schedule, w.RunOnce); err != nil {
		return fmt.Errorf("invalid reminder schedule %q: %w", w.schedule, err)
	}

	w.ctx = ctx
	w.cron = c
	c.Start()

	w.logger.Info("Reminder worker scheduled", zap.String("schedule", w.schedule))
	return nil
}

// RunOnce performs a single overdue sweep
func (w *ReminderWorker) RunOnce() {
	w.mu.Lock()
	parent := w.ctx
	w.mu.Unlock()
	if parent == nil {
		parent = context.Background()
	}
	if parent.Err() != nil {
		return
	}

	ctx, cancel := context.WithTimeout(parent, w.timeout)
	defer cancel()

	sent, err := w.reminder.RemindOverdue(ctx)
	if err != nil {
		w.logger.Error("Overdue reminder sweep failed", zap.Error(err))
		return
	}

	w.mu.Lock()
	w.lastRun = time.Now()
	w.sent += sent
	w.mu.Unlock()

	if sent > 0 {
		w.logger.Info("Overdue reminders sent", zap.Int("count", sent))
	}
}

// Stop implements Worker. It waits for a running sweep to finish.
func (w *ReminderWorker) Stop() error {
	w.mu.Lock()
	c := w.cron
	w.cron = nil
	w.mu.Unlock()

	if c == nil {
		return nil
	}
	<-c.Stop().Done()
	return nil
}

// Stats returns the last successful sweep time and the total reminders sent
func (w *ReminderWorker) Stats() (time.Time, int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastRun, w.sent
}
