package scheduler

import (
	"context"
	"fmt"

	"tireshop_backend/internal/appointments/repository"
	"tireshop_backend/internal/appointments/transport"
	"tireshop_backend/internal/email"
	"tireshop_backend/platform/apperr"
	"tireshop_backend/platform/config"
	"tireshop_backend/platform/logger"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Worker consumes scheduled tasks: currently only appointment reminders.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	repo   *repository.Repository
	mailer email.Sender
	log    *logger.Logger
}

// NewWorker creates the asynq server and registers the task handlers.
func NewWorker(cfg config.SchedulerConfig, pool *pgxpool.Pool, mailer email.Sender, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server: server,
		mux:    mux,
		repo:   repository.New(pool),
		mailer: mailer,
		log:    log,
	}

	mux.HandleFunc(TaskAppointmentReminder, w.handleAppointmentReminder)

	return w, nil
}

// Run serves tasks until the context is cancelled.
func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}

// handleAppointmentReminder re-reads the appointment and sends the reminder
// mail. Cancelled, completed or moved appointments make the task a no-op;
// the reschedule path enqueues a fresh task for the new slot.
func (w *Worker) handleAppointmentReminder(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseAppointmentReminderPayload(task)
	if err != nil {
		return err
	}

	a, err := w.repo.GetByID(ctx, payload.AppointmentID)
	if apperr.Is(err, apperr.KindNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if transport.AppointmentStatus(a.Status).IsTerminal() {
		return nil
	}
	if a.PreferredDate.Format("2006-01-02") != payload.PreferredDate || a.PreferredTime != payload.PreferredTime {
		w.log.Info("skipping stale reminder",
			"appointment_id", a.ID,
			"scheduled_for", payload.PreferredDate+" "+payload.PreferredTime)
		return nil
	}

	err = w.mailer.SendBookingReminder(ctx, a.CustomerEmail, email.BookingEmail{
		CustomerName:    a.CustomerName,
		ReferenceNumber: a.ReferenceNumber,
		Service:         a.Service,
		Date:            payload.PreferredDate,
		Time:            a.PreferredTime,
		Language:        a.Language,
	})
	if err != nil {
		return fmt.Errorf("send reminder for %s: %w", a.ReferenceNumber, err)
	}

	w.log.BookingEvent("reminder_sent", a.ReferenceNumber, a.ID)
	return nil
}
