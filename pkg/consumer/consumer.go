package consumer

import (
	"context"
	"errors"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/reanahub/reana-workflow-controller/pkg/domain"
	rundb "github.com/reanahub/reana-workflow-controller/pkg/domain/run/db"
	runmanager "github.com/reanahub/reana-workflow-controller/pkg/domain/run/manager"
	"github.com/reanahub/reana-workflow-controller/pkg/loop"
)

// Outcome decides what happens to the delivery.
type Outcome int

const (
	// applied; ack.
	Processed Outcome = iota

	// intentionally dropped (deleted/stopped run); ack.
	Discarded

	// can never be processed; ack, count, move on.
	Poison

	// transient failure; nack with requeue.
	Requeue
)

// Handler applies one status message to the store.
//
// The broker may redeliver: every step is idempotent, and the delivery
// is acknowledged only after the database transaction committed.
type Handler struct {
	db     rundb.RunInterface
	runs   runmanager.Interface
	logger *log.Logger
}

func NewHandler(db rundb.RunInterface, runs runmanager.Interface, logger *log.Logger) *Handler {
	return &Handler{db: db, runs: runs, logger: logger}
}

// Handle runs the message through its five steps: parse, gate on the
// run's status, apply the reported status, settle completion, classify
// failures.
func (h *Handler) Handle(ctx context.Context, body []byte) Outcome {
	ev, err := ParseEvent(body)
	if err != nil {
		h.logger.Printf("dropping poison message: %s", err)
		return Poison
	}

	r, err := h.db.Get(ctx, ev.RunId)
	if err != nil {
		if errors.Is(err, domain.ErrMissing) {
			h.logger.Printf("dropping message for unknown run %s", ev.RunId)
			return Poison
		}
		return Requeue
	}

	// late reports for runs already settled or removed carry no
	// information; their jobs were stamped at stop/delete time.
	switch r.Status {
	case domain.StatusDeleted, domain.StatusStopped:
		return Discarded
	}

	// engine log chunks ride along on any kind of message. Appending is
	// not deduplicated; a redelivered chunk may repeat in the record.
	if ev.Logs != "" {
		if err := h.db.AppendLogs(ctx, ev.RunId, ev.Logs); err != nil {
			return Requeue
		}
	}

	if ev.Job == nil {
		return h.applyRunStatus(ctx, ev)
	}

	// a job report proves the driver came up; admit a still-pending run
	// before counting its jobs, or completion could never settle.
	if r.Status == domain.StatusPending {
		if err := h.db.ChangeStatus(ctx, ev.RunId, domain.StatusRunning); err != nil {
			if !errors.Is(err, domain.ErrInvalidState) {
				return Requeue
			}
			// a concurrent stop or delete took the run; its jobs were
			// stamped there.
			return Discarded
		}
	}

	progress, err := h.db.ApplyJobStatus(ctx, *ev.Job)
	if err != nil {
		if errors.Is(err, domain.ErrMissing) {
			h.logger.Printf("dropping message for vanished run %s", ev.RunId)
			return Poison
		}
		return Requeue
	}

	if progress.Complete() {
		if _, err := h.runs.Finalize(ctx, ev.RunId); err != nil {
			// the job row is committed; redelivery finds it unchanged
			// and retries only the settlement.
			h.logger.Printf("settling run %s failed, requeueing: %s", ev.RunId, err)
			return Requeue
		}
	}

	return Processed
}

// applyRunStatus handles a run report from the engine itself.
func (h *Handler) applyRunStatus(ctx context.Context, ev Event) Outcome {
	switch ev.RunStatus {
	case "":
		// logs only; already appended above.
		return Processed

	case domain.StatusRunning:
		if err := h.db.ChangeStatus(ctx, ev.RunId, domain.StatusRunning); err != nil {
			if errors.Is(err, domain.ErrInvalidState) {
				// the run already left the admission path; whatever got
				// it there stands.
				return Discarded
			}
			if errors.Is(err, domain.ErrMissing) {
				return Poison
			}
			return Requeue
		}
		return Processed

	case domain.StatusFinished, domain.StatusFailed:
		// the engine's verdict is advisory; the job counters decide the
		// outcome and the settlement releases the cluster resources.
		if _, err := h.runs.Finalize(ctx, ev.RunId); err != nil {
			h.logger.Printf("settling run %s failed, requeueing: %s", ev.RunId, err)
			return Requeue
		}
		return Processed

	default:
		h.logger.Printf("dropping run status report '%s' for run %s", ev.RunStatus, ev.RunId)
		return Discarded
	}
}

// Subscriber feeds queue deliveries to a Handler, reconnecting to the
// broker whenever the connection or the channel drops.
type Subscriber struct {
	broker  string
	queue   string
	handler *Handler
	metrics *Metrics
	logger  *log.Logger

	// reconnection pause; wired for tests.
	redial time.Duration
}

func NewSubscriber(
	broker string,
	queue string,
	handler *Handler,
	metrics *Metrics,
	logger *log.Logger,
) *Subscriber {
	return &Subscriber{
		broker:  broker,
		queue:   queue,
		handler: handler,
		metrics: metrics,
		logger:  logger,
		redial:  3 * time.Second,
	}
}

// Run consumes until ctx is cancelled. Every connection failure is
// logged and retried; Run only returns with ctx's error.
func (s *Subscriber) Run(ctx context.Context) error {
	_, err := loop.Start(ctx, struct{}{}, func(ctx context.Context, _ struct{}) (struct{}, loop.Next) {
		if err := s.consume(ctx); err != nil && ctx.Err() == nil {
			s.logger.Printf("broker connection lost: %s (reconnecting)", err)
		}
		if ctx.Err() != nil {
			return struct{}{}, loop.Break(nil)
		}
		return struct{}{}, loop.Continue(s.redial)
	})
	if err != nil {
		return err
	}
	return ctx.Err()
}

// consume holds one connection: declare, qos, then drain deliveries.
func (s *Subscriber) consume(ctx context.Context) error {
	conn, err := amqp.Dial(s.broker)
	if err != nil {
		return err
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	if _, err := ch.QueueDeclare(
		s.queue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	); err != nil {
		return err
	}

	// one in flight: a message is redelivered unless acked, and acks
	// happen strictly after the database commit.
	if err := ch.Qos(1, 0, false); err != nil {
		return err
	}

	deliveries, err := ch.Consume(
		s.queue,
		"",    // consumer tag
		false, // autoAck
		false, // exclusive
		false, // noLocal
		false, // noWait
		nil,
	)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed")
			}
			s.dispatch(ctx, d)
		}
	}
}

func (s *Subscriber) dispatch(ctx context.Context, d amqp.Delivery) {
	switch s.handler.Handle(ctx, d.Body) {
	case Processed:
		s.metrics.Processed.Inc()
		if err := d.Ack(false); err != nil {
			s.logger.Printf("ack failed: %s", err)
		}
	case Discarded:
		s.metrics.Discarded.Inc()
		if err := d.Ack(false); err != nil {
			s.logger.Printf("ack failed: %s", err)
		}
	case Poison:
		s.metrics.Poison.Inc()
		if err := d.Ack(false); err != nil {
			s.logger.Printf("ack failed: %s", err)
		}
	case Requeue:
		s.metrics.Requeued.Inc()
		if err := d.Nack(false, true); err != nil {
			s.logger.Printf("nack failed: %s", err)
		}
	}
}
