package worker

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/IBM/sarama"

	"github.com/illegalcall/mentora/internal/config"
	"github.com/illegalcall/mentora/internal/jobs"
)

// Worker consumes ingestion jobs from Kafka and runs them through the
// ingest handler. One message is processed at a time per claimed partition.
type Worker struct {
	cfg      *config.Config
	consumer sarama.ConsumerGroup
	handler  *jobs.IngestHandler
	ready    chan bool
}

func NewWorker(cfg *config.Config, consumer sarama.ConsumerGroup, handler *jobs.IngestHandler) *Worker {
	slog.Info("Initializing new Worker")
	return &Worker{
		cfg:      cfg,
		consumer: consumer,
		handler:  handler,
		ready:    make(chan bool),
	}
}

func (w *Worker) Start(ctx context.Context) error {
	topics := []string{w.cfg.Kafka.Topic}
	slog.Info("Starting worker", "topics", topics)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		for err := range w.consumer.Errors() {
			slog.Error("Kafka consumer error received", "error", err)
		}
	}()

	go func() {
		for {
			if err := w.consumer.Consume(ctx, topics, w); err != nil {
				slog.Error("Error from consumer.Consume", "error", err)
			}
			if ctx.Err() != nil {
				return
			}
			// Reset the ready channel after a new session is created
			w.ready = make(chan bool)
		}
	}()

	<-w.ready // Wait till the consumer has been set up
	slog.Info("Worker setup complete; consumer ready")

	select {
	case sig := <-sigChan:
		slog.Info("Received shutdown signal", "signal", sig)
	case <-ctx.Done():
		slog.Info("Context cancelled; shutting down worker")
	}

	slog.Info("Worker shutting down gracefully")
	return nil
}

// Setup is run at the beginning of a new session, before ConsumeClaim.
func (w *Worker) Setup(sarama.ConsumerGroupSession) error {
	close(w.ready)
	return nil
}

// Cleanup is run at the end of a session, once all ConsumeClaim goroutines have exited.
func (w *Worker) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim processes messages of one claimed partition. A failed job is
// logged and marked consumed; there is no redelivery, the document row
// carries the failure.
func (w *Worker) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		result, err := w.handler.Handle(session.Context(), message.Value)
		if err != nil {
			slog.Error("Ingest job failed", "error", err, "offset", message.Offset)
		} else {
			slog.Info("Ingest job complete", "data", result.Data, "offset", message.Offset)
		}
		session.MarkMessage(message, "")
	}
	return nil
}
