package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/reporting-service/internal/domain"
	"github.com/spec-kit/reporting-service/internal/observability"
	"github.com/spec-kit/reporting-service/internal/queue"
	"github.com/spec-kit/reporting-service/internal/service"
)

// ReportWorker consumes report jobs sequentially. Each job restores the trace
// id of the request that enqueued it, so worker logs line up with API logs.
type ReportWorker struct {
	queue   *queue.Queue
	reports *service.ReportService
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewReportWorker builds the consumer.
func NewReportWorker(q *queue.Queue, reports *service.ReportService, logger *zap.Logger, metrics *observability.Metrics) *ReportWorker {
	return &ReportWorker{queue: q, reports: reports, logger: logger, metrics: metrics}
}

// Run pulls jobs until the context is cancelled.
func (w *ReportWorker) Run(ctx context.Context) error {
	w.logger.Info("report worker started")
	for {
		job, err := w.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				w.logger.Info("report worker stopping")
				return nil
			}
			w.logger.Error("dequeue failed", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}
		if job == nil {
			if ctx.Err() != nil {
				w.logger.Info("report worker stopping")
				return nil
			}
			continue
		}
		w.process(ctx, job)
	}
}

func (w *ReportWorker) process(ctx context.Context, job *queue.Job) {
	jobCtx := observability.WithTraceID(ctx, job.TraceID)
	logger := w.logger.With(
		zap.String("trace_id", job.TraceID),
		zap.String("job_id", job.ID),
		zap.String("job_name", job.Name),
	)
	logger.Info("job start", zap.Int("attempt", job.Attempts+1))

	if err := w.queue.MarkActive(jobCtx, job.ID); err != nil {
		logger.Warn("mark active failed", zap.Error(err))
	}

	switch job.Name {
	case domain.ReportJobUsersCSV:
		result, err := w.reports.ExportUsersCSV(jobCtx)
		if err != nil {
			logger.Error("job failed", zap.Error(err))
			w.metrics.RecordJob(job.Name, "failed")
			if markErr := w.queue.MarkFailed(jobCtx, job, err); markErr != nil {
				logger.Error("mark failed errored", zap.Error(markErr))
			}
			return
		}
		w.metrics.RecordJob(job.Name, "completed")
		if err := w.queue.MarkCompleted(jobCtx, job.ID, result); err != nil {
			logger.Error("mark completed errored", zap.Error(err))
			return
		}
		logger.Info("job done", zap.String("file_id", result.FileID), zap.String("object_key", result.ObjectKey))
	default:
		logger.Warn("unknown job name, skipping")
		w.metrics.RecordJob(job.Name, "skipped")
		if err := w.queue.MarkCompleted(jobCtx, job.ID, nil); err != nil {
			logger.Error("mark completed errored", zap.Error(err))
		}
	}
}
