package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"staybooking/internal/database"
	"staybooking/internal/domain"
	"staybooking/internal/metrics"
	"staybooking/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// GeoSyncWorker drains geo_sync_queue into the geo index.
// Tasks arrive either through Dispatch right after the owning transaction commits
// or through polling, which also picks up retries whose backoff has elapsed.
type GeoSyncWorker struct {
	db            *database.DB
	index         domain.GeoIndex
	redis         *redis.Client
	retryPolicy   RetryPolicy
	queue         chan models.GeoSyncTask
	deadLetterKey string
	pollInterval  time.Duration
	batchSize     int
	logger        *zerolog.Logger
}

func NewGeoSyncWorker(db *database.DB, index domain.GeoIndex, redisClient *redis.Client, retry RetryPolicy, pollInterval time.Duration, logger *zerolog.Logger) *GeoSyncWorker {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &GeoSyncWorker{
		db:            db,
		index:         index,
		redis:         redisClient,
		retryPolicy:   retry.withDefaults(),
		queue:         make(chan models.GeoSyncTask, models.WorkerQueueSize),
		deadLetterKey: "geo:deadletter",
		pollInterval:  pollInterval,
		batchSize:     20,
		logger:        logger,
	}
}

// Dispatch hands a committed task to the worker without blocking.
// A full queue is fine: the task stays pending and polling will find it.
func (w *GeoSyncWorker) Dispatch(_ context.Context, task *models.GeoSyncTask) {
	if task == nil {
		return
	}
	select {
	case w.queue <- *task:
	default:
		w.logger.Warn().Int64("task_id", task.ID).Msg("geo sync queue full, task left to polling")
	}
}

// Start runs the worker loop until ctx is done.
func (w *GeoSyncWorker) Start(ctx context.Context) {
	w.logger.Info().Msg("geo sync worker started")
	defer w.logger.Info().Msg("geo sync worker stopped")

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case t := <-w.queue:
			w.processQueued(ctx, &t)
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

func (w *GeoSyncWorker) poll(ctx context.Context) {
	tasks, err := w.db.GetPendingGeoSyncTasks(ctx, w.batchSize)
	if err != nil {
		w.logger.Error().Err(err).Msg("fetch pending geo sync tasks")
		return
	}
	for i := range tasks {
		if ctx.Err() != nil {
			return
		}
		w.processTask(ctx, &tasks[i])
	}
}

// processQueued re-reads a dispatched task first: between commit and now it may
// have been applied by polling or closed by a stay deletion.
func (w *GeoSyncWorker) processQueued(ctx context.Context, task *models.GeoSyncTask) {
	current, err := w.db.GetGeoSyncTask(ctx, task.ID)
	if err != nil {
		w.logger.Warn().Err(err).Int64("task_id", task.ID).Msg("reload geo task, using dispatched copy")
		w.processTask(ctx, task)
		return
	}
	switch current.Status {
	case models.TaskStatusCompleted, models.TaskStatusFailed:
		w.logger.Debug().Int64("task_id", task.ID).Str("status", current.Status).Msg("geo task already closed")
		return
	}
	w.processTask(ctx, current)
}

func (w *GeoSyncWorker) processTask(ctx context.Context, task *models.GeoSyncTask) {
	payload, err := decodePayload(task.Payload)
	if err != nil {
		w.failTask(ctx, task, fmt.Errorf("decode payload: %w", err))
		return
	}

	if err := w.apply(ctx, task.TaskType, payload); err != nil {
		w.retryOrFail(ctx, task, err)
		return
	}

	if err := w.db.UpdateGeoSyncTaskStatus(ctx, task.ID, models.TaskStatusCompleted, "", nil); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark geo task completed")
	}
	metrics.IncGeoSync(models.TaskStatusCompleted)
}

func (w *GeoSyncWorker) apply(ctx context.Context, taskType string, payload models.GeoTaskPayload) error {
	if payload.StayID == 0 {
		return errors.New("stay id missing")
	}
	switch taskType {
	case models.GeoTaskIndex:
		point := models.GeoPoint{Latitude: payload.Latitude, Longitude: payload.Longitude}
		if !point.Valid() {
			return fmt.Errorf("invalid location for stay %d", payload.StayID)
		}
		return w.index.Index(ctx, payload.StayID, point)
	case models.GeoTaskRemove:
		return w.index.Remove(ctx, payload.StayID)
	default:
		return fmt.Errorf("unknown task type: %s", taskType)
	}
}

func (w *GeoSyncWorker) retryOrFail(ctx context.Context, task *models.GeoSyncTask, cause error) {
	attempt := task.RetryCount + 1
	if w.retryPolicy.Exhausted(attempt) {
		w.failTask(ctx, task, cause)
		return
	}

	nextTime := time.Now().Add(w.retryPolicy.NextDelay(attempt))
	if err := w.db.UpdateGeoSyncTaskStatus(ctx, task.ID, models.TaskStatusRetry, cause.Error(), &nextTime); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark geo task retry")
	}
	w.logger.Warn().Err(cause).Int64("task_id", task.ID).Int("attempt", attempt).Time("next_retry_at", nextTime).Msg("geo sync task will be retried")
	metrics.IncGeoSync(models.TaskStatusRetry)
}

func (w *GeoSyncWorker) failTask(ctx context.Context, task *models.GeoSyncTask, cause error) {
	if err := w.db.UpdateGeoSyncTaskStatus(ctx, task.ID, models.TaskStatusFailed, cause.Error(), nil); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("mark geo task failed")
	}
	w.logger.Error().Err(cause).Int64("task_id", task.ID).Int64("stay_id", task.StayID).Msg("geo sync task failed")
	metrics.IncGeoSync(models.TaskStatusFailed)
	w.pushDeadLetter(ctx, task)
}

func decodePayload(raw string) (models.GeoTaskPayload, error) {
	var payload models.GeoTaskPayload
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return payload, err
	}
	return payload, nil
}

func (w *GeoSyncWorker) pushDeadLetter(ctx context.Context, task *models.GeoSyncTask) {
	if w.redis == nil {
		return
	}
	data, err := json.Marshal(task)
	if err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("encode dead letter")
		return
	}
	if err := w.redis.LPush(ctx, w.deadLetterKey, data).Err(); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("dead letter push")
	}
}
