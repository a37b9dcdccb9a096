package models

import "time"

// GeoSyncTask is an outbox row that mirrors a stay's location into the geo index.
type GeoSyncTask struct {
	ID          int64      `json:"id"`
	TaskType    string     `json:"task_type"`
	StayID      int64      `json:"stay_id"`
	Payload     string     `json:"payload"`
	Status      string     `json:"status"`
	RetryCount  int        `json:"retry_count"`
	LastError   *string    `json:"last_error"`
	CreatedAt   time.Time  `json:"created_at"`
	ProcessedAt *time.Time `json:"processed_at"`
	NextRetryAt *time.Time `json:"next_retry_at"`
}

// GeoTaskPayload is persisted in GeoSyncTask.Payload as JSON.
type GeoTaskPayload struct {
	StayID    int64   `json:"stay_id"`
	Latitude  float64 `json:"lat,omitempty"`
	Longitude float64 `json:"lon,omitempty"`
}
