package models

const (
	GeoTaskIndex  = "index"
	GeoTaskRemove = "remove"
)

const (
	TaskStatusPending   = "pending"
	TaskStatusRetry     = "retry"
	TaskStatusCompleted = "completed"
	TaskStatusFailed    = "failed"
)

const (
	// DefaultSearchRadiusKm радиус поиска, если клиент не передал distance
	DefaultSearchRadiusKm = 50.0

	// DefaultMaxBookingDays горизонт бронирования в днях
	DefaultMaxBookingDays = 365

	// WorkerQueueSize размер очереди воркера
	WorkerQueueSize = 128
)
