package models

// Action item priorities
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// EventCacheBackend selects where processed event ids are remembered
type EventCacheBackend string

const (
	// EventCacheMemory keeps ids in a bounded per-process cache
	EventCacheMemory EventCacheBackend = "memory"
	// EventCacheRedis shares ids between replicas through Redis
	EventCacheRedis EventCacheBackend = "redis"
)

// Minutes store table names
const (
	// TableMinutes holds generated minutes, one row per generation
	TableMinutes = "minutes"
)
