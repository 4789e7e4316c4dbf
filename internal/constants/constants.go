package constants

import "time"

const (
	ServiceName = "filterctl"
)

// Version is overridden at build time with -ldflags "-X".
var Version = "dev"

const (
	StoreTypeMemory   = "memory"
	StoreTypeSQLite   = "sqlite"
	StoreTypeRedis    = "redis"
	StoreTypePostgres = "postgres"
	StoreTypeMongoDB  = "mongodb"
)

func StoreTypes() []string {
	return []string{StoreTypeMemory, StoreTypeSQLite, StoreTypeRedis, StoreTypePostgres, StoreTypeMongoDB}
}

const (
	// DefaultKeyPrefix namespaces filter entries in a shared key-value store.
	DefaultKeyPrefix = "injection-filter#"
)

const (
	DefaultSQLitePath      = "injection-filters.db"
	DefaultMongoDBName     = "injectionfilter"
	DefaultMongoCollection = "kv_entries"
	SQLTableName           = "kv_entries"
)

const (
	DefaultStoreTimeout = 10 * time.Second
	RedisScanCount      = 500
	RedisMGetBatchSize  = 200
)

const (
	KafkaBatchTimeout  = 10 * time.Millisecond
	KafkaWriteTimeout  = 10 * time.Second
	DefaultChangeTopic = "injection_filter_updates"
)

const (
	DefaultMaxPatterns         = 1000
	DefaultMaxExpressionLength = 4096
)

const (
	ShutdownTimeout = 5 * time.Second
)

// RequestTarget is the message variable name that denotes the inbound request.
const RequestTarget = "request"
