package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	_ "modernc.org/sqlite"

	"injectionfilter/internal/config"
	"injectionfilter/internal/constants"
	"injectionfilter/internal/kvstore"
	"injectionfilter/internal/logger"
	"injectionfilter/pkg/health"
	"injectionfilter/pkg/migrations"
)

type DatabaseConnector struct {
	Config *config.Config
	Logger logger.Logger
}

func NewDatabaseConnector(cfg *config.Config, log logger.Logger) *DatabaseConnector {
	return &DatabaseConnector{
		Config: cfg,
		Logger: log,
	}
}

// Connections holds whichever backend clients OpenStore created.
type Connections struct {
	Redis   *redis.Client
	SQL     *sql.DB
	SQLName string
	Mongo   *mongo.Client
}

// OpenedStore is the decorated filter store plus its breaker and clients.
type OpenedStore struct {
	Store       kvstore.Store
	Backend     string
	Breaker     *kvstore.CircuitBreakerStore
	Connections *Connections
}

// OpenStore connects to the configured backend, runs migrations when
// enabled and wraps the store with instrumentation and a circuit breaker.
func (dc *DatabaseConnector) OpenStore(ctx context.Context) (*OpenedStore, error) {
	backend := dc.Config.Store.Type
	conns := &Connections{}

	var base kvstore.Store
	switch backend {
	case constants.StoreTypeMemory:
		base = kvstore.NewMemoryStore()

	case constants.StoreTypeSQLite:
		db, err := dc.InitSQLite(ctx)
		if err != nil {
			return nil, err
		}
		conns.SQL, conns.SQLName = db, "sqlite"
		if dc.Config.Database.RunMigrations {
			if err := migrations.MigrateSQLite(db); err != nil {
				dc.ShutdownDatabases(ctx, conns)
				return nil, fmt.Errorf("failed to migrate sqlite: %w", err)
			}
		}
		base = kvstore.NewSQLiteStore(db)

	case constants.StoreTypePostgres:
		db, err := dc.InitPostgreSQL(ctx)
		if err != nil {
			return nil, err
		}
		conns.SQL, conns.SQLName = db, "postgresql"
		if dc.Config.Database.RunMigrations {
			if err := migrations.MigratePostgres(db); err != nil {
				dc.ShutdownDatabases(ctx, conns)
				return nil, fmt.Errorf("failed to migrate postgresql: %w", err)
			}
		}
		base = kvstore.NewPostgresStore(db)

	case constants.StoreTypeRedis:
		rdb, err := dc.InitRedis(ctx)
		if err != nil {
			return nil, err
		}
		conns.Redis = rdb
		base = kvstore.NewRedisStore(rdb)

	case constants.StoreTypeMongoDB:
		client, err := dc.InitMongoDB(ctx)
		if err != nil {
			return nil, err
		}
		conns.Mongo = client
		mcfg := dc.Config.Database.MongoDB
		db := client.Database(mcfg.Database)
		if dc.Config.Database.RunMigrations {
			if err := migrations.EnsureMongoCollection(ctx, db, mcfg.Collection); err != nil {
				dc.ShutdownDatabases(ctx, conns)
				return nil, fmt.Errorf("failed to prepare mongodb collection: %w", err)
			}
		}
		base = kvstore.NewMongoStore(db.Collection(mcfg.Collection))

	default:
		return nil, fmt.Errorf("unknown store type %q, want one of: %s", backend, strings.Join(constants.StoreTypes(), ", "))
	}

	breaker := kvstore.NewCircuitBreakerStore(
		kvstore.NewInstrumentedStore(base, backend),
		"kvstore-"+backend,
		dc.Config.CircuitBreaker,
	)

	dc.Logger.Infow("Filter store ready",
		"backend", backend,
		"key_prefix", dc.Config.Management.KeyPrefix,
		"circuit_breaker", breaker.State(),
	)

	return &OpenedStore{
		Store:       breaker,
		Backend:     backend,
		Breaker:     breaker,
		Connections: conns,
	}, nil
}

func (dc *DatabaseConnector) InitRedis(ctx context.Context) (*redis.Client, error) {
	rcfg := dc.Config.Database.Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(rcfg.Host, strconv.Itoa(rcfg.Port)),
		Password: rcfg.Password,
		DB:       rcfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	dc.Logger.Infow("Redis connected", "addr", rdb.Options().Addr, "db", rcfg.DB)
	return rdb, nil
}

// PostgresDSN renders cfg as a URL, escaping credentials and the database
// name.
func PostgresDSN(cfg config.PostgresConfig) string {
	query := url.Values{}
	if cfg.SSLMode != "" {
		query.Set("sslmode", cfg.SSLMode)
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:     "/" + cfg.DBName,
		RawQuery: query.Encode(),
	}
	return u.String()
}

func (dc *DatabaseConnector) InitPostgreSQL(ctx context.Context) (*sql.DB, error) {
	pcfg := dc.Config.Database.Postgres
	db, err := sql.Open("postgres", PostgresDSN(pcfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	dc.Logger.Infow("PostgreSQL connected", "host", pcfg.Host, "dbname", pcfg.DBName)
	return db, nil
}

// InitSQLite opens the database file with a single connection, which keeps
// ":memory:" databases alive for the life of the pool.
func (dc *DatabaseConnector) InitSQLite(ctx context.Context) (*sql.DB, error) {
	path := dc.Config.Database.SQLite.Path
	if path == "" {
		path = constants.DefaultSQLitePath
	}

	if path != ":memory:" {
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		fmt.Sprintf("PRAGMA busy_timeout = %d", dc.Config.Database.SQLite.BusyTimeoutMS),
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	}
	if path == ":memory:" {
		pragmas = pragmas[:1]
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	dc.Logger.Infow("SQLite opened", "path", path)
	return db, nil
}

func (dc *DatabaseConnector) InitMongoDB(ctx context.Context) (*mongo.Client, error) {
	mcfg := dc.Config.Database.MongoDB
	if mcfg.URI == "" {
		return nil, fmt.Errorf("mongodb uri is not configured")
	}

	mongoOpts := options.Client().ApplyURI(mcfg.URI).SetAppName(constants.ServiceName)
	mongoClient, err := mongo.Connect(ctx, mongoOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := mongoClient.Ping(ctx, nil); err != nil {
		mongoClient.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	dc.Logger.Infow("MongoDB connected", "database", mcfg.Database)
	return mongoClient, nil
}

// HealthCheckers returns a checker per open connection plus an end to end
// check of the store itself.
func (dc *DatabaseConnector) HealthCheckers(opened *OpenedStore) []health.Checker {
	checkers := []health.Checker{
		health.Store(opened.Store, dc.Config.Management.KeyPrefix),
	}

	conns := opened.Connections
	if conns.Redis != nil {
		checkers = append(checkers, health.Redis(conns.Redis))
	}
	if conns.SQL != nil {
		checkers = append(checkers, health.SQL(conns.SQLName, conns.SQL))
	}
	if conns.Mongo != nil {
		checkers = append(checkers, health.MongoDB(conns.Mongo))
	}
	return checkers
}

func (dc *DatabaseConnector) ShutdownDatabases(ctx context.Context, conns *Connections) []error {
	var errs []error
	if conns == nil {
		return errs
	}

	if conns.Redis != nil {
		if err := conns.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close error: %w", err))
		}
	}

	if conns.SQL != nil {
		if err := conns.SQL.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s close error: %w", conns.SQLName, err))
		}
	}

	if conns.Mongo != nil {
		if err := conns.Mongo.Disconnect(ctx); err != nil {
			errs = append(errs, fmt.Errorf("mongodb disconnect error: %w", err))
		}
	}

	return errs
}
