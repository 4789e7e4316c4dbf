package health

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.mongodb.org/mongo-driver/mongo"

	"injectionfilter/internal/kvstore"
)

// SQL pings db. name tells postgresql and sqlite apart.
func SQL(name string, db *sql.DB) Checker {
	return NewChecker(name, func(ctx context.Context) error {
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("%s ping failed: %w", name, err)
		}
		return nil
	})
}

func Redis(client redis.UniversalClient) Checker {
	return NewChecker("redis", func(ctx context.Context) error {
		if err := client.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping failed: %w", err)
		}
		return nil
	})
}

func MongoDB(client *mongo.Client) Checker {
	return NewChecker("mongodb", func(ctx context.Context) error {
		if err := client.Ping(ctx, nil); err != nil {
			return fmt.Errorf("mongodb ping failed: %w", err)
		}
		return nil
	})
}

// Kafka passes when any broker accepts a connection and answers a
// metadata request.
func Kafka(brokers []string) Checker {
	return NewChecker("kafka", func(ctx context.Context) error {
		if len(brokers) == 0 {
			return errors.New("no kafka brokers configured")
		}

		var errs []error
		for _, addr := range brokers {
			if err := probeBroker(ctx, addr); err != nil {
				errs = append(errs, err)
				continue
			}
			return nil
		}
		return fmt.Errorf("no kafka broker reachable: %w", errors.Join(errs...))
	})
}

func probeBroker(ctx context.Context, addr string) error {
	conn, err := kafka.DialContext(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	if _, err := conn.Brokers(); err != nil {
		return fmt.Errorf("%s: metadata: %w", addr, err)
	}
	return nil
}

// Store exercises the filter store end to end with a prefix scan.
func Store(store kvstore.Store, prefix string) Checker {
	return NewChecker("filter_store", func(ctx context.Context) error {
		if _, err := store.FindAllWithKeyPrefix(ctx, prefix); err != nil {
			return fmt.Errorf("filter store scan failed: %w", err)
		}
		return nil
	})
}
