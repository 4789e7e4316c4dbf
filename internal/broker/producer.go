package broker

import (
	"context"
	"errors"
	"fmt"
	"net"

	"injectionfilter/internal/config"
	"injectionfilter/internal/logger"
	"injectionfilter/pkg/models"
)

// Producer publishes filter change envelopes. Implementations key each
// message by filter so one filter's changes stay ordered.
type Producer interface {
	Publish(ctx context.Context, topic string, msg models.MessageEnvelope) error
	Close() error
}

var ErrNoBrokers = errors.New("kafka is enabled but no brokers are configured")

// NewProducer returns a nil Producer and no error when change events are
// disabled in cfg.
func NewProducer(cfg config.BrokerConfig, log logger.Logger) (Producer, error) {
	kcfg := cfg.Kafka
	if !kcfg.Enabled {
		return nil, nil
	}
	if len(kcfg.Brokers) == 0 {
		return nil, ErrNoBrokers
	}
	for _, addr := range kcfg.Brokers {
		if _, _, err := net.SplitHostPort(addr); err != nil {
			return nil, fmt.Errorf("invalid kafka broker address %q: %w", addr, err)
		}
	}
	return NewKafkaProducer(kcfg, log), nil
}
