package management

import (
	"context"
	"fmt"
	"time"

	"injectionfilter/internal/broker"
	"injectionfilter/internal/constants"
	"injectionfilter/pkg/logging"
	"injectionfilter/pkg/models"
	"injectionfilter/pkg/tracing"
)

// EventPublisher announces filter changes to gateway nodes.
type EventPublisher interface {
	PublishFilterEvent(ctx context.Context, action, key string, f StoredFilterSummary) error
}

// StoredFilterSummary is the part of a filter carried in change events.
type StoredFilterSummary struct {
	Name         string
	PatternCount int
}

type ChangeEventProducer struct {
	producer  broker.Producer
	topic     string
	keyPrefix string
}

func NewChangeEventProducer(producer broker.Producer, topic, keyPrefix string) *ChangeEventProducer {
	if topic == "" {
		topic = constants.DefaultChangeTopic
	}
	return &ChangeEventProducer{
		producer:  producer,
		topic:     topic,
		keyPrefix: keyPrefix,
	}
}

func (p *ChangeEventProducer) PublishFilterEvent(ctx context.Context, action, key string, f StoredFilterSummary) error {
	if p.producer == nil {
		return nil
	}

	event := models.FilterChangeEvent{
		EventType:    models.EventTypeFilterUpdated,
		Action:       action,
		FilterKey:    key,
		FilterName:   f.Name,
		PatternCount: f.PatternCount,
		Timestamp:    time.Now().UTC(),
		ChangedBy:    getChangedBy(ctx),
	}

	envelope, err := models.NewChangeEnvelope(constants.ServiceName, event).
		TraceID(tracing.TraceID(ctx)).
		KeyPrefix(p.keyPrefix).
		Build()
	if err != nil {
		return fmt.Errorf("invalid change event: %w", err)
	}

	return p.producer.Publish(ctx, p.topic, *envelope)
}

func getChangedBy(ctx context.Context) string {
	if user := logging.GetUser(ctx); user != "" {
		return user
	}
	return "system"
}
