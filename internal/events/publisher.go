package events

import (
	"context"

	"go.uber.org/zap"

	"github.com/lifeline-ems/service-dispatch/internal/platform/kafka"
)

const eventSource = "service-dispatch"

// Publisher emits dispatch events to Kafka.
type Publisher struct {
	producer *kafka.Producer
	logger   *zap.Logger
}

// NewPublisher creates a Publisher on top of the given producer.
func NewPublisher(producer *kafka.Producer, logger *zap.Logger) *Publisher {
	return &Publisher{producer: producer, logger: logger}
}

// PublishCaseOpened emits a CaseOpenedEvent.
func (p *Publisher) PublishCaseOpened(ctx context.Context, evt CaseOpenedEvent) {
	p.publish(ctx, CaseOpened, evt.CaseID.String(), evt)
}

// PublishCaseClosed emits a CaseClosedEvent.
func (p *Publisher) PublishCaseClosed(ctx context.Context, evt CaseClosedEvent) {
	p.publish(ctx, CaseClosed, evt.CaseID.String(), evt)
}

// PublishAmbulanceLocation emits an AmbulanceLocationEvent.
func (p *Publisher) PublishAmbulanceLocation(ctx context.Context, evt AmbulanceLocationEvent) {
	p.publish(ctx, AmbulanceLocation, evt.CaseID.String(), evt)
}

func (p *Publisher) publish(ctx context.Context, eventType, key string, data interface{}) {
	cloudEvent, err := kafka.NewCloudEvent(eventSource, eventType, data)
	if err != nil {
		p.logger.Error("failed to create cloud event",
			zap.String("event_type", eventType),
			zap.Error(err),
		)
		return
	}

	if err := p.producer.PublishEvent(ctx, TopicDispatchEvents, key, cloudEvent); err != nil {
		p.logger.Error("failed to publish event",
			zap.String("topic", TopicDispatchEvents),
			zap.String("event_type", eventType),
			zap.Error(err),
		)
	}
}
