package events

import (
	"context"
	"time"

	"TradePilot/internal/domain/models"
	domsvc "TradePilot/internal/domain/service"
	"TradePilot/internal/handler/ws"
	pkgkafka "TradePilot/pkg/kafka"
	applogger "TradePilot/pkg/logger"
)

// Sink fans decision and retrain events out to the Kafka decisions topic
// and the websocket hub. Both legs are best-effort and asynchronous; the
// prediction hot path never waits on delivery.
type Sink struct {
	l        *applogger.Logger
	producer *pkgkafka.Producer
	topic    string
	hub      *ws.Hub
}

// NewSink creates an event sink. Either leg may be nil when disabled.
func NewSink(l *applogger.Logger, producer *pkgkafka.Producer, topic string, hub *ws.Hub) *Sink {
	return &Sink{l: l, producer: producer, topic: topic, hub: hub}
}

func (s *Sink) PublishDecision(_ context.Context, ev *models.DecisionEvent) {
	if s.hub != nil {
		s.hub.Publish(ev)
	}
	if s.producer == nil || s.topic == "" {
		return
	}
	key := []byte(ev.Decision.Symbol)
	go s.publish(key, ev, "decision")
}

func (s *Sink) PublishRetrain(_ context.Context, ev *models.RetrainEvent) {
	if s.hub != nil {
		s.hub.Publish(ev)
	}
	if s.producer == nil || s.topic == "" {
		return
	}
	go s.publish([]byte(ev.ModelKey), ev, "retrain")
}

func (s *Sink) publish(key []byte, value interface{}, kind string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.producer.Publish(ctx, s.topic, key, value); err != nil {
		s.l.Warn("event publish failed",
			applogger.String("kind", kind), applogger.Error(err))
	}
}

var _ domsvc.EventSink = (*Sink)(nil)
