package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/complaint-service/internal/config"
	"github.com/spec-kit/complaint-service/internal/events"
)

// Publisher is the slice of the redis client used for fan-out.
type Publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// Service forwards dispatcher events to downstream delivery (push, email
// workers) over a Redis channel.
type Service struct {
	dispatcher events.Dispatcher
	publisher  Publisher
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewService creates the service. publisher may be nil, in which case
// events are only logged.
func NewService(dispatcher events.Dispatcher, publisher Publisher, logger *zap.Logger, cfg config.NotificationConfig) *Service {
	return &Service{
		dispatcher: dispatcher,
		publisher:  publisher,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (s *Service) RegisterHandlers() {
	if s.dispatcher == nil || !s.cfg.Enabled {
		return
	}
	s.dispatcher.Subscribe(events.EventComplaintCreated, s.handle)
	s.dispatcher.Subscribe(events.EventComplaintStatusChanged, s.handle)
	s.dispatcher.Subscribe(events.EventInfoRequested, s.handle)
}

func (s *Service) handle(ctx context.Context, event events.Event) error {
	s.logger.Info("complaint event",
		zap.String("event_type", string(event.Type)),
		zap.String("complaint_id", event.ComplaintID),
		zap.String("tracking_number", event.TrackingNumber))
	return s.forward(ctx, event)
}

func (s *Service) forward(ctx context.Context, event events.Event) error {
	if s.publisher == nil || strings.TrimSpace(s.cfg.RedisChannel) == "" {
		return nil
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", event.ID, err)
	}
	if err := s.publisher.Publish(ctx, s.cfg.RedisChannel, body).Err(); err != nil {
		return fmt.Errorf("publish event %s: %w", event.ID, err)
	}
	return nil
}
