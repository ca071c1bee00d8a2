package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-tasks-api/internal/dto"
	"github.com/noah-isme/gema-tasks-api/internal/models"
	"github.com/noah-isme/gema-tasks-api/internal/observability"
	"github.com/noah-isme/gema-tasks-api/internal/repository"
)

// ErrNotificationNotFound indicates the notification does not exist for the caller.
var ErrNotificationNotFound = errors.New("notification not found")

// NotificationPublisher is the subset of the notification service used by the task workflows.
type NotificationPublisher interface {
	Publish(ctx context.Context, payload dto.NotificationCreateRequest) (dto.NotificationResponse, error)
}

// notifyBestEffort delivers a notification without failing the calling operation.
func notifyBestEffort(ctx context.Context, logger zerolog.Logger, publisher NotificationPublisher, payload dto.NotificationCreateRequest) {
	if publisher == nil || payload.UserID == "" || payload.UserID == "0" {
		return
	}
	if _, err := publisher.Publish(ctx, payload); err != nil {
		logger.Warn().Err(err).Str("type", payload.Type).Str("user_id", payload.UserID).Msg("failed to deliver notification")
	}
}

// NotificationService publishes and streams notifications to end users via SSE.
type NotificationService interface {
	NotificationPublisher
	List(ctx context.Context, userID string, unreadOnly bool, limit, offset int) (dto.NotificationListResponse, error)
	MarkRead(ctx context.Context, id uint, userID string) (dto.NotificationResponse, error)
	Subscribe(userID string) (<-chan dto.NotificationResponse, func())
	Start(ctx context.Context)
}

type notificationService struct {
	repo      repository.NotificationRepository
	validator *validator.Validate
	logger    zerolog.Logger
	tracer    trace.Tracer
	sanitizer *bluemonday.Policy
	fanout    *classroomFanout
}

// NewNotificationService constructs a notification service. With a channel base, stored
// notifications are relayed to peer nodes over NATS when connected, otherwise over redis.
func NewNotificationService(repo repository.NotificationRepository, redisClient *redis.Client, channelBase string, natsConn *nats.Conn, validate *validator.Validate, logger zerolog.Logger) NotificationService {
	logger = logger.With().Str("component", "notification_service").Logger()

	var transports []eventTransport
	if channelBase != "" {
		if natsConn != nil {
			transports = append(transports, natsTransport{
				conn:    natsConn,
				subject: strings.ReplaceAll(channelBase, ":", ".") + ".classroom",
				logger:  logger,
			})
		}
		if redisClient != nil {
			transports = append(transports, redisTransport{
				client:  redisClient,
				channel: channelBase + ":classroom",
				logger:  logger,
			})
		}
	}

	return &notificationService{
		repo:      repo,
		validator: validate,
		logger:    logger,
		tracer:    otel.Tracer("github.com/noah-isme/gema-tasks-api/internal/service/notification"),
		sanitizer: bluemonday.StrictPolicy(),
		fanout:    newClassroomFanout(uuid.NewString(), logger, transports...),
	}
}

func (s *notificationService) Start(ctx context.Context) {
	s.fanout.start(ctx)
}

func (s *notificationService) Publish(ctx context.Context, payload dto.NotificationCreateRequest) (dto.NotificationResponse, error) {
	if err := s.validator.Struct(payload); err != nil {
		return dto.NotificationResponse{}, err
	}

	cleanMessage := strings.TrimSpace(s.sanitizer.Sanitize(payload.Message))
	if cleanMessage == "" {
		return dto.NotificationResponse{}, errors.New("notification message empty after sanitization")
	}

	attrs := []attribute.KeyValue{
		attribute.String("notification.user_id", payload.UserID),
		attribute.String("notification.type", payload.Type),
	}

	spanCtx, span := s.tracer.Start(ctx, "notifications.publish", trace.WithAttributes(attrs...))
	defer span.End()

	model := models.Notification{
		UserID:   payload.UserID,
		Type:     payload.Type,
		Message:  cleanMessage,
		Metadata: datatypes.JSONMap(payload.Metadata),
	}

	if err := s.repo.Create(spanCtx, &model); err != nil {
		span.RecordError(err)
		return dto.NotificationResponse{}, err
	}

	response := dto.NewNotificationResponse(model)
	if err := s.fanout.emit(spanCtx, response); err != nil {
		s.logger.Warn().Err(err).Str("type", response.Type).Msg("failed to relay notification to peers")
	}

	observability.NotificationsPublishedTotal().WithLabelValues(response.Type).Inc()

	return response, nil
}

func (s *notificationService) List(ctx context.Context, userID string, unreadOnly bool, limit, offset int) (dto.NotificationListResponse, error) {
	if strings.TrimSpace(userID) == "" {
		return dto.NotificationListResponse{}, errors.New("user id is required")
	}

	notifications, err := s.repo.ListByUser(ctx, userID, unreadOnly, limit, offset)
	if err != nil {
		return dto.NotificationListResponse{}, err
	}

	unread, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return dto.NotificationListResponse{}, err
	}

	return dto.NotificationListResponse{
		Items:       dto.NewNotificationResponseSlice(notifications),
		UnreadCount: unread,
	}, nil
}

func (s *notificationService) MarkRead(ctx context.Context, id uint, userID string) (dto.NotificationResponse, error) {
	attrs := []attribute.KeyValue{
		attribute.String("notification.user_id", userID),
	}
	spanCtx, span := s.tracer.Start(ctx, "notifications.mark_read", trace.WithAttributes(attrs...))
	defer span.End()

	notification, err := s.repo.MarkRead(spanCtx, id, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.NotificationResponse{}, ErrNotificationNotFound
		}
		span.RecordError(err)
		return dto.NotificationResponse{}, err
	}

	return dto.NewNotificationResponse(notification), nil
}

func (s *notificationService) Subscribe(userID string) (<-chan dto.NotificationResponse, func()) {
	stream := s.fanout.streams.open(userID)
	observability.NotificationStreamsActive().Inc()

	return stream, func() {
		s.fanout.streams.close(userID, stream)
		observability.NotificationStreamsActive().Dec()
	}
}
