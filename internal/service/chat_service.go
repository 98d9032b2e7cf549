package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mitcstore/mitc-api/internal/dto"
	"github.com/mitcstore/mitc-api/internal/models"
	"github.com/mitcstore/mitc-api/internal/observability"
	"github.com/mitcstore/mitc-api/internal/realtime"
	"github.com/mitcstore/mitc-api/internal/repository"
)

const maxChatMessageLength = 4000

// ChatService manages support threads and their message feeds.
type ChatService interface {
	ListThreads(ctx context.Context, identity Identity) (*Subscription[[]dto.ThreadResponse], error)
	Threads(ctx context.Context, identity Identity) ([]dto.ThreadResponse, error)
	CreateThread(ctx context.Context, identity Identity, counterpartyID string) (dto.ThreadResponse, error)
	SubscribeMessages(ctx context.Context, identity Identity, threadID string) (*Subscription[[]dto.MessageResponse], error)
	Messages(ctx context.Context, identity Identity, threadID string) ([]dto.MessageResponse, error)
	Send(ctx context.Context, identity Identity, threadID string, req dto.SendMessageRequest) (dto.MessageResponse, error)
	UpdateStatus(ctx context.Context, identity Identity, threadID, status string) (dto.ThreadResponse, error)
	Redact(ctx context.Context, identity Identity, threadID string, messageID uint) error
	ThreadIDsFor(ctx context.Context, userID string) ([]string, error)
	DetachUser(ctx context.Context, threadID, userID string, redact bool) error
	IdentityChanged(ctx context.Context, userID string)
	WatchIdentity(userID string) *realtime.Listener
}

type chatService struct {
	repo      repository.ChatRepository
	broker    *realtime.Broker
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	tracer    trace.Tracer
	now       func() time.Time
}

// NewChatService creates the chat service.
func NewChatService(repo repository.ChatRepository, broker *realtime.Broker, logger zerolog.Logger) ChatService {
	return &chatService{
		repo:      repo,
		broker:    broker,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "chat_service").Logger(),
		tracer:    otel.Tracer("github.com/mitcstore/mitc-api/internal/service/chat"),
		now:       time.Now,
	}
}

// ListThreads returns a live thread list. Admins see every thread, others only their own.
func (s *chatService) ListThreads(ctx context.Context, identity Identity) (*Subscription[[]dto.ThreadResponse], error) {
	if err := requireIdentity(identity); err != nil {
		return nil, err
	}

	listener := s.broker.Listen(realtime.TopicThreads)
	load := func(ctx context.Context) ([]dto.ThreadResponse, error) {
		threads, err := s.Threads(ctx, identity)
		observeSnapshot("threads", err)
		return threads, err
	}
	onError := func(err error) {
		s.logger.Warn().Err(err).Str("user_id", identity.UserID).Msg("thread list refresh failed")
	}
	return newSubscription(ctx, listener, load, []dto.ThreadResponse{}, onError), nil
}

func (s *chatService) Threads(ctx context.Context, identity Identity) ([]dto.ThreadResponse, error) {
	if err := requireIdentity(identity); err != nil {
		return nil, err
	}

	var (
		threads []models.Thread
		err     error
	)
	if identity.IsAdmin() {
		threads, err = s.repo.ListThreads(ctx)
	} else {
		threads, err = s.repo.ListThreadsForUser(ctx, identity.UserID)
	}
	if err != nil {
		return nil, err
	}
	return dto.NewThreadResponseSlice(threads), nil
}

// CreateThread opens a thread for the caller and the optional counterparty. It is not idempotent.
func (s *chatService) CreateThread(ctx context.Context, identity Identity, counterpartyID string) (dto.ThreadResponse, error) {
	if err := requireIdentity(identity); err != nil {
		return dto.ThreadResponse{}, err
	}

	thread := models.Thread{
		ID:     uuid.NewString(),
		Status: models.ThreadStatusOpen,
		Participants: []models.ThreadParticipant{
			{UserID: identity.UserID},
		},
	}
	counterpartyID = strings.TrimSpace(counterpartyID)
	if counterpartyID != "" && counterpartyID != identity.UserID {
		thread.Participants = append(thread.Participants, models.ThreadParticipant{UserID: counterpartyID})
	}

	if err := s.repo.CreateThread(ctx, &thread); err != nil {
		return dto.ThreadResponse{}, fmt.Errorf("create thread: %w", err)
	}
	s.publish(ctx, realtime.TopicThreads)

	s.logger.Info().Str("thread_id", thread.ID).Str("user_id", identity.UserID).Msg("chat thread created")
	return dto.NewThreadResponse(thread), nil
}

// SubscribeMessages returns a live feed of one thread for a participant or an admin.
func (s *chatService) SubscribeMessages(ctx context.Context, identity Identity, threadID string) (*Subscription[[]dto.MessageResponse], error) {
	if err := s.authorizeThread(ctx, identity, threadID); err != nil {
		return nil, err
	}

	listener := s.broker.Listen(realtime.ThreadTopic(threadID))
	load := func(ctx context.Context) ([]dto.MessageResponse, error) {
		var messages []dto.MessageResponse
		err := s.authorizeThread(ctx, identity, threadID)
		if err == nil {
			messages, err = s.loadMessages(ctx, threadID)
		}
		observeSnapshot("messages", err)
		return messages, err
	}
	onError := func(err error) {
		s.logger.Warn().Err(err).Str("thread_id", threadID).Msg("message feed refresh failed")
	}
	return newSubscription(ctx, listener, load, []dto.MessageResponse{}, onError), nil
}

func (s *chatService) Messages(ctx context.Context, identity Identity, threadID string) ([]dto.MessageResponse, error) {
	if err := s.authorizeThread(ctx, identity, threadID); err != nil {
		return nil, err
	}
	return s.loadMessages(ctx, threadID)
}

// Send stores a message and then refreshes the thread preview in a second write.
// A failure between the two leaves the message stored with a stale preview.
func (s *chatService) Send(ctx context.Context, identity Identity, threadID string, req dto.SendMessageRequest) (dto.MessageResponse, error) {
	if err := s.authorizeThread(ctx, identity, threadID); err != nil {
		return dto.MessageResponse{}, err
	}

	text := strings.TrimSpace(s.sanitizer.Sanitize(req.Text))
	if text == "" {
		return dto.MessageResponse{}, invalidArgument("message text is required")
	}
	if utf8.RuneCountInString(text) > maxChatMessageLength {
		return dto.MessageResponse{}, invalidArgument("message text exceeds %d characters", maxChatMessageLength)
	}

	timestamp := req.Timestamp
	if timestamp <= 0 {
		timestamp = s.now().UnixMilli()
	}

	ctx, span := s.tracer.Start(ctx, "chat.send", trace.WithAttributes(
		attribute.String("chat.thread_id", threadID),
		attribute.String("chat.sender_id", identity.UserID),
	))
	defer span.End()

	message := models.Message{
		ThreadID:  threadID,
		SenderID:  identity.UserID,
		Text:      text,
		Timestamp: timestamp,
		Type:      models.MessageTypeText,
	}
	if err := s.repo.CreateMessage(ctx, &message); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "store message failed")
		return dto.MessageResponse{}, fmt.Errorf("store message: %w", err)
	}
	s.publish(ctx, realtime.ThreadTopic(threadID))
	observability.ChatMessagesSent().WithLabelValues(message.Type).Inc()

	if err := s.repo.UpdateLastMessage(ctx, threadID, message); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update preview failed")
		s.logger.Error().Err(err).Str("thread_id", threadID).Uint("message_id", message.ID).Msg("message stored but thread preview not updated")
		return dto.NewMessageResponse(message), fmt.Errorf("update thread preview: %w", err)
	}
	s.publish(ctx, realtime.TopicThreads)

	span.SetStatus(codes.Ok, "sent")
	return dto.NewMessageResponse(message), nil
}

func (s *chatService) UpdateStatus(ctx context.Context, identity Identity, threadID, status string) (dto.ThreadResponse, error) {
	if err := requireAdmin(identity); err != nil {
		return dto.ThreadResponse{}, err
	}
	status = strings.ToLower(strings.TrimSpace(status))
	if status != models.ThreadStatusOpen && status != models.ThreadStatusClosed {
		return dto.ThreadResponse{}, invalidArgument("status must be %s or %s", models.ThreadStatusOpen, models.ThreadStatusClosed)
	}

	if err := s.repo.UpdateStatus(ctx, threadID, status); err != nil {
		return dto.ThreadResponse{}, notFoundOr(err, "thread")
	}
	s.publish(ctx, realtime.TopicThreads)

	thread, err := s.repo.GetThread(ctx, threadID)
	if err != nil {
		return dto.ThreadResponse{}, notFoundOr(err, "thread")
	}
	return dto.NewThreadResponse(thread), nil
}

// Redact replaces the text of one message with the deletion marker.
func (s *chatService) Redact(ctx context.Context, identity Identity, threadID string, messageID uint) error {
	if err := requireAdmin(identity); err != nil {
		return err
	}
	if err := s.repo.RedactMessage(ctx, threadID, messageID); err != nil {
		return notFoundOr(err, "message")
	}
	s.publish(ctx, realtime.ThreadTopic(threadID))
	return nil
}

func (s *chatService) ThreadIDsFor(ctx context.Context, userID string) ([]string, error) {
	return s.repo.ThreadIDsForUser(ctx, userID)
}

// DetachUser removes a user from a thread; with redact their messages there are masked.
func (s *chatService) DetachUser(ctx context.Context, threadID, userID string, redact bool) error {
	if err := s.repo.DetachUser(ctx, threadID, userID, redact); err != nil {
		return err
	}
	s.publish(ctx, realtime.TopicThreads, realtime.ThreadTopic(threadID))
	return nil
}

// IdentityChanged tells open sessions of userID to re-check their role and token.
func (s *chatService) IdentityChanged(ctx context.Context, userID string) {
	if userID == "" {
		return
	}
	s.publish(ctx, realtime.UserTopic(userID))
}

func (s *chatService) WatchIdentity(userID string) *realtime.Listener {
	return s.broker.Listen(realtime.UserTopic(userID))
}

func (s *chatService) authorizeThread(ctx context.Context, identity Identity, threadID string) error {
	if err := requireIdentity(identity); err != nil {
		return err
	}
	if strings.TrimSpace(threadID) == "" {
		return invalidArgument("thread id is required")
	}

	exists, err := s.repo.ThreadExists(ctx, threadID)
	if err != nil {
		return fmt.Errorf("load thread: %w", err)
	}
	if !exists {
		return fmt.Errorf("thread: %w", ErrNotFound)
	}
	if identity.IsAdmin() {
		return nil
	}
	member, err := s.repo.IsParticipant(ctx, threadID, identity.UserID)
	if err != nil {
		return fmt.Errorf("check thread membership: %w", err)
	}
	if !member {
		return ErrPermissionDenied
	}
	return nil
}

func (s *chatService) loadMessages(ctx context.Context, threadID string) ([]dto.MessageResponse, error) {
	messages, err := s.repo.ListMessages(ctx, threadID)
	if err != nil {
		return nil, err
	}
	return dto.NewMessageResponseSlice(messages), nil
}

func (s *chatService) publish(ctx context.Context, topics ...string) {
	if err := s.broker.Publish(ctx, topics...); err != nil {
		s.logger.Warn().Err(err).Strs("topics", topics).Msg("failed to publish chat event")
	}
}

func observeSnapshot(stream string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	observability.ChatSnapshotLoads().WithLabelValues(stream, outcome).Inc()
}
