package handler

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/mitcstore/mitc-api/internal/dto"
	"github.com/mitcstore/mitc-api/internal/middleware"
	"github.com/mitcstore/mitc-api/internal/observability"
	"github.com/mitcstore/mitc-api/internal/service"
	"github.com/mitcstore/mitc-api/internal/utils"
)

const chatReadLimit = 16 << 10

// IdentitySource re-reads the identity behind a bearer token. AuthService satisfies it.
type IdentitySource interface {
	RefreshIdentity(ctx context.Context, tokenID, uid string) (service.Identity, error)
}

// ChatHandler wires chat endpoints including the websocket session.
type ChatHandler struct {
	service     service.ChatService
	identities  IdentitySource
	sessionOpts service.SessionOptions
	logger      zerolog.Logger
}

// NewChatHandler creates a chat handler instance. Without identities a websocket keeps
// the identity it connected with.
func NewChatHandler(service service.ChatService, identities IdentitySource, sessionOpts service.SessionOptions, logger zerolog.Logger) *ChatHandler {
	return &ChatHandler{
		service:     service,
		identities:  identities,
		sessionOpts: sessionOpts,
		logger:      logger.With().Str("component", "chat_handler").Logger(),
	}
}

// Register binds chat routes under the provided router group.
func (h *ChatHandler) Register(router fiber.Router) {
	router.Use("/ws", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		tokenID, _ := middleware.TokenID(c)
		c.Locals("chat_identity", identityFrom(c))
		c.Locals("chat_token_id", tokenID)
		c.Locals("request_ctx", middleware.ContextWithCorrelation(context.Background(), middleware.GetCorrelationID(c)))
		return c.Next()
	})
	router.Get("/ws", websocket.New(h.serveSession))

	signedIn := middleware.AuthOptions{RequireUser: true}
	router.Get("/threads", middleware.WithAuth(h.threads, signedIn))
	router.Post("/threads", middleware.WithAuth(h.createThread, signedIn))
	router.Get("/threads/:id/messages", middleware.WithAuth(h.messages, signedIn))
	router.Post("/threads/:id/messages", middleware.WithAuth(h.send, signedIn))
}

// RegisterAdmin binds thread moderation routes.
func (h *ChatHandler) RegisterAdmin(router fiber.Router) {
	admin := middleware.AuthOptions{Role: middleware.AuthRoleAdmin}
	router.Patch("/threads/:id/status", middleware.WithAuth(h.updateStatus, admin))
	router.Delete("/threads/:id/messages/:messageId", middleware.WithAuth(h.redact, admin))
}

// serveSession runs one chat session: this goroutine reads commands while a second one
// writes frames. Only the writer touches the connection for output.
func (h *ChatHandler) serveSession(conn *websocket.Conn) {
	identity, _ := conn.Locals("chat_identity").(service.Identity)
	baseCtx, _ := conn.Locals("request_ctx").(context.Context)
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(baseCtx)
	defer cancel()

	logger := h.logger.With().
		Str("correlation_id", middleware.CorrelationIDFromContext(baseCtx)).
		Str("user_id", identity.UserID).
		Logger()

	session := service.NewSession(ctx, h.service, h.sessionOpts, logger)
	defer session.Close()

	observability.ChatConnectionsTotal().Inc()
	observability.ChatActiveSessions().Inc()
	defer observability.ChatActiveSessions().Dec()
	logger.Info().Msg("chat websocket connected")

	if h.identities != nil && identity.Authenticated() {
		tokenID, _ := conn.Locals("chat_token_id").(string)
		session.WatchIdentity(func(ctx context.Context, uid string) (service.Identity, error) {
			return h.identities.RefreshIdentity(ctx, tokenID, uid)
		})
	}
	if err := session.SetIdentity(identity); err != nil {
		session.Fail(err)
	}

	written := make(chan struct{})
	go func() {
		defer close(written)
		for {
			frame, err := session.Next(ctx)
			if err != nil {
				return
			}
			if err := conn.WriteJSON(frame); err != nil {
				logger.Debug().Err(err).Msg("chat websocket write failed")
				cancel()
				return
			}
		}
	}()

	conn.SetReadLimit(chatReadLimit)
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			break
		}
		var frame dto.ClientFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			session.Fail(fmt.Errorf("%w: malformed frame", service.ErrInvalidArgument))
			continue
		}
		_ = session.Handle(ctx, frame)
	}

	cancel()
	session.Close()
	<-written
	logger.Info().Msg("chat websocket disconnected")
}

func (h *ChatHandler) threads(c *fiber.Ctx) error {
	threads, err := h.service.Threads(c.UserContext(), identityFrom(c))
	if err != nil {
		return respondError(c, h.logger, err, "failed to load threads")
	}
	return utils.SendSuccess(c, "threads retrieved", threads)
}

func (h *ChatHandler) createThread(c *fiber.Ctx) error {
	var payload dto.CreateThreadRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&payload); err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
		}
	}

	thread, err := h.service.CreateThread(c.UserContext(), identityFrom(c), payload.CounterpartyID)
	if err != nil {
		return respondError(c, h.logger, err, "failed to create thread")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "thread created", thread)
}

func (h *ChatHandler) messages(c *fiber.Ctx) error {
	messages, err := h.service.Messages(c.UserContext(), identityFrom(c), c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, err, "failed to load messages")
	}
	return utils.SendSuccess(c, "messages retrieved", messages)
}

func (h *ChatHandler) send(c *fiber.Ctx) error {
	var payload dto.SendMessageRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	message, err := h.service.Send(c.UserContext(), identityFrom(c), c.Params("id"), payload)
	if err != nil {
		return respondError(c, h.logger, err, "failed to send message")
	}
	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "message sent", message)
}

func (h *ChatHandler) updateStatus(c *fiber.Ctx) error {
	var payload dto.ThreadStatusRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	thread, err := h.service.UpdateStatus(c.UserContext(), identityFrom(c), c.Params("id"), payload.Status)
	if err != nil {
		return respondError(c, h.logger, err, "failed to update thread")
	}
	return utils.SendSuccess(c, "thread updated", thread)
}

func (h *ChatHandler) redact(c *fiber.Ctx) error {
	messageID, err := parseUintParam(c, "messageId")
	if err != nil {
		return respondError(c, h.logger, err, "invalid message id")
	}

	if err := h.service.Redact(c.UserContext(), identityFrom(c), c.Params("id"), messageID); err != nil {
		return respondError(c, h.logger, err, "failed to redact message")
	}
	return utils.SendSuccess(c, "message redacted", nil)
}
