package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/mitcstore/mitc-api/internal/dto"
	"github.com/mitcstore/mitc-api/internal/observability"
	"github.com/mitcstore/mitc-api/internal/repository"
)

const (
	threadDetachRetries = 3
	defaultRetryBackoff = 100 * time.Millisecond
)

// AccountService removes user accounts and their footprint.
type AccountService interface {
	RequestDeletion(ctx context.Context, identity Identity, req dto.AccountDeleteRequest) (dto.AccountDeleteResponse, error)
	DeleteUser(ctx context.Context, actor Identity, uid string) (dto.AccountDeleteResponse, error)
}

type accountService struct {
	users       repository.UserRepository
	credentials repository.CredentialRepository
	reviews     repository.ReviewRepository
	chat        ChatService
	logger      zerolog.Logger
	tracer      trace.Tracer
	backoff     time.Duration
}

// NewAccountService constructs the account deletion service.
func NewAccountService(users repository.UserRepository, credentials repository.CredentialRepository, reviews repository.ReviewRepository, chat ChatService, logger zerolog.Logger) AccountService {
	return &accountService{
		users:       users,
		credentials: credentials,
		reviews:     reviews,
		chat:        chat,
		logger:      logger.With().Str("component", "account_service").Logger(),
		tracer:      otel.Tracer("github.com/mitcstore/mitc-api/internal/service/account"),
		backoff:     defaultRetryBackoff,
	}
}

// RequestDeletion deletes the caller's account. With DeleteAllData their reviews are removed and
// their chat messages redacted; with DeleteAuthUser the sign-in credential is removed too.
// Threads that keep failing are reported in FailedThreads while the rest proceed.
func (s *accountService) RequestDeletion(ctx context.Context, identity Identity, req dto.AccountDeleteRequest) (dto.AccountDeleteResponse, error) {
	if err := requireIdentity(identity); err != nil {
		return dto.AccountDeleteResponse{}, err
	}
	if !req.Confirm {
		return dto.AccountDeleteResponse{}, invalidArgument("account deletion must be confirmed")
	}

	ctx, span := s.tracer.Start(ctx, "account.delete", trace.WithAttributes(
		attribute.String("account.uid", identity.UserID),
		attribute.Bool("account.delete_all_data", req.DeleteAllData),
		attribute.Bool("account.delete_auth_user", req.DeleteAuthUser),
	))
	defer span.End()

	var resp dto.AccountDeleteResponse
	if req.DeleteAllData {
		if err := s.cleanup(ctx, identity.UserID, true, &resp); err != nil {
			return s.fail(span, resp, err)
		}
	}

	if err := s.users.Delete(ctx, identity.UserID); err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return s.fail(span, resp, fmt.Errorf("delete profile: %w", err))
	}
	resp.ProfileDeleted = true

	if req.DeleteAuthUser {
		if err := s.credentials.Delete(ctx, identity.UserID); err != nil {
			return s.fail(span, resp, fmt.Errorf("delete credential: %w", err))
		}
		resp.AuthUserDeleted = true
		if !req.DeleteAllData {
			if err := s.cleanup(ctx, identity.UserID, false, &resp); err != nil {
				return s.fail(span, resp, err)
			}
		}
	}

	return s.finish(ctx, span, identity.UserID, resp), nil
}

// DeleteUser removes another user's sign-in identity and runs the auth cleanup: profile,
// reviews and chat participation. Messages are left intact.
func (s *accountService) DeleteUser(ctx context.Context, actor Identity, uid string) (dto.AccountDeleteResponse, error) {
	if err := requireAdmin(actor); err != nil {
		return dto.AccountDeleteResponse{}, err
	}
	if uid == "" {
		return dto.AccountDeleteResponse{}, invalidArgument("uid is required")
	}
	if uid == actor.UserID {
		return dto.AccountDeleteResponse{}, invalidArgument("use account deletion to remove your own account")
	}
	if _, err := s.users.GetByUID(ctx, uid); err != nil {
		return dto.AccountDeleteResponse{}, notFoundOr(err, "user")
	}

	ctx, span := s.tracer.Start(ctx, "account.admin_delete", trace.WithAttributes(
		attribute.String("account.uid", uid),
		attribute.String("account.actor", actor.UserID),
	))
	defer span.End()

	var resp dto.AccountDeleteResponse
	if err := s.credentials.Delete(ctx, uid); err != nil {
		return s.fail(span, resp, fmt.Errorf("delete credential: %w", err))
	}
	resp.AuthUserDeleted = true

	if err := s.users.Delete(ctx, uid); err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return s.fail(span, resp, fmt.Errorf("delete profile: %w", err))
	}
	resp.ProfileDeleted = true

	if err := s.cleanup(ctx, uid, false, &resp); err != nil {
		return s.fail(span, resp, err)
	}
	return s.finish(ctx, span, uid, resp), nil
}

func (s *accountService) cleanup(ctx context.Context, uid string, redact bool, resp *dto.AccountDeleteResponse) error {
	deleted, err := s.reviews.DeleteByUser(ctx, uid)
	resp.ReviewsDeleted += deleted
	if err != nil {
		return fmt.Errorf("delete reviews: %w", err)
	}

	threadIDs, err := s.chat.ThreadIDsFor(ctx, uid)
	if err != nil {
		return fmt.Errorf("list threads: %w", err)
	}
	for _, threadID := range threadIDs {
		if err := s.detachWithRetry(ctx, threadID, uid, redact); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.Error().Err(err).Str("thread_id", threadID).Str("uid", uid).Msg("failed to detach user from thread")
			resp.FailedThreads = append(resp.FailedThreads, threadID)
			continue
		}
		resp.ThreadsDetached++
	}
	return nil
}

func (s *accountService) detachWithRetry(ctx context.Context, threadID, uid string, redact bool) error {
	delay := s.backoff
	var err error
	for attempt := 0; attempt <= threadDetachRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}
		if err = s.chat.DetachUser(ctx, threadID, uid, redact); err == nil {
			return nil
		}
		s.logger.Warn().Err(err).Str("thread_id", threadID).Int("attempt", attempt+1).Msg("thread detach attempt failed")
	}
	return err
}

func (s *accountService) fail(span trace.Span, resp dto.AccountDeleteResponse, err error) (dto.AccountDeleteResponse, error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, "account deletion failed")
	observability.AccountDeletions().WithLabelValues("error").Inc()
	return resp, err
}

func (s *accountService) finish(ctx context.Context, span trace.Span, uid string, resp dto.AccountDeleteResponse) dto.AccountDeleteResponse {
	s.chat.IdentityChanged(ctx, uid)

	outcome := "ok"
	if len(resp.FailedThreads) > 0 {
		outcome = "partial"
		span.SetStatus(codes.Error, "some threads failed")
	} else {
		span.SetStatus(codes.Ok, "deleted")
	}
	span.SetAttributes(
		attribute.Int64("account.reviews_deleted", resp.ReviewsDeleted),
		attribute.Int("account.threads_detached", resp.ThreadsDetached),
		attribute.Int("account.threads_failed", len(resp.FailedThreads)),
	)
	observability.AccountDeletions().WithLabelValues(outcome).Inc()

	s.logger.Info().
		Str("uid", uid).
		Int64("reviews_deleted", resp.ReviewsDeleted).
		Int("threads_detached", resp.ThreadsDetached).
		Int("threads_failed", len(resp.FailedThreads)).
		Msg("account deletion processed")
	return resp
}
