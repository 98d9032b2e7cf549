package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"github.com/mitcstore/mitc-api/internal/dto"
	"github.com/mitcstore/mitc-api/internal/models"
	"github.com/mitcstore/mitc-api/internal/repository"
	"github.com/mitcstore/mitc-api/internal/utils"
)

const defaultLeadListLimit = 100

// LeadService captures contact form enquiries and tracks their follow-up.
type LeadService interface {
	Submit(ctx context.Context, req dto.LeadCreateRequest) (dto.LeadResponse, error)
	List(ctx context.Context, identity Identity, status string, limit int) ([]dto.LeadResponse, error)
	UpdateStatus(ctx context.Context, identity Identity, id uint, req dto.LeadStatusRequest) (dto.LeadResponse, error)
}

type leadService struct {
	repo      repository.LeadRepository
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
}

// NewLeadService constructs the lead service.
func NewLeadService(repo repository.LeadRepository, validate *validator.Validate, logger zerolog.Logger) LeadService {
	return &leadService{
		repo:      repo,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "lead_service").Logger(),
	}
}

func (s *leadService) Submit(ctx context.Context, req dto.LeadCreateRequest) (dto.LeadResponse, error) {
	req.Name = strings.TrimSpace(s.sanitizer.Sanitize(req.Name))
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Phone = strings.TrimSpace(req.Phone)
	req.Message = strings.TrimSpace(s.sanitizer.Sanitize(req.Message))
	if err := s.validator.Struct(req); err != nil {
		return dto.LeadResponse{}, validationFailed(err)
	}
	if req.Phone != "" && !utils.ValidatePhone(req.Phone) {
		return dto.LeadResponse{}, fieldError("phone", "enter a valid 10-digit mobile number")
	}

	tags := make([]string, 0, len(req.Tags))
	for _, tag := range req.Tags {
		if tag = strings.ToLower(strings.TrimSpace(tag)); tag != "" {
			tags = append(tags, tag)
		}
	}

	lead := models.Lead{
		Name:    req.Name,
		Email:   req.Email,
		Phone:   utils.FormatPhoneNumber(req.Phone),
		Message: req.Message,
		Status:  models.LeadStatusNew,
		Tags:    datatypes.NewJSONSlice(tags),
	}
	if err := s.repo.Create(ctx, &lead); err != nil {
		return dto.LeadResponse{}, fmt.Errorf("create lead: %w", err)
	}
	s.logger.Info().Uint("lead_id", lead.ID).Str("email", maskEmail(lead.Email)).Msg("lead captured")
	return dto.NewLeadResponse(lead), nil
}

func (s *leadService) List(ctx context.Context, identity Identity, status string, limit int) ([]dto.LeadResponse, error) {
	if err := requireAdmin(identity); err != nil {
		return nil, err
	}
	status = strings.ToLower(strings.TrimSpace(status))
	switch status {
	case "", models.LeadStatusNew, models.LeadStatusContacted, models.LeadStatusConverted:
	default:
		return nil, invalidArgument("unknown lead status %q", status)
	}
	if limit <= 0 || limit > defaultLeadListLimit {
		limit = defaultLeadListLimit
	}

	leads, err := s.repo.List(ctx, status, limit)
	if err != nil {
		return nil, err
	}
	return dto.NewLeadResponseSlice(leads), nil
}

func (s *leadService) UpdateStatus(ctx context.Context, identity Identity, id uint, req dto.LeadStatusRequest) (dto.LeadResponse, error) {
	if err := requireAdmin(identity); err != nil {
		return dto.LeadResponse{}, err
	}
	req.Status = strings.ToLower(strings.TrimSpace(req.Status))
	if err := s.validator.Struct(req); err != nil {
		return dto.LeadResponse{}, validationFailed(err)
	}

	lead, err := s.repo.UpdateStatus(ctx, id, req.Status)
	if err != nil {
		return dto.LeadResponse{}, notFoundOr(err, "lead")
	}
	s.logger.Info().Uint("lead_id", id).Str("status", req.Status).Str("actor", identity.UserID).Msg("lead status updated")
	return dto.NewLeadResponse(lead), nil
}
