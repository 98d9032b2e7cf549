package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/mitcstore/mitc-api/internal/dto"
	"github.com/mitcstore/mitc-api/internal/models"
	"github.com/mitcstore/mitc-api/internal/observability"
	"github.com/mitcstore/mitc-api/internal/repository"
)

const (
	defaultAnalyticsDays = 7
	analyticsTopProducts = 5
	analyticsRecentLeads = 5
	visitDayLayout       = "2006-01-02"
)

var (
	tabletPattern = regexp.MustCompile(`(?i)tablet|ipad`)
	mobilePattern = regexp.MustCompile(`(?i)mobile|android|iphone`)
)

// VisitMeta is the request context of a page view.
type VisitMeta struct {
	UserAgent string
	IP        string
}

// AnalyticsService records storefront visits and aggregates the admin dashboard.
type AnalyticsService interface {
	TrackVisit(ctx context.Context, req dto.VisitRequest, meta VisitMeta)
	Summary(ctx context.Context, identity Identity, query dto.AnalyticsQuery) (dto.AnalyticsSummaryResponse, error)
}

type analyticsService struct {
	repo      repository.AnalyticsRepository
	cache     *redis.Client
	cacheTTL  time.Duration
	keyPrefix string
	salt      string
	validator *validator.Validate
	group     singleflight.Group
	logger    zerolog.Logger
	now       func() time.Time
}

// NewAnalyticsService constructs the analytics service. cache may be nil.
func NewAnalyticsService(repo repository.AnalyticsRepository, cache *redis.Client, ttl time.Duration, keyPrefix, salt string, validate *validator.Validate, logger zerolog.Logger) AnalyticsService {
	if keyPrefix == "" {
		keyPrefix = "mitc"
	}
	return &analyticsService{
		repo:      repo,
		cache:     cache,
		cacheTTL:  ttl,
		keyPrefix: keyPrefix,
		salt:      salt,
		validator: validate,
		logger:    logger.With().Str("component", "analytics_service").Logger(),
		now:       time.Now,
	}
}

// TrackVisit stores a page view. It never fails the caller; errors are logged.
func (s *analyticsService) TrackVisit(ctx context.Context, req dto.VisitRequest, meta VisitMeta) {
	req.Path = strings.TrimSpace(req.Path)
	if err := s.validator.Struct(req); err != nil {
		s.logger.Debug().Err(err).Msg("ignoring malformed visit")
		return
	}

	now := s.now().UTC()
	device := DetectDevice(meta.UserAgent)
	visit := models.Visit{
		Path:       req.Path,
		Referrer:   strings.TrimSpace(req.Referrer),
		UserAgent:  truncate(meta.UserAgent, 512),
		DeviceType: device,
		IPHash:     s.hashIP(meta.IP),
		Day:        now.Format(visitDayLayout),
		CreatedAt:  now,
	}
	if err := s.repo.CreateVisit(ctx, &visit); err != nil {
		s.logger.Warn().Err(err).Str("path", visit.Path).Msg("failed to track visit")
		return
	}
	observability.Visits().WithLabelValues(device).Inc()
}

// Summary aggregates the dashboard for the last query.Days days. Concurrent callers for the
// same window share one aggregation and results are cached in Redis.
func (s *analyticsService) Summary(ctx context.Context, identity Identity, query dto.AnalyticsQuery) (dto.AnalyticsSummaryResponse, error) {
	if err := requireAdmin(identity); err != nil {
		return dto.AnalyticsSummaryResponse{}, err
	}
	if err := s.validator.Struct(query); err != nil {
		return dto.AnalyticsSummaryResponse{}, validationFailed(err)
	}
	days := query.Days
	if days <= 0 {
		days = defaultAnalyticsDays
	}

	cacheKey := fmt.Sprintf("%s:analytics:summary:%d", s.keyPrefix, days)
	tracer := otel.Tracer("github.com/mitcstore/mitc-api/internal/service/analytics")
	ctx, span := tracer.Start(ctx, "analytics.aggregate")
	span.SetAttributes(attribute.String("analytics.cache_key", cacheKey), attribute.Int("analytics.days", days))
	defer span.End()

	if cached, ok := s.readCache(ctx, cacheKey); ok {
		span.SetAttributes(attribute.Bool("analytics.cache_hit", true))
		observability.AnalyticsCacheRequests().WithLabelValues("hit").Inc()
		return cached, nil
	}
	observability.AnalyticsCacheRequests().WithLabelValues("miss").Inc()

	value, err, _ := s.group.Do(cacheKey, func() (interface{}, error) {
		summary, err := s.aggregate(ctx, days)
		if err != nil {
			return nil, err
		}
		s.writeCache(ctx, cacheKey, summary)
		return summary, nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "aggregate_failed")
		return dto.AnalyticsSummaryResponse{}, err
	}
	return value.(dto.AnalyticsSummaryResponse), nil
}

func (s *analyticsService) aggregate(ctx context.Context, days int) (dto.AnalyticsSummaryResponse, error) {
	now := s.now().UTC()
	since := now.AddDate(0, 0, -days)
	summary := dto.AnalyticsSummaryResponse{Days: days, GeneratedAt: now}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		counts, err := s.repo.ProductCounts(gctx, models.LowStockThreshold)
		if err != nil {
			return fmt.Errorf("product counts: %w", err)
		}
		top, err := s.repo.TopViewedProducts(gctx, analyticsTopProducts)
		if err != nil {
			return fmt.Errorf("top products: %w", err)
		}
		summary.Products = dto.ProductAnalytics{
			Total:      counts.Total,
			Published:  counts.Published,
			Draft:      counts.Draft,
			LowStock:   counts.LowStock,
			OutOfStock: counts.OutOfStock,
			TopViewed:  dto.NewProductResponseSlice(top),
		}
		return nil
	})
	g.Go(func() error {
		roles, err := s.repo.UserRoleCounts(gctx)
		if err != nil {
			return fmt.Errorf("user roles: %w", err)
		}
		fresh, err := s.repo.CountUsersSince(gctx, since)
		if err != nil {
			return fmt.Errorf("new users: %w", err)
		}
		users := dto.UserAnalytics{
			Admins:   roles[models.RoleAdmin],
			Users:    roles[models.RoleUser],
			Guests:   roles[models.RoleGuest],
			NewUsers: fresh,
		}
		for _, count := range roles {
			users.Total += count
		}
		summary.Users = users
		return nil
	})
	g.Go(func() error {
		counts, err := s.repo.ReviewCounts(gctx)
		if err != nil {
			return fmt.Errorf("review counts: %w", err)
		}
		summary.Reviews = dto.ReviewAnalytics{
			Total:         counts.Total,
			Approved:      counts.Approved,
			Pending:       counts.Pending,
			Hidden:        counts.Hidden,
			AverageRating: roundOne(counts.AverageRating),
		}
		return nil
	})
	g.Go(func() error {
		visits, err := s.repo.VisitsSince(gctx, since)
		if err != nil {
			return fmt.Errorf("visits: %w", err)
		}
		summary.Visitors = summariseVisits(visits)
		return nil
	})
	g.Go(func() error {
		counts, err := s.repo.LeadCountsSince(gctx, since)
		if err != nil {
			return fmt.Errorf("lead counts: %w", err)
		}
		recent, err := s.repo.RecentLeads(gctx, analyticsRecentLeads)
		if err != nil {
			return fmt.Errorf("recent leads: %w", err)
		}
		summary.Leads = dto.LeadAnalytics{
			Total:     counts.Total,
			New:       counts.New,
			Contacted: counts.Contacted,
			Converted: counts.Converted,
			Recent:    dto.NewLeadResponseSlice(recent),
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return dto.AnalyticsSummaryResponse{}, err
	}
	return summary, nil
}

func (s *analyticsService) readCache(ctx context.Context, key string) (dto.AnalyticsSummaryResponse, bool) {
	if s.cache == nil {
		return dto.AnalyticsSummaryResponse{}, false
	}
	cached, err := s.cache.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn().Err(err).Msg("failed to read analytics cache")
		}
		return dto.AnalyticsSummaryResponse{}, false
	}

	var response dto.AnalyticsSummaryResponse
	if err := json.Unmarshal(cached, &response); err != nil {
		s.logger.Warn().Err(err).Msg("discarding corrupt analytics cache entry")
		return dto.AnalyticsSummaryResponse{}, false
	}
	response.CacheHit = true
	return response, true
}

func (s *analyticsService) writeCache(ctx context.Context, key string, summary dto.AnalyticsSummaryResponse) {
	if s.cache == nil || s.cacheTTL <= 0 {
		return
	}
	payload, err := json.Marshal(summary)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, payload, s.cacheTTL).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to store analytics cache")
	}
}

func (s *analyticsService) hashIP(ip string) string {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(s.salt + ip))
	return hex.EncodeToString(sum[:])
}

// DetectDevice classifies a user agent as tablet, mobile or desktop.
func DetectDevice(userAgent string) string {
	switch {
	case tabletPattern.MatchString(userAgent):
		return models.DeviceTablet
	case mobilePattern.MatchString(userAgent):
		return models.DeviceMobile
	default:
		return models.DeviceDesktop
	}
}

func summariseVisits(visits []models.Visit) dto.VisitorAnalytics {
	summary := dto.VisitorAnalytics{Total: len(visits), Daily: map[string]int64{}}
	unique := make(map[string]struct{}, len(visits))
	for _, visit := range visits {
		switch visit.DeviceType {
		case models.DeviceMobile:
			summary.Mobile++
		case models.DeviceTablet:
			summary.Tablet++
		default:
			summary.Desktop++
		}
		if visit.IPHash != "" {
			unique[visit.IPHash] = struct{}{}
		}
		summary.Daily[visit.Day]++
	}
	summary.UniqueVisitors = len(unique)
	return summary
}

func roundOne(value float64) float64 {
	return math.Round(value*10) / 10
}

func truncate(value string, max int) string {
	if len(value) <= max {
		return value
	}
	return value[:max]
}
