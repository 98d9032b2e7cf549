package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
	"google.golang.org/api/idtoken"
	"gorm.io/gorm"

	"github.com/mitcstore/mitc-api/internal/dto"
	"github.com/mitcstore/mitc-api/internal/models"
	"github.com/mitcstore/mitc-api/internal/repository"
	"github.com/mitcstore/mitc-api/internal/utils"
)

// ErrResetUnavailable indicates password reset tokens cannot be stored.
var ErrResetUnavailable = errors.New("password reset store unavailable")

// GoogleVerifier validates Google ID tokens. *idtoken.Validator satisfies it.
type GoogleVerifier interface {
	Validate(ctx context.Context, idToken, audience string) (*idtoken.Payload, error)
}

// IdentityNotifier is told when the role or the sign-in state of a user changes.
type IdentityNotifier interface {
	IdentityChanged(ctx context.Context, userID string)
}

// AuthConfig carries token and bootstrap settings.
type AuthConfig struct {
	JWTSecret      string
	TokenTTL       time.Duration
	ResetTTL       time.Duration
	AdminEmail     string
	GoogleClientID string
	KeyPrefix      string
}

// AuthService manages credentials, tokens and profiles.
type AuthService interface {
	SignUp(ctx context.Context, req dto.SignUpRequest) (dto.AuthResponse, error)
	SignIn(ctx context.Context, req dto.SignInRequest) (dto.AuthResponse, error)
	SignInWithGoogle(ctx context.Context, req dto.GoogleSignInRequest) (dto.AuthResponse, error)
	SignOut(ctx context.Context, userID, tokenID string, expiresAt time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
	ResolveRole(ctx context.Context, uid string) (string, error)
	RefreshIdentity(ctx context.Context, tokenID, uid string) (Identity, error)
	Me(ctx context.Context, identity Identity) (dto.UserResponse, error)
	UpdateProfile(ctx context.Context, identity Identity, req dto.ProfileUpdateRequest) (dto.UserResponse, error)
	RequestPasswordReset(ctx context.Context, req dto.PasswordResetRequest) (string, error)
	ConfirmPasswordReset(ctx context.Context, req dto.PasswordResetConfirmRequest) error
	BootstrapAdmin(ctx context.Context, identity Identity) (dto.UserResponse, error)
	ChangeRole(ctx context.Context, actor Identity, uid string, req dto.RoleUpdateRequest) (dto.UserResponse, error)
	ListUsers(ctx context.Context, actor Identity, query dto.UserListQuery) ([]dto.UserResponse, error)
	LikeProduct(ctx context.Context, identity Identity, productID uint) (dto.UserResponse, error)
	UnlikeProduct(ctx context.Context, identity Identity, productID uint) (dto.UserResponse, error)
	Favorites(ctx context.Context, identity Identity) ([]dto.ProductResponse, error)
}

type authService struct {
	users       repository.UserRepository
	credentials repository.CredentialRepository
	products    repository.ProductRepository
	redis       *redis.Client
	google      GoogleVerifier
	notifier    IdentityNotifier
	validator   *validator.Validate
	config      AuthConfig
	logger      zerolog.Logger
	now         func() time.Time
}

// NewAuthService constructs the auth service. redisClient, google and notifier may be nil.
func NewAuthService(users repository.UserRepository, credentials repository.CredentialRepository, products repository.ProductRepository, redisClient *redis.Client, google GoogleVerifier, notifier IdentityNotifier, validate *validator.Validate, cfg AuthConfig, logger zerolog.Logger) AuthService {
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = 24 * time.Hour
	}
	if cfg.ResetTTL <= 0 {
		cfg.ResetTTL = 30 * time.Minute
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "mitc"
	}
	cfg.AdminEmail = strings.ToLower(strings.TrimSpace(cfg.AdminEmail))

	return &authService{
		users:       users,
		credentials: credentials,
		products:    products,
		redis:       redisClient,
		google:      google,
		notifier:    notifier,
		validator:   validate,
		config:      cfg,
		logger:      logger.With().Str("component", "auth_service").Logger(),
		now:         time.Now,
	}
}

func (s *authService) SignUp(ctx context.Context, req dto.SignUpRequest) (dto.AuthResponse, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return dto.AuthResponse{}, validationFailed(err)
	}
	if check := utils.ValidatePassword(req.Password); !check.Valid {
		return dto.AuthResponse{}, fieldError("password", check.Errors...)
	}

	if _, err := s.credentials.GetByEmail(ctx, req.Email); err == nil {
		return dto.AuthResponse{}, fieldError("email", "email already registered")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return dto.AuthResponse{}, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return dto.AuthResponse{}, fmt.Errorf("hash password: %w", err)
	}

	uid := uuid.NewString()
	credential := models.Credential{
		UID:          uid,
		Email:        req.Email,
		PasswordHash: string(hash),
		Provider:     models.ProviderPassword,
		DisplayName:  req.Name,
	}
	if err := s.credentials.Create(ctx, &credential); err != nil {
		return dto.AuthResponse{}, fmt.Errorf("create credential: %w", err)
	}

	user := models.User{UID: uid, Name: req.Name, Email: req.Email, Role: models.RoleUser}
	if err := s.users.Create(ctx, &user); err != nil {
		return dto.AuthResponse{}, fmt.Errorf("create profile: %w", err)
	}

	s.logger.Info().Str("uid", uid).Msg("account registered")
	return s.issue(user)
}

func (s *authService) SignIn(ctx context.Context, req dto.SignInRequest) (dto.AuthResponse, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := s.validator.Struct(req); err != nil {
		return dto.AuthResponse{}, validationFailed(err)
	}

	credential, err := s.credentials.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.AuthResponse{}, fmt.Errorf("invalid credentials: %w", ErrUnauthenticated)
		}
		return dto.AuthResponse{}, err
	}
	if credential.PasswordHash == "" {
		return dto.AuthResponse{}, fmt.Errorf("account uses %s sign-in: %w", credential.Provider, ErrUnauthenticated)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(credential.PasswordHash), []byte(req.Password)); err != nil {
		return dto.AuthResponse{}, fmt.Errorf("invalid credentials: %w", ErrUnauthenticated)
	}

	user, err := s.profileFor(ctx, credential)
	if err != nil {
		return dto.AuthResponse{}, err
	}
	return s.issue(user)
}

func (s *authService) SignInWithGoogle(ctx context.Context, req dto.GoogleSignInRequest) (dto.AuthResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return dto.AuthResponse{}, validationFailed(err)
	}
	if s.google == nil || s.config.GoogleClientID == "" {
		return dto.AuthResponse{}, invalidArgument("google sign-in is not configured")
	}

	payload, err := s.google.Validate(ctx, req.IDToken, s.config.GoogleClientID)
	if err != nil {
		return dto.AuthResponse{}, fmt.Errorf("google token rejected: %w", ErrUnauthenticated)
	}
	email := strings.ToLower(strings.TrimSpace(claimString(payload.Claims, "email")))
	if email == "" || !claimBool(payload.Claims, "email_verified") {
		return dto.AuthResponse{}, fmt.Errorf("google email not verified: %w", ErrUnauthenticated)
	}

	credential, err := s.credentials.GetByGoogleSubject(ctx, payload.Subject)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		credential, err = s.credentials.GetByEmail(ctx, email)
	}
	switch {
	case err == nil:
	case errors.Is(err, gorm.ErrRecordNotFound):
		subject := payload.Subject
		credential = models.Credential{
			UID:           uuid.NewString(),
			Email:         email,
			Provider:      models.ProviderGoogle,
			GoogleSubject: &subject,
			DisplayName:   claimString(payload.Claims, "name"),
		}
		if err := s.credentials.Create(ctx, &credential); err != nil {
			return dto.AuthResponse{}, fmt.Errorf("create credential: %w", err)
		}
		user := models.User{
			UID:      credential.UID,
			Name:     credential.DisplayName,
			Email:    email,
			PhotoURL: claimString(payload.Claims, "picture"),
			Role:     models.RoleUser,
		}
		if err := s.users.Create(ctx, &user); err != nil {
			return dto.AuthResponse{}, fmt.Errorf("create profile: %w", err)
		}
		s.logger.Info().Str("uid", user.UID).Msg("google account registered")
		return s.issue(user)
	default:
		return dto.AuthResponse{}, err
	}

	user, err := s.profileFor(ctx, credential)
	if err != nil {
		return dto.AuthResponse{}, err
	}
	return s.issue(user)
}

// SignOut revokes the token id until its natural expiry.
func (s *authService) SignOut(ctx context.Context, userID, tokenID string, expiresAt time.Time) error {
	if tokenID == "" {
		return invalidArgument("token id is required")
	}
	if s.redis == nil {
		s.logger.Warn().Msg("token revocation skipped: redis not configured")
		return nil
	}

	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	if err := s.redis.Set(ctx, s.revokedKey(tokenID), "1", ttl).Err(); err != nil {
		return err
	}
	s.identityChanged(ctx, userID)
	return nil
}

func (s *authService) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if s.redis == nil || tokenID == "" {
		return false, nil
	}
	count, err := s.redis.Exists(ctx, s.revokedKey(tokenID)).Result()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// ResolveRole reads the role from the profile. A missing profile is a guest.
func (s *authService) ResolveRole(ctx context.Context, uid string) (string, error) {
	user, err := s.users.GetByUID(ctx, uid)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return models.RoleGuest, nil
		}
		return "", err
	}
	if user.Role == "" {
		return models.RoleGuest, nil
	}
	return user.Role, nil
}

// RefreshIdentity rebuilds the identity behind a live token. A revoked token or a
// deleted profile yields ErrUnauthenticated.
func (s *authService) RefreshIdentity(ctx context.Context, tokenID, uid string) (Identity, error) {
	revoked, err := s.IsRevoked(ctx, tokenID)
	if err != nil {
		return Identity{}, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return Identity{}, ErrUnauthenticated
	}

	user, err := s.users.GetByUID(ctx, uid)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Identity{}, ErrUnauthenticated
		}
		return Identity{}, err
	}
	role := user.Role
	if role == "" {
		role = models.RoleGuest
	}
	return Identity{UserID: uid, Role: role}, nil
}

func (s *authService) Me(ctx context.Context, identity Identity) (dto.UserResponse, error) {
	if err := requireIdentity(identity); err != nil {
		return dto.UserResponse{}, err
	}
	user, err := s.users.GetByUID(ctx, identity.UserID)
	if err != nil {
		return dto.UserResponse{}, notFoundOr(err, "profile")
	}

	now := s.now().UTC()
	if err := s.users.TouchLastSeen(ctx, user.UID, now); err != nil {
		s.logger.Warn().Err(err).Str("uid", user.UID).Msg("failed to update last seen")
	} else {
		user.LastSeen = &now
	}
	return dto.NewUserResponse(user), nil
}

func (s *authService) UpdateProfile(ctx context.Context, identity Identity, req dto.ProfileUpdateRequest) (dto.UserResponse, error) {
	if err := requireIdentity(identity); err != nil {
		return dto.UserResponse{}, err
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.UserResponse{}, validationFailed(err)
	}

	user, err := s.users.GetByUID(ctx, identity.UserID)
	if err != nil {
		return dto.UserResponse{}, notFoundOr(err, "profile")
	}

	if req.Name != nil {
		user.Name = strings.TrimSpace(*req.Name)
	}
	if req.Phone != nil {
		phone := strings.TrimSpace(*req.Phone)
		if phone != "" && !utils.ValidatePhone(phone) {
			return dto.UserResponse{}, fieldError("phone", "enter a valid 10-digit mobile number")
		}
		user.Phone = utils.FormatPhoneNumber(phone)
	}
	if req.PhotoURL != nil {
		user.PhotoURL = strings.TrimSpace(*req.PhotoURL)
	}

	if err := s.users.Save(ctx, &user); err != nil {
		return dto.UserResponse{}, err
	}
	return dto.NewUserResponse(user), nil
}

// RequestPasswordReset stores a one-time reset token. Unknown emails yield an empty token
// and no error so callers cannot probe for accounts.
func (s *authService) RequestPasswordReset(ctx context.Context, req dto.PasswordResetRequest) (string, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := s.validator.Struct(req); err != nil {
		return "", validationFailed(err)
	}
	if s.redis == nil {
		return "", ErrResetUnavailable
	}

	credential, err := s.credentials.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.logger.Info().Str("email", maskEmail(req.Email)).Msg("password reset requested for unknown email")
			return "", nil
		}
		return "", err
	}

	token := uuid.NewString()
	if err := s.redis.Set(ctx, s.resetKey(token), credential.UID, s.config.ResetTTL).Err(); err != nil {
		return "", fmt.Errorf("store reset token: %w", err)
	}
	s.logger.Info().Str("uid", credential.UID).Dur("ttl", s.config.ResetTTL).Msg("password reset issued")
	return token, nil
}

func (s *authService) ConfirmPasswordReset(ctx context.Context, req dto.PasswordResetConfirmRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return validationFailed(err)
	}
	if s.redis == nil {
		return ErrResetUnavailable
	}
	if check := utils.ValidatePassword(req.Password); !check.Valid {
		return fieldError("password", check.Errors...)
	}

	uid, err := s.redis.GetDel(ctx, s.resetKey(req.Token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return fieldError("token", "invalid or expired token")
		}
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.credentials.UpdatePassword(ctx, uid, string(hash)); err != nil {
		return notFoundOr(err, "credential")
	}
	s.logger.Info().Str("uid", uid).Msg("password reset completed")
	return nil
}

// BootstrapAdmin promotes the caller when their email is the configured admin email.
func (s *authService) BootstrapAdmin(ctx context.Context, identity Identity) (dto.UserResponse, error) {
	if err := requireIdentity(identity); err != nil {
		return dto.UserResponse{}, err
	}
	user, err := s.users.GetByUID(ctx, identity.UserID)
	if err != nil {
		return dto.UserResponse{}, notFoundOr(err, "profile")
	}
	if s.config.AdminEmail == "" || !strings.EqualFold(user.Email, s.config.AdminEmail) {
		return dto.UserResponse{}, ErrPermissionDenied
	}

	if user.Role != models.RoleAdmin {
		if err := s.users.UpdateRole(ctx, user.UID, models.RoleAdmin); err != nil {
			return dto.UserResponse{}, err
		}
		user.Role = models.RoleAdmin
		s.logger.Info().Str("uid", user.UID).Msg("initial admin bootstrapped")
		s.identityChanged(ctx, user.UID)
	}
	return dto.NewUserResponse(user), nil
}

func (s *authService) ChangeRole(ctx context.Context, actor Identity, uid string, req dto.RoleUpdateRequest) (dto.UserResponse, error) {
	if err := requireAdmin(actor); err != nil {
		return dto.UserResponse{}, err
	}
	req.Role = strings.ToLower(strings.TrimSpace(req.Role))
	if err := s.validator.Struct(req); err != nil {
		return dto.UserResponse{}, validationFailed(err)
	}
	if actor.UserID == uid && req.Role != models.RoleAdmin {
		return dto.UserResponse{}, invalidArgument("admins cannot demote themselves")
	}

	if err := s.users.UpdateRole(ctx, uid, req.Role); err != nil {
		return dto.UserResponse{}, notFoundOr(err, "profile")
	}
	user, err := s.users.GetByUID(ctx, uid)
	if err != nil {
		return dto.UserResponse{}, notFoundOr(err, "profile")
	}
	s.logger.Info().Str("uid", uid).Str("role", req.Role).Str("actor", actor.UserID).Msg("role changed")
	s.identityChanged(ctx, uid)
	return dto.NewUserResponse(user), nil
}

func (s *authService) ListUsers(ctx context.Context, actor Identity, query dto.UserListQuery) ([]dto.UserResponse, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(query); err != nil {
		return nil, validationFailed(err)
	}
	users, err := s.users.List(ctx, repository.UserFilter{Role: query.Role, Search: query.Search, Limit: query.Limit})
	if err != nil {
		return nil, err
	}
	return dto.NewUserResponseSlice(users), nil
}

func (s *authService) LikeProduct(ctx context.Context, identity Identity, productID uint) (dto.UserResponse, error) {
	user, err := s.likedProfile(ctx, identity, productID)
	if err != nil {
		return dto.UserResponse{}, err
	}
	if !slices.Contains(user.LikedProducts, productID) {
		user.LikedProducts = append(user.LikedProducts, productID)
		if err := s.users.Save(ctx, &user); err != nil {
			return dto.UserResponse{}, err
		}
	}
	return dto.NewUserResponse(user), nil
}

func (s *authService) UnlikeProduct(ctx context.Context, identity Identity, productID uint) (dto.UserResponse, error) {
	if err := requireIdentity(identity); err != nil {
		return dto.UserResponse{}, err
	}
	user, err := s.users.GetByUID(ctx, identity.UserID)
	if err != nil {
		return dto.UserResponse{}, notFoundOr(err, "profile")
	}
	if index := slices.Index(user.LikedProducts, productID); index >= 0 {
		user.LikedProducts = slices.Delete(user.LikedProducts, index, index+1)
		if err := s.users.Save(ctx, &user); err != nil {
			return dto.UserResponse{}, err
		}
	}
	return dto.NewUserResponse(user), nil
}

func (s *authService) Favorites(ctx context.Context, identity Identity) ([]dto.ProductResponse, error) {
	if err := requireIdentity(identity); err != nil {
		return nil, err
	}
	user, err := s.users.GetByUID(ctx, identity.UserID)
	if err != nil {
		return nil, notFoundOr(err, "profile")
	}
	products, err := s.products.ListByIDs(ctx, user.LikedProducts)
	if err != nil {
		return nil, err
	}
	return dto.NewProductResponseSlice(products), nil
}

func (s *authService) likedProfile(ctx context.Context, identity Identity, productID uint) (models.User, error) {
	if err := requireIdentity(identity); err != nil {
		return models.User{}, err
	}
	if _, err := s.products.GetByID(ctx, productID); err != nil {
		return models.User{}, notFoundOr(err, "product")
	}
	user, err := s.users.GetByUID(ctx, identity.UserID)
	if err != nil {
		return models.User{}, notFoundOr(err, "profile")
	}
	return user, nil
}

// profileFor loads the profile behind a credential. Credentials without a profile sign in as guests.
func (s *authService) profileFor(ctx context.Context, credential models.Credential) (models.User, error) {
	user, err := s.users.GetByUID(ctx, credential.UID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return models.User{}, err
	}
	return models.User{
		UID:   credential.UID,
		Name:  credential.DisplayName,
		Email: credential.Email,
		Role:  models.RoleGuest,
	}, nil
}

func (s *authService) issue(user models.User) (dto.AuthResponse, error) {
	now := s.now()
	expiresAt := now.Add(s.config.TokenTTL)
	role := user.Role
	if role == "" {
		role = models.RoleGuest
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   user.UID,
		"role":  role,
		"email": user.Email,
		"jti":   uuid.NewString(),
		"iat":   now.Unix(),
		"exp":   expiresAt.Unix(),
	})
	signed, err := token.SignedString([]byte(s.config.JWTSecret))
	if err != nil {
		return dto.AuthResponse{}, fmt.Errorf("sign token: %w", err)
	}

	return dto.AuthResponse{
		Token:     signed,
		ExpiresAt: expiresAt.UTC(),
		User:      dto.NewUserResponse(user),
	}, nil
}

func (s *authService) identityChanged(ctx context.Context, uid string) {
	if s.notifier != nil && uid != "" {
		s.notifier.IdentityChanged(ctx, uid)
	}
}

func (s *authService) revokedKey(tokenID string) string {
	return s.config.KeyPrefix + ":auth:revoked:" + tokenID
}

func (s *authService) resetKey(token string) string {
	return s.config.KeyPrefix + ":auth:reset:" + token
}

func claimString(claims map[string]interface{}, key string) string {
	if value, ok := claims[key].(string); ok {
		return value
	}
	return ""
}

func claimBool(claims map[string]interface{}, key string) bool {
	switch value := claims[key].(type) {
	case bool:
		return value
	case string:
		return strings.EqualFold(value, "true")
	default:
		return false
	}
}
