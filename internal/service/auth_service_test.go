package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/idtoken"
	"gorm.io/gorm"

	"github.com/mitcstore/mitc-api/internal/dto"
	"github.com/mitcstore/mitc-api/internal/models"
	"github.com/mitcstore/mitc-api/internal/repository"
)

const testJWTSecret = "test-secret"

type stubGoogleVerifier struct {
	payload *idtoken.Payload
	err     error
}

func (s stubGoogleVerifier) Validate(context.Context, string, string) (*idtoken.Payload, error) {
	return s.payload, s.err
}

type recordingNotifier struct {
	mu    sync.Mutex
	users []string
}

func (n *recordingNotifier) IdentityChanged(_ context.Context, userID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.users = append(n.users, userID)
}

func (n *recordingNotifier) changed() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.users...)
}

type authFixture struct {
	service  AuthService
	db       *gorm.DB
	redis    *miniredis.Miniredis
	notifier *recordingNotifier
}

func newAuthFixture(t *testing.T, verifier GoogleVerifier) authFixture {
	t.Helper()
	db := setupServiceDB(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	notifier := &recordingNotifier{}

	svc := NewAuthService(
		repository.NewUserRepository(db),
		repository.NewCredentialRepository(db),
		repository.NewProductRepository(db),
		client,
		verifier,
		notifier,
		validator.New(),
		AuthConfig{
			JWTSecret:      testJWTSecret,
			TokenTTL:       time.Hour,
			ResetTTL:       10 * time.Minute,
			AdminEmail:     "Owner@Example.com",
			GoogleClientID: "client-id",
		},
		zerolog.Nop(),
	)
	return authFixture{service: svc, db: db, redis: mr, notifier: notifier}
}

func signUp(t *testing.T, svc AuthService, email string) dto.AuthResponse {
	t.Helper()
	resp, err := svc.SignUp(context.Background(), dto.SignUpRequest{Name: "Asha Rao", Email: email, Password: "Secret123"})
	require.NoError(t, err)
	return resp
}

func parseClaims(t *testing.T, token string) jwt.MapClaims {
	t.Helper()
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(testJWTSecret), nil
	})
	require.NoError(t, err)
	return claims
}

func TestAuthServiceSignUpAndSignIn(t *testing.T) {
	fx := newAuthFixture(t, nil)
	ctx := context.Background()

	resp := signUp(t, fx.service, "Asha@Example.com")
	require.Equal(t, "asha@example.com", resp.User.Email)
	require.Equal(t, models.RoleUser, resp.User.Role)
	require.Empty(t, resp.User.LikedProducts)

	claims := parseClaims(t, resp.Token)
	require.Equal(t, resp.User.UID, claims["sub"])
	require.Equal(t, models.RoleUser, claims["role"])
	require.NotEmpty(t, claims["jti"])

	signedIn, err := fx.service.SignIn(ctx, dto.SignInRequest{Email: "asha@example.com", Password: "Secret123"})
	require.NoError(t, err)
	require.Equal(t, resp.User.UID, signedIn.User.UID)

	_, err = fx.service.SignIn(ctx, dto.SignInRequest{Email: "asha@example.com", Password: "wrong-pass"})
	require.ErrorIs(t, err, ErrUnauthenticated)

	_, err = fx.service.SignIn(ctx, dto.SignInRequest{Email: "nobody@example.com", Password: "Secret123"})
	require.ErrorIs(t, err, ErrUnauthenticated)
}

func TestAuthServiceSignUpValidation(t *testing.T) {
	fx := newAuthFixture(t, nil)
	ctx := context.Background()

	_, err := fx.service.SignUp(ctx, dto.SignUpRequest{Name: "Asha", Email: "not-an-email", Password: "Secret123"})
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Contains(t, validationErr.Fields, "email")

	_, err = fx.service.SignUp(ctx, dto.SignUpRequest{Name: "Asha", Email: "asha@example.com", Password: "lowercase1"})
	require.ErrorAs(t, err, &validationErr)
	require.Contains(t, validationErr.Fields["password"], "Password must contain at least one uppercase letter")
	require.ErrorIs(t, err, ErrInvalidArgument)

	signUp(t, fx.service, "asha@example.com")
	_, err = fx.service.SignUp(ctx, dto.SignUpRequest{Name: "Asha", Email: "asha@example.com", Password: "Secret123"})
	require.ErrorAs(t, err, &validationErr)
	require.Contains(t, validationErr.Fields, "email")
}

func TestAuthServiceSignOutRevokesToken(t *testing.T) {
	fx := newAuthFixture(t, nil)
	ctx := context.Background()

	resp := signUp(t, fx.service, "asha@example.com")
	jti := parseClaims(t, resp.Token)["jti"].(string)

	revoked, err := fx.service.IsRevoked(ctx, jti)
	require.NoError(t, err)
	require.False(t, revoked)

	require.NoError(t, fx.service.SignOut(ctx, resp.User.UID, jti, resp.ExpiresAt))
	revoked, err = fx.service.IsRevoked(ctx, jti)
	require.NoError(t, err)
	require.True(t, revoked)

	fx.redis.FastForward(2 * time.Hour)
	revoked, err = fx.service.IsRevoked(ctx, jti)
	require.NoError(t, err)
	require.False(t, revoked)
}

func TestAuthServicePasswordReset(t *testing.T) {
	fx := newAuthFixture(t, nil)
	ctx := context.Background()
	signUp(t, fx.service, "asha@example.com")

	token, err := fx.service.RequestPasswordReset(ctx, dto.PasswordResetRequest{Email: "nobody@example.com"})
	require.NoError(t, err)
	require.Empty(t, token)

	token, err = fx.service.RequestPasswordReset(ctx, dto.PasswordResetRequest{Email: "asha@example.com"})
	require.NoError(t, err)
	require.NotEmpty(t, token)

	err = fx.service.ConfirmPasswordReset(ctx, dto.PasswordResetConfirmRequest{Token: token, Password: "weakpassword"})
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Contains(t, validationErr.Fields, "password")

	require.NoError(t, fx.service.ConfirmPasswordReset(ctx, dto.PasswordResetConfirmRequest{Token: token, Password: "NewSecret456"}))

	err = fx.service.ConfirmPasswordReset(ctx, dto.PasswordResetConfirmRequest{Token: token, Password: "NewSecret456"})
	require.ErrorAs(t, err, &validationErr)
	require.Contains(t, validationErr.Fields, "token")

	_, err = fx.service.SignIn(ctx, dto.SignInRequest{Email: "asha@example.com", Password: "Secret123"})
	require.ErrorIs(t, err, ErrUnauthenticated)
	_, err = fx.service.SignIn(ctx, dto.SignInRequest{Email: "asha@example.com", Password: "NewSecret456"})
	require.NoError(t, err)
}

func TestAuthServiceResolveRoleAndBootstrap(t *testing.T) {
	fx := newAuthFixture(t, nil)
	ctx := context.Background()

	role, err := fx.service.ResolveRole(ctx, "missing")
	require.NoError(t, err)
	require.Equal(t, models.RoleGuest, role)

	owner := signUp(t, fx.service, "owner@example.com")
	shopper := signUp(t, fx.service, "shopper@example.com")

	_, err = fx.service.BootstrapAdmin(ctx, Identity{UserID: shopper.User.UID, Role: models.RoleUser})
	require.ErrorIs(t, err, ErrPermissionDenied)

	promoted, err := fx.service.BootstrapAdmin(ctx, Identity{UserID: owner.User.UID, Role: models.RoleUser})
	require.NoError(t, err)
	require.Equal(t, models.RoleAdmin, promoted.Role)

	role, err = fx.service.ResolveRole(ctx, owner.User.UID)
	require.NoError(t, err)
	require.Equal(t, models.RoleAdmin, role)
	require.Equal(t, []string{owner.User.UID}, fx.notifier.changed())

	_, err = fx.service.BootstrapAdmin(ctx, Identity{})
	require.ErrorIs(t, err, ErrUnauthenticated)
}

func TestAuthServiceChangeRoleAndListUsers(t *testing.T) {
	fx := newAuthFixture(t, nil)
	ctx := context.Background()

	owner := signUp(t, fx.service, "owner@example.com")
	shopper := signUp(t, fx.service, "shopper@example.com")
	actor := Identity{UserID: owner.User.UID, Role: models.RoleAdmin}

	_, err := fx.service.ChangeRole(ctx, Identity{UserID: shopper.User.UID, Role: models.RoleUser}, owner.User.UID, dto.RoleUpdateRequest{Role: models.RoleGuest})
	require.ErrorIs(t, err, ErrPermissionDenied)

	_, err = fx.service.ChangeRole(ctx, actor, owner.User.UID, dto.RoleUpdateRequest{Role: models.RoleUser})
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = fx.service.ChangeRole(ctx, actor, shopper.User.UID, dto.RoleUpdateRequest{Role: "superuser"})
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, err = fx.service.ChangeRole(ctx, actor, "missing", dto.RoleUpdateRequest{Role: models.RoleGuest})
	require.ErrorIs(t, err, ErrNotFound)

	updated, err := fx.service.ChangeRole(ctx, actor, shopper.User.UID, dto.RoleUpdateRequest{Role: "Guest"})
	require.NoError(t, err)
	require.Equal(t, models.RoleGuest, updated.Role)

	guests, err := fx.service.ListUsers(ctx, actor, dto.UserListQuery{Role: models.RoleGuest})
	require.NoError(t, err)
	require.Len(t, guests, 1)
	require.Equal(t, shopper.User.UID, guests[0].UID)

	_, err = fx.service.ListUsers(ctx, Identity{UserID: shopper.User.UID, Role: models.RoleGuest}, dto.UserListQuery{})
	require.ErrorIs(t, err, ErrPermissionDenied)
}

func TestAuthServiceProfileAndLikes(t *testing.T) {
	fx := newAuthFixture(t, nil)
	ctx := context.Background()

	resp := signUp(t, fx.service, "asha@example.com")
	identity := Identity{UserID: resp.User.UID, Role: models.RoleUser}

	me, err := fx.service.Me(ctx, identity)
	require.NoError(t, err)
	require.NotNil(t, me.LastSeen)

	badPhone := "12345"
	_, err = fx.service.UpdateProfile(ctx, identity, dto.ProfileUpdateRequest{Phone: &badPhone})
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Contains(t, validationErr.Fields, "phone")

	phone := "98765 43210"
	name := "Asha R"
	updated, err := fx.service.UpdateProfile(ctx, identity, dto.ProfileUpdateRequest{Phone: &phone, Name: &name})
	require.NoError(t, err)
	require.Equal(t, "Asha R", updated.Name)
	require.Equal(t, "+91 98765 43210", updated.Phone)

	product := models.Product{Title: "ThinkPad X1", Brand: "Lenovo", PriceLow: 50000, PriceHigh: 60000, Status: models.ProductStatusPublished}
	require.NoError(t, fx.db.Create(&product).Error)

	_, err = fx.service.LikeProduct(ctx, identity, product.ID+100)
	require.ErrorIs(t, err, ErrNotFound)

	liked, err := fx.service.LikeProduct(ctx, identity, product.ID)
	require.NoError(t, err)
	require.Equal(t, []uint{product.ID}, liked.LikedProducts)

	liked, err = fx.service.LikeProduct(ctx, identity, product.ID)
	require.NoError(t, err)
	require.Len(t, liked.LikedProducts, 1)

	favorites, err := fx.service.Favorites(ctx, identity)
	require.NoError(t, err)
	require.Len(t, favorites, 1)
	require.Equal(t, "ThinkPad X1", favorites[0].Title)

	unliked, err := fx.service.UnlikeProduct(ctx, identity, product.ID)
	require.NoError(t, err)
	require.Empty(t, unliked.LikedProducts)
}

func TestAuthServiceGoogleSignIn(t *testing.T) {
	verifier := stubGoogleVerifier{payload: &idtoken.Payload{
		Subject: "google-sub-1",
		Claims: map[string]interface{}{
			"email":          "Maya@Example.com",
			"email_verified": true,
			"name":           "Maya",
			"picture":        "https://example.com/maya.png",
		},
	}}
	fx := newAuthFixture(t, verifier)
	ctx := context.Background()

	first, err := fx.service.SignInWithGoogle(ctx, dto.GoogleSignInRequest{IDToken: "token"})
	require.NoError(t, err)
	require.Equal(t, "maya@example.com", first.User.Email)
	require.Equal(t, "Maya", first.User.Name)
	require.Equal(t, models.RoleUser, first.User.Role)

	second, err := fx.service.SignInWithGoogle(ctx, dto.GoogleSignInRequest{IDToken: "token"})
	require.NoError(t, err)
	require.Equal(t, first.User.UID, second.User.UID)

	var count int64
	require.NoError(t, fx.db.Model(&models.Credential{}).Count(&count).Error)
	require.EqualValues(t, 1, count)

	_, err = fx.service.SignIn(ctx, dto.SignInRequest{Email: "maya@example.com", Password: "Secret123"})
	require.ErrorIs(t, err, ErrUnauthenticated)
}

func TestAuthServiceGoogleSignInRejected(t *testing.T) {
	fx := newAuthFixture(t, stubGoogleVerifier{err: errors.New("bad signature")})
	_, err := fx.service.SignInWithGoogle(context.Background(), dto.GoogleSignInRequest{IDToken: "token"})
	require.ErrorIs(t, err, ErrUnauthenticated)

	unverified := newAuthFixture(t, stubGoogleVerifier{payload: &idtoken.Payload{
		Subject: "sub",
		Claims:  map[string]interface{}{"email": "x@example.com", "email_verified": false},
	}})
	_, err = unverified.service.SignInWithGoogle(context.Background(), dto.GoogleSignInRequest{IDToken: "token"})
	require.ErrorIs(t, err, ErrUnauthenticated)
}

func TestAuthServiceRefreshIdentityFollowsRoleAndRevocation(t *testing.T) {
	fx := newAuthFixture(t, nil)
	ctx := context.Background()
	actor := Identity{UserID: "a1", Role: models.RoleAdmin}

	resp := signUp(t, fx.service, "asha@example.com")
	uid := resp.User.UID
	jti := parseClaims(t, resp.Token)["jti"].(string)

	identity, err := fx.service.RefreshIdentity(ctx, jti, uid)
	require.NoError(t, err)
	require.Equal(t, Identity{UserID: uid, Role: models.RoleUser}, identity)

	_, err = fx.service.ChangeRole(ctx, actor, uid, dto.RoleUpdateRequest{Role: models.RoleAdmin})
	require.NoError(t, err)
	identity, err = fx.service.RefreshIdentity(ctx, jti, uid)
	require.NoError(t, err)
	require.True(t, identity.IsAdmin())

	require.NoError(t, fx.service.SignOut(ctx, uid, jti, resp.ExpiresAt))
	_, err = fx.service.RefreshIdentity(ctx, jti, uid)
	require.ErrorIs(t, err, ErrUnauthenticated)

	require.Equal(t, []string{uid, uid}, fx.notifier.changed())
}

func TestAuthServiceRefreshIdentityRejectsDeletedProfile(t *testing.T) {
	fx := newAuthFixture(t, nil)
	ctx := context.Background()

	resp := signUp(t, fx.service, "asha@example.com")
	jti := parseClaims(t, resp.Token)["jti"].(string)
	require.NoError(t, repository.NewUserRepository(fx.db).Delete(ctx, resp.User.UID))

	_, err := fx.service.RefreshIdentity(ctx, jti, resp.User.UID)
	require.ErrorIs(t, err, ErrUnauthenticated)
}
