package contract_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/stretchr/testify/require"

	"github.com/mitcstore/mitc-api/internal/dto"
	"github.com/mitcstore/mitc-api/internal/handler"
	"github.com/mitcstore/mitc-api/internal/middleware"
	"github.com/mitcstore/mitc-api/internal/models"
	"github.com/mitcstore/mitc-api/internal/service"
	"github.com/mitcstore/mitc-api/internal/utils"
)

type apiDocument struct {
	Paths      map[string]map[string]json.RawMessage `json:"paths"`
	Components struct {
		Schemas map[string]json.RawMessage `json:"schemas"`
	} `json:"components"`
}

func TestStoreAPIDocumentIncludesEndpoints(t *testing.T) {
	doc := loadAPIDocument(t, "docs/api/store.json")

	requiredPaths := []string{
		"/api/v1/health",
		"/api/v1/auth/signup",
		"/api/v1/auth/login",
		"/api/v1/me/delete",
		"/api/v1/products",
		"/api/v1/reviews",
		"/api/v1/chat/ws",
		"/api/v1/chat/threads",
		"/api/v1/chat/threads/{id}/messages",
		"/api/v1/admin/chat/threads/{id}/messages/{messageId}",
		"/api/v1/admin/images",
		"/api/v1/admin/users/{uid}",
		"/api/v1/admin/analytics",
	}

	for _, path := range requiredPaths {
		if _, ok := doc.Paths[path]; !ok {
			t.Fatalf("expected API document to contain path %s", path)
		}
	}

	for _, schema := range []string{"Envelope", "Thread", "Message", "ClientFrame", "ThreadsFrame", "MessagesFrame", "ActiveThreadFrame", "ErrorFrame"} {
		if _, ok := doc.Components.Schemas[schema]; !ok {
			t.Fatalf("expected API document to contain schema %s", schema)
		}
	}
}

func TestChatFramesContract(t *testing.T) {
	schema := compileContract(t, "chat_frames.schema.json")

	thread := models.Thread{
		ID:                "t-1",
		Status:            models.ThreadStatusOpen,
		CreatedAt:         1000,
		LastMessageText:   "hi",
		LastMessageSender: "a1",
		LastMessageAt:     1000,
		Participants:      []models.ThreadParticipant{{UserID: "u1"}},
	}
	messages := []models.Message{
		{ID: 1, ThreadID: "t-1", SenderID: "u1", Text: "hello", Timestamp: 1000, Type: models.MessageTypeText},
		{ID: 2, ThreadID: "t-1", SenderID: "u1", Text: models.RedactedMessageText, Timestamp: 1001, Deleted: true, Type: models.MessageTypeText},
	}

	frames := []dto.Frame{
		dto.NewThreadsFrame(nil),
		dto.NewThreadsFrame(dto.NewThreadResponseSlice([]models.Thread{thread, {ID: "t-2", Status: models.ThreadStatusClosed}})),
		dto.NewMessagesFrame("t-1", dto.NewMessageResponseSlice(messages)),
		dto.NewActiveThreadFrame(""),
		dto.NewActiveThreadFrame("t-1"),
		dto.NewErrorFrame(service.ErrorCode(service.ErrUnauthenticated), "authentication required"),
		dto.NewErrorFrame(service.ErrorCode(service.ErrRateLimited), "rate limit exceeded"),
	}

	for _, frame := range frames {
		require.NoError(t, schema.Validate(toDocument(t, frame)), "frame %s", frame.FrameType())
	}

	invalid := []interface{}{
		dto.NewErrorFrame("teapot", "short and stout"),
		dto.NewMessagesFrame("", nil),
		map[string]interface{}{"threads": []interface{}{}},
	}
	for _, frame := range invalid {
		require.Error(t, schema.Validate(toDocument(t, frame)))
	}
}

type stubAnalyticsService struct {
	response dto.AnalyticsSummaryResponse
}

func (s stubAnalyticsService) TrackVisit(context.Context, dto.VisitRequest, service.VisitMeta) {}

func (s stubAnalyticsService) Summary(_ context.Context, identity service.Identity, _ dto.AnalyticsQuery) (dto.AnalyticsSummaryResponse, error) {
	if !identity.IsAdmin() {
		return dto.AnalyticsSummaryResponse{}, service.ErrPermissionDenied
	}
	return s.response, nil
}

func TestAdminAnalyticsContract(t *testing.T) {
	schema := compileContract(t, "admin_analytics.schema.json")

	now := time.Now().UTC()
	summary := dto.AnalyticsSummaryResponse{
		Days: 30,
		Products: dto.ProductAnalytics{
			Total:     3,
			Published: 2,
			Draft:     1,
			LowStock:  1,
			TopViewed: []dto.ProductResponse{{
				ID:          4,
				Title:       "Precision Balance",
				PriceLabel:  utils.FormatCurrency(150000),
				StockStatus: utils.StockStatus(3, 5),
				Views:       42,
				Gallery:     []models.ProductImage{},
			}},
		},
		Users:    dto.UserAnalytics{Total: 5, Admins: 1, Users: 4, NewUsers: 2},
		Reviews:  dto.ReviewAnalytics{Total: 4, Approved: 3, Pending: 1, AverageRating: 4.5},
		Visitors: dto.VisitorAnalytics{Total: 9, UniqueVisitors: 4, Mobile: 5, Desktop: 4, Daily: map[string]int64{now.Format("2006-01-02"): 9}},
		Leads: dto.LeadAnalytics{
			Total: 1,
			New:   1,
			Recent: []dto.LeadResponse{{
				ID: 1, Name: "Asha", Email: "asha@example.com", Message: "Need a quote",
				Status: models.LeadStatusNew, Tags: []string{}, CreatedAt: now,
			}},
		},
		GeneratedAt: now,
	}

	analytics := handler.NewAnalyticsHandler(stubAnalyticsService{response: summary}, zerolog.Nop())

	app := fiber.New()
	analytics.RegisterAdmin(app.Group("/api/v1/admin/analytics", func(c *fiber.Ctx) error {
		c.Locals(middleware.LocalUserID, "admin-1")
		c.Locals(middleware.LocalUserRole, models.RoleAdmin)
		return c.Next()
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/analytics?days=30", nil)
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var payload interface{}
	require.NoError(t, json.Unmarshal(body, &payload))
	require.NoError(t, schema.Validate(payload))
}

func compileContract(t *testing.T, name string) *jsonschema.Schema {
	t.Helper()
	schemaPath, err := filepath.Abs(filepath.Join("..", "contracts", name))
	require.NoError(t, err)

	compiler := jsonschema.NewCompiler()
	schema, err := compiler.Compile("file://" + filepath.ToSlash(schemaPath))
	require.NoError(t, err)
	return schema
}

func toDocument(t *testing.T, value interface{}) interface{} {
	t.Helper()
	raw, err := json.Marshal(value)
	require.NoError(t, err)
	var doc interface{}
	require.NoError(t, json.Unmarshal(raw, &doc))
	return doc
}

func loadAPIDocument(t *testing.T, relative string) apiDocument {
	t.Helper()
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatalf("failed to resolve caller")
	}
	base := filepath.Join(filepath.Dir(filename), "..", "..")
	fullPath := filepath.Join(base, relative)

	raw, err := os.ReadFile(fullPath)
	if err != nil {
		t.Fatalf("failed to read %s: %v", fullPath, err)
	}
	var doc apiDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("failed to unmarshal %s: %v", fullPath, err)
	}
	return doc
}
