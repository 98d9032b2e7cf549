package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/mitcstore/mitc-api/internal/dto"
	"github.com/mitcstore/mitc-api/internal/handler"
	"github.com/mitcstore/mitc-api/internal/service"
)

type mockUploadService struct {
	lastIdentity service.Identity
	lastFolder   string
	lastBase64   string
	fileName     string
	response     dto.ImageUploadResponse
	err          error
}

func (m *mockUploadService) UploadFile(_ context.Context, identity service.Identity, file *multipart.FileHeader, folder string) (dto.ImageUploadResponse, error) {
	m.lastIdentity = identity
	m.lastFolder = folder
	m.fileName = file.Filename
	return m.response, m.err
}

func (m *mockUploadService) UploadBase64(_ context.Context, identity service.Identity, req dto.ImageUploadRequest) (dto.ImageUploadResponse, error) {
	m.lastIdentity = identity
	m.lastFolder = req.Folder
	m.lastBase64 = req.Base64
	return m.response, m.err
}

func newUploadApp(svc service.UploadService, uid, role string) *fiber.App {
	app := fiber.New()
	handler.NewUploadHandler(svc, zerolog.Nop()).Register(app.Group("/api/v1/admin/images", asUser(uid, role)))
	return app
}

func TestUploadHandlerMultipart(t *testing.T) {
	svc := &mockUploadService{response: dto.ImageUploadResponse{URL: "https://cdn.example.com/a.jpg", ImageID: "mitc/products/a", Bytes: 2048, Width: 800, Height: 600}}
	app := newUploadApp(svc, "a1", "admin")

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "laptop.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("png"))
	require.NoError(t, err)
	require.NoError(t, writer.WriteField("folder", "mitc/banners"))
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/admin/images", body)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, env := do(t, app, req)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	require.Equal(t, "upload successful", env.Message)
	require.Equal(t, "laptop.png", svc.fileName)
	require.Equal(t, "mitc/banners", svc.lastFolder)
	require.Equal(t, "a1", svc.lastIdentity.UserID)

	var data dto.ImageUploadResponse
	require.NoError(t, json.Unmarshal(env.Data, &data))
	require.Equal(t, svc.response, data)
}

func TestUploadHandlerBase64(t *testing.T) {
	svc := &mockUploadService{}
	app := newUploadApp(svc, "a1", "admin")

	resp, _ := do(t, app, jsonRequest(t, http.MethodPost, "/api/v1/admin/images", dto.ImageUploadRequest{Base64: "data:image/png;base64,AAAA"}))
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	require.Equal(t, "data:image/png;base64,AAAA", svc.lastBase64)
}

func TestUploadHandlerErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
	}{
		{name: "too large", err: service.ErrUploadTooLarge, status: fiber.StatusRequestEntityTooLarge},
		{name: "bad type", err: service.ErrUploadTypeNotAllowed, status: fiber.StatusBadRequest},
		{name: "not admin", err: service.ErrPermissionDenied, status: fiber.StatusForbidden},
		{name: "no storage", err: service.ErrUploadUnavailable, status: fiber.StatusServiceUnavailable},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := newUploadApp(&mockUploadService{err: tc.err}, "u1", "user")
			resp, env := do(t, app, jsonRequest(t, http.MethodPost, "/api/v1/admin/images", dto.ImageUploadRequest{Base64: "AAAA"}))
			require.Equal(t, tc.status, resp.StatusCode)
			require.False(t, env.Success)
		})
	}
}

func TestUploadHandlerRequiresSignIn(t *testing.T) {
	app := newUploadApp(&mockUploadService{}, "", "")
	resp, _ := do(t, app, jsonRequest(t, http.MethodPost, "/api/v1/admin/images", dto.ImageUploadRequest{Base64: "AAAA"}))
	require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}
