package unit

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"

	"github.com/mitcstore/mitc-api/internal/config"
	"github.com/mitcstore/mitc-api/internal/handler"
)

type response struct {
	Success bool                   `json:"success"`
	Data    handler.HealthResponse `json:"data"`
}

func callHealth(t *testing.T, cfg config.Config, deps map[string]handler.Pinger) (int, response) {
	t.Helper()

	app := fiber.New()
	app.Get("/api/v1/health", handler.HealthCheck(cfg, deps))

	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("failed to execute request: %v", err)
	}
	defer resp.Body.Close()

	var payload response
	assert.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	return resp.StatusCode, payload
}

func TestHealthCheck(t *testing.T) {
	cfg := config.Config{
		AppName: "MITC API",
		AppEnv:  "test",
	}

	status, payload := callHealth(t, cfg, nil)

	assert.Equal(t, fiber.StatusOK, status)
	assert.True(t, payload.Success)
	assert.Equal(t, "ok", payload.Data.Status)
	assert.Equal(t, cfg.AppName, payload.Data.Service)
	assert.Equal(t, cfg.AppEnv, payload.Data.Environment)
	assert.Empty(t, payload.Data.Dependencies)
	assert.WithinDuration(t, time.Now().UTC(), payload.Data.Timestamp, 2*time.Second)
}

func TestHealthCheckReportsDegradedDependency(t *testing.T) {
	deps := map[string]handler.Pinger{
		"database": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("connection refused") },
	}

	status, payload := callHealth(t, config.Config{AppName: "MITC API"}, deps)

	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "degraded", payload.Data.Status)
	assert.Equal(t, map[string]string{"database": "up", "redis": "down"}, payload.Data.Dependencies)
}
