package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Ananth-NQI/segurobot-backend/internal/cache"
	"github.com/Ananth-NQI/segurobot-backend/internal/config"
	"github.com/Ananth-NQI/segurobot-backend/internal/flows"
	"github.com/Ananth-NQI/segurobot-backend/internal/handlers"
	"github.com/Ananth-NQI/segurobot-backend/internal/logger"
	"github.com/Ananth-NQI/segurobot-backend/internal/services"
	"github.com/Ananth-NQI/segurobot-backend/internal/storage"
	"github.com/gofiber/fiber/v2"
)

type discardSender struct{}

func (discardSender) SendText(ctx context.Context, to, text string) error { return nil }

func (discardSender) SendOptionList(ctx context.Context, to string, list services.OptionList) error {
	return nil
}

func newApp(t *testing.T, cfg *config.Config) *fiber.App {
	t.Helper()
	log := logger.Nop()
	sessions := services.NewSessionManager(nil, log)
	avail := services.NewAvailability(sessions, log)
	t.Cleanup(avail.Stop)
	store := storage.NewMemoryStore()
	dedup := cache.NewDedupCache(time.Minute)

	router, err := flows.NewFlowRouter(&flows.Deps{
		Sessions:     sessions,
		Sender:       discardSender{},
		Availability: avail,
		Exporter:     services.NewStoreExporter(store),
		Store:        store,
		Dedup:        dedup,
		Catalog:      flows.DefaultCatalog(),
		Log:          log,
	}, flows.DefaultRegistry())
	if err != nil {
		t.Fatalf("NewFlowRouter failed: %v", err)
	}

	app := fiber.New()
	SetupRoutes(app, cfg, Handlers{
		WhatsApp: handlers.NewWhatsAppHandler(router, sessions, log),
		Admin:    handlers.NewAdminHandler(sessions, avail, store, dedup, log),
		Health:   handlers.NewHealthHandler("test", nil, sessions, false),
	}, log)
	return app
}

func status(t *testing.T, app *fiber.App, req *http.Request) int {
	t.Helper()
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	return resp.StatusCode
}

func TestProductionRoutes(t *testing.T) {
	app := newApp(t, &config.Config{
		Environment: "production",
		AdminToken:  "s3cret",
		Twilio:      config.TwilioConfig{AuthToken: "tok", ValidateSignature: true},
	})

	if got := status(t, app, httptest.NewRequest(http.MethodGet, "/health", nil)); got != fiber.StatusOK {
		t.Errorf("health: expected 200, got %d", got)
	}

	req := httptest.NewRequest(http.MethodPost, "/test/whatsapp", strings.NewReader(`{"from":"+55","message":"oi"}`))
	req.Header.Set("Content-Type", "application/json")
	if got := status(t, app, req); got != fiber.StatusNotFound {
		t.Errorf("test endpoint must not exist in production, got %d", got)
	}

	req = httptest.NewRequest(http.MethodPost, "/webhook/whatsapp", strings.NewReader("From=whatsapp%3A%2B55&Body=oi"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if got := status(t, app, req); got != fiber.StatusUnauthorized {
		t.Errorf("unsigned webhook: expected 401, got %d", got)
	}

	if got := status(t, app, httptest.NewRequest(http.MethodGet, "/admin/stats", nil)); got != fiber.StatusUnauthorized {
		t.Errorf("admin without token: expected 401, got %d", got)
	}
	req = httptest.NewRequest(http.MethodGet, "/admin/stats", nil)
	req.Header.Set("X-Admin-Token", "s3cret")
	if got := status(t, app, req); got != fiber.StatusOK {
		t.Errorf("admin with token: expected 200, got %d", got)
	}
}

func TestDevelopmentRoutes(t *testing.T) {
	app := newApp(t, &config.Config{Environment: "development"})

	req := httptest.NewRequest(http.MethodPost, "/webhook/whatsapp", strings.NewReader("MessageSid=SM1&From=whatsapp%3A%2B5511999990001&Body=oi"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if got := status(t, app, req); got != fiber.StatusOK {
		t.Errorf("webhook without validation: expected 200, got %d", got)
	}

	req = httptest.NewRequest(http.MethodPost, "/test/whatsapp", strings.NewReader(`{"from":"+5511999990002","message":"oi"}`))
	req.Header.Set("Content-Type", "application/json")
	if got := status(t, app, req); got != fiber.StatusOK {
		t.Errorf("test endpoint: expected 200, got %d", got)
	}

	if got := status(t, app, httptest.NewRequest(http.MethodGet, "/admin/sessions", nil)); got != fiber.StatusOK {
		t.Errorf("admin open in development: expected 200, got %d", got)
	}
}
