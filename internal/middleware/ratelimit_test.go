package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func TestRateLimiter_DisabledPassesThrough(t *testing.T) {
	rl := NewRateLimiter(nil, nil)
	if rl.Enabled() {
		t.Fatal("limiter without redis must be disabled")
	}

	app := fiber.New()
	app.Post("/submit", rl.SubmitLimit(1), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusAccepted)
	})

	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest("POST", "/submit", nil), -1)
		if err != nil {
			t.Fatal(err)
		}
		if resp.StatusCode != fiber.StatusAccepted {
			t.Errorf("request %d: status %d", i, resp.StatusCode)
		}
		if resp.Header.Get("X-RateLimit-Limit") != "" {
			t.Error("disabled limiter must not set headers")
		}
	}
}

func TestRateLimiter_NilReceiver(t *testing.T) {
	var rl *RateLimiter
	app := fiber.New()
	app.Get("/", rl.Limit("x", 1, 0), func(c *fiber.Ctx) error { return c.SendString("ok") })

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil), -1)
	if err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestKey(t *testing.T) {
	if got := Key("submit", "10.0.0.1"); got != "ratelimit:submit:10.0.0.1" {
		t.Errorf("Key() = %q", got)
	}
}
