package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/saeid-a/CoachAppRealtime/pkg/utils"
)

func newAuthTestApp() *fiber.App {
	app := fiber.New()
	app.Get("/me", AuthRequired("secret"), func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"user_id": c.Locals("user_id"), "role": c.Locals("role")})
	})
	return app
}

func TestAuthRequired(t *testing.T) {
	member, err := utils.GenerateToken("m1", "member", "secret")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	admin, err := utils.GenerateToken("a1", "admin", "secret")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	foreign, err := utils.GenerateToken("m1", "member", "other")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	cases := []struct {
		name   string
		header string
		want   int
	}{
		{name: "missing", header: "", want: http.StatusUnauthorized},
		{name: "malformed", header: "Token " + member, want: http.StatusUnauthorized},
		{name: "wrong secret", header: "Bearer " + foreign, want: http.StatusUnauthorized},
		{name: "unsupported role", header: "Bearer " + admin, want: http.StatusForbidden},
		{name: "valid", header: "Bearer " + member, want: http.StatusOK},
	}

	app := newAuthTestApp()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("app.Test: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, resp.StatusCode)
			}
		})
	}
}
