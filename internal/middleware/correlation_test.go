package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestCorrelationIDPropagatesOrMintsIdentifier(t *testing.T) {
	app := fiber.New()
	app.Use(CorrelationID())
	app.Get("/ping", func(c *fiber.Ctx) error {
		if GetCorrelationID(c) != CorrelationIDFromContext(c.UserContext()) {
			return c.SendStatus(fiber.StatusInternalServerError)
		}
		return c.SendString(GetCorrelationID(c))
	})

	cases := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{"incoming correlation id", map[string]string{HeaderCorrelationID: "grade-run:42"}, "grade-run:42"},
		{"request id fallback", map[string]string{"X-Request-ID": "req-7"}, "req-7"},
		{"malformed id replaced", map[string]string{HeaderCorrelationID: "bad id <script>"}, ""},
		{"oversized id replaced", map[string]string{HeaderCorrelationID: strings.Repeat("a", maxCorrelationIDLength+1)}, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/ping", nil)
			for key, value := range tc.headers {
				req.Header.Set(key, value)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			require.Equal(t, fiber.StatusOK, resp.StatusCode)

			got := resp.Header.Get(HeaderCorrelationID)
			if tc.want != "" {
				require.Equal(t, tc.want, got)
				return
			}
			_, err = uuid.Parse(got)
			require.NoError(t, err, "a fresh identifier is minted")
		})
	}
}
