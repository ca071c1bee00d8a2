package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	promclient "github.com/prometheus/client_model/go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-tasks-api/internal/observability"
)

const testSecret = "test-secret"

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func TestJWTProtectedStoresSubjectAndRole(t *testing.T) {
	app := fiber.New()
	app.Get("/me", JWTProtected(testSecret), func(c *fiber.Ctx) error {
		if c.Locals("user_id") != uint(42) || c.Locals("user_role") != "teacher" {
			return c.SendStatus(fiber.StatusInternalServerError)
		}
		return c.SendStatus(fiber.StatusNoContent)
	})

	cases := map[string]struct {
		header string
		status int
	}{
		"valid": {
			header: "Bearer " + signToken(t, jwt.MapClaims{"sub": "42", "role": "Teacher", "exp": time.Now().Add(time.Hour).Unix()}),
			status: fiber.StatusNoContent,
		},
		"roles array": {
			header: "Bearer " + signToken(t, jwt.MapClaims{"user_id": 42, "roles": []string{"teacher"}}),
			status: fiber.StatusNoContent,
		},
		"missing header": {status: fiber.StatusUnauthorized},
		"wrong scheme":   {header: "Basic abc", status: fiber.StatusUnauthorized},
		"no subject": {
			header: "Bearer " + signToken(t, jwt.MapClaims{"role": "teacher"}),
			status: fiber.StatusUnauthorized,
		},
		"no role": {
			header: "Bearer " + signToken(t, jwt.MapClaims{"sub": "42"}),
			status: fiber.StatusUnauthorized,
		},
		"expired": {
			header: "Bearer " + signToken(t, jwt.MapClaims{"sub": "42", "role": "teacher", "exp": time.Now().Add(-time.Hour).Unix()}),
			status: fiber.StatusUnauthorized,
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			require.Equal(t, tc.status, resp.StatusCode)
		})
	}
}

func TestCorrelationIDReusesOrReplacesIncomingValue(t *testing.T) {
	app := fiber.New()
	app.Use(CorrelationID())
	app.Get("/", func(c *fiber.Ctx) error {
		if GetCorrelationID(c) != CorrelationIDFromContext(c.UserContext()) {
			return c.SendStatus(fiber.StatusInternalServerError)
		}
		return c.SendStatus(fiber.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "req-123")
	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "req-123", resp.Header.Get("X-Correlation-ID"))

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Correlation-ID", strings.Repeat("x", maxCorrelationIDLength+1))
	resp, err = app.Test(req)
	require.NoError(t, err)
	generated := resp.Header.Get("X-Correlation-ID")
	require.Len(t, generated, 36)
}

func TestObservabilityCountsRequestsByRouteTemplate(t *testing.T) {
	app := fiber.New()
	logger := zerolog.Nop()
	Register(app, Config{Logger: &logger})
	app.Get("/tasks/:taskId", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNotFound)
	})

	counter := observability.HTTPRequests().WithLabelValues(http.MethodGet, "/tasks/:taskId", "404")
	before := counterValue(t, counter)

	for _, id := range []string{"1", "2"} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/tasks/"+id, nil))
		require.NoError(t, err)
		require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
		require.NotEmpty(t, resp.Header.Get("X-Correlation-ID"))
	}

	require.Equal(t, before+2, counterValue(t, counter))
}

func counterValue(t *testing.T, counter prometheus.Counter) float64 {
	t.Helper()
	var metric promclient.Metric
	require.NoError(t, counter.Write(&metric))
	return metric.GetCounter().GetValue()
}
