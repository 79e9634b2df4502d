package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sheikh-saqib/p2p-balance-ledger/internal/auth"
	"github.com/sheikh-saqib/p2p-balance-ledger/internal/metrics"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestAuth(t *testing.T) {
	issuer := auth.NewTokenIssuer("secret", time.Hour)
	valid, err := issuer.Issue("user-1", "ada@example.com")
	require.NoError(t, err)
	foreign, err := auth.NewTokenIssuer("other", time.Hour).Issue("user-1", "ada@example.com")
	require.NoError(t, err)

	r := gin.New()
	r.GET("/me", Auth(issuer), func(c *gin.Context) {
		id, ok := GetUserID(c)
		require.True(t, ok)
		c.JSON(http.StatusOK, gin.H{"id": id})
	})

	tests := []struct {
		name           string
		header         string
		expectedStatus int
	}{
		{"valid token", "Bearer " + valid, http.StatusOK},
		{"missing header", "", http.StatusForbidden},
		{"wrong scheme", "Basic " + valid, http.StatusForbidden},
		{"empty token", "Bearer ", http.StatusForbidden},
		{"foreign signature", "Bearer " + foreign, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			if tt.expectedStatus == http.StatusOK {
				assert.Equal(t, "user-1", body["id"])
			} else {
				assert.NotEmpty(t, body["msg"])
			}
		})
	}
}

func TestValidateRequest(t *testing.T) {
	type request struct {
		Username string `json:"username" validate:"required,email"`
		Password string `json:"password" validate:"required,min=5"`
	}

	assert.Nil(t, ValidateRequest(request{Username: "ada@example.com", Password: "secret"}))

	errs := ValidateRequest(request{Username: "not-an-email", Password: "abc"})
	require.Len(t, errs, 2)
	assert.Equal(t, "Username", errs[0].Field)
	assert.Equal(t, "email", errs[0].Type)
	assert.Equal(t, "Password", errs[1].Field)
	assert.Equal(t, "Must be at least 5 characters", errs[1].Message)
}

func TestAccessLogCountsRequests(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	m := metrics.New(nil)

	r := gin.New()
	r.Use(AccessLog(zap.New(core), m))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	for _, path := range []string{"/health", "/health", "/boom", "/nowhere"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, float64(2), testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/health", "200")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/boom", "500")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "unmatched", "404")))

	assert.Equal(t, 4, logs.FilterMessage("request served").Len())
	assert.Equal(t, 1, logs.FilterLevelExact(zap.ErrorLevel).Len())
}

func TestRateLimit(t *testing.T) {
	limiter := NewIPRateLimiter(1, 2)
	now := time.Unix(1_700_000_000, 0)
	limiter.now = func() time.Time { return now }

	r := gin.New()
	r.POST("/signin", RateLimit(limiter), func(c *gin.Context) { c.Status(http.StatusOK) })

	send := func(ip string) int {
		req := httptest.NewRequest(http.MethodPost, "/signin", nil)
		req.RemoteAddr = ip + ":1234"
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, send("10.0.0.1"))
	assert.Equal(t, http.StatusOK, send("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, send("10.0.0.1"))
	assert.Equal(t, http.StatusOK, send("10.0.0.2"), "limits are per client")

	now = now.Add(time.Second)
	assert.Equal(t, http.StatusOK, send("10.0.0.1"))
}

func TestRateLimiterSweep(t *testing.T) {
	limiter := NewIPRateLimiter(1, 1)
	now := time.Unix(1_700_000_000, 0)
	limiter.now = func() time.Time { return now }

	limiter.Allow("10.0.0.1")
	now = now.Add(limiter.ttl + time.Second)
	limiter.Allow("10.0.0.2")
	limiter.Sweep()

	assert.NotContains(t, limiter.visitors, "10.0.0.1")
	assert.Contains(t, limiter.visitors, "10.0.0.2")
}
