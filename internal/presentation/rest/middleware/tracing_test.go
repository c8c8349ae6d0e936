package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace/noop"
)

func invokeTraced(t *testing.T, method, path string, next echo.HandlerFunc) (*httptest.ResponseRecorder, error) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath(path)

	handler := TracingMiddleware()(next)
	err := handler(c)
	return rec, err
}

func TestTracingMiddleware_SuccessfulRequest(t *testing.T) {
	otel.SetTracerProvider(noop.NewTracerProvider())

	rec, err := invokeTraced(t, http.MethodGet, "/api/v1/accounts/fan123/balance", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTracingMiddleware_RoutesAndMethods(t *testing.T) {
	otel.SetTracerProvider(noop.NewTracerProvider())

	testCases := []struct {
		method string
		path   string
		status int
	}{
		{http.MethodPost, "/webhooks/payment", http.StatusAccepted},
		{http.MethodPost, "/api/v1/shows", http.StatusCreated},
		{http.MethodPost, "/api/v1/sessions/sess_1/end", http.StatusOK},
		{http.MethodGet, "/api/v1/accounts/fan123/entries", http.StatusOK},
	}

	for _, tc := range testCases {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			rec, err := invokeTraced(t, tc.method, tc.path, func(c echo.Context) error {
				return c.String(tc.status, "response")
			})
			require.NoError(t, err)
			assert.Equal(t, tc.status, rec.Code)
		})
	}
}

func TestTracingMiddleware_RecordsError(t *testing.T) {
	otel.SetTracerProvider(noop.NewTracerProvider())

	handlerErr := errors.New("insufficient funds")
	_, err := invokeTraced(t, http.MethodPost, "/api/v1/shows/show_1/gifts", func(c echo.Context) error {
		return handlerErr
	})
	assert.ErrorIs(t, err, handlerErr)
}

func TestTracingMiddleware_HTTPError(t *testing.T) {
	otel.SetTracerProvider(noop.NewTracerProvider())

	rec, err := invokeTraced(t, http.MethodPost, "/api/v1/sessions", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusBadRequest, "bad request")
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTracingMiddleware_ExtractsTraceContext(t *testing.T) {
	tp := noop.NewTracerProvider()
	otel.SetTracerProvider(tp)

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/accounts/fan123/balance", nil)

	// 上流から伝播してきたtraceparentヘッダーを再現する
	propagator := propagation.TraceContext{}
	ctx, span := tp.Tracer("test").Start(req.Context(), "parent")
	defer span.End()
	propagator.Inject(ctx, propagation.HeaderCarrier(req.Header))

	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/api/v1/accounts/fan123/balance")

	handler := TracingMiddleware()(func(c echo.Context) error {
		assert.NotNil(t, c.Request().Context())
		return c.String(http.StatusOK, "ok")
	})

	require.NoError(t, handler(c))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTracingMiddleware_EmptyUserAgent(t *testing.T) {
	otel.SetTracerProvider(noop.NewTracerProvider())

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Del("User-Agent")
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/health")

	handler := TracingMiddleware()(func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	require.NoError(t, handler(c))
	assert.Equal(t, http.StatusOK, rec.Code)
}
