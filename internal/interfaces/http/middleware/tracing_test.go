package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// tracedExecutions serves one execution route on a private tracer provider
func tracedExecutions(t *testing.T, enabled bool, status int) (*gin.Engine, *tracetest.SpanRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	t.Cleanup(func() { _ = tp.Shutdown(t.Context()) })

	r := gin.New()
	r.Use(RequestID(), Tracing(TracingConfig{ServiceName: "healthbudget", Enabled: enabled, Provider: tp}), SpanAttributes())
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/api/v1/executions/:id/submit", func(c *gin.Context) {
		c.JSON(status, gin.H{"id": c.Param("id")})
	})
	return r, sr
}

func attrsOf(span sdktrace.ReadOnlySpan) map[string]string {
	out := map[string]string{}
	for _, kv := range span.Attributes() {
		out[string(kv.Key)] = kv.Value.Emit()
	}
	return out
}

func TestTracing_Attributes(t *testing.T) {
	actor, execution := uuid.New(), uuid.New()

	tests := []struct {
		name   string
		id     string
		actor  string
		want   map[string]string
		absent []string
	}{
		{
			name:  "well-formed ids",
			id:    execution.String(),
			actor: actor.String(),
			want: map[string]string{
				"request_id":   "req-trace-1",
				"actor_id":     actor.String(),
				"aggregate_id": execution.String(),
			},
		},
		{
			name:   "malformed ids dropped",
			id:     "e-1",
			actor:  "<script>",
			want:   map[string]string{"request_id": "req-trace-1"},
			absent: []string{"actor_id", "aggregate_id"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, sr := tracedExecutions(t, true, http.StatusOK)
			req := httptest.NewRequest(http.MethodPost, "/api/v1/executions/"+tt.id+"/submit", nil)
			req.Header.Set(HeaderRequestID, "req-trace-1")
			req.Header.Set(HeaderUserID, tt.actor)
			r.ServeHTTP(httptest.NewRecorder(), req)

			spans := sr.Ended()
			require.Len(t, spans, 1)
			got := attrsOf(spans[0])
			for k, v := range tt.want {
				assert.Equal(t, v, got[k], k)
			}
			for _, k := range tt.absent {
				assert.NotContains(t, got, k)
			}
		})
	}
}

func TestTracing_SpanStatus(t *testing.T) {
	for status, want := range map[int]codes.Code{
		http.StatusOK:                  codes.Unset,
		http.StatusUnprocessableEntity: codes.Unset,
		http.StatusInternalServerError: codes.Error,
	} {
		r, sr := tracedExecutions(t, true, status)
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/executions/e-1/submit", nil))

		require.Len(t, sr.Ended(), 1, status)
		assert.Equal(t, want, sr.Ended()[0].Status().Code, status)
	}
}

func TestTracing_Skipped(t *testing.T) {
	t.Run("health probe", func(t *testing.T) {
		r, sr := tracedExecutions(t, true, http.StatusOK)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, sr.Ended())
	})

	t.Run("disabled", func(t *testing.T) {
		r, sr := tracedExecutions(t, false, http.StatusInternalServerError)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/executions/e-1/submit", nil))
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.Empty(t, sr.Ended())
	})
}
