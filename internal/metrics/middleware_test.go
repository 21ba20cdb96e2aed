package metrics

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMiddleware(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		status  string
	}{
		{
			name:    "implicit ok",
			handler: func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("ok")) },
			status:  "200",
		},
		{
			name:    "explicit status",
			handler: func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusServiceUnavailable) },
			status:  "503",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			counter := EndpointResponses.WithLabelValues("/test", tt.status)
			before := testutil.ToFloat64(counter)

			rec := httptest.NewRecorder()
			Middleware(tt.handler, "/test").ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/test", nil))

			assert.Equal(t, tt.status, strconv.Itoa(rec.Code))
			assert.Equal(t, before+1, testutil.ToFloat64(counter))
		})
	}
}
