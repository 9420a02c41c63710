package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCronSecret(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name       string
		configured string
		header     string
		wantStatus int
	}{
		{"valid secret", "s3cret", "s3cret", http.StatusOK},
		{"wrong secret", "s3cret", "nope", http.StatusUnauthorized},
		{"missing header", "s3cret", "", http.StatusUnauthorized},
		{"unconfigured secret rejects", "", "", http.StatusUnauthorized},
		{"unconfigured secret rejects match", "", "anything", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := CronSecret(tt.configured)(next)

			req := httptest.NewRequest(http.MethodPost, "/internal/run", nil)
			if tt.header != "" {
				req.Header.Set("X-Cron-Secret", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
		})
	}
}
