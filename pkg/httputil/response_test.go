package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"key-manager-service/internal/domain"
)

func TestErrorFrom(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
		wantCode   string
	}{
		{err: domain.ErrBadParameters, wantStatus: http.StatusBadRequest, wantCode: "BAD_PARAMETERS"},
		{err: fmt.Errorf("wrapped: %w", domain.ErrShortBuffer), wantStatus: http.StatusUnprocessableEntity, wantCode: "SHORT_BUFFER"},
		{err: domain.ErrAccessDenied, wantStatus: http.StatusForbidden, wantCode: "ACCESS_DENIED"},
		{err: domain.ErrCorruptObject, wantStatus: http.StatusInternalServerError, wantCode: "CORRUPT_OBJECT"},
		{err: domain.ErrBadState, wantStatus: http.StatusConflict, wantCode: "BAD_STATE"},
		{err: domain.ErrNotSupported, wantStatus: http.StatusNotFound, wantCode: "NOT_SUPPORTED"},
		{err: errors.New("connection refused"), wantStatus: http.StatusInternalServerError, wantCode: "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.wantCode, func(t *testing.T) {
			rec := httptest.NewRecorder()
			ErrorFrom(rec, tt.err)

			if rec.Code != tt.wantStatus {
				t.Errorf("want status %d, got %d", tt.wantStatus, rec.Code)
			}
			var resp ErrorResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if resp.Code != tt.wantCode {
				t.Errorf("want code %s, got %s", tt.wantCode, resp.Code)
			}
			if resp.Message == "connection refused" {
				t.Error("internal error details must not be exposed")
			}
		})
	}
}
