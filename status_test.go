package accountcore

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{ErrValidation, http.StatusBadRequest},
		{ErrInvalidCredentials, http.StatusBadRequest},
		{ErrAccountLocked, http.StatusBadRequest},
		{ErrTokenInvalid, http.StatusBadRequest},
		{ErrTokenReplayed, http.StatusBadRequest},
		{ErrPasswordReuse, http.StatusBadRequest},
		{ErrPasswordMismatch, http.StatusBadRequest},
		{ErrPasswordPolicy, http.StatusBadRequest},
		{ErrTwoFactorNotEnabled, http.StatusBadRequest},
		{ErrTwoFactorInvalid, http.StatusBadRequest},
		{ErrForbidden, http.StatusForbidden},
		{ErrNotFound, http.StatusNotFound},
		{ErrConflict, http.StatusConflict},
		{ErrRateLimited, http.StatusTooManyRequests},
		{ErrUnavailable, http.StatusServiceUnavailable},
		{ErrEngineNotReady, http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
		{fmt.Errorf("wrapped: %w", ErrForbidden), http.StatusForbidden},
	}

	for _, tc := range cases {
		if got := HTTPStatus(tc.err); got != tc.want {
			t.Errorf("HTTPStatus(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestAuditErrorCodeIsStable(t *testing.T) {
	if got := auditErrorCode(nil); got != "" {
		t.Fatalf("expected empty code for nil, got %q", got)
	}
	if got := auditErrorCode(ErrInvalidCredentials); got != auditErrInvalidCredentials {
		t.Fatalf("unexpected code %q", got)
	}
	if got := auditErrorCode(errors.New("boom")); got != auditErrInternal {
		t.Fatalf("unexpected code %q", got)
	}
}
