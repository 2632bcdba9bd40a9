package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestWrapAndUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := Storage("blob fetch failed", cause)

	if !errors.Is(err, cause) {
		t.Error("wrapped cause not reachable via errors.Is")
	}
	if err.StatusCode() != http.StatusBadGateway {
		t.Errorf("StatusCode = %d", err.StatusCode())
	}
	if err.Code() != CodeStorageError {
		t.Errorf("Code = %s", err.Code())
	}
}

func TestCodeChecks(t *testing.T) {
	nf := fmt.Errorf("lookup: %w", NotFound("user"))
	if !IsNotFound(nf) {
		t.Error("IsNotFound failed through wrapping")
	}
	if IsConflict(nf) {
		t.Error("IsConflict matched a not-found error")
	}
	if !IsConflict(Conflict("pointer moved")) {
		t.Error("IsConflict failed")
	}
	if IsNotFound(errors.New("plain")) {
		t.Error("IsNotFound matched a plain error")
	}
}
