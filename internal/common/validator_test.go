package common

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
)

type projectParams struct {
	ProjectID string `validate:"required,uuid"`
	Name      string `validate:"max=5"`
}

func TestGenericEchoValidator(t *testing.T) {
	v := &GenericEchoValidator{}

	if err := v.Validate(&projectParams{ProjectID: "3f0e3c52-9f2a-4b7e-a1d4-2f0b8d1c0e11"}); err != nil {
		t.Fatalf("expected valid params, got %v", err)
	}

	err := v.Validate(&projectParams{ProjectID: "not-a-uuid", Name: "too long"})
	var httpErr *echo.HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("expected *echo.HTTPError, got %T", err)
	}
	if httpErr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", httpErr.Code)
	}
	msg, _ := httpErr.Message.(string)
	if !strings.Contains(msg, "projectID: failed uuid") || !strings.Contains(msg, "name: failed max") {
		t.Errorf("unexpected message %q", msg)
	}
}
