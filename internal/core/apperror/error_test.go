package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestAppError_WrappingAndCodes(t *testing.T) {
	base := NewInsufficientStock("v1", "l1", 10, 5)
	wrapped := fmt.Errorf("adjust: %w", base)

	if !IsInsufficientStock(wrapped) {
		t.Error("expected code to survive wrapping")
	}
	if IsNotFound(wrapped) {
		t.Error("unexpected not-found match")
	}

	appErr, ok := AsAppError(wrapped)
	if !ok {
		t.Fatal("expected AppError in chain")
	}
	if appErr.HTTPStatus != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", appErr.HTTPStatus)
	}
	if appErr.Details["requested"] != int64(10) || appErr.Details["on_hand"] != int64(5) {
		t.Errorf("unexpected details: %v", appErr.Details)
	}
}

func TestAppError_WithCauseUnwraps(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewDatabase(cause)

	if !errors.Is(err, cause) {
		t.Error("expected cause in chain")
	}
	if GetHTTPStatus(err) != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", GetHTTPStatus(err))
	}
}

func TestAppError_WithDetail(t *testing.T) {
	err := NewValidation("bad input").WithDetail("field", "qtyDelta")

	if err.Details["field"] != "qtyDelta" {
		t.Errorf("expected detail set, got %v", err.Details)
	}
}

func TestGetHTTPStatus_PlainError(t *testing.T) {
	if got := GetHTTPStatus(errors.New("boom")); got != http.StatusInternalServerError {
		t.Errorf("expected 500 for plain error, got %d", got)
	}
}

func TestNewReportTimeout(t *testing.T) {
	err := NewReportTimeout("movement")

	if !IsReportTimeout(err) {
		t.Error("expected report timeout code")
	}
	if err.HTTPStatus != http.StatusGatewayTimeout {
		t.Errorf("expected 504, got %d", err.HTTPStatus)
	}
	if err.Details["report"] != "movement" {
		t.Errorf("expected report name in details, got %v", err.Details)
	}
}
