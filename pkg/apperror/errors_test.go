// Package apperror provides tests for the custom error types and utility functions.
package apperror

import (
	"errors"
	"net/http"
	"testing"
)

// TestError_Error verifies that the Error() method returns the correct string format.
func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		expected string
	}{
		{
			name:     "without field",
			err:      New(CodeNotFound, "node not found"),
			expected: "[NOT_FOUND] node not found",
		},
		{
			name:     "with field",
			err:      NewWithField(CodeBadRequest, "node_id is required", "node_id"),
			expected: "[BAD_REQUEST] node_id is required (field: node_id)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %v, want %v", got, tt.expected)
			}
		})
	}
}

// TestError_Unwrap verifies that the Unwrap() method correctly returns the underlying cause.
func TestError_Unwrap(t *testing.T) {
	cause := errors.New("underlying error")
	err := Wrap(cause, CodeInternal, "wrapped error")

	if unwrapped := err.Unwrap(); unwrapped != cause {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, cause)
	}
}

// TestError_HTTPStatus verifies that the HTTPStatus() method maps ErrorCodes to correct HTTP statuses.
func TestError_HTTPStatus(t *testing.T) {
	tests := []struct {
		name           string
		code           ErrorCode
		expectedStatus int
	}{
		{"bad request", CodeBadRequest, http.StatusBadRequest},
		{"validation", CodeValidation, http.StatusBadRequest},
		{"self loop", CodeSelfLoop, http.StatusBadRequest},
		{"not connected", CodeNotConnected, http.StatusBadRequest},
		{"not found", CodeNotFound, http.StatusNotFound},
		{"dangling edge", CodeDanglingEdge, http.StatusNotFound},
		{"no route", CodeNoRoute, http.StatusNotFound},
		{"unknown camera", CodeUnknownCamera, http.StatusNotFound},
		{"conflict", CodeConflict, http.StatusConflict},
		{"dv in progress", CodeDVInProgress, http.StatusConflict},
		{"timeout", CodeTimeout, http.StatusGatewayTimeout},
		{"detector failure", CodeDetectorFailure, http.StatusBadGateway},
		{"store failure", CodeStoreFailure, http.StatusServiceUnavailable},
		{"unauthenticated", CodeUnauthenticated, http.StatusUnauthorized},
		{"permission denied", CodePermissionDenied, http.StatusForbidden},
		{"internal", CodeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, "test message")
			if got := err.HTTPStatus(); got != tt.expectedStatus {
				t.Errorf("HTTPStatus() = %v, want %v", got, tt.expectedStatus)
			}
		})
	}
}

// TestNew verifies the New function correctly initializes an Error.
func TestNew(t *testing.T) {
	err := New(CodeNoRoute, "no route to destination")

	if err.Code != CodeNoRoute {
		t.Errorf("Code = %v, want %v", err.Code, CodeNoRoute)
	}
	if err.Message != "no route to destination" {
		t.Errorf("Message = %v, want %v", err.Message, "no route to destination")
	}
	if err.Severity != SeverityError {
		t.Errorf("Severity = %v, want %v", err.Severity, SeverityError)
	}
}

// TestNewWarning verifies the NewWarning function correctly initializes an Error with SeverityWarning.
func TestNewWarning(t *testing.T) {
	err := NewWarning(CodeInactiveNode, "node is inactive")

	if err.Severity != SeverityWarning {
		t.Errorf("Severity = %v, want %v", err.Severity, SeverityWarning)
	}
}

// TestNewCritical verifies the NewCritical function correctly initializes an Error with SeverityCritical.
func TestNewCritical(t *testing.T) {
	err := NewCritical(CodeInternal, "critical failure")

	if err.Severity != SeverityCritical {
		t.Errorf("Severity = %v, want %v", err.Severity, SeverityCritical)
	}
}

// TestWithDetails verifies that WithDetails adds key-value pairs to the error's details map.
func TestWithDetails(t *testing.T) {
	err := New(CodeBadRequest, "invalid").
		WithDetails("node_id", "n1").
		WithDetails("edge_id", "e1")

	if err.Details["node_id"] != "n1" {
		t.Errorf("Details[node_id] = %v, want n1", err.Details["node_id"])
	}
	if err.Details["edge_id"] != "e1" {
		t.Errorf("Details[edge_id] = %v, want e1", err.Details["edge_id"])
	}
}

// TestWithField verifies that WithField sets the field of the error.
func TestWithField(t *testing.T) {
	err := New(CodeBadRequest, "invalid destination").WithField("destination")

	if err.Field != "destination" {
		t.Errorf("Field = %v, want destination", err.Field)
	}
}

// TestWithSeverity verifies that WithSeverity sets the severity level of the error.
func TestWithSeverity(t *testing.T) {
	err := New(CodeBadRequest, "invalid").WithSeverity(SeverityCritical)

	if err.Severity != SeverityCritical {
		t.Errorf("Severity = %v, want %v", err.Severity, SeverityCritical)
	}
}

// TestIs verifies the Is function correctly identifies errors by their ErrorCode.
func TestIs(t *testing.T) {
	err := New(CodeNoRoute, "no route")

	if !Is(err, CodeNoRoute) {
		t.Error("Is() should return true for matching code")
	}
	if Is(err, CodeNotFound) {
		t.Error("Is() should return false for non-matching code")
	}
	if Is(errors.New("regular error"), CodeNoRoute) {
		t.Error("Is() should return false for non-Error")
	}
}

// TestCode verifies the Code function correctly extracts the ErrorCode.
func TestCode(t *testing.T) {
	err := New(CodeNoRoute, "no route")

	if Code(err) != CodeNoRoute {
		t.Errorf("Code() = %v, want %v", Code(err), CodeNoRoute)
	}

	regularErr := errors.New("regular error")
	if Code(regularErr) != CodeInternal {
		t.Errorf("Code() for regular error = %v, want %v", Code(regularErr), CodeInternal)
	}
}

// TestHTTPStatus verifies the package-level HTTPStatus function with different error types.
func TestHTTPStatus(t *testing.T) {
	t.Run("nil error", func(t *testing.T) {
		if got := HTTPStatus(nil); got != http.StatusOK {
			t.Errorf("HTTPStatus(nil) = %v, want %v", got, http.StatusOK)
		}
	})

	t.Run("app error", func(t *testing.T) {
		err := New(CodeNotFound, "node not found")
		if got := HTTPStatus(err); got != http.StatusNotFound {
			t.Errorf("HTTPStatus() = %v, want %v", got, http.StatusNotFound)
		}
	})

	t.Run("wrapped app error", func(t *testing.T) {
		err := errors.Join(errors.New("context"), New(CodeConflict, "duplicate edge"))
		if got := HTTPStatus(err); got != http.StatusConflict {
			t.Errorf("HTTPStatus() = %v, want %v", got, http.StatusConflict)
		}
	})

	t.Run("regular error", func(t *testing.T) {
		err := errors.New("regular error")
		if got := HTTPStatus(err); got != http.StatusInternalServerError {
			t.Errorf("HTTPStatus() = %v, want %v", got, http.StatusInternalServerError)
		}
	})
}

// TestFromError verifies the FromError function's behavior when converting arbitrary errors.
func TestFromError(t *testing.T) {
	t.Run("nil error", func(t *testing.T) {
		if result := FromError(nil); result != nil {
			t.Error("FromError(nil) should return nil")
		}
	})

	t.Run("app error passes through", func(t *testing.T) {
		original := New(CodeNoRoute, "no route")
		err := FromError(original)
		assertErrorNotNil(t, err, "app error")
		assertErrorCode(t, err, CodeNoRoute)
		if err != original {
			t.Error("FromError() should return the same *Error instance")
		}
	})

	t.Run("regular error", func(t *testing.T) {
		regularErr := errors.New("regular")
		err := FromError(regularErr)
		assertErrorNotNil(t, err, "regular error")
		assertErrorCode(t, err, CodeInternal)
		assertErrorHasMessage(t, err)
	})
}

// assertErrorNotNil is a helper to check if an error is not nil.
func assertErrorNotNil(t *testing.T, err *Error, desc string) {
	t.Helper()
	if err == nil {
		t.Fatalf("FromError() should not return nil for %s", desc)
	}
}

// assertErrorCode is a helper to check if an error has the expected ErrorCode.
func assertErrorCode(t *testing.T, err *Error, expected ErrorCode) {
	t.Helper()
	if err == nil {
		return
	}
	if err.Code != expected {
		t.Errorf("FromError() code = %v, want %v", err.Code, expected)
	}
}

// assertErrorHasMessage is a helper to check if an error has a non-empty message.
func assertErrorHasMessage(t *testing.T, err *Error) {
	t.Helper()
	if err == nil {
		return
	}
	if err.Message == "" {
		t.Error("FromError() message should not be empty")
	}
}

// TestIsWarning verifies the IsWarning function correctly identifies warning errors.
func TestIsWarning(t *testing.T) {
	warning := NewWarning(CodeInactiveNode, "inactive node")
	err := New(CodeBadRequest, "invalid")

	if !IsWarning(warning) {
		t.Error("IsWarning() should return true for warning")
	}
	if IsWarning(err) {
		t.Error("IsWarning() should return false for error")
	}
}

// TestIsCritical verifies the IsCritical function correctly identifies critical errors.
func TestIsCritical(t *testing.T) {
	critical := NewCritical(CodeInternal, "critical")
	err := New(CodeBadRequest, "invalid")

	if !IsCritical(critical) {
		t.Error("IsCritical() should return true for critical")
	}
	if IsCritical(err) {
		t.Error("IsCritical() should return false for error")
	}
}

// TestSeverity_String verifies the String method of Severity returns the correct string representation.
func TestSeverity_String(t *testing.T) {
	tests := []struct {
		severity Severity
		expected string
	}{
		{SeverityWarning, "warning"},
		{SeverityError, "error"},
		{SeverityCritical, "critical"},
		{Severity(99), "unknown"},
	}

	for _, tt := range tests {
		if got := tt.severity.String(); got != tt.expected {
			t.Errorf("Severity.String() = %v, want %v", got, tt.expected)
		}
	}
}

// TestValidationErrors verifies the functionality of the ValidationErrors collection.
func TestValidationErrors(t *testing.T) {
	t.Run("new validation errors", func(t *testing.T) {
		ve := NewValidationErrors()
		if ve.HasErrors() {
			t.Error("new ValidationErrors should not have errors")
		}
		if ve.HasWarnings() {
			t.Error("new ValidationErrors should not have warnings")
		}
		if !ve.IsValid() {
			t.Error("new ValidationErrors should be valid")
		}
	})

	t.Run("add error", func(t *testing.T) {
		ve := NewValidationErrors()
		ve.AddError(CodeBadRequest, "missing node_id")

		if !ve.HasErrors() {
			t.Error("should have errors")
		}
		if ve.IsValid() {
			t.Error("should not be valid")
		}
		if len(ve.Errors) != 1 {
			t.Errorf("errors count = %d, want 1", len(ve.Errors))
		}
	})

	t.Run("add warning", func(t *testing.T) {
		ve := NewValidationErrors()
		ve.AddWarning(CodeInactiveNode, "node inactive")

		if !ve.HasWarnings() {
			t.Error("should have warnings")
		}
		if !ve.IsValid() {
			t.Error("should be valid (warnings don't affect validity)")
		}
	})

	t.Run("add error with field", func(t *testing.T) {
		ve := NewValidationErrors()
		ve.AddErrorWithField(CodeBadRequest, "invalid", "edge_id")

		if ve.Errors[0].Field != "edge_id" {
			t.Errorf("Field = %v, want edge_id", ve.Errors[0].Field)
		}
	})

	t.Run("add via Add method", func(t *testing.T) {
		ve := NewValidationErrors()
		ve.Add(NewWarning(CodeInactiveNode, "warning"))
		ve.Add(New(CodeBadRequest, "error"))

		if len(ve.Warnings) != 1 {
			t.Errorf("warnings count = %d, want 1", len(ve.Warnings))
		}
		if len(ve.Errors) != 1 {
			t.Errorf("errors count = %d, want 1", len(ve.Errors))
		}
	})

	t.Run("merge", func(t *testing.T) {
		ve1 := NewValidationErrors()
		ve1.AddError(CodeBadRequest, "error1")

		ve2 := NewValidationErrors()
		ve2.AddError(CodeNotFound, "error2")
		ve2.AddWarning(CodeInactiveNode, "warning")

		ve1.Merge(ve2)

		if len(ve1.Errors) != 2 {
			t.Errorf("errors count = %d, want 2", len(ve1.Errors))
		}
		if len(ve1.Warnings) != 1 {
			t.Errorf("warnings count = %d, want 1", len(ve1.Warnings))
		}
	})

	t.Run("merge nil", func(t *testing.T) {
		ve := NewValidationErrors()
		ve.Merge(nil) // should not panic
	})

	t.Run("error messages", func(t *testing.T) {
		ve := NewValidationErrors()
		ve.AddError(CodeBadRequest, "error1")
		ve.AddError(CodeNotFound, "error2")

		messages := ve.ErrorMessages()
		if len(messages) != 2 {
			t.Errorf("messages count = %d, want 2", len(messages))
		}
	})

	t.Run("warning messages", func(t *testing.T) {
		ve := NewValidationErrors()
		ve.AddWarning(CodeInactiveNode, "warning1")

		messages := ve.WarningMessages()
		if len(messages) != 1 {
			t.Errorf("messages count = %d, want 1", len(messages))
		}
		if messages[0] != "warning1" {
			t.Errorf("message = %v, want warning1", messages[0])
		}
	})
}

// TestPredefinedErrors verifies that all predefined errors are correctly initialized.
func TestPredefinedErrors(t *testing.T) {
	predefinedErrors := []*Error{
		ErrNodeNotFound,
		ErrEdgeNotFound,
		ErrEntryNotFound,
		ErrNotConnected,
		ErrNoRoute,
		ErrDVInProgress,
		ErrUnknownCamera,
	}

	for _, err := range predefinedErrors {
		if err == nil {
			t.Error("predefined error should not be nil")
			continue
		}
		if err.Code == "" {
			t.Error("predefined error should have a code")
		}
		if err.Message == "" {
			t.Error("predefined error should have a message")
		}
	}
}
