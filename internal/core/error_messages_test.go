package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"nil error returns empty", nil, ""},
		{"duplicate key", errors.New(`ERROR: duplicate key value violates unique constraint "students_email_key"`), "DB001"},
		{"wrapped ErrDuplicate", fmt.Errorf("insert student: %w", ErrDuplicate), "DB001"},
		{"foreign key", errors.New("insert or update violates foreign key constraint"), "DB002"},
		{"connection refused", errors.New("dial tcp 127.0.0.1:5432: connection refused"), "DB003"},
		{"wrapped ErrNotFound", fmt.Errorf("get cohort c1: %w", ErrNotFound), "DB005"},
		{"import not found before generic not found", errors.New("import not found"), "IMP003"},
		{"deadline before generic timeout", errors.New("context deadline exceeded (timeout)"), "IMP005"},
		{"limiter busy", ErrTooManyImports, "IMP001"},
		{"cohort busy", ErrImportInProgress, "IMP002"},
		{"same cohort", ErrSameCohort, "IMP004"},
		{"invite unavailable", fmt.Errorf("redeem: %w", ErrInviteUnavailable), "INV001"},
		{"enrollment sync", fmt.Errorf("%w: enroll in c2: boom", ErrEnrollmentSync), "ENR001"},
		{"row validation", rowError(4, "type", "invalid content type %q", "podcast"), "VAL004"},
		{"missing column", &ValidationError{Line: 1, Field: "week", Message: "missing required column"}, "VAL003"},
		{"empty file", &ValidationError{Message: "file is empty"}, "FILE002"},
		{"rate limit", errors.New("rate limit exceeded"), "RATE001"},
		{"case insensitive", errors.New("DUPLICATE KEY value"), "DB001"},
		{"unknown error", errors.New("some random internal error"), "ERR000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError(%v) code = %q, want %q", tt.err, got.Code, tt.wantCode)
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	got := FormatUserError(ErrImportInProgress)
	want := "An import is already running for this cohort (Code: IMP002). Wait for it to finish before starting another"
	if got != want {
		t.Errorf("FormatUserError() = %q, want %q", got, want)
	}

	if got := FormatUserError(nil); got != "" {
		t.Errorf("FormatUserError(nil) = %q, want empty", got)
	}
}

func TestIsUserFacing(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil error", nil, false},
		{"known error", ErrDuplicate, true},
		{"unknown error", errors.New("random internal error xyz"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUserFacing(tt.err); got != tt.want {
				t.Errorf("IsUserFacing() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewUserError(t *testing.T) {
	t.Run("nil error returns nil", func(t *testing.T) {
		if got := NewUserError(nil); got != nil {
			t.Errorf("NewUserError(nil) = %v, want nil", got)
		}
	})

	t.Run("wraps technical error with user message", func(t *testing.T) {
		techErr := fmt.Errorf("insert invite: %w", ErrDuplicate)
		userErr := NewUserError(techErr)

		if userErr.Error() != "A record with this value already exists" {
			t.Errorf("Error() = %q, want user message", userErr.Error())
		}
		if !errors.Is(userErr, ErrDuplicate) {
			t.Error("errors.Is(userErr, ErrDuplicate) = false, want true")
		}
	})
}
