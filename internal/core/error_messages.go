package core

// # Error Codes Reference
//
// Technical errors are mapped to a short user message, a suggested action
// and a code operators can quote to support. Codes are grouped by category:
//
//	DB001  - Duplicate: a record with this value already exists
//	DB002  - Foreign key: a referenced record does not exist
//	DB003  - Connection: unable to reach the database
//	DB004  - Timeout: the database did not answer in time
//	DB005  - Not found: the record does not exist
//
//	VAL001 - Invalid date
//	VAL002 - Required field is empty
//	VAL003 - Missing required column
//	VAL004 - Invalid content type
//	VAL005 - Invalid access level or status
//	VAL006 - Invalid email
//	VAL007 - Generic validation failure
//
//	FILE001 - File too large
//	FILE002 - Empty file or no data rows
//	FILE003 - No file provided
//
//	IMP001 - Too many imports running
//	IMP002 - An import is already running for this cohort
//	IMP003 - Import job not found or expired
//	IMP004 - Source and target cohort are the same
//	IMP005 - Request cancelled or timed out
//
//	INV001 - Invite code is not redeemable
//	ENR001 - Student saved but enrollment failed
//
//	RATE001 - Too many requests
//	ERR000  - Anything else; check the logs for the technical error
//
// Patterns are matched case-insensitively with strings.Contains and the
// first match wins, so specific patterns come before general ones.

import (
	"fmt"
	"strings"
)

// UserMessage is the user-facing rendering of an error.
type UserMessage struct {
	Message string `json:"message"`
	Action  string `json:"action"`
	Code    string `json:"code"`
}

type errorPattern struct {
	pattern string
	msg     UserMessage
}

var errorPatterns = []errorPattern{
	// ---- Enrollment / invites ----
	{"student saved but enrollment failed", UserMessage{
		Message: "The student was saved, but some cohort changes did not apply",
		Action:  "Review the student's cohorts and save again",
		Code:    "ENR001",
	}},
	{"invite code is not redeemable", UserMessage{
		Message: "This invite code is not valid anymore",
		Action:  "Ask the program team for a new link",
		Code:    "INV001",
	}},

	// ---- Imports ----
	{"too many concurrent imports", UserMessage{
		Message: "The system is busy with other imports",
		Action:  "Please wait a moment and try again",
		Code:    "IMP001",
	}},
	{"import is already running", UserMessage{
		Message: "An import is already running for this cohort",
		Action:  "Wait for it to finish before starting another",
		Code:    "IMP002",
	}},
	{"import not found", UserMessage{
		Message: "Import not found",
		Action:  "The import may have expired. Please start a new one",
		Code:    "IMP003",
	}},
	{"source and target cohort", UserMessage{
		Message: "Source and target cohort are the same",
		Action:  "Pick a different cohort to copy from",
		Code:    "IMP004",
	}},
	{"context canceled", UserMessage{
		Message: "Request was cancelled",
		Action:  "Please try again",
		Code:    "IMP005",
	}},
	{"context deadline exceeded", UserMessage{
		Message: "Request timed out",
		Action:  "Try a smaller file or try again later",
		Code:    "IMP005",
	}},

	// ---- Database ----
	{"duplicate key", UserMessage{
		Message: "A record with this value already exists",
		Action:  "Use a different value or edit the existing record",
		Code:    "DB001",
	}},
	{"already exists", UserMessage{
		Message: "A record with this value already exists",
		Action:  "Use a different value or edit the existing record",
		Code:    "DB001",
	}},
	{"violates foreign key", UserMessage{
		Message: "Referenced record does not exist",
		Action:  "Reload the page; the parent may have been deleted",
		Code:    "DB002",
	}},
	{"connection refused", UserMessage{
		Message: "Unable to connect to database",
		Action:  "Please try again in a few moments",
		Code:    "DB003",
	}},
	{"connection reset", UserMessage{
		Message: "Database connection was interrupted",
		Action:  "Please try again",
		Code:    "DB003",
	}},
	{"timeout", UserMessage{
		Message: "Operation timed out",
		Action:  "Please try again later",
		Code:    "DB004",
	}},
	{"not found", UserMessage{
		Message: "Record not found",
		Action:  "It may have been deleted. Reload the page",
		Code:    "DB005",
	}},

	// ---- Validation ----
	{"invalid date", UserMessage{
		Message: "Invalid date format detected",
		Action:  "Use YYYY-MM-DD, MM/DD/YYYY, or Jan 15, 2024",
		Code:    "VAL001",
	}},
	{"required field", UserMessage{
		Message: "Required field is empty",
		Action:  "Fill in every required column",
		Code:    "VAL002",
	}},
	{"missing required column", UserMessage{
		Message: "Required column is missing from CSV",
		Action:  "Download the sample CSV and match its headers",
		Code:    "VAL003",
	}},
	{"invalid content type", UserMessage{
		Message: "Unknown content type",
		Action:  "Use one of the content types listed in the sample CSV",
		Code:    "VAL004",
	}},
	{"invalid access level", UserMessage{
		Message: "Unknown access level",
		Action:  "Use one of the access levels listed in the sample CSV",
		Code:    "VAL005",
	}},
	{"invalid status", UserMessage{
		Message: "Unknown student status",
		Action:  "Use one of the statuses listed in the sample CSV",
		Code:    "VAL005",
	}},
	{"invalid email", UserMessage{
		Message: "Invalid email address",
		Action:  "Check the email column for typos",
		Code:    "VAL006",
	}},
	{"validation failed", UserMessage{
		Message: "Some fields are invalid",
		Action:  "Correct the highlighted fields and try again",
		Code:    "VAL007",
	}},

	// ---- Files ----
	{"file too large", UserMessage{
		Message: "File exceeds maximum size limit",
		Action:  "Split the file into smaller parts",
		Code:    "FILE001",
	}},
	{"file is empty", UserMessage{
		Message: "The file is empty",
		Action:  "Upload a CSV with a header row and data rows",
		Code:    "FILE002",
	}},
	{"no data rows", UserMessage{
		Message: "The file has a header but no data rows",
		Action:  "Add at least one row below the header",
		Code:    "FILE002",
	}},
	{"no file provided", UserMessage{
		Message: "No file was selected",
		Action:  "Choose a CSV file or paste CSV text",
		Code:    "FILE003",
	}},

	// ---- Rate limiting ----
	{"rate limit", UserMessage{
		Message: "Too many requests",
		Action:  "Please wait a moment before trying again",
		Code:    "RATE001",
	}},
}

// defaultMessage is the ERR000 fallback. Support should check the logs for
// the technical error when users report it.
var defaultMessage = UserMessage{
	Message: "An unexpected error occurred",
	Action:  "Please try again or contact support",
	Code:    "ERR000",
}

// MapError converts a technical error to a user-friendly message. Unknown
// errors map to ERR000; a nil error maps to the zero UserMessage.
func MapError(err error) UserMessage {
	if err == nil {
		return UserMessage{}
	}

	errStr := strings.ToLower(err.Error())
	for _, ep := range errorPatterns {
		if strings.Contains(errStr, ep.pattern) {
			return ep.msg
		}
	}
	return defaultMessage
}

// FormatUserError renders "Message (Code: XXX). Action".
func FormatUserError(err error) string {
	msg := MapError(err)
	if msg.Message == "" {
		return ""
	}
	return fmt.Sprintf("%s (Code: %s). %s", msg.Message, msg.Code, msg.Action)
}

// IsUserFacing reports whether err matched a known pattern.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	return MapError(err).Code != defaultMessage.Code
}

// UserError pairs a technical error with its user message. Error returns the
// user message; Unwrap returns the technical error for logging.
type UserError struct {
	Technical error
	User      UserMessage
}

func (e *UserError) Error() string {
	return e.User.Message
}

func (e *UserError) Unwrap() error {
	return e.Technical
}

// NewUserError maps err. It returns nil for a nil error.
func NewUserError(err error) *UserError {
	if err == nil {
		return nil
	}
	return &UserError{Technical: err, User: MapError(err)}
}
