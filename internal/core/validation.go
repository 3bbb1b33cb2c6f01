package core

// validation.go covers two kinds of input checking.
//
//  1. CSV rows: importers report *ValidationError with the 1-based line
//     number so the operator can find the offending row.
//  2. Form and API payloads: struct tags are checked by go-playground's
//     validator and reported as a field -> message map keyed by JSON name.

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

// Sentinel errors shared by the service and storage layers.
var (
	ErrNotFound          = errors.New("not found")
	ErrDuplicate         = errors.New("already exists")
	ErrInviteUnavailable = errors.New("invite code is not redeemable")
	ErrSameCohort        = errors.New("source and target cohort must be different")
)

// ValidationError describes bad input. Line is set for CSV rows, Fields for
// struct validation.
type ValidationError struct {
	Line    int
	Field   string
	Message string
	Fields  map[string]string
}

func (e *ValidationError) Error() string {
	switch {
	case e.Line > 0 && e.Field != "":
		return fmt.Sprintf("line %d: %s: %s", e.Line, e.Field, e.Message)
	case e.Line > 0:
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	case len(e.Fields) > 0:
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = k + ": " + e.Fields[k]
		}
		return "validation failed: " + strings.Join(parts, "; ")
	case e.Field != "":
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	default:
		return e.Message
	}
}

// rowError builds a ValidationError for a CSV line.
func rowError(line int, field, format string, args ...any) *ValidationError {
	return &ValidationError{Line: line, Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsValidationError reports whether err is or wraps a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

var (
	validate   *validator.Validate
	translator ut.Translator

	slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
)

const (
	notBlankTag      = "notblank"
	slugTag          = "slug"
	contentTypeTag   = "contenttype"
	accessLevelTag   = "accesslevel"
	studentStatusTag = "studentstatus"
)

func init() {
	validate = validator.New()

	english := en.New()
	uni := ut.New(english, english)
	translator, _ = uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = validate.RegisterValidation(notBlankTag, func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = validate.RegisterValidation(slugTag, func(fl validator.FieldLevel) bool {
		return slugPattern.MatchString(fl.Field().String())
	})
	_ = validate.RegisterValidation(contentTypeTag, func(fl validator.FieldLevel) bool {
		_, ok := ParseContentType(fl.Field().String())
		return ok && fl.Field().String() == strings.ToLower(fl.Field().String())
	})
	_ = validate.RegisterValidation(accessLevelTag, func(fl validator.FieldLevel) bool {
		a := AccessLevel(fl.Field().String())
		_, ok := accessLevelLabels[a]
		return ok
	})
	_ = validate.RegisterValidation(studentStatusTag, func(fl validator.FieldLevel) bool {
		_, ok := ParseStudentStatus(fl.Field().String())
		return ok && fl.Field().String() == strings.ToLower(fl.Field().String())
	})

	registerFn := func(ut.Translator) error { return nil }
	for _, tag := range []string{notBlankTag, slugTag, contentTypeTag, accessLevelTag, studentStatusTag} {
		_ = validate.RegisterTranslation(tag, translator, registerFn, translateCustomTag)
	}
}

func translateCustomTag(_ ut.Translator, fe validator.FieldError) string {
	switch fe.Tag() {
	case notBlankTag:
		return "this field cannot be blank"
	case slugTag:
		return "must be lowercase letters, digits and single hyphens"
	case contentTypeTag:
		return fmt.Sprintf("invalid content type %q", fe.Value())
	case accessLevelTag:
		return fmt.Sprintf("invalid access level %q", fe.Value())
	case studentStatusTag:
		return fmt.Sprintf("invalid status %q", fe.Value())
	}
	return fe.Error()
}

// ValidateStruct checks v's validate tags. Failures come back as a
// *ValidationError whose Fields are keyed by JSON name.
func ValidateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate: %w", err)
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		name := fe.Namespace()
		if i := strings.Index(name, "."); i >= 0 {
			name = name[i+1:]
		}
		fields[name] = fe.Translate(translator)
	}
	return &ValidationError{Fields: fields}
}

// ValidEmail reports whether s is a syntactically valid email address.
func ValidEmail(s string) bool {
	return validate.Var(s, "required,email") == nil
}
