// Package validation defines the accepted shape of a student's editable
// fields and turns rule violations into field-level messages.
//
// The Validator is pure: it never touches the store or the network, and
// calling it twice with the same input gives the same answer. Forms call it
// on every field change for live feedback and once more when submitting.
package validation

import (
	"errors"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/aanand-mishra/student-records/internal/types"
)

// Messages shown for each failing field.
const (
	MsgRegistrationNumber = "registration number must have at least 4 characters"
	MsgFullName           = "name must have at least 4 characters"
	MsgEmail              = "invalid email"
)

// Errors maps a field name (see types.Field*) to its error message.
// A nil or empty Errors means the record was accepted.
type Errors map[string]string

// Error joins every message in field-name order so the output is stable.
func (e Errors) Error() string {
	fields := make([]string, 0, len(e))
	for f := range e {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	msgs := make([]string, 0, len(fields))
	for _, f := range fields {
		msgs = append(msgs, f+": "+e[f])
	}
	return strings.Join(msgs, ", ")
}

// Has reports whether field has an error.
func (e Errors) Has(field string) bool {
	_, ok := e[field]
	return ok
}

// Only returns the subset of e whose keys are in fields.
func (e Errors) Only(fields map[string]bool) Errors {
	out := Errors{}
	for f, msg := range e {
		if fields[f] {
			out[f] = msg
		}
	}
	return out
}

// Validator checks StudentFields against the struct tags declared in
// package types.
//
// A single *validator.Validate is reused: it caches struct metadata, so
// building one per call (as a quick handler might) throws that work away.
type Validator struct {
	v *validator.Validate
}

// New returns a Validator that reports errors under the json tag names
// (registrationNumber, fullName, email) instead of the Go field names.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Validator{v: v}
}

// Validate checks every rule (it does not stop at the first failure) and
// returns nil when fields is acceptable.
func (v *Validator) Validate(fields types.StudentFields) Errors {
	err := v.v.Struct(fields)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		// InvalidValidationError only happens for non-struct input, which
		// the signature rules out. Report it against every field rather
		// than pretending the record is valid.
		return Errors{
			types.FieldRegistrationNumber: MsgRegistrationNumber,
			types.FieldFullName:           MsgFullName,
			types.FieldEmail:              MsgEmail,
		}
	}

	out := make(Errors, len(fieldErrs))
	for _, fe := range fieldErrs {
		out[fe.Field()] = message(fe)
	}
	return out
}

// Field validates a single field value in isolation. It is what the live
// validation endpoint uses while the user is typing. msg is empty when the
// value is acceptable; known is false for a name that is not a student
// field.
func (v *Validator) Field(name, value string) (msg string, known bool) {
	var fields types.StudentFields
	switch name {
	case types.FieldRegistrationNumber:
		fields.RegistrationNumber = value
	case types.FieldFullName:
		fields.FullName = value
	case types.FieldEmail:
		fields.Email = value
	default:
		return "", false
	}
	return v.Validate(fields)[name], true
}

func message(fe validator.FieldError) string {
	switch fe.Field() {
	case types.FieldRegistrationNumber:
		return MsgRegistrationNumber
	case types.FieldFullName:
		return MsgFullName
	case types.FieldEmail:
		return MsgEmail
	}
	// Catch-all for a field added to StudentFields without a message here.
	return fe.Field() + " is invalid"
}
