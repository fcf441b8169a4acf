// Package types holds all shared data structures (models) used across
// the application. Keeping them in one place prevents import cycles —
// validation, storage, forms and handlers can all import types without
// depending on each other.
package types

// Field names as they appear in JSON bodies, HTML forms and validation
// error maps. Use these instead of raw string literals.
const (
	FieldRegistrationNumber = "registrationNumber"
	FieldFullName           = "fullName"
	FieldEmail              = "email"
)

// StudentFields are the three user-editable fields of a student.
//
// Struct tags serve two purposes:
//
//  1. json:"..."     — key used in JSON bodies and as the field name in
//     validation error maps.
//
//  2. validate:"..." — rules checked by the go-playground/validator
//     package. min=4 counts characters (runes), and an empty string fails
//     it too, so no separate "required" tag is needed.
type StudentFields struct {
	RegistrationNumber string `json:"registrationNumber" validate:"min=4"`
	FullName           string `json:"fullName"           validate:"min=4"`
	Email              string `json:"email"              validate:"email"`
}

// Student is a persisted student record. ID is assigned by the store on
// creation and never changes afterwards.
type Student struct {
	ID string `json:"id"`
	StudentFields
}

// Fields returns the editable part of s.
func (s Student) Fields() StudentFields {
	return s.StudentFields
}
