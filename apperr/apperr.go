// Package apperr holds the error taxonomy shared by services and controllers.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

type Kind string

const (
	KindUnauthenticated  Kind = "unauthenticated"
	KindValidation       Kind = "validation"
	KindNotFound         Kind = "not_found"
	KindPermissionDenied Kind = "permission_denied"
	KindConflict         Kind = "conflict"
	KindAlreadyPending   Kind = "already_pending"
	KindAlreadyGoing     Kind = "already_going"
	KindStore            Kind = "store"
	KindTimeout          Kind = "timeout"
)

// Error carries the failing operation and, for validation failures, the field.
// Callers inspect it with errors.As or KindOf.
type Error struct {
	Kind   Kind
	Op     string
	Field  string
	Reason string
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(string(e.Kind))
	if e.Field != "" {
		b.WriteString(": ")
		b.WriteString(e.Field)
	}
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

func Unauthenticated(op string) error {
	return &Error{Kind: KindUnauthenticated, Op: op, Reason: "no active session"}
}

func Validation(op, field, reason string) error {
	return &Error{Kind: KindValidation, Op: op, Field: field, Reason: reason}
}

func NotFound(op, what string) error {
	return &Error{Kind: KindNotFound, Op: op, Reason: what + " not found"}
}

func PermissionDenied(op, reason string) error {
	return &Error{Kind: KindPermissionDenied, Op: op, Reason: reason}
}

func Conflict(op, reason string) error {
	return &Error{Kind: KindConflict, Op: op, Reason: reason}
}

func AlreadyPending(op string) error {
	return &Error{Kind: KindAlreadyPending, Op: op, Reason: "a request is already pending"}
}

func AlreadyGoing(op string) error {
	return &Error{Kind: KindAlreadyGoing, Op: op, Reason: "already going"}
}

// FromStore wraps a row-store failure with the operation name. Errors that are
// already classified pass through unchanged.
func FromStore(op string, err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Kind: KindTimeout, Op: op, Reason: "store did not answer in time", Err: err}
	case errors.Is(err, gorm.ErrRecordNotFound):
		return &Error{Kind: KindNotFound, Op: op, Reason: "row not found", Err: err}
	case IsPolicyDenied(err):
		return &Error{Kind: KindPermissionDenied, Op: op, Reason: "denied by store policy", Err: err}
	}
	return &Error{Kind: KindStore, Op: op, Err: err}
}

// IsDuplicateKey reports a uniqueness violation from either driver.
func IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// IsPolicyDenied reports a postgres privilege or row-level-security denial.
func IsPolicyDenied(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "42501"
	}
	return strings.Contains(err.Error(), "row-level security")
}

// KindOf returns the kind of err, KindStore for unclassified errors and "" for nil.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindStore
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus maps a kind to the status code the API answers with.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindValidation:
		return http.StatusUnprocessableEntity
	case KindNotFound:
		return http.StatusNotFound
	case KindPermissionDenied:
		return http.StatusForbidden
	case KindConflict, KindAlreadyPending, KindAlreadyGoing:
		return http.StatusConflict
	case KindTimeout:
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}

// Message is the short text shown to the user.
func Message(err error) string {
	var ae *Error
	if !errors.As(err, &ae) {
		if errors.Is(err, context.DeadlineExceeded) {
			return "The server took too long to answer. Try again."
		}
		return "Something went wrong. Try again later."
	}
	switch ae.Kind {
	case KindUnauthenticated:
		return "Please sign in again."
	case KindValidation:
		if ae.Field != "" {
			return fmt.Sprintf("%s %s", ae.Field, ae.Reason)
		}
		return ae.Reason
	case KindNotFound:
		return capitalize(ae.Reason) + "."
	case KindPermissionDenied:
		return "You don't have permission to do that."
	case KindConflict:
		return capitalize(ae.Reason) + "."
	case KindAlreadyPending:
		return "Your request is already waiting for approval."
	case KindAlreadyGoing:
		return "You are already going to this event."
	case KindTimeout:
		return "The server took too long to answer. Try again."
	}
	return "Something went wrong. Try again later."
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
