package domain

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

var (
	ErrSerializationFailure = errors.New("serialization failure")
	ErrNotFound             = errors.New("not found")
	ErrConflict             = errors.New("conflict")
	ErrInvalidInput         = errors.New("invalid input")
	ErrSeatNotAvailable     = errors.New("seat not available")
	ErrPaymentFailed        = errors.New("payment failed")
	ErrLedgerInconsistency  = errors.New("ledger inconsistency")
	ErrIntegrity            = errors.New("seat integrity violation")
)

// NotFoundError names what was looked up and the keys that did not resolve.
type NotFoundError struct {
	Kind string
	Keys []string
}

func NewNotFound(kind string, keys ...string) *NotFoundError {
	return &NotFoundError{Kind: kind, Keys: keys}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, strings.Join(e.Keys, ", "))
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// SeatConflictError is returned by a SeatStore when a reserve batch touches
// seats that are not AVAILABLE. SeatIDs lists all of them.
type SeatConflictError struct {
	SeatIDs []uuid.UUID
}

func (e *SeatConflictError) Error() string {
	ids := make([]string, len(e.SeatIDs))
	for i, id := range e.SeatIDs {
		ids[i] = id.String()
	}
	return "seats not available: " + strings.Join(ids, ", ")
}

func (e *SeatConflictError) Is(target error) bool { return target == ErrConflict }

type SeatNotAvailableError struct {
	ShowID      uuid.UUID
	SeatNumbers []string
}

func (e *SeatNotAvailableError) Error() string {
	return "seats not available: " + strings.Join(e.SeatNumbers, ", ")
}

func (e *SeatNotAvailableError) Is(target error) bool { return target == ErrSeatNotAvailable }

// PaymentFailedError is returned when no booking was made because the charge
// did not succeed. OutcomeUnknown means the gateway neither approved nor
// declined, so the charge may have been captured and an incident was raised.
type PaymentFailedError struct {
	BookingID      uuid.UUID
	SeatsReleased  bool
	OutcomeUnknown bool
	Cause          error
}

func (e *PaymentFailedError) Error() string {
	msg := fmt.Sprintf("payment failed for booking %s", e.BookingID)
	if e.OutcomeUnknown {
		msg = fmt.Sprintf("payment outcome unknown for booking %s", e.BookingID)
	}
	if e.SeatsReleased {
		msg += ", seats released"
	} else {
		msg += ", seats still held until expiry"
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *PaymentFailedError) Is(target error) bool { return target == ErrPaymentFailed }

func (e *PaymentFailedError) Unwrap() error { return e.Cause }

// LedgerInconsistencyError means seats were confirmed and charged but the
// booking record was not persisted. It needs manual reconciliation.
type LedgerInconsistencyError struct {
	Booking Booking
	Cause   error
}

func (e *LedgerInconsistencyError) Error() string {
	return fmt.Sprintf("booking %s confirmed but not recorded: %v", e.Booking.ID, e.Cause)
}

func (e *LedgerInconsistencyError) Is(target error) bool { return target == ErrLedgerInconsistency }

func (e *LedgerInconsistencyError) Unwrap() error { return e.Cause }

// IntegrityError reports a seat transition attempted from the wrong state.
type IntegrityError struct {
	ShowID  uuid.UUID
	SeatIDs []uuid.UUID
	HoldID  uuid.UUID
	Want    SeatStatus
}

func (e *IntegrityError) Error() string {
	ids := make([]string, len(e.SeatIDs))
	for i, id := range e.SeatIDs {
		ids[i] = id.String()
	}
	return fmt.Sprintf("seats %s of show %s not %s by hold %s", strings.Join(ids, ", "), e.ShowID, e.Want, e.HoldID)
}

func (e *IntegrityError) Is(target error) bool { return target == ErrIntegrity }
