package booking

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/robertarktes/movie-ticket-booking/internal/domain"
	"github.com/shopspring/decimal"
)

type IncidentKind string

const (
	IncidentLedgerInconsistency IncidentKind = "ledger_inconsistency"
	IncidentIntegrity           IncidentKind = "integrity_violation"
	// IncidentPaymentUnknown is a charge that errored or timed out. The
	// gateway may have captured it even though no booking exists.
	IncidentPaymentUnknown IncidentKind = "payment_outcome_unknown"
)

// Incident is an operator-facing record of a booking that was charged but
// could not be completed. Each one needs manual reconciliation.
type Incident struct {
	Kind      IncidentKind
	BookingID uuid.UUID
	UserID    uuid.UUID
	ShowID    uuid.UUID
	SeatIDs   []uuid.UUID
	Amount    decimal.Decimal
	Detail    string
	At        time.Time
}

type Auditor interface {
	LogBooking(ctx context.Context, b domain.Booking) error
	ReportIncident(ctx context.Context, inc Incident) error
}

type nopAuditor struct{}

func (nopAuditor) LogBooking(context.Context, domain.Booking) error { return nil }

func (nopAuditor) ReportIncident(context.Context, Incident) error { return nil }
