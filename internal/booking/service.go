// Package booking coordinates seat reservation, payment and the booking
// ledger for a single booking attempt, and serves the read side.
package booking

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/movie-ticket-booking/internal/domain"
	"github.com/robertarktes/movie-ticket-booking/internal/observability"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const DefaultPaymentTimeout = 30 * time.Second

var errPaymentDeclined = errors.New("payment declined")

type CreateBookingRequest struct {
	UserID      uuid.UUID
	ShowID      uuid.UUID
	SeatNumbers []string
}

type Service struct {
	catalog        domain.Catalog
	seats          domain.SeatStore
	checker        *Checker
	ledger         domain.BookingLedger
	payments       domain.PaymentGateway
	auditor        Auditor
	logger         observability.Logger
	tracer         trace.Tracer
	now            func() time.Time
	paymentTimeout time.Duration
}

type Option func(*Service)

func WithAuditor(a Auditor) Option {
	return func(s *Service) { s.auditor = a }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithPaymentTimeout bounds each gateway call. It must stay below the hold
// TTL so the sweep never reclaims seats under an in-flight charge.
func WithPaymentTimeout(d time.Duration) Option {
	return func(s *Service) { s.paymentTimeout = d }
}

func NewService(catalog domain.Catalog, seats domain.SeatStore, ledger domain.BookingLedger, payments domain.PaymentGateway, logger observability.Logger, opts ...Option) *Service {
	s := &Service{
		catalog:        catalog,
		seats:          seats,
		checker:        NewChecker(seats),
		ledger:         ledger,
		payments:       payments,
		auditor:        nopAuditor{},
		logger:         logger,
		tracer:         otel.Tracer("github.com/robertarktes/movie-ticket-booking/internal/booking"),
		now:            func() time.Time { return time.Now().UTC() },
		paymentTimeout: DefaultPaymentTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type attempt struct {
	id    uuid.UUID
	state domain.AttemptState
	span  trace.Span
	log   observability.Logger
}

func (a *attempt) advance(next domain.AttemptState) {
	if !a.state.CanAdvance(next) {
		a.log.WithField("from", a.state).WithField("to", next).Error("illegal booking attempt transition")
	}
	a.log.WithField("state", next).Debug("booking attempt advanced")
	a.span.AddEvent("state", trace.WithAttributes(attribute.String("booking.state", string(next))))
	a.state = next
}

// CreateBooking runs one booking attempt to completion. Seats are held
// under the booking ID while the payment is in flight and no lock is kept
// across the gateway call.
func (s *Service) CreateBooking(ctx context.Context, req CreateBookingRequest) (domain.Booking, error) {
	ctx, span := s.tracer.Start(ctx, "booking.CreateBooking", trace.WithAttributes(
		attribute.String("booking.user_id", req.UserID.String()),
		attribute.String("booking.show_id", req.ShowID.String()),
		attribute.Int("booking.seat_count", len(req.SeatNumbers)),
	))
	defer span.End()

	b, outcome, err := s.createBooking(ctx, span, req)
	observability.BookingAttempts.WithLabelValues(outcome).Inc()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	}
	return b, err
}

func (s *Service) createBooking(ctx context.Context, span trace.Span, req CreateBookingRequest) (domain.Booking, string, error) {
	a := &attempt{
		id:    uuid.New(),
		state: domain.AttemptInitiated,
		span:  span,
	}
	a.log = s.logger.WithField("booking_id", a.id).WithField("show_id", req.ShowID)
	span.SetAttributes(attribute.String("booking.id", a.id.String()))

	if _, err := s.catalog.FindUser(ctx, req.UserID); err != nil {
		return domain.Booking{}, "not_found", errors.Wrap(err, "find user")
	}
	if _, err := s.catalog.FindShow(ctx, req.ShowID); err != nil {
		return domain.Booking{}, "not_found", errors.Wrap(err, "find show")
	}

	seats, err := s.checker.ResolveSeats(ctx, req.ShowID, req.SeatNumbers)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidInput) {
			return domain.Booking{}, "invalid", err
		}
		return domain.Booking{}, "not_found", err
	}
	a.advance(domain.AttemptSeatsResolved)

	seatIDs := domain.SeatIDs(seats)
	if err := s.seats.Reserve(ctx, req.ShowID, seatIDs, a.id); err != nil {
		var conflict *domain.SeatConflictError
		if errors.As(err, &conflict) {
			return domain.Booking{}, "seat_not_available", &domain.SeatNotAvailableError{
				ShowID:      req.ShowID,
				SeatNumbers: seatNumbers(seats, conflict.SeatIDs),
			}
		}
		return domain.Booking{}, "error", errors.Wrap(err, "reserve seats")
	}
	a.advance(domain.AttemptSeatsHeld)

	b := domain.NewBooking(req.UserID, req.ShowID, seats, s.now())
	b.ID = a.id
	a.advance(domain.AttemptPaymentPending)

	// Once seats are held every store call and the charge run to completion
	// even if the caller goes away. A hang-up must not abort a charge the
	// gateway may already have captured.
	bg := context.WithoutCancel(ctx)

	if payErr := s.charge(bg, b); payErr != nil {
		unknown := !errors.Is(payErr, errPaymentDeclined)
		outcome := "payment_failed"
		if unknown {
			outcome = "payment_unknown"
			s.critical(bg, IncidentPaymentUnknown, b, payErr)
		}
		released := true
		if err := s.seats.Release(bg, req.ShowID, seatIDs, a.id); err != nil {
			released = false
			a.log.WithError(err).Warn("release after failed payment, leaving seats to expiry")
		}
		a.advance(domain.AttemptPaymentFailedReleased)
		a.log.WithError(payErr).WithField("outcome_unknown", unknown).Info("payment failed")
		return domain.Booking{}, outcome, &domain.PaymentFailedError{
			BookingID:      b.ID,
			SeatsReleased:  released,
			OutcomeUnknown: unknown,
			Cause:          payErr,
		}
	}

	if err := s.seats.Confirm(bg, req.ShowID, seatIDs, a.id); err != nil {
		s.critical(bg, IncidentIntegrity, b, err)
		return domain.Booking{}, "integrity_violation", errors.Wrap(err, "confirm seats after payment")
	}
	if err := b.Confirm(); err != nil {
		return domain.Booking{}, "error", err
	}
	a.advance(domain.AttemptConfirmed)

	stored, err := s.ledger.Append(bg, b)
	if err != nil {
		observability.LedgerInconsistencies.Inc()
		s.critical(bg, IncidentLedgerInconsistency, b, err)
		return domain.Booking{}, "ledger_inconsistency", &domain.LedgerInconsistencyError{Booking: b, Cause: err}
	}

	if err := s.auditor.LogBooking(bg, stored); err != nil {
		a.log.WithError(err).Warn("audit booking")
	}
	a.log.WithField("total", stored.TotalAmount.StringFixed(2)).Info("booking confirmed")
	return stored, "confirmed", nil
}

// charge returns errPaymentDeclined only for an explicit decline. Any other
// error leaves the outcome at the gateway unknown.
func (s *Service) charge(ctx context.Context, b domain.Booking) error {
	ctx, cancel := context.WithTimeout(ctx, s.paymentTimeout)
	defer cancel()

	ctx, span := s.tracer.Start(ctx, "booking.Charge")
	defer span.End()

	start := time.Now()
	ok, err := s.payments.Charge(ctx, b.ID.String(), b.TotalAmount)
	observability.PaymentDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		return errors.Wrap(err, "charge")
	}
	if !ok {
		return errPaymentDeclined
	}
	return nil
}

// critical reports a charged booking that could not be completed. These
// never go through the ordinary request-failure path.
func (s *Service) critical(ctx context.Context, kind IncidentKind, b domain.Booking, cause error) {
	s.logger.WithField("critical", true).
		WithField("incident", kind).
		WithField("booking_id", b.ID).
		WithField("user_id", b.UserID).
		WithField("amount", b.TotalAmount.StringFixed(2)).
		WithError(cause).
		Error("booking needs manual reconciliation")

	inc := Incident{
		Kind:      kind,
		BookingID: b.ID,
		UserID:    b.UserID,
		ShowID:    b.ShowID,
		SeatIDs:   b.SeatIDs,
		Amount:    b.TotalAmount,
		Detail:    cause.Error(),
		At:        s.now(),
	}
	if err := s.auditor.ReportIncident(ctx, inc); err != nil {
		s.logger.WithField("critical", true).WithField("booking_id", b.ID).WithError(err).Error("report incident")
	}
}

func seatNumbers(seats []domain.Seat, ids []uuid.UUID) []string {
	want := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}
	var out []string
	for _, s := range seats {
		if _, ok := want[s.ID]; ok {
			out = append(out, s.Number)
		}
	}
	return out
}
