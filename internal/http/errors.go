package http

import (
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/robertarktes/movie-ticket-booking/internal/domain"
)

type errorBody struct {
	Error       string            `json:"error"`
	Message     string            `json:"message"`
	SeatNumbers []string          `json:"seat_numbers,omitempty"`
	Fields      map[string]string `json:"fields,omitempty"`
	RequestID   string            `json:"request_id,omitempty"`
}

// writeError maps booking outcomes to responses. Expected outcomes are 4xx;
// only faults that need an operator are 5xx.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	body := errorBody{Message: err.Error(), RequestID: middleware.GetReqID(r.Context())}
	status := http.StatusInternalServerError

	var (
		notAvailable *domain.SeatNotAvailableError
		notFound     *domain.NotFoundError
		payment      *domain.PaymentFailedError
	)
	switch {
	case errors.As(err, &notAvailable):
		status, body.Error = http.StatusConflict, "seat_not_available"
		body.SeatNumbers = notAvailable.SeatNumbers
	case errors.As(err, &notFound):
		status, body.Error = http.StatusNotFound, "not_found"
		body.Message = notFound.Error()
		if notFound.Kind == "seat" {
			body.SeatNumbers = notFound.Keys
		}
	case errors.As(err, &payment):
		status, body.Error = http.StatusPaymentRequired, "payment_failed"
		if payment.OutcomeUnknown {
			body.Error = "payment_outcome_unknown"
			body.Message = "payment could not be confirmed and no booking was made; support has been notified"
		}
	case errors.Is(err, domain.ErrInvalidInput):
		status, body.Error = http.StatusUnprocessableEntity, "invalid_input"
	case errors.Is(err, domain.ErrSerializationFailure):
		status, body.Error = http.StatusConflict, "retry"
	case errors.Is(err, domain.ErrLedgerInconsistency):
		body.Error = "ledger_inconsistency"
		body.Message = "booking was charged but not recorded; support has been notified"
	case errors.Is(err, domain.ErrIntegrity):
		body.Error = "integrity_violation"
		body.Message = "booking was charged but seats could not be confirmed; support has been notified"
	default:
		body.Error = "internal"
		body.Message = "internal error"
	}

	log := LoggerFromContext(r.Context()).WithField("status", status).WithError(err)
	if status >= http.StatusInternalServerError {
		log.Error("request failed")
	} else {
		log.Info("request declined")
	}
	writeJSON(w, status, body)
}

func writeValidationError(w http.ResponseWriter, r *http.Request, err error) {
	body := errorBody{
		Error:     "validation_failed",
		Message:   "request failed validation",
		RequestID: middleware.GetReqID(r.Context()),
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		body.Fields = make(map[string]string, len(verrs))
		for _, fe := range verrs {
			body.Fields[fe.Field()] = fe.Tag()
		}
	}
	writeJSON(w, http.StatusUnprocessableEntity, body)
}
