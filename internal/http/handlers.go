package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/robertarktes/movie-ticket-booking/internal/booking"
	"github.com/robertarktes/movie-ticket-booking/internal/domain"
)

type BookingService interface {
	CreateBooking(ctx context.Context, req booking.CreateBookingRequest) (domain.Booking, error)
	ListBookings(ctx context.Context, userID uuid.UUID) ([]booking.BookingView, error)
	ListShows(ctx context.Context, filter domain.ShowFilter) ([]domain.Show, error)
	SeatMap(ctx context.Context, showID uuid.UUID) ([]domain.Seat, error)
}

// ReadinessCheck reports whether a dependency can serve traffic.
type ReadinessCheck func(ctx context.Context) error

type Handlers struct {
	svc      BookingService
	validate *validator.Validate
	checks   map[string]ReadinessCheck
}

func NewHandlers(svc BookingService, checks map[string]ReadinessCheck) *Handlers {
	return &Handlers{
		svc:      svc,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		checks:   checks,
	}
}

type createBookingRequest struct {
	UserID      string   `json:"user_id" validate:"required,uuid"`
	ShowID      string   `json:"show_id" validate:"required,uuid"`
	SeatNumbers []string `json:"seat_numbers" validate:"required,min=1,max=10,dive,required,max=8"`
}

type bookingResponse struct {
	ID          uuid.UUID  `json:"id"`
	UserID      uuid.UUID  `json:"user_id"`
	ShowID      uuid.UUID  `json:"show_id"`
	SeatNumbers []string   `json:"seat_numbers"`
	TotalAmount string     `json:"total_amount"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	MovieTitle  string     `json:"movie_title,omitempty"`
	TheaterName string     `json:"theater_name,omitempty"`
	ShowTime    *time.Time `json:"show_time,omitempty"`
}

func newBookingResponse(b domain.Booking) bookingResponse {
	return bookingResponse{
		ID:          b.ID,
		UserID:      b.UserID,
		ShowID:      b.ShowID,
		SeatNumbers: b.SeatNumbers,
		TotalAmount: b.TotalAmount.StringFixed(2),
		Status:      string(b.Status),
		CreatedAt:   b.CreatedAt,
	}
}

type showResponse struct {
	ID        uuid.UUID `json:"id"`
	MovieID   uuid.UUID `json:"movie_id"`
	TheaterID uuid.UUID `json:"theater_id"`
	StartsAt  time.Time `json:"starts_at"`
}

type seatResponse struct {
	ID         uuid.UUID `json:"id"`
	SeatNumber string    `json:"seat_number"`
	Status     string    `json:"status"`
	Price      string    `json:"price"`
}

func (h *Handlers) CreateBooking(w http.ResponseWriter, r *http.Request) {
	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "bad_request", Message: "malformed JSON body"})
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeValidationError(w, r, err)
		return
	}
	userID := uuid.MustParse(req.UserID)
	if !authorizedFor(r.Context(), userID) {
		writeJSON(w, http.StatusForbidden, errorBody{Error: "forbidden", Message: "token subject does not match user_id"})
		return
	}

	b, err := h.svc.CreateBooking(r.Context(), booking.CreateBookingRequest{
		UserID:      userID,
		ShowID:      uuid.MustParse(req.ShowID),
		SeatNumbers: req.SeatNumbers,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newBookingResponse(b))
}

func (h *Handlers) ListBookings(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(chi.URLParam(r, "userID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "bad_request", Message: "invalid user id"})
		return
	}
	if !authorizedFor(r.Context(), userID) {
		writeJSON(w, http.StatusForbidden, errorBody{Error: "forbidden", Message: "token subject does not match user id"})
		return
	}

	views, err := h.svc.ListBookings(r.Context(), userID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := make([]bookingResponse, len(views))
	for i, v := range views {
		resp[i] = newBookingResponse(v.Booking)
		resp[i].MovieTitle = v.MovieTitle
		resp[i].TheaterName = v.TheaterName
		showTime := v.ShowTime
		resp[i].ShowTime = &showTime
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) ListShows(w http.ResponseWriter, r *http.Request) {
	var filter domain.ShowFilter
	for param, dst := range map[string]*uuid.UUID{"movie_id": &filter.MovieID, "theater_id": &filter.TheaterID} {
		raw := r.URL.Query().Get(param)
		if raw == "" {
			continue
		}
		id, err := uuid.Parse(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "bad_request", Message: "invalid " + param})
			return
		}
		*dst = id
	}

	shows, err := h.svc.ListShows(r.Context(), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := make([]showResponse, len(shows))
	for i, s := range shows {
		resp[i] = showResponse{ID: s.ID, MovieID: s.MovieID, TheaterID: s.TheaterID, StartsAt: s.StartsAt}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) SeatMap(w http.ResponseWriter, r *http.Request) {
	showID, err := uuid.Parse(chi.URLParam(r, "showID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "bad_request", Message: "invalid show id"})
		return
	}

	seats, err := h.svc.SeatMap(r.Context(), showID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	resp := make([]seatResponse, len(seats))
	for i, s := range seats {
		resp[i] = seatResponse{ID: s.ID, SeatNumber: s.Number, Status: string(s.Status), Price: s.Price.StringFixed(2)}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	failed := map[string]string{}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			failed[name] = err.Error()
		}
	}
	if len(failed) > 0 {
		LoggerFromContext(r.Context()).WithField("failed", failed).Warn("not ready")
		writeJSON(w, http.StatusServiceUnavailable, failed)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Ready"))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
