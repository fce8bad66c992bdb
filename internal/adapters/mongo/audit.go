package mongo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/robertarktes/movie-ticket-booking/internal/booking"
	"github.com/robertarktes/movie-ticket-booking/internal/domain"
	"github.com/robertarktes/movie-ticket-booking/internal/observability"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type AuditLogger struct {
	logs      *mongo.Collection
	incidents *mongo.Collection
	logger    observability.Logger
}

func NewAuditLogger(db *mongo.Database, logger observability.Logger) *AuditLogger {
	return &AuditLogger{
		logs:      db.Collection("audit_logs"),
		incidents: db.Collection("incidents"),
		logger:    logger,
	}
}

type AuditLog struct {
	ID        string    `bson:"_id"`
	Action    string    `bson:"action"`
	UserID    string    `bson:"user_id"`
	Timestamp time.Time `bson:"timestamp"`
	Data      bson.M    `bson:"data"`
}

type IncidentDoc struct {
	ID        string    `bson:"_id"`
	Kind      string    `bson:"kind"`
	BookingID string    `bson:"booking_id"`
	UserID    string    `bson:"user_id"`
	ShowID    string    `bson:"show_id"`
	SeatIDs   []string  `bson:"seat_ids"`
	Amount    string    `bson:"amount"`
	Detail    string    `bson:"detail"`
	At        time.Time `bson:"at"`
	Resolved  bool      `bson:"resolved"`
}

func (a *AuditLogger) LogEvent(ctx context.Context, action string, userID uuid.UUID, data bson.M) error {
	log := AuditLog{
		ID:        uuid.New().String(),
		Action:    action,
		UserID:    userID.String(),
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
	_, err := a.logs.InsertOne(ctx, log)
	if err != nil {
		a.logger.WithError(err).Error("failed to insert audit log")
		return err
	}
	return nil
}

func (a *AuditLogger) LogBooking(ctx context.Context, b domain.Booking) error {
	return a.LogEvent(ctx, domain.EventBookingConfirmed, b.UserID, bson.M{
		"booking_id":   b.ID.String(),
		"show_id":      b.ShowID.String(),
		"seat_numbers": b.SeatNumbers,
		"total":        b.TotalAmount.StringFixed(2),
		"status":       string(b.Status),
	})
}

func (a *AuditLogger) ReportIncident(ctx context.Context, inc booking.Incident) error {
	seatIDs := make([]string, len(inc.SeatIDs))
	for i, id := range inc.SeatIDs {
		seatIDs[i] = id.String()
	}
	_, err := a.incidents.InsertOne(ctx, IncidentDoc{
		ID:        uuid.New().String(),
		Kind:      string(inc.Kind),
		BookingID: inc.BookingID.String(),
		UserID:    inc.UserID.String(),
		ShowID:    inc.ShowID.String(),
		SeatIDs:   seatIDs,
		Amount:    inc.Amount.StringFixed(2),
		Detail:    inc.Detail,
		At:        inc.At,
	})
	if err != nil {
		a.logger.WithField("critical", true).WithError(err).Error("failed to insert incident")
	}
	return err
}

// OpenIncidents lists unresolved incidents for reconciliation, oldest first.
func (a *AuditLogger) OpenIncidents(ctx context.Context) ([]IncidentDoc, error) {
	cur, err := a.incidents.Find(ctx, bson.M{"resolved": false}, options.Find().SetSort(bson.D{{Key: "at", Value: 1}}))
	if err != nil {
		return nil, err
	}
	var docs []IncidentDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}
