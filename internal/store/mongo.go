package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/clinicvoice/agent-backend/internal/model"
	"github.com/clinicvoice/agent-backend/pkg/logger"
)

const (
	collUsers        = "users"
	collAppointments = "appointments"
	collSummaries    = "conversation_summaries"
)

// MongoStore is the document-database Store implementation.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
	logger *logger.Logger
}

// NewMongoStore connects to MongoDB, verifies connectivity, and ensures indexes.
func NewMongoStore(ctx context.Context, uri, database string, log *logger.Logger) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	s := &MongoStore{
		client: client,
		db:     client.Database(database),
		logger: log,
	}

	if err := s.ensureIndexes(ctx); err != nil {
		// Index creation failures are logged, not fatal; the explicit
		// conflict check remains the primary guard.
		log.Warn("index creation failed")
	}

	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	unique := options.Index().SetUnique(true)

	_, err := s.db.Collection(collUsers).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "phone", Value: 1}},
		Options: unique,
	})
	if err != nil {
		return err
	}

	_, err = s.db.Collection(collAppointments).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "datetime", Value: 1}}},
		{Keys: bson.D{{Key: "date", Value: 1}, {Key: "time", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}}},
	})
	if err != nil {
		return err
	}

	_, err = s.db.Collection(collSummaries).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "conversation_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "conversation_date", Value: -1}}},
	})
	return err
}

// CreateUser inserts a new user; uniqueness on phone is enforced by the index.
func (s *MongoStore) CreateUser(ctx context.Context, user *model.User) (string, error) {
	u := *user
	u.ID = uuid.Must(uuid.NewV7()).String()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}

	if _, err := s.db.Collection(collUsers).InsertOne(ctx, u); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", ErrDuplicatePhone
		}
		return "", fmt.Errorf("create user: %w", err)
	}
	return u.ID, nil
}

// GetUserByPhone looks a user up by normalized phone.
func (s *MongoStore) GetUserByPhone(ctx context.Context, phone string) (*model.User, error) {
	var user model.User
	err := s.db.Collection(collUsers).FindOne(ctx, bson.M{"phone": phone}).Decode(&user)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user by phone: %w", err)
	}
	return &user, nil
}

// UpdateUser applies partial changes to a user.
func (s *MongoStore) UpdateUser(ctx context.Context, id string, updates UserUpdate) (bool, error) {
	res, err := s.db.Collection(collUsers).UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": updates},
	)
	if err != nil {
		return false, fmt.Errorf("update user: %w", err)
	}
	return res.ModifiedCount > 0, nil
}

// CreateAppointment inserts a new appointment.
func (s *MongoStore) CreateAppointment(ctx context.Context, apt *model.Appointment) (string, error) {
	a := *apt
	a.ID = uuid.Must(uuid.NewV7()).String()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	if _, err := s.db.Collection(collAppointments).InsertOne(ctx, a); err != nil {
		return "", fmt.Errorf("create appointment: %w", err)
	}
	return a.ID, nil
}

// GetAppointmentByID fetches an appointment scoped to its owner.
func (s *MongoStore) GetAppointmentByID(ctx context.Context, id, ownerID string) (*model.Appointment, error) {
	var apt model.Appointment
	err := s.db.Collection(collAppointments).FindOne(ctx,
		bson.M{"_id": id, "user_id": ownerID},
	).Decode(&apt)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get appointment by id: %w", err)
	}
	return &apt, nil
}

// GetAppointmentByDateTime fetches the owner's active appointment at a slot.
func (s *MongoStore) GetAppointmentByDateTime(ctx context.Context, ownerID, date, timeValue string) (*model.Appointment, error) {
	var apt model.Appointment
	err := s.db.Collection(collAppointments).FindOne(ctx, bson.M{
		"user_id": ownerID,
		"date":    date,
		"time":    timeValue,
		"status":  bson.M{"$ne": model.StatusCancelled},
	}).Decode(&apt)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get appointment by datetime: %w", err)
	}
	return &apt, nil
}

// ListAppointmentsForUser returns the owner's appointments, most recent first.
func (s *MongoStore) ListAppointmentsForUser(ctx context.Context, ownerID string, limit int) ([]model.Appointment, error) {
	if limit <= 0 {
		limit = 50
	}

	cursor, err := s.db.Collection(collAppointments).Find(ctx,
		bson.M{"user_id": ownerID},
		options.Find().SetSort(bson.D{{Key: "datetime", Value: -1}}).SetLimit(int64(limit)),
	)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	defer cursor.Close(ctx)

	var out []model.Appointment
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode appointments: %w", err)
	}
	return out, nil
}

// ListBookedSlots returns occupied slot keys for a date, excluding cancelled.
func (s *MongoStore) ListBookedSlots(ctx context.Context, date string) (map[string]struct{}, error) {
	cursor, err := s.db.Collection(collAppointments).Find(ctx, bson.M{
		"date":   date,
		"status": bson.M{"$ne": model.StatusCancelled},
	})
	if err != nil {
		return nil, fmt.Errorf("list booked slots: %w", err)
	}
	defer cursor.Close(ctx)

	slots := make(map[string]struct{})
	for cursor.Next(ctx) {
		var apt model.Appointment
		if err := cursor.Decode(&apt); err != nil {
			continue
		}
		slots[apt.SlotKey()] = struct{}{}
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("iterate booked slots: %w", err)
	}
	return slots, nil
}

// UpdateAppointment applies partial changes and stamps updated_at.
func (s *MongoStore) UpdateAppointment(ctx context.Context, id string, updates model.AppointmentUpdate) (bool, error) {
	set := bson.M{"updated_at": time.Now().UTC()}
	if updates.Date != nil {
		set["date"] = *updates.Date
	}
	if updates.Time != nil {
		set["time"] = *updates.Time
	}
	if updates.DateTime != nil {
		set["datetime"] = *updates.DateTime
	}
	if updates.Purpose != nil {
		set["purpose"] = *updates.Purpose
	}

	res, err := s.db.Collection(collAppointments).UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": set},
	)
	if err != nil {
		return false, fmt.Errorf("update appointment: %w", err)
	}
	return res.ModifiedCount > 0, nil
}

// SetAppointmentStatus transitions an appointment's status.
func (s *MongoStore) SetAppointmentStatus(ctx context.Context, id string, status model.AppointmentStatus) (bool, error) {
	res, err := s.db.Collection(collAppointments).UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"status": status, "updated_at": time.Now().UTC()}},
	)
	if err != nil {
		return false, fmt.Errorf("set appointment status: %w", err)
	}
	return res.ModifiedCount > 0, nil
}

// SaveConversationSummary persists a summary record.
func (s *MongoStore) SaveConversationSummary(ctx context.Context, summary *model.ConversationSummary) (string, error) {
	cp := *summary
	if cp.ConversationID == "" {
		cp.ConversationID = uuid.Must(uuid.NewV7()).String()
	}

	if _, err := s.db.Collection(collSummaries).InsertOne(ctx, cp); err != nil {
		return "", fmt.Errorf("save conversation summary: %w", err)
	}
	return cp.ConversationID, nil
}

// ListSummariesForUser returns the owner's summaries, most recent first.
func (s *MongoStore) ListSummariesForUser(ctx context.Context, ownerID string, limit int) ([]model.ConversationSummary, error) {
	if limit <= 0 {
		limit = 10
	}

	cursor, err := s.db.Collection(collSummaries).Find(ctx,
		bson.M{"user_id": ownerID},
		options.Find().SetSort(bson.D{{Key: "conversation_date", Value: -1}}).SetLimit(int64(limit)),
	)
	if err != nil {
		return nil, fmt.Errorf("list summaries: %w", err)
	}
	defer cursor.Close(ctx)

	var out []model.ConversationSummary
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode summaries: %w", err)
	}
	return out, nil
}

// Ping verifies connectivity to the primary.
func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the underlying client.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
