package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clinicvoice/agent-backend/internal/model"
)

// MemoryStore is an in-memory Store used by tests and local development.
type MemoryStore struct {
	mu           sync.RWMutex
	users        map[string]*model.User
	usersByPhone map[string]string
	appointments map[string]*model.Appointment
	summaries    map[string]*model.ConversationSummary
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:        make(map[string]*model.User),
		usersByPhone: make(map[string]string),
		appointments: make(map[string]*model.Appointment),
		summaries:    make(map[string]*model.ConversationSummary),
	}
}

// CreateUser inserts a new user, enforcing phone uniqueness.
func (s *MemoryStore) CreateUser(ctx context.Context, user *model.User) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.usersByPhone[user.Phone]; exists {
		return "", ErrDuplicatePhone
	}

	u := *user
	u.ID = uuid.Must(uuid.NewV7()).String()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}

	s.users[u.ID] = &u
	s.usersByPhone[u.Phone] = u.ID
	return u.ID, nil
}

// GetUserByPhone looks a user up by phone.
func (s *MemoryStore) GetUserByPhone(ctx context.Context, phone string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.usersByPhone[phone]
	if !ok {
		return nil, ErrNotFound
	}
	u := *s.users[id]
	return &u, nil
}

// UpdateUser applies partial changes to a user.
func (s *MemoryStore) UpdateUser(ctx context.Context, id string, updates UserUpdate) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return false, nil
	}
	if updates.Name != nil {
		u.Name = *updates.Name
	}
	return true, nil
}

// CreateAppointment inserts a new appointment.
func (s *MemoryStore) CreateAppointment(ctx context.Context, apt *model.Appointment) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a := *apt
	a.ID = uuid.Must(uuid.NewV7()).String()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}

	s.appointments[a.ID] = &a
	return a.ID, nil
}

// GetAppointmentByID fetches an appointment scoped to its owner.
func (s *MemoryStore) GetAppointmentByID(ctx context.Context, id, ownerID string) (*model.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.appointments[id]
	if !ok || a.UserID != ownerID {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

// GetAppointmentByDateTime fetches the owner's active appointment at a slot.
func (s *MemoryStore) GetAppointmentByDateTime(ctx context.Context, ownerID, date, timeValue string) (*model.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.appointments {
		if a.UserID == ownerID && a.Date == date && a.Time == timeValue && a.Active() {
			cp := *a
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

// ListAppointmentsForUser returns the owner's appointments, most recent first.
func (s *MemoryStore) ListAppointmentsForUser(ctx context.Context, ownerID string, limit int) ([]model.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Appointment
	for _, a := range s.appointments {
		if a.UserID == ownerID {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].DateTime.After(out[j].DateTime)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ListBookedSlots returns occupied slot keys for a date, excluding cancelled.
func (s *MemoryStore) ListBookedSlots(ctx context.Context, date string) (map[string]struct{}, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	slots := make(map[string]struct{})
	for _, a := range s.appointments {
		if a.Date == date && a.Active() {
			slots[a.SlotKey()] = struct{}{}
		}
	}
	return slots, nil
}

// UpdateAppointment applies partial changes and stamps updated_at.
func (s *MemoryStore) UpdateAppointment(ctx context.Context, id string, updates model.AppointmentUpdate) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.appointments[id]
	if !ok {
		return false, nil
	}
	if updates.Date != nil {
		a.Date = *updates.Date
	}
	if updates.Time != nil {
		a.Time = *updates.Time
	}
	if updates.DateTime != nil {
		a.DateTime = *updates.DateTime
	}
	if updates.Purpose != nil {
		a.Purpose = *updates.Purpose
	}
	a.UpdatedAt = time.Now().UTC()
	return true, nil
}

// SetAppointmentStatus transitions an appointment's status.
func (s *MemoryStore) SetAppointmentStatus(ctx context.Context, id string, status model.AppointmentStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.appointments[id]
	if !ok {
		return false, nil
	}
	a.Status = status
	a.UpdatedAt = time.Now().UTC()
	return true, nil
}

// SaveConversationSummary persists a summary record.
func (s *MemoryStore) SaveConversationSummary(ctx context.Context, summary *model.ConversationSummary) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *summary
	if cp.ConversationID == "" {
		cp.ConversationID = uuid.Must(uuid.NewV7()).String()
	}
	s.summaries[cp.ConversationID] = &cp
	return cp.ConversationID, nil
}

// ListSummariesForUser returns the owner's summaries, most recent first.
func (s *MemoryStore) ListSummariesForUser(ctx context.Context, ownerID string, limit int) ([]model.ConversationSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.ConversationSummary
	for _, sum := range s.summaries {
		if sum.UserID == ownerID {
			out = append(out, *sum)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ConversationDate.After(out[j].ConversationDate)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Ping always succeeds for the in-memory store.
func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}
