package gallery

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/eventfaces/internal/models"
)

// Entry is one enrolled user as seen by the matcher.
type Entry struct {
	UserID    string
	Name      string
	Signature models.Signature
}

// Gallery is the enrolled-user signature store. Enrollment order is
// significant: List and Snapshot return users in the order they were
// enrolled, which is what makes the matcher's tie-break deterministic.
type Gallery interface {
	// Enroll registers a user. An empty userID asks the gallery to generate
	// one. Returns ErrDuplicateUser if the ID is taken.
	Enroll(ctx context.Context, userID, name string, sig models.Signature) (string, error)

	// Remove deletes a user record and its signature atomically. A failed
	// removal leaves both untouched. Returns ErrNotFound for unknown IDs.
	Remove(ctx context.Context, userID string) error

	// List returns all enrolled users in enrollment order.
	List(ctx context.Context) ([]models.User, error)

	// GetSignature returns the enrolled signature for a user.
	GetSignature(ctx context.Context, userID string) (models.Signature, error)

	// Snapshot returns a consistent copy of the gallery in enrollment order.
	// A batch takes one snapshot per photo, so enrollment and removal may
	// proceed concurrently without a matcher ever reading a half-removed user.
	Snapshot(ctx context.Context) ([]Entry, error)
}

// Memory is an in-memory Gallery safe for concurrent use.
type Memory struct {
	mu    sync.RWMutex
	users map[string]models.User
	order []string

	now   func() time.Time
	newID func() string
}

// NewMemory returns an empty in-memory gallery.
func NewMemory() *Memory {
	return &Memory{
		users: make(map[string]models.User),
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// NewMemoryWithClock returns a gallery with injected clock and ID generator,
// for deterministic tests.
func NewMemoryWithClock(now func() time.Time, newID func() string) *Memory {
	g := NewMemory()
	if now != nil {
		g.now = now
	}
	if newID != nil {
		g.newID = newID
	}
	return g
}

func (g *Memory) Enroll(_ context.Context, userID, name string, sig models.Signature) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if userID == "" {
		userID = g.newID()
	}
	if _, ok := g.users[userID]; ok {
		return "", ErrDuplicateUser
	}

	g.users[userID] = models.User{
		UserID:     userID,
		Name:       name,
		Signature:  sig,
		EnrolledAt: g.now(),
	}
	g.order = append(g.order, userID)
	return userID, nil
}

func (g *Memory) Remove(_ context.Context, userID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.users[userID]; !ok {
		return ErrNotFound
	}

	delete(g.users, userID)
	for i, id := range g.order {
		if id == userID {
			g.order = append(g.order[:i], g.order[i+1:]...)
			break
		}
	}
	return nil
}

func (g *Memory) List(_ context.Context) ([]models.User, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	users := make([]models.User, 0, len(g.order))
	for _, id := range g.order {
		users = append(users, g.users[id])
	}
	return users, nil
}

func (g *Memory) GetSignature(_ context.Context, userID string) (models.Signature, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	u, ok := g.users[userID]
	if !ok {
		return models.Signature{}, ErrNotFound
	}
	return u.Signature, nil
}

func (g *Memory) Snapshot(_ context.Context) ([]Entry, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	entries := make([]Entry, 0, len(g.order))
	for _, id := range g.order {
		u := g.users[id]
		entries = append(entries, Entry{
			UserID:    u.UserID,
			Name:      u.Name,
			Signature: u.Signature,
		})
	}
	return entries, nil
}
