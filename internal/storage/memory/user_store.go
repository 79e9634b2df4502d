package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	interfaces "github.com/sheikh-saqib/p2p-balance-ledger/internal/interfaces"
	"github.com/sheikh-saqib/p2p-balance-ledger/internal/models"
)

// MemoryUserStore keeps users in memory, indexed by id and by username.
type MemoryUserStore struct {
	mu         sync.RWMutex
	users      map[string]models.User
	byUsername map[string]string
}

func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{
		users:      make(map[string]models.User),
		byUsername: make(map[string]string),
	}
}

func (m *MemoryUserStore) CreateUser(ctx context.Context, user models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byUsername[user.Username]; exists {
		return models.ErrUserExists
	}
	if _, exists := m.users[user.ID]; exists {
		return models.ErrUserExists
	}
	m.users[user.ID] = user
	m.byUsername[user.Username] = user.ID
	return nil
}

func (m *MemoryUserStore) GetUser(ctx context.Context, id string) (models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	u, ok := m.users[id]
	if !ok {
		return models.User{}, models.ErrUserNotFound
	}
	return u, nil
}

func (m *MemoryUserStore) GetUserByUsername(ctx context.Context, username string) (models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byUsername[username]
	if !ok {
		return models.User{}, models.ErrUserNotFound
	}
	return m.users[id], nil
}

func (m *MemoryUserStore) UpdateUser(ctx context.Context, id string, update models.UserUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return models.ErrUserNotFound
	}
	if update.PasswordHash != nil {
		u.PasswordHash = *update.PasswordHash
	}
	if update.FirstName != nil {
		u.FirstName = *update.FirstName
	}
	if update.LastName != nil {
		u.LastName = *update.LastName
	}
	u.UpdatedAt = time.Now().UTC()
	m.users[id] = u
	return nil
}

func (m *MemoryUserStore) DeleteUser(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	u, ok := m.users[id]
	if !ok {
		return models.ErrUserNotFound
	}
	delete(m.users, id)
	delete(m.byUsername, u.Username)
	return nil
}

func (m *MemoryUserStore) SearchUsers(ctx context.Context, filter string) ([]models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	needle := strings.ToLower(filter)
	result := make([]models.User, 0)
	for _, u := range m.users {
		if strings.Contains(strings.ToLower(u.FirstName), needle) ||
			strings.Contains(strings.ToLower(u.LastName), needle) {
			result = append(result, u)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Username < result[j].Username })
	return result, nil
}

var _ interfaces.UserStore = (*MemoryUserStore)(nil)
