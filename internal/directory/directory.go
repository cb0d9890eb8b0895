package directory

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// Role is the closed set of dashboard roles. Handling is exhaustive at the
// trust-gate and validator boundaries; no string comparisons.
type Role int

const (
	RoleStudent Role = iota
	RoleFaculty
	RoleAdmin
)

func (r Role) String() string {
	switch r {
	case RoleStudent:
		return "student"
	case RoleFaculty:
		return "faculty"
	case RoleAdmin:
		return "admin"
	}
	return "unknown"
}

// ParseRole maps a wire string to a Role.
func ParseRole(s string) (Role, error) {
	switch s {
	case "student":
		return RoleStudent, nil
	case "faculty":
		return RoleFaculty, nil
	case "admin":
		return RoleAdmin, nil
	}
	return 0, fmt.Errorf("unknown role %q", s)
}

// User is a directory entry. The core only ever reads role and identity
// data; device binding is the one mutation the directory accepts.
type User struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Role         Role   `json:"-"`
	DepartmentID string `json:"department_id,omitempty"`
	DeviceID     string `json:"device_id,omitempty"`
	Verified     bool   `json:"verified"`
}

var ErrNotFound = errors.New("user not found")

// Directory is the external user-directory collaborator.
type Directory interface {
	Lookup(ctx context.Context, id string) (User, error)
	BindDevice(ctx context.Context, userID, deviceID string) error
}

// Memory is a mutex-guarded in-memory directory, seeded at startup.
type Memory struct {
	mu    sync.RWMutex
	users map[string]User
}

// NewMemory builds a directory from seed users.
func NewMemory(seed ...User) *Memory {
	m := &Memory{users: make(map[string]User, len(seed))}
	for _, u := range seed {
		m.users[u.ID] = u
	}
	return m
}

// Lookup returns a user by id.
func (m *Memory) Lookup(ctx context.Context, id string) (User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

// BindDevice records a verified device for a user. Rebinding replaces the
// previous device.
func (m *Memory) BindDevice(ctx context.Context, userID, deviceID string) error {
	if userID == "" || deviceID == "" {
		return errors.New("user and device required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.DeviceID = deviceID
	u.Verified = true
	m.users[userID] = u
	return nil
}

// DeviceBinding implements the trust gate's device lookup.
func (m *Memory) DeviceBinding(ctx context.Context, userID string) (string, bool, error) {
	u, err := m.Lookup(ctx, userID)
	if err != nil {
		return "", false, err
	}
	return u.DeviceID, u.Verified, nil
}
