package identity

import (
	"context"
	"sync"
)

// MemoryStore is the default credential store when no database is configured.
//
// A single mutex serializes all writes, which is what makes the refresh-hash
// compare-and-set race-free: two concurrent rotations observe the stored hash
// one after the other and only the first can match.
type MemoryStore struct {
	mu          sync.RWMutex
	byID        map[string]Account
	byEmailNorm map[string]string // normalized email -> account id
}

// NewMemoryStore constructs an empty in-memory Store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:        make(map[string]Account),
		byEmailNorm: make(map[string]string),
	}
}

// Create inserts the account, enforcing email uniqueness on the normalized form.
func (s *MemoryStore) Create(ctx context.Context, a Account) (Account, error) {
	if err := ctx.Err(); err != nil {
		return Account{}, err
	}
	if a.ID == "" || a.EmailNorm == "" {
		return Account{}, OpErrorf("identity.Create", ErrInvalidInput, "missing id or email")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEmailNorm[a.EmailNorm]; exists {
		return Account{}, ConflictError{Op: "identity.Create", Field: "email"}
	}
	if _, exists := s.byID[a.ID]; exists {
		return Account{}, ConflictError{Op: "identity.Create", Field: "id"}
	}

	s.byID[a.ID] = a
	s.byEmailNorm[a.EmailNorm] = a.ID
	return a, nil
}

// FindByEmail looks up by normalized email.
func (s *MemoryStore) FindByEmail(ctx context.Context, email string) (Account, bool, error) {
	if err := ctx.Err(); err != nil {
		return Account{}, false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmailNorm[NormalizeEmail(email)]
	if !ok {
		return Account{}, false, nil
	}
	a, ok := s.byID[id]
	return a, ok, nil
}

// FindByID looks up by account id.
func (s *MemoryStore) FindByID(ctx context.Context, id string) (Account, bool, error) {
	if err := ctx.Err(); err != nil {
		return Account{}, false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.byID[id]
	return a, ok, nil
}

// Update merges non-nil patch fields into the stored account.
func (s *MemoryStore) Update(ctx context.Context, id string, p Patch) (Account, error) {
	if err := ctx.Err(); err != nil {
		return Account{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[id]
	if !ok {
		return Account{}, NotFoundError{Op: "identity.Update", Resource: "account"}
	}

	if p.Username != nil {
		a.Username = *p.Username
	}
	if p.AvatarURL != nil {
		a.AvatarURL = *p.AvatarURL
	}
	if p.AboutText != nil {
		a.AboutText = *p.AboutText
	}
	if p.AboutVideoURL != nil {
		a.AboutVideoURL = *p.AboutVideoURL
	}

	s.byID[id] = a
	return a, nil
}

// SetRefreshHash overwrites the live refresh hash (nil clears it).
func (s *MemoryStore) SetRefreshHash(ctx context.Context, id string, hash *string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[id]
	if !ok {
		return NotFoundError{Op: "identity.SetRefreshHash", Resource: "account"}
	}

	if hash == nil {
		a.RefreshTokenHash = nil
	} else {
		v := *hash
		a.RefreshTokenHash = &v
	}
	s.byID[id] = a
	return nil
}

// RotateRefreshHash swaps current -> next under the store lock.
func (s *MemoryStore) RotateRefreshHash(ctx context.Context, id, current, next string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.byID[id]
	if !ok {
		return NotFoundError{Op: "identity.RotateRefreshHash", Resource: "account"}
	}
	if a.RefreshTokenHash == nil || *a.RefreshTokenHash != current {
		return OpErrorf("identity.RotateRefreshHash", ErrRotationConflict, "stored hash changed")
	}

	v := next
	a.RefreshTokenHash = &v
	s.byID[id] = a
	return nil
}
