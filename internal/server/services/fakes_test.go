package services

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/dmitrijs2005/taskboard/internal/common"
	"github.com/dmitrijs2005/taskboard/internal/dbx"
	"github.com/dmitrijs2005/taskboard/internal/server/audit"
	"github.com/dmitrijs2005/taskboard/internal/server/models"
	"github.com/dmitrijs2005/taskboard/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/taskboard/internal/server/repositories/users"
	"github.com/dmitrijs2005/taskboard/internal/server/tokenstore"
)

type fakeUsers struct {
	mu      sync.Mutex
	byEmail map[string]*models.User
	byID    map[string]*models.User
	err     error
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byEmail: map[string]*models.User{}, byID: map[string]*models.User{}}
}

func (f *fakeUsers) Create(_ context.Context, u *models.User) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if _, ok := f.byEmail[u.Email]; ok {
		return nil, common.ErrConflict
	}
	cp := *u
	f.byEmail[u.Email] = &cp
	f.byID[u.ID] = &cp
	return &cp, nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.byEmail[email]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return u, nil
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.byID[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return u, nil
}

type fakeRepoManager struct {
	users *fakeUsers
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Dialect() dbx.Dialect                         { return dbx.SQLite }
func (m *fakeRepoManager) Users(dbx.DBTX) users.Repository              { return m.users }
func (m *fakeRepoManager) RefreshTokens(dbx.DBTX) refreshtokens.Repository {
	return nil
}

// memTokens is an in-memory RefreshTokenStore with the same CAS semantics
// as the real stores.
type memTokens struct {
	mu        sync.Mutex
	records   map[string]*models.RefreshToken
	saveErr   error
	rotateErr error
}

func newMemTokens() *memTokens {
	return &memTokens{records: map[string]*models.RefreshToken{}}
}

func (m *memTokens) Save(_ context.Context, t *models.RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	if _, ok := m.records[t.TokenHash]; ok {
		return common.ErrConflict
	}
	cp := *t
	m.records[t.TokenHash] = &cp
	return nil
}

func (m *memTokens) FindByHash(_ context.Context, h string) (*models.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.records[h]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memTokens) Revoke(_ context.Context, h string, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.records[h]
	if !ok {
		return common.ErrorNotFound
	}
	if t.RevokedAt == nil {
		t.RevokedAt = &now
	}
	return nil
}

func (m *memTokens) Rotate(_ context.Context, oldHash string, next *models.RefreshToken, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rotateErr != nil {
		return m.rotateErr
	}
	old, ok := m.records[oldHash]
	if !ok || old.UserID != next.UserID || !old.IsActive(now) {
		return tokenstore.ErrInactive
	}
	nh := next.TokenHash
	old.RevokedAt = &now
	old.ReplacedByTokenHash = &nh
	cp := *next
	m.records[nh] = &cp
	return nil
}

func (m *memTokens) active(now time.Time) []*models.RefreshToken {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.RefreshToken
	for _, t := range m.records {
		if t.IsActive(now) {
			out = append(out, t)
		}
	}
	return out
}

type recorder struct {
	mu     sync.Mutex
	events []audit.Event
}

func (r *recorder) Record(_ context.Context, e audit.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) kinds() []audit.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []audit.Kind
	for _, e := range r.events {
		out = append(out, e.Kind)
	}
	return out
}
