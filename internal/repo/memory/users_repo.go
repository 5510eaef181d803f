package memory

import (
	"context"
	"sync"
	"time"

	"github.com/geocoder89/todotask/internal/domain/user"
	"github.com/geocoder89/todotask/internal/service"
)

// UsersRepo keeps users in a map. It backs tests and local runs without Postgres.
type UsersRepo struct {
	mu      sync.RWMutex
	nextID  int64
	items   map[int64]user.User
	byEmail map[string]int64
	now     func() time.Time
}

func NewUsersRepo() *UsersRepo {
	return &UsersRepo{
		items:   make(map[int64]user.User),
		byEmail: make(map[string]int64),
		now:     time.Now,
	}
}

func (r *UsersRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]

	if !ok {
		return user.User{}, user.ErrNotFound
	}

	return r.items[id], nil
}

func (r *UsersRepo) GetByID(ctx context.Context, id int64) (user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.items[id]

	if !ok {
		return user.User{}, user.ErrNotFound
	}

	return u, nil
}

func (r *UsersRepo) Create(ctx context.Context, email, passwordHash string) (user.User, error) {
	u := r.allocate(email, passwordHash)

	r.mu.Lock()
	defer r.mu.Unlock()

	return u, r.insertLocked(u)
}

func (r *UsersRepo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.items)
}

// allocate reserves an id like a sequence would: ids of rolled back rows are not reused.
func (r *UsersRepo) allocate(email, passwordHash string) user.User {
	r.mu.Lock()
	r.nextID++
	id := r.nextID
	r.mu.Unlock()

	now := r.now().UTC()

	return user.User{
		ID:           id,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func (r *UsersRepo) insertLocked(u user.User) error {
	if _, taken := r.byEmail[u.Email]; taken {
		return user.ErrEmailTaken
	}

	r.items[u.ID] = u
	r.byEmail[u.Email] = u.ID

	return nil
}

// UnitOfWork stages creates per transaction and applies them on commit, so
// a failed request leaves nothing behind and a duplicate that slipped past
// the lookup is still rejected at commit time.
type UnitOfWork struct {
	repo *UsersRepo
}

func NewUnitOfWork(repo *UsersRepo) *UnitOfWork {
	return &UnitOfWork{repo: repo}
}

func (u *UnitOfWork) InTx(ctx context.Context, fn func(ctx context.Context, users service.UserStore) error) error {
	tx := &txStore{repo: u.repo}

	if err := fn(ctx, tx); err != nil {
		return err
	}

	return tx.commit()
}

func (u *UnitOfWork) Ping(ctx context.Context) error {
	return nil
}

type txStore struct {
	repo    *UsersRepo
	pending []user.User
}

func (t *txStore) GetByEmail(ctx context.Context, email string) (user.User, error) {
	for _, p := range t.pending {
		if p.Email == email {
			return p, nil
		}
	}

	return t.repo.GetByEmail(ctx, email)
}

func (t *txStore) GetByID(ctx context.Context, id int64) (user.User, error) {
	for _, p := range t.pending {
		if p.ID == id {
			return p, nil
		}
	}

	return t.repo.GetByID(ctx, id)
}

func (t *txStore) Create(ctx context.Context, email, passwordHash string) (user.User, error) {
	if _, err := t.GetByEmail(ctx, email); err == nil {
		return user.User{}, user.ErrEmailTaken
	}

	u := t.repo.allocate(email, passwordHash)
	t.pending = append(t.pending, u)

	return u, nil
}

func (t *txStore) commit() error {
	if len(t.pending) == 0 {
		return nil
	}

	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()

	for _, p := range t.pending {
		if _, taken := t.repo.byEmail[p.Email]; taken {
			return user.ErrEmailTaken
		}
	}

	for _, p := range t.pending {
		if err := t.repo.insertLocked(p); err != nil {
			return err
		}
	}

	return nil
}
