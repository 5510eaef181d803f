package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/geocoder89/todotask/internal/domain/user"
	"github.com/geocoder89/todotask/internal/service"
	"github.com/redis/go-redis/v9"
)

// UserBackend stores looked-up users under string keys.
type UserBackend interface {
	Get(ctx context.Context, key string) (user.User, bool, error)
	Set(ctx context.Context, key string, u user.User) error
}

func emailKey(email string) string { return "user:email:" + email }
func idKey(id int64) string        { return "user:id:" + strconv.FormatInt(id, 10) }

// MemoryUsers keeps users in a process-local TTL map.
type MemoryUsers struct {
	m *TTL[user.User]
}

func NewMemoryUsers(ttl time.Duration) *MemoryUsers {
	return &MemoryUsers{m: NewTTL[user.User](ttl)}
}

func (c *MemoryUsers) Get(_ context.Context, key string) (user.User, bool, error) {
	u, ok := c.m.Get(key)
	return u, ok, nil
}

func (c *MemoryUsers) Set(_ context.Context, key string, u user.User) error {
	c.m.Set(key, u)
	return nil
}

// cachedUser is the redis payload. user.User hides its hash from JSON.
type cachedUser struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// RedisUsers keeps users in redis as JSON with an expiry.
type RedisUsers struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func NewRedisUsers(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisUsers {
	if ttl <= 0 {
		ttl = time.Minute
	}

	return &RedisUsers{client: client, prefix: prefix, ttl: ttl}
}

func (c *RedisUsers) Get(ctx context.Context, key string) (user.User, bool, error) {
	raw, err := c.client.Get(ctx, c.prefix+key).Bytes()

	if err != nil {
		if errors.Is(err, redis.Nil) {
			return user.User{}, false, nil
		}

		return user.User{}, false, fmt.Errorf("redis get: %w", err)
	}

	var cu cachedUser

	if err := json.Unmarshal(raw, &cu); err != nil {
		return user.User{}, false, fmt.Errorf("decode cached user: %w", err)
	}

	return user.User{
		ID:           cu.ID,
		Email:        cu.Email,
		PasswordHash: cu.PasswordHash,
		CreatedAt:    cu.CreatedAt.UTC(),
		UpdatedAt:    cu.UpdatedAt.UTC(),
	}, true, nil
}

func (c *RedisUsers) Set(ctx context.Context, key string, u user.User) error {
	raw, err := json.Marshal(cachedUser{
		ID:           u.ID,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	})

	if err != nil {
		return err
	}

	return c.client.Set(ctx, c.prefix+key, raw, c.ttl).Err()
}

// UserStore is a read-through decorator. Only found users are cached, so a
// miss never hides a registration made by another instance. Create is
// never cached because the surrounding transaction may still roll back.
type UserStore struct {
	next    service.UserStore
	backend UserBackend
	log     *slog.Logger
}

func NewUserStore(next service.UserStore, backend UserBackend, log *slog.Logger) *UserStore {
	if log == nil {
		log = slog.Default()
	}

	return &UserStore{next: next, backend: backend, log: log}
}

// Decorator returns a function suitable for wrapping each per-transaction store.
func Decorator(backend UserBackend, log *slog.Logger) func(service.UserStore) service.UserStore {
	return func(next service.UserStore) service.UserStore {
		return NewUserStore(next, backend, log)
	}
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (user.User, error) {
	return s.lookup(ctx, emailKey(email), func() (user.User, error) {
		return s.next.GetByEmail(ctx, email)
	})
}

func (s *UserStore) GetByID(ctx context.Context, id int64) (user.User, error) {
	return s.lookup(ctx, idKey(id), func() (user.User, error) {
		return s.next.GetByID(ctx, id)
	})
}

func (s *UserStore) Create(ctx context.Context, email, passwordHash string) (user.User, error) {
	return s.next.Create(ctx, email, passwordHash)
}

func (s *UserStore) lookup(ctx context.Context, key string, load func() (user.User, error)) (user.User, error) {
	if u, ok, err := s.backend.Get(ctx, key); err != nil {
		// cache trouble degrades to a plain read
		s.log.WarnContext(ctx, "user cache get failed", "key", key, "err", err)
	} else if ok {
		return u, nil
	}

	u, err := load()

	if err != nil {
		return user.User{}, err
	}

	for _, k := range []string{emailKey(u.Email), idKey(u.ID)} {
		if err := s.backend.Set(ctx, k, u); err != nil {
			s.log.WarnContext(ctx, "user cache set failed", "key", k, "err", err)
		}
	}

	return u, nil
}
