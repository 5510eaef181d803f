package db

import (
	"context"
	"log/slog"

	"github.com/geocoder89/todotask/internal/config"
	"github.com/geocoder89/todotask/internal/domain/user"
)

type UserEnsurer interface {
	EnsureUser(ctx context.Context, email, password string) (user.User, bool, error)
}

// EnsureSeedUser creates the configured bootstrap account unless it exists.
// It goes through the normal registration rules, so a bad email or a short
// password fails startup instead of writing an unusable row.
func EnsureSeedUser(ctx context.Context, accounts UserEnsurer, cfg config.Config, log *slog.Logger) error {
	if cfg.SeedUserEmail == "" || cfg.SeedUserPassword == "" {
		return nil
	}

	u, created, err := accounts.EnsureUser(ctx, cfg.SeedUserEmail, cfg.SeedUserPassword)

	if err != nil {
		return err
	}

	if created {
		log.Info("seed user created", "user_id", u.ID)
	} else {
		log.Debug("seed user already present", "user_id", u.ID)
	}

	return nil
}
