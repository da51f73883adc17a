package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"authsvc/internal/domain/models"
	"authsvc/internal/lib/password"
	"authsvc/internal/lib/sl"
	"authsvc/internal/storage"

	"gopkg.in/yaml.v3"
)

type seedFile struct {
	Users []struct {
		Username string `yaml:"username"`
		Password string `yaml:"password"`
		Role     string `yaml:"role"`
	} `yaml:"users"`
}

// SeedUsersFromFile creates the users listed in the YAML file at path.
func (a *Auth) SeedUsersFromFile(ctx context.Context, path string) (int, error) {
	const op = "auth.SeedUsersFromFile"

	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	defer f.Close()

	n, err := a.SeedUsers(ctx, f)
	if err != nil {
		return n, fmt.Errorf("%s: %w", op, err)
	}

	return n, nil
}

// SeedUsers creates bootstrap users from a YAML document and returns how many
// were created. Existing usernames and incomplete entries are skipped.
func (a *Auth) SeedUsers(ctx context.Context, r io.Reader) (int, error) {
	const op = "auth.SeedUsers"
	log := a.logger.With(slog.String("op", op))

	var sf seedFile
	if err := yaml.NewDecoder(r).Decode(&sf); err != nil && !errors.Is(err, io.EOF) {
		return 0, fmt.Errorf("%s: decode: %w", op, err)
	}

	created := 0
	for _, u := range sf.Users {
		if u.Username == "" || u.Password == "" {
			continue
		}

		exists, err := a.userProvider.UserExists(ctx, u.Username)
		if err != nil {
			return created, fmt.Errorf("%s: %w", op, err)
		}
		if exists {
			continue
		}

		role := u.Role
		if role == "" {
			role = models.RoleUser
		}

		if err := a.createUser(ctx, u.Username, u.Password, role); err != nil {
			if errors.Is(err, storage.ErrUserExists) {
				continue
			}
			if errors.Is(err, password.ErrTooLong) {
				log.Warn("skipping seed user", slog.String("username", u.Username), sl.Err(err))
				continue
			}
			log.Error("failed to seed user", slog.String("username", u.Username), sl.Err(err))
			return created, fmt.Errorf("%s: %w", op, err)
		}
		created++
	}

	log.Info("users seeded", slog.Int("created", created))

	return created, nil
}
