package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"authsvc/internal/domain/models"
	"authsvc/internal/lib/password"
	"authsvc/internal/lib/sl"
	"authsvc/internal/storage"
)

type Auth struct {
	logger          *slog.Logger
	userSaver       UserSaver
	userProvider    UserProvider
	tokenProvider   RefreshTokenProvider
	signer          TokenSigner
	bcryptCost      int
	refreshStoreTTL time.Duration
	now             func() time.Time
}

type UserSaver interface {
	SaveUser(ctx context.Context, user models.User) error
}

type UserProvider interface {
	User(ctx context.Context, username string) (*models.User, error)
	UserExists(ctx context.Context, username string) (bool, error)
}

type RefreshTokenProvider interface {
	SaveRefreshToken(ctx context.Context, token models.RefreshToken) error
	RefreshToken(ctx context.Context, token string) (*models.RefreshToken, error)
	DeleteRefreshToken(ctx context.Context, username string) error
}

type TokenSigner interface {
	IssueAccessToken(subject string) (string, error)
	IssueRefreshToken(subject string) (string, error)
	Validate(token string) (subject string, ok bool)
}

var (
	ErrUsernameTaken      = errors.New("username is already in use")
	ErrPasswordTooLong    = errors.New("password must be at most 72 bytes")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidToken       = errors.New("invalid token")
	ErrTokenNotFound      = errors.New("refresh token not found")
	ErrTokenExpired       = errors.New("refresh token expired")
	ErrUserNotFound       = errors.New("user not found")
)

// New returns a new instance of the Auth service. refreshStoreTTL is how long
// a stored refresh token row stays usable; it is checked independently from
// the expiry embedded in the token itself.
func New(
	logger *slog.Logger,
	userSaver UserSaver,
	userProvider UserProvider,
	tokenProvider RefreshTokenProvider,
	signer TokenSigner,
	bcryptCost int,
	refreshStoreTTL time.Duration,
) *Auth {
	return &Auth{
		logger:          logger,
		userSaver:       userSaver,
		userProvider:    userProvider,
		tokenProvider:   tokenProvider,
		signer:          signer,
		bcryptCost:      bcryptCost,
		refreshStoreTTL: refreshStoreTTL,
		now:             time.Now,
	}
}

// Register creates a user with the default role.
func (a *Auth) Register(ctx context.Context, username string, pass string) error {
	const op = "auth.Register"
	log := a.logger.With(
		slog.String("op", op),
		slog.String("username", username),
	)
	log.Info("register request")

	exists, err := a.userProvider.UserExists(ctx, username)
	if err != nil {
		log.Error("failed to check username", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}
	if exists {
		log.Warn("username already taken")
		return fmt.Errorf("%s: %w", op, ErrUsernameTaken)
	}

	if err := a.createUser(ctx, username, pass, models.RoleUser); err != nil {
		if errors.Is(err, storage.ErrUserExists) {
			log.Warn("username taken concurrently", sl.Err(err))
			return fmt.Errorf("%s: %w", op, ErrUsernameTaken)
		}
		if errors.Is(err, password.ErrTooLong) {
			log.Warn("password too long")
			return fmt.Errorf("%s: %w", op, ErrPasswordTooLong)
		}
		log.Error("failed to save user", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user registered")

	return nil
}

func (a *Auth) createUser(ctx context.Context, username, pass, role string) error {
	passHash, err := password.Hash(pass, a.bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	return a.userSaver.SaveUser(ctx, models.User{
		Username: username,
		PassHash: passHash,
		Role:     role,
	})
}

// Login verifies the credentials and returns a fresh access and refresh
// token. The refresh token replaces any token previously stored for the user.
func (a *Auth) Login(ctx context.Context, username string, pass string) (models.TokenPair, error) {
	const op = "auth.Login"
	log := a.logger.With(
		slog.String("op", op),
		slog.String("username", username),
	)
	log.Info("login request")

	user, err := a.userProvider.User(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Warn("user not found", sl.Err(err))
			return models.TokenPair{}, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}
		log.Error("failed to get user", sl.Err(err))
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := password.Compare(user.PassHash, pass); err != nil {
		if errors.Is(err, password.ErrMismatch) {
			log.Warn("invalid password")
			return models.TokenPair{}, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}
		log.Error("failed to compare password", sl.Err(err))
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	accessToken, err := a.signer.IssueAccessToken(user.Username)
	if err != nil {
		log.Error("failed to generate access token", sl.Err(err))
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	refreshToken, err := a.signer.IssueRefreshToken(user.Username)
	if err != nil {
		log.Error("failed to generate refresh token", sl.Err(err))
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	err = a.tokenProvider.SaveRefreshToken(ctx, models.RefreshToken{
		Username:  user.Username,
		Token:     refreshToken,
		ExpiresAt: a.now().Add(a.refreshStoreTTL),
	})
	if err != nil {
		log.Error("failed to save refresh token", sl.Err(err))
		return models.TokenPair{}, fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user logged in")

	return models.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

// Refresh exchanges the active refresh token of a user for a new access
// token. The refresh token itself is not rotated.
func (a *Auth) Refresh(ctx context.Context, refreshToken string) (string, error) {
	const op = "auth.Refresh"
	log := a.logger.With(slog.String("op", op))
	log.Info("refresh request")

	username, ok := a.signer.Validate(refreshToken)
	if !ok {
		log.Warn("refresh token failed validation")
		return "", fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}
	log = log.With(slog.String("username", username))

	stored, err := a.tokenProvider.RefreshToken(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, storage.ErrTokenNotFound) {
			log.Warn("refresh token is not the active one", sl.Err(err))
			return "", fmt.Errorf("%s: %w", op, ErrTokenNotFound)
		}
		log.Error("failed to get refresh token", sl.Err(err))
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if stored.ExpiresAt.Before(a.now()) {
		log.Warn("stored refresh token expired")
		if err := a.tokenProvider.DeleteRefreshToken(ctx, stored.Username); err != nil {
			log.Error("failed to delete expired refresh token", sl.Err(err))
			return "", fmt.Errorf("%s: %w", op, err)
		}
		return "", fmt.Errorf("%s: %w", op, ErrTokenExpired)
	}

	accessToken, err := a.signer.IssueAccessToken(username)
	if err != nil {
		log.Error("failed to generate access token", sl.Err(err))
		return "", fmt.Errorf("%s: %w", op, err)
	}

	log.Info("access token refreshed")

	return accessToken, nil
}

// UserInfo returns the stored record of an authenticated caller.
func (a *Auth) UserInfo(ctx context.Context, username string) (*models.User, error) {
	const op = "auth.UserInfo"
	log := a.logger.With(
		slog.String("op", op),
		slog.String("username", username),
	)

	user, err := a.userProvider.User(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Warn("authenticated user not found", sl.Err(err))
			return nil, fmt.Errorf("%s: %w", op, ErrUserNotFound)
		}
		log.Error("failed to get user", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return user, nil
}
