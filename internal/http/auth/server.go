package auth

import (
	"context"
	"errors"

	"authsvc/internal/domain/models"
	"authsvc/internal/http/middleware"
	"authsvc/internal/services/auth"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/gofiber/fiber/v2"
)

const (
	msgRegistered     = "registration completed"
	msgInternalError  = "internal server error"
	msgMalformedInput = "malformed request body"
)

type Auth interface {
	Register(
		ctx context.Context,
		username string,
		password string,
	) error
	Login(
		ctx context.Context,
		username string,
		password string,
	) (models.TokenPair, error)
	Refresh(
		ctx context.Context,
		refreshToken string,
	) (accessToken string, err error)
	UserInfo(
		ctx context.Context,
		username string,
	) (*models.User, error)
}

type serverAPI struct {
	auth Auth
}

// Register mounts the /api/auth routes on router.
func Register(router fiber.Router, auth Auth) {
	s := &serverAPI{auth: auth}

	g := router.Group("/api/auth")
	g.Post("/register", s.Register)
	g.Post("/login", s.Login)
	g.Get("/info", s.Info)
	g.Post("/refresh", s.Refresh)
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (r credentialsRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

// refreshRequest has no field rules: an empty token is rejected by the
// service as an invalid token.
type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type loginResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type refreshResponse struct {
	AccessToken string `json:"accessToken"`
}

type infoResponse struct {
	Username string `json:"username"`
	Role     string `json:"role"`
}

func (s *serverAPI) Register(c *fiber.Ctx) error {
	var req credentialsRequest
	if err := parse(c, &req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, err.Error())
	}

	err := s.auth.Register(c.UserContext(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrUsernameTaken) {
			return errorResponse(c, fiber.StatusBadRequest, auth.ErrUsernameTaken.Error())
		}
		if errors.Is(err, auth.ErrPasswordTooLong) {
			return errorResponse(c, fiber.StatusBadRequest, auth.ErrPasswordTooLong.Error())
		}
		return errorResponse(c, fiber.StatusInternalServerError, msgInternalError)
	}

	return c.JSON(fiber.Map{"message": msgRegistered})
}

func (s *serverAPI) Login(c *fiber.Ctx) error {
	var req credentialsRequest
	if err := parse(c, &req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, err.Error())
	}

	pair, err := s.auth.Login(c.UserContext(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			return errorResponse(c, fiber.StatusBadRequest, auth.ErrInvalidCredentials.Error())
		}
		return errorResponse(c, fiber.StatusInternalServerError, msgInternalError)
	}

	return c.JSON(loginResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
}

func (s *serverAPI) Info(c *fiber.Ctx) error {
	username, ok := middleware.Username(c)
	if !ok {
		return errorResponse(c, fiber.StatusUnauthorized, auth.ErrInvalidToken.Error())
	}

	user, err := s.auth.UserInfo(c.UserContext(), username)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			return errorResponse(c, fiber.StatusNotFound, auth.ErrUserNotFound.Error())
		}
		return errorResponse(c, fiber.StatusInternalServerError, msgInternalError)
	}

	return c.JSON(infoResponse{
		Username: user.Username,
		Role:     user.Role,
	})
}

func (s *serverAPI) Refresh(c *fiber.Ctx) error {
	var req refreshRequest
	if err := parse(c, &req); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, err.Error())
	}

	accessToken, err := s.auth.Refresh(c.UserContext(), req.RefreshToken)
	if err != nil {
		for _, target := range []error{auth.ErrInvalidToken, auth.ErrTokenNotFound, auth.ErrTokenExpired} {
			if errors.Is(err, target) {
				return errorResponse(c, fiber.StatusUnauthorized, target.Error())
			}
		}
		return errorResponse(c, fiber.StatusInternalServerError, msgInternalError)
	}

	return c.JSON(refreshResponse{AccessToken: accessToken})
}

type validatable interface {
	Validate() error
}

func parse(c *fiber.Ctx, req any) error {
	if err := c.BodyParser(req); err != nil {
		return errors.New(msgMalformedInput)
	}
	if v, ok := req.(validatable); ok {
		return v.Validate()
	}
	return nil
}

func errorResponse(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(fiber.Map{"error": msg})
}
