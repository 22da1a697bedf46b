package httpapi

import (
	"errors"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/gofiber/fiber/v2"

	"github.com/sgalindo-dev/veriauth/internal/common"
	"github.com/sgalindo-dev/veriauth/internal/server/accounts"
)

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
}

func (r registerRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Username, validation.Required, validation.Length(2, 64)),
		// bcrypt ignores everything past 72 bytes
		validation.Field(&r.Password, validation.Required, validation.Length(6, 72)),
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r loginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
		validation.Field(&r.Password, validation.Required),
	)
}

type resendRequest struct {
	Email string `json:"email"`
}

func (r resendRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required, is.Email),
	)
}

// accountResponse is the external view of an account. The password hash
// never leaves the service.
type accountResponse struct {
	ID            string `json:"id"`
	Username      string `json:"username"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	CreatedAt     string `json:"created_at"`
}

func toAccountResponse(a *accounts.Account) accountResponse {
	return accountResponse{
		ID:            a.ID,
		Username:      a.Username,
		Email:         a.Email,
		VerifiedEmail: a.VerifiedEmail,
		CreatedAt:     a.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "OK"})
}

func (s *Server) handleRegister(c *fiber.Ctx) error {

	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid json"})
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	s.logger.Info(c.UserContext(), "registration request", "email", req.Email)

	account, err := s.accounts.Register(c.UserContext(), req.Username, req.Password, req.Email)
	if err != nil {
		return s.errorResponse(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(toAccountResponse(account))
}

func (s *Server) handleVerifyEmail(c *fiber.Ctx) error {

	token := c.Query("token")
	if token == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "token is required"})
	}

	if err := s.accounts.VerifyEmail(c.UserContext(), token); err != nil {
		return s.errorResponse(c, err)
	}

	return c.JSON(fiber.Map{"message": "email verified"})
}

func (s *Server) handleLogin(c *fiber.Ctx) error {

	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid json"})
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	token, err := s.accounts.Login(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return s.errorResponse(c, err)
	}

	return c.JSON(fiber.Map{"authorization_token": token})
}

func (s *Server) handleResendVerification(c *fiber.Ctx) error {

	var req resendRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid json"})
	}
	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	if err := s.accounts.ResendVerification(c.UserContext(), req.Email); err != nil {
		return s.errorResponse(c, err)
	}

	return c.JSON(fiber.Map{"message": "verification email sent"})
}

func (s *Server) handleMe(c *fiber.Ctx) error {
	claims := sessionFromContext(c)
	if claims == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	// snapshot taken at login time; not re-read from the store
	return c.JSON(fiber.Map{
		"id":       claims.AccountID,
		"username": claims.Username,
		"email":    claims.Email,
	})
}

// errorResponse translates the service's error taxonomy into stable response
// codes. Anything unclassified is logged and reported as an opaque server
// error.
func (s *Server) errorResponse(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, common.ErrEmailAlreadyRegistered),
		errors.Is(err, common.ErrAlreadyVerified):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})

	case errors.Is(err, common.ErrInvalidToken):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid or expired verification link"})

	case errors.Is(err, common.ErrAccountNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})

	case errors.Is(err, common.ErrEmailNotVerified),
		errors.Is(err, common.ErrInvalidCredentials):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})

	case errors.Is(err, common.ErrNotificationDeliveryFailed):
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})

	default:
		s.logger.Error(c.UserContext(), "request failed", "path", c.Path(), "error", err.Error())
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal server error"})
	}
}
