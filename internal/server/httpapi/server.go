// Package httpapi exposes the account operations over HTTP.
package httpapi

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/sgalindo-dev/veriauth/internal/logging"
	"github.com/sgalindo-dev/veriauth/internal/server/accounts"
)

type Server struct {
	app       *fiber.App
	address   string
	accounts  *accounts.Service
	logger    logging.Logger
	jwtSecret []byte
}

func NewServer(address string, l logging.Logger, svc *accounts.Service, secretKey string) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		app:       app,
		address:   address,
		accounts:  svc,
		logger:    l.With("module", "http_server"),
		jwtSecret: []byte(secretKey),
	}
	s.registerRoutes()

	return s
}

func (s *Server) registerRoutes() {
	api := s.app.Group("/api")
	api.Get("/health", s.handleHealth)

	auth := api.Group("/auth")
	auth.Post("/register", s.handleRegister)
	auth.Get("/verify-email", s.handleVerifyEmail)
	auth.Post("/login", s.handleLogin)
	auth.Post("/resend-verification", s.handleResendVerification)
	auth.Get("/me", s.requireSession, s.handleMe)
}

func (s *Server) Run(ctx context.Context) error {

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping HTTP server...")
		_ = s.app.ShutdownWithTimeout(5 * time.Second)
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", s.address)

	if err := s.app.Listen(s.address); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}
