// Package server wires the application together: configuration in,
// routes out. It is the composition root — every service, handler and
// middleware is constructed here and nowhere else.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/gohost/backend/internal/auth"
	"github.com/gohost/backend/internal/config"
	"github.com/gohost/backend/internal/handle"
	"github.com/gohost/backend/internal/handler"
	"github.com/gohost/backend/internal/mail"
	"github.com/gohost/backend/internal/middleware"
	sqliteRepo "github.com/gohost/backend/internal/repository/sqlite"
	"github.com/gohost/backend/internal/service"
	"github.com/gohost/backend/internal/vault"
)

// Server owns the router and the resources that must be released on
// shutdown, the database handle in particular.
type Server struct {
	router *chi.Mux
	cfg    *config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New assembles the full dependency chain:
//
//	sqlite.DB → repositories → services → handlers → routes
//
// Handlers never touch the database; services never touch HTTP.
func New(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		cfg:    cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupRoutes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}
	return s, nil
}

func (s *Server) setupRoutes() error {
	tokens, err := auth.NewTokenService(s.cfg.JWTSecret)
	if err != nil {
		return fmt.Errorf("token service: %w", err)
	}
	credVault, err := vault.New(s.cfg.VaultSecret)
	if err != nil {
		return fmt.Errorf("credential vault: %w", err)
	}

	users := s.db.Users()
	workspaces := s.db.Workspaces()
	projects := s.db.Projects()

	passwords := auth.NewPasswordService()
	otp := auth.NewOTPService()
	github := auth.NewGitHubProvider(s.cfg.GitHubClientID, s.cfg.GitHubClientSecret, s.cfg.GitHubCallbackURL)
	google := auth.NewGoogleProvider(s.cfg.GoogleClientID, s.cfg.GoogleClientSecret, s.cfg.GoogleCallbackURL)

	var mailer mail.Mailer
	if s.cfg.SMTPHost != "" {
		mailer = mail.NewSMTPMailer(s.cfg.SMTPHost, s.cfg.SMTPPort, s.cfg.SMTPUsername, s.cfg.SMTPPassword, s.cfg.SMTPFrom)
	} else {
		s.logger.Warn("SMTP not configured, verification codes will be logged")
		mailer = mail.NewLogMailer(s.logger)
	}

	authSvc := service.NewAuthService(
		users,
		handle.New(users.UsernameExists),
		tokens,
		passwords,
		otp,
		credVault,
		mailer,
		s.logger,
	)
	userSvc := service.NewUserService(users, s.logger)
	workspaceSvc := service.NewWorkspaceService(workspaces, users, s.logger)
	projectSvc := service.NewProjectService(projects, workspaces, handle.New(projects.DomainExists), s.logger)
	githubSvc := service.NewGitHubService(users, credVault, s.logger)

	authHandler := handler.NewAuthHandler(authSvc, github, google, tokens, s.cfg.FrontendURL, s.logger)
	userHandler := handler.NewUserHandler(authSvc, userSvc, s.logger)
	workspaceHandler := handler.NewWorkspaceHandler(workspaceSvc, s.logger)
	projectHandler := handler.NewProjectHandler(projectSvc, s.logger)
	githubHandler := handler.NewGitHubHandler(githubSvc, s.logger)

	guard := auth.RequireAuth(tokens, users, s.logger)

	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	s.router.Route("/api/v1", func(r chi.Router) {
		// Open routes: login, signup, verification, OAuth round trips.
		r.Post("/auth/login", authHandler.HandleLogin)
		r.Post("/auth/send-code-verification", authHandler.HandleSendCode)
		r.Post("/auth/verify-code", authHandler.HandleVerifyCode)
		r.Get("/auth/github", authHandler.HandleGitHubStart)
		r.Get("/auth/github/callback", authHandler.HandleGitHubCallback)
		r.Get("/auth/google", authHandler.HandleGoogleStart)
		r.Get("/auth/google/callback", authHandler.HandleGoogleCallback)
		r.Post("/user/create", userHandler.HandleCreate)

		// Guarded routes: a valid session for an active account.
		r.Group(func(r chi.Router) {
			r.Use(guard)

			r.Get("/user/me", userHandler.HandleMe)
			r.Get("/user/each/{userRef}", userHandler.HandleEach)
			r.Get("/user/all", userHandler.HandleAll)
			r.Put("/user/update", userHandler.HandleUpdate)

			r.Post("/workspace/create", workspaceHandler.HandleCreate)
			r.Get("/workspace/each/{workspaceId}", workspaceHandler.HandleEach)
			r.Get("/workspace/all", workspaceHandler.HandleAll)
			r.Put("/workspace/update/{workspaceId}", workspaceHandler.HandleUpdate)
			r.Delete("/workspace/delete/{workspaceId}", workspaceHandler.HandleDelete)
			r.Post("/workspace/member/{workspaceId}", workspaceHandler.HandleAddMember)
			r.Delete("/workspace/member/{workspaceId}/{userId}", workspaceHandler.HandleRemoveMember)

			r.Post("/project/create", projectHandler.HandleCreate)
			r.Get("/project/each/{projectId}", projectHandler.HandleEach)
			r.Get("/project/my/{workspaceId}", projectHandler.HandleMine)
			r.Put("/project/update/{projectId}", projectHandler.HandleUpdate)
			r.Delete("/project/delete/{projectId}", projectHandler.HandleDelete)

			r.Get("/github/list/repo", githubHandler.HandleListRepos)
		})
	})

	return nil
}

// Start runs the HTTP server until SIGINT/SIGTERM and then shuts down
// gracefully: stop accepting connections, drain in-flight requests,
// close the database.
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.cfg.Port),
			slog.String("database", s.cfg.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	s.logger.Info("server stopped")
	return nil
}
