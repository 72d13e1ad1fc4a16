package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/phrazzld/sage-api/internal/api"
	apiMiddleware "github.com/phrazzld/sage-api/internal/api/middleware"
)

// setupRouter creates and configures the application router with all routes
// and middleware. It accepts the application dependencies to create handlers
// and register routes. Returns the configured router.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	// Apply standard middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.TraceMiddleware)

	// Create API handlers using the application's services
	processingHandler := api.NewProcessingHandler(
		app.processing,
		app.config.Storage.MaxUploadSizeMB,
	)
	authHandler := api.NewAuthHandler(
		app.userStore,
		app.apiKeyStore,
		app.jwtService,
		app.passwordVerifier,
		app.keyEncryptor,
		time.Duration(app.config.Auth.TokenLifetimeMinutes)*time.Minute,
	)
	adminHandler := api.NewAdminHandler(app.userStore)
	authMiddleware := apiMiddleware.NewAuthMiddleware(app.jwtService, app.userStore)

	// Register routes
	r.Route("/api", func(r chi.Router) {
		// Document processing endpoints. Upload and regenerate accept an
		// optional bearer token so stored provider keys can be resolved.
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.AuthenticateOptional)
			r.Post("/upload", processingHandler.Upload)
			r.Post("/regenerate/{sessionID}/{questionIndex}", processingHandler.Regenerate)
		})
		r.Get("/languages", processingHandler.Languages)
		r.Get("/status/{sessionID}", processingHandler.Status)
		r.Get("/download/{sessionID}", processingHandler.Download)

		// Authentication endpoints (public)
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)
		r.Post("/auth/refresh", authHandler.Refresh)

		// Account routes
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)
			r.Get("/auth/me", authHandler.Me)
			r.Post("/auth/api-keys", authHandler.StoreAPIKey)
			r.Get("/auth/api-keys", authHandler.ListAPIKeys)
			r.Delete("/auth/api-keys/{provider}", authHandler.DeleteAPIKey)
		})

		// Admin routes
		r.Route("/admin", func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)
			r.Use(authMiddleware.RequireAdmin)
			r.Get("/users", adminHandler.ListUsers)
			r.Get("/stats", adminHandler.Stats)
			r.Patch("/users/{userID}", adminHandler.UpdateUser)
			r.Delete("/users/{userID}", adminHandler.DeleteUser)
		})
	})

	// Health check endpoint
	r.Get("/health", api.HealthCheck)

	return r
}
