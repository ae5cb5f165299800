package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"belgaum-backend/internal/handlers"
	"belgaum-backend/internal/middleware"
	"belgaum-backend/internal/websocket"
)

func New(
	jwtAuth *middleware.JWTAuth,
	contactHandler *handlers.ContactHandler,
	chatHandler *handlers.ChatHandler,
	adminHandler *handlers.AdminHandler,
	wsHub *websocket.Hub,
	publicLimiter *middleware.RateLimiter,
	allowedOrigins []string,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestLogger(&chimiddleware.DefaultLogFormatter{
		Logger:  zap.NewStdLog(logger),
		NoColor: true,
	}))
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(allowedOrigins))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {

		// ──── Contact form (public) ────
		r.With(publicLimiter.Middleware).Post("/contact", contactHandler.Submit)

		// ──── Chat widget ────
		r.Route("/chat", func(r chi.Router) {
			r.With(publicLimiter.Middleware).Post("/session", chatHandler.CreateSession)
			r.Get("/ws", wsHub.HandleWebSocket)
		})

		// ──── Admin ────
		r.Route("/admin", func(r chi.Router) {
			r.With(publicLimiter.Middleware).Post("/login", adminHandler.Login)

			r.Group(func(r chi.Router) {
				r.Use(jwtAuth.AdminMiddleware)
				r.Get("/contacts", adminHandler.ListContacts)
				r.Get("/audits", adminHandler.ListAudits)
			})
		})
	})

	return r
}
