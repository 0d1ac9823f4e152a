package api

import (
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"chatstream-backend/internal/config"
	"chatstream-backend/internal/handlers"
)

// RouterDependencies holds all the dependencies required by the router setup,
// primarily handlers and configuration.
type RouterDependencies struct {
	AuthHandler     *handlers.AuthHandler
	ChatHandler     *handlers.ChatHandlers
	DocumentHandler *handlers.DocumentHandlers
	Config          *config.Config
}

// NewRouter creates and configures the main Chi router for the application.
func NewRouter(deps RouterDependencies) *chi.Mux {
	r := chi.NewRouter()

	// --- Base Middleware Stack ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// --- CORS Configuration ---
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:5173", "https://*.vercel.app"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Requested-With"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// --- Public Routes (No JWT Required) ---
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	r.Route("/v1/auth", func(r chi.Router) {
		if deps.AuthHandler == nil {
			panic("AuthHandler dependency is nil in router setup")
		}
		r.Post("/register", deps.AuthHandler.HandleRegister)
		r.Post("/login", deps.AuthHandler.HandleLogin)
		r.Post("/logout", deps.AuthHandler.HandleLogout)
	})

	// --- Authenticated Routes (JWT Required) ---
	r.Route("/v1", func(r chi.Router) {
		r.Use(JwtAuthMiddleware(deps.Config.JWTSecret))

		if deps.AuthHandler != nil {
			r.Get("/auth/me", deps.AuthHandler.HandleMe)
		}

		if deps.ChatHandler != nil {
			r.Route("/ai", func(r chi.Router) {
				// The stream endpoint holds the connection open for the
				// whole generation, so it stays outside the timeout
				// middleware applied to the rest of the group.
				r.Post("/streamtext", deps.ChatHandler.HandleStreamText)

				r.Group(func(r chi.Router) {
					r.Use(middleware.Timeout(60 * time.Second))
					r.Get("/messages", deps.ChatHandler.HandleGetMessages)
					r.Delete("/messages", deps.ChatHandler.HandleClearMessages)
				})
			})
		} else {
			log.Println("WARN: ChatHandler dependency is nil, skipping /v1/ai routes.")
		}

		if deps.DocumentHandler != nil {
			r.Group(func(r chi.Router) {
				r.Use(middleware.Timeout(60 * time.Second))
				r.Route("/documents", func(r chi.Router) {
					r.Post("/", deps.DocumentHandler.HandleCreateDocument)
					r.Get("/", deps.DocumentHandler.HandleListDocuments)
					r.Delete("/{documentID}", deps.DocumentHandler.HandleDeleteDocument)
				})
			})
		} else {
			log.Println("WARN: DocumentHandler dependency is nil, skipping /v1/documents routes.")
		}
	})

	return r
}
