package api

import (
	"log/slog"
	"net/http"
	"time"

	"family_tree/internal/api/handler"
	"family_tree/internal/api/middleware"
	"family_tree/internal/api/session"
	"family_tree/internal/app/service"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

func NewRouter(
	authService *service.AuthService,
	memberService *service.MemberService,
	transport *session.Transport,
	protectedPrefixes []string,
	log *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Base Middlewares
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger) // Chi's logger
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(60 * time.Second))

	// Session gate runs before routing so every path under a protected
	// prefix is covered, including ones no route matches.
	r.Use(middleware.RequireSession(protectedPrefixes, transport, authService, log))

	// Public health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})

	r.Route("/api", func(api chi.Router) {
		authHandler := handler.NewAuthHandler(authService, transport, log)
		api.Route("/auth", authHandler.RegisterRoutes)

		memberHandler := handler.NewMemberHandler(memberService, log)
		api.Route("/members", memberHandler.RegisterMemberRoutes)
		api.Route("/family", memberHandler.RegisterFamilyRoutes)
	})

	return r
}
