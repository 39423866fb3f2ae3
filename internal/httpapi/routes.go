package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/geman220/ECS-Discord-Bot-sub006/internal/hub"
	"github.com/geman220/ECS-Discord-Bot-sub006/internal/ws"
)

// SetupRoutes builds the lineupd router *with* the hub injected.
func SetupRoutes(h *hub.Hub, authz ws.Authorizer, allowOrigins []string, log *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", Healthz)
	r.Get("/ws", ws.Handler(h, authz, log.Named("ws")))

	r.Route("/api/v1/matches/{matchID}/teams/{teamID}/lineup", func(r chi.Router) {
		r.Get("/", GetLineup(h, authz))
		r.Put("/", PutLineup(h, authz, log.Named("http")))
		r.Delete("/position/{playerID}", DeletePosition(h, authz))
	})

	c := cors.New(cors.Options{
		AllowedOrigins: allowOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", editorIDHeader},
	})
	return c.Handler(r)
}
