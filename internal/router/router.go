package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/devyljin/jintranet-back/internal/config"
	"github.com/devyljin/jintranet-back/internal/handlers"
	"github.com/devyljin/jintranet-back/internal/jira"
	"github.com/devyljin/jintranet-back/internal/middleware"
	"github.com/devyljin/jintranet-back/internal/repository/postgres"
	"github.com/devyljin/jintranet-back/internal/service"
)

func New(log zerolog.Logger, db *pgxpool.Pool, cfg config.Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestLogger(log))
	r.Use(middleware.Recoverer(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.Origin},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))
	r.Use(httprate.LimitByIP(200, time.Minute))
	r.Use(middleware.WithAuth(log, cfg))

	// Health
	r.Get("/healthz", handlers.Health())

	// Repos + services
	userRepo := postgres.NewUserRepo(db)
	crossRepo := postgres.NewCrossRepo(db)
	channelRepo := postgres.NewChannelRepo(db)
	authSvc := service.NewAuthService(userRepo, cfg.SessionSecret)
	tracker := jira.NewClient(cfg.Jira, crossRepo, log)

	// Handlers
	ah := handlers.NewAuthHTTP(authSvc, userRepo)
	th := handlers.NewTicketHTTP(tracker, crossRepo, userRepo, log)
	ch := handlers.NewChannelHTTP(channelRepo)

	r.Route("/api", func(r chi.Router) {
		r.Post("/register", ah.Register())
		r.Post("/login", ah.Login())
		r.Post("/logout", ah.Logout())
		r.Get("/me", ah.Me())

		r.Route("/v1/jira", func(r chi.Router) {
			r.Use(middleware.RequireAuth)

			r.Get("/connection", th.TestConnection())
			r.Get("/metadata", th.Metadata(cfg.Jira.ProjectKey))
			r.Get("/my-tickets", th.MyTickets())

			r.Route("/tickets", func(r chi.Router) {
				r.Get("/", th.List())
				r.Post("/", th.Create())
				r.Route("/{key}", func(r chi.Router) {
					r.Get("/", th.Get())
					r.Post("/comment", th.AddComment())
					r.Post("/vote", th.AddVote())
					r.Delete("/vote", th.RemoveVote())
				})
			})
		})

		r.Route("/v1/chat/channels", func(r chi.Router) {
			r.Use(middleware.RequireAuth)

			r.Get("/", ch.List())
			r.Post("/", ch.Create())
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", ch.Get())
				r.With(middleware.RequireRoles("admin")).Delete("/", ch.Delete())
				r.Post("/messages", ch.AddMessage())
			})
		})
	})

	return r
}
