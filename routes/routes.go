package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/Dosada05/tournament-manager/docs"
	"github.com/Dosada05/tournament-manager/handlers"
	"github.com/Dosada05/tournament-manager/metrics"
	"github.com/Dosada05/tournament-manager/middleware"
	"github.com/Dosada05/tournament-manager/services"
)

type Handlers struct {
	Sport       *handlers.SportHandler
	Format      *handlers.FormatHandler
	Player      *handlers.PlayerHandler
	Team        *handlers.TeamHandler
	Tournament  *handlers.TournamentHandler
	Participant *handlers.ParticipantHandler
	Match       *handlers.MatchHandler
	Bracket     *handlers.BracketHandler
	Publication *handlers.PublicationHandler
	WebSocket   *handlers.WebSocketHandler
}

type Options struct {
	Auth           *middleware.Authenticator
	RateLimiter    *middleware.RateLimiter
	AllowedOrigins []string
}

func SetupRoutes(h Handlers, opts Options) *chi.Mux {
	router := chi.NewRouter()

	router.Use(chiMiddleware.RequestID)
	router.Use(chiMiddleware.RealIP)
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	router.Use(metrics.InstrumentHandler)

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Handle("/metrics", metrics.Handler())
	router.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	router.Get("/ws/tournaments/{tournamentID}", h.WebSocket.ServeWs)

	router.Group(func(r chi.Router) {
		if opts.RateLimiter != nil {
			r.Use(opts.RateLimiter.Limit)
		}
		r.Get("/public/tournaments/{tournamentID}/results", h.Publication.PublicResults)
	})

	// Публичные маршруты для просмотра
	router.Group(func(r chi.Router) {
		r.Get("/sports", h.Sport.GetAllSports)
		r.Get("/sports/presets", h.Sport.ListPresets)
		r.Get("/sports/{sportID}", h.Sport.GetSportByID)
		r.Get("/formats", h.Format.GetAllFormats)
		r.Get("/formats/{formatID}", h.Format.GetFormatByID)
		r.Get("/players", h.Player.ListPlayers)
		r.Get("/players/{playerID}", h.Player.GetPlayerByID)
		r.Get("/teams", h.Team.ListTeams)
		r.Get("/teams/{teamID}", h.Team.GetTeamByID)
		r.Get("/tournaments", h.Tournament.ListHandler)
		r.Get("/tournaments/{tournamentID}", h.Tournament.GetByIDHandler)
		r.Get("/tournaments/{tournamentID}/participants", h.Participant.ListParticipants)
		r.Get("/tournaments/{tournamentID}/matches", h.Match.ListMatches)
		r.Get("/tournaments/{tournamentID}/bracket", h.Bracket.GetBracket)
		r.Get("/tournaments/{tournamentID}/standings", h.Bracket.GetStandings)
		r.Get("/matches/{matchID}", h.Match.GetMatch)
	})

	// Защищенные маршруты только для организаторов и администраторов
	router.Group(func(r chi.Router) {
		r.Use(opts.Auth.Authenticate)
		r.Use(middleware.RequireRole(services.RoleOrganizer, services.RoleAdmin))

		r.Post("/sports", h.Sport.CreateSport)
		r.Put("/sports/{sportID}", h.Sport.UpdateSport)
		r.Delete("/sports/{sportID}", h.Sport.DeleteSport)

		r.Post("/formats", h.Format.CreateFormat)
		r.Put("/formats/{formatID}", h.Format.UpdateFormat)
		r.Delete("/formats/{formatID}", h.Format.DeleteFormat)

		r.Post("/players", h.Player.CreatePlayer)
		r.Put("/players/{playerID}", h.Player.UpdatePlayer)
		r.Delete("/players/{playerID}", h.Player.DeletePlayer)

		r.Post("/teams", h.Team.CreateTeam)
		r.Put("/teams/{teamID}", h.Team.UpdateTeam)
		r.Delete("/teams/{teamID}", h.Team.DeleteTeam)
		r.Post("/teams/{teamID}/members", h.Team.AddMember)
		r.Delete("/teams/{teamID}/members/{playerID}", h.Team.RemoveMember)

		r.Post("/tournaments", h.Tournament.CreateHandler)
		r.Put("/tournaments/{tournamentID}", h.Tournament.UpdateDetailsHandler)
		r.Patch("/tournaments/{tournamentID}/status", h.Tournament.UpdateStatusHandler)
		r.Delete("/tournaments/{tournamentID}", h.Tournament.DeleteHandler)

		r.Post("/tournaments/{tournamentID}/participants", h.Participant.Register)
		r.Post("/tournaments/{tournamentID}/participants/{participantID}/approve", h.Participant.Approve)
		r.Post("/tournaments/{tournamentID}/participants/{participantID}/reject", h.Participant.Reject)
		r.Post("/tournaments/{tournamentID}/participants/{participantID}/withdraw", h.Participant.Withdraw)
		r.Put("/tournaments/{tournamentID}/participants/{participantID}/seed", h.Participant.SetSeed)

		r.Post("/tournaments/{tournamentID}/bracket", h.Bracket.GenerateBracket)
		r.Post("/tournaments/{tournamentID}/bracket/knockout", h.Bracket.PromoteToKnockout)
		r.Post("/tournaments/{tournamentID}/publish", h.Publication.Publish)

		r.Put("/matches/{matchID}/schedule", h.Match.ScheduleMatch)
		r.Put("/matches/{matchID}/result", h.Match.RecordResult)
		r.Put("/matches/{matchID}/walkover", h.Match.RecordWalkover)
		r.Delete("/matches/{matchID}/result", h.Match.ResetResult)
	})

	return router
}
