package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/go-redis/redis/v8"

	"github.com/Dosada05/tournament-manager/brackets"
	"github.com/Dosada05/tournament-manager/cache"
	"github.com/Dosada05/tournament-manager/config"
	"github.com/Dosada05/tournament-manager/repositories"
	"github.com/Dosada05/tournament-manager/rules"
	"github.com/Dosada05/tournament-manager/services"
	"github.com/Dosada05/tournament-manager/storage"
)

// application собирает репозитории и сервисы поверх одного подключения к БД.
type application struct {
	hub         *brackets.Hub
	redisClient *redis.Client

	sports       services.SportService
	formats      services.FormatService
	players      services.PlayerService
	teams        services.TeamService
	tournaments  services.TournamentService
	participants services.ParticipantService
	standings    services.StandingsService
	bracketSvc   services.BracketService
	matches      services.MatchService
	publication  services.PublicationService
}

func newApplication(ctx context.Context, cfg *config.Config, dbConn *sql.DB, logger *slog.Logger) (*application, error) {
	presets, err := loadPresets(cfg.ScoringPresetsFile)
	if err != nil {
		return nil, err
	}

	app := &application{hub: brackets.NewHub(logger)}

	var resultsCache cache.ResultsCache = cache.NopCache{}
	if cfg.RedisURL != "" {
		client, err := cache.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		app.redisClient = client
		resultsCache = cache.NewRedisResultsCache(client, cfg.ResultsCacheTTL)
		logger.Info("Results cache enabled", slog.Duration("ttl", cfg.ResultsCacheTTL))
	} else {
		logger.Info("REDIS_URL not set, results cache disabled")
	}

	var store storage.ObjectStore = storage.NopStore{}
	if cfg.PublishingEnabled() {
		r2, err := storage.NewR2Store(ctx, storage.R2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
			PublicBaseURL:   cfg.R2PublicBaseURL,
		})
		if err != nil {
			app.close(logger)
			return nil, err
		}
		store = r2
		logger.Info("Results publishing enabled", slog.String("bucket", cfg.R2BucketName))
	} else {
		logger.Info("R2 is not configured, results publishing disabled")
	}

	sportRepo := repositories.NewPostgresSportRepository(dbConn)
	formatRepo := repositories.NewPostgresFormatRepository(dbConn)
	playerRepo := repositories.NewPostgresPlayerRepository(dbConn)
	teamRepo := repositories.NewPostgresTeamRepository(dbConn)
	rosterRepo := repositories.NewPostgresTeamRosterRepository(dbConn)
	tournamentRepo := repositories.NewPostgresTournamentRepository(dbConn)
	participantRepo := repositories.NewPostgresParticipantRepository(dbConn)
	matchRepo := repositories.NewPostgresMatchRepository(dbConn)
	standingRepo := repositories.NewPostgresTournamentStandingRepository(dbConn)
	tx := services.NewTransactor(dbConn, logger)

	app.sports = services.NewSportService(sportRepo, presets)
	app.formats = services.NewFormatService(formatRepo)
	app.players = services.NewPlayerService(playerRepo)
	app.teams = services.NewTeamService(teamRepo, rosterRepo, playerRepo, sportRepo)
	app.standings = services.NewStandingsService(tournamentRepo, sportRepo, formatRepo, participantRepo, matchRepo, standingRepo, tx, logger)
	app.bracketSvc = services.NewBracketService(tournamentRepo, sportRepo, formatRepo, participantRepo, matchRepo, app.standings, tx, app.hub, logger)
	app.tournaments = services.NewTournamentService(tournamentRepo, sportRepo, formatRepo, participantRepo, matchRepo, app.bracketSvc, tx, logger)
	app.participants = services.NewParticipantService(participantRepo, tournamentRepo, sportRepo, formatRepo, playerRepo, teamRepo, rosterRepo, matchRepo, tx, logger)
	app.matches = services.NewMatchService(tournamentRepo, sportRepo, formatRepo, matchRepo, app.standings, tx, app.hub, resultsCache, logger)
	app.publication = services.NewPublicationService(tournamentRepo, sportRepo, formatRepo, participantRepo, matchRepo, app.standings, store, resultsCache, app.hub, logger)

	return app, nil
}

func (a *application) close(logger *slog.Logger) {
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			logger.Error("failed to close redis client", slog.Any("error", err))
		}
	}
}

func loadPresets(path string) (rules.Presets, error) {
	if path == "" {
		return rules.DefaultPresets(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open scoring presets file: %w", err)
	}
	defer f.Close()
	return rules.LoadPresets(f)
}
