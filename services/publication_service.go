package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Dosada05/tournament-manager/brackets"
	"github.com/Dosada05/tournament-manager/cache"
	"github.com/Dosada05/tournament-manager/metrics"
	"github.com/Dosada05/tournament-manager/models"
	"github.com/Dosada05/tournament-manager/repositories"
	"github.com/Dosada05/tournament-manager/storage"
)

var (
	ErrResultsNotPublic    = errors.New("tournament results are not public yet")
	ErrNothingToPublish    = errors.New("tournament has no results to publish")
	ErrPublishingDisabled  = errors.New("results publishing is not configured")
	ErrPublicationFailed   = errors.New("failed to publish results")
	ErrSnapshotBuildFailed = errors.New("failed to build results snapshot")
)

const resultsContentType = "application/json"

type PublicationService interface {
	// BuildSnapshot assembles the public view of a tournament from the database.
	BuildSnapshot(ctx context.Context, tournamentID int) (*models.PublicResults, error)
	Publish(ctx context.Context, actor Actor, tournamentID int) (*PublishResult, error)
	PublicResults(ctx context.Context, tournamentID int) (*models.PublicResults, error)
}

type PublishResult struct {
	TournamentID int       `json:"tournament_id"`
	Key          string    `json:"key"`
	URL          string    `json:"url,omitempty"`
	PublishedAt  time.Time `json:"published_at"`
}

type publicationService struct {
	tournamentRepo  repositories.TournamentRepository
	sportRepo       repositories.SportRepository
	formatRepo      repositories.FormatRepository
	participantRepo repositories.ParticipantRepository
	matchRepo       repositories.MatchRepository
	standingsSvc    StandingsService
	store           storage.ObjectStore
	resultsCache    cache.ResultsCache
	hub             Broadcaster
	logger          *slog.Logger
	now             func() time.Time
}

func NewPublicationService(
	tournamentRepo repositories.TournamentRepository,
	sportRepo repositories.SportRepository,
	formatRepo repositories.FormatRepository,
	participantRepo repositories.ParticipantRepository,
	matchRepo repositories.MatchRepository,
	standingsSvc StandingsService,
	store storage.ObjectStore,
	resultsCache cache.ResultsCache,
	hub Broadcaster,
	logger *slog.Logger,
) PublicationService {
	if store == nil {
		store = storage.NopStore{}
	}
	if resultsCache == nil {
		resultsCache = cache.NopCache{}
	}
	return &publicationService{
		tournamentRepo:  tournamentRepo,
		sportRepo:       sportRepo,
		formatRepo:      formatRepo,
		participantRepo: participantRepo,
		matchRepo:       matchRepo,
		standingsSvc:    standingsSvc,
		store:           store,
		resultsCache:    resultsCache,
		hub:             hub,
		logger:          logger,
		now:             time.Now,
	}
}

func (s *publicationService) BuildSnapshot(ctx context.Context, tournamentID int) (*models.PublicResults, error) {
	var (
		tournament   *models.Tournament
		participants []*models.Participant
		matches      []*models.Match
		table        []models.TournamentStanding
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		tournament, err = loadTournamentDetails(gctx, s.tournamentRepo, s.sportRepo, s.formatRepo, tournamentID)
		return err
	})
	g.Go(func() error {
		var err error
		participants, err = s.participantRepo.ListByTournament(gctx, nil, tournamentID, nil, true)
		return err
	})
	g.Go(func() error {
		var err error
		matches, err = s.matchRepo.ListByTournament(gctx, nil, tournamentID, repositories.ListMatchesFilter{})
		return err
	})
	g.Go(func() error {
		var err error
		table, err = s.standingsSvc.Get(gctx, tournamentID)
		return err
	})
	if err := g.Wait(); err != nil {
		if errors.Is(err, ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("%w (id: %d): %w", ErrSnapshotBuildFailed, tournamentID, err)
	}

	snapshot := &models.PublicResults{
		Tournament:   *tournament,
		Participants: make([]models.PublicParticipant, 0, len(participants)),
		Matches:      matchesToValues(matches),
		Standings:    table,
		GeneratedAt:  s.now().UTC(),
	}
	if snapshot.Standings == nil {
		snapshot.Standings = []models.TournamentStanding{}
	}
	for _, p := range participants {
		pub := toPublicParticipant(p)
		snapshot.Participants = append(snapshot.Participants, pub)
		if tournament.OverallWinnerParticipantID != nil && *tournament.OverallWinnerParticipantID == p.ID {
			winner := pub
			snapshot.OverallWinner = &winner
		}
	}
	return snapshot, nil
}

func toPublicParticipant(p *models.Participant) models.PublicParticipant {
	kind := "player"
	if p.TeamID != nil {
		kind = "team"
	}
	return models.PublicParticipant{
		ID:     p.ID,
		Name:   p.DisplayName(),
		Type:   kind,
		Seed:   p.Seed,
		Status: string(p.Status),
	}
}

// isPublic: результаты видны после начала регистрации, отменённые - только если их публиковали.
func isPublic(t *models.Tournament) bool {
	if t.PublishedAt != nil {
		return true
	}
	return t.Status != models.StatusSoon && t.Status != models.StatusCanceled
}

func (s *publicationService) Publish(ctx context.Context, actor Actor, tournamentID int) (result *PublishResult, err error) {
	defer func() {
		if err != nil && !errors.Is(err, ErrForbiddenOperation) && !errors.Is(err, ErrTournamentNotFound) {
			metrics.RecordPublication(false)
		}
	}()

	tournament, err := s.tournamentRepo.GetByID(ctx, tournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("%w (id: %d): %w", ErrPublicationFailed, tournamentID, err)
	}
	if !canManageTournament(actor, tournament) {
		return nil, ErrForbiddenOperation
	}
	if tournament.Status == models.StatusSoon || tournament.Status == models.StatusCanceled {
		return nil, ErrNothingToPublish
	}

	snapshot, err := s.BuildSnapshot(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("%w: encode snapshot: %w", ErrPublicationFailed, err)
	}

	prefix := fmt.Sprintf("results/tournament-%d/", tournamentID)
	key := prefix + uuid.NewString() + ".json"
	put, err := s.store.Put(ctx, key, resultsContentType, body)
	if err != nil {
		if errors.Is(err, storage.ErrStoreDisabled) {
			return nil, ErrPublishingDisabled
		}
		return nil, fmt.Errorf("%w: upload %s: %w", ErrPublicationFailed, key, err)
	}
	latest, err := s.store.Put(ctx, prefix+"latest.json", resultsContentType, body)
	if err != nil {
		s.removeOrphan(ctx, put.Key)
		return nil, fmt.Errorf("%w: upload latest: %w", ErrPublicationFailed, err)
	}

	publishedAt := snapshot.GeneratedAt
	url := latest.Location
	if err := s.tournamentRepo.MarkPublished(ctx, tournamentID, publishedAt, &url); err != nil {
		// Загруженная версия без записи в БД никому не видна.
		s.removeOrphan(ctx, put.Key)
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("%w: %w", ErrPublicationFailed, err)
	}
	snapshot.Tournament.PublishedAt = &publishedAt
	snapshot.Tournament.ResultsURL = &url

	if err := s.resultsCache.Set(ctx, tournamentID, snapshot); err != nil {
		s.logger.WarnContext(ctx, "Failed to cache published results", slog.Int("tournament_id", tournamentID), slog.Any("error", err))
	}

	result = &PublishResult{TournamentID: tournamentID, Key: put.Key, URL: url, PublishedAt: publishedAt}
	metrics.RecordPublication(true)
	broadcast(s.hub, brackets.MessageResultsPublished, tournamentID, result)
	s.logger.InfoContext(ctx, "Results published",
		slog.Int("tournament_id", tournamentID),
		slog.String("key", put.Key),
		slog.String("url", url))
	return result, nil
}

func (s *publicationService) removeOrphan(ctx context.Context, key string) {
	if err := s.store.Delete(ctx, key); err != nil {
		s.logger.WarnContext(ctx, "Failed to remove orphaned snapshot", slog.String("key", key), slog.Any("error", err))
	}
}

func (s *publicationService) PublicResults(ctx context.Context, tournamentID int) (*models.PublicResults, error) {
	cached, ok, err := s.resultsCache.Get(ctx, tournamentID)
	switch {
	case err != nil:
		metrics.RecordCacheLookup("error")
		s.logger.WarnContext(ctx, "Results cache lookup failed", slog.Int("tournament_id", tournamentID), slog.Any("error", err))
	case ok:
		metrics.RecordCacheLookup("hit")
		return cached, nil
	default:
		metrics.RecordCacheLookup("miss")
	}

	snapshot, err := s.BuildSnapshot(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	if !isPublic(&snapshot.Tournament) {
		return nil, ErrResultsNotPublic
	}
	if err := s.resultsCache.Set(ctx, tournamentID, snapshot); err != nil {
		s.logger.WarnContext(ctx, "Failed to cache results", slog.Int("tournament_id", tournamentID), slog.Any("error", err))
	}
	return snapshot, nil
}
