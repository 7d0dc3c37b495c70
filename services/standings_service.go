package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/tournament-manager/metrics"
	"github.com/Dosada05/tournament-manager/models"
	"github.com/Dosada05/tournament-manager/repositories"
	"github.com/Dosada05/tournament-manager/standings"
)

var ErrStandingsFailed = errors.New("failed to compute standings")

type StandingsService interface {
	// Recompute rebuilds the stored table of a tournament from its finished
	// league and group matches.
	Recompute(ctx context.Context, tournamentID int) ([]models.TournamentStanding, error)
	// RecomputeWithin does the same using exec, so callers can keep it in
	// their own transaction.
	RecomputeWithin(ctx context.Context, exec repositories.SQLExecutor, tournament *models.Tournament) ([]models.TournamentStanding, error)
	Get(ctx context.Context, tournamentID int) ([]models.TournamentStanding, error)
}

type standingsService struct {
	tournamentRepo  repositories.TournamentRepository
	sportRepo       repositories.SportRepository
	formatRepo      repositories.FormatRepository
	participantRepo repositories.ParticipantRepository
	matchRepo       repositories.MatchRepository
	standingRepo    repositories.TournamentStandingRepository
	tx              Transactor
	logger          *slog.Logger
}

func NewStandingsService(
	tournamentRepo repositories.TournamentRepository,
	sportRepo repositories.SportRepository,
	formatRepo repositories.FormatRepository,
	participantRepo repositories.ParticipantRepository,
	matchRepo repositories.MatchRepository,
	standingRepo repositories.TournamentStandingRepository,
	tx Transactor,
	logger *slog.Logger,
) StandingsService {
	return &standingsService{
		tournamentRepo:  tournamentRepo,
		sportRepo:       sportRepo,
		formatRepo:      formatRepo,
		participantRepo: participantRepo,
		matchRepo:       matchRepo,
		standingRepo:    standingRepo,
		tx:              tx,
		logger:          logger,
	}
}

func (s *standingsService) Recompute(ctx context.Context, tournamentID int) ([]models.TournamentStanding, error) {
	tournament, err := loadTournamentDetails(ctx, s.tournamentRepo, s.sportRepo, s.formatRepo, tournamentID)
	if err != nil {
		return nil, err
	}

	var result []models.TournamentStanding
	err = s.tx.WithinTx(ctx, func(tx repositories.SQLExecutor) error {
		if _, err := s.tournamentRepo.GetForUpdate(ctx, tx, tournament.ID); err != nil {
			return fmt.Errorf("failed to lock tournament %d: %w", tournament.ID, err)
		}
		var txErr error
		result, txErr = s.RecomputeWithin(ctx, tx, tournament)
		return txErr
	})
	metrics.RecordStandingsRecompute(err == nil)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *standingsService) RecomputeWithin(ctx context.Context, exec repositories.SQLExecutor, tournament *models.Tournament) ([]models.TournamentStanding, error) {
	if err := populateSportAndFormat(ctx, tournament, s.sportRepo, s.formatRepo); err != nil {
		return nil, err
	}

	rows, err := s.computeRows(ctx, exec, tournament)
	if err != nil {
		return nil, err
	}

	if err := s.standingRepo.DeleteByTournamentID(ctx, exec, tournament.ID); err != nil {
		return nil, fmt.Errorf("%w: clearing standings of tournament %d: %w", ErrStandingsFailed, tournament.ID, err)
	}

	now := time.Now().UTC()
	batch := make([]*models.TournamentStanding, 0, len(rows))
	for _, row := range rows {
		batch = append(batch, rowToStanding(tournament.ID, row, now))
	}
	if len(batch) > 0 {
		if err := s.standingRepo.BatchCreate(ctx, exec, batch); err != nil {
			return nil, fmt.Errorf("%w: saving standings of tournament %d: %w", ErrStandingsFailed, tournament.ID, err)
		}
	}

	s.logger.DebugContext(ctx, "Standings recomputed", slog.Int("tournament_id", tournament.ID), slog.Int("rows", len(batch)))

	out := make([]models.TournamentStanding, 0, len(batch))
	for _, st := range batch {
		out = append(out, *st)
	}
	return out, nil
}

// computeRows returns the ranked rows for the table-based part of the
// tournament: the whole league, or every group of a group stage. Pure
// knockout tournaments have no table.
func (s *standingsService) computeRows(ctx context.Context, exec repositories.SQLExecutor, tournament *models.Tournament) ([]standings.Row, error) {
	var phase models.MatchPhase
	switch tournament.Format.BracketType {
	case models.BracketRoundRobin:
		phase = models.PhaseLeague
	case models.BracketGroupKnockout:
		phase = models.PhaseGroup
	default:
		return nil, nil
	}

	matches, err := s.matchRepo.ListByTournament(ctx, exec, tournament.ID, repositories.ListMatchesFilter{Phase: &phase})
	if err != nil {
		return nil, fmt.Errorf("%w: loading matches of tournament %d: %w", ErrStandingsFailed, tournament.ID, err)
	}

	approved := models.ParticipantApproved
	participants, err := s.participantRepo.ListByTournament(ctx, exec, tournament.ID, &approved, false)
	if err != nil {
		return nil, fmt.Errorf("%w: loading participants of tournament %d: %w", ErrStandingsFailed, tournament.ID, err)
	}
	seeds := make(map[int]*int, len(participants))
	for _, p := range participants {
		seeds[p.ID] = p.Seed
	}

	results := matchResults(matches)
	r := tournament.Sport.ScoringRules

	if phase == models.PhaseLeague {
		entries := make([]standings.Entry, 0, len(participants))
		for _, p := range participants {
			entries = append(entries, standings.Entry{ParticipantID: p.ID, Seed: p.Seed})
		}
		return standings.Compute(entries, results, r), nil
	}

	tables := standings.ComputeGroups(groupEntries(matches, seeds), results, r)
	var rows []standings.Row
	for _, g := range standings.GroupLabels(tables) {
		rows = append(rows, tables[g]...)
	}
	return rows, nil
}

func matchResults(matches []*models.Match) []standings.Result {
	results := make([]standings.Result, 0, len(matches))
	for _, m := range matches {
		if res, ok := standings.FromMatch(*m); ok {
			results = append(results, res)
		}
	}
	return results
}

// groupEntries восстанавливает состав групп по матчам группового этапа.
// Участники, которых нет в seeds (снятые с турнира), пропускаются.
func groupEntries(matches []*models.Match, seeds map[int]*int) []standings.Entry {
	entries := make([]standings.Entry, 0, len(seeds))
	seen := make(map[int]bool)
	for _, m := range matches {
		for _, pid := range []*int{m.Participant1ID, m.Participant2ID} {
			if pid == nil || seen[*pid] {
				continue
			}
			seed, ok := seeds[*pid]
			if !ok {
				continue
			}
			seen[*pid] = true
			entries = append(entries, standings.Entry{ParticipantID: *pid, Seed: seed, Group: m.Group()})
		}
	}
	return entries
}

func rowToStanding(tournamentID int, row standings.Row, now time.Time) *models.TournamentStanding {
	st := &models.TournamentStanding{
		TournamentID:    tournamentID,
		ParticipantID:   row.ParticipantID,
		Points:          row.Points,
		GamesPlayed:     row.Played,
		Wins:            row.Wins,
		Draws:           row.Draws,
		Losses:          row.Losses,
		ScoreFor:        row.ScoreFor,
		ScoreAgainst:    row.ScoreAgainst,
		ScoreDifference: row.ScoreDifference,
		Rank:            intPtr(row.Rank),
		UpdatedAt:       now,
	}
	if row.Group != "" {
		g := row.Group
		st.GroupLabel = &g
	}
	return st
}

func (s *standingsService) Get(ctx context.Context, tournamentID int) ([]models.TournamentStanding, error) {
	if _, err := s.tournamentRepo.GetByID(ctx, tournamentID); err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to get tournament %d: %w", tournamentID, err)
	}
	list, err := s.standingRepo.ListByTournament(ctx, nil, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list standings of tournament %d: %w", tournamentID, err)
	}
	out := make([]models.TournamentStanding, 0, len(list))
	for _, st := range list {
		if st != nil {
			out = append(out, *st)
		}
	}
	return out, nil
}
