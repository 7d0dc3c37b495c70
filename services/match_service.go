package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/tournament-manager/brackets"
	"github.com/Dosada05/tournament-manager/cache"
	"github.com/Dosada05/tournament-manager/metrics"
	"github.com/Dosada05/tournament-manager/models"
	"github.com/Dosada05/tournament-manager/repositories"
)

var (
	ErrMatchesListFailed       = errors.New("failed to list matches")
	ErrMatchParticipantsNotSet = errors.New("both match participants must be known before a result is recorded")
	ErrMatchAlreadyFinished    = errors.New("match already has a result")
	ErrMatchNotFinished        = errors.New("match has no result to reset")
	ErrWinnerNotInMatch        = errors.New("winner must be one of the match participants")
	ErrInvalidMatchResult      = errors.New("invalid match result")
	ErrMatchScheduleRequired   = errors.New("scheduled time is required")
	ErrResultLocked            = errors.New("result can no longer be changed: the following match has been played")
	ErrMatchUpdateFailed       = errors.New("failed to update match")
)

// Метки для метрики результатов матчей.
const (
	resultKindResult   = "result"
	resultKindWalkover = "walkover"
	resultKindReset    = "reset"
)

type MatchService interface {
	ListMatches(ctx context.Context, tournamentID int, filter repositories.ListMatchesFilter) ([]models.Match, error)
	GetMatch(ctx context.Context, matchID int) (*models.Match, error)
	ScheduleMatch(ctx context.Context, actor Actor, matchID int, at time.Time) (*models.Match, error)
	RecordResult(ctx context.Context, actor Actor, matchID int, input RecordResultInput) (*models.Match, error)
	RecordWalkover(ctx context.Context, actor Actor, matchID int, winnerParticipantID int) (*models.Match, error)
	// ResetResult clears a result while the match it fed has not been played.
	ResetResult(ctx context.Context, actor Actor, matchID int) (*models.Match, error)
}

type RecordResultInput struct {
	Score1 int `json:"score1"`
	Score2 int `json:"score2"`
	// WinnerParticipantID решает матч при равном счёте (пенальти, тай-брейк).
	WinnerParticipantID *int `json:"winner_participant_id,omitempty"`
}

type TournamentWinnerPayload struct {
	TournamentID        int  `json:"tournament_id"`
	WinnerParticipantID *int `json:"winner_participant_id"`
}

type matchService struct {
	tournamentRepo repositories.TournamentRepository
	sportRepo      repositories.SportRepository
	formatRepo     repositories.FormatRepository
	matchRepo      repositories.MatchRepository
	standingsSvc   StandingsService
	tx             Transactor
	hub            Broadcaster
	resultsCache   cache.ResultsCache
	logger         *slog.Logger
}

func NewMatchService(
	tournamentRepo repositories.TournamentRepository,
	sportRepo repositories.SportRepository,
	formatRepo repositories.FormatRepository,
	matchRepo repositories.MatchRepository,
	standingsSvc StandingsService,
	tx Transactor,
	hub Broadcaster,
	resultsCache cache.ResultsCache,
	logger *slog.Logger,
) MatchService {
	if resultsCache == nil {
		resultsCache = cache.NopCache{}
	}
	return &matchService{
		tournamentRepo: tournamentRepo,
		sportRepo:      sportRepo,
		formatRepo:     formatRepo,
		matchRepo:      matchRepo,
		standingsSvc:   standingsSvc,
		tx:             tx,
		hub:            hub,
		resultsCache:   resultsCache,
		logger:         logger,
	}
}

// outcomeEffects - что изменилось помимо самого матча.
type outcomeEffects struct {
	standings  []models.TournamentStanding
	recomputed bool
	completed  bool
	winnerID   *int
}

func (s *matchService) ListMatches(ctx context.Context, tournamentID int, filter repositories.ListMatchesFilter) ([]models.Match, error) {
	if _, err := s.tournamentRepo.GetByID(ctx, tournamentID); err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("%w: tournament %d: %w", ErrMatchesListFailed, tournamentID, err)
	}
	matches, err := s.matchRepo.ListByTournament(ctx, nil, tournamentID, filter)
	if err != nil {
		return nil, fmt.Errorf("%w: tournament %d: %w", ErrMatchesListFailed, tournamentID, err)
	}
	return matchesToValues(matches), nil
}

func (s *matchService) GetMatch(ctx context.Context, matchID int) (*models.Match, error) {
	m, err := s.matchRepo.GetByID(ctx, nil, matchID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to get match %d: %w", matchID, err)
	}
	return m, nil
}

// authorizeMatch loads the match with its tournament and checks that actor
// may change it.
func (s *matchService) authorizeMatch(ctx context.Context, actor Actor, matchID int) (*models.Match, *models.Tournament, error) {
	m, err := s.GetMatch(ctx, matchID)
	if err != nil {
		return nil, nil, err
	}
	tournament, err := loadTournamentDetails(ctx, s.tournamentRepo, s.sportRepo, s.formatRepo, m.TournamentID)
	if err != nil {
		return nil, nil, err
	}
	if !canManageTournament(actor, tournament) {
		return nil, nil, ErrForbiddenOperation
	}
	return m, tournament, nil
}

func (s *matchService) ScheduleMatch(ctx context.Context, actor Actor, matchID int, at time.Time) (*models.Match, error) {
	if at.IsZero() {
		return nil, ErrMatchScheduleRequired
	}
	m, tournament, err := s.authorizeMatch(ctx, actor, matchID)
	if err != nil {
		return nil, err
	}
	if tournament.Status == models.StatusCompleted || tournament.Status == models.StatusCanceled {
		return nil, ErrTournamentNotActive
	}
	if m.IsFinished() {
		return nil, ErrMatchAlreadyFinished
	}
	if err := s.matchRepo.UpdateScheduledAt(ctx, nil, matchID, at); err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("%w %d: %w", ErrMatchUpdateFailed, matchID, err)
	}
	m.ScheduledAt = at

	broadcast(s.hub, brackets.MessageMatchUpdated, m.TournamentID, m)
	s.invalidateResults(ctx, m.TournamentID)
	return m, nil
}

func (s *matchService) RecordResult(ctx context.Context, actor Actor, matchID int, input RecordResultInput) (*models.Match, error) {
	return s.finishMatch(ctx, actor, matchID, resultKindResult, func(m *models.Match, tournament *models.Tournament) error {
		explicit := brackets.SlotNone
		if input.WinnerParticipantID != nil {
			slot, ok := slotOf(m, *input.WinnerParticipantID)
			if !ok {
				return ErrWinnerNotInMatch
			}
			explicit = slot
		}
		slot, err := brackets.ResolveWinner(input.Score1, input.Score2, explicit, m.Phase == models.PhaseKnockout, tournament.Sport.ScoringRules)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidMatchResult, err)
		}
		m.Score1, m.Score2 = intPtr(input.Score1), intPtr(input.Score2)
		m.Status = models.MatchCompleted
		m.WinnerParticipantID = participantInSlot(m, slot)
		return nil
	})
}

func (s *matchService) RecordWalkover(ctx context.Context, actor Actor, matchID int, winnerParticipantID int) (*models.Match, error) {
	return s.finishMatch(ctx, actor, matchID, resultKindWalkover, func(m *models.Match, tournament *models.Tournament) error {
		slot, ok := slotOf(m, winnerParticipantID)
		if !ok {
			return ErrWinnerNotInMatch
		}
		r := tournament.Sport.ScoringRules
		if slot == brackets.Slot1 {
			m.Score1, m.Score2 = intPtr(r.WalkoverScoreFor), intPtr(r.WalkoverScoreAgainst)
		} else {
			m.Score1, m.Score2 = intPtr(r.WalkoverScoreAgainst), intPtr(r.WalkoverScoreFor)
		}
		m.Status = models.MatchWalkover
		m.WinnerParticipantID = intPtr(winnerParticipantID)
		return nil
	})
}

// finishMatch locks the match, lets decide fill in the outcome, stores it
// and applies the consequences (advancement, standings, completion).
func (s *matchService) finishMatch(
	ctx context.Context,
	actor Actor,
	matchID int,
	kind string,
	decide func(m *models.Match, tournament *models.Tournament) error,
) (*models.Match, error) {
	_, tournament, err := s.authorizeMatch(ctx, actor, matchID)
	if err != nil {
		return nil, err
	}
	if tournament.Status != models.StatusActive {
		return nil, ErrTournamentNotActive
	}

	var (
		match   *models.Match
		effects outcomeEffects
	)
	err = s.tx.WithinTx(ctx, func(tx repositories.SQLExecutor) error {
		if err := s.lockActiveTournament(ctx, tx, tournament); err != nil {
			return err
		}
		m, err := s.matchRepo.GetForUpdate(ctx, tx, matchID)
		if err != nil {
			return err
		}
		if m.Participant1ID == nil || m.Participant2ID == nil {
			return ErrMatchParticipantsNotSet
		}
		if m.IsFinished() {
			return ErrMatchAlreadyFinished
		}
		if err := decide(m, tournament); err != nil {
			return err
		}
		if err := s.matchRepo.UpdateResult(ctx, tx, m); err != nil {
			return err
		}
		match = m
		effects, err = s.applyOutcome(ctx, tx, tournament, m)
		return err
	})
	if err != nil {
		return nil, s.mapMatchError(matchID, err)
	}

	metrics.RecordMatchResult(kind)
	s.logger.InfoContext(ctx, "Match result recorded",
		slog.Int("match_id", match.ID),
		slog.Int("tournament_id", match.TournamentID),
		slog.String("status", string(match.Status)),
		slog.Any("winner_participant_id", match.WinnerParticipantID))

	s.publishEffects(ctx, match, effects)
	return match, nil
}

// lockActiveTournament serializes result changes of one tournament: the
// standings rebuild and the completion check see every earlier result. The
// status is read again from the locked row.
func (s *matchService) lockActiveTournament(ctx context.Context, tx repositories.SQLExecutor, tournament *models.Tournament) error {
	locked, err := s.tournamentRepo.GetForUpdate(ctx, tx, tournament.ID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return ErrTournamentNotFound
		}
		return fmt.Errorf("failed to lock tournament %d: %w", tournament.ID, err)
	}
	if locked.Status != models.StatusActive {
		return ErrTournamentNotActive
	}
	tournament.Status = locked.Status
	return nil
}

// applyOutcome moves a knockout winner on, recomputes tables for league and
// group matches and completes the tournament once the champion is known.
func (s *matchService) applyOutcome(ctx context.Context, tx repositories.SQLExecutor, tournament *models.Tournament, m *models.Match) (outcomeEffects, error) {
	var effects outcomeEffects

	switch m.Phase {
	case models.PhaseKnockout:
		if m.NextMatchID != nil && m.WinnerToSlot != nil {
			if err := s.matchRepo.SetParticipantSlot(ctx, tx, *m.NextMatchID, *m.WinnerToSlot, m.WinnerParticipantID); err != nil {
				return effects, fmt.Errorf("failed to advance winner of match %d: %w", m.ID, err)
			}
			return effects, nil
		}
		// Матч без следующего - финал.
		return s.completeTournament(ctx, tx, tournament, m.WinnerParticipantID)

	case models.PhaseLeague, models.PhaseGroup:
		table, err := s.standingsSvc.RecomputeWithin(ctx, tx, tournament)
		if err != nil {
			return effects, err
		}
		effects.standings = table
		effects.recomputed = true

		if m.Phase == models.PhaseLeague {
			left, err := s.matchRepo.CountUnfinished(ctx, tx, tournament.ID, nil)
			if err != nil {
				return effects, err
			}
			if left == 0 && len(table) > 0 {
				done, err := s.completeTournament(ctx, tx, tournament, intPtr(table[0].ParticipantID))
				if err != nil {
					return effects, err
				}
				done.standings, done.recomputed = effects.standings, true
				return done, nil
			}
		}
	}
	return effects, nil
}

func (s *matchService) completeTournament(ctx context.Context, tx repositories.SQLExecutor, tournament *models.Tournament, winnerID *int) (outcomeEffects, error) {
	if err := s.tournamentRepo.UpdateOverallWinner(ctx, tx, tournament.ID, winnerID); err != nil {
		return outcomeEffects{}, err
	}
	if err := s.tournamentRepo.UpdateStatus(ctx, tx, tournament.ID, models.StatusCompleted); err != nil {
		return outcomeEffects{}, err
	}
	metrics.RecordStatusTransition(string(tournament.Status), string(models.StatusCompleted))
	return outcomeEffects{completed: true, winnerID: winnerID}, nil
}

func (s *matchService) ResetResult(ctx context.Context, actor Actor, matchID int) (*models.Match, error) {
	_, tournament, err := s.authorizeMatch(ctx, actor, matchID)
	if err != nil {
		return nil, err
	}
	if tournament.Status != models.StatusActive {
		return nil, ErrTournamentNotActive
	}

	var (
		match   *models.Match
		effects outcomeEffects
	)
	err = s.tx.WithinTx(ctx, func(tx repositories.SQLExecutor) error {
		if err := s.lockActiveTournament(ctx, tx, tournament); err != nil {
			return err
		}
		m, err := s.matchRepo.GetForUpdate(ctx, tx, matchID)
		if err != nil {
			return err
		}
		if m.Status != models.MatchCompleted && m.Status != models.MatchWalkover {
			return ErrMatchNotFinished
		}

		switch m.Phase {
		case models.PhaseKnockout:
			if m.NextMatchID != nil && m.WinnerToSlot != nil {
				next, err := s.matchRepo.GetForUpdate(ctx, tx, *m.NextMatchID)
				if err != nil {
					return err
				}
				if next.IsFinished() || next.Status == models.MatchInProgress {
					return ErrResultLocked
				}
				if err := s.matchRepo.SetParticipantSlot(ctx, tx, next.ID, *m.WinnerToSlot, nil); err != nil {
					return err
				}
			}
		case models.PhaseGroup:
			knockout := models.PhaseKnockout
			n, err := s.matchRepo.CountByTournament(ctx, tx, tournament.ID, &knockout)
			if err != nil {
				return err
			}
			if n > 0 {
				return ErrResultLocked
			}
		}

		m.Score1, m.Score2, m.WinnerParticipantID = nil, nil, nil
		m.Status = models.MatchScheduled
		if err := s.matchRepo.UpdateResult(ctx, tx, m); err != nil {
			return err
		}
		match = m

		if m.Phase != models.PhaseKnockout {
			table, err := s.standingsSvc.RecomputeWithin(ctx, tx, tournament)
			if err != nil {
				return err
			}
			effects = outcomeEffects{standings: table, recomputed: true}
		}
		return nil
	})
	if err != nil {
		return nil, s.mapMatchError(matchID, err)
	}

	metrics.RecordMatchResult(resultKindReset)
	s.logger.InfoContext(ctx, "Match result reset", slog.Int("match_id", match.ID), slog.Int("tournament_id", match.TournamentID))
	s.publishEffects(ctx, match, effects)
	return match, nil
}

func (s *matchService) publishEffects(ctx context.Context, m *models.Match, effects outcomeEffects) {
	s.invalidateResults(ctx, m.TournamentID)
	broadcast(s.hub, brackets.MessageMatchUpdated, m.TournamentID, m)
	if effects.recomputed {
		broadcast(s.hub, brackets.MessageStandingsUpdated, m.TournamentID, effects.standings)
	}
	if effects.completed {
		s.logger.InfoContext(ctx, "Tournament completed",
			slog.Int("tournament_id", m.TournamentID), slog.Any("winner_participant_id", effects.winnerID))
		broadcast(s.hub, brackets.MessageTournamentCompleted, m.TournamentID, TournamentWinnerPayload{
			TournamentID:        m.TournamentID,
			WinnerParticipantID: effects.winnerID,
		})
	}
}

func (s *matchService) invalidateResults(ctx context.Context, tournamentID int) {
	if err := s.resultsCache.Invalidate(ctx, tournamentID); err != nil {
		s.logger.WarnContext(ctx, "Failed to invalidate results cache", slog.Int("tournament_id", tournamentID), slog.Any("error", err))
	}
}

func (s *matchService) mapMatchError(matchID int, err error) error {
	switch {
	case errors.Is(err, repositories.ErrMatchNotFound):
		return ErrMatchNotFound
	case errors.Is(err, ErrMatchParticipantsNotSet),
		errors.Is(err, ErrMatchAlreadyFinished),
		errors.Is(err, ErrMatchNotFinished),
		errors.Is(err, ErrWinnerNotInMatch),
		errors.Is(err, ErrInvalidMatchResult),
		errors.Is(err, ErrResultLocked),
		errors.Is(err, ErrTournamentNotActive),
		errors.Is(err, ErrTournamentNotFound):
		return err
	}
	return fmt.Errorf("%w %d: %w", ErrMatchUpdateFailed, matchID, err)
}

func slotOf(m *models.Match, participantID int) (brackets.Slot, bool) {
	switch {
	case m.Participant1ID != nil && *m.Participant1ID == participantID:
		return brackets.Slot1, true
	case m.Participant2ID != nil && *m.Participant2ID == participantID:
		return brackets.Slot2, true
	}
	return brackets.SlotNone, false
}

func participantInSlot(m *models.Match, slot brackets.Slot) *int {
	switch slot {
	case brackets.Slot1:
		return m.Participant1ID
	case brackets.Slot2:
		return m.Participant2ID
	}
	return nil
}
