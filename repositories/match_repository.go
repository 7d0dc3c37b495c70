package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Dosada05/tournament-manager/models"
)

var (
	ErrMatchNotFound           = errors.New("match not found")
	ErrMatchConflict           = errors.New("match with this bracket uid already exists in the tournament")
	ErrMatchTournamentInvalid  = errors.New("match tournament conflict or invalid")
	ErrMatchParticipantInvalid = errors.New("match participant conflict or invalid")
	ErrMatchInvalidSlot        = errors.New("match slot must be 1 or 2")
)

type ListMatchesFilter struct {
	Phase  *models.MatchPhase
	Status *models.MatchStatus
	Round  *int
}

type MatchRepository interface {
	Create(ctx context.Context, exec SQLExecutor, match *models.Match) error
	GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error)
	// GetForUpdate locks the match row until exec (a transaction) ends.
	GetForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error)
	ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int, filter ListMatchesFilter) ([]*models.Match, error)
	UpdateNextMatchInfo(ctx context.Context, exec SQLExecutor, matchID int, nextMatchID *int, winnerToSlot *int) error
	SetParticipantSlot(ctx context.Context, exec SQLExecutor, matchID int, slot int, participantID *int) error
	UpdateResult(ctx context.Context, exec SQLExecutor, match *models.Match) error
	UpdateScheduledAt(ctx context.Context, exec SQLExecutor, matchID int, scheduledAt time.Time) error
	CountByTournament(ctx context.Context, exec SQLExecutor, tournamentID int, phase *models.MatchPhase) (int, error)
	CountUnfinished(ctx context.Context, exec SQLExecutor, tournamentID int, phase *models.MatchPhase) (int, error)
}

type postgresMatchRepository struct {
	db *sql.DB
}

func NewPostgresMatchRepository(db *sql.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

func (r *postgresMatchRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const matchColumns = `
	id, tournament_id, phase, group_label, round, order_in_round, bracket_match_uid,
	participant1_id, participant2_id, score1, score2, status, winner_participant_id,
	next_match_id, winner_to_slot, scheduled_at, created_at, updated_at`

func scanMatch(row rowScanner) (*models.Match, error) {
	var m models.Match
	err := row.Scan(
		&m.ID, &m.TournamentID, &m.Phase, &m.GroupLabel, &m.Round, &m.OrderInRound, &m.BracketMatchUID,
		&m.Participant1ID, &m.Participant2ID, &m.Score1, &m.Score2, &m.Status, &m.WinnerParticipantID,
		&m.NextMatchID, &m.WinnerToSlot, &m.ScheduledAt, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *postgresMatchRepository) Create(ctx context.Context, exec SQLExecutor, m *models.Match) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO matches (
			tournament_id, phase, group_label, round, order_in_round, bracket_match_uid,
			participant1_id, participant2_id, status, scheduled_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at`

	err := executor.QueryRowContext(ctx, query,
		m.TournamentID, m.Phase, m.GroupLabel, m.Round, m.OrderInRound, m.BracketMatchUID,
		m.Participant1ID, m.Participant2ID, m.Status, m.ScheduledAt,
	).Scan(&m.ID, &m.CreatedAt, &m.UpdatedAt)
	return r.handleMatchError(err)
}

func (r *postgresMatchRepository) GetByID(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error) {
	return r.get(ctx, r.getExecutor(exec), `SELECT `+matchColumns+` FROM matches WHERE id = $1`, id)
}

func (r *postgresMatchRepository) GetForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Match, error) {
	return r.get(ctx, r.getExecutor(exec), `SELECT `+matchColumns+` FROM matches WHERE id = $1 FOR UPDATE`, id)
}

func (r *postgresMatchRepository) get(ctx context.Context, executor SQLExecutor, query string, id int) (*models.Match, error) {
	m, err := scanMatch(executor.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to get match %d: %w", id, err)
	}
	return m, nil
}

func (r *postgresMatchRepository) ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int, filter ListMatchesFilter) ([]*models.Match, error) {
	executor := r.getExecutor(exec)
	query := `SELECT ` + matchColumns + ` FROM matches WHERE tournament_id = $1`
	args := []interface{}{tournamentID}
	argID := 2

	if filter.Phase != nil {
		query += fmt.Sprintf(" AND phase = $%d", argID)
		args = append(args, *filter.Phase)
		argID++
	}
	if filter.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argID)
		args = append(args, *filter.Status)
		argID++
	}
	if filter.Round != nil {
		query += fmt.Sprintf(" AND round = $%d", argID)
		args = append(args, *filter.Round)
	}
	query += " ORDER BY phase ASC, group_label ASC NULLS FIRST, round ASC, order_in_round ASC, id ASC"

	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	matches := make([]*models.Match, 0)
	for rows.Next() {
		m, scanErr := scanMatch(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan match: %w", scanErr)
		}
		matches = append(matches, m)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return matches, nil
}

func (r *postgresMatchRepository) UpdateNextMatchInfo(ctx context.Context, exec SQLExecutor, matchID int, nextMatchID *int, winnerToSlot *int) error {
	executor := r.getExecutor(exec)
	query := `UPDATE matches SET next_match_id = $1, winner_to_slot = $2, updated_at = NOW() WHERE id = $3`
	result, err := executor.ExecContext(ctx, query, nextMatchID, winnerToSlot, matchID)
	if err != nil {
		return r.handleMatchError(err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

// SetParticipantSlot fills (or clears with nil) participant1_id or participant2_id.
func (r *postgresMatchRepository) SetParticipantSlot(ctx context.Context, exec SQLExecutor, matchID int, slot int, participantID *int) error {
	var column string
	switch slot {
	case 1:
		column = "participant1_id"
	case 2:
		column = "participant2_id"
	default:
		return ErrMatchInvalidSlot
	}
	executor := r.getExecutor(exec)
	query := fmt.Sprintf(`UPDATE matches SET %s = $1, updated_at = NOW() WHERE id = $2`, column)
	result, err := executor.ExecContext(ctx, query, participantID, matchID)
	if err != nil {
		return r.handleMatchError(err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

// UpdateResult stores scores, status and winner of m and refreshes m.UpdatedAt.
func (r *postgresMatchRepository) UpdateResult(ctx context.Context, exec SQLExecutor, m *models.Match) error {
	executor := r.getExecutor(exec)
	query := `
		UPDATE matches
		SET score1 = $1, score2 = $2, status = $3, winner_participant_id = $4, updated_at = NOW()
		WHERE id = $5
		RETURNING updated_at`
	err := executor.QueryRowContext(ctx, query, m.Score1, m.Score2, m.Status, m.WinnerParticipantID, m.ID).Scan(&m.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrMatchNotFound
		}
		return r.handleMatchError(err)
	}
	return nil
}

func (r *postgresMatchRepository) UpdateScheduledAt(ctx context.Context, exec SQLExecutor, matchID int, scheduledAt time.Time) error {
	executor := r.getExecutor(exec)
	result, err := executor.ExecContext(ctx, `UPDATE matches SET scheduled_at = $1, updated_at = NOW() WHERE id = $2`, scheduledAt, matchID)
	if err != nil {
		return r.handleMatchError(err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) CountByTournament(ctx context.Context, exec SQLExecutor, tournamentID int, phase *models.MatchPhase) (int, error) {
	return r.count(ctx, exec, `SELECT COUNT(*) FROM matches WHERE tournament_id = $1`, tournamentID, phase)
}

func (r *postgresMatchRepository) CountUnfinished(ctx context.Context, exec SQLExecutor, tournamentID int, phase *models.MatchPhase) (int, error) {
	return r.count(ctx, exec, `SELECT COUNT(*) FROM matches WHERE tournament_id = $1 AND status IN ('scheduled', 'in_progress')`, tournamentID, phase)
}

func (r *postgresMatchRepository) count(ctx context.Context, exec SQLExecutor, query string, tournamentID int, phase *models.MatchPhase) (int, error) {
	executor := r.getExecutor(exec)
	args := []interface{}{tournamentID}
	if phase != nil {
		query += " AND phase = $2"
		args = append(args, *phase)
	}
	var n int
	if err := executor.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count matches for tournament %d: %w", tournamentID, err)
	}
	return n, nil
}

func (r *postgresMatchRepository) handleMatchError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := asPQError(err); ok {
		switch pqErr.Code {
		case pqUniqueViolation:
			if pqErr.Constraint == "matches_tournament_id_bracket_match_uid_key" {
				return ErrMatchConflict
			}
		case pqForeignKeyViolation:
			switch pqErr.Constraint {
			case "matches_tournament_id_fkey":
				return ErrMatchTournamentInvalid
			case "matches_next_match_id_fkey":
				return ErrMatchNotFound
			default:
				return ErrMatchParticipantInvalid
			}
		}
	}
	return err
}
