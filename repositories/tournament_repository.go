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
	ErrTournamentNotFound      = errors.New("tournament not found")
	ErrTournamentNameConflict  = errors.New("tournament name conflict for this organizer")
	ErrTournamentInUse         = errors.New("tournament is in use (participants/matches exist)")
	ErrTournamentInvalidSport  = errors.New("invalid sport reference")
	ErrTournamentInvalidFormat = errors.New("invalid format reference")
)

type ListTournamentsFilter struct {
	SportID     *int
	FormatID    *int
	OrganizerID *int
	Status      *models.TournamentStatus
	Limit       int
	Offset      int
}

type TournamentRepository interface {
	Create(ctx context.Context, tournament *models.Tournament) error
	GetByID(ctx context.Context, id int) (*models.Tournament, error)
	// GetForUpdate locks the tournament row until exec (a transaction) ends.
	GetForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Tournament, error)
	List(ctx context.Context, filter ListTournamentsFilter) ([]models.Tournament, error)
	Update(ctx context.Context, tournament *models.Tournament) error
	UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.TournamentStatus) error
	Delete(ctx context.Context, id int) error
	UpdateOverallWinner(ctx context.Context, exec SQLExecutor, tournamentID int, winnerParticipantID *int) error
	MarkPublished(ctx context.Context, tournamentID int, publishedAt time.Time, resultsURL *string) error
	GetTournamentsForAutoStatusUpdate(ctx context.Context, exec SQLExecutor, currentTime time.Time) ([]*models.Tournament, error)
}

type postgresTournamentRepository struct {
	db *sql.DB
}

func NewPostgresTournamentRepository(db *sql.DB) TournamentRepository {
	return &postgresTournamentRepository{db: db}
}

func (r *postgresTournamentRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const tournamentColumns = `
	id, name, description, sport_id, format_id, organizer_id,
	reg_date, start_date, end_date, location, status, max_participants,
	overall_winner_participant_id, published_at, results_url, created_at`

func scanTournament(row rowScanner) (*models.Tournament, error) {
	var t models.Tournament
	err := row.Scan(
		&t.ID, &t.Name, &t.Description, &t.SportID, &t.FormatID, &t.OrganizerID,
		&t.RegDate, &t.StartDate, &t.EndDate, &t.Location, &t.Status, &t.MaxParticipants,
		&t.OverallWinnerParticipantID, &t.PublishedAt, &t.ResultsURL, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *postgresTournamentRepository) Create(ctx context.Context, t *models.Tournament) error {
	// overall_winner_participant_id и published_at при создании не заполняются
	query := `
		INSERT INTO tournaments (
			name, description, sport_id, format_id, organizer_id,
			reg_date, start_date, end_date, location, status, max_participants
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		t.Name, t.Description, t.SportID, t.FormatID, t.OrganizerID,
		t.RegDate, t.StartDate, t.EndDate, t.Location, t.Status, t.MaxParticipants,
	).Scan(&t.ID, &t.CreatedAt)

	return r.handleTournamentError(err)
}

func (r *postgresTournamentRepository) GetByID(ctx context.Context, id int) (*models.Tournament, error) {
	return r.get(ctx, r.db, `SELECT `+tournamentColumns+` FROM tournaments WHERE id = $1`, id)
}

func (r *postgresTournamentRepository) GetForUpdate(ctx context.Context, exec SQLExecutor, id int) (*models.Tournament, error) {
	return r.get(ctx, r.getExecutor(exec), `SELECT `+tournamentColumns+` FROM tournaments WHERE id = $1 FOR UPDATE`, id)
}

func (r *postgresTournamentRepository) get(ctx context.Context, executor SQLExecutor, query string, id int) (*models.Tournament, error) {
	t, err := scanTournament(executor.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}
	return t, nil
}

func (r *postgresTournamentRepository) List(ctx context.Context, filter ListTournamentsFilter) ([]models.Tournament, error) {
	query := `SELECT ` + tournamentColumns + ` FROM tournaments WHERE 1=1`

	args := []interface{}{}
	argID := 1

	if filter.SportID != nil {
		query += fmt.Sprintf(" AND sport_id = $%d", argID)
		args = append(args, *filter.SportID)
		argID++
	}
	if filter.FormatID != nil {
		query += fmt.Sprintf(" AND format_id = $%d", argID)
		args = append(args, *filter.FormatID)
		argID++
	}
	if filter.OrganizerID != nil {
		query += fmt.Sprintf(" AND organizer_id = $%d", argID)
		args = append(args, *filter.OrganizerID)
		argID++
	}
	if filter.Status != nil {
		query += fmt.Sprintf(" AND status = $%d", argID)
		args = append(args, *filter.Status)
		argID++
	}

	query += " ORDER BY start_date DESC, created_at DESC"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argID)
		args = append(args, filter.Limit)
		argID++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argID)
		args = append(args, filter.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tournaments := make([]models.Tournament, 0)
	for rows.Next() {
		t, scanErr := scanTournament(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		tournaments = append(tournaments, *t)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return tournaments, nil
}

func (r *postgresTournamentRepository) Update(ctx context.Context, t *models.Tournament) error {
	// Победитель и публикация обновляются отдельными методами.
	query := `
		UPDATE tournaments SET
			name = $1,
			description = $2,
			sport_id = $3,
			format_id = $4,
			reg_date = $5,
			start_date = $6,
			end_date = $7,
			location = $8,
			status = $9,
			max_participants = $10
		WHERE id = $11`

	result, err := r.db.ExecContext(ctx, query,
		t.Name, t.Description, t.SportID, t.FormatID,
		t.RegDate, t.StartDate, t.EndDate, t.Location, t.Status, t.MaxParticipants,
		t.ID,
	)
	if err != nil {
		return r.handleTournamentError(err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.TournamentStatus) error {
	executor := r.getExecutor(exec)
	result, err := executor.ExecContext(ctx, `UPDATE tournaments SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return r.handleTournamentError(err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

// UpdateOverallWinner sets or clears the overall winner of the tournament.
func (r *postgresTournamentRepository) UpdateOverallWinner(ctx context.Context, exec SQLExecutor, tournamentID int, winnerParticipantID *int) error {
	executor := r.getExecutor(exec)
	query := `UPDATE tournaments SET overall_winner_participant_id = $1 WHERE id = $2`
	result, err := executor.ExecContext(ctx, query, winnerParticipantID, tournamentID)
	if err != nil {
		return fmt.Errorf("failed to update tournament overall winner for tournament %d: %w", tournamentID, r.handleTournamentError(err))
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) MarkPublished(ctx context.Context, tournamentID int, publishedAt time.Time, resultsURL *string) error {
	query := `UPDATE tournaments SET published_at = $1, results_url = $2 WHERE id = $3`
	result, err := r.db.ExecContext(ctx, query, publishedAt, resultsURL, tournamentID)
	if err != nil {
		return fmt.Errorf("failed to mark tournament %d as published: %w", tournamentID, err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM tournaments WHERE id = $1`, id)
	if err != nil {
		return r.handleTournamentError(err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

// GetTournamentsForAutoStatusUpdate returns tournaments whose dates call for a
// status change. Active tournaments are only returned once every match is
// finished and, for group + knockout formats, the knockout phase exists.
func (r *postgresTournamentRepository) GetTournamentsForAutoStatusUpdate(ctx context.Context, exec SQLExecutor, currentTime time.Time) ([]*models.Tournament, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT ` + tournamentColumns + `
		FROM tournaments t
		WHERE (t.status = $1 AND t.reg_date <= $4)
		   OR (t.status = $2 AND t.start_date <= $4)
		   OR (t.status = $3 AND t.end_date <= $4 AND NOT EXISTS (
				SELECT 1 FROM matches m
				WHERE m.tournament_id = t.id AND m.status IN ('scheduled', 'in_progress')
		   ) AND NOT EXISTS (
				SELECT 1 FROM formats f
				WHERE f.id = t.format_id AND f.bracket_type = $5
				  AND NOT EXISTS (
					SELECT 1 FROM matches k WHERE k.tournament_id = t.id AND k.phase = $6
				  )
		   ))
		ORDER BY t.id`
	args := []interface{}{
		models.StatusSoon,           // $1
		models.StatusRegistration,   // $2
		models.StatusActive,         // $3
		currentTime,                 // $4
		models.BracketGroupKnockout, // $5
		models.PhaseKnockout,        // $6
	}

	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tournaments for auto status update: %w", err)
	}
	defer rows.Close()

	var tournaments []*models.Tournament
	for rows.Next() {
		t, scanErr := scanTournament(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("failed to scan tournament for auto status update: %w", scanErr)
		}
		tournaments = append(tournaments, t)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error during tournament rows iteration for auto status update: %w", err)
	}
	return tournaments, nil
}

func (r *postgresTournamentRepository) handleTournamentError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := asPQError(err); ok {
		switch pqErr.Code {
		case pqUniqueViolation:
			if pqErr.Constraint == "tournaments_organizer_id_name_key" {
				return ErrTournamentNameConflict
			}
		case pqForeignKeyViolation:
			switch pqErr.Constraint {
			case "tournaments_sport_id_fkey":
				return ErrTournamentInvalidSport
			case "tournaments_format_id_fkey":
				return ErrTournamentInvalidFormat
			case "fk_tournaments_overall_winner":
				return ErrParticipantNotFound
			default:
				return ErrTournamentInUse
			}
		}
	}
	return err
}
