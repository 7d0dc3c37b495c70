package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/Dosada05/tournament-manager/models"
)

const standingColumnsPerRow = 12

type TournamentStandingRepository interface {
	BatchCreate(ctx context.Context, exec SQLExecutor, standings []*models.TournamentStanding) error
	ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.TournamentStanding, error)
	DeleteByTournamentID(ctx context.Context, exec SQLExecutor, tournamentID int) error
}

type postgresTournamentStandingRepository struct {
	db *sql.DB // используется, если exec == nil
}

func NewPostgresTournamentStandingRepository(db *sql.DB) TournamentStandingRepository {
	return &postgresTournamentStandingRepository{db: db}
}

func (r *postgresTournamentStandingRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

// BatchCreate inserts all rows with one multi-row INSERT.
func (r *postgresTournamentStandingRepository) BatchCreate(ctx context.Context, exec SQLExecutor, standings []*models.TournamentStanding) error {
	if len(standings) == 0 {
		return nil
	}
	executor := r.getExecutor(exec)

	var sb strings.Builder
	sb.WriteString(`
		INSERT INTO tournament_standings
		    (tournament_id, participant_id, group_label, points, games_played, wins, draws, losses,
		     score_for, score_against, score_difference, rank)
		VALUES `)
	args := make([]interface{}, 0, len(standings)*standingColumnsPerRow)
	for i, s := range standings {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * standingColumnsPerRow
		placeholders := make([]string, standingColumnsPerRow)
		for j := range placeholders {
			placeholders[j] = fmt.Sprintf("$%d", base+j+1)
		}
		sb.WriteString("(" + strings.Join(placeholders, ", ") + ")")
		args = append(args,
			s.TournamentID, s.ParticipantID, s.GroupLabel, s.Points, s.GamesPlayed, s.Wins, s.Draws, s.Losses,
			s.ScoreFor, s.ScoreAgainst, s.ScoreDifference, s.Rank,
		)
	}

	if _, err := executor.ExecContext(ctx, sb.String(), args...); err != nil {
		if pqErr, ok := asPQError(err); ok && pqErr.Code == pqForeignKeyViolation {
			return fmt.Errorf("BatchCreate: %w", ErrParticipantNotFound)
		}
		return fmt.Errorf("BatchCreate failed for %d standings: %w", len(standings), err)
	}
	return nil
}

func (r *postgresTournamentStandingRepository) ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) ([]*models.TournamentStanding, error) {
	executor := r.getExecutor(exec)
	query := `
		SELECT id, tournament_id, participant_id, group_label, points, games_played, wins, draws, losses,
		       score_for, score_against, score_difference, rank, updated_at
		FROM tournament_standings
		WHERE tournament_id = $1
		ORDER BY group_label ASC NULLS FIRST, rank ASC NULLS LAST, points DESC, participant_id ASC`

	rows, err := executor.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	standings := make([]*models.TournamentStanding, 0)
	for rows.Next() {
		var s models.TournamentStanding
		if err := rows.Scan(
			&s.ID, &s.TournamentID, &s.ParticipantID, &s.GroupLabel, &s.Points, &s.GamesPlayed,
			&s.Wins, &s.Draws, &s.Losses, &s.ScoreFor, &s.ScoreAgainst,
			&s.ScoreDifference, &s.Rank, &s.UpdatedAt,
		); err != nil {
			return nil, err
		}
		standings = append(standings, &s)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return standings, nil
}

func (r *postgresTournamentStandingRepository) DeleteByTournamentID(ctx context.Context, exec SQLExecutor, tournamentID int) error {
	executor := r.getExecutor(exec)
	_, err := executor.ExecContext(ctx, `DELETE FROM tournament_standings WHERE tournament_id = $1`, tournamentID)
	return err
}
