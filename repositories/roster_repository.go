package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var (
	ErrRosterMemberExists   = errors.New("player is already in the team roster")
	ErrRosterMemberNotFound = errors.New("player is not in the team roster")
)

// TeamRosterRepository manages team_members, the players that belong to a team.
type TeamRosterRepository interface {
	AddMember(ctx context.Context, teamID, playerID int) error
	RemoveMember(ctx context.Context, teamID, playerID int) error
	CountMembers(ctx context.Context, teamID int) (int, error)
	IsMember(ctx context.Context, teamID, playerID int) (bool, error)
}

type postgresTeamRosterRepository struct {
	db *sql.DB
}

func NewPostgresTeamRosterRepository(db *sql.DB) TeamRosterRepository {
	return &postgresTeamRosterRepository{db: db}
}

func (r *postgresTeamRosterRepository) AddMember(ctx context.Context, teamID, playerID int) error {
	query := `INSERT INTO team_members (team_id, player_id) VALUES ($1, $2)`
	if _, err := r.db.ExecContext(ctx, query, teamID, playerID); err != nil {
		if pqErr, ok := asPQError(err); ok {
			switch pqErr.Code {
			case pqUniqueViolation:
				return ErrRosterMemberExists
			case pqForeignKeyViolation:
				if pqErr.Constraint == "team_members_team_id_fkey" {
					return ErrTeamNotFound
				}
				return ErrPlayerNotFound
			}
		}
		return fmt.Errorf("failed to add player %d to team %d: %w", playerID, teamID, err)
	}
	return nil
}

func (r *postgresTeamRosterRepository) RemoveMember(ctx context.Context, teamID, playerID int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM team_members WHERE team_id = $1 AND player_id = $2`, teamID, playerID)
	if err != nil {
		return fmt.Errorf("failed to remove player %d from team %d: %w", playerID, teamID, err)
	}
	return checkAffectedRows(result, ErrRosterMemberNotFound)
}

func (r *postgresTeamRosterRepository) CountMembers(ctx context.Context, teamID int) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM team_members WHERE team_id = $1`, teamID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *postgresTeamRosterRepository) IsMember(ctx context.Context, teamID, playerID int) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM team_members WHERE team_id = $1 AND player_id = $2)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, teamID, playerID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}
