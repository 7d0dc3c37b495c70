package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/Dosada05/tournament-manager/models"
)

var (
	ErrParticipantNotFound          = errors.New("participant not found")
	ErrParticipantConflict          = errors.New("participant conflict: player or team already registered for this tournament")
	ErrParticipantPlayerInvalid     = errors.New("participant player conflict or invalid")
	ErrParticipantTeamInvalid       = errors.New("participant team conflict or invalid")
	ErrParticipantTournamentInvalid = errors.New("participant tournament conflict or invalid")
	ErrParticipantTypeViolation     = errors.New("participant type violation: either player_id or team_id must be set, but not both")
)

type ParticipantRepository interface {
	Create(ctx context.Context, exec SQLExecutor, p *models.Participant) error
	FindByID(ctx context.Context, id int) (*models.Participant, error)
	UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.ParticipantStatus) error
	UpdateSeed(ctx context.Context, id int, seed *int) error
	// ListByTournament returns participants ordered by seed; with includeNested
	// the player or team is loaded as well.
	ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int, statusFilter *models.ParticipantStatus, includeNested bool) ([]*models.Participant, error)
	// CountActive counts pending and approved participants, the ones taking a place.
	CountActive(ctx context.Context, exec SQLExecutor, tournamentID int) (int, error)
	Delete(ctx context.Context, id int) error
}

type postgresParticipantRepository struct {
	db *sql.DB
}

func NewPostgresParticipantRepository(db *sql.DB) ParticipantRepository {
	return &postgresParticipantRepository{db: db}
}

func (r *postgresParticipantRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresParticipantRepository) Create(ctx context.Context, exec SQLExecutor, p *models.Participant) error {
	query := `
		INSERT INTO participants (tournament_id, player_id, team_id, status, seed)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err := r.getExecutor(exec).QueryRowContext(ctx, query,
		p.TournamentID,
		p.PlayerID,
		p.TeamID,
		p.Status,
		p.Seed,
	).Scan(&p.ID, &p.CreatedAt)

	if err != nil {
		if pqErr, ok := asPQError(err); ok {
			switch pqErr.Code {
			case pqUniqueViolation:
				if pqErr.Constraint == "participants_player_id_tournament_id_key" ||
					pqErr.Constraint == "participants_team_id_tournament_id_key" {
					return ErrParticipantConflict
				}
			case pqForeignKeyViolation:
				switch pqErr.Constraint {
				case "participants_player_id_fkey":
					return ErrParticipantPlayerInvalid
				case "participants_team_id_fkey":
					return ErrParticipantTeamInvalid
				case "participants_tournament_id_fkey":
					return ErrParticipantTournamentInvalid
				}
			case pqCheckViolation:
				if pqErr.Constraint == "chk_participant_type" {
					return ErrParticipantTypeViolation
				}
			}
		}
		return fmt.Errorf("failed to create participant: %w", err)
	}
	return nil
}

func (r *postgresParticipantRepository) FindByID(ctx context.Context, id int) (*models.Participant, error) {
	query := `
		SELECT id, tournament_id, player_id, team_id, status, seed, created_at
		FROM participants
		WHERE id = $1`
	var p models.Participant
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&p.ID, &p.TournamentID, &p.PlayerID, &p.TeamID, &p.Status, &p.Seed, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrParticipantNotFound
		}
		return nil, fmt.Errorf("failed to find participant %d: %w", id, err)
	}
	return &p, nil
}

func (r *postgresParticipantRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, id int, status models.ParticipantStatus) error {
	result, err := r.getExecutor(exec).ExecContext(ctx, `UPDATE participants SET status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("failed to update participant %d status: %w", id, err)
	}
	return checkAffectedRows(result, ErrParticipantNotFound)
}

func (r *postgresParticipantRepository) UpdateSeed(ctx context.Context, id int, seed *int) error {
	result, err := r.db.ExecContext(ctx, `UPDATE participants SET seed = $1 WHERE id = $2`, seed, id)
	if err != nil {
		return fmt.Errorf("failed to update participant %d seed: %w", id, err)
	}
	return checkAffectedRows(result, ErrParticipantNotFound)
}

func (r *postgresParticipantRepository) ListByTournament(ctx context.Context, exec SQLExecutor, tournamentID int, statusFilter *models.ParticipantStatus, includeNested bool) ([]*models.Participant, error) {
	var sb strings.Builder
	sb.WriteString(`
		SELECT p.id, p.tournament_id, p.player_id, p.team_id, p.status, p.seed, p.created_at`)
	if includeNested {
		sb.WriteString(`,
			pl.id, pl.first_name, pl.last_name, pl.nickname, pl.email, pl.created_at,
			t.id, t.name, t.sport_id, t.captain_id, t.created_at`)
	}
	sb.WriteString(`
		FROM participants p`)
	if includeNested {
		sb.WriteString(`
		LEFT JOIN players pl ON pl.id = p.player_id
		LEFT JOIN teams t ON t.id = p.team_id`)
	}
	sb.WriteString(`
		WHERE p.tournament_id = $1`)
	args := []interface{}{tournamentID}
	if statusFilter != nil {
		sb.WriteString(` AND p.status = $2`)
		args = append(args, *statusFilter)
	}
	sb.WriteString(`
		ORDER BY p.seed ASC NULLS LAST, p.id ASC`)

	rows, err := r.getExecutor(exec).QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	participants := make([]*models.Participant, 0)
	for rows.Next() {
		var p models.Participant
		dest := []interface{}{&p.ID, &p.TournamentID, &p.PlayerID, &p.TeamID, &p.Status, &p.Seed, &p.CreatedAt}

		var (
			plID                      sql.NullInt64
			plFirst, plLast           sql.NullString
			plNick, plEmail           sql.NullString
			plCreated, tCreated       sql.NullTime
			tID, tSportID, tCaptainID sql.NullInt64
			tName                     sql.NullString
		)
		if includeNested {
			dest = append(dest,
				&plID, &plFirst, &plLast, &plNick, &plEmail, &plCreated,
				&tID, &tName, &tSportID, &tCaptainID, &tCreated)
		}
		if scanErr := rows.Scan(dest...); scanErr != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", scanErr)
		}

		if includeNested && plID.Valid {
			p.Player = &models.Player{
				ID:        int(plID.Int64),
				FirstName: plFirst.String,
				LastName:  plLast.String,
				Nickname:  nullStringPtr(plNick),
				Email:     nullStringPtr(plEmail),
				CreatedAt: plCreated.Time,
			}
		}
		if includeNested && tID.Valid {
			p.Team = &models.Team{
				ID:        int(tID.Int64),
				Name:      tName.String,
				SportID:   int(tSportID.Int64),
				CaptainID: nullIntPtr(tCaptainID),
				CreatedAt: tCreated.Time,
			}
		}
		participants = append(participants, &p)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return participants, nil
}

func (r *postgresParticipantRepository) CountActive(ctx context.Context, exec SQLExecutor, tournamentID int) (int, error) {
	query := `SELECT COUNT(*) FROM participants WHERE tournament_id = $1 AND status IN ('pending', 'approved')`
	var n int
	if err := r.getExecutor(exec).QueryRowContext(ctx, query, tournamentID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count participants for tournament %d: %w", tournamentID, err)
	}
	return n, nil
}

func (r *postgresParticipantRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM participants WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete participant %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrParticipantNotFound)
}

func nullStringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func nullIntPtr(ni sql.NullInt64) *int {
	if !ni.Valid {
		return nil
	}
	v := int(ni.Int64)
	return &v
}
