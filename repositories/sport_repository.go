package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Dosada05/tournament-manager/models"
)

var (
	ErrSportNotFound     = errors.New("sport not found")
	ErrSportNameConflict = errors.New("sport name conflict")
	ErrSportInUse        = errors.New("sport cannot be deleted as it is in use") // FK при удалении
)

type SportRepository interface {
	Create(ctx context.Context, sport *models.Sport) error
	GetByID(ctx context.Context, id int) (*models.Sport, error)
	GetAll(ctx context.Context) ([]models.Sport, error)
	Update(ctx context.Context, sport *models.Sport) error
	Delete(ctx context.Context, id int) error
	ExistsByName(ctx context.Context, name string) (bool, error)
}

type postgresSportRepository struct {
	db *sql.DB
}

func NewPostgresSportRepository(db *sql.DB) SportRepository {
	return &postgresSportRepository{db: db}
}

func (r *postgresSportRepository) Create(ctx context.Context, sport *models.Sport) error {
	rulesJSON, err := json.Marshal(sport.ScoringRules)
	if err != nil {
		return fmt.Errorf("failed to encode scoring rules: %w", err)
	}
	query := `INSERT INTO sports (name, scoring_rules, min_roster_size) VALUES ($1, $2, $3) RETURNING id, created_at`

	err = r.db.QueryRowContext(ctx, query, sport.Name, rulesJSON, sport.MinRosterSize).Scan(&sport.ID, &sport.CreatedAt)
	return r.handleSportError(err)
}

func (r *postgresSportRepository) scanSport(row rowScanner) (*models.Sport, error) {
	var (
		sport     models.Sport
		rulesJSON []byte
	)
	if err := row.Scan(&sport.ID, &sport.Name, &rulesJSON, &sport.MinRosterSize, &sport.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(rulesJSON, &sport.ScoringRules); err != nil {
		return nil, fmt.Errorf("failed to decode scoring rules of sport %d: %w", sport.ID, err)
	}
	return &sport, nil
}

func (r *postgresSportRepository) GetByID(ctx context.Context, id int) (*models.Sport, error) {
	query := `SELECT id, name, scoring_rules, min_roster_size, created_at FROM sports WHERE id = $1`

	sport, err := r.scanSport(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSportNotFound
		}
		return nil, err
	}
	return sport, nil
}

func (r *postgresSportRepository) GetAll(ctx context.Context) ([]models.Sport, error) {
	query := `SELECT id, name, scoring_rules, min_roster_size, created_at FROM sports ORDER BY name ASC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sports := make([]models.Sport, 0)
	for rows.Next() {
		sport, scanErr := r.scanSport(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		sports = append(sports, *sport)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return sports, nil
}

func (r *postgresSportRepository) Update(ctx context.Context, sport *models.Sport) error {
	rulesJSON, err := json.Marshal(sport.ScoringRules)
	if err != nil {
		return fmt.Errorf("failed to encode scoring rules: %w", err)
	}
	query := `UPDATE sports SET name = $1, scoring_rules = $2, min_roster_size = $3 WHERE id = $4`

	result, err := r.db.ExecContext(ctx, query, sport.Name, rulesJSON, sport.MinRosterSize, sport.ID)
	if err != nil {
		return r.handleSportError(err)
	}
	return checkAffectedRows(result, ErrSportNotFound)
}

func (r *postgresSportRepository) Delete(ctx context.Context, id int) error {
	query := `DELETE FROM sports WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return r.handleSportError(err)
	}
	return checkAffectedRows(result, ErrSportNotFound)
}

func (r *postgresSportRepository) ExistsByName(ctx context.Context, name string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM sports WHERE name = $1)`
	var exists bool
	if err := r.db.QueryRowContext(ctx, query, name).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *postgresSportRepository) handleSportError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := asPQError(err); ok {
		switch pqErr.Code {
		case pqUniqueViolation:
			if pqErr.Constraint == "sports_name_key" {
				return ErrSportNameConflict
			}
		case pqForeignKeyViolation:
			// ON DELETE RESTRICT со стороны teams и tournaments
			return ErrSportInUse
		}
	}
	return err
}
