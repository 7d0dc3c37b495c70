package repositories

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Dosada05/tournament-manager/models"
)

var (
	ErrFormatNotFound     = errors.New("format not found")
	ErrFormatNameConflict = errors.New("format name conflict")
	ErrFormatInUse        = errors.New("format is in use by a tournament")
	ErrFormatInvalidType  = errors.New("invalid participant_type value for format")
)

type FormatRepository interface {
	Create(ctx context.Context, format *models.Format) error
	GetByID(ctx context.Context, id int) (*models.Format, error)
	GetAll(ctx context.Context) ([]models.Format, error)
	Update(ctx context.Context, format *models.Format) error
	Delete(ctx context.Context, id int) error
}

type postgresFormatRepository struct {
	db *sql.DB
}

func NewPostgresFormatRepository(db *sql.DB) FormatRepository {
	return &postgresFormatRepository{db: db}
}

func (r *postgresFormatRepository) Create(ctx context.Context, format *models.Format) error {
	query := `
		INSERT INTO formats (name, bracket_type, participant_type, settings_json)
		VALUES ($1, $2, $3, $4)
		RETURNING id`
	err := r.db.QueryRowContext(ctx, query,
		format.Name,
		format.BracketType,
		format.ParticipantType,
		format.SettingsJSON,
	).Scan(&format.ID)
	return r.handleFormatError(err)
}

func (r *postgresFormatRepository) scanFormat(row rowScanner) (*models.Format, error) {
	format := &models.Format{}
	var settings sql.NullString // settings_json может быть NULL
	if err := row.Scan(&format.ID, &format.Name, &format.BracketType, &format.ParticipantType, &settings); err != nil {
		return nil, err
	}
	if settings.Valid {
		format.SettingsJSON = &settings.String
	}
	if s, err := format.GetSettings(); err == nil {
		format.Settings = &s
	}
	return format, nil
}

func (r *postgresFormatRepository) GetByID(ctx context.Context, id int) (*models.Format, error) {
	query := `
		SELECT id, name, bracket_type, participant_type, settings_json
		FROM formats
		WHERE id = $1`
	format, err := r.scanFormat(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrFormatNotFound
		}
		return nil, err
	}
	return format, nil
}

func (r *postgresFormatRepository) GetAll(ctx context.Context) ([]models.Format, error) {
	query := `SELECT id, name, bracket_type, participant_type, settings_json FROM formats ORDER BY name ASC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	formats := make([]models.Format, 0)
	for rows.Next() {
		format, scanErr := r.scanFormat(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		formats = append(formats, *format)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return formats, nil
}

func (r *postgresFormatRepository) Update(ctx context.Context, format *models.Format) error {
	query := `
		UPDATE formats
		SET name = $1, bracket_type = $2, participant_type = $3, settings_json = $4
		WHERE id = $5`
	result, err := r.db.ExecContext(ctx, query,
		format.Name,
		format.BracketType,
		format.ParticipantType,
		format.SettingsJSON,
		format.ID,
	)
	if err != nil {
		return r.handleFormatError(err)
	}
	return checkAffectedRows(result, ErrFormatNotFound)
}

func (r *postgresFormatRepository) Delete(ctx context.Context, id int) error {
	query := `DELETE FROM formats WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return r.handleFormatError(err)
	}
	return checkAffectedRows(result, ErrFormatNotFound)
}

func (r *postgresFormatRepository) handleFormatError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := asPQError(err); ok {
		switch pqErr.Code {
		case pqUniqueViolation:
			if pqErr.Constraint == "formats_name_key" {
				return ErrFormatNameConflict
			}
		case pqForeignKeyViolation:
			return ErrFormatInUse
		case pqCheckViolation:
			return ErrFormatInvalidType
		}
	}
	return err
}
