package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Dosada05/tournament-manager/models"
	"github.com/Dosada05/tournament-manager/repositories"
)

var (
	ErrFormatNameRequired           = errors.New("format name is required")
	ErrFormatNameConflict           = errors.New("format name already exists")
	ErrFormatInUse                  = errors.New("format cannot be deleted as it is currently in use")
	ErrFormatCreationFailed         = errors.New("failed to create format")
	ErrFormatUpdateFailed           = errors.New("failed to update format")
	ErrFormatDeleteFailed           = errors.New("failed to delete format")
	ErrInvalidBracketType           = errors.New("invalid bracket type specified")
	ErrInvalidParticipantType       = errors.New("participant type must be 'solo' or 'team'")
	ErrInvalidFormatSettings        = errors.New("invalid format settings")
	ErrSettingsNotApplicableForType = errors.New("groups and advance_per_group only apply to GroupKnockout formats")
)

type FormatService interface {
	CreateFormat(ctx context.Context, input CreateFormatInput) (*models.Format, error)
	GetFormatByID(ctx context.Context, id int) (*models.Format, error)
	GetAllFormats(ctx context.Context) ([]models.Format, error)
	UpdateFormat(ctx context.Context, id int, input UpdateFormatInput) (*models.Format, error)
	DeleteFormat(ctx context.Context, id int) error
}

type CreateFormatInput struct {
	Name            string                       `json:"name"`
	BracketType     string                       `json:"bracket_type"` // SingleElimination, RoundRobin, GroupKnockout
	ParticipantType models.FormatParticipantType `json:"participant_type"`
	Settings        *models.FormatSettings       `json:"settings,omitempty"`
}

// Все поля - указатели: nil означает "не менять".
type UpdateFormatInput struct {
	Name            *string                       `json:"name,omitempty"`
	BracketType     *string                       `json:"bracket_type,omitempty"`
	ParticipantType *models.FormatParticipantType `json:"participant_type,omitempty"`
	Settings        *models.FormatSettings        `json:"settings,omitempty"`
}

type formatService struct {
	formatRepo repositories.FormatRepository
}

func NewFormatService(formatRepo repositories.FormatRepository) FormatService {
	return &formatService{
		formatRepo: formatRepo,
	}
}

func validateBracketType(t string) error {
	if !models.IsValidBracketType(t) {
		return fmt.Errorf("%w: %s. Supported types are '%s', '%s', '%s'", ErrInvalidBracketType, t,
			models.BracketSingleElimination, models.BracketRoundRobin, models.BracketGroupKnockout)
	}
	return nil
}

func validateParticipantType(t models.FormatParticipantType) error {
	if t != models.FormatParticipantSolo && t != models.FormatParticipantTeam {
		return ErrInvalidParticipantType
	}
	return nil
}

// encodeSettings validates settings for the bracket type and returns the JSON
// to store; zero values are kept as "use the default".
func encodeSettings(bracketType string, settings *models.FormatSettings) (*string, error) {
	if settings == nil {
		return nil, nil
	}
	if settings.Legs < 0 || settings.Legs > 2 {
		return nil, fmt.Errorf("%w: legs must be 1 or 2, got %d", ErrInvalidFormatSettings, settings.Legs)
	}
	if bracketType == models.BracketSingleElimination && settings.Legs > 1 {
		return nil, fmt.Errorf("%w: single elimination is played over one leg", ErrInvalidFormatSettings)
	}
	if bracketType == models.BracketGroupKnockout {
		if settings.Groups != 0 && settings.Groups < 2 {
			return nil, fmt.Errorf("%w: groups must be at least 2, got %d", ErrInvalidFormatSettings, settings.Groups)
		}
		if settings.AdvancePerGroup < 0 {
			return nil, fmt.Errorf("%w: advance_per_group must be at least 1, got %d", ErrInvalidFormatSettings, settings.AdvancePerGroup)
		}
	} else if settings.Groups != 0 || settings.AdvancePerGroup != 0 {
		return nil, ErrSettingsNotApplicableForType
	}

	raw, err := json.Marshal(settings)
	if err != nil {
		return nil, fmt.Errorf("failed to encode format settings: %w", err)
	}
	str := string(raw)
	if str == "{}" {
		return nil, nil
	}
	return &str, nil
}

func applyFormatSettings(format *models.Format) {
	if s, err := format.GetSettings(); err == nil {
		format.Settings = &s
	}
}

func (s *formatService) CreateFormat(ctx context.Context, input CreateFormatInput) (*models.Format, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrFormatNameRequired
	}
	if err := validateBracketType(input.BracketType); err != nil {
		return nil, err
	}
	if err := validateParticipantType(input.ParticipantType); err != nil {
		return nil, err
	}
	settingsJSON, err := encodeSettings(input.BracketType, input.Settings)
	if err != nil {
		return nil, err
	}

	format := &models.Format{
		Name:            name,
		BracketType:     input.BracketType,
		ParticipantType: input.ParticipantType,
		SettingsJSON:    settingsJSON,
	}

	err = s.formatRepo.Create(ctx, format)
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrFormatNameConflict):
			return nil, ErrFormatNameConflict
		case errors.Is(err, repositories.ErrFormatInvalidType):
			return nil, ErrInvalidBracketType
		default:
			return nil, fmt.Errorf("%w: %w", ErrFormatCreationFailed, err)
		}
	}
	applyFormatSettings(format)
	return format, nil
}

func (s *formatService) GetFormatByID(ctx context.Context, id int) (*models.Format, error) {
	format, err := s.formatRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrFormatNotFound) {
			return nil, ErrFormatNotFound
		}
		return nil, fmt.Errorf("failed to get format by id %d: %w", id, err)
	}
	return format, nil
}

func (s *formatService) GetAllFormats(ctx context.Context) ([]models.Format, error) {
	formats, err := s.formatRepo.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get all formats: %w", err)
	}
	if formats == nil {
		return []models.Format{}, nil
	}
	return formats, nil
}

func (s *formatService) UpdateFormat(ctx context.Context, id int, input UpdateFormatInput) (*models.Format, error) {
	formatToUpdate, err := s.GetFormatByID(ctx, id)
	if err != nil {
		return nil, err
	}

	updated := false
	if input.Name != nil {
		trimmedName := strings.TrimSpace(*input.Name)
		if trimmedName == "" {
			return nil, ErrFormatNameRequired
		}
		if trimmedName != formatToUpdate.Name {
			formatToUpdate.Name = trimmedName
			updated = true
		}
	}

	if input.BracketType != nil && *input.BracketType != formatToUpdate.BracketType {
		if err := validateBracketType(*input.BracketType); err != nil {
			return nil, err
		}
		formatToUpdate.BracketType = *input.BracketType
		updated = true
	}

	if input.ParticipantType != nil && *input.ParticipantType != formatToUpdate.ParticipantType {
		if err := validateParticipantType(*input.ParticipantType); err != nil {
			return nil, err
		}
		formatToUpdate.ParticipantType = *input.ParticipantType
		updated = true
	}

	if input.Settings != nil || updated {
		// Настройки перепроверяем и при смене типа сетки: groups допустимы только для GroupKnockout.
		settings := input.Settings
		if settings == nil && formatToUpdate.SettingsJSON != nil {
			var current models.FormatSettings
			if err := json.Unmarshal([]byte(*formatToUpdate.SettingsJSON), &current); err == nil {
				settings = &current
			}
		}
		settingsJSON, err := encodeSettings(formatToUpdate.BracketType, settings)
		if err != nil {
			return nil, err
		}
		if derefString(settingsJSON) != derefString(formatToUpdate.SettingsJSON) {
			formatToUpdate.SettingsJSON = settingsJSON
			updated = true
		}
	}

	if !updated {
		return formatToUpdate, nil
	}

	err = s.formatRepo.Update(ctx, formatToUpdate)
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrFormatNotFound):
			return nil, ErrFormatNotFound
		case errors.Is(err, repositories.ErrFormatNameConflict):
			return nil, ErrFormatNameConflict
		default:
			return nil, fmt.Errorf("%w (id: %d): %w", ErrFormatUpdateFailed, id, err)
		}
	}
	applyFormatSettings(formatToUpdate)
	return formatToUpdate, nil
}

func (s *formatService) DeleteFormat(ctx context.Context, id int) error {
	err := s.formatRepo.Delete(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrFormatNotFound):
			return ErrFormatNotFound
		case errors.Is(err, repositories.ErrFormatInUse):
			return ErrFormatInUse
		default:
			return fmt.Errorf("%w (id: %d): %w", ErrFormatDeleteFailed, id, err)
		}
	}
	return nil
}
