package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Dosada05/tournament-manager/models"
	"github.com/Dosada05/tournament-manager/repositories"
	"github.com/Dosada05/tournament-manager/rules"
)

var (
	ErrSportNameRequired      = errors.New("sport name is required")
	ErrSportNameConflict      = errors.New("sport name already exists")
	ErrSportInUse             = errors.New("sport cannot be deleted as it is currently in use")
	ErrSportUnknownPreset     = errors.New("unknown scoring preset")
	ErrSportInvalidRules      = errors.New("invalid scoring rules")
	ErrSportPresetAndRules    = errors.New("either a scoring preset or explicit scoring rules may be given, not both")
	ErrSportInvalidRosterSize = errors.New("minimum roster size must not be negative")
	ErrSportCreationFailed    = errors.New("failed to create sport")
	ErrSportUpdateFailed      = errors.New("failed to update sport")
	ErrSportDeleteFailed      = errors.New("failed to delete sport")
)

type SportService interface {
	CreateSport(ctx context.Context, input CreateSportInput) (*models.Sport, error)
	GetSportByID(ctx context.Context, id int) (*models.Sport, error)
	GetAllSports(ctx context.Context) ([]models.Sport, error)
	UpdateSport(ctx context.Context, id int, input UpdateSportInput) (*models.Sport, error)
	DeleteSport(ctx context.Context, id int) error
	ListPresets() []string
}

type CreateSportInput struct {
	Name string `json:"name"`
	// Preset - имя набора правил из presets.yaml (football, chess, ...).
	Preset        string              `json:"preset,omitempty"`
	ScoringRules  *rules.ScoringRules `json:"scoring_rules,omitempty"`
	MinRosterSize int                 `json:"min_roster_size,omitempty"`
}

type UpdateSportInput struct {
	Name          *string             `json:"name,omitempty"`
	Preset        *string             `json:"preset,omitempty"`
	ScoringRules  *rules.ScoringRules `json:"scoring_rules,omitempty"`
	MinRosterSize *int                `json:"min_roster_size,omitempty"`
}

type sportService struct {
	sportRepo repositories.SportRepository
	presets   rules.Presets
}

func NewSportService(sportRepo repositories.SportRepository, presets rules.Presets) SportService {
	if presets == nil {
		presets = rules.DefaultPresets()
	}
	return &sportService{
		sportRepo: sportRepo,
		presets:   presets,
	}
}

// resolveRules picks preset rules, validated explicit rules or nil when neither is given.
func (s *sportService) resolveRules(preset string, explicit *rules.ScoringRules) (*rules.ScoringRules, error) {
	preset = strings.TrimSpace(preset)
	switch {
	case preset != "" && explicit != nil:
		return nil, ErrSportPresetAndRules
	case preset != "":
		r, err := s.presets.Preset(preset)
		if err != nil {
			return nil, fmt.Errorf("%w: %q (known: %s)", ErrSportUnknownPreset, preset, strings.Join(s.presets.Names(), ", "))
		}
		return &r, nil
	case explicit != nil:
		r, err := rules.Validate(*explicit)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrSportInvalidRules, err)
		}
		return &r, nil
	}
	return nil, nil
}

func (s *sportService) CreateSport(ctx context.Context, input CreateSportInput) (*models.Sport, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrSportNameRequired
	}
	if input.MinRosterSize < 0 {
		return nil, ErrSportInvalidRosterSize
	}

	scoring, err := s.resolveRules(input.Preset, input.ScoringRules)
	if err != nil {
		return nil, err
	}
	if scoring == nil {
		d := rules.Default()
		scoring = &d
	}

	exists, err := s.sportRepo.ExistsByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSportCreationFailed, err)
	}
	if exists {
		return nil, ErrSportNameConflict
	}

	sport := &models.Sport{
		Name:          name,
		ScoringRules:  *scoring,
		MinRosterSize: input.MinRosterSize,
	}

	err = s.sportRepo.Create(ctx, sport)
	if err != nil {
		if errors.Is(err, repositories.ErrSportNameConflict) {
			return nil, ErrSportNameConflict
		}
		return nil, fmt.Errorf("%w: %w", ErrSportCreationFailed, err)
	}

	return sport, nil
}

func (s *sportService) GetSportByID(ctx context.Context, id int) (*models.Sport, error) {
	sport, err := s.sportRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrSportNotFound) {
			return nil, ErrSportNotFound
		}
		return nil, fmt.Errorf("failed to get sport by id %d: %w", id, err)
	}
	return sport, nil
}

func (s *sportService) GetAllSports(ctx context.Context) ([]models.Sport, error) {
	sports, err := s.sportRepo.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get all sports: %w", err)
	}
	if sports == nil {
		return []models.Sport{}, nil
	}
	return sports, nil
}

func (s *sportService) UpdateSport(ctx context.Context, id int, input UpdateSportInput) (*models.Sport, error) {
	sportToUpdate, err := s.GetSportByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, ErrSportNameRequired
		}
		sportToUpdate.Name = name
	}
	if input.MinRosterSize != nil {
		if *input.MinRosterSize < 0 {
			return nil, ErrSportInvalidRosterSize
		}
		sportToUpdate.MinRosterSize = *input.MinRosterSize
	}

	scoring, err := s.resolveRules(derefString(input.Preset), input.ScoringRules)
	if err != nil {
		return nil, err
	}
	if scoring != nil {
		sportToUpdate.ScoringRules = *scoring
	}

	err = s.sportRepo.Update(ctx, sportToUpdate)
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrSportNotFound):
			return nil, ErrSportNotFound
		case errors.Is(err, repositories.ErrSportNameConflict):
			return nil, ErrSportNameConflict
		default:
			return nil, fmt.Errorf("%w (id: %d): %w", ErrSportUpdateFailed, id, err)
		}
	}

	return sportToUpdate, nil
}

func (s *sportService) DeleteSport(ctx context.Context, id int) error {
	err := s.sportRepo.Delete(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrSportNotFound):
			return ErrSportNotFound
		case errors.Is(err, repositories.ErrSportInUse):
			return ErrSportInUse
		default:
			return fmt.Errorf("%w (id: %d): %w", ErrSportDeleteFailed, id, err)
		}
	}
	return nil
}

func (s *sportService) ListPresets() []string {
	return s.presets.Names()
}
