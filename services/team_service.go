package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Dosada05/tournament-manager/models"
	"github.com/Dosada05/tournament-manager/repositories"
)

var (
	ErrTeamNameRequired      = errors.New("team name is required")
	ErrTeamNameConflict      = errors.New("team name is already in use")
	ErrTeamInUse             = errors.New("team cannot be deleted while registered in a tournament")
	ErrRosterMemberConflict  = errors.New("player is already in the team roster")
	ErrNotTeamMember         = errors.New("player is not in the team roster")
	ErrCannotRemoveCaptain   = errors.New("cannot remove the team captain")
	ErrCaptainMustBeMember   = errors.New("the captain must be a member of the team")
	ErrTeamCreationFailed    = errors.New("failed to create team")
	ErrTeamUpdateFailed      = errors.New("failed to update team")
	ErrTeamRosterWriteFailed = errors.New("failed to change team roster")
)

type TeamService interface {
	CreateTeam(ctx context.Context, input CreateTeamInput) (*models.Team, error)
	// GetTeamByID returns the team with its sport and roster.
	GetTeamByID(ctx context.Context, id int) (*models.Team, error)
	ListTeams(ctx context.Context, filter repositories.ListTeamsFilter) ([]models.Team, error)
	UpdateTeam(ctx context.Context, id int, input UpdateTeamInput) (*models.Team, error)
	DeleteTeam(ctx context.Context, id int) error
	AddMember(ctx context.Context, teamID, playerID int) error
	RemoveMember(ctx context.Context, teamID, playerID int) error
}

type CreateTeamInput struct {
	Name      string `json:"name"`
	SportID   int    `json:"sport_id"`
	CaptainID *int   `json:"captain_id,omitempty"`
}

type UpdateTeamInput struct {
	Name      *string `json:"name,omitempty"`
	CaptainID *int    `json:"captain_id,omitempty"`
}

type teamService struct {
	teamRepo   repositories.TeamRepository
	rosterRepo repositories.TeamRosterRepository
	playerRepo repositories.PlayerRepository
	sportRepo  repositories.SportRepository
}

func NewTeamService(
	teamRepo repositories.TeamRepository,
	rosterRepo repositories.TeamRosterRepository,
	playerRepo repositories.PlayerRepository,
	sportRepo repositories.SportRepository,
) TeamService {
	return &teamService{
		teamRepo:   teamRepo,
		rosterRepo: rosterRepo,
		playerRepo: playerRepo,
		sportRepo:  sportRepo,
	}
}

func (s *teamService) CreateTeam(ctx context.Context, input CreateTeamInput) (*models.Team, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrTeamNameRequired
	}
	if _, err := s.sportRepo.GetByID(ctx, input.SportID); err != nil {
		if errors.Is(err, repositories.ErrSportNotFound) {
			return nil, ErrSportNotFound
		}
		return nil, fmt.Errorf("%w: %w", ErrTeamCreationFailed, err)
	}
	if input.CaptainID != nil {
		if err := s.ensurePlayer(ctx, *input.CaptainID); err != nil {
			return nil, err
		}
	}

	team := &models.Team{Name: name, SportID: input.SportID, CaptainID: input.CaptainID}
	if err := s.teamRepo.Create(ctx, team); err != nil {
		switch {
		case errors.Is(err, repositories.ErrTeamNameConflict):
			return nil, ErrTeamNameConflict
		case errors.Is(err, repositories.ErrTeamInvalidSport):
			return nil, ErrSportNotFound
		case errors.Is(err, repositories.ErrPlayerNotFound):
			return nil, ErrPlayerNotFound
		default:
			return nil, fmt.Errorf("%w: %w", ErrTeamCreationFailed, err)
		}
	}

	// Капитан сразу попадает в состав.
	if team.CaptainID != nil {
		if err := s.rosterRepo.AddMember(ctx, team.ID, *team.CaptainID); err != nil && !errors.Is(err, repositories.ErrRosterMemberExists) {
			return nil, fmt.Errorf("%w: team %d created but captain not added: %w", ErrTeamRosterWriteFailed, team.ID, err)
		}
	}
	return team, nil
}

func (s *teamService) ensurePlayer(ctx context.Context, playerID int) error {
	if _, err := s.playerRepo.GetByID(ctx, playerID); err != nil {
		if errors.Is(err, repositories.ErrPlayerNotFound) {
			return ErrPlayerNotFound
		}
		return fmt.Errorf("failed to check player %d: %w", playerID, err)
	}
	return nil
}

func (s *teamService) getTeam(ctx context.Context, id int) (*models.Team, error) {
	team, err := s.teamRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrTeamNotFound) {
			return nil, ErrTeamNotFound
		}
		return nil, fmt.Errorf("failed to get team by id %d: %w", id, err)
	}
	return team, nil
}

func (s *teamService) GetTeamByID(ctx context.Context, id int) (*models.Team, error) {
	team, err := s.getTeam(ctx, id)
	if err != nil {
		return nil, err
	}
	members, err := s.playerRepo.ListByTeamID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load roster of team %d: %w", id, err)
	}
	team.Members = members
	if sport, err := s.sportRepo.GetByID(ctx, team.SportID); err == nil {
		team.Sport = sport
	}
	return team, nil
}

func (s *teamService) ListTeams(ctx context.Context, filter repositories.ListTeamsFilter) ([]models.Team, error) {
	teams, err := s.teamRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	if teams == nil {
		return []models.Team{}, nil
	}
	return teams, nil
}

func (s *teamService) UpdateTeam(ctx context.Context, id int, input UpdateTeamInput) (*models.Team, error) {
	team, err := s.getTeam(ctx, id)
	if err != nil {
		return nil, err
	}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, ErrTeamNameRequired
		}
		team.Name = name
	}
	if input.CaptainID != nil {
		isMember, err := s.rosterRepo.IsMember(ctx, id, *input.CaptainID)
		if err != nil {
			return nil, fmt.Errorf("%w (id: %d): %w", ErrTeamUpdateFailed, id, err)
		}
		if !isMember {
			return nil, ErrCaptainMustBeMember
		}
		team.CaptainID = input.CaptainID
	}

	if err := s.teamRepo.Update(ctx, team); err != nil {
		switch {
		case errors.Is(err, repositories.ErrTeamNotFound):
			return nil, ErrTeamNotFound
		case errors.Is(err, repositories.ErrTeamNameConflict):
			return nil, ErrTeamNameConflict
		default:
			return nil, fmt.Errorf("%w (id: %d): %w", ErrTeamUpdateFailed, id, err)
		}
	}
	return team, nil
}

func (s *teamService) DeleteTeam(ctx context.Context, id int) error {
	err := s.teamRepo.Delete(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrTeamNotFound):
			return ErrTeamNotFound
		case errors.Is(err, repositories.ErrTeamInUse):
			return ErrTeamInUse
		default:
			return fmt.Errorf("failed to delete team %d: %w", id, err)
		}
	}
	return nil
}

func (s *teamService) AddMember(ctx context.Context, teamID, playerID int) error {
	if _, err := s.getTeam(ctx, teamID); err != nil {
		return err
	}
	if err := s.ensurePlayer(ctx, playerID); err != nil {
		return err
	}
	if err := s.rosterRepo.AddMember(ctx, teamID, playerID); err != nil {
		switch {
		case errors.Is(err, repositories.ErrRosterMemberExists):
			return ErrRosterMemberConflict
		case errors.Is(err, repositories.ErrTeamNotFound):
			return ErrTeamNotFound
		case errors.Is(err, repositories.ErrPlayerNotFound):
			return ErrPlayerNotFound
		default:
			return fmt.Errorf("%w: %w", ErrTeamRosterWriteFailed, err)
		}
	}
	return nil
}

func (s *teamService) RemoveMember(ctx context.Context, teamID, playerID int) error {
	team, err := s.getTeam(ctx, teamID)
	if err != nil {
		return err
	}
	if team.CaptainID != nil && *team.CaptainID == playerID {
		return ErrCannotRemoveCaptain
	}
	if err := s.rosterRepo.RemoveMember(ctx, teamID, playerID); err != nil {
		if errors.Is(err, repositories.ErrRosterMemberNotFound) {
			return ErrNotTeamMember
		}
		return fmt.Errorf("%w: %w", ErrTeamRosterWriteFailed, err)
	}
	return nil
}
