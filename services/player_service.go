package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/Dosada05/tournament-manager/models"
	"github.com/Dosada05/tournament-manager/repositories"
)

var (
	ErrPlayerNameRequired     = errors.New("player first and last name are required")
	ErrPlayerInvalidEmail     = errors.New("player email is not a valid address")
	ErrPlayerEmailConflict    = errors.New("email address is already in use")
	ErrPlayerNicknameConflict = errors.New("nickname is already in use")
	ErrPlayerInUse            = errors.New("player cannot be deleted while registered in a tournament or captaining a team")
	ErrPlayerCreationFailed   = errors.New("failed to create player")
	ErrPlayerUpdateFailed     = errors.New("failed to update player")
)

type PlayerService interface {
	CreatePlayer(ctx context.Context, input CreatePlayerInput) (*models.Player, error)
	GetPlayerByID(ctx context.Context, id int) (*models.Player, error)
	ListPlayers(ctx context.Context, filter repositories.ListPlayersFilter) ([]models.Player, error)
	UpdatePlayer(ctx context.Context, id int, input UpdatePlayerInput) (*models.Player, error)
	DeletePlayer(ctx context.Context, id int) error
}

type CreatePlayerInput struct {
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	Nickname  *string `json:"nickname,omitempty"`
	Email     *string `json:"email,omitempty"`
}

type UpdatePlayerInput struct {
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
	Nickname  *string `json:"nickname,omitempty"`
	Email     *string `json:"email,omitempty"`
}

type playerService struct {
	playerRepo repositories.PlayerRepository
}

func NewPlayerService(playerRepo repositories.PlayerRepository) PlayerService {
	return &playerService{playerRepo: playerRepo}
}

func normalizeEmail(email *string) (*string, error) {
	email = trimmedPtr(email)
	if email == nil {
		return nil, nil
	}
	if _, err := mail.ParseAddress(*email); err != nil {
		return nil, ErrPlayerInvalidEmail
	}
	lower := strings.ToLower(*email)
	return &lower, nil
}

func mapPlayerWriteError(err error, base error, id int) error {
	switch {
	case errors.Is(err, repositories.ErrPlayerNotFound):
		return ErrPlayerNotFound
	case errors.Is(err, repositories.ErrPlayerEmailConflict):
		return ErrPlayerEmailConflict
	case errors.Is(err, repositories.ErrPlayerNicknameConflict):
		return ErrPlayerNicknameConflict
	default:
		return fmt.Errorf("%w (id: %d): %w", base, id, err)
	}
}

func (s *playerService) CreatePlayer(ctx context.Context, input CreatePlayerInput) (*models.Player, error) {
	first := strings.TrimSpace(input.FirstName)
	last := strings.TrimSpace(input.LastName)
	if first == "" || last == "" {
		return nil, ErrPlayerNameRequired
	}
	email, err := normalizeEmail(input.Email)
	if err != nil {
		return nil, err
	}

	player := &models.Player{
		FirstName: first,
		LastName:  last,
		Nickname:  trimmedPtr(input.Nickname),
		Email:     email,
	}
	if err := s.playerRepo.Create(ctx, player); err != nil {
		return nil, mapPlayerWriteError(err, ErrPlayerCreationFailed, 0)
	}
	return player, nil
}

func (s *playerService) GetPlayerByID(ctx context.Context, id int) (*models.Player, error) {
	player, err := s.playerRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrPlayerNotFound) {
			return nil, ErrPlayerNotFound
		}
		return nil, fmt.Errorf("failed to get player by id %d: %w", id, err)
	}
	return player, nil
}

func (s *playerService) ListPlayers(ctx context.Context, filter repositories.ListPlayersFilter) ([]models.Player, error) {
	filter.Search = strings.TrimSpace(filter.Search)
	players, err := s.playerRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list players: %w", err)
	}
	if players == nil {
		return []models.Player{}, nil
	}
	return players, nil
}

func (s *playerService) UpdatePlayer(ctx context.Context, id int, input UpdatePlayerInput) (*models.Player, error) {
	player, err := s.GetPlayerByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.FirstName != nil {
		player.FirstName = strings.TrimSpace(*input.FirstName)
	}
	if input.LastName != nil {
		player.LastName = strings.TrimSpace(*input.LastName)
	}
	if player.FirstName == "" || player.LastName == "" {
		return nil, ErrPlayerNameRequired
	}
	// Пустая строка очищает необязательное поле.
	if input.Nickname != nil {
		player.Nickname = trimmedPtr(input.Nickname)
	}
	if input.Email != nil {
		email, err := normalizeEmail(input.Email)
		if err != nil {
			return nil, err
		}
		player.Email = email
	}

	if err := s.playerRepo.Update(ctx, player); err != nil {
		return nil, mapPlayerWriteError(err, ErrPlayerUpdateFailed, id)
	}
	return player, nil
}

func (s *playerService) DeletePlayer(ctx context.Context, id int) error {
	err := s.playerRepo.Delete(ctx, id)
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrPlayerNotFound):
			return ErrPlayerNotFound
		case errors.Is(err, repositories.ErrPlayerInUse):
			return ErrPlayerInUse
		default:
			return fmt.Errorf("failed to delete player %d: %w", id, err)
		}
	}
	return nil
}
