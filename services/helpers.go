package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Dosada05/tournament-manager/brackets"
	"github.com/Dosada05/tournament-manager/models"
	"github.com/Dosada05/tournament-manager/repositories"
)

const (
	RoleOrganizer = "organizer"
	RoleAdmin     = "admin"
)

// Actor is the authenticated caller of a mutating operation.
type Actor struct {
	UserID int
	Role   string
}

// SystemActor is used by background jobs such as the status scheduler.
var SystemActor = Actor{Role: RoleAdmin}

func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

// canManageTournament: администратор или организатор турнира.
func canManageTournament(actor Actor, t *models.Tournament) bool {
	if actor.IsAdmin() {
		return true
	}
	return actor.Role == RoleOrganizer && actor.UserID != 0 && actor.UserID == t.OrganizerID
}

// Broadcaster рассылает обновления подписчикам турнира (реализуется brackets.Hub).
type Broadcaster interface {
	BroadcastToRoom(roomID string, message interface{})
}

func broadcast(b Broadcaster, msgType string, tournamentID int, payload interface{}) {
	if b == nil {
		return
	}
	b.BroadcastToRoom(brackets.TournamentRoom(tournamentID), brackets.NewMessage(msgType, tournamentID, payload))
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func trimmedPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func validateTournamentDates(reg, start, end time.Time) error {
	if reg.IsZero() || start.IsZero() || end.IsZero() {
		return ErrTournamentDatesRequired
	}
	if reg.After(start) {
		return fmt.Errorf("%w: registration date (%s) cannot be after start date (%s)", ErrTournamentInvalidRegDate, reg.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	if !start.Before(end) {
		return fmt.Errorf("%w: start date (%s) must be before end date (%s)", ErrTournamentInvalidDateRange, start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return nil
}

func isValidStatusTransition(current, next models.TournamentStatus) bool {
	if current == next {
		return true
	}
	allowedTransitions := map[models.TournamentStatus][]models.TournamentStatus{
		models.StatusSoon:         {models.StatusRegistration, models.StatusCanceled},
		models.StatusRegistration: {models.StatusActive, models.StatusCanceled},
		models.StatusActive:       {models.StatusCompleted, models.StatusCanceled},
		models.StatusCompleted:    {},
		models.StatusCanceled:     {},
	}
	for _, allowedNextStatus := range allowedTransitions[current] {
		if next == allowedNextStatus {
			return true
		}
	}
	return false
}

func participantsToValues(slice []*models.Participant) []models.Participant {
	if slice == nil {
		return []models.Participant{}
	}
	result := make([]models.Participant, 0, len(slice))
	for _, ptr := range slice {
		if ptr != nil {
			result = append(result, *ptr)
		}
	}
	return result
}

func matchesToValues(slice []*models.Match) []models.Match {
	if slice == nil {
		return []models.Match{}
	}
	result := make([]models.Match, 0, len(slice))
	for _, ptr := range slice {
		if ptr != nil {
			result = append(result, *ptr)
		}
	}
	return result
}

func intPtr(v int) *int { return &v }

// loadTournamentDetails loads the tournament with its sport (scoring rules)
// and format (bracket settings).
func loadTournamentDetails(
	ctx context.Context,
	tournamentRepo repositories.TournamentRepository,
	sportRepo repositories.SportRepository,
	formatRepo repositories.FormatRepository,
	tournamentID int,
) (*models.Tournament, error) {
	tournament, err := tournamentRepo.GetByID(ctx, tournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to get tournament %d: %w", tournamentID, err)
	}
	if err := populateSportAndFormat(ctx, tournament, sportRepo, formatRepo); err != nil {
		return nil, err
	}
	return tournament, nil
}

func populateSportAndFormat(ctx context.Context, tournament *models.Tournament, sportRepo repositories.SportRepository, formatRepo repositories.FormatRepository) error {
	if tournament.Sport == nil {
		sport, err := sportRepo.GetByID(ctx, tournament.SportID)
		if err != nil {
			if errors.Is(err, repositories.ErrSportNotFound) {
				return ErrSportNotFound
			}
			return fmt.Errorf("failed to load sport %d of tournament %d: %w", tournament.SportID, tournament.ID, err)
		}
		tournament.Sport = sport
	}
	if tournament.Format == nil {
		format, err := formatRepo.GetByID(ctx, tournament.FormatID)
		if err != nil {
			if errors.Is(err, repositories.ErrFormatNotFound) {
				return ErrFormatNotFound
			}
			return fmt.Errorf("failed to load format %d of tournament %d: %w", tournament.FormatID, tournament.ID, err)
		}
		tournament.Format = format
	}
	return nil
}
