package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Dosada05/tournament-manager/metrics"
	"github.com/Dosada05/tournament-manager/models"
	"github.com/Dosada05/tournament-manager/repositories"
)

var (
	ErrTournamentCreationFailed   = errors.New("failed to create tournament")
	ErrTournamentUpdateFailed     = errors.New("failed to update tournament")
	ErrTournamentDeleteFailed     = errors.New("failed to delete tournament")
	ErrTournamentDeleteNotAllowed = errors.New("tournament can only be deleted before it starts or after it was canceled")
	ErrTournamentInUse            = errors.New("tournament still has participants or matches")
	ErrTournamentFinalized        = errors.New("completed or canceled tournaments cannot be changed")
	ErrTournamentSetupLocked      = errors.New("sport and format cannot change once the tournament is active")
	ErrCapacityBelowRegistrations = errors.New("max participants cannot be lower than the number of registrations")
	ErrTournamentHasUnfinished    = errors.New("tournament still has unfinished matches")
	ErrKnockoutNotPromoted        = errors.New("group stage finished but knockout phase not created yet")
	ErrTournamentAutoUpdateFailed = errors.New("failed to auto-update tournament statuses")
)

type TournamentService interface {
	Create(ctx context.Context, actor Actor, input CreateTournamentInput) (*models.Tournament, error)
	GetByID(ctx context.Context, id int) (*models.Tournament, error)
	List(ctx context.Context, filter ListTournamentsFilter) ([]models.Tournament, error)
	Update(ctx context.Context, actor Actor, id int, input UpdateTournamentInput) (*models.Tournament, error)
	UpdateStatus(ctx context.Context, actor Actor, id int, status models.TournamentStatus) (*models.Tournament, error)
	Delete(ctx context.Context, actor Actor, id int) error
	// AutoUpdateStatusesByDates moves tournaments along their lifecycle when
	// their dates pass. It keeps going after a failed tournament and returns
	// the joined errors.
	AutoUpdateStatusesByDates(ctx context.Context, now time.Time) error
}

type CreateTournamentInput struct {
	Name            string    `json:"name"`
	Description     *string   `json:"description,omitempty"`
	SportID         int       `json:"sport_id"`
	FormatID        int       `json:"format_id"`
	RegDate         time.Time `json:"reg_date"`
	StartDate       time.Time `json:"start_date"`
	EndDate         time.Time `json:"end_date"`
	Location        *string   `json:"location,omitempty"`
	MaxParticipants int       `json:"max_participants"`
}

type UpdateTournamentInput struct {
	Name            *string    `json:"name,omitempty"`
	Description     *string    `json:"description,omitempty"`
	SportID         *int       `json:"sport_id,omitempty"`
	FormatID        *int       `json:"format_id,omitempty"`
	RegDate         *time.Time `json:"reg_date,omitempty"`
	StartDate       *time.Time `json:"start_date,omitempty"`
	EndDate         *time.Time `json:"end_date,omitempty"`
	Location        *string    `json:"location,omitempty"`
	MaxParticipants *int       `json:"max_participants,omitempty"`
}

type ListTournamentsFilter struct {
	SportID     *int
	FormatID    *int
	OrganizerID *int
	Status      *models.TournamentStatus
	Limit       int
	Offset      int
}

type tournamentService struct {
	tournamentRepo  repositories.TournamentRepository
	sportRepo       repositories.SportRepository
	formatRepo      repositories.FormatRepository
	participantRepo repositories.ParticipantRepository
	matchRepo       repositories.MatchRepository
	bracketSvc      BracketService
	tx              Transactor
	logger          *slog.Logger
}

func NewTournamentService(
	tournamentRepo repositories.TournamentRepository,
	sportRepo repositories.SportRepository,
	formatRepo repositories.FormatRepository,
	participantRepo repositories.ParticipantRepository,
	matchRepo repositories.MatchRepository,
	bracketSvc BracketService,
	tx Transactor,
	logger *slog.Logger,
) TournamentService {
	return &tournamentService{
		tournamentRepo:  tournamentRepo,
		sportRepo:       sportRepo,
		formatRepo:      formatRepo,
		participantRepo: participantRepo,
		matchRepo:       matchRepo,
		bracketSvc:      bracketSvc,
		tx:              tx,
		logger:          logger,
	}
}

func (s *tournamentService) Create(ctx context.Context, actor Actor, input CreateTournamentInput) (*models.Tournament, error) {
	if actor.Role != RoleOrganizer && !actor.IsAdmin() {
		return nil, ErrForbiddenOperation
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrTournamentNameRequired
	}
	if err := validateTournamentDates(input.RegDate, input.StartDate, input.EndDate); err != nil {
		return nil, err
	}
	if input.MaxParticipants < 2 {
		return nil, ErrTournamentInvalidCapacity
	}
	if err := s.checkSportAndFormat(ctx, input.SportID, input.FormatID); err != nil {
		return nil, err
	}

	tournament := &models.Tournament{
		Name:            name,
		Description:     trimmedPtr(input.Description),
		SportID:         input.SportID,
		FormatID:        input.FormatID,
		OrganizerID:     actor.UserID,
		RegDate:         input.RegDate,
		StartDate:       input.StartDate,
		EndDate:         input.EndDate,
		Location:        trimmedPtr(input.Location),
		Status:          models.StatusSoon,
		MaxParticipants: input.MaxParticipants,
	}
	if err := s.tournamentRepo.Create(ctx, tournament); err != nil {
		return nil, mapTournamentWriteError(err, ErrTournamentCreationFailed)
	}

	s.logger.InfoContext(ctx, "Tournament created",
		slog.Int("tournament_id", tournament.ID),
		slog.Int("organizer_id", tournament.OrganizerID))
	return tournament, nil
}

func (s *tournamentService) checkSportAndFormat(ctx context.Context, sportID, formatID int) error {
	if _, err := s.sportRepo.GetByID(ctx, sportID); err != nil {
		if errors.Is(err, repositories.ErrSportNotFound) {
			return ErrSportNotFound
		}
		return fmt.Errorf("failed to check sport %d: %w", sportID, err)
	}
	if _, err := s.formatRepo.GetByID(ctx, formatID); err != nil {
		if errors.Is(err, repositories.ErrFormatNotFound) {
			return ErrFormatNotFound
		}
		return fmt.Errorf("failed to check format %d: %w", formatID, err)
	}
	return nil
}

func mapTournamentWriteError(err error, fallback error) error {
	switch {
	case errors.Is(err, repositories.ErrTournamentNotFound):
		return ErrTournamentNotFound
	case errors.Is(err, repositories.ErrTournamentNameConflict):
		return ErrTournamentNameConflict
	case errors.Is(err, repositories.ErrTournamentInvalidSport):
		return ErrSportNotFound
	case errors.Is(err, repositories.ErrTournamentInvalidFormat):
		return ErrFormatNotFound
	case errors.Is(err, repositories.ErrTournamentInUse):
		return ErrTournamentInUse
	}
	return fmt.Errorf("%w: %w", fallback, err)
}

func (s *tournamentService) GetByID(ctx context.Context, id int) (*models.Tournament, error) {
	return loadTournamentDetails(ctx, s.tournamentRepo, s.sportRepo, s.formatRepo, id)
}

func (s *tournamentService) List(ctx context.Context, filter ListTournamentsFilter) ([]models.Tournament, error) {
	if filter.Status != nil && !filter.Status.IsValid() {
		return nil, ErrTournamentInvalidStatus
	}
	tournaments, err := s.tournamentRepo.List(ctx, repositories.ListTournamentsFilter{
		SportID:     filter.SportID,
		FormatID:    filter.FormatID,
		OrganizerID: filter.OrganizerID,
		Status:      filter.Status,
		Limit:       filter.Limit,
		Offset:      filter.Offset,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list tournaments: %w", err)
	}
	if tournaments == nil {
		return []models.Tournament{}, nil
	}
	return tournaments, nil
}

// getManaged загружает турнир и проверяет права actor на него.
func (s *tournamentService) getManaged(ctx context.Context, actor Actor, id int) (*models.Tournament, error) {
	tournament, err := s.tournamentRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to get tournament %d: %w", id, err)
	}
	if !canManageTournament(actor, tournament) {
		return nil, ErrForbiddenOperation
	}
	return tournament, nil
}

func (s *tournamentService) Update(ctx context.Context, actor Actor, id int, input UpdateTournamentInput) (*models.Tournament, error) {
	tournament, err := s.getManaged(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if tournament.Status == models.StatusCompleted || tournament.Status == models.StatusCanceled {
		return nil, ErrTournamentFinalized
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, ErrTournamentNameRequired
		}
		tournament.Name = name
	}
	if input.Description != nil {
		tournament.Description = trimmedPtr(input.Description)
	}
	if input.Location != nil {
		tournament.Location = trimmedPtr(input.Location)
	}

	setupChanged := (input.SportID != nil && *input.SportID != tournament.SportID) ||
		(input.FormatID != nil && *input.FormatID != tournament.FormatID)
	if setupChanged {
		if tournament.Status != models.StatusSoon && tournament.Status != models.StatusRegistration {
			return nil, ErrTournamentSetupLocked
		}
		if input.SportID != nil {
			tournament.SportID = *input.SportID
		}
		if input.FormatID != nil {
			tournament.FormatID = *input.FormatID
		}
		if err := s.checkSportAndFormat(ctx, tournament.SportID, tournament.FormatID); err != nil {
			return nil, err
		}
	}

	if input.RegDate != nil {
		tournament.RegDate = *input.RegDate
	}
	if input.StartDate != nil {
		tournament.StartDate = *input.StartDate
	}
	if input.EndDate != nil {
		tournament.EndDate = *input.EndDate
	}
	if err := validateTournamentDates(tournament.RegDate, tournament.StartDate, tournament.EndDate); err != nil {
		return nil, err
	}

	if input.MaxParticipants != nil {
		if *input.MaxParticipants < 2 {
			return nil, ErrTournamentInvalidCapacity
		}
		registered, err := s.participantRepo.CountActive(ctx, nil, id)
		if err != nil {
			return nil, fmt.Errorf("%w (id: %d): %w", ErrTournamentUpdateFailed, id, err)
		}
		if *input.MaxParticipants < registered {
			return nil, fmt.Errorf("%w: %d registered", ErrCapacityBelowRegistrations, registered)
		}
		tournament.MaxParticipants = *input.MaxParticipants
	}

	if err := s.tournamentRepo.Update(ctx, tournament); err != nil {
		return nil, mapTournamentWriteError(err, ErrTournamentUpdateFailed)
	}
	return tournament, nil
}

func (s *tournamentService) UpdateStatus(ctx context.Context, actor Actor, id int, status models.TournamentStatus) (*models.Tournament, error) {
	if !status.IsValid() {
		return nil, ErrTournamentInvalidStatus
	}
	tournament, err := s.getManaged(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if err := s.changeStatus(ctx, actor, tournament, status); err != nil {
		return nil, err
	}
	return s.GetByID(ctx, id)
}

// changeStatus performs one lifecycle step. Going active builds the bracket
// first so a tournament is never active without matches.
func (s *tournamentService) changeStatus(ctx context.Context, actor Actor, tournament *models.Tournament, next models.TournamentStatus) error {
	current := tournament.Status
	if current == next {
		return nil
	}
	if !isValidStatusTransition(current, next) {
		return fmt.Errorf("%w: from '%s' to '%s'", ErrTournamentInvalidStatusTransition, current, next)
	}

	switch next {
	case models.StatusActive:
		n, err := s.matchRepo.CountByTournament(ctx, nil, tournament.ID, nil)
		if err != nil {
			return fmt.Errorf("%w (id: %d): %w", ErrTournamentUpdateFailed, tournament.ID, err)
		}
		if n == 0 {
			if _, err := s.bracketSvc.GenerateBracket(ctx, actor, tournament.ID); err != nil {
				return err
			}
		}
	case models.StatusCompleted:
		left, err := s.matchRepo.CountUnfinished(ctx, nil, tournament.ID, nil)
		if err != nil {
			return fmt.Errorf("%w (id: %d): %w", ErrTournamentUpdateFailed, tournament.ID, err)
		}
		if left > 0 {
			return fmt.Errorf("%w: %d left", ErrTournamentHasUnfinished, left)
		}
		if err := s.checkKnockoutPromoted(ctx, tournament); err != nil {
			return err
		}
	}

	if err := s.tournamentRepo.UpdateStatus(ctx, nil, tournament.ID, next); err != nil {
		return mapTournamentWriteError(err, ErrTournamentUpdateFailed)
	}
	tournament.Status = next
	metrics.RecordStatusTransition(string(current), string(next))
	s.logger.InfoContext(ctx, "Tournament status changed",
		slog.Int("tournament_id", tournament.ID),
		slog.String("from", string(current)),
		slog.String("to", string(next)))
	return nil
}

// checkKnockoutPromoted не даёт завершить group + knockout турнир, пока
// плей-офф не сформирован.
func (s *tournamentService) checkKnockoutPromoted(ctx context.Context, tournament *models.Tournament) error {
	format := tournament.Format
	if format == nil {
		f, err := s.formatRepo.GetByID(ctx, tournament.FormatID)
		if err != nil {
			return fmt.Errorf("%w (id: %d): %w", ErrTournamentUpdateFailed, tournament.ID, err)
		}
		format = f
	}
	if format.BracketType != models.BracketGroupKnockout {
		return nil
	}
	phase := models.PhaseKnockout
	n, err := s.matchRepo.CountByTournament(ctx, nil, tournament.ID, &phase)
	if err != nil {
		return fmt.Errorf("%w (id: %d): %w", ErrTournamentUpdateFailed, tournament.ID, err)
	}
	if n == 0 {
		return ErrKnockoutNotPromoted
	}
	return nil
}

func (s *tournamentService) Delete(ctx context.Context, actor Actor, id int) error {
	tournament, err := s.getManaged(ctx, actor, id)
	if err != nil {
		return err
	}
	switch tournament.Status {
	case models.StatusSoon, models.StatusRegistration, models.StatusCanceled:
	default:
		return ErrTournamentDeleteNotAllowed
	}
	if err := s.tournamentRepo.Delete(ctx, id); err != nil {
		return mapTournamentWriteError(err, ErrTournamentDeleteFailed)
	}
	s.logger.InfoContext(ctx, "Tournament deleted", slog.Int("tournament_id", id))
	return nil
}

func (s *tournamentService) AutoUpdateStatusesByDates(ctx context.Context, now time.Time) error {
	due, err := s.tournamentRepo.GetTournamentsForAutoStatusUpdate(ctx, nil, now)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTournamentAutoUpdateFailed, err)
	}
	if len(due) == 0 {
		return nil
	}
	s.logger.DebugContext(ctx, "Tournaments due for status update", slog.Int("count", len(due)))

	var errs []error
	for _, t := range due {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		if err := s.autoAdvance(ctx, t); err != nil {
			s.logger.ErrorContext(ctx, "Automatic status update failed",
				slog.Int("tournament_id", t.ID),
				slog.String("status", string(t.Status)),
				slog.Any("error", err))
			errs = append(errs, fmt.Errorf("tournament %d: %w", t.ID, err))
		}
	}
	return errors.Join(errs...)
}

func (s *tournamentService) autoAdvance(ctx context.Context, t *models.Tournament) error {
	switch t.Status {
	case models.StatusSoon:
		return s.changeStatus(ctx, SystemActor, t, models.StatusRegistration)

	case models.StatusRegistration:
		approved := models.ParticipantApproved
		participants, err := s.participantRepo.ListByTournament(ctx, nil, t.ID, &approved, false)
		if err != nil {
			return err
		}
		// Турнир без соперников не может начаться.
		if len(participants) < 2 {
			s.logger.WarnContext(ctx, "Canceling tournament without enough participants",
				slog.Int("tournament_id", t.ID), slog.Int("approved", len(participants)))
			return s.changeStatus(ctx, SystemActor, t, models.StatusCanceled)
		}
		return s.changeStatus(ctx, SystemActor, t, models.StatusActive)

	case models.StatusActive:
		err := s.changeStatus(ctx, SystemActor, t, models.StatusCompleted)
		if errors.Is(err, ErrKnockoutNotPromoted) {
			s.logger.InfoContext(ctx, "Waiting for knockout promotion", slog.Int("tournament_id", t.ID))
			return nil
		}
		return err
	}
	return nil
}
