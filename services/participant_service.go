package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/Dosada05/tournament-manager/models"
	"github.com/Dosada05/tournament-manager/repositories"
)

var (
	ErrParticipantTypeMismatch    = errors.New("participant type does not match the tournament format")
	ErrTeamSportMismatch          = errors.New("team plays a different sport than the tournament")
	ErrTeamRosterTooSmall         = errors.New("team roster is too small for this sport")
	ErrParticipantInvalidStatus   = errors.New("participant status does not allow this operation")
	ErrParticipantsLocked         = errors.New("participants cannot change after the bracket has been generated")
	ErrInvalidSeed                = errors.New("seed must be a positive number")
	ErrParticipantWrongTournament = errors.New("participant does not belong to this tournament")
	ErrRegistrationFailed         = errors.New("failed to register participant")
)

type ParticipantService interface {
	RegisterPlayer(ctx context.Context, actor Actor, tournamentID, playerID int) (*models.Participant, error)
	RegisterTeam(ctx context.Context, actor Actor, tournamentID, teamID int) (*models.Participant, error)
	Approve(ctx context.Context, actor Actor, tournamentID, participantID int) (*models.Participant, error)
	Reject(ctx context.Context, actor Actor, tournamentID, participantID int) (*models.Participant, error)
	Withdraw(ctx context.Context, actor Actor, tournamentID, participantID int) (*models.Participant, error)
	// SetSeed assigns (or clears with nil) the seed used by bracket generation.
	SetSeed(ctx context.Context, actor Actor, tournamentID, participantID int, seed *int) (*models.Participant, error)
	List(ctx context.Context, tournamentID int, status *models.ParticipantStatus) ([]models.Participant, error)
}

type participantService struct {
	participantRepo repositories.ParticipantRepository
	tournamentRepo  repositories.TournamentRepository
	sportRepo       repositories.SportRepository
	formatRepo      repositories.FormatRepository
	playerRepo      repositories.PlayerRepository
	teamRepo        repositories.TeamRepository
	rosterRepo      repositories.TeamRosterRepository
	matchRepo       repositories.MatchRepository
	tx              Transactor
	logger          *slog.Logger
}

func NewParticipantService(
	participantRepo repositories.ParticipantRepository,
	tournamentRepo repositories.TournamentRepository,
	sportRepo repositories.SportRepository,
	formatRepo repositories.FormatRepository,
	playerRepo repositories.PlayerRepository,
	teamRepo repositories.TeamRepository,
	rosterRepo repositories.TeamRosterRepository,
	matchRepo repositories.MatchRepository,
	tx Transactor,
	logger *slog.Logger,
) ParticipantService {
	return &participantService{
		participantRepo: participantRepo,
		tournamentRepo:  tournamentRepo,
		sportRepo:       sportRepo,
		formatRepo:      formatRepo,
		playerRepo:      playerRepo,
		teamRepo:        teamRepo,
		rosterRepo:      rosterRepo,
		matchRepo:       matchRepo,
		tx:              tx,
		logger:          logger,
	}
}

// openTournament returns the tournament if actor manages it and registration
// is open for participants of type want. Capacity is checked again under the
// row lock in create.
func (s *participantService) openTournament(ctx context.Context, actor Actor, tournamentID int, want models.FormatParticipantType) (*models.Tournament, error) {
	tournament, err := loadTournamentDetails(ctx, s.tournamentRepo, s.sportRepo, s.formatRepo, tournamentID)
	if err != nil {
		return nil, err
	}
	if !canManageTournament(actor, tournament) {
		return nil, ErrForbiddenOperation
	}
	if tournament.Status != models.StatusRegistration {
		return nil, ErrRegistrationNotOpen
	}
	if tournament.Format.ParticipantType != want {
		return nil, fmt.Errorf("%w: format expects '%s'", ErrParticipantTypeMismatch, tournament.Format.ParticipantType)
	}
	if err := s.ensureBracketNotGenerated(ctx, nil, tournamentID); err != nil {
		return nil, err
	}

	taken, err := s.participantRepo.CountActive(ctx, nil, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRegistrationFailed, err)
	}
	if taken >= tournament.MaxParticipants {
		return nil, ErrTournamentFull
	}
	return tournament, nil
}

// reserveSlot locks the tournament row and checks again, on the locked row,
// that its status is one of open, the bracket is not generated and a place
// is free. closed is returned for any other status.
func (s *participantService) reserveSlot(ctx context.Context, tx repositories.SQLExecutor, tournamentID int, closed error, open ...models.TournamentStatus) error {
	locked, err := s.tournamentRepo.GetForUpdate(ctx, tx, tournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return ErrTournamentNotFound
		}
		return fmt.Errorf("failed to lock tournament %d: %w", tournamentID, err)
	}
	if !slices.Contains(open, locked.Status) {
		return closed
	}
	if err := s.ensureBracketNotGenerated(ctx, tx, tournamentID); err != nil {
		return err
	}
	taken, err := s.participantRepo.CountActive(ctx, tx, tournamentID)
	if err != nil {
		return fmt.Errorf("failed to count participants: %w", err)
	}
	if taken >= locked.MaxParticipants {
		return ErrTournamentFull
	}
	return nil
}

func (s *participantService) ensureBracketNotGenerated(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) error {
	n, err := s.matchRepo.CountByTournament(ctx, exec, tournamentID, nil)
	if err != nil {
		return fmt.Errorf("failed to count matches of tournament %d: %w", tournamentID, err)
	}
	if n > 0 {
		return ErrParticipantsLocked
	}
	return nil
}

func (s *participantService) RegisterPlayer(ctx context.Context, actor Actor, tournamentID, playerID int) (*models.Participant, error) {
	if _, err := s.openTournament(ctx, actor, tournamentID, models.FormatParticipantSolo); err != nil {
		return nil, err
	}
	player, err := s.playerRepo.GetByID(ctx, playerID)
	if err != nil {
		if errors.Is(err, repositories.ErrPlayerNotFound) {
			return nil, ErrPlayerNotFound
		}
		return nil, fmt.Errorf("%w: %w", ErrRegistrationFailed, err)
	}

	p := &models.Participant{TournamentID: tournamentID, PlayerID: &player.ID, Status: models.ParticipantPending}
	if err := s.create(ctx, p); err != nil {
		return nil, err
	}
	p.Player = player
	return p, nil
}

func (s *participantService) RegisterTeam(ctx context.Context, actor Actor, tournamentID, teamID int) (*models.Participant, error) {
	tournament, err := s.openTournament(ctx, actor, tournamentID, models.FormatParticipantTeam)
	if err != nil {
		return nil, err
	}
	team, err := s.teamRepo.GetByID(ctx, teamID)
	if err != nil {
		if errors.Is(err, repositories.ErrTeamNotFound) {
			return nil, ErrTeamNotFound
		}
		return nil, fmt.Errorf("%w: %w", ErrRegistrationFailed, err)
	}
	if team.SportID != tournament.SportID {
		return nil, ErrTeamSportMismatch
	}

	members, err := s.rosterRepo.CountMembers(ctx, teamID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRegistrationFailed, err)
	}
	required := max(1, tournament.Sport.MinRosterSize)
	if members < required {
		return nil, fmt.Errorf("%w: %d of %d players", ErrTeamRosterTooSmall, members, required)
	}

	p := &models.Participant{TournamentID: tournamentID, TeamID: &team.ID, Status: models.ParticipantPending}
	if err := s.create(ctx, p); err != nil {
		return nil, err
	}
	p.Team = team
	return p, nil
}

func (s *participantService) create(ctx context.Context, p *models.Participant) error {
	err := s.tx.WithinTx(ctx, func(tx repositories.SQLExecutor) error {
		if err := s.reserveSlot(ctx, tx, p.TournamentID, ErrRegistrationNotOpen, models.StatusRegistration); err != nil {
			return err
		}
		return s.participantRepo.Create(ctx, tx, p)
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrTournamentFull),
			errors.Is(err, ErrRegistrationNotOpen),
			errors.Is(err, ErrParticipantsLocked),
			errors.Is(err, ErrTournamentNotFound):
			return err
		case errors.Is(err, repositories.ErrParticipantConflict):
			return ErrRegistrationConflict
		case errors.Is(err, repositories.ErrParticipantPlayerInvalid):
			return ErrPlayerNotFound
		case errors.Is(err, repositories.ErrParticipantTeamInvalid):
			return ErrTeamNotFound
		case errors.Is(err, repositories.ErrParticipantTournamentInvalid):
			return ErrTournamentNotFound
		default:
			return fmt.Errorf("%w: %w", ErrRegistrationFailed, err)
		}
	}
	s.logger.InfoContext(ctx, "Participant registered",
		slog.Int("tournament_id", p.TournamentID),
		slog.Int("participant_id", p.ID))
	return nil
}

// moderate loads a participant of a managed tournament whose bracket has not
// been generated yet.
func (s *participantService) moderate(ctx context.Context, actor Actor, tournamentID, participantID int) (*models.Tournament, *models.Participant, error) {
	tournament, err := s.tournamentRepo.GetByID(ctx, tournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, nil, ErrTournamentNotFound
		}
		return nil, nil, fmt.Errorf("failed to get tournament %d: %w", tournamentID, err)
	}
	if !canManageTournament(actor, tournament) {
		return nil, nil, ErrForbiddenOperation
	}
	p, err := s.participantRepo.FindByID(ctx, participantID)
	if err != nil {
		if errors.Is(err, repositories.ErrParticipantNotFound) {
			return nil, nil, ErrParticipantNotFound
		}
		return nil, nil, fmt.Errorf("failed to get participant %d: %w", participantID, err)
	}
	if p.TournamentID != tournamentID {
		return nil, nil, ErrParticipantWrongTournament
	}
	if tournament.Status != models.StatusSoon && tournament.Status != models.StatusRegistration {
		return nil, nil, ErrParticipantsLocked
	}
	if err := s.ensureBracketNotGenerated(ctx, nil, tournamentID); err != nil {
		return nil, nil, err
	}
	return tournament, p, nil
}

func (s *participantService) setStatus(ctx context.Context, exec repositories.SQLExecutor, p *models.Participant, status models.ParticipantStatus) error {
	if err := s.participantRepo.UpdateStatus(ctx, exec, p.ID, status); err != nil {
		if errors.Is(err, repositories.ErrParticipantNotFound) {
			return ErrParticipantNotFound
		}
		return fmt.Errorf("failed to update participant %d: %w", p.ID, err)
	}
	s.logger.InfoContext(ctx, "Participant status changed",
		slog.Int("participant_id", p.ID),
		slog.String("from", string(p.Status)),
		slog.String("to", string(status)))
	p.Status = status
	return nil
}

func (s *participantService) Approve(ctx context.Context, actor Actor, tournamentID, participantID int) (*models.Participant, error) {
	_, p, err := s.moderate(ctx, actor, tournamentID, participantID)
	if err != nil {
		return nil, err
	}
	switch p.Status {
	case models.ParticipantApproved:
		return p, nil
	case models.ParticipantPending:
		if err := s.setStatus(ctx, nil, p, models.ParticipantApproved); err != nil {
			return nil, err
		}
		return p, nil
	case models.ParticipantRejected:
	default:
		return nil, ErrParticipantInvalidStatus
	}

	// Отклонённый участник место не занимает, значит нужна проверка вместимости.
	err = s.tx.WithinTx(ctx, func(tx repositories.SQLExecutor) error {
		if err := s.reserveSlot(ctx, tx, tournamentID, ErrParticipantsLocked, models.StatusSoon, models.StatusRegistration); err != nil {
			return err
		}
		return s.setStatus(ctx, tx, p, models.ParticipantApproved)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *participantService) Reject(ctx context.Context, actor Actor, tournamentID, participantID int) (*models.Participant, error) {
	_, p, err := s.moderate(ctx, actor, tournamentID, participantID)
	if err != nil {
		return nil, err
	}
	if p.Status != models.ParticipantPending && p.Status != models.ParticipantApproved {
		return nil, ErrParticipantInvalidStatus
	}
	if err := s.setStatus(ctx, nil, p, models.ParticipantRejected); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *participantService) Withdraw(ctx context.Context, actor Actor, tournamentID, participantID int) (*models.Participant, error) {
	_, p, err := s.moderate(ctx, actor, tournamentID, participantID)
	if err != nil {
		return nil, err
	}
	if p.Status == models.ParticipantWithdrawn || p.Status == models.ParticipantRejected {
		return nil, ErrParticipantInvalidStatus
	}
	if err := s.setStatus(ctx, nil, p, models.ParticipantWithdrawn); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *participantService) SetSeed(ctx context.Context, actor Actor, tournamentID, participantID int, seed *int) (*models.Participant, error) {
	if seed != nil && *seed < 1 {
		return nil, ErrInvalidSeed
	}
	_, p, err := s.moderate(ctx, actor, tournamentID, participantID)
	if err != nil {
		return nil, err
	}
	if err := s.participantRepo.UpdateSeed(ctx, p.ID, seed); err != nil {
		if errors.Is(err, repositories.ErrParticipantNotFound) {
			return nil, ErrParticipantNotFound
		}
		return nil, fmt.Errorf("failed to set seed of participant %d: %w", p.ID, err)
	}
	p.Seed = seed
	return p, nil
}

func (s *participantService) List(ctx context.Context, tournamentID int, status *models.ParticipantStatus) ([]models.Participant, error) {
	if _, err := s.tournamentRepo.GetByID(ctx, tournamentID); err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to get tournament %d: %w", tournamentID, err)
	}
	participants, err := s.participantRepo.ListByTournament(ctx, nil, tournamentID, status, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants of tournament %d: %w", tournamentID, err)
	}
	return participantsToValues(participants), nil
}
