package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Dosada05/tournament-manager/brackets"
	"github.com/Dosada05/tournament-manager/metrics"
	"github.com/Dosada05/tournament-manager/models"
	"github.com/Dosada05/tournament-manager/repositories"
	"github.com/Dosada05/tournament-manager/standings"
)

var (
	ErrBracketAlreadyGenerated     = errors.New("bracket has already been generated for this tournament")
	ErrBracketNotGenerated         = errors.New("bracket has not been generated yet")
	ErrBracketGenerationNotAllowed = errors.New("bracket can only be generated while registration is open or the tournament is active")
	ErrNotEnoughParticipants       = errors.New("not enough approved participants to generate a bracket")
	ErrPromotionNotApplicable      = errors.New("only GroupKnockout tournaments have a knockout promotion")
	ErrGroupStageNotFinished       = errors.New("every group match must be finished before promotion")
	ErrKnockoutAlreadyGenerated    = errors.New("knockout phase has already been generated")
	ErrTournamentNotActive         = errors.New("tournament is not active")
	ErrBracketGenerationFailed     = errors.New("failed to generate bracket")
)

type BracketService interface {
	GenerateBracket(ctx context.Context, actor Actor, tournamentID int) (*BracketView, error)
	// PromoteToKnockout builds the knockout phase of a GroupKnockout
	// tournament from the final group tables.
	PromoteToKnockout(ctx context.Context, actor Actor, tournamentID int) (*BracketView, error)
	GetBracket(ctx context.Context, tournamentID int) (*BracketView, error)
}

// BracketView - матчи турнира, сгруппированные по фазе, группе и раунду.
type BracketView struct {
	TournamentID int            `json:"tournament_id"`
	BracketType  string         `json:"bracket_type"`
	Phases       []PhaseView    `json:"phases"`
	Participants map[int]string `json:"participants"`
}

type PhaseView struct {
	Phase  models.MatchPhase `json:"phase"`
	Groups []GroupView       `json:"groups"`
}

type GroupView struct {
	Group  string      `json:"group,omitempty"`
	Rounds []RoundView `json:"rounds"`
}

type RoundView struct {
	Round   int            `json:"round"`
	Matches []models.Match `json:"matches"`
}

type bracketService struct {
	tournamentRepo  repositories.TournamentRepository
	sportRepo       repositories.SportRepository
	formatRepo      repositories.FormatRepository
	participantRepo repositories.ParticipantRepository
	matchRepo       repositories.MatchRepository
	standingsSvc    StandingsService
	tx              Transactor
	hub             Broadcaster
	logger          *slog.Logger
}

func NewBracketService(
	tournamentRepo repositories.TournamentRepository,
	sportRepo repositories.SportRepository,
	formatRepo repositories.FormatRepository,
	participantRepo repositories.ParticipantRepository,
	matchRepo repositories.MatchRepository,
	standingsSvc StandingsService,
	tx Transactor,
	hub Broadcaster,
	logger *slog.Logger,
) BracketService {
	return &bracketService{
		tournamentRepo:  tournamentRepo,
		sportRepo:       sportRepo,
		formatRepo:      formatRepo,
		participantRepo: participantRepo,
		matchRepo:       matchRepo,
		standingsSvc:    standingsSvc,
		tx:              tx,
		hub:             hub,
		logger:          logger,
	}
}

func (s *bracketService) GenerateBracket(ctx context.Context, actor Actor, tournamentID int) (*BracketView, error) {
	tournament, err := loadTournamentDetails(ctx, s.tournamentRepo, s.sportRepo, s.formatRepo, tournamentID)
	if err != nil {
		return nil, err
	}
	if !canManageTournament(actor, tournament) {
		return nil, ErrForbiddenOperation
	}
	if tournament.Status != models.StatusRegistration && tournament.Status != models.StatusActive {
		return nil, ErrBracketGenerationNotAllowed
	}

	s.logger.InfoContext(ctx, "Starting bracket generation",
		slog.Int("tournament_id", tournament.ID),
		slog.String("format", tournament.Format.Name),
		slog.String("bracket_type", tournament.Format.BracketType))

	settings, err := tournament.Format.GetSettings()
	if err != nil {
		return nil, fmt.Errorf("%w: invalid format settings: %w", ErrBracketGenerationFailed, err)
	}
	generator, err := brackets.NewGenerator(tournament.Format.BracketType)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBracketGenerationFailed, err)
	}

	var generated []*brackets.BracketMatch
	err = s.tx.WithinTx(ctx, func(tx repositories.SQLExecutor) error {
		if _, err := s.tournamentRepo.GetForUpdate(ctx, tx, tournament.ID); err != nil {
			return fmt.Errorf("failed to lock tournament %d: %w", tournament.ID, err)
		}
		existing, err := s.matchRepo.CountByTournament(ctx, tx, tournament.ID, nil)
		if err != nil {
			return err
		}
		if existing > 0 {
			return ErrBracketAlreadyGenerated
		}

		// Состав читается под блокировкой турнира: регистрация ждёт генерацию.
		approved := models.ParticipantApproved
		participants, err := s.participantRepo.ListByTournament(ctx, tx, tournament.ID, &approved, false)
		if err != nil {
			return fmt.Errorf("failed to list approved participants for tournament %d: %w", tournament.ID, err)
		}
		if len(participants) < 2 {
			return fmt.Errorf("%w: minimum 2 required, found %d", ErrNotEnoughParticipants, len(participants))
		}
		brackets.SortBySeed(participants)

		generated, err = generator.GenerateBracket(ctx, brackets.GenerateBracketParams{
			Tournament:   tournament,
			Participants: participants,
			Settings:     settings,
		})
		if err != nil {
			if errors.Is(err, brackets.ErrNotEnoughParticipants) {
				return fmt.Errorf("%w: %w", ErrNotEnoughParticipants, err)
			}
			return err
		}
		return s.persistBracket(ctx, tx, tournament, generated)
	})
	if err != nil {
		if errors.Is(err, ErrBracketAlreadyGenerated) || errors.Is(err, ErrNotEnoughParticipants) {
			return nil, err
		}
		return nil, fmt.Errorf("%w for tournament %d: %w", ErrBracketGenerationFailed, tournament.ID, err)
	}

	metrics.RecordBracketGenerated(generator.GetName())
	s.logger.InfoContext(ctx, "Bracket generated", slog.Int("tournament_id", tournament.ID), slog.Int("generated", len(generated)))

	view, err := s.GetBracket(ctx, tournament.ID)
	if err != nil {
		return nil, err
	}
	broadcast(s.hub, brackets.MessageBracketUpdated, tournament.ID, view)
	return view, nil
}

// persistBracket stores generated matches in two passes: create every real
// match, then link each one to the match its winner moves on to.
func (s *bracketService) persistBracket(ctx context.Context, tx repositories.SQLExecutor, tournament *models.Tournament, generated []*brackets.BracketMatch) error {
	defaultMatchTime := tournament.StartDate
	if now := time.Now(); now.After(defaultMatchTime) {
		defaultMatchTime = now.Add(15 * time.Minute)
	}

	uidToID := make(map[string]int, len(generated))
	for _, bm := range generated {
		if bm.IsBye {
			// Для bye запись в БД не создаётся: генератор уже поставил участника во второй раунд.
			if bm.ByeParticipantID != nil {
				s.logger.DebugContext(ctx, "Participant has a bye",
					slog.Int("participant_id", *bm.ByeParticipantID), slog.String("uid", bm.UID))
			}
			continue
		}
		m := &models.Match{
			TournamentID:    tournament.ID,
			Phase:           bm.Phase,
			Round:           bm.Round,
			OrderInRound:    bm.OrderInRound,
			BracketMatchUID: bm.UID,
			Participant1ID:  bm.Participant1ID,
			Participant2ID:  bm.Participant2ID,
			Status:          models.MatchScheduled,
			ScheduledAt:     defaultMatchTime,
		}
		if bm.Group != "" {
			g := bm.Group
			m.GroupLabel = &g
		}
		if err := s.matchRepo.Create(ctx, tx, m); err != nil {
			return fmt.Errorf("failed to create match %s: %w", bm.UID, err)
		}
		uidToID[bm.UID] = m.ID
	}

	for _, target := range generated {
		if target.IsBye {
			continue
		}
		targetID, ok := uidToID[target.UID]
		if !ok {
			continue
		}
		for i, source := range []*string{target.SourceMatch1UID, target.SourceMatch2UID} {
			if source == nil {
				continue
			}
			sourceID, ok := uidToID[*source]
			if !ok {
				continue
			}
			slot := i + 1
			if err := s.matchRepo.UpdateNextMatchInfo(ctx, tx, sourceID, &targetID, &slot); err != nil {
				return fmt.Errorf("failed to link match %s to %s: %w", *source, target.UID, err)
			}
		}
	}
	return nil
}

func (s *bracketService) PromoteToKnockout(ctx context.Context, actor Actor, tournamentID int) (*BracketView, error) {
	tournament, err := loadTournamentDetails(ctx, s.tournamentRepo, s.sportRepo, s.formatRepo, tournamentID)
	if err != nil {
		return nil, err
	}
	if !canManageTournament(actor, tournament) {
		return nil, ErrForbiddenOperation
	}
	if tournament.Format.BracketType != models.BracketGroupKnockout {
		return nil, ErrPromotionNotApplicable
	}
	if tournament.Status != models.StatusActive {
		return nil, ErrTournamentNotActive
	}
	settings, err := tournament.Format.GetSettings()
	if err != nil {
		return nil, fmt.Errorf("%w: invalid format settings: %w", ErrBracketGenerationFailed, err)
	}

	var qualifiers []brackets.Qualifier
	err = s.tx.WithinTx(ctx, func(tx repositories.SQLExecutor) error {
		locked, err := s.tournamentRepo.GetForUpdate(ctx, tx, tournament.ID)
		if err != nil {
			return fmt.Errorf("failed to lock tournament %d: %w", tournament.ID, err)
		}
		if locked.Status != models.StatusActive {
			return ErrTournamentNotActive
		}

		knockout := models.PhaseKnockout
		n, err := s.matchRepo.CountByTournament(ctx, tx, tournament.ID, &knockout)
		if err != nil {
			return err
		}
		if n > 0 {
			return ErrKnockoutAlreadyGenerated
		}

		group := models.PhaseGroup
		groupMatches, err := s.matchRepo.ListByTournament(ctx, tx, tournament.ID, repositories.ListMatchesFilter{Phase: &group})
		if err != nil {
			return err
		}
		if len(groupMatches) == 0 {
			return ErrBracketNotGenerated
		}
		for _, m := range groupMatches {
			if !m.IsFinished() {
				return fmt.Errorf("%w: match %d (%s) is %s", ErrGroupStageNotFinished, m.ID, m.BracketMatchUID, m.Status)
			}
		}

		approved := models.ParticipantApproved
		participants, err := s.participantRepo.ListByTournament(ctx, tx, tournament.ID, &approved, false)
		if err != nil {
			return fmt.Errorf("failed to list approved participants for tournament %d: %w", tournament.ID, err)
		}
		seeds := make(map[int]*int, len(participants))
		for _, p := range participants {
			seeds[p.ID] = p.Seed
		}

		// Итоговые таблицы групп сохраняются вместе с сеткой плей-офф.
		if _, err := s.standingsSvc.RecomputeWithin(ctx, tx, tournament); err != nil {
			return err
		}

		tables := standings.ComputeGroups(groupEntries(groupMatches, seeds), matchResults(groupMatches), tournament.Sport.ScoringRules)
		qualifiers, err = brackets.QualifiersFromGroups(tables, settings.AdvancePerGroup)
		if err != nil {
			return err
		}
		qualifiers = brackets.SeparateGroups(qualifiers)

		seeded := make([]*models.Participant, 0, len(qualifiers))
		for i, q := range qualifiers {
			seed := i + 1
			seeded = append(seeded, &models.Participant{ID: q.ParticipantID, TournamentID: tournament.ID, Seed: &seed})
		}
		generated, err := brackets.NewSingleEliminationGenerator().GenerateBracket(ctx, brackets.GenerateBracketParams{
			Tournament:   tournament,
			Participants: seeded,
			Settings:     settings,
		})
		if err != nil {
			return err
		}
		return s.persistBracket(ctx, tx, tournament, generated)
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrKnockoutAlreadyGenerated), errors.Is(err, ErrBracketNotGenerated),
			errors.Is(err, ErrGroupStageNotFinished), errors.Is(err, ErrTournamentNotActive):
			return nil, err
		case errors.Is(err, brackets.ErrGroupTooSmall), errors.Is(err, brackets.ErrNotEnoughParticipants):
			return nil, fmt.Errorf("%w: %w", ErrNotEnoughParticipants, err)
		}
		return nil, fmt.Errorf("%w: knockout promotion for tournament %d: %w", ErrBracketGenerationFailed, tournament.ID, err)
	}

	s.logger.InfoContext(ctx, "Knockout phase generated", slog.Int("tournament_id", tournament.ID), slog.Int("qualifiers", len(qualifiers)))
	metrics.RecordBracketGenerated(models.BracketSingleElimination)

	view, err := s.GetBracket(ctx, tournament.ID)
	if err != nil {
		return nil, err
	}
	broadcast(s.hub, brackets.MessageBracketUpdated, tournament.ID, view)
	return view, nil
}

func (s *bracketService) GetBracket(ctx context.Context, tournamentID int) (*BracketView, error) {
	var (
		tournament   *models.Tournament
		matches      []*models.Match
		participants []*models.Participant
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		t, err := loadTournamentDetails(gCtx, s.tournamentRepo, s.sportRepo, s.formatRepo, tournamentID)
		if err != nil {
			return err
		}
		tournament = t
		return nil
	})
	g.Go(func() error {
		list, err := s.matchRepo.ListByTournament(gCtx, nil, tournamentID, repositories.ListMatchesFilter{})
		if err != nil {
			return fmt.Errorf("failed to list matches for tournament %d: %w", tournamentID, err)
		}
		matches = list
		return nil
	})
	g.Go(func() error {
		list, err := s.participantRepo.ListByTournament(gCtx, nil, tournamentID, nil, true)
		if err != nil {
			return fmt.Errorf("failed to list participants for tournament %d: %w", tournamentID, err)
		}
		participants = list
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	view := &BracketView{
		TournamentID: tournamentID,
		BracketType:  tournament.Format.BracketType,
		Phases:       groupMatches(matches),
		Participants: make(map[int]string, len(participants)),
	}
	for _, p := range participants {
		view.Participants[p.ID] = p.DisplayName()
	}
	return view, nil
}

var phaseOrder = map[models.MatchPhase]int{
	models.PhaseLeague:   0,
	models.PhaseGroup:    1,
	models.PhaseKnockout: 2,
}

// groupMatches раскладывает матчи по фазам, группам и раундам в стабильном порядке.
func groupMatches(matches []*models.Match) []PhaseView {
	sorted := matchesToValues(matches)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		switch {
		case a.Phase != b.Phase:
			return phaseOrder[a.Phase] < phaseOrder[b.Phase]
		case a.Group() != b.Group():
			return a.Group() < b.Group()
		case a.Round != b.Round:
			return a.Round < b.Round
		}
		return a.OrderInRound < b.OrderInRound
	})

	phases := []PhaseView{}
	for _, m := range sorted {
		if len(phases) == 0 || phases[len(phases)-1].Phase != m.Phase {
			phases = append(phases, PhaseView{Phase: m.Phase})
		}
		phase := &phases[len(phases)-1]
		if len(phase.Groups) == 0 || phase.Groups[len(phase.Groups)-1].Group != m.Group() {
			phase.Groups = append(phase.Groups, GroupView{Group: m.Group()})
		}
		group := &phase.Groups[len(phase.Groups)-1]
		if len(group.Rounds) == 0 || group.Rounds[len(group.Rounds)-1].Round != m.Round {
			group.Rounds = append(group.Rounds, RoundView{Round: m.Round})
		}
		round := &group.Rounds[len(group.Rounds)-1]
		round.Matches = append(round.Matches, m)
	}
	return phases
}
