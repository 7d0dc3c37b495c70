package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Dosada05/tournament-manager/middleware"
	"github.com/Dosada05/tournament-manager/models"
	"github.com/Dosada05/tournament-manager/services"
)

// Заглушки встраивают интерфейс: невызываемые методы остаются nil.

type stubTournamentService struct {
	services.TournamentService
	create  func(ctx context.Context, actor services.Actor, input services.CreateTournamentInput) (*models.Tournament, error)
	getByID func(ctx context.Context, id int) (*models.Tournament, error)
	list    func(ctx context.Context, filter services.ListTournamentsFilter) ([]models.Tournament, error)
	status  func(ctx context.Context, actor services.Actor, id int, status models.TournamentStatus) (*models.Tournament, error)
}

func (s *stubTournamentService) Create(ctx context.Context, actor services.Actor, input services.CreateTournamentInput) (*models.Tournament, error) {
	return s.create(ctx, actor, input)
}

func (s *stubTournamentService) GetByID(ctx context.Context, id int) (*models.Tournament, error) {
	return s.getByID(ctx, id)
}

func (s *stubTournamentService) List(ctx context.Context, filter services.ListTournamentsFilter) ([]models.Tournament, error) {
	return s.list(ctx, filter)
}

func (s *stubTournamentService) UpdateStatus(ctx context.Context, actor services.Actor, id int, status models.TournamentStatus) (*models.Tournament, error) {
	return s.status(ctx, actor, id, status)
}

type stubMatchService struct {
	services.MatchService
	record   func(ctx context.Context, actor services.Actor, id int, input services.RecordResultInput) (*models.Match, error)
	walkover func(ctx context.Context, actor services.Actor, id int, winner int) (*models.Match, error)
}

func (s *stubMatchService) RecordResult(ctx context.Context, actor services.Actor, id int, input services.RecordResultInput) (*models.Match, error) {
	return s.record(ctx, actor, id, input)
}

func (s *stubMatchService) RecordWalkover(ctx context.Context, actor services.Actor, id int, winner int) (*models.Match, error) {
	return s.walkover(ctx, actor, id, winner)
}

type stubParticipantService struct {
	services.ParticipantService
	registered []string
	seed       *int
}

func (s *stubParticipantService) RegisterPlayer(ctx context.Context, actor services.Actor, tournamentID, playerID int) (*models.Participant, error) {
	s.registered = append(s.registered, "player")
	return &models.Participant{ID: 1, TournamentID: tournamentID, PlayerID: &playerID, Status: models.ParticipantPending}, nil
}

func (s *stubParticipantService) RegisterTeam(ctx context.Context, actor services.Actor, tournamentID, teamID int) (*models.Participant, error) {
	s.registered = append(s.registered, "team")
	return &models.Participant{ID: 2, TournamentID: tournamentID, TeamID: &teamID, Status: models.ParticipantPending}, nil
}

func (s *stubParticipantService) SetSeed(ctx context.Context, actor services.Actor, tournamentID, participantID int, seed *int) (*models.Participant, error) {
	s.seed = seed
	return &models.Participant{ID: participantID, TournamentID: tournamentID, Seed: seed}, nil
}

type stubPublicationService struct {
	services.PublicationService
	results func(ctx context.Context, tid int) (*models.PublicResults, error)
}

func (s *stubPublicationService) PublicResults(ctx context.Context, tid int) (*models.PublicResults, error) {
	return s.results(ctx, tid)
}

// newRequest builds a request with chi URL params and, when role is not
// empty, authenticated claims for user 7.
func newRequest(method, target, body string, params map[string]string, role string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	if role != "" {
		ctx = middleware.WithClaims(ctx, 7, role)
	}
	return req.WithContext(ctx)
}
