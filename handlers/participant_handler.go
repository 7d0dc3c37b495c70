package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/Dosada05/tournament-manager/models"
	"github.com/Dosada05/tournament-manager/services"
)

type ParticipantHandler struct {
	participantService services.ParticipantService
}

func NewParticipantHandler(ps services.ParticipantService) *ParticipantHandler {
	return &ParticipantHandler{
		participantService: ps,
	}
}

// ListParticipants обрабатывает GET /tournaments/{tournamentID}/participants?status=approved
func (h *ParticipantHandler) ListParticipants(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var status *models.ParticipantStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		s := models.ParticipantStatus(raw)
		status = &s
	}

	participants, err := h.participantService.List(r.Context(), tournamentID, status)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, jsonResponse{"participants": participants})
}

// Register godoc
// @Summary Зарегистрировать игрока или команду в турнире
// @Tags participants
// @Description Организатор регистрирует участника. В теле ровно одно из полей player_id или team_id.
// @Accept json
// @Produce json
// @Param tournamentID path int true "Tournament ID"
// @Success 201 {object} map[string]interface{} "Заявка создана"
// @Failure 400 {object} map[string]string "Ошибка валидации или бизнес-логики"
// @Failure 401 {object} map[string]string "Неавторизован"
// @Failure 403 {object} map[string]string "Нет прав / Регистрация закрыта"
// @Failure 404 {object} map[string]string "Турнир, игрок или команда не найдены"
// @Failure 409 {object} map[string]string "Уже зарегистрирован / турнир полон"
// @Security BearerAuth
// @Router /tournaments/{tournamentID}/participants [post]
func (h *ParticipantHandler) Register(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var input struct {
		PlayerID *int `json:"player_id,omitempty"`
		TeamID   *int `json:"team_id,omitempty"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var participant *models.Participant
	switch {
	case input.PlayerID != nil && input.TeamID == nil:
		participant, err = h.participantService.RegisterPlayer(r.Context(), actor, tournamentID, *input.PlayerID)
	case input.TeamID != nil && input.PlayerID == nil:
		participant, err = h.participantService.RegisterTeam(r.Context(), actor, tournamentID, *input.TeamID)
	default:
		badRequestResponse(w, r, errors.New("exactly one of player_id or team_id must be provided"))
		return
	}
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, http.StatusCreated, jsonResponse{"participant": participant})
}

type moderationFunc func(ctx context.Context, actor services.Actor, tournamentID, participantID int) (*models.Participant, error)

func (h *ParticipantHandler) moderate(w http.ResponseWriter, r *http.Request, action moderationFunc) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	participantID, err := getIDFromURL(r, "participantID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	participant, err := action(r.Context(), actor, tournamentID, participantID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, jsonResponse{"participant": participant})
}

// Approve обрабатывает POST /tournaments/{tournamentID}/participants/{participantID}/approve
func (h *ParticipantHandler) Approve(w http.ResponseWriter, r *http.Request) {
	h.moderate(w, r, h.participantService.Approve)
}

func (h *ParticipantHandler) Reject(w http.ResponseWriter, r *http.Request) {
	h.moderate(w, r, h.participantService.Reject)
}

func (h *ParticipantHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.moderate(w, r, h.participantService.Withdraw)
}

// SetSeed обрабатывает PUT .../participants/{participantID}/seed с телом {"seed": 1} или {"seed": null}.
func (h *ParticipantHandler) SetSeed(w http.ResponseWriter, r *http.Request) {
	var input struct {
		Seed *int `json:"seed"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	h.moderate(w, r, func(ctx context.Context, actor services.Actor, tournamentID, participantID int) (*models.Participant, error) {
		return h.participantService.SetSeed(ctx, actor, tournamentID, participantID, input.Seed)
	})
}
