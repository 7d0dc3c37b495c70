package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/Dosada05/tournament-manager/models"
	"github.com/Dosada05/tournament-manager/repositories"
	"github.com/Dosada05/tournament-manager/services"
)

type MatchHandler struct {
	matchService services.MatchService
}

func NewMatchHandler(ms services.MatchService) *MatchHandler {
	return &MatchHandler{matchService: ms}
}

// ListMatches обрабатывает GET /tournaments/{tournamentID}/matches?phase=&status=&round=
func (h *MatchHandler) ListMatches(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var filter repositories.ListMatchesFilter
	query := r.URL.Query()
	if raw := query.Get("phase"); raw != "" {
		phase := models.MatchPhase(raw)
		switch phase {
		case models.PhaseLeague, models.PhaseGroup, models.PhaseKnockout:
			filter.Phase = &phase
		default:
			badRequestResponse(w, r, errors.New("invalid phase query parameter"))
			return
		}
	}
	if raw := query.Get("status"); raw != "" {
		status := models.MatchStatus(raw)
		filter.Status = &status
	}
	if raw := query.Get("round"); raw != "" {
		round, err := strconv.Atoi(raw)
		if err != nil || round <= 0 {
			badRequestResponse(w, r, errors.New("invalid round query parameter"))
			return
		}
		filter.Round = &round
	}

	matches, err := h.matchService.ListMatches(r.Context(), tournamentID, filter)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, jsonResponse{"matches": matches})
}

func (h *MatchHandler) GetMatch(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := h.matchService.GetMatch(r.Context(), matchID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, jsonResponse{"match": match})
}

func (h *MatchHandler) ScheduleMatch(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var input struct {
		ScheduledAt time.Time `json:"scheduled_at"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := h.matchService.ScheduleMatch(r.Context(), actor, matchID, input.ScheduledAt)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, jsonResponse{"match": match})
}

// RecordResult godoc
// @Summary Записать результат матча
// @Tags matches
// @Description Сохраняет счёт, продвигает победителя по сетке или пересчитывает таблицу.
// @Accept json
// @Produce json
// @Param matchID path int true "Match ID"
// @Param body body services.RecordResultInput true "Счёт и (при ничьей в плей-офф) победитель"
// @Success 200 {object} map[string]interface{} "Результат записан"
// @Failure 400 {object} map[string]string "Некорректный счёт"
// @Failure 409 {object} map[string]string "Матч уже сыгран или участники не определены"
// @Security BearerAuth
// @Router /matches/{matchID}/result [put]
func (h *MatchHandler) RecordResult(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var input services.RecordResultInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	match, err := h.matchService.RecordResult(r.Context(), actor, matchID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, jsonResponse{"match": match})
}

func (h *MatchHandler) RecordWalkover(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	var input struct {
		WinnerParticipantID int `json:"winner_participant_id"`
	}
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	if input.WinnerParticipantID <= 0 {
		badRequestResponse(w, r, errors.New("winner_participant_id is required"))
		return
	}

	match, err := h.matchService.RecordWalkover(r.Context(), actor, matchID, input.WinnerParticipantID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, jsonResponse{"match": match})
}

func (h *MatchHandler) ResetResult(w http.ResponseWriter, r *http.Request) {
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	match, err := h.matchService.ResetResult(r.Context(), actor, matchID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, jsonResponse{"match": match})
}
