package handlers

import (
	"net/http"

	"github.com/Dosada05/tournament-manager/services"
)

type PublicationHandler struct {
	publicationService services.PublicationService
}

func NewPublicationHandler(ps services.PublicationService) *PublicationHandler {
	return &PublicationHandler{publicationService: ps}
}

// Publish godoc
// @Summary Опубликовать результаты турнира
// @Tags results
// @Description Загружает JSON-снимок результатов в объектное хранилище.
// @Produce json
// @Param tournamentID path int true "Tournament ID"
// @Success 201 {object} services.PublishResult "Снимок опубликован"
// @Failure 409 {object} map[string]string "Нечего публиковать"
// @Failure 503 {object} map[string]string "Хранилище не настроено"
// @Security BearerAuth
// @Router /tournaments/{tournamentID}/publish [post]
func (h *PublicationHandler) Publish(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}

	result, err := h.publicationService.Publish(r.Context(), actor, tournamentID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, http.StatusCreated, jsonResponse{"publication": result})
}

// PublicResults godoc
// @Summary Публичные результаты турнира
// @Tags results
// @Produce json
// @Param tournamentID path int true "Tournament ID"
// @Success 200 {object} models.PublicResults "Результаты"
// @Failure 404 {object} map[string]string "Турнир не найден или результаты закрыты"
// @Failure 429 {object} map[string]string "Слишком много запросов"
// @Router /public/tournaments/{tournamentID}/results [get]
func (h *PublicationHandler) PublicResults(w http.ResponseWriter, r *http.Request) {
	tournamentID, err := getIDFromURL(r, "tournamentID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	results, err := h.publicationService.PublicResults(r.Context(), tournamentID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=30")
	respond(w, r, http.StatusOK, results)
}
