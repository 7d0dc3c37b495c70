package handlers

import (
	"errors"
	"net/http"

	"github.com/Dosada05/tournament-manager/services"
)

type FormatHandler struct {
	formatService services.FormatService
}

func NewFormatHandler(fs services.FormatService) *FormatHandler {
	return &FormatHandler{
		formatService: fs,
	}
}

// CreateFormat godoc
// @Summary Создать новый формат турнира
// @Tags formats
// @Description Создает формат турнира: тип сетки, тип участников и настройки (legs, groups, advance_per_group).
// @Accept json
// @Produce json
// @Param body body services.CreateFormatInput true "Данные для создания формата"
// @Success 201 {object} map[string]interface{} "Формат создан"
// @Failure 400 {object} map[string]string "Ошибка валидации"
// @Failure 401 {object} map[string]string "Неавторизован"
// @Failure 403 {object} map[string]string "Нет прав"
// @Failure 409 {object} map[string]string "Конфликт (например, имя уже занято)"
// @Failure 500 {object} map[string]string "Внутренняя ошибка сервера"
// @Security BearerAuth
// @Router /formats [post]
func (h *FormatHandler) CreateFormat(w http.ResponseWriter, r *http.Request) {
	var input services.CreateFormatInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	format, err := h.formatService.CreateFormat(r.Context(), input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, http.StatusCreated, jsonResponse{"format": format})
}

// GetFormatByID godoc
// @Summary Получить формат по ID
// @Tags formats
// @Produce json
// @Param formatID path int true "Format ID"
// @Success 200 {object} map[string]interface{} "Формат найден"
// @Failure 400 {object} map[string]string "Некорректный ID"
// @Failure 404 {object} map[string]string "Формат не найден"
// @Router /formats/{formatID} [get]
func (h *FormatHandler) GetFormatByID(w http.ResponseWriter, r *http.Request) {
	formatID, err := getIDFromURL(r, "formatID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	format, err := h.formatService.GetFormatByID(r.Context(), formatID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, jsonResponse{"format": format})
}

// GetAllFormats godoc
// @Summary Получить все форматы
// @Tags formats
// @Produce json
// @Success 200 {object} map[string]interface{} "Список форматов"
// @Router /formats [get]
func (h *FormatHandler) GetAllFormats(w http.ResponseWriter, r *http.Request) {
	formats, err := h.formatService.GetAllFormats(r.Context())
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, jsonResponse{"formats": formats})
}

func (h *FormatHandler) UpdateFormat(w http.ResponseWriter, r *http.Request) {
	formatID, err := getIDFromURL(r, "formatID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input services.UpdateFormatInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}
	// Проверка, что хотя бы одно поле передано
	if input.Name == nil && input.BracketType == nil && input.ParticipantType == nil && input.Settings == nil {
		badRequestResponse(w, r, errors.New("at least one field must be provided for update"))
		return
	}

	format, err := h.formatService.UpdateFormat(r.Context(), formatID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	respond(w, r, http.StatusOK, jsonResponse{"format": format})
}

func (h *FormatHandler) DeleteFormat(w http.ResponseWriter, r *http.Request) {
	formatID, err := getIDFromURL(r, "formatID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	if err := h.formatService.DeleteFormat(r.Context(), formatID); err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
