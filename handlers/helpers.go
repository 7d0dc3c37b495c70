package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Dosada05/tournament-manager/middleware"
	"github.com/Dosada05/tournament-manager/services"
)

type jsonResponse map[string]interface{}

const maxBodyBytes = 1_048_576 // 1MB

func readJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, int64(maxBodyBytes))

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	err := dec.Decode(dst)
	if err != nil {
		var syntaxError *json.SyntaxError
		var unmarshalTypeError *json.UnmarshalTypeError
		var invalidUnmarshalError *json.InvalidUnmarshalError
		var maxBytesError *http.MaxBytesError

		switch {
		case errors.As(err, &syntaxError):
			return fmt.Errorf("body contains badly-formed JSON (at character %d)", syntaxError.Offset)
		case errors.Is(err, io.ErrUnexpectedEOF):
			return errors.New("body contains badly-formed JSON")
		case errors.As(err, &unmarshalTypeError):
			if unmarshalTypeError.Field != "" {
				return fmt.Errorf("body contains incorrect JSON type for field %q", unmarshalTypeError.Field)
			}
			return fmt.Errorf("body contains incorrect JSON type (at character %d)", unmarshalTypeError.Offset)
		case errors.Is(err, io.EOF):
			return errors.New("body must not be empty")
		case strings.HasPrefix(err.Error(), "json: unknown field "):
			fieldName := strings.TrimPrefix(err.Error(), "json: unknown field ")
			return fmt.Errorf("body contains unknown key %s", fieldName)
		case errors.As(err, &maxBytesError):
			return fmt.Errorf("body must not be larger than %d bytes", maxBodyBytes)
		case errors.As(err, &invalidUnmarshalError):
			panic(err) // ошибка программиста: передан не указатель
		default:
			return err
		}
	}

	err = dec.Decode(&struct{}{})
	if !errors.Is(err, io.EOF) {
		return errors.New("body must only contain a single JSON value")
	}

	return nil
}

func writeJSON(w http.ResponseWriter, status int, data interface{}, headers http.Header) error {
	js, err := json.MarshalIndent(data, "", "\t")
	if err != nil {
		return err
	}
	js = append(js, '\n')

	for key, value := range headers {
		w.Header()[key] = value
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, err = w.Write(js)
	return err
}

// respond пишет JSON-ответ и превращает ошибку сериализации в 500.
func respond(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	if err := writeJSON(w, status, data, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

func errorResponse(w http.ResponseWriter, r *http.Request, status int, message interface{}) {
	env := jsonResponse{"error": message}
	if err := writeJSON(w, status, env, nil); err != nil {
		slog.ErrorContext(r.Context(), "Error writing error JSON response", slog.Any("error", err))
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func serverErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	slog.ErrorContext(r.Context(), "Internal server error",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.Any("error", err),
	)
	message := "the server encountered a problem and could not process your request"
	errorResponse(w, r, http.StatusInternalServerError, message)
}

func badRequestResponse(w http.ResponseWriter, r *http.Request, err error) {
	errorResponse(w, r, http.StatusBadRequest, err.Error())
}

func notFoundResponse(w http.ResponseWriter, r *http.Request) {
	message := "the requested resource could not be found"
	errorResponse(w, r, http.StatusNotFound, message)
}

func conflictResponse(w http.ResponseWriter, r *http.Request, message string) {
	errorResponse(w, r, http.StatusConflict, message)
}

func unauthorizedResponse(w http.ResponseWriter, r *http.Request, message string) {
	errorResponse(w, r, http.StatusUnauthorized, message)
}

func forbiddenResponse(w http.ResponseWriter, r *http.Request, message string) {
	errorResponse(w, r, http.StatusForbidden, message)
}

// mapServiceErrorToHTTP преобразует ошибки сервисного слоя в HTTP-ответы
func mapServiceErrorToHTTP(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	// Не найдено
	case errors.Is(err, services.ErrNotFound),
		errors.Is(err, services.ErrSportNotFound),
		errors.Is(err, services.ErrFormatNotFound),
		errors.Is(err, services.ErrPlayerNotFound),
		errors.Is(err, services.ErrTeamNotFound),
		errors.Is(err, services.ErrTournamentNotFound),
		errors.Is(err, services.ErrParticipantNotFound),
		errors.Is(err, services.ErrParticipantWrongTournament),
		errors.Is(err, services.ErrMatchNotFound),
		errors.Is(err, services.ErrNotTeamMember),
		errors.Is(err, services.ErrBracketNotGenerated),
		errors.Is(err, services.ErrResultsNotPublic):
		notFoundResponse(w, r)

	// Конфликты имён и состояния
	case errors.Is(err, services.ErrSportNameConflict),
		errors.Is(err, services.ErrFormatNameConflict),
		errors.Is(err, services.ErrPlayerEmailConflict),
		errors.Is(err, services.ErrPlayerNicknameConflict),
		errors.Is(err, services.ErrTeamNameConflict),
		errors.Is(err, services.ErrTournamentNameConflict),
		errors.Is(err, services.ErrRegistrationConflict),
		errors.Is(err, services.ErrRosterMemberConflict),
		errors.Is(err, services.ErrSportInUse),
		errors.Is(err, services.ErrFormatInUse),
		errors.Is(err, services.ErrPlayerInUse),
		errors.Is(err, services.ErrTeamInUse),
		errors.Is(err, services.ErrTournamentInUse),
		errors.Is(err, services.ErrTournamentFull),
		errors.Is(err, services.ErrTournamentFinalized),
		errors.Is(err, services.ErrTournamentSetupLocked),
		errors.Is(err, services.ErrTournamentDeleteNotAllowed),
		errors.Is(err, services.ErrTournamentHasUnfinished),
		errors.Is(err, services.ErrKnockoutNotPromoted),
		errors.Is(err, services.ErrTournamentInvalidStatusTransition),
		errors.Is(err, services.ErrCapacityBelowRegistrations),
		errors.Is(err, services.ErrTournamentNotActive),
		errors.Is(err, services.ErrBracketAlreadyGenerated),
		errors.Is(err, services.ErrBracketGenerationNotAllowed),
		errors.Is(err, services.ErrKnockoutAlreadyGenerated),
		errors.Is(err, services.ErrGroupStageNotFinished),
		errors.Is(err, services.ErrParticipantsLocked),
		errors.Is(err, services.ErrParticipantInvalidStatus),
		errors.Is(err, services.ErrMatchParticipantsNotSet),
		errors.Is(err, services.ErrMatchAlreadyFinished),
		errors.Is(err, services.ErrMatchNotFinished),
		errors.Is(err, services.ErrResultLocked),
		errors.Is(err, services.ErrNothingToPublish):
		conflictResponse(w, r, err.Error())

	// Невалидные данные / бизнес-правила
	case errors.Is(err, services.ErrValidationFailed),
		errors.Is(err, services.ErrSportNameRequired),
		errors.Is(err, services.ErrSportUnknownPreset),
		errors.Is(err, services.ErrSportInvalidRules),
		errors.Is(err, services.ErrSportPresetAndRules),
		errors.Is(err, services.ErrSportInvalidRosterSize),
		errors.Is(err, services.ErrFormatNameRequired),
		errors.Is(err, services.ErrInvalidBracketType),
		errors.Is(err, services.ErrInvalidParticipantType),
		errors.Is(err, services.ErrInvalidFormatSettings),
		errors.Is(err, services.ErrSettingsNotApplicableForType),
		errors.Is(err, services.ErrPlayerNameRequired),
		errors.Is(err, services.ErrPlayerInvalidEmail),
		errors.Is(err, services.ErrTeamNameRequired),
		errors.Is(err, services.ErrCannotRemoveCaptain),
		errors.Is(err, services.ErrCaptainMustBeMember),
		errors.Is(err, services.ErrTournamentNameRequired),
		errors.Is(err, services.ErrTournamentDatesRequired),
		errors.Is(err, services.ErrTournamentInvalidRegDate),
		errors.Is(err, services.ErrTournamentInvalidDateRange),
		errors.Is(err, services.ErrTournamentInvalidCapacity),
		errors.Is(err, services.ErrTournamentInvalidStatus),
		errors.Is(err, services.ErrParticipantTypeMismatch),
		errors.Is(err, services.ErrTeamSportMismatch),
		errors.Is(err, services.ErrTeamRosterTooSmall),
		errors.Is(err, services.ErrInvalidSeed),
		errors.Is(err, services.ErrNotEnoughParticipants),
		errors.Is(err, services.ErrPromotionNotApplicable),
		errors.Is(err, services.ErrInvalidMatchResult),
		errors.Is(err, services.ErrWinnerNotInMatch),
		errors.Is(err, services.ErrMatchScheduleRequired):
		badRequestResponse(w, r, err)

	// Ошибки авторизации/доступа
	case errors.Is(err, services.ErrAuthenticationFailed):
		unauthorizedResponse(w, r, err.Error())
	case errors.Is(err, services.ErrForbiddenOperation),
		errors.Is(err, services.ErrRegistrationNotOpen):
		forbiddenResponse(w, r, err.Error())

	case errors.Is(err, services.ErrPublishingDisabled):
		errorResponse(w, r, http.StatusServiceUnavailable, err.Error())

	default:
		serverErrorResponse(w, r, err)
	}
}

func getIDFromURL(r *http.Request, paramName string) (int, error) {
	idStr := chi.URLParam(r, paramName)
	if idStr == "" {
		return 0, fmt.Errorf("missing %s in URL path", paramName)
	}
	id, err := strconv.Atoi(idStr)
	if err != nil {
		return 0, fmt.Errorf("invalid %s format: %q", paramName, idStr)
	}
	if id <= 0 {
		return 0, fmt.Errorf("invalid %s value: %d", paramName, id)
	}
	return id, nil
}

// optionalIntParam разбирает положительный query-параметр; пустое значение даёт nil.
func optionalIntParam(q url.Values, name string) (*int, error) {
	raw := q.Get(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return nil, fmt.Errorf("invalid %s query parameter", name)
	}
	return &v, nil
}

func paginationParams(q url.Values, defaultLimit int) (limit, offset int, err error) {
	limit = defaultLimit
	if raw := q.Get("limit"); raw != "" {
		if limit, err = strconv.Atoi(raw); err != nil || limit <= 0 || limit > 100 {
			return 0, 0, errors.New("invalid limit query parameter")
		}
	}
	if raw := q.Get("offset"); raw != "" {
		if offset, err = strconv.Atoi(raw); err != nil || offset < 0 {
			return 0, 0, errors.New("invalid offset query parameter")
		}
	}
	return limit, offset, nil
}

// requireActor returns false after writing 401 when the request is anonymous.
func requireActor(w http.ResponseWriter, r *http.Request) (services.Actor, bool) {
	actor, err := middleware.ActorFromContext(r.Context())
	if err != nil {
		unauthorizedResponse(w, r, "authentication required")
		return services.Actor{}, false
	}
	return actor, true
}
