package models

import "time"

// TournamentStatus представляет статусы турнира, соответствующие ENUM в БД.
type TournamentStatus string

const (
	StatusSoon         TournamentStatus = "soon"
	StatusRegistration TournamentStatus = "registration"
	StatusActive       TournamentStatus = "active"
	StatusCompleted    TournamentStatus = "completed"
	StatusCanceled     TournamentStatus = "canceled"
)

func (s TournamentStatus) IsValid() bool {
	switch s {
	case StatusSoon, StatusRegistration, StatusActive, StatusCompleted, StatusCanceled:
		return true
	}
	return false
}

// Tournament представляет турнир.
type Tournament struct {
	ID                         int              `json:"id" db:"id"`
	Name                       string           `json:"name" db:"name"`
	Description                *string          `json:"description,omitempty" db:"description"`
	SportID                    int              `json:"sport_id" db:"sport_id"`
	FormatID                   int              `json:"format_id" db:"format_id"`
	OrganizerID                int              `json:"organizer_id" db:"organizer_id"`
	RegDate                    time.Time        `json:"reg_date" db:"reg_date"`
	StartDate                  time.Time        `json:"start_date" db:"start_date"`
	EndDate                    time.Time        `json:"end_date" db:"end_date"`
	Location                   *string          `json:"location,omitempty" db:"location"`
	Status                     TournamentStatus `json:"status" db:"status"`
	MaxParticipants            int              `json:"max_participants" db:"max_participants"`
	OverallWinnerParticipantID *int             `json:"overall_winner_participant_id,omitempty" db:"overall_winner_participant_id"`
	PublishedAt                *time.Time       `json:"published_at,omitempty" db:"published_at"`
	ResultsURL                 *string          `json:"results_url,omitempty" db:"results_url"`
	CreatedAt                  time.Time        `json:"created_at" db:"created_at"`

	// Опциональные связанные сущности (не мапятся напрямую)
	Sport        *Sport        `json:"sport,omitempty" db:"-"`
	Format       *Format       `json:"format,omitempty" db:"-"`
	Participants []Participant `json:"participants,omitempty" db:"-"`
	Matches      []Match       `json:"matches,omitempty" db:"-"`
}
