package models

import "time"

type MatchStatus string

const (
	MatchScheduled  MatchStatus = "scheduled"
	MatchInProgress MatchStatus = "in_progress"
	MatchCompleted  MatchStatus = "completed"
	MatchWalkover   MatchStatus = "walkover"
	MatchCanceled   MatchStatus = "canceled"
)

type MatchPhase string

const (
	PhaseLeague   MatchPhase = "league"
	PhaseGroup    MatchPhase = "group"
	PhaseKnockout MatchPhase = "knockout"
)

type Match struct {
	ID                  int         `json:"id" db:"id"`
	TournamentID        int         `json:"tournament_id" db:"tournament_id"`
	Phase               MatchPhase  `json:"phase" db:"phase"`
	GroupLabel          *string     `json:"group,omitempty" db:"group_label"`
	Round               int         `json:"round" db:"round"`
	OrderInRound        int         `json:"order_in_round" db:"order_in_round"`
	BracketMatchUID     string      `json:"bracket_match_uid" db:"bracket_match_uid"`
	Participant1ID      *int        `json:"participant1_id,omitempty" db:"participant1_id"`
	Participant2ID      *int        `json:"participant2_id,omitempty" db:"participant2_id"`
	Score1              *int        `json:"score1,omitempty" db:"score1"`
	Score2              *int        `json:"score2,omitempty" db:"score2"`
	Status              MatchStatus `json:"status" db:"status"`
	WinnerParticipantID *int        `json:"winner_participant_id,omitempty" db:"winner_participant_id"`
	NextMatchID         *int        `json:"next_match_id,omitempty" db:"next_match_id"`
	WinnerToSlot        *int        `json:"winner_to_slot,omitempty" db:"winner_to_slot"`
	ScheduledAt         time.Time   `json:"scheduled_at" db:"scheduled_at"`
	CreatedAt           time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt           time.Time   `json:"updated_at" db:"updated_at"`
}

// IsFinished reports whether the match has a final outcome (played, walkover or canceled).
func (m *Match) IsFinished() bool {
	return m.Status == MatchCompleted || m.Status == MatchWalkover || m.Status == MatchCanceled
}

func (m *Match) Group() string {
	if m.GroupLabel == nil {
		return ""
	}
	return *m.GroupLabel
}
