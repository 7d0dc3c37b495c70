package models

import (
	"fmt"
	"time"
)

type ParticipantStatus string

const (
	ParticipantPending   ParticipantStatus = "pending"
	ParticipantApproved  ParticipantStatus = "approved"
	ParticipantRejected  ParticipantStatus = "rejected"
	ParticipantWithdrawn ParticipantStatus = "withdrawn"
)

// Participant is a player or a team registered for one tournament. Exactly one
// of PlayerID and TeamID is set.
type Participant struct {
	ID           int               `json:"id" db:"id"`
	TournamentID int               `json:"tournament_id" db:"tournament_id"`
	PlayerID     *int              `json:"player_id,omitempty" db:"player_id"`
	TeamID       *int              `json:"team_id,omitempty" db:"team_id"`
	Status       ParticipantStatus `json:"status" db:"status"`
	Seed         *int              `json:"seed,omitempty" db:"seed"`
	CreatedAt    time.Time         `json:"created_at" db:"created_at"`

	Player *Player `json:"player,omitempty" db:"-"`
	Team   *Team   `json:"team,omitempty" db:"-"`
}

func (p *Participant) DisplayName() string {
	if p == nil {
		return "N/A"
	}
	if p.Player != nil {
		if name := p.Player.DisplayName(); name != "" {
			return name
		}
	}
	if p.Team != nil && p.Team.Name != "" {
		return p.Team.Name
	}
	return fmt.Sprintf("Participant %d", p.ID)
}
