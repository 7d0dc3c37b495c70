package models

import "time"

// PublicResults is the snapshot served to the public and uploaded on publish.
type PublicResults struct {
	Tournament    Tournament           `json:"tournament"`
	Participants  []PublicParticipant  `json:"participants"`
	Matches       []Match              `json:"matches"`
	Standings     []TournamentStanding `json:"standings"`
	OverallWinner *PublicParticipant   `json:"overall_winner,omitempty"`
	GeneratedAt   time.Time            `json:"generated_at"`
}

type PublicParticipant struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Type   string `json:"type"` // "player" или "team"
	Seed   *int   `json:"seed,omitempty"`
	Status string `json:"status"`
}
