package models

import "time"

type Team struct {
	ID        int       `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	SportID   int       `json:"sport_id" db:"sport_id"`
	CaptainID *int      `json:"captain_id,omitempty" db:"captain_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	Sport   *Sport   `json:"sport,omitempty" db:"-"`
	Members []Player `json:"members,omitempty" db:"-"`
}
