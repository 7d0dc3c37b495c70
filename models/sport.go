package models

import (
	"time"

	"github.com/Dosada05/tournament-manager/rules"
)

// Sport представляет вид спорта и правила начисления очков.
type Sport struct {
	ID            int                `json:"id" db:"id"`
	Name          string             `json:"name" db:"name"`
	ScoringRules  rules.ScoringRules `json:"scoring_rules" db:"scoring_rules"`
	MinRosterSize int                `json:"min_roster_size" db:"min_roster_size"`
	CreatedAt     time.Time          `json:"created_at" db:"created_at"`
}
