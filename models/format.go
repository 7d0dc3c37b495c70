package models

import "encoding/json"

type FormatParticipantType string

const (
	FormatParticipantSolo FormatParticipantType = "solo"
	FormatParticipantTeam FormatParticipantType = "team"
)

const (
	BracketSingleElimination = "SingleElimination"
	BracketRoundRobin        = "RoundRobin"
	BracketGroupKnockout     = "GroupKnockout"
)

// FormatSettings holds the per-format knobs. Zero values mean "use the default".
type FormatSettings struct {
	Legs            int `json:"legs,omitempty"`              // 1 for single round-robin, 2 for double
	Groups          int `json:"groups,omitempty"`            // GroupKnockout only
	AdvancePerGroup int `json:"advance_per_group,omitempty"` // GroupKnockout only
}

type Format struct {
	ID              int                   `json:"id" db:"id"`
	Name            string                `json:"name" db:"name"`
	BracketType     string                `json:"bracket_type" db:"bracket_type"`
	ParticipantType FormatParticipantType `json:"participant_type" db:"participant_type"`
	SettingsJSON    *string               `json:"-" db:"settings_json"`

	Settings *FormatSettings `json:"settings,omitempty" db:"-"`
}

// GetSettings parses SettingsJSON and fills in defaults for the bracket type.
func (f *Format) GetSettings() (FormatSettings, error) {
	var s FormatSettings
	if f.SettingsJSON != nil && *f.SettingsJSON != "" {
		if err := json.Unmarshal([]byte(*f.SettingsJSON), &s); err != nil {
			return s, err
		}
	}
	if s.Legs == 0 {
		s.Legs = 1
	}
	if f.BracketType == BracketGroupKnockout {
		if s.Groups == 0 {
			s.Groups = 2
		}
		if s.AdvancePerGroup == 0 {
			s.AdvancePerGroup = 2
		}
	}
	return s, nil
}

func IsValidBracketType(t string) bool {
	switch t {
	case BracketSingleElimination, BracketRoundRobin, BracketGroupKnockout:
		return true
	}
	return false
}
