package brackets

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/Dosada05/tournament-manager/models"
)

var (
	ErrNotEnoughParticipants = errors.New("not enough participants to generate a bracket")
	ErrUnknownBracketType    = errors.New("unknown bracket type")
	ErrInvalidGroupCount     = errors.New("invalid number of groups")
)

// BracketMatch is a generated match before it is stored. Slots are filled
// either with a participant or with the UID of the match whose winner lands there.
type BracketMatch struct {
	UID          string
	Phase        models.MatchPhase
	Group        string
	Round        int
	OrderInRound int

	Participant1ID *int
	Participant2ID *int

	SourceMatch1UID *string
	SourceMatch2UID *string

	// Bye-записи не сохраняются в БД: участник сразу попадает в следующий раунд.
	IsBye            bool
	ByeParticipantID *int
}

type GenerateBracketParams struct {
	Tournament *models.Tournament
	// Participants must already be ordered by seed (see SortBySeed).
	Participants []*models.Participant
	Settings     models.FormatSettings
}

type BracketGenerator interface {
	GenerateBracket(ctx context.Context, params GenerateBracketParams) ([]*BracketMatch, error)

	GetName() string
}

// NewGenerator returns the generator that builds the first phase of the given bracket type.
func NewGenerator(bracketType string) (BracketGenerator, error) {
	switch bracketType {
	case models.BracketSingleElimination:
		return NewSingleEliminationGenerator(), nil
	case models.BracketRoundRobin:
		return NewRoundRobinGenerator(), nil
	case models.BracketGroupKnockout:
		return NewGroupStageGenerator(), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownBracketType, bracketType)
}

// SortBySeed orders participants: seeded first by ascending seed, then unseeded by ID.
func SortBySeed(participants []*models.Participant) {
	sort.SliceStable(participants, func(i, j int) bool {
		a, b := participants[i], participants[j]
		switch {
		case a.Seed != nil && b.Seed != nil && *a.Seed != *b.Seed:
			return *a.Seed < *b.Seed
		case a.Seed != nil && b.Seed == nil:
			return true
		case a.Seed == nil && b.Seed != nil:
			return false
		}
		return a.ID < b.ID
	})
}

func participantIDs(participants []*models.Participant) []int {
	ids := make([]int, 0, len(participants))
	seen := make(map[int]bool, len(participants))
	for _, p := range participants {
		if p == nil || seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		ids = append(ids, p.ID)
	}
	return ids
}

func intPtr(v int) *int { return &v }

func strPtr(s string) *string { return &s }
