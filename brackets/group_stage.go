package brackets

import (
	"context"
	"fmt"

	"github.com/Dosada05/tournament-manager/models"
)

// GroupStageGenerator builds the preliminary phase of a GroupKnockout
// tournament. The knockout phase is generated later from the group tables.
type GroupStageGenerator struct{}

func NewGroupStageGenerator() BracketGenerator {
	return &GroupStageGenerator{}
}

func (g *GroupStageGenerator) GetName() string {
	return models.BracketGroupKnockout
}

func (g *GroupStageGenerator) GenerateBracket(ctx context.Context, params GenerateBracketParams) ([]*BracketMatch, error) {
	ids := participantIDs(params.Participants)
	groups := params.Settings.Groups
	if groups < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidGroupCount, groups)
	}
	if len(ids) < 2*groups {
		return nil, fmt.Errorf("%w: %d groups need at least %d participants, got %d",
			ErrNotEnoughParticipants, groups, 2*groups, len(ids))
	}

	var matches []*BracketMatch
	for i, members := range SnakeGroups(ids, groups) {
		label := GroupLabel(i)
		matches = append(matches, roundRobin(members, params.Settings.Legs, models.PhaseGroup, label, "G"+label+"R")...)
	}
	return matches, nil
}

// SnakeGroups distributes seeded ids over groups: A B C C B A A B C ...
func SnakeGroups(ids []int, groups int) [][]int {
	out := make([][]int, groups)
	for i, id := range ids {
		row, col := i/groups, i%groups
		if row%2 == 1 {
			col = groups - 1 - col
		}
		out[col] = append(out[col], id)
	}
	return out
}

// GroupLabel maps 0, 1, ... to A, B, ... and continues with AA, AB after Z.
func GroupLabel(i int) string {
	label := ""
	for i >= 0 {
		label = string(rune('A'+i%26)) + label
		i = i/26 - 1
	}
	return label
}
