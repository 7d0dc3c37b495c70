package brackets

import (
	"context"
	"fmt"

	"github.com/Dosada05/tournament-manager/models"
)

type node struct {
	participantID  *int
	sourceMatchUID *string
}

type SingleEliminationGenerator struct {
}

func NewSingleEliminationGenerator() BracketGenerator {
	return &SingleEliminationGenerator{}
}

func (g *SingleEliminationGenerator) GetName() string {
	return models.BracketSingleElimination
}

// GenerateBracket builds a seeded knockout bracket. Seed 1 meets the lowest
// seed and the top two seeds can only meet in the final. When the field is not
// a power of two the highest seeds get byes into round 2.
func (g *SingleEliminationGenerator) GenerateBracket(ctx context.Context, params GenerateBracketParams) ([]*BracketMatch, error) {
	ids := participantIDs(params.Participants)
	return singleElimination(ids)
}

func singleElimination(ids []int) ([]*BracketMatch, error) {
	n := len(ids)
	if n < 2 {
		return nil, fmt.Errorf("%w: single elimination needs at least 2, got %d", ErrNotEnoughParticipants, n)
	}

	size := 1
	numRounds := 0
	for size < n {
		size <<= 1
		numRounds++
	}

	order := seedOrder(size)
	matches := make([]*BracketMatch, 0, size-1)

	current := make([]*node, 0, size/2)
	for i := 0; i < size; i += 2 {
		s1, s2 := order[i], order[i+1]
		orderInRound := i/2 + 1
		uid := fmt.Sprintf("R1M%d", orderInRound)

		// s1 is always the better seed, so it is never a bye.
		p1 := intPtr(ids[s1-1])
		if s2 > n {
			matches = append(matches, &BracketMatch{
				UID:              uid,
				Phase:            models.PhaseKnockout,
				Round:            1,
				OrderInRound:     orderInRound,
				Participant1ID:   p1,
				IsBye:            true,
				ByeParticipantID: p1,
			})
			current = append(current, &node{participantID: p1})
			continue
		}
		matches = append(matches, &BracketMatch{
			UID:            uid,
			Phase:          models.PhaseKnockout,
			Round:          1,
			OrderInRound:   orderInRound,
			Participant1ID: p1,
			Participant2ID: intPtr(ids[s2-1]),
		})
		current = append(current, &node{sourceMatchUID: strPtr(uid)})
	}

	for r := 2; r <= numRounds; r++ {
		next := make([]*node, 0, len(current)/2)
		for i := 0; i < len(current); i += 2 {
			orderInRound := i/2 + 1
			uid := fmt.Sprintf("R%dM%d", r, orderInRound)
			bm := &BracketMatch{
				UID:             uid,
				Phase:           models.PhaseKnockout,
				Round:           r,
				OrderInRound:    orderInRound,
				Participant1ID:  current[i].participantID,
				SourceMatch1UID: current[i].sourceMatchUID,
				Participant2ID:  current[i+1].participantID,
				SourceMatch2UID: current[i+1].sourceMatchUID,
			}
			matches = append(matches, bm)
			next = append(next, &node{sourceMatchUID: strPtr(uid)})
		}
		current = next
	}

	return matches, nil
}

// seedOrder returns bracket positions for seeds 1..size (size is a power of two)
// such that adjacent pairs form first-round matches and seeds 1 and 2 start in
// opposite halves.
func seedOrder(size int) []int {
	order := []int{1}
	for len(order) < size {
		total := len(order)*2 + 1
		next := make([]int, 0, len(order)*2)
		for _, s := range order {
			next = append(next, s, total-s)
		}
		order = next
	}
	return order
}
