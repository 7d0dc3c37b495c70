package brackets

import (
	"context"
	"fmt"

	"github.com/Dosada05/tournament-manager/models"
)

type RoundRobinGenerator struct{}

func NewRoundRobinGenerator() BracketGenerator {
	return &RoundRobinGenerator{}
}

func (g *RoundRobinGenerator) GetName() string {
	return models.BracketRoundRobin
}

// GenerateBracket creates a league schedule where every participant meets every
// other one once per leg. Legs other than 2 are treated as a single leg.
func (g *RoundRobinGenerator) GenerateBracket(ctx context.Context, params GenerateBracketParams) ([]*BracketMatch, error) {
	ids := participantIDs(params.Participants)
	if len(ids) < 2 {
		return nil, fmt.Errorf("%w: round robin needs at least 2, got %d", ErrNotEnoughParticipants, len(ids))
	}
	return roundRobin(ids, params.Settings.Legs, models.PhaseLeague, "", "RR"), nil
}

type pairing struct {
	home, away int
}

// circleRounds schedules a single leg with the circle method: the first
// participant stays fixed while the others rotate. For an odd field one
// participant rests each round.
func circleRounds(ids []int) [][]pairing {
	slots := make([]*int, 0, len(ids)+1)
	for i := range ids {
		slots = append(slots, &ids[i])
	}
	if len(slots)%2 == 1 {
		slots = append(slots, nil)
	}
	m := len(slots)

	rounds := make([][]pairing, 0, m-1)
	for r := 0; r < m-1; r++ {
		round := make([]pairing, 0, m/2)
		for i := 0; i < m/2; i++ {
			a, b := slots[i], slots[m-1-i]
			if a == nil || b == nil {
				continue
			}
			p := pairing{home: *a, away: *b}
			// Фиксированный участник чередует дом/выезд.
			if i == 0 && r%2 == 1 {
				p.home, p.away = p.away, p.home
			}
			round = append(round, p)
		}
		rounds = append(rounds, round)

		last := slots[m-1]
		copy(slots[2:], slots[1:m-1])
		slots[1] = last
	}
	return rounds
}

// roundRobin expands circleRounds into matches. The second leg repeats the
// first with home and away swapped and continues the round numbering.
func roundRobin(ids []int, legs int, phase models.MatchPhase, group, uidPrefix string) []*BracketMatch {
	if legs != 2 {
		legs = 1
	}
	rounds := circleRounds(ids)

	matches := make([]*BracketMatch, 0, legs*len(ids)*(len(ids)-1)/2)
	for leg := 0; leg < legs; leg++ {
		for r, round := range rounds {
			roundNo := leg*len(rounds) + r + 1
			for o, p := range round {
				home, away := p.home, p.away
				if leg == 1 {
					home, away = away, home
				}
				matches = append(matches, &BracketMatch{
					UID:            fmt.Sprintf("%s%dM%d", uidPrefix, roundNo, o+1),
					Phase:          phase,
					Group:          group,
					Round:          roundNo,
					OrderInRound:   o + 1,
					Participant1ID: intPtr(home),
					Participant2ID: intPtr(away),
				})
			}
		}
	}
	return matches
}
