package brackets

import (
	"errors"
	"fmt"
	"sort"

	"github.com/Dosada05/tournament-manager/rules"
	"github.com/Dosada05/tournament-manager/standings"
)

var (
	ErrGroupTooSmall           = errors.New("group has fewer participants than qualification places")
	ErrNegativeScore           = errors.New("scores must not be negative")
	ErrDrawNotAllowed          = errors.New("draw is not allowed, a winner is required")
	ErrWinnerContradictsScores = errors.New("declared winner has the lower score")
)

// Slot identifies a side of a match.
type Slot int

const (
	SlotNone Slot = 0 // draw
	Slot1    Slot = 1
	Slot2    Slot = 2
)

// Qualifier is a participant promoted from the group stage.
type Qualifier struct {
	ParticipantID int
	Group         string
	Position      int
	Points        int
	ScoreDiff     int
	ScoreFor      int
}

// QualifiersFromGroups takes the top advancePerGroup rows from every group
// and orders them into a seed list: all group winners first, then all
// runners-up and so on. Within a position better points, score difference and
// score for rank higher, group label decides the rest.
func QualifiersFromGroups(tables map[string][]standings.Row, advancePerGroup int) ([]Qualifier, error) {
	if advancePerGroup < 1 {
		return nil, fmt.Errorf("advance per group must be at least 1, got %d", advancePerGroup)
	}
	var out []Qualifier
	for _, group := range standings.GroupLabels(tables) {
		rows := tables[group]
		if len(rows) < advancePerGroup {
			return nil, fmt.Errorf("%w: group %s has %d, needs %d", ErrGroupTooSmall, group, len(rows), advancePerGroup)
		}
		for i := 0; i < advancePerGroup; i++ {
			row := rows[i]
			out = append(out, Qualifier{
				ParticipantID: row.ParticipantID,
				Group:         group,
				Position:      i + 1,
				Points:        row.Points,
				ScoreDiff:     row.ScoreDifference,
				ScoreFor:      row.ScoreFor,
			})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch {
		case a.Position != b.Position:
			return a.Position < b.Position
		case a.Points != b.Points:
			return a.Points > b.Points
		case a.ScoreDiff != b.ScoreDiff:
			return a.ScoreDiff > b.ScoreDiff
		case a.ScoreFor != b.ScoreFor:
			return a.ScoreFor > b.ScoreFor
		}
		return a.Group < b.Group
	})
	return out, nil
}

// SeparateGroups turns an ordered qualifier list into a single-elimination
// seed list in which no first-round match pairs two qualifiers from the same
// group, whenever such a list exists. Qualifiers only swap with others of the
// same finishing position, so winners keep the top seeds; within a position
// the original order is preferred. When separation is impossible the input
// order is returned.
func SeparateGroups(qs []Qualifier) []Qualifier {
	n := len(qs)
	out := append([]Qualifier(nil), qs...)
	if n < 3 {
		return out
	}

	size := 1
	for size < n {
		size <<= 1
	}
	order := seedOrder(size)
	opponent := make([]int, size+1)
	for i := 0; i < size; i += 2 {
		opponent[order[i]], opponent[order[i+1]] = order[i+1], order[i]
	}

	// Границы блоков одинакового места: seed i+1 берётся из блока qs[i].
	tierStart := make([]int, n)
	tierEnd := make([]int, n)
	for lo := 0; lo < n; {
		hi := lo
		for hi < n && qs[hi].Position == qs[lo].Position {
			hi++
		}
		for i := lo; i < hi; i++ {
			tierStart[i], tierEnd[i] = lo, hi
		}
		lo = hi
	}

	seeded := make([]Qualifier, n)
	used := make([]bool, n)
	budget := 100000
	var place func(i int) bool
	place = func(i int) bool {
		if i == n {
			return true
		}
		opp := opponent[i+1]
		for j := tierStart[i]; j < tierEnd[i]; j++ {
			if used[j] {
				continue
			}
			if budget--; budget < 0 {
				return false
			}
			if opp <= i && seeded[opp-1].Group == qs[j].Group {
				continue
			}
			used[j], seeded[i] = true, qs[j]
			if place(i + 1) {
				return true
			}
			used[j] = false
		}
		return false
	}
	if !place(0) {
		return out
	}
	return seeded
}

// ResolveWinner decides a match outcome from its score. explicit may name the
// winner when the scores are level (extra time, penalties, shoot-out); it must
// not contradict a decisive score. Knockout matches and sports without draws
// always need a winner.
func ResolveWinner(score1, score2 int, explicit Slot, knockout bool, r rules.ScoringRules) (Slot, error) {
	if score1 < 0 || score2 < 0 {
		return SlotNone, ErrNegativeScore
	}

	var byScore Slot
	switch {
	case score1 > score2:
		byScore = Slot1
	case score2 > score1:
		byScore = Slot2
	}

	if explicit != SlotNone {
		if explicit != Slot1 && explicit != Slot2 {
			return SlotNone, fmt.Errorf("invalid winner slot %d", explicit)
		}
		if byScore != SlotNone && byScore != explicit {
			return SlotNone, ErrWinnerContradictsScores
		}
		return explicit, nil
	}

	if byScore == SlotNone && (knockout || !r.AllowDraws) {
		return SlotNone, ErrDrawNotAllowed
	}
	return byScore, nil
}
