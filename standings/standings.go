// Package standings turns finished matches into ranked league tables.
package standings

import (
	"sort"

	"github.com/Dosada05/tournament-manager/models"
	"github.com/Dosada05/tournament-manager/rules"
)

// Entry is a participant that appears in a table even before playing.
type Entry struct {
	ParticipantID int
	Seed          *int
	Group         string
}

// Result is a finished match reduced to what the table needs.
type Result struct {
	Participant1ID int
	Participant2ID int
	Score1         int
	Score2         int
	WinnerID       *int
	Walkover       bool
}

type Row struct {
	ParticipantID   int    `json:"participant_id"`
	Group           string `json:"group,omitempty"`
	Seed            *int   `json:"seed,omitempty"`
	Played          int    `json:"played"`
	Wins            int    `json:"wins"`
	Draws           int    `json:"draws"`
	Losses          int    `json:"losses"`
	ScoreFor        int    `json:"score_for"`
	ScoreAgainst    int    `json:"score_against"`
	ScoreDifference int    `json:"score_difference"`
	Points          int    `json:"points"`
	Rank            int    `json:"rank"`
}

// FromMatch converts a stored match. Only completed matches and walkovers with
// both participants known count; everything else returns false.
func FromMatch(m models.Match) (Result, bool) {
	if m.Participant1ID == nil || m.Participant2ID == nil {
		return Result{}, false
	}
	res := Result{
		Participant1ID: *m.Participant1ID,
		Participant2ID: *m.Participant2ID,
		WinnerID:       m.WinnerParticipantID,
	}
	switch m.Status {
	case models.MatchWalkover:
		if m.WinnerParticipantID == nil {
			return Result{}, false
		}
		res.Walkover = true
	case models.MatchCompleted:
		if m.Score1 == nil || m.Score2 == nil {
			return Result{}, false
		}
		res.Score1, res.Score2 = *m.Score1, *m.Score2
	default:
		return Result{}, false
	}
	return res, true
}

type outcome struct {
	score1, score2 int
	// 1 or 2 for the winning side, 0 for a draw
	winner int
}

func resolve(res Result, r rules.ScoringRules) (outcome, bool) {
	if res.Walkover {
		switch {
		case res.WinnerID != nil && *res.WinnerID == res.Participant1ID:
			return outcome{r.WalkoverScoreFor, r.WalkoverScoreAgainst, 1}, true
		case res.WinnerID != nil && *res.WinnerID == res.Participant2ID:
			return outcome{r.WalkoverScoreAgainst, r.WalkoverScoreFor, 2}, true
		}
		return outcome{}, false
	}
	o := outcome{score1: res.Score1, score2: res.Score2}
	switch {
	case res.WinnerID != nil && *res.WinnerID == res.Participant1ID:
		o.winner = 1
	case res.WinnerID != nil && *res.WinnerID == res.Participant2ID:
		o.winner = 2
	case res.WinnerID != nil:
		return outcome{}, false
	case res.Score1 > res.Score2:
		o.winner = 1
	case res.Score2 > res.Score1:
		o.winner = 2
	}
	return o, true
}

func (row *Row) apply(scoreFor, scoreAgainst int, won, drew bool, r rules.ScoringRules) {
	row.Played++
	row.ScoreFor += scoreFor
	row.ScoreAgainst += scoreAgainst
	row.ScoreDifference = row.ScoreFor - row.ScoreAgainst
	switch {
	case won:
		row.Wins++
		row.Points += r.PointsWin
	case drew:
		row.Draws++
		row.Points += r.PointsDraw
	default:
		row.Losses++
		row.Points += r.PointsLoss
	}
}

func accumulate(index map[int]*Row, results []Result, r rules.ScoringRules) {
	for _, res := range results {
		row1, ok1 := index[res.Participant1ID]
		row2, ok2 := index[res.Participant2ID]
		if !ok1 || !ok2 || res.Participant1ID == res.Participant2ID {
			continue
		}
		o, ok := resolve(res, r)
		if !ok {
			continue
		}
		row1.apply(o.score1, o.score2, o.winner == 1, o.winner == 0, r)
		row2.apply(o.score2, o.score1, o.winner == 2, o.winner == 0, r)
	}
}

// Compute builds a single ranked table for entries from results.
func Compute(entries []Entry, results []Result, r rules.ScoringRules) []Row {
	rows := make([]*Row, 0, len(entries))
	index := make(map[int]*Row, len(entries))
	for _, e := range entries {
		if _, dup := index[e.ParticipantID]; dup {
			continue
		}
		row := &Row{ParticipantID: e.ParticipantID, Group: e.Group, Seed: e.Seed}
		index[e.ParticipantID] = row
		rows = append(rows, row)
	}
	accumulate(index, results, r)

	sort.SliceStable(rows, func(i, j int) bool { return baseLess(rows[i], rows[j]) })

	blocks := [][]*Row{rows}
	for _, tb := range criteria(r) {
		blocks = refine(blocks, tb, results, r)
	}

	out := make([]Row, 0, len(rows))
	position := 1
	for _, block := range blocks {
		for _, row := range block {
			row.Rank = position
			out = append(out, *row)
		}
		position += len(block)
	}
	return out
}

// ComputeGroups builds one table per group label.
func ComputeGroups(entries []Entry, results []Result, r rules.ScoringRules) map[string][]Row {
	byGroup := make(map[string][]Entry)
	for _, e := range entries {
		byGroup[e.Group] = append(byGroup[e.Group], e)
	}
	tables := make(map[string][]Row, len(byGroup))
	for g, groupEntries := range byGroup {
		tables[g] = Compute(groupEntries, results, r)
	}
	return tables
}

// GroupLabels returns the keys of tables in sorted order.
func GroupLabels(tables map[string][]Row) []string {
	labels := make([]string, 0, len(tables))
	for g := range tables {
		labels = append(labels, g)
	}
	sort.Strings(labels)
	return labels
}

func criteria(r rules.ScoringRules) []rules.TieBreaker {
	if len(r.TieBreakers) > 0 && r.TieBreakers[0] == rules.TieBreakPoints {
		return r.TieBreakers
	}
	out := []rules.TieBreaker{rules.TieBreakPoints}
	for _, tb := range r.TieBreakers {
		if tb != rules.TieBreakPoints {
			out = append(out, tb)
		}
	}
	return out
}

// baseLess orders fully tied rows: seeded before unseeded, lower seed first, then by ID.
func baseLess(a, b *Row) bool {
	switch {
	case a.Seed != nil && b.Seed != nil && *a.Seed != *b.Seed:
		return *a.Seed < *b.Seed
	case a.Seed != nil && b.Seed == nil:
		return true
	case a.Seed == nil && b.Seed != nil:
		return false
	}
	return a.ParticipantID < b.ParticipantID
}

func refine(blocks [][]*Row, tb rules.TieBreaker, results []Result, r rules.ScoringRules) [][]*Row {
	out := make([][]*Row, 0, len(blocks))
	for _, block := range blocks {
		if len(block) < 2 {
			out = append(out, block)
			continue
		}
		keys := keysFor(block, tb, results, r)
		sort.SliceStable(block, func(i, j int) bool {
			return keys[block[i].ParticipantID] > keys[block[j].ParticipantID]
		})
		start := 0
		for i := 1; i <= len(block); i++ {
			if i == len(block) || keys[block[i].ParticipantID] != keys[block[start].ParticipantID] {
				out = append(out, block[start:i])
				start = i
			}
		}
	}
	return out
}

// keysFor returns a "higher is better" value per participant of the block.
func keysFor(block []*Row, tb rules.TieBreaker, results []Result, r rules.ScoringRules) map[int]int {
	keys := make(map[int]int, len(block))
	if tb == rules.TieBreakHeadToHead {
		mini := make(map[int]*Row, len(block))
		for _, row := range block {
			mini[row.ParticipantID] = &Row{ParticipantID: row.ParticipantID}
		}
		accumulate(mini, results, r)
		for id, row := range mini {
			keys[id] = row.Points
		}
		return keys
	}
	for _, row := range block {
		switch tb {
		case rules.TieBreakPoints:
			keys[row.ParticipantID] = row.Points
		case rules.TieBreakScoreDifference:
			keys[row.ParticipantID] = row.ScoreDifference
		case rules.TieBreakScoreFor:
			keys[row.ParticipantID] = row.ScoreFor
		case rules.TieBreakWins:
			keys[row.ParticipantID] = row.Wins
		case rules.TieBreakFewestLosses:
			keys[row.ParticipantID] = -row.Losses
		}
	}
	return keys
}
