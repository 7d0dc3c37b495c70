// Package rules describes how match outcomes are turned into table points and
// how tied participants are separated.
package rules

import (
	"errors"
	"fmt"
)

type TieBreaker string

const (
	TieBreakPoints          TieBreaker = "points"
	TieBreakHeadToHead      TieBreaker = "head_to_head"
	TieBreakScoreDifference TieBreaker = "score_difference"
	TieBreakScoreFor        TieBreaker = "score_for"
	TieBreakWins            TieBreaker = "wins"
	TieBreakFewestLosses    TieBreaker = "fewest_losses"
)

var knownTieBreakers = map[TieBreaker]bool{
	TieBreakPoints:          true,
	TieBreakHeadToHead:      true,
	TieBreakScoreDifference: true,
	TieBreakScoreFor:        true,
	TieBreakWins:            true,
	TieBreakFewestLosses:    true,
}

var (
	ErrNegativePoints     = errors.New("points values must not be negative")
	ErrPointsOrder        = errors.New("points for a win must be >= loss, and a draw must sit between them when draws are allowed")
	ErrUnknownTieBreaker  = errors.New("unknown tie-breaker")
	ErrDuplicateTieBreak  = errors.New("duplicated tie-breaker")
	ErrNegativeWalkover   = errors.New("walkover score must not be negative")
	ErrWalkoverNotDecided = errors.New("walkover score must favour the winner")
)

// ScoringRules defines point accounting for league and group phases.
type ScoringRules struct {
	PointsWin            int          `json:"points_win" yaml:"points_win"`
	PointsDraw           int          `json:"points_draw" yaml:"points_draw"`
	PointsLoss           int          `json:"points_loss" yaml:"points_loss"`
	AllowDraws           bool         `json:"allow_draws" yaml:"allow_draws"`
	WalkoverScoreFor     int          `json:"walkover_score_for" yaml:"walkover_score_for"`
	WalkoverScoreAgainst int          `json:"walkover_score_against" yaml:"walkover_score_against"`
	TieBreakers          []TieBreaker `json:"tie_breakers" yaml:"tie_breakers"`
}

func Default() ScoringRules {
	return ScoringRules{
		PointsWin:            3,
		PointsDraw:           1,
		PointsLoss:           0,
		AllowDraws:           true,
		WalkoverScoreFor:     3,
		WalkoverScoreAgainst: 0,
		TieBreakers: []TieBreaker{
			TieBreakPoints,
			TieBreakHeadToHead,
			TieBreakScoreDifference,
			TieBreakScoreFor,
		},
	}
}

// Validate checks r and returns a normalised copy where points is always the
// first tie-breaker.
func Validate(r ScoringRules) (ScoringRules, error) {
	if r.PointsWin < 0 || r.PointsDraw < 0 || r.PointsLoss < 0 {
		return r, ErrNegativePoints
	}
	if r.PointsWin < r.PointsLoss || (r.AllowDraws && (r.PointsWin < r.PointsDraw || r.PointsDraw < r.PointsLoss)) {
		return r, fmt.Errorf("%w: got win=%d draw=%d loss=%d", ErrPointsOrder, r.PointsWin, r.PointsDraw, r.PointsLoss)
	}
	if r.WalkoverScoreFor < 0 || r.WalkoverScoreAgainst < 0 {
		return r, ErrNegativeWalkover
	}
	if r.WalkoverScoreFor <= r.WalkoverScoreAgainst {
		return r, fmt.Errorf("%w: got %d-%d", ErrWalkoverNotDecided, r.WalkoverScoreFor, r.WalkoverScoreAgainst)
	}

	seen := make(map[TieBreaker]bool, len(r.TieBreakers))
	normalised := make([]TieBreaker, 0, len(r.TieBreakers)+1)
	for _, tb := range r.TieBreakers {
		if !knownTieBreakers[tb] {
			return r, fmt.Errorf("%w: %q", ErrUnknownTieBreaker, tb)
		}
		if seen[tb] {
			return r, fmt.Errorf("%w: %q", ErrDuplicateTieBreak, tb)
		}
		seen[tb] = true
		if tb != TieBreakPoints {
			normalised = append(normalised, tb)
		}
	}
	r.TieBreakers = append([]TieBreaker{TieBreakPoints}, normalised...)
	return r, nil
}
