package repositories

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/tournament-manager/models"
)

var matchCols = []string{
	"id", "tournament_id", "phase", "group_label", "round", "order_in_round", "bracket_match_uid",
	"participant1_id", "participant2_id", "score1", "score2", "status", "winner_participant_id",
	"next_match_id", "winner_to_slot", "scheduled_at", "created_at", "updated_at",
}

func TestMatchRepositoryCreate(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresMatchRepository(db)
	now := time.Now()
	p1, p2 := 1, 2
	m := &models.Match{
		TournamentID: 3, Phase: models.PhaseKnockout, Round: 1, OrderInRound: 1, BracketMatchUID: "R1M1",
		Participant1ID: &p1, Participant2ID: &p2, Status: models.MatchScheduled, ScheduledAt: now,
	}

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO matches").
		WithArgs(3, models.PhaseKnockout, nil, 1, 1, "R1M1", 1, 2, models.MatchScheduled, now).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(50, now, now))
	mock.ExpectQuery("INSERT INTO matches").WillReturnError(pqErr(pqUniqueViolation, "matches_tournament_id_bracket_match_uid_key"))
	mock.ExpectRollback()

	tx, err := db.Begin()
	require.NoError(t, err)
	require.NoError(t, repo.Create(context.Background(), tx, m))
	assert.Equal(t, 50, m.ID)
	assert.ErrorIs(t, repo.Create(context.Background(), tx, m), ErrMatchConflict)
	require.NoError(t, tx.Rollback())
}

func TestMatchRepositoryGet(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresMatchRepository(db)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("FROM matches WHERE id = $1")).WithArgs(8).
		WillReturnRows(sqlmock.NewRows(matchCols).
			AddRow(8, 3, "group", "A", 2, 1, "GAR2M1", 4, 5, 1, 1, "completed", nil, nil, nil, now, now, now))
	m, err := repo.GetByID(context.Background(), nil, 8)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseGroup, m.Phase)
	assert.Equal(t, "A", m.Group())
	assert.Equal(t, 1, *m.Score2)
	assert.True(t, m.IsFinished())

	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).WithArgs(9).WillReturnRows(sqlmock.NewRows(matchCols))
	_, err = repo.GetForUpdate(context.Background(), nil, 9)
	assert.ErrorIs(t, err, ErrMatchNotFound)
}

func TestMatchRepositoryListFilter(t *testing.T) {
	db, mock := newMock(t)
	phase := models.PhaseGroup
	status := models.MatchScheduled
	round := 2

	mock.ExpectQuery(regexp.QuoteMeta("WHERE tournament_id = $1 AND phase = $2 AND status = $3 AND round = $4 ORDER BY")).
		WithArgs(3, phase, status, round).
		WillReturnRows(sqlmock.NewRows(matchCols))

	list, err := NewPostgresMatchRepository(db).ListByTournament(context.Background(), nil, 3, ListMatchesFilter{Phase: &phase, Status: &status, Round: &round})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestMatchRepositorySlotsAndResults(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresMatchRepository(db)
	ctx := context.Background()
	winner := 4

	assert.ErrorIs(t, repo.SetParticipantSlot(ctx, nil, 1, 3, &winner), ErrMatchInvalidSlot)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE matches SET participant2_id = $1")).WithArgs(winner, 10).WillReturnResult(sqlmock.NewResult(0, 1))
	assert.NoError(t, repo.SetParticipantSlot(ctx, nil, 10, 2, &winner))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE matches SET participant1_id = $1")).WithArgs(nil, 10).WillReturnResult(sqlmock.NewResult(0, 1))
	assert.NoError(t, repo.SetParticipantSlot(ctx, nil, 10, 1, nil))

	next, slot := 12, 1
	mock.ExpectExec("UPDATE matches SET next_match_id").WithArgs(next, slot, 10).WillReturnResult(sqlmock.NewResult(0, 1))
	assert.NoError(t, repo.UpdateNextMatchInfo(ctx, nil, 10, &next, &slot))

	s1, s2 := 2, 0
	now := time.Now()
	m := &models.Match{ID: 10, Score1: &s1, Score2: &s2, Status: models.MatchCompleted, WinnerParticipantID: &winner}
	mock.ExpectQuery("UPDATE matches").WithArgs(s1, s2, models.MatchCompleted, winner, 10).
		WillReturnRows(sqlmock.NewRows([]string{"updated_at"}).AddRow(now))
	require.NoError(t, repo.UpdateResult(ctx, nil, m))
	assert.Equal(t, now, m.UpdatedAt)

	mock.ExpectQuery("UPDATE matches").WillReturnRows(sqlmock.NewRows([]string{"updated_at"}))
	assert.ErrorIs(t, repo.UpdateResult(ctx, nil, &models.Match{ID: 99}), ErrMatchNotFound)
}

func TestMatchRepositoryCounts(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresMatchRepository(db)
	phase := models.PhaseGroup

	mock.ExpectQuery(regexp.QuoteMeta("status IN ('scheduled', 'in_progress') AND phase = $2")).WithArgs(3, phase).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	n, err := repo.CountUnfinished(context.Background(), nil, 3, &phase)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM matches WHERE tournament_id = $1")).WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))
	n, err = repo.CountByTournament(context.Background(), nil, 3, nil)
	require.NoError(t, err)
	assert.Equal(t, 7, n)
}
