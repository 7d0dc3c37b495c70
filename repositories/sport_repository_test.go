package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/tournament-manager/models"
	"github.com/Dosada05/tournament-manager/rules"
)

var sportCols = []string{"id", "name", "scoring_rules", "min_roster_size", "created_at"}

func TestSportRepositoryCreate(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresSportRepository(db)
	now := time.Now()

	mock.ExpectQuery("INSERT INTO sports").
		WithArgs("Football", sqlmock.AnyArg(), 11).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(4, now))

	sport := &models.Sport{Name: "Football", ScoringRules: rules.Default(), MinRosterSize: 11}
	require.NoError(t, repo.Create(context.Background(), sport))
	assert.Equal(t, 4, sport.ID)
	assert.Equal(t, now, sport.CreatedAt)
}

func TestSportRepositoryCreateConflict(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresSportRepository(db)

	mock.ExpectQuery("INSERT INTO sports").WillReturnError(pqErr(pqUniqueViolation, "sports_name_key"))

	err := repo.Create(context.Background(), &models.Sport{Name: "Chess", ScoringRules: rules.Default(), MinRosterSize: 1})
	assert.ErrorIs(t, err, ErrSportNameConflict)
}

func TestSportRepositoryGetByID(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresSportRepository(db)

	mock.ExpectQuery("SELECT id, name, scoring_rules").WithArgs(2).
		WillReturnRows(sqlmock.NewRows(sportCols).AddRow(2, "Basketball",
			[]byte(`{"points_win":2,"points_draw":0,"points_loss":1,"allow_draws":false,"walkover_score_for":20,"walkover_score_against":0,"tie_breakers":["points","head_to_head"]}`),
			5, time.Now()))

	sport, err := repo.GetByID(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, "Basketball", sport.Name)
	assert.Equal(t, 2, sport.ScoringRules.PointsWin)
	assert.False(t, sport.ScoringRules.AllowDraws)
	assert.Equal(t, []rules.TieBreaker{rules.TieBreakPoints, rules.TieBreakHeadToHead}, sport.ScoringRules.TieBreakers)
}

func TestSportRepositoryGetByIDNotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresSportRepository(db)

	mock.ExpectQuery("SELECT id, name, scoring_rules").WithArgs(9).WillReturnRows(sqlmock.NewRows(sportCols))

	_, err := repo.GetByID(context.Background(), 9)
	assert.ErrorIs(t, err, ErrSportNotFound)
}

func TestSportRepositoryGetAll(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresSportRepository(db)

	mock.ExpectQuery("FROM sports ORDER BY name").
		WillReturnRows(sqlmock.NewRows(sportCols).
			AddRow(1, "Chess", []byte(`{"points_win":1}`), 1, time.Now()).
			AddRow(2, "Football", []byte(`{"points_win":3}`), 11, time.Now()))

	sports, err := repo.GetAll(context.Background())
	require.NoError(t, err)
	require.Len(t, sports, 2)
	assert.Equal(t, 3, sports[1].ScoringRules.PointsWin)
}

func TestSportRepositoryDelete(t *testing.T) {
	t.Run("in use", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectExec("DELETE FROM sports").WithArgs(1).WillReturnError(pqErr(pqForeignKeyViolation, "teams_sport_id_fkey"))
		assert.ErrorIs(t, NewPostgresSportRepository(db).Delete(context.Background(), 1), ErrSportInUse)
	})
	t.Run("not found", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectExec("DELETE FROM sports").WithArgs(1).WillReturnResult(sqlmock.NewResult(0, 0))
		assert.ErrorIs(t, NewPostgresSportRepository(db).Delete(context.Background(), 1), ErrSportNotFound)
	})
	t.Run("ok", func(t *testing.T) {
		db, mock := newMock(t)
		mock.ExpectExec("DELETE FROM sports").WithArgs(1).WillReturnResult(sqlmock.NewResult(0, 1))
		assert.NoError(t, NewPostgresSportRepository(db).Delete(context.Background(), 1))
	})
}
