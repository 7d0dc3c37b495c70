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

var tournamentCols = []string{
	"id", "name", "description", "sport_id", "format_id", "organizer_id",
	"reg_date", "start_date", "end_date", "location", "status", "max_participants",
	"overall_winner_participant_id", "published_at", "results_url", "created_at",
}

func tournamentRow(rows *sqlmock.Rows, id int, status models.TournamentStatus) *sqlmock.Rows {
	now := time.Now()
	return rows.AddRow(id, "Cup", nil, 1, 2, 3, now, now.Add(time.Hour), now.Add(2*time.Hour), "Arena", string(status), 8, nil, nil, nil, now)
}

func TestTournamentRepositoryCreate(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresTournamentRepository(db)
	tour := &models.Tournament{Name: "Cup", SportID: 1, FormatID: 2, OrganizerID: 3, Status: models.StatusSoon, MaxParticipants: 8}

	mock.ExpectQuery("INSERT INTO tournaments").WillReturnError(pqErr(pqUniqueViolation, "tournaments_organizer_id_name_key"))
	assert.ErrorIs(t, repo.Create(context.Background(), tour), ErrTournamentNameConflict)

	mock.ExpectQuery("INSERT INTO tournaments").WillReturnError(pqErr(pqForeignKeyViolation, "tournaments_format_id_fkey"))
	assert.ErrorIs(t, repo.Create(context.Background(), tour), ErrTournamentInvalidFormat)

	mock.ExpectQuery("INSERT INTO tournaments").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(10, time.Now()))
	require.NoError(t, repo.Create(context.Background(), tour))
	assert.Equal(t, 10, tour.ID)
}

func TestTournamentRepositoryGet(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresTournamentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM tournaments WHERE id = $1")).WithArgs(5).
		WillReturnRows(tournamentRow(sqlmock.NewRows(tournamentCols), 5, models.StatusActive))
	got, err := repo.GetByID(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, got.Status)
	assert.Nil(t, got.Description)
	require.NotNil(t, got.Location)
	assert.Equal(t, "Arena", *got.Location)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $1 FOR UPDATE")).WithArgs(6).
		WillReturnRows(sqlmock.NewRows(tournamentCols))
	tx, err := db.Begin()
	require.NoError(t, err)
	_, err = repo.GetForUpdate(context.Background(), tx, 6)
	assert.ErrorIs(t, err, ErrTournamentNotFound)
	mock.ExpectRollback()
	require.NoError(t, tx.Rollback())
}

func TestTournamentRepositoryListFilters(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresTournamentRepository(db)

	sportID := 1
	status := models.StatusRegistration
	mock.ExpectQuery(regexp.QuoteMeta("AND sport_id = $1 AND status = $2 ORDER BY start_date DESC, created_at DESC LIMIT $3 OFFSET $4")).
		WithArgs(1, status, 20, 40).
		WillReturnRows(tournamentRow(tournamentRow(sqlmock.NewRows(tournamentCols), 1, status), 2, status))

	list, err := repo.List(context.Background(), ListTournamentsFilter{SportID: &sportID, Status: &status, Limit: 20, Offset: 40})
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestTournamentRepositoryUpdates(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresTournamentRepository(db)
	ctx := context.Background()

	mock.ExpectExec("UPDATE tournaments SET status").WithArgs(models.StatusCanceled, 3).WillReturnResult(sqlmock.NewResult(0, 0))
	assert.ErrorIs(t, repo.UpdateStatus(ctx, nil, 3, models.StatusCanceled), ErrTournamentNotFound)

	winner := 12
	mock.ExpectExec("UPDATE tournaments SET overall_winner_participant_id").WithArgs(&winner, 3).
		WillReturnError(pqErr(pqForeignKeyViolation, "fk_tournaments_overall_winner"))
	assert.ErrorIs(t, repo.UpdateOverallWinner(ctx, nil, 3, &winner), ErrParticipantNotFound)

	url := "https://cdn.example/results/tournament-3/latest.json"
	published := time.Now()
	mock.ExpectExec("UPDATE tournaments SET published_at").WithArgs(published, &url, 3).WillReturnResult(sqlmock.NewResult(0, 1))
	assert.NoError(t, repo.MarkPublished(ctx, 3, published, &url))

	mock.ExpectExec("DELETE FROM tournaments").WithArgs(3).WillReturnError(pqErr(pqForeignKeyViolation, "matches_tournament_id_fkey"))
	assert.ErrorIs(t, repo.Delete(ctx, 3), ErrTournamentInUse)
}

func TestTournamentRepositoryAutoStatusCandidates(t *testing.T) {
	db, mock := newMock(t)
	repo := NewPostgresTournamentRepository(db)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("k.phase = $6")).
		WithArgs(models.StatusSoon, models.StatusRegistration, models.StatusActive, now,
			models.BracketGroupKnockout, models.PhaseKnockout).
		WillReturnRows(tournamentRow(tournamentRow(sqlmock.NewRows(tournamentCols), 1, models.StatusSoon), 2, models.StatusActive))

	list, err := repo.GetTournamentsForAutoStatusUpdate(context.Background(), nil, now)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, models.StatusActive, list[1].Status)
}
