package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/tournament-manager/models"
)

func TestTournamentService_Create(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	sport := e.seedSport("Football", nil)
	format := e.seedFormat(models.BracketSingleElimination, models.FormatParticipantSolo, "")
	now := time.Now()

	valid := func() CreateTournamentInput {
		return CreateTournamentInput{
			Name:            "  Spring Cup ",
			SportID:         sport.ID,
			FormatID:        format.ID,
			RegDate:         now,
			StartDate:       now.Add(24 * time.Hour),
			EndDate:         now.Add(48 * time.Hour),
			MaxParticipants: 8,
		}
	}

	created, err := e.tournaments.Create(ctx, organizer, valid())
	require.NoError(t, err)
	assert.Equal(t, "Spring Cup", created.Name)
	assert.Equal(t, models.StatusSoon, created.Status)
	assert.Equal(t, organizer.UserID, created.OrganizerID)

	_, err = e.tournaments.Create(ctx, organizer, valid())
	assert.ErrorIs(t, err, ErrTournamentNameConflict)

	cases := []struct {
		name   string
		actor  Actor
		mutate func(in *CreateTournamentInput)
		want   error
	}{
		{"anonymous", Actor{}, func(in *CreateTournamentInput) {}, ErrForbiddenOperation},
		{"empty name", organizer, func(in *CreateTournamentInput) { in.Name = " " }, ErrTournamentNameRequired},
		{"reg after start", organizer, func(in *CreateTournamentInput) { in.RegDate = in.StartDate.Add(time.Hour) }, ErrTournamentInvalidRegDate},
		{"end before start", organizer, func(in *CreateTournamentInput) { in.EndDate = in.StartDate }, ErrTournamentInvalidDateRange},
		{"missing dates", organizer, func(in *CreateTournamentInput) { in.EndDate = time.Time{} }, ErrTournamentDatesRequired},
		{"capacity", organizer, func(in *CreateTournamentInput) { in.MaxParticipants = 1 }, ErrTournamentInvalidCapacity},
		{"unknown sport", organizer, func(in *CreateTournamentInput) { in.SportID = 999 }, ErrSportNotFound},
		{"unknown format", organizer, func(in *CreateTournamentInput) { in.FormatID = 999 }, ErrFormatNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := valid()
			in.Name = "Other " + tc.name
			tc.mutate(&in)
			_, err := e.tournaments.Create(ctx, tc.actor, in)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestTournamentService_Update(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	sport := e.seedSport("Football", nil)
	other := e.seedSport("Hockey", nil)
	format := e.seedFormat(models.BracketSingleElimination, models.FormatParticipantSolo, "")
	tournament, _ := e.seedTournament(sport, format, models.StatusRegistration, 3)

	name := "Renamed"
	updated, err := e.tournaments.Update(ctx, organizer, tournament.ID, UpdateTournamentInput{Name: &name, SportID: &other.ID})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
	assert.Equal(t, other.ID, updated.SportID)

	two := 2
	_, err = e.tournaments.Update(ctx, organizer, tournament.ID, UpdateTournamentInput{MaxParticipants: &two})
	assert.ErrorIs(t, err, ErrCapacityBelowRegistrations)

	_, err = e.tournaments.Update(ctx, Actor{UserID: 100, Role: RoleOrganizer}, tournament.ID, UpdateTournamentInput{Name: &name})
	assert.ErrorIs(t, err, ErrForbiddenOperation)

	e.updateTournament(tournament.ID, func(t *models.Tournament) { t.Status = models.StatusActive })
	_, err = e.tournaments.Update(ctx, organizer, tournament.ID, UpdateTournamentInput{SportID: &sport.ID})
	assert.ErrorIs(t, err, ErrTournamentSetupLocked)

	e.updateTournament(tournament.ID, func(t *models.Tournament) { t.Status = models.StatusCompleted })
	_, err = e.tournaments.Update(ctx, organizer, tournament.ID, UpdateTournamentInput{Name: &name})
	assert.ErrorIs(t, err, ErrTournamentFinalized)
}

func TestTournamentService_UpdateStatus(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	sport := e.seedSport("Football", nil)
	format := e.seedFormat(models.BracketSingleElimination, models.FormatParticipantSolo, "")
	tournament, _ := e.seedTournament(sport, format, models.StatusSoon, 4)

	_, err := e.tournaments.UpdateStatus(ctx, organizer, tournament.ID, models.StatusActive)
	assert.ErrorIs(t, err, ErrTournamentInvalidStatusTransition)

	_, err = e.tournaments.UpdateStatus(ctx, organizer, tournament.ID, "finished")
	assert.ErrorIs(t, err, ErrTournamentInvalidStatus)

	got, err := e.tournaments.UpdateStatus(ctx, organizer, tournament.ID, models.StatusRegistration)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRegistration, got.Status)

	got, err = e.tournaments.UpdateStatus(ctx, organizer, tournament.ID, models.StatusActive)
	require.NoError(t, err)
	assert.Equal(t, models.StatusActive, got.Status)
	assert.NotNil(t, e.matchByUID(tournament.ID, "R2M1"), "bracket generated on start")

	_, err = e.tournaments.UpdateStatus(ctx, organizer, tournament.ID, models.StatusCompleted)
	assert.ErrorIs(t, err, ErrTournamentHasUnfinished)

	got, err = e.tournaments.UpdateStatus(ctx, organizer, tournament.ID, models.StatusCanceled)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCanceled, got.Status)
}

// finishedGroupStage returns an active group + knockout tournament whose
// group matches are all played.
func finishedGroupStage(t *testing.T, e *env) (*models.Tournament, []int) {
	t.Helper()
	ctx := context.Background()
	sport := e.seedSport("Football", nil)
	format := e.seedFormat(models.BracketGroupKnockout, models.FormatParticipantSolo, `{"groups":2,"advance_per_group":1}`)
	tournament, ids := e.seedTournament(sport, format, models.StatusActive, 4)
	_, err := e.brackets.GenerateBracket(ctx, organizer, tournament.ID)
	require.NoError(t, err)

	for _, pair := range [][2]int{{ids[0], ids[3]}, {ids[1], ids[2]}} {
		m := e.matchBetween(tournament.ID, models.PhaseGroup, pair[0], pair[1])
		require.NotNil(t, m)
		_, err = e.matches.RecordResult(ctx, organizer, m.ID, score(m, pair[0], 2, 0))
		require.NoError(t, err)
	}
	return tournament, ids
}

func TestTournamentService_CompletionWaitsForKnockout(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	tournament, _ := finishedGroupStage(t, e)

	_, err := e.tournaments.UpdateStatus(ctx, organizer, tournament.ID, models.StatusCompleted)
	assert.ErrorIs(t, err, ErrKnockoutNotPromoted)
	assert.Equal(t, models.StatusActive, e.tournament(tournament.ID).Status)

	_, err = e.brackets.PromoteToKnockout(ctx, organizer, tournament.ID)
	require.NoError(t, err)
	_, err = e.tournaments.UpdateStatus(ctx, organizer, tournament.ID, models.StatusCompleted)
	assert.ErrorIs(t, err, ErrTournamentHasUnfinished)
}

func TestTournamentService_AutoUpdateSkipsUnpromotedGroupStage(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	tournament, ids := finishedGroupStage(t, e)
	e.updateTournament(tournament.ID, func(t *models.Tournament) { t.EndDate = time.Now().Add(-time.Minute) })

	require.NoError(t, e.tournaments.AutoUpdateStatusesByDates(ctx, time.Now()))
	assert.Equal(t, models.StatusActive, e.tournament(tournament.ID).Status)

	_, err := e.brackets.PromoteToKnockout(ctx, organizer, tournament.ID)
	require.NoError(t, err)
	final := e.matchByUID(tournament.ID, "R1M1")
	require.NotNil(t, final)
	_, err = e.matches.RecordResult(ctx, organizer, final.ID, score(final, ids[0], 1, 0))
	require.NoError(t, err)

	stored := e.tournament(tournament.ID)
	assert.Equal(t, models.StatusCompleted, stored.Status)
	require.NotNil(t, stored.OverallWinnerParticipantID)
	assert.Equal(t, ids[0], *stored.OverallWinnerParticipantID)
}

func TestTournamentService_Delete(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	sport := e.seedSport("Football", nil)
	format := e.seedFormat(models.BracketSingleElimination, models.FormatParticipantSolo, "")

	empty, _ := e.seedTournament(sport, format, models.StatusSoon, 0)
	require.NoError(t, e.tournaments.Delete(ctx, organizer, empty.ID))
	_, err := e.tournaments.GetByID(ctx, empty.ID)
	assert.ErrorIs(t, err, ErrTournamentNotFound)

	active, _ := e.seedTournament(sport, format, models.StatusActive, 0)
	assert.ErrorIs(t, e.tournaments.Delete(ctx, organizer, active.ID), ErrTournamentDeleteNotAllowed)

	withPlayers, _ := e.seedTournament(sport, format, models.StatusRegistration, 2)
	assert.ErrorIs(t, e.tournaments.Delete(ctx, organizer, withPlayers.ID), ErrTournamentInUse)
}

func TestTournamentService_AutoUpdateStatusesByDates(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	sport := e.seedSport("Football", nil)
	format := e.seedFormat(models.BracketSingleElimination, models.FormatParticipantSolo, "")
	now := time.Now()

	opening, _ := e.seedTournament(sport, format, models.StatusSoon, 0)

	starting, _ := e.seedTournament(sport, format, models.StatusRegistration, 2)
	e.updateTournament(starting.ID, func(t *models.Tournament) { t.StartDate = now.Add(-time.Minute) })

	lonely, _ := e.seedTournament(sport, format, models.StatusRegistration, 1)
	e.updateTournament(lonely.ID, func(t *models.Tournament) { t.StartDate = now.Add(-time.Minute) })

	finishing, _ := e.seedTournament(sport, format, models.StatusActive, 0)
	e.updateTournament(finishing.ID, func(t *models.Tournament) { t.EndDate = now.Add(-time.Minute) })

	future, _ := e.seedTournament(sport, format, models.StatusSoon, 0)
	e.updateTournament(future.ID, func(t *models.Tournament) { t.RegDate = now.Add(time.Hour) })

	require.NoError(t, e.tournaments.AutoUpdateStatusesByDates(ctx, now))

	assert.Equal(t, models.StatusRegistration, e.tournament(opening.ID).Status)
	assert.Equal(t, models.StatusActive, e.tournament(starting.ID).Status)
	assert.NotNil(t, e.matchByUID(starting.ID, "R1M1"))
	assert.Equal(t, models.StatusCanceled, e.tournament(lonely.ID).Status)
	assert.Equal(t, models.StatusCompleted, e.tournament(finishing.ID).Status)
	assert.Equal(t, models.StatusSoon, e.tournament(future.ID).Status)
}

func TestTournamentService_List(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	sport := e.seedSport("Football", nil)
	format := e.seedFormat(models.BracketSingleElimination, models.FormatParticipantSolo, "")
	e.seedTournament(sport, format, models.StatusSoon, 0)
	active, _ := e.seedTournament(sport, format, models.StatusActive, 0)

	status := models.StatusActive
	list, err := e.tournaments.List(ctx, ListTournamentsFilter{Status: &status})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, active.ID, list[0].ID)

	bad := models.TournamentStatus("nope")
	_, err = e.tournaments.List(ctx, ListTournamentsFilter{Status: &bad})
	assert.ErrorIs(t, err, ErrTournamentInvalidStatus)
}
