package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/tournament-manager/models"
	"github.com/Dosada05/tournament-manager/rules"
)

func TestSportService_CreateSport(t *testing.T) {
	ctx := context.Background()
	e := newEnv()

	chess, err := e.sports.CreateSport(ctx, CreateSportInput{Name: "Chess", Preset: "chess"})
	require.NoError(t, err)
	assert.Equal(t, 2, chess.ScoringRules.PointsWin)
	assert.Equal(t, 1, chess.ScoringRules.WalkoverScoreFor)

	plain, err := e.sports.CreateSport(ctx, CreateSportInput{Name: "Darts"})
	require.NoError(t, err)
	assert.Equal(t, rules.Default(), plain.ScoringRules)

	custom := rules.Default()
	custom.PointsWin = 2
	custom.TieBreakers = []rules.TieBreaker{rules.TieBreakScoreDifference}
	hockey, err := e.sports.CreateSport(ctx, CreateSportInput{Name: "Hockey", ScoringRules: &custom})
	require.NoError(t, err)
	assert.Equal(t, rules.TieBreakPoints, hockey.ScoringRules.TieBreakers[0])

	bad := rules.Default()
	bad.PointsDraw = 5
	cases := []struct {
		name  string
		input CreateSportInput
		want  error
	}{
		{"duplicate", CreateSportInput{Name: "chess"}, ErrSportNameConflict},
		{"empty name", CreateSportInput{Name: " "}, ErrSportNameRequired},
		{"unknown preset", CreateSportInput{Name: "Curling", Preset: "curling"}, ErrSportUnknownPreset},
		{"preset and rules", CreateSportInput{Name: "Golf", Preset: "chess", ScoringRules: &custom}, ErrSportPresetAndRules},
		{"invalid rules", CreateSportInput{Name: "Polo", ScoringRules: &bad}, ErrSportInvalidRules},
		{"negative roster", CreateSportInput{Name: "Rugby", MinRosterSize: -1}, ErrSportInvalidRosterSize},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.sports.CreateSport(ctx, tc.input)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	assert.Contains(t, e.sports.ListPresets(), "football")
}

func TestFormatService_CreateFormat(t *testing.T) {
	ctx := context.Background()
	e := newEnv()

	gk, err := e.formats.CreateFormat(ctx, CreateFormatInput{
		Name:            "Groups + playoff",
		BracketType:     models.BracketGroupKnockout,
		ParticipantType: models.FormatParticipantTeam,
		Settings:        &models.FormatSettings{Groups: 4},
	})
	require.NoError(t, err)
	require.NotNil(t, gk.Settings)
	assert.Equal(t, 4, gk.Settings.Groups)
	assert.Equal(t, 2, gk.Settings.AdvancePerGroup)
	assert.Equal(t, 1, gk.Settings.Legs)

	cases := []struct {
		name  string
		input CreateFormatInput
		want  error
	}{
		{"bad bracket", CreateFormatInput{Name: "x", BracketType: "Swiss", ParticipantType: models.FormatParticipantSolo}, ErrInvalidBracketType},
		{"bad participant", CreateFormatInput{Name: "x", BracketType: models.BracketRoundRobin, ParticipantType: "duo"}, ErrInvalidParticipantType},
		{"three legs", CreateFormatInput{Name: "x", BracketType: models.BracketRoundRobin, ParticipantType: models.FormatParticipantSolo, Settings: &models.FormatSettings{Legs: 3}}, ErrInvalidFormatSettings},
		{"two leg knockout", CreateFormatInput{Name: "x", BracketType: models.BracketSingleElimination, ParticipantType: models.FormatParticipantSolo, Settings: &models.FormatSettings{Legs: 2}}, ErrInvalidFormatSettings},
		{"one group", CreateFormatInput{Name: "x", BracketType: models.BracketGroupKnockout, ParticipantType: models.FormatParticipantSolo, Settings: &models.FormatSettings{Groups: 1}}, ErrInvalidFormatSettings},
		{"groups on league", CreateFormatInput{Name: "x", BracketType: models.BracketRoundRobin, ParticipantType: models.FormatParticipantSolo, Settings: &models.FormatSettings{Groups: 2}}, ErrSettingsNotApplicableForType},
		{"duplicate", CreateFormatInput{Name: "Groups + playoff", BracketType: models.BracketRoundRobin, ParticipantType: models.FormatParticipantSolo}, ErrFormatNameConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := e.formats.CreateFormat(ctx, tc.input)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestPlayerService(t *testing.T) {
	ctx := context.Background()
	e := newEnv()

	email := " Anna@Example.COM "
	p, err := e.players.CreatePlayer(ctx, CreatePlayerInput{FirstName: "Anna", LastName: "Ivanova", Email: &email})
	require.NoError(t, err)
	assert.Equal(t, "anna@example.com", *p.Email)

	_, err = e.players.CreatePlayer(ctx, CreatePlayerInput{FirstName: "Anna", LastName: "Petrova", Email: &email})
	assert.ErrorIs(t, err, ErrPlayerEmailConflict)

	broken := "not-an-email"
	_, err = e.players.CreatePlayer(ctx, CreatePlayerInput{FirstName: "A", LastName: "B", Email: &broken})
	assert.ErrorIs(t, err, ErrPlayerInvalidEmail)

	_, err = e.players.CreatePlayer(ctx, CreatePlayerInput{FirstName: "Anna"})
	assert.ErrorIs(t, err, ErrPlayerNameRequired)

	_, err = e.players.GetPlayerByID(ctx, 777)
	assert.ErrorIs(t, err, ErrPlayerNotFound)
}

func TestTeamService_Roster(t *testing.T) {
	ctx := context.Background()
	e := newEnv()
	sport := e.seedSport("Football", nil)

	captain, err := e.players.CreatePlayer(ctx, CreatePlayerInput{FirstName: "Ivan", LastName: "Petrov"})
	require.NoError(t, err)
	mate, err := e.players.CreatePlayer(ctx, CreatePlayerInput{FirstName: "Oleg", LastName: "Orlov"})
	require.NoError(t, err)

	team, err := e.teams.CreateTeam(ctx, CreateTeamInput{Name: "Wolves", SportID: sport.ID, CaptainID: &captain.ID})
	require.NoError(t, err)

	_, err = e.teams.CreateTeam(ctx, CreateTeamInput{Name: "Ghosts", SportID: 999})
	assert.ErrorIs(t, err, ErrSportNotFound)

	assert.ErrorIs(t, e.teams.AddMember(ctx, team.ID, captain.ID), ErrRosterMemberConflict)
	require.NoError(t, e.teams.AddMember(ctx, team.ID, mate.ID))
	assert.ErrorIs(t, e.teams.AddMember(ctx, team.ID, 4321), ErrPlayerNotFound)

	full, err := e.teams.GetTeamByID(ctx, team.ID)
	require.NoError(t, err)
	assert.Len(t, full.Members, 2)
	require.NotNil(t, full.Sport)
	assert.Equal(t, "Football", full.Sport.Name)

	assert.ErrorIs(t, e.teams.RemoveMember(ctx, team.ID, captain.ID), ErrCannotRemoveCaptain)

	_, err = e.teams.UpdateTeam(ctx, team.ID, UpdateTeamInput{CaptainID: &mate.ID})
	require.NoError(t, err)
	require.NoError(t, e.teams.RemoveMember(ctx, team.ID, captain.ID))
	assert.ErrorIs(t, e.teams.RemoveMember(ctx, team.ID, captain.ID), ErrNotTeamMember)

	_, err = e.teams.UpdateTeam(ctx, team.ID, UpdateTeamInput{CaptainID: &captain.ID})
	assert.ErrorIs(t, err, ErrCaptainMustBeMember)
}
