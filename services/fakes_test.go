package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Dosada05/tournament-manager/brackets"
	"github.com/Dosada05/tournament-manager/cache"
	"github.com/Dosada05/tournament-manager/models"
	"github.com/Dosada05/tournament-manager/repositories"
	"github.com/Dosada05/tournament-manager/rules"
	"github.com/Dosada05/tournament-manager/storage"
)

// memDB - общее in-memory хранилище для фейковых репозиториев.
type memDB struct {
	mu           sync.Mutex
	seq          int
	sports       map[int]*models.Sport
	formats      map[int]*models.Format
	players      map[int]*models.Player
	teams        map[int]*models.Team
	rosters      map[int]map[int]bool
	tournaments  map[int]*models.Tournament
	participants map[int]*models.Participant
	matches      map[int]*models.Match
	standings    map[int][]*models.TournamentStanding
	rowLocks     map[int]*sync.Mutex
}

func newMemDB() *memDB {
	return &memDB{
		sports:       map[int]*models.Sport{},
		formats:      map[int]*models.Format{},
		players:      map[int]*models.Player{},
		teams:        map[int]*models.Team{},
		rosters:      map[int]map[int]bool{},
		tournaments:  map[int]*models.Tournament{},
		participants: map[int]*models.Participant{},
		matches:      map[int]*models.Match{},
		standings:    map[int][]*models.TournamentStanding{},
		rowLocks:     map[int]*sync.Mutex{},
	}
}

func (db *memDB) nextID() int {
	db.seq++
	return db.seq
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// rowLock возвращает мьютекс строки турнира id.
func (db *memDB) rowLock(id int) *sync.Mutex {
	db.mu.Lock()
	defer db.mu.Unlock()
	l, ok := db.rowLocks[id]
	if !ok {
		l = &sync.Mutex{}
		db.rowLocks[id] = l
	}
	return l
}

// fakeTx hands every transaction its own executor. Tournament rows locked by
// GetForUpdate stay locked until fn returns, like SELECT ... FOR UPDATE.
type fakeTx struct{ db *memDB }

type fakeTxExec struct {
	repositories.SQLExecutor
	held map[int]*sync.Mutex
}

func (f fakeTx) WithinTx(ctx context.Context, fn func(tx repositories.SQLExecutor) error) error {
	exec := &fakeTxExec{held: map[int]*sync.Mutex{}}
	defer func() {
		for _, l := range exec.held {
			l.Unlock()
		}
	}()
	return fn(exec)
}

type recordingHub struct {
	mu       sync.Mutex
	messages []brackets.WebSocketMessage
}

func (h *recordingHub) BroadcastToRoom(roomID string, message interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if m, ok := message.(brackets.WebSocketMessage); ok {
		h.messages = append(h.messages, m)
	}
}

func (h *recordingHub) types() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.messages))
	for _, m := range h.messages {
		out = append(out, m.Type)
	}
	return out
}

// --- sports ---

type fakeSportRepo struct{ db *memDB }

func (r fakeSportRepo) Create(ctx context.Context, s *models.Sport) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, ex := range r.db.sports {
		if strings.EqualFold(ex.Name, s.Name) {
			return repositories.ErrSportNameConflict
		}
	}
	s.ID = r.db.nextID()
	c := *s
	r.db.sports[s.ID] = &c
	return nil
}

func (r fakeSportRepo) GetByID(ctx context.Context, id int) (*models.Sport, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	s, ok := r.db.sports[id]
	if !ok {
		return nil, repositories.ErrSportNotFound
	}
	c := *s
	return &c, nil
}

func (r fakeSportRepo) GetAll(ctx context.Context) ([]models.Sport, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := []models.Sport{}
	for _, s := range r.db.sports {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r fakeSportRepo) Update(ctx context.Context, s *models.Sport) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.sports[s.ID]; !ok {
		return repositories.ErrSportNotFound
	}
	c := *s
	r.db.sports[s.ID] = &c
	return nil
}

func (r fakeSportRepo) Delete(ctx context.Context, id int) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.sports[id]; !ok {
		return repositories.ErrSportNotFound
	}
	delete(r.db.sports, id)
	return nil
}

func (r fakeSportRepo) ExistsByName(ctx context.Context, name string) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, s := range r.db.sports {
		if strings.EqualFold(s.Name, name) {
			return true, nil
		}
	}
	return false, nil
}

// --- formats ---

type fakeFormatRepo struct{ db *memDB }

func (r fakeFormatRepo) Create(ctx context.Context, f *models.Format) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, ex := range r.db.formats {
		if ex.Name == f.Name {
			return repositories.ErrFormatNameConflict
		}
	}
	f.ID = r.db.nextID()
	c := *f
	r.db.formats[f.ID] = &c
	return nil
}

func (r fakeFormatRepo) GetByID(ctx context.Context, id int) (*models.Format, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	f, ok := r.db.formats[id]
	if !ok {
		return nil, repositories.ErrFormatNotFound
	}
	c := *f
	return &c, nil
}

func (r fakeFormatRepo) GetAll(ctx context.Context) ([]models.Format, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := []models.Format{}
	for _, f := range r.db.formats {
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r fakeFormatRepo) Update(ctx context.Context, f *models.Format) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.formats[f.ID]; !ok {
		return repositories.ErrFormatNotFound
	}
	c := *f
	r.db.formats[f.ID] = &c
	return nil
}

func (r fakeFormatRepo) Delete(ctx context.Context, id int) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.formats[id]; !ok {
		return repositories.ErrFormatNotFound
	}
	delete(r.db.formats, id)
	return nil
}

// --- players ---

type fakePlayerRepo struct{ db *memDB }

func (r fakePlayerRepo) Create(ctx context.Context, p *models.Player) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, ex := range r.db.players {
		if p.Email != nil && ex.Email != nil && *ex.Email == *p.Email {
			return repositories.ErrPlayerEmailConflict
		}
	}
	p.ID = r.db.nextID()
	c := *p
	r.db.players[p.ID] = &c
	return nil
}

func (r fakePlayerRepo) GetByID(ctx context.Context, id int) (*models.Player, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.players[id]
	if !ok {
		return nil, repositories.ErrPlayerNotFound
	}
	c := *p
	return &c, nil
}

func (r fakePlayerRepo) List(ctx context.Context, filter repositories.ListPlayersFilter) ([]models.Player, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := []models.Player{}
	for _, p := range r.db.players {
		if filter.Search == "" || strings.Contains(strings.ToLower(p.FirstName+" "+p.LastName), strings.ToLower(filter.Search)) {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r fakePlayerRepo) Update(ctx context.Context, p *models.Player) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.players[p.ID]; !ok {
		return repositories.ErrPlayerNotFound
	}
	c := *p
	r.db.players[p.ID] = &c
	return nil
}

func (r fakePlayerRepo) Delete(ctx context.Context, id int) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.players[id]; !ok {
		return repositories.ErrPlayerNotFound
	}
	delete(r.db.players, id)
	return nil
}

func (r fakePlayerRepo) ListByTeamID(ctx context.Context, teamID int) ([]models.Player, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := []models.Player{}
	for id := range r.db.rosters[teamID] {
		out = append(out, *r.db.players[id])
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// --- teams and rosters ---

type fakeTeamRepo struct{ db *memDB }

func (r fakeTeamRepo) Create(ctx context.Context, t *models.Team) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, ex := range r.db.teams {
		if ex.Name == t.Name {
			return repositories.ErrTeamNameConflict
		}
	}
	t.ID = r.db.nextID()
	c := *t
	r.db.teams[t.ID] = &c
	return nil
}

func (r fakeTeamRepo) GetByID(ctx context.Context, id int) (*models.Team, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	t, ok := r.db.teams[id]
	if !ok {
		return nil, repositories.ErrTeamNotFound
	}
	c := *t
	return &c, nil
}

func (r fakeTeamRepo) List(ctx context.Context, filter repositories.ListTeamsFilter) ([]models.Team, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := []models.Team{}
	for _, t := range r.db.teams {
		if filter.SportID == nil || *filter.SportID == t.SportID {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r fakeTeamRepo) Update(ctx context.Context, t *models.Team) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.teams[t.ID]; !ok {
		return repositories.ErrTeamNotFound
	}
	for _, ex := range r.db.teams {
		if ex.ID != t.ID && ex.Name == t.Name {
			return repositories.ErrTeamNameConflict
		}
	}
	c := *t
	r.db.teams[t.ID] = &c
	return nil
}

func (r fakeTeamRepo) Delete(ctx context.Context, id int) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.teams[id]; !ok {
		return repositories.ErrTeamNotFound
	}
	for _, p := range r.db.participants {
		if p.TeamID != nil && *p.TeamID == id {
			return repositories.ErrTeamInUse
		}
	}
	delete(r.db.teams, id)
	return nil
}

type fakeRosterRepo struct{ db *memDB }

func (r fakeRosterRepo) AddMember(ctx context.Context, teamID, playerID int) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if r.db.rosters[teamID] == nil {
		r.db.rosters[teamID] = map[int]bool{}
	}
	if r.db.rosters[teamID][playerID] {
		return repositories.ErrRosterMemberExists
	}
	r.db.rosters[teamID][playerID] = true
	return nil
}

func (r fakeRosterRepo) RemoveMember(ctx context.Context, teamID, playerID int) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if !r.db.rosters[teamID][playerID] {
		return repositories.ErrRosterMemberNotFound
	}
	delete(r.db.rosters[teamID], playerID)
	return nil
}

func (r fakeRosterRepo) CountMembers(ctx context.Context, teamID int) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return len(r.db.rosters[teamID]), nil
}

func (r fakeRosterRepo) IsMember(ctx context.Context, teamID, playerID int) (bool, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return r.db.rosters[teamID][playerID], nil
}

// --- tournaments ---

type fakeTournamentRepo struct{ db *memDB }

func (r fakeTournamentRepo) Create(ctx context.Context, t *models.Tournament) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, ex := range r.db.tournaments {
		if ex.OrganizerID == t.OrganizerID && ex.Name == t.Name {
			return repositories.ErrTournamentNameConflict
		}
	}
	t.ID = r.db.nextID()
	t.CreatedAt = time.Now()
	c := *t
	r.db.tournaments[t.ID] = &c
	return nil
}

func (r fakeTournamentRepo) GetByID(ctx context.Context, id int) (*models.Tournament, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	t, ok := r.db.tournaments[id]
	if !ok {
		return nil, repositories.ErrTournamentNotFound
	}
	c := *t
	c.Sport, c.Format = nil, nil
	return &c, nil
}

func (r fakeTournamentRepo) GetForUpdate(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Tournament, error) {
	if tx, ok := exec.(*fakeTxExec); ok {
		if _, held := tx.held[id]; !held {
			l := r.db.rowLock(id)
			l.Lock()
			tx.held[id] = l
		}
	}
	return r.GetByID(ctx, id)
}

func (r fakeTournamentRepo) List(ctx context.Context, filter repositories.ListTournamentsFilter) ([]models.Tournament, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := []models.Tournament{}
	for _, t := range r.db.tournaments {
		if filter.Status != nil && *filter.Status != t.Status {
			continue
		}
		if filter.OrganizerID != nil && *filter.OrganizerID != t.OrganizerID {
			continue
		}
		if filter.SportID != nil && *filter.SportID != t.SportID {
			continue
		}
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r fakeTournamentRepo) Update(ctx context.Context, t *models.Tournament) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.tournaments[t.ID]; !ok {
		return repositories.ErrTournamentNotFound
	}
	c := *t
	r.db.tournaments[t.ID] = &c
	return nil
}

func (r fakeTournamentRepo) UpdateStatus(ctx context.Context, exec repositories.SQLExecutor, id int, status models.TournamentStatus) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	t, ok := r.db.tournaments[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	t.Status = status
	return nil
}

func (r fakeTournamentRepo) Delete(ctx context.Context, id int) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.tournaments[id]; !ok {
		return repositories.ErrTournamentNotFound
	}
	for _, p := range r.db.participants {
		if p.TournamentID == id {
			return repositories.ErrTournamentInUse
		}
	}
	delete(r.db.tournaments, id)
	return nil
}

func (r fakeTournamentRepo) UpdateOverallWinner(ctx context.Context, exec repositories.SQLExecutor, id int, winner *int) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	t, ok := r.db.tournaments[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	t.OverallWinnerParticipantID = winner
	return nil
}

func (r fakeTournamentRepo) MarkPublished(ctx context.Context, id int, at time.Time, url *string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	t, ok := r.db.tournaments[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	t.PublishedAt, t.ResultsURL = &at, url
	return nil
}

func (r fakeTournamentRepo) GetTournamentsForAutoStatusUpdate(ctx context.Context, exec repositories.SQLExecutor, now time.Time) ([]*models.Tournament, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var out []*models.Tournament
	for _, t := range r.db.tournaments {
		due := false
		switch t.Status {
		case models.StatusSoon:
			due = !t.RegDate.After(now)
		case models.StatusRegistration:
			due = !t.StartDate.After(now)
		case models.StatusActive:
			due = !t.EndDate.After(now) && r.db.unfinishedLocked(t.ID) == 0
		}
		if due {
			c := *t
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (db *memDB) unfinishedLocked(tournamentID int) int {
	n := 0
	for _, m := range db.matches {
		if m.TournamentID == tournamentID && (m.Status == models.MatchScheduled || m.Status == models.MatchInProgress) {
			n++
		}
	}
	return n
}

// --- participants ---

type fakeParticipantRepo struct{ db *memDB }

func (r fakeParticipantRepo) Create(ctx context.Context, exec repositories.SQLExecutor, p *models.Participant) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, ex := range r.db.participants {
		if ex.TournamentID != p.TournamentID {
			continue
		}
		if (p.PlayerID != nil && ex.PlayerID != nil && *ex.PlayerID == *p.PlayerID) ||
			(p.TeamID != nil && ex.TeamID != nil && *ex.TeamID == *p.TeamID) {
			return repositories.ErrParticipantConflict
		}
	}
	p.ID = r.db.nextID()
	p.CreatedAt = time.Now()
	c := *p
	r.db.participants[p.ID] = &c
	return nil
}

func (r fakeParticipantRepo) FindByID(ctx context.Context, id int) (*models.Participant, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.participants[id]
	if !ok {
		return nil, repositories.ErrParticipantNotFound
	}
	c := *p
	return &c, nil
}

func (r fakeParticipantRepo) UpdateStatus(ctx context.Context, exec repositories.SQLExecutor, id int, status models.ParticipantStatus) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.participants[id]
	if !ok {
		return repositories.ErrParticipantNotFound
	}
	p.Status = status
	return nil
}

func (r fakeParticipantRepo) UpdateSeed(ctx context.Context, id int, seed *int) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.participants[id]
	if !ok {
		return repositories.ErrParticipantNotFound
	}
	p.Seed = seed
	return nil
}

func (r fakeParticipantRepo) ListByTournament(ctx context.Context, exec repositories.SQLExecutor, tournamentID int, status *models.ParticipantStatus, includeNested bool) ([]*models.Participant, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := []*models.Participant{}
	for _, p := range r.db.participants {
		if p.TournamentID != tournamentID || (status != nil && *status != p.Status) {
			continue
		}
		c := *p
		if includeNested {
			if c.PlayerID != nil {
				if pl, ok := r.db.players[*c.PlayerID]; ok {
					plc := *pl
					c.Player = &plc
				}
			}
			if c.TeamID != nil {
				if t, ok := r.db.teams[*c.TeamID]; ok {
					tc := *t
					c.Team = &tc
				}
			}
		}
		out = append(out, &c)
	}
	brackets.SortBySeed(out)
	return out, nil
}

func (r fakeParticipantRepo) CountActive(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	n := 0
	for _, p := range r.db.participants {
		if p.TournamentID == tournamentID && (p.Status == models.ParticipantPending || p.Status == models.ParticipantApproved) {
			n++
		}
	}
	return n, nil
}

func (r fakeParticipantRepo) Delete(ctx context.Context, id int) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if _, ok := r.db.participants[id]; !ok {
		return repositories.ErrParticipantNotFound
	}
	delete(r.db.participants, id)
	return nil
}

// --- matches ---

type fakeMatchRepo struct{ db *memDB }

func (r fakeMatchRepo) Create(ctx context.Context, exec repositories.SQLExecutor, m *models.Match) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, ex := range r.db.matches {
		if ex.TournamentID == m.TournamentID && ex.BracketMatchUID == m.BracketMatchUID {
			return repositories.ErrMatchConflict
		}
	}
	m.ID = r.db.nextID()
	m.CreatedAt, m.UpdatedAt = time.Now(), time.Now()
	c := *m
	r.db.matches[m.ID] = &c
	return nil
}

func (r fakeMatchRepo) GetByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Match, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	m, ok := r.db.matches[id]
	if !ok {
		return nil, repositories.ErrMatchNotFound
	}
	c := *m
	return &c, nil
}

func (r fakeMatchRepo) GetForUpdate(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Match, error) {
	return r.GetByID(ctx, exec, id)
}

func (r fakeMatchRepo) ListByTournament(ctx context.Context, exec repositories.SQLExecutor, tournamentID int, filter repositories.ListMatchesFilter) ([]*models.Match, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := []*models.Match{}
	for _, m := range r.db.matches {
		if m.TournamentID != tournamentID {
			continue
		}
		if filter.Phase != nil && *filter.Phase != m.Phase {
			continue
		}
		if filter.Status != nil && *filter.Status != m.Status {
			continue
		}
		if filter.Round != nil && *filter.Round != m.Round {
			continue
		}
		c := *m
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Phase != b.Phase {
			return phaseOrder[a.Phase] < phaseOrder[b.Phase]
		}
		if a.Group() != b.Group() {
			return a.Group() < b.Group()
		}
		if a.Round != b.Round {
			return a.Round < b.Round
		}
		return a.OrderInRound < b.OrderInRound
	})
	return out, nil
}

func (r fakeMatchRepo) UpdateNextMatchInfo(ctx context.Context, exec repositories.SQLExecutor, id int, next *int, slot *int) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	m, ok := r.db.matches[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	m.NextMatchID, m.WinnerToSlot = next, slot
	return nil
}

func (r fakeMatchRepo) SetParticipantSlot(ctx context.Context, exec repositories.SQLExecutor, id int, slot int, pid *int) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	m, ok := r.db.matches[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	switch slot {
	case 1:
		m.Participant1ID = pid
	case 2:
		m.Participant2ID = pid
	default:
		return repositories.ErrMatchInvalidSlot
	}
	return nil
}

func (r fakeMatchRepo) UpdateResult(ctx context.Context, exec repositories.SQLExecutor, m *models.Match) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	stored, ok := r.db.matches[m.ID]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	stored.Score1, stored.Score2 = m.Score1, m.Score2
	stored.Status, stored.WinnerParticipantID = m.Status, m.WinnerParticipantID
	stored.UpdatedAt = time.Now()
	m.UpdatedAt = stored.UpdatedAt
	return nil
}

func (r fakeMatchRepo) UpdateScheduledAt(ctx context.Context, exec repositories.SQLExecutor, id int, at time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	m, ok := r.db.matches[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	m.ScheduledAt = at
	return nil
}

func (r fakeMatchRepo) CountByTournament(ctx context.Context, exec repositories.SQLExecutor, tournamentID int, phase *models.MatchPhase) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	n := 0
	for _, m := range r.db.matches {
		if m.TournamentID == tournamentID && (phase == nil || *phase == m.Phase) {
			n++
		}
	}
	return n, nil
}

func (r fakeMatchRepo) CountUnfinished(ctx context.Context, exec repositories.SQLExecutor, tournamentID int, phase *models.MatchPhase) (int, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	n := 0
	for _, m := range r.db.matches {
		if m.TournamentID == tournamentID && (phase == nil || *phase == m.Phase) &&
			(m.Status == models.MatchScheduled || m.Status == models.MatchInProgress) {
			n++
		}
	}
	return n, nil
}

// --- standings ---

type fakeStandingRepo struct{ db *memDB }

func (r fakeStandingRepo) BatchCreate(ctx context.Context, exec repositories.SQLExecutor, list []*models.TournamentStanding) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, st := range list {
		st.ID = r.db.nextID()
		c := *st
		r.db.standings[st.TournamentID] = append(r.db.standings[st.TournamentID], &c)
	}
	return nil
}

func (r fakeStandingRepo) ListByTournament(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) ([]*models.TournamentStanding, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	out := []*models.TournamentStanding{}
	for _, st := range r.db.standings[tournamentID] {
		c := *st
		out = append(out, &c)
	}
	return out, nil
}

func (r fakeStandingRepo) DeleteByTournamentID(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	delete(r.db.standings, tournamentID)
	return nil
}

// env собирает сервисы поверх одного memDB.
type env struct {
	db           *memDB
	hub          *recordingHub
	sports       SportService
	formats      FormatService
	players      PlayerService
	teams        TeamService
	tournaments  TournamentService
	participants ParticipantService
	standings    StandingsService
	brackets     BracketService
	matches      MatchService
	publication  PublicationService
}

type envOptions struct {
	cache cache.ResultsCache
	store storage.ObjectStore
}

func newEnv(opts ...func(*envOptions)) *env {
	var o envOptions
	for _, fn := range opts {
		fn(&o)
	}
	db := newMemDB()
	hub := &recordingHub{}
	logger := testLogger()

	sportRepo := fakeSportRepo{db}
	formatRepo := fakeFormatRepo{db}
	playerRepo := fakePlayerRepo{db}
	teamRepo := fakeTeamRepo{db}
	rosterRepo := fakeRosterRepo{db}
	tournamentRepo := fakeTournamentRepo{db}
	participantRepo := fakeParticipantRepo{db}
	matchRepo := fakeMatchRepo{db}
	standingRepo := fakeStandingRepo{db}

	standingsSvc := NewStandingsService(tournamentRepo, sportRepo, formatRepo, participantRepo, matchRepo, standingRepo, fakeTx{db}, logger)
	bracketSvc := NewBracketService(tournamentRepo, sportRepo, formatRepo, participantRepo, matchRepo, standingsSvc, fakeTx{db}, hub, logger)

	e := &env{
		db:           db,
		hub:          hub,
		sports:       NewSportService(sportRepo, nil),
		formats:      NewFormatService(formatRepo),
		players:      NewPlayerService(playerRepo),
		teams:        NewTeamService(teamRepo, rosterRepo, playerRepo, sportRepo),
		tournaments:  NewTournamentService(tournamentRepo, sportRepo, formatRepo, participantRepo, matchRepo, bracketSvc, fakeTx{db}, logger),
		participants: NewParticipantService(participantRepo, tournamentRepo, sportRepo, formatRepo, playerRepo, teamRepo, rosterRepo, matchRepo, fakeTx{db}, logger),
		standings:    standingsSvc,
		brackets:     bracketSvc,
		matches:      NewMatchService(tournamentRepo, sportRepo, formatRepo, matchRepo, standingsSvc, fakeTx{db}, hub, o.cache, logger),
		publication:  NewPublicationService(tournamentRepo, sportRepo, formatRepo, participantRepo, matchRepo, standingsSvc, o.store, o.cache, hub, logger),
	}
	return e
}

var organizer = Actor{UserID: 7, Role: RoleOrganizer}

// seedSport stores a sport with the default rules (or r).
func (e *env) seedSport(name string, r *rules.ScoringRules) *models.Sport {
	s := &models.Sport{Name: name, ScoringRules: rules.Default()}
	if r != nil {
		s.ScoringRules = *r
	}
	_ = fakeSportRepo{e.db}.Create(context.Background(), s)
	return s
}

func (e *env) seedFormat(bracketType string, pt models.FormatParticipantType, settings string) *models.Format {
	f := &models.Format{Name: bracketType + string(pt) + settings, BracketType: bracketType, ParticipantType: pt}
	if settings != "" {
		f.SettingsJSON = &settings
	}
	_ = fakeFormatRepo{e.db}.Create(context.Background(), f)
	return f
}

// seedTournament creates a tournament of organizer in the given status with n
// approved solo participants seeded 1..n.
func (e *env) seedTournament(sport *models.Sport, format *models.Format, status models.TournamentStatus, n int) (*models.Tournament, []int) {
	ctx := context.Background()
	now := time.Now()
	t := &models.Tournament{
		Name:            fmt.Sprintf("Cup %s #%d", format.Name, len(e.db.tournaments)+1),
		SportID:         sport.ID,
		FormatID:        format.ID,
		OrganizerID:     organizer.UserID,
		RegDate:         now.Add(-48 * time.Hour),
		StartDate:       now.Add(time.Hour),
		EndDate:         now.Add(72 * time.Hour),
		Status:          status,
		MaxParticipants: 64,
	}
	_ = fakeTournamentRepo{e.db}.Create(ctx, t)

	ids := make([]int, 0, n)
	for i := 1; i <= n; i++ {
		pl := &models.Player{FirstName: "Player", LastName: string(rune('A' + i - 1))}
		_ = fakePlayerRepo{e.db}.Create(ctx, pl)
		seed := i
		p := &models.Participant{TournamentID: t.ID, PlayerID: &pl.ID, Status: models.ParticipantApproved, Seed: &seed}
		_ = fakeParticipantRepo{e.db}.Create(ctx, nil, p)
		ids = append(ids, p.ID)
	}
	return t, ids
}

func (e *env) tournament(id int) *models.Tournament {
	t, _ := fakeTournamentRepo{e.db}.GetByID(context.Background(), id)
	return t
}

func (e *env) match(id int) *models.Match {
	m, _ := fakeMatchRepo{e.db}.GetByID(context.Background(), nil, id)
	return m
}

// matchByUID finds a stored match of the tournament by its bracket uid.
func (e *env) matchByUID(tournamentID int, uid string) *models.Match {
	e.db.mu.Lock()
	defer e.db.mu.Unlock()
	for _, m := range e.db.matches {
		if m.TournamentID == tournamentID && m.BracketMatchUID == uid {
			c := *m
			return &c
		}
	}
	return nil
}

// matchBetween finds the match of phase where a and b meet.
func (e *env) matchBetween(tournamentID int, phase models.MatchPhase, a, b int) *models.Match {
	e.db.mu.Lock()
	defer e.db.mu.Unlock()
	for _, m := range e.db.matches {
		if m.TournamentID != tournamentID || m.Phase != phase || m.Participant1ID == nil || m.Participant2ID == nil {
			continue
		}
		p1, p2 := *m.Participant1ID, *m.Participant2ID
		if (p1 == a && p2 == b) || (p1 == b && p2 == a) {
			c := *m
			return &c
		}
	}
	return nil
}

// holdTournament locks the tournament row in its own transaction. The
// returned func runs fn under the lock (fn may be nil), commits and waits for
// the unlock.
func (e *env) holdTournament(t *testing.T, id int) func(fn func()) {
	t.Helper()
	locked := make(chan struct{})
	unlock := make(chan func())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = fakeTx{e.db}.WithinTx(context.Background(), func(tx repositories.SQLExecutor) error {
			_, err := fakeTournamentRepo{e.db}.GetForUpdate(context.Background(), tx, id)
			close(locked)
			if fn := <-unlock; fn != nil {
				fn()
			}
			return err
		})
	}()
	<-locked
	return func(fn func()) {
		unlock <- fn
		<-done
	}
}

func (e *env) updateTournament(id int, fn func(t *models.Tournament)) {
	e.db.mu.Lock()
	defer e.db.mu.Unlock()
	fn(e.db.tournaments[id])
}

// score returns RecordResultInput giving a the score sa against b's sb in m,
// whatever slot a occupies.
func score(m *models.Match, a, sa, sb int) RecordResultInput {
	if *m.Participant1ID == a {
		return RecordResultInput{Score1: sa, Score2: sb}
	}
	return RecordResultInput{Score1: sb, Score2: sa}
}

func repositoriesFilterRound(round int) repositories.ListMatchesFilter {
	return repositories.ListMatchesFilter{Round: &round}
}
