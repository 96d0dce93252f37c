package server

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/playperu/dailyset/internal/cache"
	"github.com/playperu/dailyset/internal/dailyset"
	"github.com/playperu/dailyset/internal/database"
	"github.com/playperu/dailyset/internal/events"
	"github.com/playperu/dailyset/internal/game"
	"github.com/playperu/dailyset/internal/leaderboard"
	"github.com/playperu/dailyset/internal/metrics"
	"github.com/playperu/dailyset/internal/migrations"
	"github.com/playperu/dailyset/internal/store"
	"github.com/playperu/dailyset/internal/token"
)

type testAPI struct {
	router *chi.Mux
	store  *store.SQLite
	games  *game.Manager
	hub    *events.Hub
}

func newTestAPI(t *testing.T, limits Limits) *testAPI {
	t.Helper()
	ctx := context.Background()
	logger := slog.Default()

	db, err := database.Open(ctx, database.Memory)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := migrations.Run(ctx, db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	st := store.NewSQLite(db)

	boardCache := cache.New[dailyset.Board]()
	rankCache := cache.New[[]dailyset.Standing]()
	signer := token.NewSigner(logger, "test-secret", st, st)
	ranker := leaderboard.NewRanker(st, rankCache, time.Minute)
	hub := events.NewHub(logger, 0, nil)
	games := game.NewManager(logger, game.Config{SessionTTL: time.Hour}, st,
		game.NewBoards(logger, boardCache, time.Hour), signer, ranker, hub)

	caches := map[string]metrics.StatsFunc{"boards": boardCache.Stats, "leaderboard": rankCache.Stats}
	api := API{
		Logger:  logger,
		Games:   games,
		Signer:  signer,
		Ranker:  ranker,
		Metrics: metrics.New(caches, hub.Len),
		Caches:  caches,
		Limits:  limits,
	}
	r := chi.NewRouter()
	api.Routes(r)
	return &testAPI{router: r, store: st, games: games, hub: hub}
}

type call struct {
	method, path string
	body         any
	cookies      []*http.Cookie
	header       http.Header
}

func (a *testAPI) do(t *testing.T, c call) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if c.body != nil {
		if err := json.NewEncoder(&buf).Encode(c.body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(c.method, c.path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range c.header {
		req.Header[k] = v
	}
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode %T: %v", v, err)
	}
	return v
}

func cookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func findTriple(b dailyset.Board) []int {
	for i := 0; i < len(b); i++ {
		for j := i + 1; j < len(b); j++ {
			for k := j + 1; k < len(b); k++ {
				if dailyset.IsValidTriple(b[i], b[j], b[k]) {
					return []int{i, j, k}
				}
			}
		}
	}
	return nil
}

func findNonTriple(b dailyset.Board) []int {
	for i := 0; i < len(b); i++ {
		for j := i + 1; j < len(b); j++ {
			for k := j + 1; k < len(b); k++ {
				if !dailyset.IsValidTriple(b[i], b[j], b[k]) {
					return []int{i, j, k}
				}
			}
		}
	}
	return nil
}

func TestDaily(t *testing.T) {
	a := newTestAPI(t, Limits{})

	rec := a.do(t, call{method: http.MethodGet, path: "/api/daily?date=2025-09-01"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	got := decode[DailyResponse](t, rec)
	if got.Date != "2025-09-01" || len(got.Board) != dailyset.BoardSize {
		t.Errorf("daily = %+v", got)
	}
	want := dailyset.GenerateBoard("2025-09-01")
	for i := range want {
		if got.Board[i] != want[i] {
			t.Fatalf("card %d = %v, want %v", i, got.Board[i], want[i])
		}
	}

	if rec := a.do(t, call{method: http.MethodGet, path: "/api/daily?date=01-09-2025"}); rec.Code != http.StatusBadRequest {
		t.Errorf("bad date status = %d", rec.Code)
	}
}

func TestPlayThrough(t *testing.T) {
	a := newTestAPI(t, Limits{})
	date := dailyset.Today(time.Now())

	rec := a.do(t, call{method: http.MethodPost, path: "/api/start_session", body: StartSessionRequest{Username: "ana"}})
	if rec.Code != http.StatusOK {
		t.Fatalf("start status = %d: %s", rec.Code, rec.Body)
	}
	player := cookie(rec, playerCookieName)
	if player == nil || !player.HttpOnly {
		t.Fatalf("player cookie = %+v", player)
	}
	if c := cookie(rec, sessionCookieName); c == nil {
		t.Fatal("no session cookie")
	}
	started := decode[StartSessionResponse](t, rec)

	again := a.do(t, call{method: http.MethodPost, path: "/api/start_session", cookies: []*http.Cookie{player}})
	if got := decode[StartSessionResponse](t, again); got.SessionID != started.SessionID || !got.Resumed {
		t.Errorf("restart = %+v, want resumed %s", got, started.SessionID)
	}

	cur := decode[CurrentSessionResponse](t, a.do(t, call{method: http.MethodGet, path: "/api/session", cookies: []*http.Cookie{player}}))
	if !cur.Active || cur.SessionID != started.SessionID {
		t.Errorf("current session = %+v", cur)
	}

	bad := a.do(t, call{method: http.MethodPost, path: "/api/submit_set", body: SubmitSetRequest{
		SessionID: started.SessionID, Indices: findNonTriple(started.Board),
	}})
	if bad.Code != http.StatusBadRequest {
		t.Errorf("non-triple status = %d", bad.Code)
	}

	board := started.Board
	var last SubmitSetResponse
	for !last.Finished {
		idx := findTriple(board)
		if idx == nil {
			t.Fatal("ran out of triples before the session finished")
		}
		rec := a.do(t, call{method: http.MethodPost, path: "/api/submit_set", body: SubmitSetRequest{
			SessionToken: started.SessionToken, Indices: idx,
		}})
		if rec.Code != http.StatusOK {
			t.Fatalf("submit status = %d: %s", rec.Code, rec.Body)
		}
		last = decode[SubmitSetResponse](t, rec)
		board = board.Without(idx)
	}
	if last.Seconds == nil || last.SessionID == nil || *last.SessionID != started.SessionID {
		t.Errorf("final submit = %+v", last)
	}

	replay := a.do(t, call{method: http.MethodPost, path: "/api/submit_set", body: SubmitSetRequest{
		SessionID: started.SessionID, Indices: []int{0, 1, 2},
	}})
	if replay.Code != http.StatusBadRequest {
		t.Errorf("replay status = %d, want 400", replay.Code)
	}

	restart := a.do(t, call{method: http.MethodPost, path: "/api/start_session", cookies: []*http.Cookie{player}})
	if restart.Code != http.StatusForbidden {
		t.Errorf("restart after completion = %d, want 403", restart.Code)
	}

	st := decode[game.Status](t, a.do(t, call{method: http.MethodGet, path: "/api/status", cookies: []*http.Cookie{player}}))
	if !st.Completed || st.Placement == nil || *st.Placement != 1 || st.TriplesFound == nil || *st.TriplesFound == 0 {
		t.Errorf("status = %+v", st)
	}

	lb := decode[LeaderboardResponse](t, a.do(t, call{method: http.MethodGet, path: "/api/leaderboard?date=" + date}))
	if len(lb.Leaders) != 1 || lb.Leaders[0].Username != "ana" {
		t.Errorf("leaderboard = %+v", lb)
	}

	found := decode[FoundSetsResponse](t, a.do(t, call{method: http.MethodGet, path: "/api/found_sets?username=ana&date=" + date}))
	if len(found.Sets) != *st.TriplesFound {
		t.Errorf("found sets = %d, want %d", len(found.Sets), *st.TriplesFound)
	}
}

func TestStatelessCheck(t *testing.T) {
	a := newTestAPI(t, Limits{})
	board := dailyset.GenerateBoard("2025-09-01")

	rec := a.do(t, call{method: http.MethodPost, path: "/api/submit_set", body: SubmitSetRequest{
		Date: "2025-09-01", Indices: findTriple(board),
	}})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body)
	}
	got := decode[SubmitSetResponse](t, rec)
	if !got.Valid || got.SessionID != nil || got.Finished {
		t.Errorf("check = %+v", got)
	}

	rec = a.do(t, call{method: http.MethodPost, path: "/api/submit_set", body: SubmitSetRequest{
		Date: "2025-09-01", Indices: []int{0, 0, 1},
	}})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("duplicate indices status = %d", rec.Code)
	}
}

func TestSubmitErrorStatuses(t *testing.T) {
	a := newTestAPI(t, Limits{})
	started, err := a.games.StartOrResume(context.Background(), nil, "2025-09-01")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		req  SubmitSetRequest
		want int
	}{
		{"unknown session", SubmitSetRequest{SessionID: "nope", Indices: []int{0, 1, 2}}, http.StatusNotFound},
		{"malformed token", SubmitSetRequest{SessionToken: "abc", Indices: []int{0, 1, 2}}, http.StatusBadRequest},
		{"forged token", SubmitSetRequest{SessionToken: token.Sign([]byte("x"), started.Session.ID), Indices: []int{0, 1, 2}}, http.StatusForbidden},
		{"out of range", SubmitSetRequest{SessionID: started.Session.ID, Indices: []int{0, 1, 40}}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := a.do(t, call{method: http.MethodPost, path: "/api/submit_set", body: tt.req})
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d: %s", rec.Code, tt.want, rec.Body)
			}
			if e := decode[ErrorResponse](t, rec); e.Error == "" {
				t.Error("empty error message")
			}
		})
	}
}

func TestRotateSession(t *testing.T) {
	a := newTestAPI(t, Limits{})

	rec := a.do(t, call{method: http.MethodPost, path: "/api/start_session", body: StartSessionRequest{Username: "ana"}})
	started := decode[StartSessionResponse](t, rec)
	player := cookie(rec, playerCookieName)

	other := a.do(t, call{method: http.MethodPost, path: "/api/start_session", body: StartSessionRequest{Username: "bo"}})
	stranger := cookie(other, playerCookieName)

	path := "/api/rotate_session/" + started.SessionID
	bearer := http.Header{"Authorization": {"Bearer " + started.SessionToken}}

	tests := []struct {
		name    string
		header  http.Header
		cookies []*http.Cookie
		want    int
	}{
		{"no token", nil, []*http.Cookie{player}, http.StatusUnauthorized},
		{"no player token", bearer, nil, http.StatusUnauthorized},
		{"wrong player", bearer, []*http.Cookie{stranger}, http.StatusForbidden},
		{"owner", bearer, []*http.Cookie{player}, http.StatusOK},
		{"old token after rotation", bearer, []*http.Cookie{player}, http.StatusForbidden},
	}
	var rotated *http.Cookie
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := a.do(t, call{method: http.MethodPost, path: path, header: tt.header, cookies: tt.cookies})
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.want, rec.Body)
			}
			if rec.Code == http.StatusOK {
				rotated = cookie(rec, sessionCookieName)
			}
		})
	}

	if rotated == nil {
		t.Fatal("no rotated cookie")
	}
	rec = a.do(t, call{method: http.MethodPost, path: path, cookies: []*http.Cookie{player, rotated}})
	if rec.Code != http.StatusOK {
		t.Errorf("rotate with cookie token = %d: %s", rec.Code, rec.Body)
	}
}

func TestCompleteAndLeaderboard(t *testing.T) {
	a := newTestAPI(t, Limits{})
	ctx := context.Background()
	for _, name := range []string{"ana", "bo"} {
		if _, err := a.store.CreatePlayer(ctx, name); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name string
		req  CompleteRequest
		want int
	}{
		{"ana", CompleteRequest{Username: "ana", Date: "2025-09-01", Seconds: 80}, http.StatusOK},
		{"bo", CompleteRequest{Username: "bo", Date: "2025-09-01", Seconds: 70}, http.StatusOK},
		{"unknown player", CompleteRequest{Username: "cy", Date: "2025-09-01", Seconds: 70}, http.StatusNotFound},
		{"bad seconds", CompleteRequest{Username: "ana", Date: "2025-09-01", Seconds: 90000}, http.StatusBadRequest},
		{"bad username", CompleteRequest{Username: "a b", Seconds: 1}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := a.do(t, call{method: http.MethodPost, path: "/api/complete", body: tt.req}); rec.Code != tt.want {
				t.Errorf("status = %d, want %d: %s", rec.Code, tt.want, rec.Body)
			}
		})
	}

	lb := decode[LeaderboardResponse](t, a.do(t, call{method: http.MethodGet, path: "/api/leaderboard?date=2025-09-01"}))
	if len(lb.Leaders) != 2 || lb.Leaders[0].Username != "bo" || lb.Leaders[1].Username != "ana" {
		t.Errorf("leaders = %+v", lb.Leaders)
	}

	for _, q := range []string{"limit=0", "limit=101", "limit=x", "date=2025/09/01"} {
		if rec := a.do(t, call{method: http.MethodGet, path: "/api/leaderboard?" + q}); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", q, rec.Code)
		}
	}

	empty := decode[LeaderboardResponse](t, a.do(t, call{method: http.MethodGet, path: "/api/leaderboard?date=2020-01-01"}))
	if empty.Leaders == nil || len(empty.Leaders) != 0 {
		t.Errorf("empty leaderboard = %+v", empty)
	}
}

func TestAnonymousCallers(t *testing.T) {
	a := newTestAPI(t, Limits{})

	st := decode[game.Status](t, a.do(t, call{method: http.MethodGet, path: "/api/status"}))
	if st.Completed || st.Date == "" {
		t.Errorf("status = %+v", st)
	}
	cur := decode[CurrentSessionResponse](t, a.do(t, call{method: http.MethodGet, path: "/api/session"}))
	if cur.Active {
		t.Errorf("session = %+v", cur)
	}
	found := decode[FoundSetsResponse](t, a.do(t, call{method: http.MethodGet, path: "/api/found_sets?username=ghost"}))
	if found.Sets == nil || len(found.Sets) != 0 {
		t.Errorf("found sets = %+v", found)
	}
	if rec := a.do(t, call{method: http.MethodGet, path: "/api/found_sets"}); rec.Code != http.StatusBadRequest {
		t.Errorf("missing username status = %d", rec.Code)
	}

	rec := a.do(t, call{method: http.MethodPost, path: "/api/start_session"})
	if rec.Code != http.StatusOK {
		t.Fatalf("anonymous start = %d: %s", rec.Code, rec.Body)
	}
	if cookie(rec, playerCookieName) == nil {
		t.Error("anonymous player got no identity cookie")
	}
}

func TestCacheStats(t *testing.T) {
	a := newTestAPI(t, Limits{})
	a.do(t, call{method: http.MethodGet, path: "/api/daily?date=2025-09-01"})
	a.do(t, call{method: http.MethodGet, path: "/api/daily?date=2025-09-01"})

	got := decode[CacheStatsResponse](t, a.do(t, call{method: http.MethodGet, path: "/api/cache/stats"}))
	boards := got.CacheStats["boards"]
	if got.Status != "ok" || boards.Hits != 1 || boards.Misses != 1 || boards.Size != 1 {
		t.Errorf("stats = %+v", got)
	}
	if _, ok := got.CacheStats["leaderboard"]; !ok {
		t.Error("leaderboard cache missing")
	}
}

func TestRateLimit(t *testing.T) {
	a := newTestAPI(t, Limits{Leaderboard: Limit{Requests: 2, Window: time.Minute}})

	for i, want := range []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests} {
		rec := a.do(t, call{method: http.MethodGet, path: "/api/leaderboard"})
		if rec.Code != want {
			t.Errorf("request %d: status = %d, want %d", i+1, rec.Code, want)
		}
	}
	if rec := a.do(t, call{method: http.MethodGet, path: "/api/daily"}); rec.Code != http.StatusOK {
		t.Errorf("unlimited route status = %d", rec.Code)
	}
}

func TestUnknownAPIPath(t *testing.T) {
	a := newTestAPI(t, Limits{})
	rec := a.do(t, call{method: http.MethodGet, path: "/api/nope"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestStaticFallback(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "index.html"), []byte("<main>daily</main>"), 0o644)
	os.WriteFile(filepath.Join(dir, "app.js"), []byte("console.log(1)"), 0o644)

	r := chi.NewRouter()
	API{Logger: slog.Default(), StaticDir: dir}.Routes(r)

	tests := []struct {
		path string
		code int
		body string
	}{
		{"/app.js", http.StatusOK, "console.log"},
		{"/play/today", http.StatusOK, "<main>daily</main>"},
		{"/api/unknown", http.StatusNotFound, `"error"`},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
		if rec.Code != tt.code || !strings.Contains(rec.Body.String(), tt.body) {
			t.Errorf("%s: %d %q, want %d containing %q", tt.path, rec.Code, rec.Body, tt.code, tt.body)
		}
	}
}
