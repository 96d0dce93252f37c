package server

import (
	"encoding/json"
	"net/http"

	openapi "github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi3"

	"github.com/playperu/dailyset/internal/game"
)

// operation describes one documented endpoint.
type operation struct {
	method, path, summary, description string
	req                                any
	resp                               any
	errors                             []int
}

var operations = []operation{
	{
		method: http.MethodGet, path: "/api/daily", summary: "Daily board",
		description: "Returns the board for ?date= (default today, UTC) and notifies live listeners.",
		resp:        DailyResponse{}, errors: []int{http.StatusBadRequest},
	},
	{
		method: http.MethodPost, path: "/api/start_session", summary: "Start or resume a session",
		description: "Identifies the player by username or player_token cookie, creating one when needed, and returns the active session for the date. Sets the player_token and session_token cookies.",
		req:         StartSessionRequest{}, resp: StartSessionResponse{},
		errors: []int{http.StatusBadRequest, http.StatusForbidden},
	},
	{
		method: http.MethodPost, path: "/api/submit_set", summary: "Submit a triple",
		description: "Removes three cards from the session board. Without session_id or session_token the triple is only checked against the daily board.",
		req:         SubmitSetRequest{}, resp: SubmitSetResponse{},
		errors: []int{http.StatusBadRequest, http.StatusForbidden, http.StatusNotFound, http.StatusConflict, http.StatusTooManyRequests},
	},
	{
		method: http.MethodPost, path: "/api/rotate_session/{sessionID}", summary: "Rotate session secret",
		description: "Requires the current session token (Authorization: Bearer or session_token cookie) and, for owned sessions, the owner's player_token cookie. Invalidates every earlier token.",
		resp:        RotateResponse{}, errors: []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	},
	{
		method: http.MethodPost, path: "/api/complete", summary: "Record a completion",
		description: "Records a completion time for an existing player without a session.",
		req:         CompleteRequest{}, resp: StatusOKResponse{},
		errors: []int{http.StatusBadRequest, http.StatusNotFound, http.StatusTooManyRequests},
	},
	{
		method: http.MethodGet, path: "/api/leaderboard", summary: "Leaderboard",
		description: "Ranks ?date= by skill-adjusted time. ?limit= is 1 to 100, default 10.",
		resp:        LeaderboardResponse{}, errors: []int{http.StatusBadRequest, http.StatusTooManyRequests},
	},
	{
		method: http.MethodGet, path: "/api/status", summary: "Daily status",
		description: "Whether the caller (player_token cookie) completed today, with placement when they did.",
		resp:        game.Status{},
	},
	{
		method: http.MethodGet, path: "/api/session", summary: "Current session",
		description: "The caller's active session for today, if any.",
		resp:        CurrentSessionResponse{},
	},
	{
		method: http.MethodGet, path: "/api/found_sets", summary: "Found triples",
		description: "Triples ?username= found on ?date=, oldest first.",
		resp:        FoundSetsResponse{}, errors: []int{http.StatusBadRequest},
	},
	{
		method: http.MethodGet, path: "/api/cache/stats", summary: "Cache statistics",
		resp: CacheStatsResponse{},
	},
}

func newOpenAPISpec() *openapi3.Spec {
	r := openapi3.NewReflector()
	r.Spec.Info.Title = "Daily Set API"
	r.Spec.Info.Version = "0.1.0"
	r.Spec.Info.WithDescription("Backend API for the daily triple-finding puzzle.")

	for _, op := range operations {
		oc, err := r.NewOperationContext(op.method, op.path)
		if err != nil {
			continue
		}
		oc.SetSummary(op.summary)
		if op.description != "" {
			oc.SetDescription(op.description)
		}
		if op.req != nil {
			oc.AddReqStructure(op.req)
		}
		oc.AddRespStructure(op.resp, openapi.WithHTTPStatus(http.StatusOK))
		for _, status := range op.errors {
			oc.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(status))
		}
		_ = r.AddOperation(oc)
	}

	// GET /ws
	ws, _ := r.NewOperationContext(http.MethodGet, "/ws")
	ws.SetSummary("Live notifications")
	ws.SetDescription("Upgrades to a WebSocket that receives daily_update, completion and leaderboard_change messages.")
	ws.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusSwitchingProtocols),
		openapi.WithContentType("text/plain"))
	_ = r.AddOperation(ws)

	// GET /api/events
	sse, _ := r.NewOperationContext(http.MethodGet, "/api/events")
	sse.SetSummary("Live notifications (SSE)")
	sse.SetDescription("The same messages as /ws as a Server-Sent Events stream.")
	sse.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK),
		openapi.WithContentType("text/event-stream"))
	_ = r.AddOperation(sse)

	return r.Spec
}

func handleOpenAPI() http.HandlerFunc {
	spec := newOpenAPISpec()
	data, _ := json.MarshalIndent(spec, "", "  ")

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}
