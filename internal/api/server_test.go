package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Veraticus/chargedesk/internal/auth"
	"github.com/Veraticus/chargedesk/internal/engine"
	"github.com/Veraticus/chargedesk/internal/lifecycle"
	"github.com/Veraticus/chargedesk/internal/model"
	"github.com/Veraticus/chargedesk/internal/notify"
	"github.com/Veraticus/chargedesk/internal/storage"
	"github.com/Veraticus/chargedesk/internal/testutil"
	"github.com/Veraticus/chargedesk/internal/window"
)

var pkt = time.FixedZone("PKT", 5*3600)

var testNow = time.Date(2024, 3, 10, 23, 30, 0, 0, pkt)

type testServer struct {
	srv      *Server
	users    *auth.Directory
	handler  http.Handler
	table    *storage.MemoryTable
	notifier *notify.Mock
}

func newTestServer(t *testing.T, records ...model.Record) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cfg := engine.DefaultConfig()
	cfg.Location = pkt
	cfg.Shift = window.DefaultNightShift(pkt)

	table := storage.NewMemoryTable(model.DefaultColumns...)
	testutil.Seed(t, table, pkt, records...)

	notifier := notify.NewMock()
	desk, err := engine.New(table, lifecycle.NewMachine(lifecycle.Policy{}, notifier, logger), cfg, logger)
	require.NoError(t, err)
	desk.SetClock(func() time.Time { return testNow })

	users := auth.NewDirectory(storage.NewMemoryTable(), nil, logger)
	users.SetCost(bcrypt.MinCost)

	srv := NewServer(desk, logger)
	srv.SetUsers(users)
	srv.EnableMetrics()
	return &testServer{srv: srv, users: users, handler: srv.Handler(), table: table, notifier: notifier}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return ts.doAs(t, "", method, path, body)
}

// doAs sends the request with a Bearer token when token is set.
func (ts *testServer) doAs(t *testing.T, token, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func record(id, agent, charge string, status model.Status, created time.Time) model.Record {
	return testutil.NewRecord(id).
		WithAgent(agent).
		WithCharge(charge).
		WithStatus(status).
		WithCreatedAt(created).
		Build()
}

func submitBody(id string) SubmitRequest {
	return SubmitRequest{
		OrderID:    id,
		Agent:      "Ali",
		Client:     ClientJSON{Name: "Jane Roe", Phone: "555-0100", Email: "jane@example.com", Address: "1 Main St"},
		CardHolder: "Jane Roe",
		CardNumber: "4111 1111 1111 1111",
		Expiry:     "12/27",
		CVC:        "123",
		Charge:     "29",
		LLC:        "Bite Bazaar LLC",
		Provider:   "Optimum",
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[map[string]string](t, rec)["status"])
}

func TestSubmitAndFetch(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/records", submitBody("ORD-1"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[RecordJSON](t, rec)
	assert.Equal(t, "ORD-1", created.ID)
	assert.Equal(t, "Pending", created.Status)
	assert.Equal(t, "$29.00", created.Charge)
	assert.Equal(t, 2, created.Position)

	rec = ts.do(t, http.MethodGet, "/records/ORD-1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Jane Roe", decode[RecordJSON](t, rec).Client.Name)

	rec = ts.do(t, http.MethodPost, "/records", submitBody("ORD-1"))
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "already_exists", decode[ErrorResponse](t, rec).Code)

	assert.Equal(t, []string{lifecycle.TitleSubmitted}, ts.notifier.Titles())
}

func TestSubmitValidation(t *testing.T) {
	ts := newTestServer(t)

	body := submitBody("ORD-1")
	body.Client.Email = ""
	rec := ts.do(t, http.MethodPost, "/records", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decode[ErrorResponse](t, rec).Message, "Email")

	req := httptest.NewRequest(http.MethodPost, "/records", strings.NewReader(`{"order_id": 5}`))
	out := httptest.NewRecorder()
	ts.handler.ServeHTTP(out, req)
	assert.Equal(t, http.StatusBadRequest, out.Code)
}

func TestStatusTransitions(t *testing.T) {
	tests := []struct {
		name     string
		from     model.Status
		to       string
		wantCode int
		want     string
	}{
		{name: "approve", from: model.StatusPending, to: "charged", wantCode: http.StatusOK, want: "Charged"},
		{name: "charge back", from: model.StatusCharged, to: "Charge Back", wantCode: http.StatusOK, want: "Charge Back"},
		{name: "illegal", from: model.StatusCharged, to: "Declined", wantCode: http.StatusConflict},
		{name: "unknown status", from: model.StatusPending, to: "Refunded", wantCode: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, record("A1", "Ali", "$10.00", tt.from, testNow))

			rec := ts.do(t, http.MethodPost, "/records/A1/status", StatusRequest{Status: tt.to})
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
			if tt.want != "" {
				assert.Equal(t, tt.want, decode[RecordJSON](t, rec).Status)
			}
		})
	}
}

func TestNotFound(t *testing.T) {
	ts := newTestServer(t)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/records/nope"},
		{http.MethodDelete, "/records/nope"},
	} {
		rec := ts.do(t, tc.method, tc.path, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, tc.path)
	}
}

func TestEditAndDelete(t *testing.T) {
	ts := newTestServer(t, record("A1", "Ali", "$10.00", model.StatusPending, testNow))

	charge := "15"
	rec := ts.do(t, http.MethodPut, "/records/A1", EditRequest{Charge: &charge})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "$15.00", decode[RecordJSON](t, rec).Charge)

	rec = ts.do(t, http.MethodPut, "/records/A1", EditRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodDelete, "/records/A1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, ts.table.Rows())
}

func TestStoreFailure(t *testing.T) {
	ts := newTestServer(t)
	ts.table.Fail("read", errors.New("backend down"))

	rec := ts.do(t, http.MethodGet, "/records", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "store_unavailable", decode[ErrorResponse](t, rec).Code)
}

func TestListViews(t *testing.T) {
	ts := newTestServer(t,
		record("A1", "Ali", "$10.00", model.StatusPending, testNow.Add(-time.Hour)),
		record("B2", "Sara", "$20.00", model.StatusCharged, testNow.Add(-time.Minute)),
		record("C3", "Sara", "$30.00", model.StatusDeclined, testNow.Add(-time.Hour)),
	)

	tests := []struct {
		path string
		want []string
	}{
		{path: "/records", want: []string{"A1", "B2", "C3"}},
		{path: "/records?agent=Sara", want: []string{"B2", "C3"}},
		{path: "/records?status=Declined&status=Pending", want: []string{"A1", "C3"}},
		{path: "/records/recent", want: []string{"B2", "A1"}},
		{path: "/records/pending", want: []string{"A1"}},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := ts.do(t, http.MethodGet, tt.path, nil)
			require.Equal(t, http.StatusOK, rec.Code)
			var got []string
			for _, r := range decode[[]RecordJSON](t, rec) {
				got = append(got, r.ID)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTotals(t *testing.T) {
	ts := newTestServer(t,
		record("A1", "Ali", "$100.00", model.StatusCharged, testNow.Add(-time.Hour)),
		record("B2", "Sara", "$1,000.50", model.StatusCharged, testNow.Add(-2*time.Hour)),
		record("C3", "Sara", "$30.00", model.StatusPending, testNow.Add(-time.Hour)),
	)

	rec := ts.do(t, http.MethodGet, "/totals/night", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	night := decode[TotalJSON](t, rec)
	assert.Equal(t, "1100.50", night.Amount)
	assert.Equal(t, "$1,100.50", night.Formatted)
	assert.Equal(t, 2, night.Count)

	rec = ts.do(t, http.MethodGet, "/totals/today?agent=Ali", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "100.00", decode[TotalJSON](t, rec).Amount)

	rec = ts.do(t, http.MethodGet, "/totals/agents?limit=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []AgentJSON{{Agent: "Sara", Total: "1000.50", Count: 1}}, decode[[]AgentJSON](t, rec))

	rec = ts.do(t, http.MethodGet, "/totals/agents?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodGet, "/totals/hourly", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]HourJSON](t, rec), 2)

	rec = ts.do(t, http.MethodGet, "/totals/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]int{"Pending": 1, "Charged": 2, "Declined": 0, "Charge Back": 0}, decode[map[string]int](t, rec))
}

func TestDuplicatesAudit(t *testing.T) {
	ts := newTestServer(t,
		record("A1", "Ali", "$1.00", model.StatusPending, testNow),
		record("A1", "Sara", "$2.00", model.StatusPending, testNow),
	)

	rec := ts.do(t, http.MethodGet, "/audit/duplicates", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	groups := decode[[]DuplicateJSON](t, rec)
	require.Len(t, groups, 1)
	assert.Len(t, groups[0].Records, 2)
}

func TestUsers(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/users", SignUpRequest{ID: "boss", Password: "s3cret", Role: "Manager"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "Manager", decode[ProfileJSON](t, rec).Role)

	rec = ts.do(t, http.MethodPost, "/users", SignUpRequest{ID: "boss", Password: "other", Role: "Manager"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(t, http.MethodPost, "/users", SignUpRequest{ID: "nobody", Password: "pw"})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "a role is required")

	rec = ts.do(t, http.MethodPost, "/users/login", LoginRequest{ID: "boss", Password: "s3cret"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "boss", decode[ProfileJSON](t, rec).ID)

	rec = ts.do(t, http.MethodPost, "/users/login", LoginRequest{ID: "boss", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	ts.do(t, http.MethodPost, "/records", submitBody("ORD-1"))

	rec := ts.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "desk_records_submitted_total")
}

// sessionServer is a test server with session tokens on, a manager "boss"
// created out of band and agents "sara" (Sara) and "ali" (Ali).
func sessionServer(t *testing.T, records ...model.Record) (ts *testServer, boss, sara, ali string) {
	t.Helper()
	ts = newTestServer(t, records...)
	tokens, err := auth.NewIssuer("test-key", time.Hour)
	require.NoError(t, err)
	ts.srv.SetTokens(tokens)
	ts.handler = ts.srv.Handler()

	_, err = ts.users.SignUp(context.Background(), auth.SignUpRequest{ID: "boss", Password: "s3cret", Role: auth.RoleManager})
	require.NoError(t, err)
	for _, req := range []SignUpRequest{
		{ID: "sara", Password: "pa55", Role: "Agent", AgentName: "Sara"},
		{ID: "ali", Password: "pa55", Role: "Agent", AgentName: "Ali"},
	} {
		rec := ts.do(t, http.MethodPost, "/users", req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}

	login := func(id, password string) string {
		rec := ts.do(t, http.MethodPost, "/users/login", LoginRequest{ID: id, Password: password})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		session := decode[SessionJSON](t, rec)
		assert.Equal(t, id, session.Profile.ID)
		require.NotEmpty(t, session.Token)
		return session.Token
	}
	return ts, login("boss", "s3cret"), login("sara", "pa55"), login("ali", "pa55")
}

func TestSessions(t *testing.T) {
	ts, boss, sara, _ := sessionServer(t)

	assert.Equal(t, http.StatusUnauthorized, ts.do(t, http.MethodGet, "/records", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, ts.doAs(t, "forged", http.MethodGet, "/records", nil).Code)
	assert.Equal(t, http.StatusOK, ts.do(t, http.MethodGet, "/health", nil).Code)

	rec := ts.doAs(t, sara, http.MethodPost, "/records", submitBody("ORD-1"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "Sara", decode[RecordJSON](t, rec).Agent, "agents submit under their own name")

	rec = ts.doAs(t, sara, http.MethodPost, "/records/ORD-1/status", StatusRequest{Status: "Charged"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, http.StatusForbidden, ts.doAs(t, sara, http.MethodDelete, "/records/ORD-1", nil).Code)

	rec = ts.doAs(t, boss, http.MethodPost, "/records/ORD-1/status", StatusRequest{Status: "Charged"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Charged", decode[RecordJSON](t, rec).Status)
}

func TestSessionsManagerSignUp(t *testing.T) {
	ts, boss, sara, _ := sessionServer(t, record("ORD-9", "Sara", "$9.00", model.StatusPending, testNow))
	manager := SignUpRequest{ID: "anon", Password: "pw", Role: "Manager"}

	tests := []struct {
		name  string
		token string
		req   SignUpRequest
		want  int
	}{
		{name: "anonymous manager", req: manager, want: http.StatusForbidden},
		{name: "anonymous without role", req: SignUpRequest{ID: "anon", Password: "pw"}, want: http.StatusBadRequest},
		{name: "agent creating manager", token: sara, req: manager, want: http.StatusForbidden},
		{name: "forged token", token: "forged", req: manager, want: http.StatusUnauthorized},
		{name: "manager creating manager", token: boss, req: SignUpRequest{ID: "boss2", Password: "pw", Role: "Manager"}, want: http.StatusCreated},
		{name: "anonymous agent", req: SignUpRequest{ID: "sam", Password: "pw", Role: "Agent", AgentName: "Sam"}, want: http.StatusCreated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.doAs(t, tt.token, http.MethodPost, "/users", tt.req)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}

	rec := ts.do(t, http.MethodPost, "/users/login", LoginRequest{ID: "anon", Password: "pw"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code, "rejected sign-ups leave no account behind")
	assert.Equal(t, http.StatusOK, ts.doAs(t, boss, http.MethodGet, "/records/ORD-9", nil).Code)
	assert.Equal(t, 0, ts.table.Calls("delete"))
}

func TestSessionsAgentScope(t *testing.T) {
	ts, boss, sara, ali := sessionServer(t,
		record("A1", "Ali", "$10.00", model.StatusCharged, testNow.Add(-time.Hour)),
		record("A2", "Ali", "$15.00", model.StatusPending, testNow.Add(-time.Hour)),
		record("S1", "Sara", "$20.00", model.StatusCharged, testNow.Add(-time.Minute)),
		record("S2", "Sara", "$30.00", model.StatusPending, testNow.Add(-time.Minute)),
	)

	ids := func(rec *httptest.ResponseRecorder) []string {
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var out []string
		for _, r := range decode[[]RecordJSON](t, rec) {
			out = append(out, r.ID)
		}
		return out
	}

	t.Run("reads are confined to the agent", func(t *testing.T) {
		tests := []struct {
			path string
			want []string
		}{
			{path: "/records", want: []string{"S1", "S2"}},
			{path: "/records?agent=Ali", want: []string{"S1", "S2"}},
			{path: "/records/recent", want: []string{"S1", "S2"}},
			{path: "/records/pending", want: []string{"S2"}},
		}
		for _, tt := range tests {
			assert.Equal(t, tt.want, ids(ts.doAs(t, sara, http.MethodGet, tt.path, nil)), tt.path)
		}
		assert.Equal(t, []string{"A1", "A2", "S1", "S2"}, ids(ts.doAs(t, boss, http.MethodGet, "/records", nil)))
	})

	t.Run("another agent's record is not found", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, ts.doAs(t, sara, http.MethodGet, "/records/A1", nil).Code)
		assert.Equal(t, http.StatusOK, ts.doAs(t, ali, http.MethodGet, "/records/A1", nil).Code)
	})

	t.Run("totals are confined to the agent", func(t *testing.T) {
		rec := ts.doAs(t, sara, http.MethodGet, "/totals/night?agent=Ali", nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		total := decode[TotalJSON](t, rec)
		assert.Equal(t, "Sara", total.Agent)
		assert.Equal(t, "20.00", total.Amount)

		rec = ts.doAs(t, sara, http.MethodGet, "/totals/status", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, map[string]int{"Charged": 1, "Pending": 1}, decode[map[string]int](t, rec))

		for _, path := range []string{"/totals/hourly", "/totals/agents", "/audit/duplicates"} {
			assert.Equal(t, http.StatusForbidden, ts.doAs(t, sara, http.MethodGet, path, nil).Code, path)
			assert.Equal(t, http.StatusOK, ts.doAs(t, boss, http.MethodGet, path, nil).Code, path)
		}
	})

	t.Run("agents edit only their own pending records", func(t *testing.T) {
		phone := "555-7777"
		tests := []struct {
			name string
			id   string
			body EditRequest
			want int
		}{
			{name: "own pending", id: "S2", body: EditRequest{Phone: &phone}, want: http.StatusOK},
			{name: "own charged", id: "S1", body: EditRequest{Phone: &phone}, want: http.StatusForbidden},
			{name: "someone else's", id: "A2", body: EditRequest{Phone: &phone}, want: http.StatusNotFound},
			{name: "status through edit", id: "S2", body: EditRequest{Status: ptrTo("Charged")}, want: http.StatusForbidden},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				rec := ts.doAs(t, sara, http.MethodPut, "/records/"+tt.id, tt.body)
				assert.Equal(t, tt.want, rec.Code, rec.Body.String())
			})
		}

		rec := ts.doAs(t, boss, http.MethodPut, "/records/A1", EditRequest{Phone: &phone})
		assert.Equal(t, http.StatusOK, rec.Code, "managers edit any record")
	})
}

func ptrTo(s string) *string {
	return &s
}
