package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aquarig/supervisor/pkg/bus"
	"github.com/aquarig/supervisor/pkg/db"
	"github.com/aquarig/supervisor/pkg/logger"
	"github.com/aquarig/supervisor/pkg/metrics"
	"github.com/aquarig/supervisor/pkg/state"
)

type fakeEvents struct {
	events []db.Event
	err    error
}

func (f *fakeEvents) RecentEvents(limit int) ([]db.Event, error) {
	if f.err != nil {
		return nil, f.err
	}

	if limit > len(f.events) {
		limit = len(f.events)
	}

	return f.events[:limit], nil
}

type fakeCommands struct {
	lines []string
}

func (f *fakeCommands) Execute(_ context.Context, line string) string {
	f.lines = append(f.lines, line)

	return "ok: " + line
}

func newTestServer(t *testing.T) (*Server, *state.Store, *metrics.Manager) {
	t.Helper()

	store := state.NewStore(time.Now())
	samples := metrics.NewManager(16)
	srv := NewServer("rig-1", store, samples, &fakeEvents{}, &fakeCommands{}, logger.Nop())

	return srv, store, samples
}

func seedTank(t *testing.T, store *state.Store) {
	t.Helper()

	require.NoError(t, store.ApplyFrame(bus.Frame{
		Module:    bus.ModuleTank,
		Command:   bus.CmdSensorReport,
		Timestamp: time.Now(),
		Payload:   bus.TankState{TemperatureC: 24.5, PH: 7.1}.MarshalPayload(),
	}))
}

func TestGetStatus(t *testing.T) {
	srv, store, _ := newTestServer(t)
	seedTank(t, store)
	store.SetLinkUp(true)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var status RigStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "rig-1", status.Rig)
	assert.InDelta(t, 24.5, float64(status.Snapshot.Tank.TemperatureC), 0.001)
	assert.NotEmpty(t, status.Alarms, "freshly seeded store has stale modules")
}

func TestGetModules(t *testing.T) {
	srv, store, _ := newTestServer(t)
	seedTank(t, store)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/modules", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var modules []ModuleStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &modules))
	require.Len(t, modules, 4)

	byID := make(map[string]ModuleStatus, len(modules))
	for _, m := range modules {
		byID[m.ID] = m
	}

	assert.True(t, byID["tank"].Live, "tank just reported")
}

func TestGetModuleDetail(t *testing.T) {
	srv, store, _ := newTestServer(t)
	seedTank(t, store)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/modules/tank", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var detail ModuleDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	assert.Equal(t, "tank", detail.ID)
	require.NotNil(t, detail.Tank)
	assert.InDelta(t, 7.1, float64(detail.Tank.PH), 0.001)
	assert.Nil(t, detail.Grow)
}

func TestGetModuleNotFound(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/modules/pump", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// The bus knows "main" but it carries no telemetry.
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/modules/main", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetModuleHistory(t *testing.T) {
	srv, _, samples := newTestServer(t)
	samples.AddSample(bus.ModuleTank, time.Now(), "ph", 7.0)
	samples.AddSample(bus.ModuleTank, time.Now(), "ph", 7.2)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/modules/tank/history", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var points []metrics.SamplePoint
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &points))
	require.Len(t, points, 2)
	assert.Equal(t, 7.2, points[0].Value, "newest first")
}

func TestGetEvents(t *testing.T) {
	store := state.NewStore(time.Now())
	events := &fakeEvents{events: []db.Event{
		{ID: 2, Kind: "alarm", Code: "E-LEAK", Message: "leak detected in grow bed"},
		{ID: 1, Kind: "feed", Message: "dispensed 5 g"},
	}}
	srv := NewServer("rig-1", store, metrics.NewManager(16), events, &fakeCommands{}, logger.Nop())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/events?limit=1", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var got []db.Event
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "E-LEAK", got[0].Code)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/events?limit=zero", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPostCommand(t *testing.T) {
	store := state.NewStore(time.Now())
	commands := &fakeCommands{}
	srv := NewServer("rig-1", store, metrics.NewManager(16), &fakeEvents{}, commands, logger.Nop())

	body, err := json.Marshal(CommandRequest{Line: "feed 10"})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/command", bytes.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp CommandResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok: feed 10", resp.Response)
	assert.Equal(t, []string{"feed 10"}, commands.lines)
}

func TestPostCommandBadBody(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/command", strings.NewReader("not json")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/command", strings.NewReader(`{"line":""}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWebsocketStreamsSnapshots(t *testing.T) {
	srv, store, _ := newTestServer(t)
	seedTank(t, store)

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/ws"

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	defer func() {
		_ = conn.Close()
		_ = resp.Body.Close()
	}()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var snap state.Snapshot
	require.NoError(t, conn.ReadJSON(&snap))
	assert.InDelta(t, 24.5, float64(snap.Tank.TemperatureC), 0.001)
}
