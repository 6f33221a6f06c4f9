package fiata2dp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivmarkov/fiat-a2dp/internal/coord"
)

func newTestServer(t *testing.T) (*httptest.Server, *coord.Coordinator) {
	t.Helper()
	logger := zerolog.Nop()
	registry := coord.NewLinkRegistry(&logger)
	arbiter := coord.NewSyncSlotArbiter(&logger)
	sink := coord.NopCommandSink{}
	broadcaster := coord.NewStateBroadcaster(&logger)
	route := coord.NewRouteSwitch(coord.NopAudioSink{}, coord.NewStackStreamControl(registry, sink), &logger)
	coordinator := coord.New(registry, arbiter, route, sink, &logger, coord.WithNotify(broadcaster.Broadcast))

	srv := httptest.NewServer(newRouter(coordinator, broadcaster))
	t.Cleanup(srv.Close)
	return srv, coordinator
}

func TestStatusEndpoint(t *testing.T) {
	srv, coordinator := newTestServer(t)
	require.NoError(t, coordinator.Start())
	defer coordinator.Stop()

	resp, err := http.Get(srv.URL + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var snap struct {
		State string `json:"state"`
		Route string `json:"route"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	assert.Equal(t, "idle", snap.State)
	assert.Equal(t, "none", snap.Route)
}

func TestCommandEndpointAccepted(t *testing.T) {
	srv, coordinator := newTestServer(t)
	require.NoError(t, coordinator.Start())
	defer coordinator.Stop()

	resp, err := http.Post(srv.URL+"/playback/next", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
}

func TestCommandEndpointWhenStopped(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/call/answer", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestEventStreamDeliversSnapshotsInOrder(t *testing.T) {
	srv, coordinator := newTestServer(t)
	require.NoError(t, coordinator.Start())
	defer coordinator.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/events"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	require.NoError(t, err)
	defer conn.Close(websocket.StatusNormalClosure, "")

	readState := func() string {
		var event struct {
			Type string `json:"type"`
			Data struct {
				State string `json:"state"`
			} `json:"data"`
		}
		require.NoError(t, wsjson.Read(ctx, conn, &event))
		require.Equal(t, "coordinator-snapshot", event.Type)
		return event.Data.State
	}

	// The current snapshot replays first, before anything broadcast later.
	require.Equal(t, "idle", readState())

	addr := "AA:BB:CC:DD:EE:FF"
	require.NoError(t, coordinator.Dispatch(coord.Event{Type: coord.EventA2dpConnected, Addr: addr}))
	require.NoError(t, coordinator.Dispatch(coord.Event{Type: coord.EventA2dpStreamStarted, Addr: addr}))
	require.NoError(t, coordinator.Dispatch(coord.Event{Type: coord.EventA2dpStreamStopped, Addr: addr}))

	assert.Equal(t, []string{"idle", "music-only", "idle"},
		[]string{readState(), readState(), readState()},
		"snapshots must arrive in publish order")
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
