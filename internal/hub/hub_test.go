package hub

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hydrotwin/internal/dashboard"
	"hydrotwin/internal/domain"
	"hydrotwin/internal/render"
)

type streamEvent struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// subscribe opens an SSE stream and returns a channel of decoded events
func subscribe(t *testing.T, url string) (<-chan streamEvent, func()) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	out := make(chan streamEvent, 512)
	go func() {
		defer close(out)
		defer resp.Body.Close()
		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data: ") {
				continue
			}
			var ev streamEvent
			if json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev) == nil {
				out <- ev
			}
		}
	}()
	return out, cancel
}

// collect reads events until one of type want arrives
func collect(t *testing.T, events <-chan streamEvent, want EventType) []streamEvent {
	t.Helper()
	var got []streamEvent
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			require.True(t, ok, "stream closed before %s", want)
			got = append(got, ev)
			if ev.Type == want {
				return got
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s, got %d events", want, len(got))
		}
	}
}

func countType(events []streamEvent, typ EventType) int {
	n := 0
	for _, ev := range events {
		if ev.Type == typ {
			n++
		}
	}
	return n
}

func startHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	h := New(nil, nil)
	done := make(chan struct{})
	go h.Run(done)
	srv := httptest.NewServer(h)
	t.Cleanup(func() {
		srv.Close()
		close(done)
	})
	return h, srv
}

func testGraph() *domain.Graph {
	return &domain.Graph{
		Nodes: []domain.NodeStyle{
			{ID: "n1", Name: "Tank", Type: domain.NodeTypeTank, Position: domain.NewPosition(1, 1), Color: "#22c55e"},
			{ID: "n2", Name: "J", Type: domain.NodeTypeJunction, Position: domain.NewPosition(2, 2), Color: "#f59e0b"},
		},
		Edges: []domain.EdgeView{
			{ID: "e1", Name: "Main", Status: domain.EdgeStatusOpen, From: domain.NewPosition(1, 1), To: domain.NewPosition(2, 2), Color: "#0ea5e9"},
		},
		Stats: domain.NetworkStats{TotalNodes: 2, TotalPipes: 1},
	}
}

func TestHub_NotReadyWithoutClients(t *testing.T) {
	h, _ := startHub(t)
	assert.False(t, h.Ready())

	_, err := h.NewMap(render.MapOptions{})
	assert.ErrorIs(t, err, render.ErrHostNotReady)
}

func TestHub_OnReadyFiresForFirstClient(t *testing.T) {
	h, srv := startHub(t)
	fired := make(chan struct{}, 2)
	h.OnReady(func() { fired <- struct{}{} })

	_, cancel := subscribe(t, srv.URL)
	defer cancel()

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("ready callback not called")
	}
	assert.Eventually(t, h.Ready, time.Second, 5*time.Millisecond)
}

func TestHub_DrawsThroughManager(t *testing.T) {
	h, srv := startHub(t)
	events, cancel := subscribe(t, srv.URL)
	defer cancel()
	require.Eventually(t, h.Ready, time.Second, 5*time.Millisecond)

	mgr := render.NewManager(render.StaticLibrary(h), render.Options{}, nil, nil)
	mounted, err := mgr.Mount()
	require.NoError(t, err)
	require.True(t, mounted)

	require.NoError(t, mgr.Render(testGraph()))
	got := collect(t, events, EventPolylineAdd)
	assert.Equal(t, 1, countType(got, EventMapCreate))
	assert.Equal(t, 2, countType(got, EventMarkerAdd))

	require.NoError(t, mgr.Unmount())
	collect(t, events, EventMapRemove)
	assert.Equal(t, 0, h.MapCount())
}

func TestHub_ReplaysSceneToLateJoiner(t *testing.T) {
	h, srv := startHub(t)
	_, cancelFirst := subscribe(t, srv.URL)
	defer cancelFirst()
	require.Eventually(t, h.Ready, time.Second, 5*time.Millisecond)

	mgr := render.NewManager(render.StaticLibrary(h), render.Options{}, nil, nil)
	_, err := mgr.Mount()
	require.NoError(t, err)
	require.NoError(t, mgr.Render(testGraph()))
	h.GraphChanged(testGraph())

	late, cancelLate := subscribe(t, srv.URL)
	defer cancelLate()

	got := collect(t, late, EventStats)
	assert.Equal(t, EventMapCreate, got[0].Type)
	assert.Equal(t, EventMapView, got[1].Type)
	assert.Equal(t, 2, countType(got, EventMarkerAdd))
	assert.Equal(t, 1, countType(got, EventPolylineAdd))

	var stats statsPayload
	require.NoError(t, json.Unmarshal(got[len(got)-1].Payload, &stats))
	assert.Equal(t, 2, stats.Stats.TotalNodes)
}

func TestHub_NoticeBroadcast(t *testing.T) {
	h, srv := startHub(t)
	events, cancel := subscribe(t, srv.URL)
	defer cancel()
	require.Eventually(t, h.Ready, time.Second, 5*time.Millisecond)

	h.Notify(dashboard.IsolationNotice("e1", "Main 1", time.Now()))

	got := collect(t, events, EventNotice)
	var n dashboard.Notice
	require.NoError(t, json.Unmarshal(got[len(got)-1].Payload, &n))
	assert.Equal(t, "Pipe Main 1 has been isolated", n.Title)
}

func TestSceneMap_RemovedMapRejectsDraws(t *testing.T) {
	h := New(nil, nil)
	m := h.scene.create(h, render.MapOptions{Zoom: 16})

	require.NoError(t, m.Remove())
	assert.ErrorIs(t, m.Remove(), ErrMapRemoved)
	_, err := m.AddMarker(render.Marker{})
	assert.ErrorIs(t, err, ErrMapRemoved)
	assert.ErrorIs(t, m.SetView(domain.Position{}, 3), ErrMapRemoved)
}

// ringGraph is a loop of n junctions joined by n pipes
func ringGraph(n int) *domain.Graph {
	g := &domain.Graph{Stats: domain.NetworkStats{TotalNodes: n, TotalPipes: n}}
	pos := func(i int) domain.Position {
		return domain.NewPosition(37.3+float64(i%n)/1000, -121.88)
	}
	for i := 0; i < n; i++ {
		g.Nodes = append(g.Nodes, domain.NodeStyle{
			ID: fmt.Sprintf("n%d", i), Name: fmt.Sprintf("Junction %d", i),
			Type: domain.NodeTypeJunction, Position: pos(i), Color: "#f59e0b",
		})
		g.Edges = append(g.Edges, domain.EdgeView{
			ID: fmt.Sprintf("e%d", i), Name: fmt.Sprintf("Main %d", i), Status: domain.EdgeStatusOpen,
			From: pos(i), To: pos(i + 1), Color: "#0ea5e9",
		})
	}
	return g
}

// readN reads exactly n events from the stream
func readN(t *testing.T, events <-chan streamEvent, n int) []streamEvent {
	t.Helper()
	got := make([]streamEvent, 0, n)
	timeout := time.After(10 * time.Second)
	for len(got) < n {
		select {
		case ev, ok := <-events:
			require.True(t, ok, "stream closed after %d of %d events", len(got), n)
			got = append(got, ev)
		case <-timeout:
			t.Fatalf("received %d of %d events", len(got), n)
		}
	}
	return got
}

func TestHub_LargeRebuildReachesLiveClient(t *testing.T) {
	h, srv := startHub(t)
	events, cancel := subscribe(t, srv.URL)
	defer cancel()
	require.Eventually(t, h.Ready, time.Second, 5*time.Millisecond)

	mgr := render.NewManager(render.StaticLibrary(h), render.Options{}, nil, nil)
	_, err := mgr.Mount()
	require.NoError(t, err)

	// the second pass removes all 600 layers of the first, then draws 500
	errc := make(chan error, 1)
	go func() {
		if err := mgr.Render(ringGraph(300)); err != nil {
			errc <- err
			return
		}
		errc <- mgr.Render(ringGraph(250))
	}()

	got := readN(t, events, 1+600+600+500)
	require.NoError(t, <-errc)

	assert.Equal(t, EventMapCreate, got[0].Type)
	first, removes, second := got[1:601], got[601:1201], got[1201:]
	assert.Equal(t, 300, countType(first, EventMarkerAdd))
	assert.Equal(t, 300, countType(first, EventPolylineAdd))
	assert.Equal(t, 600, countType(removes, EventLayerRemove))
	assert.Equal(t, 250, countType(second, EventMarkerAdd))
	assert.Equal(t, 250, countType(second, EventPolylineAdd))

	assert.Equal(t, 1, h.ClientCount(), "a client that keeps up stays connected")
}

func TestHub_StalledClientIsDisconnected(t *testing.T) {
	h := New(nil, nil)
	h.sendTimeout = 20 * time.Millisecond
	done := make(chan struct{})
	go h.Run(done)
	defer close(done)

	client := &Client{id: "stalled", events: make(chan []byte, 1), replay: make(chan [][]byte, 1)}
	h.register <- client
	<-client.replay
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	h.Broadcast(Event{Type: EventNotice})
	h.Broadcast(Event{Type: EventStats})

	// the second event does not fit: the stream is closed instead
	require.Eventually(t, func() bool { return h.ClientCount() == 0 }, time.Second, 5*time.Millisecond)

	msg, ok := <-client.events
	require.True(t, ok)
	assert.Contains(t, string(msg), "event: notice")
	_, ok = <-client.events
	assert.False(t, ok, "queue closed so the browser reconnects")
}

func TestHub_StopEndsOpenStreams(t *testing.T) {
	h := New(nil, nil)
	done := make(chan struct{})
	go h.Run(done)
	srv := httptest.NewServer(h)

	events, cancel := subscribe(t, srv.URL)
	defer cancel()
	require.Eventually(t, h.Ready, time.Second, 5*time.Millisecond)

	close(done)

	// the stream ends without the browser going away
	timeout := time.After(2 * time.Second)
	for open := true; open; {
		select {
		case _, open = <-events:
		case <-timeout:
			t.Fatal("stream still open after the hub stopped")
		}
	}
	assert.Equal(t, 0, h.ClientCount())

	closed := make(chan struct{})
	go func() {
		h.Broadcast(Event{Type: EventNotice})
		srv.Close()
		close(closed)
	}()
	select {
	case <-closed:
	case <-time.After(2 * time.Second):
		t.Fatal("handlers still running after the hub stopped")
	}
}
