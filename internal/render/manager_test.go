package render_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hydrotwin/internal/domain"
	"hydrotwin/internal/render"
	"hydrotwin/internal/render/rendertest"
)

func testGraph() *domain.Graph {
	psi := 52.34
	return &domain.Graph{
		Nodes: []domain.NodeStyle{
			{ID: "n1", Name: "Tank A", Type: domain.NodeTypeTank, Position: domain.NewPosition(37.33, -121.88), Color: "#22c55e", Pressure: &psi},
			{ID: "n2", Name: "J-2", Type: domain.NodeTypeJunction, Position: domain.NewPosition(37.34, -121.89), Color: "#f59e0b"},
		},
		Edges: []domain.EdgeView{
			{ID: "e1", Name: "Main 1", Status: domain.EdgeStatusOpen, From: domain.NewPosition(37.33, -121.88), To: domain.NewPosition(37.34, -121.89), Color: "#ef4444", Dashed: true, Overridden: true},
		},
	}
}

func newManager(host *rendertest.Host) *render.Manager {
	return render.NewManager(render.StaticLibrary(host), render.Options{}, nil, nil)
}

func TestManager_MountReadyHost(t *testing.T) {
	host := rendertest.NewHost(true)
	mgr := newManager(host)

	mounted, err := mgr.Mount()
	require.NoError(t, err)
	assert.True(t, mounted)
	assert.True(t, mgr.Mounted())

	m := host.Current()
	require.NotNil(t, m)
	assert.Equal(t, render.DefaultZoom, m.Options().Zoom)
	assert.Equal(t, render.DefaultCenter, m.Options().Center)
	assert.Equal(t, render.DefaultTileURL, m.Options().Tiles.URL)
}

func TestManager_MountDefersUntilHostReady(t *testing.T) {
	host := rendertest.NewHost(false)
	mgr := newManager(host)

	mounted, err := mgr.Mount()
	require.NoError(t, err)
	assert.False(t, mounted)
	assert.True(t, mgr.Pending())
	assert.Equal(t, 0, host.MapsCreated())

	// a graph rendered while pending is drawn at mount time
	require.NoError(t, mgr.Render(testGraph()))

	mounted, err = mgr.HostReady()
	require.NoError(t, err)
	assert.False(t, mounted, "host still not ready")

	host.SetReady(true)
	mounted, err = mgr.HostReady()
	require.NoError(t, err)
	assert.True(t, mounted)
	assert.Equal(t, 3, host.Current().LayerCount())
}

func TestManager_MountIsIdempotent(t *testing.T) {
	host := rendertest.NewHost(true)
	mgr := newManager(host)

	for i := 0; i < 3; i++ {
		_, err := mgr.Mount()
		require.NoError(t, err)
	}
	assert.Equal(t, 1, host.MapsCreated())
	assert.Equal(t, 1, host.LiveMaps())
}

func TestManager_MountUnmountCycles(t *testing.T) {
	host := rendertest.NewHost(true)
	lib := render.StaticLibrary(host)
	mgr := render.NewManager(lib, render.Options{}, nil, nil)

	for i := 0; i < 5; i++ {
		_, err := mgr.Mount()
		require.NoError(t, err)
		require.NoError(t, mgr.Render(testGraph()))
		assert.Equal(t, 1, host.LiveMaps())
		require.NoError(t, mgr.Unmount())
		assert.Equal(t, 0, host.LiveMaps())
	}

	assert.Equal(t, 1, host.MaxLiveMaps())
	assert.Equal(t, 0, lib.Refs())
	assert.Equal(t, 1, lib.Initializations())
}

func TestManager_RenderRebuildsLayers(t *testing.T) {
	host := rendertest.NewHost(true)
	mgr := newManager(host)
	_, err := mgr.Mount()
	require.NoError(t, err)

	require.NoError(t, mgr.Render(testGraph()))
	m := host.Current()
	assert.Equal(t, 3, m.LayerCount())

	line := m.Lines()["e1"]
	assert.Equal(t, render.DashPattern, line.DashArray)
	assert.Equal(t, 4.0, line.Weight)
	assert.Equal(t, 0.8, line.Opacity)
	assert.Equal(t, "Main 1", line.Popup.Title)
	assert.Equal(t, "isolated", line.Popup.Badge, "overridden edges show the pinned status")

	marker := m.Markers()["n1"]
	assert.Equal(t, 20.0, marker.Radius)
	assert.Equal(t, "#fff", marker.StrokeColor)
	assert.Equal(t, []string{"Pressure: 52.3 psi"}, marker.Popup.Lines)
	assert.Empty(t, m.Markers()["n2"].Popup.Lines)

	// a smaller graph leaves no stale layers behind
	smaller := testGraph()
	smaller.Edges = nil
	require.NoError(t, mgr.Render(smaller))
	assert.Equal(t, 2, m.LayerCount())
	markers, lines := mgr.LayerCounts()
	assert.Equal(t, 2, markers)
	assert.Equal(t, 0, lines)
}

func TestManager_SetCenterKeepsZoom(t *testing.T) {
	host := rendertest.NewHost(true)
	mgr := newManager(host)
	_, err := mgr.Mount()
	require.NoError(t, err)

	m := host.Current()
	m.SetZoom(12)

	target := domain.NewPosition(37.40, -121.90)
	require.NoError(t, mgr.SetCenter(target))
	assert.Equal(t, target, m.Center())
	assert.Equal(t, 12, m.Zoom())
	assert.Equal(t, 1, host.MapsCreated(), "recentering does not rebuild the map")
}

func TestManager_SetCenterBeforeMount(t *testing.T) {
	host := rendertest.NewHost(true)
	mgr := newManager(host)

	target := domain.NewPosition(1, 2)
	require.NoError(t, mgr.SetCenter(target))

	_, err := mgr.Mount()
	require.NoError(t, err)
	assert.Equal(t, target, host.Current().Options().Center)
}

func TestManager_UnmountIdempotent(t *testing.T) {
	host := rendertest.NewHost(true)
	mgr := newManager(host)

	require.NoError(t, mgr.Unmount(), "unmount before mount")

	_, err := mgr.Mount()
	require.NoError(t, err)
	require.NoError(t, mgr.Render(testGraph()))

	require.NoError(t, mgr.Unmount())
	require.NoError(t, mgr.Unmount())

	markers, lines := mgr.LayerCounts()
	assert.Zero(t, markers)
	assert.Zero(t, lines)
	assert.False(t, mgr.Mounted())
}

func TestManager_UnmountWhilePending(t *testing.T) {
	host := rendertest.NewHost(false)
	lib := render.StaticLibrary(host)
	mgr := render.NewManager(lib, render.Options{}, nil, nil)

	_, err := mgr.Mount()
	require.NoError(t, err)
	assert.Equal(t, 1, lib.Refs())

	require.NoError(t, mgr.Unmount())
	assert.Equal(t, 0, lib.Refs())

	// readiness after unmount must not create a map
	host.SetReady(true)
	mounted, err := mgr.HostReady()
	require.NoError(t, err)
	assert.False(t, mounted)
	assert.Equal(t, 0, host.MapsCreated())
}

func TestManager_MapCreationFailure(t *testing.T) {
	host := rendertest.NewHost(true)
	host.FailNextMap(errors.New("container detached"))
	mgr := newManager(host)

	mounted, err := mgr.Mount()
	assert.Error(t, err)
	assert.False(t, mounted)

	// the next attempt succeeds
	mounted, err = mgr.Mount()
	require.NoError(t, err)
	assert.True(t, mounted)
	assert.Equal(t, 1, host.LiveMaps())
}
