package render

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubHost struct{}

func (stubHost) Ready() bool                    { return true }
func (stubHost) NewMap(MapOptions) (Map, error) { return nil, errors.New("not implemented") }

func TestLibrary_SingleInitialization(t *testing.T) {
	calls := 0
	lib := NewLibrary(func() (Host, error) {
		calls++
		return stubHost{}, nil
	})

	var wg sync.WaitGroup
	handles := make([]*Handle, 10)
	for i := range handles {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			h, err := lib.Acquire()
			if err == nil {
				handles[i] = h
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, calls)
	assert.Equal(t, 10, lib.Refs())

	for _, h := range handles {
		require.NotNil(t, h)
		h.Release()
		h.Release()
	}
	assert.Equal(t, 0, lib.Refs())

	// reacquiring reuses the host
	_, err := lib.Acquire()
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestLibrary_RetriesFailedInitialization(t *testing.T) {
	fail := true
	lib := NewLibrary(func() (Host, error) {
		if fail {
			return nil, errors.New("script blocked")
		}
		return stubHost{}, nil
	})

	_, err := lib.Acquire()
	require.Error(t, err)
	assert.Equal(t, 0, lib.Refs())

	fail = false
	h, err := lib.Acquire()
	require.NoError(t, err)
	assert.NotNil(t, h.Host())
	assert.Equal(t, 1, lib.Initializations())
}

func TestStyleDefaults(t *testing.T) {
	s := Style{LineWeight: 6}.withDefaults()
	assert.Equal(t, 6.0, s.LineWeight)
	assert.Equal(t, DefaultStyle().NodeRadius, s.NodeRadius)
	assert.Equal(t, DefaultStyle().NodeStrokeColor, s.NodeStrokeColor)
}
