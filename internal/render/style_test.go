package render_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"hydrotwin/internal/domain"
	"hydrotwin/internal/render"
)

func TestEdgePopup(t *testing.T) {
	t.Run("name and status only", func(t *testing.T) {
		p := render.EdgePopup(domain.EdgeView{Name: "Main 1", Status: domain.EdgeStatusClosed})
		assert.Equal(t, "Main 1", p.Title)
		assert.Equal(t, "closed", p.Badge)
		assert.Empty(t, p.Lines)
	})

	t.Run("physical attributes", func(t *testing.T) {
		flow := 18.26
		p := render.EdgePopup(domain.EdgeView{
			Name: "Main 2", Status: domain.EdgeStatusOpen, Overridden: true,
			DiameterMM: 300, LengthM: 412.5, FlowLPS: &flow,
		})
		assert.Equal(t, "isolated", p.Badge)
		assert.Equal(t, []string{"Diameter: 300 mm", "Length: 412.5 m", "Flow: 18.3 L/s"}, p.Lines)
	})

	t.Run("zero flow is still a reading", func(t *testing.T) {
		flow := 0.0
		p := render.EdgePopup(domain.EdgeView{Name: "Main 3", Status: domain.EdgeStatusOpen, FlowLPS: &flow})
		assert.Equal(t, []string{"Flow: 0.0 L/s"}, p.Lines)
	})
}
