package guard

import (
	"sync"

	"authbridge/internal/domain/auth"
)

// Mount binds a guard to a navigator for the lifetime of one rendered route.
type Mount struct {
	guard Guard
	nav   auth.Navigator

	mu      sync.Mutex
	lastKey string
	fired   bool
}

func NewMount(g Guard, nav auth.Navigator) *Mount {
	if nav == nil {
		nav = auth.NoopNavigator
	}
	return &Mount{guard: g, nav: nav}
}

// Render evaluates the guard against v and navigates when the decision asks
// for a redirect whose key differs from the previous render.
func (m *Mount) Render(v auth.View) Outcome {
	d := m.guard.Evaluate(v)

	m.mu.Lock()
	changed := !m.fired || d.Key != m.lastKey
	m.lastKey = d.Key
	m.fired = true
	m.mu.Unlock()

	if d.Redirect != "" && changed {
		m.nav.Navigate(d.Redirect, d.Replace)
	}
	return d.Outcome
}
