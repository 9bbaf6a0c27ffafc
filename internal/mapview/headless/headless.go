// Package headless is an in-process mapview adapter. It mirrors what the browser
// map shows so the service can answer state queries and drive layer lifecycle
// from events the UI reports back.
package headless

import (
	"sync"

	"github.com/paulmach/orb"

	"github.com/mohammed-shakir/mapstate/internal/core/ogc"
	"github.com/mohammed-shakir/mapstate/internal/mapview"
)

// World is the whole EPSG:4326 extent, used as the initial viewport.
var World = orb.Bound{Min: orb.Point{-180, -90}, Max: orb.Point{180, 90}}

type Map struct {
	mu     sync.RWMutex
	view   orb.Bound
	layers []mapview.Layer
}

func NewMap(view orb.Bound) *Map {
	return &Map{view: view}
}

func (m *Map) Bounds() orb.Bound {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.view
}

func (m *Map) FitBounds(b orb.Bound) {
	m.mu.Lock()
	m.view = b
	m.mu.Unlock()
}

// SetViewport records the viewport reported by the client.
func (m *Map) SetViewport(b orb.Bound) { m.FitBounds(b) }

func (m *Map) AddLayer(l mapview.Layer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, have := range m.layers {
		if have == l {
			return
		}
	}
	m.layers = append(m.layers, l)
}

func (m *Map) RemoveLayer(l mapview.Layer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.layers[:0]
	for _, have := range m.layers {
		if have != l {
			out = append(out, have)
		}
	}
	m.layers = out
}

func (m *Map) Layers() []mapview.Layer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]mapview.Layer, len(m.layers))
	copy(out, m.layers)
	return out
}

type Layer struct {
	mu      sync.Mutex
	url     string
	params  ogc.WMSParams
	bounds  orb.Bound
	hasBnd  bool
	onLoad  []func()
	loads   int
	updates int
}

func (l *Layer) URL() string { return l.url }

func (l *Layer) Params() ogc.WMSParams {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.params.Clone()
}

// SetParams merges p over the current params, mirroring Leaflet's setParams.
func (l *Layer) SetParams(p ogc.WMSParams) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, v := range p {
		l.params[k] = v
	}
	l.updates++
}

func (l *Layer) OnLoad(fn func()) {
	l.mu.Lock()
	l.onLoad = append(l.onLoad, fn)
	l.mu.Unlock()
}

func (l *Layer) Bounds() (orb.Bound, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.bounds, l.hasBnd
}

// Load marks a completed tile load. A non-empty bound is kept as the
// layer's advertised extent before handlers run.
func (l *Layer) Load(b *orb.Bound) {
	l.mu.Lock()
	if b != nil {
		l.bounds, l.hasBnd = *b, true
	}
	l.loads++
	handlers := make([]func(), len(l.onLoad))
	copy(handlers, l.onLoad)
	l.mu.Unlock()

	for _, fn := range handlers {
		fn()
	}
}

func (l *Layer) Loads() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loads
}

func (l *Layer) Updates() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.updates
}

type Factory struct{}

func (Factory) NewWMSLayer(url string, params ogc.WMSParams) mapview.Layer {
	return &Layer{url: url, params: params.Clone()}
}
