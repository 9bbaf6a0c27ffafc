// Package mapview declares the rendering port the store drives. Adapters wrap
// the actual mapping library; the store only issues commands through it.
package mapview

import (
	"github.com/paulmach/orb"

	"github.com/mohammed-shakir/mapstate/internal/core/ogc"
)

type Map interface {
	Bounds() orb.Bound
	FitBounds(b orb.Bound)
	AddLayer(l Layer)
	RemoveLayer(l Layer)
}

type Layer interface {
	URL() string
	Params() ogc.WMSParams
	SetParams(p ogc.WMSParams)
	// OnLoad registers fn to run each time the layer finishes loading tiles.
	OnLoad(fn func())
	// Bounds reports the extent advertised by the layer, if known.
	Bounds() (orb.Bound, bool)
}

type LayerFactory interface {
	NewWMSLayer(url string, params ogc.WMSParams) Layer
}
