// Package mapper converts clicked map coordinates into query geometry.
package mapper

import "github.com/paulmach/orb"

type Interface interface {
	// CellForPoint returns the id and outline of the cell containing lat/lon.
	CellForPoint(lat, lon float64, res int) (string, orb.Polygon, error)
}
