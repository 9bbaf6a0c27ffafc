package h3mapper

import (
	"fmt"

	h3 "github.com/uber/h3-go/v4"

	"github.com/paulmach/orb"
)

type Mapper struct{}

func New() *Mapper { return &Mapper{} }

func (m *Mapper) CellForPoint(lat, lon float64, res int) (string, orb.Polygon, error) {
	if err := validateRes(res); err != nil {
		return "", nil, err
	}
	if lat < -90 || lat > 90 {
		return "", nil, fmt.Errorf("latitude %v out of range [-90,90]", lat)
	}
	if lon < -180 || lon > 180 {
		return "", nil, fmt.Errorf("longitude %v out of range [-180,180]", lon)
	}

	cell, err := h3.LatLngToCell(h3.NewLatLng(lat, lon), res)
	if err != nil {
		return "", nil, fmt.Errorf("h3 cell for point: %w", err)
	}
	boundary, err := cell.Boundary()
	if err != nil {
		return "", nil, fmt.Errorf("h3 cell boundary: %w", err)
	}
	return cell.String(), toPolygon(boundary), nil
}

// --- helpers ---

func validateRes(res int) error {
	if res < 0 || res > 15 {
		return fmt.Errorf("invalid H3 resolution %d (must be 0..15)", res)
	}
	return nil
}

// toPolygon builds a closed lon/lat ring from an h3 boundary.
func toPolygon(b h3.CellBoundary) orb.Polygon {
	ring := make(orb.Ring, 0, len(b)+1)
	for _, ll := range b {
		ring = append(ring, orb.Point{ll.Lng, ll.Lat})
	}
	if len(ring) > 0 && ring[0] != ring[len(ring)-1] {
		ring = append(ring, ring[0])
	}
	return orb.Polygon{ring}
}
