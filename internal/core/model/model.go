// Package model defines core domain types shared across the service.
package model

import (
	"fmt"
	"strings"
)

type Order string

const (
	OrderAsc  Order = "asc"
	OrderDesc Order = "desc"
)

// ParseOrder accepts asc/desc as well as the GeoServer A/D suffixes.
func ParseOrder(s string) (Order, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "asc", "a", "ascending":
		return OrderAsc, nil
	case "desc", "d", "descending":
		return OrderDesc, nil
	default:
		return "", fmt.Errorf("unknown sort order %q (must be asc or desc)", s)
	}
}

// Suffix returns the direction letter used by the WMS sortBy vendor parameter
func (o Order) Suffix() string {
	if o == OrderDesc {
		return "D"
	}
	return "A"
}

type FilterParam struct {
	Param   string `json:"param"`
	Example string `json:"example"`
}

type SortParam struct {
	Param string `json:"param"`
	Order Order  `json:"order"`
}

type SortParams []SortParam

// String renders the list in sortBy form, e.g. "acquisitionDate D,cloudCover A"
func (s SortParams) String() string {
	parts := make([]string, 0, len(s))
	for _, p := range s {
		if strings.TrimSpace(p.Param) == "" {
			continue
		}
		parts = append(parts, p.Param+" "+p.Order.Suffix())
	}
	return strings.Join(parts, ",")
}

type FilterExample struct {
	Label   string `json:"label" yaml:"label"`
	Snippet string `json:"snippet" yaml:"snippet"`
}

type SortExample struct {
	Label   string `json:"label" yaml:"label"`
	Snippet string `json:"snippet" yaml:"snippet"`
}

type FilterField struct {
	Field    string          `json:"field" yaml:"field"`
	Examples []FilterExample `json:"examples" yaml:"examples"`
}

type SortField struct {
	Text     string        `json:"text" yaml:"text"`
	Examples []SortExample `json:"examples" yaml:"examples"`
}

// Item is a display card pairing a filterable field with its examples
type Item struct {
	Title       string      `json:"title" yaml:"title"`
	Description string      `json:"description,omitempty" yaml:"description,omitempty"`
	Filter      FilterField `json:"filter" yaml:"filter"`
	Sort        *SortField  `json:"sort,omitempty" yaml:"sort,omitempty"`
}

type RecentError struct {
	Timestamp string `json:"timestamp"`
	Info      string `json:"info"`
	Err       error  `json:"-"`
}

// Message is the printable form of Err, empty when Err is nil.
func (r RecentError) Message() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

type Coordinates struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}
