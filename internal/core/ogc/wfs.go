package ogc

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"
)

func OWSEndpoint(base string) string {
	return strings.TrimRight(base, "/") + "/streaming/v1/ogc/ows"
}

// KeyProbeURL is the DescribeFeatureType request used to test whether an API key exists.
func KeyProbeURL(base, apiKey string) string {
	params := url.Values{}
	params.Set("service", "WFS")
	params.Set("request", "DescribeFeatureType")
	params.Set("version", "2.0.0")
	params.Set("maxar_api_key", apiKey)
	return OWSEndpoint(base) + "?" + params.Encode()
}

type PointQuery struct {
	TypeName string
	Cell     orb.Polygon
	Filters  string
	SortBy   string
	Count    int
}

func BuildPointQueryParams(q PointQuery) (url.Values, error) {
	if strings.TrimSpace(q.TypeName) == "" {
		return nil, errors.New("typeName is required")
	}
	if len(q.Cell) == 0 || len(q.Cell[0]) < 4 {
		return nil, errors.New("cell polygon must have a closed outer ring")
	}

	params := url.Values{}
	params.Set("service", "WFS")
	params.Set("version", "2.0.0")
	params.Set("request", "GetFeature")
	params.Set("typeNames", q.TypeName)

	cql := fmt.Sprintf("INTERSECTS(geometry, %s)", wkt.MarshalString(q.Cell))
	if f := strings.TrimSpace(q.Filters); f != "" {
		cql = fmt.Sprintf("(%s) AND (%s)", f, cql)
	}
	params.Set(ParamCQLFilter, cql)
	if s := strings.TrimSpace(q.SortBy); s != "" {
		params.Set(ParamSortBy, s)
	}
	if q.Count > 0 {
		params.Set("count", strconv.Itoa(q.Count))
	}
	params.Set("outputFormat", "application/json")
	return params, nil
}
