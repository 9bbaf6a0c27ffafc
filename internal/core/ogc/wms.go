package ogc

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

const (
	ParamCQLFilter = "cql_filter"
	ParamSortBy    = "sortBy"
)

// WMSParams holds tile layer options keyed by their WMS parameter name.
type WMSParams map[string]string

func (p WMSParams) Clone() WMSParams {
	out := make(WMSParams, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Without returns a copy with the given keys removed, matched case-insensitively
// since WMS parameter names are case-insensitive.
func (p WMSParams) Without(keys ...string) WMSParams {
	out := p.Clone()
	for k := range out {
		for _, drop := range keys {
			if strings.EqualFold(k, drop) {
				delete(out, k)
				break
			}
		}
	}
	return out
}

// Get looks a key up case-insensitively.
func (p WMSParams) Get(key string) (string, bool) {
	if v, ok := p[key]; ok {
		return v, true
	}
	for k, v := range p {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return "", false
}

func (p WMSParams) Values() url.Values {
	v := url.Values{}
	for k, val := range p {
		v.Set(k, val)
	}
	return v
}

func (p WMSParams) keys() []string {
	ks := make([]string, 0, len(p))
	for k := range p {
		ks = append(ks, k)
	}
	sort.Strings(ks)
	return ks
}

// MergeParams sets each param on the query string of rawURL, replacing any
// existing key that matches case-insensitively. Empty values remove the key.
func MergeParams(rawURL string, params WMSParams) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse wms url: %w", err)
	}
	q := u.Query()
	for _, k := range params.keys() {
		for existing := range q {
			if strings.EqualFold(existing, k) {
				q.Del(existing)
			}
		}
		if v := params[k]; v != "" {
			q.Set(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}
