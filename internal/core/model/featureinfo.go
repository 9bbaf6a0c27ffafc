package model

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb/geojson"
)

// FeatureInfo is the classified payload of a GetFeatureInfo response.
// Exactly one of FeatureCollectionInfo, EmptyInfo or MalformedInfo.
type FeatureInfo interface {
	Kind() string
	isFeatureInfo()
}

type FeatureCollectionInfo struct {
	Collection *geojson.FeatureCollection
}

type EmptyInfo struct{}

type MalformedInfo struct {
	Raw []byte
	Err error
}

func (FeatureCollectionInfo) Kind() string { return "feature_collection" }
func (EmptyInfo) Kind() string             { return "empty" }
func (MalformedInfo) Kind() string         { return "malformed" }

func (FeatureCollectionInfo) isFeatureInfo() {}
func (EmptyInfo) isFeatureInfo()             {}
func (MalformedInfo) isFeatureInfo()         {}

// MarshalJSON keeps the wire form close to what GeoServer returned.
func (f FeatureCollectionInfo) MarshalJSON() ([]byte, error) {
	if f.Collection == nil {
		return []byte("null"), nil
	}
	b, err := f.Collection.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("marshal feature collection: %w", err)
	}
	return b, nil
}

func (m MalformedInfo) MarshalJSON() ([]byte, error) {
	msg := ""
	if m.Err != nil {
		msg = m.Err.Error()
	}
	return json.Marshal(struct {
		Error string `json:"error"`
		Size  int    `json:"size"`
	}{Error: msg, Size: len(m.Raw)})
}

// ParseFeatureInfo classifies a raw GetFeatureInfo body.
// A collection without features is EmptyInfo, anything that is not a
// FeatureCollection is MalformedInfo.
func ParseFeatureInfo(raw []byte) FeatureInfo {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return EmptyInfo{}
	}

	var hdr struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(trimmed, &hdr); err != nil {
		return MalformedInfo{Raw: raw, Err: fmt.Errorf("parse feature info: %w", err)}
	}
	if hdr.Type != "FeatureCollection" {
		return MalformedInfo{Raw: raw, Err: fmt.Errorf("unexpected GeoJSON type %q", hdr.Type)}
	}

	fc, err := geojson.UnmarshalFeatureCollection(trimmed)
	if err != nil {
		return MalformedInfo{Raw: raw, Err: fmt.Errorf("parse feature collection: %w", err)}
	}
	if len(fc.Features) == 0 {
		return EmptyInfo{}
	}
	return FeatureCollectionInfo{Collection: fc}
}
