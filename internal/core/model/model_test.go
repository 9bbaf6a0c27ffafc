package model

import (
	"errors"
	"testing"
)

func TestSortParams_String(t *testing.T) {
	s := SortParams{
		{Param: "acquisitionDate", Order: OrderDesc},
		{Param: "", Order: OrderAsc},
		{Param: "cloudCover", Order: OrderAsc},
	}
	if got, want := s.String(), "acquisitionDate D,cloudCover A"; got != want {
		t.Fatalf("String()=%q want %q", got, want)
	}
	if got := (SortParams{}).String(); got != "" {
		t.Fatalf("empty list should render empty; got %q", got)
	}
}

func TestParseOrder(t *testing.T) {
	cases := map[string]Order{"asc": OrderAsc, " DESC ": OrderDesc, "A": OrderAsc, "d": OrderDesc}
	for in, want := range cases {
		got, err := ParseOrder(in)
		if err != nil {
			t.Fatalf("ParseOrder(%q) err: %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseOrder(%q)=%q want %q", in, got, want)
		}
	}
	if _, err := ParseOrder("sideways"); err == nil {
		t.Fatal("expected error for unknown order")
	}
}

func TestRecentError_Message(t *testing.T) {
	if got := (RecentError{}).Message(); got != "" {
		t.Fatalf("nil Err should give empty message; got %q", got)
	}
	r := RecentError{Timestamp: "2024-01-01T00:00:00Z", Info: "wms", Err: errors.New("boom")}
	if got := r.Message(); got != "boom" {
		t.Fatalf("Message()=%q want boom", got)
	}
}

func TestParseFeatureInfo_Variants(t *testing.T) {
	fc := `{"type":"FeatureCollection","features":[{"type":"Feature","geometry":{"type":"Point","coordinates":[18.05,59.33]},"properties":{"id":"a"}}]}`
	switch v := ParseFeatureInfo([]byte(fc)).(type) {
	case FeatureCollectionInfo:
		if len(v.Collection.Features) != 1 {
			t.Fatalf("features=%d want 1", len(v.Collection.Features))
		}
	default:
		t.Fatalf("expected FeatureCollectionInfo; got %T", v)
	}

	for _, raw := range []string{"", "  ", "null", `{"type":"FeatureCollection","features":[]}`} {
		if _, ok := ParseFeatureInfo([]byte(raw)).(EmptyInfo); !ok {
			t.Fatalf("expected EmptyInfo for %q", raw)
		}
	}

	for _, raw := range []string{"<html>", `{"type":"Point","coordinates":[1,2]}`} {
		got, ok := ParseFeatureInfo([]byte(raw)).(MalformedInfo)
		if !ok {
			t.Fatalf("expected MalformedInfo for %q", raw)
		}
		if got.Err == nil || got.Kind() != "malformed" {
			t.Fatalf("malformed info must carry an error; got %+v", got)
		}
	}
}
