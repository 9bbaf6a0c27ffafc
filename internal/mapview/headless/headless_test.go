package headless

import (
	"testing"

	"github.com/paulmach/orb"

	"github.com/mohammed-shakir/mapstate/internal/core/ogc"
)

func TestMap_AddRemoveLayer(t *testing.T) {
	m := NewMap(orb.Bound{Min: orb.Point{-10, -10}, Max: orb.Point{10, 10}})
	a := Factory{}.NewWMSLayer("https://wms/a", nil)
	b := Factory{}.NewWMSLayer("https://wms/b", nil)

	m.AddLayer(a)
	m.AddLayer(a)
	m.AddLayer(b)
	if n := len(m.Layers()); n != 2 {
		t.Fatalf("layers=%d want 2 (duplicates ignored)", n)
	}
	m.RemoveLayer(a)
	got := m.Layers()
	if len(got) != 1 || got[0] != b {
		t.Fatalf("expected only layer b to remain; got %v", got)
	}
	m.RemoveLayer(a)
	if n := len(m.Layers()); n != 1 {
		t.Fatalf("removing an absent layer must be a no-op; layers=%d", n)
	}
}

func TestLayer_SetParamsMergesAndCopies(t *testing.T) {
	src := ogc.WMSParams{"layers": "Maxar:Imagery"}
	l := Factory{}.NewWMSLayer("https://wms", src).(*Layer)
	src["layers"] = "mutated"

	l.SetParams(ogc.WMSParams{"cql_filter": "a=1"})
	p := l.Params()
	if p["layers"] != "Maxar:Imagery" || p["cql_filter"] != "a=1" {
		t.Fatalf("unexpected params %v", p)
	}
	if l.Updates() != 1 {
		t.Fatalf("updates=%d want 1", l.Updates())
	}
}

func TestLayer_LoadRunsHandlersAndRecordsBounds(t *testing.T) {
	l := Factory{}.NewWMSLayer("https://wms", nil).(*Layer)
	calls := 0
	l.OnLoad(func() { calls++ })

	l.Load(nil)
	if _, ok := l.Bounds(); ok {
		t.Fatal("bounds must be unknown before a bounded load")
	}
	bb := orb.Bound{Min: orb.Point{1, 2}, Max: orb.Point{3, 4}}
	l.Load(&bb)
	got, ok := l.Bounds()
	if !ok || got != bb {
		t.Fatalf("bounds=%v,%v want %v", got, ok, bb)
	}
	if calls != 2 || l.Loads() != 2 {
		t.Fatalf("calls=%d loads=%d want 2/2", calls, l.Loads())
	}
}
