// Package router maps the session store's actions onto JSON HTTP handlers.
package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/mohammed-shakir/mapstate/internal/core/model"
	"github.com/mohammed-shakir/mapstate/internal/core/observability"
	"github.com/mohammed-shakir/mapstate/internal/core/ogc"
	"github.com/mohammed-shakir/mapstate/internal/mapper"
	"github.com/mohammed-shakir/mapstate/internal/mapview/headless"
	"github.com/mohammed-shakir/mapstate/internal/store"
)

const maxBody = 4 << 20

type Deps struct {
	Logger  *slog.Logger
	Store   *store.Store
	View    *headless.Map
	Mapper  mapper.Interface
	Catalog []model.Item
	Fetcher Fetcher

	TypeName   string
	PointRes   int
	PointCount int
}

type API struct {
	Deps
}

func New(d Deps) *API {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Catalog == nil {
		d.Catalog = []model.Item{}
	}
	return &API{Deps: d}
}

// Mount registers every state route on r.
func (a *API) Mount(r chi.Router) {
	r.Get("/state", a.instrument("/state", a.getState))

	r.Put("/filter", a.instrument("/filter", a.textAction(a.Store.SetFilter)))
	r.Put("/filter/valid", a.instrument("/filter/valid", a.textAction(a.Store.SetValidFilter)))
	r.Put("/filter/item", a.instrument("/filter/item", a.putFilterItem))

	r.Put("/sort", a.instrument("/sort", a.textAction(a.Store.SetSortBy)))
	r.Put("/sort/valid", a.instrument("/sort/valid", a.textAction(a.Store.SetValidSortBy)))
	r.Post("/sort/items", a.instrument("/sort/items", a.postSortItem))
	r.Delete("/sort/items/{param}", a.instrument("/sort/items/{param}", a.deleteSortItem))

	r.Post("/wms/layer", a.instrument("/wms/layer", a.postWMSLayer))
	r.Patch("/wms/params", a.instrument("/wms/params", a.patchWMSParams))
	r.Get("/wms/url", a.instrument("/wms/url", a.getWMSURL))

	r.Put("/map/viewport", a.instrument("/map/viewport", a.putViewport))
	r.Post("/map/layer/loaded", a.instrument("/map/layer/loaded", a.postLayerLoaded))

	r.Put("/apikey", a.instrument("/apikey", a.putAPIKey))
	r.Post("/apikey/check", a.instrument("/apikey/check", a.postCheckAPIKey))

	r.Put("/feature-info", a.instrument("/feature-info", a.putFeatureInfo))
	r.Put("/loading", a.instrument("/loading", a.flagAction(a.Store.SetLoading)))
	r.Put("/wfs/loading", a.instrument("/wfs/loading", a.flagAction(a.Store.SetWFSLoading)))
	r.Put("/wfs/results", a.instrument("/wfs/results", a.putWFSResults))
	r.Delete("/wfs/results", a.instrument("/wfs/results", a.simpleAction(a.Store.CloseWFSResults)))
	r.Put("/coordinates", a.instrument("/coordinates", a.putCoordinates))
	r.Get("/wfs/point-query", a.instrument("/wfs/point-query", a.getPointQuery))
	r.Post("/wfs/point-query", a.instrument("/wfs/point-query", a.postPointQuery))

	r.Post("/popup/copy", a.instrument("/popup/copy", a.simpleAction(a.Store.OpenCopyPopup)))
	r.Delete("/popup/copy", a.instrument("/popup/copy", a.simpleAction(a.Store.CloseCopyPopup)))

	r.Put("/error", a.instrument("/error", a.putError))
	r.Delete("/error", a.instrument("/error", a.simpleAction(a.Store.ClearRecentError)))

	r.Get("/catalog", a.instrument("/catalog", a.getCatalog))
}

func (a *API) instrument(route string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		h(sw, r)
		observability.ObserveHTTP(r.Method, route, sw.code, time.Since(start).Seconds())
	}
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// --- generic handlers ---

type textBody struct {
	Value string `json:"value"`
}

type flagBody struct {
	Value bool `json:"value"`
}

func (a *API) textAction(fn func(string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body textBody
		if !a.decode(w, r, &body) {
			return
		}
		fn(body.Value)
		a.writeState(w)
	}
}

func (a *API) flagAction(fn func(bool)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body flagBody
		if !a.decode(w, r, &body) {
			return
		}
		fn(body.Value)
		a.writeState(w)
	}
}

func (a *API) simpleAction(fn func()) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		fn()
		a.writeState(w)
	}
}

// --- filter & sort ---

func (a *API) getState(w http.ResponseWriter, _ *http.Request) {
	a.writeState(w)
}

func (a *API) putFilterItem(w http.ResponseWriter, r *http.Request) {
	var body model.FilterParam
	if !a.decode(w, r, &body) {
		return
	}
	a.Store.AddFilterItem(body.Param, body.Example)
	a.writeState(w)
}

func (a *API) postSortItem(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Param string `json:"param"`
		Order string `json:"order"`
	}
	if !a.decode(w, r, &body) {
		return
	}
	if strings.TrimSpace(body.Param) == "" {
		http.Error(w, "missing required field: param", http.StatusBadRequest)
		return
	}
	order, err := model.ParseOrder(body.Order)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	a.Store.AddSortItem(body.Param, order)
	a.writeState(w)
}

func (a *API) deleteSortItem(w http.ResponseWriter, r *http.Request) {
	param, err := pathParam(r, "param")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	a.Store.RemoveSortItem(param)
	a.writeState(w)
}

// pathParam returns the decoded value of a route segment. chi matches against
// RawPath when the request carries one, so the segment is still escaped then.
func pathParam(r *http.Request, name string) (string, error) {
	v := chi.URLParam(r, name)
	if r.URL.RawPath == "" {
		return v, nil
	}
	u, err := url.PathUnescape(v)
	if err != nil {
		return "", fmt.Errorf("bad %s segment: %w", name, err)
	}
	return u, nil
}

// --- wms ---

func (a *API) postWMSLayer(w http.ResponseWriter, r *http.Request) {
	var body struct {
		URL     string        `json:"url"`
		Options ogc.WMSParams `json:"options"`
	}
	if !a.decode(w, r, &body) {
		return
	}
	if strings.TrimSpace(body.URL) == "" {
		http.Error(w, "missing required field: url", http.StatusBadRequest)
		return
	}
	if _, err := a.Store.InitializeWMSLayer(a.View, body.URL, body.Options); err != nil {
		a.Logger.ErrorContext(r.Context(), "initialize wms layer", "err", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	a.writeState(w)
}

func (a *API) patchWMSParams(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Params ogc.WMSParams `json:"params"`
	}
	if !a.decode(w, r, &body) {
		return
	}
	if err := a.Store.UpdateWMSParams(body.Params); err != nil {
		http.Error(w, fmt.Sprintf("merge wms params: %v", err), http.StatusBadRequest)
		return
	}
	a.writeState(w)
}

func (a *API) getWMSURL(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"url": a.Store.CompleteWMSURL()})
}

// --- map ---

type boundBody struct {
	Bounds *[4]float64 `json:"bounds"`
}

func (b boundBody) bound() (orb.Bound, error) {
	if b.Bounds == nil {
		return orb.Bound{}, errors.New("missing required field: bounds")
	}
	v := *b.Bounds
	if v[2] < v[0] || v[3] < v[1] {
		return orb.Bound{}, errors.New("bounds must satisfy maxLon>=minLon and maxLat>=minLat")
	}
	return orb.Bound{Min: orb.Point{v[0], v[1]}, Max: orb.Point{v[2], v[3]}}, nil
}

func (a *API) putViewport(w http.ResponseWriter, r *http.Request) {
	var body boundBody
	if !a.decode(w, r, &body) {
		return
	}
	b, err := body.bound()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	a.View.SetViewport(b)
	a.writeState(w)
}

// postLayerLoaded reports a finished tile load for the active layer. Bounds are
// optional; without them the map keeps its viewport on first load.
func (a *API) postLayerLoaded(w http.ResponseWriter, r *http.Request) {
	var body boundBody
	if r.ContentLength != 0 && !a.decode(w, r, &body) {
		return
	}
	layer, ok := a.Store.Layer().(*headless.Layer)
	if !ok || layer == nil {
		http.Error(w, "no active wms layer", http.StatusConflict)
		return
	}
	var extent *orb.Bound
	if body.Bounds != nil {
		b, err := body.bound()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		extent = &b
	}
	layer.Load(extent)
	a.writeState(w)
}

// --- api key ---

func (a *API) putAPIKey(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Key string `json:"key"`
	}
	if !a.decode(w, r, &body) {
		return
	}
	a.Store.SaveAPIKey(body.Key)
	a.writeState(w)
}

func (a *API) postCheckAPIKey(w http.ResponseWriter, r *http.Request) {
	valid := a.Store.CheckAPIKey(r.Context())
	writeJSON(w, http.StatusOK, map[string]bool{"apiKeyExists": valid})
}

// --- feature info & wfs ---

func (a *API) putFeatureInfo(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
	if err != nil {
		http.Error(w, fmt.Sprintf("read body: %v", err), http.StatusBadRequest)
		return
	}
	info := model.ParseFeatureInfo(raw)
	if m, ok := info.(model.MalformedInfo); ok {
		a.Logger.WarnContext(r.Context(), "malformed feature info", "err", m.Err)
	}
	a.Store.SetFeatureInfo(info)
	a.writeState(w)
}

func (a *API) putWFSResults(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
	if err != nil {
		http.Error(w, fmt.Sprintf("read body: %v", err), http.StatusBadRequest)
		return
	}
	features := []*geojson.Feature{}
	if len(strings.TrimSpace(string(raw))) > 0 {
		fc, err := geojson.UnmarshalFeatureCollection(raw)
		if err != nil {
			http.Error(w, fmt.Sprintf("invalid feature collection: %v", err), http.StatusBadRequest)
			return
		}
		features = fc.Features
	}
	a.Store.SetWFSResults(features)
	a.writeState(w)
}

func (a *API) putCoordinates(w http.ResponseWriter, r *http.Request) {
	var body model.Coordinates
	if !a.decode(w, r, &body) {
		return
	}
	a.Store.SetCoordinates(body.Lat, body.Lon)
	a.writeState(w)
}

type pointQueryResponse struct {
	Cell string `json:"cell"`
	URL  string `json:"url"`
}

// Fetcher runs a WFS GetFeature request with the session's API key.
type Fetcher interface {
	FetchFeatures(ctx context.Context, params url.Values, apiKey string) ([]*geojson.Feature, error)
}

type httpError struct {
	code int
	msg  string
}

// pointQuery builds the WFS GetFeature parameters for the last clicked point,
// scoped to its H3 cell and the committed filter and sort. An explicit
// ?filters= overrides the committed filter.
func (a *API) pointQuery(r *http.Request) (string, url.Values, *httpError) {
	if a.Mapper == nil {
		return "", nil, &httpError{http.StatusNotImplemented, "point queries are not configured"}
	}
	st := a.Store.Snapshot()
	lat, err := parseFloat(st.WFSLat)
	if err != nil {
		return "", nil, &httpError{http.StatusBadRequest, fmt.Sprintf("invalid lat: %v", err)}
	}
	lon, err := parseFloat(st.WFSLon)
	if err != nil {
		return "", nil, &httpError{http.StatusBadRequest, fmt.Sprintf("invalid lon: %v", err)}
	}

	filters := st.ValidCQLFilter
	if q := strings.TrimSpace(r.URL.Query().Get("filters")); q != "" {
		filters = q
	}
	if filters != "" && !isSafeCQL(filters) {
		return "", nil, &httpError{http.StatusBadRequest, "invalid or disallowed cql_filter"}
	}

	cellID, cell, err := a.Mapper.CellForPoint(lat, lon, a.PointRes)
	if err != nil {
		return "", nil, &httpError{http.StatusBadRequest, err.Error()}
	}
	params, err := ogc.BuildPointQueryParams(ogc.PointQuery{
		TypeName: a.TypeName,
		Cell:     cell,
		Filters:  filters,
		SortBy:   st.ValidSortBy,
		Count:    a.PointCount,
	})
	if err != nil {
		return "", nil, &httpError{http.StatusBadRequest, err.Error()}
	}
	return cellID, params, nil
}

func (a *API) getPointQuery(w http.ResponseWriter, r *http.Request) {
	cellID, params, herr := a.pointQuery(r)
	if herr != nil {
		http.Error(w, herr.msg, herr.code)
		return
	}
	writeJSON(w, http.StatusOK, pointQueryResponse{
		Cell: cellID,
		URL:  ogc.OWSEndpoint(a.Store.APIURL()) + "?" + params.Encode(),
	})
}

// postPointQuery runs the point query upstream and stores the results.
func (a *API) postPointQuery(w http.ResponseWriter, r *http.Request) {
	if a.Fetcher == nil {
		http.Error(w, "wfs fetching is not configured", http.StatusNotImplemented)
		return
	}
	_, params, herr := a.pointQuery(r)
	if herr != nil {
		http.Error(w, herr.msg, herr.code)
		return
	}
	err := a.Store.FetchWFS(r.Context(), "WFS point query failed", func(ctx context.Context, key string) ([]*geojson.Feature, error) {
		return a.Fetcher.FetchFeatures(ctx, params, key)
	})
	switch {
	case errors.Is(err, store.ErrNoAPIKey):
		http.Error(w, err.Error(), http.StatusConflict)
		return
	case err != nil:
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	a.writeState(w)
}

// --- ui ---

func (a *API) putError(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Timestamp string `json:"timestamp"`
		Info      string `json:"info"`
		Error     string `json:"error"`
	}
	if !a.decode(w, r, &body) {
		return
	}
	if body.Timestamp == "" {
		body.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}
	e := model.RecentError{Timestamp: body.Timestamp, Info: body.Info}
	if body.Error != "" {
		e.Err = errors.New(body.Error)
	}
	a.Store.SetRecentError(e)
	a.writeState(w)
}

func (a *API) getCatalog(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.Catalog)
}

// --- helpers ---

func (a *API) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		http.Error(w, fmt.Sprintf("invalid json body: %v", err), http.StatusBadRequest)
		return false
	}
	return true
}

func (a *API) writeState(w http.ResponseWriter) {
	writeJSON(w, http.StatusOK, a.Store.Snapshot())
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func parseFloat(v string) (float64, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, errors.New("not set")
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("parse float: %w", err)
	}
	return f, nil
}

var safeCQLPattern = regexp.MustCompile(`^[\w\s\=\>\<\!\(\)\.\,\'\"\-\:]+$`)

func isSafeCQL(s string) bool {
	if len(s) > 500 {
		return false
	}
	return safeCQLPattern.MatchString(s)
}
