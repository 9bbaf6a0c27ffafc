// Package store holds the session state behind the map UI: query filter and
// sort edits, the WMS layer lifecycle, API key validity and panel flags.
//
// A Store is created once per session and passed to whoever needs it. All
// mutation goes through its action methods; each action publishes an event so
// observers can re-read the snapshot.
package store

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/mohammed-shakir/mapstate/internal/apikey"
	"github.com/mohammed-shakir/mapstate/internal/core/model"
	"github.com/mohammed-shakir/mapstate/internal/core/observability"
	"github.com/mohammed-shakir/mapstate/internal/core/ogc"
	"github.com/mohammed-shakir/mapstate/internal/events"
	"github.com/mohammed-shakir/mapstate/internal/mapview"
)

const DefaultAPIURL = "https://api.maxar.com/"

type Options struct {
	Session  string
	APIURL   string
	Logger   *slog.Logger
	Verifier apikey.Verifier
	Layers   mapview.LayerFactory
	Events   events.Publisher
}

type Store struct {
	session  string
	log      *slog.Logger
	verifier apikey.Verifier
	layers   mapview.LayerFactory
	events   events.Publisher

	mu sync.Mutex

	filter         model.FilterParam
	sortItems      model.SortParams
	cqlFilter      string
	sortBy         string
	validCQLFilter string
	validSortBy    string

	m        mapview.Map
	wmsLayer mapview.Layer
	wmsURL   string

	featureInfo         model.FeatureInfo
	isLoading           bool
	isWFSLoading        bool
	wfsResults          []*geojson.Feature
	isWFSResultsVisible bool
	isCopyPopupVisible  bool

	apiKey       string
	apiKeyExists bool
	apiURL       string
	keyGen       uint64

	recentError *model.RecentError
	coords      model.Coordinates
}

func New(opts Options) *Store {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Events == nil {
		opts.Events = events.Discard{}
	}
	if opts.APIURL == "" {
		opts.APIURL = DefaultAPIURL
	}
	return &Store{
		session:  opts.Session,
		log:      opts.Logger,
		verifier: opts.Verifier,
		layers:   opts.Layers,
		events:   opts.Events,
		apiURL:   opts.APIURL,
	}
}

func (s *Store) emit(action string) {
	observability.IncStoreAction(action)
	s.events.Publish(events.New(s.session, action))
}

// update runs fn under the lock and publishes action afterwards.
func (s *Store) update(action string, fn func()) {
	s.mu.Lock()
	fn()
	s.mu.Unlock()
	s.emit(action)
}

func (s *Store) AddFilterItem(param, example string) {
	s.update("addFilterItem", func() {
		s.filter = model.FilterParam{Param: param, Example: example}
	})
}

// AddSortItem replaces the entry for param in place, or appends a new one.
func (s *Store) AddSortItem(param string, order model.Order) {
	s.update("addSortItem", func() {
		for i := range s.sortItems {
			if s.sortItems[i].Param == param {
				s.sortItems[i] = model.SortParam{Param: param, Order: order}
				return
			}
		}
		s.sortItems = append(s.sortItems, model.SortParam{Param: param, Order: order})
	})
}

func (s *Store) RemoveSortItem(param string) {
	s.update("removeSortItem", func() {
		kept := make(model.SortParams, 0, len(s.sortItems))
		for _, it := range s.sortItems {
			if it.Param != param {
				kept = append(kept, it)
			}
		}
		s.sortItems = kept
	})
}

func (s *Store) SetMap(m mapview.Map) {
	s.update("setMap", func() { s.m = m })
}

func (s *Store) SetFilter(filter string) {
	s.update("setFilter", func() { s.cqlFilter = filter })
}

func (s *Store) SetSortBy(sort string) {
	s.update("setSortBy", func() { s.sortBy = sort })
}

// SetValidFilter commits filter as the last one known to load successfully.
func (s *Store) SetValidFilter(filter string) {
	s.update("setValidFilter", func() { s.validCQLFilter = filter })
}

func (s *Store) SetValidSortBy(sort string) {
	s.update("setValidSortBy", func() { s.validSortBy = sort })
}

func (s *Store) SetWMSURL(url string) {
	s.update("setWmsUrl", func() { s.wmsURL = url })
}

func (s *Store) CompleteWMSURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wmsURL
}

var ErrNoLayerFactory = errors.New("store has no layer factory")

// InitializeWMSLayer replaces the active WMS layer with a new one on m.
//
// sortBy and cql_filter are dropped from opts while the matching store field is
// empty. The previous layer is removed from its map before the new one is
// attached. On its first load the new layer fits m to the layer's extent, or to
// m's current bounds when the layer reports none. url becomes the stored WMS URL
// only when none was set through SetWMSURL.
func (s *Store) InitializeWMSLayer(m mapview.Map, url string, opts ogc.WMSParams) (mapview.Layer, error) {
	if s.layers == nil {
		return nil, ErrNoLayerFactory
	}

	s.mu.Lock()
	var drop []string
	if s.sortBy == "" {
		drop = append(drop, ogc.ParamSortBy)
	}
	if s.cqlFilter == "" {
		drop = append(drop, ogc.ParamCQLFilter)
	}
	params := opts.Without(drop...)

	if s.wmsLayer != nil {
		prev := s.m
		if prev == nil {
			prev = m
		}
		prev.RemoveLayer(s.wmsLayer)
		if prev != m {
			m.RemoveLayer(s.wmsLayer)
		}
	}

	layer := s.layers.NewWMSLayer(url, params)
	var once sync.Once
	layer.OnLoad(func() {
		once.Do(func() {
			target, ok := layer.Bounds()
			if !ok || target == (orb.Bound{}) {
				target = m.Bounds()
			}
			m.FitBounds(target)
		})
	})
	m.AddLayer(layer)

	s.wmsLayer = layer
	s.m = m
	if s.wmsURL == "" {
		s.wmsURL = url
	}
	s.mu.Unlock()

	s.log.Debug("wms layer initialized", "url", url, "params", len(params))
	s.emit("initializeWmsLayer")
	return layer, nil
}

// UpdateWMSParams merges params into the stored WMS URL and re-applies them to
// the active layer, if any.
func (s *Store) UpdateWMSParams(params ogc.WMSParams) error {
	s.mu.Lock()
	var mergeErr error
	if s.wmsURL != "" {
		merged, err := ogc.MergeParams(s.wmsURL, params)
		if err != nil {
			mergeErr = err
		} else {
			s.wmsURL = merged
		}
	}
	layer := s.wmsLayer
	s.mu.Unlock()

	if layer != nil {
		layer.SetParams(params.Clone())
	}
	s.emit("updateWmsParams")
	return mergeErr
}

// SetFeatureInfo stores info and ends the loading state.
func (s *Store) SetFeatureInfo(info model.FeatureInfo) {
	if info == nil {
		info = model.EmptyInfo{}
	}
	s.update("setFeatureInfo", func() {
		s.featureInfo = info
		s.isLoading = false
	})
}

func (s *Store) SetLoading(loading bool) {
	s.update("setLoading", func() { s.isLoading = loading })
}

func (s *Store) SetWFSLoading(loading bool) {
	s.update("setWFSLoading", func() { s.isWFSLoading = loading })
}

// SetWFSResults stores features and opens the results panel, even when empty.
func (s *Store) SetWFSResults(features []*geojson.Feature) {
	s.update("setWfsResults", func() {
		s.wfsResults = features
		s.isWFSResultsVisible = true
	})
}

func (s *Store) CloseWFSResults() {
	s.update("setWfsResultClose", func() { s.isWFSResultsVisible = false })
}

func (s *Store) SetCoordinates(lat, lon string) {
	s.update("setCoordinates", func() {
		s.coords = model.Coordinates{Lat: lat, Lon: lon}
	})
}

// forgetter is implemented by verifiers that remember verdicts per key.
type forgetter interface {
	Forget(ctx context.Context, key string)
}

// SaveAPIKey replaces the key. Checks still running for the previous key can no
// longer record their result, and any remembered verdicts for either key are
// dropped so the next check asks upstream again.
func (s *Store) SaveAPIKey(key string) {
	var old string
	s.update("saveApiKey", func() {
		old = s.apiKey
		s.apiKey = key
		s.keyGen++
	})
	if f, ok := s.verifier.(forgetter); ok {
		ctx := context.Background()
		if old != "" && old != key {
			f.Forget(ctx, old)
		}
		if key != "" {
			f.Forget(ctx, key)
		}
	}
}

// CheckAPIKey probes the stored key and records whether it exists. Every
// failure collapses to false. When checks overlap only the most recently
// started one may record its result; older results are dropped.
func (s *Store) CheckAPIKey(ctx context.Context) bool {
	s.mu.Lock()
	s.keyGen++
	gen := s.keyGen
	key := s.apiKey
	s.mu.Unlock()

	if strings.TrimSpace(key) == "" {
		s.log.ErrorContext(ctx, "API key is empty")
		observability.IncKeyCheck("empty")
		s.applyKeyResult(gen, false)
		return false
	}
	if s.verifier == nil {
		s.log.ErrorContext(ctx, "no API key verifier configured")
		observability.IncKeyCheck("error")
		s.applyKeyResult(gen, false)
		return false
	}

	err := s.verifier.Verify(ctx, key)
	valid := err == nil
	switch {
	case valid:
		observability.IncKeyCheck("valid")
	case errors.Is(err, apikey.ErrRejected):
		observability.IncKeyCheck("invalid")
		s.log.ErrorContext(ctx, "failed api key response", "err", err)
	default:
		observability.IncKeyCheck("error")
		s.log.ErrorContext(ctx, "error checking api key", "err", err)
	}

	if !s.applyKeyResult(gen, valid) {
		observability.IncKeyCheck("stale")
		s.log.DebugContext(ctx, "discarding stale api key result", "generation", gen)
	}
	return valid
}

func (s *Store) applyKeyResult(gen uint64, valid bool) bool {
	s.mu.Lock()
	if gen != s.keyGen {
		s.mu.Unlock()
		return false
	}
	s.apiKeyExists = valid
	s.mu.Unlock()
	s.emit("checkApiKey")
	return true
}

var ErrNoAPIKey = errors.New("no API key saved")

// FetchWFS runs fetch with the saved API key while the WFS loading flag is set.
// Features are stored and the results panel opened on success; a failure is
// recorded as the recent error instead.
func (s *Store) FetchWFS(ctx context.Context, info string, fetch func(ctx context.Context, key string) ([]*geojson.Feature, error)) error {
	s.mu.Lock()
	key := s.apiKey
	s.mu.Unlock()

	if strings.TrimSpace(key) == "" {
		s.SetRecentError(model.RecentError{Timestamp: now(), Info: info, Err: ErrNoAPIKey})
		return ErrNoAPIKey
	}

	s.SetWFSLoading(true)
	features, err := fetch(ctx, key)
	if err != nil {
		err = apikey.Redact(err, key)
		s.log.ErrorContext(ctx, "wfs fetch failed", "err", err)
		s.update("setWFSLoading", func() {
			s.isWFSLoading = false
			s.recentError = &model.RecentError{Timestamp: now(), Info: info, Err: err}
		})
		return err
	}
	if features == nil {
		features = []*geojson.Feature{}
	}
	s.update("setWfsResults", func() {
		s.wfsResults = features
		s.isWFSResultsVisible = true
		s.isWFSLoading = false
	})
	return nil
}

func (s *Store) OpenCopyPopup() {
	s.update("openCopyPopup", func() { s.isCopyPopupVisible = true })
}

func (s *Store) CloseCopyPopup() {
	s.update("closeCopyPopup", func() { s.isCopyPopupVisible = false })
}

func (s *Store) SetRecentError(e model.RecentError) {
	s.update("setRecentError", func() { s.recentError = &e })
}

func (s *Store) ClearRecentError() {
	s.update("clearRecentError", func() { s.recentError = nil })
}

// Map returns the map the active layer was installed on, or nil.
func (s *Store) Map() mapview.Map {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m
}

// Layer returns the active WMS layer, or nil.
func (s *Store) Layer() mapview.Layer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wmsLayer
}

func now() string { return time.Now().UTC().Format(time.RFC3339) }

func (s *Store) APIURL() string { return s.apiURL }

func (s *Store) Session() string { return s.session }
