package store

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/mohammed-shakir/mapstate/internal/core/model"
	"github.com/mohammed-shakir/mapstate/internal/core/ogc"
)

type LayerState struct {
	URL    string        `json:"url"`
	Params ogc.WMSParams `json:"params"`
}

type ErrorState struct {
	Timestamp string `json:"timestamp"`
	Info      string `json:"info"`
	Error     string `json:"error,omitempty"`
}

// State is a point-in-time copy of the store's fields.
type State struct {
	Session             string             `json:"session,omitempty"`
	Filter              model.FilterParam  `json:"filter"`
	SortItems           model.SortParams   `json:"sortItems"`
	CQLFilter           string             `json:"cqlFilter"`
	SortBy              string             `json:"sortBy"`
	ValidCQLFilter      string             `json:"validCqlFilter"`
	ValidSortBy         string             `json:"validSortBy"`
	WMSURL              string             `json:"wmsUrl"`
	WMSLayer            *LayerState        `json:"wmsLayer"`
	Viewport            *orb.Bound         `json:"viewport,omitempty"`
	FeatureInfo         model.FeatureInfo  `json:"featureInfo"`
	FeatureInfoKind     string             `json:"featureInfoKind,omitempty"`
	IsLoading           bool               `json:"isLoading"`
	IsWFSLoading        bool               `json:"isWFSLoading"`
	WFSResults          []*geojson.Feature `json:"wfsResults"`
	IsWFSResultsVisible bool               `json:"isWfsResultsVisible"`
	IsCopyPopupVisible  bool               `json:"isCopyPopupVisible"`
	APIKeyExists        bool               `json:"apiKeyExists"`
	APIKeySet           bool               `json:"apiKeySet"`
	APIURL              string             `json:"apiURL"`
	RecentError         *ErrorState        `json:"recentError"`
	WFSLat              string             `json:"wfsLat"`
	WFSLon              string             `json:"wfsLon"`
}

// Snapshot copies the current fields. The API key itself is never exposed.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := State{
		Session:             s.session,
		Filter:              s.filter,
		SortItems:           append(model.SortParams{}, s.sortItems...),
		CQLFilter:           s.cqlFilter,
		SortBy:              s.sortBy,
		ValidCQLFilter:      s.validCQLFilter,
		ValidSortBy:         s.validSortBy,
		WMSURL:              s.wmsURL,
		FeatureInfo:         s.featureInfo,
		IsLoading:           s.isLoading,
		IsWFSLoading:        s.isWFSLoading,
		WFSResults:          append([]*geojson.Feature{}, s.wfsResults...),
		IsWFSResultsVisible: s.isWFSResultsVisible,
		IsCopyPopupVisible:  s.isCopyPopupVisible,
		APIKeyExists:        s.apiKeyExists,
		APIKeySet:           s.apiKey != "",
		APIURL:              s.apiURL,
		WFSLat:              s.coords.Lat,
		WFSLon:              s.coords.Lon,
	}
	if s.featureInfo != nil {
		st.FeatureInfoKind = s.featureInfo.Kind()
	}
	if s.wmsLayer != nil {
		st.WMSLayer = &LayerState{URL: s.wmsLayer.URL(), Params: s.wmsLayer.Params()}
	}
	if s.m != nil {
		b := s.m.Bounds()
		st.Viewport = &b
	}
	if s.recentError != nil {
		st.RecentError = &ErrorState{
			Timestamp: s.recentError.Timestamp,
			Info:      s.recentError.Info,
			Error:     s.recentError.Message(),
		}
	}
	return st
}

// RecentError returns the last recorded error with its original error value.
func (s *Store) RecentError() (model.RecentError, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recentError == nil {
		return model.RecentError{}, false
	}
	return *s.recentError, true
}
