// Package catalog loads the filter and sort example cards shown beside the map.
package catalog

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/mohammed-shakir/mapstate/internal/core/model"
)

//go:embed catalog.yaml
var defaultCatalog []byte

type file struct {
	Items []model.Item `yaml:"items"`
}

func Load(r io.Reader) ([]model.Item, error) {
	var f file
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return []model.Item{}, nil
		}
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	for i, it := range f.Items {
		if strings.TrimSpace(it.Title) == "" {
			return nil, fmt.Errorf("catalog item %d: title is required", i)
		}
		if strings.TrimSpace(it.Filter.Field) == "" {
			return nil, fmt.Errorf("catalog item %q: filter.field is required", it.Title)
		}
	}
	if f.Items == nil {
		f.Items = []model.Item{}
	}
	return f.Items, nil
}

func Default() []model.Item {
	items, err := Load(bytes.NewReader(defaultCatalog))
	if err != nil {
		panic(fmt.Sprintf("embedded catalog: %v", err))
	}
	return items
}
