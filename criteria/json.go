package criteria

import (
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

var jsoniterForCriteria = jsoniter.Config{
	EscapeHTML:             true,
	SortMapKeys:            true,
	ValidateJsonRawMessage: true,
}.Froze()

// Marshal encodes saved criteria to JSON.
func Marshal(sc *SavedCriteria) ([]byte, error) {
	data, err := jsoniterForCriteria.Marshal(sc)
	if err != nil {
		return nil, errors.Wrap(err, "marshal saved criteria")
	}
	return data, nil
}

// Unmarshal decodes saved criteria from JSON.
func Unmarshal(data []byte) (*SavedCriteria, error) {
	var sc SavedCriteria
	if err := jsoniterForCriteria.Unmarshal(data, &sc); err != nil {
		return nil, errors.Wrap(err, "unmarshal saved criteria")
	}
	return &sc, nil
}

// FiltersKey returns a stable string identifying a filter list, suitable
// as a cache key for compiled predicates.
func FiltersKey(filters []FilterCriterion) (string, error) {
	data, err := jsoniterForCriteria.Marshal(filters)
	if err != nil {
		return "", errors.Wrap(err, "marshal filters")
	}
	return string(data), nil
}
