package gormsource

import (
	"reflect"

	"github.com/pkg/errors"
	"gorm.io/gorm"
)

// basedOnModel reports whether records are scanned through db.Statement.Model
// rather than into []T. T must be a struct or struct pointer otherwise.
func basedOnModel[T any](db *gorm.DB) (bool, error) {
	if db.Statement.Model != nil {
		return true, nil
	}
	rt := reflect.TypeFor[T]()
	if rt.Kind() == reflect.Struct || (rt.Kind() == reflect.Pointer && rt.Elem().Kind() == reflect.Struct) {
		return false, nil
	}
	return false, errors.Errorf("invalid record type %s: db.Statement.Model is nil and it is not a struct or struct pointer", rt)
}

func applyModel[T any](db *gorm.DB) *gorm.DB {
	rt := reflect.TypeFor[T]()
	if rt.Kind() == reflect.Pointer {
		rt = rt.Elem()
	}
	return db.Model(reflect.New(rt).Interface())
}

// findBasedOnModel scans into a slice of the model type and asserts each
// element to T.
func findBasedOnModel[T any](db *gorm.DB) ([]T, error) {
	modelType := reflect.TypeOf(db.Statement.Model)
	recsVal := reflect.New(reflect.SliceOf(modelType)).Elem()
	if err := db.Find(recsVal.Addr().Interface()).Error; err != nil {
		return nil, errors.Wrap(err, "find")
	}

	recs := make([]T, recsVal.Len())
	for i := range recsVal.Len() {
		rec, ok := recsVal.Index(i).Interface().(T)
		if !ok {
			return nil, errors.Errorf("model type %s is not the record type %s", modelType, reflect.TypeFor[T]())
		}
		recs[i] = rec
	}
	return recs, nil
}
