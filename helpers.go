package dbutils

import (
	"context"
	"fmt"
	"reflect"

	"github.com/jinzhu/gorm"
	"go.uber.org/zap"
)

//ToMap will index rows into output using the value of key on each row. rows must be a slice or a pointer to a
//slice of model structs or struct pointers. output must be a pointer to a map; a nil map is created.
//If key is empty the primary key is used.
//
//The map value decides how rows are stored:
//	map[K]T or map[K]*T    the first row seen for a key is kept, keys are expected to be unique
//	map[K][]T or map[K][]*T every row is appended under its key
//
//K may be the type of the field, the type it points to or wraps (sql.NullInt64 -> int64), any type the value
//converts to, or interface{}. Rows with a NULL key are skipped.
func ToMap(rows interface{}, output interface{}, key string) error {
	list, err := sliceOf(rows)
	if err != nil {
		return err
	}

	out := reflect.ValueOf(output)
	if out.Kind() != reflect.Ptr || out.IsNil() || out.Elem().Kind() != reflect.Map {
		return fmt.Errorf("%w: %T is not a pointer to a map", ErrInvalidOutput, output)
	}
	m := out.Elem()

	info := modelInfoOf(nil, list.Type())
	valType := m.Type().Elem()
	grouped := valType.Kind() == reflect.Slice
	rowType := valType
	if grouped {
		rowType = valType.Elem()
	}
	if baseType(rowType) != info.itemType || (rowType.Kind() == reflect.Ptr && rowType.Elem().Kind() == reflect.Ptr) {
		return fmt.Errorf("%w: map of %s can not hold %s", ErrInvalidOutput, valType, info.itemType)
	}

	f, err := info.keyField(key)
	if err != nil {
		return err
	}

	if m.IsNil() {
		m.Set(reflect.MakeMapWithSize(m.Type(), list.Len()))
	}

	keyType := m.Type().Key()
	for i := 0; i < list.Len(); i++ {
		row, ok := structOf(list.Index(i))
		if !ok {
			continue
		}

		k, ok, err := mapKey(row.FieldByName(f.Name), keyType)
		if err != nil {
			return fmt.Errorf("%s.%s: %w", info.name(), f.Name, err)
		}
		if !ok {
			continue
		}

		existing := m.MapIndex(k)
		if grouped {
			if !existing.IsValid() {
				existing = reflect.MakeSlice(valType, 0, 1)
			}
			m.SetMapIndex(k, reflect.Append(existing, asType(row, rowType)))
			continue
		}

		if existing.IsValid() {
			//first row wins
			continue
		}
		m.SetMapIndex(k, asType(row, rowType))
	}

	return nil
}

//mapKey converts a field value into a key of keyType. false is returned for NULL values.
func mapKey(v reflect.Value, keyType reflect.Type) (reflect.Value, bool, error) {
	if (v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface) && v.IsNil() {
		return reflect.Value{}, false, nil
	}

	if keyType.Kind() != reflect.Interface {
		if v.Type().AssignableTo(keyType) {
			return v, true, nil
		}
		for v.Kind() == reflect.Ptr {
			v = v.Elem()
		}
		if v.Type().AssignableTo(keyType) {
			return v, true, nil
		}
	}

	val, err := fieldValue(v)
	if err != nil {
		return reflect.Value{}, false, err
	}
	if val == nil {
		return reflect.Value{}, false, nil
	}

	rv := reflect.ValueOf(val)
	switch {
	case rv.Type().AssignableTo(keyType):
		return rv, true, nil
	case keyType.Kind() == reflect.String && rv.Kind() != reflect.String:
		//numbers convert to runes, never a useful key
	case rv.Type().ConvertibleTo(keyType):
		return rv.Convert(keyType), true, nil
	}
	return reflect.Value{}, false, fmt.Errorf("%w: can not use %s as map key %s", ErrInvalidOutput, rv.Type(), keyType)
}

//QueryToMap will load every row matched by db into output, indexed by key. The model loaded is the element type
//of the map held by output, see ToMap. A single query is issued.
func QueryToMap(ctx context.Context, db *gorm.DB, output interface{}, key string, opts ...Option) error {
	o := newOptions(opts)

	out := reflect.TypeOf(output)
	if out == nil || out.Kind() != reflect.Ptr || out.Elem().Kind() != reflect.Map {
		return fmt.Errorf("%w: %T is not a pointer to a map", ErrInvalidOutput, output)
	}
	t := baseType(out.Elem().Elem())
	if t.Kind() != reflect.Struct {
		return fmt.Errorf("%w: %T does not hold structs", ErrInvalidOutput, output)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	info := modelInfoOf(db, t)
	rows := info.newChunk()
	if err := db.Find(rows.Interface()).Error; err != nil {
		return err
	}
	o.metrics.query(helperToMap)
	o.metrics.rows(helperToMap, rows.Elem().Len())

	o.log(ctx).Debug("loaded rows for map",
		zap.String("model", info.name()),
		zap.String("key", key),
		zap.Int("rows", rows.Elem().Len()),
	)

	return ToMap(rows.Interface(), output, key)
}

//Distinct returns the distinct values in the order they were first seen
func Distinct[T comparable](values []T) []T {
	seen := make(map[T]struct{}, len(values))
	ret := make([]T, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		ret = append(ret, v)
	}
	return ret
}
