package dbutils

import (
	"database/sql/driver"
	"fmt"
	"reflect"

	"github.com/jinzhu/gorm"
)

//modelInfo holds the gorm metadata of a model type
type modelInfo struct {
	//itemType is the struct type of the model
	itemType reflect.Type
	//ms is the gorm.ModelStruct of the model
	ms *gorm.ModelStruct
}

//newModelInfo will load gorm metadata for the model held by the scope
func newModelInfo(s *gorm.Scope) *modelInfo {
	ms := s.GetModelStruct()
	return &modelInfo{
		itemType: ms.ModelType,
		ms:       ms,
	}
}

//modelInfoOf loads metadata for a struct type. db is optional, it is used for naming settings such as
//SingularTable
func modelInfoOf(db *gorm.DB, t reflect.Type) *modelInfo {
	value := reflect.New(baseType(t)).Interface()
	if db == nil {
		return newModelInfo(&gorm.Scope{Value: value})
	}
	return newModelInfo(db.NewScope(value))
}

func (m *modelInfo) name() string {
	return m.itemType.Name()
}

//field returns the struct field with the given Go or column name
func (m *modelInfo) field(name string) (*gorm.StructField, error) {
	for _, f := range m.ms.StructFields {
		if f.Name == name {
			return f, nil
		}
	}
	for _, f := range m.ms.StructFields {
		if f.DBName == name && f.IsNormal {
			return f, nil
		}
	}
	return nil, fmt.Errorf("%w %q on %s", ErrUnknownField, name, m.name())
}

//primaryField returns the single primary key field of the model
func (m *modelInfo) primaryField() (*gorm.StructField, error) {
	switch len(m.ms.PrimaryFields) {
	case 0:
		return nil, fmt.Errorf("%w: %s has no primary key", ErrUnknownField, m.name())
	case 1:
		return m.ms.PrimaryFields[0], nil
	}
	return nil, fmt.Errorf("%w: %s", ErrCompositeKey, m.name())
}

//keyField returns the field named key, or the primary key if key is empty
func (m *modelInfo) keyField(key string) (*gorm.StructField, error) {
	if key == "" {
		return m.primaryField()
	}
	f, err := m.field(key)
	if err != nil {
		return nil, err
	}
	if !f.IsNormal {
		return nil, fmt.Errorf("%w %q on %s: not a column", ErrUnknownField, key, m.name())
	}
	return f, nil
}

//newChunk returns a pointer to an empty slice of pointers to the model, ready to be passed to Find
func (m *modelInfo) newChunk() reflect.Value {
	return reflect.New(reflect.SliceOf(reflect.PtrTo(m.itemType)))
}

//fieldValue returns the value of v the database would see. Pointers are followed and driver.Valuer values are
//unwrapped. A nil result means NULL.
func fieldValue(v reflect.Value) (interface{}, error) {
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil, nil
		}
		v = v.Elem()
	}

	val := v.Interface()
	valuer, ok := val.(driver.Valuer)
	if !ok && v.CanAddr() {
		valuer, ok = v.Addr().Interface().(driver.Valuer)
	}
	if ok {
		var err error
		val, err = valuer.Value()
		if err != nil {
			return nil, err
		}
	}

	if b, ok := val.([]byte); ok {
		val = string(b)
	}
	return val, nil
}

//keyString builds a lookup key for a field value. Values of different integer types that hold the same number
//produce the same key so an uint foreign key matches a sql.NullInt64 one.
func keyString(val interface{}) string {
	return fmt.Sprintf("%v", val)
}

//sliceOf will return the slice held by objects, which can be a slice or a pointer to a slice of structs or struct
//pointers
func sliceOf(objects interface{}) (reflect.Value, error) {
	v := reflect.ValueOf(objects)
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return reflect.Value{}, fmt.Errorf("%w: nil %T", ErrInvalidOutput, objects)
		}
		v = v.Elem()
	}

	if v.Kind() != reflect.Slice && v.Kind() != reflect.Array {
		return reflect.Value{}, fmt.Errorf("%w: %T is not a slice", ErrInvalidOutput, objects)
	}
	if baseType(v.Type()).Kind() != reflect.Struct {
		return reflect.Value{}, fmt.Errorf("%w: %T does not hold structs", ErrInvalidOutput, objects)
	}
	return v, nil
}

//structOf returns the addressable struct held by a slice element, false for nil pointers
func structOf(item reflect.Value) (reflect.Value, bool) {
	for item.Kind() == reflect.Ptr {
		if item.IsNil() {
			return reflect.Value{}, false
		}
		item = item.Elem()
	}
	return item, item.CanAddr()
}

//asType returns the addressable struct row as t, which is either the struct type or a pointer to it
func asType(row reflect.Value, t reflect.Type) reflect.Value {
	if t.Kind() == reflect.Ptr {
		return row.Addr()
	}
	return row
}

//assignRow sets dest, a pointer to a struct or a pointer to a struct pointer, to row, a pointer to a struct
func assignRow(dest interface{}, row reflect.Value) error {
	val := reflect.ValueOf(dest)
	if val.Kind() != reflect.Ptr || val.IsNil() || !val.Elem().CanSet() {
		return fmt.Errorf("%w: type %T can not be set", ErrInvalidOutput, dest)
	}

	el := val.Elem()
	switch {
	case el.Type() == row.Type():
		el.Set(row)
	case el.Type() == row.Type().Elem():
		el.Set(row.Elem())
	default:
		return fmt.Errorf("%w: can not scan %s into %T", ErrInvalidOutput, row.Type().Elem(), dest)
	}
	return nil
}

//baseType will return the fully unwrapped type of slice
func baseType(t reflect.Type) reflect.Type {
	switch t.Kind() {
	case reflect.Array, reflect.Ptr, reflect.Slice:
		return baseType(t.Elem())
	}
	return t
}

//isInteger reports whether the field holds an integer, which is required to iterate by key ranges
func isInteger(f *gorm.StructField) bool {
	t := f.Struct.Type
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}

//intValue reads an integer field of row, a pointer to a struct
func intValue(row reflect.Value, f *gorm.StructField) (int64, bool) {
	v := row.Elem().FieldByName(f.Name)
	for v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return 0, false
		}
		v = v.Elem()
	}
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int64(v.Uint()), true
	}
	return 0, false
}
