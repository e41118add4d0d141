package dbutils

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"

	"github.com/jinzhu/gorm"
	"go.uber.org/zap"
)

//SkinnyQuery streams the rows of a QuerySet from a single query without keeping them in memory. It can only be
//iterated once; use List to keep the rows around.
type SkinnyQuery struct {
	q QuerySet

	ran bool
	//cache holds the rows loaded by Len, iteration is served from it
	cache reflect.Value
}

//NewSkinnyQuery returns a SkinnyQuery over every row of model matched by db
func NewSkinnyQuery(db *gorm.DB, model interface{}) *SkinnyQuery {
	return NewQuerySet(db, model).Skinny()
}

//Iterator runs the query and returns an iterator scanning one row at a time. A second call returns
//ErrDoubleIteration, unless the rows were loaded by Len.
func (s *SkinnyQuery) Iterator(ctx context.Context, opts ...Option) (Iterator, error) {
	if s.cache.IsValid() {
		return newChunkIterator(ctx, &staticSource{rows: s.cache}), nil
	}
	if s.ran {
		return nil, ErrDoubleIteration
	}
	s.ran = true

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	o := newOptions(opts)
	db := s.q.query()
	rows, err := db.Rows()
	if err != nil {
		return nil, err
	}
	o.metrics.query(helperSkinny)
	o.log(ctx).Debug("streaming rows", zap.String("model", s.q.info.name()))

	return &rowsIterator{
		ctx:     ctx,
		db:      db,
		rows:    rows,
		metrics: o.metrics,
	}, nil
}

//Len loads every row and returns how many there are. The rows are kept and later iteration uses them. Len after
//the query was iterated returns ErrLenAfterIteration; use Count when only the number is needed.
func (s *SkinnyQuery) Len(ctx context.Context, opts ...Option) (int, error) {
	if s.cache.IsValid() {
		return s.cache.Len(), nil
	}
	if s.ran {
		return 0, ErrLenAfterIteration
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	o := newOptions(opts)
	chunk := s.q.info.newChunk()
	if err := s.q.query().Find(chunk.Interface()).Error; err != nil {
		return 0, err
	}
	o.metrics.query(helperSkinny)
	o.metrics.rows(helperSkinny, chunk.Elem().Len())

	s.cache = chunk.Elem()
	return s.cache.Len(), nil
}

//Count returns the number of rows matched with a COUNT query. Order, offset and limit are ignored.
func (s *SkinnyQuery) Count(ctx context.Context, opts ...Option) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var n int
	if err := s.q.filtered().Count(&n).Error; err != nil {
		return 0, err
	}
	newOptions(opts).metrics.query(helperSkinny)
	return n, nil
}

//List iterates the query and appends every row to output, a pointer to a slice of the model structs or struct
//pointers.
func (s *SkinnyQuery) List(ctx context.Context, output interface{}, opts ...Option) error {
	out := reflect.ValueOf(output)
	if out.Kind() != reflect.Ptr || out.IsNil() || out.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("%w: %T is not a pointer to a slice", ErrInvalidOutput, output)
	}
	if t := out.Elem().Type().Elem(); t != s.q.info.itemType && t != reflect.PtrTo(s.q.info.itemType) {
		return fmt.Errorf("%w: %T can not hold %s", ErrInvalidOutput, output, s.q.info.itemType)
	}

	it, err := s.Iterator(ctx, opts...)
	if err != nil {
		return err
	}
	defer it.Close()

	el := out.Elem()
	elemType := el.Type().Elem()
	for it.Next() {
		row := reflect.New(s.q.info.itemType)
		if err := it.Scan(row.Interface()); err != nil {
			return err
		}
		el.Set(reflect.Append(el, asType(row.Elem(), elemType)))
	}
	return it.Err()
}

//rowsIterator scans rows straight from the database cursor
type rowsIterator struct {
	ctx     context.Context
	db      *gorm.DB
	rows    *sql.Rows
	metrics *Metrics

	err    error
	ok     bool
	closed bool
}

func (it *rowsIterator) Next() bool {
	it.ok = false
	if it.closed {
		return false
	}
	if err := it.ctx.Err(); err != nil {
		it.err = err
		it.Close()
		return false
	}
	if !it.rows.Next() {
		it.err = it.rows.Err()
		it.Close()
		return false
	}
	it.metrics.rows(helperSkinny, 1)
	it.ok = true
	return true
}

func (it *rowsIterator) Scan(dest interface{}) error {
	if !it.ok {
		return errNoRow
	}

	val := reflect.ValueOf(dest)
	if val.Kind() != reflect.Ptr || val.IsNil() {
		return fmt.Errorf("%w: type %T can not be set", ErrInvalidOutput, dest)
	}
	if el := val.Elem(); el.Kind() == reflect.Ptr {
		//pointer to a struct pointer, allocate the struct
		if el.IsNil() {
			el.Set(reflect.New(el.Type().Elem()))
		}
		dest = el.Interface()
	}
	return it.db.ScanRows(it.rows, dest)
}

func (it *rowsIterator) Err() error {
	return it.err
}

func (it *rowsIterator) Close() error {
	if it.closed {
		return nil
	}
	it.closed = true
	return it.rows.Close()
}
