package dbutils

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"

	"github.com/jinzhu/gorm"
	"go.uber.org/zap"
)

//rangeSource loads chunks with GREATER THAN and LESS THAN conditions on the primary key
type rangeSource struct {
	db *gorm.DB
	q  QuerySet
	o  options

	pk     *gorm.StructField
	column string
	step   int
	desc   bool

	yielded int
	done    bool

	//at is the next key to load from when sorted, the start of the next window when unsorted
	at      int64
	started bool

	//lo and hi bound the windows of unsorted iteration
	lo, hi int64
}

//NewRangeIterator iterates through q by chunking on its integer primary key. This is much cheaper than limit and
//offset on large tables, but q can not have an order or an offset: ErrInvalidQuery is returned.
//
//By default every chunk is loaded with pk >= ? ORDER BY pk LIMIT step, continuing after the last key seen. A
//negative step of q walks the keys in descending order. With WithUnsorted the lowest and highest keys are queried
//once and the rows are loaded in windows of step keys without an ORDER BY; rows come in key order across windows
//but in database order within one.
//
//WithMinID and WithMaxID bound the keys loaded, the limit of q caps the rows returned. WithRelated and WithCallback
//run on every chunk before its rows are returned.
//
//Models with a non integer or composite primary key are iterated with NewOffsetIterator ordered by the key.
func NewRangeIterator(ctx context.Context, q QuerySet, opts ...Option) (Iterator, error) {
	if q.offset != 0 || len(q.orders) > 0 {
		return nil, ErrInvalidQuery
	}

	pk, err := q.info.primaryField()
	if err != nil || !isInteger(pk) {
		for _, f := range q.info.ms.PrimaryFields {
			q = q.Order(q.db.Dialect().Quote(f.DBName))
		}
		return NewOffsetIterator(ctx, q, opts...)
	}

	s := &rangeSource{
		db:     q.db,
		q:      q,
		o:      newOptions(opts),
		pk:     pk,
		column: q.db.Dialect().Quote(pk.DBName),
		step:   q.chunkSize(),
		desc:   q.step < 0,
	}
	return newChunkIterator(ctx, s), nil
}

func (s *rangeSource) next(ctx context.Context) (reflect.Value, error) {
	if s.done {
		return reflect.Value{}, nil
	}

	var (
		rows reflect.Value
		err  error
	)
	if s.o.unsorted {
		rows, err = s.nextWindow(ctx)
	} else {
		rows, err = s.nextSorted(ctx)
	}
	if err != nil || !rows.IsValid() {
		return reflect.Value{}, err
	}

	if limit := s.q.limit; limit > 0 && s.yielded+rows.Len() >= limit {
		rows = rows.Slice(0, limit-s.yielded)
		s.done = true
	}
	s.yielded += rows.Len()
	if rows.Len() == 0 {
		return rows, nil
	}

	for _, path := range s.o.related {
		field, preloads := splitRelated(path)
		opts := []Option{WithMetrics(s.o.metrics)}
		if s.o.logger != nil {
			opts = append(opts, WithLogger(s.o.logger))
		}
		if len(preloads) > 0 {
			opts = append(opts, WithPreload(preloads...))
		}
		if err := AttachForeignKey(ctx, s.db, rows.Interface(), field, opts...); err != nil {
			return reflect.Value{}, err
		}
	}

	for _, cb := range s.o.callbacks {
		if err := cb(ctx, rows.Interface()); err != nil {
			return reflect.Value{}, err
		}
	}

	return rows, nil
}

//nextSorted loads the chunk following the last key seen
func (s *rangeSource) nextSorted(ctx context.Context) (reflect.Value, error) {
	db := s.bounded(s.q.filtered())
	if s.desc {
		if s.started {
			db = db.Where(fmt.Sprintf("%s <= ?", s.column), s.at)
		}
		db = db.Order(fmt.Sprintf("%s DESC", s.column))
	} else {
		if s.started {
			db = db.Where(fmt.Sprintf("%s >= ?", s.column), s.at)
		}
		db = db.Order(fmt.Sprintf("%s ASC", s.column))
	}

	rows, err := s.load(ctx, db.Limit(s.step))
	if err != nil {
		return reflect.Value{}, err
	}

	if rows.Len() < s.step {
		s.done = true
	}
	if rows.Len() > 0 {
		last, ok := intValue(rows.Index(rows.Len()-1), s.pk)
		if !ok {
			return reflect.Value{}, fmt.Errorf("%w: NULL primary key on %s", ErrInvalidQuery, s.q.info.name())
		}
		s.started = true
		if s.desc {
			s.at = last - 1
		} else {
			s.at = last + 1
		}
	}
	return rows, nil
}

//nextWindow loads the next non empty window of keys
func (s *rangeSource) nextWindow(ctx context.Context) (reflect.Value, error) {
	if !s.started {
		ok, err := s.bounds(ctx)
		if err != nil || !ok {
			s.done = true
			return reflect.Value{}, err
		}
		s.started = true
		if s.desc {
			s.at = s.hi
		} else {
			s.at = s.lo
		}
	}

	step := int64(s.step)
	for !s.done {
		if err := ctx.Err(); err != nil {
			return reflect.Value{}, err
		}

		var from, to int64
		if s.desc {
			to = s.at
			from = to - step + 1
			if from <= s.lo || from > to {
				from = s.lo
				s.done = true
			}
			s.at = from - 1
		} else {
			from = s.at
			to = from + step - 1
			if to >= s.hi || to < from {
				to = s.hi
				s.done = true
			}
			s.at = to + 1
		}

		db := s.q.filtered().Where(fmt.Sprintf("%s BETWEEN ? AND ?", s.column), from, to)
		rows, err := s.load(ctx, db)
		if err != nil {
			return reflect.Value{}, err
		}
		if rows.Len() > 0 {
			return rows, nil
		}
	}

	return reflect.Value{}, nil
}

//bounds sets lo and hi from the options or the lowest and highest keys of the query. false is returned when
//there are no rows or the range is empty.
func (s *rangeSource) bounds(ctx context.Context) (bool, error) {
	var lo, hi sql.NullInt64
	if s.o.minID == nil || s.o.maxID == nil {
		row := s.q.filtered().Select(fmt.Sprintf("MIN(%s), MAX(%s)", s.column, s.column)).Row()
		if err := row.Scan(&lo, &hi); err != nil {
			return false, err
		}
		s.o.metrics.query(helperRange)
	}
	if s.o.minID != nil {
		lo = sql.NullInt64{Int64: *s.o.minID, Valid: true}
	}
	if s.o.maxID != nil {
		hi = sql.NullInt64{Int64: *s.o.maxID, Valid: true}
	}

	s.o.log(ctx).Debug("loaded key range",
		zap.String("model", s.q.info.name()),
		zap.Int64("min", lo.Int64),
		zap.Int64("max", hi.Int64),
	)

	if !lo.Valid || !hi.Valid || lo.Int64 > hi.Int64 {
		return false, nil
	}
	s.lo, s.hi = lo.Int64, hi.Int64
	return true, nil
}

//bounded applies WithMinID and WithMaxID to db
func (s *rangeSource) bounded(db *gorm.DB) *gorm.DB {
	if s.o.minID != nil {
		db = db.Where(fmt.Sprintf("%s >= ?", s.column), *s.o.minID)
	}
	if s.o.maxID != nil {
		db = db.Where(fmt.Sprintf("%s <= ?", s.column), *s.o.maxID)
	}
	return db
}

//load runs db and returns the rows found
func (s *rangeSource) load(ctx context.Context, db *gorm.DB) (reflect.Value, error) {
	chunk := s.q.info.newChunk()
	if err := db.Find(chunk.Interface()).Error; err != nil {
		return reflect.Value{}, err
	}
	rows := chunk.Elem()
	s.o.metrics.query(helperRange)
	s.o.metrics.rows(helperRange, rows.Len())

	s.o.log(ctx).Debug("loaded chunk",
		zap.String("strategy", helperRange),
		zap.String("model", s.q.info.name()),
		zap.Int64("at", s.at),
		zap.Int("rows", rows.Len()),
	)
	return rows, nil
}
