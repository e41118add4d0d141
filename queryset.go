package dbutils

import (
	"context"
	"reflect"

	"github.com/jinzhu/gorm"
)

//DefaultStep is the number of rows loaded per query by iterators unless QuerySet.Step is used
const DefaultStep = 10000

//QuerySet describes a query over a single model that can be iterated in chunks. gorm does not expose the order,
//offset and limit set on a *gorm.DB so they are tracked here to pick an iteration strategy.
//Each method returns a modified copy.
type QuerySet struct {
	db    *gorm.DB
	model interface{}
	info  *modelInfo

	wheres []whereClause
	orders []interface{}
	offset int
	limit  int
	step   int
}

type whereClause struct {
	query interface{}
	args  []interface{}
}

//NewQuerySet creates a QuerySet for model, a struct or a pointer to one. Conditions already set on db apply to
//every query.
func NewQuerySet(db *gorm.DB, model interface{}) QuerySet {
	t := baseType(reflect.TypeOf(model))
	return QuerySet{
		db:    db,
		model: reflect.New(t).Interface(),
		info:  modelInfoOf(db, t),
		step:  DefaultStep,
	}
}

//Where adds a condition, same arguments as gorm.DB.Where
func (q QuerySet) Where(query interface{}, args ...interface{}) QuerySet {
	q.wheres = append(append([]whereClause(nil), q.wheres...), whereClause{query: query, args: args})
	return q
}

//Order adds an ORDER BY clause. An ordered QuerySet is iterated with limit and offset.
func (q QuerySet) Order(value interface{}) QuerySet {
	q.orders = append(append([]interface{}(nil), q.orders...), value)
	return q
}

//Offset skips the first n rows. A QuerySet with an offset is iterated with limit and offset.
func (q QuerySet) Offset(n int) QuerySet {
	q.offset = n
	return q
}

//Limit caps the number of rows iterated, 0 removes the limit
func (q QuerySet) Limit(n int) QuerySet {
	q.limit = n
	return q
}

//Step sets the number of rows loaded per query. A negative step iterates by primary key in descending order.
func (q QuerySet) Step(n int) QuerySet {
	if n != 0 {
		q.step = n
	}
	return q
}

//filtered returns the gorm query with the model and conditions set, without order, offset and limit
func (q QuerySet) filtered() *gorm.DB {
	db := q.db.Model(q.model)
	for _, w := range q.wheres {
		db = db.Where(w.query, w.args...)
	}
	return db
}

//ordered returns filtered with the orders applied
func (q QuerySet) ordered() *gorm.DB {
	db := q.filtered()
	for _, o := range q.orders {
		db = db.Order(o)
	}
	return db
}

//query returns the full gorm query as described by the QuerySet
func (q QuerySet) query() *gorm.DB {
	db := q.ordered()
	if q.offset > 0 {
		db = db.Offset(q.offset)
	}
	if q.limit > 0 {
		db = db.Limit(q.limit)
	}
	return db
}

//chunkSize returns the absolute step, never more than the limit
func (q QuerySet) chunkSize() int {
	step := q.step
	if step < 0 {
		step = -step
	}
	if q.limit > 0 && q.limit < step {
		step = q.limit
	}
	return step
}

//Iterator returns an iterator over the QuerySet. Without an offset or an order the rows are loaded by primary key
//ranges, see NewRangeIterator, otherwise with limit and offset, see NewOffsetIterator.
func (q QuerySet) Iterator(ctx context.Context, opts ...Option) (Iterator, error) {
	if q.offset == 0 && len(q.orders) == 0 {
		return NewRangeIterator(ctx, q, opts...)
	}
	return NewOffsetIterator(ctx, q, opts...)
}

//Skinny returns a SkinnyQuery streaming the rows of the QuerySet
func (q QuerySet) Skinny() *SkinnyQuery {
	return &SkinnyQuery{q: q}
}
