package dbutils

import (
	"context"
	"errors"
	"reflect"
)

//Iterator walks the rows of a query once, forward only.
//
//	it, err := qs.Iterator(ctx)
//	if err != nil {
//		return err
//	}
//	defer it.Close()
//	for it.Next() {
//		var post Post
//		if err := it.Scan(&post); err != nil {
//			return err
//		}
//	}
//	return it.Err()
type Iterator interface {
	//Next loads the next row, false when the rows are exhausted or an error occurred
	Next() bool
	//Scan copies the current row into dest, a pointer to the model struct or to a pointer of it
	Scan(dest interface{}) error
	//Err returns the error that stopped the iteration, if any
	Err() error
	//Close releases the iterator. Next returns false afterwards.
	Close() error
}

var errNoRow = errors.New("dbutils: Scan called without a successful Next")

//chunkSource loads the rows of an iterator one chunk at a time
type chunkSource interface {
	//next returns the next chunk, a slice of pointers to the model. An empty chunk ends the iteration.
	next(ctx context.Context) (reflect.Value, error)
}

//chunkIterator is an Iterator over the chunks of a chunkSource. Only the current chunk is held in memory.
type chunkIterator struct {
	ctx context.Context
	src chunkSource

	chunk reflect.Value
	pos   int
	cur   reflect.Value

	err  error
	done bool
}

func newChunkIterator(ctx context.Context, src chunkSource) *chunkIterator {
	return &chunkIterator{ctx: ctx, src: src}
}

func (it *chunkIterator) Next() bool {
	it.cur = reflect.Value{}
	if it.done {
		return false
	}

	for !it.chunk.IsValid() || it.pos >= it.chunk.Len() {
		if err := it.ctx.Err(); err != nil {
			return it.fail(err)
		}

		chunk, err := it.src.next(it.ctx)
		if err != nil {
			return it.fail(err)
		}
		if !chunk.IsValid() || chunk.Len() == 0 {
			it.Close()
			return false
		}
		it.chunk, it.pos = chunk, 0
	}

	it.cur = it.chunk.Index(it.pos)
	it.pos++
	return true
}

func (it *chunkIterator) fail(err error) bool {
	it.err = err
	it.Close()
	return false
}

func (it *chunkIterator) Scan(dest interface{}) error {
	if !it.cur.IsValid() {
		return errNoRow
	}
	return assignRow(dest, it.cur)
}

func (it *chunkIterator) Err() error {
	return it.err
}

func (it *chunkIterator) Close() error {
	it.done = true
	it.chunk = reflect.Value{}
	return nil
}

//staticSource yields a single chunk already in memory
type staticSource struct {
	rows reflect.Value
}

func (s *staticSource) next(context.Context) (reflect.Value, error) {
	rows := s.rows
	s.rows = reflect.Value{}
	return rows, nil
}
