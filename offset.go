package dbutils

import (
	"context"
	"reflect"

	"go.uber.org/zap"
)

//offsetSource loads chunks with LIMIT and OFFSET
type offsetSource struct {
	q    QuerySet
	o    options
	step int

	at   int
	done bool
}

//NewOffsetIterator iterates through q using limit and offset, keeping the order set on q. Each chunk loads at most
//the step of q and no more than the limit of q rows are returned.
//Later chunks get slower as the offset grows; prefer NewRangeIterator when the query allows it.
func NewOffsetIterator(ctx context.Context, q QuerySet, opts ...Option) (Iterator, error) {
	return newChunkIterator(ctx, &offsetSource{
		q:    q,
		o:    newOptions(opts),
		step: q.chunkSize(),
	}), nil
}

func (s *offsetSource) next(ctx context.Context) (reflect.Value, error) {
	if s.done {
		return reflect.Value{}, nil
	}

	size := s.step
	if s.q.limit > 0 && s.q.limit-s.at < size {
		size = s.q.limit - s.at
	}
	if size <= 0 {
		s.done = true
		return reflect.Value{}, nil
	}

	chunk := s.q.info.newChunk()
	err := s.q.ordered().Offset(s.q.offset + s.at).Limit(size).Find(chunk.Interface()).Error
	if err != nil {
		return reflect.Value{}, err
	}
	rows := chunk.Elem()
	s.o.metrics.query(helperOffset)
	s.o.metrics.rows(helperOffset, rows.Len())

	s.o.log(ctx).Debug("loaded chunk",
		zap.String("strategy", helperOffset),
		zap.String("model", s.q.info.name()),
		zap.Int("offset", s.q.offset+s.at),
		zap.Int("rows", rows.Len()),
	)

	s.at += rows.Len()
	if rows.Len() < size {
		s.done = true
	}
	return rows, nil
}
