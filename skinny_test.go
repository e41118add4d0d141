package dbutils

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSkinnyQuery(t *testing.T) {
	t.Parallel()

	t.Run("should stream every row in one query", func(t *testing.T) {
		t.Parallel()
		m := NewMetrics("test")
		s := NewQuerySet(testDB, Post{}).Order("post_id").Skinny()

		it, err := s.Iterator(context.Background(), WithMetrics(m))
		require.NoError(t, err)

		assert.Equal(t, postIDs(), collectIDs(t, it))
		assert.Equal(t, float64(1), testutil.ToFloat64(m.Queries.WithLabelValues(helperSkinny)))
		assert.Equal(t, float64(25), testutil.ToFloat64(m.Rows.WithLabelValues(helperSkinny)))
	})

	t.Run("should refuse a second iteration", func(t *testing.T) {
		t.Parallel()
		s := NewSkinnyQuery(testDB, &Post{})

		it, err := s.Iterator(context.Background())
		require.NoError(t, err)
		require.NoError(t, it.Close())

		_, err = s.Iterator(context.Background())
		assert.ErrorIs(t, err, ErrDoubleIteration)

		_, err = s.Len(context.Background())
		assert.ErrorIs(t, err, ErrLenAfterIteration)
	})

	t.Run("should iterate the rows loaded by Len", func(t *testing.T) {
		t.Parallel()
		m := NewMetrics("test")
		s := NewQuerySet(testDB, Post{}).Where("thread_id = ?", 1).Order("post_id").Skinny()

		n, err := s.Len(context.Background(), WithMetrics(m))
		require.NoError(t, err)
		assert.Equal(t, 7, n)

		want := postIDsWhere(func(id uint) bool { return id%3 == 0 })
		for i := 0; i < 2; i++ {
			it, err := s.Iterator(context.Background(), WithMetrics(m))
			require.NoError(t, err)
			assert.Equal(t, want, collectIDs(t, it))
		}

		n, err = s.Len(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 7, n)
		assert.Equal(t, float64(1), testutil.ToFloat64(m.Queries.WithLabelValues(helperSkinny)))
	})

	t.Run("should apply offset and limit", func(t *testing.T) {
		t.Parallel()
		s := NewQuerySet(testDB, Post{}).Order("post_id").Offset(18).Limit(4).Skinny()

		it, err := s.Iterator(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []uint{19, 20, 31, 32}, collectIDs(t, it))
	})

	t.Run("should count without loading rows", func(t *testing.T) {
		t.Parallel()
		n, err := NewSkinnyQuery(testDB.Where("thread_id = ?", 2), Post{}).Count(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 9, n)

		s := NewQuerySet(testDB, Post{}).Skinny()
		it, err := s.Iterator(context.Background())
		require.NoError(t, err)
		defer it.Close()

		n, err = s.Count(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 25, n, "Count works after iteration")
	})

	t.Run("should list into structs and pointers", func(t *testing.T) {
		t.Parallel()
		var values []Post
		require.NoError(t, NewQuerySet(testDB, Post{}).Where("thread_id = ?", 1).Order("post_id").Skinny().
			List(context.Background(), &values))
		require.Len(t, values, 7)
		assert.Equal(t, uint(3), values[0].PostID)
		assert.Equal(t, "p3", values[0].Body)

		var ptrs []*Post
		require.NoError(t, NewQuerySet(testDB, Post{}).Where("thread_id = ?", 1).Order("post_id").Skinny().
			List(context.Background(), &ptrs))
		require.Len(t, ptrs, 7)
		assert.Equal(t, uint(33), ptrs[6].PostID)
		require.NotNil(t, ptrs[6].AuthorID)
		assert.Equal(t, uint(1), *ptrs[6].AuthorID)
	})

	t.Run("should reject invalid list outputs", func(t *testing.T) {
		t.Parallel()
		var threads []Thread
		err := NewSkinnyQuery(testDB, Post{}).List(context.Background(), &threads)
		assert.ErrorIs(t, err, ErrInvalidOutput)
	})

	t.Run("should stop when the context is done", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		it, err := NewSkinnyQuery(testDB, Post{}).Iterator(ctx)
		require.NoError(t, err)
		defer it.Close()

		require.True(t, it.Next())
		cancel()
		assert.False(t, it.Next())
		assert.ErrorIs(t, it.Err(), context.Canceled)
	})

	t.Run("should fail on a canceled context", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := NewSkinnyQuery(testDB, Post{}).Iterator(ctx)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
