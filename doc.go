/*
Package dbutils provides helpers on top of gorm to cut round trips and memory when working with result sets.

AttachForeignKey and AttachForeignKeys fill a relationship on rows that were already loaded with a single
additional query, a LEFT OUTER JOIN done in memory. Unlike Preload only the rows missing the relationship are
looked up, and several sets of rows pointing at the same model share one query.

ToMap and QueryToMap index a result set into a map keyed by any column, the primary key by default.

Large result sets can be walked without loading them whole. A QuerySet describes the query; its Iterator picks
between loading chunks by primary key ranges (NewRangeIterator) and limit/offset pagination (NewOffsetIterator).
SkinnyQuery streams the rows of a single query straight from the database cursor.

Helpers log at debug level to the zap logger carried by the context (ContextWithLogger) and count their queries
with prometheus when given WithMetrics.
*/
package dbutils
