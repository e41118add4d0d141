package dbutils

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

//Callback is run on every chunk loaded by a range iterator before its rows are yielded. rows is a slice of
//pointers to the model type, so callbacks may modify the rows in place.
type Callback func(ctx context.Context, rows interface{}) error

//Option configures a single helper call. Options that do not apply to a helper are ignored.
type Option func(*options)

type options struct {
	logger  *zap.Logger
	metrics *Metrics

	//preloads are passed to gorm Preload when fetching related rows
	preloads []string

	minID    *int64
	maxID    *int64
	unsorted bool
	//related holds relationship paths attached to every chunk, "Author" or "Author.Profile"
	related   []string
	callbacks []Callback
}

func newOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

//log returns the logger set with WithLogger, or the logger carried by ctx
func (o options) log(ctx context.Context) *zap.Logger {
	if o.logger != nil {
		return o.logger
	}
	return LoggerFrom(ctx)
}

//WithLogger sets the logger used for the call, overriding any logger carried by the context.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

//WithMetrics records queries issued and rows loaded by the call.
func WithMetrics(m *Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

//WithPreload preloads the given associations on related rows fetched by AttachForeignKey(s). When preloads are
//requested rows that already hold the relationship are fetched again so every row gets the preloaded data.
func WithPreload(preloads ...string) Option {
	return func(o *options) {
		o.preloads = append(o.preloads, preloads...)
	}
}

//WithMinID sets the lowest primary key a range iterator will load.
func WithMinID(id int64) Option {
	return func(o *options) {
		o.minID = &id
	}
}

//WithMaxID sets the highest primary key a range iterator will load.
func WithMaxID(id int64) Option {
	return func(o *options) {
		o.maxID = &id
	}
}

//WithUnsorted makes a range iterator step through fixed primary key windows between the lowest and highest key
//instead of ordering each chunk. No ORDER BY is issued.
func WithUnsorted() Option {
	return func(o *options) {
		o.unsorted = true
	}
}

//WithRelated attaches relationships to every chunk of a range iterator using AttachForeignKey. A path of
//"Author.Profile" attaches Author and preloads Profile on the authors.
func WithRelated(paths ...string) Option {
	return func(o *options) {
		o.related = append(o.related, paths...)
	}
}

//WithCallback adds a callback run on every chunk of a range iterator.
func WithCallback(cb Callback) Option {
	return func(o *options) {
		o.callbacks = append(o.callbacks, cb)
	}
}

//splitRelated splits a WithRelated path into the relationship field and the preload for the related rows
func splitRelated(path string) (string, []string) {
	i := strings.Index(path, ".")
	if i < 0 {
		return path, nil
	}
	return path[:i], []string{path[i+1:]}
}
