package docstore

import (
	"context"
	"iter"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// StoreMetrics are the collectors recorded by InstrumentedStore.
type StoreMetrics struct {
	Operations *prometheus.CounterVec
	Errors     *prometheus.CounterVec
	Duration   *prometheus.HistogramVec
}

// NewStoreMetrics creates the collectors and registers them with reg when it is not nil.
func NewStoreMetrics(reg prometheus.Registerer) *StoreMetrics {
	m := &StoreMetrics{
		Operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docstore_operations_total",
				Help: "Document store operations by operation and collection",
			},
			[]string{"op", "collection"},
		),
		Errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docstore_operation_errors_total",
				Help: "Failed document store operations by operation and collection",
			},
			[]string{"op", "collection"},
		),
		Duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "docstore_operation_duration_seconds",
				Help:    "Document store operation latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op", "collection"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.Operations, m.Errors, m.Duration)
	}
	return m
}

// InstrumentedStore records Prometheus metrics around another Store.
type InstrumentedStore struct {
	next    Store
	metrics *StoreMetrics
}

// Instrument wraps store with metrics registered on reg.
func Instrument(store Store, reg prometheus.Registerer) *InstrumentedStore {
	return &InstrumentedStore{next: store, metrics: NewStoreMetrics(reg)}
}

func (s *InstrumentedStore) observe(op, collection string, start time.Time, err error) {
	s.metrics.Operations.WithLabelValues(op, collection).Inc()
	s.metrics.Duration.WithLabelValues(op, collection).Observe(time.Since(start).Seconds())
	if err != nil {
		s.metrics.Errors.WithLabelValues(op, collection).Inc()
	}
}

func (s *InstrumentedStore) AddCollection(ctx context.Context, name string, indexes ...Index) (err error) {
	defer func(start time.Time) { s.observe("add_collection", name, start, err) }(time.Now())
	return s.next.AddCollection(ctx, name, indexes...)
}

func (s *InstrumentedStore) HasCollection(ctx context.Context, name string) (ok bool, err error) {
	defer func(start time.Time) { s.observe("has_collection", name, start, err) }(time.Now())
	return s.next.HasCollection(ctx, name)
}

func (s *InstrumentedStore) DropCollection(ctx context.Context, name string) (err error) {
	defer func(start time.Time) { s.observe("drop_collection", name, start, err) }(time.Now())
	return s.next.DropCollection(ctx, name)
}

func (s *InstrumentedStore) ListCollections(ctx context.Context) (names []string, err error) {
	defer func(start time.Time) { s.observe("list_collections", "", start, err) }(time.Now())
	return s.next.ListCollections(ctx)
}

func (s *InstrumentedStore) AddDoc(ctx context.Context, collection, id string, doc Document) (err error) {
	defer func(start time.Time) { s.observe("add", collection, start, err) }(time.Now())
	return s.next.AddDoc(ctx, collection, id, doc)
}

func (s *InstrumentedStore) UpdateDoc(ctx context.Context, collection, id string, doc Document) (err error) {
	defer func(start time.Time) { s.observe("update", collection, start, err) }(time.Now())
	return s.next.UpdateDoc(ctx, collection, id, doc)
}

func (s *InstrumentedStore) UpsertDoc(ctx context.Context, collection, id string, doc Document) (err error) {
	defer func(start time.Time) { s.observe("upsert", collection, start, err) }(time.Now())
	return s.next.UpsertDoc(ctx, collection, id, doc)
}

func (s *InstrumentedStore) ReplaceDoc(ctx context.Context, collection, id string, doc Document) (err error) {
	defer func(start time.Time) { s.observe("replace", collection, start, err) }(time.Now())
	return s.next.ReplaceDoc(ctx, collection, id, doc)
}

func (s *InstrumentedStore) DeleteDoc(ctx context.Context, collection, id string) (err error) {
	defer func(start time.Time) { s.observe("delete", collection, start, err) }(time.Now())
	return s.next.DeleteDoc(ctx, collection, id)
}

func (s *InstrumentedStore) GetDoc(ctx context.Context, collection, id string) (doc Document, err error) {
	defer func(start time.Time) { s.observe("get", collection, start, err) }(time.Now())
	return s.next.GetDoc(ctx, collection, id)
}

func (s *InstrumentedStore) CountDocs(ctx context.Context, collection string, filter Filter) (n int, err error) {
	defer func(start time.Time) { s.observe("count", collection, start, err) }(time.Now())
	return s.next.CountDocs(ctx, collection, filter)
}

func (s *InstrumentedStore) FindDocs(ctx context.Context, collection string, filter Filter, opts ...FindOption) iter.Seq2[Document, error] {
	return s.observeSeq("find", collection, s.next.FindDocs(ctx, collection, filter, opts...))
}

func (s *InstrumentedStore) FindPartialDocs(ctx context.Context, collection string, sel PartialSelect, filter Filter, opts ...FindOption) iter.Seq2[Document, error] {
	return s.observeSeq("find_partial", collection, s.next.FindPartialDocs(ctx, collection, sel, filter, opts...))
}

// observeSeq records one operation per iteration of seq, timed until the
// caller stops ranging.
func (s *InstrumentedStore) observeSeq(op, collection string, seq iter.Seq2[Document, error]) iter.Seq2[Document, error] {
	return func(yield func(Document, error) bool) {
		start := time.Now()
		var failure error
		defer func() { s.observe(op, collection, start, failure) }()
		for doc, err := range seq {
			if err != nil {
				failure = err
			}
			if !yield(doc, err) {
				return
			}
		}
	}
}
