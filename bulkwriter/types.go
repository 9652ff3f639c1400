// Package bulkwriter implements the parallel, rate-limited,
// per-document-serialized write engine: coalescing, batch assembly,
// classification-based retry, and user callbacks.
package bulkwriter

import (
	"sync"
	"time"

	"github.com/dataloom-dev/fsadmin/fserrors"
	"github.com/dataloom-dev/fsadmin/fsrpc"
	"github.com/dataloom-dev/fsadmin/fswrite"
	"github.com/dataloom-dev/fsadmin/ratelimit"
)

const (
	defaultMaxBatchSize  = 20
	retryBatchSizeCap    = 10
	defaultMaxPendingOps = 500
	defaultInitialOpsPerSecond = 500
	defaultMaxOpsPerSecond     = 10000
	baseBackoff          = time.Second
	backoffFactor        = 1.5
	maxBackoff           = 60 * time.Second
	jitterFactor         = 0.3
	maxAttempts          = 10
)

// OpKind names the write shape for callbacks and BulkWriterError.
type OpKind int

const (
	OpCreate OpKind = iota
	OpSet
	OpUpdate
	OpDelete
)

// BulkWriterError is surfaced when an operation exhausts retries or is
// classified non-retryable.
type BulkWriterError struct {
	Code     fserrors.Code
	Message  string
	DocPath  string
	OpKind   OpKind
	Attempts int
}

func (e *BulkWriterError) Error() string { return e.Message }

// OnWriteErrorFunc decides whether a failed op should retry. Replacing it
// replaces, not augments, the default policy.
type OnWriteErrorFunc func(err *BulkWriterError) bool

// OnWriteResultFunc is invoked once per op that commits successfully.
type OnWriteResultFunc func(docPath string, kind OpKind, updateTime time.Time)

// operation is the internal per-enqueued-write state.
type operation struct {
	docPath    string
	kind       OpKind
	op         fswrite.Op
	done       chan struct{}
	err        error
	attempts   int
	backoff    time.Duration
	enqueueSeq uint64
}

func (o *operation) resolve(err error) {
	o.err = err
	close(o.done)
}

// Writer is the bulk writer. Its rate limiter is owned per-instance,
// never shared globally.
type Writer struct {
	client       fsrpc.Client
	databaseRoot string // "projects/P/databases/D/documents"
	limiter      *ratelimit.Limiter

	maxBatchSize  int
	maxPendingOps int

	onWriteError  OnWriteErrorFunc
	onWriteResult OnWriteResultFunc

	mu      sync.Mutex
	cond    *sync.Cond
	pending []*operation // FIFO operations eligible for batch assembly

	// buffered holds operations enqueued while activeOps was already at
	// maxPendingOps; they are released into pending in FIFO order as active
	// operations terminally resolve.
	buffered  []*operation
	activeOps int

	// inFlightDocs marks documents with an operation currently batched,
	// in-flight, or awaiting retry backoff, so no other op targeting the
	// same document is ever selected into a batch before it resolves.
	inFlightDocs map[string]bool

	// unresolved tracks every enqueued operation's sequence number until it
	// terminally resolves, so Flush can wait for a specific enqueue horizon.
	unresolved map[uint64]struct{}

	schedulerRunning bool
	closed           bool
	nextSeq          uint64
	wg               sync.WaitGroup
}

// Option configures a Writer at construction.
type Option func(*Writer)

// WithMaxBatchSize overrides the default batch size of 20.
func WithMaxBatchSize(n int) Option { return func(w *Writer) { w.maxBatchSize = n } }

// WithMaxPendingOps overrides the default buffering threshold of 500.
func WithMaxPendingOps(n int) Option { return func(w *Writer) { w.maxPendingOps = n } }

// WithThrottling overrides the rate limiter's initial/max ops-per-second
// (defaults 500/10000); passing ratelimit.Unbounded for both disables
// throttling.
func WithThrottling(initial, max float64) Option {
	return func(w *Writer) { w.limiter = ratelimit.New(initial, max) }
}

// WithOnWriteError replaces the retry policy.
func WithOnWriteError(f OnWriteErrorFunc) Option { return func(w *Writer) { w.onWriteError = f } }

// WithOnWriteResult registers a success callback.
func WithOnWriteResult(f OnWriteResultFunc) Option { return func(w *Writer) { w.onWriteResult = f } }

// New constructs a Writer bound to client, rooted at databaseRoot
// ("projects/P/databases/D/documents").
func New(client fsrpc.Client, databaseRoot string, opts ...Option) *Writer {
	w := &Writer{
		client:        client,
		databaseRoot:  databaseRoot,
		limiter:       ratelimit.New(defaultInitialOpsPerSecond, defaultMaxOpsPerSecond),
		maxBatchSize:  defaultMaxBatchSize,
		maxPendingOps: defaultMaxPendingOps,
		onWriteError:  defaultRetryPolicy,
		inFlightDocs:  map[string]bool{},
		unresolved:    map[uint64]struct{}{},
	}
	w.cond = sync.NewCond(&w.mu)
	for _, o := range opts {
		o(w)
	}
	return w
}

// defaultRetryPolicy retries ABORTED/UNAVAILABLE always, INTERNAL
// additionally for deletes, and caps at 10 attempts.
func defaultRetryPolicy(err *BulkWriterError) bool {
	if err.Attempts >= maxAttempts {
		return false
	}
	return fserrors.IsBulkWriterDefaultRetryable(err.Code, err.OpKind == OpDelete)
}
