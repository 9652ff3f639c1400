package bulkwriter

import (
	"context"
	"math/rand"
	"time"

	pb "cloud.google.com/go/firestore/apiv1/firestorepb"
	"github.com/dataloom-dev/fsadmin/fserrors"
	"github.com/dataloom-dev/fsadmin/fswrite"
	"github.com/rs/zerolog/log"
	grpcstatus "google.golang.org/grpc/status"
)

// Future is the handle a caller awaits for one enqueued operation's
// terminal outcome.
type Future struct {
	op *operation
}

// Wait blocks until the operation resolves, returning its error (nil on
// success). It also respects ctx cancellation.
func (f *Future) Wait(ctx context.Context) error {
	select {
	case <-f.op.done:
		return f.op.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func closedErr() error {
	return fserrors.New(fserrors.CodeFailedPrecondition, fserrors.MsgBulkWriterClosed)
}

func (w *Writer) enqueue(docPath string, kind OpKind, op fswrite.Op) *Future {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		o := &operation{docPath: docPath, kind: kind, op: op, done: make(chan struct{})}
		o.resolve(closedErr())
		return &Future{op: o}
	}
	w.nextSeq++
	o := &operation{
		docPath:    docPath,
		kind:       kind,
		op:         op,
		done:       make(chan struct{}),
		backoff:    0,
		enqueueSeq: w.nextSeq,
	}
	if w.unresolved == nil {
		w.unresolved = map[uint64]struct{}{}
	}
	w.unresolved[o.enqueueSeq] = struct{}{}
	if w.activeOps >= w.maxPendingOps {
		w.buffered = append(w.buffered, o)
	} else {
		w.activeOps++
		w.pending = append(w.pending, o)
		w.cond.Signal()
	}
	w.mu.Unlock()

	w.ensureScheduler()
	return &Future{op: o}
}

// Create enqueues a create() write.
func (w *Writer) Create(docPath string, fields map[string]fswrite.Input) (*Future, error) {
	op, err := fswrite.Create(docPath, fields)
	if err != nil {
		return nil, err
	}
	return w.enqueue(docPath, OpCreate, op), nil
}

// Set enqueues a set() write (replace, merge, or mergeFields depending on
// how op was built via fswrite.SetReplace/SetMerge/SetMergeFields).
func (w *Writer) Set(docPath string, op fswrite.Op) *Future {
	return w.enqueue(docPath, OpSet, op)
}

// Update enqueues an update() write.
func (w *Writer) Update(docPath string, fields map[string]fswrite.Input, prec fswrite.Precondition) (*Future, error) {
	op, err := fswrite.Update(docPath, fields, prec)
	if err != nil {
		return nil, err
	}
	return w.enqueue(docPath, OpUpdate, op), nil
}

// Delete enqueues a delete() write.
func (w *Writer) Delete(docPath string, prec fswrite.Precondition) *Future {
	return w.enqueue(docPath, OpDelete, fswrite.Delete(docPath, prec))
}

// Flush blocks until every op enqueued before this call has terminally
// completed; ops enqueued afterward do not delay it.
func (w *Writer) Flush() {
	w.mu.Lock()
	limit := w.nextSeq
	for w.hasUnresolvedBelow(limit) {
		w.cond.Wait()
	}
	w.mu.Unlock()
}

func (w *Writer) hasUnresolvedBelow(limit uint64) bool {
	for seq := range w.unresolved {
		if seq <= limit {
			return true
		}
	}
	return false
}

// Close flushes all outstanding operations and marks the writer closed;
// idempotent.
func (w *Writer) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	w.mu.Unlock()

	w.Flush()
	w.wg.Wait()
}

// ensureScheduler starts the single cooperative scheduler goroutine the
// first time an op is enqueued.
func (w *Writer) ensureScheduler() {
	w.mu.Lock()
	if w.schedulerRunning {
		w.mu.Unlock()
		return
	}
	w.schedulerRunning = true
	w.mu.Unlock()

	w.wg.Add(1)
	go w.schedule()
}

// drainedLocked reports whether the scheduler may stop entirely: the writer is
// closed, nothing is queued, and no in-flight/retrying op remains — a
// retrying op still owns its document slot and may later re-append to
// pending, so its presence in w.unresolved must block shutdown too. Caller
// holds w.mu.
func (w *Writer) drainedLocked() bool {
	return w.closed && len(w.pending) == 0 && len(w.unresolved) == 0
}

func (w *Writer) schedule() {
	defer w.wg.Done()
	for {
		w.mu.Lock()
		for len(w.pending) == 0 && !w.drainedLocked() {
			w.cond.Wait()
		}
		if w.drainedLocked() {
			w.mu.Unlock()
			return
		}
		batch := w.assembleBatchLocked()
		idle := len(batch) == 0
		w.mu.Unlock()

		if len(batch) > 0 {
			w.wg.Add(1)
			go w.dispatch(batch)
			continue
		}
		if idle {
			// Every remaining pending op is blocked on an in-flight doc, or
			// a retry is still sleeping before it re-appends; yield until a
			// completion or retry wakes us.
			w.mu.Lock()
			if len(w.pending) > 0 || !w.drainedLocked() {
				w.cond.Wait()
			}
			w.mu.Unlock()
		}
	}
}

// assembleBatchLocked applies the batch assembly rules. Caller holds w.mu.
func (w *Writer) assembleBatchLocked() []*operation {
	var batch []*operation
	remaining := w.pending[:0:0]
	maxSize := w.maxBatchSize
	docsChosen := map[string]bool{}

	for _, op := range w.pending {
		if len(batch) >= maxSize {
			remaining = append(remaining, op)
			continue
		}
		if w.docInFlightLocked(op.docPath) {
			remaining = append(remaining, op)
			continue
		}
		if docsChosen[op.docPath] {
			// Rule 1: a second write to a document already in this batch
			// flushes the current batch first; leave it for the next round.
			remaining = append(remaining, op)
			continue
		}
		batch = append(batch, op)
		docsChosen[op.docPath] = true
		if op.backoff > 0 {
			maxSize = retryBatchSizeCap
		}
	}
	w.pending = remaining
	for doc := range docsChosen {
		w.inFlightDocs[doc] = true
	}
	return batch
}

func (w *Writer) docInFlightLocked(doc string) bool {
	return w.inFlightDocs[doc]
}

func (w *Writer) clearInFlightLocked(doc string) {
	delete(w.inFlightDocs, doc)
}

// dispatch sends one batch via BatchWrite, handling the rate limiter,
// per-batch backoff, and per-op response classification.
func (w *Writer) dispatch(batch []*operation) {
	defer w.wg.Done()

	if d := maxBackoffOf(batch); d > 0 {
		time.Sleep(jitter(d))
	}

	ctx := context.Background()
	for {
		if w.limiter.TryMakeRequest(len(batch)) {
			break
		}
		delay := w.limiter.GetNextRequestDelayMs(len(batch))
		if delay < 0 {
			delay = 1000
		}
		time.Sleep(time.Duration(delay) * time.Millisecond)
	}

	writes := make([]*pb.Write, len(batch))
	for i, o := range batch {
		writes[i] = fswrite.Encode(o.op, o.docPath)
	}

	resp, err := w.client.BatchWrite(ctx, &pb.BatchWriteRequest{
		Database: w.databaseRoot,
		Writes:   writes,
	})
	if err != nil {
		w.failWholeBatch(batch, err)
		return
	}
	w.handleResponse(batch, resp)
}

func (w *Writer) failWholeBatch(batch []*operation, err error) {
	code, wrapped := fserrors.FromGRPCStatus(err)
	for _, o := range batch {
		w.resolveFinal(o, &BulkWriterError{Code: code, Message: wrapped.Error(), DocPath: o.docPath, OpKind: o.kind, Attempts: o.attempts + 1})
	}
	w.cond.Broadcast()
}

func (w *Writer) handleResponse(batch []*operation, resp *pb.BatchWriteResponse) {
	statuses := resp.GetStatus()
	results := resp.GetWriteResults()
	for i, o := range batch {
		if i >= len(statuses) {
			w.resolveFinal(o, &BulkWriterError{Code: fserrors.CodeUnknown, Message: "missing BatchWrite status", DocPath: o.docPath, OpKind: o.kind, Attempts: o.attempts + 1})
			continue
		}
		rpcErr := grpcstatus.ErrorProto(statuses[i])
		if rpcErr == nil {
			var updateTime time.Time
			if i < len(results) && results[i].GetUpdateTime() != nil {
				updateTime = results[i].GetUpdateTime().AsTime()
			}
			w.resolveSuccess(o, updateTime)
			continue
		}

		o.attempts++
		code, wrapped := fserrors.FromGRPCStatus(rpcErr)
		bwErr := &BulkWriterError{Code: code, Message: wrapped.Error(), DocPath: o.docPath, OpKind: o.kind, Attempts: o.attempts}

		if w.onWriteError(bwErr) {
			o.backoff = nextBackoff(o.backoff, code)
			log.Warn().Str("doc", o.docPath).Str("code", string(code)).Int("attempt", o.attempts).Dur("backoff", o.backoff).Msg("bulk writer retrying operation")
			w.requeueForRetry(o)
			continue
		}
		log.Error().Str("doc", o.docPath).Str("code", string(code)).Int("attempts", o.attempts).Msg("bulk writer operation failed terminally")
		w.resolveFinal(o, bwErr)
	}
	w.cond.Broadcast()
}

func (w *Writer) resolveSuccess(o *operation, updateTime time.Time) {
	w.mu.Lock()
	delete(w.unresolved, o.enqueueSeq)
	w.clearInFlightLocked(o.docPath)
	w.releaseBufferedLocked()
	w.mu.Unlock()
	o.resolve(nil)
	if w.onWriteResult != nil {
		w.onWriteResult(o.docPath, o.kind, updateTime)
	}
}

func (w *Writer) resolveFinal(o *operation, err error) {
	w.mu.Lock()
	delete(w.unresolved, o.enqueueSeq)
	w.clearInFlightLocked(o.docPath)
	w.releaseBufferedLocked()
	w.mu.Unlock()
	o.resolve(err)
}

// releaseBufferedLocked frees one active slot and promotes buffered
// operations in FIFO order until the active count is back at the cap.
// Caller holds w.mu.
func (w *Writer) releaseBufferedLocked() {
	w.activeOps--
	for len(w.buffered) > 0 && w.activeOps < w.maxPendingOps {
		o := w.buffered[0]
		w.buffered = w.buffered[1:]
		w.pending = append(w.pending, o)
		w.activeOps++
	}
	w.cond.Signal()
}

// requeueForRetry re-enters the op into the pending queue without clearing
// its in-flight marker, so no other op for the same document can be sent
// before this one finally resolves.
func (w *Writer) requeueForRetry(o *operation) {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		time.Sleep(o.backoff)
		w.mu.Lock()
		w.pending = append(w.pending, o)
		w.cond.Signal()
		w.mu.Unlock()
	}()
}

// nextBackoff grows from a 1s base by a factor of 1.5 up to the cap, jumping
// straight to the cap on RESOURCE_EXHAUSTED.
func nextBackoff(current time.Duration, code fserrors.Code) time.Duration {
	if code == fserrors.CodeResourceExhausted {
		return maxBackoff
	}
	if current == 0 {
		return baseBackoff
	}
	next := time.Duration(float64(current) * backoffFactor)
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func maxBackoffOf(batch []*operation) time.Duration {
	var max time.Duration
	for _, o := range batch {
		if o.backoff > max {
			max = o.backoff
		}
	}
	return max
}

// jitter applies a uniform ±30% factor.
func jitter(d time.Duration) time.Duration {
	delta := (rand.Float64()*2 - 1) * jitterFactor
	j := time.Duration(float64(d) * (1 + delta))
	if j > maxBackoff {
		return maxBackoff
	}
	if j < 0 {
		return 0
	}
	return j
}
