package fstxn

import (
	"context"
	"io"

	pb "cloud.google.com/go/firestore/apiv1/firestorepb"
	"github.com/dataloom-dev/fsadmin/fsagg"
	"github.com/dataloom-dev/fsadmin/fserrors"
	"github.com/dataloom-dev/fsadmin/fsquery"
	"github.com/dataloom-dev/fsadmin/fsrpc"
	"github.com/dataloom-dev/fsadmin/fsvalue"
	"github.com/dataloom-dev/fsadmin/fswrite"
)

// Snapshot is a document read inside a transaction.
type Snapshot struct {
	Name   string
	Exists bool
	Fields map[string]fsvalue.Value
}

func newTransaction(client fsrpc.Client, databaseRoot, database string, opts Options) *Transaction {
	if opts.MaxAttempts == 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	return &Transaction{client: client, databaseRoot: databaseRoot, database: database, opts: opts, state: Init}
}

// newTransactionOptions builds the TransactionOptions used to acquire a
// fresh transaction id.
func (t *Transaction) newTransactionOptions() *pb.TransactionOptions {
	if t.opts.Mode == ReadOnly {
		ro := &pb.TransactionOptions_ReadOnly{}
		if t.opts.ReadTime != nil {
			ro.ConsistencySelector = &pb.TransactionOptions_ReadOnly_ReadTime{ReadTime: t.opts.ReadTime}
		}
		return &pb.TransactionOptions{Mode: &pb.TransactionOptions_ReadOnly_{ReadOnly: ro}}
	}
	return &pb.TransactionOptions{Mode: &pb.TransactionOptions_ReadWrite_{ReadWrite: &pb.TransactionOptions_ReadWrite{}}}
}

// rejectReadAfterWrite enforces the "Firestore transactions require all
// reads to be executed before all writes." invariant.
func (t *Transaction) rejectReadAfterWrite() error {
	if t.hasWritten {
		return fserrors.New(fserrors.CodeFailedPrecondition, fserrors.MsgReadAfterWrite)
	}
	return nil
}

func (t *Transaction) rejectWriteInReadOnly() error {
	if t.opts.Mode == ReadOnly {
		return fserrors.New(fserrors.CodeFailedPrecondition, fserrors.MsgReadOnlyWrite)
	}
	return nil
}

func (t *Transaction) markReading() {
	if t.state == Init {
		t.state = Reading
	}
}

func (t *Transaction) markWriting() {
	t.state = Writing
	t.hasWritten = true
}

// readQuerySelector builds the fsquery consistency trio for this
// transaction's current acquisition state: an explicit readTime for
// read-only snapshot reads, the already-acquired id, or a request to
// acquire one.
func (t *Transaction) readQuerySelector() fsquery.ConsistencySelector {
	switch {
	case t.opts.Mode == ReadOnly && t.opts.ReadTime != nil:
		return fsquery.ConsistencySelector{ReadTime: t.opts.ReadTime}
	case t.id != nil:
		return fsquery.ConsistencySelector{TransactionID: t.id}
	default:
		return fsquery.ConsistencySelector{NewTransaction: t.newTransactionOptions()}
	}
}

func (t *Transaction) readAggSelector() fsagg.ConsistencySelector {
	sel := t.readQuerySelector()
	return fsagg.ConsistencySelector{NewTransaction: sel.NewTransaction, TransactionID: sel.TransactionID, ReadTime: sel.ReadTime}
}

func (t *Transaction) captureID(id []byte) {
	if t.id == nil && len(id) > 0 {
		t.id = id
	}
}

// Begin explicitly acquires a transaction id via BeginTransaction instead
// of waiting for the first read to carry one back. A read-only transaction
// anchored to an explicit readTime never acquires an id, so Begin is a
// no-op there; it is likewise a no-op once an id is already held.
func (t *Transaction) Begin(ctx context.Context) error {
	if t.id != nil || (t.opts.Mode == ReadOnly && t.opts.ReadTime != nil) {
		return nil
	}
	if err := t.rejectReadAfterWrite(); err != nil {
		return err
	}
	resp, err := t.client.BeginTransaction(ctx, &pb.BeginTransactionRequest{
		Database: t.database,
		Options:  t.newTransactionOptions(),
	})
	if err != nil {
		_, wrapped := fserrors.FromGRPCStatus(err)
		return wrapped
	}
	t.markReading()
	t.captureID(resp.GetTransaction())
	return nil
}

// Get reads one document by its fully qualified name.
func (t *Transaction) Get(ctx context.Context, documentName string, opts fsvalue.DecodeOptions) (Snapshot, error) {
	if err := t.rejectReadAfterWrite(); err != nil {
		return Snapshot{}, err
	}
	t.markReading()

	req := &pb.BatchGetDocumentsRequest{Database: t.database, Documents: []string{documentName}}
	switch {
	case t.opts.Mode == ReadOnly && t.opts.ReadTime != nil:
		req.ConsistencySelector = &pb.BatchGetDocumentsRequest_ReadTime{ReadTime: t.opts.ReadTime}
	case t.id != nil:
		req.ConsistencySelector = &pb.BatchGetDocumentsRequest_Transaction{Transaction: t.id}
	default:
		req.ConsistencySelector = &pb.BatchGetDocumentsRequest_NewTransaction{NewTransaction: t.newTransactionOptions()}
	}

	stream, err := t.client.BatchGetDocuments(ctx, req)
	if err != nil {
		return Snapshot{}, err
	}
	var snap Snapshot
	for {
		resp, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			_, wrapped := fserrors.FromGRPCStatus(err)
			return Snapshot{}, wrapped
		}
		t.captureID(resp.GetTransaction())
		if doc := resp.GetFound(); doc != nil {
			snap = Snapshot{Name: doc.GetName(), Exists: true, Fields: fsvalue.DecodeMap(doc.GetFields(), opts)}
		} else if missing := resp.GetMissing(); missing != "" {
			snap = Snapshot{Name: missing, Exists: false}
		}
	}
	return snap, nil
}

// GetAll reads multiple documents in one BatchGetDocuments call.
func (t *Transaction) GetAll(ctx context.Context, documentNames []string, fieldMask []string, opts fsvalue.DecodeOptions) ([]Snapshot, error) {
	if err := t.rejectReadAfterWrite(); err != nil {
		return nil, err
	}
	t.markReading()

	req := &pb.BatchGetDocumentsRequest{Database: t.database, Documents: documentNames}
	if len(fieldMask) > 0 {
		req.Mask = &pb.DocumentMask{FieldPaths: fieldMask}
	}
	switch {
	case t.opts.Mode == ReadOnly && t.opts.ReadTime != nil:
		req.ConsistencySelector = &pb.BatchGetDocumentsRequest_ReadTime{ReadTime: t.opts.ReadTime}
	case t.id != nil:
		req.ConsistencySelector = &pb.BatchGetDocumentsRequest_Transaction{Transaction: t.id}
	default:
		req.ConsistencySelector = &pb.BatchGetDocumentsRequest_NewTransaction{NewTransaction: t.newTransactionOptions()}
	}

	stream, err := t.client.BatchGetDocuments(ctx, req)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]Snapshot, len(documentNames))
	for {
		resp, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			_, wrapped := fserrors.FromGRPCStatus(err)
			return nil, wrapped
		}
		t.captureID(resp.GetTransaction())
		if doc := resp.GetFound(); doc != nil {
			byName[doc.GetName()] = Snapshot{Name: doc.GetName(), Exists: true, Fields: fsvalue.DecodeMap(doc.GetFields(), opts)}
		} else if missing := resp.GetMissing(); missing != "" {
			byName[missing] = Snapshot{Name: missing, Exists: false}
		}
	}
	out := make([]Snapshot, len(documentNames))
	for i, name := range documentNames {
		out[i] = byName[name]
	}
	return out, nil
}

// GetQuery runs a query inside the transaction.
func (t *Transaction) GetQuery(ctx context.Context, parentPath string, q fsquery.Query, opts fsvalue.DecodeOptions) (fsquery.Result, error) {
	if err := t.rejectReadAfterWrite(); err != nil {
		return fsquery.Result{}, err
	}
	t.markReading()
	result, err := fsquery.Run(ctx, t.client, parentPath, q, t.readQuerySelector(), opts)
	if err != nil {
		return fsquery.Result{}, err
	}
	t.captureID(result.TransactionID)
	return result, nil
}

// GetAggregateQuery runs an aggregation inside the transaction.
func (t *Transaction) GetAggregateQuery(ctx context.Context, parentPath string, aq fsagg.AggregationQuery, opts fsvalue.DecodeOptions) (fsagg.Result, error) {
	if err := t.rejectReadAfterWrite(); err != nil {
		return fsagg.Result{}, err
	}
	t.markReading()
	result, err := fsagg.Run(ctx, t.client, parentPath, aq, t.readAggSelector(), opts)
	if err != nil {
		return fsagg.Result{}, err
	}
	t.captureID(result.TransactionID)
	return result, nil
}

func (t *Transaction) queueWrite(documentName string, op fswrite.Op) error {
	if err := t.rejectWriteInReadOnly(); err != nil {
		return err
	}
	t.markWriting()
	t.writes = append(t.writes, fswrite.Encode(op, documentName))
	return nil
}

// Create queues a create() write.
func (t *Transaction) Create(documentName string, fields map[string]fswrite.Input) error {
	op, err := fswrite.Create(documentName, fields)
	if err != nil {
		return err
	}
	return t.queueWrite(documentName, op)
}

// Set queues a set() write.
func (t *Transaction) Set(documentName string, op fswrite.Op) error {
	return t.queueWrite(documentName, op)
}

// Update queues an update() write.
func (t *Transaction) Update(documentName string, fields map[string]fswrite.Input, prec fswrite.Precondition) error {
	op, err := fswrite.Update(documentName, fields, prec)
	if err != nil {
		return err
	}
	return t.queueWrite(documentName, op)
}

// Delete queues a delete() write.
func (t *Transaction) Delete(documentName string, prec fswrite.Precondition) error {
	return t.queueWrite(documentName, fswrite.Delete(documentName, prec))
}
