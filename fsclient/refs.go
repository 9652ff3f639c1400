package fsclient

import (
	"context"
	"strings"

	"github.com/dataloom-dev/fsadmin/bulkwriter"
	"github.com/dataloom-dev/fsadmin/fsagg"
	"github.com/dataloom-dev/fsadmin/fsquery"
	"github.com/dataloom-dev/fsadmin/fstxn"
	"github.com/dataloom-dev/fsadmin/fsvalue"
	"github.com/dataloom-dev/fsadmin/fswrite"
)

// toFieldInputs wraps every value in a field map as a plain fswrite.Input,
// the shape Set/Create need before handing fields to the write encoder.
func toFieldInputs(fields map[string]fsvalue.Value) map[string]fswrite.Input {
	out := make(map[string]fswrite.Input, len(fields))
	for k, v := range fields {
		out[k] = fswrite.PlainValue(v)
	}
	return out
}

// Collection returns a CollectionRef bound to conv, rooted at the database.
func Collection[T any](c *Client, id string, conv Converter[T]) CollectionRef[T] {
	return CollectionRef[T]{client: c, path: id, conv: conv}
}

// Doc returns a DocumentRef for a document in this collection.
func (cr CollectionRef[T]) Doc(id string) DocumentRef[T] {
	return DocumentRef[T]{client: cr.client, path: cr.path + "/" + id, conv: cr.conv}
}

func (cr CollectionRef[T]) collectionID() string {
	parts := strings.Split(cr.path, "/")
	return parts[len(parts)-1]
}

// name returns the fully qualified resource name of a DocumentRef.
func (dr DocumentRef[T]) name() string {
	return dr.client.databaseRoot + "/" + dr.path
}

// ID returns the document's final path segment.
func (dr DocumentRef[T]) ID() string {
	parts := strings.Split(dr.path, "/")
	return parts[len(parts)-1]
}

// Get reads the document outside any transaction, via the primary
// non-transactional Document Reader.
func (dr DocumentRef[T]) Get(ctx context.Context) (DocumentSnapshot, T, error) {
	var zero T
	snaps, err := GetAll(ctx, dr.client, []string{dr.name()})
	if err != nil {
		return DocumentSnapshot{}, zero, err
	}
	snap := snaps[0]
	if !snap.Exists {
		return snap, zero, nil
	}
	v, err := dr.conv.FromFields(snap.Fields)
	return snap, v, err
}

// Set replaces the document's contents.
func (dr DocumentRef[T]) Set(ctx context.Context, v T) error {
	fields, err := dr.conv.ToFields(v)
	if err != nil {
		return err
	}
	op, err := fswrite.SetReplace(dr.name(), toFieldInputs(fields))
	if err != nil {
		return err
	}
	b := fswrite.NewBatch()
	b.Set(dr.name(), op)
	_, err = b.Commit(ctx, dr.client.rpc, dr.client.databaseName)
	return err
}

// Create creates the document, failing if it already exists.
func (dr DocumentRef[T]) Create(ctx context.Context, v T) error {
	fields, err := dr.conv.ToFields(v)
	if err != nil {
		return err
	}
	op, err := fswrite.Create(dr.name(), toFieldInputs(fields))
	if err != nil {
		return err
	}
	b := fswrite.NewBatch()
	b.Create(dr.name(), op)
	_, err = b.Commit(ctx, dr.client.rpc, dr.client.databaseName)
	return err
}

// Delete removes the document.
func (dr DocumentRef[T]) Delete(ctx context.Context) error {
	op := fswrite.Delete(dr.name(), fswrite.NoPrecondition)
	b := fswrite.NewBatch()
	b.Delete(dr.name(), op)
	_, err := b.Commit(ctx, dr.client.rpc, dr.client.databaseName)
	return err
}

// Query starts a query over this collection, rooted at the database.
func (cr CollectionRef[T]) Query() fsquery.Query {
	return fsquery.Query{ParentPath: cr.client.databaseRoot, CollectionID: cr.collectionID()}
}

// Run executes q against this collection's converter, decoding every
// matched document.
func (cr CollectionRef[T]) Run(ctx context.Context, q fsquery.Query) ([]QueryDocumentSnapshot, []T, error) {
	result, err := fsquery.Run(ctx, cr.client.rpc, cr.client.databaseRoot, q, fsquery.ConsistencySelector{}, cr.client.settings.decodeOptions())
	if err != nil {
		return nil, nil, err
	}
	snaps := make([]QueryDocumentSnapshot, len(result.Documents))
	vals := make([]T, len(result.Documents))
	for i, d := range result.Documents {
		snaps[i] = QueryDocumentSnapshot{DocumentSnapshot{Name: d.Name, Exists: true, Fields: d.Fields}}
		v, err := cr.conv.FromFields(d.Fields)
		if err != nil {
			return nil, nil, err
		}
		vals[i] = v
	}
	return snaps, vals, nil
}

// Aggregate runs an aggregation query over this collection.
func (cr CollectionRef[T]) Aggregate(ctx context.Context, aq fsagg.AggregationQuery) (fsagg.Result, error) {
	return fsagg.Run(ctx, cr.client.rpc, cr.client.databaseRoot, aq, fsagg.ConsistencySelector{}, cr.client.settings.decodeOptions())
}

// RunTransaction drives fn through the transaction executor using this
// client's settings.
func (c *Client) RunTransaction(ctx context.Context, opts fstxn.Options, fn func(ctx context.Context, t *fstxn.Transaction) error) error {
	if opts.MaxAttempts == 0 {
		opts.MaxAttempts = c.settings.MaxAttempts
	}
	return fstxn.Run(ctx, c.rpc, c.databaseRoot, c.databaseName, opts, fn)
}

// BulkWriter starts a bulk writer bound to this client's database.
func (c *Client) BulkWriter(opts ...bulkwriter.Option) *bulkwriter.Writer {
	return bulkwriter.New(c.rpc, c.databaseRoot, opts...)
}
