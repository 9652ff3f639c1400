package fsrpc

import (
	"context"
	"io"

	vkit "cloud.google.com/go/firestore/apiv1"
	pb "cloud.google.com/go/firestore/apiv1/firestorepb"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// vkitAdapter adapts the real generated client (cloud.google.com/go/firestore/apiv1)
// to the core's narrower Client interface. This is the one place the core
// touches the generated API client directly; everything above this layer
// only knows about fsrpc.Client.
type vkitAdapter struct {
	c *vkit.Client
}

// NewVKitClient dials the production Firestore v1 API and wraps it as an
// fsrpc.Client. Credential acquisition and transport configuration are
// delegated entirely to option.ClientOption.
func NewVKitClient(ctx context.Context, opts ...option.ClientOption) (Client, error) {
	c, err := vkit.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &vkitAdapter{c: c}, nil
}

func (a *vkitAdapter) BatchGetDocuments(ctx context.Context, req *pb.BatchGetDocumentsRequest) (BatchGetStream, error) {
	return a.c.BatchGetDocuments(ctx, req)
}

func (a *vkitAdapter) RunQuery(ctx context.Context, req *pb.RunQueryRequest) (RunQueryStream, error) {
	return a.c.RunQuery(ctx, req)
}

func (a *vkitAdapter) RunAggregationQuery(ctx context.Context, req *pb.RunAggregationQueryRequest) (RunAggregationQueryStream, error) {
	return a.c.RunAggregationQuery(ctx, req)
}

func (a *vkitAdapter) BeginTransaction(ctx context.Context, req *pb.BeginTransactionRequest) (*pb.BeginTransactionResponse, error) {
	return a.c.BeginTransaction(ctx, req)
}

func (a *vkitAdapter) Commit(ctx context.Context, req *pb.CommitRequest) (*pb.CommitResponse, error) {
	return a.c.Commit(ctx, req)
}

func (a *vkitAdapter) Rollback(ctx context.Context, req *pb.RollbackRequest) error {
	return a.c.Rollback(ctx, req)
}

func (a *vkitAdapter) BatchWrite(ctx context.Context, req *pb.BatchWriteRequest) (*pb.BatchWriteResponse, error) {
	return a.c.BatchWrite(ctx, req)
}

// documentIterAdapter bridges the generated client's Next()/iterator.Done
// pagination to the core's Recv()/io.EOF stream shape.
type documentIterAdapter struct {
	it *vkit.DocumentIterator
}

func (d documentIterAdapter) Recv() (*pb.Document, error) {
	doc, err := d.it.Next()
	if err == iterator.Done {
		return nil, io.EOF
	}
	return doc, err
}

func (a *vkitAdapter) ListDocuments(ctx context.Context, req *pb.ListDocumentsRequest) (ListDocumentsStream, error) {
	return documentIterAdapter{it: a.c.ListDocuments(ctx, req)}, nil
}

type collectionIDIterAdapter struct {
	it *vkit.StringIterator
}

func (s collectionIDIterAdapter) Recv() (string, error) {
	id, err := s.it.Next()
	if err == iterator.Done {
		return "", io.EOF
	}
	return id, err
}

func (a *vkitAdapter) ListCollectionIds(ctx context.Context, req *pb.ListCollectionIdsRequest) (ListCollectionIDsStream, error) {
	return collectionIDIterAdapter{it: a.c.ListCollectionIds(ctx, req)}, nil
}

func (a *vkitAdapter) Close() error {
	return a.c.Close()
}
