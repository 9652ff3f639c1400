// Package fsrpcfake provides an in-memory fsrpc.Client double used across
// the core's test suites in place of live GCP collaborators.
package fsrpcfake

import (
	"context"
	"io"
	"sync"

	pb "cloud.google.com/go/firestore/apiv1/firestorepb"
	"github.com/dataloom-dev/fsadmin/fsrpc"
)

// Client is a scriptable fsrpc.Client: each RPC method is backed by a
// function field the test sets. Unset fields are not guarded: calling an RPC
// whose function field is nil panics.
type Client struct {
	mu sync.Mutex

	BatchGetDocumentsFunc    func(ctx context.Context, req *pb.BatchGetDocumentsRequest) ([]*pb.BatchGetDocumentsResponse, error)
	RunQueryFunc             func(ctx context.Context, req *pb.RunQueryRequest) ([]*pb.RunQueryResponse, error)
	RunAggregationQueryFunc  func(ctx context.Context, req *pb.RunAggregationQueryRequest) ([]*pb.RunAggregationQueryResponse, error)
	BeginTransactionFunc     func(ctx context.Context, req *pb.BeginTransactionRequest) (*pb.BeginTransactionResponse, error)
	CommitFunc               func(ctx context.Context, req *pb.CommitRequest) (*pb.CommitResponse, error)
	RollbackFunc             func(ctx context.Context, req *pb.RollbackRequest) error
	BatchWriteFunc           func(ctx context.Context, req *pb.BatchWriteRequest) (*pb.BatchWriteResponse, error)
	ListDocumentsFunc        func(ctx context.Context, req *pb.ListDocumentsRequest) ([]*pb.Document, error)
	ListCollectionIdsFunc    func(ctx context.Context, req *pb.ListCollectionIdsRequest) ([]string, error)

	Closed bool

	// Calls records every RPC name invoked, in order, for assertions about
	// request ordering.
	Calls []string
}

func (c *Client) record(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Calls = append(c.Calls, name)
}

type sliceStream[T any] struct {
	items []T
	i     int
}

func (s *sliceStream[T]) next() (T, error) {
	var zero T
	if s.i >= len(s.items) {
		return zero, io.EOF
	}
	v := s.items[s.i]
	s.i++
	return v, nil
}

type batchGetStream struct{ s *sliceStream[*pb.BatchGetDocumentsResponse] }

func (b batchGetStream) Recv() (*pb.BatchGetDocumentsResponse, error) { return b.s.next() }

type runQueryStream struct{ s *sliceStream[*pb.RunQueryResponse] }

func (r runQueryStream) Recv() (*pb.RunQueryResponse, error) { return r.s.next() }

type runAggStream struct{ s *sliceStream[*pb.RunAggregationQueryResponse] }

func (r runAggStream) Recv() (*pb.RunAggregationQueryResponse, error) { return r.s.next() }

type listDocsStream struct{ s *sliceStream[*pb.Document] }

func (l listDocsStream) Recv() (*pb.Document, error) { return l.s.next() }

type listCollStream struct{ s *sliceStream[string] }

func (l listCollStream) Recv() (string, error) { return l.s.next() }

func (c *Client) BatchGetDocuments(ctx context.Context, req *pb.BatchGetDocumentsRequest) (fsrpc.BatchGetStream, error) {
	c.record("BatchGetDocuments")
	items, err := c.BatchGetDocumentsFunc(ctx, req)
	if err != nil {
		return nil, err
	}
	return batchGetStream{&sliceStream[*pb.BatchGetDocumentsResponse]{items: items}}, nil
}

func (c *Client) RunQuery(ctx context.Context, req *pb.RunQueryRequest) (fsrpc.RunQueryStream, error) {
	c.record("RunQuery")
	items, err := c.RunQueryFunc(ctx, req)
	if err != nil {
		return nil, err
	}
	return runQueryStream{&sliceStream[*pb.RunQueryResponse]{items: items}}, nil
}

func (c *Client) RunAggregationQuery(ctx context.Context, req *pb.RunAggregationQueryRequest) (fsrpc.RunAggregationQueryStream, error) {
	c.record("RunAggregationQuery")
	items, err := c.RunAggregationQueryFunc(ctx, req)
	if err != nil {
		return nil, err
	}
	return runAggStream{&sliceStream[*pb.RunAggregationQueryResponse]{items: items}}, nil
}

func (c *Client) BeginTransaction(ctx context.Context, req *pb.BeginTransactionRequest) (*pb.BeginTransactionResponse, error) {
	c.record("BeginTransaction")
	return c.BeginTransactionFunc(ctx, req)
}

func (c *Client) Commit(ctx context.Context, req *pb.CommitRequest) (*pb.CommitResponse, error) {
	c.record("Commit")
	return c.CommitFunc(ctx, req)
}

func (c *Client) Rollback(ctx context.Context, req *pb.RollbackRequest) error {
	c.record("Rollback")
	return c.RollbackFunc(ctx, req)
}

func (c *Client) BatchWrite(ctx context.Context, req *pb.BatchWriteRequest) (*pb.BatchWriteResponse, error) {
	c.record("BatchWrite")
	return c.BatchWriteFunc(ctx, req)
}

func (c *Client) ListDocuments(ctx context.Context, req *pb.ListDocumentsRequest) (fsrpc.ListDocumentsStream, error) {
	c.record("ListDocuments")
	items, err := c.ListDocumentsFunc(ctx, req)
	if err != nil {
		return nil, err
	}
	return listDocsStream{&sliceStream[*pb.Document]{items: items}}, nil
}

func (c *Client) ListCollectionIds(ctx context.Context, req *pb.ListCollectionIdsRequest) (fsrpc.ListCollectionIDsStream, error) {
	c.record("ListCollectionIds")
	items, err := c.ListCollectionIdsFunc(ctx, req)
	if err != nil {
		return nil, err
	}
	return listCollStream{&sliceStream[string]{items: items}}, nil
}

func (c *Client) Close() error {
	c.Closed = true
	return nil
}
