// Package fsrpc defines the thin collaborator boundary between the core and
// the Firestore v1 RPC surface. Credential acquisition, HTTP/2
// transport and OAuth token minting are out of scope; this package only
// describes the shape the core needs from a generated API client, so that
// both a production adapter (wrapping cloud.google.com/go/firestore/apiv1)
// and a test fake can satisfy it.
package fsrpc

import (
	"context"

	pb "cloud.google.com/go/firestore/apiv1/firestorepb"
)

// BatchGetStream is a server-stream of BatchGetDocuments responses.
// Recv returns io.EOF when the stream is exhausted, matching the shape every
// gRPC-generated streaming client already provides.
type BatchGetStream interface {
	Recv() (*pb.BatchGetDocumentsResponse, error)
}

// RunQueryStream is a server-stream of RunQuery responses.
type RunQueryStream interface {
	Recv() (*pb.RunQueryResponse, error)
}

// RunAggregationQueryStream is a server-stream of RunAggregationQuery
// responses.
type RunAggregationQueryStream interface {
	Recv() (*pb.RunAggregationQueryResponse, error)
}

// ListDocumentsStream pages through ListDocuments results.
type ListDocumentsStream interface {
	Recv() (*pb.Document, error)
}

// ListCollectionIDsStream pages through ListCollectionIds results.
type ListCollectionIDsStream interface {
	Recv() (string, error)
}

// Client is the full set of RPCs the core requires: BatchGetDocuments,
// RunQuery, RunAggregationQuery, BeginTransaction, Commit, Rollback,
// BatchWrite, ListCollectionIds, ListDocuments.
type Client interface {
	BatchGetDocuments(ctx context.Context, req *pb.BatchGetDocumentsRequest) (BatchGetStream, error)
	RunQuery(ctx context.Context, req *pb.RunQueryRequest) (RunQueryStream, error)
	RunAggregationQuery(ctx context.Context, req *pb.RunAggregationQueryRequest) (RunAggregationQueryStream, error)
	BeginTransaction(ctx context.Context, req *pb.BeginTransactionRequest) (*pb.BeginTransactionResponse, error)
	Commit(ctx context.Context, req *pb.CommitRequest) (*pb.CommitResponse, error)
	Rollback(ctx context.Context, req *pb.RollbackRequest) error
	BatchWrite(ctx context.Context, req *pb.BatchWriteRequest) (*pb.BatchWriteResponse, error)
	ListDocuments(ctx context.Context, req *pb.ListDocumentsRequest) (ListDocumentsStream, error)
	ListCollectionIds(ctx context.Context, req *pb.ListCollectionIdsRequest) (ListCollectionIDsStream, error)
	Close() error
}
