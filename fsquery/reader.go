package fsquery

import (
	"context"
	"io"

	pb "cloud.google.com/go/firestore/apiv1/firestorepb"
	"github.com/dataloom-dev/fsadmin/fserrors"
	"github.com/dataloom-dev/fsadmin/fsrpc"
	"github.com/dataloom-dev/fsadmin/fsvalue"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// Document is one decoded query result.
type Document struct {
	Name   string
	Fields map[string]fsvalue.Value
}

// Result is the outcome of running a query: the matched documents in
// client-observed order (already un-reversed for limitToLast), and the
// transaction id captured from the stream if this run started one.
type Result struct {
	Documents     []Document
	TransactionID []byte
}

// ConsistencySelector carries exactly one of the three mutually exclusive
// read-time anchors a streamed query may run under: a new
// transaction to begin, an existing transaction id to read within, or an
// explicit read time for a snapshot read.
type ConsistencySelector struct {
	NewTransaction *pb.TransactionOptions
	TransactionID  []byte
	ReadTime       *timestamppb.Timestamp
}

// Run executes the query against client, consuming the RunQuery response
// stream. The first response carrying a non-empty transaction field is
// captured as Result.TransactionID; subsequent responses are ignored for
// that purpose. limitToLast queries are un-reversed before returning so
// callers observe the original requested ordering.
func Run(ctx context.Context, client fsrpc.Client, parentPath string, q Query, sel ConsistencySelector, opts fsvalue.DecodeOptions) (Result, error) {
	sq, err := q.ToStructuredQuery()
	if err != nil {
		return Result{}, err
	}
	req := &pb.RunQueryRequest{
		Parent: parentPath,
		QueryType: &pb.RunQueryRequest_StructuredQuery{StructuredQuery: sq},
	}
	switch {
	case sel.NewTransaction != nil:
		req.ConsistencySelector = &pb.RunQueryRequest_NewTransaction{NewTransaction: sel.NewTransaction}
	case len(sel.TransactionID) > 0:
		req.ConsistencySelector = &pb.RunQueryRequest_Transaction{Transaction: sel.TransactionID}
	case sel.ReadTime != nil:
		req.ConsistencySelector = &pb.RunQueryRequest_ReadTime{ReadTime: sel.ReadTime}
	}

	stream, err := client.RunQuery(ctx, req)
	if err != nil {
		return Result{}, err
	}

	var result Result
	for {
		resp, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			_, wrapped := fserrors.FromGRPCStatus(err)
			return Result{}, wrapped
		}
		if len(result.TransactionID) == 0 && len(resp.GetTransaction()) > 0 {
			result.TransactionID = resp.GetTransaction()
		}
		doc := resp.GetDocument()
		if doc == nil {
			continue
		}
		result.Documents = append(result.Documents, Document{
			Name:   doc.GetName(),
			Fields: fsvalue.DecodeMap(doc.GetFields(), opts),
		})
	}

	if q.LimitType == LimitLast {
		reverse(result.Documents)
	}
	return result, nil
}

func reverse(docs []Document) {
	for i, j := 0, len(docs)-1; i < j; i, j = i+1, j-1 {
		docs[i], docs[j] = docs[j], docs[i]
	}
}
