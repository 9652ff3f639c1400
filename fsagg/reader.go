package fsagg

import (
	"context"
	"io"

	pb "cloud.google.com/go/firestore/apiv1/firestorepb"
	"github.com/dataloom-dev/fsadmin/fserrors"
	"github.com/dataloom-dev/fsadmin/fsrpc"
	"github.com/dataloom-dev/fsadmin/fsvalue"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// ConsistencySelector mirrors fsquery's transaction-context trio: exactly
// one of newTransaction | transactionId | readTime.
type ConsistencySelector struct {
	NewTransaction *pb.TransactionOptions
	TransactionID  []byte
	ReadTime       *timestamppb.Timestamp
}

// Result carries the decoded aggregate values keyed by alias, plus any
// transaction id captured from the stream.
type Result struct {
	Values        map[string]fsvalue.Value
	TransactionID []byte
}

// Run executes the aggregation query and consumes the streamed response.
func Run(ctx context.Context, client fsrpc.Client, parentPath string, a AggregationQuery, sel ConsistencySelector, opts fsvalue.DecodeOptions) (Result, error) {
	saq, err := a.ToStructuredAggregationQuery()
	if err != nil {
		return Result{}, err
	}
	req := &pb.RunAggregationQueryRequest{
		Parent: parentPath,
		QueryType: &pb.RunAggregationQueryRequest_StructuredAggregationQuery{StructuredAggregationQuery: saq},
	}
	switch {
	case sel.NewTransaction != nil:
		req.ConsistencySelector = &pb.RunAggregationQueryRequest_NewTransaction{NewTransaction: sel.NewTransaction}
	case len(sel.TransactionID) > 0:
		req.ConsistencySelector = &pb.RunAggregationQueryRequest_Transaction{Transaction: sel.TransactionID}
	case sel.ReadTime != nil:
		req.ConsistencySelector = &pb.RunAggregationQueryRequest_ReadTime{ReadTime: sel.ReadTime}
	}

	stream, err := client.RunAggregationQuery(ctx, req)
	if err != nil {
		return Result{}, err
	}

	result := Result{Values: map[string]fsvalue.Value{}}
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
		if fields := resp.GetResult().GetAggregateFields(); fields != nil {
			for k, v := range fields {
				result.Values[k] = fsvalue.Decode(v, opts)
			}
		}
	}
	return result, nil
}
