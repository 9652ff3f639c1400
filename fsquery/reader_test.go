package fsquery

import (
	"context"
	"testing"

	pb "cloud.google.com/go/firestore/apiv1/firestorepb"
	"github.com/dataloom-dev/fsadmin/fsrpc/fsrpcfake"
	"github.com/dataloom-dev/fsadmin/fsvalue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/timestamppb"
)

func docResponse(name string) *pb.RunQueryResponse {
	return &pb.RunQueryResponse{Document: &pb.Document{Name: name}}
}

func TestRunCapturesFirstTransactionIDFromStream(t *testing.T) {
	fake := &fsrpcfake.Client{
		RunQueryFunc: func(ctx context.Context, req *pb.RunQueryRequest) ([]*pb.RunQueryResponse, error) {
			return []*pb.RunQueryResponse{
				{Transaction: []byte("txn-first")},
				docResponse("cities/SF"),
				{Transaction: []byte("txn-second")},
				{ReadTime: timestamppb.Now()},
			}, nil
		},
	}

	q := New("p", "cities", false)
	result, err := Run(context.Background(), fake, "p", q, ConsistencySelector{
		NewTransaction: &pb.TransactionOptions{Mode: &pb.TransactionOptions_ReadWrite_{ReadWrite: &pb.TransactionOptions_ReadWrite{}}},
	}, fsvalue.DecodeOptions{})

	require.NoError(t, err)
	assert.Equal(t, []byte("txn-first"), result.TransactionID)
	require.Len(t, result.Documents, 1)
	assert.Equal(t, "cities/SF", result.Documents[0].Name)
}

func TestRunUnreversesLimitToLastResults(t *testing.T) {
	fake := &fsrpcfake.Client{
		RunQueryFunc: func(ctx context.Context, req *pb.RunQueryRequest) ([]*pb.RunQueryResponse, error) {
			// With the rewrite applied the server sees the flipped ordering
			// and streams newest-first; the client re-reverses.
			sq := req.GetStructuredQuery()
			require.Equal(t, pb.StructuredQuery_DESCENDING, sq.GetOrderBy()[0].GetDirection())
			return []*pb.RunQueryResponse{
				docResponse("cities/c"),
				docResponse("cities/b"),
				docResponse("cities/a"),
			}, nil
		},
	}

	q := New("p", "cities", false).
		OrderBy(nameField("population"), Ascending).
		LimitToLast(3)
	result, err := Run(context.Background(), fake, "p", q, ConsistencySelector{}, fsvalue.DecodeOptions{})

	require.NoError(t, err)
	require.Len(t, result.Documents, 3)
	assert.Equal(t, "cities/a", result.Documents[0].Name)
	assert.Equal(t, "cities/c", result.Documents[2].Name)
}
