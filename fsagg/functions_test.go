package fsagg

import (
	"context"
	"testing"

	pb "cloud.google.com/go/firestore/apiv1/firestorepb"
	"github.com/dataloom-dev/fsadmin/fspath"
	"github.com/dataloom-dev/fsadmin/fsquery"
	"github.com/dataloom-dev/fsadmin/fsrpc/fsrpcfake"
	"github.com/dataloom-dev/fsadmin/fsvalue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAliasesFollowConvention(t *testing.T) {
	q := fsquery.New("p", "sales", false)
	a := New(q).WithCount().WithSum(fspath.NewField("v")).WithAverage(fspath.NewField("v"))
	require.NoError(t, a.Err())
	require.Len(t, a.Aggregations, 3)
	assert.Equal(t, "count", a.Aggregations[0].Alias)
	assert.Equal(t, "sum_v", a.Aggregations[1].Alias)
	assert.Equal(t, "avg_v", a.Aggregations[2].Alias)
}

func TestMoreThanThreeAggregationsRejected(t *testing.T) {
	q := fsquery.New("p", "sales", false)
	a := New(q).WithCount().WithCount().WithCount().WithCount()
	require.Error(t, a.Err())
}

func TestRunDecodesAggregateValuesByAlias(t *testing.T) {
	fake := &fsrpcfake.Client{
		RunAggregationQueryFunc: func(ctx context.Context, req *pb.RunAggregationQueryRequest) ([]*pb.RunAggregationQueryResponse, error) {
			return []*pb.RunAggregationQueryResponse{
				{
					Transaction: []byte("txn-agg"),
					Result: &pb.AggregationResult{AggregateFields: map[string]*pb.Value{
						"count": {ValueType: &pb.Value_IntegerValue{IntegerValue: 2}},
						"sum_v": {ValueType: &pb.Value_IntegerValue{IntegerValue: 40}},
						"avg_v": {ValueType: &pb.Value_DoubleValue{DoubleValue: 20.0}},
					}},
				},
			}, nil
		},
	}

	q := fsquery.New("p", "sales", false).Where(fspath.NewField("cat"), fsquery.Equal, fsvalue.String("A"))
	a := New(q).WithCount().WithSum(fspath.NewField("v")).WithAverage(fspath.NewField("v"))

	result, err := Run(context.Background(), fake, "p", a, ConsistencySelector{}, fsvalue.DecodeOptions{})
	require.NoError(t, err)
	assert.Equal(t, []byte("txn-agg"), result.TransactionID)
	assert.Equal(t, int64(2), result.Values["count"].Int64())
	assert.Equal(t, int64(40), result.Values["sum_v"].Int64())
	assert.Equal(t, 20.0, result.Values["avg_v"].Double())
}

func TestToStructuredAggregationQueryEncodesOperators(t *testing.T) {
	q := fsquery.New("p", "sales", false).Where(fspath.NewField("cat"), fsquery.Equal, fsvalue.String("A"))
	a := New(q).WithCount().WithSum(fspath.NewField("v"))
	saq, err := a.ToStructuredAggregationQuery()
	require.NoError(t, err)
	require.Len(t, saq.GetAggregations(), 2)
	require.NotNil(t, saq.GetAggregations()[0].GetCount())
	require.NotNil(t, saq.GetAggregations()[1].GetSum())
}
