package fsclient

import (
	"context"
	"sync"
	"testing"

	pb "cloud.google.com/go/firestore/apiv1/firestorepb"
	"github.com/dataloom-dev/fsadmin/fsagg"
	"github.com/dataloom-dev/fsadmin/fsrpc/fsrpcfake"
	"github.com/dataloom-dev/fsadmin/fstxn"
	"github.com/dataloom-dev/fsadmin/fsvalue"
	"github.com/dataloom-dev/fsadmin/fswrite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type widget struct {
	Name  string
	Count int64
}

type widgetConverter struct{}

func (widgetConverter) ToFields(w widget) (map[string]fsvalue.Value, error) {
	return map[string]fsvalue.Value{"name": fsvalue.String(w.Name), "count": fsvalue.Int64(w.Count)}, nil
}

func (widgetConverter) FromFields(fields map[string]fsvalue.Value) (widget, error) {
	return widget{Name: fields["name"].StringValue(), Count: fields["count"].Int64()}, nil
}

func newTestClient(rpc *fsrpcfake.Client) *Client {
	return NewClientWithRPC(rpc, "proj", Settings{DatabaseID: defaultDatabaseID, MaxAttempts: defaultMaxAttempts})
}

func TestLoadSettingsAppliesDefaultsAndOverride(t *testing.T) {
	s, err := LoadSettings(map[string]string{
		"GOOGLE_CLOUD_PROJECT": "my-proj",
		"FIRESTORE_SSL":        "false",
	})
	require.NoError(t, err)
	assert.Equal(t, "my-proj", s.ProjectID)
	assert.Equal(t, defaultDatabaseID, s.DatabaseID)
	assert.Equal(t, defaultMaxAttempts, s.MaxAttempts)
	assert.False(t, s.SSL)
}

func TestResolveProjectIDRequiresExplicitValueInEmulatorMode(t *testing.T) {
	_, err := resolveProjectID(context.Background(), Settings{Host: "localhost:8080"})
	require.Error(t, err)
}

func TestDocumentRefGetMissing(t *testing.T) {
	rpc := &fsrpcfake.Client{
		BatchGetDocumentsFunc: func(ctx context.Context, req *pb.BatchGetDocumentsRequest) ([]*pb.BatchGetDocumentsResponse, error) {
			return []*pb.BatchGetDocumentsResponse{
				{Result: &pb.BatchGetDocumentsResponse_Missing{Missing: req.Documents[0]}},
			}, nil
		},
	}
	c := newTestClient(rpc)
	doc := Collection[widget](c, "widgets", widgetConverter{}).Doc("a")

	snap, v, err := doc.Get(context.Background())
	require.NoError(t, err)
	assert.False(t, snap.Exists)
	assert.Equal(t, widget{}, v)
}

func TestDocumentRefSetCreateDelete(t *testing.T) {
	var calls []string
	rpc := &fsrpcfake.Client{
		CommitFunc: func(ctx context.Context, req *pb.CommitRequest) (*pb.CommitResponse, error) {
			require.Len(t, req.Writes, 1)
			calls = append(calls, req.Writes[0].GetCurrentDocument().String())
			return &pb.CommitResponse{WriteResults: []*pb.WriteResult{{}}}, nil
		},
	}
	c := newTestClient(rpc)
	doc := Collection[widget](c, "widgets", widgetConverter{}).Doc("a")

	require.NoError(t, doc.Set(context.Background(), widget{Name: "x", Count: 1}))
	require.NoError(t, doc.Create(context.Background(), widget{Name: "y", Count: 2}))
	require.NoError(t, doc.Delete(context.Background()))
	assert.Len(t, calls, 3)
}

func TestCollectionRefRunDecodesMatches(t *testing.T) {
	rpc := &fsrpcfake.Client{
		RunQueryFunc: func(ctx context.Context, req *pb.RunQueryRequest) ([]*pb.RunQueryResponse, error) {
			return []*pb.RunQueryResponse{
				{Document: &pb.Document{
					Name:   "projects/proj/databases/(default)/documents/widgets/a",
					Fields: map[string]*pb.Value{"name": {ValueType: &pb.Value_StringValue{StringValue: "a"}}, "count": {ValueType: &pb.Value_IntegerValue{IntegerValue: 3}}},
				}},
			}, nil
		},
	}
	c := newTestClient(rpc)
	cr := Collection[widget](c, "widgets", widgetConverter{})

	snaps, vals, err := cr.Run(context.Background(), cr.Query())
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, widget{Name: "a", Count: 3}, vals[0])
}

func TestCollectionRefAggregate(t *testing.T) {
	rpc := &fsrpcfake.Client{
		RunAggregationQueryFunc: func(ctx context.Context, req *pb.RunAggregationQueryRequest) ([]*pb.RunAggregationQueryResponse, error) {
			return []*pb.RunAggregationQueryResponse{
				{Result: &pb.AggregationResult{AggregateFields: map[string]*pb.Value{
					"count": {ValueType: &pb.Value_IntegerValue{IntegerValue: 2}},
				}}},
			}, nil
		},
	}
	c := newTestClient(rpc)
	cr := Collection[widget](c, "widgets", widgetConverter{})
	aq := fsagg.New(cr.Query()).WithCount()

	result, err := cr.Aggregate(context.Background(), aq)
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.Values["count"].Int64())
}

func TestRunTransactionDrivesExecutor(t *testing.T) {
	commits := 0
	rpc := &fsrpcfake.Client{
		CommitFunc: func(ctx context.Context, req *pb.CommitRequest) (*pb.CommitResponse, error) {
			commits++
			return &pb.CommitResponse{}, nil
		},
		RollbackFunc: func(ctx context.Context, req *pb.RollbackRequest) error { return nil },
	}
	c := newTestClient(rpc)

	name := "projects/proj/databases/(default)/documents/widgets/a"
	err := c.RunTransaction(context.Background(), fstxn.Options{}, func(ctx context.Context, tx *fstxn.Transaction) error {
		op, err := fswrite.SetReplace(name, map[string]fswrite.Input{
			"v": fswrite.PlainValue(fsvalue.Int64(1)),
		})
		if err != nil {
			return err
		}
		return tx.Set(name, op)
	})
	require.NoError(t, err)
	assert.Equal(t, 1, commits)
}

func TestListDocumentsStreamsAll(t *testing.T) {
	rpc := &fsrpcfake.Client{
		ListDocumentsFunc: func(ctx context.Context, req *pb.ListDocumentsRequest) ([]*pb.Document, error) {
			return []*pb.Document{
				{Name: "documents/widgets/a"},
				{Name: "documents/widgets/b"},
			}, nil
		},
	}
	c := newTestClient(rpc)

	var names []string
	for snap, err := range ListDocuments(context.Background(), c, c.databaseRoot, "widgets", fsvalue.DecodeOptions{}) {
		require.NoError(t, err)
		names = append(names, snap.Name)
	}
	assert.Equal(t, []string{"documents/widgets/a", "documents/widgets/b"}, names)
}

func TestListCollectionIdsStreamsAll(t *testing.T) {
	rpc := &fsrpcfake.Client{
		ListCollectionIdsFunc: func(ctx context.Context, req *pb.ListCollectionIdsRequest) ([]string, error) {
			return []string{"widgets", "gadgets"}, nil
		},
	}
	c := newTestClient(rpc)

	var ids []string
	for id, err := range ListCollectionIds(context.Background(), c, c.databaseRoot) {
		require.NoError(t, err)
		ids = append(ids, id)
	}
	assert.Equal(t, []string{"widgets", "gadgets"}, ids)
}

func TestBulkStoreFansOutBatches(t *testing.T) {
	var mu sync.Mutex
	var commits int
	rpc := &fsrpcfake.Client{
		CommitFunc: func(ctx context.Context, req *pb.CommitRequest) (*pb.CommitResponse, error) {
			mu.Lock()
			commits++
			mu.Unlock()
			return &pb.CommitResponse{}, nil
		},
	}
	c := newTestClient(rpc)
	cr := Collection[widget](c, "widgets", widgetConverter{})

	items := make([]widget, maxBatchCommitSize+1)
	for i := range items {
		items[i] = widget{Name: "w", Count: int64(i)}
	}

	err := cr.BulkStore(context.Background(), items, func(w widget) string { return w.Name })
	require.NoError(t, err)
	assert.Equal(t, 2, commits)
}
