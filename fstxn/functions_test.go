package fstxn

import (
	"context"
	"errors"
	"testing"

	pb "cloud.google.com/go/firestore/apiv1/firestorepb"
	"github.com/dataloom-dev/fsadmin/fserrors"
	"github.com/dataloom-dev/fsadmin/fsrpc/fsrpcfake"
	"github.com/dataloom-dev/fsadmin/fswrite"
	"github.com/dataloom-dev/fsadmin/fsvalue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	rpcstatus "google.golang.org/genproto/googleapis/rpc/status"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/timestamppb"
)

func replaceOp(t *testing.T, doc string, v int64) fswrite.Op {
	t.Helper()
	op, err := fswrite.SetReplace(doc, map[string]fswrite.Input{"v": fswrite.PlainValue(fsvalue.Int64(v))})
	require.NoError(t, err)
	return op
}

func TestReadAfterWriteRejected(t *testing.T) {
	tx := newTransaction(&fsrpcfake.Client{}, "projects/p/databases/(default)/documents", "projects/p/databases/(default)", Options{})
	require.NoError(t, tx.Create("documents/a", map[string]fswrite.Input{"v": fswrite.PlainValue(fsvalue.Int64(1))}))

	_, err := tx.Get(context.Background(), "documents/a", fsvalue.DecodeOptions{})
	require.Error(t, err)
	assert.Equal(t, fserrors.CodeFailedPrecondition, fserrors.CodeOf(err))
}

func TestWriteRejectedInReadOnlyTransaction(t *testing.T) {
	tx := newTransaction(&fsrpcfake.Client{}, "projects/p/databases/(default)/documents", "projects/p/databases/(default)", Options{Mode: ReadOnly})
	err := tx.Create("documents/a", map[string]fswrite.Input{"v": fswrite.PlainValue(fsvalue.Int64(1))})
	require.Error(t, err)
	assert.Equal(t, fserrors.CodeFailedPrecondition, fserrors.CodeOf(err))
}

func TestRunRetriesAbortedCommitThenSucceeds(t *testing.T) {
	attempts := 0
	fake := &fsrpcfake.Client{
		BatchGetDocumentsFunc: func(ctx context.Context, req *pb.BatchGetDocumentsRequest) ([]*pb.BatchGetDocumentsResponse, error) {
			return []*pb.BatchGetDocumentsResponse{
				{Transaction: []byte("txn-1"), Result: &pb.BatchGetDocumentsResponse_Found{Found: &pb.Document{Name: req.Documents[0]}}},
			}, nil
		},
		CommitFunc: func(ctx context.Context, req *pb.CommitRequest) (*pb.CommitResponse, error) {
			attempts++
			if attempts < 2 {
				return nil, grpcstatus.ErrorProto(&rpcstatus.Status{Code: int32(codes.Aborted)})
			}
			return &pb.CommitResponse{}, nil
		},
		RollbackFunc: func(ctx context.Context, req *pb.RollbackRequest) error { return nil },
	}

	err := Run(context.Background(), fake, "projects/p/databases/(default)/documents", "projects/p/databases/(default)", Options{MaxAttempts: 3}, func(ctx context.Context, tx *Transaction) error {
		_, err := tx.Get(ctx, "documents/a", fsvalue.DecodeOptions{})
		if err != nil {
			return err
		}
		return tx.Set("documents/a", replaceOp(t, "documents/a", 2))
	})

	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestRunExhaustsMaxAttempts(t *testing.T) {
	fake := &fsrpcfake.Client{
		CommitFunc: func(ctx context.Context, req *pb.CommitRequest) (*pb.CommitResponse, error) {
			return nil, grpcstatus.ErrorProto(&rpcstatus.Status{Code: int32(codes.Aborted)})
		},
		RollbackFunc: func(ctx context.Context, req *pb.RollbackRequest) error { return nil },
	}

	err := Run(context.Background(), fake, "projects/p/databases/(default)/documents", "projects/p/databases/(default)", Options{MaxAttempts: 2}, func(ctx context.Context, tx *Transaction) error {
		return tx.Set("documents/a", replaceOp(t, "documents/a", 1))
	})

	require.Error(t, err)
	assert.Equal(t, fserrors.CodeAborted, fserrors.CodeOf(err))
}

func TestRunPropagatesCallbackErrorWithoutRetry(t *testing.T) {
	commits := 0
	fake := &fsrpcfake.Client{
		CommitFunc: func(ctx context.Context, req *pb.CommitRequest) (*pb.CommitResponse, error) {
			commits++
			return &pb.CommitResponse{}, nil
		},
		RollbackFunc: func(ctx context.Context, req *pb.RollbackRequest) error { return nil },
	}

	boom := fserrors.New(fserrors.CodeInvalidArgument, "boom")
	err := Run(context.Background(), fake, "projects/p/databases/(default)/documents", "projects/p/databases/(default)", Options{MaxAttempts: 3}, func(ctx context.Context, tx *Transaction) error {
		return boom
	})

	require.Error(t, err)
	assert.Equal(t, 0, commits)
}

func TestRetryableCallbackErrorRetriesWholeCallback(t *testing.T) {
	reads := 0
	fake := &fsrpcfake.Client{
		BatchGetDocumentsFunc: func(ctx context.Context, req *pb.BatchGetDocumentsRequest) ([]*pb.BatchGetDocumentsResponse, error) {
			reads++
			if reads == 1 {
				return nil, grpcstatus.ErrorProto(&rpcstatus.Status{Code: int32(codes.Aborted)})
			}
			return []*pb.BatchGetDocumentsResponse{
				{Transaction: []byte("txn-2"), Result: &pb.BatchGetDocumentsResponse_Found{Found: &pb.Document{Name: req.Documents[0]}}},
			}, nil
		},
		CommitFunc: func(ctx context.Context, req *pb.CommitRequest) (*pb.CommitResponse, error) {
			return &pb.CommitResponse{}, nil
		},
		RollbackFunc: func(ctx context.Context, req *pb.RollbackRequest) error { return nil },
	}

	callbacks := 0
	err := Run(context.Background(), fake, "projects/p/databases/(default)/documents", "projects/p/databases/(default)", Options{MaxAttempts: 3}, func(ctx context.Context, tx *Transaction) error {
		callbacks++
		_, err := tx.Get(ctx, "documents/a", fsvalue.DecodeOptions{})
		if err != nil {
			return err
		}
		return tx.Set("documents/a", replaceOp(t, "documents/a", 1))
	})

	require.NoError(t, err)
	assert.Equal(t, 2, callbacks)
}

func TestUnclassifiedCallbackErrorIsNeverRetried(t *testing.T) {
	fake := &fsrpcfake.Client{
		RollbackFunc: func(ctx context.Context, req *pb.RollbackRequest) error { return nil },
	}

	callbacks := 0
	boom := errors.New("application bug, not a status")
	err := Run(context.Background(), fake, "projects/p/databases/(default)/documents", "projects/p/databases/(default)", Options{MaxAttempts: 5}, func(ctx context.Context, tx *Transaction) error {
		callbacks++
		return boom
	})

	require.ErrorIs(t, err, boom)
	assert.Equal(t, 1, callbacks)
}

func TestBeginAcquiresTransactionIDExplicitly(t *testing.T) {
	var committedWith []byte
	fake := &fsrpcfake.Client{
		BeginTransactionFunc: func(ctx context.Context, req *pb.BeginTransactionRequest) (*pb.BeginTransactionResponse, error) {
			require.NotNil(t, req.GetOptions().GetReadWrite())
			return &pb.BeginTransactionResponse{Transaction: []byte("txn-explicit")}, nil
		},
		CommitFunc: func(ctx context.Context, req *pb.CommitRequest) (*pb.CommitResponse, error) {
			committedWith = req.GetTransaction()
			return &pb.CommitResponse{}, nil
		},
		RollbackFunc: func(ctx context.Context, req *pb.RollbackRequest) error { return nil },
	}

	err := Run(context.Background(), fake, "projects/p/databases/(default)/documents", "projects/p/databases/(default)", Options{MaxAttempts: 1}, func(ctx context.Context, tx *Transaction) error {
		if err := tx.Begin(ctx); err != nil {
			return err
		}
		return tx.Set("documents/a", replaceOp(t, "documents/a", 1))
	})

	require.NoError(t, err)
	assert.Contains(t, fake.Calls, "BeginTransaction")
	assert.Equal(t, []byte("txn-explicit"), committedWith)
}

func TestBeginIsNoOpForReadTimeAnchoredReadOnly(t *testing.T) {
	fake := &fsrpcfake.Client{
		RollbackFunc: func(ctx context.Context, req *pb.RollbackRequest) error { return nil },
	}
	tx := newTransaction(fake, "projects/p/databases/(default)/documents", "projects/p/databases/(default)", Options{Mode: ReadOnly, ReadTime: timestamppb.Now()})

	require.NoError(t, tx.Begin(context.Background()))
	assert.NotContains(t, fake.Calls, "BeginTransaction")
}

func TestRollbackIssuedAfterAcquiredIDOnCallbackFailure(t *testing.T) {
	var rolledBack []byte
	fake := &fsrpcfake.Client{
		BatchGetDocumentsFunc: func(ctx context.Context, req *pb.BatchGetDocumentsRequest) ([]*pb.BatchGetDocumentsResponse, error) {
			return []*pb.BatchGetDocumentsResponse{
				{Transaction: []byte("txn-3"), Result: &pb.BatchGetDocumentsResponse_Found{Found: &pb.Document{Name: req.Documents[0]}}},
			}, nil
		},
		RollbackFunc: func(ctx context.Context, req *pb.RollbackRequest) error {
			rolledBack = req.GetTransaction()
			return nil
		},
	}

	err := Run(context.Background(), fake, "projects/p/databases/(default)/documents", "projects/p/databases/(default)", Options{MaxAttempts: 1}, func(ctx context.Context, tx *Transaction) error {
		if _, err := tx.Get(ctx, "documents/a", fsvalue.DecodeOptions{}); err != nil {
			return err
		}
		return fserrors.New(fserrors.CodeInvalidArgument, "validation failed inside callback")
	})

	require.Error(t, err)
	assert.Equal(t, []byte("txn-3"), rolledBack)
}

func TestMaxAttemptsErrorCarriesContractMessage(t *testing.T) {
	fake := &fsrpcfake.Client{
		CommitFunc: func(ctx context.Context, req *pb.CommitRequest) (*pb.CommitResponse, error) {
			return nil, grpcstatus.ErrorProto(&rpcstatus.Status{Code: int32(codes.Aborted)})
		},
		RollbackFunc: func(ctx context.Context, req *pb.RollbackRequest) error { return nil },
	}

	err := Run(context.Background(), fake, "projects/p/databases/(default)/documents", "projects/p/databases/(default)", Options{MaxAttempts: 1}, func(ctx context.Context, tx *Transaction) error {
		return tx.Set("documents/a", replaceOp(t, "documents/a", 1))
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), fserrors.MsgMaxAttempts)
}

func TestReadAfterWriteMessageIsContractual(t *testing.T) {
	tx := newTransaction(&fsrpcfake.Client{}, "projects/p/databases/(default)/documents", "projects/p/databases/(default)", Options{})
	require.NoError(t, tx.Create("documents/a", map[string]fswrite.Input{"v": fswrite.PlainValue(fsvalue.Int64(1))}))

	_, err := tx.Get(context.Background(), "documents/a", fsvalue.DecodeOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), fserrors.MsgReadAfterWrite)
}

func TestReadOnlyWriteMessageIsContractual(t *testing.T) {
	tx := newTransaction(&fsrpcfake.Client{}, "projects/p/databases/(default)/documents", "projects/p/databases/(default)", Options{Mode: ReadOnly})
	err := tx.Delete("documents/a", fswrite.NoPrecondition)
	require.Error(t, err)
	assert.Contains(t, err.Error(), fserrors.MsgReadOnlyWrite)
}
