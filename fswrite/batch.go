package fswrite

import (
	"context"

	pb "cloud.google.com/go/firestore/apiv1/firestorepb"
	"github.com/dataloom-dev/fsadmin/fsrpc"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// Batch accumulates ops for a single atomic Commit. It is the
// standalone accumulator a caller builds up across create/set/update/delete
// calls before sending one Commit RPC; the bulk writer and transaction
// executor each build their own Write slices directly rather than going
// through this type, since their batching/retry semantics differ.
type Batch struct {
	entries []batchEntry
}

type batchEntry struct {
	op           Op
	documentName string
}

// NewBatch returns an empty batch.
func NewBatch() *Batch { return &Batch{} }

func (b *Batch) add(op Op, documentName string) *Batch {
	b.entries = append(b.entries, batchEntry{op: op, documentName: documentName})
	return b
}

// Create queues a create() write.
func (b *Batch) Create(documentName string, op Op) *Batch { return b.add(op, documentName) }

// Set queues a set()/set(merge)/set(mergeFields) write.
func (b *Batch) Set(documentName string, op Op) *Batch { return b.add(op, documentName) }

// Update queues an update() write.
func (b *Batch) Update(documentName string, op Op) *Batch { return b.add(op, documentName) }

// Delete queues a delete() write.
func (b *Batch) Delete(documentName string, op Op) *Batch { return b.add(op, documentName) }

// Len reports the number of queued writes.
func (b *Batch) Len() int { return len(b.entries) }

func (b *Batch) encode() []*pb.Write {
	out := make([]*pb.Write, len(b.entries))
	for i, e := range b.entries {
		out[i] = Encode(e.op, e.documentName)
	}
	return out
}

// WriteResult is the per-write outcome of a commit: the update time
// from the response, or the commit time if the response omitted one (a
// delete, notably, carries no updateTime).
type WriteResult struct {
	UpdateTime *timestamppb.Timestamp
}

// CommitResult is the outcome of Commit: a monotonic commit time plus one
// WriteResult per queued write, in order.
type CommitResult struct {
	CommitTime *timestamppb.Timestamp
	Writes     []WriteResult
}

// Commit sends the batch's writes atomically via the unary Commit RPC.
// database is the fully qualified database resource name
// ("projects/P/databases/D").
func (b *Batch) Commit(ctx context.Context, client fsrpc.Client, database string) (CommitResult, error) {
	resp, err := client.Commit(ctx, &pb.CommitRequest{
		Database: database,
		Writes:   b.encode(),
	})
	if err != nil {
		return CommitResult{}, err
	}
	result := CommitResult{CommitTime: resp.GetCommitTime()}
	for _, wr := range resp.GetWriteResults() {
		ut := wr.GetUpdateTime()
		if ut == nil {
			ut = resp.GetCommitTime()
		}
		result.Writes = append(result.Writes, WriteResult{UpdateTime: ut})
	}
	return result, nil
}
