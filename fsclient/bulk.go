package fsclient

import (
	"context"

	"github.com/dataloom-dev/fsadmin/fswrite"
	"golang.org/x/sync/errgroup"
)

// maxBatchCommitSize mirrors the wire API's single-Commit write-count
// limit, bounding each fan-out goroutine's batch.
const maxBatchCommitSize = 500

// BulkStore commits items in batches of up to maxBatchCommitSize, fanning
// the batches out concurrently via errgroup. Each batch is a single atomic
// Commit rather than bulk-writer-scheduled operations, since the caller
// wants one shot at every batch, not per-op retry (use Client.BulkWriter
// for that shape instead).
func (cr CollectionRef[T]) BulkStore(ctx context.Context, items []T, keyer func(T) string) error {
	eg, ctx := errgroup.WithContext(ctx)

	for start := 0; start < len(items); start += maxBatchCommitSize {
		end := start + maxBatchCommitSize
		if end > len(items) {
			end = len(items)
		}
		batch := items[start:end]

		eg.Go(func() error {
			b := fswrite.NewBatch()
			for _, item := range batch {
				fields, err := cr.conv.ToFields(item)
				if err != nil {
					return err
				}
				name := cr.client.databaseRoot + "/" + cr.path + "/" + keyer(item)
				op, err := fswrite.SetReplace(name, toFieldInputs(fields))
				if err != nil {
					return err
				}
				b.Set(name, op)
			}
			_, err := b.Commit(ctx, cr.client.rpc, cr.client.databaseName)
			return err
		})
	}
	return eg.Wait()
}
