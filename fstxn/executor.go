package fstxn

import (
	"context"
	"time"

	pb "cloud.google.com/go/firestore/apiv1/firestorepb"
	"github.com/dataloom-dev/fsadmin/fserrors"
	"github.com/dataloom-dev/fsadmin/fsrpc"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/rs/zerolog/pkgerrors"
)

func init() {
	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
}

// Run drives the full attempt loop: construct a fresh
// Transaction, invoke fn against it, then commit. A failure carrying a
// transaction-retryable status — whether it surfaced from the commit or was
// propagated out of fn by a contended read — rolls back and retries the
// whole callback with exponential backoff up to opts.MaxAttempts. Anything
// else rolls back and is returned without retry: an error from fn as-is, a
// commit failure as the typed fserrors error decoded from its status.
func Run(ctx context.Context, client fsrpc.Client, databaseRoot, database string, opts Options, fn func(ctx context.Context, t *Transaction) error) error {
	if opts.MaxAttempts == 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	b := newBackoff()

	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		t := newTransaction(client, databaseRoot, database, opts)
		t.attempt = attempt

		if err := fn(ctx, t); err != nil {
			t.rollback(ctx)
			if !fserrors.IsClassified(err) || !fserrors.IsTransactionRetryable(fserrors.CodeOf(err)) {
				return err
			}
			if attempt == opts.MaxAttempts {
				log.Error().Int("attempt", attempt).Msg("transaction executor exhausted max attempts")
				return fserrors.New(fserrors.CodeAborted, fserrors.MsgMaxAttempts)
			}
			t.state = Retry
			d := b.NextBackOff()
			log.Warn().Int("attempt", attempt).Str("code", string(fserrors.CodeOf(err))).Dur("backoff", d).Msg("transaction callback failed with retryable status, retrying")
			sleepBackoff(ctx, d)
			continue
		}

		if !t.hasWritten {
			// Read-only run, or a read-write run that never queued a write:
			// nothing to commit, but still release any acquired transaction.
			t.rollback(ctx)
			return nil
		}

		t.state = Committing
		_, err := client.Commit(ctx, &pb.CommitRequest{
			Database:    t.database,
			Writes:      t.writes,
			Transaction: t.id,
		})
		if err == nil {
			t.state = Done
			return nil
		}

		code, wrapped := fserrors.FromGRPCStatus(err)
		t.rollback(ctx)

		if !fserrors.IsTransactionRetryable(code) || attempt == opts.MaxAttempts {
			if attempt == opts.MaxAttempts && fserrors.IsTransactionRetryable(code) {
				log.Error().Int("attempt", attempt).Msg("transaction executor exhausted max attempts")
				return fserrors.New(fserrors.CodeAborted, fserrors.MsgMaxAttempts)
			}
			return wrapped
		}

		t.state = Retry
		d := b.NextBackOff()
		log.Warn().Int("attempt", attempt).Str("code", string(code)).Dur("backoff", d).Msg("transaction executor retrying after rollback")
		sleepBackoff(ctx, d)
	}
	return fserrors.New(fserrors.CodeAborted, fserrors.MsgMaxAttempts)
}

// rollback releases an acquired transaction id; it is a best-effort cleanup
// and its error is intentionally discarded.
func (t *Transaction) rollback(ctx context.Context) {
	if len(t.id) == 0 {
		return
	}
	_ = t.client.Rollback(ctx, &pb.RollbackRequest{Database: t.database, Transaction: t.id})
}

func sleepBackoff(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
