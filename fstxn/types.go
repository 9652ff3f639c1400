// Package fstxn implements the transaction executor state machine:
// lazy transaction-id acquisition, read-after-write and read-only-write
// rejection, and bounded retry with exponential backoff on contention.
package fstxn

import (
	"time"

	pb "cloud.google.com/go/firestore/apiv1/firestorepb"
	"github.com/cenkalti/backoff/v4"
	"github.com/dataloom-dev/fsadmin/fsrpc"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// State is one of the executor's phases.
type State int

const (
	Init State = iota
	Reading
	Writing
	Committing
	Done
	Retry
	Failed
)

const defaultMaxAttempts = 5

// Mode distinguishes read-only from read-write transactions.
type Mode int

const (
	ReadWrite Mode = iota
	ReadOnly
)

// Options configures one Transaction run.
type Options struct {
	Mode        Mode
	// ReadTime anchors a read-only transaction to an explicit snapshot
	// instead of acquiring a transaction id.
	ReadTime    *timestamppb.Timestamp
	MaxAttempts int
}

// Transaction is the mutable per-attempt state. A fresh
// value is used for every attempt; Run owns the retry loop across
// attempts.
type Transaction struct {
	client       fsrpc.Client
	databaseRoot string // "projects/P/databases/D/documents"
	database     string // "projects/P/databases/D"
	opts         Options

	state State
	id    []byte

	writes     []*pb.Write
	hasWritten bool
	attempt    int
}

const (
	baseInterval        = time.Second
	multiplier          = 1.5
	randomizationFactor = 0.3
	maxInterval         = 60 * time.Second
)

func newBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = baseInterval
	b.Multiplier = multiplier
	b.RandomizationFactor = randomizationFactor
	b.MaxInterval = maxInterval
	b.MaxElapsedTime = 0 // the executor owns the attempt cap, not elapsed time
	return b
}
