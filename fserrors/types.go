// Package fserrors contains the closed error taxonomy used across the Firestore
// admin core: a status-code keyed set of typed errors that the bulk writer,
// transaction executor and readers classify and retry against.
package fserrors

import (
	"github.com/joomcode/errorx"
)

var Namespace = errorx.NewNamespace("Firestore")

var RetryableTrait = errorx.RegisterTrait("Retryable")
var ValidationTrait = errorx.RegisterTrait("Validation")

var base = errorx.NewType(Namespace, "Firestore Error")

// The closed set of RPC status kinds the core classifies against.
var (
	Aborted           = base.NewSubtype("aborted", RetryableTrait)
	AlreadyExists     = base.NewSubtype("already_exists")
	Cancelled         = base.NewSubtype("cancelled", RetryableTrait)
	DataLoss          = base.NewSubtype("data_loss")
	DeadlineExceeded  = base.NewSubtype("deadline_exceeded", RetryableTrait)
	FailedPrecondition = base.NewSubtype("failed_precondition")
	Internal          = base.NewSubtype("internal", RetryableTrait)
	InvalidArgument   = base.NewSubtype("invalid_argument", ValidationTrait)
	NotFound          = base.NewSubtype("not_found", errorx.NotFound())
	OutOfRange        = base.NewSubtype("out_of_range")
	PermissionDenied  = base.NewSubtype("permission_denied")
	ResourceExhausted = base.NewSubtype("resource_exhausted", RetryableTrait)
	Unauthenticated   = base.NewSubtype("unauthenticated")
	Unavailable       = base.NewSubtype("unavailable", RetryableTrait)
	Unimplemented     = base.NewSubtype("unimplemented")
	Unknown           = base.NewSubtype("unknown", RetryableTrait)
)

// Code is a stable, language-independent name for one of the above kinds.
type Code string

const (
	CodeAborted            Code = "aborted"
	CodeAlreadyExists      Code = "alreadyExists"
	CodeCancelled          Code = "cancelled"
	CodeDataLoss           Code = "dataLoss"
	CodeDeadlineExceeded   Code = "deadlineExceeded"
	CodeFailedPrecondition Code = "failedPrecondition"
	CodeInternal           Code = "internal"
	CodeInvalidArgument    Code = "invalidArgument"
	CodeNotFound           Code = "notFound"
	CodeOutOfRange         Code = "outOfRange"
	CodePermissionDenied   Code = "permissionDenied"
	CodeResourceExhausted  Code = "resourceExhausted"
	CodeUnauthenticated    Code = "unauthenticated"
	CodeUnavailable        Code = "unavailable"
	CodeUnimplemented      Code = "unimplemented"
	CodeUnknown            Code = "unknown"
)

var codeToType = map[Code]*errorx.Type{
	CodeAborted:            Aborted,
	CodeAlreadyExists:      AlreadyExists,
	CodeCancelled:          Cancelled,
	CodeDataLoss:           DataLoss,
	CodeFailedPrecondition: FailedPrecondition,
	CodeInternal:           Internal,
	CodeInvalidArgument:    InvalidArgument,
	CodeNotFound:           NotFound,
	CodeOutOfRange:         OutOfRange,
	CodePermissionDenied:   PermissionDenied,
	CodeResourceExhausted:  ResourceExhausted,
	CodeUnauthenticated:    Unauthenticated,
	CodeUnavailable:        Unavailable,
	CodeUnimplemented:      Unimplemented,
	CodeUnknown:            Unknown,
	CodeDeadlineExceeded:   DeadlineExceeded,
}

// Fixed user-visible messages that are part of the contract; test
// suites may match on them verbatim.
const (
	MsgReadAfterWrite   = "Firestore transactions require all reads to be executed before all writes."
	MsgReadOnlyWrite    = "Firestore read-only transactions cannot execute writes."
	MsgMaxAttempts      = "Transaction max attempts exceeded"
	MsgBulkWriterClosed = "BulkWriter has already been closed."
)

// transactionRetryableCodes is the set the transaction executor retries:
// the universally-retryable ABORTED plus the additional transient codes.
var transactionRetryableCodes = map[Code]bool{
	CodeAborted:           true,
	CodeUnavailable:       true,
	CodeCancelled:         true,
	CodeResourceExhausted: true,
	CodeInternal:          true,
	CodeDeadlineExceeded:  true,
	CodeUnknown:           true,
}

// bulkWriterDefaultRetryableCodes is the default per-operation retry policy.
var bulkWriterDefaultRetryableCodes = map[Code]bool{
	CodeAborted:     true,
	CodeUnavailable: true,
}
