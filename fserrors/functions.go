package fserrors

import (
	"github.com/joomcode/errorx"
	"google.golang.org/genproto/googleapis/rpc/code"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// New builds a typed error for the given code with a formatted message.
func New(c Code, format string, args ...any) error {
	t, ok := codeToType[c]
	if !ok {
		t = Unknown
	}
	return t.New(format, args...)
}

// FromGRPCStatus decodes a gRPC error into a Code + typed error, following
// the {status,message,details} envelope.
func FromGRPCStatus(err error) (Code, error) {
	if err == nil {
		return "", nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return CodeUnknown, Unknown.Wrap(err, err.Error())
	}
	c := fromGRPCCode(st.Code())
	t, ok := codeToType[c]
	if !ok {
		t = Unknown
	}
	return c, t.Wrap(err, st.Message())
}

func fromGRPCCode(c codes.Code) Code {
	switch c {
	case codes.Aborted:
		return CodeAborted
	case codes.AlreadyExists:
		return CodeAlreadyExists
	case codes.Canceled:
		return CodeCancelled
	case codes.DataLoss:
		return CodeDataLoss
	case codes.DeadlineExceeded:
		return CodeDeadlineExceeded
	case codes.FailedPrecondition:
		return CodeFailedPrecondition
	case codes.Internal:
		return CodeInternal
	case codes.InvalidArgument:
		return CodeInvalidArgument
	case codes.NotFound:
		return CodeNotFound
	case codes.OutOfRange:
		return CodeOutOfRange
	case codes.PermissionDenied:
		return CodePermissionDenied
	case codes.ResourceExhausted:
		return CodeResourceExhausted
	case codes.Unauthenticated:
		return CodeUnauthenticated
	case codes.Unavailable:
		return CodeUnavailable
	case codes.Unimplemented:
		return CodeUnimplemented
	default:
		return CodeUnknown
	}
}

// httpStatusToCode is the fallback table used when an RPC error
// envelope carries an HTTP status instead of a gRPC status (e.g. a REST
// transport).
var httpStatusToCode = map[int]Code{
	400: CodeInvalidArgument,
	401: CodeUnauthenticated,
	403: CodeUnauthenticated,
	404: CodeNotFound,
	409: CodeAborted,
	500: CodeInternal,
	503: CodeUnavailable,
}

// FromHTTPStatus maps an HTTP status code to a Code via the fallback table;
// unmapped codes classify as unknown.
func FromHTTPStatus(status int) Code {
	if c, ok := httpStatusToCode[status]; ok {
		return c
	}
	return CodeUnknown
}

// IsClassified reports whether err carries an explicit status
// classification — a typed error from this package or a real gRPC status.
// An arbitrary application error is unclassified and must never be retried
// on the caller's behalf, even though CodeOf would fall back to unknown.
func IsClassified(err error) bool {
	if err == nil {
		return false
	}
	if errx := errorx.Cast(err); errx != nil {
		return errx.IsOfType(base)
	}
	_, ok := status.FromError(err)
	return ok
}

// IsTransactionRetryable reports whether the transaction executor
// should retry the attempt for the given code.
func IsTransactionRetryable(c Code) bool {
	return transactionRetryableCodes[c]
}

// IsBulkWriterDefaultRetryable reports whether the bulk writer's default
// retry policy retries the given code for the given operation kind.
// Deletes additionally retry INTERNAL.
func IsBulkWriterDefaultRetryable(c Code, isDelete bool) bool {
	if bulkWriterDefaultRetryableCodes[c] {
		return true
	}
	if isDelete && c == CodeInternal {
		return true
	}
	return false
}

// CodeOf extracts the Code from an error produced by this package, falling
// back to classifying it as a gRPC status, then Unknown.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	if errx := errorx.Cast(err); errx != nil {
		for c, t := range codeToType {
			if errx.IsOfType(t) {
				return c
			}
		}
	}
	c, _ := FromGRPCStatus(err)
	if c != "" {
		return c
	}
	return CodeUnknown
}

// grpcCodeOf is used by tests to assert the code.Code wire value a Code maps
// back to.
func grpcCodeOf(c Code) code.Code {
	switch c {
	case CodeAborted:
		return code.Code_ABORTED
	case CodeAlreadyExists:
		return code.Code_ALREADY_EXISTS
	case CodeCancelled:
		return code.Code_CANCELLED
	case CodeDataLoss:
		return code.Code_DATA_LOSS
	case CodeDeadlineExceeded:
		return code.Code_DEADLINE_EXCEEDED
	case CodeFailedPrecondition:
		return code.Code_FAILED_PRECONDITION
	case CodeInternal:
		return code.Code_INTERNAL
	case CodeInvalidArgument:
		return code.Code_INVALID_ARGUMENT
	case CodeNotFound:
		return code.Code_NOT_FOUND
	case CodeOutOfRange:
		return code.Code_OUT_OF_RANGE
	case CodePermissionDenied:
		return code.Code_PERMISSION_DENIED
	case CodeResourceExhausted:
		return code.Code_RESOURCE_EXHAUSTED
	case CodeUnauthenticated:
		return code.Code_UNAUTHENTICATED
	case CodeUnavailable:
		return code.Code_UNAVAILABLE
	case CodeUnimplemented:
		return code.Code_UNIMPLEMENTED
	default:
		return code.Code_UNKNOWN
	}
}
