package errors

import "google.golang.org/grpc/codes"

// Memory engine service code: 21 (business service range 20-79).
// Code format AABBCCC: AA=21, BB=category, CCC=sequence.
const (
	ServiceMemory = 21
)

var (
	// ErrInvalidResponse: the LLM produced output that does not conform to
	// the requested schema. Retried within the job's retry budget.
	ErrInvalidResponse = Register(New(MakeCode(ServiceMemory, CategoryInternal, 1), 502, codes.Internal, "llm response did not conform to schema", "LLM 响应不符合 schema"))

	// ErrTransport: database, queue, or LLM I/O failure. Retried with backoff.
	ErrTransport = Register(New(MakeCode(ServiceMemory, CategoryNetwork, 1), 502, codes.Unavailable, "transport failure", "传输层失败"))

	// ErrUnknownHandler: a message's story names a handler not present in
	// the registry. Fatal for the batch; messages MUST NOT be marked extracted.
	ErrUnknownHandler = Register(New(MakeCode(ServiceMemory, CategoryRequest, 1), 500, codes.FailedPrecondition, "unknown handler", "未知处理器"))
)
