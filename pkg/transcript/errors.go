package transcript

import "fmt"

// Kind tags the structured error variants from spec §3/§7. Retryability is
// fixed per kind: Network, RateLimit, and Timeout are retryable; the rest
// are not.
type Kind int

const (
	KindAuthentication Kind = iota
	KindNetwork
	KindRateLimit
	KindTimeout
	KindFormatMismatch
	KindProvider
	KindAborted
)

func (k Kind) String() string {
	switch k {
	case KindAuthentication:
		return "authentication"
	case KindNetwork:
		return "network"
	case KindRateLimit:
		return "rate_limit"
	case KindTimeout:
		return "timeout"
	case KindFormatMismatch:
		return "format_mismatch"
	case KindProvider:
		return "provider"
	case KindAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Error is the structured error type threaded through the provider session,
// aggregator, and controller. Op names the failing operation; the
// kind-specific fields below are populated according to Kind.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error

	// Network
	Transient bool
	// RateLimit
	RetryAfterMs *int64
	// Timeout
	Operation string
	TimeoutMs int64
	// FormatMismatch
	ExpectedFormat string
	ReceivedFormat string
	// Provider
	ProviderID string
	Code       string
	Status     int
	Raw        any
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether a controller should attempt a reconnect after
// this error. Only Network, RateLimit, and Timeout are retryable.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case KindNetwork, KindRateLimit, KindTimeout:
		return true
	default:
		return false
	}
}

// NewAuthentication builds an Authentication error. Terminal: never retried.
func NewAuthentication(op, message string) *Error {
	return &Error{Kind: KindAuthentication, Op: op, Message: message}
}

// NewNetwork builds a Network error, tagged transient per spec §3.
func NewNetwork(op, message string, transient bool) *Error {
	return &Error{Kind: KindNetwork, Op: op, Message: message, Transient: transient}
}

// NewRateLimit builds a RateLimit error. retryAfterMs is nil when the
// provider did not supply a retry-after hint.
func NewRateLimit(op, message string, retryAfterMs *int64) *Error {
	return &Error{Kind: KindRateLimit, Op: op, Message: message, RetryAfterMs: retryAfterMs}
}

// NewTimeout builds a Timeout error for the named operation.
func NewTimeout(op, operation string, timeoutMs int64) *Error {
	return &Error{Kind: KindTimeout, Op: op, Operation: operation, TimeoutMs: timeoutMs}
}

// NewFormatMismatch builds a FormatMismatch error. Terminal: never retried.
func NewFormatMismatch(op, expected, received string) *Error {
	return &Error{Kind: KindFormatMismatch, Op: op, ExpectedFormat: expected, ReceivedFormat: received}
}

// NewProvider builds a Provider error carrying the provider's own
// id/code/status/raw payload.
func NewProvider(op, providerID, code string, status int, raw any) *Error {
	return &Error{Kind: KindProvider, Op: op, ProviderID: providerID, Code: code, Status: status, Raw: raw}
}

// NewAborted builds an Aborted error. Terminal: never retried.
func NewAborted(op, message string) *Error {
	return &Error{Kind: KindAborted, Op: op, Message: message}
}

// Wrap builds an Error of the given Kind wrapping err, for call sites that
// need to surface a lower-level failure (e.g. socket dial) under the
// taxonomy without constructing a new message.
func Wrap(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}
