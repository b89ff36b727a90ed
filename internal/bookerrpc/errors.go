package bookerrpc

import "fmt"

// RemoteError is a reconstructed application exception that crossed the wire
// as {name, args}. It carries the method's
// business-level failure, distinct from transport-level WireError codes.
type RemoteError struct {
	Name string
	Args map[string]any
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("bookerrpc: remote error %s %v", e.Name, e.Args)
}

// RemoteUnknownError wraps a remote error name this build does not
// recognize, in place of a dynamic lookup against an open-ended registry.
type RemoteUnknownError struct {
	Name string
	Args map[string]any
}

func (e *RemoteUnknownError) Error() string {
	return fmt.Sprintf("bookerrpc: unknown remote error %q %v", e.Name, e.Args)
}

// Known business error names exchanged with the booker.
const (
	ErrNameTransactionNotFound = "TransactionNotFound"
	ErrNameOperationsCollision = "OperationsCollision"
	ErrNameDecryptionError     = "DecryptionError"
	ErrNameInvalidMemoMask     = "InvalidMemoMask"
	ErrNameBlockMissing        = "BlockMissing"
	ErrNameNodeUnreachable     = "NodeUnreachable"
)

// errorRegistry is the closed set of known remote error names. Only names registered here reconstruct as *RemoteError;
// everything else becomes *RemoteUnknownError at the receiver.
var errorRegistry = map[string]bool{
	ErrNameTransactionNotFound: true,
	ErrNameOperationsCollision: true,
	ErrNameDecryptionError:     true,
	ErrNameInvalidMemoMask:     true,
	ErrNameBlockMissing:        true,
	ErrNameNodeUnreachable:     true,
}

// DecodeRemoteError reconstructs the error a {name, args} wire payload
// describes, falling back to RemoteUnknownError for unregistered names.
func DecodeRemoteError(name string, args map[string]any) error {
	if errorRegistry[name] {
		return &RemoteError{Name: name, Args: args}
	}
	return &RemoteUnknownError{Name: name, Args: args}
}
