package conversation

import "errors"

var (
	// ErrConnRequired is returned when a connection is not provided.
	ErrConnRequired = errors.New("connection required")

	// ErrAnswererRequired is returned when an answerer is not provided.
	ErrAnswererRequired = errors.New("answerer required")

	// ErrTranscriptsRequired is returned when a transcript store is not provided.
	ErrTranscriptsRequired = errors.New("transcript store required")

	// ErrDisconnected is returned by Run when the client went away before the
	// session completed.
	ErrDisconnected = errors.New("client disconnected")
)

// Reasons a question payload is rejected. Their text is safe to show to the
// client; Validate wraps them with core.ErrProtocol.
var (
	ErrMalformedPayload   = errors.New("malformed payload")
	ErrNoMessages         = errors.New("payload has no messages")
	ErrUnknownMessageType = errors.New("unknown message type")
	ErrNotHuman           = errors.New("last message is not from a human")
	ErrMissingMessageID   = errors.New("message id is missing")
	ErrEmptyQuestion      = errors.New("question is empty")
	ErrQuestionTooLong    = errors.New("question is too long")
	ErrVerificationFailed = errors.New("verification failed")
)

var protocolReasons = []error{
	ErrMalformedPayload,
	ErrNoMessages,
	ErrUnknownMessageType,
	ErrNotHuman,
	ErrMissingMessageID,
	ErrEmptyQuestion,
	ErrQuestionTooLong,
	ErrVerificationFailed,
}
