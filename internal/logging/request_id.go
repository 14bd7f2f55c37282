package logging

import "github.com/google/uuid"

// GenerateRequestID returns a random UUID string. Raft frames carry their
// own UUID request IDs; this is for log lines that start outside a frame.
func GenerateRequestID() string {
	return uuid.NewString()
}

// IsRequestID reports whether s is a well-formed request ID.
func IsRequestID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
