package common

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// NewRequestID returns a short correlation ID for tagging log lines that
// belong to one logical network request.
func NewRequestID() string {
	return strings.SplitN(uuid.NewString(), "-", 2)[0]
}

// RecoverToError converts a panic in the calling goroutine into an error on
// errCh. Deferred in goroutines whose crash would otherwise take the process
// down, such as the watcher's debounced evaluation.
func RecoverToError(errCh chan<- error) {
	if r := recover(); r != nil {
		errCh <- fmt.Errorf("panic recovered: %v", r)
	}
}
