package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequestIDIsShortAndUnique(t *testing.T) {
	a := NewRequestID()
	b := NewRequestID()

	assert.Len(t, a, 8)
	assert.NotEqual(t, a, b)
	assert.NotContains(t, a, "-")
}

func TestRecoverToErrorReportsPanic(t *testing.T) {
	errCh := make(chan error, 1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer RecoverToError(errCh)
		panic("evaluation blew up")
	}()
	<-done

	select {
	case err := <-errCh:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "evaluation blew up")
	default:
		t.Fatal("panic was not converted to an error")
	}
}

func TestRecoverToErrorNoopWithoutPanic(t *testing.T) {
	errCh := make(chan error, 1)
	func() {
		defer RecoverToError(errCh)
	}()
	assert.Empty(t, errCh)
}
