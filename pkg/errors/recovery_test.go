package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecoverWithPanic(t *testing.T) {
	fit := func() (err error) {
		defer Recover(&err, "tree.Fit")
		panic("index out of range")
	}

	err := fit()
	require.Error(t, err)

	var panicErr *PanicError
	require.True(t, As(err, &panicErr))
	assert.Equal(t, "tree.Fit", panicErr.Operation)
	assert.Equal(t, "index out of range", panicErr.PanicValue)
	assert.NotEmpty(t, panicErr.StackTrace)
	assert.Equal(t, "panic in tree.Fit: index out of range", err.Error())
}

func TestRecoverWithoutPanic(t *testing.T) {
	fit := func() (err error) {
		defer Recover(&err, "tree.Fit")
		return nil
	}
	assert.NoError(t, fit())
}

func TestRecoverWithExistingError(t *testing.T) {
	original := fmt.Errorf("bad input")
	fit := func() (err error) {
		defer Recover(&err, "tree.Fit")
		err = original
		panic("after error")
	}

	err := fit()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after error")
	assert.True(t, Is(err, original))
}

func TestSafeExecute(t *testing.T) {
	tests := []struct {
		name    string
		fn      func() error
		wantErr string
		panics  bool
	}{
		{name: "success", fn: func() error { return nil }},
		{name: "error", fn: func() error { return fmt.Errorf("fit failed") }, wantErr: "fit failed"},
		{name: "panic", fn: func() error { panic(42) }, wantErr: "panic in candidate: 42", panics: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := SafeExecute("candidate", tt.fn)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantErr, err.Error())

			var panicErr *PanicError
			assert.Equal(t, tt.panics, As(err, &panicErr))
		})
	}
}
