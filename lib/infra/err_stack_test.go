package infra

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

var initPC = caller()

func caller() Frame {
	var PCs [3]uintptr
	n := runtime.Callers(2, PCs[:])
	frames := runtime.CallersFrames(PCs[:n])
	frame, _ := frames.Next()
	return Frame(frame.PC + 1)
}

func TestFrameFormat(t *testing.T) {
	testcases := []struct {
		Frame
		format string
		want   string
	}{
		{initPC, "%s", "err_stack_test.go"},
		{Frame(0), "%s", "unknownFile"},
		{Frame(0), "%n", "unknownFunc"},
		{Frame(0), "%d", "0"},
		{Frame(0), "%+v", "unknownFrame"},
	}

	for _, tc := range testcases {
		require.Equal(t, tc.want, fmt.Sprintf(tc.format, tc.Frame))
	}

	v := fmt.Sprintf("%v", initPC)
	require.True(t, strings.HasPrefix(v, "err_stack_test.go:"))
	fv := fmt.Sprintf("%+v", initPC)
	require.True(t, strings.HasPrefix(fv, "github.com/benz9527/xtree/lib/infra."))
	require.Contains(t, fv, "err_stack_test.go:")
}

func TestFrameMarshalText(t *testing.T) {
	text, err := initPC.MarshalText()
	require.NoError(t, err)
	require.Contains(t, string(text), "lib/infra/err_stack_test.go:")

	text, err = Frame(0).MarshalText()
	require.NoError(t, err)
	require.Equal(t, "unknownFrame", string(text))
}

var errTestSentinel = errors.New("sentinel")

func TestErrorStack(t *testing.T) {
	es := NewErrorStack("boom")
	require.Equal(t, "boom", es.Error())
	require.Nil(t, es.Unwrap())
	require.NotEmpty(t, es.Frames())

	wrapped := WrapErrorStackWithMessage(errTestSentinel, "wrapped")
	require.Equal(t, "wrapped: sentinel", wrapped.Error())
	require.ErrorIs(t, wrapped, errTestSentinel)

	plain := WrapErrorStack(errTestSentinel)
	require.Equal(t, "sentinel", plain.Error())

	again := WrapErrorStackWithMessage(wrapped, "outer")
	require.ErrorIs(t, again, errTestSentinel)
	require.Equal(t, wrapped.Frames(), again.Frames())

	require.Nil(t, WrapErrorStack(nil))
}

func TestErrorStackMarshalLogObject(t *testing.T) {
	enc := zapcore.NewMapObjectEncoder()
	es := WrapErrorStackWithMessage(errTestSentinel, "marshal")
	require.NoError(t, es.MarshalLogObject(enc))
	require.Equal(t, "marshal: sentinel", enc.Fields["error"])
	stack, ok := enc.Fields["errorStack"].([]any)
	require.True(t, ok)
	require.Equal(t, len(es.Frames()), len(stack))
}
