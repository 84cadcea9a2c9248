package infra

import (
	"fmt"
	"io"
	"path"
	"runtime"
	"strconv"

	"go.uber.org/zap/zapcore"
)

// References:
// https://github.com/pkg/errors/blob/master/stack.go

type Frame uintptr

func (frame Frame) pc() uintptr {
	return uintptr(frame) - 1
}

func (frame Frame) file() string {
	fn := runtime.FuncForPC(frame.pc())
	if fn == nil {
		return "unknownFile"
	}
	f, _ := fn.FileLine(frame.pc())
	return f
}

func (frame Frame) line() int {
	fn := runtime.FuncForPC(frame.pc())
	if fn == nil {
		return 0
	}
	_, l := fn.FileLine(frame.pc())
	return l
}

func (frame Frame) name() string {
	fn := runtime.FuncForPC(frame.pc())
	if fn == nil {
		return "unknownFunc"
	}
	return fn.Name()
}

// Format characters:
// %s - source file
// %d - source line
// %n - function name
// %v - verbose, equivalent to %s:%d
// %+v - <function-name> <full-path>:<line>
func (frame Frame) Format(s fmt.State, verb rune) {
	switch verb {
	case 's':
		_, _ = io.WriteString(s, path.Base(frame.file()))
	case 'd':
		_, _ = io.WriteString(s, strconv.Itoa(frame.line()))
	case 'n':
		_, _ = io.WriteString(s, frame.name())
	case 'v':
		if s.Flag('+') {
			_, _ = io.WriteString(s, frame.name())
			_, _ = io.WriteString(s, " ")
			_, _ = io.WriteString(s, frame.file())
		} else {
			frame.Format(s, 's')
		}
		_, _ = io.WriteString(s, ":")
		frame.Format(s, 'd')
	}
}

// ErrorStack is an error enriched with the program counters of its
// construction site. It knows how to render itself as a zap inline
// object so the log aggregator receives a parseable stack instead of
// the zap default multiline string.
type ErrorStack interface {
	error
	zapcore.ObjectMarshaler
}

type errorStack struct {
	cause  error
	msg    string
	frames []Frame
}

func (e *errorStack) Error() string {
	if e.cause == nil {
		return e.msg
	}
	if len(e.msg) == 0 {
		return e.cause.Error()
	}
	return e.msg + ": " + e.cause.Error()
}

func (e *errorStack) Unwrap() error {
	return e.cause
}

func (e *errorStack) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("error", e.Error())
	return enc.AddArray("stack", frameSlice(e.frames))
}

type frameSlice []Frame

func (frames frameSlice) MarshalLogArray(enc zapcore.ArrayEncoder) error {
	for _, frame := range frames {
		enc.AppendString(fmt.Sprintf("%+v", frame))
	}
	return nil
}

const maxStackDepth = 16

func callers(skip int) []Frame {
	var pcs [maxStackDepth]uintptr
	n := runtime.Callers(skip, pcs[:])
	frames := make([]Frame, 0, n)
	for i := 0; i < n; i++ {
		frames = append(frames, Frame(pcs[i]))
	}
	return frames
}

// NewErrorStack builds a fresh error carrying the caller's stack.
func NewErrorStack(msg string) error {
	return &errorStack{msg: msg, frames: callers(3)}
}

// WrapErrorStack attaches the caller's stack to err. A nil err stays
// nil and an err that already carries a stack is returned as is.
func WrapErrorStack(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*errorStack); ok {
		return err
	}
	return &errorStack{cause: err, frames: callers(3)}
}

// WrapErrorStackWithMessage wraps err with an annotation plus the
// caller's stack. The wrapped err remains reachable via errors.Is
// and errors.As.
func WrapErrorStackWithMessage(err error, msg string) error {
	if err == nil {
		return &errorStack{msg: msg, frames: callers(3)}
	}
	return &errorStack{cause: err, msg: msg, frames: callers(3)}
}
