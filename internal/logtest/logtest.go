// Package logtest captures klog output in tests.
package logtest

import (
	"bytes"
	"io"
	"os"
	"sync"
	"testing"

	"k8s.io/klog/v2"
)

// Capture returns what fn logged through klog, each line once. Tests using it must not run in
// parallel.
func Capture(t testing.TB, fn func()) string {
	t.Helper()
	buf := &syncBuffer{}
	klog.LogToStderr(false)
	// Every severity is also written to the INFO output.
	klog.SetOutput(io.Discard)
	klog.SetOutputBySeverity("INFO", buf)
	defer func() {
		klog.SetOutput(os.Stderr)
		klog.LogToStderr(true)
	}()
	fn()
	return buf.String()
}

// syncBuffer guards the buffer for code logging from several goroutines.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
