// Package testing holds test doubles for the stores, services and HTTP transport.
package testing

import (
	"errors"
	"io"
	"net/http"
	"os"
	"sync"
	"testing"
)

// FailingWriter rejects every write.
type FailingWriter struct{}

func (FailingWriter) Write(p []byte) (int, error) {
	return 0, errors.New("write failed")
}

// WriteLimit passes the first n writes to target and fails the rest.
type WriteLimit struct {
	n      int
	target io.Writer
}

func NewWriteLimit(n int, target io.Writer) *WriteLimit {
	return &WriteLimit{n: n, target: target}
}

func (w *WriteLimit) Write(p []byte) (int, error) {
	if w.n <= 0 {
		return 0, errors.New("write limit exceeded")
	}
	w.n--
	return w.target.Write(p)
}

// MockRoundTripper answers every request with a fixed response or error and
// records the requests it saw.
type MockRoundTripper struct {
	response *http.Response
	err      error

	mu       sync.Mutex
	requests []*http.Request
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	return m.response, m.err
}

// Requests returns the requests seen so far.
func (m *MockRoundTripper) Requests() []*http.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*http.Request(nil), m.requests...)
}

// FailingBody is a response body whose reads fail.
type FailingBody struct {
	Closed bool
}

func (f *FailingBody) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FailingBody) Close() error {
	f.Closed = true
	return nil
}

func MustGetwd(t *testing.T) string {
	t.Helper()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Failed to get working directory: %v", err)
	}
	return wd
}

func MustChdir(t *testing.T, dir string) {
	t.Helper()
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Failed to change directory to %s: %v", dir, err)
	}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertDirExists(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		t.Errorf("Directory does not exist: %s", path)
		return
	}
	if !info.IsDir() {
		t.Errorf("Path is not a directory: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
