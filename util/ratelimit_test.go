package util

import (
	"bytes"
	"io"
	"testing"
)

func TestThrottleReader(t *testing.T) {
	th := NewThrottle(1 << 20)
	defer th.Stop()

	payload := []byte("the quick brown fox jumps over the lazy dog")
	var out bytes.Buffer
	n, err := io.Copy(&out, th.Reader(bytes.NewReader(payload)))
	if err != nil {
		t.Fatalf("Received %v, expected nil", err)
	}
	if n != int64(len(payload)) {
		t.Errorf("Received %d, expected %d", n, len(payload))
	}
	if !bytes.Equal(out.Bytes(), payload) {
		t.Errorf("Received %s, expected %s", out.Bytes(), payload)
	}
}

func TestThrottleStop(t *testing.T) {
	th := NewThrottle(1)

	// drive the credit pool far negative so the next read blocks
	payload := bytes.Repeat([]byte("x"), 1<<16)
	r := th.Reader(bytes.NewReader(payload))
	buf := make([]byte, len(payload))
	n, err := r.Read(buf)
	if err != nil {
		t.Fatalf("Received %v, expected nil", err)
	}
	if n == 0 {
		t.Fatalf("Received 0 bytes, expected some")
	}

	done := make(chan error, 1)
	go func() {
		_, err := r.Read(buf)
		done <- err
	}()
	th.Stop()
	err = <-done
	if err != ErrStopped {
		t.Errorf("Received %v, expected %v", err, ErrStopped)
	}
}
