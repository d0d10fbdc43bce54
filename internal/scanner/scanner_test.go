package scanner

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

func recv(t *testing.T, ch <-chan Capture) (Capture, bool) {
	t.Helper()
	select {
	case c, ok := <-ch:
		return c, ok
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for capture")
		return Capture{}, false
	}
}

func TestLineDeviceDeliversLines(t *testing.T) {
	pr, pw := io.Pipe()
	d := NewLineDevice(pr)

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := d.Start(ctx)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	go pw.Write([]byte("{\"ticketId\":\"1\"}\n"))
	c, ok := recv(t, ch)
	if !ok || c.Err != nil || c.Text != `{"ticketId":"1"}` {
		t.Fatalf("got %+v ok=%v", c, ok)
	}

	cancel()
	if _, ok := recv(t, ch); ok {
		t.Fatal("channel should be closed after cancel")
	}
}

func TestLineDeviceDiscardsLinesBetweenSessions(t *testing.T) {
	pr, pw := io.Pipe()
	d := NewLineDevice(pr)

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := d.Start(ctx)
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	cancel()
	recv(t, ch)

	if _, err := pw.Write([]byte("stale\n")); err != nil {
		t.Fatal(err)
	}
	// An empty write returns once the reader asks for more input, i.e.
	// after the stale line was handled.
	if _, err := pw.Write(nil); err != nil {
		t.Fatal(err)
	}

	ch, err = d.Start(context.Background())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	go pw.Write([]byte("fresh\n"))
	c, _ := recv(t, ch)
	if c.Text != "fresh" {
		t.Fatalf("got %q, want fresh", c.Text)
	}
}

func TestLineDeviceEOF(t *testing.T) {
	pr, pw := io.Pipe()
	d := NewLineDevice(pr)

	ch, err := d.Start(context.Background())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	pw.Close()

	c, ok := recv(t, ch)
	if !ok || c.Err != io.EOF {
		t.Fatalf("got %+v ok=%v, want io.EOF", c, ok)
	}
	if _, ok := recv(t, ch); ok {
		t.Fatal("channel should be closed after EOF")
	}
	if _, err := d.Start(context.Background()); err != ErrClosed {
		t.Fatalf("Start after EOF: got %v, want ErrClosed", err)
	}
}

func TestLineDeviceSkipsOverlongLine(t *testing.T) {
	pr, pw := io.Pipe()
	d := NewLineDevice(pr)

	ch, err := d.Start(context.Background())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	go pw.Write([]byte(strings.Repeat("x", MaxLine+10) + "\n"))
	c, ok := recv(t, ch)
	if !ok || !errors.Is(c.Err, ErrLineTooLong) {
		t.Fatalf("got err=%v ok=%v, want ErrLineTooLong", c.Err, ok)
	}

	go pw.Write([]byte("next\r\n"))
	c, ok = recv(t, ch)
	if !ok || c.Err != nil || c.Text != "next" {
		t.Fatalf("got %+v ok=%v, want next", c, ok)
	}
}

func TestReadLineAtLimit(t *testing.T) {
	line := strings.Repeat("y", MaxLine)
	br := bufio.NewReaderSize(strings.NewReader(line+"\nlast"), 16)

	got, err := readLine(br)
	if err != nil || got != line {
		t.Fatalf("got len=%d err=%v, want the full line", len(got), err)
	}
	got, err = readLine(br)
	if err != nil || got != "last" {
		t.Fatalf("got %q err=%v, want last", got, err)
	}
	if _, err := readLine(br); err != io.EOF {
		t.Fatalf("got %v, want io.EOF", err)
	}
}
