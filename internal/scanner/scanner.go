// Package scanner models capture devices: cameras decoding QR codes or
// keyboard-wedge scanners typing the payload followed by Enter.
package scanner

import (
	"bufio"
	"context"
	"errors"
	"io"
	"sync"
)

// MaxLine bounds one capture. Longer lines are skipped and reported as
// ErrLineTooLong; the device stays open.
const MaxLine = 64 * 1024

var (
	ErrClosed      = errors.New("scanner: device closed")
	ErrLineTooLong = errors.New("scanner: line too long")
)

// Capture is one decoded code or a capture error.
type Capture struct {
	Text string
	Err  error
}

// Device produces captures until the context passed to Start is done.
// Start may be called again after a session ends.
type Device interface {
	Start(ctx context.Context) (<-chan Capture, error)
}

// LineDevice reads newline-terminated codes from r. Lines that arrive
// while no session is active are discarded, so a cancelled session never
// leaks a capture into the next one.
type LineDevice struct {
	r    io.Reader
	once sync.Once

	mu     sync.Mutex
	active chan Capture
	closed bool
}

func NewLineDevice(r io.Reader) *LineDevice {
	return &LineDevice{r: r}
}

func (d *LineDevice) Start(ctx context.Context) (<-chan Capture, error) {
	d.once.Do(func() { go d.read() })

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil, ErrClosed
	}
	ch := make(chan Capture, 1)
	d.active = ch
	d.mu.Unlock()

	go func() {
		<-ctx.Done()
		d.mu.Lock()
		if d.active == ch {
			d.active = nil
			close(ch)
		}
		d.mu.Unlock()
	}()

	return ch, nil
}

func (d *LineDevice) read() {
	br := bufio.NewReaderSize(d.r, 4096)
	for {
		line, err := readLine(br)
		switch {
		case err == nil:
			d.deliver(Capture{Text: line}, false)
		case errors.Is(err, ErrLineTooLong):
			d.deliver(Capture{Err: err}, false)
		default:
			d.deliver(Capture{Err: err}, true)
			return
		}
	}
}

// readLine returns the next line without its terminator. An overlong line
// is consumed through its newline before ErrLineTooLong is returned.
func readLine(br *bufio.Reader) (string, error) {
	var buf []byte
	tooLong := false
	for {
		chunk, isPrefix, err := br.ReadLine()
		if err != nil {
			return "", err
		}
		if !tooLong {
			if len(buf)+len(chunk) > MaxLine {
				tooLong = true
				buf = nil
			} else {
				buf = append(buf, chunk...)
			}
		}
		if !isPrefix {
			break
		}
	}
	if tooLong {
		return "", ErrLineTooLong
	}
	return string(buf), nil
}

func (d *LineDevice) deliver(c Capture, last bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.active != nil {
		select {
		case d.active <- c:
		default:
			// session already holds an unread capture
		}
	}
	if last {
		d.closed = true
		if d.active != nil {
			close(d.active)
			d.active = nil
		}
	}
}
