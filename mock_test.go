package eole

import (
	"encoding/binary"
	"io"
	"sync"
	"time"
)

// chunk is one scripted delivery of a fakeTransport.
type chunk struct {
	data  []byte
	delay time.Duration // simulated arrival time relative to the read call
	err   error
}

// fakeTransport replays scripted chunks. A chunk whose delay exceeds the
// read timeout is left in place and the read times out, like a quiet line.
type fakeTransport struct {
	mu       sync.Mutex
	chunks   []chunk
	written  [][]byte
	writeErr error
	closed   bool
	onWrite  func(frame []byte) []chunk
}

func (f *fakeTransport) Write(p []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}
	if f.writeErr != nil {
		return f.writeErr
	}
	f.written = append(f.written, append([]byte(nil), p...))
	if f.onWrite != nil {
		f.chunks = append(f.chunks, f.onWrite(p)...)
	}
	return nil
}

func (f *fakeTransport) ReadAvailable(timeout time.Duration) ([]byte, error) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil, ErrClosed
	}
	if len(f.chunks) == 0 {
		f.mu.Unlock()
		return nil, ErrTimeout
	}
	c := f.chunks[0]
	if c.delay > timeout {
		f.chunks[0].delay -= timeout
		f.mu.Unlock()
		return nil, ErrTimeout
	}
	f.chunks = f.chunks[1:]
	f.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	return c.data, nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTransport) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.closed
}

func (f *fakeTransport) queue(chunks ...chunk) {
	f.mu.Lock()
	f.chunks = append(f.chunks, chunks...)
	f.mu.Unlock()
}

func (f *fakeTransport) writes() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.written...)
}

// respond returns a scripted reply that answers every request with frame.
func respond(frame []byte) func([]byte) []chunk {
	return func([]byte) []chunk {
		return []chunk{{data: frame}}
	}
}

// simulatedDevice answers requests on conn like the sensor does: reads return
// the stored register, writes store the value and echo it. Registers listed in
// reject answer NOT-OK. Responses go out in two fragments.
type simulatedDevice struct {
	mu     sync.Mutex
	regs   map[Address]uint32
	reject map[Address]bool
	served int
}

func newSimulatedDevice() *simulatedDevice {
	return &simulatedDevice{
		regs: map[Address]uint32{
			AddrIntegrationTime:   0x0C,
			AddrIntegrationPeriod: 0x0160AE,
			AddrGPOL:              0x09F6,
			AddrClockControl:      0x0121,
			AddrOutputConfig:      0x40,
		},
		reject: map[Address]bool{},
	}
}

func (d *simulatedDevice) serve(conn io.ReadWriter) {
	for {
		head := make([]byte, 2)
		if _, err := io.ReadFull(conn, head); err != nil {
			return
		}
		size := ReadRequestSize
		if head[1] == CmdWrite {
			size = WriteRequestSize
		}
		rest := make([]byte, size-2)
		if _, err := io.ReadFull(conn, rest); err != nil {
			return
		}
		frame := append(head, rest...)
		addr := Address(binary.BigEndian.Uint32(frame[2:6]))

		d.mu.Lock()
		d.served++
		status, value := StatusOK, d.regs[addr]
		if d.reject[addr] {
			status = StatusNotOK
		} else if head[1] == CmdWrite {
			value = binary.BigEndian.Uint32(frame[6:10])
			d.regs[addr] = value
		}
		d.mu.Unlock()

		resp := EncodeResponse(status, value)
		if _, err := conn.Write(resp[:3]); err != nil {
			return
		}
		time.Sleep(2 * time.Millisecond)
		if _, err := conn.Write(resp[3:]); err != nil {
			return
		}
	}
}

func (d *simulatedDevice) value(addr Address) uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.regs[addr]
}
