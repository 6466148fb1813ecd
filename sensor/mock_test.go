package sensor

import (
	"context"
	"fmt"
	"sync"

	eole "github.com/hootrhino/goeole"
)

type regWrite struct {
	addr  eole.Address
	value uint32
}

// fakeClient is an in-memory register map standing in for *eole.Client.
type fakeClient struct {
	mu       sync.Mutex
	regs     map[eole.Address]uint32
	notOK    map[eole.Address]bool
	readErr  map[eole.Address]error
	writes   []regWrite
	reads    int
	linkDown bool
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		regs: map[eole.Address]uint32{
			eole.AddrIntegrationTime:   12,
			eole.AddrIntegrationPeriod: 0x0160AE,
			eole.AddrGPOL:              2550,
			eole.AddrClockControl:      0x0100,
			eole.AddrOutputConfig:      0x0000,
		},
		notOK:   map[eole.Address]bool{},
		readErr: map[eole.Address]error{},
	}
}

func (f *fakeClient) ReadRegister(ctx context.Context, addr eole.Address) (eole.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	if err := ctx.Err(); err != nil {
		return eole.Response{}, err
	}
	if err := f.readErr[addr]; err != nil {
		return eole.Response{}, err
	}
	if f.notOK[addr] {
		return eole.Response{Status: eole.StatusNotOK}, nil
	}
	return eole.Response{Status: eole.StatusOK, Value: f.regs[addr]}, nil
}

func (f *fakeClient) WriteRegister(ctx context.Context, addr eole.Address, value uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.notOK[addr] {
		return fmt.Errorf("%w: status NOT-OK", eole.ErrDeviceRejected)
	}
	f.writes = append(f.writes, regWrite{addr, value})
	f.regs[addr] = value
	return nil
}

func (f *fakeClient) CheckLink() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.linkDown
}

func (f *fakeClient) setLinkDown(down bool) {
	f.mu.Lock()
	f.linkDown = down
	f.mu.Unlock()
}

func (f *fakeClient) written() []regWrite {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]regWrite(nil), f.writes...)
}
