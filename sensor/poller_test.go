package sensor

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	eole "github.com/hootrhino/goeole"
)

func TestPollerPollOnce(t *testing.T) {
	fc := newFakeClient()
	fc.notOK[eole.AddrOutputConfig] = true
	p := NewPoller(fc, time.Second, IntegrationTime, GPOL, OutputConfigRegister)

	readings, err := p.PollOnce(context.Background())
	if len(readings) != 3 {
		t.Fatalf("got %d readings, want 3", len(readings))
	}
	if !errors.Is(err, ErrReadRejected) {
		t.Errorf("error = %v, want ErrReadRejected", err)
	}
	if readings[0].Value != 12 || readings[1].Text != "2550 mV" || readings[2].OK() {
		t.Errorf("readings = %+v", readings)
	}
}

func TestPollerLinkLost(t *testing.T) {
	fc := newFakeClient()
	p := NewPoller(fc, time.Second, IntegrationTime)
	lost := 0
	p.SetOnLinkLost(func() { lost++ })

	fc.setLinkDown(true)
	for i := 0; i < 3; i++ {
		if _, err := p.PollOnce(context.Background()); !errors.Is(err, ErrLinkLost) {
			t.Fatalf("poll %d: error = %v, want ErrLinkLost", i, err)
		}
	}
	if lost != 1 {
		t.Errorf("OnLinkLost called %d times, want 1", lost)
	}
	if fc.reads != 0 {
		t.Errorf("%d reads attempted on a lost link", fc.reads)
	}

	fc.setLinkDown(false)
	if _, err := p.PollOnce(context.Background()); err != nil {
		t.Fatalf("poll after recovery: %v", err)
	}
	fc.setLinkDown(true)
	p.PollOnce(context.Background())
	if lost != 2 {
		t.Errorf("OnLinkLost called %d times after a second loss, want 2", lost)
	}
}

func TestPollerStartStop(t *testing.T) {
	fc := newFakeClient()
	fc.readErr[eole.AddrGPOL] = eole.ErrTimeout
	p := NewPoller(fc, 10*time.Millisecond, IntegrationTime, GPOL)

	var mu sync.Mutex
	var batches [][]Reading
	var errs []error
	got := make(chan struct{}, 1)
	p.SetOnData(func(r []Reading) {
		mu.Lock()
		batches = append(batches, r)
		mu.Unlock()
		select {
		case got <- struct{}{}:
		default:
		}
	})
	p.SetOnError(func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	})

	p.Start()
	select {
	case <-got:
	case <-time.After(2 * time.Second):
		t.Fatal("no readings delivered")
	}
	p.Stop()
	p.Stop() // second Stop is a no-op

	mu.Lock()
	defer mu.Unlock()
	if len(batches) == 0 || len(batches[0]) != 2 {
		t.Fatalf("batches = %+v", batches)
	}
	if len(errs) == 0 || !errors.Is(errs[0], eole.ErrTimeout) {
		t.Errorf("errors = %v, want ErrTimeout", errs)
	}
}

func TestPollerDetectsDroppedLink(t *testing.T) {
	host, dev := net.Pipe()
	go serveRegisters(dev, map[eole.Address]uint32{eole.AddrIntegrationTime: 12})

	st := eole.NewStreamTransport(host, "pipe")
	defer st.Close()
	client := eole.NewClient(st, eole.Config{
		ResponseTimeout: 500 * time.Millisecond,
		QuietPeriod:     10 * time.Millisecond,
	})
	p := NewPoller(client, time.Second, IntegrationTime)
	lost := 0
	p.SetOnLinkLost(func() { lost++ })

	readings, err := p.PollOnce(context.Background())
	if err != nil || readings[0].Value != 12 {
		t.Fatalf("PollOnce = %+v, %v", readings, err)
	}

	dev.Close()
	if _, err := p.PollOnce(context.Background()); err == nil {
		t.Fatal("PollOnce on an unplugged link succeeded")
	}
	if _, err := p.PollOnce(context.Background()); !errors.Is(err, ErrLinkLost) {
		t.Fatalf("error = %v, want ErrLinkLost", err)
	}
	if lost != 1 {
		t.Errorf("OnLinkLost called %d times, want 1", lost)
	}
}
