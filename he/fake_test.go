package he

import (
	"time"
)

type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2023, 7, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

type pollerOp struct {
	op   string
	fd   int
	mask Mask
}

// fakePoller hands out scripted readiness. When nothing is scripted a Poll
// call "sleeps" by moving the clock forward by its timeout.
type fakePoller struct {
	clock      *fakeClock
	watched    map[int]Mask
	ops        []pollerOp
	pending    [][]FiredEvent
	timeouts   []int
	watchErr   error
	unwatchErr error
	pollErr    error
	closed     int
}

func newFakePoller(clock *fakeClock) *fakePoller {
	return &fakePoller{clock: clock, watched: make(map[int]Mask)}
}

func (p *fakePoller) factory() PollerFactory {
	return func(int) (Poller, error) { return p, nil }
}

// ready scripts the result of one future Poll call.
func (p *fakePoller) ready(events ...FiredEvent) {
	p.pending = append(p.pending, events)
}

func (p *fakePoller) Watch(fd int, old, mask Mask) error {
	if p.watchErr != nil {
		return p.watchErr
	}
	op := "mod"
	if old == None {
		op = "add"
	}
	p.ops = append(p.ops, pollerOp{op: op, fd: fd, mask: mask})
	p.watched[fd] = mask
	return nil
}

func (p *fakePoller) Unwatch(fd int, remaining Mask) error {
	op := "mod"
	if remaining == None {
		op = "del"
		delete(p.watched, fd)
	} else {
		p.watched[fd] = remaining
	}
	p.ops = append(p.ops, pollerOp{op: op, fd: fd, mask: remaining})
	return p.unwatchErr
}

func (p *fakePoller) Poll(fired []FiredEvent, timeoutMs int) (int, error) {
	p.timeouts = append(p.timeouts, timeoutMs)
	if p.pollErr != nil {
		return 0, p.pollErr
	}
	if len(p.pending) == 0 {
		if p.clock != nil {
			p.clock.advance(time.Duration(timeoutMs) * time.Millisecond)
		}
		return 0, nil
	}
	events := p.pending[0]
	p.pending = p.pending[1:]
	return copy(fired, events), nil
}

func (p *fakePoller) Close() error {
	p.closed++
	return nil
}
