//go:build linux
// +build linux

package echo

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fzft/hevent/he"
	"github.com/fzft/hevent/log"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Stats are owned by the loop goroutine. Read them from a handler or after
// Run has returned.
type Stats struct {
	Accepted  uint64
	Closed    uint64
	BytesIn   uint64
	BytesOut  uint64
	Datagrams uint64
	Crons     uint64
	Connects  uint64
}

// node is what servers and clients share: the loop, the eventfd used to
// stop it from outside, and the live sessions.
type node struct {
	cfg      Config
	el       *he.EventLoop
	notifier *notifier
	sessions map[int]*session
	stats    Stats
	buf      []byte

	onCron func()
	onFree func(*session)
}

func (n *node) setup(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	n.cfg = cfg
	n.sessions = make(map[int]*session)
	n.buf = make([]byte, readBufferSize)

	el, err := he.New(cfg.SetSize, cfg.CronMs, n.cron, nil)
	if err != nil {
		return err
	}
	n.el = el
	n.notifier, err = newNotifier(el)
	if err != nil {
		el.Close()
		return err
	}
	return nil
}

func (n *node) cron(el *he.EventLoop, clientData interface{}) int {
	n.stats.Crons++
	log.Logger.Info("server_cron",
		zap.Int64("ms", time.Now().UnixMilli()),
		zap.Int("sessions", len(n.sessions)),
		zap.Uint64("bytes_in", n.stats.BytesIn),
		zap.Uint64("bytes_out", n.stats.BytesOut))
	if n.onCron != nil {
		n.onCron()
	}
	return 1
}

// watchSignals turns SIGINT, SIGTERM and SIGQUIT into a loop stop.
func (n *node) watchSignals() (stop func()) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	done := make(chan struct{})
	go func() {
		select {
		case sig := <-sigCh:
			log.Logger.Info("signal received", zap.Stringer("signal", sig))
			n.notifier.sendSignal(SignalStop)
		case <-done:
		}
	}()
	return func() {
		signal.Stop(sigCh)
		close(done)
	}
}

// Run drives the loop until Shutdown, Stop or a termination signal.
func (n *node) Run() {
	stop := n.watchSignals()
	defer stop()
	n.el.Main()
}

// Shutdown asks a running loop to stop. It is safe to call from any
// goroutine.
func (n *node) Shutdown() error {
	return n.notifier.sendSignal(SignalStop)
}

// Stop must be called from the loop goroutine, e.g. from a callback.
func (n *node) Stop() {
	n.el.Stop()
}

// Stats must not be called while Run is executing on another goroutine.
func (n *node) Stats() Stats {
	return n.stats
}

func (n *node) close(extra ...func() error) error {
	var err error
	for _, s := range n.sessions {
		n.free(s)
	}
	for _, f := range extra {
		err = multierr.Append(err, f())
	}
	err = multierr.Append(err, n.notifier.close(n.el))
	return multierr.Append(err, n.el.Close())
}
