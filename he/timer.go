package he

import (
	"math"
	"time"

	"github.com/fzft/hevent/log"
	"go.uber.org/zap"
)

// Clock supplies wall-clock time. Only the wall reading is used, so a clock
// that steps backwards is observable.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// updateInfo is the single periodic callback of a loop. Times are unix
// milliseconds.
type updateInfo struct {
	when       int64
	updateMs   int64
	lastTime   int64
	proc       UpdateProc
	clientData interface{}
}

func (el *EventLoop) nowMs() int64 {
	// Round(0) drops the monotonic reading so regressions are visible.
	return el.clock.Now().Round(0).UnixMilli()
}

// observe records a clock sample and pulls the deadline into the past when
// the clock went backwards since the previous sample.
func (el *EventLoop) observe(now int64) {
	ui := &el.ui
	if now < ui.lastTime {
		log.Logger.Debug("clock moved backwards, firing update early",
			zap.Int64("last", ui.lastTime), zap.Int64("now", now))
		ui.when = 0
	}
	ui.lastTime = now
}

// waitBudget is how long the poll may block before the update is due.
func (el *EventLoop) waitBudget() int {
	now := el.nowMs()
	el.observe(now)
	ms := el.ui.when - now
	if ms < 0 {
		ms = 0
	} else if ms > math.MaxInt32 {
		ms = math.MaxInt32
	}
	return int(ms)
}

// processUpdate runs the periodic callback when due and re-arms it from the
// current time, so a long stall produces one call rather than a backlog.
func (el *EventLoop) processUpdate() int {
	now := el.nowMs()
	el.observe(now)
	ui := &el.ui
	if now < ui.when {
		return 0
	}
	ui.when = now + ui.updateMs
	if ui.proc == nil {
		return 0
	}
	return ui.proc(el, ui.clientData)
}
