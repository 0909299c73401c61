package epd

import (
	"time"
)

// errorHandler frames commands and data over a Transport and keeps the first
// error. Once err is set every further call is a no-op.
type errorHandler struct {
	t Transport

	busyPoll  time.Duration
	busyLimit int

	err error
}

func (eh *errorHandler) setPin(p Pin, high bool) {
	if eh.err != nil {
		return
	}
	eh.err = eh.t.SetPin(p, high)
}

func (eh *errorHandler) sleep(d time.Duration) {
	if eh.err != nil {
		return
	}
	eh.t.Sleep(d)
}

// burst sends b with DC at the given level and CS held low for the duration
// of the transfer only. CS is released even when the write fails.
func (eh *errorHandler) burst(dc bool, b []byte) {
	if eh.err != nil {
		return
	}

	eh.setPin(PinDC, dc)
	eh.setPin(PinCS, false)
	if eh.err != nil {
		return
	}
	if err := eh.t.Write(b); err != nil {
		_ = eh.t.SetPin(PinCS, true)
		eh.err = err
		return
	}
	eh.setPin(PinCS, true)
}

func (eh *errorHandler) sendCommand(cmd byte) {
	eh.burst(false, []byte{cmd})
}

func (eh *errorHandler) sendData(data []byte) {
	if len(data) == 0 {
		return
	}
	eh.burst(true, data)
}

// waitUntilIdle settles for one poll interval, then polls BUSY until it reads
// low. It gives up with ErrBusyTimeout after busyLimit polls.
func (eh *errorHandler) waitUntilIdle() {
	if eh.err != nil {
		return
	}

	eh.t.Sleep(eh.busyPoll)
	for polls := 0; ; polls++ {
		busy, err := eh.t.GetPin(PinBusy)
		if err != nil {
			eh.err = err
			return
		}
		if !busy {
			return
		}
		if polls >= eh.busyLimit {
			eh.err = ErrBusyTimeout
			return
		}
		eh.t.Sleep(eh.busyPoll)
	}
}

var _ controller = (*errorHandler)(nil)
