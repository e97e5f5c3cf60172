package world

import (
	"context"
	"time"
)

// Run drives the world loop until ctx is cancelled or Stop is called.
// Joins, leaves and voxel dumps are handled as they arrive; inputs are
// buffered and applied at the next tick boundary.
func (w *World) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(w.cfg.TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	if w.sched != nil {
		defer w.sched.stop()
	}

	dt := 1.0 / float64(w.cfg.TickRateHz)
	var pendingInputs []InputEnvelope

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.stop:
			return nil
		case req := <-w.viewerJoin:
			w.handleViewerJoin(req)
		case id := <-w.viewerLeave:
			w.handleViewerLeave(id)
		case req := <-w.voxelsReq:
			w.handleVoxelsReq(req)
		case env := <-w.inputs:
			pendingInputs = append(pendingInputs, env)
		case <-ticker.C:
			w.stepInternal(pendingInputs, dt)
			pendingInputs = pendingInputs[:0]
		}
	}
}

func (w *World) Stop() { close(w.stop) }

// StepOnce advances the world by a single tick using the same ordering
// semantics as the server loop. It is primarily intended for
// deterministic tests and replays.
func (w *World) StepOnce(inputs []InputEnvelope) (tick uint64, digest string) {
	tick = w.tick.Load()
	w.stepInternal(inputs, 1.0/float64(w.cfg.TickRateHz))
	return tick, w.stateDigest(tick)
}

func trySend(ch chan []byte, b []byte) bool {
	select {
	case ch <- b:
		return true
	default:
		return false
	}
}

func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}
