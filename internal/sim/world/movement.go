package world

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// moveIntent is the observer's orientation and move direction for the
// next integration step. Axes are direction only; speed is fixed.
type moveIntent struct {
	Yaw     float64
	Pitch   float64
	Forward float64
	Strafe  float64
	Up      float64
}

func clampAxis(v float64) float64 {
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}

func (w *World) applyInput(env InputEnvelope) {
	m := env.Msg
	w.intent = moveIntent{
		Yaw:     m.Yaw,
		Pitch:   m.Pitch,
		Forward: clampAxis(m.Axes.Forward),
		Strafe:  clampAxis(m.Axes.Strafe),
		Up:      clampAxis(m.Axes.Up),
	}
}

// integrateMovement advances the observer by speed*dt along the intent
// direction and rejects the whole move if the candidate point sits in
// a solid voxel. No sliding, no partial resolution.
func (w *World) integrateMovement(dt float64) {
	in := w.intent
	w.observer.Yaw = in.Yaw
	w.observer.Pitch = in.Pitch

	forward := mgl64.Vec3{
		-math.Sin(in.Yaw) * math.Cos(in.Pitch),
		math.Sin(in.Pitch),
		-math.Cos(in.Yaw) * math.Cos(in.Pitch),
	}
	right := mgl64.Vec3{math.Cos(in.Yaw), 0, -math.Sin(in.Yaw)}
	up := mgl64.Vec3{0, 1, 0}

	dir := forward.Mul(in.Forward).Add(right.Mul(in.Strafe)).Add(up.Mul(in.Up))
	if dir.LenSqr() == 0 {
		return
	}
	dir = dir.Normalize()

	candidate := w.observer.Pos.Add(dir.Mul(w.cfg.MoveSpeed * dt))
	if w.IsSolid(candidate) {
		return
	}
	w.observer.Pos = candidate
}
