package round

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"

	"tagarena.dev/internal/sim/mathx"
)

type hashWriter interface {
	Write(p []byte) (n int, err error)
}

func digestWriteU64(h hashWriter, tmp *[8]byte, v uint64) {
	binary.LittleEndian.PutUint64(tmp[:], v)
	h.Write(tmp[:])
}

func digestWriteF64(h hashWriter, tmp *[8]byte, v float64) {
	digestWriteU64(h, tmp, math.Float64bits(v))
}

func digestWriteVec(h hashWriter, tmp *[8]byte, v mathx.Vec2) {
	digestWriteF64(h, tmp, v.X)
	digestWriteF64(h, tmp, v.Y)
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// stateDigest hashes everything that influences future ticks.
func (r *Round) stateDigest(nowTick uint64) string {
	h := sha256.New()
	var tmp [8]byte

	digestWriteU64(h, &tmp, nowTick)
	digestWriteU64(h, &tmp, uint64(r.active))
	digestWriteF64(h, &tmp, r.acc)

	for _, a := range r.actors {
		s := a.State()
		digestWriteU64(h, &tmp, uint64(s.Slot))
		h.Write([]byte{boolByte(s.Active), boolByte(s.IsCatcher), boolByte(s.IsDropping), boolByte(s.Body.Grounded), byte(s.JumpState), byte(s.ControlManipulation), boolByte(s.JumpHeld)})
		digestWriteVec(h, &tmp, s.Body.Position)
		digestWriteVec(h, &tmp, s.Body.Velocity)
		digestWriteVec(h, &tmp, s.Body.TargetVelocity)
		digestWriteVec(h, &tmp, s.Body.GroundNormal)
		digestWriteVec(h, &tmp, s.Size)
		digestWriteF64(h, &tmp, s.Move)
		digestWriteU64(h, &tmp, uint64(s.JumpStepCount))
		for _, t := range []float64{
			s.StunnedUntil, s.CatchableAfter, s.JumpableAfter, s.DroppableAfter,
			s.TeleportableAfter, s.SlipperyUntil, s.ControlManipulationUntil, s.CatcherLastOn,
		} {
			digestWriteF64(h, &tmp, t)
		}
	}

	for _, t := range r.tokens.Tokens {
		digestWriteU64(h, &tmp, uint64(t.Index))
		h.Write([]byte{boolByte(t.Collected), byte(t.Effect)})
		digestWriteVec(h, &tmp, t.Position)
		digestWriteF64(h, &tmp, t.RespawnAt)
	}

	if st, err := r.rng.State(); err == nil {
		h.Write(st)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Digest is the state digest at the current tick.
func (r *Round) Digest() string { return r.stateDigest(r.tick) }
