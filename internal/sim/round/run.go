package round

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"tagarena.dev/internal/protocol"
	"tagarena.dev/internal/sim/actor"
)

// InputSource drives one slot from inside the loop goroutine. Bots implement it.
type InputSource interface {
	Input(r *Round, a *actor.Actor) actor.Input
}

// SlotInput is the latest axes for a slot; it holds until replaced.
type SlotInput struct {
	Slot  int
	Input actor.Input
}

// SpectatorJoin registers a read-only session receiving encoded STATE frames.
type SpectatorJoin struct {
	SessionID  string
	Out        chan []byte
	EveryTicks int
	Resp       chan SpectatorWelcome
}

type SpectatorWelcome struct {
	Round protocol.RoundParams
	Level protocol.LevelView
}

type EventCursorItem struct {
	Cursor uint64
	Event  protocol.Event
}

type controlReq struct {
	Record ControlRecord
	Resp   chan controlResp
}

type controlResp struct {
	Tick uint64
	Err  error
}

type eventsReq struct {
	SinceCursor uint64
	Limit       int
	Resp        chan eventsResp
}

type eventsResp struct {
	Items      []EventCursorItem
	NextCursor uint64
}

type spectator struct {
	out   chan []byte
	every uint64
}

// Stats are loop counters readable from any goroutine.
type Stats struct {
	Tick     atomic.Uint64
	Catches  atomic.Uint64
	Stuns    atomic.Uint64
	Effects  atomic.Uint64
	Dropped  atomic.Uint64
	Watchers atomic.Int64
}

const eventRingSize = 1024

// Runner owns a Round and steps it on a wall-clock ticker. Every Round method is
// called from the Run goroutine only; other goroutines talk to it through channels.
type Runner struct {
	r       *Round
	sources map[int]InputSource

	inputs    chan SlotInput
	control   chan controlReq
	join      chan SpectatorJoin
	leave     chan string
	eventsReq chan eventsReq
	stop      chan struct{}
	stopOnce  sync.Once
	done      chan struct{}

	held       []actor.Input
	spectators map[string]*spectator
	ring       []EventCursorItem
	nextCursor uint64

	stats Stats
}

func NewRunner(r *Round) *Runner {
	return &Runner{
		r:          r,
		sources:    map[int]InputSource{},
		inputs:     make(chan SlotInput, 256),
		control:    make(chan controlReq, 8),
		join:       make(chan SpectatorJoin, 8),
		leave:      make(chan string, 8),
		eventsReq:  make(chan eventsReq, 8),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
		held:       make([]actor.Input, len(r.Actors())),
		spectators: map[string]*spectator{},
		nextCursor: 1,
	}
}

// SetInputSource must be called before Run.
func (rn *Runner) SetInputSource(slot int, src InputSource) {
	if src == nil {
		delete(rn.sources, slot)
		return
	}
	rn.sources[slot] = src
}

func (rn *Runner) Stats() *Stats { return &rn.stats }

// ErrStopped is returned by requests made after Run has returned.
var ErrStopped = errors.New("round: runner stopped")

func (rn *Runner) Stop() { rn.stopOnce.Do(func() { close(rn.stop) }) }

// Done is closed once Run returns.
func (rn *Runner) Done() <-chan struct{} { return rn.done }

// SubmitInput never blocks; when the queue is full the input is dropped.
func (rn *Runner) SubmitInput(slot int, in actor.Input) bool {
	select {
	case rn.inputs <- SlotInput{Slot: slot, Input: in}:
		return true
	default:
		return false
	}
}

func (rn *Runner) Restart(ctx context.Context) (uint64, error) {
	return rn.sendControl(ctx, ControlRecord{Kind: "restart"})
}

func (rn *Runner) SetActivePlayers(ctx context.Context, n int) (uint64, error) {
	return rn.sendControl(ctx, ControlRecord{Kind: "players", Players: n})
}

func (rn *Runner) sendControl(ctx context.Context, rec ControlRecord) (uint64, error) {
	req := controlReq{Record: rec, Resp: make(chan controlResp, 1)}
	select {
	case rn.control <- req:
	case <-rn.done:
		return 0, ErrStopped
	case <-ctx.Done():
		return 0, ctx.Err()
	}
	select {
	case resp := <-req.Resp:
		return resp.Tick, resp.Err
	case <-rn.done:
		return 0, ErrStopped
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// JoinSpectator blocks until the loop has registered the session.
func (rn *Runner) JoinSpectator(ctx context.Context, req SpectatorJoin) (SpectatorWelcome, error) {
	if req.SessionID == "" || req.Out == nil {
		return SpectatorWelcome{}, errors.New("spectator: session id and out channel required")
	}
	req.Resp = make(chan SpectatorWelcome, 1)
	select {
	case rn.join <- req:
	case <-rn.done:
		return SpectatorWelcome{}, ErrStopped
	case <-ctx.Done():
		return SpectatorWelcome{}, ctx.Err()
	}
	select {
	case w := <-req.Resp:
		return w, nil
	case <-rn.done:
		return SpectatorWelcome{}, ErrStopped
	case <-ctx.Done():
		return SpectatorWelcome{}, ctx.Err()
	}
}

func (rn *Runner) LeaveSpectator(id string) {
	select {
	case rn.leave <- id:
	case <-rn.done:
	}
}

// EventsAfter pages through the recent-event ring. Cursors start at 1.
func (rn *Runner) EventsAfter(ctx context.Context, sinceCursor uint64, limit int) ([]EventCursorItem, uint64, error) {
	req := eventsReq{SinceCursor: sinceCursor, Limit: limit, Resp: make(chan eventsResp, 1)}
	select {
	case rn.eventsReq <- req:
	case <-rn.done:
		return nil, sinceCursor, ErrStopped
	case <-ctx.Done():
		return nil, sinceCursor, ctx.Err()
	}
	select {
	case resp := <-req.Resp:
		return resp.Items, resp.NextCursor, nil
	case <-rn.done:
		return nil, sinceCursor, ErrStopped
	case <-ctx.Done():
		return nil, sinceCursor, ctx.Err()
	}
}

func (rn *Runner) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(rn.r.Tuning().TickRateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer close(rn.done)
	defer rn.closeSpectators()

	var pendingControl []controlReq

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-rn.stop:
			return nil
		case in := <-rn.inputs:
			if in.Slot >= 0 && in.Slot < len(rn.held) {
				rn.held[in.Slot] = in.Input
			}
		case req := <-rn.control:
			pendingControl = append(pendingControl, req)
		case req := <-rn.join:
			rn.handleJoin(req)
		case id := <-rn.leave:
			rn.handleLeave(id)
		case req := <-rn.eventsReq:
			rn.handleEventsReq(req)
		case <-ticker.C:
			rn.handleControl(pendingControl)
			pendingControl = pendingControl[:0]
			rn.StepOnce()
		}
	}
}

// StepOnce gathers inputs, steps the round and fans the result out.
func (rn *Runner) StepOnce() TickResult {
	inputs := make([]actor.Input, len(rn.held))
	copy(inputs, rn.held)
	for slot, src := range rn.sources {
		if a := rn.r.Actor(slot); a != nil && a.Active {
			inputs[slot] = src.Input(rn.r, a)
		}
	}
	res := rn.r.Step(inputs)
	rn.stats.Tick.Store(rn.r.CurrentTick())
	for _, e := range res.Events {
		switch e.Type {
		case EventCaught:
			rn.stats.Catches.Add(1)
		case EventStunned:
			rn.stats.Stuns.Add(1)
		case EventEffectApplied:
			rn.stats.Effects.Add(1)
		}
		rn.pushEvent(EventView(e))
	}
	rn.broadcast(res)
	return res
}

func (rn *Runner) handleControl(reqs []controlReq) {
	for _, req := range reqs {
		err := rn.r.ApplyControl(req.Record)
		if err != nil {
			log.Printf("round control %s: %v", req.Record.Kind, err)
		} else {
			// Held human inputs belong to the previous round.
			for i := range rn.held {
				rn.held[i] = actor.Input{}
			}
		}
		select {
		case req.Resp <- controlResp{Tick: rn.r.CurrentTick(), Err: err}:
		default:
		}
	}
}

func (rn *Runner) handleJoin(req SpectatorJoin) {
	if old := rn.spectators[req.SessionID]; old != nil {
		close(old.out)
		rn.stats.Watchers.Add(-1)
	}
	every := uint64(1)
	if req.EveryTicks > 1 {
		every = uint64(req.EveryTicks)
	}
	rn.spectators[req.SessionID] = &spectator{out: req.Out, every: every}
	rn.stats.Watchers.Add(1)
	select {
	case req.Resp <- SpectatorWelcome{Round: rn.r.Params(), Level: rn.r.LevelView()}:
	default:
	}
}

func (rn *Runner) handleLeave(id string) {
	s := rn.spectators[id]
	if s == nil {
		return
	}
	close(s.out)
	delete(rn.spectators, id)
	rn.stats.Watchers.Add(-1)
}

func (rn *Runner) closeSpectators() {
	for id, s := range rn.spectators {
		close(s.out)
		delete(rn.spectators, id)
	}
	rn.stats.Watchers.Store(0)
}

func (rn *Runner) broadcast(res TickResult) {
	if len(rn.spectators) == 0 {
		return
	}
	var frame []byte
	for _, s := range rn.spectators {
		if res.Tick%s.every != 0 {
			continue
		}
		if frame == nil {
			b, err := json.Marshal(rn.r.BuildState(res))
			if err != nil {
				log.Printf("state encode: %v", err)
				return
			}
			frame = b
		}
		select {
		case s.out <- frame:
		default:
			// Slow spectator; it will catch up on the next frame.
			rn.stats.Dropped.Add(1)
		}
	}
}

func (rn *Runner) pushEvent(e protocol.Event) {
	rn.ring = append(rn.ring, EventCursorItem{Cursor: rn.nextCursor, Event: e})
	rn.nextCursor++
	if len(rn.ring) > eventRingSize {
		rn.ring = rn.ring[len(rn.ring)-eventRingSize:]
	}
}

func (rn *Runner) handleEventsReq(req eventsReq) {
	items, next := eventsAfter(rn.ring, req.SinceCursor, req.Limit)
	select {
	case req.Resp <- eventsResp{Items: items, NextCursor: next}:
	default:
	}
}

func eventsAfter(ring []EventCursorItem, since uint64, limit int) ([]EventCursorItem, uint64) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	out := []EventCursorItem{}
	next := since
	for _, it := range ring {
		if it.Cursor <= since {
			continue
		}
		if len(out) >= limit {
			break
		}
		out = append(out, it)
		next = it.Cursor
	}
	return out, next
}
