package main

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	TickRate     = 60 // physics steps per simulated second
	StepDuration = time.Second / TickRate

	// MaxFrameDelta caps how much wall time one tick may feed into the
	// accumulator; anything beyond it is dropped.
	MaxFrameDelta = 250 * time.Millisecond
	// RebaseThreshold marks a scheduling gap as a stall. The gap is then
	// treated as exactly one step instead of being replayed.
	RebaseThreshold = time.Second

	MaxConsecutiveFaults = 3

	maxBounceAngle = math.Pi / 4
	maxServeAngle  = math.Pi / 6
)

// BallState is the ball as broadcast to clients
type BallState struct {
	X       float64 `json:"x" msgpack:"x"`
	Y       float64 `json:"y" msgpack:"y"`
	DX      float64 `json:"dx" msgpack:"dx"`
	DY      float64 `json:"dy" msgpack:"dy"`
	Bounces int     `json:"bounces" msgpack:"b"`
}

// PaddleState is one paddle slot as broadcast to clients
type PaddleState struct {
	Slot int     `json:"slot" msgpack:"s"`
	Side Side    `json:"side" msgpack:"sd"`
	X    float64 `json:"x" msgpack:"x"`
	Y    float64 `json:"y" msgpack:"y"`
	W    float64 `json:"w" msgpack:"w"`
	H    float64 `json:"h" msgpack:"h"`
}

// Snapshot is a deep copy of a Game's observable state.
type Snapshot struct {
	RoomID    string
	Mode      Mode
	Ball      BallState
	Paddles   []PaddleState
	Phase     MatchPhase
	Score     Score
	Countdown int
	Winner    Side
	Tick      uint64
	Alpha     float64
	Config    GameConfig
	Timestamp time.Time
}

// GameHooks receive engine output. Both run after the engine lock has been
// released, on the tick's goroutine.
type GameHooks struct {
	OnTick func(Snapshot)
	OnEnd  func(MatchOutcome)
}

// Game is the authoritative simulation of one room. All access from outside
// goes through its methods; the tick callback is the only writer of physics
// state.
type Game struct {
	mu     sync.Mutex
	roomID string
	topo   Topology
	cfg    GameConfig
	clock  Clock
	logger *slog.Logger
	hooks  GameHooks
	rng    *rand.Rand

	ball     BallState
	paddles  []PaddleState
	keys     []KeyState
	policies map[int]InputPolicy

	score        Score
	phase        MatchPhase
	phaseLeft    time.Duration
	sinceSpeedUp time.Duration
	serveTo      Side
	winner       Side
	steps        uint64

	ticker   Timer
	started  time.Time
	lastTick time.Time
	acc      time.Duration
	faults   int
	outcome  *MatchOutcome
	emitted  bool
	span     trace.Span
}

// NewGame creates a Game for roomID laid out per mode. It does not start
// ticking until Start is called.
func NewGame(roomID string, mode Mode, cfg GameConfig, clock Clock, logger *slog.Logger, hooks GameHooks) *Game {
	topo := NewTopology(mode, cfg)
	seed := uint64(clock.Now().UnixNano())
	g := &Game{
		roomID:   roomID,
		topo:     topo,
		cfg:      cfg,
		clock:    clock,
		logger:   logger.With("room_id", roomID),
		hooks:    hooks,
		rng:      rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		paddles:  make([]PaddleState, len(topo.Slots)),
		keys:     make([]KeyState, len(topo.Slots)),
		policies: make(map[int]InputPolicy),
		phase:    PhaseCountdown,
		serveTo:  SideNone,
		winner:   SideNone,
	}
	for i, s := range topo.Slots {
		g.keys[i] = KeyState{}
		g.paddles[i] = PaddleState{Slot: i, Side: s.Side, X: s.X, W: cfg.PaddleWidth, H: cfg.PaddleHeight}
	}
	g.phaseLeft = cfg.CountdownDuration
	g.resetPositions()
	return g
}

// Start schedules the tick loop. Calling Start on a running or ended game is
// a no-op.
func (g *Game) Start() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.ticker != nil || g.phase == PhaseEnded {
		return
	}
	now := g.clock.Now()
	g.started = now
	g.lastTick = now
	_, g.span = tracer.Start(context.Background(), "pong.match", trace.WithAttributes(
		attribute.String("room_id", g.roomID),
		attribute.String("mode", string(g.topo.Mode)),
	))
	g.ticker = g.clock.Every(StepDuration, g.tick)
	g.logger.Info("match started", "mode", g.topo.Mode, "slots", len(g.topo.Slots))
}

// Stop cancels the tick loop without ending the match
func (g *Game) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.stopLocked()
}

func (g *Game) stopLocked() {
	if g.ticker != nil {
		g.ticker.Stop()
		g.ticker = nil
	}
	if g.span != nil && g.phase != PhaseEnded {
		g.span.SetAttributes(attribute.Bool("stopped", true))
		g.span.End()
		g.span = nil
	}
}

// Running reports whether the tick loop is scheduled
func (g *Game) Running() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ticker != nil
}

// MergeInput folds a player's key report into the slot's held-key set.
func (g *Game) MergeInput(slot int, keys map[string]bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if slot < 0 || slot >= len(g.keys) {
		return
	}
	g.keys[slot].Merge(keys)
}

// SetPolicy attaches a non-human input policy to slot; nil detaches it.
func (g *Game) SetPolicy(slot int, p InputPolicy) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if slot < 0 || slot >= len(g.keys) {
		return
	}
	if p == nil {
		delete(g.policies, slot)
		return
	}
	g.policies[slot] = p
}

// Topology returns the paddle layout
func (g *Game) Topology() Topology {
	return g.topo
}

// Phase returns the current match phase
func (g *Game) Phase() MatchPhase {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.phase
}

// Snapshot returns a copy of the current state
func (g *Game) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.snapshotLocked()
}

func (g *Game) snapshotLocked() Snapshot {
	paddles := make([]PaddleState, len(g.paddles))
	copy(paddles, g.paddles)
	countdown := 0
	if g.phase == PhaseCountdown {
		countdown = int(math.Ceil(g.phaseLeft.Seconds()))
	}
	return Snapshot{
		RoomID:    g.roomID,
		Mode:      g.topo.Mode,
		Ball:      g.ball,
		Paddles:   paddles,
		Phase:     g.phase,
		Score:     g.score,
		Countdown: countdown,
		Winner:    g.winner,
		Tick:      g.steps,
		Alpha:     float64(g.acc) / float64(StepDuration),
		Config:    g.cfg,
		Timestamp: g.clock.Now(),
	}
}

// tick is the scheduled callback. It drains the accumulator, then hands one
// snapshot (and, once, the outcome) to the hooks. Hooks are recovered
// separately; OnEnd runs even after OnTick panics.
func (g *Game) tick() {
	snap, outcome := g.advance()
	if g.hooks.OnTick != nil {
		g.runHook("tick", func() { g.hooks.OnTick(snap) })
	}
	if outcome != nil && g.hooks.OnEnd != nil {
		g.runHook("end", func() { g.hooks.OnEnd(*outcome) })
	}
}

func (g *Game) runHook(name string, f func()) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("tick hook panicked", "hook", name, "error", fmt.Errorf("%w: %v", ErrSimulationFault, r))
		}
	}()
	f()
}

func (g *Game) advance() (Snapshot, *MatchOutcome) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.clock.Now()
	elapsed := now.Sub(g.lastTick)
	g.lastTick = now
	switch {
	case elapsed > RebaseThreshold:
		g.logger.Warn("tick stalled, rebasing", "gap", elapsed)
		elapsed = StepDuration
	case elapsed > MaxFrameDelta:
		elapsed = MaxFrameDelta
	case elapsed < 0:
		elapsed = 0
	}
	g.acc += elapsed

	faulted := false
	for g.acc >= StepDuration && g.phase != PhaseEnded {
		if err := g.safeStep(); err != nil {
			faulted = true
			g.faults++
			g.acc = 0
			g.logger.Error("simulation step failed", "error", err, "consecutive", g.faults)
			if g.faults >= MaxConsecutiveFaults {
				g.finishLocked(SideNone, true)
			}
			break
		}
		g.acc -= StepDuration
	}
	if !faulted {
		g.faults = 0
	}

	snap := g.snapshotLocked()
	if g.outcome != nil && !g.emitted {
		g.emitted = true
		out := *g.outcome
		return snap, &out
	}
	return snap, nil
}

func (g *Game) safeStep() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrSimulationFault, r)
		}
	}()
	g.step()
	return nil
}

// step advances the simulation by exactly one StepDuration.
func (g *Game) step() {
	g.steps++
	g.applyPolicies()

	moving := g.phase == PhaseRunning
	for i := range g.paddles {
		spec := g.topo.Slots[i]
		if moving {
			g.paddles[i].Y += g.keys[i].Direction() * g.cfg.PaddleSpeed
		}
		g.paddles[i].Y = Clamp(g.paddles[i].Y, spec.MinY, spec.MaxY)
	}

	switch g.phase {
	case PhaseCountdown:
		g.phaseLeft -= StepDuration
		if g.phaseLeft <= 0 {
			g.serve()
			g.phase = PhaseRunning
		}
		return
	case PhaseGoalPause:
		g.phaseLeft -= StepDuration
		if g.phaseLeft <= 0 {
			g.phase = PhaseCountdown
			g.phaseLeft = g.cfg.CountdownDuration
		}
		return
	case PhaseEnded:
		return
	}

	g.sinceSpeedUp += StepDuration
	if g.cfg.SpeedUpInterval > 0 && g.sinceSpeedUp >= g.cfg.SpeedUpInterval {
		g.sinceSpeedUp -= g.cfg.SpeedUpInterval
		g.cfg.escalate()
		g.ball.DX, g.ball.DY = Normalize(g.ball.DX, g.ball.DY, g.cfg.BallSpeed)
	}

	prev := Point{g.ball.X, g.ball.Y}
	next := Point{prev.X + g.ball.DX, prev.Y + g.ball.DY}

	if hit, ok := DetectPaddleHit(prev, next, g.paddleBoxes()); ok {
		g.bounceOffPaddle(hit)
		return
	}

	if next.X < 0 {
		g.goal(SideRight)
		return
	}
	if next.X > g.cfg.Width {
		g.goal(SideLeft)
		return
	}

	g.ball.X, g.ball.Y = next.X, next.Y
	g.bounceOffWalls()
}

func (g *Game) applyPolicies() {
	if len(g.policies) == 0 {
		return
	}
	view := PolicyView{
		Ball:    g.ball,
		Paddles: append([]PaddleState(nil), g.paddles...),
		Phase:   g.phase,
		Config:  g.cfg,
	}
	for slot, p := range g.policies {
		g.keys[slot].Merge(p.Keys(slot, view))
	}
}

// paddleBoxes returns hit-boxes for the paddles on the side the ball is
// heading toward, each widened by the ball radius on its leading face.
func (g *Game) paddleBoxes() []PaddleBox {
	side := SideRight
	if g.ball.DX < 0 {
		side = SideLeft
	}
	slots := g.topo.SlotsFor(side)
	boxes := make([]PaddleBox, 0, len(slots))
	for _, i := range slots {
		p := g.paddles[i]
		r := Rect{X: p.X, Y: p.Y, W: p.W + g.cfg.BallRadius, H: p.H}
		if side == SideRight {
			r.X -= g.cfg.BallRadius
		}
		boxes = append(boxes, PaddleBox{Slot: i, Rect: r})
	}
	return boxes
}

// bounceOffPaddle snaps the ball to the hit point and sends it back out at
// an angle proportional to how far from the paddle centre it struck.
func (g *Game) bounceOffPaddle(hit Hit) {
	p := g.paddles[hit.Slot]
	g.ball.X, g.ball.Y = hit.Point.X, hit.Point.Y

	half := p.H / 2
	offset := Clamp((hit.Point.Y-(p.Y+half))/half, -1, 1)
	angle := offset * maxBounceAngle
	dir := 1.0
	if p.Side == SideRight {
		dir = -1
	}
	g.ball.DX, g.ball.DY = Normalize(dir*math.Cos(angle), math.Sin(angle), g.cfg.BallSpeed)
	g.ball.Bounces++
}

func (g *Game) bounceOffWalls() {
	r := g.cfg.BallRadius
	switch {
	case g.ball.Y-r < 0:
		g.ball.Y = r
		g.ball.DY = math.Abs(g.ball.DY)
	case g.ball.Y+r > g.cfg.Height:
		g.ball.Y = g.cfg.Height - r
		g.ball.DY = -math.Abs(g.ball.DY)
	default:
		return
	}
	g.ball.Bounces++
	g.ball.DX, g.ball.DY = Normalize(g.ball.DX, g.ball.DY, g.cfg.BallSpeed)
}

func (g *Game) goal(scorer Side) {
	g.ball.DX, g.ball.DY = 0, 0
	g.score.add(scorer)
	g.logger.Info("goal", "scorer", scorer, "left", g.score.Left, "right", g.score.Right)
	if g.span != nil {
		g.span.AddEvent("goal", trace.WithAttributes(attribute.String("scorer", string(scorer))))
	}

	if g.score.of(scorer) >= g.cfg.ScoreToWin {
		g.finishLocked(scorer, false)
		return
	}

	g.serveTo = scorer.Opposite()
	g.resetPositions()
	g.cfg.resetSpeeds()
	g.sinceSpeedUp = 0
	g.phase = PhaseGoalPause
	g.phaseLeft = g.cfg.GoalPauseDuration
}

// finishLocked moves the game to PhaseEnded and records the outcome. It is
// idempotent; only the first call produces an outcome.
func (g *Game) finishLocked(winner Side, aborted bool) {
	if g.outcome != nil {
		return
	}
	g.phase = PhaseEnded
	g.winner = winner
	g.ball.DX, g.ball.DY = 0, 0
	now := g.clock.Now()
	g.outcome = &MatchOutcome{
		RoomID:   g.roomID,
		Mode:     g.topo.Mode,
		Winner:   winner,
		Score:    g.score,
		Duration: now.Sub(g.started),
		EndedAt:  now,
		Aborted:  aborted,
	}
	if g.span != nil {
		g.span.SetAttributes(
			attribute.String("winner", string(winner)),
			attribute.Int("score.left", g.score.Left),
			attribute.Int("score.right", g.score.Right),
			attribute.Bool("aborted", aborted),
		)
		g.span.End()
		g.span = nil
	}
	if g.ticker != nil {
		g.ticker.Stop()
		g.ticker = nil
	}
	g.logger.Info("match ended", "winner", winner, "left", g.score.Left, "right", g.score.Right, "aborted", aborted)
}

func (g *Game) resetPositions() {
	g.ball = BallState{X: g.cfg.Width / 2, Y: g.cfg.Height / 2}
	for i, s := range g.topo.Slots {
		g.paddles[i].Y = s.HomeY()
	}
}

func (g *Game) serve() {
	dir := 1.0
	switch g.serveTo {
	case SideLeft:
		dir = -1
	case SideNone:
		if g.rng.IntN(2) == 0 {
			dir = -1
		}
	}
	angle := (g.rng.Float64()*2 - 1) * maxServeAngle
	g.ball.X, g.ball.Y = g.cfg.Width/2, g.cfg.Height/2
	g.ball.DX, g.ball.DY = Normalize(dir*math.Cos(angle), math.Sin(angle), g.cfg.BallSpeed)
}
