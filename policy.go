package main

// InputPolicy drives a paddle slot without a human behind it (solo mode
// opponents, bots in tests). It is consulted once per physics step, before
// paddle movement, with a read-only view of the current state, and returns
// keys in the same shape a playerInput message carries. The engine merges
// them exactly like human input.
type InputPolicy interface {
	Keys(slot int, view PolicyView) map[string]bool
}

// PolicyView is the slice of engine state an InputPolicy may observe.
type PolicyView struct {
	Ball    BallState
	Paddles []PaddleState
	Phase   MatchPhase
	Config  GameConfig
}

// InputPolicyFunc adapts a plain function to InputPolicy
type InputPolicyFunc func(slot int, view PolicyView) map[string]bool

// Keys implements InputPolicy
func (f InputPolicyFunc) Keys(slot int, view PolicyView) map[string]bool {
	return f(slot, view)
}

// FollowBall steers its paddle toward the ball's height whenever the ball is
// heading its way, within deadZone of the paddle centre.
func FollowBall(deadZone float64) InputPolicy {
	return InputPolicyFunc(func(slot int, view PolicyView) map[string]bool {
		keys := map[string]bool{"up": false, "down": false}
		if view.Phase != PhaseRunning || slot >= len(view.Paddles) {
			return keys
		}
		p := view.Paddles[slot]
		incoming := (p.Side == SideLeft && view.Ball.DX < 0) || (p.Side == SideRight && view.Ball.DX > 0)
		if !incoming {
			return keys
		}
		centre := p.Y + p.H/2
		switch {
		case view.Ball.Y < centre-deadZone:
			keys["up"] = true
		case view.Ball.Y > centre+deadZone:
			keys["down"] = true
		}
		return keys
	})
}
