package main

import "time"

// MatchPhase represents the lifecycle of a match
type MatchPhase string

const (
	PhaseCountdown MatchPhase = "countdown"
	PhaseRunning   MatchPhase = "running"
	PhaseGoalPause MatchPhase = "goalPause"
	PhaseEnded     MatchPhase = "ended"
)

// GameConfig holds playfield geometry and the speed model for one match.
// Speeds are playfield units per physics step. BallSpeed and PaddleSpeed are
// the live values; the engine ramps them up over time and resets them to
// the base values after every goal.
type GameConfig struct {
	Width        float64 `json:"width" yaml:"width"`
	Height       float64 `json:"height" yaml:"height"`
	PaddleWidth  float64 `json:"paddleWidth" yaml:"paddle_width"`
	PaddleHeight float64 `json:"paddleHeight" yaml:"paddle_height"`
	PaddleOffset float64 `json:"paddleOffset" yaml:"paddle_offset"`
	BallRadius   float64 `json:"ballRadius" yaml:"ball_radius"`

	BaseBallSpeed float64 `json:"baseBallSpeed" yaml:"base_ball_speed"`
	BallSpeed     float64 `json:"ballSpeed" yaml:"-"`
	MaxBallSpeed  float64 `json:"maxBallSpeed" yaml:"max_ball_speed"`

	BasePaddleSpeed float64 `json:"basePaddleSpeed" yaml:"base_paddle_speed"`
	PaddleSpeed     float64 `json:"paddleSpeed" yaml:"-"`
	MaxPaddleSpeed  float64 `json:"maxPaddleSpeed" yaml:"max_paddle_speed"`

	BallSpeedIncrement   float64       `json:"ballSpeedIncrement" yaml:"ball_speed_increment"`
	PaddleSpeedIncrement float64       `json:"paddleSpeedIncrement" yaml:"paddle_speed_increment"`
	SpeedUpInterval      time.Duration `json:"speedUpInterval" yaml:"speed_up_interval"`

	ScoreToWin        int           `json:"scoreToWin" yaml:"score_to_win"`
	CountdownDuration time.Duration `json:"countdownDuration" yaml:"countdown"`
	GoalPauseDuration time.Duration `json:"goalPauseDuration" yaml:"goal_pause"`
}

// DefaultGameConfig returns default config for the given mode
func DefaultGameConfig(mode Mode) GameConfig {
	cfg := GameConfig{
		Width:        800,
		Height:       600,
		PaddleWidth:  10,
		PaddleHeight: 100,
		PaddleOffset: 20,
		BallRadius:   8,

		BaseBallSpeed: 5,
		MaxBallSpeed:  14,

		BasePaddleSpeed: 6,
		MaxPaddleSpeed:  12,

		BallSpeedIncrement:   0.5,
		PaddleSpeedIncrement: 0.25,
		SpeedUpInterval:      10 * time.Second,

		ScoreToWin:        5,
		CountdownDuration: 3 * time.Second,
		GoalPauseDuration: time.Second,
	}
	switch mode {
	case ModeTwoVTwo:
		cfg.PaddleHeight = 80
		cfg.ScoreToWin = 7
	case ModeTournamentLeg:
		cfg.ScoreToWin = 3
	}
	cfg.resetSpeeds()
	return cfg
}

// forMode fills mode-dependent fields left zero in a configured override.
func (c GameConfig) forMode(mode Mode) GameConfig {
	def := DefaultGameConfig(mode)
	if c.Width <= 0 {
		return def
	}
	if c.ScoreToWin <= 0 {
		c.ScoreToWin = def.ScoreToWin
	}
	c.resetSpeeds()
	return c
}

func (c *GameConfig) resetSpeeds() {
	c.BallSpeed = c.BaseBallSpeed
	c.PaddleSpeed = c.BasePaddleSpeed
}

// escalate bumps both live speeds by one increment, each capped at its max.
func (c *GameConfig) escalate() {
	c.BallSpeed += c.BallSpeedIncrement
	if c.BallSpeed > c.MaxBallSpeed {
		c.BallSpeed = c.MaxBallSpeed
	}
	c.PaddleSpeed += c.PaddleSpeedIncrement
	if c.MaxPaddleSpeed > 0 && c.PaddleSpeed > c.MaxPaddleSpeed {
		c.PaddleSpeed = c.MaxPaddleSpeed
	}
}

// Score is the running tally per side
type Score struct {
	Left  int `json:"left" msgpack:"left"`
	Right int `json:"right" msgpack:"right"`
}

func (s *Score) add(side Side) {
	switch side {
	case SideLeft:
		s.Left++
	case SideRight:
		s.Right++
	}
}

func (s Score) of(side Side) int {
	if side == SideLeft {
		return s.Left
	}
	return s.Right
}

// MatchOutcome is emitted once per match when it reaches PhaseEnded.
type MatchOutcome struct {
	RoomID       string        `json:"roomId"`
	Mode         Mode          `json:"mode"`
	Winner       Side          `json:"winner"`
	Score        Score         `json:"score"`
	Duration     time.Duration `json:"duration"`
	EndedAt      time.Time     `json:"endedAt"`
	LeftPlayers  []string      `json:"leftPlayers,omitempty"`
	RightPlayers []string      `json:"rightPlayers,omitempty"`
	Aborted      bool          `json:"aborted,omitempty"`
	TournamentID string        `json:"tournamentId,omitempty"`
}
