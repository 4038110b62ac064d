package plan

import (
	"fmt"
	"math"
)

type Code int

const (
	Valid Code = iota
	// CurveTooSharp: the curve turns more than Params.MaxTurn between two polyline segments.
	CurveTooSharp
	// CurveTooShallow: the rail leaves an intersection too close to a rail already there.
	CurveTooShallow
	RailTooShort
	// ExtendIntoSelf: both ends are on the same existing rail.
	ExtendIntoSelf
	// ExtendTooCloseToIntersection: an end on an existing rail is too close to that rail's ends.
	ExtendTooCloseToIntersection
	// TrainOnStartRail: the rail the start would split has a train on it.
	TrainOnStartRail
	// TrainOnEndRail: the rail the end would split has a train on it.
	TrainOnEndRail
)

var codeNames = map[Code]string{
	Valid:                        "Valid",
	CurveTooSharp:                "CurveTooSharp",
	CurveTooShallow:              "CurveTooShallow",
	RailTooShort:                 "RailTooShort",
	ExtendIntoSelf:               "ExtendIntoSelf",
	ExtendTooCloseToIntersection: "ExtendTooCloseToIntersection",
	TrainOnStartRail:             "TrainOnStartRail",
	TrainOnEndRail:               "TrainOnEndRail",
}

func (c Code) String() string {
	if s, ok := codeNames[c]; ok {
		return s
	}
	return fmt.Sprintf("Code(%d)", int(c))
}

// Status is the result of validating the proposed rail.
type Status struct {
	Code Code
	// Value is the offending angle (radians) or length, depending on Code.
	Value float64
}

func (s Status) Valid() bool { return s.Code == Valid }

func (s Status) String() string {
	switch s.Code {
	case CurveTooSharp, CurveTooShallow:
		return fmt.Sprintf("%s(%.1f°)", s.Code, s.Value*180/math.Pi)
	case RailTooShort, ExtendTooCloseToIntersection:
		return fmt.Sprintf("%s(%.2f)", s.Code, s.Value)
	default:
		return s.Code.String()
	}
}

// CurveMode decides the end control's forward while adjusting.
type CurveMode int

const (
	// Curve mirrors the start forward across the line to the cursor, giving a
	// symmetric arc.
	Curve CurveMode = iota
	// Straight keeps the end forward parallel to the start forward.
	Straight
	// Chase points the end forward straight back at the start.
	Chase
)

func (m CurveMode) Next() CurveMode {
	return (m + 1) % 3
}

func (m CurveMode) String() string {
	switch m {
	case Curve:
		return "curve"
	case Straight:
		return "straight"
	case Chase:
		return "chase"
	default:
		return fmt.Sprintf("CurveMode(%d)", int(m))
	}
}

type Phase int

const (
	// PhaseIdle has no start yet; the start follows the cursor.
	PhaseIdle Phase = iota
	// PhaseInitialPlacement has a free start; the end follows the cursor and sets the start's orientation.
	PhaseInitialPlacement
	// PhaseAdjusting has an oriented start; the end follows the cursor and is validated.
	PhaseAdjusting
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseInitialPlacement:
		return "initial-placement"
	case PhaseAdjusting:
		return "adjusting"
	default:
		return fmt.Sprintf("Phase(%d)", int(p))
	}
}

type Outcome int

const (
	None Outcome = iota
	// Started: a start was placed.
	Started
	// Oriented: the start's orientation was fixed.
	Oriented
	Committed
	// SteppedBack: cancelled while adjusting a free start, back to initial placement.
	SteppedBack
	// Cancelled: the build session ended.
	Cancelled
)

func (o Outcome) String() string {
	switch o {
	case None:
		return "none"
	case Started:
		return "started"
	case Oriented:
		return "oriented"
	case Committed:
		return "committed"
	case SteppedBack:
		return "stepped-back"
	case Cancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}
