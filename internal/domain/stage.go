package domain

import "strings"

// Stage is one phase of the fundraising pipeline.
type Stage string

const (
	StageInitialContact   Stage = "Initial Contact"
	StageIntroSent        Stage = "Intro Sent"
	StageFollowUpSent     Stage = "Follow-up Sent"
	StageProposalSent     Stage = "Proposal Sent"
	StageMeetingScheduled Stage = "Meeting Scheduled"
	StageNegotiation      Stage = "Negotiation"
	StageClosedWon        Stage = "Closed Won"
	StageClosedLost       Stage = "Closed Lost"
	StageThankYouSent     Stage = "Thank You Sent"
)

// stageOrder is the expected forward progression. Transitions are not
// restricted to it, but moves against it are recorded as out-of-order.
var stageOrder = []Stage{
	StageInitialContact,
	StageIntroSent,
	StageFollowUpSent,
	StageProposalSent,
	StageMeetingScheduled,
	StageNegotiation,
	StageClosedWon,
	StageClosedLost,
	StageThankYouSent,
}

// Stages returns the full stage set in pipeline order.
func Stages() []Stage {
	out := make([]Stage, len(stageOrder))
	copy(out, stageOrder)
	return out
}

// ParseStage resolves user input to a member of the stage set,
// case-insensitively. Returns ErrInvalidStage for anything else.
func ParseStage(s string) (Stage, error) {
	trimmed := strings.TrimSpace(s)
	for _, stage := range stageOrder {
		if strings.EqualFold(trimmed, string(stage)) {
			return stage, nil
		}
	}
	return "", ErrInvalidStage
}

// Valid reports whether the stage is a member of the stage set.
func (s Stage) Valid() bool {
	for _, stage := range stageOrder {
		if s == stage {
			return true
		}
	}
	return false
}

// Closing reports whether the stage ends the deal.
func (s Stage) Closing() bool {
	return s == StageClosedWon || s == StageClosedLost
}

func (s Stage) ordinal() int {
	for i, stage := range stageOrder {
		if s == stage {
			return i
		}
	}
	return -1
}

// ForwardOf reports whether moving from prev to s follows the expected
// progression. Thank You Sent counts as forward only out of Closed Won.
func (s Stage) ForwardOf(prev Stage) bool {
	if s == StageThankYouSent {
		return prev == StageClosedWon
	}
	return s.ordinal() > prev.ordinal()
}
