package models

import "time"

// Vote represents a single participant's position on a consensus topic.
type Vote string

const (
	// VoteApprove counts toward the approval rate.
	VoteApprove Vote = "approve"
	// VoteReject counts against the approval rate.
	VoteReject Vote = "reject"
	// VoteAbstain counts as a response but neither approves nor rejects.
	VoteAbstain Vote = "abstain"
)

// Valid returns true if the vote is a known value.
func (v Vote) Valid() bool {
	switch v {
	case VoteApprove, VoteReject, VoteAbstain:
		return true
	default:
		return false
	}
}

// Ballot records one participant's vote and optional feedback.
type Ballot struct {
	// AgentID is the voting participant.
	AgentID string `json:"agent_id"`
	// Vote is the participant's position.
	Vote Vote `json:"vote"`
	// Feedback is free-text commentary accompanying the vote.
	Feedback string `json:"feedback,omitempty"`
}

// ConsensusOutcome represents the decision state of a consensus topic.
type ConsensusOutcome string

const (
	// ConsensusApproved means the participation floor and quorum
	// threshold were both met.
	ConsensusApproved ConsensusOutcome = "approved"
	// ConsensusRejected means participation was sufficient but the
	// approval rate fell below the quorum threshold.
	ConsensusRejected ConsensusOutcome = "rejected"
	// ConsensusPending means too few participants responded for the
	// outcome to be decisive.
	ConsensusPending ConsensusOutcome = "pending"
)

// ConsensusTopic is the record of one vote round among a set of agents.
type ConsensusTopic struct {
	// Topic is the question put to the participants.
	Topic string `json:"topic"`
	// Participants lists every agent invited to vote.
	Participants []string `json:"participants"`
	// Ballots holds the responses received before the timeout.
	Ballots []Ballot `json:"ballots"`
	// Quorum is the minimum approval fraction among responders.
	Quorum float64 `json:"quorum"`
	// MinParticipation is the minimum fraction of invited participants
	// that must respond for the outcome to be decisive.
	MinParticipation float64 `json:"min_participation"`
	// Outcome is the computed decision.
	Outcome ConsensusOutcome `json:"outcome"`
	// ApprovalRate is approvals divided by responses.
	ApprovalRate float64 `json:"approval_rate"`
	// ParticipationRate is responses divided by invited participants.
	ParticipationRate float64 `json:"participation_rate"`
	// DecidedAt is when the outcome was computed.
	DecidedAt time.Time `json:"decided_at"`
}

// Responded returns the number of ballots received.
func (t *ConsensusTopic) Responded() int {
	return len(t.Ballots)
}

// Approvals returns the number of approve ballots.
func (t *ConsensusTopic) Approvals() int {
	n := 0
	for _, b := range t.Ballots {
		if b.Vote == VoteApprove {
			n++
		}
	}
	return n
}
