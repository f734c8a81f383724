// Package domain defines the persistence models for applications, answers,
// review actions, and their supporting records. These types are mapped with
// GORM and form the core data layer of the gatekeeper.
package domain

// Status is the lifecycle state of an Application.
//
// The intake side only ever performs draft -> submitted. Review transitions
// move submitted <-> needs_info and into the terminal states approved,
// rejected, and kicked.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusSubmitted Status = "submitted"
	StatusNeedsInfo Status = "needs_info"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusKicked    Status = "kicked"
)

// Terminal reports whether no further decision may be taken from s.
func (s Status) Terminal() bool {
	switch s {
	case StatusApproved, StatusRejected, StatusKicked:
		return true
	}
	return false
}

// Active reports whether s represents an unresolved, already-submitted
// application. At most one active application may exist per (guild, user).
func (s Status) Active() bool {
	return s == StatusSubmitted || s == StatusNeedsInfo
}

// DecisionAction identifies one moderator decision or auxiliary action.
// The set is closed; the decision service matches it exhaustively.
type DecisionAction string

const (
	ActionApprove  DecisionAction = "approve"
	ActionReject   DecisionAction = "reject"
	ActionNeedInfo DecisionAction = "need_info"
	ActionKick     DecisionAction = "kick"

	// ActionAvatarViewSrc is an audit-only entry recorded when a reviewer
	// requests the reverse image search link for a flagged avatar.
	ActionAvatarViewSrc DecisionAction = "avatar_viewsrc"
)

// TargetStatus returns the Application status an action resolves to.
// It is only meaningful for the four decision actions.
func (a DecisionAction) TargetStatus() Status {
	switch a {
	case ActionApprove:
		return StatusApproved
	case ActionReject:
		return StatusRejected
	case ActionNeedInfo:
		return StatusNeedsInfo
	case ActionKick:
		return StatusKicked
	}
	return ""
}
