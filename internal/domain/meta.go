package domain

// ActionMeta records the outcome of the side effects executed after one
// decision. All fields are optional; which ones are populated depends on the
// action kind:
//
//   - approve: RoleApplied, DMDelivered
//   - reject:  DMDelivered
//   - need_info: ThreadID + ThreadURL, or ThreadError on creation failure
//   - kick: DMDelivered, KickSucceeded, Error
//   - avatar_viewsrc: ViewedAt
//
// Pointer booleans distinguish "attempted and failed" (false) from
// "not attempted" (nil); the card renderer flags only explicit failures.
type ActionMeta struct {
	DMDelivered   *bool  `json:"dmDelivered,omitempty"`
	RoleApplied   *bool  `json:"roleApplied,omitempty"`
	ThreadID      string `json:"threadId,omitempty"`
	ThreadURL     string `json:"threadUrl,omitempty"`
	ThreadError   string `json:"threadError,omitempty"`
	KickSucceeded *bool  `json:"kickSucceeded,omitempty"`
	Error         string `json:"error,omitempty"`
	ViewedAt      string `json:"viewedAt,omitempty"`
}

// IsZero reports whether no outcome has been recorded yet.
func (m ActionMeta) IsZero() bool {
	return m == ActionMeta{}
}

// Bool is a convenience for building the optional boolean fields.
func Bool(v bool) *bool { return &v }
