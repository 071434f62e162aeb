package domain

// ExitKind enumerates how a payment session ended.
type ExitKind string

const (
	ExitSuccess        ExitKind = "success"
	ExitDeclined       ExitKind = "declined"
	ExitUserCancelled  ExitKind = "user_cancelled"
	ExitTimedOut       ExitKind = "timed_out"
	ExitUserClosedPage ExitKind = "user_closed_explicitly"
)

// ExitClassification is the result of inspecting a hosted-page navigation
// target or explicit user action. Exactly one is produced per session.
type ExitClassification struct {
	Kind        ExitKind `json:"kind"`
	DeclineCode string   `json:"decline_code,omitempty"`
}

// Terminal screen identifiers the orchestrator navigates to.
type Screen string

const (
	ScreenSuccess Screen = "success"
	ScreenFailure Screen = "failure"
	ScreenTimeout Screen = "timeout"
)

// Outcome describes the terminal transition of a session: which screen the
// client should show and the parameters that screen receives.
type Outcome struct {
	Screen      Screen `json:"screen"`
	Status      string `json:"status"`
	OrderIDs    string `json:"order_ids,omitempty"`
	DeclineCode string `json:"decline_code,omitempty"`
}
