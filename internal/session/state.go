package session

import "fmt"

// State is a step in token acquisition.
type State int

// Acquisition states. SilentRefreshOK, InteractiveAuthOK and
// InteractiveAuthFailed are terminal.
const (
	NoCache State = iota
	AccountFound
	SilentRefreshOK
	SilentRefreshFailed
	InteractiveAuthOK
	InteractiveAuthFailed
)

func (s State) String() string {
	switch s {
	case NoCache:
		return "no_cache"
	case AccountFound:
		return "account_found"
	case SilentRefreshOK:
		return "silent_refresh_ok"
	case SilentRefreshFailed:
		return "silent_refresh_failed"
	case InteractiveAuthOK:
		return "interactive_auth_ok"
	case InteractiveAuthFailed:
		return "interactive_auth_failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}
