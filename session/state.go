package session

import "fmt"

// Tristate is a boolean that may not be known yet.
type Tristate int

const (
	Unknown Tristate = iota
	True
	False
)

func FromBool(b bool) Tristate {
	if b {
		return True
	}
	return False
}

func (t Tristate) String() string {
	switch t {
	case Unknown:
		return "unknown"
	case True:
		return "true"
	case False:
		return "false"
	}
	return fmt.Sprintf("Tristate(%d)", int(t))
}

// State is a snapshot of the session as the panel renders it.
type State struct {
	AccessToken  string
	LoggedIn     Tristate
	IsAdmin      Tristate // meaningful only while LoggedIn is True
	IsLoggingOut bool
	Error        string // user-facing login error, empty when none
}
