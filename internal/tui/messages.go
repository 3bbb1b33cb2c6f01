// Package tui holds the bubbletea models used by bootcampctl: a menu tree
// whose items run commands, and a progress view for import jobs.
package tui

// InfoMsg is shown in the status line without ending the action.
type InfoMsg string

// DoneMsg reports that an action finished.
type DoneMsg string

// ErrMsg reports that an action failed.
type ErrMsg struct{ Err error }

func (e ErrMsg) Error() string { return e.Err.Error() }
