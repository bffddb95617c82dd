package conversation

import "fmt"

// Policy decides what a command does to a conversation that is still open.
type Policy string

const (
	// OnCommandCancel abandons the open conversation and runs the command.
	OnCommandCancel Policy = "cancel"
	// OnCommandReject refuses the command until the conversation finishes.
	OnCommandReject Policy = "reject"
)

// Valid reports whether p is a known policy.
func (p Policy) Valid() bool {
	return p == OnCommandCancel || p == OnCommandReject
}

// ParsePolicy reads a policy name. The empty string is OnCommandCancel.
func ParsePolicy(s string) (Policy, error) {
	if s == "" {
		return OnCommandCancel, nil
	}
	p := Policy(s)
	if !p.Valid() {
		return "", fmt.Errorf("unknown conversation policy %q (want %q or %q)", s, OnCommandCancel, OnCommandReject)
	}
	return p, nil
}
