package pool

import "strings"

// Flags tune how a pooled instance behaves. They are set when the instance is created.
type Flags uint8

const (
	// FlagHoldParent keeps the instance from being reused under a different parent.
	FlagHoldParent Flags = 1 << iota
	// FlagManualReturn stops deactivation from returning the instance to the pool.
	// The caller returns it with Instance.ReturnToPool or Deactivate.
	FlagManualReturn
	// FlagResetOnReturn restores the local transform captured at creation on return.
	FlagResetOnReturn

	// FlagNone is the zero flag set.
	FlagNone Flags = 0
)

// Has reports whether every bit in o is set.
func (f Flags) Has(o Flags) bool { return f&o == o }

func (f Flags) String() string {
	if f == FlagNone {
		return "none"
	}
	var parts []string
	if f.Has(FlagHoldParent) {
		parts = append(parts, "hold-parent")
	}
	if f.Has(FlagManualReturn) {
		parts = append(parts, "manual-return")
	}
	if f.Has(FlagResetOnReturn) {
		parts = append(parts, "reset-on-return")
	}
	return strings.Join(parts, "|")
}

// ParseFlags parses the names String produces, separated by '|' or ','.
func ParseFlags(s string) (Flags, bool) {
	var f Flags
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return r == '|' || r == ',' }) {
		switch strings.TrimSpace(part) {
		case "none", "":
		case "hold-parent":
			f |= FlagHoldParent
		case "manual-return":
			f |= FlagManualReturn
		case "reset-on-return":
			f |= FlagResetOnReturn
		default:
			return FlagNone, false
		}
	}
	return f, true
}
