package command

import (
	"fmt"
	"sort"
	"strings"

	"github.com/martinslabber/tape-library-robot-control/internal/library"
)

// Timeout classes group actions by how long the picker travels.
type timeoutClass int

const (
	classMove timeoutClass = iota
	classScan
	classPark
)

// paramSpec declares one named parameter and the cell kind it must name.
// An empty kinds set means any cell.
type paramSpec struct {
	name  string
	kinds []library.Kind
}

// actionSpec is the admission rule set for one declared action. params is
// ordered; it doubles as the command's resource set in reservation order.
type actionSpec struct {
	class  timeoutClass
	params []paramSpec
}

var (
	slotKinds  = []library.Kind{library.KindSlot, library.KindAccess}
	driveKinds = []library.Kind{library.KindDrive}
)

// actionSpecs declares every accepted action. load/unload/move shuttle
// between a slot and a drive, transfer between two slots; move is the
// schema-declared alias for a slot-to-drive load.
var actionSpecs = map[string]actionSpec{
	"load": {class: classMove, params: []paramSpec{
		{name: "slot", kinds: slotKinds},
		{name: "drive", kinds: driveKinds},
	}},
	"unload": {class: classMove, params: []paramSpec{
		{name: "drive", kinds: driveKinds},
		{name: "slot", kinds: slotKinds},
	}},
	"transfer": {class: classMove, params: []paramSpec{
		{name: "source", kinds: slotKinds},
		{name: "target", kinds: slotKinds},
	}},
	"move": {class: classMove, params: []paramSpec{
		{name: "slot", kinds: slotKinds},
		{name: "drive", kinds: driveKinds},
	}},
	"scan": {class: classScan, params: []paramSpec{
		{name: "slot", kinds: slotKinds},
	}},
	"park": {class: classPark},
}

// Actions returns the declared action names, sorted.
func Actions() []string {
	names := make([]string, 0, len(actionSpecs))
	for name := range actionSpecs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// normalizeAction lower-cases the wire action name.
func normalizeAction(action string) string {
	return strings.ToLower(strings.TrimSpace(action))
}

// validateParams checks required parameters and rejects unknown ones.
// Returns the admission Error for the first violation.
func (s actionSpec) validateParams(params map[string]string) *Error {
	for _, p := range s.params {
		value, ok := params[p.name]
		if !ok {
			return &Error{
				Type:        ErrTypeParameter,
				Reason:      "undefined",
				Description: "missing parameter",
				Parameter:   p.name,
			}
		}
		if value == "" {
			return &Error{
				Type:        ErrTypeParameter,
				Reason:      "empty",
				Description: "empty parameter",
				Parameter:   p.name,
			}
		}
	}
	for name := range params {
		if !s.declares(name) {
			return &Error{
				Type:        ErrTypeParameter,
				Reason:      "unexpected",
				Description: "unexpected parameter",
				Parameter:   name,
			}
		}
	}
	return nil
}

func (s actionSpec) declares(name string) bool {
	for _, p := range s.params {
		if p.name == name {
			return true
		}
	}
	return false
}

// resources returns the command's resource set in declared order.
func (s actionSpec) resources(params map[string]string) []string {
	ids := make([]string, 0, len(s.params))
	for _, p := range s.params {
		ids = append(ids, params[p.name])
	}
	return ids
}

// route returns the source and destination cells of a motion action.
// ok is false for actions that move no cartridge.
func route(action string, params map[string]string) (src, dst string, ok bool) {
	switch action {
	case "load", "move":
		return params["slot"], params["drive"], true
	case "unload":
		return params["drive"], params["slot"], true
	case "transfer":
		return params["source"], params["target"], true
	default:
		return "", "", false
	}
}

// fingerprint identifies a command by action and exact params, used to
// reject duplicate in-flight submissions.
func fingerprint(action string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(action)
	for _, k := range keys {
		fmt.Fprintf(&b, "|%s=%s", k, params[k])
	}
	return b.String()
}
