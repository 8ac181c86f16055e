// File: internal/agent/actions.go
package agent

import "strings"

// ActionKind is the closed set of commands the model may issue. Dispatch
// matches it exhaustively, so an unrecognized name is an explicit
// ActionUnknown branch instead of a silent map miss.
type ActionKind int

const (
	ActionUnknown ActionKind = iota

	// Labeled-element actions.
	ActionTap
	ActionLongPress
	ActionSwipeElement
	ActionSwipeScreen
	ActionTypeText
	ActionWait
	ActionGoBack
	ActionPressEnter
	ActionDeleteMultiple

	// Meta actions: no device call.
	ActionFinish
	ActionGrid
	ActionSubgoalComplete

	// Grid-mode actions resolving (area, subarea) pairs to coordinates.
	ActionTapGrid
	ActionLongPressGrid
	ActionSwipeGrid
)

// kindNames maps every canonical command token to its kind.
var kindNames = map[string]ActionKind{
	"tap":              ActionTap,
	"long_press":       ActionLongPress,
	"swipe_element":    ActionSwipeElement,
	"swipe_screen":     ActionSwipeScreen,
	"type_text":        ActionTypeText,
	"wait":             ActionWait,
	"go_back":          ActionGoBack,
	"press_enter":      ActionPressEnter,
	"delete_multiple":  ActionDeleteMultiple,
	"finish":           ActionFinish,
	"grid":             ActionGrid,
	"subgoal_complete": ActionSubgoalComplete,
	"tap_grid":         ActionTapGrid,
	"long_press_grid":  ActionLongPressGrid,
	"swipe_grid":       ActionSwipeGrid,
}

// KindOf resolves a command name against the fixed action table. Names are
// matched case-insensitively; parsing lowercases them already, but bare
// tokens like FINISH arrive in whatever case the model used.
func KindOf(name string) ActionKind {
	if kind, ok := kindNames[strings.ToLower(name)]; ok {
		return kind
	}
	return ActionUnknown
}

// String returns the canonical command token for logging.
func (k ActionKind) String() string {
	for name, kind := range kindNames {
		if kind == k {
			return name
		}
	}
	return "unknown"
}

// IsMeta reports whether the action mutates only loop state, never the device.
func (k ActionKind) IsMeta() bool {
	return k == ActionFinish || k == ActionGrid || k == ActionSubgoalComplete
}

// SkipsReflection reports whether the round skips the post-action reflection
// pass for this action.
func (k ActionKind) SkipsReflection() bool {
	return k == ActionFinish || k == ActionWait || k == ActionGrid || k == ActionSubgoalComplete
}
