// File: internal/ui/elements.go
package ui

import "fmt"

// Role is a heuristic hint about what an element is for, derived from
// keyword matching over its textual attributes.
type Role string

const (
	RoleNone      Role = ""
	RoleSearchBar Role = "search_bar"
	RoleNavItem   Role = "nav_item"
	RoleResult    Role = "result_display"
)

// Rect is an axis-aligned bounding box in screen pixels.
type Rect struct {
	X1, Y1, X2, Y2 int
}

// Center returns the box center.
func (r Rect) Center() (int, int) {
	return (r.X1 + r.X2) / 2, (r.Y1 + r.Y2) / 2
}

// Width returns the box width.
func (r Rect) Width() int { return r.X2 - r.X1 }

// Height returns the box height.
func (r Rect) Height() int { return r.Y2 - r.Y1 }

// Element is one interactive UI element extracted from a hierarchy dump.
//
// Identifier is stable across snapshots of the same logical screen: it is
// derived deterministically from the resource-id (or class+size fallback)
// plus a short sanitized content description, prefixed by the parent
// element's own identifier so repeated child patterns (list rows, grid
// cells) stay distinguishable. The persistent knowledge base is keyed on it.
type Element struct {
	Identifier string
	Bounds     Rect
	Clickable  bool
	Focusable  bool
	Role       Role
	Text       string
}

// AttributeList renders the element's flags the way prompts and logs expect,
// e.g. "clickable,search_bar".
func (e Element) AttributeList() string {
	attr := "focusable"
	if e.Clickable {
		attr = "clickable"
	}
	if e.Role != RoleNone {
		attr += "," + string(e.Role)
	}
	return attr
}

// String implements fmt.Stringer for debug logging.
func (e Element) String() string {
	return fmt.Sprintf("%s [%d,%d][%d,%d]", e.Identifier, e.Bounds.X1, e.Bounds.Y1, e.Bounds.X2, e.Bounds.Y2)
}
