// Package uitree parses Android UI hierarchy dumps into a filtered,
// relevance-ranked element list and renders compact and verbose textual
// encodings of it.
package uitree

import (
	"fmt"
	"strings"
)

// Kind classifies an element for the one-letter compact shorthand.
type Kind int

const (
	KindGeneric Kind = iota
	KindButton
	KindInput
	KindCheckbox
	KindSwitch
	KindImage
	KindText
	KindList
	KindScrollable
)

// Code returns the one-letter compact code for the kind.
func (k Kind) Code() string {
	switch k {
	case KindButton:
		return "B"
	case KindInput:
		return "I"
	case KindCheckbox:
		return "C"
	case KindSwitch:
		return "S"
	case KindImage:
		return "G"
	case KindText:
		return "T"
	case KindList:
		return "L"
	case KindScrollable:
		return "R"
	default:
		return "E"
	}
}

func (k Kind) String() string {
	switch k {
	case KindButton:
		return "button"
	case KindInput:
		return "input"
	case KindCheckbox:
		return "checkbox"
	case KindSwitch:
		return "switch"
	case KindImage:
		return "image"
	case KindText:
		return "text"
	case KindList:
		return "list"
	case KindScrollable:
		return "scrollable"
	default:
		return "generic"
	}
}

// Rect is an element bounding box with left<=right and top<=bottom.
type Rect struct {
	Left, Top, Right, Bottom int
}

// Center returns the box center.
func (r Rect) Center() (int, int) {
	return (r.Left + r.Right) / 2, (r.Top + r.Bottom) / 2
}

// Width returns the box width.
func (r Rect) Width() int { return r.Right - r.Left }

// Height returns the box height.
func (r Rect) Height() int { return r.Bottom - r.Top }

// Area returns the box area.
func (r Rect) Area() int { return r.Width() * r.Height() }

// Element is one node from the accessibility tree. Elements are created
// fresh on every parse and never mutated afterwards; they are owned by
// the screen state that contains them.
type Element struct {
	Index         int
	ResourceID    string
	Class         string
	Text          string
	Desc          string
	Package       string
	Clickable     bool
	Scrollable    bool
	Checkable     bool
	Checked       bool
	Enabled       bool
	Focusable     bool
	Focused       bool
	LongClickable bool
	Password      bool
	Selected      bool
	Bounds        Rect
}

// Center returns the element center coordinates.
func (e Element) Center() (int, int) { return e.Bounds.Center() }

// Kind derives the element classification from class-name heuristics and
// the clickable flag.
func (e Element) Kind() Kind {
	class := strings.ToLower(e.Class)
	switch {
	case strings.Contains(class, "button"):
		return KindButton
	case strings.Contains(class, "edittext"), strings.Contains(class, "textfield"):
		return KindInput
	case strings.Contains(class, "checkbox"):
		return KindCheckbox
	case strings.Contains(class, "switch"), strings.Contains(class, "toggle"):
		return KindSwitch
	case strings.Contains(class, "image"):
		return KindImage
	case strings.Contains(class, "text"):
		return KindText
	case strings.Contains(class, "list"), strings.Contains(class, "recycler"):
		return KindList
	case strings.Contains(class, "scroll"):
		return KindScrollable
	case e.Clickable:
		return KindButton
	default:
		return KindGeneric
	}
}

// DisplayName returns the best human-readable name for the element,
// truncated for compact output.
func (e Element) DisplayName() string {
	if e.Text != "" {
		return truncate(e.Text, 30)
	}
	if e.Desc != "" {
		return truncate(e.Desc, 30)
	}
	if e.ResourceID != "" {
		parts := strings.Split(e.ResourceID, "/")
		return truncate(parts[len(parts)-1], 30)
	}
	parts := strings.Split(e.Class, ".")
	return truncate(parts[len(parts)-1], 20)
}

// Compact renders the element as "index:kind:name@x,y".
func (e Element) Compact() string {
	cx, cy := e.Center()
	return fmt.Sprintf("%d:%s:%s@%d,%d", e.Index, e.Kind().Code(), e.DisplayName(), cx, cy)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
