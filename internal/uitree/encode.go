package uitree

import (
	"fmt"
	"strings"
)

// CompactEncode renders the parsed element list in the abbreviated form
// consumed by the model:
//
//	App:<package tail>
//	Act:<activity tail>
//	Els:
//	<index>:<kind>:<name>@<x>,<y>
//
// Output is byte-identical for equal input.
func CompactEncode(els []Element, pkg, activity string) string {
	var b strings.Builder
	if pkg != "" {
		b.WriteString("App:")
		b.WriteString(lastSegment(pkg, "."))
		b.WriteByte('\n')
	}
	if activity != "" {
		b.WriteString("Act:")
		b.WriteString(lastSegment(activity, "."))
		b.WriteByte('\n')
	}
	b.WriteString("Els:")
	for _, el := range els {
		b.WriteByte('\n')
		b.WriteString(el.Compact())
	}
	return b.String()
}

// VerboseEncode renders the parsed element list with full attributes,
// one element per line. Used when compact prompts are disabled and for
// baseline token estimation.
func VerboseEncode(els []Element, pkg, activity string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Package: %s\n", pkg)
	fmt.Fprintf(&b, "Activity: %s\n\n", activity)
	fmt.Fprintf(&b, "UI Elements (%d total):\n", len(els))
	b.WriteString(strings.Repeat("-", 60))

	for _, el := range els {
		b.WriteByte('\n')
		parts := []string{fmt.Sprintf("[%d]", el.Index)}
		if el.Text != "" {
			parts = append(parts, fmt.Sprintf("text=%q", el.Text))
		}
		if el.Desc != "" {
			parts = append(parts, fmt.Sprintf("desc=%q", el.Desc))
		}
		if el.ResourceID != "" {
			parts = append(parts, fmt.Sprintf("id=%q", lastSegment(el.ResourceID, "/")))
		}
		cx, cy := el.Center()
		parts = append(parts,
			fmt.Sprintf("type=%s", el.Kind()),
			fmt.Sprintf("clickable=%t", el.Clickable),
			fmt.Sprintf("scrollable=%t", el.Scrollable),
			fmt.Sprintf("checkable=%t", el.Checkable),
			fmt.Sprintf("enabled=%t", el.Enabled),
			fmt.Sprintf("focused=%t", el.Focused),
			fmt.Sprintf("center=(%d,%d)", cx, cy),
			fmt.Sprintf("bounds=[%d,%d][%d,%d]", el.Bounds.Left, el.Bounds.Top, el.Bounds.Right, el.Bounds.Bottom),
		)
		b.WriteString(strings.Join(parts, " "))
	}
	return b.String()
}

func lastSegment(s, sep string) string {
	parts := strings.Split(s, sep)
	return parts[len(parts)-1]
}
