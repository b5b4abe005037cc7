package uitree

import (
	"encoding/xml"
	"fmt"
	"regexp"
	"sort"
	"strconv"
)

const (
	// DefaultMinArea filters out elements too small to interact with.
	DefaultMinArea = 100
	// DefaultMaxElements caps the parsed list for token efficiency.
	DefaultMaxElements = 50
)

// Parser converts raw uiautomator dumps into ranked element lists.
// The zero value is not usable; call NewParser.
type Parser struct {
	minArea     int
	maxElements int
}

// NewParser creates a parser with the given filter thresholds. Values
// below one fall back to the defaults.
func NewParser(minArea, maxElements int) *Parser {
	if minArea < 1 {
		minArea = DefaultMinArea
	}
	if maxElements < 1 {
		maxElements = DefaultMaxElements
	}
	return &Parser{minArea: minArea, maxElements: maxElements}
}

type xmlNode struct {
	Text          string    `xml:"text,attr"`
	ResourceID    string    `xml:"resource-id,attr"`
	Class         string    `xml:"class,attr"`
	Package       string    `xml:"package,attr"`
	ContentDesc   string    `xml:"content-desc,attr"`
	Checkable     string    `xml:"checkable,attr"`
	Checked       string    `xml:"checked,attr"`
	Clickable     string    `xml:"clickable,attr"`
	Enabled       string    `xml:"enabled,attr"`
	Focusable     string    `xml:"focusable,attr"`
	Focused       string    `xml:"focused,attr"`
	Scrollable    string    `xml:"scrollable,attr"`
	LongClickable string    `xml:"long-clickable,attr"`
	Password      string    `xml:"password,attr"`
	Selected      string    `xml:"selected,attr"`
	Bounds        string    `xml:"bounds,attr"`
	Children      []xmlNode `xml:"node"`
}

// document accepts either a <hierarchy> root wrapping node elements or a
// bare <node> root.
type document struct {
	Bounds   string    `xml:"bounds,attr"`
	Children []xmlNode `xml:"node"`
}

var boundsPattern = regexp.MustCompile(`\[(-?\d+),(-?\d+)\]\[(-?\d+),(-?\d+)\]`)

// Parse converts a raw UI dump into a filtered, relevance-sorted,
// re-indexed element list. The output is deterministic for equal input.
func (p *Parser) Parse(raw []byte) ([]Element, error) {
	var doc document
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse ui dump: %w", err)
	}

	var flat []Element
	for i := range doc.Children {
		collect(&doc.Children[i], &flat)
	}

	filtered := flat[:0:0]
	for _, el := range flat {
		if p.keep(el) {
			filtered = append(filtered, el)
		}
	}

	sortByRelevance(filtered)

	if len(filtered) > p.maxElements {
		filtered = filtered[:p.maxElements]
	}
	for i := range filtered {
		filtered[i].Index = i
	}
	return filtered, nil
}

func collect(n *xmlNode, out *[]Element) {
	*out = append(*out, Element{
		Text:          n.Text,
		ResourceID:    n.ResourceID,
		Class:         n.Class,
		Package:       n.Package,
		Desc:          n.ContentDesc,
		Checkable:     n.Checkable == "true",
		Checked:       n.Checked == "true",
		Clickable:     n.Clickable == "true",
		Enabled:       n.Enabled != "false",
		Focusable:     n.Focusable == "true",
		Focused:       n.Focused == "true",
		Scrollable:    n.Scrollable == "true",
		LongClickable: n.LongClickable == "true",
		Password:      n.Password == "true",
		Selected:      n.Selected == "true",
		Bounds:        parseBounds(n.Bounds),
	})
	for i := range n.Children {
		collect(&n.Children[i], out)
	}
}

func parseBounds(s string) Rect {
	m := boundsPattern.FindStringSubmatch(s)
	if m == nil {
		return Rect{}
	}
	vals := make([]int, 4)
	for i := 0; i < 4; i++ {
		v, err := strconv.Atoi(m[i+1])
		if err != nil {
			return Rect{}
		}
		vals[i] = v
	}
	return Rect{Left: vals[0], Top: vals[1], Right: vals[2], Bottom: vals[3]}
}

func (p *Parser) keep(el Element) bool {
	if !el.Enabled {
		return false
	}
	if el.Bounds.Area() < p.minArea {
		return false
	}
	hasContent := el.Text != "" || el.Desc != "" || el.ResourceID != ""
	interactive := el.Clickable || el.Scrollable || el.Checkable
	return hasContent || interactive
}

// sortByRelevance orders elements by interaction value: clickable >
// scrollable > checkable > has-text > has-desc > has-id, ties broken
// top-to-bottom then left-to-right.
func sortByRelevance(els []Element) {
	sort.SliceStable(els, func(i, j int) bool {
		si, sj := relevance(els[i]), relevance(els[j])
		if si != sj {
			return si > sj
		}
		if els[i].Bounds.Top != els[j].Bounds.Top {
			return els[i].Bounds.Top < els[j].Bounds.Top
		}
		return els[i].Bounds.Left < els[j].Bounds.Left
	})
}

func relevance(el Element) int {
	score := 0
	if el.Clickable {
		score += 100
	}
	if el.Scrollable {
		score += 50
	}
	if el.Checkable {
		score += 40
	}
	if el.Text != "" {
		score += 30
	}
	if el.Desc != "" {
		score += 20
	}
	if el.ResourceID != "" {
		score += 10
	}
	return score
}
