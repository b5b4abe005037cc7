package agent

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// ActionKind is the closed set of actions the model may request. Done is
// a control signal handled by the loop, never dispatched to the device.
type ActionKind int

const (
	ActionUnknown ActionKind = iota
	ActionTap
	ActionSwipe
	ActionType
	ActionBack
	ActionHome
	ActionLaunch
	ActionWait
	ActionDone
)

var actionNames = map[ActionKind]string{
	ActionUnknown: "unknown",
	ActionTap:     "tap",
	ActionSwipe:   "swipe",
	ActionType:    "type",
	ActionBack:    "back",
	ActionHome:    "home",
	ActionLaunch:  "launch",
	ActionWait:    "wait",
	ActionDone:    "done",
}

func (k ActionKind) String() string {
	if name, ok := actionNames[k]; ok {
		return name
	}
	return "unknown"
}

// ParseActionKind maps an action name to its kind. Unrecognized names
// map to ActionUnknown rather than an error; the dispatcher turns that
// into a failed result.
func ParseActionKind(name string) ActionKind {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "tap":
		return ActionTap
	case "swipe":
		return ActionSwipe
	case "type":
		return ActionType
	case "back":
		return ActionBack
	case "home":
		return ActionHome
	case "launch", "launch_app":
		return ActionLaunch
	case "wait":
		return ActionWait
	case "done":
		return ActionDone
	default:
		return ActionUnknown
	}
}

func (k ActionKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

func (k *ActionKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*k = ParseActionKind(s)
	return nil
}

// Params carries the abbreviated action parameters. Optional integers
// are pointers so that index 0 and coordinate 0 survive a round trip.
type Params struct {
	ElementIndex *int    `json:"ei,omitempty"`
	X            *int    `json:"x,omitempty"`
	Y            *int    `json:"y,omitempty"`
	X1           *int    `json:"x1,omitempty"`
	Y1           *int    `json:"y1,omitempty"`
	X2           *int    `json:"x2,omitempty"`
	Y2           *int    `json:"y2,omitempty"`
	Direction    string  `json:"d,omitempty"`
	Text         string  `json:"txt,omitempty"`
	Package      string  `json:"pkg,omitempty"`
	Seconds      float64 `json:"s,omitempty"`
}

// ActionRequest is one decoded model instruction.
type ActionRequest struct {
	Thought    string     `json:"t,omitempty"`
	Kind       ActionKind `json:"a"`
	Params     Params     `json:"p,omitempty"`
	Confidence float64    `json:"c,omitempty"`
}

// EncodeAction renders a request in the compact wire schema.
func EncodeAction(req ActionRequest) (string, error) {
	raw, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("encode action: %w", err)
	}
	return string(raw), nil
}

// wireAction accepts both the compact and the spelled-out key sets the
// model may emit.
type wireAction struct {
	T       string     `json:"t"`
	Thought string     `json:"thought"`
	A       string     `json:"a"`
	Action  string     `json:"action"`
	P       wireParams `json:"p"`
	Params  wireParams `json:"params"`
	C       *float64   `json:"c"`
	Conf    *float64   `json:"confidence"`
}

type wireParams struct {
	EI        *int    `json:"ei"`
	ElementIx *int    `json:"element_index"`
	X         *int    `json:"x"`
	Y         *int    `json:"y"`
	X1        *int    `json:"x1"`
	Y1        *int    `json:"y1"`
	X2        *int    `json:"x2"`
	Y2        *int    `json:"y2"`
	D         string  `json:"d"`
	Direction string  `json:"direction"`
	Txt       string  `json:"txt"`
	Text      string  `json:"text"`
	Pkg       string  `json:"pkg"`
	Package   string  `json:"package"`
	S         float64 `json:"s"`
	Seconds   float64 `json:"seconds"`
}

func (w wireAction) request() (ActionRequest, bool) {
	name := w.A
	if name == "" {
		name = w.Action
	}
	if name == "" {
		return ActionRequest{}, false
	}

	req := ActionRequest{
		Thought: firstNonEmpty(w.T, w.Thought),
		Kind:    ParseActionKind(name),
		Params:  mergeParams(w.P, w.Params),
	}
	if w.C != nil {
		req.Confidence = *w.C
	} else if w.Conf != nil {
		req.Confidence = *w.Conf
	}
	return req, true
}

func mergeParams(compact, long wireParams) Params {
	p := Params{
		Direction: firstNonEmpty(compact.D, compact.Direction, long.D, long.Direction),
		Text:      firstNonEmpty(compact.Txt, compact.Text, long.Txt, long.Text),
		Package:   firstNonEmpty(compact.Pkg, compact.Package, long.Pkg, long.Package),
	}
	p.ElementIndex = firstInt(compact.EI, compact.ElementIx, long.EI, long.ElementIx)
	p.X = firstInt(compact.X, long.X)
	p.Y = firstInt(compact.Y, long.Y)
	p.X1 = firstInt(compact.X1, long.X1)
	p.Y1 = firstInt(compact.Y1, long.Y1)
	p.X2 = firstInt(compact.X2, long.X2)
	p.Y2 = firstInt(compact.Y2, long.Y2)
	for _, s := range []float64{compact.S, compact.Seconds, long.S, long.Seconds} {
		if s != 0 {
			p.Seconds = s
			break
		}
	}
	return p
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstInt(values ...*int) *int {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

var (
	jsonObjectPattern  = regexp.MustCompile(`(?s)\{.*\}`)
	actionFieldPattern = regexp.MustCompile(`(?i)\b"?(?:action|a)"?\s*:\s*"?(\w+)"?`)
)

// DecodeAction parses model output into an ActionRequest. It tries a
// strict JSON parse of the whole content, then of the largest embedded
// JSON object, then falls back to a lenient scan for an action field.
// The boolean reports whether anything usable was decoded; callers skip
// the step when it is false.
func DecodeAction(content string) (ActionRequest, bool) {
	candidates := []string{strings.TrimSpace(content)}
	if m := jsonObjectPattern.FindString(content); m != "" {
		candidates = append(candidates, m)
	}

	for _, candidate := range candidates {
		var w wireAction
		if err := json.Unmarshal([]byte(candidate), &w); err != nil {
			continue
		}
		if req, ok := w.request(); ok {
			return req, true
		}
	}

	if m := actionFieldPattern.FindStringSubmatch(content); m != nil {
		return ActionRequest{
			Thought: truncate(content, 100),
			Kind:    ParseActionKind(m[1]),
		}, true
	}
	return ActionRequest{}, false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
