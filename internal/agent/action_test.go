package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intp(v int) *int { return &v }

func TestDecodeAction_CompactJSON(t *testing.T) {
	req, ok := DecodeAction(`{"t":"tap the icon","a":"tap","p":{"ei":2},"c":0.9}`)
	require.True(t, ok)
	assert.Equal(t, ActionTap, req.Kind)
	assert.Equal(t, "tap the icon", req.Thought)
	require.NotNil(t, req.Params.ElementIndex)
	assert.Equal(t, 2, *req.Params.ElementIndex)
	assert.Equal(t, 0.9, req.Confidence)
}

func TestDecodeAction_LongFormJSON(t *testing.T) {
	req, ok := DecodeAction(`{"thought":"open chrome","action":"launch","params":{"package":"com.android.chrome"},"confidence":0.8}`)
	require.True(t, ok)
	assert.Equal(t, ActionLaunch, req.Kind)
	assert.Equal(t, "com.android.chrome", req.Params.Package)
	assert.Equal(t, 0.8, req.Confidence)
}

func TestDecodeAction_LaunchAppAlias(t *testing.T) {
	req, ok := DecodeAction(`{"a":"launch_app","p":{"pkg":"com.example"}}`)
	require.True(t, ok)
	assert.Equal(t, ActionLaunch, req.Kind)
}

func TestDecodeAction_EmbeddedJSON(t *testing.T) {
	content := "Sure, here is the next step:\n```json\n{\"a\":\"swipe\",\"p\":{\"d\":\"up\"}}\n```\nDone."
	req, ok := DecodeAction(content)
	require.True(t, ok)
	assert.Equal(t, ActionSwipe, req.Kind)
	assert.Equal(t, "up", req.Params.Direction)
}

func TestDecodeAction_LenientFallback(t *testing.T) {
	req, ok := DecodeAction(`I think the action: tap is right here`)
	require.True(t, ok)
	assert.Equal(t, ActionTap, req.Kind)
	assert.NotEmpty(t, req.Thought)
}

func TestDecodeAction_TotalFailure(t *testing.T) {
	_, ok := DecodeAction("I have no idea what to do next.")
	assert.False(t, ok)
}

func TestDecodeAction_ZeroElementIndex(t *testing.T) {
	req, ok := DecodeAction(`{"a":"tap","p":{"ei":0}}`)
	require.True(t, ok)
	require.NotNil(t, req.Params.ElementIndex)
	assert.Equal(t, 0, *req.Params.ElementIndex)
}

func TestDecodeAction_UnknownActionStillDecodes(t *testing.T) {
	req, ok := DecodeAction(`{"a":"fly","p":{}}`)
	require.True(t, ok)
	assert.Equal(t, ActionUnknown, req.Kind)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []ActionRequest{
		{Thought: "tap search", Kind: ActionTap, Params: Params{ElementIndex: intp(0)}, Confidence: 0.95},
		{Kind: ActionTap, Params: Params{X: intp(100), Y: intp(200)}},
		{Kind: ActionSwipe, Params: Params{Direction: "down"}},
		{Kind: ActionSwipe, Params: Params{X1: intp(0), Y1: intp(10), X2: intp(0), Y2: intp(900)}},
		{Kind: ActionType, Params: Params{Text: "weather today"}},
		{Kind: ActionLaunch, Params: Params{Package: "com.android.settings"}},
		{Kind: ActionWait, Params: Params{Seconds: 2.5}},
		{Kind: ActionBack},
		{Kind: ActionDone},
	}

	for _, want := range cases {
		encoded, err := EncodeAction(want)
		require.NoError(t, err)

		got, ok := DecodeAction(encoded)
		require.True(t, ok, "decode %s", encoded)
		assert.Equal(t, want.Kind, got.Kind)
		assert.Equal(t, want.Params, got.Params)
	}
}

func TestParseActionKind(t *testing.T) {
	assert.Equal(t, ActionDone, ParseActionKind("DONE"))
	assert.Equal(t, ActionLaunch, ParseActionKind(" launch "))
	assert.Equal(t, ActionUnknown, ParseActionKind("teleport"))
}
