// File: internal/agent/parser_test.go
package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestParser(t *testing.T) *ResponseParser {
	t.Helper()
	return NewResponseParser(zaptest.NewLogger(t))
}

func TestParseAction_FullResponse(t *testing.T) {
	p := newTestParser(t)

	response := `Observation: The login screen is visible with a username field.
Thought: The sub-goal is not complete. I should tap the login button.
Action: tap(3)
Summary: Tapping the login button.`

	action := p.ParseAction(response)
	require.NotNil(t, action)
	assert.Equal(t, "The login screen is visible with a username field.", action.Observation)
	assert.Equal(t, "The sub-goal is not complete. I should tap the login button.", action.Thought)
	assert.Equal(t, "tap", action.Name)
	assert.Equal(t, []any{3}, action.Params)
	assert.Equal(t, "Tapping the login button.", action.Summary)
}

func TestParseAction_MissingOptionalSections(t *testing.T) {
	p := newTestParser(t)

	action := p.ParseAction("Action: tap(3)\nSummary: tapping login")
	require.NotNil(t, action)
	assert.Equal(t, noObservation, action.Observation)
	assert.Equal(t, noThought, action.Thought)
	assert.Equal(t, "tap", action.Name)
	assert.Equal(t, []any{3}, action.Params)
	assert.Equal(t, "tapping login", action.Summary)

	action = p.ParseAction("Action: go_back()")
	require.NotNil(t, action)
	assert.Equal(t, "go_back", action.Name)
	assert.Empty(t, action.Params)
	assert.Equal(t, noSummary, action.Summary)
}

func TestParseAction_NoActionSection(t *testing.T) {
	p := newTestParser(t)

	assert.Nil(t, p.ParseAction("Thought: I am thinking but never acting."))
	assert.Nil(t, p.ParseAction(""))
	assert.Nil(t, p.ParseAction("Action:\nSummary: empty action line"))
}

func TestParseAction_BacktickedCommand(t *testing.T) {
	p := newTestParser(t)

	action := p.ParseAction("Action: `tap(5)`\nSummary: tap five")
	require.NotNil(t, action)
	assert.Equal(t, "tap", action.Name)
	assert.Equal(t, []any{5}, action.Params)
}

func TestParseAction_BareFinishToken(t *testing.T) {
	p := newTestParser(t)

	action := p.ParseAction("Action: FINISH\nSummary: all done")
	require.NotNil(t, action)
	assert.Equal(t, "finish", action.Name)
	assert.Equal(t, ActionFinish, KindOf(action.Name))
}

func TestParseAction_OnlyFirstActionLineIsUsed(t *testing.T) {
	p := newTestParser(t)

	action := p.ParseAction("Action: tap(1)\ntap(2)\nSummary: first wins")
	require.NotNil(t, action)
	assert.Equal(t, []any{1}, action.Params)
}

func TestParseAction_LabeledArguments(t *testing.T) {
	p := newTestParser(t)

	action := p.ParseAction("Action: swipe_element(element_id: 4, direction: \"up\", distance: 'medium')\nSummary: swipe")
	require.NotNil(t, action)
	assert.Equal(t, "swipe_element", action.Name)
	assert.Equal(t, []any{4, "up", "medium"}, action.Params)
}

func TestParseAction_TypeTextKeepsNumericStrings(t *testing.T) {
	p := newTestParser(t)

	action := p.ParseAction("Action: type_text(\"12345\")\nSummary: typing digits")
	require.NotNil(t, action)
	assert.Equal(t, "type_text", action.Name)
	assert.Equal(t, []any{"12345"}, action.Params)
}

func TestParseAction_GridCommands(t *testing.T) {
	p := newTestParser(t)

	action := p.ParseAction("Action: swipe_grid(3, top-left, 12, bottom-right)\nSummary: grid swipe")
	require.NotNil(t, action)
	assert.Equal(t, "swipe_grid", action.Name)
	assert.Equal(t, []any{3, "top-left", 12, "bottom-right"}, action.Params)
}

func TestParseAction_UnparseableActionLine(t *testing.T) {
	p := newTestParser(t)

	assert.Nil(t, p.ParseAction("Action: this is not a command\nSummary: nope"))
}

// ParseAction must never panic, whatever text the model produced.
func TestParseAction_TotalOverArbitraryInput(t *testing.T) {
	p := newTestParser(t)

	inputs := []string{
		"Action: ((((",
		"Action: )(",
		"Observation: Action: Thought: Summary:",
		"Action: tap(,,,)\nSummary: commas",
		"\x00\x01\x02",
		"Action: tap(999999999999999999999999)\nSummary: overflow",
	}
	for _, in := range inputs {
		assert.NotPanics(t, func() { p.ParseAction(in) }, "input: %q", in)
	}
}

func TestParseReflection_Valid(t *testing.T) {
	p := newTestParser(t)

	verdict := p.ParseReflection(`Decision: SUCCESS
Thought: The settings screen opened as intended.
Documentation: Opens the settings menu.`)
	require.NotNil(t, verdict)
	assert.Equal(t, DecisionSuccess, verdict.Decision)
	assert.Equal(t, "The settings screen opened as intended.", verdict.Thought)
	assert.Equal(t, "Opens the settings menu.", verdict.Documentation)
}

func TestParseReflection_MissingDocumentationDefaultsToNA(t *testing.T) {
	p := newTestParser(t)

	verdict := p.ParseReflection("Decision: BACK\nThought: That screen was a dead end.")
	require.NotNil(t, verdict)
	assert.Equal(t, DecisionBack, verdict.Decision)
	assert.Equal(t, noDoc, verdict.Documentation)
}

func TestParseReflection_UnknownDecisionDegradesToContinue(t *testing.T) {
	p := newTestParser(t)

	verdict := p.ParseReflection("Decision: MAYBE\nThought: unsure")
	require.NotNil(t, verdict)
	assert.Equal(t, DecisionContinue, verdict.Decision)
}

func TestParseReflection_LowercaseDecisionNormalized(t *testing.T) {
	p := newTestParser(t)

	verdict := p.ParseReflection("Decision: ineffective\nThought: nothing changed")
	require.NotNil(t, verdict)
	assert.Equal(t, DecisionIneffective, verdict.Decision)
}

func TestParseReflection_MissingRequiredSections(t *testing.T) {
	p := newTestParser(t)

	assert.Nil(t, p.ParseReflection("Thought: no decision here"))
	assert.Nil(t, p.ParseReflection("Decision: SUCCESS"))
	assert.Nil(t, p.ParseReflection(""))
}

func TestSectionExtractor_StopMarkersAndCase(t *testing.T) {
	s := newSectionExtractor()

	text := "observation: screen looks fine\nACTION: tap(1)\nSummary: done"
	got, ok := s.extract(text, "Observation:", "Action:")
	require.True(t, ok)
	assert.Equal(t, "screen looks fine", got)

	got, ok = s.extract(text, "Action:", "Summary:")
	require.True(t, ok)
	assert.Equal(t, "tap(1)", got)

	// Last section runs to end of input.
	got, ok = s.extract(text, "Summary:")
	require.True(t, ok)
	assert.Equal(t, "done", got)

	_, ok = s.extract(text, "Decision:")
	assert.False(t, ok)
}
