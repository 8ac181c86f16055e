// File: internal/agent/parser.go
package agent

import (
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// Placeholder values for optional response sections.
const (
	noObservation = "No observation provided."
	noThought     = "No thought provided."
	noSummary     = "No summary provided."
	noDoc         = "N/A"
)

// ParsedAction is the structured form of one action round's model reply.
// Params holds int or string values in argument order. Produced fresh each
// round and consumed immediately by the dispatcher; never persisted.
type ParsedAction struct {
	Observation string
	Thought     string
	Name        string
	Params      []any
	Summary     string
}

// Decision is the reflection verdict enum.
type Decision string

const (
	DecisionSuccess     Decision = "SUCCESS"
	DecisionContinue    Decision = "CONTINUE"
	DecisionIneffective Decision = "INEFFECTIVE"
	DecisionBack        Decision = "BACK"
)

// ReflectionVerdict is the parsed result of a reflection pass. Decision is
// always one of the four enum values: anything unrecognized degrades to
// CONTINUE rather than aborting the round.
type ReflectionVerdict struct {
	Decision      Decision
	Thought       string
	Documentation string
}

// commandRegex matches "name(args)" action lines.
var commandRegex = regexp.MustCompile(`^(\w+)\s*\((.*)\)$`)

// labelPrefixRegex strips an optional "label:" prefix off an argument,
// e.g. "element_id: 3" -> "3".
var labelPrefixRegex = regexp.MustCompile(`^[A-Za-z_]\w*\s*:\s*(.+)$`)

// ResponseParser recovers structure from free-text model output. It is a
// total function over its input: any text yields either a well-formed result
// or nil, never a panic and never a partial result missing the action name.
type ResponseParser struct {
	logger   *zap.Logger
	sections *sectionExtractor
}

// NewResponseParser creates a parser.
func NewResponseParser(logger *zap.Logger) *ResponseParser {
	return &ResponseParser{
		logger:   logger.Named("parser"),
		sections: newSectionExtractor(),
	}
}

// ParseAction extracts an action decision from a model reply. It returns nil
// when no Action section or no command token can be found; that is the
// defined degradation path for garbage output, not an error condition.
func (p *ResponseParser) ParseAction(response string) *ParsedAction {
	observation, ok := p.sections.extract(response, "Observation:", "Thought:")
	if !ok {
		observation = noObservation
	}
	thought, ok := p.sections.extract(response, "Thought:", "Action:")
	if !ok {
		thought = noThought
	}
	actionSection, ok := p.sections.extract(response, "Action:", "Summary:")
	if !ok {
		p.logger.Error("Model response has no Action section",
			zap.String("response", truncate(response, 400)))
		return nil
	}
	summary, ok := p.sections.extract(response, "Summary:")
	if !ok {
		summary = noSummary
	}

	// The action is the first line after the marker, shorn of markdown
	// backticks the model sometimes wraps commands in.
	actionLine := strings.Trim(firstLine(actionSection), "` ")
	if actionLine == "" {
		p.logger.Error("Model response Action section is empty")
		return nil
	}

	name, params := parseCommand(actionLine)
	if name == "" {
		p.logger.Error("Could not extract a command from action line",
			zap.String("action_line", actionLine))
		return nil
	}

	p.logger.Debug("Parsed model action",
		zap.String("action", name),
		zap.Any("params", params),
		zap.String("thought", truncate(thought, 200)))

	return &ParsedAction{
		Observation: observation,
		Thought:     thought,
		Name:        name,
		Params:      params,
		Summary:     summary,
	}
}

// parseCommand splits "name(args...)" into a lowercased name and typed
// parameters. A bare token with no parentheses is a parameterless command.
func parseCommand(line string) (string, []any) {
	m := commandRegex.FindStringSubmatch(line)
	if m == nil {
		name := strings.ToLower(strings.TrimSpace(line))
		if name == "" || strings.ContainsAny(name, "() ") {
			return "", nil
		}
		return name, nil
	}

	name := strings.ToLower(m[1])
	argsStr := strings.TrimSpace(m[2])
	if argsStr == "" {
		return name, nil
	}

	// Text payloads stay strings even when purely numeric; everything else
	// coerces numeric tokens to ints.
	coerce := name != "type_text"

	var params []any
	for _, raw := range strings.Split(argsStr, ",") {
		params = append(params, parseParam(raw, coerce))
	}
	return name, params
}

// parseParam normalizes one argument: optional "label:" prefix stripped,
// quotes and spaces stripped, then integer coercion when allowed.
func parseParam(raw string, coerce bool) any {
	tok := strings.TrimSpace(raw)
	if m := labelPrefixRegex.FindStringSubmatch(tok); m != nil {
		tok = m[1]
	}
	tok = strings.Trim(tok, ` '"`)
	if coerce {
		if n, err := strconv.Atoi(tok); err == nil {
			return n
		}
	}
	return tok
}

// ParseReflection extracts a reflection verdict. Decision and Thought are
// required; Documentation defaults to "N/A". Returns nil when the required
// sections are absent.
func (p *ResponseParser) ParseReflection(response string) *ReflectionVerdict {
	decisionStr, okDecision := p.sections.extract(response, "Decision:", "Thought:")
	thought, okThought := p.sections.extract(response, "Thought:", "Documentation:")
	if !okDecision || !okThought || decisionStr == "" || thought == "" {
		p.logger.Error("Could not parse Decision or Thought from reflection response")
		return nil
	}

	doc, ok := p.sections.extract(response, "Documentation:")
	if !ok || doc == "" {
		doc = noDoc
	}

	decision := Decision(strings.ToUpper(firstLine(decisionStr)))
	switch decision {
	case DecisionSuccess, DecisionContinue, DecisionIneffective, DecisionBack:
	default:
		// Fail-safe: an unrecognized verdict must never abort the round.
		p.logger.Warn("Invalid reflection decision, defaulting to CONTINUE",
			zap.String("decision", string(decision)))
		decision = DecisionContinue
	}

	return &ReflectionVerdict{
		Decision:      decision,
		Thought:       thought,
		Documentation: doc,
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
