// File: internal/agent/navigator.go
package agent

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/taskdroid-cli/internal/config"
	"github.com/xkilldash9x/taskdroid-cli/internal/ui"
)

// Agent modes. Task mode follows a decomposed plan toward a goal,
// explore mode wanders the app to build element documentation.
const (
	ModeTask    = "task"
	ModeExplore = "explore"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ModelClient is the slice of the VLM gateway the navigator needs.
type ModelClient interface {
	GetResponse(ctx context.Context, prompt string, imagePaths []string) (string, error)
}

// Annotator renders screenshots for the model: numeric labels over the
// current element set, or a numbered grid overlay.
type Annotator interface {
	LabelElements(srcPath, dstPath string, elements []ui.Element) error
	DrawGrid(srcPath, dstPath string) (rows, cols int, err error)
}

// KnowledgeStore persists what the agent learns about UI elements across
// sessions, plus per-run summaries.
type KnowledgeStore interface {
	ReadDoc(identifier string) (string, bool)
	WriteDoc(identifier, doc string) error
	WriteSessionSummary(runID string, summary any) error
}

// SessionSummary is the per-run record written on shutdown.
type SessionSummary struct {
	RunID      string    `json:"run_id"`
	Mode       string    `json:"mode"`
	Task       string    `json:"task"`
	Rounds     int       `json:"rounds"`
	SubGoals   []string  `json:"sub_goals,omitempty"`
	Completed  bool      `json:"completed"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// subGoalListRegex pulls the JSON array out of a decomposition response,
// tolerating prose around it.
var subGoalListRegex = regexp.MustCompile(`(?s)\[.*\]`)

// Navigator drives the observe/decide/act/reflect loop against a device.
type Navigator struct {
	logger     *zap.Logger
	cfg        *config.Config
	device     DeviceDriver
	model      ModelClient
	parser     *ResponseParser
	dispatcher *Dispatcher
	annotator  Annotator
	knowledge  KnowledgeStore
	extractor  *ui.Extractor

	runID    string
	taskDesc string

	screenshotDir string
	xmlDir        string

	roundCount        int
	lastActionSummary string
	taskComplete      bool

	subGoals     []string
	subGoalIndex int

	// gridMode holds for exactly one round; any grid action clears it.
	gridMode bool
	grid     GridState
}

// NewNavigator wires a navigator and creates its per-run working
// directories under taskDir.
func NewNavigator(
	logger *zap.Logger,
	cfg *config.Config,
	runID string,
	taskDir string,
	taskDesc string,
	device DeviceDriver,
	model ModelClient,
	annotator Annotator,
	knowledge KnowledgeStore,
	extractor *ui.Extractor,
) (*Navigator, error) {
	screenshotDir := filepath.Join(taskDir, "screenshots")
	xmlDir := filepath.Join(taskDir, "xmls")
	for _, dir := range []string{screenshotDir, xmlDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating session directory %s: %w", dir, err)
		}
	}

	log := logger.Named("navigator")
	return &Navigator{
		logger:            log,
		cfg:               cfg,
		device:            device,
		model:             model,
		parser:            NewResponseParser(logger),
		dispatcher:        NewDispatcher(logger, device),
		annotator:         annotator,
		knowledge:         knowledge,
		extractor:         extractor,
		runID:             runID,
		taskDesc:          taskDesc,
		screenshotDir:     screenshotDir,
		xmlDir:            xmlDir,
		lastActionSummary: "None",
	}, nil
}

// Run executes the agent loop in the given mode until the task completes,
// the round budget runs out or the context is canceled. Session files are
// cleaned up and a summary is persisted regardless of outcome.
func (n *Navigator) Run(ctx context.Context, mode string) error {
	startedAt := time.Now()
	defer n.finalize(mode, startedAt)

	maxRounds := n.cfg.RoundBudget(mode)

	if mode == ModeTask {
		n.decomposeTask(ctx)
		if len(n.subGoals) == 0 {
			return fmt.Errorf("could not build a sub-goal plan for the task")
		}
	}

	n.logger.Info("Starting navigation",
		zap.String("mode", strings.ToUpper(mode)),
		zap.Int("max_rounds", maxRounds))

	screenshotPath, xmlPath, elements, err := n.awaitInitialUI(ctx)
	if err != nil {
		return err
	}

	for n.roundCount < maxRounds && !n.taskComplete {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n.roundCount++
		n.logger.Info("--- Round ---",
			zap.Int("round", n.roundCount), zap.Int("max_rounds", maxRounds))

		// Round 1 reuses the state captured while waiting for the UI.
		if n.roundCount > 1 {
			prefix := fmt.Sprintf("%d_%d", n.roundCount, time.Now().Unix())
			screenshotPath, err = n.device.CaptureScreen(ctx, prefix, n.screenshotDir)
			if err == nil {
				xmlPath, err = n.device.GetUIDump(ctx, prefix, n.xmlDir)
			}
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				n.logger.Error("Failed to capture screen state, skipping round", zap.Error(err))
				continue
			}
			elements, err = n.extractor.ExtractFile(xmlPath)
			if err != nil {
				n.logger.Error("Failed to parse UI dump, skipping round", zap.Error(err))
				continue
			}
		}

		currentSubGoal := "Explore freely."
		if mode == ModeTask {
			if n.subGoalIndex >= len(n.subGoals) {
				n.logger.Info("All sub-goals completed, finishing task")
				n.taskComplete = true
				break
			}
			currentSubGoal = n.subGoals[n.subGoalIndex]
		}

		annotatedPath := annotatedName(screenshotPath)

		var action *ParsedAction
		if n.gridMode {
			action = n.gridRound(ctx, screenshotPath, annotatedPath)
		} else {
			action = n.labeledRound(ctx, mode, currentSubGoal, screenshotPath, annotatedPath, elements)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if action == nil {
			n.lastActionSummary = "Failed to parse VLM response. Will retry."
			continue
		}
		n.lastActionSummary = action.Summary
		kind := KindOf(action.Name)

		// Meta-actions mutate loop state and never reach the device.
		switch kind {
		case ActionFinish:
			n.taskComplete = true
			continue
		case ActionSubgoalComplete:
			n.logger.Info("Sub-goal marked complete", zap.String("sub_goal", currentSubGoal))
			n.subGoalIndex++
			n.sleep(ctx, time.Second)
			continue
		case ActionGrid:
			if !n.gridMode {
				n.logger.Info("Switching to grid mode for the next round")
				n.gridMode = true
				continue
			}
		}

		wasGridRound := n.gridMode
		result, err := n.dispatcher.Dispatch(ctx, action, elements, n.grid)
		if wasGridRound {
			// Grid mode is one-shot: a single action, then back to labels.
			n.gridMode = false
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			n.logger.Error("Device action failed", zap.String("action", action.Name), zap.Error(err))
			continue
		}
		if result.Finished {
			n.taskComplete = true
			continue
		}

		n.sleep(ctx, n.cfg.Agent.RequestInterval)

		if !kind.SkipsReflection() {
			afterPrefix := fmt.Sprintf("%d_%d_after", n.roundCount, time.Now().Unix())
			afterPath, err := n.device.CaptureScreen(ctx, afterPrefix, n.screenshotDir)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				n.logger.Warn("Could not capture post-action screenshot, skipping reflection", zap.Error(err))
				continue
			}
			n.reflectAndDocument(ctx, annotatedPath, afterPath, result.InteractedID)
		}
	}

	if n.taskComplete {
		n.logger.Info("Navigation finished", zap.Int("rounds", n.roundCount))
	} else {
		n.logger.Warn("Round budget exhausted before completion", zap.Int("rounds", n.roundCount))
	}
	return nil
}

// decomposeTask asks the model for a sub-goal plan. Any failure falls back
// to treating the whole task description as a single sub-goal.
func (n *Navigator) decomposeTask(ctx context.Context) {
	n.logger.Info("Decomposing task into sub-goals")
	response, err := n.model.GetResponse(ctx, decompositionPrompt(n.taskDesc), nil)
	if err != nil {
		n.logger.Error("VLM call failed during sub-goal decomposition", zap.Error(err))
		n.subGoals = []string{n.taskDesc}
		return
	}

	match := subGoalListRegex.FindString(response)
	if match == "" {
		n.logger.Error("No sub-goal list found in decomposition response")
		n.subGoals = []string{n.taskDesc}
		return
	}
	var goals []string
	if err := json.UnmarshalFromString(match, &goals); err != nil || len(goals) == 0 {
		n.logger.Error("Failed to parse sub-goal list", zap.Error(err))
		n.subGoals = []string{n.taskDesc}
		return
	}

	n.subGoals = goals
	n.logger.Info("Task decomposed", zap.Int("sub_goals", len(goals)))
	for i, goal := range goals {
		n.logger.Info("Sub-goal", zap.Int("index", i+1), zap.String("goal", goal))
	}
}

// awaitInitialUI polls the device until interactive elements appear, bounded
// by the configured retry budget. Some apps take a few seconds to draw their
// first real frame.
func (n *Navigator) awaitInitialUI(ctx context.Context) (screenshotPath, xmlPath string, elements []ui.Element, err error) {
	retries := n.cfg.Agent.InitialLoadRetries
	for attempt := 1; attempt <= retries; attempt++ {
		if ctx.Err() != nil {
			return "", "", nil, ctx.Err()
		}
		prefix := fmt.Sprintf("0_init_attempt_%d", attempt)

		screenshotPath, err = n.device.CaptureScreen(ctx, prefix, n.screenshotDir)
		if err == nil {
			xmlPath, err = n.device.GetUIDump(ctx, prefix, n.xmlDir)
		}
		if err == nil {
			elements, err = n.extractor.ExtractFile(xmlPath)
			if err == nil && len(elements) > 0 {
				n.logger.Info("Found interactive elements, proceeding",
					zap.Int("elements", len(elements)))
				return screenshotPath, xmlPath, elements, nil
			}
		}

		n.logger.Warn("No interactive elements found yet, retrying",
			zap.Int("attempt", attempt), zap.Duration("delay", n.cfg.Agent.InitialLoadDelay),
			zap.Error(err))
		n.sleep(ctx, n.cfg.Agent.InitialLoadDelay)
	}
	return "", "", nil, fmt.Errorf("no interactive elements found after %d attempts", retries)
}

// labeledRound renders the numbered-label screenshot, queries the model and
// parses its action. Returns nil when anything about the exchange failed.
func (n *Navigator) labeledRound(ctx context.Context, mode, currentSubGoal, screenshotPath, annotatedPath string, elements []ui.Element) *ParsedAction {
	n.logger.Info("Operating in labeled element mode", zap.Int("elements", len(elements)))

	if err := n.annotator.LabelElements(screenshotPath, annotatedPath, elements); err != nil {
		n.logger.Error("Failed to annotate screenshot", zap.Error(err))
		return nil
	}

	var prompt string
	if mode == ModeExplore {
		prompt = explorationPrompt(n.taskDesc, n.formatDocumentation(elements), n.lastActionSummary)
	} else {
		prompt = taskPrompt(n.taskDesc, n.subGoals, n.subGoalIndex, formatElementList(elements), n.lastActionSummary)
	}

	response, err := n.model.GetResponse(ctx, prompt, []string{annotatedPath})
	if err != nil {
		n.logger.Error("VLM call failed", zap.Error(err))
		return nil
	}
	return n.parser.ParseAction(response)
}

// gridRound overlays the grid, records its geometry for dispatch and asks
// the model for a grid command.
func (n *Navigator) gridRound(ctx context.Context, screenshotPath, annotatedPath string) *ParsedAction {
	n.logger.Info("Operating in grid mode")

	rows, cols, err := n.annotator.DrawGrid(screenshotPath, annotatedPath)
	if err != nil {
		n.logger.Error("Failed to draw grid overlay", zap.Error(err))
		return nil
	}
	n.grid = GridState{Rows: rows, Cols: cols}

	response, err := n.model.GetResponse(ctx, gridPrompt(n.taskDesc, n.lastActionSummary), []string{annotatedPath})
	if err != nil {
		n.logger.Error("VLM call failed", zap.Error(err))
		return nil
	}
	return n.parser.ParseAction(response)
}

// reflectAndDocument shows the model the before and after screenshots,
// applies its verdict and persists element documentation when warranted.
func (n *Navigator) reflectAndDocument(ctx context.Context, beforePath, afterPath, interactedID string) {
	response, err := n.model.GetResponse(ctx, reflectionPrompt(n.taskDesc, n.lastActionSummary), []string{beforePath, afterPath})
	if err != nil {
		n.logger.Warn("VLM call failed during reflection", zap.Error(err))
		return
	}
	verdict := n.parser.ParseReflection(response)
	if verdict == nil {
		return
	}
	n.logger.Info("Reflection verdict",
		zap.String("decision", string(verdict.Decision)),
		zap.String("thought", verdict.Thought))

	if verdict.Decision == DecisionBack {
		if err := n.device.Back(ctx); err != nil {
			n.logger.Warn("Failed to navigate back after reflection", zap.Error(err))
		}
	}

	if verdict.Documentation != noDoc && interactedID != "" && verdict.Decision != DecisionIneffective {
		if err := n.knowledge.WriteDoc(interactedID, verdict.Documentation); err != nil {
			n.logger.Warn("Failed to persist element documentation",
				zap.String("element", interactedID), zap.Error(err))
		} else {
			n.logger.Info("Documentation recorded", zap.String("element", interactedID))
		}
	}
}

// formatDocumentation assembles the knowledge-base excerpt for the
// exploration prompt from the docs of the on-screen elements.
func (n *Navigator) formatDocumentation(elements []ui.Element) string {
	var b strings.Builder
	for i, elem := range elements {
		doc, ok := n.knowledge.ReadDoc(elem.Identifier)
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "- element_id %d: %s\n", i+1, doc)
	}
	if b.Len() == 0 {
		return "No documentation available."
	}
	return strings.TrimRight(b.String(), "\n")
}

// formatElementList renders the element roster shown to the model. Indices
// are 1-based to match the labels painted on the screenshot.
func formatElementList(elements []ui.Element) string {
	if len(elements) == 0 {
		return "No interactive elements were found on the screen."
	}
	var b strings.Builder
	for i, elem := range elements {
		fmt.Fprintf(&b, "- element_id: %d", i+1)
		if elem.Text != "" {
			fmt.Fprintf(&b, ", text: %q", elem.Text)
		}
		fmt.Fprintf(&b, ", attributes: %s, uid: %s\n", elem.AttributeList(), elem.Identifier)
	}
	return strings.TrimRight(b.String(), "\n")
}

// finalize removes session artifacts, asks the device to drop its scratch
// directory and records the run summary. Called from Run via defer.
func (n *Navigator) finalize(mode string, startedAt time.Time) {
	n.logger.Info("Cleaning up session files")
	for _, dir := range []string{n.screenshotDir, n.xmlDir} {
		if err := os.RemoveAll(dir); err != nil {
			n.logger.Error("Error during local cleanup", zap.String("dir", dir), zap.Error(err))
		}
	}

	// A fresh context: the run context may already be canceled.
	cleanupCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := n.device.Cleanup(cleanupCtx); err != nil {
		n.logger.Warn("Device cleanup failed", zap.Error(err))
	}

	summary := SessionSummary{
		RunID:      n.runID,
		Mode:       mode,
		Task:       n.taskDesc,
		Rounds:     n.roundCount,
		SubGoals:   n.subGoals,
		Completed:  n.taskComplete,
		StartedAt:  startedAt,
		FinishedAt: time.Now(),
	}
	if err := n.knowledge.WriteSessionSummary(n.runID, summary); err != nil {
		n.logger.Warn("Failed to write session summary", zap.Error(err))
	}
}

// sleep waits for d or until the context is canceled.
func (n *Navigator) sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

// annotatedName derives the annotated screenshot path from the raw one.
func annotatedName(screenshotPath string) string {
	ext := filepath.Ext(screenshotPath)
	return strings.TrimSuffix(screenshotPath, ext) + "_annotated.png"
}
