// File: internal/agent/navigator_test.go
package agent

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/taskdroid-cli/internal/config"
	"github.com/xkilldash9x/taskdroid-cli/internal/ui"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const dumpWithElements = `<?xml version="1.0" encoding="UTF-8"?>
<hierarchy rotation="0">
  <node class="android.widget.FrameLayout" bounds="[0,0][1080,2400]" clickable="false" focusable="false">
    <node resource-id="com.app:id/login" class="android.widget.Button" text="Login"
          bounds="[100,200][300,260]" clickable="true" focusable="true" content-desc=""/>
    <node resource-id="com.app:id/search" class="android.widget.SearchView" text=""
          bounds="[100,400][900,480]" clickable="true" focusable="true" content-desc="Search"/>
  </node>
</hierarchy>`

const dumpWithoutElements = `<?xml version="1.0" encoding="UTF-8"?>
<hierarchy rotation="0">
  <node class="android.widget.FrameLayout" bounds="[0,0][1080,2400]" clickable="false" focusable="false"/>
</hierarchy>`

// navFixture bundles the mocks and a ready navigator for loop tests.
type navFixture struct {
	device    *MockDevice
	model     *MockModel
	annotator *MockAnnotator
	knowledge *MockKnowledge
	nav       *Navigator
}

func newNavFixture(t *testing.T, cfg *config.Config, dumpXML string) *navFixture {
	t.Helper()

	dir := t.TempDir()
	xmlPath := filepath.Join(dir, "dump.xml")
	require.NoError(t, os.WriteFile(xmlPath, []byte(dumpXML), 0o644))

	device := new(MockDevice)
	device.On("CaptureScreen", mock.Anything, mock.Anything, mock.Anything).
		Return(filepath.Join(dir, "shot.png"), nil).Maybe()
	device.On("GetUIDump", mock.Anything, mock.Anything, mock.Anything).
		Return(xmlPath, nil).Maybe()
	device.On("Cleanup", mock.Anything).Return(nil)

	model := new(MockModel)
	annotator := new(MockAnnotator)
	annotator.On("LabelElements", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()

	knowledge := new(MockKnowledge)
	knowledge.On("ReadDoc", mock.Anything).Return("", false).Maybe()
	knowledge.On("WriteSessionSummary", mock.Anything, mock.Anything).Return(nil)

	logger := zaptest.NewLogger(t)
	nav, err := NewNavigator(
		logger, cfg, "test-run", filepath.Join(dir, "session"), "test the app",
		device, model, annotator, knowledge,
		ui.NewExtractor(logger, cfg.Device.MinElementDist),
	)
	require.NoError(t, err)

	return &navFixture{device: device, model: model, annotator: annotator, knowledge: knowledge, nav: nav}
}

// fastConfig returns defaults with all waits zeroed so loop tests run fast.
func fastConfig() *config.Config {
	cfg := config.NewDefaultConfig()
	cfg.Agent.RequestInterval = 0
	cfg.Agent.InitialLoadDelay = 0
	cfg.Agent.InitialLoadRetries = 2
	return cfg
}

// promptContaining matches the model call whose prompt includes substr.
func promptContaining(substr string) any {
	return mock.MatchedBy(func(prompt string) bool {
		return strings.Contains(prompt, substr)
	})
}

func TestNavigatorRun_ExploreStopsAtRoundBudget(t *testing.T) {
	cfg := fastConfig()
	cfg.Agent.MaxExploreRounds = 3
	f := newNavFixture(t, cfg, dumpWithElements)

	f.model.On("GetResponse", mock.Anything, promptContaining("exploring an Android application"), mock.Anything).
		Return("Action: tap(1)\nSummary: tap the first element", nil)
	f.model.On("GetResponse", mock.Anything, promptContaining("reflect on the action"), mock.Anything).
		Return("Decision: CONTINUE\nThought: keep going", nil)
	f.device.On("Tap", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	require.NoError(t, f.nav.Run(context.Background(), ModeExplore))

	f.device.AssertNumberOfCalls(t, "Tap", 3)
	f.knowledge.AssertCalled(t, "WriteSessionSummary", "test-run", mock.Anything)
}

func TestNavigatorRun_TaskFinishesWhenSubGoalsComplete(t *testing.T) {
	cfg := fastConfig()
	cfg.Agent.MaxTaskRounds = 10
	f := newNavFixture(t, cfg, dumpWithElements)

	f.model.On("GetResponse", mock.Anything, promptContaining("planning module"), mock.Anything).
		Return(`Here is the plan:
["Tap the login button"]`, nil)
	f.model.On("GetResponse", mock.Anything, promptContaining("CURRENT SUB-GOAL"), mock.Anything).
		Return("Action: subgoal_complete()\nSummary: sub-goal already satisfied", nil)

	require.NoError(t, f.nav.Run(context.Background(), ModeTask))

	// One round marks the only sub-goal complete, the next round sees the
	// exhausted plan and finishes. No device action ever fires.
	f.device.AssertNotCalled(t, "Tap", mock.Anything, mock.Anything, mock.Anything)
	assert.Equal(t, 1, f.nav.subGoalIndex)
	assert.True(t, f.nav.taskComplete)
}

func TestNavigatorRun_DecompositionFallsBackToTaskDescription(t *testing.T) {
	cfg := fastConfig()
	cfg.Agent.MaxTaskRounds = 1
	f := newNavFixture(t, cfg, dumpWithElements)

	f.model.On("GetResponse", mock.Anything, promptContaining("planning module"), mock.Anything).
		Return("I cannot help with that.", nil)
	f.model.On("GetResponse", mock.Anything, promptContaining("CURRENT SUB-GOAL"), mock.Anything).
		Return("Action: FINISH\nSummary: done", nil)

	require.NoError(t, f.nav.Run(context.Background(), ModeTask))
	assert.Equal(t, []string{"test the app"}, f.nav.subGoals)
}

func TestNavigatorRun_GridModeIsOneShot(t *testing.T) {
	cfg := fastConfig()
	cfg.Agent.MaxExploreRounds = 5
	f := newNavFixture(t, cfg, dumpWithElements)

	// Round 1: request grid mode. Round 2: a grid tap. Round 3: finish.
	exploreCall := f.model.On("GetResponse", mock.Anything, promptContaining("exploring an Android application"), mock.Anything).
		Return("Action: grid()\nSummary: need the grid", nil).Once()
	f.model.On("GetResponse", mock.Anything, promptContaining("GRID MODE"), mock.Anything).
		Return("Action: tap_grid(1, center)\nSummary: tap top-left cell", nil).Once()
	f.model.On("GetResponse", mock.Anything, promptContaining("exploring an Android application"), mock.Anything).
		Return("Action: FINISH\nSummary: all done", nil).Once().NotBefore(exploreCall)
	f.model.On("GetResponse", mock.Anything, promptContaining("reflect on the action"), mock.Anything).
		Return("Decision: CONTINUE\nThought: fine", nil)

	f.annotator.On("DrawGrid", mock.Anything, mock.Anything).Return(5, 4, nil).Once()
	f.device.On("Width").Return(1080)
	f.device.On("Height").Return(2400)
	f.device.On("Tap", mock.Anything, 135, 240).Return(nil).Once()

	require.NoError(t, f.nav.Run(context.Background(), ModeExplore))

	f.annotator.AssertNumberOfCalls(t, "DrawGrid", 1)
	f.device.AssertNumberOfCalls(t, "Tap", 1)
	assert.False(t, f.nav.gridMode)
}

func TestNavigatorRun_AbortsWhenUIStaysEmpty(t *testing.T) {
	cfg := fastConfig()
	f := newNavFixture(t, cfg, dumpWithoutElements)

	err := f.nav.Run(context.Background(), ModeExplore)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no interactive elements")
	f.model.AssertNotCalled(t, "GetResponse", mock.Anything, mock.Anything, mock.Anything)
	// Cleanup still runs on the failure path.
	f.device.AssertCalled(t, "Cleanup", mock.Anything)
}

func TestNavigatorRun_ParseFailureConsumesRound(t *testing.T) {
	cfg := fastConfig()
	cfg.Agent.MaxExploreRounds = 2
	f := newNavFixture(t, cfg, dumpWithElements)

	f.model.On("GetResponse", mock.Anything, promptContaining("exploring an Android application"), mock.Anything).
		Return("complete gibberish with no sections", nil)

	require.NoError(t, f.nav.Run(context.Background(), ModeExplore))

	assert.Equal(t, 2, f.nav.roundCount)
	assert.Equal(t, "Failed to parse VLM response. Will retry.", f.nav.lastActionSummary)
	f.device.AssertNotCalled(t, "Tap", mock.Anything, mock.Anything, mock.Anything)
}

func TestNavigatorRun_ReflectionBackNavigatesBack(t *testing.T) {
	cfg := fastConfig()
	cfg.Agent.MaxExploreRounds = 1
	f := newNavFixture(t, cfg, dumpWithElements)

	f.model.On("GetResponse", mock.Anything, promptContaining("exploring an Android application"), mock.Anything).
		Return("Action: tap(1)\nSummary: tap login", nil)
	f.model.On("GetResponse", mock.Anything, promptContaining("reflect on the action"), mock.Anything).
		Return("Decision: BACK\nThought: wrong screen\nDocumentation: N/A", nil)
	f.device.On("Tap", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.device.On("Back", mock.Anything).Return(nil)

	require.NoError(t, f.nav.Run(context.Background(), ModeExplore))

	f.device.AssertCalled(t, "Back", mock.Anything)
	f.knowledge.AssertNotCalled(t, "WriteDoc", mock.Anything, mock.Anything)
}

func TestNavigatorRun_SuccessfulReflectionWritesDoc(t *testing.T) {
	cfg := fastConfig()
	cfg.Agent.MaxExploreRounds = 1
	f := newNavFixture(t, cfg, dumpWithElements)

	f.model.On("GetResponse", mock.Anything, promptContaining("exploring an Android application"), mock.Anything).
		Return("Action: tap(1)\nSummary: tap login", nil)
	f.model.On("GetResponse", mock.Anything, promptContaining("reflect on the action"), mock.Anything).
		Return("Decision: SUCCESS\nThought: logged in\nDocumentation: Opens the login flow.", nil)
	f.device.On("Tap", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	f.knowledge.On("WriteDoc", mock.Anything, "Opens the login flow.").Return(nil)

	require.NoError(t, f.nav.Run(context.Background(), ModeExplore))

	f.knowledge.AssertCalled(t, "WriteDoc", mock.Anything, "Opens the login flow.")
}

func TestNavigatorRun_CancellationStopsTheLoop(t *testing.T) {
	cfg := fastConfig()
	cfg.Agent.MaxExploreRounds = 100
	f := newNavFixture(t, cfg, dumpWithElements)

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	f.model.On("GetResponse", mock.Anything, promptContaining("exploring an Android application"), mock.Anything).
		Run(func(args mock.Arguments) {
			calls++
			if calls >= 2 {
				cancel()
			}
		}).
		Return("Action: tap(1)\nSummary: tapping", nil)
	f.model.On("GetResponse", mock.Anything, promptContaining("reflect on the action"), mock.Anything).
		Return("Decision: CONTINUE\nThought: ok", nil).Maybe()
	f.device.On("Tap", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()

	start := time.Now()
	err := f.nav.Run(ctx, ModeExplore)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 5*time.Second)
}
