// File: internal/agent/mocks_test.go
package agent

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/taskdroid-cli/internal/ui"
)

// -- Device Mock --

// MockDevice mocks the DeviceDriver interface.
type MockDevice struct {
	mock.Mock
}

func (m *MockDevice) Width() int {
	return m.Called().Int(0)
}

func (m *MockDevice) Height() int {
	return m.Called().Int(0)
}

func (m *MockDevice) CaptureScreen(ctx context.Context, prefix, localDir string) (string, error) {
	args := m.Called(ctx, prefix, localDir)
	return args.String(0), args.Error(1)
}

func (m *MockDevice) GetUIDump(ctx context.Context, prefix, localDir string) (string, error) {
	args := m.Called(ctx, prefix, localDir)
	return args.String(0), args.Error(1)
}

func (m *MockDevice) Tap(ctx context.Context, x, y int) error {
	return m.Called(ctx, x, y).Error(0)
}

func (m *MockDevice) LongPress(ctx context.Context, x, y int, duration time.Duration) error {
	return m.Called(ctx, x, y, duration).Error(0)
}

func (m *MockDevice) Swipe(ctx context.Context, x0, y0, x1, y1 int, duration time.Duration) error {
	return m.Called(ctx, x0, y0, x1, y1, duration).Error(0)
}

func (m *MockDevice) SwipeScreen(ctx context.Context, direction string, distanceRatio float64) error {
	return m.Called(ctx, direction, distanceRatio).Error(0)
}

func (m *MockDevice) TypeText(ctx context.Context, text string) error {
	return m.Called(ctx, text).Error(0)
}

func (m *MockDevice) Back(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockDevice) Enter(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *MockDevice) DeleteMultiple(ctx context.Context, count int) error {
	return m.Called(ctx, count).Error(0)
}

func (m *MockDevice) Cleanup(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// -- Model Client Mock --

// MockModel mocks the ModelClient interface.
type MockModel struct {
	mock.Mock
}

func (m *MockModel) GetResponse(ctx context.Context, prompt string, imagePaths []string) (string, error) {
	args := m.Called(ctx, prompt, imagePaths)
	return args.String(0), args.Error(1)
}

// -- Annotator Mock --

// MockAnnotator mocks the Annotator interface.
type MockAnnotator struct {
	mock.Mock
}

func (m *MockAnnotator) LabelElements(srcPath, dstPath string, elements []ui.Element) error {
	return m.Called(srcPath, dstPath, elements).Error(0)
}

func (m *MockAnnotator) DrawGrid(srcPath, dstPath string) (int, int, error) {
	args := m.Called(srcPath, dstPath)
	return args.Int(0), args.Int(1), args.Error(2)
}

// -- Knowledge Store Mock --

// MockKnowledge mocks the KnowledgeStore interface.
type MockKnowledge struct {
	mock.Mock
}

func (m *MockKnowledge) ReadDoc(identifier string) (string, bool) {
	args := m.Called(identifier)
	return args.String(0), args.Bool(1)
}

func (m *MockKnowledge) WriteDoc(identifier, doc string) error {
	return m.Called(identifier, doc).Error(0)
}

func (m *MockKnowledge) WriteSessionSummary(runID string, summary any) error {
	return m.Called(runID, summary).Error(0)
}
