// File: internal/agent/dispatcher.go
package agent

import (
	"context"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/taskdroid-cli/internal/ui"
)

// DeviceDriver is the device contract the agent consumes. The concrete
// implementation lives in internal/device; tests substitute a mock.
type DeviceDriver interface {
	Width() int
	Height() int

	CaptureScreen(ctx context.Context, prefix, localDir string) (string, error)
	GetUIDump(ctx context.Context, prefix, localDir string) (string, error)

	Tap(ctx context.Context, x, y int) error
	LongPress(ctx context.Context, x, y int, duration time.Duration) error
	Swipe(ctx context.Context, x0, y0, x1, y1 int, duration time.Duration) error
	SwipeScreen(ctx context.Context, direction string, distanceRatio float64) error
	TypeText(ctx context.Context, text string) error
	Back(ctx context.Context) error
	Enter(ctx context.Context) error
	DeleteMultiple(ctx context.Context, count int) error

	Cleanup(ctx context.Context) error
}

// GridState carries the active grid geometry for grid-mode rounds.
type GridState struct {
	Rows int
	Cols int
}

// DispatchResult reports what a dispatch did: the identifier of the element
// interacted with (empty when none), the resolved 1-based element index
// (-1 when none) and whether the action was the terminal finish.
type DispatchResult struct {
	InteractedID string
	ElementIndex int
	Finished     bool
}

// Dispatcher maps parsed actions onto device operations. Invalid input
// (unknown action, bad index, empty text) is logged and skipped without a
// device call; dispatch never fails the round for the model's mistakes.
type Dispatcher struct {
	logger *zap.Logger
	device DeviceDriver
}

// NewDispatcher creates a Dispatcher around the given device.
func NewDispatcher(logger *zap.Logger, device DeviceDriver) *Dispatcher {
	return &Dispatcher{
		logger: logger.Named("dispatcher"),
		device: device,
	}
}

// Dispatch executes one parsed action against the current element set. At
// most one device operation happens per call. Errors are only returned for
// device I/O failures and context cancellation, never for model mistakes.
func (d *Dispatcher) Dispatch(ctx context.Context, action *ParsedAction, elements []ui.Element, grid GridState) (DispatchResult, error) {
	none := DispatchResult{ElementIndex: -1}
	kind := KindOf(action.Name)

	// Element-index resolution happens before logging or executing so the
	// warning about an invalid index precedes any attempted device call.
	var target *ui.Element
	targetIdx := -1
	switch kind {
	case ActionTap, ActionLongPress, ActionSwipeElement:
		var ok bool
		target, targetIdx, ok = d.resolveElement(action, elements)
		if !ok {
			return none, nil
		}
	}

	switch kind {
	case ActionTap:
		x, y := target.Bounds.Center()
		d.logAction(action, zap.Int("element", targetIdx))
		if err := d.device.Tap(ctx, x, y); err != nil {
			return none, err
		}
		return DispatchResult{InteractedID: target.Identifier, ElementIndex: targetIdx}, nil

	case ActionLongPress:
		x, y := target.Bounds.Center()
		d.logAction(action, zap.Int("element", targetIdx))
		if err := d.device.LongPress(ctx, x, y, time.Second); err != nil {
			return none, err
		}
		return DispatchResult{InteractedID: target.Identifier, ElementIndex: targetIdx}, nil

	case ActionSwipeElement:
		direction := stringParam(action.Params, 1)
		distance := stringParam(action.Params, 2)
		x, y := target.Bounds.Center()
		x1, y1 := swipeEndpoint(x, y, direction, distance, d.device.Width(), d.device.Height())
		d.logAction(action, zap.Int("element", targetIdx), zap.String("direction", direction))
		if err := d.device.Swipe(ctx, x, y, x1, y1, 400*time.Millisecond); err != nil {
			return none, err
		}
		return DispatchResult{InteractedID: target.Identifier, ElementIndex: targetIdx}, nil

	case ActionSwipeScreen:
		direction := stringParam(action.Params, 0)
		d.logAction(action, zap.String("direction", direction))
		if err := d.device.SwipeScreen(ctx, direction, 0.5); err != nil {
			return none, err
		}
		return none, nil

	case ActionTypeText:
		text := stringParam(action.Params, 0)
		if text == "" {
			d.logger.Warn("type_text called with no text, skipping")
			return none, nil
		}
		d.logAction(action)
		if err := d.device.TypeText(ctx, text); err != nil {
			return none, err
		}
		return none, nil

	case ActionWait:
		seconds, ok := intParam(action.Params, 0)
		if !ok || seconds <= 0 {
			seconds = 3
		}
		d.logAction(action, zap.Int("seconds", seconds))
		select {
		case <-ctx.Done():
			return none, ctx.Err()
		case <-time.After(time.Duration(seconds) * time.Second):
		}
		return none, nil

	case ActionGoBack:
		d.logAction(action)
		if err := d.device.Back(ctx); err != nil {
			return none, err
		}
		return none, nil

	case ActionPressEnter:
		d.logAction(action)
		if err := d.device.Enter(ctx); err != nil {
			return none, err
		}
		return none, nil

	case ActionDeleteMultiple:
		count, ok := intParam(action.Params, 0)
		if !ok || count <= 0 {
			d.logger.Warn("delete_multiple called without a positive count, skipping")
			return none, nil
		}
		d.logAction(action, zap.Int("count", count))
		if err := d.device.DeleteMultiple(ctx, count); err != nil {
			return none, err
		}
		return none, nil

	case ActionFinish:
		d.logAction(action)
		return DispatchResult{ElementIndex: -1, Finished: true}, nil

	case ActionGrid, ActionSubgoalComplete:
		// Loop-state actions are the navigator's business; reaching the
		// dispatcher with one is a no-op.
		return none, nil

	case ActionTapGrid:
		x, y, ok := d.resolveGridPoint(action.Params, 0, grid)
		if !ok {
			return none, nil
		}
		d.logAction(action, zap.Int("x", x), zap.Int("y", y))
		if err := d.device.Tap(ctx, x, y); err != nil {
			return none, err
		}
		return none, nil

	case ActionLongPressGrid:
		x, y, ok := d.resolveGridPoint(action.Params, 0, grid)
		if !ok {
			return none, nil
		}
		d.logAction(action, zap.Int("x", x), zap.Int("y", y))
		if err := d.device.LongPress(ctx, x, y, time.Second); err != nil {
			return none, err
		}
		return none, nil

	case ActionSwipeGrid:
		x0, y0, ok0 := d.resolveGridPoint(action.Params, 0, grid)
		x1, y1, ok1 := d.resolveGridPoint(action.Params, 2, grid)
		if !ok0 || !ok1 {
			return none, nil
		}
		d.logAction(action)
		if err := d.device.Swipe(ctx, x0, y0, x1, y1, 400*time.Millisecond); err != nil {
			return none, err
		}
		return none, nil

	case ActionUnknown:
		d.logger.Error("Unknown action requested by model", zap.String("action", action.Name))
		return none, nil
	}

	return none, nil
}

// resolveElement validates a 1-based element index argument against the
// current element list.
func (d *Dispatcher) resolveElement(action *ParsedAction, elements []ui.Element) (*ui.Element, int, bool) {
	if len(elements) == 0 {
		d.logger.Warn("Action requires an element but none are available",
			zap.String("action", action.Name))
		return nil, -1, false
	}
	idx, ok := intParam(action.Params, 0)
	if !ok {
		d.logger.Warn("Action is missing its element index",
			zap.String("action", action.Name), zap.Any("params", action.Params))
		return nil, -1, false
	}
	if idx < 1 || idx > len(elements) {
		d.logger.Warn("Action called with invalid element index",
			zap.String("action", action.Name), zap.Int("index", idx), zap.Int("elements", len(elements)))
		return nil, -1, false
	}
	return &elements[idx-1], idx, true
}

// subareaOffsets maps a subarea name to fractional offsets inside one grid
// cell. Unknown names fall back to center.
var subareaOffsets = map[string][2]float64{
	"center":       {0.5, 0.5},
	"top-left":     {0.25, 0.25},
	"top":          {0.5, 0.25},
	"top-right":    {0.75, 0.25},
	"left":         {0.25, 0.5},
	"right":        {0.75, 0.5},
	"bottom-left":  {0.25, 0.75},
	"bottom":       {0.5, 0.75},
	"bottom-right": {0.75, 0.75},
}

// resolveGridPoint converts an (area, subarea) parameter pair starting at
// offset into absolute screen coordinates.
func (d *Dispatcher) resolveGridPoint(params []any, offset int, grid GridState) (int, int, bool) {
	if grid.Rows <= 0 || grid.Cols <= 0 {
		d.logger.Error("Grid dimensions are not set, cannot resolve grid action")
		return 0, 0, false
	}
	area, ok := intParam(params, offset)
	if !ok || area < 1 || area > grid.Rows*grid.Cols {
		d.logger.Warn("Grid action called with invalid area",
			zap.Any("params", params), zap.Int("cells", grid.Rows*grid.Cols))
		return 0, 0, false
	}
	subarea := strings.ToLower(stringParam(params, offset+1))

	row := (area - 1) / grid.Cols
	col := (area - 1) % grid.Cols
	cellW := float64(d.device.Width()) / float64(grid.Cols)
	cellH := float64(d.device.Height()) / float64(grid.Rows)

	frac, ok := subareaOffsets[subarea]
	if !ok {
		frac = subareaOffsets["center"]
	}
	x := int(float64(col)*cellW + cellW*frac[0])
	y := int(float64(row)*cellH + cellH*frac[1])
	return x, y, true
}

// swipeEndpoint computes the end of an element swipe. Distance is one of
// short/medium/long expressed as a fraction of the screen dimension.
func swipeEndpoint(x, y int, direction, distance string, width, height int) (int, int) {
	ratio := 0.3
	switch strings.ToLower(distance) {
	case "short":
		ratio = 0.15
	case "long":
		ratio = 0.5
	}
	dx := int(float64(width) * ratio)
	dy := int(float64(height) * ratio)

	switch strings.ToLower(direction) {
	case "up":
		return x, y - dy
	case "down":
		return x, y + dy
	case "left":
		return x - dx, y
	case "right":
		return x + dx, y
	default:
		return x, y
	}
}

func (d *Dispatcher) logAction(action *ParsedAction, fields ...zap.Field) {
	fields = append([]zap.Field{zap.String("action", action.Name)}, fields...)
	d.logger.Info("Executing model action", fields...)
}

// intParam fetches params[i] as an int.
func intParam(params []any, i int) (int, bool) {
	if i >= len(params) {
		return 0, false
	}
	n, ok := params[i].(int)
	return n, ok
}

// stringParam fetches params[i] as a string, rendering ints through their
// decimal form so loosely typed arguments still work.
func stringParam(params []any, i int) string {
	if i >= len(params) {
		return ""
	}
	switch v := params[i].(type) {
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	default:
		return ""
	}
}
