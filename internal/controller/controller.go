package controller

import (
	"context"
	"fmt"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/pdellibergoli/ai-test-automation/internal/agent/actions"
)

// CapabilityDevice is the capability identifier under which the target
// device handle is injected into action handlers.
const CapabilityDevice = "device"

// Controller owns the catalog of standard device actions. It registers
// the default action pack at construction; callers may add custom
// actions through Register before handing the catalog to a dispatcher.
type Controller struct {
	logger  *zap.Logger
	catalog *actions.Catalog
}

// Option configures a Controller.
type Option func(*options)

type options struct {
	exclude []string
}

// WithExcludedActions suppresses registration of the named default
// actions.
func WithExcludedActions(names ...string) Option {
	return func(o *options) {
		o.exclude = append(o.exclude, names...)
	}
}

// New creates a Controller with the default action pack registered.
func New(logger *zap.Logger, opts ...Option) (*Controller, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	c := &Controller{
		logger:  logger.Named("controller"),
		catalog: actions.NewCatalog(logger, actions.WithExcludedActions(o.exclude...)),
	}
	if err := c.registerDefaults(); err != nil {
		return nil, fmt.Errorf("failed to register default actions: %w", err)
	}
	return c, nil
}

// Catalog exposes the underlying action catalog.
func (c *Controller) Catalog() *actions.Catalog { return c.catalog }

// Register adds a custom action to the catalog.
func (c *Controller) Register(schema actions.ActionSchema, handler actions.Handler) error {
	return c.catalog.Register(schema, handler)
}

// device extracts the injected Device handle. The dispatcher guarantees
// presence; the type assertion guards against a miswired capability map.
func device(caps actions.Capabilities) (Device, error) {
	dev, ok := caps.Get(CapabilityDevice).(Device)
	if !ok {
		return nil, fmt.Errorf("capability %q does not implement Device", CapabilityDevice)
	}
	return dev, nil
}

// failure builds the outcome for a failed action, keeping the error text
// in long-term memory the way the legacy action pack did.
func failure(msg string) actions.Outcome {
	return actions.Outcome{Success: false, Error: msg, LongTermMemory: msg}
}

// success builds the outcome for a completed action.
func success(content, memory string) actions.Outcome {
	return actions.Outcome{Success: true, ExtractedContent: content, LongTermMemory: memory}
}

func (c *Controller) registerDefaults() error {
	type entry struct {
		schema  actions.ActionSchema
		handler actions.Handler
	}
	pack := []entry{
		{
			schema: actions.ActionSchema{
				Name:        "done",
				Description: "Complete task - with return text and if the task is finished (success=true) or not yet completely finished (success=false)",
				Params: actions.ParameterSchema{
					{Name: "text", Type: actions.ParamString, Required: true},
					{Name: "success", Type: actions.ParamBool, Default: true},
				},
			},
			handler: c.handleDone,
		},
		{
			schema: actions.ActionSchema{
				Name:        "tap_element",
				Description: "Tap an element by its index - DO NOT use this for text input fields, use enter_text instead",
				Params: actions.ParameterSchema{
					{Name: "index", Type: actions.ParamInt, Required: true},
				},
				Capabilities: []string{CapabilityDevice},
			},
			handler: c.handleTapElement,
		},
		{
			schema: actions.ActionSchema{
				Name:        "enter_text",
				Description: "Input text into an interactive element by its index",
				Params: actions.ParameterSchema{
					{Name: "index", Type: actions.ParamInt, Required: true},
					{Name: "text", Type: actions.ParamString, Required: true},
				},
				Capabilities: []string{CapabilityDevice},
			},
			handler: c.handleEnterText,
		},
		{
			schema: actions.ActionSchema{
				Name:        "scroll_into_view",
				Description: "If you dont find something which you want to interact with, scroll to it",
				Params: actions.ParameterSchema{
					{Name: "index", Type: actions.ParamInt, Required: true},
				},
				Capabilities: []string{CapabilityDevice},
			},
			handler: c.handleScrollIntoView,
		},
		{
			schema: actions.ActionSchema{
				Name:        "scroll_down",
				Description: "Scroll down the page by pixel amount - if none is given, scroll one page",
				Params: actions.ParameterSchema{
					{Name: "amount", Type: actions.ParamInt},
				},
				Capabilities: []string{CapabilityDevice},
			},
			handler: scrollHandler(ScrollDown),
		},
		{
			schema: actions.ActionSchema{
				Name:        "scroll_up",
				Description: "Scroll up the page by pixel amount - if none is given, scroll one page",
				Params: actions.ParameterSchema{
					{Name: "amount", Type: actions.ParamInt},
				},
				Capabilities: []string{CapabilityDevice},
			},
			handler: scrollHandler(ScrollUp),
		},
		{
			schema: actions.ActionSchema{
				Name:        "get_app_state",
				Description: "Get the current application state with all interactive elements",
				Capabilities: []string{CapabilityDevice},
			},
			handler: c.handleGetAppState,
		},
		{
			schema: actions.ActionSchema{
				Name:        "send_keys",
				Description: "Send keyboard keys (Enter, Delete, Backspace, etc.) - useful for navigation and completing text input",
				Params: actions.ParameterSchema{
					{Name: "keys", Type: actions.ParamString, Required: true},
				},
				Capabilities: []string{CapabilityDevice},
			},
			handler: c.handleSendKeys,
		},
		{
			schema: actions.ActionSchema{
				Name:        "swipe_coordinates",
				Description: "Perform a swipe gesture from start coordinates to end coordinates",
				Params: actions.ParameterSchema{
					{Name: "start_x", Type: actions.ParamInt, Required: true},
					{Name: "start_y", Type: actions.ParamInt, Required: true},
					{Name: "end_x", Type: actions.ParamInt, Required: true},
					{Name: "end_y", Type: actions.ParamInt, Required: true},
					{Name: "duration", Type: actions.ParamInt, Default: 300},
				},
				Capabilities: []string{CapabilityDevice},
			},
			handler: c.handleSwipe,
		},
		{
			schema: actions.ActionSchema{
				Name:        "pinch_gesture",
				Description: "Perform a pinch gesture (pinch in/out) at specified coordinates",
				Params: actions.ParameterSchema{
					{Name: "center_x", Type: actions.ParamInt, Required: true},
					{Name: "center_y", Type: actions.ParamInt, Required: true},
					{Name: "percent", Type: actions.ParamInt, Default: 50},
				},
				Capabilities: []string{CapabilityDevice},
			},
			handler: c.handlePinch,
		},
		{
			schema: actions.ActionSchema{
				Name:        "long_press_coordinates",
				Description: "Perform a long press gesture at specific coordinates",
				Params: actions.ParameterSchema{
					{Name: "x", Type: actions.ParamInt, Required: true},
					{Name: "y", Type: actions.ParamInt, Required: true},
					{Name: "duration", Type: actions.ParamInt, Default: 1000},
				},
				Capabilities: []string{CapabilityDevice},
			},
			handler: c.handleLongPress,
		},
		{
			schema: actions.ActionSchema{
				Name:        "drag_and_drop_coordinates",
				Description: "Perform a drag and drop gesture from start coordinates to end coordinates",
				Params: actions.ParameterSchema{
					{Name: "start_x", Type: actions.ParamInt, Required: true},
					{Name: "start_y", Type: actions.ParamInt, Required: true},
					{Name: "end_x", Type: actions.ParamInt, Required: true},
					{Name: "end_y", Type: actions.ParamInt, Required: true},
					{Name: "duration", Type: actions.ParamInt, Default: 1000},
				},
				Capabilities: []string{CapabilityDevice},
			},
			handler: c.handleDragAndDrop,
		},
		{
			schema: actions.ActionSchema{
				Name:        "get_dropdown_options",
				Description: "Get all options from a dropdown element by its index",
				Params: actions.ParameterSchema{
					{Name: "index", Type: actions.ParamInt, Required: true},
				},
				Capabilities: []string{CapabilityDevice},
			},
			handler: c.handleDropdownOptions,
		},
		{
			schema: actions.ActionSchema{
				Name:        "select_dropdown_option",
				Description: "Select dropdown option for element by the text of the option",
				Params: actions.ParameterSchema{
					{Name: "index", Type: actions.ParamInt, Required: true},
					{Name: "text", Type: actions.ParamString, Required: true},
				},
				Capabilities: []string{CapabilityDevice},
			},
			handler: c.handleSelectDropdownOption,
		},
	}

	for _, e := range pack {
		if err := c.catalog.Register(e.schema, e.handler); err != nil {
			return err
		}
	}
	c.logger.Info("Default action pack registered", zap.Int("count", c.catalog.Len()))
	return nil
}

func (c *Controller) handleDone(_ context.Context, params actions.Params, _ actions.Capabilities) (interface{}, error) {
	text := params.String("text")
	ok := params.Bool("success")

	const memoryLimit = 100
	memory := fmt.Sprintf("Task completed: %t - %s", ok, firstRunes(text, memoryLimit))
	if extra := utf8.RuneCountInString(text) - memoryLimit; extra > 0 {
		memory += fmt.Sprintf(" - %d more characters", extra)
	}
	return actions.Outcome{
		IsDone:           true,
		Success:          ok,
		ExtractedContent: text,
		LongTermMemory:   memory,
	}, nil
}

func (c *Controller) handleTapElement(ctx context.Context, params actions.Params, caps actions.Capabilities) (interface{}, error) {
	dev, err := device(caps)
	if err != nil {
		return nil, err
	}
	index := params.Int("index")
	if err := dev.TapElement(ctx, index); err != nil {
		return failure(fmt.Sprintf("Failed to tap element with index %d: %v", index, err)), nil
	}
	return success(
		fmt.Sprintf("Tapped element with index %d", index),
		fmt.Sprintf("Tapped element %d", index),
	), nil
}

func (c *Controller) handleEnterText(ctx context.Context, params actions.Params, caps actions.Capabilities) (interface{}, error) {
	dev, err := device(caps)
	if err != nil {
		return nil, err
	}
	index, text := params.Int("index"), params.String("text")

	known, err := dev.HasElement(ctx, index)
	if err != nil {
		return failure(fmt.Sprintf("Failed to look up element %d: %v", index, err)), nil
	}
	if !known {
		return failure(fmt.Sprintf("Element with index %d not found", index)), nil
	}
	if err := dev.EnterText(ctx, index, text); err != nil {
		return failure(fmt.Sprintf("Failed to enter text into element %d: %v", index, err)), nil
	}
	return success(
		fmt.Sprintf("Entered text %q into element with index %d", text, index),
		fmt.Sprintf("Entered text %q into element %d", text, index),
	), nil
}

func (c *Controller) handleScrollIntoView(ctx context.Context, params actions.Params, caps actions.Capabilities) (interface{}, error) {
	dev, err := device(caps)
	if err != nil {
		return nil, err
	}
	index := params.Int("index")

	known, err := dev.HasElement(ctx, index)
	if err != nil {
		return failure(fmt.Sprintf("Failed to look up element %d: %v", index, err)), nil
	}
	if !known {
		return failure(fmt.Sprintf("Element with index %d not found", index)), nil
	}
	if err := dev.ScrollIntoView(ctx, index); err != nil {
		return failure(fmt.Sprintf("Failed to scroll element %d into view: %v", index, err)), nil
	}
	return success(
		fmt.Sprintf("Scrolled element with index %d into view", index),
		fmt.Sprintf("Scrolled element %d into view", index),
	), nil
}

// scrollHandler builds the shared handler for scroll_down/scroll_up.
func scrollHandler(direction ScrollDirection) actions.Handler {
	return func(ctx context.Context, params actions.Params, caps actions.Capabilities) (interface{}, error) {
		dev, err := device(caps)
		if err != nil {
			return nil, err
		}
		amount := params.Int("amount")
		if err := dev.ScrollPage(ctx, direction, amount); err != nil {
			return failure(fmt.Sprintf("Failed to scroll %s: %v", direction, err)), nil
		}
		amountStr := "one page"
		if amount > 0 {
			amountStr = fmt.Sprintf("%d pixels", amount)
		}
		msg := fmt.Sprintf("Scrolled %s the page by %s", direction, amountStr)
		return success(msg, msg), nil
	}
}

func (c *Controller) handleGetAppState(ctx context.Context, params actions.Params, caps actions.Capabilities) (interface{}, error) {
	dev, err := device(caps)
	if err != nil {
		return nil, err
	}
	snapshot, elements, err := dev.State(ctx)
	if err != nil {
		return failure(fmt.Sprintf("Failed to get app state: %v", err)), nil
	}
	return success(
		fmt.Sprintf("Retrieved app state with %d elements:\n%s", elements, snapshot),
		fmt.Sprintf("Retrieved app state with %d elements", elements),
	), nil
}

func (c *Controller) handleSendKeys(ctx context.Context, params actions.Params, caps actions.Capabilities) (interface{}, error) {
	dev, err := device(caps)
	if err != nil {
		return nil, err
	}
	keys := params.String("keys")
	if err := dev.SendKeys(ctx, keys); err != nil {
		return failure(fmt.Sprintf("Failed to send keys %q: %v", keys, err)), nil
	}
	msg := fmt.Sprintf("Sent keys: %s", keys)
	return success(msg, msg), nil
}

func (c *Controller) handleSwipe(ctx context.Context, params actions.Params, caps actions.Capabilities) (interface{}, error) {
	dev, err := device(caps)
	if err != nil {
		return nil, err
	}
	sx, sy := params.Int("start_x"), params.Int("start_y")
	ex, ey := params.Int("end_x"), params.Int("end_y")
	if err := dev.Swipe(ctx, sx, sy, ex, ey, params.Int("duration")); err != nil {
		return failure(fmt.Sprintf("Failed to swipe from (%d, %d) to (%d, %d): %v", sx, sy, ex, ey, err)), nil
	}
	msg := fmt.Sprintf("Swiped from (%d, %d) to (%d, %d)", sx, sy, ex, ey)
	return success(msg, msg), nil
}

func (c *Controller) handlePinch(ctx context.Context, params actions.Params, caps actions.Capabilities) (interface{}, error) {
	dev, err := device(caps)
	if err != nil {
		return nil, err
	}
	cx, cy, percent := params.Int("center_x"), params.Int("center_y"), params.Int("percent")
	if err := dev.Pinch(ctx, cx, cy, percent); err != nil {
		return failure(fmt.Sprintf("Failed to perform pinch gesture at (%d, %d): %v", cx, cy, err)), nil
	}
	gesture := "pinch out"
	if percent < 50 {
		gesture = "pinch in"
	}
	return success(
		fmt.Sprintf("Performed %s gesture at (%d, %d) with %d%% intensity", gesture, cx, cy, percent),
		fmt.Sprintf("Performed %s gesture at (%d, %d)", gesture, cx, cy),
	), nil
}

func (c *Controller) handleLongPress(ctx context.Context, params actions.Params, caps actions.Capabilities) (interface{}, error) {
	dev, err := device(caps)
	if err != nil {
		return nil, err
	}
	x, y, duration := params.Int("x"), params.Int("y"), params.Int("duration")
	if err := dev.LongPress(ctx, x, y, duration); err != nil {
		return failure(fmt.Sprintf("Failed to perform long press at (%d, %d): %v", x, y, err)), nil
	}
	msg := fmt.Sprintf("Performed long press at (%d, %d) for %dms", x, y, duration)
	return success(msg, msg), nil
}

func (c *Controller) handleDragAndDrop(ctx context.Context, params actions.Params, caps actions.Capabilities) (interface{}, error) {
	dev, err := device(caps)
	if err != nil {
		return nil, err
	}
	sx, sy := params.Int("start_x"), params.Int("start_y")
	ex, ey := params.Int("end_x"), params.Int("end_y")
	if err := dev.DragAndDrop(ctx, sx, sy, ex, ey, params.Int("duration")); err != nil {
		return failure(fmt.Sprintf("Failed to drag from (%d, %d) to (%d, %d): %v", sx, sy, ex, ey, err)), nil
	}
	msg := fmt.Sprintf("Dragged from (%d, %d) to (%d, %d)", sx, sy, ex, ey)
	return success(msg, msg), nil
}

func (c *Controller) handleDropdownOptions(ctx context.Context, params actions.Params, caps actions.Capabilities) (interface{}, error) {
	dev, err := device(caps)
	if err != nil {
		return nil, err
	}
	index := params.Int("index")
	options, err := dev.DropdownOptions(ctx, index)
	if err != nil {
		return failure(fmt.Sprintf("Failed to get dropdown options for element %d: %v", index, err)), nil
	}
	if len(options) == 0 {
		return success("No options found in dropdown", "No options found in dropdown"), nil
	}
	var content string
	for i, opt := range options {
		content += fmt.Sprintf("%d: %s\n", i, opt)
	}
	content += "Use the exact text string in select_dropdown_option"
	return success(content, fmt.Sprintf("Found dropdown options for index %d", index)), nil
}

func (c *Controller) handleSelectDropdownOption(ctx context.Context, params actions.Params, caps actions.Capabilities) (interface{}, error) {
	dev, err := device(caps)
	if err != nil {
		return nil, err
	}
	index, text := params.Int("index"), params.String("text")
	if err := dev.SelectDropdownOption(ctx, index, text); err != nil {
		return failure(fmt.Sprintf("Failed to select option %q in dropdown %d: %v", text, index, err)), nil
	}
	msg := fmt.Sprintf("Selected option %q in dropdown %d", text, index)
	return success(msg, msg), nil
}

// firstRunes returns at most limit runes of s.
func firstRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}
