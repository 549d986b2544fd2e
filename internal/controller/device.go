package controller

import (
	"context"
	"errors"
)

// ErrNotSupported is returned by devices for gestures their target
// cannot express (e.g. pinch on a desktop browser). Handlers surface it
// as a failed outcome so the policy can pick another approach.
var ErrNotSupported = errors.New("gesture not supported by this device")

// ScrollDirection selects the scroll axis orientation for page scrolls.
type ScrollDirection string

const (
	ScrollDown ScrollDirection = "down"
	ScrollUp   ScrollDirection = "up"
)

// Device is the opaque target handle injected into action handlers under
// CapabilityDevice. Implementations drive a real app or browser; the
// runtime core only maps validated action parameters onto these
// primitives and never inspects the implementation.
type Device interface {
	// TapElement taps/clicks the element with the given highlight index.
	TapElement(ctx context.Context, index int) error
	// EnterText types text into the element with the given highlight index.
	EnterText(ctx context.Context, index int, text string) error
	// ScrollIntoView brings the element with the given highlight index
	// into the viewport.
	ScrollIntoView(ctx context.Context, index int) error
	// ScrollPage scrolls by amount pixels; amount 0 means one page.
	ScrollPage(ctx context.Context, direction ScrollDirection, amount int) error
	// SendKeys sends raw keyboard input (Enter, Backspace, ...).
	SendKeys(ctx context.Context, keys string) error
	// State returns a serialized snapshot of the interactive elements,
	// keyed by highlight index, plus the number of elements seen.
	State(ctx context.Context) (snapshot string, elements int, err error)
	// HasElement reports whether a highlight index is currently known.
	HasElement(ctx context.Context, index int) (bool, error)

	// Swipe performs a swipe gesture between two coordinates.
	Swipe(ctx context.Context, startX, startY, endX, endY, durationMs int) error
	// Pinch performs a pinch gesture centered at the coordinates;
	// percent < 50 pinches in, >= 50 pinches out.
	Pinch(ctx context.Context, centerX, centerY, percent int) error
	// LongPress presses and holds at the coordinates.
	LongPress(ctx context.Context, x, y, durationMs int) error
	// DragAndDrop drags from the start to the end coordinates.
	DragAndDrop(ctx context.Context, startX, startY, endX, endY, durationMs int) error

	// DropdownOptions lists the options of a dropdown element.
	DropdownOptions(ctx context.Context, index int) ([]string, error)
	// SelectDropdownOption selects a dropdown option by its exact text.
	SelectDropdownOption(ctx context.Context, index int, text string) error
}
