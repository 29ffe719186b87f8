package vision

import (
	"errors"
	"image"
	"time"
)

// Screen is the capability interface over the host's display and input
// devices. The worker is the only component allowed to touch it, one
// action at a time.
type Screen interface {
	// Capture grabs the current screen contents at physical pixel size.
	Capture() (image.Image, error)

	// Size returns the logical screen size in points.
	Size() (width, height int, err error)

	// MoveTo animates the pointer to (x, y) over the given duration.
	MoveTo(x, y int, duration time.Duration) error

	Click() error
	DoubleClick() error
	RightClick() error

	// Type enters literal text at the current focus.
	Type(text string) error

	// Hotkey presses a chord, e.g. ["ctrl", "c"].
	Hotkey(keys []string) error

	// Scroll emits one wheel notch; positive is up, negative is down.
	Scroll(notches int) error
}

// ErrNoScreen is returned by UnavailableScreen for every operation.
var ErrNoScreen = errors.New("no screen capability available on this host")

// UnavailableScreen is the Screen used when the host has no display.
// Every operation fails with ErrNoScreen; the worker reports the goal
// as failed instead of crashing.
type UnavailableScreen struct{}

func (UnavailableScreen) Capture() (image.Image, error)          { return nil, ErrNoScreen }
func (UnavailableScreen) Size() (int, int, error)                { return 0, 0, ErrNoScreen }
func (UnavailableScreen) MoveTo(int, int, time.Duration) error   { return ErrNoScreen }
func (UnavailableScreen) Click() error                           { return ErrNoScreen }
func (UnavailableScreen) DoubleClick() error                     { return ErrNoScreen }
func (UnavailableScreen) RightClick() error                      { return ErrNoScreen }
func (UnavailableScreen) Type(string) error                      { return ErrNoScreen }
func (UnavailableScreen) Hotkey([]string) error                  { return ErrNoScreen }
func (UnavailableScreen) Scroll(int) error                       { return ErrNoScreen }
