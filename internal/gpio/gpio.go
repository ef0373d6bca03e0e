// Package gpio wraps GPIO character-device lines for the button, the stepper
// coils and the heartbeat LED.
package gpio

// Output is a line the caller drives.
type Output interface {
	SetValue(v int) error
}

// Input is a line the caller samples.
type Input interface {
	Value() (int, error)
}

// Button reports an input line as pressed while it reads 1.
type Button struct {
	In Input
}

func (b Button) Pressed() (bool, error) {
	v, err := b.In.Value()
	if err != nil {
		return false, err
	}
	return v == 1, nil
}

// Level is a fixed input, for running without a physical button.
type Level int

func (l Level) Value() (int, error) { return int(l), nil }

// Discard is an Output that goes nowhere.
type Discard struct{}

func (Discard) SetValue(int) error { return nil }
