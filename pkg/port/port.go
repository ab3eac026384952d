// Package port holds the definition of a physical input line and its tick counter
package port

// Pin is a single digital input line.
//
// The handler passed to Watch is called once for every transition of the line,
// in both directions. Inside the handler Read returns the level the line
// changed to.
type Pin interface {
	// Pin returns the line number (BCM GPIO number or chip offset).
	Pin() int
	// Input sets the line as input.
	Input()
	// PullUp sets the pull state of the line to pull-up.
	PullUp()
	// Read returns the line level, true is a logical 1 (high).
	Read() bool
	// Watch the line for edges in both directions.
	// There can only be one watcher on the line at a time.
	Watch(handler func()) error
	// Unwatch removes any watch from the line.
	Unwatch()
}

// Clock is a free-running, wrapping tick counter.
type Clock interface {
	// Ticks returns the current counter value.
	Ticks() uint32
	// Frequency returns the number of ticks per second.
	Frequency() uint32
}

// Edge is one recorded transition of a line.
type Edge struct {
	// Tick is the counter value the transition was detected at.
	Tick uint32 `yaml:"tick"`
	// Level is the level the line changed to.
	Level bool `yaml:"level"`
}

// StateType is the logical level of a bit.
type StateType int

const (
	// High indicates a logical 1.
	High StateType = 1
	// Low indicates a logical 0.
	Low StateType = 0
)

// String returns "high" or "low".
func (s StateType) String() string {
	if s == High {
		return "high"
	}
	return "low"
}

// State converts a line level to a StateType.
func State(level bool) StateType {
	if level {
		return High
	}
	return Low
}
