package action

import "fmt"

// Library holds every action authored in a session and tracks which one is
// current. Actions are numbered from 1 in creation order.
type Library struct {
	actions []*Action
	current int // index into actions, -1 when empty
}

// NewLibrary returns an empty library.
func NewLibrary() *Library {
	return &Library{current: -1}
}

// Create appends a new empty action and makes it current.
func (l *Library) Create() *Action {
	a := New(len(l.actions) + 1)
	l.actions = append(l.actions, a)
	l.current = len(l.actions) - 1
	return a
}

// Len returns the number of actions.
func (l *Library) Len() int {
	return len(l.actions)
}

// Current returns the current action or ErrNoCurrentAction.
func (l *Library) Current() (*Action, error) {
	if l.current < 0 || l.current >= len(l.actions) {
		return nil, ErrNoCurrentAction
	}
	return l.actions[l.current], nil
}

// CurrentNumber returns the 1-based number of the current action, or 0.
func (l *Library) CurrentNumber() int {
	if l.current < 0 {
		return 0
	}
	return l.current + 1
}

// Next makes the following action current. At the last action it is a no-op
// and reports moved=false.
func (l *Library) Next() (moved bool, err error) {
	if len(l.actions) == 0 {
		return false, ErrNoCurrentAction
	}
	if l.current >= len(l.actions)-1 {
		return false, nil
	}
	l.current++
	return true, nil
}

// Previous makes the preceding action current. At the first action it is a
// no-op and reports moved=false.
func (l *Library) Previous() (moved bool, err error) {
	if len(l.actions) == 0 {
		return false, ErrNoCurrentAction
	}
	if l.current <= 0 {
		return false, nil
	}
	l.current--
	return true, nil
}

// Switch makes the action with the given 1-based number current.
func (l *Library) Switch(number int) error {
	if len(l.actions) == 0 {
		return ErrNoCurrentAction
	}
	if number < 1 || number > len(l.actions) {
		return fmt.Errorf("cannot switch to action %d: %w", number, &IndexOutOfRangeError{Index: number - 1, Count: len(l.actions)})
	}
	l.current = number - 1
	return nil
}
