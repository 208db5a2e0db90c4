package harness

import (
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/roomsync/internal/ledger"
	"github.com/roach88/roomsync/internal/rooms"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for _, ev := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] %s %s %s", ev.Step, ev.Actor, ev.Action, ev.Room)
		if ev.Error != "" {
			fmt.Fprintf(&buf, " -> %s", ev.Error)
		}
		buf.WriteString("\n")
	}
	return buf.String()
}

// RenderMessage formats m the way messages assertions spell them:
// "* bob joined" for joined messages, "bob: text" otherwise.
func RenderMessage(m rooms.Message) string {
	if m.IsSystem() {
		return fmt.Sprintf("* %s joined", m.Author)
	}
	return fmt.Sprintf("%s: %s", m.Author, m.Text)
}

// EvaluateAssertions evaluates all assertions and returns error messages.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for _, a := range assertions {
		var err error
		switch a.Type {
		case AssertRoomCount:
			err = assertRoomCount(result, a)
		case AssertMessages:
			err = assertMessages(result, a)
		case AssertUnread:
			err = assertUnread(result, a)
		case AssertTitle:
			err = assertTitle(result, a)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, err.Error())
		}
	}
	return errs
}

func assertRoomCount(result *Result, a Assertion) error {
	got := len(result.State[ledger.Identity(a.As)].Rooms)
	if got != a.Count {
		return &AssertionError{
			Type:     AssertRoomCount,
			Expected: fmt.Sprintf("%s sees %d rooms", a.As, a.Count),
			Actual:   fmt.Sprintf("%d rooms", got),
			Trace:    result.Trace,
		}
	}
	return nil
}

// findRoom looks up the aliased room in a participant's final state.
func findRoom(result *Result, a Assertion) (rooms.Room, error) {
	path, ok := result.Rooms[a.Room]
	if !ok {
		return rooms.Room{}, &AssertionError{
			Type:     a.Type,
			Expected: fmt.Sprintf("room %q was created", a.Room),
			Actual:   "its create_room step failed",
			Trace:    result.Trace,
		}
	}
	for _, r := range result.State[ledger.Identity(a.As)].Rooms {
		if r.Path == path {
			return r, nil
		}
	}
	return rooms.Room{}, &AssertionError{
		Type:     a.Type,
		Expected: fmt.Sprintf("%s sees room %q (%s)", a.As, a.Room, path),
		Actual:   "room not in room list",
		Trace:    result.Trace,
	}
}

func assertMessages(result *Result, a Assertion) error {
	r, err := findRoom(result, a)
	if err != nil {
		return err
	}
	got := make([]string, len(r.Messages))
	for i, m := range r.Messages {
		got[i] = RenderMessage(m)
	}
	if !slices.Equal(got, a.Messages) {
		return &AssertionError{
			Type:     AssertMessages,
			Expected: fmt.Sprintf("%s sees %q in %s", a.As, a.Messages, a.Room),
			Actual:   fmt.Sprintf("%q", got),
			Trace:    result.Trace,
		}
	}
	return nil
}

func assertUnread(result *Result, a Assertion) error {
	r, err := findRoom(result, a)
	if err != nil {
		return err
	}
	if got := r.Unread(ledger.Identity(a.As)); got != a.Count {
		return &AssertionError{
			Type:     AssertUnread,
			Expected: fmt.Sprintf("%s has %d unread in %s", a.As, a.Count, a.Room),
			Actual:   fmt.Sprintf("%d unread", got),
			Trace:    result.Trace,
		}
	}
	return nil
}

func assertTitle(result *Result, a Assertion) error {
	r, err := findRoom(result, a)
	if err != nil {
		return err
	}
	got := rooms.Title(r, rooms.NewDirectory(ledger.Identity(a.As)))
	if got != a.Title {
		return &AssertionError{
			Type:     AssertTitle,
			Expected: fmt.Sprintf("%s titles %s %q", a.As, a.Room, a.Title),
			Actual:   fmt.Sprintf("%q", got),
			Trace:    result.Trace,
		}
	}
	return nil
}

// assertTraceCount checks if the action appears exactly the specified number of times.
func assertTraceCount(trace []TraceEvent, a Assertion) error {
	count := 0
	for _, ev := range trace {
		if ev.Action == a.Action {
			count++
		}
	}
	if count != a.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("action %s appears %d times", a.Action, a.Count),
			Actual:   fmt.Sprintf("appears %d times", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertTraceOrder checks if actions appear in the specified order.
// Actions don't need to be consecutive (intervening actions are allowed).
func assertTraceOrder(trace []TraceEvent, a Assertion) error {
	next := 0
	for _, ev := range trace {
		if next < len(a.Actions) && ev.Action == a.Actions[next] {
			next++
		}
	}
	if next < len(a.Actions) {
		return &AssertionError{
			Type:     AssertTraceOrder,
			Expected: fmt.Sprintf("actions in order: %v", a.Actions),
			Actual:   fmt.Sprintf("missing or out of order: %s", a.Actions[next]),
			Trace:    trace,
		}
	}
	return nil
}
