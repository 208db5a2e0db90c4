package harness

import (
	"bytes"
	"fmt"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/roomsync/internal/ledger"
)

// Scenario defines a multi-participant room scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Participants lists the identities taking part. Each gets its own
	// engine on the shared ledger.
	Participants []string `yaml:"participants"`

	// Blocks maps a participant to the identities they blocked.
	Blocks map[string][]string `yaml:"blocks,omitempty"`

	// Flow contains the steps to execute, in order.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the trace and every participant's final rooms.
	Assertions []Assertion `yaml:"assertions"`
}

// FlowStep is one action by one participant.
type FlowStep struct {
	// As is the acting participant.
	As string `yaml:"as"`

	// Do is the action: create_room, send, share, sync, read or advance.
	Do string `yaml:"do"`

	// Room is the room alias. create_room defines it, send, share and read
	// use it.
	Room string `yaml:"room,omitempty"`

	// Text is the message text (send).
	Text string `yaml:"text,omitempty"`

	// To is the recipient (share).
	To string `yaml:"to,omitempty"`

	// By is how far to move the clock (advance).
	By time.Duration `yaml:"by,omitempty"`

	// Expect validates the step outcome. Without it the step must succeed.
	Expect *ExpectClause `yaml:"expect,omitempty"`
}

// ExpectClause specifies the expected outcome of a step.
type ExpectClause struct {
	// Error is the expected service error code, empty for success.
	Error string `yaml:"error,omitempty"`

	// Slot is the expected claimed slot.
	Slot *uint32 `yaml:"slot,omitempty"`

	// Collisions is the expected number of occupied slots skipped.
	Collisions *int `yaml:"collisions,omitempty"`

	// Published is the expected outcome of a sync step.
	Published *bool `yaml:"published,omitempty"`
}

// Assertion validates the trace or a participant's final rooms.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// As is the participant whose rooms are inspected.
	As string `yaml:"as,omitempty"`

	// Room is the room alias.
	Room string `yaml:"room,omitempty"`

	// Count is the expected count (room_count, unread, trace_count).
	Count int `yaml:"count,omitempty"`

	// Messages is the expected rendering of every message (messages).
	Messages []string `yaml:"messages,omitempty"`

	// Title is the expected room title (title).
	Title string `yaml:"title,omitempty"`

	// Action is the action counted by trace_count.
	Action string `yaml:"action,omitempty"`

	// Actions is the expected action order (trace_order).
	Actions []string `yaml:"actions,omitempty"`
}

// Flow actions.
const (
	ActionCreateRoom = "create_room"
	ActionSend       = "send"
	ActionShare      = "share"
	ActionSync       = "sync"
	ActionRead       = "read"
	ActionAdvance    = "advance"
)

// Assertion type constants.
const (
	AssertRoomCount  = "room_count"
	AssertMessages   = "messages"
	AssertUnread     = "unread"
	AssertTitle      = "title"
	AssertTraceCount = "trace_count"
	AssertTraceOrder = "trace_order"
)

var actions = []string{ActionCreateRoom, ActionSend, ActionShare, ActionSync, ActionRead, ActionAdvance}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and that every
// participant and room alias is defined before use.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Participants) == 0 {
		return fmt.Errorf("participants list is required and must be non-empty")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for _, p := range s.Participants {
		if err := ledger.Identity(p).Validate(); err != nil {
			return fmt.Errorf("participant %q: %w", p, err)
		}
	}
	for who := range s.Blocks {
		if !slices.Contains(s.Participants, who) {
			return fmt.Errorf("blocks: unknown participant %q", who)
		}
	}

	rooms := make(map[string]bool)
	for i, step := range s.Flow {
		if err := validateStep(s, i, step, rooms); err != nil {
			return err
		}
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(s, i, a, rooms); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(s *Scenario, i int, step FlowStep, rooms map[string]bool) error {
	if !slices.Contains(actions, step.Do) {
		return fmt.Errorf("flow[%d]: unknown action %q", i, step.Do)
	}
	if step.Do == ActionAdvance {
		if step.By <= 0 {
			return fmt.Errorf("flow[%d]: advance needs a positive duration", i)
		}
		return nil
	}
	if !slices.Contains(s.Participants, step.As) {
		return fmt.Errorf("flow[%d]: unknown participant %q", i, step.As)
	}

	switch step.Do {
	case ActionCreateRoom:
		if step.Room == "" {
			return fmt.Errorf("flow[%d]: create_room needs a room alias", i)
		}
		if rooms[step.Room] {
			return fmt.Errorf("flow[%d]: room %q already defined", i, step.Room)
		}
		rooms[step.Room] = true
	case ActionSend, ActionShare, ActionRead:
		if !rooms[step.Room] {
			return fmt.Errorf("flow[%d]: room %q is not defined by an earlier create_room", i, step.Room)
		}
		if step.Do == ActionShare && step.To == "" {
			return fmt.Errorf("flow[%d]: share needs a recipient", i)
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(s *Scenario, index int, a Assertion, rooms map[string]bool) error {
	needsRoom := false
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertRoomCount:
	case AssertMessages, AssertUnread, AssertTitle:
		needsRoom = true
	case AssertTraceCount:
		if a.Action == "" {
			return fmt.Errorf("assertions[%d]: action is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
		return nil
	case AssertTraceOrder:
		if len(a.Actions) == 0 {
			return fmt.Errorf("assertions[%d]: actions list is required for trace_order", index)
		}
		return nil
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	if !slices.Contains(s.Participants, a.As) {
		return fmt.Errorf("assertions[%d]: unknown participant %q", index, a.As)
	}
	if needsRoom && !rooms[a.Room] {
		return fmt.Errorf("assertions[%d]: unknown room %q", index, a.Room)
	}
	return nil
}
