// Package harness runs multi-participant room scenarios against real
// engines sharing one ledger.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	participants: [alice, bob]
//	blocks:
//	  alice: [bob]
//	flow:
//	  - as: alice
//	    do: create_room
//	    room: r1
//	  - as: alice
//	    do: share
//	    room: r1
//	    to: bob
//	  - as: bob
//	    do: send
//	    room: r1
//	    text: hi
//	    expect:
//	      slot: 1
//	assertions:
//	  - type: messages
//	    as: alice
//	    room: r1
//	    messages: ["* bob joined", "bob: hi"]
//
// Rooms are named by the alias given in their create_room step. Every
// write step first syncs the acting participant, the way a client refreshes
// before it writes. The clock starts at testutil.Epoch and advances one
// second after each step.
//
// # Actions
//
//   - create_room: claim the next room slot under the actor's root
//   - send: append a text message (refused if blocked)
//   - share: share a room with "to", which also posts their joined message
//   - sync: run one synchronization pass
//   - read: mark a room's messages read, as opening it does
//   - advance: move the clock forward by "by"
//
// # Assertion Types
//
//   - room_count: number of rooms "as" sees
//   - messages: rendered messages of a room, in discovery order
//   - unread: unread count of a room for "as"
//   - title: display title of a room for "as"
//   - trace_count: number of trace events for an action
//   - trace_order: actions appear in order in the trace
//
// Assertions are evaluated after a final sync by every participant.
package harness
