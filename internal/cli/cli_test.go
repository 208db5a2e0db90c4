package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/roomsync/internal/clock"
	"github.com/roach88/roomsync/internal/ledger"
	"github.com/roach88/roomsync/internal/testutil"
)

// cliHarness runs commands against one ledger file, with a frozen clock and
// predictable correlation ids shared by every invocation.
type cliHarness struct {
	dir   string
	clock *clock.FakeClock
	ids   *testutil.SequentialIDs
}

func newCLIHarness(t *testing.T) *cliHarness {
	t.Helper()
	return &cliHarness{
		dir:   t.TempDir(),
		clock: clock.Fake(testutil.Epoch),
		ids:   testutil.NewSequentialIDs(),
	}
}

func (h *cliHarness) ledgerPath() string {
	return filepath.Join(h.dir, "ledger.db")
}

func (h *cliHarness) cachePath(id string) string {
	return filepath.Join(h.dir, id+"-cache.db")
}

// run executes args as id and returns stdout.
func (h *cliHarness) run(t *testing.T, id string, args ...string) (string, error) {
	t.Helper()
	full := append([]string{"--as", id, "--ledger", h.ledgerPath(), "--cache", h.cachePath(id)}, args...)
	return h.exec(t, full...)
}

func (h *cliHarness) exec(t *testing.T, args ...string) (string, error) {
	t.Helper()
	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	cmd := newRootCommand(&RootOptions{Clock: h.clock, Correlations: h.ids})
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	if err != nil {
		t.Logf("stderr: %s", stderr.String())
	}
	return stdout.String(), err
}

func (h *cliHarness) mustRun(t *testing.T, id string, args ...string) string {
	t.Helper()
	out, err := h.run(t, id, args...)
	require.NoError(t, err, out)
	return out
}

// roomID is the ID of the room alice creates first.
var roomID = ledger.RecordID(ledger.RootOf("alice"), 0)

// conversation has alice start a room with bob and both post once.
func conversation(t *testing.T, h *cliHarness) {
	t.Helper()
	out := h.mustRun(t, "alice", "room", "create", "--with", "bob")
	assert.Equal(t, "created: room "+roomID+", slot 0\nshared with: bob\n", out)

	out = h.mustRun(t, "alice", "send", roomID, "hello", "bob")
	assert.Equal(t, "sent: room "+roomID+", slot 2\n", out)

	out = h.mustRun(t, "bob", "send", roomID, "hi alice")
	assert.Equal(t, "sent: room "+roomID+", slot 3\n", out)
}

func TestCLI_ConversationGolden(t *testing.T) {
	h := newCLIHarness(t)
	conversation(t, h)

	g := goldie.New(t, goldie.WithFixtureDir("testdata/golden"), goldie.WithNameSuffix(".golden"))

	g.Assert(t, "inbox_alice", []byte(h.mustRun(t, "alice", "room", "list")))
	g.Assert(t, "inbox_bob", []byte(h.mustRun(t, "bob", "sync")))
	g.Assert(t, "room_show_alice", []byte(h.mustRun(t, "alice", "room", "show", roomID)))
}

func TestCLI_RoomShowByPath(t *testing.T) {
	h := newCLIHarness(t)
	conversation(t, h)

	path := string(ledger.RootOf("alice").Join(roomID))
	byPath := h.mustRun(t, "bob", "room", "show", path)
	byID := h.mustRun(t, "bob", "room", "show", roomID)
	assert.Equal(t, byID, byPath)
	assert.Contains(t, byID, "With: alice\n")
}

func TestCLI_JSONInbox(t *testing.T) {
	h := newCLIHarness(t)
	conversation(t, h)

	out := h.mustRun(t, "alice", "--format", "json", "room", "list")

	var resp struct {
		Status string    `json:"status"`
		Data   inboxView `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, ledger.Identity("alice"), resp.Data.Identity)
	require.Len(t, resp.Data.Rooms, 1)

	r := resp.Data.Rooms[0]
	assert.Equal(t, roomID, r.ID)
	assert.Equal(t, "bob", r.Title)
	assert.Equal(t, 2, r.Messages)
	assert.Equal(t, 1, r.Unread)
	assert.False(t, r.Group)
	require.NotNil(t, r.LastActivity)
	assert.True(t, testutil.Epoch.Equal(*r.LastActivity))
}

func TestCLI_ShareMakesGroup(t *testing.T) {
	h := newCLIHarness(t)
	conversation(t, h)

	out := h.mustRun(t, "alice", "share", roomID, "carol")
	assert.Equal(t, "shared: room "+roomID+", slot 4\nshared with: carol\n", out)

	out = h.mustRun(t, "carol", "room", "show", roomID)
	assert.Contains(t, out, "With: alice, bob\n")
	assert.Contains(t, out, "  * carol joined\n")
}

func TestCLI_UnknownRoom(t *testing.T) {
	h := newCLIHarness(t)

	out, err := h.run(t, "alice", "room", "show", "nope")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [UNKNOWN_ROOM]")
}

func TestCLI_UnknownRoomJSON(t *testing.T) {
	h := newCLIHarness(t)

	out, err := h.run(t, "alice", "--format", "json", "send", "nope", "hi")
	require.Error(t, err)

	var resp Response
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "UNKNOWN_ROOM", resp.Error.Code)
}

func TestCLI_MissingIdentity(t *testing.T) {
	h := newCLIHarness(t)

	_, err := h.exec(t, "--ledger", h.ledgerPath(), "sync")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "identity is required")
}

func TestCLI_InvalidFormat(t *testing.T) {
	h := newCLIHarness(t)

	_, err := h.run(t, "alice", "--format", "xml", "sync")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "invalid format")
}

func TestCLI_ConfigFileProfiles(t *testing.T) {
	h := newCLIHarness(t)
	conversation(t, h)

	cfgPath := filepath.Join(h.dir, "alice.yaml")
	cfg := "identity: alice\n" +
		"ledger: " + h.ledgerPath() + "\n" +
		"profiles:\n" +
		"  - identity: bob\n" +
		"    name: Bob Builder\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))

	out, err := h.exec(t, "--config", cfgPath, "room", "show", roomID)
	require.NoError(t, err)
	assert.Contains(t, out, "With: Bob Builder\n")
	assert.Contains(t, out, "Bob Builder: hi alice\n")
}

func TestCLI_BlockedSend(t *testing.T) {
	h := newCLIHarness(t)
	conversation(t, h)

	cfgPath := filepath.Join(h.dir, "alice.yaml")
	cfg := "identity: alice\n" +
		"ledger: " + h.ledgerPath() + "\n" +
		"profiles:\n" +
		"  - identity: alice\n" +
		"    blocked: [bob]\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))

	out, err := h.exec(t, "--config", cfgPath, "send", roomID, "still there?")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "Error [BLOCKED]")
}

func TestCLI_InvalidConfigFile(t *testing.T) {
	h := newCLIHarness(t)

	cfgPath := filepath.Join(h.dir, "bad.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("identity: alice\nsync_interval: soon\n"), 0o644))

	_, err := h.exec(t, "--config", cfgPath, "--ledger", h.ledgerPath(), "sync")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestCLI_RunStopsOnCancel(t *testing.T) {
	h := newCLIHarness(t)
	stdout := &bytes.Buffer{}
	cmd := newRootCommand(&RootOptions{Clock: h.clock, Correlations: h.ids})
	cmd.SetOut(stdout)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--as", "alice", "--ledger", h.ledgerPath(), "run"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, cmd.ExecuteContext(ctx))
	assert.Contains(t, stdout.String(), "Engine started as alice")
}

func TestCLI_RoomShowMarksRead(t *testing.T) {
	h := newCLIHarness(t)
	conversation(t, h)

	unread := func() int {
		out := h.mustRun(t, "alice", "--format", "json", "room", "list")
		var resp struct {
			Data inboxView `json:"data"`
		}
		require.NoError(t, json.Unmarshal([]byte(out), &resp))
		require.Len(t, resp.Data.Rooms, 1)
		return resp.Data.Rooms[0].Unread
	}

	require.Equal(t, 1, unread())

	h.mustRun(t, "alice", "room", "show", "--peek", roomID)
	assert.Equal(t, 1, unread(), "peek leaves messages unread")

	h.mustRun(t, "alice", "room", "show", roomID)
	assert.Equal(t, 0, unread())

	h.mustRun(t, "bob", "send", roomID, "still there?")
	assert.Equal(t, 1, unread(), "new messages arrive unread")
}
