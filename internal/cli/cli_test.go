package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run executes dmctl with args against db and returns its output.
func run(t *testing.T, db string, args ...string) (string, error) {
	t.Helper()
	t.Setenv(ConfigEnv, "")
	t.Setenv("HOME", t.TempDir())
	var out bytes.Buffer
	root := NewRootCmd(&out)
	root.SetArgs(append([]string{"--db", db}, args...))
	err := root.Execute()
	return out.String(), err
}

var idPattern = regexp.MustCompile(`\[([0-9a-f-]{36})\]`)

func TestSendThenHistory(t *testing.T) {
	db := t.TempDir()
	for _, text := range []string{"one", "two", "three"} {
		_, err := run(t, db, "--as", "alice", "send", "bob", text)
		require.NoError(t, err)
	}

	out, err := run(t, db, "--as", "bob", "history", "alice", "-n", "2")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "two")
	assert.Contains(t, lines[1], "three")
	require.True(t, strings.HasPrefix(lines[2], "next cursor: "))

	cursor := strings.TrimPrefix(lines[2], "next cursor: ")
	out, err = run(t, db, "--as", "bob", "history", "alice", "-n", "2", "--cursor", cursor)
	require.NoError(t, err)
	assert.Contains(t, out, "one")
	assert.NotContains(t, out, "next cursor")
}

func TestSendRequiresIdentityAndContent(t *testing.T) {
	db := t.TempDir()
	_, err := run(t, db, "send", "bob", "hi")
	assert.ErrorContains(t, err, "no identity")

	_, err = run(t, db, "--as", "alice", "send", "bob", "   ")
	assert.Error(t, err)
}

func TestEditAndDeleteOwnMessage(t *testing.T) {
	db := t.TempDir()
	out, err := run(t, db, "--as", "alice", "send", "bob", "helo")
	require.NoError(t, err)
	m := idPattern.FindStringSubmatch(out)
	require.Len(t, m, 2)
	id := m[1]

	_, err = run(t, db, "--as", "bob", "edit", "alice", id, "hijack")
	assert.Error(t, err)

	out, err = run(t, db, "--as", "alice", "edit", "bob", id, "hello")
	require.NoError(t, err)
	assert.Contains(t, out, "hello (edited)")

	out, err = run(t, db, "--as", "alice", "delete", "bob", id)
	require.NoError(t, err)
	assert.Contains(t, out, "(deleted)")
}

func TestSendImage(t *testing.T) {
	db := t.TempDir()
	img := filepath.Join(t.TempDir(), "pic.png")
	require.NoError(t, os.WriteFile(img, []byte("\x89PNG\r\n\x1a\nrest"), 0o600))

	out, err := run(t, db, "--as", "alice", "send", "bob", "--image", img)
	require.NoError(t, err)
	assert.Contains(t, out, "[image blob://")
}

func TestTailPrintsNewestPage(t *testing.T) {
	db := t.TempDir()
	for _, text := range []string{"a1", "a2", "a3", "a4"} {
		_, err := run(t, db, "--as", "alice", "send", "bob", text)
		require.NoError(t, err)
	}

	out, err := run(t, db, "--as", "bob", "tail", "alice", "--follow=false")
	require.NoError(t, err)
	for _, text := range []string{"a1", "a2", "a3", "a4"} {
		assert.Contains(t, out, text)
	}
	assert.Less(t, strings.Index(out, "a1"), strings.Index(out, "a4"))
}

func TestConversationsAndToken(t *testing.T) {
	db := t.TempDir()
	_, err := run(t, db, "--as", "alice", "send", "bob", "to bob")
	require.NoError(t, err)
	_, err = run(t, db, "--as", "alice", "send", "carol", "to carol")
	require.NoError(t, err)

	out, err := run(t, db, "--as", "alice", "conversations")
	require.NoError(t, err)
	assert.Less(t, strings.Index(out, "carol"), strings.Index(out, "bob"))

	out, err = run(t, db, "--as", "bob", "token", "device-1")
	require.NoError(t, err)
	assert.Contains(t, out, "token registered for bob")
}

func TestInspectSummarizesKeys(t *testing.T) {
	db := t.TempDir()
	_, err := run(t, db, "--as", "alice", "send", "bob", "hi")
	require.NoError(t, err)

	out, err := run(t, db, "inspect", "--show", "0")
	require.NoError(t, err)
	assert.Contains(t, out, "c:alice_bob")
	assert.Contains(t, out, "message: 1")
	assert.Contains(t, out, "conversation: 1")
}

func TestSweepDryRun(t *testing.T) {
	db := t.TempDir()
	out, err := run(t, db, "sweep", "--dry-run", "--min-age", "0s")
	require.NoError(t, err)
	assert.Contains(t, out, "scanned 0 blobs")
}

func TestConfigInitRoundTrip(t *testing.T) {
	db := t.TempDir()
	path := filepath.Join(t.TempDir(), "dmctl.yaml")
	_, err := run(t, db, "--as", "alice", "config", "init", path)
	require.NoError(t, err)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, db, cfg.DBPath)
	assert.Equal(t, "alice", cfg.Identity)

	// the file supplies identity when --as is absent
	_, err = run(t, db, "--config", path, "send", "bob", "from config")
	require.NoError(t, err)
}

func TestKeyKind(t *testing.T) {
	assert.Equal(t, "conversation", keyKind("c:alice_bob"))
	assert.Equal(t, "message", keyKind("c:alice_bob:m:00000000000000000001:x"))
	assert.Equal(t, "message-index", keyKind("idx:c:alice_bob:mid:x"))
	assert.Equal(t, "user-index", keyKind("idx:u:alice:c:alice_bob"))
	assert.Equal(t, "token", keyKind("tok:alice"))
	assert.Equal(t, "other", keyKind("zz"))
}
