package history

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_DisabledWhenNoRoot(t *testing.T) {
	s := New("")
	assert.False(t, s.Enabled())
	require.NoError(t, s.Global("alice", "hello"))

	lines, err := s.TailGlobal(10)
	require.NoError(t, err)
	assert.Nil(t, lines)
}

func TestStore_GlobalAppendAndTail(t *testing.T) {
	s := New(t.TempDir())

	require.NoError(t, s.Global("alice", "hello"))
	require.NoError(t, s.Global("bob", "hi there"))

	lines, err := s.TailGlobal(10)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "[alice]: hello")
	assert.Contains(t, lines[1], "[bob]: hi there")
}

func TestStore_TailRespectsLimit(t *testing.T) {
	s := New(t.TempDir())
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Global("alice", "msg"))
	}
	lines, err := s.TailGlobal(2)
	require.NoError(t, err)
	assert.Len(t, lines, 2)
}

func TestStore_RoomIsolatedFromGlobal(t *testing.T) {
	s := New(t.TempDir())
	require.NoError(t, s.Room("lobby", "alice", "room message"))
	require.NoError(t, s.Global("alice", "global message"))

	roomLines, err := s.TailRoom("lobby", 10)
	require.NoError(t, err)
	require.Len(t, roomLines, 1)
	assert.Contains(t, roomLines[0], "room message")

	globalLines, err := s.TailGlobal(10)
	require.NoError(t, err)
	require.Len(t, globalLines, 1)
	assert.Contains(t, globalLines[0], "global message")
}

func TestStore_PrivateIsOrderIndependent(t *testing.T) {
	root := t.TempDir()
	s := New(root)

	require.NoError(t, s.Private("bob", "alice", "bob", "hi alice"))
	require.NoError(t, s.Private("alice", "bob", "alice", "hi bob"))

	lines, err := s.TailPrivate("alice", "bob", 10)
	require.NoError(t, err)
	require.Len(t, lines, 2)

	reversed, err := s.TailPrivate("bob", "alice", 10)
	require.NoError(t, err)
	assert.Equal(t, lines, reversed)

	// Exactly one file should exist for the pair.
	entries, err := filepathGlob(root)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestStore_AppendedLinesCarryDistinctIDs(t *testing.T) {
	s := New(t.TempDir())
	require.NoError(t, s.Global("alice", "one"))
	require.NoError(t, s.Global("alice", "two"))

	lines, err := s.TailGlobal(10)
	require.NoError(t, err)
	require.Len(t, lines, 2)

	idOf := func(line string) string {
		return strings.Fields(line)[0]
	}
	id1, id2 := idOf(lines[0]), idOf(lines[1])
	assert.NotEmpty(t, id1)
	assert.NotEqual(t, id1, id2)
}

func TestStore_SanitizeBlocksPathTraversal(t *testing.T) {
	s := New(t.TempDir())
	require.NoError(t, s.Room("../../etc/passwd", "alice", "pwned?"))

	lines, err := s.TailRoom("../../etc/passwd", 10)
	require.NoError(t, err)
	require.Len(t, lines, 1)
}

func filepathGlob(root string) ([]string, error) {
	return filepath.Glob(filepath.Join(root, "private", "*.txt"))
}
