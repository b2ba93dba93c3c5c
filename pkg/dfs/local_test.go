package dfs

import (
	"io"
	"testing"

	"github.com/shuttle-mr/shuttle/pkg/shuttleerr"
	"github.com/stretchr/testify/require"
)

func TestLocalCreateOpenRoundTrip(t *testing.T) {
	fsys, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	w, err := fsys.Create("a/b/out.txt")
	require.NoError(t, err)
	_, err = w.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r, err := fsys.Open("a/b/out.txt")
	require.NoError(t, err)
	defer r.Close()
	got, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, "hello", string(got))
}

func TestLocalPublishRefusesExisting(t *testing.T) {
	fsys, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	w, _ := fsys.Create("tmp/pile")
	w.Write([]byte("first"))
	w.Close()
	require.NoError(t, fsys.Publish("tmp/pile", "final/pile"))

	w2, _ := fsys.Create("tmp/pile2")
	w2.Write([]byte("second"))
	w2.Close()
	err = fsys.Publish("tmp/pile2", "final/pile")
	require.ErrorIs(t, err, shuttleerr.ErrAlreadyExists)
}

func TestLocalExists(t *testing.T) {
	fsys, err := NewLocal(t.TempDir())
	require.NoError(t, err)
	ok, err := fsys.Exists("nope")
	require.NoError(t, err)
	require.False(t, ok)
}
