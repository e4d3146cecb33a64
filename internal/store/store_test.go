package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "exports"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func putArtifact(t *testing.T, st *Store, name, content string) {
	t.Helper()
	scratch := st.Scratch(name)
	require.NoError(t, os.WriteFile(scratch, []byte(content), 0o644))
	_, err := st.Put(context.Background(), name, scratch)
	require.NoError(t, err)
}

func TestPutListGet(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)

	putArtifact(t, st, "export.mp4", "payload")

	names, err := st.List()
	require.NoError(t, err)
	require.Equal(t, []string{"export.mp4"}, names)

	b, err := st.Get("export.mp4")
	require.NoError(t, err)
	require.Equal(t, "payload", string(b))

	// scratch file must be gone after registration
	_, err = os.Stat(st.Scratch("export.mp4"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestPut_ReturnsArtifactMetadata(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)

	scratch := st.Scratch("a.mp4")
	require.NoError(t, os.WriteFile(scratch, []byte("12345"), 0o644))

	art, err := st.Put(context.Background(), "a.mp4", scratch)
	require.NoError(t, err)
	require.Equal(t, "a.mp4", art.Filename)
	require.Equal(t, int64(5), art.SizeBytes)
	require.WithinDuration(t, time.Now().UTC(), art.CreatedAt, time.Minute)
	require.Equal(t, filepath.Join(st.Dir(), "a.mp4"), art.Path)
}

func TestPut_OverwritesExisting(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)

	putArtifact(t, st, "shot_1.mp4", "first")
	putArtifact(t, st, "shot_1.mp4", "second longer payload")

	names, err := st.List()
	require.NoError(t, err)
	require.Equal(t, []string{"shot_1.mp4"}, names)

	b, err := st.Get("shot_1.mp4")
	require.NoError(t, err)
	require.Equal(t, "second longer payload", string(b))

	arts, err := st.Artifacts(context.Background())
	require.NoError(t, err)
	require.Len(t, arts, 1)
	require.Equal(t, int64(len("second longer payload")), arts[0].SizeBytes)
}

func TestPut_RejectsUnsafeNames(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)

	for _, name := range []string{"", ".hidden", "a/b.mp4", "../escape.mp4"} {
		_, err := st.Put(context.Background(), name, st.Scratch("x"))
		require.Error(t, err, "name %q", name)
	}
}

func TestGet_NotFound(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)

	_, err := st.Get("missing.mp4")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestList_SkipsInternalEntries(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)

	putArtifact(t, st, "a.mp4", "a")

	// the index db and scratch dir live inside the export dir
	names, err := st.List()
	require.NoError(t, err)
	require.Equal(t, []string{"a.mp4"}, names)
}

func TestDelete(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)

	putArtifact(t, st, "a.mp4", "a")
	require.NoError(t, st.Delete(context.Background(), "a.mp4"))

	_, err := st.Get("a.mp4")
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, st.Delete(context.Background(), "a.mp4"), ErrNotFound)
}

func TestCleanup_ZeroAgeDeletesEverything(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)

	for _, name := range []string{"a.mp4", "b.mp4", "c.mp4"} {
		putArtifact(t, st, name, "x")
		// push mtimes safely into the past
		old := time.Now().Add(-time.Hour)
		require.NoError(t, os.Chtimes(filepath.Join(st.Dir(), name), old, old))
	}

	stats, err := st.Cleanup(context.Background(), 0)
	require.NoError(t, err)
	require.Equal(t, CleanupStats{Deleted: 3, Remaining: 0}, stats)

	names, err := st.List()
	require.NoError(t, err)
	require.Empty(t, names)

	arts, err := st.Artifacts(context.Background())
	require.NoError(t, err)
	require.Empty(t, arts)
}

func TestCleanup_LargeAgeDeletesNothing(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)

	putArtifact(t, st, "a.mp4", "a")
	putArtifact(t, st, "b.mp4", "b")

	stats, err := st.Cleanup(context.Background(), 1000*time.Hour)
	require.NoError(t, err)
	require.Equal(t, CleanupStats{Deleted: 0, Remaining: 2}, stats)
}

func TestCleanup_Idempotent(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)

	putArtifact(t, st, "a.mp4", "a")
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(st.Dir(), "a.mp4"), old, old))

	first, err := st.Cleanup(context.Background(), 0)
	require.NoError(t, err)
	require.Equal(t, CleanupStats{Deleted: 1, Remaining: 0}, first)

	second, err := st.Cleanup(context.Background(), 0)
	require.NoError(t, err)
	require.Equal(t, CleanupStats{Deleted: 0, Remaining: 0}, second)
}

func TestReconcile_AdoptsAndPrunes(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "exports")

	st, err := Open(dir, zerolog.Nop())
	require.NoError(t, err)
	putArtifact(t, st, "kept.mp4", "kept")
	putArtifact(t, st, "removed.mp4", "removed")
	require.NoError(t, st.Close())

	// mutate the directory behind the index's back
	require.NoError(t, os.Remove(filepath.Join(dir, "removed.mp4")))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "adopted.mp4"), []byte("adopted"), 0o644))

	st, err = Open(dir, zerolog.Nop())
	require.NoError(t, err)
	defer st.Close()

	arts, err := st.Artifacts(context.Background())
	require.NoError(t, err)
	require.Len(t, arts, 2)
	require.Equal(t, "adopted.mp4", arts[0].Filename)
	require.Equal(t, "kept.mp4", arts[1].Filename)
}

func TestCommit_Idempotent(t *testing.T) {
	t.Parallel()
	st := openTestStore(t)

	require.NoError(t, st.Commit(context.Background()))
	require.NoError(t, st.Commit(context.Background()))
}
