// File: internal/knowledge/store_test.go
package knowledge

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	store, err := NewStore(zaptest.NewLogger(t), dir)
	require.NoError(t, err)
	return store, dir
}

func TestStore_WriteThenRead(t *testing.T) {
	store, _ := newTestStore(t)

	require.NoError(t, store.WriteDoc("com.app.id_login", "Opens the login flow."))

	doc, ok := store.ReadDoc("com.app.id_login")
	require.True(t, ok)
	assert.Equal(t, "Opens the login flow.", doc)
}

func TestStore_ReadMissingDoc(t *testing.T) {
	store, _ := newTestStore(t)

	_, ok := store.ReadDoc("com.app.id_never_seen")
	assert.False(t, ok)
}

func TestStore_WriteReplacesExistingDoc(t *testing.T) {
	store, _ := newTestStore(t)

	require.NoError(t, store.WriteDoc("elem", "First description."))
	require.NoError(t, store.WriteDoc("elem", "Better description."))

	doc, ok := store.ReadDoc("elem")
	require.True(t, ok)
	assert.Equal(t, "Better description.", doc)
}

func TestStore_RejectsEmptyIdentifier(t *testing.T) {
	store, _ := newTestStore(t)
	assert.Error(t, store.WriteDoc("", "whatever"))
}

func TestStore_SanitizesIdentifierForFilename(t *testing.T) {
	store, dir := newTestStore(t)

	require.NoError(t, store.WriteDoc("../evil/../../path", "doc"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.NotContains(t, entries[0].Name(), "/")

	doc, ok := store.ReadDoc("../evil/../../path")
	require.True(t, ok)
	assert.Equal(t, "doc", doc)
}

func TestStore_DocsSurviveReopen(t *testing.T) {
	store, dir := newTestStore(t)
	require.NoError(t, store.WriteDoc("elem", "persistent"))

	reopened, err := NewStore(zaptest.NewLogger(t), dir)
	require.NoError(t, err)
	doc, ok := reopened.ReadDoc("elem")
	require.True(t, ok)
	assert.Equal(t, "persistent", doc)
}

func TestStore_WriteSessionSummary(t *testing.T) {
	store, dir := newTestStore(t)

	summary := map[string]any{"run_id": "abc", "rounds": 3}
	require.NoError(t, store.WriteSessionSummary("abc", summary))

	data, err := os.ReadFile(filepath.Join(dir, "sessions", "abc.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"run_id": "abc"`)
}
