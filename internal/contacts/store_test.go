package contacts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/pdxmph/contacts/internal/storage"
	"github.com/pdxmph/contacts/internal/storage/sqlite"
	"github.com/pdxmph/contacts/internal/validation"
)

// failingBackend rejects writes once fail is set
type failingBackend struct {
	*storage.MemoryBackend
	fail bool
}

func (f *failingBackend) Set(ctx context.Context, key string, value []byte) error {
	if f.fail {
		return errors.New("disk full")
	}
	return f.MemoryBackend.Set(ctx, key, value)
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func newTestStore(t *testing.T) (*Store, *storage.MemoryBackend) {
	t.Helper()
	backend := storage.NewMemoryBackend()
	s, err := Open(context.Background(), backend,
		WithLogger(zaptest.NewLogger(t).Sugar()),
		WithIDGenerator(sequentialIDs()),
	)
	require.NoError(t, err)
	return s, backend
}

func storedState(t *testing.T, b storage.Backend) State {
	t.Helper()
	data, err := b.Get(context.Background(), DefaultKey)
	require.NoError(t, err)
	var st State
	require.NoError(t, json.Unmarshal(data, &st))
	return st
}

var (
	ana = Input{Name: "Ana", Surname: "Silva", Email: "ana@example.com", PhoneNumber: "912 345 678"}
	rui = Input{Name: "Rui", Surname: "Costa", Email: "rui@example.com"}
)

func TestLoadInitializesEmptyStorage(t *testing.T) {
	s, backend := newTestStore(t)

	assert.Empty(t, s.Contacts())
	assert.Equal(t, 1, backend.Writes())

	st := storedState(t, backend)
	assert.Empty(t, st.Contacts)
	assert.NotNil(t, st.Contacts)
}

func TestLoadMergesStoredState(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemoryBackend()
	stored := `{
		"contacts": [{"id": "a", "name": "Ana", "surname": "Silva", "email": "ana@example.com"}],
		"favorites": ["a", "ghost"],
		"selected": ["a"],
		"isSelecting": true,
		"isEditing": true,
		"isTooltipActive": true
	}`
	require.NoError(t, backend.Set(ctx, DefaultKey, []byte(stored)))

	s, err := Open(ctx, backend)
	require.NoError(t, err)

	st := s.Snapshot()
	require.Len(t, st.Contacts, 1)
	assert.True(t, st.Favorites.Has("a"))
	assert.False(t, st.Favorites.Has("ghost"), "dangling ids are dropped")
	assert.True(t, st.Selected.Has("a"))
	assert.True(t, st.IsSelecting)
	assert.False(t, st.IsEditing)
	assert.False(t, st.IsTooltipActive)
	assert.Equal(t, 1, backend.Writes(), "existing state is not rewritten")
}

func TestLoadMissingFieldsKeepDefaults(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemoryBackend()
	require.NoError(t, backend.Set(ctx, DefaultKey, []byte(`{"contacts":null}`)))

	s, err := Open(ctx, backend)
	require.NoError(t, err)

	st := s.Snapshot()
	assert.NotNil(t, st.Contacts)
	assert.NotNil(t, st.Favorites)
	assert.NotNil(t, st.Selected)
}

func TestLoadRejectsCorruptState(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemoryBackend()
	require.NoError(t, backend.Set(ctx, DefaultKey, []byte(`{not json`)))

	_, err := Open(ctx, backend)
	assert.Error(t, err)
}

func TestAddPersists(t *testing.T) {
	ctx := context.Background()
	s, backend := newTestStore(t)

	c, err := s.Add(ctx, Input{Name: "  Ana ", Surname: "Silva", Email: "ana@example.com "})
	require.NoError(t, err)
	assert.Equal(t, "id-1", c.ID)
	assert.Equal(t, "Ana", c.Name)
	assert.Equal(t, "ana@example.com", c.Email)
	assert.False(t, c.CreatedAt.IsZero())

	st := storedState(t, backend)
	require.Len(t, st.Contacts, 1)
	assert.Equal(t, c.ID, st.Contacts[0].ID)
}

func TestAddValidates(t *testing.T) {
	s, backend := newTestStore(t)
	writes := backend.Writes()

	_, err := s.Add(context.Background(), Input{Name: "A", Email: "nope"})

	var verrs validation.Errors
	require.True(t, errors.As(err, &verrs))
	assert.Equal(t, "The name is too short", verrs[validation.FieldName])
	assert.Equal(t, "The surname is required", verrs[validation.FieldSurname])
	assert.Equal(t, "The email is not valid", verrs[validation.FieldEmail])
	assert.Empty(t, s.Contacts())
	assert.Equal(t, writes, backend.Writes())
}

func TestAddRejectsDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	_, err := s.Add(ctx, ana)
	require.NoError(t, err)

	dup := rui
	dup.Email = "ANA@example.com"
	_, err = s.Add(ctx, dup)
	assert.ErrorIs(t, err, ErrDuplicateEmail)
	assert.Len(t, s.Contacts(), 1)
}

func TestUpdateKeepsIdentity(t *testing.T) {
	ctx := context.Background()
	s, backend := newTestStore(t)

	c, err := s.Add(ctx, ana)
	require.NoError(t, err)
	_, err = s.ToggleFavorite(ctx, c.ID)
	require.NoError(t, err)

	edited := ana
	edited.Email = "ana.silva@example.com"
	updated, err := s.Update(ctx, c.ID, edited)
	require.NoError(t, err)

	assert.Equal(t, c.ID, updated.ID)
	assert.Equal(t, "ana.silva@example.com", updated.Email)
	assert.True(t, s.IsFavorite(c.ID))

	_, ok := s.FindByEmail("ana@example.com")
	assert.False(t, ok)
	found, ok := s.FindByEmail("Ana.Silva@example.com")
	require.True(t, ok)
	assert.Equal(t, c.ID, found.ID)

	assert.Equal(t, "ana.silva@example.com", storedState(t, backend).Contacts[0].Email)
}

func TestUpdateEmailUniqueness(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	a, err := s.Add(ctx, ana)
	require.NoError(t, err)
	_, err = s.Add(ctx, rui)
	require.NoError(t, err)

	// Keeping its own email is fine
	_, err = s.Update(ctx, a.ID, ana)
	require.NoError(t, err)

	taken := ana
	taken.Email = rui.Email
	_, err = s.Update(ctx, a.ID, taken)
	assert.ErrorIs(t, err, ErrDuplicateEmail)

	_, err = s.Update(ctx, "missing", ana)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteClearsMarks(t *testing.T) {
	ctx := context.Background()
	s, backend := newTestStore(t)

	c, err := s.Add(ctx, ana)
	require.NoError(t, err)
	_, err = s.ToggleFavorite(ctx, c.ID)
	require.NoError(t, err)
	_, err = s.ToggleSelected(ctx, c.ID)
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, c.ID))

	st := storedState(t, backend)
	assert.Empty(t, st.Contacts)
	assert.Empty(t, st.Favorites)
	assert.Empty(t, st.Selected)

	assert.ErrorIs(t, s.Delete(ctx, c.ID), ErrNotFound)
}

func TestIDsAreNotReused(t *testing.T) {
	ctx := context.Background()
	s := NewStore(storage.NewMemoryBackend())
	require.NoError(t, s.Load(ctx))

	first, err := s.Add(ctx, ana)
	require.NoError(t, err)
	require.NoError(t, s.Delete(ctx, first.ID))

	second, err := s.Add(ctx, ana)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestNextIDSkipsCollisions(t *testing.T) {
	ctx := context.Background()
	ids := []string{"dup", "dup", "fresh"}
	s, err := Open(ctx, storage.NewMemoryBackend(), WithIDGenerator(func() string {
		id := ids[0]
		ids = ids[1:]
		return id
	}))
	require.NoError(t, err)

	a, err := s.Add(ctx, ana)
	require.NoError(t, err)
	b, err := s.Add(ctx, rui)
	require.NoError(t, err)
	assert.Equal(t, "dup", a.ID)
	assert.Equal(t, "fresh", b.ID)
}

func TestToggleFavorite(t *testing.T) {
	ctx := context.Background()
	s, backend := newTestStore(t)
	c, err := s.Add(ctx, ana)
	require.NoError(t, err)

	on, err := s.ToggleFavorite(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, on)
	assert.True(t, storedState(t, backend).Favorites.Has(c.ID))
	assert.Len(t, s.Favorites(), 1)

	on, err = s.ToggleFavorite(ctx, c.ID)
	require.NoError(t, err)
	assert.False(t, on)
	assert.Empty(t, s.Favorites())

	_, err = s.ToggleFavorite(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSelectionAndBulkDelete(t *testing.T) {
	ctx := context.Background()
	s, backend := newTestStore(t)

	a, err := s.Add(ctx, ana)
	require.NoError(t, err)
	r, err := s.Add(ctx, rui)
	require.NoError(t, err)
	third, err := s.Add(ctx, Input{Name: "Eva", Surname: "Lima", Email: "eva@example.com"})
	require.NoError(t, err)
	_, err = s.ToggleFavorite(ctx, a.ID)
	require.NoError(t, err)

	on, err := s.ToggleSelected(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, on)
	assert.True(t, s.Snapshot().IsSelecting)

	_, err = s.ToggleSelected(ctx, third.ID)
	require.NoError(t, err)

	n, err := s.DeleteSelected(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	st := storedState(t, backend)
	require.Len(t, st.Contacts, 1)
	assert.Equal(t, r.ID, st.Contacts[0].ID)
	assert.Empty(t, st.Selected)
	assert.Empty(t, st.Favorites)
	assert.False(t, st.IsSelecting)
}

func TestDeleteIDsIgnoresCurrentSelection(t *testing.T) {
	ctx := context.Background()
	s, backend := newTestStore(t)

	a, err := s.Add(ctx, ana)
	require.NoError(t, err)
	r, err := s.Add(ctx, rui)
	require.NoError(t, err)
	_, err = s.ToggleSelected(ctx, a.ID)
	require.NoError(t, err)
	_, err = s.ToggleSelected(ctx, r.ID)
	require.NoError(t, err)

	n, err := s.DeleteIDs(ctx, []string{a.ID, "gone"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	st := storedState(t, backend)
	require.Len(t, st.Contacts, 1)
	assert.Equal(t, r.ID, st.Contacts[0].ID)
	assert.Empty(t, st.Selected)
	assert.False(t, st.IsSelecting)
}

func TestLeavingSelectModeClearsSelection(t *testing.T) {
	ctx := context.Background()
	s, backend := newTestStore(t)
	a, err := s.Add(ctx, ana)
	require.NoError(t, err)

	require.NoError(t, s.SetSelecting(ctx, true))
	_, err = s.ToggleSelected(ctx, a.ID)
	require.NoError(t, err)
	require.NoError(t, s.SetSelecting(ctx, false))

	st := storedState(t, backend)
	assert.False(t, st.IsSelecting)
	assert.Empty(t, st.Selected)
	assert.False(t, s.IsSelected(a.ID))
}

func TestUIFlagsPersistOnlyOnChange(t *testing.T) {
	ctx := context.Background()
	s, backend := newTestStore(t)
	writes := backend.Writes()

	require.NoError(t, s.SetTooltipActive(ctx, true))
	require.NoError(t, s.SetTooltipActive(ctx, true))
	require.NoError(t, s.SetEditing(ctx, true))
	assert.Equal(t, writes+2, backend.Writes())

	st := storedState(t, backend)
	assert.True(t, st.IsTooltipActive)
	assert.True(t, st.IsEditing)
}

func TestFailedWriteRollsBack(t *testing.T) {
	ctx := context.Background()
	backend := &failingBackend{MemoryBackend: storage.NewMemoryBackend()}
	s, err := Open(ctx, backend)
	require.NoError(t, err)
	c, err := s.Add(ctx, ana)
	require.NoError(t, err)

	backend.fail = true
	_, err = s.Add(ctx, rui)
	assert.Error(t, err)
	assert.Error(t, s.Delete(ctx, c.ID))

	assert.Len(t, s.Contacts(), 1)
	_, ok := s.Get(c.ID)
	assert.True(t, ok)
}

func TestReloadPicksUpExternalChanges(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemoryBackend()

	mine, err := Open(ctx, backend)
	require.NoError(t, err)
	theirs, err := Open(ctx, backend)
	require.NoError(t, err)

	c, err := mine.Add(ctx, ana)
	require.NoError(t, err)
	_, err = mine.ToggleSelected(ctx, c.ID)
	require.NoError(t, err)
	require.NoError(t, mine.SetTooltipActive(ctx, true))

	require.NoError(t, theirs.Reload(ctx))
	require.NoError(t, theirs.Delete(ctx, c.ID))

	require.NoError(t, mine.Reload(ctx))
	st := mine.Snapshot()
	assert.Empty(t, st.Contacts)
	assert.Empty(t, st.Selected)
	assert.True(t, st.IsTooltipActive, "local UI flags survive a reload")
}

func TestMutationsKeepExternalWrites(t *testing.T) {
	ctx := context.Background()
	backend := storage.NewMemoryBackend()

	mine, err := Open(ctx, backend)
	require.NoError(t, err)
	theirs, err := Open(ctx, backend)
	require.NoError(t, err)

	a, err := mine.Add(ctx, ana)
	require.NoError(t, err)
	_, err = theirs.Add(ctx, rui)
	require.NoError(t, err)

	// mine never reloaded, yet its next write must not drop Rui
	_, err = mine.ToggleFavorite(ctx, a.ID)
	require.NoError(t, err)

	st := storedState(t, backend)
	assert.Len(t, st.Contacts, 2)
	assert.Len(t, mine.Contacts(), 2)

	// a duplicate written elsewhere is seen before the check
	_, err = mine.Add(ctx, Input{Name: "Rui", Surname: "Lopes", Email: "RUI@example.com"})
	assert.ErrorIs(t, err, ErrDuplicateEmail)
}

func TestMutationsKeepWritesFromOtherSqliteConnections(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "contacts.db")
	log := zaptest.NewLogger(t).Sugar()

	dbA, err := sqlite.Open(path, log)
	require.NoError(t, err)
	defer dbA.Close()
	dbB, err := sqlite.Open(path, log)
	require.NoError(t, err)
	defer dbB.Close()

	storeA, err := Open(ctx, dbA)
	require.NoError(t, err)
	storeB, err := Open(ctx, dbB)
	require.NoError(t, err)

	a, err := storeA.Add(ctx, ana)
	require.NoError(t, err)
	_, err = storeB.Add(ctx, rui)
	require.NoError(t, err)
	_, err = storeA.ToggleFavorite(ctx, a.ID)
	require.NoError(t, err)

	fresh, err := Open(ctx, dbB)
	require.NoError(t, err)
	assert.Len(t, fresh.Contacts(), 2)
	assert.True(t, fresh.IsFavorite(a.ID))
}

func TestResolve(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)
	c, err := s.Add(ctx, ana)
	require.NoError(t, err)

	byID, err := s.Resolve(c.ID)
	require.NoError(t, err)
	byEmail, err := s.Resolve("ANA@example.com")
	require.NoError(t, err)
	assert.Equal(t, byID, byEmail)

	_, err = s.Resolve("nobody@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestImport(t *testing.T) {
	ctx := context.Background()
	s, backend := newTestStore(t)
	_, err := s.Add(ctx, ana)
	require.NoError(t, err)
	writes := backend.Writes()

	added, skipped := s.Import(ctx, []Input{
		rui,
		ana,
		{Name: "X", Surname: "Y", Email: "bad"},
		{Name: "Rui", Surname: "Again", Email: "RUI@example.com"},
	})

	require.Len(t, added, 1)
	assert.Equal(t, rui.Email, added[0].Email)
	require.Len(t, skipped, 3)
	assert.ErrorIs(t, skipped[0], ErrDuplicateEmail)
	var verrs validation.Errors
	assert.True(t, errors.As(skipped[1], &verrs))
	assert.ErrorIs(t, skipped[2], ErrDuplicateEmail)
	assert.Equal(t, writes+1, backend.Writes())
}

func TestFixturesAreValid(t *testing.T) {
	s, _ := newTestStore(t)
	added, skipped := s.Import(context.Background(), Fixtures())
	assert.Empty(t, skipped)
	assert.Len(t, added, len(Fixtures()))
}

func TestIDSetJSON(t *testing.T) {
	data, err := json.Marshal(IDSet{"b": {}, "a": {}})
	require.NoError(t, err)
	assert.Equal(t, `["a","b"]`, string(data))

	var set IDSet
	require.NoError(t, json.Unmarshal([]byte(`["x","y","x"]`), &set))
	assert.Len(t, set, 2)
	assert.True(t, set.Has("x"))
}
