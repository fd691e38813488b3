package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/pdxmph/contacts/internal/contacts"
)

type testEnv struct {
	config string
	data   string
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	orig := isTerminal
	isTerminal = func() bool { return false }
	t.Cleanup(func() { isTerminal = orig })

	dir := t.TempDir()
	t.Setenv("HOME", dir)
	cfgPath := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("[log]\npath = \"\"\n"), 0644))

	return testEnv{config: cfgPath, data: filepath.Join(dir, "data")}
}

func (e testEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", e.config, "--backend", "file", "--path", e.data}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func (e testEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := e.run(t, args...)
	require.NoError(t, err, out)
	return out
}

func (e testEnv) listJSON(t *testing.T, args ...string) []contacts.Contact {
	t.Helper()
	out := e.mustRun(t, append([]string{"list", "-o", "json"}, args...)...)
	var list []contacts.Contact
	require.NoError(t, json.Unmarshal([]byte(out), &list))
	return list
}

func TestCommandStructure(t *testing.T) {
	cmd := NewRootCommand()

	uses := make([]string, 0)
	for _, sub := range cmd.Commands() {
		uses = append(uses, sub.Name())
	}
	assert.Subset(t, uses, []string{"init", "list", "add", "edit", "delete", "favorite", "export", "import", "config"})

	for _, flag := range []string{"config", "backend", "path"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(flag), flag)
	}
}

func TestInitWithFixtures(t *testing.T) {
	env := newTestEnv(t)

	out := env.mustRun(t, "init", "--fixtures")
	n := len(contacts.Fixtures())
	assert.Contains(t, out, "Added 7 sample contacts (0 already present)")
	assert.Len(t, env.listJSON(t), n)

	out = env.mustRun(t, "init", "--fixtures")
	assert.Contains(t, out, "Added 0 sample contacts (7 already present)")
	assert.Len(t, env.listJSON(t), n)

	env.mustRun(t, "init", "--force")
	assert.Empty(t, env.listJSON(t))
}

func TestAddAndList(t *testing.T) {
	env := newTestEnv(t)

	out := env.mustRun(t, "add", "--name", "Ana", "--surname", "Silva", "--email", "ana@example.com", "--phone", "912 345 678")
	assert.Contains(t, out, "Added Ana Silva")

	list := env.listJSON(t)
	require.Len(t, list, 1)
	assert.Equal(t, "ana@example.com", list[0].Email)
	assert.Equal(t, "912 345 678", list[0].PhoneNumber)

	table := env.mustRun(t, "list")
	assert.Contains(t, table, "Ana Silva")
	assert.Contains(t, table, "EMAIL")
}

func TestAddRejectsInvalidInput(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run(t, "add", "--name", "A", "--surname", "Silva", "--email", "not-an-email")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "The name is too short")
	assert.Contains(t, err.Error(), "The email is not valid")
	assert.Empty(t, env.listJSON(t))
}

func TestAddRejectsDuplicateEmail(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun(t, "add", "--name", "Ana", "--surname", "Silva", "--email", "ana@example.com")

	_, err := env.run(t, "add", "--name", "Anna", "--surname", "Sousa", "--email", "Ana@Example.com")
	require.Error(t, err)
	assert.True(t, errors.Is(err, contacts.ErrDuplicateEmail))
}

func TestEditByEmailKeepsID(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun(t, "add", "--name", "Ana", "--surname", "Silva", "--email", "ana@example.com")
	before := env.listJSON(t)[0]

	out := env.mustRun(t, "edit", "ana@example.com", "--email", "ana.silva@example.com", "--phone", "912 345 678")
	assert.Contains(t, out, "Saved Ana Silva")

	after := env.listJSON(t)
	require.Len(t, after, 1)
	assert.Equal(t, before.ID, after[0].ID)
	assert.Equal(t, "ana.silva@example.com", after[0].Email)
	assert.Equal(t, "Silva", after[0].Surname, "fields without flags are kept")
}

func TestEditWithoutFlagsFailsOffTerminal(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun(t, "add", "--name", "Ana", "--surname", "Silva", "--email", "ana@example.com")

	_, err := env.run(t, "edit", "ana@example.com")
	assert.ErrorContains(t, err, "nothing to change")
}

func TestFavoriteAndDelete(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun(t, "add", "--name", "Ana", "--surname", "Silva", "--email", "ana@example.com")
	env.mustRun(t, "add", "--name", "Rui", "--surname", "Costa", "--email", "rui@example.com")

	out := env.mustRun(t, "favorite", "rui@example.com")
	assert.Contains(t, out, "Rui Costa is now a favorite")

	favs := env.listJSON(t, "--favorites")
	require.Len(t, favs, 1)
	assert.Equal(t, "Rui", favs[0].Name)

	out = env.mustRun(t, "delete", "-y", "rui@example.com")
	assert.Contains(t, out, "Deleted Rui Costa")
	assert.Empty(t, env.listJSON(t, "--favorites"))
	assert.Len(t, env.listJSON(t), 1)

	_, err := env.run(t, "delete", "-y", "nobody@example.com")
	assert.True(t, errors.Is(err, contacts.ErrNotFound))
}

func TestDeleteRepeatedReference(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun(t, "add", "--name", "Ana", "--surname", "Silva", "--email", "ana@example.com")
	env.mustRun(t, "add", "--name", "Rui", "--surname", "Costa", "--email", "rui@example.com")
	id := env.listJSON(t)[0].ID

	out := env.mustRun(t, "delete", "-y", "ana@example.com", id, "ANA@example.com")
	assert.Equal(t, 1, strings.Count(out, "Deleted Ana Silva"))

	list := env.listJSON(t)
	require.Len(t, list, 1)
	assert.Equal(t, "rui@example.com", list[0].Email)
}

func TestExportImportRoundTrip(t *testing.T) {
	src := newTestEnv(t)
	src.mustRun(t, "init", "--fixtures")
	src.mustRun(t, "favorite", "sarah.chen@email.com")

	file := filepath.Join(t.TempDir(), "contacts.yaml")
	src.mustRun(t, "export", "-o", file)

	raw, err := os.ReadFile(file)
	require.NoError(t, err)
	var doc exportDoc
	require.NoError(t, yaml.Unmarshal(raw, &doc))
	assert.Len(t, doc.Contacts, len(contacts.Fixtures()))
	assert.Equal(t, []string{"sarah.chen@email.com"}, doc.Favorites)

	dst := newTestEnv(t)
	dst.mustRun(t, "add", "--name", "Sarah", "--surname", "Chen", "--email", "sarah.chen@email.com")

	out := dst.mustRun(t, "import", file)
	assert.Contains(t, out, "Imported 6 contacts")
	assert.Contains(t, out, "skipped entry 1")
	assert.Len(t, dst.listJSON(t), len(contacts.Fixtures()))
	assert.Empty(t, dst.listJSON(t, "--favorites"), "favorites only apply to imported contacts")
}

func TestExportJSONToStdout(t *testing.T) {
	env := newTestEnv(t)
	env.mustRun(t, "add", "--name", "Ana", "--surname", "Silva", "--email", "ana@example.com")

	out := env.mustRun(t, "export")
	var doc exportDoc
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	require.Len(t, doc.Contacts, 1)
	assert.Empty(t, doc.Favorites)
}

func TestRootPrintsListOffTerminal(t *testing.T) {
	env := newTestEnv(t)
	out := env.mustRun(t)
	assert.Contains(t, out, "No contacts.")
}

func TestConfigInitAndShow(t *testing.T) {
	env := newTestEnv(t)
	env.config = filepath.Join(t.TempDir(), "nested", "config.toml")

	out := env.mustRun(t, "config", "init")
	assert.Contains(t, out, "Wrote "+env.config)
	assert.FileExists(t, env.config)

	_, err := env.run(t, "config", "init")
	assert.ErrorContains(t, err, "already exists")

	out = env.mustRun(t, "config", "show")
	assert.Contains(t, out, `backend = "file"`)
	assert.Contains(t, out, "# storage path: "+env.data)
}

func TestConfigInitReplacesMalformedConfig(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, os.WriteFile(env.config, []byte("[storage\nbackend = "), 0644))

	_, err := env.run(t, "list")
	require.Error(t, err)

	out := env.mustRun(t, "config", "init", "--force")
	assert.Contains(t, out, "Wrote "+env.config)
	env.mustRun(t, "list")
}

func TestDefaultConfigLocation(t *testing.T) {
	env := newTestEnv(t)
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	path := filepath.Join(home, ".config", "contacts-tui", "config.toml")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("[storage]\nbackend = \"memory\"\n[log]\npath = \"\"\n"), 0644))

	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"--path", env.data, "config", "show"})
	require.NoError(t, cmd.Execute(), out.String())
	assert.Contains(t, out.String(), `backend = "memory"`)
}

func TestUnknownBackend(t *testing.T) {
	env := newTestEnv(t)
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--config", env.config, "--backend", "cassette", "list"})

	err := cmd.Execute()
	assert.ErrorContains(t, err, "backend cassette not registered")
}
