package runtime

import (
	"bytes"
	"context"
	"testing"

	"github.com/manav03panchal/medremind/internal/config"
	"github.com/manav03panchal/medremind/internal/errors"
	"github.com/manav03panchal/medremind/internal/medication"
	"github.com/manav03panchal/medremind/internal/output"
	"github.com/manav03panchal/medremind/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultOptions(t *testing.T) {
	opts := DefaultOptions()

	assert.NotEmpty(t, opts.DBPath)
	assert.Equal(t, config.Global.Storage.Backend, opts.Backend)
	assert.False(t, opts.InMemory)
	assert.Equal(t, output.FormatCLI, opts.Format)
	assert.Equal(t, output.ColorAuto, opts.ColorMode)
}

func TestNew(t *testing.T) {
	ctx, err := New(Options{InMemory: true, UserID: "u1", Format: output.FormatJSON, ColorMode: output.ColorNever, Debug: true})
	require.NoError(t, err)
	defer ctx.Close()

	assert.NotNil(t, ctx.Store)
	assert.NotNil(t, ctx.Medications)
	assert.True(t, ctx.IsJSON())
	assert.Equal(t, output.ColorNever, ctx.Formatter.ColorMode)
	assert.True(t, ctx.Debug)

	_, _, err = ctx.Medications.Create(context.Background(), "u1", medication.CreateInput{Name: "Aspirin"})
	assert.NoError(t, err)
}

func TestOpenStoreMemoryPath(t *testing.T) {
	store, err := OpenStore(context.Background(), Options{Backend: config.BackendBadger, DBPath: MemoryPath})
	require.NoError(t, err)
	defer store.Close()

	db, ok := store.(*storage.DB)
	require.True(t, ok)
	assert.Empty(t, db.Path())
}

func TestOpenStoreOnDisk(t *testing.T) {
	dir := t.TempDir()
	store, err := OpenStore(context.Background(), Options{DBPath: dir})
	require.NoError(t, err)
	defer store.Close()

	assert.Equal(t, dir, store.(*storage.DB).Path())
}

func TestOpenStoreErrors(t *testing.T) {
	_, err := OpenStore(context.Background(), Options{Backend: "sqlite"})
	assert.ErrorContains(t, err, "unknown storage backend")

	_, err = OpenStore(context.Background(), Options{Backend: config.BackendPostgres})
	assert.True(t, errors.Is(err, errors.ErrInvalidURL))
	assert.NotEmpty(t, errors.GetStack(err), "open failures carry a stack for --debug")
}

func TestRequireUser(t *testing.T) {
	c := &Context{}
	_, err := c.RequireUser()
	assert.True(t, errors.Is(err, errors.ErrUserRequired))

	c.UserID = "u1"
	id, err := c.RequireUser()
	require.NoError(t, err)
	assert.Equal(t, "u1", id)
}

func TestDebugf(t *testing.T) {
	var buf bytes.Buffer
	c := &Context{Formatter: &output.Formatter{Writer: &buf}}

	c.Debugf("hidden %d", 1)
	assert.Empty(t, buf.String())

	c.Debug = true
	c.Debugf("shown %d", 2)
	assert.Equal(t, "[DEBUG] shown 2\n", buf.String())
}
