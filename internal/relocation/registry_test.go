package relocation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmunix/animarr/internal/library"
)

func TestRegistry_DefaultPipe(t *testing.T) {
	env := setupReloc(t, Config{}, nil)

	_, _, err := env.registry.DefaultPipe()
	assert.ErrorIs(t, err, ErrNoPipe)

	env.addPipe(t, "")
	pipe, provider, err := env.registry.DefaultPipe()
	require.NoError(t, err)
	assert.Equal(t, "default", pipe.Name)
	assert.NotNil(t, provider)
}

func TestRegistry_PipeByName(t *testing.T) {
	env := setupReloc(t, Config{}, nil)
	env.addPipe(t, "")

	pipe, _, err := env.registry.Pipe("default")
	require.NoError(t, err)
	assert.Equal(t, env.provider, pipe.ProviderID)

	_, _, err = env.registry.Pipe("missing")
	assert.ErrorIs(t, err, library.ErrNotFound)
}

func TestRegistry_LoadPrunesOrphanedPipes(t *testing.T) {
	env := setupReloc(t, Config{}, nil)
	env.addPipe(t, "")
	require.NoError(t, env.store.AddPipe(&library.RelocationPipe{
		Name:       "orphan",
		ProviderID: "0000000000000000",
	}))

	require.NoError(t, env.registry.Load())

	pipes, err := env.store.ListPipes()
	require.NoError(t, err)
	require.Len(t, pipes, 1)
	assert.Equal(t, "default", pipes[0].Name)
}
