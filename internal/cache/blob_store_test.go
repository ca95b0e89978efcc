package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryBlobStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryBlobStore()

	_, ok, err := s.Get(ctx, "lumina:users")
	require.NoError(t, err)
	assert.False(t, ok)

	value := []byte(`[{"email":"a@b.c"}]`)
	require.NoError(t, s.Set(ctx, "lumina:users", value))
	value[0] = 'X'

	got, ok, err := s.Get(ctx, "lumina:users")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, `[{"email":"a@b.c"}]`, string(got))

	got[0] = 'Y'
	again, _, _ := s.Get(ctx, "lumina:users")
	assert.Equal(t, byte('['), again[0])

	require.NoError(t, s.Delete(ctx, "lumina:users"))
	_, ok, err = s.Get(ctx, "lumina:users")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBlobStoreImplementations(t *testing.T) {
	var _ BlobStore = (*MemoryBlobStore)(nil)
	var _ BlobStore = (*RedisBlobStore)(nil)
}
