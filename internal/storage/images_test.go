package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiskStore(t *testing.T) {
	ctx := context.Background()
	s, err := NewDiskStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, s.Ping(ctx))

	require.NoError(t, s.Save(ctx, "20250310_090000_000001_Alice.jpg", []byte("jpeg")))
	data, err := s.Load(ctx, "20250310_090000_000001_Alice.jpg")
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg"), data)

	require.NoError(t, s.Delete(ctx, "20250310_090000_000001_Alice.jpg"))
	_, err = s.Load(ctx, "20250310_090000_000001_Alice.jpg")
	require.ErrorIs(t, err, ErrNotFound)

	// deleting twice is fine
	require.NoError(t, s.Delete(ctx, "20250310_090000_000001_Alice.jpg"))
}

func TestValidateImageName(t *testing.T) {
	for _, name := range []string{"", ".", "../faces.db", "a/b.jpg", `a\b.jpg`, "..jpg"} {
		assert.ErrorIs(t, ValidateImageName(name), ErrInvalidImageName, name)
	}
	assert.NoError(t, ValidateImageName("20250310_090000_000001_Unknown.jpg"))
}
