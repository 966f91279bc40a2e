package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileService_WriteThenRead(t *testing.T) {
	ctx := context.Background()
	key := filepath.Join(t.TempDir(), "nested", "users.json")
	svc := NewFileService()

	require.NoError(t, svc.Write(ctx, key, []byte(`[1]`)))
	require.NoError(t, svc.Write(ctx, key, []byte(`[2]`)))

	data, err := svc.Read(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, []byte(`[2]`), data)

	entries, err := os.ReadDir(filepath.Dir(key))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestFileService_ReadMissing(t *testing.T) {
	_, err := NewFileService().Read(context.Background(), filepath.Join(t.TempDir(), "absent.json"))
	require.ErrorIs(t, err, ErrObjectNotFound)
}

func TestFileService_WriteIntoFileFails(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	err := NewFileService().Write(context.Background(), filepath.Join(blocker, "users.json"), []byte("[]"))
	require.Error(t, err)
}

func TestParseS3URI(t *testing.T) {
	tests := []struct {
		in      string
		bucket  string
		key     string
		wantErr bool
	}{
		{"s3://bucket/users.json", "bucket", "users.json", false},
		{"s3://bucket/a/b/users.json", "bucket", "a/b/users.json", false},
		{"s3://bucket//users.json", "bucket", "users.json", false},
		{"s3://bucket", "", "", true},
		{"s3://bucket/", "", "", true},
		{"s3:///key", "", "", true},
		{"/tmp/users.json", "", "", true},
	}
	for _, tc := range tests {
		t.Run(tc.in, func(t *testing.T) {
			bucket, key, err := ParseS3URI(tc.in)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.bucket, bucket)
			assert.Equal(t, tc.key, key)
		})
	}
}
