package util

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetEnv(t *testing.T) {
	t.Setenv("STENCIL_TEST_NAME", "  news ")
	t.Setenv("STENCIL_TEST_BLANK", "   ")
	t.Setenv("STENCIL_TEST_INT", "12")
	t.Setenv("STENCIL_TEST_BAD_INT", "twelve")
	t.Setenv("STENCIL_TEST_FLOAT", "0.5")
	t.Setenv("STENCIL_TEST_BOOL", "1")
	t.Setenv("STENCIL_TEST_BAD_BOOL", "yes")

	assert.Equal(t, "news", GetEnv("STENCIL_TEST_NAME"))
	assert.Equal(t, "fallback", GetEnvString("STENCIL_TEST_BLANK", "fallback"))
	assert.Equal(t, "fallback", GetEnvString("STENCIL_TEST_UNSET", "fallback"))
	assert.Equal(t, 12, GetEnvInt("STENCIL_TEST_INT", 3))
	assert.Equal(t, 3, GetEnvInt("STENCIL_TEST_BAD_INT", 3))
	assert.Equal(t, 0.5, GetEnvFloat("STENCIL_TEST_FLOAT", 2))
	assert.True(t, GetEnvBool("STENCIL_TEST_BOOL", false))
	assert.True(t, GetEnvBool("STENCIL_TEST_BAD_BOOL", true))
}

func TestGetEnvDuration(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  time.Duration
	}{
		{"go duration", "2m30s", 150 * time.Second},
		{"bare seconds", "45", 45 * time.Second},
		{"invalid", "soon", time.Minute},
		{"blank", "", time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("STENCIL_TEST_TTL", tt.value)
			assert.Equal(t, tt.want, GetEnvDuration("STENCIL_TEST_TTL", time.Minute))
		})
	}
}

func TestGetEnvList(t *testing.T) {
	def := []string{"body"}

	t.Setenv("STENCIL_TEST_TAGS", "html, ,body,")
	assert.Equal(t, []string{"html", "body"}, GetEnvList("STENCIL_TEST_TAGS", def))

	t.Setenv("STENCIL_TEST_TAGS", " , ")
	assert.Equal(t, def, GetEnvList("STENCIL_TEST_TAGS", def))
}

func TestLoadEnv_KeepsExistingValues(t *testing.T) {
	file := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(file, []byte("STENCIL_TEST_KEEP=file\nSTENCIL_TEST_NEW=file\n"), 0o600))
	t.Setenv("STENCIL_TEST_KEEP", "process")
	t.Setenv("STENCIL_TEST_NEW", "")
	require.NoError(t, os.Unsetenv("STENCIL_TEST_NEW"))

	LoadEnv(file)
	assert.Equal(t, "process", GetEnv("STENCIL_TEST_KEEP"))
	assert.Equal(t, "file", GetEnv("STENCIL_TEST_NEW"))
}
