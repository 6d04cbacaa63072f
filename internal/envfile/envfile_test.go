package envfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_OnlySetsMissingKeys(t *testing.T) {
	p := filepath.Join(t.TempDir(), ".env")
	content := "# comment\nWIFICLOCK_TEST_A=one\nexport WIFICLOCK_TEST_B=\"two\"\nWIFICLOCK_TEST_C=ignored\nbroken line\nWIFICLOCK_TEST_EMPTY=\n"
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))

	t.Setenv("WIFICLOCK_TEST_C", "outer")
	os.Unsetenv("WIFICLOCK_TEST_A")
	os.Unsetenv("WIFICLOCK_TEST_B")
	os.Unsetenv("WIFICLOCK_TEST_EMPTY")
	t.Cleanup(func() {
		os.Unsetenv("WIFICLOCK_TEST_A")
		os.Unsetenv("WIFICLOCK_TEST_B")
	})

	require.NoError(t, Load(p))
	assert.Equal(t, "one", os.Getenv("WIFICLOCK_TEST_A"))
	assert.Equal(t, "two", os.Getenv("WIFICLOCK_TEST_B"))
	assert.Equal(t, "outer", os.Getenv("WIFICLOCK_TEST_C"))
	_, set := os.LookupEnv("WIFICLOCK_TEST_EMPTY")
	assert.False(t, set)
}

func TestEnsureAndLoad_WritesTemplate(t *testing.T) {
	p := filepath.Join(t.TempDir(), "etc", ".env")
	require.NoError(t, EnsureAndLoad(p))

	raw, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "WIFICLOCK_CONFIG_PATH=")
}

func TestLoad_MissingFile(t *testing.T) {
	assert.Error(t, Load(filepath.Join(t.TempDir(), "nope")))
}
