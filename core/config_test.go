package core

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_defaults(t *testing.T) {
	t.Setenv("ENV", "")

	conf, err := LoadConfig(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "DEV", conf.Env)
	assert.True(t, conf.Debug)
	assert.False(t, conf.TestMode)
	assert.Equal(t, DBEnginePostgres, conf.Database.Engine)
	assert.Equal(t, "localhost:5432", conf.Database.Address())
	assert.Equal(t, 7*24*time.Hour, conf.Server.JWTExpirationDelta)
	assert.Equal(t, []string{"eng", "fra"}, conf.OCR.Languages)
	assert.Equal(t, 300, conf.OCR.DPI)
	assert.Equal(t, "10M", conf.OCR.MaxUploadSize)
}

func TestLoadConfig_env(t *testing.T) {
	workDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(workDir, "config"), 0o755))
	require.NoError(t, os.WriteFile(
		filepath.Join(workDir, "config", ".env.qa"),
		[]byte("ALAMA_TEST_DOTENV=loaded\nDB_NAME=from_dotenv\n"),
		0o600,
	))
	t.Cleanup(func() {
		_ = os.Unsetenv("ALAMA_TEST_DOTENV")
		_ = os.Unsetenv("DB_NAME")
	})

	t.Setenv("ENV", "qa")
	t.Setenv("DB_ENGINE", "InMem")
	t.Setenv("OCR_LANGUAGES", "eng, deu")
	t.Setenv("OCR_DPI", "150")
	t.Setenv("JWT_EXPIRATION_DELTA", "1h")
	t.Setenv("SERVER_ADDR", ":9000")

	conf, err := LoadConfig(workDir)
	require.NoError(t, err)

	assert.Equal(t, "QA", conf.Env)
	assert.False(t, conf.Debug)
	assert.Equal(t, "loaded", os.Getenv("ALAMA_TEST_DOTENV"))
	assert.Equal(t, "from_dotenv", conf.Database.Name)
	assert.Equal(t, DBEngineInMem, conf.Database.Engine)
	assert.Equal(t, []string{"eng", "deu"}, conf.OCR.Languages)
	assert.Equal(t, 150, conf.OCR.DPI)
	assert.Equal(t, time.Hour, conf.Server.JWTExpirationDelta)
	assert.Equal(t, ":9000", conf.Server.Addr)
}

func TestLoadConfig_unknownEngine(t *testing.T) {
	t.Setenv("ENV", "TEST")
	t.Setenv("DB_ENGINE", "mysql")

	_, err := LoadConfig(t.TempDir())
	assert.EqualError(t, err, `unknown DB_ENGINE "mysql"`)
}
