package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name string `yaml:"name"`
	Port int    `yaml:"port"`
}

func (s *sample) Validate() error {
	if s.Port <= 0 {
		return errors.New("port must be positive")
	}
	return nil
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("SAMPLE_PORT", "9090")
	path := writeFile(t, "name: notes\nport: ${SAMPLE_PORT}\n")

	var s sample
	require.NoError(t, Load(path, &s))
	assert.Equal(t, sample{Name: "notes", Port: 9090}, s)
}

func TestLoad_Validates(t *testing.T) {
	path := writeFile(t, "name: notes\nport: 0\n")

	var s sample
	err := Load(path, &s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "port must be positive")
}

func TestLoad_MissingFile(t *testing.T) {
	var s sample
	assert.Error(t, Load(filepath.Join(t.TempDir(), "nope.yaml"), &s))
}

func TestLoadOptional(t *testing.T) {
	s := sample{Name: "default", Port: 80}
	require.NoError(t, LoadOptional(filepath.Join(t.TempDir(), "nope.yaml"), &s))
	assert.Equal(t, sample{Name: "default", Port: 80}, s)

	bad := sample{}
	assert.Error(t, LoadOptional(filepath.Join(t.TempDir(), "nope.yaml"), &bad))

	path := writeFile(t, "port: 81\n")
	require.NoError(t, LoadOptional(path, &s))
	assert.Equal(t, 81, s.Port)
	assert.Equal(t, "default", s.Name)
}
