package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFile(t *testing.T) {
	f, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Nil(t, f)
}

func TestLoadBadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("[defaults\ntime="), 0644))

	_, err := Load(path)
	require.Error(t, err)
	var cfgErr *Error
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, path, cfgErr.Path)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[defaults]
time = "2-00:00:00"
timeout = 7200

[profiles.small]
mem = "16GB"
`), 0644))

	f, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, f)
	require.NotNil(t, f.Defaults.Time)
	assert.Equal(t, "2-00:00:00", *f.Defaults.Time)
	require.NotNil(t, f.Defaults.Timeout)
	assert.Equal(t, 7200, *f.Defaults.Timeout)
	// Keys absent from the document stay nil and do not participate in
	// the merge.
	assert.Nil(t, f.Defaults.Mem)
	require.Contains(t, f.Profiles, "small")
	require.NotNil(t, f.Profiles["small"].Mem)
	assert.Equal(t, "16GB", *f.Profiles["small"].Mem)
}

func TestDefaultTemplateParses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(DefaultTemplate), 0644))

	f, err := Load(path)
	require.NoError(t, err)
	require.NotNil(t, f)
	require.NotNil(t, f.Defaults.Time)
	assert.Equal(t, "1-00:00:00", *f.Defaults.Time)
	assert.Contains(t, f.Profiles, "small")
	assert.Contains(t, f.Profiles, "large")
}

func TestOptionsFields(t *testing.T) {
	o := Options{
		Time:    strPtr("1-00:00:00"),
		Timeout: intPtr(60),
	}
	fields := o.Fields()
	require.Len(t, fields, 2)
	assert.Equal(t, [2]string{"time", "1-00:00:00"}, fields[0])
	assert.Equal(t, [2]string{"timeout", "60"}, fields[1])
}
