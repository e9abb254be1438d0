package paths

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubPlatform points the platform lookups at fixed directories for the
// duration of a test.
func stubPlatform(t *testing.T, home, userConfig string, err error) {
	t.Helper()
	saved := platformDir
	t.Cleanup(func() { platformDir = saved })
	platformDir.homeDir = func() (string, error) { return home, err }
	platformDir.userConfigDir = func() (string, error) { return userConfig, err }
}

func TestDefaultDirs(t *testing.T) {
	stubPlatform(t, "/home/ann", "/cfg", nil)

	if runtime.GOOS != "linux" {
		got, err := DefaultConfigDir()
		require.NoError(t, err)
		assert.Equal(t, filepath.Join("/cfg", "era"), got)

		got, err = DefaultDataDir()
		require.NoError(t, err)
		assert.Equal(t, filepath.Join("/cfg", "era"), got)
		return
	}

	tests := []struct {
		name string
		env  string
		val  string
		fn   func() (string, error)
		want string
	}{
		{"config from XDG", "XDG_CONFIG_HOME", "/xdg/c", DefaultConfigDir, "/xdg/c/era"},
		{"config under home", "XDG_CONFIG_HOME", "", DefaultConfigDir, "/home/ann/.config/era"},
		{"data from XDG", "XDG_DATA_HOME", "/xdg/d", DefaultDataDir, "/xdg/d/era"},
		{"data under home", "XDG_DATA_HOME", "", DefaultDataDir, "/home/ann/.local/share/era"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.env, tt.val)
			got, err := tt.fn()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDefaultDirsHomeError(t *testing.T) {
	boom := errors.New("no home")
	stubPlatform(t, "", "", boom)
	t.Setenv("XDG_CONFIG_HOME", "")

	_, err := DefaultConfigDir()
	require.ErrorIs(t, err, boom)
}

func TestResolveConfigDir(t *testing.T) {
	stubPlatform(t, "/home/ann", "/cfg", nil)
	t.Setenv("XDG_CONFIG_HOME", "/xdg/c")
	cwd, err := os.Getwd()
	require.NoError(t, err)

	def, err := DefaultConfigDir()
	require.NoError(t, err)

	tests := []struct {
		name string
		flag string
		env  string
		want string
	}{
		{"flag wins over env", "/explicit", "/env", "/explicit"},
		{"env when flag empty", "", "/env", "/env"},
		{"relative env is made absolute", "", "rel", filepath.Join(cwd, "rel")},
		{"platform default", "", "", def},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvConfigDir, tt.env)
			got, err := ResolveConfigDir(tt.flag)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveDataDir(t *testing.T) {
	cwd, err := os.Getwd()
	require.NoError(t, err)

	tests := []struct {
		name   string
		flag   string
		config string
		env    string
		want   string
	}{
		{"flag wins over all", "/flag", "/config", "/env", "/flag"},
		{"config.yaml wins over env", "", "/config", "/env", "/config"},
		{"relative config value", "", "snap", "/env", filepath.Join(cwd, "snap")},
		{"env when flag and config empty", "", "", "/env", "/env"},
		{"snapshot dir next to content", "", "", "", filepath.Join(cwd, ".era")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvDataDir, tt.env)
			got, err := ResolveDataDir(tt.flag, tt.config)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveContentDirs(t *testing.T) {
	cwd, err := os.Getwd()
	require.NoError(t, err)
	list := func(dirs ...string) string {
		out := ""
		for i, d := range dirs {
			if i > 0 {
				out += string(os.PathListSeparator)
			}
			out += d
		}
		return out
	}

	tests := []struct {
		name   string
		flags  []string
		config []string
		env    string
		want   []string
	}{
		{"flags win", []string{"/flag/a", " "}, []string{"/config/a"}, "/env/a", []string{"/flag/a"}},
		{"blank flags fall through to config", []string{"", "  "}, []string{"/config/a", "/config/b"}, "/env/a", []string{"/config/a", "/config/b"}},
		{"env is a path list", nil, nil, list("/env/a", " ", "mods"), []string{"/env/a", filepath.Join(cwd, "mods")}},
		{"content next to cwd", nil, nil, "", []string{filepath.Join(cwd, "content")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvContentDirs, tt.env)
			got, err := ResolveContentDirs(tt.flags, tt.config)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
