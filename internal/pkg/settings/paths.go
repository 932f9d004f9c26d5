package settings

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	applicationDirectory = "schmagent"
	configFileName       = "config.json"
	defaultAPIKeysFile   = "api_keys.json"
	historyDatabaseFile  = "history.db"
)

type Paths struct {
	ConfigDir  string
	DataDir    string
	SecretsDir string
	// APIKeysFile is a file name relative to SecretsDir or an absolute path.
	APIKeysFile string
}

// DefaultPaths resolves the CONFIG_PATH, DATA_PATH, SECRETS_PATH and API_KEYS_FILE variables, falling back
// to directories under the user's home.
func DefaultPaths() Paths {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}

	return Paths{
		ConfigDir:   pathFromEnv("CONFIG_PATH", filepath.Join(home, ".config", applicationDirectory), home),
		DataDir:     pathFromEnv("DATA_PATH", filepath.Join(home, ".local", "share", applicationDirectory), home),
		SecretsDir:  pathFromEnv("SECRETS_PATH", filepath.Join(home, ".secrets", applicationDirectory), home),
		APIKeysFile: pathFromEnv("API_KEYS_FILE", defaultAPIKeysFile, home),
	}
}

func (instance Paths) ConfigFile() string {
	return filepath.Join(instance.ConfigDir, configFileName)
}

func (instance Paths) KeysFile() string {
	name := instance.APIKeysFile
	if name == "" {
		name = defaultAPIKeysFile
	}
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(instance.SecretsDir, name)
}

func (instance Paths) HistoryDatabase() string {
	return filepath.Join(instance.DataDir, historyDatabaseFile)
}

func pathFromEnv(name string, fallback string, home string) string {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return fallback
	}
	return expandHome(value, home)
}

func expandHome(path string, home string) string {
	if path == "~" {
		return home
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}
