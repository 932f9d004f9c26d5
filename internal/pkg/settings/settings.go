package settings

import (
	"errors"
	"fmt"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
	"os"
	"sort"
	"strings"
	"sync"
)

const (
	configDirMode  os.FileMode = 0755
	configFileMode os.FileMode = 0644
	secretsDirMode os.FileMode = 0700
	secretFileMode os.FileMode = 0600
)

const apiKeyField = "api_key"

// Config is the merged application settings and API key store of one process.
// The precedence of every value is defaults < file < environment.
type Config struct {
	paths Paths

	lock     sync.RWMutex
	settings *viper.Viper
	keys     *viper.Viper
}

func newSettingsViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("json")
	v.SetConfigPermissions(configFileMode)
	for key, value := range defaultValues() {
		v.SetDefault(key, value)
	}
	return v
}

func newAPIKeysViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("json")
	v.SetConfigPermissions(secretFileMode)
	for provider, entry := range defaultAPIKeys() {
		for field, value := range entry.(map[string]any) {
			v.SetDefault(provider+"."+field, value)
		}
	}
	return v
}

// Load creates the configuration directories when needed and merges both stores. Unreadable or malformed
// files are logged and skipped; only a directory that cannot be created is an error.
func Load(paths Paths) (*Config, error) {
	if err := ensureDirectory(paths.ConfigDir, configDirMode); err != nil {
		return nil, err
	}
	if err := ensureDirectory(paths.DataDir, configDirMode); err != nil {
		return nil, err
	}
	if err := ensureDirectory(paths.SecretsDir, secretsDirMode); err != nil {
		return nil, err
	}

	instance := &Config{
		paths:    paths,
		settings: readSettings(paths.ConfigFile()),
		keys:     readAPIKeys(paths.KeysFile()),
	}

	log.Info().Str("config", paths.ConfigFile()).Str("keys", paths.KeysFile()).Msg("settings loaded")
	return instance, nil
}

func ensureDirectory(path string, mode os.FileMode) error {
	if err := os.MkdirAll(path, mode); err != nil {
		return fmt.Errorf("creating directory %s failed: %w", path, err)
	}
	if mode == secretsDirMode {
		if err := os.Chmod(path, mode); err != nil {
			return fmt.Errorf("restricting permissions of %s failed: %w", path, err)
		}
	}
	return nil
}

func readSettings(path string) *viper.Viper {
	v := newSettingsViper()
	v.SetConfigFile(path)

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := os.WriteFile(path, []byte("{}\n"), configFileMode); err != nil {
			log.Error().Err(err).Str("path", path).Msg("creating config file failed")
		} else {
			log.Info().Str("path", path).Msg("created empty config file")
		}
	}

	if err := v.ReadInConfig(); err != nil {
		log.Error().Err(err).Str("path", path).Msg("reading config file failed, using defaults")
	}

	applyEnvironment(v, settingsEnvironment)
	sanitize(v)
	return v
}

func readAPIKeys(path string) *viper.Viper {
	v := newAPIKeysViper()
	v.SetConfigFile(path)

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := v.WriteConfigAs(path); err != nil {
			log.Error().Err(err).Str("path", path).Msg("creating API key file failed")
		} else {
			log.Info().Str("path", path).Msg("created API key file")
		}
	}
	if err := restrictFile(path); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("API key file permissions could not be restricted")
	}

	if err := v.ReadInConfig(); err != nil {
		log.Error().Err(err).Str("path", path).Msg("reading API key file failed")
	}

	applyEnvironment(v, apiKeyEnvironment)
	return v
}

func restrictFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.Mode().Perm() != secretFileMode {
		return os.Chmod(path, secretFileMode)
	}
	return nil
}

func (instance *Config) Paths() Paths {
	return instance.paths
}

// Get returns the value at section.key, or def when the path does not exist.
// Nested keys are addressed with dots, e.g. Get("model", "openai.model", "").
func (instance *Config) Get(section string, key string, def any) any {
	path := section
	if key != "" {
		path = section + "." + key
	}

	instance.lock.RLock()
	defer instance.lock.RUnlock()

	if !instance.settings.IsSet(path) {
		log.Warn().Str("key", path).Interface("default", def).Msg("configuration value not found, using default")
		return def
	}
	return instance.settings.Get(path)
}

func (instance *Config) GetString(section string, key string, def string) string {
	return getAs(instance, section, key, def, cast.ToStringE)
}

func (instance *Config) GetInt(section string, key string, def int) int {
	return getAs(instance, section, key, def, cast.ToIntE)
}

func (instance *Config) GetBool(section string, key string, def bool) bool {
	return getAs(instance, section, key, def, cast.ToBoolE)
}

func (instance *Config) GetFloat(section string, key string, def float64) float64 {
	return getAs(instance, section, key, def, cast.ToFloat64E)
}

func getAs[T any](instance *Config, section string, key string, def T, convert func(any) (T, error)) T {
	value := instance.Get(section, key, def)
	result, err := convert(value)
	if err != nil {
		log.Warn().Err(err).Str("section", section).Str("key", key).Msg("configuration value has the wrong type, using default")
		return def
	}
	return result
}

// Settings decodes the current merged tree.
func (instance *Config) Settings() Settings {
	instance.lock.RLock()
	defer instance.lock.RUnlock()

	return decodeSettings(instance.settings)
}

func decodeSettings(v *viper.Viper) Settings {
	var result Settings
	if err := v.Unmarshal(&result); err != nil {
		log.Error().Err(err).Msg("decoding settings failed, using defaults")
		return Defaults()
	}
	return result
}

func (instance *Config) ModelDetails(provider string) (ProviderSettings, bool) {
	return instance.Settings().Model.Provider(provider)
}

func (instance *Config) AllModelDetails() map[string]ProviderSettings {
	model := instance.Settings().Model
	result := make(map[string]ProviderSettings, len(Providers))
	for _, provider := range Providers {
		details, _ := model.Provider(provider)
		result[provider] = details
	}
	return result
}

// DefaultProvider is the provider selected by model.default.
func (instance *Config) DefaultProvider() string {
	return strings.ToLower(strings.TrimSpace(instance.GetString("model", "default", ProviderOpenAI)))
}

// APIKey returns the stored key of provider, or an empty string when none is configured.
func (instance *Config) APIKey(provider string) string {
	key := instance.apiKey(provider)
	if key == "" {
		log.Warn().Str("provider", provider).Msg("API key not found")
		return ""
	}
	log.Debug().Str("provider", provider).Msg("API key found")
	return key
}

func (instance *Config) apiKey(provider string) string {
	instance.lock.RLock()
	defer instance.lock.RUnlock()

	return strings.TrimSpace(instance.keys.GetString(provider + "." + apiKeyField))
}

// Credentials returns the key and the provider specific extra fields such as project_id.
func (instance *Config) Credentials(provider string) (Credentials, bool) {
	instance.lock.RLock()
	defer instance.lock.RUnlock()

	fields := subtree(instance.keys, provider)
	if len(fields) == 0 {
		return Credentials{}, false
	}

	result := Credentials{Extra: map[string]string{}}
	for field, value := range fields {
		if field == apiKeyField {
			result.APIKey = cast.ToString(value)
			continue
		}
		result.Extra[field] = cast.ToString(value)
	}
	return result, true
}

// ProviderConfig merges the model settings of provider with its credential extras. The API key itself is
// never part of the result.
func (instance *Config) ProviderConfig(provider string) map[string]any {
	instance.lock.RLock()
	defer instance.lock.RUnlock()

	result := subtree(instance.settings, "model."+provider)
	for field, value := range subtree(instance.keys, provider) {
		if field == apiKeyField {
			continue
		}
		result[field] = value
	}
	return result
}

// subtree collects the leaves below prefix across all layers of v, keyed by their remaining path.
func subtree(v *viper.Viper, prefix string) map[string]any {
	prefix = strings.ToLower(prefix) + "."
	result := map[string]any{}
	for _, key := range v.AllKeys() {
		if strings.HasPrefix(key, prefix) {
			result[strings.TrimPrefix(key, prefix)] = v.Get(key)
		}
	}
	return result
}

// AvailableModels reports which providers can be used right now: those with a stored key, plus the local
// provider when a model path or server address is configured.
func (instance *Config) AvailableModels() map[string]bool {
	result := make(map[string]bool, len(Providers))
	for _, provider := range instance.KnownProviders() {
		result[provider] = instance.apiKey(provider) != ""
	}

	if credentials, ok := instance.Credentials(ProviderLocal); ok && credentials.Extra["model_path"] != "" {
		result[ProviderLocal] = true
	}
	if instance.GetString("model", "local.base_url", "") != "" {
		result[ProviderLocal] = true
	}
	return result
}

// KnownProviders lists the providers of the key store, including ones only added by SaveAPIKey.
func (instance *Config) KnownProviders() []string {
	instance.lock.RLock()
	defer instance.lock.RUnlock()

	seen := map[string]bool{}
	for _, key := range instance.keys.AllKeys() {
		provider, _, found := strings.Cut(key, ".")
		if found {
			seen[provider] = true
		}
	}

	result := make([]string, 0, len(seen))
	for provider := range seen {
		result = append(result, provider)
	}
	sort.Strings(result)
	return result
}

// Set changes a value in memory. Values breaking a known constraint are rejected.
func (instance *Config) Set(section string, key string, value any) error {
	path := section + "." + key
	if check, ok := constraints[path]; ok {
		if err := check(value); err != nil {
			return fmt.Errorf("invalid value for %s: %w", path, err)
		}
	}

	instance.lock.Lock()
	defer instance.lock.Unlock()

	instance.settings.Set(path, value)
	return nil
}

// Save writes the merged settings to the config file.
func (instance *Config) Save() error {
	instance.lock.Lock()
	defer instance.lock.Unlock()

	path := instance.paths.ConfigFile()
	if err := instance.settings.WriteConfigAs(path); err != nil {
		log.Error().Err(err).Str("path", path).Msg("saving configuration failed")
		return fmt.Errorf("saving configuration to %s failed: %w", path, err)
	}

	log.Info().Str("path", path).Msg("configuration saved")
	return nil
}

// SaveAPIKey stores key and the optional extra fields of provider and rewrites the key file with owner-only
// permissions.
func (instance *Config) SaveAPIKey(provider string, key string, extra map[string]string) error {
	provider = strings.ToLower(strings.TrimSpace(provider))
	if provider == "" {
		return errors.New("provider name is empty")
	}

	instance.lock.Lock()
	defer instance.lock.Unlock()

	instance.keys.Set(provider+"."+apiKeyField, key)
	for field, value := range extra {
		instance.keys.Set(provider+"."+field, value)
	}

	path := instance.paths.KeysFile()
	if err := instance.keys.WriteConfigAs(path); err != nil {
		log.Error().Err(err).Str("path", path).Msg("saving API key failed")
		return fmt.Errorf("saving API key to %s failed: %w", path, err)
	}
	if err := os.Chmod(path, secretFileMode); err != nil {
		return fmt.Errorf("restricting permissions of %s failed: %w", path, err)
	}

	log.Info().Str("provider", provider).Msg("API key saved")
	return nil
}

// Validate reports every constraint the current settings break.
func (instance *Config) Validate() error {
	instance.lock.RLock()
	defer instance.lock.RUnlock()

	return validate(instance.settings)
}

// LogLevel maps app.log_level to a zerolog level. app.debug forces the debug level.
func (instance *Config) LogLevel() zerolog.Level {
	if instance.GetBool("app", "debug", false) {
		return zerolog.DebugLevel
	}

	level, err := parseLevel(instance.GetString("app", "log_level", "INFO"))
	if err != nil {
		log.Warn().Err(err).Msg("falling back to info log level")
		return zerolog.InfoLevel
	}
	return level
}

// reload replaces the settings tree with a fresh merge of defaults, file and environment.
func (instance *Config) reload() Settings {
	v := readSettings(instance.paths.ConfigFile())

	instance.lock.Lock()
	instance.settings = v
	instance.lock.Unlock()

	return decodeSettings(v)
}
