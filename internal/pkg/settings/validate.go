package settings

import (
	"errors"
	"fmt"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cast"
	"github.com/spf13/viper"
	"sort"
	"strings"
)

type constraint func(value any) error

var constraints = buildConstraints()

func buildConstraints() map[string]constraint {
	result := map[string]constraint{
		"app.log_level":                  validLogLevel,
		"ui.window_width":                positiveInt,
		"ui.window_height":               positiveInt,
		"session.max_history_sessions":   positiveInt,
		"session.message_history_limit":  positiveInt,
		"security.clipboard_clear_delay": positiveInt,
		"model.local.context_window":     positiveInt,
	}
	for _, provider := range chatProviders {
		prefix := "model." + provider + "."
		result[prefix+"temperature"] = temperatureRange
		result[prefix+"max_tokens"] = positiveInt
		result[prefix+"timeout"] = positiveInt
	}
	return result
}

func positiveInt(value any) error {
	number, err := cast.ToIntE(value)
	if err != nil {
		return err
	}
	if number <= 0 {
		return errNotPositive
	}
	return nil
}

func temperatureRange(value any) error {
	number, err := cast.ToFloat64E(value)
	if err != nil {
		return err
	}
	if number < 0 || number > 2 {
		return errors.New("must be between 0 and 2")
	}
	return nil
}

func validLogLevel(value any) error {
	name, err := cast.ToStringE(value)
	if err != nil {
		return err
	}
	if _, err := parseLevel(name); err != nil {
		return err
	}
	return nil
}

// parseLevel accepts both zerolog names and the DEBUG/INFO/WARNING/ERROR/CRITICAL vocabulary.
func parseLevel(name string) (zerolog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "warning":
		return zerolog.WarnLevel, nil
	case "critical":
		return zerolog.FatalLevel, nil
	}
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(name)))
	if err != nil || name == "" {
		return zerolog.InfoLevel, fmt.Errorf("unknown log level %q", name)
	}
	return level, nil
}

// sameKind reports whether value can stand in for a default of the same type as example.
func sameKind(example any, value any) error {
	if value == nil {
		return errors.New("missing value")
	}

	var err error
	switch example.(type) {
	case bool:
		_, err = cast.ToBoolE(value)
	case int:
		_, err = cast.ToIntE(value)
	case float64:
		_, err = cast.ToFloat64E(value)
	case string:
		_, isMap := value.(map[string]any)
		if isMap {
			err = errors.New("expected a string, got an object")
		} else {
			_, err = cast.ToStringE(value)
		}
	}
	return err
}

// sanitize resets every known key whose merged value has the wrong type or breaks a constraint.
// It returns the keys that were reset.
func sanitize(v *viper.Viper) []string {
	defaults := defaultValues()
	keys := make([]string, 0, len(defaults))
	for key := range defaults {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var reset []string
	for _, key := range keys {
		value := v.Get(key)

		err := sameKind(defaults[key], value)
		if err == nil {
			if check, ok := constraints[key]; ok {
				err = check(value)
			}
		}
		if err != nil {
			log.Warn().Err(err).Str("key", key).Interface("value", value).Interface("default", defaults[key]).
				Msg("invalid setting replaced by default")
			v.Set(key, defaults[key])
			reset = append(reset, key)
		}
	}
	return reset
}

// validate checks the constraints without modifying anything.
func validate(v *viper.Viper) error {
	keys := make([]string, 0, len(constraints))
	for key := range constraints {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var errs []error
	for _, key := range keys {
		if err := constraints[key](v.Get(key)); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}
