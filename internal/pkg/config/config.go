package config

import (
	"fmt"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"reflect"
	"strconv"
	"strings"
	"time"
)

const (
	defaultTag     = "config_default"
	descriptionTag = "config_description"
)

var durationType = reflect.TypeOf(time.Duration(0))

// ParseArgs fills the exported fields of target from args, environment variables and the config_default
// struct tags, in that order of precedence.
// A field named Port is exposed as the --Port flag and the <APPLICATION_NAME>_PORT environment variable.
func ParseArgs(target any, applicationName string, args []string) error {
	value := reflect.ValueOf(target)
	if value.Kind() != reflect.Pointer || value.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("config target must be a pointer to struct, got %T", target)
	}
	value = value.Elem()
	valueType := value.Type()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix(applicationName))
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))

	flags := pflag.NewFlagSet(applicationName, pflag.ContinueOnError)

	for i := 0; i < valueType.NumField(); i++ {
		field := valueType.Field(i)
		if !field.IsExported() {
			continue
		}

		if err := defineFlag(flags, field); err != nil {
			return err
		}

		if err := v.BindPFlag(field.Name, flags.Lookup(field.Name)); err != nil {
			return fmt.Errorf("viper.BindPFlag(%s) failed: %w", field.Name, err)
		}
		if err := v.BindEnv(field.Name); err != nil {
			return fmt.Errorf("viper.BindEnv(%s) failed: %w", field.Name, err)
		}
	}

	if err := flags.Parse(args); err != nil {
		return err
	}

	for i := 0; i < valueType.NumField(); i++ {
		field := valueType.Field(i)
		if !field.IsExported() {
			continue
		}
		if err := assignField(v, field, value.Field(i)); err != nil {
			return err
		}
		log.Debug().Str("field", field.Name).Interface("value", value.Field(i).Interface()).Msg("configuration value")
	}

	return nil
}

// EnvPrefix turns an application name such as "my-agent" into "MY_AGENT".
func EnvPrefix(applicationName string) string {
	return strings.ToUpper(strings.NewReplacer("-", "_", ".", "_", " ", "_").Replace(applicationName))
}

func defineFlag(flags *pflag.FlagSet, field reflect.StructField) error {
	defaultValue := field.Tag.Get(defaultTag)
	description := field.Tag.Get(descriptionTag)

	if field.Type == durationType {
		duration := time.Duration(0)
		if defaultValue != "" {
			parsed, err := time.ParseDuration(defaultValue)
			if err != nil {
				return fieldError(field, err)
			}
			duration = parsed
		}
		flags.Duration(field.Name, duration, description)
		return nil
	}

	switch field.Type.Kind() {
	case reflect.String:
		flags.String(field.Name, defaultValue, description)
	case reflect.Int:
		number := 0
		if defaultValue != "" {
			parsed, err := strconv.Atoi(defaultValue)
			if err != nil {
				return fieldError(field, err)
			}
			number = parsed
		}
		flags.Int(field.Name, number, description)
	case reflect.Bool:
		flag := false
		if defaultValue != "" {
			parsed, err := strconv.ParseBool(defaultValue)
			if err != nil {
				return fieldError(field, err)
			}
			flag = parsed
		}
		flags.Bool(field.Name, flag, description)
	case reflect.Float64:
		number := 0.0
		if defaultValue != "" {
			parsed, err := strconv.ParseFloat(defaultValue, 64)
			if err != nil {
				return fieldError(field, err)
			}
			number = parsed
		}
		flags.Float64(field.Name, number, description)
	default:
		return fmt.Errorf("config field %s has unsupported type %s", field.Name, field.Type)
	}

	return nil
}

func assignField(v *viper.Viper, field reflect.StructField, target reflect.Value) error {
	if field.Type == durationType {
		target.SetInt(int64(v.GetDuration(field.Name)))
		return nil
	}

	switch field.Type.Kind() {
	case reflect.String:
		target.SetString(v.GetString(field.Name))
	case reflect.Int:
		target.SetInt(int64(v.GetInt(field.Name)))
	case reflect.Bool:
		target.SetBool(v.GetBool(field.Name))
	case reflect.Float64:
		target.SetFloat(v.GetFloat64(field.Name))
	default:
		return fmt.Errorf("config field %s has unsupported type %s", field.Name, field.Type)
	}
	return nil
}

func fieldError(field reflect.StructField, err error) error {
	return fmt.Errorf("invalid %s for field %s: %w", defaultTag, field.Name, err)
}
