package config

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// EnvPrefix is prepended to the upper-cased yaml key of every field, e.g.
// STREAMD_MODELS_DIR or STREAMD_PARALLEL_SESSIONS.
const EnvPrefix = "STREAMD_"

// ApplyEnv overrides fields from environment variables found by lookup
// (os.LookupEnv in production). Lists are comma-separated.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	v := reflect.ValueOf(cfg).Elem()
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		key := strings.Split(t.Field(i).Tag.Get("yaml"), ",")[0]
		if key == "" || key == "-" {
			continue
		}
		name := EnvName(key)
		raw, ok := lookup(name)
		if !ok {
			continue
		}
		if err := setField(v.Field(i), strings.TrimSpace(raw)); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// EnvName is the variable that overrides the config key.
func EnvName(key string) string { return EnvPrefix + strings.ToUpper(key) }

var durationType = reflect.TypeOf(Duration(0))

func setField(f reflect.Value, raw string) error {
	if f.Type() == durationType {
		var d Duration
		if err := d.UnmarshalText([]byte(raw)); err != nil {
			return err
		}
		f.Set(reflect.ValueOf(d))
		return nil
	}
	switch f.Kind() {
	case reflect.String:
		f.SetString(raw)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		f.SetBool(b)
	case reflect.Int, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return err
		}
		f.SetInt(n)
	case reflect.Slice:
		f.Set(reflect.ValueOf(SplitCSV(raw)))
	default:
		return fmt.Errorf("unsupported kind %s", f.Kind())
	}
	return nil
}
