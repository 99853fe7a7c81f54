package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// readConfigFile loads a YAML file and flattens it into environment-style
// keys, so "http.addr" becomes NLQGATE_HTTP_ADDR.
func readConfigFile(path string) (map[string]string, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load config file %s: %w", path, err)
	}

	values := make(map[string]string, len(k.Keys()))
	for key, raw := range k.All() {
		envKey := "NLQGATE_" + strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(key))
		switch v := raw.(type) {
		case nil:
			continue
		case []any:
			parts := make([]string, 0, len(v))
			for _, item := range v {
				parts = append(parts, fmt.Sprint(item))
			}
			values[envKey] = strings.Join(parts, ",")
		default:
			values[envKey] = fmt.Sprint(v)
		}
	}
	return values, nil
}
