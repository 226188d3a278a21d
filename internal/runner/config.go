package runner

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Config is the module-specific configuration from the manifest.
type Config map[string]any

// String returns cfg[key] when it is a string.
func (c Config) String(key string) (string, bool) {
	s, ok := c[key].(string)
	return s, ok
}

// Decode copies the config into target using json field tags.
func (c Config) Decode(target any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           target,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(map[string]any(c)); err != nil {
		return fmt.Errorf("invalid runner config: %w", err)
	}
	return nil
}
