package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultYAML renders the default configuration as a nested YAML document.
func DefaultYAML() ([]byte, error) {
	tree := make(map[string]any)
	for key, val := range defaults() {
		node := tree
		parts := strings.Split(key, ".")
		for _, p := range parts[:len(parts)-1] {
			child, ok := node[p].(map[string]any)
			if !ok {
				child = make(map[string]any)
				node[p] = child
			}
			node = child
		}
		node[parts[len(parts)-1]] = val
	}
	return yaml.Marshal(tree)
}

// WriteDefault writes the default configuration to the specified path.
// An existing file is left alone.
func WriteDefault(path string) error {
	data, err := DefaultYAML()
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	header := []byte(`# libraria configuration
# Every key can be overridden with a LIBRARIA_ environment variable,
# e.g. LIBRARIA_SUMMARY_PROVIDER=openai. Secrets may use ${ENV_VAR}.

`)
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(append(header, data...)); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
