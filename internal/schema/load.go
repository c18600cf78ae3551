package schema

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LoadFile reads a schema file from path, parses it and reduces it,
// naming the interface after the file's base name (without extension).
func LoadFile(path string) (Interface, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Interface{}, fmt.Errorf("schema: read %s: %w", path, err)
	}

	base := filepath.Base(path)
	name := strings.TrimSuffix(base, filepath.Ext(base))

	iface, err := Parse(string(data), name)
	if err != nil {
		return Interface{}, fmt.Errorf("schema: parse %s: %w", path, err)
	}

	reduced, err := iface.Reduce()
	if err != nil {
		return Interface{}, fmt.Errorf("schema: reduce %s: %w", path, err)
	}

	return reduced, nil
}
