package codec

import (
	"fmt"

	"github.com/aiarena/engine/internal/schema"
)

// Target identifies a supported codec-generation target language.
type Target string

const (
	TargetGo     Target = "go"
	TargetPython Target = "python"
	TargetCPP    Target = "cpp"
)

// Generate emits the source file(s) implementing iface's wire codec for
// target, keyed by relative output path. iface must already be reduced
// (schema.Interface.Reduce), so the only NamedType references left in it
// name struct or enum declarations.
func Generate(iface schema.Interface, target Target) (map[string][]byte, error) {
	switch target {
	case TargetGo:
		return generateGo(iface)
	case TargetPython:
		return generatePython(iface)
	case TargetCPP:
		return nil, fmt.Errorf("codec: C++ target is not yet implemented")
	default:
		return nil, fmt.Errorf("codec: unknown target %q", target)
	}
}
