package codec

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/aiarena/engine/internal/schema"
)

func pyStructFormat(b schema.Builtin) (string, int) {
	switch b {
	case schema.U8:
		return "<B", 1
	case schema.U16:
		return "<H", 2
	case schema.U32:
		return "<I", 4
	case schema.U64:
		return "<Q", 8
	case schema.I8:
		return "<b", 1
	case schema.I16:
		return "<h", 2
	case schema.I32:
		return "<i", 4
	case schema.I64:
		return "<q", 8
	case schema.F32:
		return "<f", 4
	case schema.F64:
		return "<d", 8
	case schema.Bool:
		return "<B", 1
	default:
		return "", 0
	}
}

func pySnake(name string) string {
	var b strings.Builder
	for i, r := range name {
		if i > 0 && r >= 'A' && r <= 'Z' {
			b.WriteByte('_')
		}
		b.WriteRune(r)
	}
	return strings.ToLower(b.String())
}

const pyFileTemplate = `# Code generated by the tournament engine's codec generator from the
# "{{.Name}}" schema. DO NOT EDIT.
import struct


def _read_exact(stream, n):
    data = stream.read(n)
    if len(data) != n:
        raise EOFError("short read")
    return data


def read_str(stream):
    (length,) = struct.unpack("<I", _read_exact(stream, 4))
    return _read_exact(stream, length).decode("utf-8")


def write_str(stream, value):
    encoded = value.encode("utf-8")
    stream.write(struct.pack("<I", len(encoded)))
    stream.write(encoded)

{{range .Classes}}

class {{.Name}}:
    def __init__(self{{range .Fields}}, {{.PyName}}=None{{end}}):
{{range .Fields}}        self.{{.PyName}} = {{.PyName}}
{{end}}
    def encode(self, stream):
{{range .Fields}}        {{.EncodeStmt}}
{{end}}
    @staticmethod
    def decode(stream):
        obj = {{.Name}}()
{{range .Fields}}        {{.DecodeStmt}}
{{end}}        return obj
{{end}}
`

type pyField struct {
	PyName     string
	EncodeStmt string
	DecodeStmt string
}

type pyClass struct {
	Name   string
	Fields []pyField
}

func generatePython(iface schema.Interface) (map[string][]byte, error) {
	var classes []pyClass

	for _, nt := range iface.Types {
		if nt.Type.Kind != schema.KindStruct {
			continue
		}
		c := pyClass{Name: exportName(nt.Name)}
		for _, f := range nt.Type.Fields {
			pyName := pySnake(f.Name)
			var encodeStmt, decodeStmt string

			switch {
			case f.Type.Kind == schema.KindBuiltin && f.Type.Builtin == schema.Str:
				encodeStmt = fmt.Sprintf("write_str(stream, self.%s)", pyName)
				decodeStmt = fmt.Sprintf("obj.%s = read_str(stream)", pyName)
			case f.Type.Kind == schema.KindBuiltin:
				fmtStr, size := pyStructFormat(f.Type.Builtin)
				encodeStmt = fmt.Sprintf(`stream.write(struct.pack(%q, self.%s))`, fmtStr, pyName)
				decodeStmt = fmt.Sprintf(`(obj.%s,) = struct.unpack(%q, _read_exact(stream, %d))`, pyName, fmtStr, size)
			case f.Type.Kind == schema.KindNamed:
				typeName := exportName(f.Type.Name)
				encodeStmt = fmt.Sprintf("self.%s.encode(stream)", pyName)
				decodeStmt = fmt.Sprintf("obj.%s = %s.decode(stream)", pyName, typeName)
			default:
				encodeStmt = fmt.Sprintf("pass  # unsupported field %s", pyName)
				decodeStmt = fmt.Sprintf("pass  # unsupported field %s", pyName)
			}

			c.Fields = append(c.Fields, pyField{PyName: pyName, EncodeStmt: encodeStmt, DecodeStmt: decodeStmt})
		}
		classes = append(classes, c)
	}

	tmpl, err := template.New("py").Parse(pyFileTemplate)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, struct {
		Name    string
		Classes []pyClass
	}{Name: iface.Name, Classes: classes}); err != nil {
		return nil, err
	}

	files := map[string][]byte{
		iface.Name + "_codec.py": buf.Bytes(),
	}
	files["main.py"] = []byte(fmt.Sprintf("# Agent entry point for %q. Implement your strategy here.\n\nif __name__ == \"__main__\":\n    pass\n", iface.Name))

	return files, nil
}
