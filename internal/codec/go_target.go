package codec

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/aiarena/engine/internal/schema"
)

func goBuiltin(b schema.Builtin) string {
	switch b {
	case schema.U8:
		return "uint8"
	case schema.U16:
		return "uint16"
	case schema.U32:
		return "uint32"
	case schema.U64:
		return "uint64"
	case schema.I8:
		return "int8"
	case schema.I16:
		return "int16"
	case schema.I32:
		return "int32"
	case schema.I64:
		return "int64"
	case schema.F32:
		return "float32"
	case schema.F64:
		return "float64"
	case schema.Bool:
		return "bool"
	case schema.Str:
		return "string"
	default:
		return "interface{}"
	}
}

func goTypeName(ty schema.Type, enclosingName string) string {
	switch ty.Kind {
	case schema.KindBuiltin:
		return goBuiltin(ty.Builtin)
	case schema.KindNamed:
		return exportName(ty.Name)
	case schema.KindArray:
		return fmt.Sprintf("[%d]%s", ty.ArrayLen, goTypeName(*ty.Elem, enclosingName))
	case schema.KindDynamicArray:
		return "[]" + goTypeName(*ty.Elem, enclosingName)
	case schema.KindStruct, schema.KindEnum:
		return exportName(enclosingName)
	default:
		return "interface{}"
	}
}

func exportName(name string) string {
	if name == "" {
		return name
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

// goEncodeStmt returns a Go statement that encodes expr (of type ty) using w.
func goEncodeStmt(expr string, ty schema.Type, w string) string {
	switch ty.Kind {
	case schema.KindBuiltin:
		method := map[schema.Builtin]string{
			schema.U8: "WriteU8", schema.U16: "WriteU16", schema.U32: "WriteU32", schema.U64: "WriteU64",
			schema.I8: "WriteI8", schema.I16: "WriteI16", schema.I32: "WriteI32", schema.I64: "WriteI64",
			schema.F32: "WriteF32", schema.F64: "WriteF64",
			schema.Bool: "WriteBool", schema.Str: "WriteStr",
		}[ty.Builtin]
		return fmt.Sprintf("if err := %s.%s(%s); err != nil { return err }", w, method, expr)
	case schema.KindNamed:
		return fmt.Sprintf("if err := %s.Encode(%s); err != nil { return err }", expr, w)
	case schema.KindArray:
		inner := goEncodeStmt("v", *ty.Elem, w)
		return fmt.Sprintf("for _, v := range %s { %s }", expr, inner)
	case schema.KindDynamicArray:
		inner := goEncodeStmt("v", *ty.Elem, w)
		return fmt.Sprintf("if err := %s.WriteU32(uint32(len(%s))); err != nil { return err }\nfor _, v := range %s { %s }", w, expr, expr, inner)
	default:
		return fmt.Sprintf("if err := %s.Encode(%s); err != nil { return err }", expr, w)
	}
}

func goDecodeExpr(ty schema.Type, r string) string {
	switch ty.Kind {
	case schema.KindBuiltin:
		method := map[schema.Builtin]string{
			schema.U8: "ReadU8", schema.U16: "ReadU16", schema.U32: "ReadU32", schema.U64: "ReadU64",
			schema.I8: "ReadI8", schema.I16: "ReadI16", schema.I32: "ReadI32", schema.I64: "ReadI64",
			schema.F32: "ReadF32", schema.F64: "ReadF64",
			schema.Bool: "ReadBool", schema.Str: "ReadStr",
		}[ty.Builtin]
		return fmt.Sprintf("%s.%s()", r, method)
	default:
		return ""
	}
}

const goFileTemplate = `// Code generated by the tournament engine's codec generator from the
// "{{.Name}}" schema. DO NOT EDIT.

package {{.Package}}

import (
	"github.com/aiarena/engine/internal/codec"
)

{{range .Structs}}
type {{.Name}} struct {
{{range .Fields}}	{{.GoName}} {{.GoType}}
{{end}}}

func (v *{{.Name}}) Encode(w *codec.Writer) error {
{{range .Fields}}	{{.EncodeStmt}}
{{end}}	return nil
}

func (v *{{.Name}}) Decode(r *codec.Reader) error {
{{range .Fields}}	{{.DecodeStmt}}
{{end}}	return nil
}
{{end}}
`

type goField struct {
	GoName     string
	GoType     string
	EncodeStmt string
	DecodeStmt string
}

type goStruct struct {
	Name   string
	Fields []goField
}

func generateGo(iface schema.Interface) (map[string][]byte, error) {
	var structs []goStruct

	for _, nt := range iface.Types {
		if nt.Type.Kind != schema.KindStruct {
			continue
		}
		s := goStruct{Name: exportName(nt.Name)}
		for _, f := range nt.Type.Fields {
			goName := exportName(f.Name)
			goType := goTypeName(f.Type, nt.Name+"_"+f.Name)
			var decodeStmt string
			if expr := goDecodeExpr(f.Type, "r"); expr != "" {
				decodeStmt = fmt.Sprintf("{ val, err := %s; if err != nil { return err }; v.%s = val }", expr, goName)
			} else if f.Type.Kind == schema.KindNamed {
				decodeStmt = fmt.Sprintf("if err := v.%s.Decode(r); err != nil { return err }", goName)
			} else if f.Type.Kind == schema.KindDynamicArray {
				elemType := goTypeName(*f.Type.Elem, "")
				decodeStmt = fmt.Sprintf(
					"{ n, err := r.ReadU32(); if err != nil { return err }; v.%s = make([]%s, n); for i := range v.%s { %s } }",
					goName, elemType, goName, goDecodeIntoSlice(*f.Type.Elem, fmt.Sprintf("v.%s[i]", goName)))
			} else if f.Type.Kind == schema.KindArray {
				decodeStmt = fmt.Sprintf("for i := range v.%s { %s }", goName, goDecodeIntoSlice(*f.Type.Elem, fmt.Sprintf("v.%s[i]", goName)))
			} else {
				decodeStmt = fmt.Sprintf("// unsupported field kind for %s", goName)
			}

			s.Fields = append(s.Fields, goField{
				GoName:     goName,
				GoType:     goType,
				EncodeStmt: goEncodeStmt("v."+goName, f.Type, "w"),
				DecodeStmt: decodeStmt,
			})
		}
		structs = append(structs, s)
	}

	tmpl, err := template.New("go").Parse(goFileTemplate)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	err = tmpl.Execute(&buf, struct {
		Name    string
		Package string
		Structs []goStruct
	}{Name: iface.Name, Package: strings.ToLower(iface.Name), Structs: structs})
	if err != nil {
		return nil, err
	}

	return map[string][]byte{
		strings.ToLower(iface.Name) + "_codec.go": buf.Bytes(),
	}, nil
}

func goDecodeIntoSlice(ty schema.Type, target string) string {
	if expr := goDecodeExpr(ty, "r"); expr != "" {
		return fmt.Sprintf("{ val, err := %s; if err != nil { return err }; %s = val }", expr, target)
	}
	return fmt.Sprintf("if err := %s.Decode(r); err != nil { return err }", target)
}
