package schema

import "fmt"

// Reduce resolves every NamedType reference against the interface's own
// type table. References to builtin and array types are substituted
// inline; references to struct and enum types stay as KindNamed
// references, each of which names a type that Reduce has resolved.
//
// Reduction runs as repeated full passes over the remaining (unresolved)
// type declarations: each pass attempts every remaining entry and folds in
// whatever becomes resolvable once its dependencies land in the lookup
// table, removing resolved entries as it goes. The pass repeats until it
// resolves nothing, at which point any names left in "remaining" form an
// unresolvable cycle (or reference an undeclared name) and Reduce fails
// naming one of them.
func (in Interface) Reduce() (Interface, error) {
	out := Interface{Name: in.Name}
	lookup := make(map[string]Type)

	remaining := make([]NamedType, len(in.Types))
	copy(remaining, in.Types)

	for len(remaining) > 0 {
		resolvedThisPass := false
		next := remaining[:0]

		for _, nt := range remaining {
			if reduced, ok := tryReduceType(nt.Type, lookup); ok {
				lookup[nt.Name] = reduced
				out.Types = append(out.Types, NamedType{Name: nt.Name, Type: reduced})
				resolvedThisPass = true
				continue
			}
			next = append(next, nt)
		}

		remaining = next

		if !resolvedThisPass {
			return Interface{}, fmt.Errorf("schema: could not resolve type %q (unknown dependency or cycle)", remaining[0].Name)
		}
	}

	for _, fn := range in.Functions {
		var args []StructField
		for _, a := range fn.Sig.Args {
			reduced, ok := tryReduceType(a.Type, lookup)
			if !ok {
				return Interface{}, fmt.Errorf("schema: failed to reduce type of argument %q in function %q", a.Name, fn.Name)
			}
			args = append(args, StructField{Name: a.Name, Type: reduced})
		}

		var ret *Type
		if fn.Sig.Ret != nil {
			reduced, ok := tryReduceType(*fn.Sig.Ret, lookup)
			if !ok {
				return Interface{}, fmt.Errorf("schema: failed to reduce return type of function %q", fn.Name)
			}
			ret = &reduced
		}

		out.Functions = append(out.Functions, NamedFunction{
			Name: fn.Name,
			Sig:  FunctionSignature{Args: args, Ret: ret},
		})
	}

	return out, nil
}

func tryReduceStructFields(fields []StructField, lookup map[string]Type) ([]StructField, bool) {
	res := make([]StructField, 0, len(fields))
	for _, f := range fields {
		ty, ok := tryReduceType(f.Type, lookup)
		if !ok {
			return nil, false
		}
		res = append(res, StructField{Name: f.Name, Type: ty})
	}
	return res, true
}

func tryReduceType(ty Type, lookup map[string]Type) (Type, bool) {
	switch ty.Kind {
	case KindBuiltin:
		return ty, true

	case KindStruct:
		fields, ok := tryReduceStructFields(ty.Fields, lookup)
		if !ok {
			return Type{}, false
		}
		return Type{Kind: KindStruct, Fields: fields}, true

	case KindArray:
		elem, ok := tryReduceType(*ty.Elem, lookup)
		if !ok {
			return Type{}, false
		}
		return Type{Kind: KindArray, Elem: &elem, ArrayLen: ty.ArrayLen}, true

	case KindDynamicArray:
		elem, ok := tryReduceType(*ty.Elem, lookup)
		if !ok {
			return Type{}, false
		}
		return Type{Kind: KindDynamicArray, Elem: &elem}, true

	case KindEnum:
		variants := make([]EnumVariant, 0, len(ty.Variants))
		for _, v := range ty.Variants {
			fields, ok := tryReduceStructFields(v.Fields, lookup)
			if !ok {
				return Type{}, false
			}
			variants = append(variants, EnumVariant{Name: v.Name, Fields: fields})
		}
		return Type{Kind: KindEnum, Variants: variants}, true

	case KindNamed:
		resolved, found := lookup[ty.Name]
		if !found {
			return Type{}, false
		}
		switch resolved.Kind {
		case KindArray:
			elem, ok := tryReduceType(*resolved.Elem, lookup)
			if !ok {
				return Type{}, false
			}
			return Type{Kind: KindArray, Elem: &elem, ArrayLen: resolved.ArrayLen}, true
		case KindDynamicArray:
			elem, ok := tryReduceType(*resolved.Elem, lookup)
			if !ok {
				return Type{}, false
			}
			return Type{Kind: KindDynamicArray, Elem: &elem}, true
		case KindBuiltin:
			return Type{Kind: KindBuiltin, Builtin: resolved.Builtin}, true
		default:
			// Struct/Enum: keep the reference; the codec generator resolves
			// named struct/enum types by emitting a shared declaration once.
			return Type{Kind: KindNamed, Name: ty.Name}, true
		}

	default:
		return Type{}, false
	}
}
