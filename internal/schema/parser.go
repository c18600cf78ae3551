package schema

import "fmt"

// Parser builds an Interface from schema source, one token of lookahead at
// a time, mirroring the grammar: `type Name = <expr>;` and
// `function name = (args) -> ret;` top-level statements.
type Parser struct {
	lex     *lexer
	peeked  *token
	peekErr error
	res     Interface
}

// NewParser creates a Parser over source, recording name as the
// interface's declared name.
func NewParser(source, name string) *Parser {
	return &Parser{
		lex: newLexer(source),
		res: Interface{Name: name},
	}
}

// Parse consumes the lexer to EOF and returns the parsed Interface.
func (p *Parser) Parse() (Interface, error) {
	for {
		tok, err := p.peek()
		if err != nil {
			return Interface{}, err
		}
		if tok == nil {
			break
		}
		if err := p.parseTopLevel(); err != nil {
			return Interface{}, err
		}
	}
	return p.res, nil
}

// Parse is a convenience wrapper around NewParser(source, name).Parse().
func Parse(source, name string) (Interface, error) {
	return NewParser(source, name).Parse()
}

func (p *Parser) peek() (*token, error) {
	if p.peeked != nil || p.peekErr != nil {
		return p.peeked, p.peekErr
	}
	tok, err := p.lex.next()
	p.peeked, p.peekErr = tok, err
	return tok, err
}

func (p *Parser) nextToken() (*token, error) {
	if p.peeked != nil || p.peekErr != nil {
		tok, err := p.peeked, p.peekErr
		p.peeked, p.peekErr = nil, nil
		if err != nil {
			return nil, err
		}
		if tok == nil {
			return nil, fmt.Errorf("unexpected EOF")
		}
		return tok, nil
	}
	tok, err := p.lex.next()
	if err != nil {
		return nil, err
	}
	if tok == nil {
		return nil, fmt.Errorf("unexpected EOF")
	}
	return tok, nil
}

func (p *Parser) consume(kind tokenKind) error {
	tok, err := p.nextToken()
	if err != nil {
		return err
	}
	if tok.kind != kind {
		return fmt.Errorf("line %d, col %d: unexpected token", tok.line, tok.col)
	}
	return nil
}

func (p *Parser) parseTopLevel() error {
	tok, err := p.nextToken()
	if err != nil {
		return err
	}

	switch tok.kind {
	case tokType:
		if err := p.parseTypeDef(); err != nil {
			return err
		}
	case tokFunction:
		if err := p.parseFunction(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("line %d, col %d: unexpected token at top level", tok.line, tok.col)
	}

	return p.consume(tokSemicolon)
}

func (p *Parser) parseTypeDef() error {
	tok, err := p.nextToken()
	if err != nil {
		return err
	}
	if tok.kind != tokIdentifier {
		return fmt.Errorf("line %d, col %d: expected identifier", tok.line, tok.col)
	}
	name := tok.ident

	if err := p.consume(tokEquals); err != nil {
		return err
	}

	ty, err := p.parseTypeExpr()
	if err != nil {
		return err
	}

	p.res.Types = append(p.res.Types, NamedType{Name: name, Type: ty})
	return nil
}

func (p *Parser) parseTypeExpr() (Type, error) {
	tok, err := p.nextToken()
	if err != nil {
		return Type{}, err
	}

	switch tok.kind {
	case tokBuiltinType:
		return Type{Kind: KindBuiltin, Builtin: tok.builtin}, nil
	case tokIdentifier:
		return Type{Kind: KindNamed, Name: tok.ident}, nil
	case tokStruct:
		fields, err := p.parseStruct()
		if err != nil {
			return Type{}, err
		}
		return Type{Kind: KindStruct, Fields: fields}, nil
	case tokEnum:
		variants, err := p.parseEnum()
		if err != nil {
			return Type{}, err
		}
		return Type{Kind: KindEnum, Variants: variants}, nil
	case tokOpenBracket:
		return p.parseArray()
	default:
		return Type{}, fmt.Errorf("line %d, col %d: expected type expression", tok.line, tok.col)
	}
}

// parseDirectTypeExpr parses a type expression that may not itself start a
// nested struct/enum/array definition (only builtins and named references),
// matching the grammar's restriction inside struct field lists.
func (p *Parser) parseDirectTypeExpr() (Type, error) {
	tok, err := p.nextToken()
	if err != nil {
		return Type{}, err
	}
	switch tok.kind {
	case tokBuiltinType:
		return Type{Kind: KindBuiltin, Builtin: tok.builtin}, nil
	case tokIdentifier:
		return Type{Kind: KindNamed, Name: tok.ident}, nil
	default:
		return Type{}, fmt.Errorf("line %d, col %d: expected type expression", tok.line, tok.col)
	}
}

func (p *Parser) parseStruct() ([]StructField, error) {
	var res []StructField

	if err := p.consume(tokOpenBrace); err != nil {
		return nil, err
	}

	for {
		tok, err := p.peek()
		if err != nil {
			return nil, err
		}
		if tok == nil || tok.kind == tokCloseBrace {
			break
		}

		nameTok, err := p.nextToken()
		if err != nil {
			return nil, err
		}
		if nameTok.kind != tokIdentifier {
			return nil, fmt.Errorf("line %d, col %d: expected identifier", nameTok.line, nameTok.col)
		}

		if err := p.consume(tokColon); err != nil {
			return nil, err
		}

		ty, err := p.parseDirectTypeExpr()
		if err != nil {
			return nil, err
		}

		res = append(res, StructField{Name: nameTok.ident, Type: ty})

		next, err := p.peek()
		if err != nil {
			return nil, err
		}
		if next != nil && next.kind == tokComma {
			if _, err := p.nextToken(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}

	return res, p.consume(tokCloseBrace)
}

func (p *Parser) parseEnum() ([]EnumVariant, error) {
	var res []EnumVariant

	if err := p.consume(tokOpenBrace); err != nil {
		return nil, err
	}

	for {
		tok, err := p.peek()
		if err != nil {
			return nil, err
		}
		if tok == nil || tok.kind == tokCloseBrace {
			break
		}

		nameTok, err := p.nextToken()
		if err != nil {
			return nil, err
		}
		if nameTok.kind != tokIdentifier {
			return nil, fmt.Errorf("line %d, col %d: expected identifier", nameTok.line, nameTok.col)
		}

		peeked, err := p.peek()
		if err != nil {
			return nil, err
		}

		var fields []StructField
		if peeked != nil && peeked.kind == tokOpenBrace {
			fields, err = p.parseStruct()
			if err != nil {
				return nil, err
			}
		}

		res = append(res, EnumVariant{Name: nameTok.ident, Fields: fields})

		next, err := p.peek()
		if err != nil {
			return nil, err
		}
		if next != nil && next.kind == tokComma {
			if _, err := p.nextToken(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}

	return res, p.consume(tokCloseBrace)
}

func (p *Parser) parseArray() (Type, error) {
	elem, err := p.parseTypeExpr()
	if err != nil {
		return Type{}, err
	}

	tok, err := p.peek()
	if err != nil {
		return Type{}, err
	}

	if tok != nil && tok.kind == tokSemicolon {
		if _, err := p.nextToken(); err != nil {
			return Type{}, err
		}
		sizeTok, err := p.nextToken()
		if err != nil {
			return Type{}, err
		}
		if sizeTok.kind != tokNumber {
			return Type{}, fmt.Errorf("line %d, col %d: expected integer", sizeTok.line, sizeTok.col)
		}
		if err := p.consume(tokCloseBracket); err != nil {
			return Type{}, err
		}
		return Type{Kind: KindArray, Elem: &elem, ArrayLen: int(sizeTok.number)}, nil
	}

	if err := p.consume(tokCloseBracket); err != nil {
		return Type{}, err
	}
	return Type{Kind: KindDynamicArray, Elem: &elem}, nil
}

func (p *Parser) parseFunction() error {
	nameTok, err := p.nextToken()
	if err != nil {
		return err
	}
	if nameTok.kind != tokIdentifier {
		return fmt.Errorf("line %d, col %d: expected identifier", nameTok.line, nameTok.col)
	}

	if err := p.consume(tokEquals); err != nil {
		return err
	}
	if err := p.consume(tokOpenParen); err != nil {
		return err
	}

	var args []StructField
	for {
		tok, err := p.peek()
		if err != nil {
			return err
		}
		if tok == nil || tok.kind == tokCloseParen {
			break
		}

		argName, err := p.nextToken()
		if err != nil {
			return err
		}
		if argName.kind != tokIdentifier {
			return fmt.Errorf("line %d, col %d: expected identifier", argName.line, argName.col)
		}

		if err := p.consume(tokColon); err != nil {
			return err
		}

		ty, err := p.parseTypeExpr()
		if err != nil {
			return err
		}

		args = append(args, StructField{Name: argName.ident, Type: ty})

		next, err := p.peek()
		if err != nil {
			return err
		}
		if next != nil && next.kind == tokComma {
			if _, err := p.nextToken(); err != nil {
				return err
			}
			continue
		}
		break
	}

	if err := p.consume(tokCloseParen); err != nil {
		return err
	}

	var ret *Type
	arrow, err := p.peek()
	if err != nil {
		return err
	}
	if arrow != nil && arrow.kind == tokArrow {
		if _, err := p.nextToken(); err != nil {
			return err
		}
		retTy, err := p.parseTypeExpr()
		if err != nil {
			return err
		}
		ret = &retTy
	}

	p.res.Functions = append(p.res.Functions, NamedFunction{
		Name: nameTok.ident,
		Sig:  FunctionSignature{Args: args, Ret: ret},
	})

	return nil
}
