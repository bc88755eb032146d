package expr

import "fmt"

// Node is a parsed expression tree node.
type Node interface{ isNode() }

// LiteralNode is a number, string, boolean or null literal.
type LiteralNode struct {
	Value interface{}
}

// IdentNode is a dotted path resolved against the evaluation environment.
type IdentNode struct {
	Name string
}

// UnaryNode is a unary minus applied to an operand.
type UnaryNode struct {
	Op      string
	Operand Node
}

// BinaryNode is a binary operation over the fixed operator set.
type BinaryNode struct {
	Op          string
	Left, Right Node
}

// TernaryNode is cond ? then : else.
type TernaryNode struct {
	Cond, Then, Else Node
}

func (LiteralNode) isNode() {}
func (IdentNode) isNode()   {}
func (UnaryNode) isNode()   {}
func (BinaryNode) isNode()  {}
func (TernaryNode) isNode() {}

// MaxExpressionLength bounds parsed expressions; longer input is rejected
// before lexing.
const MaxExpressionLength = 4096

// Parse parses an expression into a tree. The grammar, highest precedence
// last:
//
//	ternary := or ( '?' ternary ':' ternary )?
//	or      := and ( '||' and )*
//	and     := cmp ( '&&' cmp )*
//	cmp     := add ( ('=='|'!='|'<'|'<='|'>'|'>=') add )?
//	add     := mul ( ('+'|'-') mul )*
//	mul     := unary ( ('*'|'/'|'%') unary )*
//	unary   := '-' unary | primary
//	primary := number | string | true | false | null | ident | '(' ternary ')'
func Parse(input string) (Node, error) {
	if len(input) > MaxExpressionLength {
		return nil, &SyntaxError{Expression: input[:64] + "...", Position: 0, Reason: "expression too long"}
	}
	toks, err := lex(input)
	if err != nil {
		return nil, err
	}
	p := &parser{input: input, toks: toks}
	node, err := p.ternary()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokEOF {
		return nil, p.errorf("unexpected token %q", p.peek().text)
	}
	return node, nil
}

type parser struct {
	input string
	toks  []token
	pos   int
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) errorf(format string, args ...interface{}) error {
	return &SyntaxError{Expression: p.input, Position: p.peek().pos, Reason: fmt.Sprintf(format, args...)}
}

func (p *parser) ternary() (Node, error) {
	cond, err := p.or()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokQuestion {
		return cond, nil
	}
	p.next()
	thenN, err := p.ternary()
	if err != nil {
		return nil, err
	}
	if p.peek().kind != tokColon {
		return nil, p.errorf("expected ':' in ternary")
	}
	p.next()
	elseN, err := p.ternary()
	if err != nil {
		return nil, err
	}
	return TernaryNode{Cond: cond, Then: thenN, Else: elseN}, nil
}

func (p *parser) or() (Node, error) {
	return p.binaryLoop(p.and, "||")
}

func (p *parser) and() (Node, error) {
	return p.binaryLoop(p.cmp, "&&")
}

// cmp is non-associative: a < b < c is a syntax error, not a chained compare.
func (p *parser) cmp() (Node, error) {
	left, err := p.add()
	if err != nil {
		return nil, err
	}
	t := p.peek()
	if t.kind == tokOperator {
		switch t.text {
		case "==", "!=", "<", "<=", ">", ">=":
			p.next()
			right, err := p.add()
			if err != nil {
				return nil, err
			}
			return BinaryNode{Op: t.text, Left: left, Right: right}, nil
		}
	}
	return left, nil
}

func (p *parser) add() (Node, error) {
	return p.binaryLoop(p.mul, "+", "-")
}

func (p *parser) mul() (Node, error) {
	return p.binaryLoop(p.unary, "*", "/", "%")
}

func (p *parser) binaryLoop(operand func() (Node, error), ops ...string) (Node, error) {
	left, err := operand()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.kind != tokOperator || !contains(ops, t.text) {
			return left, nil
		}
		p.next()
		right, err := operand()
		if err != nil {
			return nil, err
		}
		left = BinaryNode{Op: t.text, Left: left, Right: right}
	}
}

func (p *parser) unary() (Node, error) {
	t := p.peek()
	if t.kind == tokOperator && t.text == "-" {
		p.next()
		operand, err := p.unary()
		if err != nil {
			return nil, err
		}
		return UnaryNode{Op: "-", Operand: operand}, nil
	}
	return p.primary()
}

func (p *parser) primary() (Node, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		return LiteralNode{Value: t.num}, nil
	case tokString:
		return LiteralNode{Value: t.text}, nil
	case tokIdent:
		switch t.text {
		case "true":
			return LiteralNode{Value: true}, nil
		case "false":
			return LiteralNode{Value: false}, nil
		case "null":
			return LiteralNode{Value: nil}, nil
		}
		return IdentNode{Name: t.text}, nil
	case tokLParen:
		inner, err := p.ternary()
		if err != nil {
			return nil, err
		}
		if p.peek().kind != tokRParen {
			return nil, p.errorf("expected ')'")
		}
		p.next()
		return inner, nil
	default:
		return nil, &SyntaxError{Expression: p.input, Position: t.pos, Reason: "expected a value"}
	}
}

func contains(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
