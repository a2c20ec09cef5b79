package expr

// Node is an element of a parsed expression tree.
type Node interface {
	Pos() int
}

type (
	// Literal is a number, string, boolean or null constant.
	Literal struct {
		At    int
		Value any
	}

	// Variable is a $-prefixed root reference such as $vars or $output.
	Variable struct {
		At   int
		Name string
	}

	// Member is a dotted property access: Object.Name.
	Member struct {
		At     int
		Object Node
		Name   string
	}

	// Index is a bracketed access: Object[Index].
	Index struct {
		At     int
		Object Node
		Index  Node
	}

	// Call invokes a builtin function: $name(args...).
	Call struct {
		At   int
		Name string
		Args []Node
	}

	Unary struct {
		At      int
		Op      string
		Operand Node
	}

	Binary struct {
		At    int
		Op    string
		Left  Node
		Right Node
	}

	Conditional struct {
		At   int
		Cond Node
		Then Node
		Else Node
	}

	ArrayLit struct {
		At    int
		Items []Node
	}

	ObjectLit struct {
		At     int
		Keys   []string
		Values []Node
	}
)

func (n *Literal) Pos() int     { return n.At }
func (n *Variable) Pos() int    { return n.At }
func (n *Member) Pos() int      { return n.At }
func (n *Index) Pos() int       { return n.At }
func (n *Call) Pos() int        { return n.At }
func (n *Unary) Pos() int       { return n.At }
func (n *Binary) Pos() int      { return n.At }
func (n *Conditional) Pos() int { return n.At }
func (n *ArrayLit) Pos() int    { return n.At }
func (n *ObjectLit) Pos() int   { return n.At }

// Walk visits n and all of its descendants in depth-first order.
// Returning false from fn stops descent into the node's children.
func Walk(n Node, fn func(Node) bool) {
	if n == nil || !fn(n) {
		return
	}
	switch v := n.(type) {
	case *Member:
		Walk(v.Object, fn)
	case *Index:
		Walk(v.Object, fn)
		Walk(v.Index, fn)
	case *Call:
		for _, a := range v.Args {
			Walk(a, fn)
		}
	case *Unary:
		Walk(v.Operand, fn)
	case *Binary:
		Walk(v.Left, fn)
		Walk(v.Right, fn)
	case *Conditional:
		Walk(v.Cond, fn)
		Walk(v.Then, fn)
		Walk(v.Else, fn)
	case *ArrayLit:
		for _, item := range v.Items {
			Walk(item, fn)
		}
	case *ObjectLit:
		for _, val := range v.Values {
			Walk(val, fn)
		}
	}
}
