package parser

import "github.com/leapstack-labs/leaptable/pkg/token"

// NodeKind identifies the concrete type of an AST node. The set of kinds is
// closed: every node in a tree is one of the types declared in this file.
type NodeKind int

// Node kinds.
const (
	KindQuerySpecification NodeKind = iota
	KindSelectList
	KindDerivedColumn
	KindFromClause
	KindTableNameCorrelation
	KindQualifiedJoin
	KindSortSpecification
	KindPagination

	// value expressions
	KindColumnReference
	KindLiteral
	KindBindVariable
	KindArithmeticExpr
	KindUnaryExpr
	KindSetFunction
	KindFunctionCall
	KindParenExpr

	// conditions
	KindLogicalCondition
	KindNotCondition
	KindParenCondition
	KindComparisonPredicate
	KindBetweenPredicate
	KindInPredicate
	KindLikePredicate
	KindIsPredicate
)

// Node is implemented by every AST node.
type Node interface {
	Kind() NodeKind
	// Children returns the direct child nodes in source order.
	Children() []Node
}

// Expr is a value expression.
type Expr interface {
	Node
	exprNode()
}

// Condition is a boolean search condition.
type Condition interface {
	Node
	conditionNode()
}

// ---------- Query ----------

// QuerySpecification is a complete SELECT query. Nodes are treated as
// immutable once parsed; derived queries copy the top-level struct and
// replace clauses.
type QuerySpecification struct {
	Distinct   bool
	Select     *SelectList
	From       *FromClause
	Where      Condition
	GroupBy    []Expr
	Having     Condition
	OrderBy    []*SortSpecification
	Pagination *Pagination
}

// SelectList is either "*" or a list of derived columns.
type SelectList struct {
	Star    bool
	Columns []*DerivedColumn
}

// DerivedColumn is one select item with an optional alias.
type DerivedColumn struct {
	Expr  Expr
	Alias string
}

// FromClause is the primary table followed by zero or more joins.
type FromClause struct {
	Table *TableNameCorrelation
	Joins []*QualifiedJoin
}

// TableNameCorrelation is a table reference such as "syn123.4 AS t".
type TableNameCorrelation struct {
	// Name is the table name as written, e.g. "syn123" or "syn123.4".
	Name  string
	Alias string
}

// JoinType is the kind of a qualified join.
type JoinType int

// Join types.
const (
	JoinPlain JoinType = iota // JOIN
	JoinInner
	JoinLeft
	JoinLeftOuter
	JoinRight
	JoinRightOuter
	JoinFull
	JoinFullOuter
	JoinCross
)

// String returns the SQL keywords for the join type.
func (j JoinType) String() string {
	switch j {
	case JoinInner:
		return "INNER JOIN"
	case JoinLeft:
		return "LEFT JOIN"
	case JoinLeftOuter:
		return "LEFT OUTER JOIN"
	case JoinRight:
		return "RIGHT JOIN"
	case JoinRightOuter:
		return "RIGHT OUTER JOIN"
	case JoinFull:
		return "FULL JOIN"
	case JoinFullOuter:
		return "FULL OUTER JOIN"
	case JoinCross:
		return "CROSS JOIN"
	default:
		return "JOIN"
	}
}

// QualifiedJoin joins one more table to the FROM clause.
type QualifiedJoin struct {
	Type  JoinType
	Table *TableNameCorrelation
	On    Condition
}

// SortSpecification is one ORDER BY item. Direction is "", "ASC" or "DESC".
type SortSpecification struct {
	Expr      Expr
	Direction string
}

// Pagination holds LIMIT and OFFSET values.
type Pagination struct {
	Limit  Expr
	Offset Expr
}

// ---------- Value expressions ----------

// ColumnReference names a column, optionally qualified by a table or alias.
type ColumnReference struct {
	Qualifier string
	Name      string
	// Quoted is set when the name was written as a quoted identifier.
	Quoted bool
}

// LiteralType classifies literals.
type LiteralType int

// Literal types.
const (
	LiteralString LiteralType = iota
	LiteralNumber
	LiteralBoolean
	LiteralNull
)

// Literal is a constant value. Value holds the unquoted text.
type Literal struct {
	Type  LiteralType
	Value string
}

// BindVariable is a named parameter such as ":b0". It never comes from user
// input; translation replaces values with bind variables.
type BindVariable struct {
	Name string
}

// ArithmeticExpr is a binary arithmetic operation (+, -, *, /, %, DIV).
type ArithmeticExpr struct {
	Op    token.TokenType
	Left  Expr
	Right Expr
}

// UnaryExpr is a signed value (+x, -x).
type UnaryExpr struct {
	Op   token.TokenType
	Expr Expr
}

// SetFunctionType enumerates the aggregate functions.
type SetFunctionType string

// Set functions.
const (
	SetCount SetFunctionType = "COUNT"
	SetSum   SetFunctionType = "SUM"
	SetAvg   SetFunctionType = "AVG"
	SetMin   SetFunctionType = "MIN"
	SetMax   SetFunctionType = "MAX"
)

var setFunctions = map[string]SetFunctionType{
	"COUNT": SetCount,
	"SUM":   SetSum,
	"AVG":   SetAvg,
	"MIN":   SetMin,
	"MAX":   SetMax,
}

// SetFunction is an aggregate function call. Star is set for COUNT(*).
type SetFunction struct {
	Type     SetFunctionType
	Distinct bool
	Star     bool
	Arg      Expr
}

// FunctionCall is a non-aggregate function call. Name is upper case.
type FunctionCall struct {
	Name string
	Args []Expr
}

// ParenExpr is a parenthesized value expression.
type ParenExpr struct {
	Expr Expr
}

// ---------- Conditions ----------

// LogicalCondition joins two conditions with AND or OR.
type LogicalCondition struct {
	Op    token.TokenType
	Left  Condition
	Right Condition
}

// NotCondition negates a condition.
type NotCondition struct {
	Cond Condition
}

// ParenCondition is a parenthesized condition.
type ParenCondition struct {
	Cond Condition
}

// ComparisonPredicate is "left op right".
type ComparisonPredicate struct {
	Left  Expr
	Op    token.TokenType
	Right Expr
}

// BetweenPredicate is "expr [NOT] BETWEEN low AND high".
type BetweenPredicate struct {
	Expr Expr
	Not  bool
	Low  Expr
	High Expr
}

// InPredicate is "expr [NOT] IN (values)".
type InPredicate struct {
	Expr   Expr
	Not    bool
	Values []Expr
}

// LikePredicate is "expr [NOT] LIKE pattern [ESCAPE escape]".
type LikePredicate struct {
	Expr    Expr
	Not     bool
	Pattern Expr
	Escape  Expr
}

// IsPredicate is "expr IS [NOT] NULL|TRUE|FALSE". Truth is one of
// token.NULL, token.TRUE or token.FALSE.
type IsPredicate struct {
	Expr  Expr
	Not   bool
	Truth token.TokenType
}

// ---------- Node implementations ----------

func (*QuerySpecification) Kind() NodeKind   { return KindQuerySpecification }
func (*SelectList) Kind() NodeKind           { return KindSelectList }
func (*DerivedColumn) Kind() NodeKind        { return KindDerivedColumn }
func (*FromClause) Kind() NodeKind           { return KindFromClause }
func (*TableNameCorrelation) Kind() NodeKind { return KindTableNameCorrelation }
func (*QualifiedJoin) Kind() NodeKind        { return KindQualifiedJoin }
func (*SortSpecification) Kind() NodeKind    { return KindSortSpecification }
func (*Pagination) Kind() NodeKind           { return KindPagination }
func (*ColumnReference) Kind() NodeKind      { return KindColumnReference }
func (*Literal) Kind() NodeKind              { return KindLiteral }
func (*BindVariable) Kind() NodeKind         { return KindBindVariable }
func (*ArithmeticExpr) Kind() NodeKind       { return KindArithmeticExpr }
func (*UnaryExpr) Kind() NodeKind            { return KindUnaryExpr }
func (*SetFunction) Kind() NodeKind          { return KindSetFunction }
func (*FunctionCall) Kind() NodeKind         { return KindFunctionCall }
func (*ParenExpr) Kind() NodeKind            { return KindParenExpr }
func (*LogicalCondition) Kind() NodeKind     { return KindLogicalCondition }
func (*NotCondition) Kind() NodeKind         { return KindNotCondition }
func (*ParenCondition) Kind() NodeKind       { return KindParenCondition }
func (*ComparisonPredicate) Kind() NodeKind  { return KindComparisonPredicate }
func (*BetweenPredicate) Kind() NodeKind     { return KindBetweenPredicate }
func (*InPredicate) Kind() NodeKind          { return KindInPredicate }
func (*LikePredicate) Kind() NodeKind        { return KindLikePredicate }
func (*IsPredicate) Kind() NodeKind          { return KindIsPredicate }

func (*ColumnReference) exprNode() {}
func (*Literal) exprNode()         {}
func (*BindVariable) exprNode()    {}
func (*ArithmeticExpr) exprNode()  {}
func (*UnaryExpr) exprNode()       {}
func (*SetFunction) exprNode()     {}
func (*FunctionCall) exprNode()    {}
func (*ParenExpr) exprNode()       {}

func (*LogicalCondition) conditionNode()    {}
func (*NotCondition) conditionNode()        {}
func (*ParenCondition) conditionNode()      {}
func (*ComparisonPredicate) conditionNode() {}
func (*BetweenPredicate) conditionNode()    {}
func (*InPredicate) conditionNode()         {}
func (*LikePredicate) conditionNode()       {}
func (*IsPredicate) conditionNode()         {}

// nodes drops nil entries so Children never reports absent clauses.
func nodes(ns ...Node) []Node {
	out := make([]Node, 0, len(ns))
	for _, n := range ns {
		if n == nil || isNilNode(n) {
			continue
		}
		out = append(out, n)
	}
	return out
}

// isNilNode catches typed nil pointers stored in interfaces.
func isNilNode(n Node) bool {
	switch v := n.(type) {
	case *SelectList:
		return v == nil
	case *FromClause:
		return v == nil
	case *Pagination:
		return v == nil
	case *TableNameCorrelation:
		return v == nil
	}
	return false
}

func (q *QuerySpecification) Children() []Node {
	out := nodes(q.Select, q.From, q.Where)
	for _, g := range q.GroupBy {
		out = append(out, g)
	}
	out = append(out, nodes(q.Having)...)
	for _, o := range q.OrderBy {
		out = append(out, o)
	}
	return append(out, nodes(q.Pagination)...)
}

func (s *SelectList) Children() []Node {
	out := make([]Node, 0, len(s.Columns))
	for _, c := range s.Columns {
		out = append(out, c)
	}
	return out
}

func (d *DerivedColumn) Children() []Node { return nodes(d.Expr) }

func (f *FromClause) Children() []Node {
	out := nodes(f.Table)
	for _, j := range f.Joins {
		out = append(out, j)
	}
	return out
}

func (*TableNameCorrelation) Children() []Node { return nil }
func (j *QualifiedJoin) Children() []Node      { return nodes(j.Table, j.On) }
func (s *SortSpecification) Children() []Node  { return nodes(s.Expr) }
func (p *Pagination) Children() []Node         { return nodes(p.Limit, p.Offset) }
func (*ColumnReference) Children() []Node      { return nil }
func (*Literal) Children() []Node              { return nil }
func (*BindVariable) Children() []Node         { return nil }
func (a *ArithmeticExpr) Children() []Node     { return nodes(a.Left, a.Right) }
func (u *UnaryExpr) Children() []Node          { return nodes(u.Expr) }
func (s *SetFunction) Children() []Node        { return nodes(s.Arg) }

func (f *FunctionCall) Children() []Node {
	out := make([]Node, 0, len(f.Args))
	for _, a := range f.Args {
		out = append(out, a)
	}
	return out
}

func (p *ParenExpr) Children() []Node           { return nodes(p.Expr) }
func (l *LogicalCondition) Children() []Node    { return nodes(l.Left, l.Right) }
func (n *NotCondition) Children() []Node        { return nodes(n.Cond) }
func (p *ParenCondition) Children() []Node      { return nodes(p.Cond) }
func (c *ComparisonPredicate) Children() []Node { return nodes(c.Left, c.Right) }
func (b *BetweenPredicate) Children() []Node    { return nodes(b.Expr, b.Low, b.High) }

func (i *InPredicate) Children() []Node {
	out := nodes(i.Expr)
	for _, v := range i.Values {
		out = append(out, v)
	}
	return out
}

func (l *LikePredicate) Children() []Node { return nodes(l.Expr, l.Pattern, l.Escape) }
func (i *IsPredicate) Children() []Node   { return nodes(i.Expr) }
