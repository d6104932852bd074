package parser

// Walk visits root and its descendants depth-first in source order.
// Returning false from fn skips the children of the visited node.
func Walk(root Node, fn func(Node) bool) {
	if root == nil || isNilNode(root) {
		return
	}
	if !fn(root) {
		return
	}
	for _, child := range root.Children() {
		Walk(child, fn)
	}
}

// Collect returns every node of type T under root, in source order.
//
//	tables := parser.Collect[*parser.TableNameCorrelation](query)
func Collect[T Node](root Node) []T {
	var out []T
	Walk(root, func(n Node) bool {
		if t, ok := n.(T); ok {
			out = append(out, t)
		}
		return true
	})
	return out
}

// CollectKind returns every node of the given kind under root.
func CollectKind(root Node, kind NodeKind) []Node {
	var out []Node
	Walk(root, func(n Node) bool {
		if n.Kind() == kind {
			out = append(out, n)
		}
		return true
	})
	return out
}

// IsAggregate reports whether node is, or contains, a set function.
func IsAggregate(node Node) bool {
	if node == nil || isNilNode(node) {
		return false
	}
	if node.Kind() == KindSetFunction {
		return true
	}
	for _, child := range node.Children() {
		if IsAggregate(child) {
			return true
		}
	}
	return false
}

// HasSetFunction reports whether any select item contains a set function.
func (q *QuerySpecification) HasSetFunction() bool {
	if q.Select == nil {
		return false
	}
	return IsAggregate(q.Select)
}

// IsAggregate reports whether the query produces aggregated rows: it uses a
// set function in the select list, groups, or selects DISTINCT.
func (q *QuerySpecification) IsAggregate() bool {
	return q.Distinct || len(q.GroupBy) > 0 || q.HasSetFunction()
}

// Tables returns the table correlations in FROM order.
func (q *QuerySpecification) Tables() []*TableNameCorrelation {
	if q.From == nil {
		return nil
	}
	return Collect[*TableNameCorrelation](q.From)
}

// IsJoin reports whether the query references more than one table.
func (q *QuerySpecification) IsJoin() bool {
	return q.From != nil && len(q.From.Joins) > 0
}
