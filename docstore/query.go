package docstore

// Where is a single filter predicate. Op uses the store's comparison
// operators: "==", "!=", "<", "<=", ">", ">=", "in", "array-contains".
type Where struct {
	Field string
	Op    string
	Value interface{}
}

// Cursor marks a position in a result set for pagination. It is obtained
// from a previous QueryResult.
type Cursor struct {
	Doc Document
}

func (c *Cursor) orderValue(field string) interface{} {
	return c.Doc.Fields[field]
}

// Query describes a read: ordering, filter predicates, a result limit, and
// optional pagination cursors. The zero value is a valid unconstrained query.
type Query struct {
	// OrderField and OrderDesc control result ordering. When OrderField is
	// empty the store's stamp field is used, descending, so results are
	// deterministically sorted even for unconstrained queries.
	OrderField string
	OrderDesc  bool

	Where []Where

	// Limit caps the result count when positive.
	Limit int

	// StartAfter and EndBefore bound the result set for pagination.
	StartAfter *Cursor
	EndBefore  *Cursor
}

// normalized applies the default-ordering invariant.
func (q Query) normalized(stampField string) Query {
	if q.OrderField == "" {
		q.OrderField = stampField
		q.OrderDesc = true
	}
	return q
}

// MergeQueries lays override on top of base: any field explicitly set on
// override replaces the base value, the rest carry over.
func MergeQueries(base, override Query) Query {
	merged := base
	if override.OrderField != "" {
		merged.OrderField = override.OrderField
		merged.OrderDesc = override.OrderDesc
	}
	if override.Where != nil {
		merged.Where = override.Where
	}
	if override.Limit != 0 {
		merged.Limit = override.Limit
	}
	if override.StartAfter != nil {
		merged.StartAfter = override.StartAfter
	}
	if override.EndBefore != nil {
		merged.EndBefore = override.EndBefore
	}
	return merged
}
