package typegoose

// =====================================
// Query Building
// =====================================

// FindOption configures a find query
type FindOption interface {
	Apply(query *FindQuery)
}

// FindQuery represents the filter, ordering and paging of a find
type FindQuery struct {
	Filter map[string]any
	Orders []Order
	Limit  *int
	Skip   *int
}

// Order represents a sort key
type Order struct {
	Field     string
	Direction OrderDirection
}

// NewFindQuery builds a query from a base filter and options. The filter map
// is copied.
func NewFindQuery(filter map[string]any, opts ...FindOption) *FindQuery {
	q := &FindQuery{Filter: make(map[string]any, len(filter))}
	for k, v := range filter {
		q.Filter[k] = v
	}
	for _, opt := range opts {
		opt.Apply(q)
	}
	return q
}

// whereOption matches a path against a value or a {"$in": [...]} set
type whereOption struct {
	field string
	value any
}

func (o whereOption) Apply(query *FindQuery) {
	if query.Filter == nil {
		query.Filter = make(map[string]any)
	}
	query.Filter[o.field] = o.value
}

// OrderOption adds a sort key
type OrderOption struct {
	Order Order
}

func (o OrderOption) Apply(query *FindQuery) {
	query.Orders = append(query.Orders, o.Order)
}

// LimitOption caps the number of results
type LimitOption struct {
	Count int
}

func (o LimitOption) Apply(query *FindQuery) {
	query.Limit = &o.Count
}

// SkipOption skips leading results
type SkipOption struct {
	Count int
}

func (o SkipOption) Apply(query *FindQuery) {
	query.Skip = &o.Count
}

// Where matches documents whose field equals value
func Where(field string, value any) FindOption {
	return whereOption{field: field, value: value}
}

// WhereIn matches documents whose field equals one of values
func WhereIn(field string, values ...any) FindOption {
	return whereOption{field: field, value: map[string]any{"$in": values}}
}

// OrderBy sorts results by field
func OrderBy(field string, direction OrderDirection) FindOption {
	return OrderOption{Order: Order{Field: field, Direction: direction}}
}

// Limit caps the number of results
func Limit(count int) FindOption {
	return LimitOption{Count: count}
}

// Skip skips the first count results
func Skip(count int) FindOption {
	return SkipOption{Count: count}
}
