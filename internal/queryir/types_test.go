package queryir

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterVariantsAreSealed(t *testing.T) {
	filters := []Filter{
		&SimpleFilter{Field: "amount", Operator: OpGT, Values: []any{5.0}},
		&CompositeFilter{Connector: And},
		&AggregateFilter{Aggregator: Aggregator{Field: "amount", Operator: Sum}, Operator: OpGT, Values: []any{30.0}},
	}

	for _, f := range filters {
		switch f.(type) {
		case *SimpleFilter, *CompositeFilter, *AggregateFilter:
		default:
			t.Fatalf("unexpected variant %T", f)
		}
	}
}

func TestParseFilterOperator(t *testing.T) {
	for _, name := range []string{"EQ", "NE", "LT", "LE", "GT", "GE", "LIKE", "NOTLIKE", "IN", "NOTIN", "BETWEEN", "ISNULL", "NOTNULL"} {
		op, ok := ParseFilterOperator(name)
		require.True(t, ok, name)
		assert.Equal(t, name, string(op))
	}

	for _, name := range []string{"", "eq", "CONTAINS", "NOT_IN"} {
		_, ok := ParseFilterOperator(name)
		assert.False(t, ok, name)
	}
}

func TestCheckArity(t *testing.T) {
	tests := []struct {
		op    FilterOperator
		n     int
		valid bool
	}{
		{OpIsNull, 0, true},
		{OpIsNull, 1, false},
		{OpNotNull, 0, true},
		{OpBetween, 2, true},
		{OpBetween, 1, false},
		{OpBetween, 3, false},
		{OpIn, 1, true},
		{OpIn, 4, true},
		{OpNotIn, 0, false},
		{OpEQ, 1, true},
		{OpEQ, 2, false},
		{OpLike, 0, false},
	}

	for _, tt := range tests {
		err := tt.op.CheckArity(tt.n)
		if tt.valid {
			assert.NoError(t, err, "%s/%d", tt.op, tt.n)
		} else {
			assert.Error(t, err, "%s/%d", tt.op, tt.n)
		}
	}
}

func TestParseEnums(t *testing.T) {
	_, ok := ParseConnector("AND")
	assert.True(t, ok)
	_, ok = ParseConnector("XOR")
	assert.False(t, ok)

	_, ok = ParseAggregateOperator("COUNT")
	assert.True(t, ok)
	_, ok = ParseAggregateOperator("MEDIAN")
	assert.False(t, ok)

	_, ok = ParseDirection("DESC")
	assert.True(t, ok)
	_, ok = ParseDirection("desc")
	assert.False(t, ok)
}

func TestDefaultAlias(t *testing.T) {
	assert.Equal(t, "sum_amount", DefaultAlias(Sum, "amount"))
	assert.Equal(t, "count_products.name", DefaultAlias(Count, "products.name"))

	assert.Equal(t, "totalSum", Aggregator{Field: "amount", Operator: Sum, Alias: "totalSum"}.OutputAlias())
	assert.Equal(t, "avg_amount", Aggregator{Field: "amount", Operator: Avg}.OutputAlias())
}

func TestSortedOrderBys(t *testing.T) {
	q := &DynaQuery{OrderBys: []OrderBy{
		{Field: "amount", Direction: Asc, Sequence: 1},
		{Field: "name", Direction: Desc, Sequence: 0},
		{Field: "status", Direction: Asc, Sequence: 1},
	}}

	got := q.SortedOrderBys()
	want := []OrderBy{
		{Field: "name", Direction: Desc, Sequence: 0},
		{Field: "amount", Direction: Asc, Sequence: 1},
		{Field: "status", Direction: Asc, Sequence: 1},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("SortedOrderBys() mismatch (-want +got):\n%s", diff)
	}

	// Input is untouched.
	assert.Equal(t, "amount", q.OrderBys[0].Field)
}

func TestVisibleProjections(t *testing.T) {
	q := &DynaQuery{ProjectBys: []ProjectBy{
		{Field: "amount", Visible: true},
		{Field: "status", Visible: false},
		{Field: "orderId", Visible: true},
	}}
	assert.Equal(t, []string{"amount", "orderId"}, q.VisibleProjections())
	assert.Nil(t, (&DynaQuery{}).VisibleProjections())
}

func TestDepth(t *testing.T) {
	leaf := &SimpleFilter{Field: "a", Operator: OpEQ, Values: []any{"x"}}
	assert.Equal(t, 0, Depth(nil))
	assert.Equal(t, 1, Depth(leaf))
	assert.Equal(t, 1, Depth(&CompositeFilter{Connector: And}))

	tree := &CompositeFilter{Connector: Or, Filters: []Filter{
		leaf,
		&CompositeFilter{Connector: And, Filters: []Filter{leaf, leaf}},
	}}
	assert.Equal(t, 3, Depth(tree))
}
