package querysql

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dynaquery/internal/dqerr"
	"github.com/roach88/dynaquery/internal/queryir"
	"github.com/roach88/dynaquery/internal/testutil"
)

func newCompiler(t *testing.T) *Compiler {
	return NewCompiler(testutil.Registry(t))
}

func eq(field string, v any) *queryir.SimpleFilter {
	return &queryir.SimpleFilter{Field: field, Operator: queryir.OpEQ, Values: []any{v}}
}

func render(t *testing.T, p interface {
	SQL() (string, []any, error)
}) (string, []any) {
	t.Helper()
	sql, args, err := p.SQL()
	require.NoError(t, err)
	return sql, args
}

func TestCompile_JoinsFollowCardinality(t *testing.T) {
	c := newCompiler(t)

	plan, err := c.Compile(&queryir.DynaQuery{TargetView: "Order"}, ShapeEntity)
	require.NoError(t, err)

	sql, args := render(t, plan)
	assert.Contains(t, sql, "SELECT DISTINCT `orders`.*")
	assert.Contains(t, sql, "INNER JOIN `customers` AS `customer` ON (`customer`.`customer_id` = `orders`.`customer_id`)")
	assert.Contains(t, sql, "LEFT JOIN `products` AS `products` ON (`products`.`order_id` = `orders`.`order_id`)")
	assert.NotContains(t, sql, "WHERE")
	assert.True(t, strings.HasSuffix(sql, "ORDER BY `orders`.`order_id` ASC"), sql)
	assert.Empty(t, args)
	assert.Equal(t, ShapeEntity, plan.Shape)
}

func TestCompile_FlatViewHasNoJoins(t *testing.T) {
	c := newCompiler(t)

	plan, err := c.Compile(&queryir.DynaQuery{TargetView: "Customer"}, ShapeEntity)
	require.NoError(t, err)

	sql, _ := render(t, plan)
	assert.NotContains(t, sql, "JOIN")
}

func TestCompile_LeafOperators(t *testing.T) {
	placed := time.Date(2024, 1, 2, 5, 0, 0, 0, time.FixedZone("X", 3600))

	tests := []struct {
		name     string
		filter   queryir.Filter
		wantSQL  string
		wantArgs []any
	}{
		{
			name:     "eq",
			filter:   eq("shippingAddress", testutil.NewYork),
			wantSQL:  "(`orders`.`shipping_address` = ?)",
			wantArgs: []any{testutil.NewYork},
		},
		{
			name:     "ne",
			filter:   &queryir.SimpleFilter{Field: "quantity", Operator: queryir.OpNE, Values: []any{int64(2)}},
			wantSQL:  "(`orders`.`quantity` != ?)",
			wantArgs: []any{int64(2)},
		},
		{
			name:     "ge on related field",
			filter:   &queryir.SimpleFilter{Field: "products.price", Operator: queryir.OpGE, Values: []any{2.5}},
			wantSQL:  "(`products`.`price` >= ?)",
			wantArgs: []any{2.5},
		},
		{
			name:     "like wraps bare value",
			filter:   &queryir.SimpleFilter{Field: "customer.name", Operator: queryir.OpLike, Values: []any{"Ad"}},
			wantSQL:  "(`customer`.`name` LIKE ?)",
			wantArgs: []any{"%Ad%"},
		},
		{
			name:     "notlike keeps leading wildcard",
			filter:   &queryir.SimpleFilter{Field: "shippingAddress", Operator: queryir.OpNotLike, Values: []any{"%York"}},
			wantSQL:  "(`orders`.`shipping_address` NOT LIKE ?)",
			wantArgs: []any{"%York"},
		},
		{
			name:     "in",
			filter:   &queryir.SimpleFilter{Field: "status", Operator: queryir.OpIn, Values: []any{"NEW", "PAID"}},
			wantSQL:  "(`orders`.`status` IN (?, ?))",
			wantArgs: []any{"NEW", "PAID"},
		},
		{
			name:     "notin",
			filter:   &queryir.SimpleFilter{Field: "orderId", Operator: queryir.OpNotIn, Values: []any{int64(3)}},
			wantSQL:  "(`orders`.`order_id` NOT IN (?))",
			wantArgs: []any{int64(3)},
		},
		{
			name:     "between",
			filter:   &queryir.SimpleFilter{Field: "amount", Operator: queryir.OpBetween, Values: []any{5.0, 12.0}},
			wantSQL:  "(`orders`.`amount` BETWEEN ? AND ?)",
			wantArgs: []any{5.0, 12.0},
		},
		{
			name:     "isnull ignores values",
			filter:   &queryir.SimpleFilter{Field: "billing.city", Operator: queryir.OpIsNull},
			wantSQL:  "(`orders`.`billing_city` IS NULL)",
			wantArgs: nil,
		},
		{
			name:     "notnull",
			filter:   &queryir.SimpleFilter{Field: "placedAt", Operator: queryir.OpNotNull},
			wantSQL:  "(`orders`.`placed_at` IS NOT NULL)",
			wantArgs: nil,
		},
		{
			name:     "char bound as text",
			filter:   eq("priority", 'A'),
			wantSQL:  "(`orders`.`priority` = ?)",
			wantArgs: []any{"A"},
		},
		{
			name:     "timestamp compared as instant",
			filter:   &queryir.SimpleFilter{Field: "placedAt", Operator: queryir.OpLT, Values: []any{placed}},
			wantSQL:  "(julianday(`orders`.`placed_at`) < julianday(?))",
			wantArgs: []any{"2024-01-02T04:00:00.000000000Z"},
		},
		{
			name: "timestamp between as instants",
			filter: &queryir.SimpleFilter{Field: "placedAt", Operator: queryir.OpBetween, Values: []any{
				placed, placed.Add(500 * time.Millisecond),
			}},
			wantSQL:  "(julianday(`orders`.`placed_at`) BETWEEN julianday(?) AND julianday(?))",
			wantArgs: []any{"2024-01-02T04:00:00.000000000Z", "2024-01-02T04:00:00.500000000Z"},
		},
	}

	c := newCompiler(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := c.Compile(&queryir.DynaQuery{TargetView: "Order", Filter: tt.filter}, ShapeEntity)
			require.NoError(t, err)

			sql, args := render(t, plan)
			assert.Contains(t, sql, "WHERE "+tt.wantSQL)
			if tt.wantArgs == nil {
				assert.Empty(t, args)
			} else {
				assert.Equal(t, tt.wantArgs, args)
			}
		})
	}
}

func TestCompile_CompositeNesting(t *testing.T) {
	c := newCompiler(t)
	q := &queryir.DynaQuery{
		TargetView: "Order",
		Filter: &queryir.CompositeFilter{
			Connector: queryir.And,
			Filters: []queryir.Filter{
				eq("shippingAddress", testutil.NewYork),
				&queryir.CompositeFilter{
					Connector: queryir.Or,
					Filters: []queryir.Filter{
						eq("status", "NEW"),
						eq("status", "PAID"),
					},
				},
			},
		},
	}

	plan, err := c.Compile(q, ShapeEntity)
	require.NoError(t, err)

	sql, args := render(t, plan)
	assert.Contains(t, sql, "WHERE ((`orders`.`shipping_address` = ?) AND ((`orders`.`status` = ?) OR (`orders`.`status` = ?)))")
	assert.Equal(t, []any{testutil.NewYork, "NEW", "PAID"}, args)
}

func TestCompile_EmptyComposites(t *testing.T) {
	c := newCompiler(t)

	plan, err := c.Compile(&queryir.DynaQuery{
		TargetView: "Order",
		Filter:     &queryir.CompositeFilter{Connector: queryir.And},
	}, ShapeEntity)
	require.NoError(t, err)
	sql, _ := render(t, plan)
	assert.Contains(t, sql, "1 = 1")

	plan, err = c.Compile(&queryir.DynaQuery{
		TargetView: "Order",
		Filter:     &queryir.CompositeFilter{Connector: queryir.Or},
	}, ShapeEntity)
	require.NoError(t, err)
	sql, _ = render(t, plan)
	assert.Contains(t, sql, "1 = 0")
}

func TestCompile_OrderingFollowsSequence(t *testing.T) {
	c := newCompiler(t)
	q := &queryir.DynaQuery{
		TargetView: "Order",
		OrderBys: []queryir.OrderBy{
			{Field: "amount", Direction: queryir.Asc, Sequence: 2},
			{Field: "customer.name", Direction: queryir.Desc, Sequence: 1},
		},
	}

	plan, err := c.Compile(q, ShapeEntity)
	require.NoError(t, err)

	sql, _ := render(t, plan)
	assert.Contains(t, sql, "ORDER BY `customer`.`name` DESC, `orders`.`amount` ASC, `orders`.`order_id` ASC")
}

func TestCompile_TimestampOrderingUsesInstant(t *testing.T) {
	c := newCompiler(t)
	q := &queryir.DynaQuery{
		TargetView: "Order",
		OrderBys:   []queryir.OrderBy{{Field: "placedAt", Direction: queryir.Desc}},
	}

	plan, err := c.Compile(q, ShapeEntity)
	require.NoError(t, err)

	sql, _ := render(t, plan)
	assert.Contains(t, sql, "ORDER BY julianday(`orders`.`placed_at`) DESC, `orders`.`order_id` ASC")
}

func TestCompile_Grouped(t *testing.T) {
	c := newCompiler(t)
	q := &queryir.DynaQuery{
		TargetView: "Order",
		Filter:     eq("shippingAddress", testutil.NewYork),
		GroupBy: &queryir.GroupBy{
			Fields:     []string{"shippingAddress"},
			Aggregator: queryir.Aggregator{Field: "amount", Operator: queryir.Sum},
			Alias:      "totalSum",
			Having:     &queryir.SimpleFilter{Field: "totalSum", Operator: queryir.OpGT, Values: []any{30.0}},
		},
		OrderBys: []queryir.OrderBy{{Field: "totalSum", Direction: queryir.Desc}},
	}

	plan, err := c.Compile(q, ShapeEntity)
	require.NoError(t, err)
	assert.Equal(t, ShapeTuple, plan.Shape)
	assert.Equal(t, []string{"shippingAddress", "totalSum"}, plan.Columns)

	sql, args := render(t, plan)
	assert.Contains(t, sql, "SELECT `orders`.`shipping_address` AS `shippingAddress`, SUM(`orders`.`amount`) AS `totalSum`")
	assert.Contains(t, sql, "GROUP BY `orders`.`shipping_address`")
	assert.Contains(t, sql, "HAVING (SUM(`orders`.`amount`) > ?)")
	assert.Contains(t, sql, "ORDER BY `totalSum` DESC, `orders`.`shipping_address` ASC")
	assert.Contains(t, sql, "INNER JOIN `customers` AS `customer`")
	assert.NotContains(t, sql, "`products`", "unread to-many relations are not joined")
	assert.NotContains(t, sql, "DISTINCT")
	assert.Equal(t, []any{testutil.NewYork, 30.0}, args)
}

func TestCompile_GroupedToManyFilterSelectsRootKeys(t *testing.T) {
	c := newCompiler(t)
	q := &queryir.DynaQuery{
		TargetView: "Order",
		Filter:     eq("products.name", "ink"),
		GroupBy: &queryir.GroupBy{
			Fields:     []string{"shippingAddress"},
			Aggregator: queryir.Aggregator{Field: "amount", Operator: queryir.Sum},
			Alias:      "totalSum",
		},
	}

	plan, err := c.Compile(q, ShapeTuple)
	require.NoError(t, err)

	sql, args := render(t, plan)
	assert.Contains(t, sql, "WHERE (`orders`.`order_id` IN (SELECT `orders`.`order_id` FROM `orders`")
	assert.Contains(t, sql, "LEFT JOIN `products` AS `products`")
	assert.Contains(t, sql, "WHERE (`products`.`name` = ?)))")
	assert.Equal(t, 1, strings.Count(sql, "LEFT JOIN"), "only the key subquery joins products")
	assert.Equal(t, []any{"ink"}, args)
}

func TestCompile_GroupedOverToManyFieldJoinsRelation(t *testing.T) {
	c := newCompiler(t)
	q := &queryir.DynaQuery{
		TargetView: "Order",
		Filter:     &queryir.SimpleFilter{Field: "products.price", Operator: queryir.OpGT, Values: []any{1.0}},
		GroupBy: &queryir.GroupBy{
			Fields:     []string{"products.name"},
			Aggregator: queryir.Aggregator{Field: "products.price", Operator: queryir.Sum},
			Alias:      "spent",
		},
	}

	plan, err := c.Compile(q, ShapeTuple)
	require.NoError(t, err)

	sql, _ := render(t, plan)
	assert.Contains(t, sql, "LEFT JOIN `products` AS `products`")
	assert.Contains(t, sql, "WHERE (`products`.`price` > ?)")
	assert.NotContains(t, sql, " IN (SELECT")
}

func TestCompile_HavingAggregateFilter(t *testing.T) {
	c := newCompiler(t)
	q := &queryir.DynaQuery{
		TargetView: "Order",
		GroupBy: &queryir.GroupBy{
			Fields:     []string{"status"},
			Aggregator: queryir.Aggregator{Field: "orderId", Operator: queryir.Count},
			Alias:      "orders",
			Having: &queryir.AggregateFilter{
				Aggregator: queryir.Aggregator{Field: "amount", Operator: queryir.Avg},
				Operator:   queryir.OpBetween,
				Values:     []any{10.0, 20.0},
			},
		},
	}

	plan, err := c.Compile(q, ShapeTuple)
	require.NoError(t, err)

	sql, args := render(t, plan)
	assert.Contains(t, sql, "COUNT(`orders`.`order_id`) AS `orders`")
	assert.Contains(t, sql, "HAVING (AVG(`orders`.`amount`) BETWEEN ? AND ?)")
	assert.Equal(t, []any{10.0, 20.0}, args)
}

func TestCompile_GroupedWithoutFields(t *testing.T) {
	c := newCompiler(t)
	q := &queryir.DynaQuery{
		TargetView: "Order",
		GroupBy: &queryir.GroupBy{
			Aggregator: queryir.Aggregator{Field: "amount", Operator: queryir.Max},
			Alias:      "largest",
		},
	}

	plan, err := c.Compile(q, ShapeTuple)
	require.NoError(t, err)
	assert.Equal(t, []string{"largest"}, plan.Columns)

	sql, _ := render(t, plan)
	assert.Contains(t, sql, "SELECT MAX(`orders`.`amount`) AS `largest`")
	assert.NotContains(t, sql, "GROUP BY")
}

func TestCompile_TupleShape(t *testing.T) {
	c := newCompiler(t)
	q := &queryir.DynaQuery{
		TargetView: "Order",
		ProjectBys: []queryir.ProjectBy{
			{Field: "billing.city", Visible: true},
			{Field: "orderId", Visible: false},
			{Field: "customer.name", Visible: true},
		},
	}

	plan, err := c.Compile(q, ShapeTuple)
	require.NoError(t, err)
	assert.Equal(t, []string{"billing.city", "customer.name"}, plan.Columns)
	assert.Equal(t, 1, plan.Hidden)

	sql, _ := render(t, plan)
	assert.Contains(t, sql, "SELECT DISTINCT `orders`.`billing_city` AS `billing.city`, `customer`.`name` AS `customer.name`, `orders`.`order_id` AS `__row_key`")
	assert.Contains(t, sql, "ORDER BY `orders`.`billing_city` ASC, `customer`.`name` ASC, `orders`.`order_id` ASC")
}

func TestCompile_ProjectionsDoNotNarrowEntitySelect(t *testing.T) {
	c := newCompiler(t)
	q := &queryir.DynaQuery{
		TargetView: "Order",
		ProjectBys: []queryir.ProjectBy{{Field: "amount", Visible: true}},
	}

	plan, err := c.Compile(q, ShapeEntity)
	require.NoError(t, err)
	assert.Nil(t, plan.Columns)

	sql, _ := render(t, plan)
	assert.Contains(t, sql, "SELECT DISTINCT `orders`.*")
}

func TestPlan_Page(t *testing.T) {
	c := newCompiler(t)
	plan, err := c.Compile(&queryir.DynaQuery{TargetView: "Customer"}, ShapeEntity)
	require.NoError(t, err)

	unpaged, _ := render(t, plan)
	assert.Same(t, plan, plan.Page(3, 0))

	paged := plan.Page(2, 10)
	sql, args := render(t, paged)
	assert.Contains(t, sql, "LIMIT ?")
	assert.Contains(t, sql, "OFFSET ?")
	assert.Equal(t, []any{int64(10), int64(20)}, args)

	again, _ := render(t, plan)
	assert.Equal(t, unpaged, again, "paging must not alter the original plan")
}

func TestCompileCount(t *testing.T) {
	c := newCompiler(t)

	tests := []struct {
		name string
		q    *queryir.DynaQuery
		want string
	}{
		{
			name: "distinct root key",
			q:    &queryir.DynaQuery{TargetView: "Order", Filter: eq("shippingAddress", testutil.NewYork)},
			want: "SELECT COUNT(DISTINCT(`orders`.`order_id`)) FROM `orders`",
		},
		{
			name: "projection keyed by root",
			q: &queryir.DynaQuery{
				TargetView: "Order",
				ProjectBys: []queryir.ProjectBy{{Field: "shippingAddress", Visible: true}},
			},
			want: "SELECT COUNT(DISTINCT(COALESCE(length(CAST(`orders`.`order_id` AS TEXT)) || ':' || CAST(`orders`.`order_id` AS TEXT), '-') || " +
				"COALESCE(length(CAST(`orders`.`shipping_address` AS TEXT)) || ':' || CAST(`orders`.`shipping_address` AS TEXT), '-'))) FROM `orders`",
		},
		{
			name: "hidden projections fall back to root key",
			q: &queryir.DynaQuery{
				TargetView: "Order",
				ProjectBys: []queryir.ProjectBy{{Field: "shippingAddress", Visible: false}},
			},
			want: "SELECT COUNT(DISTINCT(`orders`.`order_id`)) FROM `orders`",
		},
		{
			name: "projections concatenated",
			q: &queryir.DynaQuery{
				TargetView: "Order",
				ProjectBys: []queryir.ProjectBy{
					{Field: "shippingAddress", Visible: true},
					{Field: "status", Visible: true},
				},
			},
			want: "|| COALESCE(length(CAST(`orders`.`status` AS TEXT)) || ':' || CAST(`orders`.`status` AS TEXT), '-')))",
		},
		{
			name: "groups",
			q: &queryir.DynaQuery{
				TargetView: "Order",
				GroupBy: &queryir.GroupBy{
					Fields:     []string{"status"},
					Aggregator: queryir.Aggregator{Field: "amount", Operator: queryir.Sum},
					Alias:      "total",
				},
			},
			want: "SELECT COUNT(*) FROM (SELECT `orders`.`status` AS `status`, SUM(`orders`.`amount`) AS `total`",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := c.CompileCount(tt.q)
			require.NoError(t, err)

			sql, _ := render(t, plan)
			assert.Contains(t, sql, tt.want)
			assert.NotContains(t, sql, "ORDER BY")
			assert.NotContains(t, sql, "LIMIT")
		})
	}
}

func TestCompileRelation(t *testing.T) {
	c := newCompiler(t)
	view, err := testutil.Registry(t).View("Order")
	require.NoError(t, err)

	plan := c.CompileRelation(view.Relations[1], []any{int64(1), int64(4)})
	sql, args := render(t, plan)
	assert.Equal(t,
		"SELECT * FROM `products` WHERE (`products`.`order_id` IN (?, ?)) ORDER BY `products`.`order_id` ASC, `products`.`product_id` ASC",
		sql)
	assert.Equal(t, []any{int64(1), int64(4)}, args)
}

func TestCompile_ContractViolationsAreInternal(t *testing.T) {
	c := newCompiler(t)

	tests := []struct {
		name string
		q    *queryir.DynaQuery
	}{
		{"unregistered view", &queryir.DynaQuery{TargetView: "Invoice"}},
		{"missing view", &queryir.DynaQuery{}},
		{"bad arity", &queryir.DynaQuery{
			TargetView: "Order",
			Filter:     &queryir.SimpleFilter{Field: "amount", Operator: queryir.OpBetween, Values: []any{1.0}},
		}},
		{"aggregate filter outside having", &queryir.DynaQuery{
			TargetView: "Order",
			Filter: &queryir.AggregateFilter{
				Aggregator: queryir.Aggregator{Field: "amount", Operator: queryir.Sum},
				Operator:   queryir.OpGT,
				Values:     []any{1.0},
			},
		}},
		{"unknown aggregate", &queryir.DynaQuery{
			TargetView: "Order",
			GroupBy: &queryir.GroupBy{
				Fields:     []string{"status"},
				Aggregator: queryir.Aggregator{Field: "amount", Operator: "MEDIAN"},
				Alias:      "m",
			},
		}},
		{"unknown field", &queryir.DynaQuery{TargetView: "Order", Filter: eq("colour", "red")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Compile(tt.q, ShapeEntity)
			require.Error(t, err)
			assert.Equal(t, dqerr.CodeInternal, dqerr.CodeOf(err))

			_, err = c.CompileCount(tt.q)
			require.Error(t, err)
			assert.Equal(t, dqerr.CodeInternal, dqerr.CodeOf(err))
		})
	}
}

func TestPattern(t *testing.T) {
	assert.Equal(t, "%York%", Pattern("York"))
	assert.Equal(t, "York%", Pattern("York%"))
	assert.Equal(t, "%York", Pattern("%York"))
	assert.Equal(t, "%a%b%", Pattern("a%b"))
}
