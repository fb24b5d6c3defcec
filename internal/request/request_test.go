package request

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dynaquery/internal/queryir"
)

const groupedJSON = `{
  "targetView": "Order",
  "filter": {
    "connector": "OR",
    "filters": [
      {"field": "amount", "operator": "BETWEEN", "values": [5, "12.5"]},
      {"field": "shippingAddress", "operator": "LIKE", "values": ["Avenue"]}
    ]
  },
  "group": {
    "fields": ["shippingAddress"],
    "aggregator": {"field": "amount", "operator": "SUM"},
    "alias": "totalSum",
    "having": {"field": "totalSum", "operator": "GT", "values": ["30"]}
  },
  "orders": [{"field": "shippingAddress", "operator": "DESC", "sequence": 0}]
}`

const groupedYAML = `
targetView: Order
filter:
  connector: OR
  filters:
    - field: amount
      operator: BETWEEN
      values: [5, "12.5"]
    - field: shippingAddress
      operator: LIKE
      values: [Avenue]
group:
  fields: [shippingAddress]
  aggregator: {field: amount, operator: SUM}
  alias: totalSum
  having: {field: totalSum, operator: GT, values: ["30"]}
orders:
  - {field: shippingAddress, operator: DESC, sequence: 0}
`

func TestDecode_FilterDeduction(t *testing.T) {
	req, err := Decode([]byte(groupedJSON))
	require.NoError(t, err)

	require.NotNil(t, req.Filter)
	assert.Equal(t, FilterComposite, req.Filter.Kind())
	require.Len(t, req.Filter.Filters, 2)
	assert.Equal(t, FilterSimple, req.Filter.Filters[0].Kind())
	assert.Equal(t, Values{"5", "12.5"}, req.Filter.Filters[0].Values)

	aggregate := &Filter{Aggregator: &Aggregator{Field: "amount", Operator: "COUNT"}, Operator: "GT", Values: Values{"1"}}
	assert.Equal(t, FilterAggregate, aggregate.Kind())

	empty := &Filter{Connector: "AND"}
	assert.Equal(t, FilterComposite, empty.Kind())
}

func TestDecode_YAMLMatchesJSON(t *testing.T) {
	fromJSON, err := Decode([]byte(groupedJSON))
	require.NoError(t, err)
	fromYAML, err := Decode([]byte(groupedYAML))
	require.NoError(t, err)

	assert.Equal(t, fromJSON, fromYAML)
}

func TestDecode_RejectsUnknownFields(t *testing.T) {
	_, err := Decode([]byte(`{"targetView": "Order", "limit": 5}`))
	assert.Error(t, err)

	_, err = Decode([]byte("targetView: Order\nlimit: 5\n"))
	assert.Error(t, err)
}

func TestValues_RejectsNonScalars(t *testing.T) {
	_, err := Decode([]byte(`{"filter": {"field": "a", "operator": "EQ", "values": [null]}}`))
	assert.ErrorContains(t, err, "null is not a value")

	_, err = Decode([]byte(`{"filter": {"field": "a", "operator": "EQ", "values": [{"x": 1}]}}`))
	assert.ErrorContains(t, err, "expected a scalar")

	_, err = Decode([]byte("filter: {field: a, operator: EQ, values: x}\n"))
	assert.ErrorContains(t, err, "must be a list")
}

func TestProjection_DefaultVisible(t *testing.T) {
	req, err := Decode([]byte(`{"projections": [{"field": "amount"}, {"field": "orderId", "visible": false}]}`))
	require.NoError(t, err)

	assert.True(t, req.Projections[0].IsVisible())
	assert.False(t, req.Projections[1].IsVisible())
}

func TestDefinition_Golden(t *testing.T) {
	g := goldie.New(t, goldie.WithFixtureDir("testdata/golden"), goldie.WithNameSuffix(".golden"))

	req, err := Decode([]byte(groupedJSON))
	require.NoError(t, err)
	def, err := req.Definition()
	require.NoError(t, err)
	g.Assert(t, "grouped_definition", def)

	req, err = Decode([]byte(`{
		"targetView": "Order",
		"projections": [{"field": "amount"}, {"field": "orderId", "visible": false}],
		"filter": {"field": "status", "operator": "ISNULL"}
	}`))
	require.NoError(t, err)
	def, err = req.Definition()
	require.NoError(t, err)
	g.Assert(t, "projection_definition", def)
}

func TestDefinition_DecodesBack(t *testing.T) {
	req, err := Decode([]byte(groupedYAML))
	require.NoError(t, err)
	def, err := req.Definition()
	require.NoError(t, err)

	back, err := DecodeJSON(def)
	require.NoError(t, err)
	again, err := back.Definition()
	require.NoError(t, err)
	assert.Equal(t, string(def), string(again))
}

func TestFromQuery(t *testing.T) {
	q := &queryir.DynaQuery{
		TargetView: "Order",
		ProjectBys: []queryir.ProjectBy{{Field: "amount", Visible: true}},
		Filter: &queryir.CompositeFilter{Connector: queryir.And, Filters: []queryir.Filter{
			&queryir.SimpleFilter{Field: "amount", Operator: queryir.OpGT, Values: []any{5.0}, Raw: []string{"5"}},
			&queryir.SimpleFilter{Field: "status", Operator: queryir.OpIsNull},
		}},
		GroupBy: &queryir.GroupBy{
			Fields:     []string{"shippingAddress"},
			Aggregator: queryir.Aggregator{Field: "amount", Operator: queryir.Count},
			Alias:      "n",
			Having: &queryir.AggregateFilter{
				Aggregator: queryir.Aggregator{Field: "amount", Operator: queryir.Sum},
				Operator:   queryir.OpGE,
				Values:     []any{10.0},
				Raw:        []string{"10"},
			},
		},
		OrderBys: []queryir.OrderBy{{Field: "amount", Direction: queryir.Desc, Sequence: 2}},
	}

	req := FromQuery(q)
	assert.Equal(t, "Order", req.TargetView)
	assert.True(t, req.Projections[0].IsVisible())
	assert.Equal(t, FilterComposite, req.Filter.Kind())
	assert.Equal(t, Values{"5"}, req.Filter.Filters[0].Values)
	assert.Empty(t, req.Filter.Filters[1].Values)
	assert.Equal(t, FilterAggregate, req.Group.Having.Kind())
	assert.Equal(t, "SUM", req.Group.Having.Aggregator.Operator)
	assert.Equal(t, []Order{{Field: "amount", Operator: "DESC", Sequence: 2}}, req.Orders)

	def, err := req.Definition()
	require.NoError(t, err)
	assert.Contains(t, string(def), `"having":{"aggregator":{"field":"amount","operator":"SUM"},"operator":"GE","values":["10"]}`)
}
