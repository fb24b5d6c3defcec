// Package testutil holds fixtures shared by package tests: the Order view
// declaration, a registry built from it and the matching SQLite tables.
package testutil

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/dynaquery/internal/schema"
)

// Address shared by the first three fixture orders.
const NewYork = "5th Avenue, New York"

// OrderView declares the Order view used throughout the tests.
func OrderView() schema.ViewDef {
	return schema.ViewDef{
		Name:  "Order",
		Table: "orders",
		Key:   "order_id",
		Members: []schema.MemberDef{
			{Name: "orderId", Column: "order_id", Type: "int"},
			{Name: "amount", Type: "float"},
			{Name: "quantity", Type: "int"},
			{Name: "shippingAddress", Column: "shipping_address", Type: "string"},
			{Name: "status", Type: "enum", Values: []string{"NEW", "PAID", "SHIPPED"}},
			{Name: "priority", Type: "char"},
			{Name: "paid", Type: "bool"},
			{Name: "placedAt", Column: "placed_at", Type: "timestamp"},
			{Name: "billing", Members: []schema.MemberDef{
				{Name: "city", Type: "string"},
				{Name: "zip", Type: "string"},
			}},
			{
				Name: "customer",
				Relation: &schema.RelationDef{
					Cardinality: "one",
					Table:       "customers",
					Key:         "customer_id",
					Local:       "customer_id",
					Foreign:     "customer_id",
				},
				Members: []schema.MemberDef{
					{Name: "name", Type: "string"},
					{Name: "tier", Type: "string"},
				},
			},
			{
				Name: "products",
				Relation: &schema.RelationDef{
					Cardinality: "many",
					Table:       "products",
					Key:         "product_id",
					Local:       "order_id",
					Foreign:     "order_id",
				},
				Members: []schema.MemberDef{
					{Name: "name", Type: "string"},
					{Name: "price", Type: "float"},
				},
			},
		},
	}
}

// CustomerView declares a flat view without relations.
func CustomerView() schema.ViewDef {
	return schema.ViewDef{
		Name:  "Customer",
		Table: "customers",
		Key:   "customer_id",
		Members: []schema.MemberDef{
			{Name: "customerId", Column: "customer_id", Type: "int"},
			{Name: "name", Type: "string"},
			{Name: "tier", Type: "string"},
		},
	}
}

// Registry builds a registry with the fixture views.
func Registry(t testing.TB) *schema.Registry {
	t.Helper()
	reg, err := schema.Build(OrderView(), CustomerView())
	require.NoError(t, err)
	return reg
}

// OrderTablesSQL creates and fills the tables behind the fixture views.
//
// Orders 1-3 share NewYork with amounts 6.5, 15.5 and 11.6 and at most one
// product each. Order 4 ships elsewhere and has two products.
const OrderTablesSQL = `
CREATE TABLE customers (
	customer_id INTEGER PRIMARY KEY,
	name        TEXT NOT NULL,
	tier        TEXT NOT NULL
);

CREATE TABLE orders (
	order_id         INTEGER PRIMARY KEY,
	amount           REAL NOT NULL,
	quantity         INTEGER NOT NULL,
	shipping_address TEXT NOT NULL,
	status           TEXT NOT NULL,
	priority         TEXT NOT NULL,
	paid             INTEGER NOT NULL,
	placed_at        TEXT,
	billing_city     TEXT,
	billing_zip      TEXT,
	customer_id      INTEGER NOT NULL REFERENCES customers(customer_id)
);

CREATE TABLE products (
	product_id INTEGER PRIMARY KEY,
	order_id   INTEGER NOT NULL REFERENCES orders(order_id),
	name       TEXT NOT NULL,
	price      REAL NOT NULL
);

INSERT INTO customers (customer_id, name, tier) VALUES
	(1, 'Ada', 'gold'),
	(2, 'Bob', 'silver');

INSERT INTO orders VALUES
	(1, 6.5,  1, '5th Avenue, New York', 'NEW',     'A', 0, '2024-01-01T10:00:00Z', 'New York', '10001', 1),
	(2, 15.5, 3, '5th Avenue, New York', 'PAID',    'B', 1, '2024-01-02T10:00:00Z', 'New York', '10002', 2),
	(3, 11.6, 2, '5th Avenue, New York', 'PAID',    'A', 1, '2024-01-03T10:00:00Z', NULL,       NULL,    1),
	(4, 20.0, 5, '221b Baker Street',    'SHIPPED', 'C', 1, '2024-02-01T09:30:00Z', 'London',   'NW1',   2);

INSERT INTO products (product_id, order_id, name, price) VALUES
	(1, 1, 'pen',    1.5),
	(2, 2, 'ink',    5.0),
	(3, 4, 'paper',  2.0),
	(4, 4, 'stapler', 12.0);
`
