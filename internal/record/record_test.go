package record

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecord_PreservesInsertionOrder(t *testing.T) {
	r := New(3)
	r.Set("shippingAddress", "5th Avenue, New York")
	r.Set("totalSum", 33.6)
	r.Set("count", int64(3))

	assert.Equal(t, []string{"shippingAddress", "totalSum", "count"}, r.Keys())

	data, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Equal(t, `{"shippingAddress":"5th Avenue, New York","totalSum":33.6,"count":3}`, string(data))
}

func TestRecord_SetExistingKeepsPosition(t *testing.T) {
	r := New(2)
	r.Set("a", 1)
	r.Set("b", 2)
	r.Set("a", 3)

	assert.Equal(t, []string{"a", "b"}, r.Keys())
	v, ok := r.Get("a")
	require.True(t, ok)
	assert.Equal(t, 3, v)
	assert.Equal(t, 2, r.Len())
}

func TestRecord_NestedRecordsAndNil(t *testing.T) {
	inner := New(1)
	inner.Set("city", "Paris")

	r := New(2)
	r.Set("billing", inner)
	r.Set("note", nil)

	data, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Equal(t, `{"billing":{"city":"Paris"},"note":null}`, string(data))
}

func TestRecord_KeysReturnsCopy(t *testing.T) {
	r := New(1)
	r.Set("a", 1)
	keys := r.Keys()
	keys[0] = "mutated"

	assert.Equal(t, []string{"a"}, r.Keys())
}
