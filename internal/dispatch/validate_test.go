package dispatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/usil/eventhos-relay/internal/models"
)

func TestValidateMissingInput(t *testing.T) {
	err := Validate("", []EventContract{{}})
	require.NotNil(t, err)
	assert.Equal(t, "Event Id or Event Contract List was not send.", err.Error())

	err = Validate("5", nil)
	require.NotNil(t, err)
	assert.Equal(t, "Event Id or Event Contract List was not send.", err.Error())

	err = Validate("5", []EventContract{})
	require.NotNil(t, err)
	assert.Equal(t, "Event Id or Event Contract List was not send.", err.Error())
}

func TestValidateEventIDNotNumber(t *testing.T) {
	err := Validate("abc", []EventContract{{}})
	require.NotNil(t, err)
	assert.Equal(t, "Event Id is not a number.", err.Error())
}

func TestValidateContractsNotArray(t *testing.T) {
	err := Validate("5", "not-a-list")
	require.NotNil(t, err)
	assert.Equal(t, "Event Contract is not an array.", err.Error())
}

func TestValidateAccepts(t *testing.T) {
	assert.Nil(t, Validate("5", []EventContract{{}}))
}

func TestPartitionGroupsByAscendingOrder(t *testing.T) {
	contractWithOrder := func(id int64, order int) EventContract {
		return EventContract{Contract: models.Contract{ID: id, Order: order}}
	}

	tiers := partition([]EventContract{
		contractWithOrder(1, 2),
		contractWithOrder(2, 0),
		contractWithOrder(3, 2),
		contractWithOrder(4, 1),
	})

	require.Len(t, tiers, 3)
	require.Len(t, tiers[0], 1)
	assert.Equal(t, int64(2), tiers[0][0].Contract.ID)
	require.Len(t, tiers[1], 1)
	assert.Equal(t, int64(4), tiers[1][0].Contract.ID)
	require.Len(t, tiers[2], 2)
	assert.Equal(t, int64(1), tiers[2][0].Contract.ID)
	assert.Equal(t, int64(3), tiers[2][1].Contract.ID)
}

func TestPartitionEmpty(t *testing.T) {
	assert.Empty(t, partition(nil))
}

func TestFlatten(t *testing.T) {
	out := flatten(map[string]any{
		"plain":  "value",
		"number": float64(42),
		"absent": nil,
		"object": map[string]any{"a": 1},
	})

	assert.Equal(t, "value", out["plain"])
	assert.Equal(t, "42", out["number"])
	assert.Equal(t, "null", out["absent"])
	assert.JSONEq(t, `{"a":1}`, out["object"])

	assert.Nil(t, flatten(nil))
}

func TestIsEmptyBodyTemplate(t *testing.T) {
	assert.True(t, isEmptyBodyTemplate(nil))
	assert.True(t, isEmptyBodyTemplate(map[string]any{}))
	assert.False(t, isEmptyBodyTemplate(map[string]any{"a": 1}))
	assert.False(t, isEmptyBodyTemplate("literal"))
}
