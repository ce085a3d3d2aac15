package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imgapi/internal/model"
)

func TestParameterSet_AddUpdateRemove(t *testing.T) {
	ps := NewParameterSet(nil)

	assert.Equal(t, 0, ps.Add())
	assert.Equal(t, 1, ps.Add())
	assert.Equal(t, 2, ps.Add())
	assert.Equal(t, []model.Parameter{{}, {}, {}}, ps.List())

	require.NoError(t, ps.Update(0, FieldKey, "a"))
	require.NoError(t, ps.Update(0, FieldValue, "1"))
	require.NoError(t, ps.Update(1, FieldKey, "b"))
	require.NoError(t, ps.Update(2, FieldKey, "c"))

	require.NoError(t, ps.Remove(1))
	assert.Equal(t, []model.Parameter{{Key: "a", Value: "1"}, {Key: "c"}}, ps.List())
	assert.Equal(t, 2, ps.Len())
}

func TestParameterSet_Errors(t *testing.T) {
	ps := NewParameterSet([]model.Parameter{{Key: "a"}})

	assert.Error(t, ps.Update(3, FieldKey, "x"))
	assert.Error(t, ps.Update(0, ParamField("other"), "x"))
	assert.Error(t, ps.Remove(-1))
	assert.Equal(t, 1, ps.Len())
}

func TestParameterSet_Map(t *testing.T) {
	ps := NewParameterSet([]model.Parameter{
		{Key: "mode", Value: "fast"},
		{Key: "", Value: "dropped"},
		{Key: "mode", Value: "slow"},
	})

	assert.Equal(t, map[string]string{"mode": "slow"}, ps.Map())
}

func TestParameterSet_CopiesInput(t *testing.T) {
	initial := []model.Parameter{{Key: "a", Value: "1"}}
	ps := NewParameterSet(initial)

	require.NoError(t, ps.Update(0, FieldValue, "2"))
	assert.Equal(t, "1", initial[0].Value)

	list := ps.List()
	list[0].Key = "changed"
	assert.Equal(t, "a", ps.List()[0].Key)
}
