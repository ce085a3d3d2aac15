package session

import (
	"fmt"

	httpclient "imgapi/internal/http"
	"imgapi/internal/model"
)

// ParamField selects which half of a Parameter Update touches
type ParamField string

const (
	FieldKey   ParamField = "key"
	FieldValue ParamField = "value"
)

// ParameterSet is the ordered list of user-defined parameters
type ParameterSet struct {
	items []model.Parameter
}

// NewParameterSet returns a set holding a copy of initial
func NewParameterSet(initial []model.Parameter) *ParameterSet {
	ps := &ParameterSet{}
	ps.Set(initial)
	return ps
}

// Add appends an empty parameter
func (ps *ParameterSet) Add() int {
	ps.items = append(ps.items, model.Parameter{})
	return len(ps.items) - 1
}

// Update sets the key or value of the parameter at index
func (ps *ParameterSet) Update(index int, field ParamField, value string) error {
	if err := ps.check(index); err != nil {
		return err
	}
	switch field {
	case FieldKey:
		ps.items[index].Key = value
	case FieldValue:
		ps.items[index].Value = value
	default:
		return fmt.Errorf("unknown parameter field %q (want key or value)", field)
	}
	return nil
}

// Remove deletes the parameter at index; later entries shift down
func (ps *ParameterSet) Remove(index int) error {
	if err := ps.check(index); err != nil {
		return err
	}
	ps.items = append(ps.items[:index], ps.items[index+1:]...)
	return nil
}

// Set replaces the whole list
func (ps *ParameterSet) Set(params []model.Parameter) {
	ps.items = append([]model.Parameter(nil), params...)
}

// List returns a copy of the parameters in insertion order
func (ps *ParameterSet) List() []model.Parameter {
	return append([]model.Parameter(nil), ps.items...)
}

// Len returns the number of parameters
func (ps *ParameterSet) Len() int {
	return len(ps.items)
}

// Map builds the resolved mapping sent with a request
func (ps *ParameterSet) Map() map[string]string {
	return httpclient.BuildParams(ps.items)
}

func (ps *ParameterSet) check(index int) error {
	if index < 0 || index >= len(ps.items) {
		return fmt.Errorf("parameter index %d out of range (have %d)", index, len(ps.items))
	}
	return nil
}
