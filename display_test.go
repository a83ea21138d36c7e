package ddc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDialectAtMostOneUnsupportedFlag(t *testing.T) {
	d := &Display{}
	d.SetDialect(DialectUsesDDCFlag | DialectUsesNullResponse)
	assert.True(t, validUnsupportedFlags(d.Dialect()))
	assert.False(t, d.Dialect().Has(DialectUsesDDCFlag) && d.Dialect().Has(DialectUsesNullResponse))
}

func TestAddDialectRejectsSecondUnsupportedFlag(t *testing.T) {
	d := &Display{}
	d.AddDialect(DialectUsesDDCFlag)
	d.AddDialect(DialectUsesNullResponse)
	assert.True(t, d.Dialect().Has(DialectUsesDDCFlag))
	assert.False(t, d.Dialect().Has(DialectUsesNullResponse))
}

func TestMarkWorkingImpliesChecked(t *testing.T) {
	d := &Display{}
	d.MarkWorking()
	assert.Equal(t, StateCheckedWorking, d.State())
	assert.True(t, d.Dialect().Has(DialectCommChecked))
	assert.True(t, d.Dialect().Has(DialectCommWorking))
}

func TestMarkRemovedIsTerminal(t *testing.T) {
	d := &Display{}
	d.MarkWorking()
	d.MarkRemoved()
	assert.Equal(t, StateRemoved, d.State())
	assert.True(t, d.Dialect().Has(DialectRemoved))
}
