package capabilities

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSimpleVCP(t *testing.T) {
	tree := Parse("(prot(monitor)type(lcd)model(ACME 42)cmds(01 02 03 0C)vcp(02 04 05 08 10 12 14(01 02 04 05 06 08 0B 0C) 60(0F 11) AC AE B2 B6 DF)mswhql(1))")
	require.NotNil(t, tree)

	model, ok := tree.Properties["model"]
	require.True(t, ok)
	assert.Equal(t, []string{"ACME", "42"}, model.Tokens)

	f10, ok := tree.VCP[0x10]
	require.True(t, ok)
	assert.True(t, f10.Continuous)

	f14, ok := tree.VCP[0x14]
	require.True(t, ok)
	assert.False(t, f14.Continuous)
	assert.Equal(t, []byte{0x01, 0x02, 0x04, 0x05, 0x06, 0x08, 0x0B, 0x0C}, f14.Values)

	f60, ok := tree.VCP[0x60]
	require.True(t, ok)
	assert.Equal(t, []byte{0x0F, 0x11}, f60.Values)

	_, ok = tree.VCP[0xAC]
	require.True(t, ok)
	assert.True(t, tree.VCP[0xAC].Continuous)
}

func TestParseUnterminatedGroupIsTolerated(t *testing.T) {
	tree := Parse("(prot(monitor)vcp(02 04")
	assert.NotNil(t, tree)
	vcpNode := tree.Properties["vcp"]
	require.NotNil(t, vcpNode)
	assert.NotEmpty(t, vcpNode.Malformed)
}

func TestParseEmptyStringYieldsEmptyTree(t *testing.T) {
	tree := Parse("")
	assert.Empty(t, tree.Properties)
	assert.Empty(t, tree.VCP)
}

func TestParseDuplicatePropertiesMerge(t *testing.T) {
	tree := Parse("(cmds(01 02))(cmds(03))")
	cmds, ok := tree.Properties["cmds"]
	require.True(t, ok)
	assert.Len(t, cmds.Children, 2)
}

func TestParseNestedWhitespace(t *testing.T) {
	tree := Parse("  ( prot ( monitor ) )  ")
	prot, ok := tree.Properties["prot"]
	require.True(t, ok)
	require.Len(t, prot.Children, 1)
	assert.Equal(t, "monitor", prot.Children[0].Name)
}
