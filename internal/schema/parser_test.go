package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSimpleStruct(t *testing.T) {
	src := `
type Point = struct { x: i32, y: i32 };
function get_move = (board: Point) -> bool;
`
	iface, err := Parse(src, "test")
	require.NoError(t, err)
	require.Len(t, iface.Types, 1)
	assert.Equal(t, "Point", iface.Types[0].Name)
	assert.Equal(t, KindStruct, iface.Types[0].Type.Kind)
	require.Len(t, iface.Types[0].Type.Fields, 2)
	assert.Equal(t, "x", iface.Types[0].Type.Fields[0].Name)

	require.Len(t, iface.Functions, 1)
	assert.Equal(t, "get_move", iface.Functions[0].Name)
	require.NotNil(t, iface.Functions[0].Sig.Ret)
	assert.Equal(t, KindBuiltin, iface.Functions[0].Sig.Ret.Kind)
}

func TestParseArraysAndEnum(t *testing.T) {
	src := `
type Row = [bool; 3];
type Grid = [Row];
type Piece = enum { Nought, Cross };
`
	iface, err := Parse(src, "test")
	require.NoError(t, err)
	require.Len(t, iface.Types, 3)

	row := iface.Types[0].Type
	assert.Equal(t, KindArray, row.Kind)
	assert.Equal(t, 3, row.ArrayLen)

	grid := iface.Types[1].Type
	assert.Equal(t, KindDynamicArray, grid.Kind)
	assert.Equal(t, KindNamed, grid.Elem.Kind)

	piece := iface.Types[2].Type
	assert.Equal(t, KindEnum, piece.Kind)
	assert.True(t, IsBasicEnum(piece.Variants))
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := Parse(`type X = @;`, "test")
	assert.Error(t, err)
}

func TestParseDashRequiresArrow(t *testing.T) {
	_, err := Parse(`function f = () -x u8;`, "test")
	assert.Error(t, err)
}
