package codec

import (
	"bytes"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aiarena/engine/internal/schema"
)

func TestWireRoundTripScalars(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.WriteU32(42))
	require.NoError(t, w.WriteBool(true))
	require.NoError(t, w.WriteStr("hello"))
	require.NoError(t, w.WriteI64(-7))
	require.NoError(t, w.WriteF64(3.5))

	r := NewReader(&buf)
	u, err := r.ReadU32()
	require.NoError(t, err)
	assert.Equal(t, uint32(42), u)

	b, err := r.ReadBool()
	require.NoError(t, err)
	assert.True(t, b)

	s, err := r.ReadStr()
	require.NoError(t, err)
	assert.Equal(t, "hello", s)

	i, err := r.ReadI64()
	require.NoError(t, err)
	assert.Equal(t, int64(-7), i)

	f, err := r.ReadF64()
	require.NoError(t, err)
	assert.Equal(t, 3.5, f)
}

func TestReadStrReplacesIllFormedBytesInsteadOfFailing(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf)
	// "ok-" followed by a lone continuation byte (0x80) and a truncated
	// two-byte sequence (0xC3 with nothing after it): neither is valid UTF-8
	// on its own.
	raw := append([]byte("ok-"), 0x80, 0xC3)
	require.NoError(t, w.WriteU32(uint32(len(raw))))
	_, err := buf.Write(raw)
	require.NoError(t, err)

	r := NewReader(&buf)
	s, err := r.ReadStr()
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(s, "ok-"))
	assert.Contains(t, s, "�")
	assert.True(t, utf8.ValidString(s))
}

func TestTagWidthMatchesVariantCount(t *testing.T) {
	w, err := schema.TagWidth(2)
	require.NoError(t, err)
	assert.Equal(t, 1, w)

	w, err = schema.TagWidth(1000)
	require.NoError(t, err)
	assert.Equal(t, 2, w)
}

func TestGenerateGoProducesStruct(t *testing.T) {
	iface := schema.Interface{
		Name: "tic_tac_toe",
		Types: []schema.NamedType{
			{Name: "Move", Type: schema.Type{Kind: schema.KindStruct, Fields: []schema.StructField{
				{Name: "row", Type: schema.Type{Kind: schema.KindBuiltin, Builtin: schema.U8}},
				{Name: "col", Type: schema.Type{Kind: schema.KindBuiltin, Builtin: schema.U8}},
			}}},
		},
	}

	files, err := Generate(iface, TargetGo)
	require.NoError(t, err)
	require.Contains(t, files, "tic_tac_toe_codec.go")
	src := string(files["tic_tac_toe_codec.go"])
	assert.Contains(t, src, "type Move struct")
	assert.Contains(t, src, "func (v *Move) Encode(")
}

func TestGeneratePythonProducesClass(t *testing.T) {
	iface := schema.Interface{
		Name: "tic_tac_toe",
		Types: []schema.NamedType{
			{Name: "Move", Type: schema.Type{Kind: schema.KindStruct, Fields: []schema.StructField{
				{Name: "row", Type: schema.Type{Kind: schema.KindBuiltin, Builtin: schema.U8}},
			}}},
		},
	}

	files, err := Generate(iface, TargetPython)
	require.NoError(t, err)
	require.Contains(t, files, "tic_tac_toe_codec.py")
	assert.Contains(t, string(files["tic_tac_toe_codec.py"]), "class Move:")
}

func TestGenerateCPPNotImplemented(t *testing.T) {
	_, err := Generate(schema.Interface{Name: "x"}, TargetCPP)
	assert.Error(t, err)
}
