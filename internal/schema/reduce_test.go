package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestReduceOutOfOrderChain exercises the fixed-point bug fix: C depends on
// B which depends on A, and they are declared in the reverse order C, B, A.
// Each pass can only resolve entries whose dependency is already in the
// lookup table, so the first pass resolves only A, the second B and the
// third C. A naive single-pass, increment-even-on-remove loop can skip an
// entry after a removal; repeated full passes must resolve all three
// regardless of order.
func TestReduceOutOfOrderChain(t *testing.T) {
	iface := Interface{
		Name: "chain",
		Types: []NamedType{
			{Name: "C", Type: Type{Kind: KindNamed, Name: "B"}},
			{Name: "B", Type: Type{Kind: KindNamed, Name: "A"}},
			{Name: "A", Type: Type{Kind: KindBuiltin, Builtin: U32}},
		},
	}

	reduced, err := iface.Reduce()
	require.NoError(t, err)
	require.Len(t, reduced.Types, 3)

	names := map[string]Type{}
	for _, nt := range reduced.Types {
		names[nt.Name] = nt.Type
	}

	assert.Equal(t, KindBuiltin, names["A"].Kind)
	assert.Equal(t, KindBuiltin, names["B"].Kind)
	assert.Equal(t, KindBuiltin, names["C"].Kind)
}

func TestReduceManyInterleavedDependencies(t *testing.T) {
	// t1..t19 each depend on the type declared just before them, a
	// 20-long chain of named references down to the builtin t0; every
	// link must come out of the reduction.
	iface := Interface{Name: "many"}
	iface.Types = append(iface.Types, NamedType{Name: "t0", Type: Type{Kind: KindBuiltin, Builtin: U8}})
	for i := 1; i < 20; i++ {
		prev := "t" + itoa(i-1)
		iface.Types = append(iface.Types, NamedType{Name: "t" + itoa(i), Type: Type{Kind: KindNamed, Name: prev}})
	}

	reduced, err := iface.Reduce()
	require.NoError(t, err)
	assert.Len(t, reduced.Types, 20)
}

func TestReduceUnknownNameFails(t *testing.T) {
	iface := Interface{
		Name: "broken",
		Types: []NamedType{
			{Name: "A", Type: Type{Kind: KindNamed, Name: "DoesNotExist"}},
		},
	}
	_, err := iface.Reduce()
	assert.Error(t, err)
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	digits := []byte{}
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}
