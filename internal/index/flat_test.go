package index

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlatQuery(t *testing.T) {
	f := &Flat{}
	require.NoError(t, f.Build(
		[]string{"a", "b", "c"},
		[][]float32{{1, 0}, {0, 1}, {0.6, 0.8}},
	))
	assert.Equal(t, 3, f.Len())
	assert.Equal(t, 2, f.Dim())

	ids, scores, err := f.Query([]float32{0, 1}, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, ids)
	assert.InDelta(t, 1.0, scores[0], 1e-6)
	assert.InDelta(t, 0.8, scores[1], 1e-6)

	ids, _, err = f.Query([]float32{0, 1}, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c", "a"}, ids)

	ids, _, err = f.Query([]float32{0, 1}, 10)
	require.NoError(t, err)
	assert.Len(t, ids, 3)
}

func TestFlatQueryTiesKeepInsertionOrder(t *testing.T) {
	f := &Flat{}
	require.NoError(t, f.Build(
		[]string{"first", "second", "third"},
		[][]float32{{1, 0}, {1, 0}, {1, 0}},
	))
	ids, _, err := f.Query([]float32{1, 0}, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "third"}, ids)
}

func TestFlatQueryDimensionMismatch(t *testing.T) {
	f := &Flat{}
	require.NoError(t, f.Build([]string{"a"}, [][]float32{{1, 0}}))
	_, _, err := f.Query([]float32{1, 0, 0}, 1)
	assert.True(t, errors.Is(err, ErrDimensionMismatch))
}

func TestFlatBuildErrors(t *testing.T) {
	f := &Flat{}
	assert.Error(t, f.Build([]string{"a"}, nil))
	assert.Error(t, f.Build([]string{"a"}, [][]float32{{}}))
	assert.Error(t, f.Build([]string{"a", "b"}, [][]float32{{1}, {1, 2}}))

	require.NoError(t, f.Build(nil, nil))
	ids, scores, err := f.Query([]float32{1}, 3)
	require.NoError(t, err)
	assert.Empty(t, ids)
	assert.Empty(t, scores)
}

func TestFlatBinaryRoundTrip(t *testing.T) {
	f := &Flat{}
	require.NoError(t, f.Build(
		[]string{"mysql:sql:shop/orders", "csv:csv:./data/sales"},
		[][]float32{{0.5, -0.25, 1}, {0, 1, 0}},
	))
	data, err := f.MarshalBinary()
	require.NoError(t, err)

	restored := &Flat{}
	require.NoError(t, restored.UnmarshalBinary(data))
	assert.Equal(t, f.ids, restored.ids)
	assert.Equal(t, f.vecs, restored.vecs)
	assert.Equal(t, 3, restored.Dim())
}

func header(dim, n uint32) []byte {
	out := append([]byte(nil), flatMagic[:]...)
	out = binary.LittleEndian.AppendUint32(out, flatVersion)
	out = binary.LittleEndian.AppendUint32(out, dim)
	return binary.LittleEndian.AppendUint32(out, n)
}

func TestFlatUnmarshalCorrupt(t *testing.T) {
	f := &Flat{}
	require.NoError(t, f.Build([]string{"a"}, [][]float32{{1, 2}}))
	data, err := f.MarshalBinary()
	require.NoError(t, err)

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"bad magic", append([]byte("XXXX"), data[4:]...)},
		{"truncated", data[:len(data)-3]},
		{"huge count", header(4, 0xFFFFFFFF)},
		{"huge dim", header(0xFFFFFFFF, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := (&Flat{}).UnmarshalBinary(tt.data)
			assert.True(t, errors.Is(err, ErrCorruptIndex), "got %v", err)
		})
	}

	empty := &Flat{}
	require.NoError(t, empty.UnmarshalBinary(header(4, 0)))
	assert.Zero(t, empty.Len())

	badVersion := append([]byte(nil), data...)
	badVersion[4] = 9
	assert.True(t, errors.Is((&Flat{}).UnmarshalBinary(badVersion), ErrCorruptIndex))
}

func TestCosine(t *testing.T) {
	c, err := cosine([]float32{1, 0}, []float32{2, 0})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, c, 1e-9)

	c, err = cosine([]float32{0, 0}, []float32{1, 0})
	require.NoError(t, err)
	assert.Zero(t, c)

	_, err = cosine([]float32{1}, []float32{1, 0})
	assert.True(t, errors.Is(err, ErrDimensionMismatch))
}

func TestEmbeddingEncoding(t *testing.T) {
	vec := []float32{1.5, -2, 0, 3.25}
	b := EncodeEmbedding(vec)
	assert.Len(t, b, 16)

	out, err := DecodeEmbedding(b)
	require.NoError(t, err)
	assert.Equal(t, vec, out)

	out, err = DecodeEmbedding(nil)
	require.NoError(t, err)
	assert.Nil(t, out)
	assert.Nil(t, EncodeEmbedding(nil))

	_, err = DecodeEmbedding([]byte{1, 2, 3})
	assert.Error(t, err)
}
