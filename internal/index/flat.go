// Package index stores data item embeddings and answers nearest-neighbor
// queries over them.
package index

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"
)

// flatMagic prefixes every serialized Flat index.
var flatMagic = [4]byte{'G', 'Q', 'I', 'X'}

const flatVersion = 1

// Flat is an exact inner-product index. Vectors are expected to be
// L2-normalized, which makes the inner product the cosine similarity.
type Flat struct {
	ids  []string
	vecs [][]float32
	dim  int
}

// Build loads ids and vectors, replacing any previous content.
func (f *Flat) Build(ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("index: ids and vectors length mismatch: %d != %d", len(ids), len(vectors))
	}
	if len(ids) == 0 {
		f.ids, f.vecs, f.dim = nil, nil, 0
		return nil
	}
	dim := len(vectors[0])
	if dim == 0 {
		return errors.New("index: zero-length vector")
	}
	for j := range vectors {
		if len(vectors[j]) != dim {
			return fmt.Errorf("index: inconsistent vector dims %d vs %d", len(vectors[j]), dim)
		}
	}
	f.ids = append([]string(nil), ids...)
	f.vecs = append([][]float32(nil), vectors...)
	f.dim = dim
	return nil
}

// Len returns the number of indexed vectors.
func (f *Flat) Len() int { return len(f.ids) }

// Dim returns the vector dimensionality, zero for an empty index.
func (f *Flat) Dim() int { return f.dim }

// Query returns the ids and scores of the k best matches, best first.
// Ties keep insertion order. k <= 0 returns every match.
func (f *Flat) Query(query []float32, k int) ([]string, []float32, error) {
	if len(f.vecs) == 0 {
		return nil, nil, nil
	}
	if len(query) != f.dim {
		return nil, nil, fmt.Errorf("%w: query dim %d != index dim %d", ErrDimensionMismatch, len(query), f.dim)
	}

	type scored struct {
		idx   int
		score float32
	}
	scoreds := make([]scored, 0, len(f.vecs))
	for j := range f.vecs {
		s := innerProduct(query, f.vecs[j])
		if math.IsNaN(float64(s)) {
			continue
		}
		scoreds = append(scoreds, scored{idx: j, score: s})
	}
	sort.SliceStable(scoreds, func(a, b int) bool { return scoreds[a].score > scoreds[b].score })

	if k <= 0 || k > len(scoreds) {
		k = len(scoreds)
	}
	outIDs := make([]string, k)
	outScores := make([]float32, k)
	for n := 0; n < k; n++ {
		outIDs[n] = f.ids[scoreds[n].idx]
		outScores[n] = scoreds[n].score
	}
	return outIDs, outScores, nil
}

// MarshalBinary stores: magic[4], version(uint32), dim(uint32), n(uint32),
// then for each item: idLen(uint32), id bytes, vec(float32[dim]).
func (f *Flat) MarshalBinary() ([]byte, error) {
	size := 16
	for _, id := range f.ids {
		size += 4 + len(id) + 4*f.dim
	}
	out := make([]byte, 0, size)
	out = append(out, flatMagic[:]...)
	out = binary.LittleEndian.AppendUint32(out, flatVersion)
	out = binary.LittleEndian.AppendUint32(out, uint32(f.dim))
	out = binary.LittleEndian.AppendUint32(out, uint32(len(f.ids)))
	for idx, id := range f.ids {
		out = binary.LittleEndian.AppendUint32(out, uint32(len(id)))
		out = append(out, id...)
		for _, v := range f.vecs[idx] {
			out = binary.LittleEndian.AppendUint32(out, math.Float32bits(v))
		}
	}
	return out, nil
}

// ErrCorruptIndex is returned when serialized index data cannot be decoded.
var ErrCorruptIndex = errors.New("index: corrupt index data")

// UnmarshalBinary restores the index from bytes.
func (f *Flat) UnmarshalBinary(data []byte) error {
	if len(data) < 16 || [4]byte(data[0:4]) != flatMagic {
		return fmt.Errorf("%w: bad header", ErrCorruptIndex)
	}
	off := 4
	getU32 := func() uint32 { v := binary.LittleEndian.Uint32(data[off : off+4]); off += 4; return v }

	if v := getU32(); v != flatVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrCorruptIndex, v)
	}
	dim := int(getU32())
	n := int(getU32())

	// Every item takes at least 4+4*dim bytes; reject counts the data
	// cannot hold before allocating for them.
	rest := len(data) - off
	if n > 0 && (dim > rest/4 || n > rest/(4+4*dim)) {
		return fmt.Errorf("%w: header claims %d items of %d dims in %d bytes", ErrCorruptIndex, n, dim, rest)
	}

	ids := make([]string, n)
	vecs := make([][]float32, n)
	for idx := 0; idx < n; idx++ {
		if off+4 > len(data) {
			return fmt.Errorf("%w: truncated", ErrCorruptIndex)
		}
		idLen := int(getU32())
		if off+idLen+4*dim > len(data) {
			return fmt.Errorf("%w: truncated item %d", ErrCorruptIndex, idx)
		}
		ids[idx] = string(data[off : off+idLen])
		off += idLen
		vec := make([]float32, dim)
		for j := range vec {
			vec[j] = math.Float32frombits(getU32())
		}
		vecs[idx] = vec
	}
	return f.Build(ids, vecs)
}

func innerProduct(a, b []float32) float32 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return float32(s)
}

// cosine is used where stored vectors may not be normalized.
// Zero-magnitude input yields 0.
func cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}
	var dot, na2, nb2 float64
	for i := range a {
		va, vb := float64(a[i]), float64(b[i])
		dot += va * vb
		na2 += va * va
		nb2 += vb * vb
	}
	if na2 == 0 || nb2 == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(na2) * math.Sqrt(nb2)), nil
}
