package index

import (
	"crypto/sha256"
	"encoding/hex"
	"io"

	"github.com/dbsmedya/goask/internal/types"
)

// Fingerprint hashes the embedded text of every item, in order, together
// with the embedding provider and model. Equal fingerprints mean the saved
// index can be reused as is.
func Fingerprint(items []types.DataItem, provider, model string) string {
	h := sha256.New()
	io.WriteString(h, provider)
	h.Write([]byte{0})
	io.WriteString(h, model)
	h.Write([]byte{0})
	for _, item := range items {
		io.WriteString(h, item.ID())
		h.Write([]byte{0})
		io.WriteString(h, item.Text())
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}
