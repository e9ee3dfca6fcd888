package selection

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// ParamsFingerprint returns a stable hex digest of a parameter map.
// Keys are sorted, so maps built in any order hash the same.
func ParamsFingerprint(params map[string]interface{}) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := sha256.New()
	for _, k := range keys {
		fmt.Fprintf(h, "%s=%v;", k, params[k])
	}
	return hex.EncodeToString(h.Sum(nil))
}

// DatasetFingerprint digests the design matrix and labels, so cached
// tuning scores are only reused against identical data.
func DatasetFingerprint(X mat.Matrix, labels []int) string {
	h := sha256.New()
	n, d := X.Dims()

	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(n))
	h.Write(buf[:])
	binary.LittleEndian.PutUint64(buf[:], uint64(d))
	h.Write(buf[:])

	for i := 0; i < n; i++ {
		for j := 0; j < d; j++ {
			binary.LittleEndian.PutUint64(buf[:], math.Float64bits(X.At(i, j)))
			h.Write(buf[:])
		}
	}
	for _, label := range labels {
		binary.LittleEndian.PutUint64(buf[:], uint64(int64(label)))
		h.Write(buf[:])
	}
	return hex.EncodeToString(h.Sum(nil))
}
