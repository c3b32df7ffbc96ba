package checksum

import (
	"encoding/hex"
	"io"

	"github.com/cespare/xxhash/v2"
)

// CopyWithChecksum copies src into dst while hashing the stream, returning
// the number of bytes written and the hex-encoded xxhash of the content.
func CopyWithChecksum(dst io.Writer, src io.Reader) (int64, string, error) {
	hasher := xxhash.New()
	written, err := io.Copy(io.MultiWriter(dst, hasher), src)
	if err != nil {
		return written, "", err
	}

	return written, hex.EncodeToString(hasher.Sum(nil)), nil
}
