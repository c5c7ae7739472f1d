package fsutil

import (
	"crypto/md5"
	"encoding/hex"
)

// MD5Hex is the content digest used for manifest and icon hashes.
func MD5Hex(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}
