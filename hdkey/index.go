package hdkey

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

// leafTag domain-separates leaf index derivation from every other use of
// SHA-256 in the protocol.
const leafTag = "sigil/leaf:"

// IndexFromDigest maps a payload digest to the leaf index that signs it:
// the first 31 bits of SHA-256(leafTag + hex(digest)), masked non-negative.
// A pure function of the payload content, so a verifier with nothing but the
// payload and the xpub arrives at the same index without searching.
func IndexFromDigest(digest [32]byte) uint32 {
	h := sha256.Sum256([]byte(leafTag + hex.EncodeToString(digest[:])))
	return binary.BigEndian.Uint32(h[:4]) & 0x7fffffff
}
