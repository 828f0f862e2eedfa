package buildcfg

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"hash"
)

// HashLen is the number of hex digits in an identity.
const HashLen = 16

// Identity hashes everything that changes the produced toolchain:
// architecture, triples, component versions, extra configuration, the
// minimum kernel, remote overrides and prepare commands. The job count and
// the source and build roots are excluded.
//
// Every field is length-prefixed and maps are written in key order.
func Identity(c Config) string {
	h := sha256.New()
	for _, s := range []string{"weaver-identity-v1", c.Arch, c.Org, c.OS, c.Host, c.Build} {
		writeField(h, s)
	}
	writeMap(h, c.Versions)
	writeLists(h, c.ExtraConfig)
	writeLists(h, c.ArchConfig)
	writeField(h, c.MinKernel)
	writeMap(h, c.Remotes)
	writeCommands(h, c.Prepare)
	return hex.EncodeToString(h.Sum(nil))[:HashLen]
}

func writeField(h hash.Hash, s string) {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(s)))
	h.Write(n[:])
	h.Write([]byte(s))
}

func writeCount(h hash.Hash, n int) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(n))
	h.Write(b[:])
}

func writeMap(h hash.Hash, m map[string]string) {
	writeCount(h, len(m))
	for _, k := range sortedKeys(m) {
		writeField(h, k)
		writeField(h, m[k])
	}
}

func writeLists(h hash.Hash, m map[string][]string) {
	keys := make([]string, 0, len(m))
	for _, k := range sortedKeys(m) {
		if len(m[k]) > 0 {
			keys = append(keys, k)
		}
	}
	writeCount(h, len(keys))
	for _, k := range keys {
		writeField(h, k)
		writeCount(h, len(m[k]))
		for _, v := range m[k] {
			writeField(h, v)
		}
	}
}

// writeCommands keeps present-but-empty entries, since an empty list
// disables the defaults.
func writeCommands(h hash.Hash, m map[string][][]string) {
	writeCount(h, len(m))
	for _, k := range sortedKeys(m) {
		writeField(h, k)
		writeCount(h, len(m[k]))
		for _, argv := range m[k] {
			writeCount(h, len(argv))
			for _, a := range argv {
				writeField(h, a)
			}
		}
	}
}
