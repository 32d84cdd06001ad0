package engine

import (
	crand "crypto/rand"
	"encoding/binary"
	"hash/fnv"
	mathrand "math/rand"
	"time"
)

// maxRandomSeed bounds generated seeds so they stay readable in logs and CLI flags.
const maxRandomSeed = 1_000_000_000

// ResolveSeed picks the build seed: the obfuscator seed wins over the run seed,
// otherwise a random seed in [0, 1e9) is generated. The second return value is
// false when the seed was generated.
func ResolveSeed(obfuscatorSeed, runSeed *int64) (int64, bool) {
	if obfuscatorSeed != nil {
		return *obfuscatorSeed, true
	}
	if runSeed != nil {
		return *runSeed, true
	}
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return time.Now().UnixNano() % maxRandomSeed, false
	}
	return int64(binary.LittleEndian.Uint64(b[:]) % maxRandomSeed), false
}

// FileSeed derives the seed for one file from the build seed, so files can be
// processed in any order and still produce the same output.
func FileSeed(seed int64, name string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(name))
	return seed ^ int64(h.Sum64())
}

// InitRNG returns a deterministic RNG for seed.
func InitRNG(seed int64) *mathrand.Rand {
	return mathrand.New(mathrand.NewSource(seed))
}

const (
	identHead = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ_$"
	identTail = identHead + "0123456789"
)

// RandIdent returns a random JS identifier of length n (minimum 2) that is not
// a reserved word.
func RandIdent(r *mathrand.Rand, n int) string {
	if n < 2 {
		n = 2
	}
	for {
		b := make([]byte, n)
		b[0] = identHead[r.Intn(len(identHead))]
		for i := 1; i < n; i++ {
			b[i] = identTail[r.Intn(len(identTail))]
		}
		if s := string(b); !isReservedWord(s) {
			return s
		}
	}
}
