package simulation

import (
	"hash/fnv"
	"strconv"
)

// Source yields draws in [0, 1).
type Source interface {
	Float64() float64
}

// Seed hashes (chain id, bot id, tick bucket) to a 32-bit seed with FNV-1a.
func Seed(chainID int64, botID uint64, bucket int64) uint32 {
	h := fnv.New32a()
	h.Write([]byte(strconv.FormatInt(chainID, 10) + ":" + strconv.FormatUint(botID, 10) + ":" + strconv.FormatInt(bucket, 10)))
	return h.Sum32()
}

// Bucket is floor(unix / interval) for a positive interval in seconds.
func Bucket(unix, intervalSeconds int64) int64 {
	if intervalSeconds < 1 {
		intervalSeconds = 1
	}
	q := unix / intervalSeconds
	if unix%intervalSeconds != 0 && unix < 0 {
		q--
	}
	return q
}

// Rand is a xorshift32 generator. It is created once per bot per tick and
// passed through every step that draws, so the draw order is fixed.
type Rand struct {
	state uint32
}

// zero is a fixed point of xorshift, so it is remapped.
const zeroSeed uint32 = 0x9e3779b9

func NewRand(seed uint32) *Rand {
	if seed == 0 {
		seed = zeroSeed
	}
	return &Rand{state: seed}
}

func (r *Rand) Uint32() uint32 {
	x := r.state
	x ^= x << 13
	x ^= x >> 17
	x ^= x << 5
	r.state = x
	return x
}

func (r *Rand) Float64() float64 {
	return float64(r.Uint32()) / (1 << 32)
}
