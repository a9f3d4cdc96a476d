package plagiarism

import (
	"math"
	"math/bits"
	"math/rand"
	"strings"

	"github.com/cespare/xxhash/v2"
)

const (
	// DefaultNumPerm is the signature length used when none is configured.
	DefaultNumPerm = 128
	// DefaultSeed fixes the permutation family of a run.
	DefaultSeed int64 = 1

	// mersennePrime is 2^61 - 1, the modulus of every permutation.
	mersennePrime uint64 = (1 << 61) - 1
	// emptySlot marks a permutation no token has touched.
	emptySlot uint64 = math.MaxUint64
)

// Signature is a MinHash signature. Two signatures are comparable only when
// they have the same length and seed.
type Signature struct {
	Values []uint64
	Seed   int64
}

// permutation is the universal hash h(x) = (a*x + b) mod p.
type permutation struct {
	a uint64
	b uint64
}

func (p permutation) apply(x uint64) uint64 {
	hi, lo := bits.Mul64(p.a, x)
	r := bits.Rem64(hi, lo, mersennePrime)
	return (r + p.b) % mersennePrime
}

// MinHasher builds signatures over the set of tokens of a canonical text.
// The permutation family is derived from the seed alone, so every MinHasher
// with the same numPerm and seed produces comparable signatures.
type MinHasher struct {
	seed  int64
	perms []permutation
}

func NewMinHasher(numPerm int, seed int64) *MinHasher {
	if numPerm <= 0 {
		numPerm = DefaultNumPerm
	}

	rng := rand.New(rand.NewSource(seed))
	perms := make([]permutation, numPerm)
	for i := range perms {
		perms[i] = permutation{
			a: uint64(rng.Int63n(int64(mersennePrime-1))) + 1,
			b: uint64(rng.Int63n(int64(mersennePrime))),
		}
	}

	return &MinHasher{seed: seed, perms: perms}
}

// NumPerm returns the signature length.
func (m *MinHasher) NumPerm() int {
	return len(m.perms)
}

// Build hashes every token of canonical into the signature. An empty token
// stream leaves every slot at its initial maximum.
func (m *MinHasher) Build(canonical string) Signature {
	values := make([]uint64, len(m.perms))
	for i := range values {
		values[i] = emptySlot
	}

	for _, token := range Tokenize(canonical) {
		h := xxhash.Sum64String(token)
		for i, p := range m.perms {
			if v := p.apply(h); v < values[i] {
				values[i] = v
			}
		}
	}

	return Signature{Values: values, Seed: m.seed}
}

// Tokenize joins the canonical lines with a space and splits on single
// spaces, discarding empty tokens. Tabs and other whitespace stay inside
// tokens.
func Tokenize(canonical string) []string {
	joined := strings.ReplaceAll(canonical, "\n", " ")
	parts := strings.Split(joined, " ")
	tokens := parts[:0]
	for _, part := range parts {
		if part != "" {
			tokens = append(tokens, part)
		}
	}
	return tokens
}

// Estimate returns the fraction of positions where both signatures agree,
// an estimate of the Jaccard similarity of the underlying token sets.
func Estimate(a, b Signature) (float64, error) {
	if len(a.Values) != len(b.Values) || a.Seed != b.Seed {
		return 0, ErrSignatureMismatch
	}
	if len(a.Values) == 0 {
		return 0, ErrSignatureMismatch
	}

	matches := 0
	for i := range a.Values {
		if a.Values[i] == b.Values[i] {
			matches++
		}
	}
	return float64(matches) / float64(len(a.Values)), nil
}
