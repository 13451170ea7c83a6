package evo

import (
	"encoding/binary"
	"math"
	"strconv"

	"github.com/cespare/xxhash/v2"

	"natsel/internal/model"
)

// GenomeHash hashes the IEEE-754 bits of every gene. Equal genomes hash
// equally; -0 and +0 hash differently.
func GenomeHash(genome model.Genome) uint64 {
	digest := xxhash.New()
	var buf [8]byte
	for _, v := range genome {
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(v))
		_, _ = digest.Write(buf[:])
	}
	return digest.Sum64()
}

func Fingerprint(genome model.Genome) string {
	return strconv.FormatUint(GenomeHash(genome), 16)
}
