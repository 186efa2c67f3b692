// Package layout computes the sieving-prime plan and packs the prime data
// consumed by the GPU segment sieve.
//
// The work is split by concern:
//
//   - scheme.go: small-prime exclusion schemes and crossover row counts.
//   - plan.go: Solve, which picks primeCount and rowsPerThread.
//   - inverse.go: exact and sloppy 32-bit modular inverses.
//   - writer.go: the band cursor that packs width-checked fields into words.
//   - encode.go: Encode, which emits primeInfo and the row descriptors.
//   - rows.go: row descriptor serialisation for upload.
//
// primeInfo is laid out band by band. Every row holds one entry per lane of a
// 256-lane group; dense rows store the prime and its inverse outright, delta
// rows store only the distance to a prime a few rows earlier in the same lane.
//
//	band            bytes/lane  bit-to-clear  prime delta  inverse delta  group
//	prefix          4           16            -            -              -
//	below 64K       8           16            (16-bit p)   (32-bit pinv)  -
//	straddle 64K    12          32            (32-bit p)   (32-bit pinv)  -
//	transition 64K  12          32            (32-bit p)   (32-bit pinv)  -
//	delta 64K       4           18            7            7              3
//	delta 128K      4 (12)      20            7            5              4
//	delta 1M        4 (12)      24            7            1              4
//
// The 128K and 1M delta bands each open with one dense 12-byte transition row.
package layout
