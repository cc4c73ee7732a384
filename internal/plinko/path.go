// Package plinko derives ball paths and payout multipliers.
//
// A path is a sha256 hash chain seeded from public block data, the player and
// the player's game count, so anyone holding those inputs can replay it.
package plinko

import (
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Direction is one peg bounce: 0 = left, 1 = right.
type Direction uint8

const (
	Left  Direction = 0
	Right Direction = 1
)

var ErrInvalidPath = errors.New("invalid path")

// SeedInput is the public data a path is derived from.
type SeedInput struct {
	Height uint64    `json:"height"`
	Time   time.Time `json:"time"`
	Player string    `json:"player"`
	Nonce  uint64    `json:"nonce"`
}

// Seed returns sha256(height ‖ time_ns ‖ player ‖ nonce), integers big-endian.
func (in SeedInput) Seed() [32]byte {
	buf := make([]byte, 0, 24+len(in.Player))
	buf = binary.BigEndian.AppendUint64(buf, in.Height)
	buf = binary.BigEndian.AppendUint64(buf, uint64(in.Time.UnixNano()))
	buf = append(buf, in.Player...)
	buf = binary.BigEndian.AppendUint64(buf, in.Nonce)
	return sha256.Sum256(buf)
}

// Path is the sequence of bounces for one drop.
type Path []Direction

// GeneratePath rehashes the seed once per row and takes the low bit of the
// first byte as the direction.
func GeneratePath(in SeedInput, rows int) Path {
	if rows <= 0 {
		return Path{}
	}
	path := make(Path, rows)
	seed := in.Seed()
	for i := range path {
		seed = sha256.Sum256(seed[:])
		path[i] = Direction(seed[0] % 2)
	}
	return path
}

// Bucket is the landing slot: the number of right bounces.
func (p Path) Bucket() int {
	bucket := 0
	for _, d := range p {
		if d == Right {
			bucket++
		}
	}
	return bucket
}

// String renders the path as "0101...".
func (p Path) String() string {
	var b strings.Builder
	b.Grow(len(p))
	for _, d := range p {
		if d == Right {
			b.WriteByte('1')
		} else {
			b.WriteByte('0')
		}
	}
	return b.String()
}

// Bools returns the path as true-for-right flags, the shape stored in game
// history.
func (p Path) Bools() []bool {
	out := make([]bool, len(p))
	for i, d := range p {
		out[i] = d == Right
	}
	return out
}

// ParsePath reads the "0101" form.
func ParsePath(s string) (Path, error) {
	path := make(Path, len(s))
	for i, c := range s {
		switch c {
		case '0':
			path[i] = Left
		case '1':
			path[i] = Right
		default:
			return nil, fmt.Errorf("%w: unexpected %q at %d", ErrInvalidPath, c, i)
		}
	}
	return path, nil
}

// Verify replays the path for in and reports whether it matches claimed.
func Verify(in SeedInput, claimed Path) bool {
	replayed := GeneratePath(in, len(claimed))
	if len(claimed) == 0 {
		return false
	}
	for i := range replayed {
		if replayed[i] != claimed[i] {
			return false
		}
	}
	return true
}
