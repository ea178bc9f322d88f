// Package cidutil derives and checks the content identifiers used for
// every charter artifact. All artifact identity in this module is a CIDv1
// over the artifact's canonical bytes; nothing else (construction order,
// wall-clock time) may influence it.
package cidutil

import (
	"fmt"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// CIDv1RawSHA256 returns a CIDv1 string using the "raw" multicodec
// and a sha2-256 multihash.
func CIDv1RawSHA256(data []byte) string {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		// multihash.Sum only errors for invalid inputs; with SHA2_256 and -1 length,
		// this should be unreachable.
		return ""
	}
	return cid.NewCidV1(cid.Raw, sum).String()
}

// CIDv1RawSHA256CID returns a CIDv1 (raw + sha2-256) derived from data.
func CIDv1RawSHA256CID(data []byte) (cid.Cid, error) {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, sum), nil
}

// Parse decodes s and requires the exact artifact identifier shape:
// CIDv1, raw multicodec, sha2-256 multihash. Any other shape is rejected
// so that foreign identifiers cannot masquerade as artifact ids.
func Parse(s string) (cid.Cid, error) {
	c, err := cid.Decode(s)
	if err != nil {
		return cid.Undef, fmt.Errorf("cidutil: parse %q: %w", s, err)
	}
	if c.Version() != 1 {
		return cid.Undef, fmt.Errorf("cidutil: %q: want CIDv1, got v%d", s, c.Version())
	}
	if c.Type() != cid.Raw {
		return cid.Undef, fmt.Errorf("cidutil: %q: want raw codec, got %#x", s, c.Type())
	}
	dec, err := multihash.Decode(c.Hash())
	if err != nil {
		return cid.Undef, fmt.Errorf("cidutil: %q: bad multihash: %w", s, err)
	}
	if dec.Code != multihash.SHA2_256 {
		return cid.Undef, fmt.Errorf("cidutil: %q: want sha2-256 multihash, got %#x", s, dec.Code)
	}
	return c, nil
}

// MustParse is Parse for tests and compiled-in constants; it panics on
// malformed input.
func MustParse(s string) cid.Cid {
	c, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return c
}

// Matches reports whether data hashes to want.
func Matches(want cid.Cid, data []byte) bool {
	got, err := CIDv1RawSHA256CID(data)
	if err != nil {
		return false
	}
	return got.Equals(want)
}
