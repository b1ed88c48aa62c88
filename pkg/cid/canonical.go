// Copyright 2025 ICN Federation
//
// Package cid implements content-addressing: canonical byte encoding for
// hashed artifacts and CID computation over those bytes.
package cid

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sort"

	ipfscid "github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"
)

// ErrCollision signals that two distinct byte payloads hashed to the same
// CID. Per the data model invariant (cid(x) == cid(y) => bytes(x) == bytes(y)),
// this is treated as fatal rather than recoverable.
var ErrCollision = errors.New("cid: collision between distinct payloads")

// Codec is the IPLD codec tag used for every artifact this module anchors.
// We don't interpret structure via IPLD; raw bytes are canonical already.
const Codec = ipfscid.Raw

// Of returns the content identifier for canonical bytes, using SHA-256
// multihash over the raw codec. Callers MUST pass already-canonicalized
// bytes (see EncodeFields) so that re-hashing the same logical value
// always yields the same CID.
func Of(canonicalBytes []byte) (ipfscid.Cid, error) {
	digest, err := mh.Sum(canonicalBytes, mh.SHA2_256, -1)
	if err != nil {
		return ipfscid.Undef, fmt.Errorf("cid: hash canonical bytes: %w", err)
	}
	return ipfscid.NewCidV1(Codec, digest), nil
}

// MustOf is Of but panics on hash failure; hash failure here can only stem
// from a misconfigured multihash length and indicates a programming error,
// not a runtime condition callers should recover from.
func MustOf(canonicalBytes []byte) ipfscid.Cid {
	c, err := Of(canonicalBytes)
	if err != nil {
		panic(err)
	}
	return c
}

// Parse decodes a CID from its string form.
func Parse(s string) (ipfscid.Cid, error) {
	c, err := ipfscid.Decode(s)
	if err != nil {
		return ipfscid.Undef, fmt.Errorf("cid: parse %q: %w", s, err)
	}
	return c, nil
}

// Field is one entry of a canonical sorted-key map. Values must already be
// canonical bytes for whatever type they represent; this package does not
// recurse into arbitrary Go values, matching the spec's "no floats, sorted
// fields, fixed order" canonical-encoding requirement.
type Field struct {
	Key   string
	Value []byte
}

// EncodeFields serializes a set of named fields into canonical bytes:
// fields are sorted lexicographically by key (regardless of caller-supplied
// order), then each is written as length-prefixed key followed by
// length-prefixed value. This guarantees a single deterministic encoding
// per logical value, independent of struct field order in memory.
func EncodeFields(fields []Field) []byte {
	sorted := make([]Field, len(fields))
	copy(sorted, fields)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Key < sorted[j].Key })

	var buf bytes.Buffer
	for _, f := range sorted {
		writeLenPrefixed(&buf, []byte(f.Key))
		writeLenPrefixed(&buf, f.Value)
	}
	return buf.Bytes()
}

func writeLenPrefixed(buf *bytes.Buffer, b []byte) {
	var lenBytes [4]byte
	binary.BigEndian.PutUint32(lenBytes[:], uint32(len(b)))
	buf.Write(lenBytes[:])
	buf.Write(b)
}

// DecodeFields is EncodeFields's inverse: it recovers the named fields from
// canonical bytes produced by EncodeFields. Field order is not preserved
// (EncodeFields already discarded it by sorting), so callers index the
// result by key.
func DecodeFields(data []byte) (map[string][]byte, error) {
	out := make(map[string][]byte)
	r := bytes.NewReader(data)
	for r.Len() > 0 {
		key, err := readLenPrefixed(r)
		if err != nil {
			return nil, fmt.Errorf("cid: decode field key: %w", err)
		}
		value, err := readLenPrefixed(r)
		if err != nil {
			return nil, fmt.Errorf("cid: decode field value: %w", err)
		}
		out[string(key)] = value
	}
	return out, nil
}

func readLenPrefixed(r *bytes.Reader) ([]byte, error) {
	var lenBytes [4]byte
	if _, err := io.ReadFull(r, lenBytes[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBytes[:])
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}

// DecodeStrings is jobmodel's encodeStrings inverse, shared here since both
// outputs and input-CID lists use the same length-prefixed string-array
// framing.
func DecodeStrings(data []byte) ([]string, error) {
	if len(data) < 4 {
		return nil, fmt.Errorf("cid: truncated string array")
	}
	count := binary.BigEndian.Uint32(data[:4])
	r := bytes.NewReader(data[4:])
	out := make([]string, 0, count)
	for i := uint32(0); i < count; i++ {
		b, err := readLenPrefixed(r)
		if err != nil {
			return nil, fmt.Errorf("cid: decode string %d: %w", i, err)
		}
		out = append(out, string(b))
	}
	return out, nil
}

// Uint64Field encodes a u64 as big-endian fixed-width bytes — deterministic
// and monotonic under byte-wise comparison, unlike a variable-length
// encoding.
func Uint64Field(v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return b[:]
}

// Int64Field encodes an i64 via its two's-complement bit pattern, reusing
// Uint64Field so score fields (which may be negative) stay deterministic.
func Int64Field(v int64) []byte {
	return Uint64Field(uint64(v))
}

// Int32Field encodes an i32 the same way, at half the width.
func Int32Field(v int32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(v))
	return b[:]
}

// BoolField encodes a bool as a single byte.
func BoolField(v bool) []byte {
	if v {
		return []byte{1}
	}
	return []byte{0}
}

// VerifyNoCollision checks two payloads that hashed to the same CID are
// byte-identical, and returns ErrCollision if not. Call this whenever a CID
// computed locally might collide with one already anchored under the same
// key, e.g. at DAG Store boundaries.
func VerifyNoCollision(a, b []byte) error {
	if !bytes.Equal(a, b) {
		return ErrCollision
	}
	return nil
}
