// Copyright 2025 ICN Federation
//
package cid

import "testing"

func TestEncodeFieldsOrderIndependent(t *testing.T) {
	a := EncodeFields([]Field{
		{Key: "b", Value: []byte("2")},
		{Key: "a", Value: []byte("1")},
	})
	b := EncodeFields([]Field{
		{Key: "a", Value: []byte("1")},
		{Key: "b", Value: []byte("2")},
	})
	if string(a) != string(b) {
		t.Fatalf("expected field order to not affect encoding, got %x vs %x", a, b)
	}
}

func TestOfDeterministic(t *testing.T) {
	payload := EncodeFields([]Field{{Key: "x", Value: Uint64Field(42)}})
	c1, err := Of(payload)
	if err != nil {
		t.Fatalf("Of: %v", err)
	}
	c2, err := Of(payload)
	if err != nil {
		t.Fatalf("Of: %v", err)
	}
	if c1 != c2 {
		t.Fatalf("expected identical CIDs for identical bytes, got %s vs %s", c1, c2)
	}
}

func TestOfDistinctPayloadsDiffer(t *testing.T) {
	p1 := EncodeFields([]Field{{Key: "x", Value: Uint64Field(1)}})
	p2 := EncodeFields([]Field{{Key: "x", Value: Uint64Field(2)}})
	c1 := MustOf(p1)
	c2 := MustOf(p2)
	if c1 == c2 {
		t.Fatalf("expected distinct payloads to produce distinct CIDs")
	}
}

func TestVerifyNoCollision(t *testing.T) {
	if err := VerifyNoCollision([]byte("a"), []byte("a")); err != nil {
		t.Fatalf("identical bytes must not collide: %v", err)
	}
	if err := VerifyNoCollision([]byte("a"), []byte("b")); err == nil {
		t.Fatalf("expected collision error for distinct bytes")
	}
}

func TestParseRoundTrip(t *testing.T) {
	c := MustOf([]byte("hello"))
	parsed, err := Parse(c.String())
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if parsed != c {
		t.Fatalf("round-trip mismatch: %s vs %s", parsed, c)
	}
}
