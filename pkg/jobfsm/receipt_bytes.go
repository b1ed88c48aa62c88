// Copyright 2025 ICN Federation
//
package jobfsm

import (
	"encoding/binary"

	"github.com/icn-federation/icn-core/pkg/jobmodel"
)

// receiptBytesFor is what gets anchored in the DAG: the receipt's signing
// bytes with its signature appended, so the anchored block is a complete,
// independently-verifiable record rather than just the hash input.
func receiptBytesFor(r jobmodel.Receipt) []byte {
	signing := r.SigningBytes()
	var sigLen [4]byte
	binary.BigEndian.PutUint32(sigLen[:], uint32(len(r.Sig)))
	out := make([]byte, 0, len(signing)+4+len(r.Sig))
	out = append(out, signing...)
	out = append(out, sigLen[:]...)
	out = append(out, r.Sig...)
	return out
}
