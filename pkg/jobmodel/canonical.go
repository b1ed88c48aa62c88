// Copyright 2025 ICN Federation
//
package jobmodel

import (
	"encoding/binary"
	"fmt"
	"time"

	ipfscid "github.com/ipfs/go-cid"

	"github.com/icn-federation/icn-core/pkg/cid"
	"github.com/icn-federation/icn-core/pkg/identity"
)

// CanonicalBytes serializes the manifest into the sorted-key, fixed-field
// canonical form mandated by SPEC_FULL §3 and §6. job_id is defined as
// cid.Of(m.CanonicalBytes()).
func (m Manifest) CanonicalBytes() []byte {
	fields := []cid.Field{
		{Key: "spec_kind", Value: []byte(m.SpecKind)},
		{Key: "payload", Value: m.Payload},
		{Key: "outputs", Value: encodeStrings(m.Outputs)},
		{Key: "required_cpu_cores", Value: cid.Uint64Field(m.RequiredResources.CPUCores)},
		{Key: "required_memory_mb", Value: cid.Uint64Field(m.RequiredResources.MemoryMB)},
		{Key: "required_storage_mb", Value: cid.Uint64Field(m.RequiredResources.StorageMB)},
		{Key: "max_cost_mana", Value: cid.Uint64Field(m.MaxCostMana)},
		{Key: "deadline_ns", Value: cid.Int64Field(int64(m.Deadline))},
		{Key: "submitter", Value: []byte(m.Submitter)},
		{Key: "submitted_at_unix_nano", Value: cid.Int64Field(m.SubmittedAt.UnixNano())},
		{Key: "nonce", Value: cid.Uint64Field(m.Nonce)},
		{Key: "inputs", Value: encodeCIDs(m.Inputs)},
	}
	if m.SpecKind == SpecKindCclWasm {
		fields = append(fields, cid.Field{Key: "wasm_cid", Value: []byte(m.WasmCID.String())})
	}
	return cid.EncodeFields(fields)
}

// ManifestFromCanonicalBytes reconstructs a Manifest from the bytes
// CanonicalBytes produced, the inverse a bidder needs when it has only
// fetched an announced manifest_cid's raw content from the DAG store and
// must recover the structured fields to price and evaluate a bid.
func ManifestFromCanonicalBytes(data []byte) (Manifest, error) {
	fields, err := cid.DecodeFields(data)
	if err != nil {
		return Manifest{}, fmt.Errorf("jobmodel: decode manifest: %w", err)
	}

	outputs, err := cid.DecodeStrings(fields["outputs"])
	if err != nil {
		return Manifest{}, fmt.Errorf("jobmodel: decode outputs: %w", err)
	}
	inputStrs, err := cid.DecodeStrings(fields["inputs"])
	if err != nil {
		return Manifest{}, fmt.Errorf("jobmodel: decode inputs: %w", err)
	}
	inputs := make([]ipfscid.Cid, len(inputStrs))
	for i, s := range inputStrs {
		c, err := cid.Parse(s)
		if err != nil {
			return Manifest{}, fmt.Errorf("jobmodel: decode input cid %d: %w", i, err)
		}
		inputs[i] = c
	}

	m := Manifest{
		SpecKind: SpecKind(fields["spec_kind"]),
		Payload:  fields["payload"],
		Inputs:   inputs,
		Outputs:  outputs,
		RequiredResources: ResourceRequirements{
			CPUCores:  binary.BigEndian.Uint64(fields["required_cpu_cores"]),
			MemoryMB:  binary.BigEndian.Uint64(fields["required_memory_mb"]),
			StorageMB: binary.BigEndian.Uint64(fields["required_storage_mb"]),
		},
		MaxCostMana: binary.BigEndian.Uint64(fields["max_cost_mana"]),
		Deadline:    time.Duration(int64(binary.BigEndian.Uint64(fields["deadline_ns"]))),
		Submitter:   identity.DID(fields["submitter"]),
		SubmittedAt: time.Unix(0, int64(binary.BigEndian.Uint64(fields["submitted_at_unix_nano"]))).UTC(),
		Nonce:       binary.BigEndian.Uint64(fields["nonce"]),
	}
	if m.SpecKind == SpecKindCclWasm {
		wasmCID, err := cid.Parse(string(fields["wasm_cid"]))
		if err != nil {
			return Manifest{}, fmt.Errorf("jobmodel: decode wasm_cid: %w", err)
		}
		m.WasmCID = wasmCID
	}
	return m, nil
}

// JobID computes the job_id of a manifest: the CID of its canonical bytes.
func (m Manifest) JobID() (ipfscid.Cid, error) {
	c, err := cid.Of(m.CanonicalBytes())
	if err != nil {
		return ipfscid.Undef, fmt.Errorf("jobmodel: compute job_id: %w", err)
	}
	return c, nil
}

// SigningBytes returns the bytes a Bid's signature covers: the canonical
// encoding with the sig field itself excluded (it cannot sign over its own
// value).
func (b Bid) SigningBytes() []byte {
	return cid.EncodeFields([]cid.Field{
		{Key: "job_id", Value: []byte(b.JobID.String())},
		{Key: "bidder", Value: []byte(b.Bidder)},
		{Key: "price_mana", Value: cid.Uint64Field(b.PriceMana)},
		{Key: "claimed_cpu_cores", Value: cid.Uint64Field(b.ClaimedResources.CPUCores)},
		{Key: "claimed_memory_mb", Value: cid.Uint64Field(b.ClaimedResources.MemoryMB)},
		{Key: "claimed_storage_mb", Value: cid.Uint64Field(b.ClaimedResources.StorageMB)},
		{Key: "valid_until_unix_nano", Value: cid.Int64Field(b.ValidUntil.UnixNano())},
	})
}

// SigningBytes returns the bytes a Receipt's signature covers: the
// canonical encoding minus the sig field, per SPEC_FULL §6.
func (r Receipt) SigningBytes() []byte {
	return cid.EncodeFields([]cid.Field{
		{Key: "job_id", Value: []byte(r.JobID.String())},
		{Key: "executor", Value: []byte(r.Executor)},
		{Key: "result_cid", Value: []byte(r.ResultCID.String())},
		{Key: "cpu_ms", Value: cid.Uint64Field(r.CPUMs)},
		{Key: "mem_peak_mb", Value: cid.Uint64Field(r.MemPeakMB)},
		{Key: "success", Value: cid.BoolField(r.Success)},
		{Key: "exit_code", Value: cid.Int32Field(r.ExitCode)},
	})
}

func encodeStrings(ss []string) []byte {
	var buf []byte
	var lenBytes [4]byte
	binary.BigEndian.PutUint32(lenBytes[:], uint32(len(ss)))
	buf = append(buf, lenBytes[:]...)
	for _, s := range ss {
		var slen [4]byte
		binary.BigEndian.PutUint32(slen[:], uint32(len(s)))
		buf = append(buf, slen[:]...)
		buf = append(buf, s...)
	}
	return buf
}

func encodeCIDs(cids []ipfscid.Cid) []byte {
	strs := make([]string, len(cids))
	for i, c := range cids {
		strs[i] = c.String()
	}
	return encodeStrings(strs)
}
