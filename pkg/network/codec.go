// Copyright 2025 ICN Federation
//
package network

import "encoding/json"

// encodeEnvelope/decodeEnvelope define the envelope's wire format. JSON is
// sufficient here: unlike job manifests and receipts, envelopes are never
// content-addressed or signed over their own serialization, so canonical
// byte ordering is not required.
func encodeEnvelope(e Envelope) ([]byte, error) {
	return json.Marshal(e)
}

func decodeEnvelope(data []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return Envelope{}, err
	}
	return e, nil
}
