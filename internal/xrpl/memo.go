package xrpl

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// Memo is an uppercase-hex encoded transaction annotation. The ledger stores
// memo fields as hex; these helpers keep encode/decode in one place.
type Memo struct {
	Type string
	Data string
}

// NewMemo hex-encodes a memo type and JSON-encodes its payload.
func NewMemo(memoType string, payload any) (Memo, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Memo{}, fmt.Errorf("encode memo payload: %w", err)
	}
	return Memo{
		Type: strings.ToUpper(hex.EncodeToString([]byte(memoType))),
		Data: strings.ToUpper(hex.EncodeToString(data)),
	}, nil
}

// DecodeMemoData decodes a memo payload into out.
func DecodeMemoData(memoData string, out any) error {
	raw, err := hex.DecodeString(memoData)
	if err != nil {
		return fmt.Errorf("decode memo hex: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode memo payload: %w", err)
	}
	return nil
}
