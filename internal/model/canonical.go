package model

import (
	"bytes"
	"encoding/json"
	"fmt"

	"golang.org/x/text/unicode/norm"
)

// Normalize returns a copy of r with every string attribute in Unicode NFC.
//
// Titles arrive from browsers and CSV imports in mixed normalisation forms;
// normalising before the write keeps every copy of a record byte-identical
// across central and its fragment.
func (r Record) Normalize() Record {
	out := r.Clone()
	out.Key = norm.NFC.String(out.Key)
	out.TitleType = norm.NFC.String(out.TitleType)
	out.PrimaryTitle = norm.NFC.String(out.PrimaryTitle)
	out.OriginalTitle = norm.NFC.String(out.OriginalTitle)
	out.Genres = norm.NFC.String(out.Genres)
	return out
}

// MarshalCanonical produces the canonical JSON encoding of r.
//
// Differences from json.Marshal:
//  1. Strings are NFC normalised
//  2. No HTML escaping (< > & are NOT escaped)
//  3. No trailing newline
//
// Field order is the struct order, so equal records encode to equal bytes.
func MarshalCanonical(r Record) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(r.Normalize()); err != nil {
		return nil, fmt.Errorf("marshal canonical record %q: %w", r.Key, err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
