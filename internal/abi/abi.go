// Package abi provides internal utilities for Solidity signatures and JSON ABI documents.
package abi

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"

	"github.com/hedeqiang/tokenwatch/event"
)

// Entry kinds.
const (
	KindEvent    = "event"
	KindFunction = "function"
)

// Keccak256 returns the Keccak-256 digest of the concatenated inputs.
func Keccak256(data ...[]byte) []byte {
	h := sha3.NewLegacyKeccak256()
	for _, b := range data {
		h.Write(b)
	}
	return h.Sum(nil)
}

// Param is a single event or function parameter.
type Param struct {
	Type    string
	Name    string
	Indexed bool
}

// Entry is a parsed event or function definition.
type Entry struct {
	Kind    string
	Name    string
	Inputs  []Param
	Outputs []Param
}

// Canonical returns the canonical signature string (e.g. "Transfer(address,address,uint256)").
func (e *Entry) Canonical() string {
	types := make([]string, len(e.Inputs))
	for i, p := range e.Inputs {
		types[i] = p.Type
	}
	return fmt.Sprintf("%s(%s)", e.Name, strings.Join(types, ","))
}

// Topic returns the topic0 hash of an event entry.
func (e *Entry) Topic() event.Hash {
	var out event.Hash
	copy(out[:], Keccak256([]byte(e.Canonical())))
	return out
}

// Selector returns the 4-byte method identifier of a function entry.
func (e *Entry) Selector() [4]byte {
	var out [4]byte
	copy(out[:], Keccak256([]byte(e.Canonical())))
	return out
}

// ParseSignature parses a Solidity event or function signature of the given kind.
// Supported formats:
//   - "Transfer(address,address,uint256)"
//   - "Transfer(address indexed from, address indexed to, uint256 value)"
func ParseSignature(kind, sig string) (*Entry, error) {
	sig = strings.TrimSpace(sig)

	parenOpen := strings.IndexByte(sig, '(')
	parenClose := strings.LastIndexByte(sig, ')')
	if parenOpen < 0 || parenClose < 0 || parenClose <= parenOpen {
		return nil, fmt.Errorf("abi: malformed signature: %q", sig)
	}

	name := strings.TrimSpace(sig[:parenOpen])
	if name == "" {
		return nil, fmt.Errorf("abi: empty name in signature: %q", sig)
	}

	entry := &Entry{Kind: kind, Name: name}
	paramsStr := strings.TrimSpace(sig[parenOpen+1 : parenClose])
	if paramsStr == "" {
		return entry, nil
	}

	for _, part := range splitParams(paramsStr) {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		p, err := parseParam(part)
		if err != nil {
			return nil, fmt.Errorf("abi: %w in signature %q", err, sig)
		}
		if p.Indexed && kind != KindEvent {
			return nil, fmt.Errorf("abi: indexed parameter outside event in %q", sig)
		}
		entry.Inputs = append(entry.Inputs, p)
	}

	return entry, nil
}

func parseParam(s string) (Param, error) {
	tokens := strings.Fields(s)
	if len(tokens) == 0 {
		return Param{}, fmt.Errorf("empty parameter")
	}

	p := Param{Type: tokens[0]}
	for _, tok := range tokens[1:] {
		if tok == "indexed" {
			p.Indexed = true
		} else {
			p.Name = tok
		}
	}
	return p, nil
}

// splitParams splits a parameter list string, respecting nested parentheses (tuples).
func splitParams(s string) []string {
	var parts []string
	depth := 0
	start := 0

	for i, ch := range s {
		switch ch {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				parts = append(parts, s[start:i])
				start = i + 1
			}
		}
	}
	return append(parts, s[start:])
}
