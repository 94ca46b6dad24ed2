package abi

import (
	"encoding/json"
	"fmt"
	"strings"
)

type jsonEntry struct {
	Type    string      `json:"type"`
	Name    string      `json:"name"`
	Inputs  []jsonParam `json:"inputs"`
	Outputs []jsonParam `json:"outputs"`
}

type jsonParam struct {
	Name       string      `json:"name"`
	Type       string      `json:"type"`
	Indexed    bool        `json:"indexed"`
	Components []jsonParam `json:"components,omitempty"`
}

// ParseJSON parses a standard JSON ABI array and returns its event and
// function entries. Constructors, fallbacks and errors are skipped.
func ParseJSON(data []byte) ([]*Entry, error) {
	var raw []jsonEntry
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("abi: parse JSON ABI: %w", err)
	}

	var entries []*Entry
	for _, je := range raw {
		// Legacy ABIs omit "type" for functions.
		kind := je.Type
		if kind == "" {
			kind = KindFunction
		}
		if kind != KindEvent && kind != KindFunction {
			continue
		}
		if je.Name == "" {
			return nil, fmt.Errorf("abi: %s entry has no name", kind)
		}
		entries = append(entries, &Entry{
			Kind:    kind,
			Name:    je.Name,
			Inputs:  convertParams(je.Inputs),
			Outputs: convertParams(je.Outputs),
		})
	}
	return entries, nil
}

// Find returns the first entry with the given kind and name.
func Find(entries []*Entry, kind, name string) (*Entry, bool) {
	for _, e := range entries {
		if e.Kind == kind && e.Name == name {
			return e, true
		}
	}
	return nil, false
}

func convertParams(in []jsonParam) []Param {
	out := make([]Param, len(in))
	for i, p := range in {
		out[i] = Param{Type: resolveType(p), Name: p.Name, Indexed: p.Indexed}
	}
	return out
}

// resolveType converts a JSON ABI parameter to its canonical Solidity type,
// expanding tuples into "(type1,type2,...)" notation.
func resolveType(p jsonParam) string {
	if len(p.Components) == 0 {
		return p.Type
	}

	suffix := ""
	if idx := strings.Index(p.Type, "["); idx >= 0 {
		suffix = p.Type[idx:]
	}

	types := make([]string, len(p.Components))
	for i, c := range p.Components {
		types[i] = resolveType(c)
	}
	return "(" + strings.Join(types, ",") + ")" + suffix
}
