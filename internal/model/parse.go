package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ExtractTagged pulls the text between the first occurrence of open and
// close tags out of s, trimmed. ok=false if either tag is absent.
func ExtractTagged(s, open, close string) (string, bool) {
	start := strings.Index(s, open)
	if start < 0 {
		return "", false
	}
	rest := s[start+len(open):]
	end := strings.Index(rest, close)
	if end < 0 {
		return "", false
	}
	return strings.TrimSpace(rest[:end]), true
}

// scanJSONObjects finds each top-level brace-delimited JSON object
// substring within s. Models emit a loose sequence of {...} blocks rather
// than a single JSON array, so this walks brace depth rather than calling
// json.Unmarshal on the whole blob.
func scanJSONObjects(s string) []string {
	var objs []string
	depth := 0
	start := -1
	inString := false
	escaped := false
	for i, r := range s {
		if inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			}
			continue
		}
		switch r {
		case '"':
			inString = true
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			depth--
			if depth == 0 && start >= 0 {
				objs = append(objs, s[start:i+1])
				start = -1
			}
		}
	}
	return objs
}

// ParseFlow extracts the raw <FLOW> text into its ordered program points and
// validates the Source/Intermediate/Sink shape (spec §3 Flow).
func ParseFlow(raw string) (Flow, error) {
	f := Flow{Raw: raw}
	for _, obj := range scanJSONObjects(raw) {
		var point ProgramPoint
		var decoded struct {
			Role     string `json:"role"`
			Code     string `json:"code"`
			Variable string `json:"variable"`
			File     string `json:"file"`
			Remarks  string `json:"remarks"`
		}
		if err := json.Unmarshal([]byte(obj), &decoded); err != nil {
			return Flow{}, fmt.Errorf("parse flow program point: %w", err)
		}
		point = ProgramPoint{
			Role:     ProgramPointRole(decoded.Role),
			Code:     decoded.Code,
			Variable: decoded.Variable,
			File:     decoded.File,
			Remarks:  decoded.Remarks,
		}
		f.Points = append(f.Points, point)
	}
	if err := f.Validate(); err != nil {
		return Flow{}, err
	}
	return f, nil
}

// ParseBranchSequence extracts the raw <SEQUENCE> text into its ordered
// branch points (spec §3 Branch Sequence).
func ParseBranchSequence(raw string) (BranchSequence, error) {
	seq := BranchSequence{Raw: raw}
	for _, obj := range scanJSONObjects(raw) {
		var decoded struct {
			Type    string `json:"type"`
			Code    string `json:"code"`
			File    string `json:"file"`
			Outcome string `json:"outcome"`
		}
		if err := json.Unmarshal([]byte(obj), &decoded); err != nil {
			return BranchSequence{}, fmt.Errorf("parse branch point: %w", err)
		}
		seq.Branches = append(seq.Branches, Branch{
			Type:    BranchType(decoded.Type),
			Code:    decoded.Code,
			File:    decoded.File,
			Outcome: decoded.Outcome,
		})
	}
	return seq, nil
}
