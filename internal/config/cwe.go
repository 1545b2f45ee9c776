package config

// CWEInstruction is the fixed per-CWE instruction injected into the TestGen
// prompt (spec §6 CWE-instruction table).
type CWEInstruction struct {
	ID          string
	Meaning     string
	Instruction string
}

var cweInstructions = map[string]CWEInstruction{
	"22": {
		ID:      "22",
		Meaning: "Path traversal",
		Instruction: "This is a Path Traversal vulnerability (CWE-22). The test case must call an externally " +
			"accessible API of the project with appropriate inputs, such that it reads from or writes to at " +
			"least one file outside the project directory.",
	},
	"78": {
		ID:      "78",
		Meaning: "Command injection",
		Instruction: "This is a Command Injection vulnerability (CWE-78). The test case must call an externally " +
			"accessible API of the project with appropriate inputs, such that it executes a shell command that " +
			"is not intended by the application.",
	},
	"79": {
		ID:      "79",
		Meaning: "XSS",
		Instruction: "This is a Cross-Site Scripting (XSS) vulnerability (CWE-79). The test case must call an " +
			"externally accessible API of the project with an input that contains scripting code, and show " +
			"that this input is not sanitized properly.",
	},
	"94": {
		ID:      "94",
		Meaning: "Code injection",
		Instruction: "This is a Code Injection vulnerability (CWE-94). The test case must call an externally " +
			"accessible API of the project with appropriate inputs, such that it executes some code that is " +
			"not intended by the application.",
	},
}

// LookupCWE returns the fixed instruction for a CWE identifier string
// (which may be bare "22" or prefixed "CWE-22"), and whether it is known.
func LookupCWE(id string) (CWEInstruction, bool) {
	normalized := id
	if len(id) > 4 && (id[:4] == "CWE-" || id[:4] == "cwe-") {
		normalized = id[4:]
	}
	ins, ok := cweInstructions[normalized]
	return ins, ok
}

// IsKnownCWE reports whether id maps to an instruction this agent supports.
func IsKnownCWE(id string) bool {
	_, ok := LookupCWE(id)
	return ok
}

// ProtectedFiles is the set of workspace files reset() must never delete,
// relative to the project workspace root.
var ProtectedFiles = map[string]bool{
	"Dockerfile.vuln":      true,
	".Dockerfile.backup":   true,
	".build_diff.patch":    true,
}

// IsProtected reports whether relPath (workspace-relative) is in the
// protected set.
func IsProtected(relPath string) bool {
	return ProtectedFiles[relPath]
}
