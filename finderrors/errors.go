package finderrors

import (
	"errors"
	"strings"
)

// Oracle (O) Errors
var (
	ErrOracleProtocol    = errors.New("O1|OracleProtocol: Disassembler output does not match any known listing format.")
	ErrUnknownShape      = errors.New("O2|UnknownShape: Operand text does not match any argument shape in the catalog.")
	ErrOracleUnavailable = errors.New("O3|OracleUnavailable: The disassembler backend could not be started.")
)

// Knowledge Base (K) Errors
var (
	ErrKnowledgeBaseFormat = errors.New("K1|KnowledgeBaseFormat: Saved catalog is not a list of (mnemonic, shape, mask, opcode) tuples.")
	ErrKnowledgeBaseFlush  = errors.New("K2|KnowledgeBaseFlush: Catalog could not be written to durable storage.")
	ErrDuplicateFact       = errors.New("K3|DuplicateFact: A fact for this mnemonic and shape is already recorded.")
	ErrUnknownFact         = errors.New("K4|UnknownFact: No fact is recorded for this mnemonic and shape.")
)

// Validator (V) Errors
var (
	ErrUnresolved = errors.New("V1|Unresolved: Range model still admits a counterexample after one split.")
)

// GetErrorName extracts the error name from the error message.
func GetErrorName(err error) string {
	if err == nil {
		return "No Error"
	}
	errStr := err.Error()
	if !strings.Contains(errStr, "|") || !strings.Contains(errStr, ":") {
		return errStr
	}
	parts := strings.SplitN(errStr, "|", 2)
	if len(parts) < 2 {
		return errStr
	}
	nameParts := strings.SplitN(parts[1], ":", 2)
	return strings.TrimSpace(nameParts[0])
}

// GetErrorCode extracts the error code from the error message.
func GetErrorCode(err error) string {
	if err == nil {
		return ""
	}
	errStr := err.Error()
	if !strings.Contains(errStr, "|") {
		return ""
	}
	parts := strings.SplitN(errStr, "|", 2)
	// wrapped errors carry a context prefix before the code
	code := parts[0]
	if idx := strings.LastIndex(code, ": "); idx >= 0 {
		code = code[idx+2:]
	}
	return strings.TrimSpace(code)
}

// GetErrorCodeWithName returns the error code and name in the format "Code_ErrorName".
func GetErrorCodeWithName(err error) string {
	code := GetErrorCode(err)
	name := GetErrorName(err)
	if code == "" || name == "" {
		return ""
	}
	return code + "_" + name
}

// IsFatal reports whether err must stop a run. Only validator diagnostics
// are non-fatal.
func IsFatal(err error) bool {
	return err != nil && !errors.Is(err, ErrUnresolved)
}
