package mifare

import (
	"errors"
	"fmt"
)

// Status word constants returned by PC/SC readers for MIFARE Classic pseudo-APDUs.
const (
	SWSuccess              = 0x9000 // Normal processing
	SWOperationFailed      = 0x6300 // Operation failed (wrong key, auth rejected, no card response)
	SWWrongLength          = 0x6700 // Wrong length
	SWSecurityNotSatisfied = 0x6982 // Security status not satisfied (block not authenticated)
	SWNotAllowed           = 0x6986 // Command not allowed (key slot / access bits)
	SWFunctionNotSupported = 0x6A81 // Function not supported by the reader
	SWNotFound             = 0x6A82 // Block / key slot not found
	SWWrongP1P2            = 0x6B00 // Wrong parameter P1-P2 (block out of range)
)

// SWError represents a non-normal status word returned for one command.
type SWError struct {
	Cmd byte   // Command INS byte
	SW  uint16 // Status word
}

func (e *SWError) Error() string {
	return fmt.Sprintf("card command 0x%02X failed with SW=0x%04X (%s)", e.Cmd, e.SW, swDescription(e.SW))
}

// swDescription returns a human-readable description of a status word.
func swDescription(sw uint16) string {
	switch sw {
	case SWSuccess:
		return "success"
	case SWOperationFailed:
		return "operation failed"
	case SWWrongLength:
		return "wrong length"
	case SWSecurityNotSatisfied:
		return "security not satisfied"
	case SWNotAllowed:
		return "command not allowed"
	case SWFunctionNotSupported:
		return "function not supported"
	case SWNotFound:
		return "not found"
	case SWWrongP1P2:
		return "wrong P1/P2"
	default:
		return "unknown error"
	}
}

// SwOK reports whether sw is the normal status word. Only 0x9000 counts.
func SwOK(sw uint16) bool {
	return sw == SWSuccess
}

// FailureKind tags an expected, recoverable failure of a card operation.
type FailureKind int

const (
	FailureNoKey     FailureKind = iota // no key registered for the block
	FailureAuth                         // load key or authenticate rejected
	FailureRead                         // read rejected or empty payload
	FailureWrite                        // write rejected
	FailureTransport                    // reader/transport error, no status word
)

func (k FailureKind) String() string {
	switch k {
	case FailureNoKey:
		return "no key"
	case FailureAuth:
		return "auth"
	case FailureRead:
		return "read"
	case FailureWrite:
		return "write"
	case FailureTransport:
		return "transport"
	default:
		return fmt.Sprintf("FailureKind(%d)", int(k))
	}
}

// Failure is returned by block-level operations. Block is -1 for card-level
// commands such as GET DATA.
type Failure struct {
	Kind    FailureKind
	Block   int
	KeyType KeyType // last key type tried; zero when none was
	Cause   error
}

func (f *Failure) Error() string {
	if f == nil {
		return "card failure"
	}
	msg := f.Kind.String() + " failure"
	if f.Block >= 0 {
		msg = fmt.Sprintf("block %d: %s", f.Block, msg)
	}
	if f.KeyType != 0 {
		msg += " (key " + f.KeyType.String() + ")"
	}
	if f.Cause != nil {
		msg += ": " + f.Cause.Error()
	}
	return msg
}

func (f *Failure) Unwrap() error {
	if f == nil {
		return nil
	}
	return f.Cause
}

// KindOf extracts the FailureKind from err. ok is false when err carries no Failure.
func KindOf(err error) (kind FailureKind, ok bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f.Kind, true
	}
	return 0, false
}

// IsNoKey checks if err reports that the key store has no key for the block.
func IsNoKey(err error) bool {
	kind, ok := KindOf(err)
	return ok && kind == FailureNoKey
}

// IsAuthFailure checks if err reports a rejected load key or authenticate step.
func IsAuthFailure(err error) bool {
	kind, ok := KindOf(err)
	return ok && kind == FailureAuth
}

// ParseError reports malformed hex, dump or key log input.
type ParseError struct {
	Source string // "hex", "dump" or "keylog"
	Offset int    // byte offset for hex/dump input, -1 when not applicable
	Line   int    // 1-based line for keylog input, 0 when not applicable
	Msg    string
	Cause  error
}

func (e *ParseError) Error() string {
	var where string
	switch {
	case e.Line > 0:
		where = fmt.Sprintf(" line %d", e.Line)
	case e.Offset >= 0:
		where = fmt.Sprintf(" offset %d", e.Offset)
	}
	if e.Cause != nil {
		return fmt.Sprintf("parse %s%s: %s: %v", e.Source, where, e.Msg, e.Cause)
	}
	return fmt.Sprintf("parse %s%s: %s", e.Source, where, e.Msg)
}

func (e *ParseError) Unwrap() error {
	return e.Cause
}

// IsParseError checks if err is (or wraps) a ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}
