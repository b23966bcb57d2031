package telemetry

import (
	"fmt"
	"strconv"
	"strings"
)

// DataPrefix is the sentinel the sensor firmwares put in front of every
// sample line. Anything else on the wire is boot chatter or a command ack.
const DataPrefix = "DATA:"

// ParseErrorKind classifies what went wrong with a data line.
type ParseErrorKind int

const (
	// MalformedFraming: the sentinel is present but the payload is empty.
	MalformedFraming ParseErrorKind = iota
	// FieldCountMismatch: the payload splits into the wrong number of fields
	// for the schema.
	FieldCountMismatch
	// FieldTypeMismatch: a field failed numeric conversion for its channel.
	FieldTypeMismatch
	// UnrecognizedPrefix: strict parsing saw a line without the sentinel.
	UnrecognizedPrefix
)

func (k ParseErrorKind) String() string {
	switch k {
	case MalformedFraming:
		return "malformed framing"
	case FieldCountMismatch:
		return "field count mismatch"
	case FieldTypeMismatch:
		return "field type mismatch"
	case UnrecognizedPrefix:
		return "unrecognized prefix"
	default:
		return "unknown"
	}
}

// ParseError reports a line that could not be turned into a Record. Raw
// retains the offending input for diagnostics; Err holds the underlying
// conversion error for FieldTypeMismatch.
type ParseError struct {
	Kind ParseErrorKind
	Raw  string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse %s: %q: %v", e.Kind, e.Raw, e.Err)
	}
	return fmt.Sprintf("parse %s: %q", e.Kind, e.Raw)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ParseLine parses one serial line against the schema. Lines without the
// DATA: sentinel are out-of-band device output: the bool result is false and
// there is no error. Exactly one of record, skip, or error holds per input.
// The returned Record has zero Seq and Time for the caller to stamp.
func (s Schema) ParseLine(line string) (Record, bool, error) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, DataPrefix) {
		return Record{}, false, nil
	}
	rec, err := s.parsePayload(trimmed)
	if err != nil {
		return Record{}, false, err
	}
	return rec, true, nil
}

// ParseDataLine is the strict variant used where the caller asserts the line
// must be a sample (fixture ingest, tests): a missing sentinel is an
// UnrecognizedPrefix ParseError rather than a skip.
func (s Schema) ParseDataLine(line string) (Record, error) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, DataPrefix) {
		return Record{}, &ParseError{Kind: UnrecognizedPrefix, Raw: line}
	}
	return s.parsePayload(trimmed)
}

func (s Schema) parsePayload(trimmed string) (Record, error) {
	payload := strings.TrimPrefix(trimmed, DataPrefix)
	if strings.TrimSpace(payload) == "" {
		return Record{}, &ParseError{Kind: MalformedFraming, Raw: trimmed}
	}
	parts := strings.Split(payload, ",")
	if len(parts) != len(s.Channels) {
		return Record{}, &ParseError{Kind: FieldCountMismatch, Raw: trimmed}
	}
	values := make([]float64, len(parts))
	for i, part := range parts {
		field := strings.TrimSpace(part)
		switch s.Channels[i].Kind {
		case KindInt64:
			n, err := strconv.ParseInt(field, 10, 64)
			if err != nil {
				return Record{}, &ParseError{Kind: FieldTypeMismatch, Raw: trimmed, Err: err}
			}
			values[i] = float64(n)
		default:
			f, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return Record{}, &ParseError{Kind: FieldTypeMismatch, Raw: trimmed, Err: err}
			}
			values[i] = f
		}
	}
	return Record{Values: values}, nil
}
