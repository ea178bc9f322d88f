// Package armor implements the canonical armored text envelope charter
// artifacts are published in. An armor wraps one artifact's canonical
// binary bytes as a base64 payload, carries the artifact's content id in
// a strict META section, and optionally a developer signature in a
// CRYPTO section. Parse rejects every non-canonical byte, so the armor
// text itself is content-addressable: the same artifact armored with the
// same metadata always produces identical bytes.
package armor

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"strings"
	"unicode/utf8"

	"xledger.io/charter/cidutil"
	"xledger.io/charter/fault"
)

// Envelope types. The type names appear verbatim in the BEGIN/END lines.
const (
	TypeKit     = "KIT"
	TypeSchema  = "SCHEMA"
	TypeLibrary = "LIBRARY"
	TypeIface   = "IFACE"
	TypeImpl    = "IMPL"
	TypeTypes   = "TYPES"
)

// SectionOrder defines the canonical order of armor sections. CRYPTO is
// the only optional section.
var SectionOrder = []string{"META", "PAYLOAD", "CRYPTO"}

// payloadWrap is the fixed base64 line width.
const payloadWrap = 64

func knownType(typ string) bool {
	switch typ {
	case TypeKit, TypeSchema, TypeLibrary, TypeIface, TypeImpl, TypeTypes:
		return true
	}
	return false
}

// Preamble returns the BEGIN line for an envelope type.
func Preamble(typ string) string { return "-----BEGIN CHARTER " + typ + "-----" }

// Postamble returns the END line for an envelope type.
func Postamble(typ string) string { return "-----END CHARTER " + typ + "-----" }

// Envelope is a parsed armor. Construct with Seal or Parse; both leave
// Raw holding the canonical bytes.
type Envelope struct {
	Type    string
	Meta    map[string]string
	Payload []byte
	Crypto  map[string]string // nil when the CRYPTO section is absent

	raw []byte
}

// Raw returns a copy of the canonical armor bytes.
func (e *Envelope) Raw() []byte {
	return append([]byte(nil), e.raw...)
}

// ArtifactCID returns the content id of the armored payload. It equals
// the META CID line; Parse and Seal both enforce that.
func (e *Envelope) ArtifactCID() string {
	return e.Meta["CID"]
}

// ID returns the content id of the armor text itself. Supersession
// chains reference this id, not the payload's.
func (e *Envelope) ID() string {
	return cidutil.CIDv1RawSHA256(e.raw)
}

// Parse parses an armor and enforces the canonical serialization rules.
// Non-canonical inputs are rejected, including any that would re-render
// to different bytes.
func Parse(data []byte) (*Envelope, error) {
	if !utf8.Valid(data) {
		return nil, fault.New(fault.KindParse, "CHARTER-ARM-001", "armor must be valid UTF-8")
	}
	if bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}) {
		return nil, fault.New(fault.KindParse, "CHARTER-ARM-002", "BOM not allowed")
	}
	if bytes.Contains(data, []byte("\r")) {
		return nil, fault.New(fault.KindParse, "CHARTER-ARM-003", "CR line endings not allowed")
	}
	if len(data) > 0 && data[len(data)-1] == '\n' {
		return nil, fault.New(fault.KindParse, "CHARTER-ARM-004", "trailing newline not allowed")
	}
	lines := strings.Split(string(data), "\n")
	for _, l := range lines {
		if len(l) > 0 && (l[len(l)-1] == ' ' || l[len(l)-1] == '\t') {
			return nil, fault.New(fault.KindParse, "CHARTER-ARM-005", "trailing whitespace forbidden")
		}
	}
	if len(lines) < 2 {
		return nil, fault.New(fault.KindParse, "CHARTER-ARM-006", "armor too short")
	}

	typ, ok := strings.CutPrefix(lines[0], "-----BEGIN CHARTER ")
	if !ok {
		return nil, fault.New(fault.KindParse, "CHARTER-ARM-007", "missing armor preamble")
	}
	typ, ok = strings.CutSuffix(typ, "-----")
	if !ok {
		return nil, fault.New(fault.KindParse, "CHARTER-ARM-007", "missing armor preamble")
	}
	if !knownType(typ) {
		return nil, fault.New(fault.KindParse, "CHARTER-ARM-008", fmt.Sprintf("unknown envelope type %q", typ))
	}
	if lines[len(lines)-1] != Postamble(typ) {
		return nil, fault.New(fault.KindParse, "CHARTER-ARM-009", "missing armor postamble")
	}

	body := lines[1 : len(lines)-1]
	meta, payloadLines, crypto, err := splitSections(body)
	if err != nil {
		return nil, err
	}

	payload, err := decodePayload(payloadLines)
	if err != nil {
		return nil, err
	}

	e := &Envelope{Type: typ, Meta: meta, Payload: payload, Crypto: crypto}
	canonical, err := render(e)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(data, canonical) {
		return nil, fault.New(fault.KindCanonical, "CHARTER-ARM-010", "non-canonical armor")
	}
	e.raw = canonical

	if err := checkMeta(e); err != nil {
		return nil, err
	}
	return e, nil
}

// splitSections walks the body lines between preamble and postamble and
// returns the META pairs, the raw PAYLOAD lines, and the CRYPTO pairs
// (nil when absent). Ordering and blank-line discipline are enforced
// here; byte identity is enforced by the re-render in Parse.
func splitSections(body []string) (meta map[string]string, payload []string, crypto map[string]string, err error) {
	i := 0
	next := func(name string) ([]string, bool, error) {
		if i >= len(body) {
			return nil, false, nil
		}
		if body[i] != name {
			return nil, false, fault.New(fault.KindParse, "CHARTER-ARM-011", "sections missing or out of order")
		}
		i++
		start := i
		for i < len(body) && body[i] != "" {
			i++
		}
		sec := body[start:i]
		if i < len(body) {
			i++ // consume the separator blank line
		}
		return sec, true, nil
	}

	metaLines, ok, err := next("META")
	if err != nil {
		return nil, nil, nil, err
	}
	if !ok {
		return nil, nil, nil, fault.New(fault.KindParse, "CHARTER-ARM-011", "sections missing or out of order")
	}
	meta, err = parsePairs(metaLines)
	if err != nil {
		return nil, nil, nil, err
	}

	payload, ok, err = next("PAYLOAD")
	if err != nil {
		return nil, nil, nil, err
	}
	if !ok {
		return nil, nil, nil, fault.New(fault.KindParse, "CHARTER-ARM-012", "missing PAYLOAD section")
	}

	cryptoLines, ok, err := next("CRYPTO")
	if err != nil {
		return nil, nil, nil, err
	}
	if ok {
		if len(cryptoLines) == 0 {
			return nil, nil, nil, fault.New(fault.KindParse, "CHARTER-ARM-023", "empty CRYPTO section")
		}
		crypto, err = parsePairs(cryptoLines)
		if err != nil {
			return nil, nil, nil, err
		}
	}
	if i != len(body) {
		return nil, nil, nil, fault.New(fault.KindParse, "CHARTER-ARM-013", "unexpected content before postamble")
	}
	return meta, payload, crypto, nil
}

func parsePairs(lines []string) (map[string]string, error) {
	pairs := make(map[string]string, len(lines))
	prev := ""
	for _, l := range lines {
		key, val, ok := strings.Cut(l, ": ")
		if !ok {
			return nil, fault.New(fault.KindParse, "CHARTER-ARM-014", "invalid key-value formatting")
		}
		if key == "" {
			return nil, fault.New(fault.KindParse, "CHARTER-ARM-015", "empty key")
		}
		if !isASCII(key) {
			return nil, fault.New(fault.KindParse, "CHARTER-ARM-016", "non-ASCII key")
		}
		if val == "" || strings.HasPrefix(val, " ") {
			return nil, fault.New(fault.KindParse, "CHARTER-ARM-017", "invalid value")
		}
		if _, dup := pairs[key]; dup {
			return nil, fault.New(fault.KindParse, "CHARTER-ARM-018", fmt.Sprintf("duplicate key %q", key))
		}
		if prev != "" && !(prev < key) {
			return nil, fault.New(fault.KindCanonical, "CHARTER-ARM-019", "keys not sorted lexicographically")
		}
		prev = key
		pairs[key] = val
	}
	return pairs, nil
}

func decodePayload(lines []string) ([]byte, error) {
	if len(lines) == 0 {
		return nil, fault.New(fault.KindParse, "CHARTER-ARM-020", "empty payload")
	}
	for n, l := range lines {
		if l == "" || len(l) > payloadWrap {
			return nil, fault.New(fault.KindCanonical, "CHARTER-ARM-021", "payload lines must wrap at 64 columns")
		}
		if n < len(lines)-1 && len(l) != payloadWrap {
			return nil, fault.New(fault.KindCanonical, "CHARTER-ARM-021", "payload lines must wrap at 64 columns")
		}
	}
	raw, err := base64.StdEncoding.Strict().DecodeString(strings.Join(lines, ""))
	if err != nil {
		return nil, fault.Wrap(fault.KindParse, "CHARTER-ARM-022", "invalid payload base64", err)
	}
	if len(raw) == 0 {
		return nil, fault.New(fault.KindParse, "CHARTER-ARM-020", "empty payload")
	}
	return raw, nil
}

// checkMeta enforces the META contract: a CID line that matches the
// payload bytes, and a well-formed Supersedes-CID when present.
func checkMeta(e *Envelope) error {
	declared, ok := e.Meta["CID"]
	if !ok {
		return fault.New(fault.KindValidation, "CHARTER-ARM-030", "missing META CID")
	}
	id, err := cidutil.Parse(declared)
	if err != nil {
		return fault.Wrap(fault.KindCID, "CHARTER-ARM-031", "invalid META CID", err)
	}
	if !cidutil.Matches(id, e.Payload) {
		return fault.New(fault.KindValidation, "CHARTER-ARM-032", "META CID does not match payload")
	}
	if sup, ok := e.Meta["Supersedes-CID"]; ok {
		if _, err := cidutil.Parse(sup); err != nil {
			return fault.Wrap(fault.KindCID, "CHARTER-ARM-033", "invalid Supersedes-CID", err)
		}
	}
	return nil
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] > 127 {
			return false
		}
	}
	return true
}
