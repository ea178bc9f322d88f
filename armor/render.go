package armor

import (
	"encoding/base64"
	"sort"
	"strings"

	"xledger.io/charter/cidutil"
	"xledger.io/charter/fault"
)

// Seal builds a canonical unsigned armor around an artifact's canonical
// bytes. The META CID line is derived from the payload here; callers
// supply only descriptive metadata. Attach a developer signature with
// WithCrypto afterwards.
func Seal(typ string, meta map[string]string, payload []byte) (*Envelope, error) {
	if !knownType(typ) {
		return nil, fault.New(fault.KindRender, "CHARTER-ARM-040", "unknown envelope type")
	}
	if len(payload) == 0 {
		return nil, fault.New(fault.KindRender, "CHARTER-ARM-041", "empty payload")
	}
	if _, ok := meta["CID"]; ok {
		return nil, fault.New(fault.KindRender, "CHARTER-ARM-042", "META CID is derived, not supplied")
	}

	m := make(map[string]string, len(meta)+1)
	for k, v := range meta {
		m[k] = v
	}
	m["CID"] = cidutil.CIDv1RawSHA256(payload)

	e := &Envelope{
		Type:    typ,
		Meta:    m,
		Payload: append([]byte(nil), payload...),
	}
	raw, err := render(e)
	if err != nil {
		return nil, err
	}
	e.raw = raw
	if err := checkMeta(e); err != nil {
		return nil, err
	}
	return e, nil
}

// WithCrypto returns a new envelope carrying the given CRYPTO pairs.
// The receiver is unchanged; META and payload carry over byte for byte.
func (e *Envelope) WithCrypto(crypto map[string]string) (*Envelope, error) {
	if len(crypto) == 0 {
		return nil, fault.New(fault.KindRender, "CHARTER-ARM-043", "empty CRYPTO section")
	}
	c := make(map[string]string, len(crypto))
	for k, v := range crypto {
		c[k] = v
	}
	signed := &Envelope{
		Type:    e.Type,
		Meta:    e.Meta,
		Payload: e.Payload,
		Crypto:  c,
	}
	raw, err := render(signed)
	if err != nil {
		return nil, err
	}
	signed.raw = raw
	return signed, nil
}

// render produces canonical armor bytes: preamble, META, PAYLOAD,
// optional CRYPTO, postamble. One blank line between sections, sorted
// keys, base64 wrapped at 64 columns, no trailing newline.
func render(e *Envelope) ([]byte, error) {
	var sb strings.Builder
	sb.WriteString(Preamble(e.Type))
	sb.WriteString("\n")

	sb.WriteString("META\n")
	if err := renderPairs(&sb, e.Meta); err != nil {
		return nil, err
	}
	sb.WriteString("\n")

	sb.WriteString("PAYLOAD\n")
	enc := base64.StdEncoding.EncodeToString(e.Payload)
	for len(enc) > payloadWrap {
		sb.WriteString(enc[:payloadWrap])
		sb.WriteString("\n")
		enc = enc[payloadWrap:]
	}
	sb.WriteString(enc)
	sb.WriteString("\n")

	if e.Crypto != nil {
		sb.WriteString("\n")
		sb.WriteString("CRYPTO\n")
		if err := renderPairs(&sb, e.Crypto); err != nil {
			return nil, err
		}
	}

	sb.WriteString(Postamble(e.Type))
	return []byte(sb.String()), nil
}

func renderPairs(sb *strings.Builder, pairs map[string]string) error {
	keys := make([]string, 0, len(pairs))
	for k := range pairs {
		if k == "" {
			return fault.New(fault.KindRender, "CHARTER-ARM-044", "empty key")
		}
		if !isASCII(k) || strings.ContainsAny(k, " \t\n") {
			return fault.New(fault.KindRender, "CHARTER-ARM-045", "invalid key")
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		v := pairs[k]
		if v == "" || strings.HasPrefix(v, " ") {
			return fault.New(fault.KindRender, "CHARTER-ARM-046", "invalid value")
		}
		if strings.ContainsAny(v, "\n\r") {
			return fault.New(fault.KindRender, "CHARTER-ARM-046", "invalid value")
		}
		if strings.HasSuffix(v, " ") || strings.HasSuffix(v, "\t") {
			return fault.New(fault.KindRender, "CHARTER-ARM-046", "invalid value")
		}
		sb.WriteString(k)
		sb.WriteString(": ")
		sb.WriteString(v)
		sb.WriteString("\n")
	}
	return nil
}
