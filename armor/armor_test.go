package armor

import (
	"bytes"
	"strings"
	"testing"

	"xledger.io/charter/cidutil"
	"xledger.io/charter/fault"
)

// testPayload is long enough to force the base64 block across multiple
// 64-column lines.
func testPayload() []byte {
	p := make([]byte, 100)
	for i := range p {
		p[i] = byte(i * 7)
	}
	return p
}

func sealKit(t *testing.T) *Envelope {
	t.Helper()
	env, err := Seal(TypeKit, map[string]string{
		"Developer":   "dns:issuer.example.com",
		"Schema-Name": "NonInflatableAsset",
	}, testPayload())
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	return env
}

func TestSealParseRoundTrip(t *testing.T) {
	env := sealKit(t)
	raw := env.Raw()

	parsed, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if parsed.Type != TypeKit {
		t.Errorf("Type = %q, want %q", parsed.Type, TypeKit)
	}
	if !bytes.Equal(parsed.Payload, testPayload()) {
		t.Error("payload changed across a seal/parse cycle")
	}
	if got, want := parsed.ArtifactCID(), cidutil.CIDv1RawSHA256(testPayload()); got != want {
		t.Errorf("ArtifactCID = %q, want %q", got, want)
	}
	if parsed.Meta["Developer"] != "dns:issuer.example.com" {
		t.Errorf("Developer = %q", parsed.Meta["Developer"])
	}
	if !bytes.Equal(parsed.Raw(), raw) {
		t.Error("canonical bytes changed across a parse cycle")
	}
}

func TestSealDeterminism(t *testing.T) {
	a := sealKit(t)
	b := sealKit(t)
	if !bytes.Equal(a.Raw(), b.Raw()) {
		t.Fatal("two identical seals produced different bytes")
	}
	if a.ID() != b.ID() {
		t.Fatalf("armor ids differ: %s vs %s", a.ID(), b.ID())
	}
}

func TestSealRejectsCallerCID(t *testing.T) {
	_, err := Seal(TypeKit, map[string]string{"CID": "bafkreia"}, testPayload())
	if err == nil {
		t.Fatal("expected error for caller-supplied CID")
	}
	if got, want := fault.RuleID(err), "CHARTER-ARM-042"; got != want {
		t.Fatalf("rule id = %q, want %q", got, want)
	}
}

func TestSealRejectsUnknownType(t *testing.T) {
	if _, err := Seal("WIDGET", nil, testPayload()); err == nil {
		t.Fatal("expected error for unknown envelope type")
	}
}

func TestParseInvalidArmor(t *testing.T) {
	good := string(sealKit(t).Raw())

	cases := []struct {
		name   string
		mutate func(string) string
	}{
		{"trailing newline", func(s string) string { return s + "\n" }},
		{"trailing whitespace", func(s string) string { return s + " " }},
		{"cr line ending", func(s string) string { return strings.Replace(s, "META\n", "META\r\n", 1) }},
		{"bom", func(s string) string { return "\xEF\xBB\xBF" + s }},
		{"missing preamble", func(s string) string { return strings.TrimPrefix(s, "-----BEGIN CHARTER KIT-----\n") }},
		{"missing postamble", func(s string) string { return strings.TrimSuffix(s, "\n-----END CHARTER KIT-----") }},
		{"type mismatch", func(s string) string {
			return strings.Replace(s, "-----END CHARTER KIT-----", "-----END CHARTER SCHEMA-----", 1)
		}},
		{"unknown type", func(s string) string { return strings.ReplaceAll(s, "CHARTER KIT", "CHARTER WIDGET") }},
		{"double space after colon", func(s string) string {
			return strings.Replace(s, "Developer: ", "Developer:  ", 1)
		}},
		{"unsorted meta keys", func(s string) string {
			return strings.Replace(s, "Developer: dns:issuer.example.com\nSchema-Name: NonInflatableAsset",
				"Schema-Name: NonInflatableAsset\nDeveloper: dns:issuer.example.com", 1)
		}},
		{"duplicate key", func(s string) string {
			return strings.Replace(s, "META\n", "META\nCID: x\n", 1)
		}},
		{"blank line after meta header", func(s string) string {
			return strings.Replace(s, "META\n", "META\n\n", 1)
		}},
		{"extra blank line before payload", func(s string) string {
			return strings.Replace(s, "\nPAYLOAD\n", "\n\nPAYLOAD\n", 1)
		}},
		{"missing payload section", func(s string) string {
			return strings.Replace(s, "PAYLOAD\n", "", 1)
		}},
		{"empty input", func(string) string { return "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Parse([]byte(tc.mutate(good))); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}

func TestParseRejectsNonUTF8(t *testing.T) {
	raw := sealKit(t).Raw()
	raw[10] = 0xFF
	if _, err := Parse(raw); err == nil {
		t.Fatal("expected error for non-UTF8 input")
	}
}

func TestParseRejectsUnwrappedPayload(t *testing.T) {
	env := sealKit(t)
	text := string(env.Raw())
	// Rejoin the base64 block onto one long line.
	start := strings.Index(text, "PAYLOAD\n") + len("PAYLOAD\n")
	end := strings.Index(text, "\n-----END")
	block := strings.ReplaceAll(text[start:end], "\n", "")
	bad := text[:start] + block + text[end:]
	if bad == text {
		t.Fatal("fixture payload did not span multiple lines")
	}
	if _, err := Parse([]byte(bad)); err == nil {
		t.Fatal("expected error for unwrapped payload")
	}
}

func TestParseRejectsCIDMismatch(t *testing.T) {
	env := sealKit(t)
	other := cidutil.CIDv1RawSHA256([]byte("other payload"))
	bad := strings.Replace(string(env.Raw()), env.ArtifactCID(), other, 1)
	_, err := Parse([]byte(bad))
	if err == nil {
		t.Fatal("expected error for CID mismatch")
	}
	if got, want := fault.RuleID(err), "CHARTER-ARM-032"; got != want {
		t.Fatalf("rule id = %q, want %q", got, want)
	}
}

func TestParseRejectsMissingCID(t *testing.T) {
	env, err := Seal(TypeLibrary, nil, testPayload())
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	bad := strings.Replace(string(env.Raw()), "CID: "+env.ArtifactCID()+"\n", "", 1)
	_, err = Parse([]byte(bad))
	if err == nil {
		t.Fatal("expected error for missing CID")
	}
	if got, want := fault.RuleID(err), "CHARTER-ARM-030"; got != want {
		t.Fatalf("rule id = %q, want %q", got, want)
	}
}

func TestParseRejectsTamperedPayload(t *testing.T) {
	env := sealKit(t)
	text := string(env.Raw())
	i := strings.Index(text, "PAYLOAD\n") + len("PAYLOAD\n")
	var bad string
	if text[i] != 'A' {
		bad = text[:i] + "A" + text[i+1:]
	} else {
		bad = text[:i] + "B" + text[i+1:]
	}
	if _, err := Parse([]byte(bad)); err == nil {
		t.Fatal("expected error for tampered payload")
	}
}

func TestEnvelopeID(t *testing.T) {
	env := sealKit(t)
	if env.ID() != cidutil.CIDv1RawSHA256(env.Raw()) {
		t.Fatal("armor id must be derived from canonical armor bytes")
	}
	if env.ID() == env.ArtifactCID() {
		t.Fatal("armor id must differ from the payload id")
	}
}
