package main

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ipfs/go-cid"

	"xledger.io/charter/armor"
	"xledger.io/charter/cidutil"
	"xledger.io/charter/fungible"
	"xledger.io/charter/identity"
	"xledger.io/charter/kit"
	"xledger.io/charter/model"
	"xledger.io/charter/script"
	"xledger.io/charter/storage"
	"xledger.io/charter/storage/casconfig"
	"xledger.io/charter/storage/casregistry"

	_ "xledger.io/charter/storage/grpccas"
	_ "xledger.io/charter/storage/localfs"
	_ "xledger.io/charter/storage/sqlitecas"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printUsage(errOut)
		return 2
	}

	switch args[0] {
	case "issue":
		return cmdIssue(args[1:], out, errOut)
	case "inspect":
		return cmdInspect(args[1:], out, errOut)
	case "audit":
		return cmdAudit(args[1:], out, errOut)
	case "publish":
		return cmdPublish(args[1:], out, errOut)
	case "fetch":
		return cmdFetch(args[1:], out, errOut)
	case "disasm":
		return cmdDisasm(args[1:], out, errOut)
	case "artifact-cid":
		return cmdArtifactCID(args[1:], out, errOut)
	case "armor":
		return cmdArmor(args[1:], out, errOut)
	case "key":
		return cmdKey(args[1:], out, errOut)
	case "help", "-h", "--help":
		printUsage(out)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown command: %s\n\n", args[0])
		printUsage(errOut)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "charter: contract kit compiler, auditor, and CAS publisher")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  charter issue --developer <id> [--params <file.toml>] [--timestamp <unix>] [--supersedes <armor-cid>] [signer flags]")
	fmt.Fprintln(w, "  charter inspect [--json] <kit-file>")
	fmt.Fprintln(w, "  charter audit [--mode permissive|strict] [--expect fungible] [--json] (<kit-file> | --cid <CID> [CAS flags])")
	fmt.Fprintln(w, "  charter publish [CAS flags] <kit-file>")
	fmt.Fprintln(w, "  charter fetch --cid <CID> [CAS flags] [--armor]")
	fmt.Fprintln(w, "  charter disasm <library-file>")
	fmt.Fprintln(w, "  charter artifact-cid <file>")
	fmt.Fprintln(w, "  charter armor cid <file>")
	fmt.Fprintln(w, "  charter armor verify <file>")
	fmt.Fprintln(w, "  charter armor validate-supersession --new <file> --old <file>")
	fmt.Fprintln(w, "  charter key init --name <name> [--seed-hex <64hex>] [--force]")
	fmt.Fprintln(w, "  charter key derive --from <name> --role <role> [--force]")
	fmt.Fprintln(w, "  charter key list")
	fmt.Fprintln(w, "  charter key export --name <name> [--role <role>]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Signer flags (issue): --seed-hex <64hex> | --signer <name> [--signer-role <role>] | --key-file <path>")
	fmt.Fprintln(w, "CAS flags: --backend <name> plus its backend flags, or --cas-config <file> [--cas-prefer <name>]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Notes:")
	fmt.Fprintln(w, "  - issue writes canonical KIT armor to stdout (no trailing newline); the Kit-CID goes to stderr")
	fmt.Fprintln(w, "  - inspect/audit/publish accept KIT armor or raw canonical kit bytes")
	fmt.Fprintln(w, "  - --seed-hex must be 32 bytes (64 hex chars) ed25519 seed")
	fmt.Fprintln(w, "  - keys are stored under ~/.charter/keys/<name> (0600 seed files)")
	fmt.Fprintln(w, "  - audit --cid and fetch hydrate the kit from the configured CAS backend")
	fmt.Fprintln(w, "  - Walkthrough:")
	fmt.Fprintln(w, "      charter issue --developer dns:issuer.example.com > asset.kit")
	fmt.Fprintln(w, "      charter audit --mode strict --expect fungible asset.kit")
	fmt.Fprintln(w, "      charter publish --backend localfs --localfs-dir /tmp/cas asset.kit")
}

// payloadBytes accepts either an armored envelope of the given type or a
// raw artifact file, and returns the canonical payload bytes.
func payloadBytes(data []byte, typ string) ([]byte, error) {
	if !bytes.HasPrefix(data, []byte("-----BEGIN ")) {
		return data, nil
	}
	env, err := armor.Parse(data)
	if err != nil {
		return nil, err
	}
	if env.Type != typ {
		return nil, fmt.Errorf("expected %s armor, got %s", typ, env.Type)
	}
	return env.Payload, nil
}

func readKitFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return payloadBytes(data, armor.TypeKit)
}

// casFlags is the shared CAS selection surface: either a single registered
// backend driven by its own flags, or a casconfig composition file.
type casFlags struct {
	backend      string
	configPath   string
	prefer       string
	listBackends bool
}

func (c *casFlags) add(fs *flag.FlagSet) {
	fs.StringVar(&c.backend, "backend", "localfs", "CAS backend name")
	fs.StringVar(&c.configPath, "cas-config", "", "CAS composition config file (overrides --backend)")
	fs.StringVar(&c.prefer, "cas-prefer", "", "With --cas-config: backend name/id to try first")
	fs.BoolVar(&c.listBackends, "list-backends", false, "List supported backends and exit")
	casregistry.RegisterFlags(fs, casregistry.UsageCLI)
}

func (c *casFlags) open() (storage.CAS, func() error, error) {
	if c.configPath != "" {
		cfg, err := casconfig.LoadFile(c.configPath)
		if err != nil {
			return nil, nil, err
		}
		return cfg.Open(casregistry.UsageCLI, c.prefer)
	}
	return casregistry.Open(c.backend, casregistry.UsageCLI)
}

func printBackends(w io.Writer) {
	for _, b := range casregistry.List(casregistry.UsageCLI) {
		if b.Description == "" {
			_, _ = fmt.Fprintf(w, "%s\n", b.Name)
			continue
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\n", b.Name, b.Description)
	}
}

func cmdIssue(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("issue", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var developer string
	var paramsPath string
	var timestamp int64
	var supersedes string
	var seedHex string
	var signerName string
	var signerRole string
	var keyFile string
	var printSignerKey bool

	fs.StringVar(&developer, "developer", "", "Developer identity (dns:... or ssi:...)")
	fs.StringVar(&paramsPath, "params", "", "TOML file with commitment-check parameters (defaults baked in)")
	fs.Int64Var(&timestamp, "timestamp", 0, "Unix timestamp recorded in the impl (defaults to now UTC)")
	fs.StringVar(&supersedes, "supersedes", "", "Armor CID of a prior kit this issuance replaces")
	fs.StringVar(&seedHex, "seed-hex", "", "ed25519 seed as 64 hex chars")
	fs.StringVar(&signerName, "signer", "", "Use a stored key by name (from 'charter key init')")
	fs.StringVar(&signerRole, "signer-role", "", "When using --signer, optionally use a derived role key")
	fs.StringVar(&keyFile, "key-file", "", "Path to a seed file (hex) created by 'charter key init/derive'")
	fs.BoolVar(&printSignerKey, "print-signer-key", true, "Print Signer-Key to stderr when signing")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if developer == "" {
		fmt.Fprintln(errOut, "missing --developer")
		return 2
	}
	if err := identity.CheckDeveloper(developer); err != nil {
		fmt.Fprintf(errOut, "invalid --developer: %v\n", err)
		return 2
	}
	if seedHex != "" && (signerName != "" || keyFile != "") {
		fmt.Fprintln(errOut, "conflicting signer flags: --seed-hex cannot be combined with --signer or --key-file")
		return 2
	}
	if signerName != "" && keyFile != "" {
		fmt.Fprintln(errOut, "conflicting signer flags: --signer cannot be combined with --key-file")
		return 2
	}

	params := fungible.DefaultParams()
	if paramsPath != "" {
		var perr error
		params, perr = fungible.LoadParams(paramsPath)
		if perr != nil {
			fmt.Fprintf(errOut, "invalid --params: %v\n", perr)
			return 2
		}
	}
	if timestamp == 0 {
		timestamp = time.Now().UTC().Unix()
	}

	k, err := fungible.Issuer(developer, timestamp, params)
	if err != nil {
		fmt.Fprintf(errOut, "issue: %v\n", err)
		return 1
	}
	kitID, err := k.ID()
	if err != nil {
		fmt.Fprintf(errOut, "kit cid: %v\n", err)
		return 1
	}
	payload, err := k.MarshalCanonical()
	if err != nil {
		fmt.Fprintf(errOut, "encode kit: %v\n", err)
		return 1
	}

	meta := map[string]string{
		"Developer":   developer,
		"Schema-Name": k.Schema.Name,
	}
	if supersedes != "" {
		meta["Supersedes-CID"] = supersedes
	}
	env, err := armor.Seal(armor.TypeKit, meta, payload)
	if err != nil {
		fmt.Fprintf(errOut, "seal: %v\n", err)
		return 1
	}

	if seedHex != "" || signerName != "" || keyFile != "" {
		ks, kerr := identity.OpenKeyStore("")
		if kerr != nil {
			fmt.Fprintf(errOut, "keys: %v\n", kerr)
			return 1
		}
		seed, serr := ks.LoadSeed(seedHex, signerName, signerRole, keyFile)
		if serr != nil {
			fmt.Fprintf(errOut, "invalid signer: %v\n", serr)
			return 2
		}
		priv := ed25519.NewKeyFromSeed(seed)
		signerKey := identity.SignerKeyFromSeed(seed)
		if printSignerKey {
			fmt.Fprintf(errOut, "Signer-Key: %s\n", signerKey)
		}

		crypto := map[string]string{
			"Hash-Alg":      "sha256",
			"Signature-Alg": "ed25519",
			"Signer-Key":    signerKey,
		}
		scopeEnv, werr := env.WithCrypto(crypto)
		if werr != nil {
			fmt.Fprintf(errOut, "render pre: %v\n", werr)
			return 1
		}
		scope, werr := scopeEnv.SignatureScope()
		if werr != nil {
			fmt.Fprintf(errOut, "signature scope: %v\n", werr)
			return 1
		}
		crypto["Signature"] = identity.SignEd25519SHA256(scope, priv)
		signed, werr := env.WithCrypto(crypto)
		if werr != nil {
			fmt.Fprintf(errOut, "render final: %v\n", werr)
			return 1
		}
		if verr := signed.Verify(); verr != nil {
			fmt.Fprintf(errOut, "verify final: %v\n", verr)
			return 1
		}
		env = signed
	}

	fmt.Fprintf(errOut, "Kit-CID: %s\n", kitID)
	fmt.Fprintf(errOut, "Armor-CID: %s\n", env.ID())
	_, _ = out.Write(env.Raw())
	return 0
}

func cmdInspect(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("inspect", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var jsonOut bool
	fs.BoolVar(&jsonOut, "json", false, "Print the summary as JSON")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: charter inspect [--json] <kit-file>")
		return 2
	}
	payload, err := readKitFile(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(errOut, "read kit: %v\n", err)
		return 1
	}
	k, err := kit.ParseKit(payload)
	if err != nil {
		fmt.Fprintf(errOut, "parse kit: %v\n", err)
		return 1
	}
	sum, err := model.Summarize(k)
	if err != nil {
		fmt.Fprintf(errOut, "summarize: %v\n", err)
		return 1
	}

	if jsonOut {
		b, jerr := json.MarshalIndent(sum, "", "  ")
		if jerr != nil {
			fmt.Fprintf(errOut, "encode json: %v\n", jerr)
			return 1
		}
		_, _ = fmt.Fprintf(out, "%s\n", b)
		return 0
	}

	fmt.Fprintf(out, "Kit:       %s\n", sum.KitCID)
	fmt.Fprintf(out, "Schema:    %s  %s\n", sum.SchemaCID, sum.SchemaName)
	fmt.Fprintf(out, "Developer: %s\n", sum.Developer)
	fmt.Fprintf(out, "Iface:     %s  %s\n", sum.IfaceCID, sum.IfaceName)
	fmt.Fprintf(out, "Impl:      %s\n", sum.ImplCID)
	fmt.Fprintf(out, "Types:     %s  %s\n", sum.TypesCID, sum.TypesName)
	for _, lib := range sum.LibraryCIDs {
		fmt.Fprintf(out, "Library:   %s\n", lib)
	}
	if len(sum.Globals) > 0 {
		fmt.Fprintln(out, "Global state:")
		for _, g := range sum.Globals {
			name := g.Name
			if name == "" {
				name = "-"
			}
			fmt.Fprintf(out, "  slot %-5d %-20s max %-3d sem %s\n", g.Slot, name, g.MaxItems, g.Sem)
		}
	}
	if len(sum.Owned) > 0 {
		fmt.Fprintln(out, "Owned state:")
		for _, o := range sum.Owned {
			name := o.Name
			if name == "" {
				name = "-"
			}
			line := fmt.Sprintf("  slot %-5d %-20s %s", o.Slot, name, o.Kind)
			if o.Format != "" {
				line += " " + o.Format
			}
			if o.Sem != "" {
				line += " sem " + o.Sem
			}
			fmt.Fprintln(out, line)
		}
	}
	if sum.Genesis.Validator != "" {
		fmt.Fprintf(out, "Genesis:   validator %s\n", sum.Genesis.Validator)
	}
	for _, t := range sum.Transitions {
		name := t.Name
		if name == "" {
			name = "-"
		}
		fmt.Fprintf(out, "Transition: type %-5d %-20s validator %s\n", t.Type, name, t.Validator)
	}
	return 0
}

func cmdAudit(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("audit", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var mode string
	var expect string
	var cidStr string
	var jsonOut bool
	var cas casFlags

	fs.StringVar(&mode, "mode", "permissive", "Audit mode: permissive or strict")
	fs.StringVar(&expect, "expect", "", "Pin validator opcodes for a known contract family (fungible)")
	fs.StringVar(&cidStr, "cid", "", "Audit a published kit by CID instead of a file")
	fs.BoolVar(&jsonOut, "json", false, "Print the full audit report as JSON")
	cas.add(fs)

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if cas.listBackends {
		printBackends(out)
		return 0
	}

	req := model.AuditRequest{}
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "", "permissive":
		req.Mode = model.AuditPermissive
	case "strict":
		req.Mode = model.AuditStrict
	default:
		fmt.Fprintln(errOut, "invalid --mode (expected permissive or strict)")
		return 2
	}

	var opts model.AuditOptions
	switch expect {
	case "":
	case "fungible":
		e := fungible.Expectations()
		opts.Expect = &e
	default:
		fmt.Fprintln(errOut, "invalid --expect (expected fungible)")
		return 2
	}

	if cidStr != "" {
		if fs.NArg() != 0 {
			fmt.Fprintln(errOut, "usage: charter audit --cid <CID> [CAS flags] (no file argument)")
			return 2
		}
		store, closeFn, err := cas.open()
		if err != nil {
			fmt.Fprintf(errOut, "cas: %v\n", err)
			return 1
		}
		if closeFn != nil {
			defer func() { _ = closeFn() }()
		}
		opts.CAS = store
		req.Kit = model.BlobRef{CID: cidStr}
	} else {
		if fs.NArg() != 1 {
			fmt.Fprintln(errOut, "usage: charter audit [flags] <kit-file>")
			return 2
		}
		payload, err := readKitFile(fs.Arg(0))
		if err != nil {
			fmt.Fprintf(errOut, "read kit: %v\n", err)
			return 1
		}
		req.Kit = model.BlobRef{Bytes: payload}
	}

	resp, err := model.Audit(req, opts)
	if err != nil {
		fmt.Fprintf(errOut, "audit: %v\n", err)
		return 1
	}

	if jsonOut {
		b, jerr := json.MarshalIndent(resp, "", "  ")
		if jerr != nil {
			fmt.Fprintf(errOut, "encode json: %v\n", jerr)
			return 1
		}
		_, _ = fmt.Fprintf(out, "%s\n", b)
		return 0
	}

	rep := resp.Report
	for _, v := range rep.Verdicts {
		fmt.Fprintf(out, "%-4s %s %s\n", v.Status, v.Check, v.Target)
		for _, r := range v.Reasons {
			fmt.Fprintf(out, "       %s\n", r)
		}
	}
	if !rep.Ok {
		n := 0
		for _, v := range rep.Verdicts {
			if v.Status != "Pass" {
				n++
			}
		}
		fmt.Fprintf(out, "%d violation(s)\n", n)
		return 0
	}
	fmt.Fprintln(out, "OK")
	return 0
}

func cmdPublish(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("publish", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var cas casFlags
	cas.add(fs)

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if cas.listBackends {
		printBackends(out)
		return 0
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: charter publish [CAS flags] <kit-file>")
		return 2
	}
	payload, err := readKitFile(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(errOut, "read kit: %v\n", err)
		return 1
	}
	k, err := kit.ParseKit(payload)
	if err != nil {
		fmt.Fprintf(errOut, "parse kit: %v\n", err)
		return 1
	}

	store, closeFn, err := cas.open()
	if err != nil {
		fmt.Fprintf(errOut, "cas: %v\n", err)
		return 1
	}
	if closeFn != nil {
		defer func() { _ = closeFn() }()
	}

	id, err := kit.Publish(store, k)
	if err != nil {
		fmt.Fprintf(errOut, "publish: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintln(out, id)
	return 0
}

func cmdFetch(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("fetch", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var cidStr string
	var armorOut bool
	var cas casFlags
	fs.StringVar(&cidStr, "cid", "", "Kit CID to fetch")
	fs.BoolVar(&armorOut, "armor", false, "Wrap the fetched kit in an unsigned KIT armor envelope")
	cas.add(fs)

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if cas.listBackends {
		printBackends(out)
		return 0
	}
	if cidStr == "" {
		fmt.Fprintln(errOut, "missing --cid")
		return 2
	}
	id, err := cid.Decode(cidStr)
	if err != nil {
		fmt.Fprintf(errOut, "invalid --cid: %v\n", err)
		return 2
	}

	store, closeFn, err := cas.open()
	if err != nil {
		fmt.Fprintf(errOut, "cas: %v\n", err)
		return 1
	}
	if closeFn != nil {
		defer func() { _ = closeFn() }()
	}

	k, err := kit.Load(store, id)
	if err != nil {
		fmt.Fprintf(errOut, "fetch: %v\n", err)
		return 1
	}
	payload, err := k.MarshalCanonical()
	if err != nil {
		fmt.Fprintf(errOut, "encode kit: %v\n", err)
		return 1
	}

	if !armorOut {
		_, _ = out.Write(payload)
		return 0
	}
	env, err := armor.Seal(armor.TypeKit, map[string]string{
		"Developer":   k.Schema.Developer,
		"Schema-Name": k.Schema.Name,
	}, payload)
	if err != nil {
		fmt.Fprintf(errOut, "seal: %v\n", err)
		return 1
	}
	_, _ = out.Write(env.Raw())
	return 0
}

func cmdDisasm(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("disasm", flag.ContinueOnError)
	fs.SetOutput(errOut)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: charter disasm <library-file>")
		return 2
	}
	data, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(errOut, "read library: %v\n", err)
		return 1
	}
	payload, err := payloadBytes(data, armor.TypeLibrary)
	if err != nil {
		fmt.Fprintf(errOut, "parse armor: %v\n", err)
		return 1
	}
	lib, err := script.ParseLibrary(payload)
	if err != nil {
		fmt.Fprintf(errOut, "parse library: %v\n", err)
		return 1
	}
	text, err := script.Disassemble(lib)
	if err != nil {
		fmt.Fprintf(errOut, "disassemble: %v\n", err)
		return 1
	}
	fmt.Fprintf(errOut, "Library-CID: %s\n", lib.ID())
	_, _ = io.WriteString(out, text)
	return 0
}

func cmdArtifactCID(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("artifact-cid", flag.ContinueOnError)
	fs.SetOutput(errOut)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: charter artifact-cid <file>")
		return 2
	}
	path := fs.Arg(0)
	b, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(errOut, "read %s: %v\n", filepath.Base(path), err)
		return 1
	}
	_, _ = fmt.Fprintln(out, cidutil.CIDv1RawSHA256(b))
	return 0
}

func cmdArmor(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "usage: charter armor <subcommand> ...")
		fmt.Fprintln(errOut, "subcommands: cid, verify, validate-supersession")
		return 2
	}
	switch args[0] {
	case "cid":
		fs := flag.NewFlagSet("armor cid", flag.ContinueOnError)
		fs.SetOutput(errOut)
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		if fs.NArg() != 1 {
			fmt.Fprintln(errOut, "usage: charter armor cid <file>")
			return 2
		}
		b, err := os.ReadFile(fs.Arg(0))
		if err != nil {
			fmt.Fprintf(errOut, "read armor: %v\n", err)
			return 1
		}
		env, err := armor.Parse(b)
		if err != nil {
			fmt.Fprintf(errOut, "invalid armor: %v\n", err)
			return 1
		}
		fmt.Fprintf(errOut, "Artifact-CID: %s\n", env.ArtifactCID())
		_, _ = fmt.Fprintln(out, env.ID())
		return 0
	case "verify":
		fs := flag.NewFlagSet("armor verify", flag.ContinueOnError)
		fs.SetOutput(errOut)
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		if fs.NArg() != 1 {
			fmt.Fprintln(errOut, "usage: charter armor verify <file>")
			return 2
		}
		b, err := os.ReadFile(fs.Arg(0))
		if err != nil {
			fmt.Fprintf(errOut, "read armor: %v\n", err)
			return 1
		}
		env, err := armor.Parse(b)
		if err != nil {
			fmt.Fprintf(errOut, "invalid armor: %v\n", err)
			return 1
		}
		if err := env.Verify(); err != nil {
			fmt.Fprintf(errOut, "invalid: %v\n", err)
			return 1
		}
		fmt.Fprintf(errOut, "Signer-Key: %s\n", env.SignerKey())
		_, _ = fmt.Fprintln(out, "OK")
		return 0
	case "validate-supersession":
		fs := flag.NewFlagSet("armor validate-supersession", flag.ContinueOnError)
		fs.SetOutput(errOut)
		var newPath string
		var oldPath string
		fs.StringVar(&newPath, "new", "", "New armor file")
		fs.StringVar(&oldPath, "old", "", "Old armor file")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		if newPath == "" || oldPath == "" {
			fmt.Fprintln(errOut, "usage: charter armor validate-supersession --new <file> --old <file>")
			return 2
		}
		newBytes, err := os.ReadFile(newPath)
		if err != nil {
			fmt.Fprintf(errOut, "read --new: %v\n", err)
			return 1
		}
		oldBytes, err := os.ReadFile(oldPath)
		if err != nil {
			fmt.Fprintf(errOut, "read --old: %v\n", err)
			return 1
		}
		newEnv, err := armor.Parse(newBytes)
		if err != nil {
			fmt.Fprintf(errOut, "invalid --new: %v\n", err)
			return 1
		}
		oldEnv, err := armor.Parse(oldBytes)
		if err != nil {
			fmt.Fprintf(errOut, "invalid --old: %v\n", err)
			return 1
		}
		if err := armor.ValidateSupersession(newEnv, oldEnv); err != nil {
			fmt.Fprintf(errOut, "invalid: %v\n", err)
			return 1
		}
		_, _ = fmt.Fprintln(out, "OK")
		return 0
	default:
		fmt.Fprintf(errOut, "unknown armor subcommand: %s\n", args[0])
		return 2
	}
}

func cmdKey(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printKeyUsage(errOut)
		return 2
	}
	switch args[0] {
	case "init":
		return cmdKeyInit(args[1:], out, errOut)
	case "derive":
		return cmdKeyDerive(args[1:], out, errOut)
	case "list":
		return cmdKeyList(args[1:], out, errOut)
	case "export":
		return cmdKeyExport(args[1:], out, errOut)
	case "help", "-h", "--help":
		printKeyUsage(out)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown key subcommand: %s\n\n", args[0])
		printKeyUsage(errOut)
		return 2
	}
}

func printKeyUsage(w io.Writer) {
	fmt.Fprintln(w, "charter key: minimal local key management")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  charter key init --name <name> [--seed-hex <64hex>] [--force]")
	fmt.Fprintln(w, "  charter key derive --from <name> --role <role> [--force]")
	fmt.Fprintln(w, "  charter key list")
	fmt.Fprintln(w, "  charter key export --name <name> [--role <role>]")
}

func cmdKeyInit(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("key init", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var name string
	var seedHex string
	var force bool

	fs.StringVar(&name, "name", "", "Key name (directory under ~/.charter/keys)")
	fs.StringVar(&seedHex, "seed-hex", "", "Optional ed25519 seed as 64 hex chars (for reproducible demos)")
	fs.BoolVar(&force, "force", false, "Overwrite existing key files")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if name == "" {
		fmt.Fprintln(errOut, "missing --name")
		return 2
	}
	if err := identity.CheckKeyName(name); err != nil {
		fmt.Fprintf(errOut, "invalid --name: %v\n", err)
		return 2
	}
	ks, err := identity.OpenKeyStore("")
	if err != nil {
		fmt.Fprintf(errOut, "keys: %v\n", err)
		return 1
	}

	var seed []byte
	if seedHex != "" {
		var derr error
		seed, derr = identity.ParseSeedHex(seedHex)
		if derr != nil {
			fmt.Fprintf(errOut, "invalid --seed-hex: %v\n", derr)
			return 2
		}
	} else {
		seed = make([]byte, ed25519.SeedSize)
		if _, err := rand.Read(seed); err != nil {
			fmt.Fprintf(errOut, "rand: %v\n", err)
			return 1
		}
	}

	signerKey, rootPath, err := ks.InitializeRootKey(name, seed, force)
	if err != nil {
		fmt.Fprintf(errOut, "write key: %v\n", err)
		return 1
	}
	fmt.Fprintf(out, "Created root key: %s\n", signerKey)
	fmt.Fprintf(out, "Stored at: %s\n", rootPath)
	return 0
}

func cmdKeyDerive(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("key derive", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var from string
	var role string
	var force bool

	fs.StringVar(&from, "from", "", "Root key name")
	fs.StringVar(&role, "role", "", "Role identifier (e.g. issuer, auditor)")
	fs.BoolVar(&force, "force", false, "Overwrite existing key files")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if from == "" {
		fmt.Fprintln(errOut, "missing --from")
		return 2
	}
	if role == "" {
		fmt.Fprintln(errOut, "missing --role")
		return 2
	}
	if err := identity.CheckKeyName(from); err != nil {
		fmt.Fprintf(errOut, "invalid --from: %v\n", err)
		return 2
	}
	if err := identity.CheckRole(role); err != nil {
		fmt.Fprintf(errOut, "invalid --role: %v\n", err)
		return 2
	}
	ks, err := identity.OpenKeyStore("")
	if err != nil {
		fmt.Fprintf(errOut, "keys: %v\n", err)
		return 1
	}
	signerKey, rolePath, err := ks.DeriveKeyFromRole(from, role, force)
	if err != nil {
		fmt.Fprintf(errOut, "derive role key: %v\n", err)
		return 1
	}
	fmt.Fprintf(out, "Created role key: %s\n", signerKey)
	fmt.Fprintf(out, "Stored at: %s\n", rolePath)
	return 0
}

func cmdKeyExport(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("key export", flag.ContinueOnError)
	fs.SetOutput(errOut)

	var name string
	var role string

	fs.StringVar(&name, "name", "", "Key name")
	fs.StringVar(&role, "role", "", "Optional role (if set, exports derived role key)")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if name == "" {
		fmt.Fprintln(errOut, "missing --name")
		return 2
	}
	if err := identity.CheckKeyName(name); err != nil {
		fmt.Fprintf(errOut, "invalid --name: %v\n", err)
		return 2
	}
	if role != "" {
		if err := identity.CheckRole(role); err != nil {
			fmt.Fprintf(errOut, "invalid --role: %v\n", err)
			return 2
		}
	}
	ks, err := identity.OpenKeyStore("")
	if err != nil {
		fmt.Fprintf(errOut, "keys: %v\n", err)
		return 1
	}
	signerKey, err := ks.ExportKey(name, role)
	if err != nil {
		fmt.Fprintf(errOut, "export key: %v\n", err)
		return 1
	}
	_, _ = fmt.Fprintln(out, signerKey)
	return 0
}

func cmdKeyList(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("key list", flag.ContinueOnError)
	fs.SetOutput(errOut)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	ks, err := identity.OpenKeyStore("")
	if err != nil {
		fmt.Fprintf(errOut, "keys: %v\n", err)
		return 1
	}
	entries, err := ks.ListKeys()
	if err != nil {
		fmt.Fprintf(errOut, "list keys: %v\n", err)
		return 1
	}
	for _, e := range entries {
		fmt.Fprintf(out, "%s\n", e.Identifier)
		for _, r := range e.Roles {
			fmt.Fprintf(out, "  - %s\n", r)
		}
	}
	return 0
}
