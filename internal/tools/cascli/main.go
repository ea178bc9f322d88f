package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ipfs/go-cid"

	"xledger.io/charter/fungible"
	"xledger.io/charter/model"
	"xledger.io/charter/storage"
	"xledger.io/charter/storage/bundle"
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
	case "put":
		return cmdPut(args[1:], out, errOut)
	case "get":
		return cmdGet(args[1:], out, errOut)
	case "audit":
		return cmdAudit(args[1:], out, errOut)
	case "export":
		return cmdExport(args[1:], out, errOut)
	case "import":
		return cmdImport(args[1:], out, errOut)
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
	fmt.Fprintln(w, "cascli: minimal CAS tool for walkthroughs")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  cascli put --backend localfs --localfs-dir <dir> <file>")
	fmt.Fprintln(w, "  cascli get --backend localfs --localfs-dir <dir> --cid <cid> [--out <file>]")
	fmt.Fprintln(w, "  cascli audit --backend localfs --localfs-dir <dir> --kit <cid> [--mode strict|permissive] [--expect fungible]")
	fmt.Fprintln(w, "  cascli export --backend localfs --localfs-dir <dir> --cid <cid> [--cid ...] [--label name=cid ...] [--out <file.tar>]")
	fmt.Fprintln(w, "  cascli import --backend localfs --localfs-dir <dir> <file.tar>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "SQLite backend:")
	fmt.Fprintln(w, "  cascli put --backend sqlite --sqlite-db <file.db> <file>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "gRPC backend:")
	fmt.Fprintln(w, "  cascli get --backend grpc --grpc-target <host:port> --cid <cid> [--out <file>]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Notes:")
	fmt.Fprintln(w, "  - grpc backend talks to charter-casd (or any CAS gRPC server)")
	fmt.Fprintln(w, "  - cascli stores raw blocks (CIDv1 raw + sha2-256)")
	fmt.Fprintln(w, "  - export writes a deterministic TAR bundle; import verifies every block against its CID")
}

type commonFlags struct {
	backend      string
	listBackends bool
}

func (c *commonFlags) add(fs *flag.FlagSet) {
	fs.StringVar(&c.backend, "backend", "localfs", "CAS backend name")
	fs.BoolVar(&c.listBackends, "list-backends", false, "List supported backends and exit")
	casregistry.RegisterFlags(fs, casregistry.UsageCLI)
}

func (c *commonFlags) openCAS() (storage.CAS, func() error, error) {
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

func cmdPut(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("put", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var common commonFlags
	common.add(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if common.listBackends {
		printBackends(out)
		return 0
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: cascli put [common flags] <file>")
		return 2
	}

	cas, closeFn, err := common.openCAS()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	if closeFn != nil {
		defer closeFn()
	}

	p := fs.Arg(0)
	b, err := os.ReadFile(p)
	if err != nil {
		fmt.Fprintf(errOut, "read %s: %v\n", filepath.Base(p), err)
		return 1
	}
	id, err := cas.Put(b)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	_, _ = fmt.Fprintln(out, id.String())
	return 0
}

func cmdGet(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("get", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var common commonFlags
	common.add(fs)

	var cidStr string
	var outPath string
	fs.StringVar(&cidStr, "cid", "", "CID to fetch")
	fs.StringVar(&outPath, "out", "", "Output file (optional; default stdout)")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if common.listBackends {
		printBackends(out)
		return 0
	}
	if cidStr == "" {
		fmt.Fprintln(errOut, "missing --cid")
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(errOut, "usage: cascli get [common flags] --cid <cid> [--out <file>]")
		return 2
	}

	cas, closeFn, err := common.openCAS()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	if closeFn != nil {
		defer closeFn()
	}

	id, err := cid.Decode(cidStr)
	if err != nil {
		fmt.Fprintln(errOut, storage.ErrInvalidCID)
		return 1
	}

	b, err := cas.Get(id)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}

	if outPath == "" {
		_, _ = out.Write(b)
		return 0
	}
	if err := os.WriteFile(outPath, b, 0o600); err != nil {
		fmt.Fprintf(errOut, "write %s: %v\n", outPath, err)
		return 1
	}
	return 0
}

func cmdAudit(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("audit", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var common commonFlags
	common.add(fs)

	var kitCID string
	var mode string
	var expect string
	fs.StringVar(&kitCID, "kit", "", "Kit CID")
	fs.StringVar(&mode, "mode", "strict", "Audit mode: strict|permissive")
	fs.StringVar(&expect, "expect", "", "Pin validator opcodes for a known contract family (fungible)")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if common.listBackends {
		printBackends(out)
		return 0
	}
	if kitCID == "" {
		fmt.Fprintln(errOut, "usage: cascli audit [common flags] --kit <cid> [--mode strict|permissive] [--expect fungible]")
		return 2
	}

	cas, closeFn, err := common.openCAS()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	if closeFn != nil {
		defer closeFn()
	}

	req := model.AuditRequest{Kit: model.BlobRef{CID: kitCID}}
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "strict":
		req.Mode = model.AuditStrict
	case "permissive":
		req.Mode = model.AuditPermissive
	default:
		fmt.Fprintln(errOut, "invalid --mode")
		return 2
	}

	opts := model.AuditOptions{CAS: cas}
	switch expect {
	case "":
	case "fungible":
		e := fungible.Expectations()
		opts.Expect = &e
	default:
		fmt.Fprintln(errOut, "invalid --expect")
		return 2
	}

	outcome, err := model.AuditResult(req, opts)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	if !outcome.Ok {
		for _, v := range outcome.Violations {
			fmt.Fprintf(errOut, "%s %s: %s\n", v.Check, v.Target, strings.Join(v.Reasons, "; "))
		}
		_, _ = fmt.Fprintln(out, "FAIL")
		return 1
	}
	_, _ = fmt.Fprintln(out, "OK")
	return 0
}

func cmdExport(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var common commonFlags
	common.add(fs)

	var cidStrs multiString
	var labelKVs multiString
	var outPath string
	var includeIndex bool
	fs.Var(&cidStrs, "cid", "Block CID to export (repeatable)")
	fs.Var(&labelKVs, "label", "Bundle label as name=cid (repeatable, optional)")
	fs.StringVar(&outPath, "out", "", "Output file (optional; default stdout)")
	fs.BoolVar(&includeIndex, "index", true, "Include index.json in the bundle")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if common.listBackends {
		printBackends(out)
		return 0
	}
	if len(cidStrs) == 0 {
		fmt.Fprintln(errOut, "usage: cascli export [common flags] --cid <cid> [--cid ...] [--label name=cid ...] [--out <file.tar>]")
		return 2
	}

	ids := make([]cid.Cid, 0, len(cidStrs))
	for _, s := range cidStrs {
		id, derr := cid.Decode(s)
		if derr != nil {
			fmt.Fprintf(errOut, "invalid --cid %s: %v\n", s, storage.ErrInvalidCID)
			return 1
		}
		ids = append(ids, id)
	}
	labels := make(map[string]cid.Cid, len(labelKVs))
	for _, kv := range labelKVs {
		name, labelCID, ok := strings.Cut(kv, "=")
		if !ok || name == "" {
			fmt.Fprintf(errOut, "invalid --label %q (expected name=cid)\n", kv)
			return 2
		}
		id, derr := cid.Decode(labelCID)
		if derr != nil {
			fmt.Fprintf(errOut, "invalid --label cid %s: %v\n", labelCID, storage.ErrInvalidCID)
			return 1
		}
		labels[name] = id
	}

	cas, closeFn, err := common.openCAS()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	if closeFn != nil {
		defer closeFn()
	}

	w := out
	if outPath != "" {
		f, ferr := os.Create(outPath)
		if ferr != nil {
			fmt.Fprintf(errOut, "create %s: %v\n", outPath, ferr)
			return 1
		}
		defer f.Close()
		w = f
	}
	opts := bundle.ExportOptions{IncludeIndex: includeIndex}
	if len(labels) > 0 {
		opts.Labels = labels
	}
	if err := bundle.Export(w, cas, ids, opts); err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	return 0
}

func cmdImport(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var common commonFlags
	common.add(fs)

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if common.listBackends {
		printBackends(out)
		return 0
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: cascli import [common flags] <file.tar>")
		return 2
	}

	cas, closeFn, err := common.openCAS()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	if closeFn != nil {
		defer closeFn()
	}

	f, err := os.Open(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(errOut, "open %s: %v\n", filepath.Base(fs.Arg(0)), err)
		return 1
	}
	defer f.Close()

	if err := bundle.Import(f, cas); err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	_, _ = fmt.Fprintln(out, "OK")
	return 0
}

type multiString []string

func (m *multiString) String() string { return strings.Join(*m, ",") }

func (m *multiString) Set(v string) error {
	v = strings.TrimSpace(v)
	if v == "" {
		return errors.New("empty value")
	}
	*m = append(*m, v)
	return nil
}
