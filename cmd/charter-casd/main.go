package main

import (
	"flag"
	"fmt"
	"net"
	"os"

	"google.golang.org/grpc"

	"xledger.io/charter/storage"
	"xledger.io/charter/storage/casconfig"
	"xledger.io/charter/storage/casregistry"
	"xledger.io/charter/storage/grpccas"

	_ "xledger.io/charter/storage/localfs"
	_ "xledger.io/charter/storage/sqlitecas"
)

func main() {
	fs := flag.NewFlagSet("charter-casd", flag.ExitOnError)
	listen := fs.String("listen", "127.0.0.1:7777", "listen address")
	backend := fs.String("backend", "localfs", "CAS backend name")
	configPath := fs.String("cas-config", "", "CAS composition config file (overrides --backend)")
	listBackends := fs.Bool("list-backends", false, "List supported backends and exit")

	casregistry.RegisterFlags(fs, casregistry.UsageDaemon)

	_ = fs.Parse(os.Args[1:])
	if *listBackends {
		for _, b := range casregistry.List(casregistry.UsageDaemon) {
			if b.Description == "" {
				_, _ = fmt.Fprintf(os.Stdout, "%s\n", b.Name)
				continue
			}
			_, _ = fmt.Fprintf(os.Stdout, "%s\t%s\n", b.Name, b.Description)
		}
		return
	}

	var cas storage.CAS
	var closeFn func() error
	var err error
	served := *backend
	if *configPath != "" {
		var cfg casconfig.Config
		cfg, err = casconfig.LoadFile(*configPath)
		if err == nil {
			cas, closeFn, err = cfg.Open(casregistry.UsageDaemon, "")
		}
		served = *configPath
	} else {
		cas, closeFn, err = casregistry.Open(*backend, casregistry.UsageDaemon)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if closeFn != nil {
		defer closeFn()
	}

	lis, err := net.Listen("tcp", *listen)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer lis.Close()

	s := grpc.NewServer()
	grpccas.RegisterCASServer(s, &grpccas.Server{CAS: cas})

	fmt.Fprintf(os.Stderr, "charter-casd listening on %s (backend=%s)\n", lis.Addr().String(), served)
	if err := s.Serve(lis); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
