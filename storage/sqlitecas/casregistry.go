package sqlitecas

import (
	"flag"
	"fmt"

	"xledger.io/charter/storage"
	"xledger.io/charter/storage/casregistry"
)

var (
	flagSQLiteDB string
)

func init() {
	casregistry.MustRegister(casregistry.Backend{
		Name:        "sqlite",
		Description: "SQLite CAS (single database file)",
		Usage:       casregistry.UsageCLI | casregistry.UsageDaemon,
		RegisterFlags: func(fs *flag.FlagSet) {
			fs.StringVar(&flagSQLiteDB, "sqlite-db", "", "SQLite CAS database file (for --backend=sqlite)")
		},
		Open: func() (storage.CAS, func() error, error) {
			if flagSQLiteDB == "" {
				return nil, nil, fmt.Errorf("missing --sqlite-db")
			}
			cas, err := Open(flagSQLiteDB)
			if err != nil {
				return nil, nil, err
			}
			return cas, cas.Close, nil
		},
		OpenConfig: func(config map[string]string) (storage.CAS, func() error, error) {
			dsn := config["dsn"]
			if dsn == "" {
				return nil, nil, fmt.Errorf("sqlite: missing config key %q", "dsn")
			}
			cas, err := Open(dsn)
			if err != nil {
				return nil, nil, err
			}
			return cas, cas.Close, nil
		},
	})
}
