package dumpcmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/comoco/mysqldump/config"
	"github.com/comoco/mysqldump/env"
	"github.com/comoco/mysqldump/handler"
	"github.com/comoco/mysqldump/storage/local"
)

var (
	dsn, host, user, password, database, binary, output string
	sshHost, sshUser, sshKey, knownHosts                string
	port                                                int
	tables, options                                     []string
	timeout                                             time.Duration
	gzip, unique, strictExit, verify                    bool
)

var (
	ErrMissingConnection = errors.New("either --dsn, --host or the DATABASE_DSN environment variable is required")
	ErrOutputRequired    = errors.New("--gzip and --unique only apply to a file, set --output")
)

func init() {
	DumpCmd.Flags().StringVar(&dsn, "dsn", "", "database dsn, e.g. <dbUser>:<dbPass>@tcp(<dbHost>:<dbPort>)/<dbName>. falls back to DATABASE_DSN (optional)")
	DumpCmd.Flags().StringVar(&host, "host", "", "database host, overrides the dsn (optional)")
	DumpCmd.Flags().IntVar(&port, "port", 0, "database port, overrides the dsn. default: 3306 (optional)")
	DumpCmd.Flags().StringVarP(&user, "user", "u", "", "database user, overrides the dsn (optional)")
	DumpCmd.Flags().StringVarP(&password, "password", "p", "", "database password, overrides the dsn (optional)")
	DumpCmd.Flags().StringVarP(&database, "database", "d", "", "database to dump, all databases are dumped when empty (optional)")
	DumpCmd.Flags().StringArrayVarP(&tables, "table", "t", nil, "table to dump with an optional row filter, e.g. --table users --table \"orders:created_at > '2024-01-01'\" (optional)")
	DumpCmd.Flags().StringArrayVarP(&options, "option", "o", nil, "extra mysqldump option, e.g. --option single-transaction --option set-gtid-purged=OFF (optional)")
	DumpCmd.Flags().StringVar(&binary, "binary", "", "mysqldump executable. default: mysqldump (optional)")
	DumpCmd.Flags().DurationVar(&timeout, "timeout", 0, "kill mysqldump when it runs longer than the timeout, e.g. 30m (optional)")
	DumpCmd.Flags().BoolVar(&strictExit, "strict-exit", false, "fail the dump on a non-zero exit status even without error output (optional)")
	DumpCmd.Flags().BoolVar(&verify, "verify", false, "check the database and tables exist before dumping (optional)")
	DumpCmd.Flags().StringVar(&output, "output", "", "write the dump to a file instead of stdout (optional)")
	DumpCmd.Flags().BoolVar(&gzip, "gzip", false, "gzip the output file, requires --output (optional)")
	DumpCmd.Flags().BoolVar(&unique, "unique", false, "prefix the output file with a timestamp, requires --output (optional)")
	DumpCmd.Flags().StringVar(&sshHost, "ssh-host", "", "run mysqldump on a remote server, e.g. example.com or 10.0.0.2:2222 (optional)")
	DumpCmd.Flags().StringVar(&sshUser, "ssh-user", "root", "ssh username (optional)")
	DumpCmd.Flags().StringVar(&sshKey, "ssh-key", "", "ssh private key content or file path (optional)")
	DumpCmd.Flags().StringVar(&knownHosts, "ssh-known-hosts", "", "verify the ssh server key against a known_hosts file (optional)")
}

var DumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Run mysqldump once with flags instead of a job file",
	Args:  cobra.ExactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		if output == "" && (gzip || unique) {
			return ErrOutputRequired
		}

		job, err := newJob()
		if err != nil {
			return err
		}

		if err := (&config.Dump{Jobs: []*config.Job{job}}).Validate(); err != nil {
			return err
		}

		if output != "" {
			job.Storage.Local = []*local.Local{{Path: output}}

			result := handler.NewJobHandler(job).Do(cmd.Context())
			fmt.Fprintln(cmd.ErrOrStderr(), result.String())

			return result.Error
		}

		builder, err := job.Builder()
		if err != nil {
			return err
		}

		sql, err := job.MysqlDump().Dump(cmd.Context(), builder.Build())
		if err != nil {
			return err
		}

		_, err = io.WriteString(cmd.OutOrStdout(), sql)
		return err
	},
}

func newJob() (*config.Job, error) {
	// --host alone is enough to connect, the dsn is only required without it.
	envs, err := env.NewResolver(env.WithDatabaseDSN(dsn, host == "")).Resolve()
	if err != nil {
		return nil, errors.Join(ErrMissingConnection, err)
	}

	opts := []config.Option{
		config.WithDatabase(database),
		config.WithBinary(binary),
		config.WithTimeout(timeout),
		config.WithGzip(gzip),
		config.WithUnique(unique),
		config.WithDumpOptions(options...),
	}

	for _, table := range tables {
		name, where, _ := strings.Cut(table, ":")
		opts = append(opts, config.WithTable(name, where))
	}

	if sshHost != "" {
		key, err := readKey(sshKey)
		if err != nil {
			return nil, err
		}

		opts = append(opts, config.WithSshHost(sshHost), config.WithSshUser(sshUser), config.WithSshKey(key))
	}

	job := config.NewJob("dump", envs.DatabaseDSN, opts...)
	job.Host = host
	job.Port = port
	job.User = user
	job.Password = password
	job.StrictExit = strictExit
	job.Verify = verify
	job.KnownHosts = knownHosts

	return job, nil
}

// readKey returns the content of key when it names a file, otherwise key itself.
func readKey(key string) (string, error) {
	info, err := os.Stat(key)
	if err != nil || info.IsDir() {
		return key, nil
	}

	content, err := os.ReadFile(key)
	if err != nil {
		return "", fmt.Errorf("failed to read ssh private key file %s: %w", key, err)
	}

	return string(content), nil
}
