package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/comoco/mysqldump/dumper"
	"github.com/comoco/mysqldump/dumper/runner"
	"github.com/comoco/mysqldump/notifier/slack"
	"github.com/comoco/mysqldump/storage/dropbox"
	"github.com/comoco/mysqldump/storage/gdrive"
	"github.com/comoco/mysqldump/storage/local"
	"github.com/comoco/mysqldump/storage/s3"
	"github.com/comoco/mysqldump/storage/sftp"
	"github.com/go-sql-driver/mysql"
)

var (
	ErrMissingJobName     = errors.New("job name is required")
	ErrInvalidDBDsn       = errors.New("database dsn is invalid")
	ErrMissingTableName   = errors.New("table name is required")
	ErrMissingOptionName  = errors.New("option name is required")
	ErrIncompleteSshCreds = errors.New("sshhost, sshuser and sshkey must be set together")
)

type Dump struct {
	Notifier struct {
		Slack []*slack.Slack `yaml:"slack"`
	} `yaml:"notifier"`
	Jobs []*Job `yaml:"jobs"`
}

func (dump *Dump) Validate() error {
	var errs error

	for _, job := range dump.Jobs {
		err := job.validate()
		if err != nil {
			errs = errors.Join(errs, err)
		}
	}

	return errs
}

type Table struct {
	Name  string `yaml:"name"`
	Where string `yaml:"where"`
}

// DumpOption is a mysqldump flag. A nil Value renders the bare --name flag.
type DumpOption struct {
	Name  string  `yaml:"name"`
	Value *string `yaml:"value"`
}

type Job struct {
	Name        string        `yaml:"name"`
	DBDsn       string        `yaml:"dbdsn"`
	Host        string        `yaml:"host"`
	Port        int           `yaml:"port"`
	User        string        `yaml:"user"`
	Password    string        `yaml:"password"`
	Database    string        `yaml:"database"`
	Binary      string        `yaml:"binary"`
	Timeout     time.Duration `yaml:"timeout"`
	StrictExit  bool          `yaml:"strictexit"`
	Verify      bool          `yaml:"verify"`
	Gzip        bool          `yaml:"gzip"`
	Unique      bool          `yaml:"unique"`
	SshHost     string        `yaml:"sshhost"`
	SshUser     string        `yaml:"sshuser"`
	SshKey      string        `yaml:"sshkey"`
	KnownHosts  string        `yaml:"sshknownhosts"`
	Tables      []Table       `yaml:"tables"`
	DumpOptions []DumpOption  `yaml:"options"`
	Storage     struct {
		Local   []*local.Local     `yaml:"local"`
		S3      []*s3.S3           `yaml:"s3"`
		Sftp    []*sftp.Sftp       `yaml:"sftp"`
		GDrive  []*gdrive.GDrive   `yaml:"gdrive"`
		Dropbox []*dropbox.Dropbox `yaml:"dropbox"`
	} `yaml:"storage"`
}

type Option func(job *Job)

func WithSshHost(sshHost string) Option {
	return func(job *Job) {
		job.SshHost = sshHost
	}
}

func WithSshUser(sshUser string) Option {
	return func(job *Job) {
		job.SshUser = sshUser
	}
}

func WithSshKey(sshKey string) Option {
	return func(job *Job) {
		job.SshKey = sshKey
	}
}

func WithGzip(gzip bool) Option {
	return func(job *Job) {
		job.Gzip = gzip
	}
}

func WithUnique(unique bool) Option {
	return func(job *Job) {
		job.Unique = unique
	}
}

func WithDatabase(database string) Option {
	return func(job *Job) {
		job.Database = database
	}
}

func WithBinary(binary string) Option {
	return func(job *Job) {
		job.Binary = binary
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(job *Job) {
		job.Timeout = timeout
	}
}

func WithTable(name, where string) Option {
	return func(job *Job) {
		job.Tables = append(job.Tables, Table{Name: name, Where: where})
	}
}

// WithDumpOptions parses options in the "name" or "name=value" form, with or
// without the leading "--".
func WithDumpOptions(options ...string) Option {
	return func(job *Job) {
		for _, option := range options {
			job.DumpOptions = append(job.DumpOptions, ParseDumpOption(option))
		}
	}
}

func ParseDumpOption(option string) DumpOption {
	option = strings.TrimPrefix(option, "--")

	name, value, found := strings.Cut(option, "=")
	if !found {
		return DumpOption{Name: name}
	}

	return DumpOption{Name: name, Value: &value}
}

func NewJob(name, dbDsn string, opts ...Option) *Job {
	job := &Job{
		Name:  name,
		DBDsn: dbDsn,
	}

	for _, opt := range opts {
		opt(job)
	}

	return job
}

func (job *Job) validate() error {
	if strings.TrimSpace(job.Name) == "" {
		return ErrMissingJobName
	}

	var errs error

	if _, err := job.connection(); err != nil {
		errs = errors.Join(errs, err)
	}

	for _, table := range job.Tables {
		if strings.TrimSpace(table.Name) == "" {
			errs = errors.Join(errs, fmt.Errorf("job %s: %w", job.Name, ErrMissingTableName))
		}
	}

	for _, option := range job.DumpOptions {
		if strings.TrimSpace(option.Name) == "" {
			errs = errors.Join(errs, fmt.Errorf("job %s: %w", job.Name, ErrMissingOptionName))
		}
	}

	ssh := []string{job.SshHost, job.SshUser, job.SshKey}
	set := 0
	for _, s := range ssh {
		if strings.TrimSpace(s) != "" {
			set++
		}
	}

	if set > 0 && set < len(ssh) {
		errs = errors.Join(errs, fmt.Errorf("job %s: %w", job.Name, ErrIncompleteSshCreds))
	}

	return errs
}

func (job *Job) ViaSsh() bool {
	if strings.TrimSpace(job.SshHost) != "" && strings.TrimSpace(job.SshUser) != "" && strings.TrimSpace(job.SshKey) != "" {
		return true
	}

	return false
}

// Connection holds the resolved mysql connection parameters of a job.
type Connection struct {
	Host     string
	Port     int
	Socket   string
	User     string
	Password string
	Database string
}

// DSN formats the connection for database/sql.
func (c Connection) DSN() string {
	cfg := mysql.NewConfig()
	cfg.User = c.User
	cfg.Passwd = c.Password
	cfg.DBName = c.Database

	if c.Socket != "" {
		cfg.Net = "unix"
		cfg.Addr = c.Socket
	} else {
		host := c.Host
		if host == "" {
			host = "127.0.0.1"
		}
		cfg.Net = "tcp"
		cfg.Addr = net.JoinHostPort(host, strconv.Itoa(c.Port))
	}

	return cfg.FormatDSN()
}

// connection merges the dsn with the explicit fields, which take precedence.
func (job *Job) connection() (Connection, error) {
	conn := Connection{Port: dumper.DefaultPort}

	if strings.TrimSpace(job.DBDsn) != "" {
		cfg, err := mysql.ParseDSN(job.DBDsn)
		if err != nil {
			return conn, fmt.Errorf("job %s: %w: %v", job.Name, ErrInvalidDBDsn, err)
		}

		conn.User = cfg.User
		conn.Password = cfg.Passwd
		conn.Database = cfg.DBName

		if cfg.Net == "unix" {
			conn.Socket = cfg.Addr
		} else {
			host, port, err := net.SplitHostPort(cfg.Addr)
			if err != nil {
				return conn, fmt.Errorf("job %s: %w: %v", job.Name, ErrInvalidDBDsn, err)
			}

			dbPort, err := strconv.Atoi(port)
			if err != nil {
				return conn, fmt.Errorf("job %s: %w: %v", job.Name, ErrInvalidDBDsn, err)
			}

			conn.Host = host
			conn.Port = dbPort
		}
	}

	if job.Host != "" {
		conn.Host = job.Host
		conn.Socket = ""
	}

	if job.Port != 0 {
		conn.Port = job.Port
	}

	if job.User != "" {
		conn.User = job.User
	}

	if job.Password != "" {
		conn.Password = job.Password
	}

	if job.Database != "" {
		conn.Database = job.Database
	}

	return conn, nil
}

func (job *Job) Connection() (Connection, error) {
	return job.connection()
}

// Builder translates the job into a mysqldump builder: connection first, then
// the configured options, database and tables.
func (job *Job) Builder() (*dumper.Builder, error) {
	conn, err := job.connection()
	if err != nil {
		return nil, err
	}

	builder := dumper.NewBuilder().SetPort(conn.Port)

	if conn.Socket != "" {
		builder.SetOption("socket", conn.Socket)
	} else if conn.Host != "" {
		builder.SetHost(conn.Host)
	}

	if conn.User != "" {
		builder.SetUser(conn.User)
	}

	if conn.Password != "" {
		builder.SetPassword(conn.Password)
	}

	for _, option := range job.DumpOptions {
		if option.Value == nil {
			builder.SetFlag(option.Name)
		} else {
			builder.SetOption(option.Name, *option.Value)
		}
	}

	builder.SetDatabase(conn.Database)

	for _, table := range job.Tables {
		builder.AddTableWhere(table.Name, table.Where)
	}

	return builder, nil
}

// MysqlDump returns the executor for the job, running locally or over ssh.
func (job *Job) MysqlDump() *dumper.MysqlDump {
	opts := make([]dumper.Option, 0, 4)

	if job.Binary != "" {
		opts = append(opts, dumper.WithBinary(job.Binary))
	}

	if job.Timeout > 0 {
		opts = append(opts, dumper.WithTimeout(job.Timeout))
	}

	if job.StrictExit {
		opts = append(opts, dumper.WithStrictExitCode())
	}

	if job.ViaSsh() {
		opts = append(opts, dumper.WithRunner(runner.NewSshRunner(job.SshHost, job.SshKey, job.SshUser).WithKnownHosts(job.KnownHosts)))
	}

	return dumper.NewMysqlDump(opts...)
}
