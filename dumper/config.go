package dumper

import (
	"errors"
	"sync/atomic"
)

const (
	DefaultPort = 3306

	allDatabasesFlag = "--all-databases"
)

var ErrConfigConsumed = errors.New("dump config has already been used, clone or rebuild it for another dump")

type optionValue struct {
	value string
	bare  bool
}

func (o optionValue) arg(name string) string {
	if o.bare {
		return "--" + name
	}

	return "--" + name + "=" + o.value
}

// Config is an immutable snapshot produced by Builder.Build. It is consumed by
// exactly one dump.
type Config struct {
	database string
	options  *orderedMap[optionValue]
	tables   *orderedMap[string]
	consumed atomic.Bool
}

// Database returns the target database, empty when every database is dumped.
func (c *Config) Database() string {
	return c.database
}

// Option returns the value of a valued option. Bare flags report an empty value.
func (c *Config) Option(name string) (string, bool) {
	v, ok := c.options.get(name)
	return v.value, ok
}

// Tables returns the registered table names in insertion order.
func (c *Config) Tables() []string {
	tables := make([]string, 0, c.tables.len())
	c.tables.each(func(name string, _ string) {
		tables = append(tables, name)
	})

	return tables
}

// Args serializes the config into the mysqldump argument vector:
// options in insertion order, then the database (or --all-databases), then
// every table followed by its own --where clause when it has one.
func (c *Config) Args() []string {
	args := make([]string, 0, c.options.len()+1+c.tables.len()*2)

	c.options.each(func(name string, value optionValue) {
		args = append(args, value.arg(name))
	})

	if c.database == "" {
		args = append(args, allDatabasesFlag)
	} else {
		args = append(args, c.database)
	}

	c.tables.each(func(table string, where string) {
		args = append(args, table)
		if where != "" {
			args = append(args, "--where="+where)
		}
	})

	return args
}

// Clone returns an unused copy of the config.
func (c *Config) Clone() *Config {
	return &Config{
		database: c.database,
		options:  c.options.clone(),
		tables:   c.tables.clone(),
	}
}

func (c *Config) consume() error {
	if !c.consumed.CompareAndSwap(false, true) {
		return ErrConfigConsumed
	}

	return nil
}
