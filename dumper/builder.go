package dumper

import "strconv"

// Builder collects mysqldump parameters through chainable setters. It does no
// validation, mysqldump itself reports bad hosts, ports or conflicting flags.
type Builder struct {
	database string
	options  *orderedMap[optionValue]
	tables   *orderedMap[string]
}

func NewBuilder() *Builder {
	b := &Builder{
		options: newOrderedMap[optionValue](),
		tables:  newOrderedMap[string](),
	}

	return b.SetPort(DefaultPort)
}

func (b *Builder) SetHost(host string) *Builder {
	return b.SetOption("host", host)
}

func (b *Builder) SetPort(port int) *Builder {
	return b.SetOption("port", strconv.Itoa(port))
}

func (b *Builder) SetUser(user string) *Builder {
	return b.SetOption("user", user)
}

func (b *Builder) SetPassword(password string) *Builder {
	return b.SetOption("password", password)
}

// SetDatabase sets the database to dump. Leaving it empty dumps all databases.
func (b *Builder) SetDatabase(database string) *Builder {
	b.database = database
	return b
}

// AddTable registers a table without a row filter, clearing any condition
// set by an earlier call for the same table.
func (b *Builder) AddTable(table string) *Builder {
	return b.AddTableWhere(table, "")
}

// AddTableWhere registers a table whose rows are filtered by condition.
func (b *Builder) AddTableWhere(table, condition string) *Builder {
	b.tables.set(table, condition)
	return b
}

// SetOption sets --name=value.
func (b *Builder) SetOption(name, value string) *Builder {
	b.options.set(name, optionValue{value: value})
	return b
}

// SetFlag sets the bare boolean flag --name.
func (b *Builder) SetFlag(name string) *Builder {
	b.options.set(name, optionValue{bare: true})
	return b
}

func (b *Builder) HexBlob() *Builder {
	return b.SetFlag("hex-blob")
}

func (b *Builder) CompleteInsert() *Builder {
	return b.SetFlag("complete-insert")
}

func (b *Builder) SetGtidPurged(value string) *Builder {
	return b.SetOption("set-gtid-purged", value)
}

// DisableExtendedInsert emits --extended-insert=false, one INSERT per row.
func (b *Builder) DisableExtendedInsert() *Builder {
	return b.SetOption("extended-insert", "false")
}

func (b *Builder) DisableLockTable() *Builder {
	return b.SetOption("lock-tables", "false")
}

func (b *Builder) WithoutComments() *Builder {
	return b.SetFlag("skip-comments")
}

func (b *Builder) WithoutAddLock() *Builder {
	return b.SetFlag("skip-add-locks")
}

func (b *Builder) WithoutCreateDB() *Builder {
	return b.SetFlag("no-create-db")
}

func (b *Builder) WithoutCreateTable() *Builder {
	return b.SetFlag("no-create-info")
}

func (b *Builder) WithoutCreateInfo() *Builder {
	return b.SetFlag("no-create-info")
}

func (b *Builder) WithoutTableData() *Builder {
	return b.SetFlag("no-data")
}

func (b *Builder) WithoutSetCharset() *Builder {
	return b.SetFlag("skip-set-charset")
}

func (b *Builder) SingleTransaction() *Builder {
	return b.SetFlag("single-transaction")
}

func (b *Builder) Quick() *Builder {
	return b.SetFlag("quick")
}

func (b *Builder) SetCharacterSet(charset string) *Builder {
	return b.SetOption("default-character-set", charset)
}

// Build returns a snapshot of the builder. Later calls on the builder do not
// change configs that were already built.
func (b *Builder) Build() *Config {
	return &Config{
		database: b.database,
		options:  b.options.clone(),
		tables:   b.tables.clone(),
	}
}
