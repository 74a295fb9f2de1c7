package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	"github.com/dvloznov/generations-billing/internal/billing"
	"github.com/dvloznov/generations-billing/internal/domain"
	"github.com/dvloznov/generations-billing/internal/keypair"
	"github.com/dvloznov/generations-billing/internal/logger"
	"github.com/pkg/errors"
	"github.com/snowflakedb/gosnowflake"
)

// loadSchema is the schema of the billing table inside the load database.
const loadSchema = "PUBLIC"

// identPattern matches unquoted Snowflake identifiers. Names are interpolated
// into SQL, so anything else is rejected rather than quoted.
var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*$`)

// Snowflake implements Warehouse over a database/sql handle using the
// gosnowflake driver.
type Snowflake struct {
	db   *sql.DB
	opts Options
}

// OpenSnowflake connects with key-pair (JWT) authentication.
func OpenSnowflake(opts Options, key *keypair.Key) (*Snowflake, error) {
	if err := validateIdents(opts); err != nil {
		return nil, err
	}

	cfg := gosnowflake.Config{
		Account:       opts.Account,
		User:          opts.User,
		Role:          opts.Role,
		Warehouse:     opts.Warehouse,
		Authenticator: gosnowflake.AuthTypeJwt,
		PrivateKey:    key.Private,
	}
	db := sql.OpenDB(gosnowflake.NewConnector(gosnowflake.SnowflakeDriver{}, cfg))
	return &Snowflake{db: db, opts: opts}, nil
}

// NewSnowflake wraps an existing handle. The Snowflake takes ownership of db.
func NewSnowflake(db *sql.DB, opts Options) (*Snowflake, error) {
	if err := validateIdents(opts); err != nil {
		return nil, err
	}
	return &Snowflake{db: db, opts: opts}, nil
}

// Close closes the underlying connection pool.
func (s *Snowflake) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// LookupQuery is the fixed Salesforce account lookup.
func (s *Snowflake) LookupQuery() string {
	return fmt.Sprintf(`SELECT id, legacy_id_c, name FROM %s.SALESFORCE.ACCOUNT WHERE is_deleted = false AND legacy_id_c IS NOT NULL`,
		s.opts.LookupDB)
}

// BillingTableName is the fully qualified destination table.
func (s *Snowflake) BillingTableName() string {
	return fmt.Sprintf("%s.%s.%s", s.opts.LoadDB, loadSchema, s.opts.BillingTable)
}

// LookupAccounts runs the account lookup.
func (s *Snowflake) LookupAccounts(ctx context.Context) ([]domain.AccountRecord, error) {
	rows, err := s.db.QueryContext(ctx, s.LookupQuery())
	if err != nil {
		return nil, errors.Wrap(err, "LookupAccounts: querying")
	}
	defer rows.Close()

	var accounts []domain.AccountRecord
	for rows.Next() {
		var (
			id, legacyID string
			name         sql.NullString
		)
		if err := rows.Scan(&id, &legacyID, &name); err != nil {
			return nil, errors.Wrap(err, "LookupAccounts: scanning")
		}
		accounts = append(accounts, domain.AccountRecord{ID: id, LegacyID: legacyID, Name: name.String})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "LookupAccounts: iterating")
	}

	log := logger.FromContext(ctx)
	log.Debug().Int("accounts", len(accounts)).Msg("Loaded Salesforce accounts")
	return accounts, nil
}

// InsertStatement returns a multi-row INSERT for n rows with positional binds.
func (s *Snowflake) InsertStatement(n int) string {
	placeholder := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(billing.ImportColumns)), ", ") + ")"

	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES ", s.BillingTableName(), strings.Join(billing.ImportColumns, ", "))
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(placeholder)
	}
	return b.String()
}

// AppendBillingRows inserts rows with a single multi-row INSERT.
func (s *Snowflake) AppendBillingRows(ctx context.Context, rows []domain.ImportRow) error {
	if len(rows) == 0 {
		return nil
	}

	args := make([]interface{}, 0, len(rows)*len(billing.ImportColumns))
	for _, r := range rows {
		args = append(args, billing.ImportValues(r)...)
	}

	if _, err := s.db.ExecContext(ctx, s.InsertStatement(len(rows)), args...); err != nil {
		return errors.Wrapf(err, "AppendBillingRows: inserting %d rows into %s", len(rows), s.BillingTableName())
	}
	return nil
}

// EnsureBillingTable creates the billing table if needed.
func (s *Snowflake) EnsureBillingTable(ctx context.Context) error {
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	VENDORID VARCHAR NOT NULL,
	ENVIRONMENTCODE VARCHAR NOT NULL,
	VENDORNAME VARCHAR,
	HHAXUNIQUEID VARCHAR,
	COMPONENT VARCHAR,
	VALUE NUMBER(38, 6),
	MONTHYEAR VARCHAR NOT NULL
)`, s.BillingTableName())

	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return errors.Wrap(err, "EnsureBillingTable")
	}
	return nil
}

func validateIdents(opts Options) error {
	for name, v := range map[string]string{
		"lookup database": opts.LookupDB,
		"load database":   opts.LoadDB,
		"billing table":   opts.BillingTable,
	} {
		if !identPattern.MatchString(v) {
			return errors.Errorf("warehouse: %s %q is not a plain identifier", name, v)
		}
	}
	return nil
}
