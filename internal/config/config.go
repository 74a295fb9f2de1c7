package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Warehouse backends.
const (
	BackendSnowflake = "snowflake"
	BackendBigQuery  = "bigquery"
)

// Defaults.
const (
	DefaultSQLInstance      = "SQLEXPRESS"
	DefaultBillingTable     = "GEN_MONTHLY_BILLING"
	DefaultLogFileName      = "logs.log"
	DefaultWarehouseBackend = BackendSnowflake
)

// Config is everything the monthly run needs. It is built once at startup and
// handed to each stage; nothing reads the environment after Load returns.
type Config struct {
	Source    SourceConfig
	KeyPair   KeyPairConfig
	Warehouse WarehouseConfig
	Mail      MailConfig
	Archive   ArchiveConfig
	LogFile   string
}

// SourceConfig addresses the SQL Server usage table.
type SourceConfig struct {
	Host     string
	Instance string
	Database string
	User     string
	Password string
	Table    string
}

// KeyPairConfig locates the warehouse private key.
type KeyPairConfig struct {
	Path       string
	Passphrase string
}

// WarehouseConfig addresses the cloud warehouse. For the bigquery backend
// Account is the GCP project and User the service-account email.
type WarehouseConfig struct {
	Backend      string
	Account      string
	LookupDB     string // Fivetran database holding SALESFORCE.ACCOUNT
	LoadDB       string // database receiving the billing table
	Role         string
	User         string
	Warehouse    string
	BillingTable string
}

// MailConfig holds the email API service principal and the addresses.
type MailConfig struct {
	Tenant       string
	ClientID     string
	ClientSecret string
	From         string
	FromFile     string
	To           []string
	ToFile       string
}

// ArchiveConfig optionally copies the backup workbook to Cloud Storage.
type ArchiveConfig struct {
	Bucket string
	Prefix string
}

// Enabled reports whether an archive bucket is configured.
func (a ArchiveConfig) Enabled() bool {
	return a.Bucket != ""
}

// Getenv looks up a single variable. os.Getenv satisfies it.
type Getenv func(key string) string

// Load builds a Config from the process environment and validates it.
func Load() (*Config, error) {
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv and validates it.
func FromEnv(getenv Getenv) (*Config, error) {
	cfg := build(getenv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// WarehouseFromEnv builds a Config from getenv but only validates the key
// pair and warehouse settings. Commands that never touch SQL Server or mail
// use it.
func WarehouseFromEnv(getenv Getenv) (*Config, error) {
	cfg := build(getenv)
	if err := cfg.ValidateWarehouse(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func build(getenv Getenv) *Config {
	get := func(key string) string {
		return strings.TrimSpace(getenv(key))
	}
	orDefault := func(key, def string) string {
		if v := get(key); v != "" {
			return v
		}
		return def
	}

	cfg := &Config{
		Source: SourceConfig{
			Host:     get("GENERATIONS_SQL_SERVER_IP"),
			Instance: orDefault("GENERATIONS_SQL_INSTANCE", DefaultSQLInstance),
			Database: get("GENERATIONS_DB_NAME"),
			User:     get("GENERATIONS_SQL_USER"),
			Password: getenv("GENERATIONS_SQL_PASS"),
			Table:    get("GENERATIONS_SQL_TABLE"),
		},
		KeyPair: KeyPairConfig{
			Path:       get("PEM_KEY_PATH"),
			Passphrase: getenv("PEM_PASS"),
		},
		Warehouse: WarehouseConfig{
			Backend:      strings.ToLower(orDefault("WAREHOUSE_BACKEND", DefaultWarehouseBackend)),
			Account:      get("SNOWFLAKE_ACCOUNT"),
			LookupDB:     get("SNOWFLAKE_FIVETRAN_DB"),
			LoadDB:       get("SNOWFLAKE_MAXIO_DB"),
			Role:         get("SNOWFLAKE_ETL_ROLE"),
			User:         get("SNOWFLAKE_ETL_USER"),
			Warehouse:    get("SNOW_ETL_WH"),
			BillingTable: orDefault("GENERATIONS_SNOW_TABLE", DefaultBillingTable),
		},
		Mail: MailConfig{
			Tenant:       get("GRAPH_TENANT"),
			ClientID:     get("GRAPH_CLIENT"),
			ClientSecret: getenv("GRAPH_SECRET"),
			From:         get("EMAIL_FROM"),
			FromFile:     get("EMAIL_FROM_FILE"),
			To:           splitList(get("EMAIL_TO")),
			ToFile:       get("EMAIL_TO_FILE"),
		},
		Archive: ArchiveConfig{
			Bucket: get("ARCHIVE_BUCKET"),
			Prefix: strings.Trim(get("ARCHIVE_PREFIX"), "/"),
		},
		LogFile: LogFilePath(getenv),
	}
	return cfg
}

type missingSettings []string

func (m *missingSettings) require(key, value string) {
	if value == "" {
		*m = append(*m, key)
	}
}

func (m missingSettings) err() error {
	if len(m) == 0 {
		return nil
	}
	return fmt.Errorf("config: missing required settings: %s", strings.Join(m, ", "))
}

// Validate reports every missing or inconsistent setting in a single error.
func (c *Config) Validate() error {
	var missing missingSettings
	missing.require("GENERATIONS_SQL_SERVER_IP", c.Source.Host)
	missing.require("GENERATIONS_DB_NAME", c.Source.Database)
	missing.require("GENERATIONS_SQL_USER", c.Source.User)
	missing.require("GENERATIONS_SQL_PASS", c.Source.Password)
	missing.require("GENERATIONS_SQL_TABLE", c.Source.Table)
	if err := c.warehouseSettings(&missing); err != nil {
		return err
	}
	missing.require("GRAPH_TENANT", c.Mail.Tenant)
	missing.require("GRAPH_CLIENT", c.Mail.ClientID)
	missing.require("GRAPH_SECRET", c.Mail.ClientSecret)

	if c.Mail.From == "" && c.Mail.FromFile == "" {
		missing = append(missing, "EMAIL_FROM or EMAIL_FROM_FILE")
	}
	if len(c.Mail.To) == 0 && c.Mail.ToFile == "" {
		missing = append(missing, "EMAIL_TO or EMAIL_TO_FILE")
	}
	return missing.err()
}

// ValidateWarehouse checks only the key pair and warehouse settings.
func (c *Config) ValidateWarehouse() error {
	var missing missingSettings
	if err := c.warehouseSettings(&missing); err != nil {
		return err
	}
	return missing.err()
}

func (c *Config) warehouseSettings(missing *missingSettings) error {
	missing.require("PEM_KEY_PATH", c.KeyPair.Path)
	missing.require("SNOWFLAKE_ACCOUNT", c.Warehouse.Account)
	missing.require("SNOWFLAKE_FIVETRAN_DB", c.Warehouse.LookupDB)
	missing.require("SNOWFLAKE_MAXIO_DB", c.Warehouse.LoadDB)
	missing.require("SNOWFLAKE_ETL_USER", c.Warehouse.User)

	switch c.Warehouse.Backend {
	case BackendSnowflake:
		missing.require("SNOWFLAKE_ETL_ROLE", c.Warehouse.Role)
		missing.require("SNOW_ETL_WH", c.Warehouse.Warehouse)
	case BackendBigQuery:
	default:
		return fmt.Errorf("config: unknown WAREHOUSE_BACKEND %q (want %q or %q)",
			c.Warehouse.Backend, BackendSnowflake, BackendBigQuery)
	}
	return nil
}

// Sender returns the sender address, reading EMAIL_FROM_FILE when EMAIL_FROM is unset.
func (m MailConfig) Sender() (string, error) {
	if m.From != "" {
		return m.From, nil
	}
	return readAddressFile(m.FromFile)
}

// Recipients returns the recipient list, reading EMAIL_TO_FILE when EMAIL_TO is unset.
// The file holds a single address; line breaks are stripped.
func (m MailConfig) Recipients() ([]string, error) {
	if len(m.To) > 0 {
		return m.To, nil
	}
	addr, err := readAddressFile(m.ToFile)
	if err != nil {
		return nil, err
	}
	return []string{addr}, nil
}

func readAddressFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("config: reading address file: %w", err)
	}
	addr := strings.TrimSpace(strings.NewReplacer("\r", "", "\n", "").Replace(string(data)))
	if addr == "" {
		return "", fmt.Errorf("config: address file %s is empty", path)
	}
	return addr, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// LogFilePath returns LOG_FILE, or logs.log next to the executable. It is
// usable before the rest of the configuration validates so that
// configuration errors can be logged.
func LogFilePath(getenv Getenv) string {
	if p := strings.TrimSpace(getenv("LOG_FILE")); p != "" {
		return p
	}
	exe, err := os.Executable()
	if err != nil {
		return DefaultLogFileName
	}
	return filepath.Join(filepath.Dir(exe), DefaultLogFileName)
}
