package warehouse

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/generations-billing/internal/billing"
	"github.com/dvloznov/generations-billing/internal/domain"
	"github.com/dvloznov/generations-billing/internal/keypair"
	"github.com/dvloznov/generations-billing/internal/logger"
	"github.com/pkg/errors"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

const googleTokenURI = "https://oauth2.googleapis.com/token"

// BigQuery implements Warehouse on BigQuery. Account is the project that owns
// the billing dataset (LoadDB); LookupDB is the project holding the Fivetran
// SALESFORCE dataset.
type BigQuery struct {
	client *bigquery.Client
	opts   Options
}

// accountRow is one row of the SALESFORCE.ACCOUNT lookup.
type accountRow struct {
	ID       string              `bigquery:"id"`
	LegacyID bigquery.NullString `bigquery:"legacy_id_c"`
	Name     bigquery.NullString `bigquery:"name"`
}

// billingRow saves an ImportRow under the billing table's column names.
type billingRow struct {
	domain.ImportRow
}

// Save implements bigquery.ValueSaver. An empty insert id disables
// best-effort de-duplication, matching plain appends.
func (r billingRow) Save() (map[string]bigquery.Value, string, error) {
	values := billing.ImportValues(r.ImportRow)
	row := make(map[string]bigquery.Value, len(values))
	for i, col := range billing.ImportColumns {
		row[col] = values[i]
	}
	return row, "", nil
}

// ServiceAccountJSON builds a service-account credential from the warehouse
// user (client email) and the decrypted key pair.
func ServiceAccountJSON(project, clientEmail string, key *keypair.Key) ([]byte, error) {
	return json.Marshal(map[string]string{
		"type":         "service_account",
		"project_id":   project,
		"client_email": clientEmail,
		"private_key":  string(key.PEM()),
		"token_uri":    googleTokenURI,
	})
}

// OpenBigQuery creates a client for opts.Account authenticated with key.
func OpenBigQuery(ctx context.Context, opts Options, key *keypair.Key) (*BigQuery, error) {
	creds, err := ServiceAccountJSON(opts.Account, opts.User, key)
	if err != nil {
		return nil, errors.Wrap(err, "OpenBigQuery: building credentials")
	}

	client, err := bigquery.NewClient(ctx, opts.Account, option.WithCredentialsJSON(creds))
	if err != nil {
		return nil, errors.Wrap(err, "OpenBigQuery: creating client")
	}
	return &BigQuery{client: client, opts: opts}, nil
}

// Close closes the BigQuery client connection.
func (b *BigQuery) Close() error {
	if b.client != nil {
		return b.client.Close()
	}
	return nil
}

// LookupQuery is the account lookup in standard SQL.
func (b *BigQuery) LookupQuery() string {
	return fmt.Sprintf("SELECT id, legacy_id_c, name FROM `%s.SALESFORCE.ACCOUNT` WHERE is_deleted = false AND legacy_id_c IS NOT NULL",
		b.opts.LookupDB)
}

// LookupAccounts runs the account lookup.
func (b *BigQuery) LookupAccounts(ctx context.Context) ([]domain.AccountRecord, error) {
	it, err := b.client.Query(b.LookupQuery()).Read(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "LookupAccounts: reading query")
	}

	var accounts []domain.AccountRecord
	for {
		var row accountRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "LookupAccounts: iterating")
		}
		accounts = append(accounts, domain.AccountRecord{
			ID:       row.ID,
			LegacyID: row.LegacyID.StringVal,
			Name:     row.Name.StringVal,
		})
	}

	log := logger.FromContext(ctx)
	log.Debug().Int("accounts", len(accounts)).Msg("Loaded Salesforce accounts")
	return accounts, nil
}

func (b *BigQuery) table() *bigquery.Table {
	return b.client.DatasetInProject(b.opts.Account, b.opts.LoadDB).Table(b.opts.BillingTable)
}

// AppendBillingRows streams rows into the billing table in one request.
func (b *BigQuery) AppendBillingRows(ctx context.Context, rows []domain.ImportRow) error {
	if len(rows) == 0 {
		return nil
	}

	savers := make([]bigquery.ValueSaver, len(rows))
	for i, r := range rows {
		savers[i] = billingRow{r}
	}

	if err := b.table().Inserter().Put(ctx, savers); err != nil {
		return errors.Wrapf(err, "AppendBillingRows: inserting %d rows", len(rows))
	}
	return nil
}

// BillingSchema is the BigQuery schema of the billing table.
func BillingSchema() bigquery.Schema {
	return bigquery.Schema{
		{Name: "VENDORID", Type: bigquery.StringFieldType, Required: true},
		{Name: "ENVIRONMENTCODE", Type: bigquery.StringFieldType, Required: true},
		{Name: "VENDORNAME", Type: bigquery.StringFieldType},
		{Name: "HHAXUNIQUEID", Type: bigquery.StringFieldType},
		{Name: "COMPONENT", Type: bigquery.StringFieldType},
		{Name: "VALUE", Type: bigquery.NumericFieldType},
		{Name: "MONTHYEAR", Type: bigquery.StringFieldType, Required: true},
	}
}

// EnsureBillingTable creates the billing table, treating "already exists" as success.
func (b *BigQuery) EnsureBillingTable(ctx context.Context) error {
	err := b.table().Create(ctx, &bigquery.TableMetadata{Schema: BillingSchema()})
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Code == http.StatusConflict {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "EnsureBillingTable")
	}
	return nil
}
