package bigquery

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/wealthflow/internal/domain"
	"github.com/dvloznov/wealthflow/internal/remote"
)

// DefaultPollInterval is how often a live feed checks for new revisions.
const DefaultPollInterval = 5 * time.Second

// Adapter implements remote.Adapter on BigQuery. Every write is a
// multi-statement transaction; the live feed polls the user's revision.
type Adapter struct {
	client    *bigquery.Client
	projectID string
	datasetID string
	poll      time.Duration
	seed      bool
	now       func() time.Time
	log       zerolog.Logger
}

// NewAdapter creates a BigQuery client for projectID and wraps it.
func NewAdapter(ctx context.Context, projectID, datasetID string, poll time.Duration, seed bool, log zerolog.Logger) (*Adapter, error) {
	client, err := bigquery.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewAdapter: creating client: %w", err)
	}
	return NewAdapterWithClient(client, datasetID, poll, seed, log), nil
}

// NewAdapterWithClient creates an adapter on an existing client.
func NewAdapterWithClient(client *bigquery.Client, datasetID string, poll time.Duration, seed bool, log zerolog.Logger) *Adapter {
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	return &Adapter{
		client:    client,
		projectID: client.Project(),
		datasetID: datasetID,
		poll:      poll,
		seed:      seed,
		now:       time.Now,
		log:       log,
	}
}

// Close closes the BigQuery client connection.
func (a *Adapter) Close() error {
	if a.client != nil {
		return a.client.Close()
	}
	return nil
}

func (a *Adapter) table(name string) string {
	return "`" + a.projectID + "." + a.datasetID + "." + name + "`"
}

// exec runs a statement and waits for it to finish.
func (a *Adapter) exec(ctx context.Context, sql string, params ...bigquery.QueryParameter) error {
	q := a.client.Query(sql)
	q.Parameters = params

	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("run query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("wait for job: %w", err)
	}

	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}

	return nil
}

// write runs s for userID and returns the revision it committed at.
func (a *Adapter) write(ctx context.Context, op, userID string, s *script) (remote.Revision, error) {
	q := a.client.Query(s.sql(a.table))
	q.Parameters = append([]bigquery.QueryParameter{{Name: "user_id", Value: userID}}, s.params...)

	it, err := q.Read(ctx)
	if err != nil {
		if strings.Contains(err.Error(), notFoundMarker) {
			return 0, fmt.Errorf("%s: %w", op, remote.ErrNotFound)
		}
		return 0, fmt.Errorf("%s: running script: %w", op, err)
	}

	var row struct {
		Revision int64 `bigquery:"revision"`
	}
	err = it.Next(&row)
	if err == iterator.Done {
		return 0, fmt.Errorf("%s: user %s is not initialized", op, userID)
	}
	if err != nil {
		return 0, fmt.Errorf("%s: reading revision: %w", op, err)
	}

	a.log.Debug().Str("op", op).Str("user_id", userID).Int64("revision", row.Revision).Msg("BigQuery write committed")
	return remote.Revision(row.Revision), nil
}

// InitUserData implements remote.Adapter.
func (a *Adapter) InitUserData(ctx context.Context, user domain.User) error {
	err := a.exec(ctx, `
		MERGE `+a.table("users")+` T
		USING (SELECT @user_id AS user_id, @name AS name, @email AS email) S
		ON T.user_id = S.user_id
		WHEN MATCHED THEN UPDATE SET
			name = IF(S.name = '', T.name, S.name),
			email = IF(S.email = '', T.email, S.email)
		WHEN NOT MATCHED THEN INSERT
			(user_id, name, email, revision, accounts_revision, transactions_revision, stocks_revision)
			VALUES (S.user_id, S.name, S.email, 0, 0, 0, 0)
	`,
		bigquery.QueryParameter{Name: "user_id", Value: user.ID},
		bigquery.QueryParameter{Name: "name", Value: user.Name},
		bigquery.QueryParameter{Name: "email", Value: user.Email},
	)
	if err != nil {
		return fmt.Errorf("InitUserData: upserting user: %w", err)
	}

	if !a.seed {
		return nil
	}

	s, err := a.seedScript(user.ID, remote.SampleData(user.ID, a.now()))
	if err != nil {
		return fmt.Errorf("InitUserData: %w", err)
	}
	rev, err := a.write(ctx, "InitUserData", user.ID, s)
	if err != nil {
		return err
	}

	a.log.Info().Str("user_id", user.ID).Int64("revision", int64(rev)).Msg("User data initialized")
	return nil
}

// seedScript inserts the sample ledger unless the user already has accounts.
func (a *Adapter) seedScript(userID string, ledger domain.Ledger) (*script, error) {
	accounts := make([]AccountRow, 0, len(ledger.Accounts))
	for _, acc := range ledger.Accounts {
		accounts = append(accounts, accountRow(userID, acc))
	}
	txs := make([]TransactionRow, 0, len(ledger.Transactions))
	for _, tx := range ledger.Transactions {
		txs = append(txs, transactionRow(userID, tx))
	}
	stocks := make([]StockRow, 0, len(ledger.Stocks))
	for _, h := range ledger.Stocks {
		row, err := stockRow(userID, h)
		if err != nil {
			return nil, err
		}
		stocks = append(stocks, row)
	}

	s := &script{
		guard:   "NOT EXISTS (SELECT 1 FROM " + a.table("accounts") + " WHERE user_id = @user_id)",
		changed: remote.Collections,
	}
	s.add(`INSERT INTO `+a.table("accounts")+` (account_id, user_id, name, account_type, balance, currency)
		SELECT account_id, user_id, name, account_type, balance, currency FROM UNNEST(@seed_accounts)`,
		bigquery.QueryParameter{Name: "seed_accounts", Value: accounts})
	s.add(`INSERT INTO `+a.table("transactions")+` (transaction_id, user_id, account_id, amount, tx_date, tx_type, category, note)
		SELECT transaction_id, user_id, account_id, amount, tx_date, tx_type, category, note FROM UNNEST(@seed_transactions)`,
		bigquery.QueryParameter{Name: "seed_transactions", Value: txs})
	s.add(`INSERT INTO `+a.table("stocks")+` (holding_id, user_id, symbol, name, shares, average_cost, current_price, last_updated, sources_json)
		SELECT holding_id, user_id, symbol, name, shares, average_cost, current_price, last_updated, sources_json FROM UNNEST(@seed_stocks)`,
		bigquery.QueryParameter{Name: "seed_stocks", Value: stocks})
	return s, nil
}

func accountParams(prefix string, row AccountRow) []bigquery.QueryParameter {
	return []bigquery.QueryParameter{
		{Name: prefix + "account_id", Value: row.AccountID},
		{Name: prefix + "name", Value: row.Name},
		{Name: prefix + "account_type", Value: row.AccountType},
		{Name: prefix + "balance", Value: row.Balance},
		{Name: prefix + "currency", Value: row.Currency},
	}
}

// AddAccount implements remote.Adapter.
func (a *Adapter) AddAccount(ctx context.Context, userID string, account domain.Account) (remote.Revision, error) {
	s := &script{changed: []remote.Collection{remote.CollectionAccounts}}
	s.add(`INSERT INTO `+a.table("accounts")+` (account_id, user_id, name, account_type, balance, currency)
		VALUES (@account_id, @user_id, @name, @account_type, @balance, @currency)`,
		accountParams("", accountRow(userID, account))...)
	return a.write(ctx, "AddAccount", userID, s)
}

// UpdateAccount implements remote.Adapter.
func (a *Adapter) UpdateAccount(ctx context.Context, userID string, account domain.Account) (remote.Revision, error) {
	s := &script{changed: []remote.Collection{remote.CollectionAccounts}}
	s.requireRow("SELECT 1 FROM " + a.table("accounts") + " WHERE user_id = @user_id AND account_id = @account_id")
	s.add(`UPDATE `+a.table("accounts")+`
		SET name = @name, account_type = @account_type, balance = @balance, currency = @currency
		WHERE user_id = @user_id AND account_id = @account_id`,
		accountParams("", accountRow(userID, account))...)
	return a.write(ctx, "UpdateAccount", userID, s)
}

// DeleteAccount implements remote.Adapter.
func (a *Adapter) DeleteAccount(ctx context.Context, userID, accountID string) (remote.Revision, error) {
	s := &script{
		guard:   "EXISTS (SELECT 1 FROM " + a.table("accounts") + " WHERE user_id = @user_id AND account_id = @account_id)",
		changed: []remote.Collection{remote.CollectionAccounts},
	}
	s.add(`DELETE FROM `+a.table("accounts")+` WHERE user_id = @user_id AND account_id = @account_id`,
		bigquery.QueryParameter{Name: "account_id", Value: accountID})
	return a.write(ctx, "DeleteAccount", userID, s)
}

// setBalances overwrites each reconciled balance, raising if an account is gone.
func (a *Adapter) setBalances(s *script, reconciled []domain.Account) {
	for i, acc := range reconciled {
		id := fmt.Sprintf("rec_id_%d", i)
		bal := fmt.Sprintf("rec_balance_%d", i)
		s.requireRow("SELECT 1 FROM " + a.table("accounts") + " WHERE user_id = @user_id AND account_id = @" + id)
		s.add(`UPDATE `+a.table("accounts")+` SET balance = @`+bal+` WHERE user_id = @user_id AND account_id = @`+id,
			bigquery.QueryParameter{Name: id, Value: acc.ID},
			bigquery.QueryParameter{Name: bal, Value: acc.Balance},
		)
	}
	if len(reconciled) > 0 {
		s.changed = append(s.changed, remote.CollectionAccounts)
	}
}

// AddTransaction implements remote.Adapter.
func (a *Adapter) AddTransaction(ctx context.Context, userID string, tx domain.Transaction, reconciled []domain.Account) (remote.Revision, error) {
	row := transactionRow(userID, tx)
	s := &script{changed: []remote.Collection{remote.CollectionTransactions}}
	a.setBalances(s, reconciled)
	s.add(`INSERT INTO `+a.table("transactions")+` (transaction_id, user_id, account_id, amount, tx_date, tx_type, category, note)
		VALUES (@transaction_id, @user_id, @account_id, @amount, @tx_date, @tx_type, @category, @note)`,
		bigquery.QueryParameter{Name: "transaction_id", Value: row.TransactionID},
		bigquery.QueryParameter{Name: "account_id", Value: row.AccountID},
		bigquery.QueryParameter{Name: "amount", Value: row.Amount},
		bigquery.QueryParameter{Name: "tx_date", Value: row.TxDate},
		bigquery.QueryParameter{Name: "tx_type", Value: row.TxType},
		bigquery.QueryParameter{Name: "category", Value: row.Category},
		bigquery.QueryParameter{Name: "note", Value: row.Note},
	)
	return a.write(ctx, "AddTransaction", userID, s)
}

// DeleteTransaction implements remote.Adapter.
func (a *Adapter) DeleteTransaction(ctx context.Context, userID, txID string, reconciled []domain.Account) (remote.Revision, error) {
	s := &script{
		guard:   "EXISTS (SELECT 1 FROM " + a.table("transactions") + " WHERE user_id = @user_id AND transaction_id = @transaction_id)",
		changed: []remote.Collection{remote.CollectionTransactions},
	}
	a.setBalances(s, reconciled)
	s.add(`DELETE FROM `+a.table("transactions")+` WHERE user_id = @user_id AND transaction_id = @transaction_id`,
		bigquery.QueryParameter{Name: "transaction_id", Value: txID})
	return a.write(ctx, "DeleteTransaction", userID, s)
}

// AddStock implements remote.Adapter.
func (a *Adapter) AddStock(ctx context.Context, userID string, holding domain.StockHolding) (remote.Revision, error) {
	row, err := stockRow(userID, holding)
	if err != nil {
		return 0, fmt.Errorf("AddStock: %w", err)
	}
	s := &script{changed: []remote.Collection{remote.CollectionStocks}}
	s.add(`INSERT INTO `+a.table("stocks")+` (holding_id, user_id, symbol, name, shares, average_cost, current_price, last_updated, sources_json)
		VALUES (@holding_id, @user_id, @symbol, @name, @shares, @average_cost, @current_price, @last_updated, @sources_json)`,
		bigquery.QueryParameter{Name: "holding_id", Value: row.HoldingID},
		bigquery.QueryParameter{Name: "symbol", Value: row.Symbol},
		bigquery.QueryParameter{Name: "name", Value: row.Name},
		bigquery.QueryParameter{Name: "shares", Value: row.Shares},
		bigquery.QueryParameter{Name: "average_cost", Value: row.AverageCost},
		bigquery.QueryParameter{Name: "current_price", Value: row.CurrentPrice},
		bigquery.QueryParameter{Name: "last_updated", Value: row.LastUpdated},
		bigquery.QueryParameter{Name: "sources_json", Value: row.SourcesJSON},
	)
	return a.write(ctx, "AddStock", userID, s)
}

// DeleteStock implements remote.Adapter.
func (a *Adapter) DeleteStock(ctx context.Context, userID, holdingID string) (remote.Revision, error) {
	s := &script{
		guard:   "EXISTS (SELECT 1 FROM " + a.table("stocks") + " WHERE user_id = @user_id AND holding_id = @holding_id)",
		changed: []remote.Collection{remote.CollectionStocks},
	}
	s.add(`DELETE FROM `+a.table("stocks")+` WHERE user_id = @user_id AND holding_id = @holding_id`,
		bigquery.QueryParameter{Name: "holding_id", Value: holdingID})
	return a.write(ctx, "DeleteStock", userID, s)
}

// UpdateStocks implements remote.Adapter. The batch is one MERGE.
func (a *Adapter) UpdateStocks(ctx context.Context, userID string, holdings []domain.StockHolding) (remote.Revision, error) {
	if len(holdings) == 0 {
		return a.revision(ctx, userID)
	}

	rows := make([]StockRow, 0, len(holdings))
	for _, h := range holdings {
		row, err := stockRow(userID, h)
		if err != nil {
			return 0, fmt.Errorf("UpdateStocks: %w", err)
		}
		rows = append(rows, row)
	}

	s := &script{changed: []remote.Collection{remote.CollectionStocks}}
	s.add(`MERGE `+a.table("stocks")+` T
		USING UNNEST(@holdings) S
		ON T.user_id = @user_id AND T.holding_id = S.holding_id
		WHEN MATCHED THEN UPDATE SET
			symbol = S.symbol, name = S.name, shares = S.shares, average_cost = S.average_cost,
			current_price = S.current_price, last_updated = S.last_updated, sources_json = S.sources_json
		WHEN NOT MATCHED THEN INSERT
			(holding_id, user_id, symbol, name, shares, average_cost, current_price, last_updated, sources_json)
			VALUES (S.holding_id, @user_id, S.symbol, S.name, S.shares, S.average_cost, S.current_price, S.last_updated, S.sources_json)`,
		bigquery.QueryParameter{Name: "holdings", Value: rows})
	return a.write(ctx, "UpdateStocks", userID, s)
}

// revision reads the user's current revision.
func (a *Adapter) revision(ctx context.Context, userID string) (remote.Revision, error) {
	q := a.client.Query(`SELECT revision FROM ` + a.table("users") + ` WHERE user_id = @user_id`)
	q.Parameters = []bigquery.QueryParameter{{Name: "user_id", Value: userID}}

	it, err := q.Read(ctx)
	if err != nil {
		return 0, fmt.Errorf("revision: reading query: %w", err)
	}

	var row struct {
		Revision int64 `bigquery:"revision"`
	}
	err = it.Next(&row)
	if errors.Is(err, iterator.Done) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("revision: iterating: %w", err)
	}
	return remote.Revision(row.Revision), nil
}

// state reads the user row and every collection in a single query.
func (a *Adapter) state(ctx context.Context, userID string) (remote.State, error) {
	q := a.client.Query(`
		SELECT
			u.revision,
			u.accounts_revision,
			u.transactions_revision,
			u.stocks_revision,
			ARRAY(
				SELECT AS STRUCT account_id, user_id, name, account_type, balance, currency
				FROM ` + a.table("accounts") + `
				WHERE user_id = @user_id
			) AS accounts,
			ARRAY(
				SELECT AS STRUCT transaction_id, user_id, account_id, amount, tx_date, tx_type, category, note
				FROM ` + a.table("transactions") + `
				WHERE user_id = @user_id
			) AS transactions,
			ARRAY(
				SELECT AS STRUCT holding_id, user_id, symbol, name, shares, average_cost, current_price, last_updated, sources_json
				FROM ` + a.table("stocks") + `
				WHERE user_id = @user_id
			) AS stocks
		FROM ` + a.table("users") + ` u
		WHERE u.user_id = @user_id
	`)
	q.Parameters = []bigquery.QueryParameter{{Name: "user_id", Value: userID}}

	it, err := q.Read(ctx)
	if err != nil {
		return remote.State{}, fmt.Errorf("state: reading query: %w", err)
	}

	var row StateRow
	err = it.Next(&row)
	if errors.Is(err, iterator.Done) {
		return remote.State{}, nil
	}
	if err != nil {
		return remote.State{}, fmt.Errorf("state: iterating: %w", err)
	}
	return row.toState()
}

// Subscribe implements remote.Adapter.
func (a *Adapter) Subscribe(ctx context.Context, userID string) (remote.Feed, error) {
	log := a.log.With().Str("user_id", userID).Str("backend", "bigquery").Logger()
	feed, err := remote.Watch(ctx, remote.Watcher{
		Load:  func(ctx context.Context) (remote.State, error) { return a.state(ctx, userID) },
		Probe: func(ctx context.Context) (remote.Revision, error) { return a.revision(ctx, userID) },
		Wake:  remote.Every(a.poll),
	}, log)
	if err != nil {
		return nil, fmt.Errorf("Subscribe: %w", err)
	}
	return feed, nil
}

var _ remote.Adapter = (*Adapter)(nil)
