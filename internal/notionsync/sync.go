// Package notionsync mirrors a user's ledger into Notion databases. The
// ledger is authoritative: pages are created or updated to match it and
// pages for entities that no longer exist are archived.
package notionsync

import (
	"context"
	"fmt"
	"time"

	"github.com/jomei/notionapi"
	"github.com/rs/zerolog"

	"github.com/dvloznov/wealthflow/internal/domain"
)

// Databases holds the target database ids. An empty id skips that collection.
type Databases struct {
	Accounts     string
	Transactions string
	Stocks       string
}

// Result counts the page operations of one collection.
type Result struct {
	Created  int `json:"created"`
	Updated  int `json:"updated"`
	Archived int `json:"archived"`
	Failed   int `json:"failed"`
}

// Summary is the outcome of a full sync.
type Summary struct {
	Accounts     Result `json:"accounts"`
	Transactions Result `json:"transactions"`
	Stocks       Result `json:"stocks"`
}

// Syncer writes ledgers to Notion.
type Syncer struct {
	client NotionService
	dbs    Databases
	dryRun bool
	log    zerolog.Logger
}

// NewSyncer creates a Syncer. In dry-run mode every operation is logged
// and counted but nothing is written.
func NewSyncer(client NotionService, dbs Databases, dryRun bool, log zerolog.Logger) *Syncer {
	return &Syncer{client: client, dbs: dbs, dryRun: dryRun, log: log}
}

// row is one ledger entity rendered as page properties.
type row struct {
	id    string
	props notionapi.Properties
}

// Sync mirrors the ledger. Transactions outside [from, to) are left out of
// the mirror; zero bounds are open.
func (s *Syncer) Sync(ctx context.Context, ledger domain.Ledger, from, to time.Time) (Summary, error) {
	var sum Summary
	var err error

	if s.dbs.Accounts != "" {
		rows := make([]row, 0, len(ledger.Accounts))
		for _, a := range ledger.Accounts {
			rows = append(rows, row{id: a.ID, props: AccountProperties(a)})
		}
		if sum.Accounts, err = s.mirror(ctx, "accounts", s.dbs.Accounts, rows); err != nil {
			return sum, fmt.Errorf("Sync: %w", err)
		}
	}

	if s.dbs.Transactions != "" {
		names := make(map[string]string, len(ledger.Accounts))
		for _, a := range ledger.Accounts {
			names[a.ID] = a.Name
		}
		var rows []row
		for _, tx := range ledger.Transactions {
			if !inRange(tx.Date, from, to) {
				continue
			}
			rows = append(rows, row{id: tx.ID, props: TransactionProperties(tx, names)})
		}
		if sum.Transactions, err = s.mirror(ctx, "transactions", s.dbs.Transactions, rows); err != nil {
			return sum, fmt.Errorf("Sync: %w", err)
		}
	}

	if s.dbs.Stocks != "" {
		rows := make([]row, 0, len(ledger.Stocks))
		for _, h := range ledger.Stocks {
			rows = append(rows, row{id: h.ID, props: StockProperties(h)})
		}
		if sum.Stocks, err = s.mirror(ctx, "stocks", s.dbs.Stocks, rows); err != nil {
			return sum, fmt.Errorf("Sync: %w", err)
		}
	}

	return sum, nil
}

func inRange(t, from, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && !t.Before(to) {
		return false
	}
	return true
}

// mirror makes databaseID match rows. Failures on single pages are logged
// and counted; only a failed database query aborts.
func (s *Syncer) mirror(ctx context.Context, collection, databaseID string, rows []row) (Result, error) {
	log := s.log.With().Str("collection", collection).Bool("dry_run", s.dryRun).Logger()
	var res Result

	pages, err := queryAllPages(ctx, s.client, databaseID)
	if err != nil {
		return res, fmt.Errorf("mirroring %s: %w", collection, err)
	}
	log.Info().Int("rows", len(rows)).Int("notion_pages", len(pages)).Msg("Mirroring collection to Notion")

	wanted := make(map[string]bool, len(rows))
	for _, r := range rows {
		wanted[r.id] = true
	}

	existing := make(map[string]string, len(pages))
	for _, page := range pages {
		id := pageLedgerID(page)
		_, dup := existing[id]
		if id == "" || !wanted[id] || dup {
			if s.archive(ctx, log, string(page.ID), id) {
				res.Archived++
			} else {
				res.Failed++
			}
			continue
		}
		existing[id] = string(page.ID)
	}

	for _, r := range rows {
		pageID, ok := existing[r.id]
		if s.dryRun {
			if ok {
				res.Updated++
			} else {
				res.Created++
			}
			continue
		}

		if ok {
			if _, err := s.client.UpdatePage(ctx, pageID, r.props); err != nil {
				log.Warn().Err(err).Str("ledger_id", r.id).Str("page_id", pageID).Msg("Failed to update Notion page")
				res.Failed++
				continue
			}
			res.Updated++
			continue
		}

		page, err := s.client.CreatePage(ctx, databaseID, r.props)
		if err != nil {
			log.Warn().Err(err).Str("ledger_id", r.id).Msg("Failed to create Notion page")
			res.Failed++
			continue
		}
		log.Debug().Str("ledger_id", r.id).Str("page_id", string(page.ID)).Msg("Created Notion page")
		res.Created++
	}

	log.Info().
		Int("created", res.Created).
		Int("updated", res.Updated).
		Int("archived", res.Archived).
		Int("failed", res.Failed).
		Msg("Collection mirrored")
	return res, nil
}

func (s *Syncer) archive(ctx context.Context, log zerolog.Logger, pageID, ledgerID string) bool {
	if s.dryRun {
		log.Info().Str("ledger_id", ledgerID).Str("page_id", pageID).Msg("[DRY RUN] Would archive stale Notion page")
		return true
	}
	if err := s.client.ArchivePage(ctx, pageID); err != nil {
		log.Warn().Err(err).Str("ledger_id", ledgerID).Str("page_id", pageID).Msg("Failed to archive stale Notion page")
		return false
	}
	return true
}

// queryAllPages pages through a whole database.
func queryAllPages(ctx context.Context, client NotionService, databaseID string) ([]notionapi.Page, error) {
	var pages []notionapi.Page
	var cursor notionapi.Cursor

	for {
		req := &notionapi.DatabaseQueryRequest{PageSize: 100}
		if cursor != "" {
			req.StartCursor = cursor
		}

		resp, err := client.QueryDatabase(ctx, databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("queryAllPages: %w", err)
		}
		pages = append(pages, resp.Results...)

		if !resp.HasMore {
			return pages, nil
		}
		cursor = resp.NextCursor
	}
}
