package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/dvloznov/sheetledger/internal/auth"
	"github.com/dvloznov/sheetledger/internal/domain"
	"github.com/dvloznov/sheetledger/internal/gridparse"
	infraBQ "github.com/dvloznov/sheetledger/internal/infra/bigquery"
	"github.com/dvloznov/sheetledger/internal/ledger"
	"github.com/spf13/cobra"
)

func (c *cli) detectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "detect",
		Short: "Score every sheet of the spreadsheet as a ledger candidate",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := c.context(cmd)
			s, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			ref, err := c.spreadsheetRef()
			if err != nil {
				return err
			}
			detection, err := s.svc.DetectSheets(ctx, ref)
			if err != nil {
				return err
			}
			for _, skipped := range detection.Skipped {
				fmt.Fprintf(c.errOut, "warning: %v\n", skipped)
			}
			return c.print(detection.Candidates)
		},
	}
}

func (c *cli) configureCmd() *cobra.Command {
	var sheetType string
	cmd := &cobra.Command{
		Use:   "configure",
		Short: "Detect and store the column schema of the selected sheet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := c.context(cmd)
			s, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			detail, err := c.ensureSheet(ctx, s, sheetType)
			if err != nil {
				return err
			}
			return c.print(detail)
		},
	}
	cmd.Flags().StringVar(&sheetType, "type", string(domain.SheetTypeTransactions), "Sheet type: transactions, categories, balances, budget")
	return cmd
}

func (c *cli) sheetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sheets",
		Short: "List the sheets stored for the owner",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := c.context(cmd)
			s, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			sheets, err := s.svc.ListSheets(ctx, s.owner)
			if err != nil {
				return err
			}
			return c.print(sheets)
		},
	}
}

func (c *cli) listCmd() *cobra.Command {
	var (
		filters       gridparse.Filters
		page, perPage int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List transactions of the selected sheet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if filters.FromDate != "" {
				from, ok := gridparse.ParseDate(filters.FromDate)
				if !ok {
					return fmt.Errorf("invalid --from date: %s", filters.FromDate)
				}
				filters.FromDate = from.String()
			}

			ctx := c.context(cmd)
			s, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			detail, err := c.ensureSheet(ctx, s, string(domain.SheetTypeTransactions))
			if err != nil {
				return err
			}
			result, err := s.svc.ListTransactions(ctx, s.owner, detail.Sheet.ID, filters, page, perPage)
			if err != nil {
				return err
			}
			return c.print(result)
		},
	}
	f := cmd.Flags()
	f.BoolVar(&filters.UncategorizedOnly, "uncategorized", false, "Only transactions without a category")
	f.StringVar(&filters.Account, "account", "", "Only transactions of this account")
	f.StringVar(&filters.FromDate, "from", "", "Only transactions on or after this date")
	f.IntVar(&page, "page", 1, "Page number")
	f.IntVar(&perPage, "per-page", 0, "Transactions per page (default: LEDGER_DEFAULT_PER_PAGE)")
	return cmd
}

func (c *cli) getCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <transaction-id>",
		Short: "Show one transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := c.context(cmd)
			s, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			detail, err := c.ensureSheet(ctx, s, string(domain.SheetTypeTransactions))
			if err != nil {
				return err
			}
			tx, err := s.svc.GetTransaction(ctx, s.owner, detail.Sheet.ID, args[0])
			if err != nil {
				return err
			}
			return c.print(tx)
		},
	}
}

func (c *cli) updateCmd() *cobra.Command {
	var category, note, tags string
	cmd := &cobra.Command{
		Use:   "update <transaction-id>",
		Short: "Write category, note or tags of a transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var update ledger.TransactionUpdate
			if cmd.Flags().Changed("category") {
				update.Category = &category
			}
			if cmd.Flags().Changed("note") {
				update.Note = &note
			}
			if cmd.Flags().Changed("tags") {
				update.Tags = splitTags(tags)
			}

			ctx := c.context(cmd)
			s, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			detail, err := c.ensureSheet(ctx, s, string(domain.SheetTypeTransactions))
			if err != nil {
				return err
			}
			report, err := s.svc.UpdateTransaction(ctx, s.owner, detail.Sheet.ID, args[0], update)
			if err != nil {
				return err
			}
			if err := c.print(report); err != nil {
				return err
			}
			if !report.Complete() {
				return fmt.Errorf("some fields were not written")
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&category, "category", "", "Category to set")
	f.StringVar(&note, "note", "", "Note to set")
	f.StringVar(&tags, "tags", "", "Comma-separated tags to set")
	return cmd
}

func (c *cli) addCmd() *cobra.Command {
	var (
		input ledger.NewTransaction
		tags  string
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Append a transaction to the selected sheet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			input.Tags = splitTags(tags)

			ctx := c.context(cmd)
			s, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			detail, err := c.ensureSheet(ctx, s, string(domain.SheetTypeTransactions))
			if err != nil {
				return err
			}
			tx, err := s.svc.CreateTransaction(ctx, s.owner, detail.Sheet.ID, input)
			if err != nil {
				return err
			}
			return c.print(tx)
		},
	}
	f := cmd.Flags()
	f.StringVar(&input.Date, "date", time.Now().Format(time.DateOnly), "Transaction date")
	f.StringVar(&input.Description, "description", "", "Description")
	f.StringVar(&input.Amount, "amount", "", "Signed amount")
	f.StringVar(&input.Account, "account", "", "Account")
	f.StringVar(&input.Category, "category", "", "Category")
	f.StringVar(&input.Note, "note", "", "Note")
	f.StringVar(&tags, "tags", "", "Comma-separated tags")
	return cmd
}

func (c *cli) addMobileIDCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add-mobile-id",
		Short: "Add the stable id column to the selected sheet and fill it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := c.context(cmd)
			s, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			detail, err := c.ensureSheet(ctx, s, string(domain.SheetTypeTransactions))
			if err != nil {
				return err
			}
			result, err := s.svc.AddMobileIDColumn(ctx, s.owner, detail.Sheet.ID)
			if err != nil {
				return err
			}
			return c.print(result)
		},
	}
}

func (c *cli) categoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List categories from the owner's categories sheet, or the defaults",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := c.context(cmd)
			s, err := c.open(ctx)
			if err != nil {
				return err
			}
			defer s.Close()

			categories, err := s.svc.ListCategories(ctx, s.owner)
			if err != nil {
				return err
			}
			return c.print(categories)
		},
	}
}

func (c *cli) tokenCmd() *cobra.Command {
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token <owner>",
		Short: "Issue an API bearer token for owner",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(c.cfg.Auth.JWTSecret) < 32 {
				return fmt.Errorf("JWT_SECRET must be set to issue tokens")
			}
			if ttl <= 0 {
				ttl = c.cfg.Auth.TokenTTL
			}
			token, err := auth.NewTokenService(c.cfg.Auth.JWTSecret, c.cfg.Auth.Issuer).Issue(args[0], ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(c.out, token)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "Token lifetime (default: JWT_TOKEN_TTL)")
	return cmd
}

func (c *cli) auditCmd() *cobra.Command {
	var (
		sheetID string
		since   time.Duration
		limit   int
	)
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show the owner's recorded cell writes from BigQuery",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !c.cfg.Audit.Enabled() {
				return fmt.Errorf("AUDIT_BQ_PROJECT is not set")
			}
			owner := c.owner
			if owner == "" {
				owner = c.cfg.Auth.LocalOwner
			}

			ctx := c.context(cmd)
			repo, err := infraBQ.NewAuditRepository(ctx, infraBQ.Config{
				ProjectID: c.cfg.Audit.ProjectID,
				DatasetID: c.cfg.Audit.DatasetID,
				Table:     c.cfg.Audit.Table,
			})
			if err != nil {
				return err
			}
			defer repo.Close()

			filter := infraBQ.AuditFilter{Owner: owner, SheetID: sheetID, Limit: limit}
			if since > 0 {
				filter.Since = time.Now().Add(-since)
			}
			entries, err := repo.ListEntries(ctx, filter)
			if err != nil {
				return err
			}
			return c.print(entries)
		},
	}
	f := cmd.Flags()
	f.StringVar(&sheetID, "sheet-id", "", "Only entries of this stored sheet")
	f.DurationVar(&since, "since", 24*time.Hour, "How far back to look (0 for everything)")
	f.IntVar(&limit, "limit", 100, "Maximum number of entries")
	return cmd
}

func splitTags(s string) []string {
	var tags []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
