package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/dvloznov/sheetledger/internal/audit"
	"github.com/dvloznov/sheetledger/internal/bootstrap"
	"github.com/dvloznov/sheetledger/internal/config"
	"github.com/dvloznov/sheetledger/internal/gcs"
	"github.com/dvloznov/sheetledger/internal/ledger"
	"github.com/dvloznov/sheetledger/internal/logger"
	"github.com/dvloznov/sheetledger/internal/rangestore"
	"github.com/dvloznov/sheetledger/internal/rangestore/xlsx"
	"github.com/spf13/cobra"
)

// workbookRef names the spreadsheet when a local workbook is used.
const workbookRef = "workbook"

// cli holds the global flags and the environment of one invocation.
type cli struct {
	getenv func(string) string
	out    io.Writer
	errOut io.Writer

	xlsxPath    string
	spreadsheet string
	sheetName   string
	owner       string
	pretty      bool

	cfg *config.Config
}

// session is an opened ledger service plus what it needs released.
type session struct {
	svc     *ledger.Service
	owner   string
	closers []func()
}

func (s *session) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

func newRootCmd(getenv func(string) string, out, errOut io.Writer) *cobra.Command {
	c := &cli{getenv: getenv, out: out, errOut: errOut}

	rootCmd := &cobra.Command{
		Use:   "cli",
		Short: "Inspect and edit a spreadsheet ledger",
		Long: `cli detects transaction sheets in a spreadsheet, lists and filters their
rows and writes categories, notes and tags back to them.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.loadConfig()
		},
	}
	rootCmd.SetOut(out)
	rootCmd.SetErr(errOut)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&c.xlsxPath, "xlsx", "", "Use an .xlsx workbook (local path or gs:// URI) instead of Google Sheets")
	pf.StringVarP(&c.spreadsheet, "spreadsheet", "s", "", "Spreadsheet id or URL")
	pf.StringVar(&c.sheetName, "sheet", "Transactions", "Sheet (tab) name")
	pf.StringVar(&c.owner, "owner", "", "Owner to act as (default: AUTH_LOCAL_OWNER)")
	pf.BoolVar(&c.pretty, "pretty", false, "Pretty-print JSON output")

	rootCmd.AddCommand(
		c.detectCmd(),
		c.configureCmd(),
		c.sheetsCmd(),
		c.listCmd(),
		c.getCmd(),
		c.updateCmd(),
		c.addCmd(),
		c.addMobileIDCmd(),
		c.categoriesCmd(),
		c.tokenCmd(),
		c.auditCmd(),
	)
	return rootCmd
}

func (c *cli) loadConfig() error {
	cfg, err := config.LoadFrom(c.getenv)
	if err != nil {
		return err
	}
	if _, err := logger.Setup(cfg.Logging.Level, cfg.Logging.Format, c.errOut); err != nil {
		return err
	}
	c.cfg = cfg
	return nil
}

// open builds the ledger service for one command.
func (c *cli) open(ctx context.Context) (*session, error) {
	s := &session{owner: c.owner}
	if s.owner == "" {
		s.owner = c.cfg.Auth.LocalOwner
	}

	var cells rangestore.Store
	if c.xlsxPath != "" {
		path := c.xlsxPath
		if gcs.IsURI(path) {
			local, err := c.fetchWorkbook(ctx, s)
			if err != nil {
				s.Close()
				return nil, err
			}
			path = local
		}
		wb, err := xlsx.Open(path)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.closers = append(s.closers, func() { _ = wb.Close() })
		cells = wb
	} else {
		cells = bootstrap.SheetsClient(c.cfg.Google)
	}

	schemas, release, err := bootstrap.SchemaStore(ctx, c.cfg.Store)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.closers = append(s.closers, release)

	s.svc = ledger.NewService(cells, schemas, audit.LogRecorder{}, ledger.Options{
		DetectConcurrency: c.cfg.Ledger.DetectConcurrency,
		DefaultPerPage:    c.cfg.Ledger.DefaultPerPage,
		MaxPerPage:        c.cfg.Ledger.MaxPerPage,
	})
	return s, nil
}

// fetchWorkbook downloads a workbook kept in Cloud Storage and arranges for
// it to be uploaded again, if changed, when the session closes.
func (c *cli) fetchWorkbook(ctx context.Context, s *session) (string, error) {
	dir, err := os.MkdirTemp("", "sheetledger-*")
	if err != nil {
		return "", err
	}
	s.closers = append(s.closers, func() { _ = os.RemoveAll(dir) })

	client, err := gcs.NewClient(ctx)
	if err != nil {
		return "", err
	}
	s.closers = append(s.closers, func() { _ = client.Close() })

	remote, err := gcs.Fetch(ctx, client, c.xlsxPath, dir)
	if err != nil {
		return "", err
	}
	s.closers = append(s.closers, func() {
		if _, err := remote.Sync(ctx); err != nil {
			log := logger.FromContext(ctx)
			log.Error().Err(err).Str("uri", c.xlsxPath).Msg("Failed to upload workbook")
			fmt.Fprintf(c.errOut, "error: changes were not uploaded to %s: %v\n", c.xlsxPath, err)
		}
	})
	return remote.Path, nil
}

func (c *cli) spreadsheetRef() (string, error) {
	switch {
	case c.spreadsheet != "":
		return c.spreadsheet, nil
	case c.xlsxPath != "":
		return workbookRef, nil
	default:
		return "", errors.New("--spreadsheet is required without --xlsx")
	}
}

// ensureSheet configures the selected sheet as sheetType. Configuring a sheet
// already stored with the same headers changes nothing.
func (c *cli) ensureSheet(ctx context.Context, s *session, sheetType string) (*ledger.SheetDetail, error) {
	ref, err := c.spreadsheetRef()
	if err != nil {
		return nil, err
	}
	return s.svc.ConfigureSheet(ctx, s.owner, ref, c.sheetName, sheetType)
}

func (c *cli) print(v interface{}) error {
	enc := json.NewEncoder(c.out)
	enc.SetEscapeHTML(false)
	if c.pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	return nil
}

func (c *cli) context(cmd *cobra.Command) context.Context {
	return logger.WithContext(cmd.Context(), logger.New())
}
