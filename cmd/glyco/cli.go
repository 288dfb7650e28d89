package main

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/hpungsan/glyco/internal/errors"
	"github.com/hpungsan/glyco/internal/healthsource"
	"github.com/hpungsan/glyco/internal/intake"
	"github.com/hpungsan/glyco/internal/report"
	"github.com/hpungsan/glyco/internal/viewmodel"
	"github.com/hpungsan/glyco/internal/web"
)

// maxStdinBytes bounds text read from stdin by "say".
const maxStdinBytes = 64 << 10

// scanTimeout bounds one recognizer run.
const scanTimeout = 30 * time.Second

// newCLIApp creates the CLI application with all commands. a may be nil when
// only help or version output is needed.
func newCLIApp(a *app) *cli.App {
	cliApp := &cli.App{
		Name:    "glyco",
		Usage:   "Glucose and insulin log",
		Version: Version,
		Commands: []*cli.Command{
			addInsulinCmd(a),
			addGlucoseCmd(a),
			scanCmd(a),
			sayCmd(a),
			deleteCmd(a),
			deleteAllCmd(a),
			listCmd(a),
			summaryCmd(a),
			syncCmd(a),
			connectCmd(a),
			reportCmd(a),
			unitCmd(a),
			serveCmd(a),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	cliApp.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return cliApp
}

var atFlag = &cli.StringFlag{Name: "at", Usage: "RFC 3339 time of the entry (default now)"}

// addInsulinCmd creates the add-insulin command.
func addInsulinCmd(a *app) *cli.Command {
	return &cli.Command{
		Name:      "add-insulin",
		Usage:     "Record an insulin dose",
		ArgsUsage: "<units>",
		Flags:     []cli.Flag{atFlag},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return outputError(errors.NewInvalidRequest("units argument is required"))
			}
			units, err := intake.ParseUnits(c.Args().First())
			if err != nil {
				return outputError(err)
			}
			at, err := parseAt(c.String("at"))
			if err != nil {
				return outputError(err)
			}
			rec, err := a.store.AddInsulin(c.Context, units, at)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(rec)
		},
	}
}

// addGlucoseCmd creates the add-glucose command.
func addGlucoseCmd(a *app) *cli.Command {
	return &cli.Command{
		Name:      "add-glucose",
		Usage:     "Record a blood glucose reading",
		ArgsUsage: "<value>",
		Flags: []cli.Flag{
			atFlag,
			&cli.StringFlag{Name: "unit", Aliases: []string{"u"}, Usage: "mg/dL or mmol/L (default: saved sugar unit)"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return outputError(errors.NewInvalidRequest("value argument is required"))
			}
			value, err := intake.ParseGlucose(c.Args().First())
			if err != nil {
				return outputError(err)
			}
			at, err := parseAt(c.String("at"))
			if err != nil {
				return outputError(err)
			}
			unit := a.settings.SugarUnit()
			if c.IsSet("unit") {
				unit = report.NormalizeUnit(c.String("unit"))
			}
			if unit == report.UnitMmol {
				value *= healthsource.MmolToMgdl
			}
			rec, err := a.store.AddGlucose(c.Context, value, at)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(rec)
		},
	}
}

// scanCmd creates the scan command.
func scanCmd(a *app) *cli.Command {
	return &cli.Command{
		Name:      "scan",
		Usage:     "Read a dose from a syringe or pen image and record it",
		ArgsUsage: "<image>",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "dry-run", Usage: "Only report the recognized units"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return outputError(errors.NewInvalidRequest("image argument is required"))
			}
			path := c.Args().First()
			if _, err := os.Stat(path); err != nil {
				return outputError(errors.NewFileNotFound(path))
			}

			ctx, cancel := context.WithTimeout(c.Context, scanTimeout)
			defer cancel()
			units, ok := intake.ScanUnits(ctx, intake.CommandRecognizer{Argv: a.cfg.OCRCommand}, path)
			if !ok {
				return outputJSON(map[string]any{"recognized": false})
			}
			if c.Bool("dry-run") {
				return outputJSON(map[string]any{"recognized": true, "units": units})
			}
			rec, err := a.store.AddInsulin(c.Context, units, time.Time{})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{"recognized": true, "units": units, "record": rec})
		},
	}
}

// sayCmd creates the say command.
func sayCmd(a *app) *cli.Command {
	return &cli.Command{
		Name:      "say",
		Usage:     "Record an insulin dose from transcribed speech (args or stdin)",
		ArgsUsage: "[text...]",
		Action: func(c *cli.Context) error {
			text := strings.Join(c.Args().Slice(), " ")
			if text == "" && stdinHasData() {
				var err error
				text, err = readStdin(maxStdinBytes)
				if err != nil {
					return outputError(errors.NewInvalidRequest(err.Error()))
				}
			}
			if text == "" {
				return outputError(errors.NewInvalidRequest("speech text is required"))
			}
			units, err := intake.ParseVoiceUnits(text)
			if err != nil {
				return outputError(err)
			}
			rec, err := a.store.AddInsulin(c.Context, units, time.Time{})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{
				"record":  rec,
				"message": intake.Confirmation(units, a.cfg.Locale),
			})
		},
	}
}

// deleteCmd creates the delete command.
func deleteCmd(a *app) *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Usage:     "Delete a record",
		ArgsUsage: "<id>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return outputError(errors.NewInvalidRequest("id argument is required"))
			}
			id := c.Args().First()
			removed, err := a.store.Delete(c.Context, id)
			if err != nil {
				return outputError(err)
			}
			if !removed {
				return outputError(errors.NewNotFound(id))
			}
			return outputJSON(map[string]any{"id": id, "deleted": true})
		},
	}
}

// deleteAllCmd creates the delete-all command.
func deleteAllCmd(a *app) *cli.Command {
	return &cli.Command{
		Name:  "delete-all",
		Usage: "Delete every record",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "confirm", Usage: "Required; deletion cannot be undone"},
		},
		Action: func(c *cli.Context) error {
			if !c.Bool("confirm") {
				return outputError(errors.NewInvalidRequest("--confirm is required"))
			}
			if err := a.store.DeleteAll(c.Context); err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{"deleted_all": true})
		},
	}
}

// listCmd creates the list command.
func listCmd(a *app) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List records grouped by day",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "days", Aliases: []string{"d"}, Usage: "Limit to the most recent N days"},
		},
		Action: func(c *cli.Context) error {
			days := viewmodel.RecordsList(a.clock, a.location, viewmodel.LabelsFor(a.cfg.Locale))(a.store.Snapshot())
			if n := c.Int("days"); n > 0 && len(days) > n {
				days = days[:n]
			}
			return outputJSON(map[string]any{"days": days, "total": a.store.Len()})
		},
	}
}

// summaryCmd creates the summary command.
func summaryCmd(a *app) *cli.Command {
	return &cli.Command{
		Name:  "summary",
		Usage: "Latest glucose, latest insulin and the recent glucose trend",
		Action: func(c *cli.Context) error {
			return outputJSON(map[string]any{
				"summary": viewmodel.HomeSummary(a.store.Snapshot()),
				"unit":    a.settings.SugarUnit(),
			})
		},
	}
}

// syncCmd creates the sync command.
func syncCmd(a *app) *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Merge recent samples from the health source",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Usage: "Number of samples to fetch (default history_limit)"},
		},
		Action: func(c *cli.Context) error {
			limit := a.cfg.HistoryLimit
			if c.IsSet("limit") {
				limit = c.Int("limit")
			}
			if limit <= 0 {
				return outputError(errors.NewInvalidRequest("limit must be positive"))
			}
			res, err := a.settings.SyncLimit(c.Context, limit)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(res)
		},
	}
}

// connectCmd creates the connect command.
func connectCmd(a *app) *cli.Command {
	return &cli.Command{
		Name:  "connect",
		Usage: "Request access to the health source",
		Action: func(c *cli.Context) error {
			ok, err := a.settings.Connect(c.Context)
			if err != nil {
				return outputError(err)
			}
			return outputJSON(map[string]any{"source": a.settings.SourceName(), "connected": ok})
		},
	}
}

// reportCmd creates the report command.
func reportCmd(a *app) *cli.Command {
	return &cli.Command{
		Name:  "report",
		Usage: "Export the glucose report as HTML",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Aliases: []string{"p"}, Usage: "Output path (default ~/.glyco/exports/glucose-report-<time>.html)"},
			&cli.BoolFlag{Name: "share", Usage: "Also publish through the configured share target"},
		},
		Action: func(c *cli.Context) error {
			out, err := a.settings.ExportReport(c.Context, viewmodel.ExportInput{
				Path:  c.String("path"),
				Share: c.Bool("share"),
			})
			if err != nil {
				return outputError(err)
			}
			return outputJSON(out)
		},
	}
}

// unitCmd creates the unit command.
func unitCmd(a *app) *cli.Command {
	return &cli.Command{
		Name:      "unit",
		Usage:     "Show or set the glucose display unit",
		ArgsUsage: "[mg/dL|mmol/L]",
		Action: func(c *cli.Context) error {
			if c.NArg() > 0 {
				if err := a.settings.SetSugarUnit(c.Context, c.Args().First()); err != nil {
					return outputError(err)
				}
			}
			return outputJSON(map[string]any{"unit": a.settings.SugarUnit()})
		},
	}
}

// serveCmd creates the serve command.
func serveCmd(a *app) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the web UI",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Value: "127.0.0.1", Usage: "Address to bind"},
			&cli.IntFlag{Name: "port", Value: 8080, Usage: "Port to listen on"},
		},
		Action: func(c *cli.Context) error {
			srv, h, err := web.NewServer(web.Deps{
				Store:    a.store,
				Settings: a.settings,
				Config:   a.cfg,
				Location: a.location,
				Clock:    a.clock,
				Log:      a.log,
				Gatherer: a.registry,
			}, Version, c.String("bind"), c.Int("port"))
			if err != nil {
				return outputError(errors.NewInternal(err))
			}
			defer h.Close()
			if err := web.Run(srv, a.log); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
				return outputError(errors.NewInternal(err))
			}
			return nil
		},
	}
}

// Helper functions

// outputJSON marshals result to stdout as JSON.
func outputJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI.
func outputError(err error) error {
	var gErr *errors.GlycoError
	if stderrors.As(err, &gErr) {
		return cli.Exit(fmt.Sprintf("[%s] %s", gErr.Code, gErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// parseAt parses an optional RFC 3339 time; empty means now.
func parseAt(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	at, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, errors.NewInvalidRequest("--at must be an RFC 3339 time")
	}
	return at, nil
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdin reads at most limit bytes from stdin.
func readStdin(limit int64) (string, error) {
	data, err := io.ReadAll(io.LimitReader(os.Stdin, limit+1))
	if err != nil {
		return "", err
	}
	if int64(len(data)) > limit {
		return "", fmt.Errorf("stdin exceeds %d bytes", limit)
	}
	return strings.TrimSpace(string(data)), nil
}
