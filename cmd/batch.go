package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/solar-cli/internal/pipeline"
	"github.com/sells-group/solar-cli/pkg/geocode"
)

var (
	batchCSV         string
	batchOut         string
	batchLimit       int
	batchGeocodeOnly bool
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Estimate every address in a CSV, writing JSON lines",
	Long: `Reads a CSV with an "address" column and an optional "monthly_bill"
column. Rows with a bill get a full report; rows without one get the best
surface only. Output is one JSON object per input row, in input order.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		rows, err := readBatchCSV(batchCSV)
		if err != nil {
			return err
		}
		if batchLimit > 0 && len(rows) > batchLimit {
			rows = rows[:batchLimit]
		}

		env, err := initEnv(cfg, "batch", nil, skipInstallers)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if batchOut != "" && batchOut != "-" {
			f, err := os.Create(batchOut) //nolint:gosec
			if err != nil {
				return eris.Wrap(err, "batch: create output")
			}
			defer f.Close() //nolint:errcheck
			out = f
		}

		if batchGeocodeOnly {
			return geocodeBatch(ctx, env.Geocoder, rows, out)
		}
		_, err = processBatch(ctx, rows, cfg.Batch.MaxConcurrency, env.Pipeline, out)
		return err
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchCSV, "csv", "", "input CSV path")
	batchCmd.Flags().StringVar(&batchOut, "out", "", "output JSONL path (default stdout)")
	batchCmd.Flags().IntVar(&batchLimit, "limit", 0, "max rows to process (0 = all)")
	batchCmd.Flags().BoolVar(&batchGeocodeOnly, "geocode-only", false, "only resolve coordinates")
	_ = batchCmd.MarkFlagRequired("csv")
	rootCmd.AddCommand(batchCmd)
}

// batchRow is one input address. Bill is nil when the row has none.
type batchRow struct {
	Line    int
	Address string
	Bill    *float64
}

// batchLine is one JSONL output record.
type batchLine struct {
	Line    int                     `json:"line"`
	Address string                  `json:"address"`
	Kind    pipeline.Kind           `json:"kind,omitempty"`
	Error   string                  `json:"error,omitempty"`
	Surface *pipeline.SurfaceResult `json:"surface,omitempty"`
	Report  *pipeline.ReportResult  `json:"report,omitempty"`
	Geocode *geocode.Result         `json:"geocode,omitempty"`
}

type batchSummary struct {
	Succeeded int64
	Failed    int64
}

// estimator is the part of the pipeline the batch runner needs.
type estimator interface {
	BestSurface(ctx context.Context, address string) (*pipeline.SurfaceResult, error)
	Report(ctx context.Context, address string, monthlyBill float64) (*pipeline.ReportResult, error)
}

func readBatchCSV(path string) ([]batchRow, error) {
	f, err := os.Open(path) //nolint:gosec
	if err != nil {
		return nil, eris.Wrap(err, "batch: open csv")
	}
	defer f.Close() //nolint:errcheck
	return parseBatchCSV(f)
}

func parseBatchCSV(r io.Reader) ([]batchRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, eris.Wrap(err, "batch: read header")
	}
	addrCol, billCol := -1, -1
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))) {
		case "address":
			addrCol = i
		case "monthly_bill", "bill":
			billCol = i
		}
	}
	if addrCol < 0 {
		return nil, eris.New("batch: csv has no address column")
	}

	var rows []batchRow
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(err, "batch: read line %d", line)
		}
		if addrCol >= len(rec) || strings.TrimSpace(rec[addrCol]) == "" {
			continue
		}
		row := batchRow{Line: line, Address: strings.TrimSpace(rec[addrCol])}
		if billCol >= 0 && billCol < len(rec) && strings.TrimSpace(rec[billCol]) != "" {
			bill, err := strconv.ParseFloat(strings.TrimSpace(rec[billCol]), 64)
			if err != nil {
				return nil, eris.Wrapf(err, "batch: line %d: invalid monthly_bill", line)
			}
			row.Bill = &bill
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// processBatch runs every row through est with at most concurrency rows in
// flight and writes one line per row in input order. A failed row is
// recorded in the output and does not stop the batch.
func processBatch(ctx context.Context, rows []batchRow, concurrency int, est estimator, w io.Writer) (batchSummary, error) {
	var summary batchSummary
	if len(rows) == 0 {
		zap.L().Info("batch: no rows")
		return summary, nil
	}
	if concurrency < 1 {
		concurrency = 1
	}

	zap.L().Info("processing batch",
		zap.Int("rows", len(rows)),
		zap.Int("concurrency", concurrency),
	)

	lines := make([]batchLine, len(rows))
	var succeeded, failed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, row := range rows {
		g.Go(func() error {
			out := batchLine{Line: row.Line, Address: row.Address}
			var err error
			if row.Bill != nil {
				out.Report, err = est.Report(gctx, row.Address, *row.Bill)
			} else {
				out.Surface, err = est.BestSurface(gctx, row.Address)
			}
			if err != nil {
				failed.Add(1)
				out.Kind = pipeline.KindOf(err)
				out.Error = pipeline.MessageOf(err)
				zap.L().Warn("batch: row failed",
					zap.Int("line", row.Line),
					zap.String("address", row.Address),
					zap.Error(err),
				)
			} else {
				succeeded.Add(1)
			}
			lines[i] = out
			return nil // don't abort batch on individual failure
		})
	}

	if err := g.Wait(); err != nil {
		return summary, eris.Wrap(err, "batch processing")
	}

	if err := writeLines(w, lines); err != nil {
		return summary, err
	}

	summary = batchSummary{Succeeded: succeeded.Load(), Failed: failed.Load()}
	zap.L().Info("batch complete",
		zap.Int64("succeeded", summary.Succeeded),
		zap.Int64("failed", summary.Failed),
	)
	return summary, nil
}

// geocodeBatch resolves every row's address without roof lookups.
func geocodeBatch(ctx context.Context, gc geocode.Client, rows []batchRow, w io.Writer) error {
	addresses := make([]string, len(rows))
	for i, r := range rows {
		addresses[i] = r.Address
	}

	results, err := gc.BatchGeocode(ctx, addresses)
	if err != nil {
		return eris.Wrap(err, "batch: geocode")
	}

	lines := make([]batchLine, len(rows))
	for i, row := range rows {
		res := results[i]
		lines[i] = batchLine{Line: row.Line, Address: row.Address, Geocode: &res}
		if !res.Matched {
			lines[i].Kind = pipeline.KindResolution
			lines[i].Error = pipeline.MsgUnresolved
		}
	}
	return writeLines(w, lines)
}

func writeLines(w io.Writer, lines []batchLine) error {
	enc := json.NewEncoder(w)
	for _, l := range lines {
		if err := enc.Encode(l); err != nil {
			return eris.Wrap(err, "batch: write output")
		}
	}
	return nil
}
