// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package cmd

import (
	cryptorand "crypto/rand"
	"encoding/binary"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cardinalhq/ttv/config"
	"github.com/cardinalhq/ttv/internal/assigner"
	"github.com/cardinalhq/ttv/internal/chunkwriter"
	"github.com/cardinalhq/ttv/internal/filereader"
	"github.com/cardinalhq/ttv/internal/logctx"
	"github.com/cardinalhq/ttv/internal/progress"
	"github.com/cardinalhq/ttv/internal/splitplan"
	"github.com/cardinalhq/ttv/internal/splitter"
)

type splitOptions struct {
	rows            []string
	props           []string
	noHeader        bool
	chunkSize       uint64
	totalRows       uint64
	seed            uint64
	csv             bool
	decompressInput bool
	compressOutput  bool
	outputPrefix    string
}

func init() {
	opts := &splitOptions{}

	cmd := &cobra.Command{
		Use:   "split [flags] INPUT",
		Short: "Split dataset into two or more files for test/train/validation sets",
		Long: `Split a delimited dataset into named partitions, streaming record by
record. Sizes are given either as absolute row counts (--rows) or as
proportions (--prop). INPUT of '-' reads from stdin.`,
		Args: cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			seedSet := c.Flags().Changed("seed")
			return runSplit(c, args[0], opts, seedSet)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.rows, "rows", "r", nil, "Specify splits by number of rows, e.g. train=8000,test=2000")
	cmd.Flags().StringSliceVarP(&opts.props, "prop", "p", nil, "Specify splits by proportion of rows, e.g. train=0.8,test=0.2")
	cmd.Flags().BoolVarP(&opts.noHeader, "no-header", "n", false, "Don't treat the first row as a header")
	cmd.Flags().Uint64VarP(&opts.chunkSize, "chunk-size", "c", 0, "Maximum number of rows per output chunk")
	cmd.Flags().Uint64VarP(&opts.totalRows, "total-rows", "t", 0, "Number of rows in the input, enables exact proportion quotas and progress percentages")
	cmd.Flags().Uint64VarP(&opts.seed, "seed", "s", 0, "RNG seed, for reproducibility")
	cmd.Flags().BoolVar(&opts.csv, "csv", false, "Parse input as CSV. Only needed if rows contain embedded newlines - will impact performance")
	cmd.Flags().BoolVarP(&opts.decompressInput, "decompress-input", "d", false, "Decompress input from gzip format")
	cmd.Flags().BoolVarP(&opts.compressOutput, "compressed-output", "C", false, "Compress output files using gzip")
	cmd.Flags().StringVarP(&opts.outputPrefix, "output-prefix", "o", "", "Output filename prefix. Required if reading from stdin")
	cmd.MarkFlagsOneRequired("rows", "prop")
	cmd.MarkFlagsMutuallyExclusive("rows", "prop")

	rootCmd.AddCommand(cmd)
}

func runSplit(c *cobra.Command, input string, opts *splitOptions, seedSet bool) error {
	ctx := logctx.With(c.Context(), "cmd", "split")
	ll := logctx.FromContext(ctx)

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	plan, err := buildPlan(opts)
	if err != nil {
		return err
	}

	prefix := opts.outputPrefix
	if prefix == "" {
		if input == filereader.StdinPath {
			return fmt.Errorf("--output-prefix is required when reading from stdin")
		}
		prefix = defaultPrefix(input)
	}

	seed := opts.seed
	if !seedSet {
		seed = randomSeed()
		ll.Info("no seed given, generated one", "seed", seed)
	}

	source, err := filereader.Open(input, filereader.Options{
		CSV:           opts.csv,
		Decompress:    opts.decompressInput,
		MaxRecordSize: cfg.MaxRecordSize,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = source.Close()
	}()

	reporter := progress.NewReporter(ll, cfg.ProgressInterval, opts.totalRows)

	ll.Info("starting split",
		"input", input,
		"mode", plan.Mode.String(),
		"targets", len(plan.Targets),
		"prefix", prefix,
		"chunk_size", opts.chunkSize,
		"seed", seed)

	summary, err := splitter.Run(ctx, splitter.Config{
		Source:   source,
		Assigner: assigner.New(plan, seed),
		Output: chunkwriter.Config{
			Prefix:     prefix,
			ChunkSize:  opts.chunkSize,
			Compress:   opts.compressOutput,
			GzipLevel:  cfg.GzipLevel,
			IndexWidth: cfg.ChunkIndexWidth,
		},
		HasHeader: !opts.noHeader,
		OnRecord:  reporter.Observe,
	})
	if err != nil {
		return err
	}
	reporter.Done(summary.Records)

	for _, file := range summary.Files {
		ll.Info("wrote chunk", "target", file.Target, "file", file.FileName, "records", file.RecordCount)
	}
	return nil
}

// buildPlan parses the --rows or --prop specs into a validated plan.
func buildPlan(opts *splitOptions) (*splitplan.Plan, error) {
	mode := splitplan.ModeCounts
	specs := opts.rows
	if len(opts.props) > 0 {
		mode = splitplan.ModeProportions
		specs = opts.props
	}
	targets, err := splitplan.ParseTargets(specs, mode)
	if err != nil {
		return nil, err
	}
	return splitplan.New(mode, targets, opts.totalRows)
}

// defaultPrefix derives the output prefix from the input path: the input
// with its .gz and .csv extensions stripped, plus a separating dot, so
// "data/corpus.csv.gz" yields chunks like "data/corpus.train.csv".
func defaultPrefix(input string) string {
	base := input
	for _, ext := range []string{".gz", ".csv", ".tsv", ".txt"} {
		base = strings.TrimSuffix(base, ext)
	}
	if base == "" || strings.HasSuffix(base, string(filepath.Separator)) {
		base = input
	}
	return base + "."
}

// randomSeed draws a seed for unseeded runs, so the run is still
// reproducible once the logged value is passed back via --seed.
func randomSeed() uint64 {
	var buf [8]byte
	if _, err := cryptorand.Read(buf[:]); err != nil {
		// crypto/rand never fails on supported platforms
		panic(fmt.Errorf("read random seed: %w", err))
	}
	return binary.LittleEndian.Uint64(buf[:])
}
