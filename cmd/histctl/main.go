// Copyright (c) 2024 Neomantra Corp
//
// NOTE: this may incur billing against the configured vendor API key,
// handle with care!
//

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/marketdata-eng/histfeed/adapter"
	"github.com/marketdata-eng/histfeed/config"
	"github.com/marketdata-eng/histfeed/models"
	"github.com/marketdata-eng/histfeed/orchestrator"
	"github.com/marketdata-eng/histfeed/query"
	"github.com/marketdata-eng/histfeed/quarantine"
	"github.com/marketdata-eng/histfeed/rules"
	"github.com/marketdata-eng/histfeed/storage"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dustin/go-humanize"
	"github.com/relvacode/iso8601"
	"github.com/spf13/cobra"
)

///////////////////////////////////////////////////////////////////////////////
// exit codes

const (
	exitOK               = 0
	exitUserError        = 1
	exitConfigError      = 2
	exitPartialSuccess   = 3
	exitFatalPipelineErr = 4
)

///////////////////////////////////////////////////////////////////////////////
// flags shared across subcommands

var (
	configPath string
	dsn        string
	dlqDir     string

	apiName      string
	dataset      string
	schemaStr    string
	symbolsArg   []string
	stypeInStr   string
	startDateArg string
	endDateArg   string
	jobNameArg   string

	useForce      bool
	dryRun        bool
	batchOverride int
)

func requireNoError(code int, err error, msg string) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %s\n", msg, err.Error())
		os.Exit(code)
	}
}

func parseCalendarDate(arg string) (time.Time, error) {
	if t, err := iso8601.ParseString(arg); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", arg)
}

// resolveDSN returns the --dsn/HISTFEED_DSN override when set, otherwise
// assembles one from TIMESCALEDB_HOST/PORT/USER/PASSWORD/DBNAME.
func resolveDSN() string {
	if dsn != "" {
		return dsn
	}
	host := os.Getenv("TIMESCALEDB_HOST")
	if host == "" {
		return ""
	}
	port := os.Getenv("TIMESCALEDB_PORT")
	if port == "" {
		port = "5432"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s",
		os.Getenv("TIMESCALEDB_USER"), os.Getenv("TIMESCALEDB_PASSWORD"), host, port, os.Getenv("TIMESCALEDB_DBNAME"))
}

// logf writes a diagnostic line to stderr, gated by LOG_LEVEL=debug.
func logf(format string, args ...any) {
	if os.Getenv("LOG_LEVEL") != "debug" {
		return
	}
	fmt.Fprintf(os.Stderr, format, args...)
}

///////////////////////////////////////////////////////////////////////////////

var rootCmd = &cobra.Command{
	Use:   "histctl",
	Short: "Drives the market data ingestion pipeline: fetch, transform, validate, and store",
}

var ingestCmd = &cobra.Command{
	Use:     "ingest",
	Short:   "Run an ingestion job end to end",
	Args:    cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		job, err := resolveJob()
		requireNoError(exitUserError, err, "error resolving job")

		if dryRun {
			jstr, _ := json.MarshalIndent(job, "", "  ")
			fmt.Fprintf(os.Stdout, "%s\n", jstr)
			os.Exit(exitOK)
		}

		apiKey := requireDatabentoApiKey()
		ruleCfg, err := loadRuleConfig()
		requireNoError(exitConfigError, err, "error loading rule config")

		sink, err := quarantine.NewSink(dlqDir)
		requireNoError(exitConfigError, err, "error opening quarantine sink")
		defer sink.Close()

		pool, err := storage.NewPool(cmd.Context(), storage.DefaultPoolConfig(resolveDSN()))
		requireNoError(exitConfigError, err, "error connecting to storage")
		defer pool.Close()

		loaders := buildLoaders(pool)
		orc := orchestrator.New(adapter.NewDatabentoAdapter(apiKey), ruleCfg, sink, loaders, func(stage orchestrator.ProgressStage, count int, msg string) {
			logf("[%s] %s (%s records)\n", stage, msg, humanize.Comma(int64(count)))
		})

		stats, err := orc.Run(cmd.Context(), job)
		requireNoErrorFatal(err, "error running job")

		jstr, _ := json.MarshalIndent(stats, "", "  ")
		fmt.Fprintf(os.Stdout, "%s\n", jstr)

		switch {
		case stats.ChunksFailed > 0 && stats.ChunksOK == 0:
			os.Exit(exitFatalPipelineErr)
		case stats.ChunksFailed > 0 || stats.RecordsQuarantined > 0:
			os.Exit(exitPartialSuccess)
		default:
			os.Exit(exitOK)
		}
	},
}

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query stored records for a schema and symbol set",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		schema, err := models.NormalizeSchema(schemaStr)
		requireNoError(exitUserError, err, "error resolving schema")

		start, err := parseCalendarDate(startDateArg)
		requireNoError(exitUserError, err, "error parsing --start-date")
		end, err := parseCalendarDate(endDateArg)
		requireNoError(exitUserError, err, "error parsing --end-date")

		pool, err := storage.NewPool(cmd.Context(), storage.DefaultPoolConfig(resolveDSN()))
		requireNoError(exitConfigError, err, "error connecting to storage")
		defer pool.Close()

		builder := query.NewBuilder(pool)

		var rows []query.Row
		switch schema {
		case models.SchemaTrades:
			rows, err = builder.QueryTrades(cmd.Context(), symbolsArg, start, end, "", 0, 0)
		case models.SchemaTbbo:
			rows, err = builder.QueryTbbo(cmd.Context(), symbolsArg, start, end, 0)
		case models.SchemaStatistics:
			rows, err = builder.QueryStatistics(cmd.Context(), symbolsArg, start, end, 0, 0)
		case models.SchemaDefinition:
			rows, err = builder.QueryDefinitions(cmd.Context(), symbolsArg, start, end, "", "", 0)
		default:
			rows, err = builder.QueryDailyOhlcv(cmd.Context(), symbolsArg, start, end, schema.Granularity(), 0)
		}
		requireNoErrorFatal(err, "error querying")

		jstr, _ := json.MarshalIndent(rows, "", "  ")
		fmt.Fprintf(os.Stdout, "%s\n", jstr)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report storage connectivity and available symbols",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		pool, err := storage.NewPool(cmd.Context(), storage.DefaultPoolConfig(resolveDSN()))
		requireNoError(exitConfigError, err, "error connecting to storage")
		defer pool.Close()

		builder := query.NewBuilder(pool)
		symbols, err := builder.GetAvailableSymbols(cmd.Context(), "", "", 0)
		requireNoErrorFatal(err, "error listing symbols")

		fmt.Fprintf(os.Stdout, "storage: ok\nsymbols: %s\n", humanize.Comma(int64(len(symbols))))
	},
}

var listJobsCmd = &cobra.Command{
	Use:     "list-jobs",
	Aliases: []string{"jobs"},
	Short:   "List the jobs defined in the job configuration file",
	Args:    cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load(configPath)
		requireNoError(exitConfigError, err, "error loading job config")

		jstr, _ := json.MarshalIndent(cfg.Jobs, "", "  ")
		fmt.Fprintf(os.Stdout, "%s\n", jstr)
	},
}

///////////////////////////////////////////////////////////////////////////////

// requireDatabentoApiKey resolves the vendor API key from the job config
// file when present, falling back to the DATABENTO_API_KEY envvar.
func requireDatabentoApiKey() string {
	if configPath != "" {
		if cfg, err := config.Load(configPath); err == nil {
			if key, err := cfg.APIKey(); err == nil {
				return key
			}
		}
	}
	key := os.Getenv("DATABENTO_API_KEY")
	if key == "" {
		fmt.Fprint(os.Stderr, "error: DATABENTO_API_KEY not set and no usable --config\n")
		os.Exit(exitConfigError)
	}
	return key
}

func loadRuleConfig() (*rules.Config, error) {
	if configPath == "" {
		return rules.DefaultConfig(), nil
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if cfg.Transformation.MappingConfigPath == "" {
		return rules.DefaultConfig(), nil
	}
	return rules.LoadConfig(cfg.Transformation.MappingConfigPath)
}

// resolveJob builds an orchestrator.Job from a predefined job in
// --config (when --job names one) overridden by any explicitly passed
// flags, or entirely from flags when --job is empty.
func resolveJob() (orchestrator.Job, error) {
	job := orchestrator.Job{
		ApiName:   apiName,
		JobName:   jobNameArg,
		Dataset:   dataset,
		Schema:    schemaStr,
		Symbols:   symbolsArg,
		StypeIn:   models.StypeIn(stypeInStr),
	}

	if jobNameArg != "" && configPath != "" {
		cfg, err := config.Load(configPath)
		if err != nil {
			return job, err
		}
		spec, ok := cfg.JobByName(jobNameArg)
		if !ok {
			return job, fmt.Errorf("no job named %q in %s", jobNameArg, configPath)
		}
		job.Dataset = firstNonEmpty(dataset, spec.Dataset)
		job.Schema = firstNonEmpty(schemaStr, spec.Schema)
		if len(symbolsArg) == 0 {
			job.Symbols = spec.Symbols
		}
		if stypeInStr == "" {
			job.StypeIn = models.StypeIn(spec.StypeIn)
		}
		job.DateChunkIntervalDays = spec.DateChunkIntervalDays

		if startDateArg == "" {
			if t, err := spec.ParseStartDate(); err == nil {
				job.StartDate = t
			}
		}
		if endDateArg == "" {
			if t, err := spec.ParseEndDate(); err == nil {
				job.EndDate = t
			}
		}
	}

	if startDateArg != "" {
		t, err := parseCalendarDate(startDateArg)
		if err != nil {
			return job, fmt.Errorf("parsing --start-date: %w", err)
		}
		job.StartDate = t
	}
	if endDateArg != "" {
		t, err := parseCalendarDate(endDateArg)
		if err != nil {
			return job, fmt.Errorf("parsing --end-date: %w", err)
		}
		job.EndDate = t
	}
	if job.Dataset == "" || job.Schema == "" || job.StartDate.IsZero() || job.EndDate.IsZero() {
		return job, fmt.Errorf("ingest requires --dataset, --schema, --start-date and --end-date (directly or via --job)")
	}
	return job, nil
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// buildLoaders wires one Loader per schema the orchestrator might see,
// sharing a single OhlcvLoader across all OHLCV granularities (the
// granularity itself is a row column, not a separate table per bar
// width).
func buildLoaders(pool *pgxpool.Pool) map[models.Schema]storage.Loader {
	ohlcv := storage.NewOhlcvLoader(pool)
	return map[models.Schema]storage.Loader{
		models.SchemaOhlcv1S:    ohlcv,
		models.SchemaOhlcv1M:    ohlcv,
		models.SchemaOhlcv5M:    ohlcv,
		models.SchemaOhlcv15M:   ohlcv,
		models.SchemaOhlcv1H:    ohlcv,
		models.SchemaOhlcv1D:    ohlcv,
		models.SchemaTrades:     storage.NewTradesLoader(pool),
		models.SchemaTbbo:       storage.NewTbboLoader(pool),
		models.SchemaStatistics: storage.NewStatisticsLoader(pool),
		models.SchemaDefinition: storage.NewDefinitionsLoader(pool),
	}
}

func requireNoErrorFatal(err error, msg string) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %s\n", msg, err.Error())
		os.Exit(exitFatalPipelineErr)
	}
}

///////////////////////////////////////////////////////////////////////////////

func main() {
	cobra.OnInitialize()

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Job configuration YAML file")
	rootCmd.PersistentFlags().StringVar(&dsn, "dsn", os.Getenv("HISTFEED_DSN"), "TimescaleDB connection string (or HISTFEED_DSN envvar)")
	rootCmd.PersistentFlags().StringVar(&dlqDir, "dlq-dir", "dlq/validation_failures", "Quarantine sink directory")

	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().StringVar(&apiName, "api", "databento", "Vendor adapter name")
	ingestCmd.Flags().StringVar(&dataset, "dataset", "", "Vendor dataset code (e.g. XNAS.ITCH)")
	ingestCmd.Flags().StringVar(&schemaStr, "schema", "", "Pipeline schema (ohlcv, trades, tbbo, statistics, definitions)")
	ingestCmd.Flags().StringSliceVar(&symbolsArg, "symbols", nil, "Comma-separated symbol list")
	ingestCmd.Flags().StringVar(&stypeInStr, "stype-in", "", "Vendor input symbology (native, continuous, parent)")
	ingestCmd.Flags().StringVar(&startDateArg, "start-date", "", "Start date, YYYY-MM-DD or ISO 8601")
	ingestCmd.Flags().StringVar(&endDateArg, "end-date", "", "End date (exclusive), YYYY-MM-DD or ISO 8601")
	ingestCmd.Flags().StringVar(&jobNameArg, "job", "", "Predefined job name from --config")
	ingestCmd.Flags().BoolVar(&useForce, "force", false, "Re-run even if the job appears already complete")
	ingestCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the resolved job and exit without fetching anything")
	ingestCmd.Flags().IntVar(&batchOverride, "batch-size", 0, "Override the per-schema storage batch size")

	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().StringVar(&schemaStr, "schema", "", "Pipeline schema to query")
	queryCmd.Flags().StringSliceVar(&symbolsArg, "symbols", nil, "Comma-separated symbol list")
	queryCmd.Flags().StringVar(&startDateArg, "start-date", "", "Range start, YYYY-MM-DD or ISO 8601")
	queryCmd.Flags().StringVar(&endDateArg, "end-date", "", "Range end, YYYY-MM-DD or ISO 8601")

	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(listJobsCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err.Error())
		os.Exit(exitUserError)
	}
}
