package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/TobiSchelling/newsrelay/internal/article"
	"github.com/TobiSchelling/newsrelay/internal/collect"
	"github.com/TobiSchelling/newsrelay/internal/config"
	"github.com/TobiSchelling/newsrelay/internal/database"
	"github.com/TobiSchelling/newsrelay/internal/digest"
	"github.com/TobiSchelling/newsrelay/internal/server"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "newsrelay",
	Short:   "Multi-source news aggregation",
	Long:    "newsrelay fetches news from several providers, deduplicates and ranks the results, and serves them as JSON, digests or regional views.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		switch {
		case err == nil:
			cfg, err = config.Load(path)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
		case configPath == "":
			cfg = config.Default()
		default:
			return err
		}

		if verbose || strings.EqualFold(cfg.Logging.Level, "DEBUG") {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(fetchCmd)
	rootCmd.AddCommand(sourcesCmd)
	rootCmd.AddCommand(regionsCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(statusCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("newsrelay", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/newsrelay/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Set the API key environment variables named in it to activate sources.")
		return nil
	},
}

// --- fetch command ---

var (
	fetchRegion string
	fetchLimit  int
	fetchFormat string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <query>",
	Short: "Fetch aggregated news for a query",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		query := strings.TrimSpace(strings.Join(args, " "))
		if query == "" {
			return errNoQuery
		}
		resp, err := a.aggregator.FetchAggregatedNews(cmd.Context(), query, fetchRegion, fetchLimit)
		if err != nil {
			return err
		}

		switch fetchFormat {
		case "json":
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		case "markdown", "md":
			fmt.Print(digest.Build(resp).Markdown())
			return nil
		case "text":
			printArticles(resp.Articles)
			fmt.Printf("\n%d articles from %d sources", resp.TotalArticles, resp.SourcesUsed)
			switch {
			case resp.Emergency:
				fmt.Print(" (emergency content)")
			case resp.Stale:
				fmt.Print(" (stale cache)")
			case resp.Cached:
				fmt.Print(" (cached)")
			}
			fmt.Println()
			return nil
		default:
			return fmt.Errorf("unknown format %q (want text, json or markdown)", fetchFormat)
		}
	},
}

func init() {
	fetchCmd.Flags().StringVarP(&fetchRegion, "region", "r", "", "Region code, e.g. US")
	fetchCmd.Flags().IntVarP(&fetchLimit, "limit", "n", 0, "Maximum articles (default from config)")
	fetchCmd.Flags().StringVarP(&fetchFormat, "format", "f", "text", "Output format: text, json or markdown")
}

func printArticles(articles []article.Article) {
	for i, art := range articles {
		marker := ""
		if art.IsEmergency() {
			marker = " [NOTICE]"
		}
		fmt.Printf("%2d. [%3.0f]%s %s\n", i+1, art.QualityScore, marker, art.Title)
		meta := art.Source
		if !art.PublishedAt.IsZero() {
			meta += ", " + art.PublishedAt.Local().Format("2006-01-02 15:04")
		}
		if meta != "" {
			fmt.Printf("           %s\n", meta)
		}
		if art.URL != "" {
			fmt.Printf("           %s\n", art.URL)
		}
	}
}

// --- sources command ---

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List configured sources and whether they are active",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		for _, e := range a.registry.Entries() {
			status := "active"
			if !e.Active {
				status = "inactive: " + e.Reason
			}
			fmt.Printf("  %-18s %-10s %-9s %s\n", e.Name, e.Kind, e.Tier, status)
		}
		fmt.Printf("\n%d of %d sources active\n", a.registry.ActiveCount(), len(a.registry.Entries()))
		return nil
	},
}

// --- regions command ---

var (
	regionsQuery string
	regionsTopN  int
)

var regionsCmd = &cobra.Command{
	Use:   "regions [codes...]",
	Short: "Show region-specific views of the aggregated article pool",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		codes := a.regions.Codes()
		if len(args) > 0 {
			codes = nil
			for _, c := range args {
				c = strings.ToUpper(c)
				if !a.regions.Known(c) {
					return fmt.Errorf("unknown region %q (known: %s)", c, strings.Join(a.regions.Codes(), ", "))
				}
				codes = append(codes, c)
			}
		}

		resp, err := a.aggregator.FetchAggregatedNews(cmd.Context(), regionsQuery, "", 100)
		if err != nil {
			return err
		}

		buckets := a.regions.Buckets(resp.Articles, codes, regionsTopN, time.Now())
		for _, code := range codes {
			fmt.Printf("\n== %s (%d)\n", code, len(buckets[code]))
			for _, art := range buckets[code] {
				fmt.Printf("  [%3.0f] %s\n", art.RegionRelevance, art.Title)
			}
		}
		return nil
	},
}

func init() {
	regionsCmd.Flags().StringVarP(&regionsQuery, "query", "q", "technology", "Query used to build the article pool")
	regionsCmd.Flags().IntVarP(&regionsTopN, "top", "n", 5, "Articles per region")
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and digest server",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		srv, err := server.New(a.aggregator, a.regions,
			server.WithMetrics(a.metrics),
			server.WithHealth(func() map[string]any {
				return map[string]any{
					"activeSources": a.registry.ActiveCount(),
					"cacheEntries":  a.cache.Len(),
				}
			}),
		)
		if err != nil {
			return err
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return srv.Serve(ctx, port)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to run server on (default from config)")
}

// --- audit command ---

var (
	auditLimit     int
	auditPruneDays int
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "List recent aggregation decisions",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		if auditPruneDays > 0 {
			n, err := db.PruneAuditEvents(time.Now().AddDate(0, 0, -auditPruneDays))
			if err != nil {
				return fmt.Errorf("pruning audit events: %w", err)
			}
			fmt.Printf("Pruned %d events older than %d days\n\n", n, auditPruneDays)
		}

		events, err := db.GetRecentAuditEvents(auditLimit)
		if err != nil {
			return fmt.Errorf("reading audit events: %w", err)
		}
		if len(events) == 0 {
			fmt.Println("No audit events recorded yet.")
			return nil
		}
		for _, e := range events {
			fmt.Printf("%s  %-9s risk=%.2f urgency=%.1f  %s\n",
				e.CreatedAt.Local().Format("2006-01-02 15:04:05"), e.Decision, e.RiskScore, e.UrgencyScore, e.BusinessContext)
			if verbose {
				fmt.Printf("    %s\n    %s\n", e.Rationale, e.TechnicalContext)
			}
		}
		return nil
	},
}

func init() {
	auditCmd.Flags().IntVarP(&auditLimit, "limit", "n", 20, "Number of events to show")
	auditCmd.Flags().IntVar(&auditPruneDays, "prune-days", 0, "Delete events older than this many days first")
}

// --- status command ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration and audit status",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("Sources:")
		active := 0
		for _, s := range cfg.Sources {
			state := "ready"
			switch {
			case s.Disabled:
				state = "disabled"
			case strings.EqualFold(s.Kind, collect.KindRSS):
			case s.APIKeyEnv == "":
				state = "no api_key_env configured"
			default:
				if v, ok := os.LookupEnv(s.APIKeyEnv); !ok || strings.TrimSpace(v) == "" {
					state = "missing " + s.APIKeyEnv
				}
			}
			if state == "ready" {
				active++
			}
			fmt.Printf("  %-18s %s\n", s.Name, state)
		}
		fmt.Printf("  %d of %d ready\n", active, len(cfg.Sources))

		fmt.Println("\nAggregation:")
		fmt.Printf("  Fallback floor: %d\n", cfg.Aggregation.FallbackFloor)
		fmt.Printf("  Source timeout: %s\n", cfg.Aggregation.SourceTimeout)
		fmt.Printf("  Cache TTL: %s\n", cfg.Cache.TTL)
		fmt.Printf("  Emergency content: %t\n", cfg.Aggregation.EmergencyContent)

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetAuditStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}
		fmt.Println("\nAudit:")
		fmt.Printf("  Database: %s\n", db.Path())
		fmt.Printf("  Events: %d\n", stats.TotalEvents)
		decisions := make([]string, 0, len(stats.ByDecision))
		for d := range stats.ByDecision {
			decisions = append(decisions, d)
		}
		sort.Strings(decisions)
		for _, d := range decisions {
			fmt.Printf("    %s: %d\n", d, stats.ByDecision[d])
		}
		fmt.Printf("  Average risk: %.2f\n", stats.AvgRisk)
		if stats.LastEventAt != nil {
			fmt.Printf("  Last event: %s\n", stats.LastEventAt.Local().Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

func openDB() (*database.DB, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	return database.Open(database.DefaultPath(dataDir))
}

var errNoQuery = errors.New("query must not be empty")
