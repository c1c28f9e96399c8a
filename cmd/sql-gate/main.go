package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/pingcap/tidb/parser/ast"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"sql-gate/internal/auditlog"
	"sql-gate/internal/auditor"
	"sql-gate/internal/extractor"
	"sql-gate/internal/gateway"
	"sql-gate/internal/model"
	"sql-gate/internal/parser"
	"sql-gate/internal/protocol"
	"sql-gate/internal/reporter"
	"sql-gate/internal/scanner"
	"sql-gate/internal/session"
	"sql-gate/internal/stream"
	"sql-gate/internal/vars"
)

var rootCmd = &cobra.Command{
	Use:   "sql-gate",
	Short: "MySQL audit gateway",
	Long: `sql-gate fronts MySQL change traffic: clients submit statement
batches through the MySQL wire protocol wrapped in inception magic
comments, and each statement is audited against the configured rules
before anything reaches the target server.`,
	SilenceUsage: true,
}

func main() {
	rootCmd.AddCommand(serveCmd(), checkCmd())
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	var configFile string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the wire-protocol audit gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			v := viper.New()
			v.SetDefault("listen", ":4000")
			v.SetDefault("log_level", "info")
			v.SetDefault("log_format", "console")
			if configFile != "" {
				v.SetConfigFile(configFile)
				if err := v.ReadInConfig(); err != nil {
					return fmt.Errorf("reading config: %w", err)
				}
			} else {
				v.SetConfigName("sql-gate")
				v.SetConfigType("yaml")
				v.AddConfigPath(".")
				v.AddConfigPath("/etc/sql-gate")
				if err := v.ReadInConfig(); err != nil {
					var notFound viper.ConfigFileNotFoundError
					if !errors.As(err, &notFound) {
						return fmt.Errorf("reading config: %w", err)
					}
				}
			}

			setupLogging(v.GetString("log_level"), v.GetString("log_format"))

			store := vars.NewStore()
			for name, raw := range v.GetStringMapString("variables") {
				if err := store.Set(name, raw); err != nil {
					return fmt.Errorf("applying variable %s: %w", name, err)
				}
			}

			audit := auditlog.New()
			defer audit.Close()

			gw := gateway.New(store, session.NewRegistry(), audit)
			srv := protocol.NewServer(v.GetString("listen"), gw)
			if err := srv.Start(); err != nil {
				return err
			}

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
			sig := <-stop
			log.Info().Str("signal", sig.String()).Msg("Shutting down")
			srv.Stop()
			return nil
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to config file (default: ./sql-gate.yaml)")
	return cmd
}

func checkCmd() *cobra.Command {
	var (
		exts      []string
		excludes  []string
		workers   int
		defaultDB string
		verbose   bool
	)

	cmd := &cobra.Command{
		Use:   "check [path...]",
		Short: "Audit .sql scripts and SQL embedded in source files offline",
		RunE: func(cmd *cobra.Command, args []string) error {
			setupLogging("warn", "console")
			if len(args) == 0 {
				args = []string{"."}
			}

			store := vars.NewStore()
			snap := store.Snapshot()

			proc := func(path string) ([]scanner.Finding, error) {
				return auditFile(path, snap, defaultDB)
			}

			ctx := context.Background()
			var results []scanner.Result
			for _, root := range args {
				if _, err := os.Stat(root); err != nil {
					return fmt.Errorf("source path: %w", err)
				}
				walker := scanner.NewFileWalker(exts, excludes)
				paths, errs := walker.Walk(ctx, root)
				pool := scanner.NewWorkerPool(workers, proc)
				for res := range pool.Start(ctx, paths) {
					results = append(results, res)
				}
				if err := <-errs; err != nil {
					return fmt.Errorf("scanning %s: %w", root, err)
				}
			}
			sort.Slice(results, func(i, j int) bool { return results[i].Path < results[j].Path })

			rpt := reporter.NewConsoleReporter(os.Stdout, verbose)
			if rpt.Report(results) > 0 {
				return fmt.Errorf("audit found errors")
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&exts, "ext", "x", []string{"sql", "go", "py", "java", "php"}, "File extensions to scan")
	cmd.Flags().StringSliceVarP(&excludes, "exclude", "e", []string{".git", "vendor", "node_modules"}, "Directory names to skip")
	cmd.Flags().IntVarP(&workers, "workers", "w", 8, "Concurrent file workers")
	cmd.Flags().StringVarP(&defaultDB, "db", "d", "", "Default database for unqualified table names")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Also print clean statements")
	return cmd
}

// auditFile audits one file offline. Plain .sql scripts run as one
// batch so later statements see tables created earlier in the same
// file; embedded SQL pulled out of source code is audited statement by
// statement.
func auditFile(path string, snap *vars.Snapshot, defaultDB string) ([]scanner.Finding, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	a := auditor.New(auditor.Config{Snap: snap, DefaultDB: defaultDB})
	sp := parser.NewSQLParser()

	if strings.EqualFold(filepath.Ext(path), ".sql") {
		return auditScript(a, sp, string(content)), nil
	}

	var findings []scanner.Finding
	for i, seg := range extractor.Extract(path, content) {
		node := auditOne(a, sp, i+1, seg.SQL, true)
		findings = append(findings, scanner.Finding{Line: seg.Line, Node: node})
	}
	return findings, nil
}

// auditScript audits a whole .sql script. The happy path parses the
// script in one go; when that fails the script is split so one bad
// statement does not hide the diagnostics of the rest.
func auditScript(a *auditor.Auditor, sp *parser.SQLParser, script string) []scanner.Finding {
	var findings []scanner.Finding

	stmts, err := sp.ParseScript(script)
	if err != nil {
		for i, sql := range stream.Split(script) {
			findings = append(findings, scanner.Finding{Node: auditOne(a, sp, i+1, sql, false)})
		}
		return findings
	}

	for i, stmt := range stmts {
		sql := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(stmt.Text()), ";"))
		node := &model.CacheNode{
			ID:          i + 1,
			SQL:         sql,
			Stage:       model.StageChecked,
			StageStatus: "Audit completed",
			SQLSha1:     parser.Fingerprint(sql),
			SQLType:     parser.Classify(stmt),
		}
		if alter, ok := stmt.(*ast.AlterTableStmt); ok {
			node.SubTypes = parser.AlterSubTypes(alter)
		}
		a.Check(stmt, node)
		findings = append(findings, scanner.Finding{Node: node})
	}
	return findings
}

// auditOne parses and audits a single statement. Extracted segments
// are regex matches and may be fragments, so their parse failures are
// warnings rather than errors.
func auditOne(a *auditor.Auditor, sp *parser.SQLParser, id int, sql string, extracted bool) *model.CacheNode {
	node := &model.CacheNode{
		ID:          id,
		SQL:         sql,
		Stage:       model.StageChecked,
		StageStatus: "Audit completed",
		SQLSha1:     parser.Fingerprint(sql),
	}

	stmt, err := sp.Parse(sql)
	if err != nil {
		node.SQLType = "UNKNOWN"
		level := model.SeverityError
		if extracted {
			level = model.SeverityWarning
		}
		node.Append(level, fmt.Sprintf("SQL parse error: %v", err))
		return node
	}

	node.SQLType = parser.Classify(stmt)
	if alter, ok := stmt.(*ast.AlterTableStmt); ok {
		node.SubTypes = parser.AlterSubTypes(alter)
	}
	a.Check(stmt, node)
	return node
}

func setupLogging(level, format string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	if format == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
}
