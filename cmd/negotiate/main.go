package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"negotiator/internal/catalog"
	"negotiator/internal/config"
	"negotiator/internal/domain"
	"negotiator/internal/engine"
	"negotiator/internal/orchestrator"
	"negotiator/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "negotiate",
	Short: "Combinatorial procurement negotiation CLI",
	Long: `negotiate runs a buyer's demand against a pool of sellers: each seller
bilaterally negotiates price, quality, delivery, and service over an
alternating-offer protocol, and the winner-determination solver picks the
demand-covering outcome set with the best aggregate buyer utility.`,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("NEGOTIATE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().String("config", "", "negotiation parameter document (YAML)")
	rootCmd.PersistentFlags().String("catalog", "", "seller bundle catalog document (YAML)")
	rootCmd.PersistentFlags().String("audit-db", "negotiate.db", "sqlite audit log path (\":memory:\" to disable persistence across runs)")
	rootCmd.PersistentFlags().String("products", "", "comma-separated product order, e.g. P1,P2,P3 (derived from the catalog when omitted)")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().Duration("timeout", 2*time.Minute, "overall run timeout")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("catalog", rootCmd.PersistentFlags().Lookup("catalog"))
	_ = viper.BindPFlag("audit-db", rootCmd.PersistentFlags().Lookup("audit-db"))
	_ = viper.BindPFlag("products", rootCmd.PersistentFlags().Lookup("products"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("timeout", rootCmd.PersistentFlags().Lookup("timeout"))
}

func registerCommands() {
	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(catalogCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(serveCmd())
}

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <demand>",
		Short: "Negotiate a demand vector against the seller pool",
		Long:  `Demand is a comma-separated list of product symbols where repetition signifies quantity, e.g. "P1,P1,P3".`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), viper.GetDuration("timeout"))
			defer cancel()
			return withEngine(ctx, func(ctx context.Context, e *engine.Engine) error {
				runID, result, err := e.Run(ctx, args[0])
				if err != nil {
					return err
				}
				return printRun(runID, result)
			})
		},
	}
	return cmd
}

func catalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "List the bundles every seller currently offers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				sellers, err := e.Catalog(ctx)
				if err != nil {
					return err
				}
				return printCatalog(sellers)
			})
		},
	}
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Inspect or update the negotiation parameter document",
	}
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configSetCmd())
	return cfg
}

func configShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			return printJSONOrTable(cfg.AllSettings())
		},
	}
	return cmd
}

func configSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <dotted.key> <value>",
		Short: "Merge one key onto the negotiation parameter document",
		Long:  `Changes apply to the negotiation.* / buyer.* / seller.* / weights.* / params.* / tfn.* namespace of this invocation's in-memory configuration only; the --config file is not modified.`,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			doc := nestedDocument(args[0], parseScalar(args[1]))
			if err := cfg.ApplyDocument(doc); err != nil {
				return err
			}
			fmt.Printf("%s = %v (in-memory only; persist by editing --config and re-running)\n", args[0], args[1])
			return nil
		},
	}
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				handler, err := server.New(server.Config{Engine: e, BasePath: basePath})
				if err != nil {
					return err
				}
				srv := &http.Server{Addr: addr, Handler: handler}
				go func() {
					<-cmd.Context().Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(shutdownCtx)
				}()
				fmt.Printf("Serving negotiation API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs)\n", addr, basePath)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	return cmd
}

// --- helpers ---

func loadConfig() (*config.Config, error) {
	path := viper.GetString("config")
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func loadCatalogProvider() catalog.Provider {
	path := viper.GetString("catalog")
	if path == "" {
		return nil
	}
	return catalog.NewFileProvider(path)
}

func productOrder(sellers map[string][]domain.Bundle) []domain.Product {
	if raw := viper.GetString("products"); raw != "" {
		var order []domain.Product
		for _, sym := range strings.Split(raw, ",") {
			sym = strings.TrimSpace(sym)
			if sym != "" {
				order = append(order, domain.NormalizeProduct(domain.Product(sym)))
			}
		}
		return order
	}
	seen := map[domain.Product]bool{}
	var order []domain.Product
	for _, bundles := range sellers {
		for _, b := range bundles {
			for _, it := range b.Items {
				if !seen[it.Product] {
					seen[it.Product] = true
					order = append(order, it.Product)
				}
			}
		}
	}
	sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })
	return order
}

func withEngine(ctx context.Context, fn func(context.Context, *engine.Engine) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	provider := loadCatalogProvider()
	var sellers map[string][]domain.Bundle
	if provider != nil {
		sellers, err = provider.Bundles(ctx)
		if err != nil {
			return fmt.Errorf("negotiate: load catalog: %w", err)
		}
	}
	order := productOrder(sellers)
	e, err := engine.New(cfg, engine.Options{
		AuditLogPath:    viper.GetString("audit-db"),
		CatalogProvider: provider,
		Sellers:         sellers,
		ProductOrder:    order,
	})
	if err != nil {
		return err
	}
	defer e.Close()
	return fn(ctx, e)
}

func printRun(runID string, result orchestrator.RunResult) error {
	if viper.GetBool("json") {
		return printJSON(struct {
			RunID string `json:"run_id,omitempty"`
			orchestrator.RunResult
		}{RunID: runID, RunResult: result})
	}
	if result.Err != nil {
		fmt.Printf("demand %q failed: %v\n", result.Demand, result.Err)
		return nil
	}
	fmt.Printf("demand %q: %d sellers contacted, total utility %.4f, run id %s\n",
		result.Demand, result.SellersContacted, result.TotalUtility, runID)
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Seller", "Bundle", "Utility to buyer"})
	for _, o := range result.Outcomes {
		tw.AppendRow(table.Row{o.SellerID, o.Bid.Bundle.ID, fmt.Sprintf("%.4f", o.UtilityToBuyer)})
	}
	tw.Render()
	for _, sym := range result.UnknownSymbols {
		fmt.Printf("warning: unknown product symbol %q ignored\n", sym)
	}
	return nil
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseScalar(s string) any {
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return s
}

func nestedDocument(dottedKey string, value any) map[string]any {
	parts := strings.Split(dottedKey, ".")
	doc := map[string]any{}
	cursor := doc
	for i, part := range parts {
		if i == len(parts)-1 {
			cursor[part] = value
			break
		}
		next := map[string]any{}
		cursor[part] = next
		cursor = next
	}
	return doc
}

func printCatalog(sellers map[string][]domain.Bundle) error {
	if viper.GetBool("json") {
		return printJSON(sellers)
	}
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Seller", "Bundle", "Items", "Synergy"})
	sellerIDs := make([]string, 0, len(sellers))
	for id := range sellers {
		sellerIDs = append(sellerIDs, id)
	}
	sort.Strings(sellerIDs)
	for _, sellerID := range sellerIDs {
		for _, b := range sellers[sellerID] {
			var items []string
			for _, it := range b.Items {
				items = append(items, fmt.Sprintf("%s x%d", it.Product, it.Quantity))
			}
			tw.AppendRow(table.Row{sellerID, b.ID, strings.Join(items, ", "), fmt.Sprintf("[%.2f, %.2f]", b.SynergyMin, b.SynergyMax)})
		}
	}
	tw.Render()
	return nil
}
