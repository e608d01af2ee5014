package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/joeblew999/plat-trails/internal/logger"
	"github.com/joeblew999/plat-trails/internal/server"
	"github.com/joeblew999/plat-trails/internal/service"
)

// Options defines all CLI flags and env vars for the trails server.
// Flags: --host, --port, --data-dir, --data-url, --registry, ...
// Env vars: SERVICE_HOST, SERVICE_PORT, SERVICE_DATA_DIR, SERVICE_DATA_URL, ...
type Options struct {
	Host         string `doc:"Host to bind to" default:"0.0.0.0"`
	Port         int    `doc:"Port to listen on" short:"p" default:"8086"`
	DataDir      string `doc:"Directory holding the GeoJSON sources" default:"data"`
	DataURL      string `doc:"Base URL of async layer sources (default: this server's /data/)"`
	Registry     string `doc:"YAML layer registry (default: built-in trails)"`
	NorthArrow   string `doc:"Id of the north arrow element, empty to disable" default:"north-arrow"`
	GlyphsURL    string `doc:"Glyph URL template for map labels"`
	DBName       string `doc:"DuckDB load log name under data-dir/duckdb, empty for in-memory" default:"trails"`
	DBExtensions string `doc:"Comma-separated DuckDB extensions to load" default:"spatial"`
	LogLevel     string `doc:"Log level (debug, info, warn, error)" default:"info"`
	LogFormat    string `doc:"Log format (console, json)" default:"console"`
}

func newServer(opts *Options) (*server.Server, error) {
	var exts []string
	for _, e := range strings.Split(opts.DBExtensions, ",") {
		if e = strings.TrimSpace(e); e != "" {
			exts = append(exts, e)
		}
	}
	return server.New(server.Config{
		Host:         opts.Host,
		Port:         fmt.Sprintf("%d", opts.Port),
		DataDir:      opts.DataDir,
		DataURL:      opts.DataURL,
		Registry:     opts.Registry,
		NorthArrow:   opts.NorthArrow,
		GlyphsURL:    opts.GlyphsURL,
		DBName:       opts.DBName,
		DBExtensions: exts,
	})
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		ctx, cancel := context.WithCancel(context.Background())
		httpServer := &http.Server{ReadHeaderTimeout: 10 * time.Second}

		hooks.OnStart(func() {
			defer cancel()
			logger.Setup(opts.LogLevel, opts.LogFormat)

			srv, err := newServer(opts)
			if err != nil {
				log.Fatal().Err(err).Msg("Invalid configuration")
			}
			defer srv.Close()

			addr := fmt.Sprintf("%s:%d", opts.Host, opts.Port)
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				log.Fatal().Err(err).Str("addr", addr).Msg("Failed to listen")
			}

			// Async layers fetch from /data/ on this listener once Serve runs.
			srv.Start(ctx)

			displayHost := opts.Host
			if displayHost == "0.0.0.0" {
				displayHost = "localhost"
			}
			baseURL := fmt.Sprintf("http://%s:%d", displayHost, opts.Port)

			fmt.Println()
			fmt.Printf("plat-trails server starting...\n")
			fmt.Printf("  Server:  %s\n", baseURL)
			fmt.Printf("  Data:    %s\n", opts.DataDir)
			fmt.Printf("  Layers:  %d\n", srv.Registry().Len())
			fmt.Println()
			fmt.Printf("  Map:     %s/viewer\n", baseURL)
			fmt.Printf("  Docs:    %s/docs\n", baseURL)
			fmt.Printf("  OpenAPI: %s/openapi.json\n", baseURL)
			fmt.Println()

			httpServer.Handler = srv
			if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatal().Err(err).Msg("Server error")
			}
		})

		hooks.OnStop(func() {
			cancel()
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			httpServer.Shutdown(shutdownCtx)
		})
	})

	cli.Root().Use = "trails"
	cli.Root().Short = "Historical trails map server"
	cli.Root().Version = "0.1.0"

	// spec subcommand: export OpenAPI spec
	specCmd := &cobra.Command{
		Use:   "spec",
		Short: "Export OpenAPI spec (JSON by default, --yaml for YAML)",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			opts.DBName = ""
			srv, err := newServer(opts)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			defer srv.Close()
			spec := srv.OpenAPI()

			useYAML, _ := cmd.Flags().GetBool("yaml")

			var output []byte
			if useYAML {
				output, err = yaml.Marshal(spec)
			} else {
				output, err = json.MarshalIndent(spec, "", "  ")
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error marshaling spec: %v\n", err)
				os.Exit(1)
			}
			fmt.Println(string(output))
		}),
	}
	specCmd.Flags().BoolP("yaml", "y", false, "Output as YAML instead of JSON")
	cli.Root().AddCommand(specCmd)

	// layers subcommand: print the registry as YAML
	layersCmd := &cobra.Command{
		Use:   "layers",
		Short: "Print the layer registry as YAML",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			reg, err := loadRegistry(opts)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			out, err := reg.Marshal()
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error marshaling registry: %v\n", err)
				os.Exit(1)
			}
			os.Stdout.Write(out)
		}),
	}

	checkCmd := &cobra.Command{
		Use:   "check",
		Short: "Validate the registry and report missing local sources",
		Run: humacli.WithOptions(func(cmd *cobra.Command, args []string, opts *Options) {
			reg, err := loadRegistry(opts)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Invalid registry: %v\n", err)
				os.Exit(1)
			}
			missing := missingSources(reg, opts.DataDir)
			for _, m := range missing {
				fmt.Printf("  missing: %s\n", m)
			}
			fmt.Printf("%d layers, %d with tooltips, %d missing sources\n",
				reg.Len(), len(reg.Tooltips()), len(missing))

			if strict, _ := cmd.Flags().GetBool("strict"); strict && len(missing) > 0 {
				os.Exit(1)
			}
		}),
	}
	checkCmd.Flags().Bool("strict", false, "Fail when a local source is missing")
	layersCmd.AddCommand(checkCmd)
	cli.Root().AddCommand(layersCmd)

	cli.Run()
}

func loadRegistry(opts *Options) (*service.Registry, error) {
	if opts.Registry == "" {
		return service.DefaultRegistry(), nil
	}
	return service.LoadRegistry(opts.Registry)
}

// missingSources lists local sources that are not in dataDir.
func missingSources(reg *service.Registry, dataDir string) []string {
	var missing []string
	for _, l := range reg.All() {
		if l.Remote() {
			continue
		}
		if _, err := os.Stat(filepath.Join(dataDir, l.Source)); err != nil {
			missing = append(missing, l.ID+" ("+l.Source+")")
		}
	}
	return missing
}
