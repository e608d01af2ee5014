package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humago"
	"github.com/rs/zerolog/log"

	"github.com/joeblew999/plat-trails/internal/api"
	"github.com/joeblew999/plat-trails/internal/api/viewer"
	"github.com/joeblew999/plat-trails/internal/db"
	"github.com/joeblew999/plat-trails/internal/humastar"
	"github.com/joeblew999/plat-trails/internal/logger"
	"github.com/joeblew999/plat-trails/internal/service"
	"github.com/joeblew999/plat-trails/internal/templates"
)

// Config holds the server configuration.
type Config struct {
	Host         string
	Port         string
	DataDir      string   // GeoJSON sources, also served under /data/
	DataURL      string   // base URL of async layer sources; defaults to this server's /data/
	Registry     string   // optional YAML registry file
	NorthArrow   string   // id of the north arrow element, empty for none
	GlyphsURL    string   // overrides the default glyph server
	DBName       string   // empty for an in-memory load log
	DBExtensions []string // DuckDB extensions to load
}

// Server is the trails HTTP server. It owns the single map session.
type Server struct {
	config   Config
	mux      *http.ServeMux
	handler  http.Handler
	humaAPI  huma.API
	db       *sql.DB
	services *api.Services
	renderer *templates.Renderer
	viewer   *viewer.Handler
	bus      *service.EventBus
	loadLog  *db.LoadLog
}

// New creates a new trails server.
func New(cfg Config) (*Server, error) {
	registry := service.DefaultRegistry()
	if cfg.Registry != "" {
		r, err := service.LoadRegistry(cfg.Registry)
		if err != nil {
			return nil, err
		}
		registry = r
	}

	renderer, err := templates.New()
	if err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}

	mux := http.NewServeMux()

	links := humastar.Links{}
	humaConfig := huma.DefaultConfig("plat-trails API", "1.0.0")
	humaConfig.Info.Description = "Historical trails map: layer registry, map session, and the Datastar viewer."
	humaConfig.Servers = []*huma.Server{
		{URL: fmt.Sprintf("http://%s:%s", cfg.Host, cfg.Port), Description: "Local server"},
	}
	// Disable $schema property in responses (cleaner JSON)
	humaConfig.CreateHooks = []func(huma.Config) huma.Config{}
	humaConfig.Transformers = append(humaConfig.Transformers, links.Transformer())

	humaAPI := humago.New(mux, humaConfig)

	s := &Server{
		config:   cfg,
		mux:      mux,
		humaAPI:  humaAPI,
		renderer: renderer,
		bus:      service.NewEventBus(),
	}

	// The load log is optional; the map works without it.
	dataDir := cfg.DataDir
	if cfg.DBName == "" {
		dataDir = ""
	}
	conn, err := db.Open(db.Config{DataDir: dataDir, DBName: cfg.DBName, Extensions: cfg.DBExtensions})
	if err != nil {
		log.Warn().Err(err).Msg("DuckDB unavailable, load log disabled")
	} else {
		s.db = conn
		if s.loadLog, err = db.NewLoadLog(context.Background(), conn); err != nil {
			log.Warn().Err(err).Msg("Failed to create load log")
		}
	}

	session := service.NewSession()
	sources := service.NewSourceService(cfg.DataDir)

	loaderCfg := service.LoaderConfig{BaseURL: s.dataURL(), Bus: s.bus}
	if s.loadLog != nil {
		loaderCfg.Recorder = s.loadLog
	}
	loader := service.NewLoader(registry, sources, loaderCfg)

	style := service.DefaultStyleConfig()
	if cfg.GlyphsURL != "" {
		style.GlyphsURL = cfg.GlyphsURL
	}

	s.services = &api.Services{
		Registry: registry,
		Session:  session,
		Loader:   loader,
		Source:   sources,
		Style:    style,
	}

	legend := service.NewLegendRenderer(registry, session)
	s.viewer = viewer.NewHandler(viewer.Controllers{
		Registry:    registry,
		Session:     session,
		Tasks:       loader,
		Visibility:  service.NewVisibilityController(registry, session, loader, legend, s.bus),
		Legend:      legend,
		Tooltip:     service.NewTooltipController(registry, session),
		Orientation: service.NewOrientationIndicator(session, cfg.NorthArrow),
		Bus:         s.bus,
	}, renderer)

	s.routes(links)
	s.handler = logger.RequestLogger(s.mux)
	return s, nil
}

// Start registers every layer with the session. Synchronous layers are in
// place when it returns; async layers follow in the background. Cancel ctx
// to abort pending fetches.
func (s *Server) Start(ctx context.Context) {
	s.services.Loader.Start(ctx, s.services.Session)
}

// Wait blocks until every async layer fetch has settled.
func (s *Server) Wait() {
	s.services.Loader.Wait()
}

// OpenAPI returns the generated OpenAPI document.
func (s *Server) OpenAPI() *huma.OpenAPI {
	return s.humaAPI.OpenAPI()
}

// Registry returns the layer registry in use.
func (s *Server) Registry() *service.Registry {
	return s.services.Registry
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Close closes server resources.
func (s *Server) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Server) routes(links humastar.Links) {
	// Huma REST API routes (OpenAPI-documented JSON endpoints)
	api.RegisterRoutes(s.humaAPI, s.services)
	api.NewInfoHandler(s.config.DataDir, s.db != nil, s.services.Registry, s.services.Session, s.bus).RegisterRoutes(s.humaAPI)
	api.NewDBHandler(s.db, s.loadLog).RegisterRoutes(s.humaAPI)

	// Viewer SSE routes using Huma + Datastar SDK
	s.viewer.RegisterRoutes(s.humaAPI)

	humastar.AutoLinks(s.humaAPI, "viewer", links)

	// GeoJSON sources, fetched by the async layers
	s.mux.Handle("/data/", http.StripPrefix("/data/", s.handleData()))

	// Page routes
	s.mux.HandleFunc("/viewer", s.viewer.Page)
	s.mux.HandleFunc("/", s.handleRoot(links))
}

// dataURL is where async layers fetch relative sources from.
func (s *Server) dataURL() string {
	if s.config.DataURL != "" {
		return s.config.DataURL
	}
	if s.config.Port == "" {
		return ""
	}
	host := s.config.Host
	if host == "" || host == "0.0.0.0" {
		host = "localhost"
	}
	return fmt.Sprintf("http://%s:%s/data", host, s.config.Port)
}

func (s *Server) handleRoot(links humastar.Links) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		for _, link := range links["/health"] {
			w.Header().Add("Link", link)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"service": "plat-trails",
			"status":  "running",
			"viewer":  "/viewer",
		})
	}
}

// handleData serves GeoJSON sources from the data directory.
func (s *Server) handleData() http.Handler {
	files := http.FileServer(http.Dir(s.config.DataDir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, HEAD, OPTIONS")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		if !strings.HasSuffix(r.URL.Path, ".json") && !strings.HasSuffix(r.URL.Path, ".geojson") {
			http.NotFound(w, r)
			return
		}
		if strings.HasSuffix(r.URL.Path, ".geojson") {
			w.Header().Set("Content-Type", "application/geo+json")
		}
		files.ServeHTTP(w, r)
	})
}
