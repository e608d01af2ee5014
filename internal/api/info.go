package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-trails/internal/service"
)

type InfoHandler struct {
	dataDir  string
	dbOK     bool
	registry *service.Registry
	session  *service.Session
	bus      *service.EventBus
}

func NewInfoHandler(dataDir string, dbOK bool, registry *service.Registry, session *service.Session, bus *service.EventBus) *InfoHandler {
	return &InfoHandler{dataDir: dataDir, dbOK: dbOK, registry: registry, session: session, bus: bus}
}

func (h *InfoHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/info", h.GetInfo, huma.OperationTags("health"))
}

type InfoBody struct {
	Name       string   `json:"name" doc:"Service name"`
	Version    string   `json:"version" doc:"Service version"`
	DataDir    string   `json:"data_dir" doc:"Data directory path"`
	DB         bool     `json:"db" doc:"Whether the load log database is available"`
	Layers     int      `json:"layers" doc:"Layers in the registry"`
	Registered int      `json:"registered" doc:"Layers registered with the map session"`
	Bearing    float64  `json:"bearing" doc:"Current map bearing in degrees"`
	Viewers    int      `json:"viewers" doc:"Open viewer event streams"`
	Features   []string `json:"features" doc:"Available features"`
}

func (h *InfoHandler) GetInfo(ctx context.Context, input *struct{}) (*struct{ Body InfoBody }, error) {
	return &struct{ Body InfoBody }{Body: InfoBody{
		Name:       "plat-trails",
		Version:    "0.1.0",
		DataDir:    h.dataDir,
		DB:         h.dbOK,
		Layers:     h.registry.Len(),
		Registered: len(h.session.LayerIDs()),
		Bearing:    h.session.Bearing(),
		Viewers:    viewers(h.bus),
		Features:   []string{"geojson", "rtree", "duckdb", "datastar"},
	}}, nil
}

func viewers(bus *service.EventBus) int {
	if bus == nil {
		return 0
	}
	return bus.Subscribers()
}
