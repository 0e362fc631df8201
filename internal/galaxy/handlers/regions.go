package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"time"

	"galaxy-server/internal/cluster"
	"galaxy-server/internal/district"
	"galaxy-server/internal/galaxy"
	"galaxy-server/internal/middleware"
	"galaxy-server/internal/sector"
	"galaxy-server/internal/shared/errors"
	"galaxy-server/internal/shared/response"
	"galaxy-server/internal/universe"
	"galaxy-server/internal/warp"
	"galaxy-server/internal/zone"

	"github.com/google/uuid"
)

type ClusterView struct {
	ID          uuid.UUID           `json:"id"`
	Name        string              `json:"name"`
	Type        cluster.ClusterType `json:"type"`
	Range       sector.Range        `json:"range"`
	DistrictID  *uuid.UUID          `json:"district_id,omitempty"`
	Hubs        []int               `json:"hubs"`
	EntryPoints []int               `json:"entry_points"`
	Stats       cluster.Stats       `json:"stats"`
}

type RegionView struct {
	universe.RegionInfo
	Settings  universe.RegionSettings `json:"settings"`
	Zones     []zone.Zone             `json:"zones"`
	Districts []district.District     `json:"districts,omitempty"`
	Clusters  []ClusterView           `json:"clusters"`
}

type SectorView struct {
	*sector.Sector
	RegionName string        `json:"region_name"`
	Version    int64         `json:"version"`
	ZoneID     uuid.UUID     `json:"zone_id"`
	ZoneType   zone.ZoneType `json:"zone_type"`
	ClusterID  uuid.UUID     `json:"cluster_id"`
	DistrictID *uuid.UUID    `json:"district_id,omitempty"`
	Neighbors  []int         `json:"neighbors"`
}

type OwnershipRequest struct {
	Assets  []sector.Asset `json:"assets,omitempty"`
	Release bool           `json:"release,omitempty"`
}

type TunnelRequest struct {
	From                 int `json:"from"`
	To                   int `json:"to"`
	ExpectedLifetimeDays int `json:"expected_lifetime_days"`
}

type TunnelView struct {
	warp.Tunnel
	RegionName string `json:"region_name"`
	Version    int64  `json:"version"`
}

type RegionHandler struct {
	service *galaxy.Service
}

func NewRegionHandler(service *galaxy.Service) *RegionHandler {
	return &RegionHandler{service: service}
}

func (h *RegionHandler) List(w http.ResponseWriter, r *http.Request) {
	logger := slog.With("handler", "list_regions")

	if r.Method != http.MethodGet {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	snaps := h.service.Store().List()
	infos := make([]universe.RegionInfo, 0, len(snaps))
	for _, s := range snaps {
		infos = append(infos, s.Info())
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })

	response.Success(w, http.StatusOK, infos)
}

func (h *RegionHandler) Get(w http.ResponseWriter, r *http.Request) {
	logger := slog.With("handler", "get_region")

	if r.Method != http.MethodGet {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	snap, err := h.snapshot(r)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	view := RegionView{
		RegionInfo: snap.Info(),
		Settings:   snap.Settings,
		Zones:      snap.Zones,
		Districts:  snap.Districts,
		Clusters:   make([]ClusterView, 0, len(snap.Clusters)),
	}
	for _, c := range snap.Clusters {
		view.Clusters = append(view.Clusters, ClusterView{
			ID:          c.ID,
			Name:        c.Name,
			Type:        c.Type,
			Range:       c.Range,
			DistrictID:  c.DistrictID,
			Hubs:        c.Hubs,
			EntryPoints: c.EntryPoints,
			Stats:       c.Stats,
		})
	}

	response.Success(w, http.StatusOK, view)
}

func (h *RegionHandler) Sector(w http.ResponseWriter, r *http.Request) {
	logger := slog.With("handler", "get_sector")

	if r.Method != http.MethodGet {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	snap, err := h.snapshot(r)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}
	id, err := sectorID(r)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	view, err := sectorView(snap, id)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}
	response.Success(w, http.StatusOK, view)
}

// Ownership claims or releases a sector for the calling player. Sectors
// owned by someone else can only be changed by an admin.
func (h *RegionHandler) Ownership(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := slog.With("handler", "set_ownership")

	if r.Method != http.MethodPost {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	claims := middleware.GetUserFromContext(r)
	if claims == nil {
		response.Error(w, r, logger, errors.Unauthorized("authentication required"))
		return
	}

	snap, err := h.snapshot(r)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}
	id, err := sectorID(r)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req OwnershipRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.Error(w, r, logger, errors.WrapValidation("invalid request body", err))
		return
	}

	var ownership *sector.Ownership
	if !req.Release {
		ownership = &sector.Ownership{
			OwnerID:   claims.PlayerID,
			ClaimedAt: time.Now().UTC(),
			Assets:    req.Assets,
		}
	}

	next, err := h.service.SetOwnership(ctx, snap.RegionName, id, galaxy.Claimant{
		PlayerID: claims.PlayerID,
		Admin:    claims.IsAdmin(),
	}, ownership)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	view, err := sectorView(next, id)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}
	response.Success(w, http.StatusOK, view)
}

// ConstructTunnel builds a player tunnel between two sectors the caller owns.
func (h *RegionHandler) ConstructTunnel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := slog.With("handler", "construct_tunnel")

	if r.Method != http.MethodPost {
		response.Error(w, r, logger, errors.MethodNotAllowed(r.Method))
		return
	}

	claims := middleware.GetUserFromContext(r)
	if claims == nil {
		response.Error(w, r, logger, errors.Unauthorized("authentication required"))
		return
	}

	snap, err := h.snapshot(r)
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req TunnelRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		response.Error(w, r, logger, errors.WrapValidation("invalid request body", err))
		return
	}
	if req.ExpectedLifetimeDays < 0 {
		response.Error(w, r, logger, errors.Validation("expected_lifetime_days must not be negative"))
		return
	}

	now := time.Now().UTC()
	next, tunnel, err := h.service.ConstructTunnel(ctx, snap.RegionName, req.From, req.To, galaxy.Claimant{
		PlayerID: claims.PlayerID,
		Admin:    claims.IsAdmin(),
	}, warp.Construction{
		BuilderID:            claims.PlayerID,
		StartedAt:            now,
		CompletedAt:          now,
		ExpectedLifetimeDays: req.ExpectedLifetimeDays,
	})
	if err != nil {
		response.Error(w, r, logger, err)
		return
	}

	response.Success(w, http.StatusCreated, TunnelView{
		Tunnel:     *tunnel,
		RegionName: next.RegionName,
		Version:    next.Version,
	})
}

func (h *RegionHandler) snapshot(r *http.Request) (*universe.Snapshot, error) {
	name := r.PathValue("name")
	if name == "" {
		return nil, errors.Validation("region name is required")
	}
	snap := h.service.Store().Get(name)
	if snap == nil {
		return nil, errors.NotFoundf("region %s not found", name)
	}
	return snap, nil
}

func sectorID(r *http.Request) (int, error) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		return 0, errors.WrapValidation("invalid sector ID format", err)
	}
	return id, nil
}

func sectorView(snap *universe.Snapshot, id int) (*SectorView, error) {
	sec, ok := snap.Sector(id)
	if !ok {
		return nil, errors.NotFoundf("sector %d not found in region %s", id, snap.RegionName)
	}

	view := &SectorView{
		Sector:     sec,
		RegionName: snap.RegionName,
		Version:    snap.Version,
		Neighbors:  snap.Neighbors(id),
	}
	if z, ok := snap.ZoneOf(id); ok {
		view.ZoneID = z.ID
		view.ZoneType = z.Type
	}
	if c, ok := snap.ClusterOf(id); ok {
		view.ClusterID = c.ID
	}
	if d, ok := snap.DistrictOf(id); ok {
		did := d.ID
		view.DistrictID = &did
	}
	if view.Neighbors == nil {
		view.Neighbors = []int{}
	}
	return view, nil
}
