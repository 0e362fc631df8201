package warp

import (
	"fmt"
	"time"

	"galaxy-server/internal/sector"

	"github.com/google/uuid"
)

type Node struct {
	ID          int
	Coordinates sector.Coordinates
}

// Connection is an adjacency edge. When OneWay is set it can only be
// traversed from A to B.
type Connection struct {
	A        int     `json:"a"`
	B        int     `json:"b"`
	OneWay   bool    `json:"one_way"`
	Natural  bool    `json:"natural"`
	Distance float64 `json:"distance"`
	TurnCost float64 `json:"turn_cost"`
}

func (c Connection) Other(id int) int {
	if c.A == id {
		return c.B
	}
	return c.A
}

// Traversable reports whether the edge can be followed starting at from.
func (c Connection) Traversable(from int) bool {
	if c.A == from {
		return true
	}
	return c.B == from && !c.OneWay
}

type TunnelType string

const (
	TunnelNatural    TunnelType = "natural"
	TunnelStandard   TunnelType = "standard"
	TunnelQuantum    TunnelType = "quantum"
	TunnelAncient    TunnelType = "ancient"
	TunnelArtificial TunnelType = "artificial"
	TunnelUnstable   TunnelType = "unstable"
)

type TunnelStatus string

const (
	StatusActive    TunnelStatus = "active"
	StatusForming   TunnelStatus = "forming"
	StatusDegrading TunnelStatus = "degrading"
	StatusCollapsed TunnelStatus = "collapsed"
)

type tunnelProfile struct {
	Weight       int
	StabilityMin float64
	StabilityMax float64
	DecayPerDay  float64
	CostFactor   float64
}

// Artificial tunnels are only ever built by players, so their weight is zero.
var tunnelProfiles = map[TunnelType]tunnelProfile{
	TunnelStandard:   {60, 0.90, 1.00, 0.001, 1.0},
	TunnelQuantum:    {15, 0.80, 0.95, 0.003, 0.5},
	TunnelAncient:    {10, 0.95, 1.00, 0.0005, 0.8},
	TunnelNatural:    {10, 0.70, 0.90, 0.002, 1.0},
	TunnelUnstable:   {5, 0.30, 0.60, 0.02, 1.5},
	TunnelArtificial: {0, 0.85, 0.95, 0.005, 0.7},
}

var tunnelOrder = []TunnelType{TunnelStandard, TunnelQuantum, TunnelAncient, TunnelNatural, TunnelUnstable, TunnelArtificial}

func (t TunnelType) Valid() bool {
	_, ok := tunnelProfiles[t]
	return ok
}

// Construction records a player-built tunnel.
type Construction struct {
	BuilderID            int       `json:"builder_id"`
	StartedAt            time.Time `json:"started_at"`
	CompletedAt          time.Time `json:"completed_at"`
	ExpectedLifetimeDays int       `json:"expected_lifetime_days"`
}

type Tunnel struct {
	ID           uuid.UUID     `json:"id"`
	A            int           `json:"a"`
	B            int           `json:"b"`
	Type         TunnelType    `json:"type"`
	Status       TunnelStatus  `json:"status"`
	Stability    float64       `json:"stability"`
	Distance     float64       `json:"distance"`
	TurnCost     float64       `json:"turn_cost"`
	Discovered   bool          `json:"discovered"`
	DecayPerDay  float64       `json:"decay_per_day"`
	Construction *Construction `json:"construction,omitempty"`
}

func (t Tunnel) IsConstructed() bool {
	return t.Construction != nil
}

// Endpoint is a hub or entry sector eligible for a long-distance tunnel.
type Endpoint struct {
	SectorID    int
	ClusterID   uuid.UUID
	Coordinates sector.Coordinates
}

type Config struct {
	Neighbors           int     `json:"neighbors" yaml:"neighbors"`
	MaxDegree           int     `json:"max_degree" yaml:"max_degree"`
	HubMaxDegree        int     `json:"hub_max_degree" yaml:"hub_max_degree"`
	TargetAverageDegree float64 `json:"target_average_degree" yaml:"target_average_degree"`
	Jitter              float64 `json:"jitter" yaml:"jitter"`
	OneWayMin           float64 `json:"one_way_min" yaml:"one_way_min"`
	OneWayMax           float64 `json:"one_way_max" yaml:"one_way_max"`
	SectorsPerTunnel    int     `json:"sectors_per_tunnel" yaml:"sectors_per_tunnel"`
	MinTunnelDistance   float64 `json:"min_tunnel_distance" yaml:"min_tunnel_distance"`
}

func DefaultConfig() Config {
	return Config{
		Neighbors:           6,
		MaxDegree:           6,
		HubMaxDegree:        12,
		TargetAverageDegree: 3.2,
		Jitter:              0.25,
		OneWayMin:           0.02,
		OneWayMax:           0.08,
		SectorsPerTunnel:    100,
		MinTunnelDistance:   60,
	}
}

func (c Config) Validate() error {
	if c.Neighbors < 1 {
		return fmt.Errorf("neighbors must be at least 1")
	}
	if c.MaxDegree < 2 || c.HubMaxDegree < c.MaxDegree {
		return fmt.Errorf("degree caps invalid: max %d hub %d", c.MaxDegree, c.HubMaxDegree)
	}
	if c.TargetAverageDegree < 2 || c.TargetAverageDegree > float64(c.MaxDegree) {
		return fmt.Errorf("target average degree %.1f outside [2,%d]", c.TargetAverageDegree, c.MaxDegree)
	}
	if c.OneWayMin < 0 || c.OneWayMax > 1 || c.OneWayMin > c.OneWayMax {
		return fmt.Errorf("one-way ratio range [%.2f,%.2f] invalid", c.OneWayMin, c.OneWayMax)
	}
	if c.SectorsPerTunnel < 1 {
		return fmt.Errorf("sectors per tunnel must be at least 1")
	}
	return nil
}
