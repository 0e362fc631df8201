package tables

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"galaxy-server/internal/cluster"
	"galaxy-server/internal/shared/errors"
)

func TestDefault_IsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default tables invalid: %v", err)
	}
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	tbl, err := Load("")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if tbl.Density != Default().Density || len(tbl.Districts) != 6 {
		t.Fatalf("unexpected tables %+v", tbl)
	}
}

func TestLoad_ShippedConfig(t *testing.T) {
	tbl, err := Load(filepath.Join("..", "..", "configs", "generation.yaml"))
	if err != nil {
		t.Fatalf("shipped config rejected: %v", err)
	}
	if got := tbl.StandardSplits[0].Percent; got != 33.34 {
		t.Fatalf("first split percent = %v, want 33.34", got)
	}
	if d := tbl.Distribution("player_owned"); len(d) != 7 || d[0].Type != cluster.TypeStandard {
		t.Fatalf("player distribution = %+v", d)
	}
	if tbl.Distribution("terran_space")[0].Type != cluster.DistributionFederation[0].Type {
		t.Fatalf("terran distribution should keep its default")
	}
}

func TestParse_PartialSectionKeepsDefaults(t *testing.T) {
	tbl, err := Parse([]byte("nebula:\n  selection_probability: 0.5\n"))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if tbl.Nebula.SelectionProbability != 0.5 {
		t.Fatalf("selection = %v, want 0.5", tbl.Nebula.SelectionProbability)
	}
	if tbl.Nebula.MaxCenterRetries != 8 || tbl.Nebula.MinCoverage != 30 {
		t.Fatalf("unset nebula fields lost their defaults: %+v", tbl.Nebula)
	}
}

func TestParse_ClusterTypeOverride(t *testing.T) {
	tbl, err := Parse([]byte(`
cluster_types:
  - type: frontier_outpost
    label: Outpost
    min_size: 6
    max_size: 12
    warp_stability: 0.6
`))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	p, ok := tbl.Catalog.Profile(cluster.TypeFrontierOutpost)
	if !ok || p.MinSize != 6 || p.MaxSize != 12 {
		t.Fatalf("override not applied: %+v", p)
	}
	if _, ok := tbl.Catalog.Profile(cluster.TypeTradeHub); !ok {
		t.Fatalf("other types should remain")
	}
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"unknown top-level key", "galaxies: 3\n", "schema"},
		{"density out of band", "density:\n  port_rate: 0.5\n", "schema"},
		{"zone level too high", "zone_splits:\n  - {name: A, type: custom, percent: 100, policing_level: 11}\n", "schema"},
		{"zone splits not summing to 100", "zone_splits:\n  - {name: A, type: custom, percent: 60}\n", "sum"},
		{"unknown cluster type", "distributions:\n  player_owned:\n    - {type: dyson_sphere, weight: 1}\n", "dyson_sphere"},
		{"district shares", "districts:\n  - {key: only, name: Only, percent: 50, port_rate: 0.1, planet_rate: 0.03, distribution: [{type: standard, weight: 1}]}\n", "sum to 50"},
		{"bad yaml", "density: [\n", "invalid"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			if err == nil {
				t.Fatalf("expected an error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not mention %q", err, tt.want)
			}
			if errors.GetType(err) != errors.ErrorTypeValidation {
				t.Fatalf("error type = %s, want validation", errors.GetType(err))
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil || !os.IsNotExist(unwrapAll(err)) {
		t.Fatalf("expected a not-exist error, got %v", err)
	}
}

func unwrapAll(err error) error {
	for {
		u, ok := err.(interface{ Unwrap() error })
		if !ok || u.Unwrap() == nil {
			return err
		}
		err = u.Unwrap()
	}
}
