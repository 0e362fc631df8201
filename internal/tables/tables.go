// Package tables loads the generation tables: cluster type profiles,
// distributions, district profiles, densities and the nebula and warp
// policies. Built-in defaults apply unless a YAML file overrides them.
package tables

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"galaxy-server/internal/attribute"
	"galaxy-server/internal/cluster"
	"galaxy-server/internal/district"
	"galaxy-server/internal/nebula"
	"galaxy-server/internal/shared/errors"
	"galaxy-server/internal/warp"
	"galaxy-server/internal/zone"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed schema.json
var schemaJSON string

const schemaURL = "generation.schema.json"

// Tables is the validated parameter set of a generation run.
type Tables struct {
	Density        attribute.Density
	Nebula         nebula.Policy
	Warp           warp.Config
	Catalog        *cluster.Catalog
	Distributions  map[string]cluster.Distribution
	Districts      []district.Profile
	StandardSplits []zone.Split
}

// file mirrors the YAML document. Struct sections are decoded over the
// defaults so a file may set a single field.
type file struct {
	Density       attribute.Density               `yaml:"density"`
	Nebula        nebula.Policy                   `yaml:"nebula"`
	Warp          warp.Config                     `yaml:"warp"`
	ClusterTypes  []cluster.TypeProfile           `yaml:"cluster_types"`
	Distributions map[string]cluster.Distribution `yaml:"distributions"`
	Districts     []district.Profile              `yaml:"districts"`
	ZoneSplits    []zone.Split                    `yaml:"zone_splits"`
}

func Default() *Tables {
	return &Tables{
		Density: attribute.DefaultDensity(),
		Nebula:  nebula.DefaultPolicy(),
		Warp:    warp.DefaultConfig(),
		Catalog: cluster.DefaultCatalog(),
		Distributions: map[string]cluster.Distribution{
			"player_owned": cluster.DistributionMixed,
			"terran_space": cluster.DistributionFederation,
		},
		Districts:      district.DefaultProfiles(),
		StandardSplits: zone.StandardSplits(),
	}
}

// Distribution returns the cluster distribution of a region kind.
func (t *Tables) Distribution(kind string) cluster.Distribution {
	if d, ok := t.Distributions[kind]; ok {
		return d
	}
	return cluster.DistributionMixed
}

// Load returns the defaults when path is empty, otherwise the defaults
// overridden by the file.
func Load(path string) (*Tables, error) {
	if path == "" {
		return Default(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read generation tables: %w", err)
	}
	t, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

func Parse(raw []byte) (*Tables, error) {
	if err := validateSchema(raw); err != nil {
		return nil, err
	}

	t := Default()
	f := file{Density: t.Density, Nebula: t.Nebula, Warp: t.Warp}
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, errors.WrapValidation("invalid generation tables", err)
	}

	t.Density, t.Nebula, t.Warp = f.Density, f.Nebula, f.Warp
	if len(f.ClusterTypes) > 0 {
		catalog, err := t.Catalog.WithOverrides(f.ClusterTypes)
		if err != nil {
			return nil, errors.WrapValidation("invalid cluster types", err)
		}
		t.Catalog = catalog
	}
	for kind, d := range f.Distributions {
		t.Distributions[kind] = d
	}
	if len(f.Districts) > 0 {
		t.Districts = f.Districts
	}
	if len(f.ZoneSplits) > 0 {
		t.StandardSplits = f.ZoneSplits
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Validate checks the cross-field rules the schema cannot express.
func (t *Tables) Validate() error {
	if err := t.Density.Validate(); err != nil {
		return errors.WrapValidation("invalid density", err)
	}
	if err := t.Nebula.Validate(); err != nil {
		return errors.WrapValidation("invalid nebula policy", err)
	}
	if err := t.Warp.Validate(); err != nil {
		return errors.WrapValidation("invalid warp config", err)
	}
	for kind, d := range t.Distributions {
		if err := d.Validate(t.Catalog); err != nil {
			return fmt.Errorf("distribution %s: %w", kind, err)
		}
	}
	total := 0
	for _, p := range t.Districts {
		if err := p.Validate(t.Catalog); err != nil {
			return err
		}
		total += p.Percent
	}
	if total != 100 {
		return errors.Validationf("district shares sum to %d, want 100", total)
	}
	return zone.ValidateSplits(t.StandardSplits)
}

func compileSchema() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	if err := c.AddResource(schemaURL, strings.NewReader(schemaJSON)); err != nil {
		return nil, err
	}
	return c.Compile(schemaURL)
}

// validateSchema checks the YAML document against the embedded schema. The
// document goes through JSON so the validator sees plain JSON values.
func validateSchema(raw []byte) error {
	schema, err := compileSchema()
	if err != nil {
		return errors.WrapInternal("generation schema does not compile", err)
	}

	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return errors.WrapValidation("invalid generation tables", err)
	}
	if doc == nil {
		return nil
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return errors.WrapValidation("generation tables are not JSON compatible", err)
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return errors.WrapValidation("generation tables are not JSON compatible", err)
	}
	if err := schema.Validate(v); err != nil {
		return errors.WrapValidation("generation tables do not match schema", err)
	}
	return nil
}
