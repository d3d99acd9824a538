package sim

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Site is one lattice position around the central ion.
type Site struct {
	Species  string  `yaml:"species" json:"species"`
	Distance float64 `yaml:"distance" json:"distance"` // Å from the central ion
}

// GeometryProvider answers neighbor-shell queries for a fixed central ion.
// Structure parsing lives outside this module; implementations only need
// to hand back precomputed distances.
type GeometryProvider interface {
	// Neighbors returns every site within radius (inclusive), any species,
	// ordered by distance.
	Neighbors(radius float64) ([]Site, error)
	// NearestSameSpeciesDistance returns r0, the distance from the central
	// ion to its closest neighbor of the same species.
	NearestSameSpeciesDistance() (float64, error)
	// CentralSpecies is the species label of the central (donor) ion.
	CentralSpecies() string
	// Fingerprint identifies the source geometry; it is part of every cache key.
	Fingerprint() string
}

// CandidateShell is the population of same-species sites eligible for doping.
type CandidateShell struct {
	Species string
	R0      float64
	Sites   []Site
}

// NewCandidateShell queries provider for the same-species sites within radius.
func NewCandidateShell(provider GeometryProvider, radius float64) (*CandidateShell, error) {
	if radius <= 0 || math.IsNaN(radius) || math.IsInf(radius, 0) {
		return nil, fmt.Errorf("radius must be finite and positive, got %v", radius)
	}
	neighbors, err := provider.Neighbors(radius)
	if err != nil {
		return nil, fmt.Errorf("querying neighbors within %v: %w", radius, err)
	}
	r0, err := provider.NearestSameSpeciesDistance()
	if err != nil {
		return nil, fmt.Errorf("querying nearest same-species distance: %w", err)
	}
	shell := &CandidateShell{Species: provider.CentralSpecies(), R0: r0}
	for _, s := range neighbors {
		if s.Species == shell.Species {
			shell.Sites = append(shell.Sites, s)
		}
	}
	if err := shell.Validate(); err != nil {
		return nil, err
	}
	return shell, nil
}

// Validate checks the shell can be sampled.
func (c *CandidateShell) Validate() error {
	if len(c.Sites) == 0 {
		return fmt.Errorf("candidate shell for %q has no sites", c.Species)
	}
	for i, s := range c.Sites {
		if !(s.Distance > 0) || math.IsInf(s.Distance, 0) {
			return fmt.Errorf("site[%d]: distance must be finite and positive, got %v", i, s.Distance)
		}
	}
	if !(c.R0 > 0) || math.IsInf(c.R0, 0) {
		return fmt.Errorf("r0 must be finite and positive, got %v", c.R0)
	}
	return nil
}

// Distances returns the site distances in shell order.
func (c *CandidateShell) Distances() []float64 {
	out := make([]float64, len(c.Sites))
	for i, s := range c.Sites {
		out[i] = s.Distance
	}
	return out
}

// === StaticGeometry ===

// StaticGeometry is a GeometryProvider backed by a precomputed site list,
// typically exported from a crystallographic tool into YAML.
type StaticGeometry struct {
	Name    string  `yaml:"name"`
	Central string  `yaml:"central_species"`
	R0      float64 `yaml:"r0,omitempty"` // 0 = derive from sites
	Sites   []Site  `yaml:"sites"`

	fingerprint string
}

// LoadStaticGeometry reads a geometry YAML file.
// Uses strict parsing: unrecognized keys are rejected.
func LoadStaticGeometry(path string) (*StaticGeometry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading geometry: %w", err)
	}
	var g StaticGeometry
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&g); err != nil {
		return nil, fmt.Errorf("parsing geometry: %w", err)
	}
	if err := g.init(data); err != nil {
		return nil, fmt.Errorf("geometry %s: %w", path, err)
	}
	return &g, nil
}

// NewStaticGeometry builds a provider from in-memory sites. The fingerprint
// is derived from name, species, r0 and the sites themselves.
func NewStaticGeometry(name, central string, r0 float64, sites []Site) (*StaticGeometry, error) {
	g := &StaticGeometry{Name: name, Central: central, R0: r0, Sites: append([]Site(nil), sites...)}
	raw, err := yaml.Marshal(g)
	if err != nil {
		return nil, err
	}
	if err := g.init(raw); err != nil {
		return nil, err
	}
	return g, nil
}

func (g *StaticGeometry) init(raw []byte) error {
	if g.Central == "" {
		return fmt.Errorf("central_species is required")
	}
	if len(g.Sites) == 0 {
		return fmt.Errorf("at least one site is required")
	}
	for i, s := range g.Sites {
		if !(s.Distance > 0) || math.IsInf(s.Distance, 0) {
			return fmt.Errorf("sites[%d]: distance must be finite and positive, got %v", i, s.Distance)
		}
	}
	sort.SliceStable(g.Sites, func(i, j int) bool { return g.Sites[i].Distance < g.Sites[j].Distance })
	if g.R0 == 0 {
		for _, s := range g.Sites {
			if s.Species == g.Central {
				g.R0 = s.Distance
				break
			}
		}
	}
	sum := sha256.Sum256(raw)
	g.fingerprint = g.Name + "@" + hex.EncodeToString(sum[:8])
	return nil
}

// Neighbors implements GeometryProvider.
func (g *StaticGeometry) Neighbors(radius float64) ([]Site, error) {
	var out []Site
	for _, s := range g.Sites {
		if s.Distance > radius {
			break
		}
		out = append(out, s)
	}
	return out, nil
}

// NearestSameSpeciesDistance implements GeometryProvider.
func (g *StaticGeometry) NearestSameSpeciesDistance() (float64, error) {
	if !(g.R0 > 0) {
		return 0, fmt.Errorf("no %q neighbor in geometry %q", g.Central, g.Name)
	}
	return g.R0, nil
}

// CentralSpecies implements GeometryProvider.
func (g *StaticGeometry) CentralSpecies() string { return g.Central }

// Fingerprint implements GeometryProvider.
func (g *StaticGeometry) Fingerprint() string { return g.fingerprint }
