// Package tuning holds the advanced settings shared by every scenario run.
package tuning

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"agrifood.ai/internal/sim/adoption"
	"agrifood.ai/internal/sim/datablock"
	"agrifood.ai/internal/sim/fbs"
)

type Tuning struct {
	// Cultured meat emission factor, g CO2e per g.
	LabmeatCO2e float64 `yaml:"labmeat_co2e" validate:"gte=1,lte=120"`
	RDAKcal     float64 `yaml:"rda_kcal" validate:"gte=1500,lte=3500"`
	Timescale   int     `yaml:"timescale" validate:"gte=0,lte=50"`
	PivotYear   int     `yaml:"pivot_year" validate:"gte=1961,lte=2100"`
	Horizon     int     `yaml:"horizon" validate:"gtefield=PivotYear,lte=2200"`
	Adoption    string  `yaml:"adoption" validate:"oneof=none linear logistic"`

	// Energy, Weight, Proteins or Fat.
	NutrientConstant string `yaml:"nutrient_constant" validate:"oneof=energy weight proteins fat"`

	MaxGHGEAnimal    float64 `yaml:"max_ghge_animal" validate:"gte=0,lte=100"`
	MaxGHGEPlant     float64 `yaml:"max_ghge_plant" validate:"gte=0,lte=100"`
	InnovationOffset int     `yaml:"innovation_offset" validate:"gte=0,lte=50"`

	BroadleafShare float64   `yaml:"broadleaf_share" validate:"gte=0,lte=100"`
	BroadleafSeq   float64   `yaml:"broadleaf_seq" validate:"gte=0,lte=100"`
	ConiferousSeq  float64   `yaml:"coniferous_seq" validate:"gte=0,lte=100"`
	SpareGrades    []float64 `yaml:"spare_grades" validate:"min=1,dive,gte=1,lte=5"`

	BECCSYield float64   `yaml:"beccs_yield" validate:"gte=0"`
	BECCSCost  CostCurve `yaml:"beccs_cost"`
	DACCSCost  CostCurve `yaml:"daccs_cost"`

	Elasticity float64 `yaml:"elasticity" validate:"gte=0,lte=1"`

	Agroecology Agroecology `yaml:"agroecology"`
	Practices   []Practice  `yaml:"practices" validate:"dive"`
}

// CostCurve is a linear £/t CO2e cost between two years.
type CostCurve struct {
	FromYear int     `yaml:"from_year" validate:"gte=1961"`
	ToYear   int     `yaml:"to_year" validate:"gtefield=FromYear"`
	From     float64 `yaml:"from" validate:"gte=0"`
	To       float64 `yaml:"to" validate:"gte=0"`
}

type Agroecology struct {
	TreeCoverage float64 `yaml:"tree_coverage" validate:"gte=0,lte=1"`
	// t CO2e sequestered per ha of tree cover per year.
	Sequestration     float64 `yaml:"sequestration" validate:"gte=0"`
	SilvopastureYield float64 `yaml:"silvopasture_yield" validate:"gte=0"`
	AgroforestryYield float64 `yaml:"agroforestry_yield" validate:"gte=0"`
}

// Practice is a farming practice: the share of production it costs and the
// share of emissions it saves where fully adopted.
type Practice struct {
	Name   string  `yaml:"name" validate:"required"`
	Origin string  `yaml:"origin" validate:"oneof=animal vegetal"`
	Prod   float64 `yaml:"prod" validate:"gte=0,lte=1"`
	GHG    float64 `yaml:"ghg" validate:"gte=0,lte=1"`
}

// ItemOrigin maps the short origin to the item classification.
func (p Practice) ItemOrigin() string {
	if p.Origin == "vegetal" {
		return fbs.OriginVegetal
	}
	return fbs.OriginAnimal
}

var validate = validator.New()

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (Tuning, error) {
	t := Defaults()
	if strings.TrimSpace(path) == "" {
		t.Normalize()
		return t, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	t.Normalize()
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func Defaults() Tuning {
	return Tuning{
		LabmeatCO2e:      25,
		RDAKcal:          2250,
		Timescale:        20,
		PivotYear:        2020,
		Horizon:          2100,
		Adoption:         "logistic",
		NutrientConstant: "energy",
		MaxGHGEAnimal:    30,
		MaxGHGEPlant:     30,
		InnovationOffset: 10,
		BroadleafShare:   50,
		BroadleafSeq:     12.5,
		ConiferousSeq:    23.5,
		SpareGrades:      []float64{4, 5},
		BECCSYield:       23.5,
		BECCSCost:        CostCurve{FromYear: 2030, ToYear: 2050, From: 123, To: 93},
		DACCSCost:        CostCurve{FromYear: 2030, ToYear: 2050, From: 245, To: 180},
		Agroecology: Agroecology{
			TreeCoverage:      0.1,
			Sequestration:     12.5,
			SilvopastureYield: 2,
			AgroforestryYield: 5,
		},
		Practices: []Practice{
			{Name: "methane_inhibitor", Origin: "animal", Prod: 0.3, GHG: 0.3},
			{Name: "manure_management", Origin: "animal", Prod: 0.3, GHG: 0.3},
			{Name: "animal_breeding", Origin: "animal", Prod: 0.3, GHG: 0.3},
			{Name: "fossil_livestock", Origin: "animal", Prod: 0.3, GHG: 0.05},
			{Name: "fossil_arable", Origin: "vegetal", Prod: 0.3, GHG: 0.05},
		},
	}
}

func (t *Tuning) Normalize() {
	t.Adoption = strings.ToLower(strings.TrimSpace(t.Adoption))
	if t.Adoption == "" {
		t.Adoption = "logistic"
	}
	t.NutrientConstant = strings.ToLower(strings.TrimSpace(t.NutrientConstant))
	if t.NutrientConstant == "" {
		t.NutrientConstant = "energy"
	}
	if t.Horizon == 0 {
		t.Horizon = 2100
	}
	sort.Float64s(t.SpareGrades)
	for i := range t.Practices {
		t.Practices[i].Name = strings.TrimSpace(t.Practices[i].Name)
		t.Practices[i].Origin = strings.ToLower(strings.TrimSpace(t.Practices[i].Origin))
	}
}

func (t Tuning) Validate() error {
	if err := validate.Struct(t); err != nil {
		return err
	}
	seen := make(map[string]bool, len(t.Practices))
	for _, p := range t.Practices {
		if seen[p.Name] {
			return fmt.Errorf("duplicate practice %q", p.Name)
		}
		seen[p.Name] = true
	}
	return nil
}

// Practice returns the named practice.
func (t Tuning) Practice(name string) (Practice, bool) {
	for _, p := range t.Practices {
		if p.Name == name {
			return p, true
		}
	}
	return Practice{}, false
}

// Shape is the adoption curve shape of every intervention.
func (t Tuning) Shape() adoption.Shape {
	s, err := adoption.ParseShape(t.Adoption)
	if err != nil {
		return adoption.Logistic
	}
	return s
}

var ErrNutrient = errors.New("unknown nutrient")

// Nutrient is the per-capita sheet kept constant by the consumer steps.
func (t Tuning) Nutrient() (datablock.Path, error) {
	switch t.NutrientConstant {
	case "energy":
		return datablock.FoodKcal, nil
	case "weight":
		return datablock.FoodGrams, nil
	case "proteins":
		return datablock.FoodProtein, nil
	case "fat":
		return datablock.FoodFat, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrNutrient, t.NutrientConstant)
}

// Years is the projection horizon from the first baseline year.
func (t Tuning) Years(first int) []int {
	if t.Horizon < first {
		return nil
	}
	out := make([]int, 0, t.Horizon-first+1)
	for y := first; y <= t.Horizon; y++ {
		out = append(out, y)
	}
	return out
}
