// Package scenario turns dashboard levers into a pipeline and runs it
// against the baseline.
package scenario

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

var ErrUnknownLever = errors.New("unknown lever")

// Levers are the user-facing intervention settings. Percentages are 0-100,
// removals are Mt CO2e/yr and innovation levels run from 0 to 4.
type Levers struct {
	// Consumer demand.
	Ruminant      float64 `yaml:"ruminant" json:"ruminant" validate:"gte=0,lte=100"`
	MeatFreeDays  int     `yaml:"meat_free_days" json:"meat_free_days" validate:"gte=0,lte=7"`
	MeatFreeExtra []int   `yaml:"meat_free_extra" json:"meat_free_extra,omitempty" validate:"dive,gt=0"`
	Waste         float64 `yaml:"waste" json:"waste" validate:"gte=0,lte=100"`
	Cultured      float64 `yaml:"cultured" json:"cultured" validate:"gte=0,lte=100"`
	CulturedExtra []int   `yaml:"cultured_extra" json:"cultured_extra,omitempty" validate:"dive,gt=0"`

	// Consultation levers, negative to reduce.
	Dairy          float64 `yaml:"dairy" json:"dairy" validate:"gte=-100,lte=100"`
	PigPoultryEggs float64 `yaml:"pig_poultry_eggs" json:"pig_poultry_eggs" validate:"gte=-100,lte=100"`
	FruitVeg       float64 `yaml:"fruit_veg" json:"fruit_veg" validate:"gte=-100,lte=100"`
	Cereals        float64 `yaml:"cereals" json:"cereals" validate:"gte=-100,lte=100"`

	// Land management.
	PastureSparing float64 `yaml:"pasture_sparing" json:"pasture_sparing" validate:"gte=0,lte=100"`
	ArableSparing  float64 `yaml:"arable_sparing" json:"arable_sparing" validate:"gte=0,lte=100"`
	ForestSpared   float64 `yaml:"forest_spared" json:"forest_spared" validate:"gte=0,lte=100"`
	Silvopasture   float64 `yaml:"silvopasture" json:"silvopasture" validate:"gte=0,lte=100"`
	Agroforestry   float64 `yaml:"agroforestry" json:"agroforestry" validate:"gte=0,lte=100"`

	// Technology and innovation.
	WasteBECCS       float64 `yaml:"waste_beccs" json:"waste_beccs" validate:"gte=0,lte=100"`
	OverseasBECCS    float64 `yaml:"overseas_beccs" json:"overseas_beccs" validate:"gte=0,lte=100"`
	LandBECCS        float64 `yaml:"land_beccs" json:"land_beccs" validate:"gte=0,lte=20"`
	DACCS            float64 `yaml:"daccs" json:"daccs" validate:"gte=0,lte=20"`
	PlantInnovation  float64 `yaml:"plant_innovation" json:"plant_innovation" validate:"gte=0,lte=4"`
	AnimalInnovation float64 `yaml:"animal_innovation" json:"animal_innovation" validate:"gte=0,lte=4"`

	// Adoption percentage per farming practice name.
	Practices map[string]float64 `yaml:"practices" json:"practices,omitempty" validate:"dive,keys,required,endkeys,gte=0,lte=100"`
}

var validate = validator.New()

func (l Levers) Validate() error { return validate.Struct(l) }

// leverCodes are the short slider keys used by presets and the CLI.
var leverCodes = map[string]func(*Levers) *float64{
	"d1": func(l *Levers) *float64 { return &l.Ruminant },
	"d4": func(l *Levers) *float64 { return &l.Waste },
	"d5": func(l *Levers) *float64 { return &l.Cultured },
	"l1": func(l *Levers) *float64 { return &l.PastureSparing },
	"l2": func(l *Levers) *float64 { return &l.ArableSparing },
	"l3": func(l *Levers) *float64 { return &l.ForestSpared },
	"l4": func(l *Levers) *float64 { return &l.Silvopasture },
	"l5": func(l *Levers) *float64 { return &l.Agroforestry },
	"i1": func(l *Levers) *float64 { return &l.WasteBECCS },
	"i2": func(l *Levers) *float64 { return &l.OverseasBECCS },
	"i3": func(l *Levers) *float64 { return &l.LandBECCS },
	"i4": func(l *Levers) *float64 { return &l.DACCS },
	"i5": func(l *Levers) *float64 { return &l.PlantInnovation },
	"i6": func(l *Levers) *float64 { return &l.AnimalInnovation },
}

// Set assigns a lever by slider code ("d1", "l3", ...). d2 is the number of
// meat free days and p:<name> a practice adoption.
func (l *Levers) Set(code string, v float64) error {
	code = strings.ToLower(strings.TrimSpace(code))
	switch {
	case code == "d2":
		if v != float64(int(v)) {
			return fmt.Errorf("%w: d2 takes whole days, got %g", ErrUnknownLever, v)
		}
		l.MeatFreeDays = int(v)
		return nil
	case strings.HasPrefix(code, "p:") && len(code) > 2:
		if l.Practices == nil {
			l.Practices = map[string]float64{}
		}
		l.Practices[code[2:]] = v
		return nil
	}
	f, ok := leverCodes[code]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownLever, code)
	}
	*f(l) = v
	return nil
}

// LeverCodes lists the codes Set accepts, besides p:<name>.
func LeverCodes() []string {
	out := []string{"d2"}
	for c := range leverCodes {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
