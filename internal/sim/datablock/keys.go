package datablock

import "strings"

// Top level categories.
const (
	Food       = "food"
	Land       = "land"
	Impact     = "impact"
	Population = "population"
	Global     = "global_parameters"
)

var Categories = []string{Food, Land, Impact, Population, Global}

// Path addresses a value as category, then field names.
type Path []string

func (p Path) String() string { return strings.Join(p, ".") }

// ParsePath splits a dotted path. Field names may contain slashes.
func ParsePath(s string) Path { return Path(strings.Split(s, ".")) }

var (
	FoodGrams   = Path{Food, "g/cap/day"}
	FoodKcal    = Path{Food, "kCal/cap/day"}
	FoodProtein = Path{Food, "g_prot/cap/day"}
	FoodFat     = Path{Food, "g_fat/cap/day"}
	FoodCO2e    = Path{Food, "g_co2e/cap/day"}
	FoodTonnes  = Path{Food, "1000 T/year"}
	FoodRDA     = Path{Food, "rda_kcal"}

	KcalPerGram    = Path{Food, "kCal/g_food"}
	ProteinPerGram = Path{Food, "g_prot/g_food"}
	FatPerGram     = Path{Food, "g_fat/g_food"}

	EmissionFactors = Path{Impact, "gco2e/gfood"}
	EmissionsYear   = Path{Impact, "g_co2e/year"}
	Sequestration   = Path{Impact, "co2e_sequestration"}
	Cost            = Path{Impact, "cost"}
	Temperature     = Path{Impact, "T"}
	Concentration   = Path{Impact, "C"}
	Forcing         = Path{Impact, "F"}

	LandUse        = Path{Land, "percentage_land_use"}
	Classification = Path{Land, "dominant_classification"}

	PopulationSeries = Path{Population, "population"}

	Timescale = Path{Global, "timescale"}
)

// PerCapita lists the per-capita sheets that move together when a
// consumption ratio is applied.
var PerCapita = []Path{FoodGrams, FoodProtein, FoodFat, FoodKcal}

// NutrientFactors pairs per-capita sheets with their per-gram factor.
var NutrientFactors = []struct{ Sheet, Factor Path }{
	{FoodProtein, ProteinPerGram},
	{FoodFat, FatPerGram},
	{FoodKcal, KcalPerGram},
}
