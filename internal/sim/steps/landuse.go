package steps

import (
	"fmt"
	"strings"

	"agrifood.ai/internal/sim/datablock"
	"agrifood.ai/internal/sim/diag"
	"agrifood.ai/internal/sim/fbs"
	"agrifood.ai/internal/sim/land"
	"agrifood.ai/internal/sim/series"
)

// SpareLand moves Fraction of Classes on cells graded in Grades into the
// Spared class and shrinks production of Origin items by the realised
// change in area, buffered through imports.
type SpareLand struct {
	Label    string
	Classes  []string
	Grades   []float64
	Fraction float64
	Origin   string
	Ramp     Ramp
}

func (s SpareLand) Name() string { return "spare_land:" + s.Label }

func (s SpareLand) Apply(db *datablock.DataBlock) (*datablock.DataBlock, error) {
	if err := checkFraction("spare fraction", s.Fraction); err != nil {
		return nil, err
	}
	m, err := db.LandMap(datablock.LandUse)
	if err != nil {
		return nil, err
	}
	grid, err := db.Grid(datablock.Classification)
	if err != nil {
		return nil, err
	}
	m = m.Clone()
	classes := presentClasses(db, m, s.Classes)
	oldArea := m.Area(classes...)
	m.EnsureClass(land.Spared)

	mask := grid.Mask(s.Grades)
	for _, c := range classes {
		amounts, err := m.Share(c, s.Fraction, mask)
		if err != nil {
			return nil, err
		}
		if _, err := m.Move(c, land.Spared, amounts); err != nil {
			return nil, err
		}
	}
	if err := db.Write(datablock.LandUse, m); err != nil {
		return nil, err
	}
	if err := shrinkOrigin(db, s.Origin, strings.Join(s.Classes, ", "), s.Ramp, oldArea, m.Area(classes...)); err != nil {
		return nil, err
	}
	return db, nil
}

// ForestSpared turns Fraction of spared land into woodland, BroadleafShare
// of it broadleaf and the rest coniferous.
type ForestSpared struct {
	Fraction       float64
	BroadleafShare float64
}

func (ForestSpared) Name() string { return "forest_spared" }

func (s ForestSpared) Apply(db *datablock.DataBlock) (*datablock.DataBlock, error) {
	if err := checkFraction("forest fraction", s.Fraction); err != nil {
		return nil, err
	}
	if err := checkFraction("broadleaf share", s.BroadleafShare); err != nil {
		return nil, err
	}
	m, err := db.LandMap(datablock.LandUse)
	if err != nil {
		return nil, err
	}
	if !m.HasClass(land.Spared) {
		db.Warn(diag.New(diag.CodeMissingLandClass, "no spared land to forest"))
		return db, nil
	}
	m = m.Clone()
	m.EnsureClass(land.Broadleaf)
	m.EnsureClass(land.Coniferous)

	toBroadleaf, err := m.Share(land.Spared, s.Fraction*s.BroadleafShare, nil)
	if err != nil {
		return nil, err
	}
	toConiferous, err := m.Share(land.Spared, s.Fraction*(1-s.BroadleafShare), nil)
	if err != nil {
		return nil, err
	}
	if _, err := m.Move(land.Spared, land.Broadleaf, toBroadleaf); err != nil {
		return nil, err
	}
	if _, err := m.Move(land.Spared, land.Coniferous, toConiferous); err != nil {
		return nil, err
	}
	return db, db.Write(datablock.LandUse, m)
}

// BECCSLand gives Fraction of arable land over to bioenergy crops with
// carbon capture, shrinking vegetal production accordingly.
type BECCSLand struct {
	Fraction float64
	Origin   string
	Ramp     Ramp
}

func (BECCSLand) Name() string { return "beccs_land" }

func (s BECCSLand) Apply(db *datablock.DataBlock) (*datablock.DataBlock, error) {
	if err := checkFraction("BECCS fraction", s.Fraction); err != nil {
		return nil, err
	}
	if s.Fraction == 0 {
		return db, nil
	}
	m, err := db.LandMap(datablock.LandUse)
	if err != nil {
		return nil, err
	}
	if !m.HasClass(land.Arable) {
		db.Warn(diag.New(diag.CodeMissingLandClass, "no arable land for BECCS"))
		return db, nil
	}
	m = m.Clone()
	oldArea := m.Area(land.Arable)
	m.EnsureClass(land.BECCS)
	amounts, err := m.Share(land.Arable, s.Fraction, nil)
	if err != nil {
		return nil, err
	}
	if _, err := m.Move(land.Arable, land.BECCS, amounts); err != nil {
		return nil, err
	}
	if err := db.Write(datablock.LandUse, m); err != nil {
		return nil, err
	}
	origin := s.Origin
	if origin == "" {
		origin = fbs.OriginVegetal
	}
	if err := shrinkOrigin(db, origin, land.Arable, s.Ramp, oldArea, m.Area(land.Arable)); err != nil {
		return nil, err
	}
	return db, nil
}

// Agroecology converts Fraction of Class into Target, a mixed class where
// TreeCoverage of the area carries trees. Production of ReplacedItems falls
// with the productive area lost to trees, and NewItem is produced on the
// tree cover at Yield t/ha/yr and exported. A nil ReplacedItems selects
// every item of ReplacedOrigin.
type Agroecology struct {
	Label          string
	Class          string
	Target         string
	Fraction       float64
	TreeCoverage   float64
	ReplacedItems  []int
	ReplacedOrigin string
	NewItem        fbs.Item
	Yield          float64
	Ramp           Ramp
}

func (s Agroecology) Name() string { return "agroecology:" + s.Label }

func (s Agroecology) Apply(db *datablock.DataBlock) (*datablock.DataBlock, error) {
	if err := checkFraction("agroecology fraction", s.Fraction); err != nil {
		return nil, err
	}
	if err := checkFraction("tree coverage", s.TreeCoverage); err != nil {
		return nil, err
	}
	if s.Yield < 0 || !series.Finite(s.Yield) {
		return nil, fmt.Errorf("%w: yield %g", ErrParam, s.Yield)
	}
	m, err := db.LandMap(datablock.LandUse)
	if err != nil {
		return nil, err
	}
	if !m.HasClass(s.Class) {
		db.Warn(diag.New(diag.CodeMissingLandClass, "no %s land to convert", s.Class))
		return db, nil
	}
	m = m.Clone()
	oldArea := m.Area(s.Class)
	m.EnsureClass(s.Target)
	amounts, err := m.Share(s.Class, s.Fraction, nil)
	if err != nil {
		return nil, err
	}
	converted, err := m.Move(s.Class, s.Target, amounts)
	if err != nil {
		return nil, err
	}
	if err := db.Write(datablock.LandUse, m); err != nil {
		return nil, err
	}
	if err := db.Write(TreeCoveragePath(s.Target), s.TreeCoverage); err != nil {
		return nil, err
	}

	treeArea := converted * s.TreeCoverage
	replaced := s.ReplacedItems
	if replaced == nil && s.ReplacedOrigin != "" {
		grams, err := db.Sheet(datablock.FoodGrams)
		if err != nil {
			return nil, err
		}
		replaced = grams.ByOrigin(s.ReplacedOrigin)
	}
	if len(replaced) > 0 {
		if err := shrinkProduction(db, replaced, s.Class, s.Ramp, oldArea, oldArea-treeArea); err != nil {
			return nil, err
		}
	}
	if treeArea == 0 || s.Yield == 0 {
		return db, nil
	}
	if err := s.produceNewItem(db, treeArea); err != nil {
		return nil, err
	}
	return db, nil
}

func (s Agroecology) produceNewItem(db *datablock.DataBlock, treeArea float64) error {
	if err := registerItem(db, s.NewItem); err != nil {
		return err
	}
	pop, err := db.Series(datablock.PopulationSeries)
	if err != nil {
		return err
	}
	orig, err := db.Sheet(datablock.FoodGrams)
	if err != nil {
		return err
	}
	yrs := orig.Years()
	ramp, err := s.Ramp.curve(db, yrs, 0, 1)
	if err != nil {
		return err
	}
	out := orig.Clone()
	for _, y := range yrs {
		// t/yr over the population, as g/cap/day.
		g := treeArea * s.Yield * 1e6 / pop.At(y) / daysPerYear * ramp.At(y)
		g = series.SafeDelta(g)
		if err := out.Set(fbs.Production, s.NewItem.Code, y, out.Get(fbs.Production, s.NewItem.Code, y)+g); err != nil {
			return err
		}
		if err := out.Set(fbs.Exports, s.NewItem.Code, y, out.Get(fbs.Exports, s.NewItem.Code, y)+g); err != nil {
			return err
		}
	}
	return db.Write(datablock.FoodGrams, out)
}

// TreeCoveragePath is where the tree cover fraction of a land class is kept.
func TreeCoveragePath(class string) datablock.Path {
	return datablock.Path{datablock.Land, "tree_coverage", class}
}

// registerItem adds it to every per-capita sheet, nutrient factor and the
// emission factors with zero values.
func registerItem(db *datablock.DataBlock, it fbs.Item) error {
	for _, p := range datablock.PerCapita {
		sh, err := db.Sheet(p)
		if err != nil {
			return err
		}
		if sh.HasItem(it.Code) {
			continue
		}
		sh = sh.Clone()
		if err := sh.AddItem(it); err != nil {
			return err
		}
		if err := db.Write(p, sh); err != nil {
			return err
		}
	}
	for _, nf := range datablock.NutrientFactors {
		f, err := db.Vector(nf.Factor)
		if err != nil {
			return err
		}
		if f.HasItem(it.Code) {
			continue
		}
		f = f.Clone()
		if err := f.AddItem(it, 0); err != nil {
			return err
		}
		if err := db.Write(nf.Factor, f); err != nil {
			return err
		}
	}
	ef, err := db.Table(datablock.EmissionFactors)
	if err != nil {
		return err
	}
	if ef.HasItem(it.Code) {
		return nil
	}
	ef = ef.Clone()
	if err := ef.AddItem(it, 0); err != nil {
		return err
	}
	return db.Write(datablock.EmissionFactors, ef)
}

// shrinkOrigin shrinks production of every origin item, see shrinkProduction.
func shrinkOrigin(db *datablock.DataBlock, origin, class string, r Ramp, oldArea, newArea float64) error {
	if origin == "" {
		return nil
	}
	grams, err := db.Sheet(datablock.FoodGrams)
	if err != nil {
		return err
	}
	return shrinkProduction(db, grams.ByOrigin(origin), class, r, oldArea, newArea)
}

// shrinkProduction scales production of codes by newArea/oldArea through the
// ramp and buffers the change through imports. class names the land that
// shrank.
func shrinkProduction(db *datablock.DataBlock, codes []int, class string, r Ramp, oldArea, newArea float64) error {
	if !series.Finite(newArea / oldArea) {
		db.Warn(diag.New(diag.CodeDegenerate, "no %s land before reallocation; production unchanged", class))
	}
	ratio := series.SafeRatio(newArea, oldArea)
	yrs, err := years(db)
	if err != nil {
		return err
	}
	scale, err := r.curve(db, yrs, 1, ratio)
	if err != nil {
		return err
	}
	return forwardProduction(db, codes, scale)
}

func presentClasses(db *datablock.DataBlock, m *land.Map, classes []string) []string {
	var out []string
	for _, c := range classes {
		if m.HasClass(c) {
			out = append(out, c)
			continue
		}
		db.Warn(diag.New(diag.CodeMissingLandClass, "land class %q not present", c))
	}
	return out
}
