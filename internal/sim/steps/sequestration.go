package steps

import (
	"fmt"
	"sort"

	"agrifood.ai/internal/sim/datablock"
	"agrifood.ai/internal/sim/land"
	"agrifood.ai/internal/sim/ledger"
	"agrifood.ai/internal/sim/series"
)

// Ledger source names.
const (
	SourceBroadleaf      = "Broadleaved woodland"
	SourceConiferous     = "Coniferous woodland"
	SourceWasteBECCS     = "BECCS from waste"
	SourceOverseasBECCS  = "BECCS from overseas biomass"
	SourceLandBECCS      = "BECCS from land"
	SourceDACCS          = "DACCS"
	SourceAgroforestry   = "Agroforestry"
	SourceSilvopasture   = "Silvopasture"
	DefaultBECCSYield    = 23.5
	defaultCostStartYear = 2030
	defaultCostEndYear   = 2050
)

var (
	ForestSources = []string{SourceBroadleaf, SourceConiferous}
	CCSSources    = []string{SourceWasteBECCS, SourceOverseasBECCS, SourceLandBECCS, SourceDACCS}
)

// CostCurve is a linear cost per tonne between two years.
type CostCurve struct {
	FromYear, ToYear int
	From, To         float64
}

func (c CostCurve) series(years []int) series.Series {
	from, to := c.FromYear, c.ToYear
	if from == 0 && to == 0 {
		from, to = defaultCostStartYear, defaultCostEndYear
	}
	return series.New(years).Map(func(y int, _ float64) float64 {
		switch {
		case y <= from:
			return c.From
		case y >= to:
			return c.To
		default:
			return c.From + (c.To-c.From)*float64(y-from)/float64(to-from)
		}
	})
}

// CCS records engineered removals: BECCS from waste and overseas biomass
// and DACCS at the given t CO2e/yr, plus BECCS land area times LandYield.
// Each ramps up from zero. Costs per source are written to impact.cost.
type CCS struct {
	WasteBECCS    float64
	OverseasBECCS float64
	DACCS         float64
	LandYield     float64
	BECCSCost     CostCurve
	DACCSCost     CostCurve
	Ramp          Ramp
}

func (CCS) Name() string { return "ccs" }

func (s CCS) Apply(db *datablock.DataBlock) (*datablock.DataBlock, error) {
	for _, v := range []float64{s.WasteBECCS, s.OverseasBECCS, s.DACCS, s.LandYield} {
		if v < 0 || !series.Finite(v) {
			return nil, fmt.Errorf("%w: negative CCS capacity %g", ErrParam, v)
		}
	}
	yrs, err := years(db)
	if err != nil {
		return nil, err
	}
	m, err := db.LandMap(datablock.LandUse)
	if err != nil {
		return nil, err
	}
	yield := s.LandYield
	if yield == 0 {
		yield = DefaultBECCSYield
	}
	landBECCS := m.Area(land.BECCS) * yield

	ramp, err := s.Ramp.curve(db, yrs, 0, 1)
	if err != nil {
		return nil, err
	}
	beccsCost := s.BECCSCost.series(yrs)
	daccsCost := s.DACCSCost.series(yrs)

	seq := ledger.New(yrs)
	cost := ledger.New(yrs)
	for _, src := range []struct {
		name     string
		capacity float64
		cost     series.Series
	}{
		{SourceWasteBECCS, s.WasteBECCS, beccsCost},
		{SourceOverseasBECCS, s.OverseasBECCS, beccsCost},
		{SourceLandBECCS, landBECCS, beccsCost},
		{SourceDACCS, s.DACCS, daccsCost},
	} {
		removal := ramp.Scale(src.capacity)
		if err := seq.Append(src.name, removal); err != nil {
			return nil, err
		}
		if err := cost.Append(src.name, removal.Mul(src.cost)); err != nil {
			return nil, err
		}
	}
	if err := appendSequestration(db, seq); err != nil {
		return nil, err
	}
	return db, db.Write(datablock.Cost, cost)
}

// ForestSequestration records woodland removals: area times the per hectare
// rate, ramping up from zero.
type ForestSequestration struct {
	BroadleafRate  float64
	ConiferousRate float64
	Ramp           Ramp
}

func (ForestSequestration) Name() string { return "forest_sequestration" }

func (s ForestSequestration) Apply(db *datablock.DataBlock) (*datablock.DataBlock, error) {
	yrs, err := years(db)
	if err != nil {
		return nil, err
	}
	m, err := db.LandMap(datablock.LandUse)
	if err != nil {
		return nil, err
	}
	ramp, err := s.Ramp.curve(db, yrs, 0, 1)
	if err != nil {
		return nil, err
	}
	seq := ledger.New(yrs)
	if err := seq.Append(SourceBroadleaf, ramp.Scale(m.Area(land.Broadleaf)*s.BroadleafRate)); err != nil {
		return nil, err
	}
	if err := seq.Append(SourceConiferous, ramp.Scale(m.Area(land.Coniferous)*s.ConiferousRate)); err != nil {
		return nil, err
	}
	if err := appendSequestration(db, seq); err != nil {
		return nil, err
	}
	return db, nil
}

// AgroecologySequestration records removals by the tree cover of
// agroecological classes. Classes maps each land class to its ledger source.
type AgroecologySequestration struct {
	Classes map[string]string
	Rate    float64
	Ramp    Ramp
}

func (AgroecologySequestration) Name() string { return "agroecology_sequestration" }

func (s AgroecologySequestration) Apply(db *datablock.DataBlock) (*datablock.DataBlock, error) {
	yrs, err := years(db)
	if err != nil {
		return nil, err
	}
	m, err := db.LandMap(datablock.LandUse)
	if err != nil {
		return nil, err
	}
	ramp, err := s.Ramp.curve(db, yrs, 0, 1)
	if err != nil {
		return nil, err
	}
	classes := make([]string, 0, len(s.Classes))
	for c := range s.Classes {
		classes = append(classes, c)
	}
	sort.Strings(classes)

	seq := ledger.New(yrs)
	for _, c := range classes {
		if !m.HasClass(c) {
			continue
		}
		cover, err := db.Scalar(TreeCoveragePath(c))
		if err != nil {
			return nil, err
		}
		if err := seq.Append(s.Classes[c], ramp.Scale(m.Area(c)*cover*s.Rate)); err != nil {
			return nil, err
		}
	}
	if seq.Len() == 0 {
		return db, nil
	}
	if err := appendSequestration(db, seq); err != nil {
		return nil, err
	}
	return db, nil
}

// appendSequestration concatenates seq onto the ledger in the data block,
// or starts the ledger with it.
func appendSequestration(db *datablock.DataBlock, seq *ledger.Ledger) error {
	if !db.Has(datablock.Sequestration) {
		return db.Write(datablock.Sequestration, seq)
	}
	cur, err := db.Ledger(datablock.Sequestration)
	if err != nil {
		return err
	}
	cur = cur.Clone()
	if err := cur.Concat(seq); err != nil {
		return err
	}
	return db.Write(datablock.Sequestration, cur)
}
