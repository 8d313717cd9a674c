package steps

import (
	"fmt"

	"agrifood.ai/internal/sim/datablock"
	"agrifood.ai/internal/sim/diag"
	"agrifood.ai/internal/sim/fbs"
	"agrifood.ai/internal/sim/scaling"
)

// ScaleImpact multiplies the emission factors of Origin items by Factor,
// reached through the ramp.
type ScaleImpact struct {
	Origin string
	Factor float64
	Ramp   Ramp
}

func (s ScaleImpact) Name() string { return "scale_impact:" + s.Origin }

func (s ScaleImpact) Apply(db *datablock.DataBlock) (*datablock.DataBlock, error) {
	if s.Factor < 0 {
		return nil, fmt.Errorf("%w: impact factor %g", ErrParam, s.Factor)
	}
	grams, err := db.Sheet(datablock.FoodGrams)
	if err != nil {
		return nil, err
	}
	ef, err := db.Table(datablock.EmissionFactors)
	if err != nil {
		return nil, err
	}
	scale, err := s.Ramp.curve(db, ef.Years(), 1, s.Factor)
	if err != nil {
		return nil, err
	}
	scaled, _ := ef.ScaleItems(grams.ByOrigin(s.Origin), scale)
	return db, db.Write(datablock.EmissionFactors, scaled)
}

// Practice is a farming practice adopted on a share of Origin production.
// Emission factors fall by Adoption*GHGFactor and production by
// Adoption*ProdFactor; lost production is replaced by imports, or by
// reduced exports for the Elasticity share.
type Practice struct {
	Label      string
	Origin     string
	Adoption   float64
	ProdFactor float64
	GHGFactor  float64
	Elasticity float64
	Ramp       Ramp
}

func (s Practice) Name() string { return "practice:" + s.Label }

func (s Practice) Apply(db *datablock.DataBlock) (*datablock.DataBlock, error) {
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"adoption", s.Adoption},
		{"production factor", s.ProdFactor},
		{"GHG factor", s.GHGFactor},
		{"elasticity", s.Elasticity},
	} {
		if err := checkFraction(s.Label+" "+f.name, f.v); err != nil {
			return nil, err
		}
	}
	if s.Adoption == 0 {
		return db, nil
	}

	db, err := ScaleImpact{Origin: s.Origin, Factor: 1 - s.Adoption*s.GHGFactor, Ramp: s.Ramp}.Apply(db)
	if err != nil {
		return nil, err
	}
	if s.ProdFactor == 0 {
		return db, nil
	}

	orig, err := db.Sheet(datablock.FoodGrams)
	if err != nil {
		return nil, err
	}
	codes := orig.ByOrigin(s.Origin)
	if len(codes) == 0 {
		db.Warn(diag.New(diag.CodeDegenerate, "%s: no %s items", s.Label, s.Origin))
		return db, nil
	}
	scale, err := s.Ramp.curve(db, orig.Years(), 1, 1-s.Adoption*s.ProdFactor)
	if err != nil {
		return nil, err
	}
	out, warns, err := scaling.Items(orig, scaling.ItemScaling{
		Element: fbs.Production,
		Items:   codes,
		Scale:   scale,
		Destinations: scaling.Elasticity(s.Elasticity,
			fbs.Flow{Element: fbs.Exports, Sign: fbs.Add},
			fbs.Flow{Element: fbs.Imports, Sign: fbs.Subtract},
		),
	})
	if err != nil {
		return nil, err
	}
	db.Warn(warns...)
	if err := applyRatio(db, out, orig); err != nil {
		return nil, err
	}
	return db, nil
}
