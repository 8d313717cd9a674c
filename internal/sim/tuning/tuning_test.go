package tuning

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agrifood.ai/internal/sim/adoption"
	"agrifood.ai/internal/sim/datablock"
	"agrifood.ai/internal/sim/fbs"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "tuning.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestDefaultsValidate(t *testing.T) {
	tu, err := Load("")
	require.NoError(t, err)
	require.NoError(t, tu.Validate())
	assert.Equal(t, 20, tu.Timescale)
	assert.Equal(t, adoption.Logistic, tu.Shape())
	p, err := tu.Nutrient()
	require.NoError(t, err)
	assert.Equal(t, datablock.FoodKcal, p)
	mi, ok := tu.Practice("methane_inhibitor")
	require.True(t, ok)
	assert.Equal(t, fbs.OriginAnimal, mi.ItemOrigin())
	fa, _ := tu.Practice("fossil_arable")
	assert.Equal(t, fbs.OriginVegetal, fa.ItemOrigin())
}

func TestLoadOverridesDefaults(t *testing.T) {
	tu, err := Load(writeFile(t, `
timescale: 30
nutrient_constant: " Proteins "
adoption: Linear
spare_grades: [5, 3]
`))
	require.NoError(t, err)
	assert.Equal(t, 30, tu.Timescale)
	assert.Equal(t, 2250.0, tu.RDAKcal)
	assert.Equal(t, adoption.Linear, tu.Shape())
	assert.Equal(t, []float64{3, 5}, tu.SpareGrades)
	p, err := tu.Nutrient()
	require.NoError(t, err)
	assert.Equal(t, datablock.FoodProtein, p)
}

func TestLoadRejectsOutOfRange(t *testing.T) {
	for name, body := range map[string]string{
		"timescale":  "timescale: 80\n",
		"nutrient":   "nutrient_constant: sugar\n",
		"horizon":    "pivot_year: 2050\nhorizon: 2040\n",
		"grades":     "spare_grades: [6]\n",
		"elasticity": "elasticity: 1.5\n",
		"practice":   "practices:\n  - {name: x, origin: mineral, prod: 0.1, ghg: 0.1}\n",
		"duplicate":  "practices:\n  - {name: x, origin: animal}\n  - {name: x, origin: vegetal}\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeFile(t, body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), "tuning.yaml")
		})
	}
}

func TestLoadBadYAML(t *testing.T) {
	_, err := Load(writeFile(t, "timescale: [\n"))
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestYears(t *testing.T) {
	tu := Defaults()
	tu.Horizon = 2025
	assert.Equal(t, []int{2021, 2022, 2023, 2024, 2025}, tu.Years(2021))
}
