package cip

import (
	"encoding/json"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baselineInput() DesignInput {
	return DesignInput{
		Stages:             2,
		VesselsStage1:      6,
		VesselsStage2:      4,
		MembranesPerVessel: 6,
		PerVesselFlowGPM:   40,
		Heater:             true,
		MainsHz:            50,
		StartTempC:         20,
		TargetTempC:        35,
		HeadAssumptionFt:   110,
		GPMPerCartridge:    10,
	}
}

func items(r DesignResult) []string {
	out := make([]string, 0, len(r.Bom))
	for _, l := range r.Bom {
		out = append(out, l.Item)
	}
	return out
}

func TestCalculateBaseline(t *testing.T) {
	res := Calculate(baselineInput())

	assert.Equal(t, 240.0, res.Summary.F1)
	assert.Equal(t, 160.0, res.Summary.F2)
	assert.Equal(t, 240.0, res.Summary.Fmax)
	assert.Equal(t, 400, res.Summary.TankGal)
	require.NotNil(t, res.Summary.HeaterKW)
	assert.Equal(t, 37, *res.Summary.HeaterKW)

	assert.Equal(t, []string{
		"Pump",
		"CIP Tank",
		"Heater",
		"Cartridge Filter Housing",
		"Filter Cartridges",
		"Mag Flowmeter",
		"Pressure Gauges/Transmitters",
		"Valves & Piping",
		"Controls (PLC + HMI)",
	}, items(res))

	assert.Equal(t, `Goulds e-SH 2.5×3-8 (25SH08), ~7-1/8" trim, ≈240 gpm @ ~110 ft, 15 kW IE3, 50 Hz`, res.Summary.Pump)
	assert.Equal(t, res.Summary.Pump, res.Bom[0].Specification)
	assert.Equal(t, "400 gal 316SS cone-bottom with LL/L/HL switches", res.Bom[1].Specification)
	assert.Equal(t, "Electric immersion 37 kW, RTD + over-temp", res.Bom[2].Specification)
	assert.Equal(t, "Heat 400 gal from 20→35 °C", res.Bom[2].Comments)
	assert.Equal(t, `30-round, 30", 5 µm absolute, ≥240 gpm`, res.Bom[3].Specification)
	assert.Empty(t, res.Bom[3].Comments)
	assert.Equal(t, 24, res.Bom[4].Qty)
	assert.Equal(t, "Design ~10 gpm per cartridge", res.Bom[4].Comments)
	assert.Equal(t, 2, res.Bom[6].Qty)

	for _, l := range res.Bom {
		assert.Nil(t, l.UnitCost, l.Item)
		assert.Nil(t, l.ExtendedCost, l.Item)
		assert.Positive(t, l.Qty, l.Item)
	}
}

func TestCalculateWithoutHeater(t *testing.T) {
	in := baselineInput()
	in.Heater = false
	res := Calculate(in)

	assert.Nil(t, res.Summary.HeaterKW)
	assert.Len(t, res.Bom, 8)
	assert.NotContains(t, items(res), "Heater")
}

func TestCalculateSingleEffectiveStage(t *testing.T) {
	in := baselineInput()
	in.VesselsStage2 = 0
	res := Calculate(in)

	assert.Equal(t, 0.0, res.Summary.F2)
	assert.Equal(t, res.Summary.F1, res.Summary.Fmax)
}

func TestCalculateStageTwoLarger(t *testing.T) {
	in := baselineInput()
	in.VesselsStage1 = 2
	in.VesselsStage2 = 11
	res := Calculate(in)

	assert.Equal(t, 440.0, res.Summary.Fmax)
	// 11 × 40 × 1.5 = 660 -> 700
	assert.Equal(t, 700, res.Summary.TankGal)
	assert.Equal(t, 44, res.Bom[4].Qty)
}

func TestTankSizing(t *testing.T) {
	for _, tc := range []struct {
		vessels int
		want    int
	}{
		{vessels: 1, want: 400},
		{vessels: 6, want: 400},
		{vessels: 7, want: 450},
		{vessels: 10, want: 600},
		{vessels: 11, want: 700},
		{vessels: 30, want: 1800},
	} {
		in := baselineInput()
		in.VesselsStage1 = tc.vessels
		in.VesselsStage2 = 0
		assert.Equal(t, tc.want, Calculate(in).Summary.TankGal, "vessels=%d", tc.vessels)
	}
}

func TestTankIsStepMultipleAboveFloor(t *testing.T) {
	for v1 := 1; v1 <= 40; v1++ {
		for v2 := 0; v2 <= 40; v2 += 3 {
			in := baselineInput()
			in.VesselsStage1 = v1
			in.VesselsStage2 = v2
			res := Calculate(in)
			require.GreaterOrEqual(t, res.Summary.TankGal, 400)
			require.Zero(t, res.Summary.TankGal%50, "v1=%d v2=%d", v1, v2)
			require.Equal(t, math.Max(res.Summary.F1, res.Summary.F2), res.Summary.Fmax)
		}
	}
}

func TestHeaterBandClamp(t *testing.T) {
	t.Run("reverse delta yields band minimum", func(t *testing.T) {
		in := baselineInput()
		in.StartTempC = 50
		in.TargetTempC = 10
		res := Calculate(in)
		require.NotNil(t, res.Summary.HeaterKW)
		assert.Equal(t, 36, *res.Summary.HeaterKW)
		assert.Equal(t, "Heat 400 gal from 50→10 °C", res.Bom[2].Comments)
	})

	t.Run("large load yields band maximum", func(t *testing.T) {
		in := baselineInput()
		in.VesselsStage1 = 30
		in.StartTempC = 0
		in.TargetTempC = 100
		res := Calculate(in)
		require.NotNil(t, res.Summary.HeaterKW)
		assert.Equal(t, 45, *res.Summary.HeaterKW)
	})

	t.Run("band holds across temperatures", func(t *testing.T) {
		for start := -20.0; start <= 80; start += 7.5 {
			for target := -20.0; target <= 95; target += 5 {
				in := baselineInput()
				in.StartTempC = start
				in.TargetTempC = target
				kw := Calculate(in).Summary.HeaterKW
				require.NotNil(t, kw)
				require.GreaterOrEqual(t, *kw, 36)
				require.LessOrEqual(t, *kw, 45)
			}
		}
	})
}

func TestPumpSelection(t *testing.T) {
	in := baselineInput()
	in.HeadAssumptionFt = 135.5
	assert.Contains(t, Calculate(in).Summary.Pump, "@ ~135.5 ft")

	in.MainsHz = 60
	assert.Equal(t, "Goulds e-SH 65-160/…, ≈240 gpm @ ~110 ft, 10–15 HP, 60 Hz", Calculate(in).Summary.Pump)
}

func TestCartridgeCount(t *testing.T) {
	in := baselineInput()
	in.GPMPerCartridge = 12.5
	res := Calculate(in)

	// ceil(240 / 12.5) = ceil(19.2)
	assert.Equal(t, 20, res.Bom[4].Qty)
	assert.Equal(t, "Design ~12.5 gpm per cartridge", res.Bom[4].Comments)
}

func TestFractionalFlowFormatting(t *testing.T) {
	in := baselineInput()
	in.PerVesselFlowGPM = 37.5
	res := Calculate(in)

	assert.Equal(t, 225.0, res.Summary.Fmax)
	assert.True(t, strings.HasSuffix(res.Bom[3].Specification, "≥225 gpm"))
}

func TestCloneIsDeep(t *testing.T) {
	res := Calculate(baselineInput())
	cost := 10.0
	res.Bom[0].UnitCost = &cost
	res.Bom[0].ExtendedCost = &cost

	cp := res.Clone()
	*cp.Summary.HeaterKW = 99
	*cp.Bom[0].UnitCost = 1
	cp.Bom[1].Specification = "changed"

	assert.Equal(t, 37, *res.Summary.HeaterKW)
	assert.Equal(t, 10.0, *res.Bom[0].UnitCost)
	assert.NotEqual(t, "changed", res.Bom[1].Specification)
}

func TestTotalCost(t *testing.T) {
	res := Calculate(baselineInput())
	a, b := 100.0, 250.0
	res.Bom[0].UnitCost, res.Bom[0].ExtendedCost = &a, &a
	res.Bom[1].UnitCost, res.Bom[1].ExtendedCost = &b, &b

	total, unpriced := res.TotalCost()
	assert.Equal(t, 350.0, total)
	assert.Equal(t, len(res.Bom)-2, unpriced)
}

// assertResultInvariants checks the properties every accepted input must
// keep: non-negative finite flows, a stepped tank of at least 400 gal,
// positive quantities and a JSON-encodable result.
func assertResultInvariants(t *testing.T, res DesignResult) {
	t.Helper()
	s := res.Summary
	for name, v := range map[string]float64{"F1": s.F1, "F2": s.F2, "Fmax": s.Fmax} {
		assert.False(t, math.IsInf(v, 0) || math.IsNaN(v), "%s=%v", name, v)
		assert.GreaterOrEqual(t, v, 0.0, name)
	}
	assert.Equal(t, math.Max(s.F1, s.F2), s.Fmax)
	assert.GreaterOrEqual(t, s.TankGal, 400)
	assert.Zero(t, s.TankGal%50, "tankGal=%d", s.TankGal)
	if s.HeaterKW != nil {
		assert.GreaterOrEqual(t, *s.HeaterKW, 36)
		assert.LessOrEqual(t, *s.HeaterKW, 45)
	}
	for _, l := range res.Bom {
		assert.Positive(t, l.Qty, l.Item)
	}
	_, err := json.Marshal(res)
	assert.NoError(t, err)
}

func TestCalculateInvariantsAtAcceptedBounds(t *testing.T) {
	for _, tc := range []struct {
		name string
		body string
	}{
		{name: "largest accepted", body: `{"stages":2,"vesselsStage1":1000,"vesselsStage2":1000,"membranesPerVessel":100,
			"perVesselFlowGPM":1000,"heater":true,"mainsHz":50,"startTempC":-50,"targetTempC":150,
			"headAssumptionFt":10000,"gpmPerCartridge":0.1}`},
		{name: "smallest accepted", body: `{"stages":2,"vesselsStage1":1,"vesselsStage2":0,"membranesPerVessel":1,
			"perVesselFlowGPM":1e-9,"heater":true,"mainsHz":60,"startTempC":150,"targetTempC":-50,
			"headAssumptionFt":0,"gpmPerCartridge":1000}`},
	} {
		t.Run(tc.name, func(t *testing.T) {
			in, err := Decode([]byte(tc.body))
			require.NoError(t, err)
			assertResultInvariants(t, Calculate(in))
		})
	}

	in, err := Decode([]byte(`{"stages":2,"vesselsStage1":1000,"vesselsStage2":1000,"membranesPerVessel":100,"perVesselFlowGPM":1000,"heater":false,"mainsHz":50,"gpmPerCartridge":0.1}`))
	require.NoError(t, err)
	res := Calculate(in)
	assert.Equal(t, 1e6, res.Summary.Fmax)
	assert.Equal(t, 60000, res.Summary.TankGal)
	assert.Equal(t, "Filter Cartridges", res.Bom[3].Item)
	assert.InDelta(t, 10000000, res.Bom[3].Qty, 1)
}
