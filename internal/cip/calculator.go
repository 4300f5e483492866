package cip

import (
	"fmt"
	"math"
	"strconv"
)

const (
	gallonsPerVessel   = 40.0
	tankSafetyFactor   = 1.5
	tankStepGal        = 50.0
	tankMinGal         = 400.0
	kgPerGallon        = 3.785
	waterSpecificHeat  = 4.186 // kJ/(kg·K)
	kJPerKWh           = 3600.0
	heaterMarginFactor = 1.4
	heaterMinKW        = 36
	heaterMaxKW        = 45
)

// Calculate derives flows, tank volume, heater power and the BOM for a
// two-stage CIP skid. It is total over inputs that pass Validate.
func Calculate(in DesignInput) DesignResult {
	f1 := float64(in.VesselsStage1) * in.PerVesselFlowGPM
	f2 := float64(in.VesselsStage2) * in.PerVesselFlowGPM
	fmax := math.Max(f1, f2)

	v1 := float64(in.VesselsStage1) * gallonsPerVessel
	v2 := float64(in.VesselsStage2) * gallonsPerVessel
	tankGal := int(math.Max(tankMinGal, roundUpToStep(tankStepGal, math.Max(v1, v2)*tankSafetyFactor)))

	var heaterKW *int
	if in.Heater {
		kw := heaterPowerKW(tankGal, in.StartTempC, in.TargetTempC)
		heaterKW = &kw
	}

	cartridges := int(math.Ceil(fmax / in.GPMPerCartridge))
	pump := pumpSpec(in.MainsHz, in.HeadAssumptionFt)

	bom := make([]BomLine, 0, 9)
	bom = append(bom,
		BomLine{Item: "Pump", Qty: 1, Specification: pump, Comments: "VFD-driven; keep ΔP/vessel ≤10–15 psi"},
		BomLine{Item: "CIP Tank", Qty: 1, Specification: fmt.Sprintf("%d gal 316SS cone-bottom with LL/L/HL switches", tankGal), Comments: "≥1.5× largest stage volume"},
	)
	if heaterKW != nil {
		bom = append(bom, BomLine{
			Item:          "Heater",
			Qty:           1,
			Specification: fmt.Sprintf("Electric immersion %d kW, RTD + over-temp", *heaterKW),
			Comments:      fmt.Sprintf("Heat %d gal from %s→%s °C", tankGal, formatNumber(in.StartTempC), formatNumber(in.TargetTempC)),
		})
	}
	bom = append(bom,
		BomLine{Item: "Cartridge Filter Housing", Qty: 1, Specification: fmt.Sprintf(`30-round, 30", 5 µm absolute, ≥%s gpm`, formatNumber(fmax))},
		BomLine{Item: "Filter Cartridges", Qty: cartridges, Specification: `30" 5 µm absolute (PP/nylon), high-temp`, Comments: fmt.Sprintf("Design ~%s gpm per cartridge", formatNumber(in.GPMPerCartridge))},
		BomLine{Item: "Mag Flowmeter", Qty: 1, Specification: `0–300 gpm, 2–4"`, Comments: "One per active loop"},
		BomLine{Item: "Pressure Gauges/Transmitters", Qty: 2, Specification: "Feed & return headers"},
		BomLine{Item: "Valves & Piping", Qty: 1, Specification: `316L SS headers 4", branches 2"`, Comments: "Stage-select + reverse-flow ties"},
		BomLine{Item: "Controls (PLC + HMI)", Qty: 1, Specification: "Recipe selector, permissives, logging"},
	)

	return DesignResult{
		Summary: DesignSummary{
			F1:       f1,
			F2:       f2,
			Fmax:     fmax,
			TankGal:  tankGal,
			HeaterKW: heaterKW,
			Pump:     pump,
		},
		Bom: bom,
	}
}

// heaterPowerKW clamps the margin-adjusted heat-up energy into the catalog
// band [36, 45] kW. The band clamp applies even when the raw estimate is far
// outside it.
func heaterPowerKW(tankGal int, startC, targetC float64) int {
	massKg := float64(tankGal) * kgPerGallon
	deltaT := math.Max(0, targetC-startC)
	energyKWh := massKg * waterSpecificHeat * deltaT / kJPerKWh
	raw := math.Ceil(energyKWh * heaterMarginFactor)
	switch {
	case raw < heaterMinKW:
		return heaterMinKW
	case raw > heaterMaxKW:
		return heaterMaxKW
	default:
		return int(raw)
	}
}

func pumpSpec(mainsHz int, headFt float64) string {
	if mainsHz == 50 {
		return fmt.Sprintf(`Goulds e-SH 2.5×3-8 (25SH08), ~7-1/8" trim, ≈240 gpm @ ~%s ft, 15 kW IE3, 50 Hz`, formatNumber(headFt))
	}
	return "Goulds e-SH 65-160/…, ≈240 gpm @ ~110 ft, 10–15 HP, 60 Hz"
}

func roundUpToStep(step, v float64) float64 {
	return math.Ceil(v/step) * step
}

// formatNumber prints the shortest decimal form: 240, 12.5, -3.
func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
