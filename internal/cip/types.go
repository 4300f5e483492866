package cip

// Defaults applied when optional request fields are omitted.
const (
	DefaultPerVesselFlowGPM = 40.0
	DefaultStartTempC       = 20.0
	DefaultTargetTempC      = 35.0
	DefaultHeadAssumptionFt = 110.0
	DefaultGPMPerCartridge  = 10.0

	// SystemType tags persisted design runs and AI prompts.
	SystemType = "cip-ro"
)

// DesignInput is the resolved calculator input. Field names are the wire contract.
type DesignInput struct {
	Stages             int     `json:"stages"`
	VesselsStage1      int     `json:"vesselsStage1"`
	VesselsStage2      int     `json:"vesselsStage2"`
	MembranesPerVessel int     `json:"membranesPerVessel"`
	PerVesselFlowGPM   float64 `json:"perVesselFlowGPM"`
	Heater             bool    `json:"heater"`
	MainsHz            int     `json:"mainsHz"`
	StartTempC         float64 `json:"startTempC"`
	TargetTempC        float64 `json:"targetTempC"`
	HeadAssumptionFt   float64 `json:"headAssumptionFt"`
	GPMPerCartridge    float64 `json:"gpmPerCartridge"`
}

// DesignSummary holds the derived headline metrics of a design.
type DesignSummary struct {
	F1       float64 `json:"F1"`
	F2       float64 `json:"F2"`
	Fmax     float64 `json:"Fmax"`
	TankGal  int     `json:"tankGal"`
	HeaterKW *int    `json:"heaterKW"`
	Pump     string  `json:"pump"`
}

// BomLine is one bill-of-materials row. UnitCost and ExtendedCost are either
// both set or both nil ("price unknown").
type BomLine struct {
	Item          string   `json:"item"`
	Qty           int      `json:"qty"`
	Specification string   `json:"specification"`
	Comments      string   `json:"comments,omitempty"`
	UnitCost      *float64 `json:"unitCost"`
	ExtendedCost  *float64 `json:"extendedCost"`
}

// Priced reports whether a catalog price is attached to the line.
func (l BomLine) Priced() bool {
	return l.UnitCost != nil && l.ExtendedCost != nil
}

// DesignResult is the calculator output. BOM order is part of the contract.
type DesignResult struct {
	Summary DesignSummary `json:"summary"`
	Bom     []BomLine     `json:"bom"`
}

// Clone returns a deep copy so callers can rewrite text fields without
// touching the original.
func (r DesignResult) Clone() DesignResult {
	out := DesignResult{Summary: r.Summary}
	if r.Summary.HeaterKW != nil {
		kw := *r.Summary.HeaterKW
		out.Summary.HeaterKW = &kw
	}
	out.Bom = make([]BomLine, len(r.Bom))
	for i, l := range r.Bom {
		out.Bom[i] = l
		if l.UnitCost != nil {
			v := *l.UnitCost
			out.Bom[i].UnitCost = &v
		}
		if l.ExtendedCost != nil {
			v := *l.ExtendedCost
			out.Bom[i].ExtendedCost = &v
		}
	}
	return out
}

// TotalCost sums the extended cost of every priced line and reports how many
// lines were left unpriced.
func (r DesignResult) TotalCost() (total float64, unpriced int) {
	for _, l := range r.Bom {
		if !l.Priced() {
			unpriced++
			continue
		}
		total += *l.ExtendedCost
	}
	return total, unpriced
}
