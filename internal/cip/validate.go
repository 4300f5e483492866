package cip

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
)

// DesignRequest is the raw caller payload. Pointers distinguish omitted
// fields (defaults apply) from explicit zero values (validated as given).
// Counts are decoded as numbers and checked for integrality so that a
// fractional count is reported against its field instead of failing decode.
//
// Upper bounds keep every derived flow finite and every derived count
// inside int, so the calculator stays total over accepted input.
type DesignRequest struct {
	Stages             *float64 `json:"stages" validate:"required,eq=2"`
	VesselsStage1      *float64 `json:"vesselsStage1" validate:"required,integer,gte=1,lte=1000"`
	VesselsStage2      *float64 `json:"vesselsStage2" validate:"required,integer,gte=0,lte=1000"`
	MembranesPerVessel *float64 `json:"membranesPerVessel" validate:"required,integer,gte=1,lte=100"`
	PerVesselFlowGPM   *float64 `json:"perVesselFlowGPM" validate:"omitempty,finite,gt=0,lte=1000"`
	Heater             *bool    `json:"heater" validate:"required"`
	MainsHz            *float64 `json:"mainsHz" validate:"required,mainshz"`
	StartTempC         *float64 `json:"startTempC" validate:"omitempty,finite,gte=-50,lte=150"`
	TargetTempC        *float64 `json:"targetTempC" validate:"omitempty,finite,gte=-50,lte=150"`
	HeadAssumptionFt   *float64 `json:"headAssumptionFt" validate:"omitempty,finite,gte=0,lte=10000"`
	GPMPerCartridge    *float64 `json:"gpmPerCartridge" validate:"omitempty,finite,gte=0.1,lte=1000"`
}

// ValidationError reports rejected input with per-field detail.
type ValidationError struct {
	Message string
	Fields  map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+" "+e.Fields[k])
	}
	return e.Message + ": " + strings.Join(parts, "; ")
}

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = validate.RegisterValidation("integer", isInteger)
	_ = validate.RegisterValidation("finite", isFinite)
	_ = validate.RegisterValidation("mainshz", isMainsHz)
}

func isInteger(fl validator.FieldLevel) bool {
	v := fl.Field().Float()
	return !math.IsInf(v, 0) && v == math.Trunc(v)
}

func isFinite(fl validator.FieldLevel) bool {
	v := fl.Field().Float()
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func isMainsHz(fl validator.FieldLevel) bool {
	v := fl.Field().Float()
	return v == 50 || v == 60
}

// ParseRequest decodes a JSON payload. Type mismatches are reported as
// validation errors against the offending field.
func ParseRequest(blob []byte) (DesignRequest, error) {
	var req DesignRequest
	if err := json.Unmarshal(blob, &req); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) && typeErr.Field != "" {
			return DesignRequest{}, &ValidationError{
				Message: "invalid design input",
				Fields:  map[string]string{typeErr.Field: "must be a " + jsonTypeName(typeErr.Type)},
			}
		}
		return DesignRequest{}, &ValidationError{Message: "invalid json: " + err.Error()}
	}
	return req, nil
}

func jsonTypeName(t reflect.Type) string {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Bool:
		return "boolean"
	case reflect.Float32, reflect.Float64, reflect.Int, reflect.Int64:
		return "number"
	default:
		return t.String()
	}
}

// Validate checks the request against the DesignInput invariants. Nothing is
// coerced: every violation is returned with its field name.
func (r DesignRequest) Validate() error {
	err := validate.Struct(r)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate design input: %w", err)
	}
	out := &ValidationError{Message: "invalid design input", Fields: map[string]string{}}
	for _, fe := range fieldErrs {
		out.Fields[fe.Field()] = describeFieldError(fe)
	}
	return out
}

func describeFieldError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "eq":
		return "must equal " + fe.Param()
	case "gte":
		return "must be >= " + fe.Param()
	case "gt":
		return "must be > " + fe.Param()
	case "lte":
		return "must be <= " + fe.Param()
	case "integer":
		return "must be an integer"
	case "finite":
		return "must be a finite number"
	case "mainshz":
		return "must be 50 or 60"
	default:
		return "failed " + fe.Tag()
	}
}

// Input resolves the request into a DesignInput, applying defaults to
// omitted optional fields. Call Validate first.
func (r DesignRequest) Input() DesignInput {
	return DesignInput{
		Stages:             int(deref(r.Stages, 2)),
		VesselsStage1:      int(deref(r.VesselsStage1, 0)),
		VesselsStage2:      int(deref(r.VesselsStage2, 0)),
		MembranesPerVessel: int(deref(r.MembranesPerVessel, 0)),
		PerVesselFlowGPM:   deref(r.PerVesselFlowGPM, DefaultPerVesselFlowGPM),
		Heater:             r.Heater != nil && *r.Heater,
		MainsHz:            int(deref(r.MainsHz, 0)),
		StartTempC:         deref(r.StartTempC, DefaultStartTempC),
		TargetTempC:        deref(r.TargetTempC, DefaultTargetTempC),
		HeadAssumptionFt:   deref(r.HeadAssumptionFt, DefaultHeadAssumptionFt),
		GPMPerCartridge:    deref(r.GPMPerCartridge, DefaultGPMPerCartridge),
	}
}

// Request converts a resolved input back into a fully populated request so
// programmatic callers go through the same validation.
func (in DesignInput) Request() DesignRequest {
	f := func(v float64) *float64 { return &v }
	heater := in.Heater
	return DesignRequest{
		Stages:             f(float64(in.Stages)),
		VesselsStage1:      f(float64(in.VesselsStage1)),
		VesselsStage2:      f(float64(in.VesselsStage2)),
		MembranesPerVessel: f(float64(in.MembranesPerVessel)),
		PerVesselFlowGPM:   f(in.PerVesselFlowGPM),
		Heater:             &heater,
		MainsHz:            f(float64(in.MainsHz)),
		StartTempC:         f(in.StartTempC),
		TargetTempC:        f(in.TargetTempC),
		HeadAssumptionFt:   f(in.HeadAssumptionFt),
		GPMPerCartridge:    f(in.GPMPerCartridge),
	}
}

// Validate runs the request rules over an already resolved input.
func (in DesignInput) Validate() error {
	return in.Request().Validate()
}

// Decode parses, validates and resolves a JSON payload in one step.
func Decode(blob []byte) (DesignInput, error) {
	req, err := ParseRequest(blob)
	if err != nil {
		return DesignInput{}, err
	}
	if err := req.Validate(); err != nil {
		return DesignInput{}, err
	}
	return req.Input(), nil
}

func deref(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}
