package tools

import (
	"context"
	"fmt"
)

// UnitConversionInput is the input schema for UnitConversionTool, reflected
// into JSON Schema by SchemaForInput.
type UnitConversionInput struct {
	Value    float64 `json:"value" jsonschema:"required,description=Numeric value to convert"`
	FromUnit string  `json:"from_unit" jsonschema:"required,description=Source unit (mg, g, kg, lb, ml, l)"`
	ToUnit   string  `json:"to_unit" jsonschema:"required,description=Target unit (mg, g, kg, lb, ml, l)"`
}

// unitConversionFactors expresses every supported unit in terms of a base
// unit per dimension (grams for mass, milliliters for volume).
var unitConversionFactors = map[string]float64{
	"mg": 0.001,
	"g":  1,
	"kg": 1000,
	"lb": 453.592,
	"ml": 1,
	"l":  1000,
}

var unitDimension = map[string]string{
	"mg": "mass", "g": "mass", "kg": "mass", "lb": "mass",
	"ml": "volume", "l": "volume",
}

// UnitConversionTool converts between common clinical dosing/measurement
// units (mass and volume), the kind of small deterministic helper a
// clinical agent calls mid-reasoning rather than asking the LLM to do
// arithmetic itself.
type UnitConversionTool struct{}

func NewUnitConversionTool() *UnitConversionTool { return &UnitConversionTool{} }

func (t *UnitConversionTool) Info() Info {
	schema, err := SchemaForInput(UnitConversionInput{})
	if err != nil {
		schema = map[string]any{"type": "object"}
	}
	return Info{
		Name:        "convert_clinical_unit",
		Description: "Converts a numeric value between common clinical mass or volume units (mg, g, kg, lb, ml, l).",
		Parameters:  schema,
	}
}

func (t *UnitConversionTool) Execute(ctx context.Context, args map[string]any) (Result, error) {
	value, _ := args["value"].(float64)
	fromUnit, _ := args["from_unit"].(string)
	toUnit, _ := args["to_unit"].(string)

	fromFactor, fromOK := unitConversionFactors[fromUnit]
	toFactor, toOK := unitConversionFactors[toUnit]
	if !fromOK || !toOK {
		return Result{Success: false, Error: fmt.Sprintf("unsupported unit pair: %s -> %s", fromUnit, toUnit)}, nil
	}
	if unitDimension[fromUnit] != unitDimension[toUnit] {
		return Result{Success: false, Error: fmt.Sprintf("cannot convert across dimensions: %s is %s, %s is %s", fromUnit, unitDimension[fromUnit], toUnit, unitDimension[toUnit])}, nil
	}

	converted := value * fromFactor / toFactor
	return Result{
		Success: true,
		Content: fmt.Sprintf("%g %s = %g %s", value, fromUnit, converted, toUnit),
		Output:  converted,
	}, nil
}

// TerminologyLookupInput is the input schema for TerminologyLookupTool.
type TerminologyLookupInput struct {
	Code string `json:"code" jsonschema:"required,description=An ICD-10-style diagnosis code to look up"`
}

// terminologyTable is a small static reference set, standing in for a real
// terminology service (out of scope per spec.md §1's exclusion of
// concrete clinical data sources) - large enough to exercise the tool
// contract end to end.
var terminologyTable = map[string]string{
	"E11.9": "Type 2 diabetes mellitus without complications",
	"I10":   "Essential (primary) hypertension",
	"J45.9": "Asthma, unspecified",
	"N18.3": "Chronic kidney disease, stage 3 (moderate)",
}

// TerminologyLookupTool resolves a diagnosis code to its plain-language
// description.
type TerminologyLookupTool struct{}

func NewTerminologyLookupTool() *TerminologyLookupTool { return &TerminologyLookupTool{} }

func (t *TerminologyLookupTool) Info() Info {
	schema, err := SchemaForInput(TerminologyLookupInput{})
	if err != nil {
		schema = map[string]any{"type": "object"}
	}
	return Info{
		Name:        "lookup_diagnosis_code",
		Description: "Resolves an ICD-10-style diagnosis code to its plain-language description.",
		Parameters:  schema,
	}
}

func (t *TerminologyLookupTool) Execute(ctx context.Context, args map[string]any) (Result, error) {
	code, _ := args["code"].(string)
	description, ok := terminologyTable[code]
	if !ok {
		return Result{Success: false, Error: fmt.Sprintf("unknown diagnosis code: %s", code)}, nil
	}
	return Result{Success: true, Content: description, Output: description}, nil
}

// LocalRepository is a Repository backed by a fixed, code-registered set
// of tools - the static counterpart to a config-driven or remote
// repository, following the teacher's repository-pluggability shape
// without a concrete MCP/remote client (out of scope per spec.md §1).
type LocalRepository struct {
	name  string
	tools map[string]Tool
}

// NewLocalRepository builds a repository named name, seeded with tools.
func NewLocalRepository(name string, tools ...Tool) *LocalRepository {
	repo := &LocalRepository{name: name, tools: make(map[string]Tool, len(tools))}
	for _, tool := range tools {
		repo.tools[tool.Info().Name] = tool
	}
	return repo
}

func (r *LocalRepository) Name() string { return r.name }

// DiscoverTools is a no-op: the local repository's tools are fixed at
// construction time, unlike a remote repository that would query a
// server here.
func (r *LocalRepository) DiscoverTools(ctx context.Context) error { return nil }

func (r *LocalRepository) ListTools() []Info {
	infos := make([]Info, 0, len(r.tools))
	for _, tool := range r.tools {
		infos = append(infos, tool.Info())
	}
	return infos
}

func (r *LocalRepository) GetTool(name string) (Tool, bool) {
	tool, ok := r.tools[name]
	return tool, ok
}
