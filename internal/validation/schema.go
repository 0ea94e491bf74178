// Package validation checks manifest files against the embedded JSON
// Schema before anything tries to evaluate them. Schema errors are
// collected as human-readable strings rather than returned as a single
// error so a check command can show all of them at once.
package validation

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"

	"github.com/pavise/maskeval/internal/dataset"
	"github.com/pavise/maskeval/schemas"
)

// defaultPrinter is used to format schema validation error messages.
var defaultPrinter = message.NewPrinter(language.English)

// manifestSchema is the compiled JSON Schema for eval.yaml files.
var manifestSchema *jsonschema.Schema

func init() {
	manifestSchema = mustCompileSchema(schemas.ManifestSchemaJSON, "manifest.schema.json")
}

func mustCompileSchema(raw string, name string) *jsonschema.Schema {
	var schemaDoc any
	if err := json.Unmarshal([]byte(raw), &schemaDoc); err != nil {
		panic(fmt.Sprintf("failed to parse embedded %s: %v", name, err))
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, schemaDoc); err != nil {
		panic(fmt.Sprintf("failed to add %s resource: %v", name, err))
	}

	sch, err := compiler.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("failed to compile %s: %v", name, err))
	}
	return sch
}

// ValidateManifestFile validates an eval.yaml file at the given path
// against the JSON schema. When the manifest references a samples CSV,
// that listing is checked too.
func ValidateManifestFile(manifestPath string) (manifestErrs []string, csvErrs []string, err error) {
	data, err := os.ReadFile(manifestPath)
	if err != nil {
		return nil, nil, fmt.Errorf("reading manifest: %w", err)
	}

	manifestErrs = ValidateManifestBytes(data)

	// Parse into a minimal struct to resolve the CSV reference
	var doc struct {
		SamplesCSV string `yaml:"samples_csv"`
	}
	if yamlErr := yaml.Unmarshal(data, &doc); yamlErr != nil {
		return manifestErrs, nil, nil // can't resolve the CSV, but manifest errors are still useful
	}
	if doc.SamplesCSV == "" {
		return manifestErrs, nil, nil
	}

	csvPath := doc.SamplesCSV
	if !filepath.IsAbs(csvPath) {
		csvPath = filepath.Join(filepath.Dir(manifestPath), csvPath)
	}

	rows, csvErr := dataset.LoadCSV(csvPath)
	if csvErr != nil {
		return manifestErrs, []string{csvErr.Error()}, nil
	}
	if _, pairErr := dataset.PairsFromRows(rows); pairErr != nil {
		csvErrs = append(csvErrs, pairErr.Error())
	}

	return manifestErrs, csvErrs, nil
}

// ValidateManifestBytes validates raw YAML bytes against the manifest schema.
func ValidateManifestBytes(data []byte) []string {
	return validateYAMLBytes(manifestSchema, data)
}

func validateYAMLBytes(schema *jsonschema.Schema, data []byte) []string {
	// Parse YAML into generic any
	var yamlDoc any
	if err := yaml.Unmarshal(data, &yamlDoc); err != nil {
		return []string{fmt.Sprintf("YAML parse error: %v", err)}
	}

	// Convert to JSON-compatible types (yaml.v3 uses map[string]any which is fine)
	jsonCompatible := convertToJSONCompatible(yamlDoc)

	return validateAgainstSchema(schema, jsonCompatible)
}

func validateAgainstSchema(schema *jsonschema.Schema, instance any) []string {
	err := schema.Validate(instance)
	if err == nil {
		return nil
	}
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return []string{fmt.Sprintf("schema: %v", err)}
	}
	var errs []string
	collectSchemaErrors(ve, &errs)
	return errs
}

func collectSchemaErrors(ve *jsonschema.ValidationError, errs *[]string) {
	if len(ve.Causes) == 0 {
		loc := "/"
		if len(ve.InstanceLocation) > 0 {
			loc = "/" + strings.Join(ve.InstanceLocation, "/")
		}
		*errs = append(*errs, fmt.Sprintf("%s: %s", loc, ve.ErrorKind.LocalizedString(defaultPrinter)))
		return
	}
	for _, c := range ve.Causes {
		collectSchemaErrors(c, errs)
	}
}

// convertToJSONCompatible converts YAML-decoded values to JSON-compatible types.
// yaml.v3 decodes to map[string]any which is fine, but integers need to stay as-is.
func convertToJSONCompatible(v any) any {
	switch val := v.(type) {
	case map[string]any:
		result := make(map[string]any, len(val))
		for k, v2 := range val {
			result[k] = convertToJSONCompatible(v2)
		}
		return result
	case []any:
		result := make([]any, len(val))
		for i, v2 := range val {
			result[i] = convertToJSONCompatible(v2)
		}
		return result
	default:
		return val
	}
}
