// Package schemas holds the embedded JSON Schemas shipped with the CLI.
package schemas

import _ "embed"

// ManifestSchemaJSON is the JSON Schema for dataset eval.yaml manifests.
//
//go:embed manifest.schema.json
var ManifestSchemaJSON string
