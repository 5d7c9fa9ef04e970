// Package docs embeds the tripplanner API description.
package docs

import _ "embed"

// OpenAPIYAML is the OpenAPI 3 document served at /openapi.yaml.
//
//go:embed openapi.yaml
var OpenAPIYAML []byte
