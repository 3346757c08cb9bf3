package analysis

import (
	"github.com/google/jsonschema-go/jsonschema"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/genai"
)

// responsePayload documents the answer shape requested from the analysis service
type responsePayload struct {
	EventName string `json:"event_name" jsonschema:"Short descriptive name of what is happening, 2-4 words"`
	Scores    []int  `json:"scores" jsonschema:"One integer score from 0 to 100 per photo, in photo order"`
	BestIndex int    `json:"best_index" jsonschema:"1-based position of the most compelling photo"`
	Reason    string `json:"reason" jsonschema:"One sentence on the emotional quality that makes the best photo special"`
}

// ResponseSchema returns the JSON schema of the expected answer
func ResponseSchema() (*jsonschema.Schema, error) {
	schema, err := jsonschema.For[responsePayload](nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to infer response schema")
	}

	lo, hi := 0.0, 100.0
	if scores, ok := schema.Properties["scores"]; ok && scores.Items != nil {
		scores.Items.Minimum = &lo
		scores.Items.Maximum = &hi
	}
	return schema, nil
}

// convertJSONSchemaToGenai converts JSON Schema to Gemini genai.Schema
func convertJSONSchemaToGenai(schema *jsonschema.Schema) (*genai.Schema, error) {
	if schema == nil {
		return nil, nil
	}

	genaiSchema := &genai.Schema{
		Description: schema.Description,
		Minimum:     schema.Minimum,
		Maximum:     schema.Maximum,
	}

	// Nullable types are inferred as ["null", "<type>"]
	typ := schema.Type
	if typ == "" {
		for _, t := range schema.Types {
			if t == "null" {
				nullable := true
				genaiSchema.Nullable = &nullable
				continue
			}
			typ = t
		}
	}

	switch typ {
	case "object":
		genaiSchema.Type = genai.TypeObject
	case "string":
		genaiSchema.Type = genai.TypeString
	case "integer":
		genaiSchema.Type = genai.TypeInteger
	case "number":
		genaiSchema.Type = genai.TypeNumber
	case "boolean":
		genaiSchema.Type = genai.TypeBoolean
	case "array":
		genaiSchema.Type = genai.TypeArray
	case "":
	default:
		return nil, goerr.New("unsupported schema type", goerr.V("type", typ))
	}

	if len(schema.Properties) > 0 {
		genaiSchema.Properties = make(map[string]*genai.Schema, len(schema.Properties))
		for name, propSchema := range schema.Properties {
			converted, err := convertJSONSchemaToGenai(propSchema)
			if err != nil {
				return nil, goerr.Wrap(err, "failed to convert property schema", goerr.V("property", name))
			}
			genaiSchema.Properties[name] = converted
		}
	}

	if len(schema.Required) > 0 {
		genaiSchema.Required = schema.Required
	}

	if schema.Items != nil {
		converted, err := convertJSONSchemaToGenai(schema.Items)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to convert items schema")
		}
		genaiSchema.Items = converted
	}

	return genaiSchema, nil
}
