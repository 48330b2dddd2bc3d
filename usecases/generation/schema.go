package generation

import (
	"github.com/invopop/jsonschema"
)

type requirementOutput struct {
	Description string `json:"description" jsonschema_description:"One behavior of the agent that can be checked by a single test case"`
	TypeHint    string `json:"type_hint,omitempty" jsonschema:"enum=transactional,enum=conversation-flow,enum=unspecified" jsonschema_description:"transactional when the requirement is about completing an operation, conversation-flow otherwise"`
}

// Response schemas given to the model along with the JSON mime type. The parsing stays lenient
// since not every backend enforces them.
var requirementsSchema = reflectSchema([]requirementOutput{})

func reflectSchema(v any) *jsonschema.Schema {
	r := jsonschema.Reflector{
		DoNotReference:            true,
		AllowAdditionalProperties: true,
	}
	schema := r.Reflect(v)
	schema.Version = ""
	return schema
}
