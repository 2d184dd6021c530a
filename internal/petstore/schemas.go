package petstore

import (
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// Tool names published by the fixture
const (
	ToolGetPetByID       = "getPetById"
	ToolFindPetsByStatus = "findPetsByStatus"
	ToolAddPet           = "addPet"
)

// BaseURL is the upstream the fixture pretends to proxy. It only appears in rendered text.
const BaseURL = "https://petstore.swagger.io/v2"

// Input schemas are kept as JSON documents so the published schema and the validator
// compile from the same bytes.
const (
	getPetByIDSchema = `{
  "type": "object",
  "properties": {
    "petId": {
      "type": "integer",
      "description": "ID of pet to return"
    }
  },
  "required": ["petId"],
  "additionalProperties": false
}`

	findPetsByStatusSchema = `{
  "type": "object",
  "properties": {
    "status": {
      "type": "array",
      "description": "Status values that need to be considered for filter",
      "items": {
        "type": "string",
        "enum": ["available", "pending", "sold"]
      }
    }
  },
  "required": ["status"],
  "additionalProperties": false
}`

	addPetSchema = `{
  "type": "object",
  "properties": {
    "request_body": {
      "type": "object",
      "description": "Pet object that needs to be added to the store",
      "properties": {
        "id": {"type": "integer"},
        "name": {"type": "string"},
        "category": {
          "type": "object",
          "properties": {
            "id": {"type": "integer"},
            "name": {"type": "string"}
          }
        },
        "photoUrls": {
          "type": "array",
          "items": {"type": "string"}
        },
        "tags": {
          "type": "array",
          "items": {
            "type": "object",
            "properties": {
              "id": {"type": "integer"},
              "name": {"type": "string"}
            }
          }
        },
        "status": {
          "type": "string",
          "description": "pet status in the store",
          "enum": ["available", "pending", "sold"]
        }
      },
      "required": ["name", "photoUrls"]
    }
  },
  "required": ["request_body"],
  "additionalProperties": false
}`
)

// toolSpec describes one published operation
type toolSpec struct {
	Name        string
	Title       string
	Description string
	Method      string
	Schema      string
}

var toolSpecs = []toolSpec{
	{
		Name:        ToolGetPetByID,
		Title:       "Find pet by ID",
		Description: "Returns a single pet",
		Method:      "GET",
		Schema:      getPetByIDSchema,
	},
	{
		Name:        ToolFindPetsByStatus,
		Title:       "Finds Pets by status",
		Description: "Multiple status values can be provided with comma separated strings",
		Method:      "GET",
		Schema:      findPetsByStatusSchema,
	},
	{
		Name:        ToolAddPet,
		Title:       "Add a new pet to the store",
		Description: "Creates a pet from the request body",
		Method:      "POST",
		Schema:      addPetSchema,
	},
}

// ToolNames returns the published tool names in registration order
func ToolNames() []string {
	names := make([]string, len(toolSpecs))
	for i, spec := range toolSpecs {
		names[i] = spec.Name
	}
	return names
}

func (s toolSpec) inputSchema() (*jsonschema.Schema, error) {
	var schema jsonschema.Schema
	if err := json.Unmarshal([]byte(s.Schema), &schema); err != nil {
		return nil, fmt.Errorf("decode %s input schema: %w", s.Name, err)
	}
	return &schema, nil
}
