package petstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	validator "github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/santhosh-tekuri/jsonschema/v6/kind"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Validator checks tool arguments against the published input schemas
type Validator struct {
	tools   map[string]*compiledTool
	printer *message.Printer
}

type compiledTool struct {
	schema     *validator.Schema
	properties []string
	required   []string
	types      map[string]string
}

// schemaDoc is the subset of a tool schema needed for parameter-name checks
type schemaDoc struct {
	Properties map[string]struct {
		Type string `json:"type"`
	} `json:"properties"`
	Required []string `json:"required"`
}

// NewValidator compiles every tool schema
func NewValidator() (*Validator, error) {
	v := &Validator{
		tools:   make(map[string]*compiledTool, len(toolSpecs)),
		printer: message.NewPrinter(language.English),
	}

	for _, spec := range toolSpecs {
		var doc any
		if err := json.Unmarshal([]byte(spec.Schema), &doc); err != nil {
			return nil, fmt.Errorf("unmarshal %s schema: %w", spec.Name, err)
		}

		c := validator.NewCompiler()
		if err := c.AddResource("schema.json", doc); err != nil {
			return nil, fmt.Errorf("add %s schema resource: %w", spec.Name, err)
		}
		schema, err := c.Compile("schema.json")
		if err != nil {
			return nil, fmt.Errorf("compile %s schema: %w", spec.Name, err)
		}

		var sd schemaDoc
		if err := json.Unmarshal([]byte(spec.Schema), &sd); err != nil {
			return nil, fmt.Errorf("decode %s properties: %w", spec.Name, err)
		}

		ct := &compiledTool{
			schema:   schema,
			required: sd.Required,
			types:    make(map[string]string, len(sd.Properties)),
		}
		for name, prop := range sd.Properties {
			ct.properties = append(ct.properties, name)
			ct.types[name] = prop.Type
		}
		sort.Strings(ct.properties)

		v.tools[spec.Name] = ct
	}

	return v, nil
}

// Validate returns every violation found in args. Unknown and missing parameter names
// are reported first; schema constraints are only checked once the names are right.
func (v *Validator) Validate(tool string, args map[string]any) []Violation {
	ct, ok := v.tools[tool]
	if !ok {
		return nil
	}

	var violations []Violation

	names := make([]string, 0, len(args))
	for name := range args {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if _, known := ct.types[name]; known {
			continue
		}
		violations = append(violations, Violation{
			Type:            ViolationInvalidParameter,
			Parameter:       name,
			Suggestions:     Suggest(name, ct.properties),
			ValidParameters: ct.properties,
		})
	}

	for _, name := range ct.required {
		if _, present := args[name]; present {
			continue
		}
		violations = append(violations, Violation{
			Type:         ViolationMissingParameter,
			Parameter:    name,
			ExpectedType: ct.types[name],
		})
	}

	if len(violations) > 0 {
		return violations
	}

	err := ct.schema.Validate(map[string]any(args))
	if err == nil {
		return nil
	}
	var verr *validator.ValidationError
	if !errors.As(err, &verr) {
		return []Violation{{Type: ViolationConstraint, Message: err.Error()}}
	}

	for _, leaf := range leafErrors(verr, nil) {
		violations = append(violations, v.constraintViolation(leaf, args))
	}
	sort.SliceStable(violations, func(i, j int) bool {
		if violations[i].FieldPath != violations[j].FieldPath {
			return violations[i].FieldPath < violations[j].FieldPath
		}
		return violations[i].Message < violations[j].Message
	})
	return violations
}

func (v *Validator) constraintViolation(leaf *validator.ValidationError, args map[string]any) Violation {
	violation := Violation{
		Type:      ViolationConstraint,
		Message:   leaf.ErrorKind.LocalizedString(v.printer),
		FieldPath: strings.Join(leaf.InstanceLocation, "."),
	}
	if len(leaf.InstanceLocation) > 0 {
		violation.Parameter = leaf.InstanceLocation[0]
	}

	switch k := leaf.ErrorKind.(type) {
	case *kind.Type:
		violation.ExpectedType = strings.Join(k.Want, " or ")
		violation.ActualValue = lookup(args, leaf.InstanceLocation)
	case *kind.Enum:
		violation.ActualValue = lookup(args, leaf.InstanceLocation)
		violation.Constraints = []Constraint{{Type: constraintEnumValues, Values: k.Want}}
	}
	return violation
}

// leafErrors flattens the cause tree to the errors that name a concrete failure
func leafErrors(err *validator.ValidationError, out []*validator.ValidationError) []*validator.ValidationError {
	if len(err.Causes) == 0 {
		return append(out, err)
	}
	for _, cause := range err.Causes {
		out = leafErrors(cause, out)
	}
	return out
}

// lookup resolves an instance location inside decoded arguments
func lookup(args map[string]any, location []string) any {
	var current any = args
	for _, token := range location {
		switch node := current.(type) {
		case map[string]any:
			current = node[token]
		case []any:
			i, err := strconv.Atoi(token)
			if err != nil || i < 0 || i >= len(node) {
				return nil
			}
			current = node[i]
		default:
			return nil
		}
	}
	return current
}
