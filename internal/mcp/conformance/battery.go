package conformance

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/mcp-conformance-harness/internal/domain"
)

//go:embed battery.yaml
var batteryYAML []byte

var defaultBattery = mustLoadBattery(batteryYAML)

// DefaultBattery returns the built-in scenario list, decoded once at startup. The
// returned scenarios are shared and must not be modified.
func DefaultBattery() []domain.Scenario {
	return defaultBattery
}

// LoadBattery decodes and checks a YAML scenario list
func LoadBattery(data []byte) ([]domain.Scenario, error) {
	var scenarios []domain.Scenario
	if err := yaml.Unmarshal(data, &scenarios); err != nil {
		return nil, fmt.Errorf("failed to decode battery: %w", err)
	}

	seen := make(map[string]bool, len(scenarios))
	for i := range scenarios {
		sc := &scenarios[i]
		switch {
		case sc.Label == "":
			return nil, fmt.Errorf("scenario %d: label is required", i)
		case seen[sc.Label]:
			return nil, fmt.Errorf("scenario %d: duplicate label %q", i, sc.Label)
		case sc.Tool == "":
			return nil, fmt.Errorf("scenario %q: tool is required", sc.Label)
		case sc.Expectation != domain.ExpectSuccess && sc.Expectation != domain.Adversarial:
			return nil, fmt.Errorf("scenario %q: invalid expectation %q", sc.Label, sc.Expectation)
		case sc.Expectation == domain.ExpectSuccess && sc.ExpectCode != nil:
			return nil, fmt.Errorf("scenario %q: expect_code only applies to adversarial scenarios", sc.Label)
		}
		seen[sc.Label] = true
		if sc.Arguments == nil {
			sc.Arguments = map[string]any{}
		}
	}
	return scenarios, nil
}

func mustLoadBattery(data []byte) []domain.Scenario {
	scenarios, err := LoadBattery(data)
	if err != nil {
		panic(err)
	}
	return scenarios
}
