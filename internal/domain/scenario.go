package domain

// Expectation classifies what a scenario is meant to provoke
type Expectation string

const (
	// ExpectSuccess scenarios must come back as Success records.
	ExpectSuccess Expectation = "expect_success"
	// Adversarial scenarios may succeed or fail; both outcomes are recorded.
	Adversarial Expectation = "adversarial"
)

// Scenario is one static entry of the battery.
type Scenario struct {
	Label       string         `yaml:"label"`
	Tool        string         `yaml:"tool"`
	Arguments   map[string]any `yaml:"arguments"`
	Expectation Expectation    `yaml:"expectation"`
	// ExpectCode, when set on an adversarial scenario, is the protocol code a correct
	// server rejects the call with.
	ExpectCode *int64 `yaml:"expect_code,omitempty"`
}

// Outcome is the summarised result of one scenario execution
type Outcome struct {
	Label    string
	Tool     string
	Success  bool
	Code     ErrorCode
	Expected bool
}

// Matches reports whether a result agrees with the scenario's expectation.
func (s Scenario) Matches(success bool, code ErrorCode) bool {
	switch s.Expectation {
	case ExpectSuccess:
		return success
	case Adversarial:
		if s.ExpectCode == nil {
			return true
		}
		if success {
			return false
		}
		got, ok := code.Int()
		return ok && got == *s.ExpectCode
	default:
		return false
	}
}
