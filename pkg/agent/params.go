package agent

// Defaults applied by Initialize when a field is left zero.
const (
	DefaultProvider      = "openai"
	DefaultTemperature   = 0.3
	DefaultMaxTokens     = 4096
	DefaultMaxIterations = 20
	DefaultStepLimit     = 50
)

// Params configure one agent instance. MaxIterations bounds full tool rounds;
// StepLimit is a finer-grained hard ceiling over model and tool interactions.
// The two budgets are enforced independently.
type Params struct {
	Provider      string
	Model         string
	Temperature   float32
	MaxTokens     int
	MaxIterations int
	StepLimit     int
}

func (p Params) withDefaults() Params {
	if p.Provider == "" {
		p.Provider = DefaultProvider
	}
	if p.Temperature == 0 {
		p.Temperature = DefaultTemperature
	}
	if p.MaxTokens <= 0 {
		p.MaxTokens = DefaultMaxTokens
	}
	if p.MaxIterations <= 0 {
		p.MaxIterations = DefaultMaxIterations
	}
	if p.StepLimit <= 0 {
		p.StepLimit = DefaultStepLimit
	}
	return p
}

// DefaultParams returns the fully defaulted configuration.
func DefaultParams() Params {
	return Params{}.withDefaults()
}
