package sim

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"codeberg.org/mutker/fanctl/internal/errors"
)

// Step holds the temperature the profile reaches at the end of Duration.
type Step struct {
	Temperature float32       `yaml:"temperature"`
	Duration    time.Duration `yaml:"duration"`
}

// Scenario is a piecewise linear temperature profile for the simulated
// thermistor.
type Scenario struct {
	// Interval is the time between completed sample transfers.
	Interval time.Duration `yaml:"interval"`
	// Noise is the peak ADC noise, in counts.
	Noise uint16 `yaml:"noise"`
	Loop  bool   `yaml:"loop"`
	Steps []Step `yaml:"steps"`
}

// DefaultScenario idles, ramps through the curve and cools back down.
func DefaultScenario() *Scenario {
	return &Scenario{
		Interval: time.Millisecond,
		Noise:    4,
		Loop:     true,
		Steps: []Step{
			{Temperature: 30, Duration: 10 * time.Second},
			{Temperature: 30, Duration: 10 * time.Second},
			{Temperature: 52, Duration: 30 * time.Second},
			{Temperature: 52, Duration: 10 * time.Second},
			{Temperature: 30, Duration: 30 * time.Second},
		},
	}
}

// LoadScenario reads a scenario from a YAML file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New().Wrap(errors.ErrLoadScenario, err)
	}

	return ParseScenario(data)
}

// ParseScenario decodes a YAML scenario and fills in defaults.
func ParseScenario(data []byte) (*Scenario, error) {
	errFactory := errors.New()

	s := &Scenario{}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, errFactory.Wrap(errors.ErrLoadScenario, err)
	}

	if s.Interval <= 0 {
		s.Interval = DefaultScenario().Interval
	}
	if len(s.Steps) == 0 {
		return nil, errFactory.WithMessage(errors.ErrLoadScenario, "scenario has no steps")
	}
	for i, st := range s.Steps {
		if st.Duration < 0 {
			return nil, errFactory.WithData(errors.ErrLoadScenario, struct {
				Step     int
				Duration time.Duration
			}{i, st.Duration})
		}
	}

	return s, nil
}

// Length is the duration of one pass through the steps.
func (s *Scenario) Length() time.Duration {
	var total time.Duration
	for _, st := range s.Steps {
		total += st.Duration
	}

	return total
}

// TemperatureAt returns the profile temperature elapsed into the scenario.
// The first step starts at its own temperature.
func (s *Scenario) TemperatureAt(elapsed time.Duration) float32 {
	if len(s.Steps) == 0 {
		return 0
	}

	if length := s.Length(); s.Loop && length > 0 {
		elapsed %= length
	}

	from := s.Steps[0].Temperature
	for _, st := range s.Steps {
		if elapsed < st.Duration {
			frac := float32(elapsed) / float32(st.Duration)
			return from + (st.Temperature-from)*frac
		}
		elapsed -= st.Duration
		from = st.Temperature
	}

	return from
}
