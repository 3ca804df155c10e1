// Package persona loads the assistant persona configuration for the bridge:
// who the assistant is, how it speaks, and how aggressively turn detection
// should cut in.
package persona

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"

	"github.com/voxbridge/realtime"
)

// Persona is the YAML-configured identity applied to every call.
type Persona struct {
	Name         string  `yaml:"name"`
	Instructions string  `yaml:"instructions"`
	Greeting     string  `yaml:"greeting"`
	Voice        string  `yaml:"voice"`
	Temperature  float64 `yaml:"temperature"`

	// TranscribeCaller turns on transcription of the caller's audio so both
	// sides of the conversation can be persisted.
	TranscribeCaller bool `yaml:"transcribe_caller"`

	TurnDetection *TurnDetection `yaml:"turn_detection"`
}

// TurnDetection tunes server-side voice activity detection per persona. A
// receptionist persona typically wants a longer silence window than an IVR
// replacement.
type TurnDetection struct {
	Threshold         float64 `yaml:"threshold"`
	PrefixPaddingMS   int     `yaml:"prefix_padding_ms"`
	SilenceDurationMS int     `yaml:"silence_duration_ms"`
}

// Load reads and validates a persona file.
func Load(path string) (*Persona, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read persona file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates persona YAML.
func Parse(data []byte) (*Persona, error) {
	var p Persona
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse persona: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks the persona for values the remote side would reject.
func (p *Persona) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("persona: name is required")
	}
	if p.Instructions == "" {
		return fmt.Errorf("persona %q: instructions are required", p.Name)
	}
	if p.Temperature < 0 || p.Temperature > 2.0 {
		return fmt.Errorf("persona %q: temperature %v out of range [0, 2]", p.Name, p.Temperature)
	}
	if td := p.TurnDetection; td != nil {
		if td.Threshold < 0 || td.Threshold > 1 {
			return fmt.Errorf("persona %q: turn detection threshold %v out of range [0, 1]", p.Name, td.Threshold)
		}
		if td.PrefixPaddingMS < 0 || td.SilenceDurationMS < 0 {
			return fmt.Errorf("persona %q: turn detection durations must be non-negative", p.Name)
		}
	}
	return nil
}

// SessionConfig projects the persona onto the realtime session parameters
// for the given model, starting from the telephony defaults.
func (p *Persona) SessionConfig(model string) realtime.SessionConfig {
	cfg := realtime.DefaultSessionConfig(model)
	cfg.Instructions = p.Instructions
	if p.Voice != "" {
		cfg.Voice = p.Voice
	}
	if p.Temperature != 0 {
		cfg.Temperature = p.Temperature
	}
	if p.TranscribeCaller {
		cfg.EnableInputTranscription = true
	}
	if td := p.TurnDetection; td != nil {
		if td.Threshold != 0 {
			cfg.TurnDetection.Threshold = td.Threshold
		}
		if td.PrefixPaddingMS != 0 {
			cfg.TurnDetection.PrefixPaddingMS = td.PrefixPaddingMS
		}
		if td.SilenceDurationMS != 0 {
			cfg.TurnDetection.SilenceDurationMS = td.SilenceDurationMS
		}
	}
	return cfg
}
