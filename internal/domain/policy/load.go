package policy

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

type fileConfig struct {
	Rules []fileRule `yaml:"rules"`
}

type fileRule struct {
	Match  patternList `yaml:"match"`
	Deny   bool        `yaml:"deny"`
	Limits *fileLimits `yaml:"limits"`
}

type fileLimits struct {
	MaxFileSize      *byteSize    `yaml:"max_file_size"`
	MaxTotalSize     *byteSize    `yaml:"max_total_size"`
	BytesPerWindow   *bytesWindow `yaml:"bytes_per_window"`
	UploadsPerWindow *countWindow `yaml:"uploads_per_window"`
}

type bytesWindow struct {
	Window duration `yaml:"window"`
	Quota  byteSize `yaml:"quota"`
}

type countWindow struct {
	Window duration `yaml:"window"`
	Quota  int64    `yaml:"quota"`
}

// patternList accepts either a single pattern or a list of alternatives.
type patternList []string

func (p *patternList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*p = patternList{node.Value}
		return nil
	case yaml.SequenceNode:
		var items []string
		if err := node.Decode(&items); err != nil {
			return err
		}
		*p = items
		return nil
	}
	return fmt.Errorf("line %d: match must be a string or a list of strings", node.Line)
}

// byteSize accepts plain integers or human sizes such as "300 KiB".
type byteSize int64

func (b *byteSize) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: size must be a scalar", node.Line)
	}
	n, err := humanize.ParseBytes(strings.TrimSpace(node.Value))
	if err != nil {
		return fmt.Errorf("line %d: invalid size %q: %w", node.Line, node.Value, err)
	}
	*b = byteSize(n)
	return nil
}

type duration time.Duration

func (d *duration) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: window must be a scalar", node.Line)
	}
	v, err := time.ParseDuration(strings.TrimSpace(node.Value))
	if err != nil {
		return fmt.Errorf("line %d: invalid window %q: %w", node.Line, node.Value, err)
	}
	*d = duration(v)
	return nil
}

// LoadFile reads an access rule file.
func LoadFile(path string) ([]Rule, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open access rules: %w", err)
	}
	defer f.Close()

	rules, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rules, nil
}

// Parse decodes and validates YAML access rules.
func Parse(r io.Reader) ([]Rule, error) {
	var cfg fileConfig
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode access rules: %w", err)
	}

	rules := make([]Rule, 0, len(cfg.Rules))
	for i, fr := range cfg.Rules {
		if fr.Deny && fr.Limits != nil {
			return nil, fmt.Errorf("rule %d: deny and limits are mutually exclusive", i)
		}
		var limits *Limits
		if !fr.Deny {
			limits = fr.Limits.toLimits()
		}
		rule, err := NewRule(fr.Match, limits)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func (fl *fileLimits) toLimits() *Limits {
	l := &Limits{}
	if fl == nil {
		return l
	}
	if fl.MaxFileSize != nil {
		l.MaxFileSize = Int64(int64(*fl.MaxFileSize))
	}
	if fl.MaxTotalSize != nil {
		l.MaxTotalSize = Int64(int64(*fl.MaxTotalSize))
	}
	if w := fl.BytesPerWindow; w != nil {
		l.BytesPerWindow = &Window{Window: time.Duration(w.Window), Quota: int64(w.Quota)}
	}
	if w := fl.UploadsPerWindow; w != nil {
		l.UploadsPerWindow = &Window{Window: time.Duration(w.Window), Quota: w.Quota}
	}
	return l
}
