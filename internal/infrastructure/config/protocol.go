package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/04shubham7/genai-cwc-shubham/internal/domain/entity"
)

// ProtocolFile is the YAML form of a step vocabulary.
type ProtocolFile struct {
	Name             string   `yaml:"name"`
	Kinds            []string `yaml:"kinds"`
	Terminal         []string `yaml:"terminal"`
	Think            string   `yaml:"think"`
	Action           string   `yaml:"action"`
	Converge         string   `yaml:"converge"`
	ThinkStreakLimit int      `yaml:"think_streak_limit"`
	Decoding         string   `yaml:"decoding"`
	Instruction      string   `yaml:"instruction"`
	InstructionFile  string   `yaml:"instruction_file"`
}

var envPattern = regexp.MustCompile(`\$\{([^}]+)}`)

func expandEnv(s string) string {
	return envPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envPattern.FindStringSubmatch(match)[1]
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

func LoadProtocol(path string) (entity.Protocol, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return entity.Protocol{}, fmt.Errorf("reading protocol %s: %w", path, err)
	}
	return ParseProtocol(data, filepath.Dir(path))
}

// ParseProtocol decodes and validates a protocol. A relative instruction_file
// is resolved against baseDir.
func ParseProtocol(data []byte, baseDir string) (entity.Protocol, error) {
	var file ProtocolFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return entity.Protocol{}, fmt.Errorf("parsing protocol: %w", err)
	}

	instruction, err := file.instruction(baseDir)
	if err != nil {
		return entity.Protocol{}, err
	}

	p := entity.Protocol{
		Name:         strings.TrimSpace(file.Name),
		Kinds:        kinds(file.Kinds),
		Terminal:     kinds(file.Terminal),
		Instruction:  instruction,
		Decoding:     entity.DecodingMode(strings.ToLower(strings.TrimSpace(file.Decoding))),
		ThinkKind:    kind(file.Think),
		ActionKind:   kind(file.Action),
		ConvergeKind: kind(file.Converge),
	}
	if p.Decoding == "" {
		p.Decoding = entity.DecodingStrict
	}
	if p.ThinkKind != "" {
		p.ThinkStreakLimit = file.ThinkStreakLimit
		if p.ThinkStreakLimit == 0 {
			p.ThinkStreakLimit = entity.DefaultThinkStreakLimit
		}
	}

	if err := p.Validate(); err != nil {
		return entity.Protocol{}, err
	}
	return p, nil
}

func (f ProtocolFile) instruction(baseDir string) (string, error) {
	inline := strings.TrimSpace(f.Instruction)
	path := strings.TrimSpace(expandEnv(f.InstructionFile))
	switch {
	case inline != "" && path != "":
		return "", fmt.Errorf("%w: %s: set either instruction or instruction_file, not both", entity.ErrInvalidProtocol, f.Name)
	case path == "":
		return expandEnv(inline), nil
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(baseDir, path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading instruction %s: %w", path, err)
	}
	return strings.TrimSpace(string(data)), nil
}

func kinds(values []string) []entity.StepKind {
	result := make([]entity.StepKind, 0, len(values))
	for _, v := range values {
		result = append(result, kind(v))
	}
	return result
}

func kind(v string) entity.StepKind {
	return entity.StepKind(strings.ToLower(strings.TrimSpace(v)))
}
