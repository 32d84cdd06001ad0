package engine

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// FileStat describes one obfuscated module.
type FileStat struct {
	Name       string  `json:"name" yaml:"name"`
	InputSize  int     `json:"inputSize" yaml:"input_size"`
	OutputSize int     `json:"outputSize" yaml:"output_size"`
	Entropy    float64 `json:"entropy" yaml:"entropy"`
	Skipped    bool    `json:"skipped,omitempty" yaml:"skipped,omitempty"`
}

// Report holds the data of one obfuscation run, for CI/CD integration.
type Report struct {
	RunID           string     `json:"runId" yaml:"run_id"`
	Engine          string     `json:"engine" yaml:"engine"`
	Profile         string     `json:"profile,omitempty" yaml:"profile,omitempty"`
	Techniques      []string   `json:"techniques" yaml:"techniques"`
	ComplexityScore int        `json:"complexityScore" yaml:"complexity_score"`
	Seed            int64      `json:"seed" yaml:"seed"`
	SeedGenerated   bool       `json:"seedGenerated,omitempty" yaml:"seed_generated,omitempty"`
	Files           []FileStat `json:"files" yaml:"files"`
	InputSize       int        `json:"inputSize" yaml:"input_size"`
	OutputSize      int        `json:"outputSize" yaml:"output_size"`
	SizeRatio       float64    `json:"sizeRatio,omitempty" yaml:"size_ratio,omitempty"`
	Entropy         float64    `json:"entropy,omitempty" yaml:"entropy,omitempty"`
	DurationMS      int64      `json:"durationMs" yaml:"duration_ms"`
	Warnings        []string   `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// NewReport starts a report for a run using opts.
func NewReport(opts Options, seed int64, seedGenerated bool) *Report {
	engine := opts.Engine
	if engine == "" {
		engine = EngineESBuild
	}
	return &Report{
		RunID:         uuid.NewString(),
		Engine:        engine,
		Profile:       opts.Profile,
		Techniques:    Techniques(opts),
		Seed:          seed,
		SeedGenerated: seedGenerated,
	}
}

// AddFile records one module.
func (r *Report) AddFile(f FileStat) {
	r.Files = append(r.Files, f)
	r.InputSize += f.InputSize
	r.OutputSize += f.OutputSize
}

// Warn records a non-fatal problem.
func (r *Report) Warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Finish sorts files, fills totals and scores the run.
func (r *Report) Finish(took time.Duration) {
	sort.Slice(r.Files, func(i, j int) bool { return r.Files[i].Name < r.Files[j].Name })
	r.DurationMS = took.Milliseconds()
	if r.InputSize > 0 {
		r.SizeRatio = round2(float64(r.OutputSize) / float64(r.InputSize))
	}
	var weighted float64
	for _, f := range r.Files {
		weighted += f.Entropy * float64(f.OutputSize)
	}
	if r.OutputSize > 0 {
		r.Entropy = round2(weighted / float64(r.OutputSize))
	}
	r.ComplexityScore = r.computeComplexityScore()
}

// computeComplexityScore maps techniques and entropy to a 0-100 score.
func (r *Report) computeComplexityScore() int {
	score := 0
	for _, t := range r.Techniques {
		switch strings.ToLower(t) {
		case "minify":
			score += 15
		case "strenc":
			score += 25
		case "numenc":
			score += 10
		case "deadcode":
			score += 15
		case EngineExec:
			score += 60
		default:
			score += 5
		}
	}
	if r.Entropy > 4.5 {
		score += 5
	}
	if score > 100 {
		score = 100
	}
	return score
}

// ToJSON returns the report as indented JSON.
func (r *Report) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// ToYAML returns the report as YAML.
func (r *Report) ToYAML() ([]byte, error) {
	return yaml.Marshal(r)
}

// WriteFile writes the report to path; .yaml and .yml select YAML, anything
// else JSON.
func (r *Report) WriteFile(fs afero.Fs, path string) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = r.ToYAML()
	default:
		data, err = r.ToJSON()
	}
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating report dir: %w", err)
		}
	}
	if err := afero.WriteFile(fs, path, data, 0o644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	return nil
}

// Log writes a summary line plus one line per warning.
func (r *Report) Log(logger zerolog.Logger) {
	logger.Info().
		Str("run_id", r.RunID).
		Str("engine", r.Engine).
		Str("profile", r.Profile).
		Strs("techniques", r.Techniques).
		Int64("seed", r.Seed).
		Int("files", len(r.Files)).
		Int("input_size", r.InputSize).
		Int("output_size", r.OutputSize).
		Float64("ratio", r.SizeRatio).
		Float64("entropy", r.Entropy).
		Int("complexity", r.ComplexityScore).
		Int64("duration_ms", r.DurationMS).
		Msg("obfuscation report")
	for _, w := range r.Warnings {
		logger.Warn().Str("run_id", r.RunID).Msg(w)
	}
}
