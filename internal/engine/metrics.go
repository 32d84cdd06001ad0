package engine

import (
	"math"
	"strings"

	"github.com/rs/zerolog"
)

// Metrics holds objective measures on obfuscated output.
type Metrics struct {
	SizeBytes        int     `json:"sizeBytes" yaml:"size_bytes"`
	UniqueSymbols    int     `json:"uniqueSymbols" yaml:"unique_symbols"`
	Entropy          float64 `json:"entropy" yaml:"entropy"`        // bits per symbol
	AlnumRatio       float64 `json:"alnumRatio" yaml:"alnum_ratio"` // 0-1
	CompressionRatio float64 `json:"sizeRatio,omitempty" yaml:"size_ratio,omitempty"`
	LineCount        int     `json:"lineCount" yaml:"line_count"`
	InputSizeBytes   int     `json:"inputSizeBytes,omitempty" yaml:"input_size_bytes,omitempty"`
}

// ComputeMetrics computes metrics on js.
func ComputeMetrics(js string) Metrics {
	m := Metrics{SizeBytes: len(js)}
	if m.SizeBytes == 0 {
		return m
	}
	freq := make(map[rune]int)
	alnum := 0
	total := 0
	for _, r := range js {
		total++
		freq[r]++
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			alnum++
		}
	}
	m.UniqueSymbols = len(freq)
	m.AlnumRatio = float64(alnum) / float64(total)
	m.LineCount = strings.Count(js, "\n") + 1
	n := float64(total)
	for _, c := range freq {
		p := float64(c) / n
		m.Entropy -= p * math.Log2(p)
	}
	return m
}

// ComputeMetricsWithInput also records the output/input size ratio.
func ComputeMetricsWithInput(js string, inputSize int) Metrics {
	m := ComputeMetrics(js)
	m.InputSizeBytes = inputSize
	if inputSize > 0 {
		m.CompressionRatio = float64(m.SizeBytes) / float64(inputSize)
	}
	return m
}

// LogMetrics writes m as a single structured debug line.
func LogMetrics(logger zerolog.Logger, name string, m Metrics) {
	logger.Debug().
		Str("file", name).
		Int("size", m.SizeBytes).
		Int("unique", m.UniqueSymbols).
		Float64("entropy", round2(m.Entropy)).
		Float64("alnum_ratio", round2(m.AlnumRatio)).
		Float64("ratio", round2(m.CompressionRatio)).
		Int("lines", m.LineCount).
		Msg("metrics")
}

func round2(f float64) float64 { return math.Round(f*100) / 100 }
