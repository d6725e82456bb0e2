package output

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/vietanhduong/procmem/pkg/sampler"
)

const maxLineSize = 64 * 1024 * 1024

// JSONWriter writes one JSON object per sample, one per line.
type JSONWriter struct {
	enc *json.Encoder
}

func NewJSONWriter(w io.Writer) *JSONWriter {
	return &JSONWriter{enc: json.NewEncoder(w)}
}

func (j *JSONWriter) WriteSample(s *sampler.Sample) error {
	if err := j.enc.Encode(s); err != nil {
		return fmt.Errorf("encode sample: %w", err)
	}
	return nil
}

// ReadSamples parses the output of JSONWriter. Blank lines are skipped.
func ReadSamples(r io.Reader) ([]sampler.Sample, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var samples []sampler.Sample
	var lineno int
	for scanner.Scan() {
		lineno++
		line := scanner.Bytes()
		if strings.TrimSpace(string(line)) == "" {
			continue
		}
		var s sampler.Sample
		if err := json.Unmarshal(line, &s); err != nil {
			return nil, fmt.Errorf("line %d: decode sample: %w", lineno, err)
		}
		samples = append(samples, s)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read samples: %w", err)
	}
	return samples, nil
}
