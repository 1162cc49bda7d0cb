package store

import (
	"errors"
	"strconv"
	"strings"
)

// Embeddings are stored as JSON float arrays in a TEXT column so the rows
// stay readable with plain sqlite tooling.

// encodeVector renders a vector as a compact JSON array.
func encodeVector(vec []float32) string {
	if len(vec) == 0 {
		return ""
	}
	var b strings.Builder
	b.Grow(len(vec) * 10)
	b.WriteByte('[')
	for i, f := range vec {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(f), 'g', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

// parseVector parses a JSON array of floats into []float32 without going
// through encoding/json; retrieval decodes up to a hundred vectors per
// message.
func parseVector(data string) ([]float32, error) {
	i := 0
	for i < len(data) && isSpace(data[i]) {
		i++
	}
	if i == len(data) {
		return nil, nil
	}
	if data[i] != '[' {
		return nil, errors.New("expected '[' at start of vector")
	}
	i++

	out := make([]float32, 0, 64)
	for i < len(data) {
		for i < len(data) && isSpace(data[i]) {
			i++
		}
		if i == len(data) {
			break
		}
		if data[i] == ']' {
			return out, nil
		}

		start := i
		for i < len(data) && data[i] != ',' && data[i] != ']' && !isSpace(data[i]) {
			i++
		}
		if i > start {
			f, err := strconv.ParseFloat(data[start:i], 32)
			if err != nil {
				return nil, err
			}
			out = append(out, float32(f))
		}

		for i < len(data) && isSpace(data[i]) {
			i++
		}
		if i < len(data) && data[i] == ',' {
			i++
		} else if i < len(data) && data[i] == ']' {
			return out, nil
		}
	}
	return out, nil
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
