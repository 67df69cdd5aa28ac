package annotation

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// FormatLine renders one YOLO label line: "class cx cy w h".
// Floats are written verbatim with the shortest round-tripping representation.
func FormatLine(a Annotation) string {
	v := a.BBox.Values()
	return fmt.Sprintf("%d %s %s %s %s", a.Class,
		formatFloat(v[0]), formatFloat(v[1]), formatFloat(v[2]), formatFloat(v[3]))
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// ParseLine parses a single YOLO label line.
func ParseLine(line string) (Annotation, error) {
	fields := strings.Fields(line)
	if len(fields) != 5 {
		return Annotation{}, fmt.Errorf("label line: expected 5 fields, got %d", len(fields))
	}
	class, err := strconv.Atoi(fields[0])
	if err != nil {
		return Annotation{}, fmt.Errorf("label line: class: %w", err)
	}
	var v [4]float64
	for i := range v {
		v[i], err = strconv.ParseFloat(fields[i+1], 64)
		if err != nil {
			return Annotation{}, fmt.Errorf("label line: field %d: %w", i+1, err)
		}
	}
	return Annotation{Class: class, BBox: BBox{CX: v[0], CY: v[1], W: v[2], H: v[3]}}, nil
}

// WriteLabels writes one line per annotation.
func WriteLabels(w io.Writer, anns []Annotation) error {
	bw := bufio.NewWriter(w)
	for _, a := range anns {
		if _, err := bw.WriteString(FormatLine(a) + "\n"); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ReadLabels parses a label file. Blank lines are skipped; the first
// malformed line aborts with its line number.
func ReadLabels(r io.Reader) ([]Annotation, error) {
	var anns []Annotation
	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		a, err := ParseLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		anns = append(anns, a)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return anns, nil
}
