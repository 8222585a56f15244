package questions

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

const maxDelimiterSampleRecords = 20

// ParseCSV reads question,answer[,focus_area[,reference]] rows. It returns
// the usable rows and the number of blank or incomplete ones it skipped.
func ParseCSV(data []byte) ([]Input, int, error) {
	data = bytes.TrimPrefix(data, utf8BOM)

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = detectDelimiter(data)
	reader.FieldsPerRecord = -1

	var inputs []Input
	skipped := 0
	checkedHeader := false

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, skipped, err
		}
		if isEmptyRecord(record) {
			skipped++
			continue
		}
		if !checkedHeader {
			checkedHeader = true
			if isHeaderRecord(record) {
				continue
			}
		}
		if len(record) < 2 {
			skipped++
			continue
		}
		in := Input{
			Question: strings.TrimSpace(record[0]),
			Answer:   strings.TrimSpace(record[1]),
		}
		if in.Question == "" || in.Answer == "" {
			skipped++
			continue
		}
		if len(record) > 2 {
			in.FocusArea = strings.TrimSpace(record[2])
		}
		if len(record) > 3 {
			in.Reference = strings.TrimSpace(record[3])
		}
		inputs = append(inputs, in)
	}

	return inputs, skipped, nil
}

func detectDelimiter(data []byte) rune {
	candidates := []rune{',', '\t', ';'}
	best := candidates[0]
	bestScore := -1

	for _, delimiter := range candidates {
		score, err := scoreDelimiter(data, delimiter)
		if err != nil {
			continue
		}
		if score > bestScore {
			bestScore = score
			best = delimiter
		}
	}
	if bestScore <= 0 {
		return ','
	}
	return best
}

// scoreDelimiter counts how many sampled records share the most common
// field count (two fields or more) when split on delimiter.
func scoreDelimiter(data []byte, delimiter rune) (int, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1

	widths := make(map[int]int)
	for seen := 0; seen < maxDelimiterSampleRecords; {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, err
		}
		if isEmptyRecord(record) {
			continue
		}
		seen++
		if len(record) >= 2 {
			widths[len(record)]++
		}
	}

	best := 0
	for _, n := range widths {
		best = max(best, n)
	}
	return best, nil
}

func isEmptyRecord(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}

func isHeaderRecord(record []string) bool {
	if len(record) < 2 {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(record[0]), "question") &&
		strings.EqualFold(strings.TrimSpace(record[1]), "answer")
}

// ExportCSV writes a UTF-8 BOM, a header and one CRLF row per question.
func ExportCSV(qs []Question) ([]byte, error) {
	var buf bytes.Buffer
	buf.Write(utf8BOM)

	writer := csv.NewWriter(&buf)
	writer.UseCRLF = true

	if err := writer.Write([]string{"question", "answer", "focus_area", "reference"}); err != nil {
		return nil, err
	}
	for _, q := range qs {
		ref := ""
		if q.Reference != nil {
			ref = *q.Reference
		}
		if err := writer.Write([]string{q.Question, q.Answer, q.FocusArea, ref}); err != nil {
			return nil, err
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func ExportFilename(now time.Time) string {
	return fmt.Sprintf("questions-%s.csv", now.Format("20060102"))
}
