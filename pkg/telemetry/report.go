package telemetry

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

const (
	// ReportHeader is the first line of every rendered report.
	ReportHeader = "CreatedAt,Event,Data"

	// TimestampLayout renders capture times at second resolution.
	TimestampLayout = "2006-01-02 15:04:05"
)

// Render produces the flat report for records in the order given. An empty
// input yields only the header line.
func Render(records []Record) string {
	var sb strings.Builder
	sb.Grow(len(ReportHeader) + 1 + len(records)*48)
	sb.WriteString(ReportHeader)
	sb.WriteByte('\n')
	for _, record := range records {
		writeRow(&sb, record)
	}
	return sb.String()
}

// Encode streams the report for records to w.
func Encode(w io.Writer, records []Record) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(ReportHeader + "\n"); err != nil {
		return fmt.Errorf("write report header: %w", err)
	}
	var sb strings.Builder
	for i, record := range records {
		sb.Reset()
		writeRow(&sb, record)
		if _, err := bw.WriteString(sb.String()); err != nil {
			return fmt.Errorf("write report row %d: %w", i+1, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flush report: %w", err)
	}
	return nil
}

func writeRow(sb *strings.Builder, record Record) {
	sb.WriteString(record.timestamp.Format(TimestampLayout))
	sb.WriteByte(',')
	sb.WriteString(record.Category().String())
	sb.WriteByte(',')
	sb.WriteString(FormatPayload(record.payload))
	sb.WriteByte('\n')
}

// FormatPayload renders the Data column for a payload. Values never contain
// line terminators. Commas are not escaped.
func FormatPayload(payload Payload) string {
	switch p := payload.(type) {
	case Acceleration:
		return "x: " + formatFloat(p.X) + ", y: " + formatFloat(p.Y) + ", z: " + formatFloat(p.Z)
	case Point:
		return "(" + formatFloat(p.X) + ", " + formatFloat(p.Y) + ")"
	case nil:
		return ""
	default:
		panic(fmt.Sprintf("telemetry: unhandled payload type %T", payload))
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
