package influx

import (
	"fmt"
	"strings"

	"github.com/pvemon/pvemon/pkg/monitor"
)

// measurement is the line-protocol measurement name for update records.
const measurement = "updates"

// BuildLines renders one line-protocol record per image per container, in
// report order. Containers with metadata only emit nothing.
func (w *Writer) BuildLines(report *monitor.Report) []string {
	var lines []string
	for _, container := range report.Containers {
		for _, img := range container.Images {
			result := container.Results[img]
			lines = append(lines, buildLine(container, img, result, w.now().UnixNano()))
		}
	}
	return lines
}

func buildLine(c monitor.ContainerReport, img string, r monitor.ImageUpdateResult, ts int64) string {
	var b strings.Builder
	b.WriteString(measurement)
	writeTag(&b, "container_id", c.ContainerID)
	writeTag(&b, "container_name", c.ContainerName)
	writeTag(&b, "instance_type", r.Type)
	writeTag(&b, "instance_name", img)
	writeTag(&b, "local_current_digest", r.LocalCurrentDigest)
	writeTag(&b, "local_current_version", r.LocalCurrentVersion)
	writeTag(&b, "remote_current_digest", r.RemoteCurrentDigest)
	writeTag(&b, "remote_current_version", r.RemoteCurrentVersion)
	writeTag(&b, "remote_latest_digest", r.RemoteLatestDigest)
	writeTag(&b, "remote_latest_version", r.RemoteLatestVersion)
	fmt.Fprintf(&b, " value=1 %d", ts)
	return b.String()
}

func writeTag(b *strings.Builder, key, value string) {
	b.WriteByte(',')
	b.WriteString(key)
	b.WriteByte('=')
	b.WriteString(EscapeTagValue(value))
}

// EscapeTagValue backslash-escapes the line-protocol tag separators (space,
// comma, equals) and substitutes "-" for an empty value.
func EscapeTagValue(value string) string {
	if value == "" {
		return "-"
	}
	value = strings.ReplaceAll(value, " ", `\ `)
	value = strings.ReplaceAll(value, ",", `\,`)
	value = strings.ReplaceAll(value, "=", `\=`)
	return value
}
