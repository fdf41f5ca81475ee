// Package export writes engine results for people and downstream tools:
// CSV and JSON for machines, a bordered table for terminals.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/Danselem/dara-opsc/internal/footprint"
	"github.com/Danselem/dara-opsc/internal/passes"
)

// Format selects an output encoding.
type Format string

const (
	FormatTable Format = "table"
	FormatCSV   Format = "csv"
	FormatJSON  Format = "json"
)

// ParseFormat validates a user-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatTable, FormatCSV, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("unknown output format %q (want table, csv or json)", s)
	}
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7B2CBF")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("60")).Padding(0, 1)
	borderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("60"))
)

// WritePasses writes pass records in the given format.
func WritePasses(w io.Writer, recs []passes.Record, format Format) error {
	switch format {
	case FormatCSV:
		return writePassCSV(w, recs)
	case FormatJSON:
		return writeJSON(w, recs)
	default:
		_, err := fmt.Fprintln(w, passTable(recs))
		return err
	}
}

// WriteFootprint writes a footprint record in the given format. CSV is not
// meaningful for a single nested record and falls back to JSON.
func WriteFootprint(w io.Writer, m *footprint.Metrics, format Format) error {
	if format == FormatTable {
		_, err := fmt.Fprintln(w, footprintTable(m))
		return err
	}
	return writeJSON(w, m)
}

func passRow(r passes.Record) []string {
	return []string{
		r.Timestamp,
		formatFloat(r.AzimuthDeg),
		formatFloat(r.ElevationDeg),
		formatFloat(r.DistanceKm),
		formatFloat(r.LatDeg),
		formatFloat(r.LonDeg),
	}
}

func writePassCSV(w io.Writer, recs []passes.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(passes.Columns); err != nil {
		return err
	}
	for _, r := range recs {
		if err := cw.Write(passRow(r)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func passTable(recs []passes.Record) string {
	rows := make([][]string, len(recs))
	for i, r := range recs {
		rows[i] = passRow(r)
	}

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers(passes.Columns...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case col == 2 && recs[row].ElevationDeg < 0:
				// Below the horizon.
				return dimStyle
			default:
				return cellStyle
			}
		}).
		String()
}

func footprintTable(m *footprint.Metrics) string {
	rows := [][]string{
		{"image", fmt.Sprintf("%d x %d px", m.ImageWidthPx, m.ImageHeightPx)},
		{"mid time", m.MidDatetime},
		{"mid subpoint", fmt.Sprintf("%.4f, %.4f @ %.3f km", m.MidSubpoint.LatDeg, m.MidSubpoint.LonDeg, m.MidSubpoint.AltKm)},
		{"first subpoint", fmt.Sprintf("%.4f, %.4f", m.FirstSubpoint.LatDeg, m.FirstSubpoint.LonDeg)},
		{"last subpoint", fmt.Sprintf("%.4f, %.4f", m.LastSubpoint.LatDeg, m.LastSubpoint.LonDeg)},
		{"along-track length", fmt.Sprintf("%.3f km", m.AlongTrackLengthKm)},
		{"along-track pixel", fmt.Sprintf("%.3f m", m.AlongTrackPixelSizeM)},
	}
	across := [][]string{
		{"across-track swath", "-"},
		{"across-track pixel", "-"},
		{"ground area", "-"},
		{"pixel area", "-"},
		{"field of view", "-"},
	}
	if a := m.AcrossTrack; a != nil {
		across[0][1] = fmt.Sprintf("%.3f km", a.SwathKm)
		across[1][1] = fmt.Sprintf("%.3f m", a.PixelSizeM)
		across[2][1] = fmt.Sprintf("%.3f km²", a.GroundAreaKm2)
		across[3][1] = fmt.Sprintf("%.6f km²", a.PixelAreaKm2)
		across[4][1] = fmt.Sprintf("%.3f°", a.FOVDeg)
	}
	rows = append(rows, across...)
	rows = append(rows, []string{"sun elevation", fmt.Sprintf("%.2f°", m.MidSunElevationDeg)})

	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		Headers("metric", "value").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case rows[row][1] == "-":
				return dimStyle
			default:
				return cellStyle
			}
		}).
		String()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
