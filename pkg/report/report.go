// Package report renders analysis results for the command line.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/nzoschke/trackmeta/pkg/analysis"
	"github.com/nzoschke/trackmeta/pkg/catalog"
)

// Write renders results in format. table prints a detailed block per track
// and simple prints one summary row per track.
func Write(w io.Writer, format string, results []*analysis.Result) error {
	switch format {
	case "json":
		return writeJSON(w, results)
	case "yaml":
		return writeYAML(w, results)
	case "table":
		return writeDetail(w, results)
	case "simple":
		summaries := make([]analysis.Summary, len(results))
		for i, r := range results {
			summaries[i] = r.Summary()
		}
		return writeSummaryTable(w, summaries)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

// WriteSummaries renders short track summaries in format. table and simple
// both print a summary table.
func WriteSummaries(w io.Writer, format string, summaries []analysis.Summary) error {
	switch format {
	case "json":
		return writeJSON(w, summaries)
	case "yaml":
		return writeYAML(w, summaries)
	case "table", "simple":
		return writeSummaryTable(w, summaries)
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

// WriteTracks renders cataloged tracks. json and yaml include phrases; table
// and simple print a summary table.
func WriteTracks(w io.Writer, format string, tracks []catalog.Track) error {
	switch format {
	case "json":
		return writeJSON(w, tracks)
	case "yaml":
		return writeYAML(w, tracks)
	}
	summaries := make([]analysis.Summary, len(tracks))
	for i := range tracks {
		summaries[i] = tracks[i].Summary()
	}
	return WriteSummaries(w, format, summaries)
}

// SidecarPath returns the JSON file written next to an audio file.
func SidecarPath(audioPath string) string {
	return strings.TrimSuffix(audioPath, filepath.Ext(audioPath)) + ".json"
}

// WriteSidecar writes r as indented JSON next to audioPath and returns the
// sidecar path.
func WriteSidecar(audioPath string, r *analysis.Result) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal JSON: %w", err)
	}
	path := SidecarPath(audioPath)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write JSON: %w", err)
	}
	return path, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

func writeSummaryTable(w io.Writer, summaries []analysis.Summary) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TITLE\tBPM\tKEY\tCAMELOT\tDURATION")
	for _, s := range summaries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", s.Title, formatBPM(s.BPM), s.Key, s.Camelot, Clock(s.Duration))
	}
	return tw.Flush()
}

func writeDetail(w io.Writer, results []*analysis.Result) error {
	caser := cases.Title(language.English)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	for i, r := range results {
		if i > 0 {
			fmt.Fprintln(tw)
		}
		fmt.Fprintf(tw, "Title:\t%s\n", r.Title)
		fmt.Fprintf(tw, "Duration:\t%s\n", Clock(r.Duration))
		fmt.Fprintf(tw, "Tempo:\t%s BPM (confidence %.2f)\n", formatBPM(r.Tempo.BPM), r.Tempo.Confidence)
		fmt.Fprintf(tw, "Key:\t%s (%s, confidence %.2f)\n", r.Key, r.Key.Camelot, r.Key.Confidence)
		fmt.Fprintf(tw, "Energy peaks:\t%d\n", len(r.Peaks))

		timeline := r.Phrases.Timeline()
		if len(timeline) == 0 {
			fmt.Fprintf(tw, "Phrases:\tnone\n")
		}
		for j, li := range timeline {
			label := ""
			if j == 0 {
				label = "Phrases:"
			}
			fmt.Fprintf(tw, "%s\t%-6s %s - %s\n", label, caser.String(string(li.Label)), Clock(li.Start), Clock(li.End))
		}

		if len(r.Beats) > 0 {
			fmt.Fprintf(tw, "Beats:\t%d\n", len(r.Beats))
		}
		for _, warning := range r.Warnings {
			fmt.Fprintf(tw, "Warning:\t%s\n", warning)
		}
	}
	return tw.Flush()
}

// Clock formats seconds as m:ss.
func Clock(seconds float64) string {
	if seconds < 0 || math.IsNaN(seconds) {
		seconds = 0
	}
	total := int(math.Round(seconds))
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}

func formatBPM(bpm float64) string {
	if bpm <= 0 {
		return "-"
	}
	return fmt.Sprintf("%.0f", bpm)
}
