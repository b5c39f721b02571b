package formatter

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/juju/errors"
	"gopkg.in/yaml.v3"

	"github.com/younsl/cinder-volume/internal/models"
)

// Report formats
const (
	FormatJSON  = "json"
	FormatYAML  = "yaml"
	FormatTable = "table"
)

// Failure is the report emitted when a run fails
type Failure struct {
	Failed bool   `json:"failed" yaml:"failed"`
	Msg    string `json:"msg" yaml:"msg"`
}

// Run describes when a reconciliation ran, for the table format
type Run struct {
	StartTime time.Time
	Duration  time.Duration
}

// ValidFormat reports whether format is a supported report format
func ValidFormat(format string) bool {
	switch format {
	case FormatJSON, FormatYAML, FormatTable:
		return true
	}
	return false
}

// PrintResult writes the result report in the requested format
func PrintResult(w io.Writer, format string, result models.Result, run Run) error {
	switch format {
	case FormatYAML:
		return errors.Trace(yaml.NewEncoder(w).Encode(result))
	case FormatTable:
		return printResultTable(w, result, run)
	default:
		return errors.Trace(json.NewEncoder(w).Encode(result))
	}
}

// PrintFailure writes a failure report carrying err's message
func PrintFailure(w io.Writer, format string, err error) error {
	failure := Failure{Failed: true, Msg: err.Error()}
	switch format {
	case FormatYAML:
		return errors.Trace(yaml.NewEncoder(w).Encode(failure))
	case FormatTable:
		_, werr := fmt.Fprintf(w, "FAILED: %s\n", failure.Msg)
		return errors.Trace(werr)
	default:
		return errors.Trace(json.NewEncoder(w).Encode(failure))
	}
}

func printResultTable(w io.Writer, result models.Result, run Run) error {
	// kubectl style tabwriter
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)

	fmt.Fprintln(tw, "CHANGED\tVOLUME ID\tRESULT")

	volumeID := result.VolumeID
	if volumeID == "" {
		volumeID = "N/A"
	}
	fmt.Fprintf(tw, "%t\t%s\t%s\n", result.Changed, volumeID, result.Result)

	if len(result.Deleted) > 0 {
		fmt.Fprintf(tw, "Deleted:\t%s\t\n", strings.Join(result.Deleted, ", "))
	}
	if err := tw.Flush(); err != nil {
		return errors.Trace(err)
	}

	if !run.StartTime.IsZero() {
		printTimestamp(w, run.StartTime, run.Duration)
	}
	return nil
}
