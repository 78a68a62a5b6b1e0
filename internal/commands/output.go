package commands

import (
	"fmt"
	"io"
	"sync"
	"text/tabwriter"

	"github.com/colonyops/dbpool/internal/core/styles"
	"github.com/colonyops/dbpool/internal/dispatch"
	"github.com/colonyops/dbpool/pkg/iojson"
)

const (
	formatText = "text"
	formatJSON = "json"
)

func validFormat(format string) error {
	switch format {
	case formatText, formatJSON:
		return nil
	default:
		return fmt.Errorf("unknown format %q (want text or json)", format)
	}
}

// QueryResult is the JSON shape of a query.
type QueryResult struct {
	Statement string   `json:"statement"`
	Count     int      `json:"count"`
	Rows      []string `json:"rows"`
}

func writeRows(w io.Writer, format string, res QueryResult) error {
	if format == formatJSON {
		return iojson.WriteWith(w, w, res)
	}

	if _, err := fmt.Fprintln(w, styles.Header.Render(fmt.Sprintf("Amount of rows = %d", res.Count))); err != nil {
		return err
	}
	for _, row := range res.Rows {
		if _, err := fmt.Fprintln(w, row); err != nil {
			return err
		}
	}
	return nil
}

// BatchResult is the JSON shape of an asynchronous submission run.
type BatchResult struct {
	Submitted int                    `json:"submitted"`
	Executed  int64                  `json:"executed"`
	Failed    int64                  `json:"failed"`
	Workers   []dispatch.WorkerStats `json:"workers"`
	Failures  []FailureRecord        `json:"failures,omitempty"`
}

// FailureRecord is one failed asynchronous statement.
type FailureRecord struct {
	Worker    int    `json:"worker"`
	Statement string `json:"statement"`
	Error     string `json:"error"`
}

func newBatchResult(submitted int, stats []dispatch.WorkerStats, failures []FailureRecord) BatchResult {
	res := BatchResult{Submitted: submitted, Workers: stats, Failures: failures}
	for _, s := range stats {
		res.Executed += s.Executed
	}
	res.Failed = int64(len(failures))
	return res
}

func writeBatch(w io.Writer, format string, res BatchResult) error {
	if format == formatJSON {
		return iojson.WriteWith(w, w, res)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, styles.Dim.Render("WORKER")+"\t"+styles.Dim.Render("CYCLES")+"\t"+styles.Dim.Render("EXECUTED")+"\t"+styles.Dim.Render("FAILED"))
	for _, s := range res.Workers {
		_, _ = fmt.Fprintf(tw, "%d\t%d\t%d\t%d\n", s.ID, s.Cycles, s.Executed, s.Failed)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, f := range res.Failures {
		_, _ = fmt.Fprintf(w, "%s worker %d: %s: %s\n", styles.Fail.Render("failed"), f.Worker, f.Statement, f.Error)
	}

	summary := fmt.Sprintf("%d submitted, %d executed, %d failed", res.Submitted, res.Executed, res.Failed)
	_, err := fmt.Fprintln(w, styles.Status(res.Failed == 0, summary))
	return err
}

// failureCollector records asynchronous failures reported by workers.
type failureCollector struct {
	mu       sync.Mutex
	failures []FailureRecord
}

func (fc *failureCollector) handle(f dispatch.Failure) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	fc.failures = append(fc.failures, FailureRecord{
		Worker:    f.WorkerID,
		Statement: f.Statement,
		Error:     f.Err.Error(),
	})
}

func (fc *failureCollector) list() []FailureRecord {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return append([]FailureRecord(nil), fc.failures...)
}
