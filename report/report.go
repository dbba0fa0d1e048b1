// Package report records per-frame diagnostics of a run and exports them as
// an XLSX workbook.
package report

import (
	"context"
	"fmt"
	"os"
	"time"

	boff "github.com/Andrej220/go-utils/backoff"
	lg "github.com/Andrej220/go-utils/zlog"
	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/azargarov/flaskanim/presenter"
	"github.com/azargarov/flaskanim/scheduler"
	"github.com/azargarov/flaskanim/workerpool"
)

const (
	timelineSheet = "Timeline"
	summarySheet  = "Summary"

	// DefaultLimit keeps about ten minutes of frames at 60 fps.
	DefaultLimit = 36000
)

// Sample is the state of one tick.
type Sample struct {
	Frame       uint32
	Millis      uint64
	Status      presenter.Status
	Yielded     bool
	Queued      uint32
	InFlight    uint32
	Outstanding int
}

// Summary describes the run as a whole.
type Summary struct {
	Title     string
	Width     int
	Height    int
	Policy    string
	Backend   string
	Workers   int
	MaxWindow uint32
	Elapsed   time.Duration
	Stats     scheduler.Stats
	Pool      workerpool.MetricsSnapshot
	Uploads   uint64
}

// Recorder collects samples from the frame loop. It is not safe for
// concurrent use.
type Recorder struct {
	RunID   uuid.UUID
	Started time.Time

	// Retry bounds WriteFile's attempts. Zero Initial and Max take the
	// workerpool defaults; Attempts <= 1 writes once.
	Retry workerpool.RetryPolicy

	limit     int
	samples   []Sample
	dropped   int
	writeFile func(name string, data []byte, perm os.FileMode) error
}

// NewRecorder keeps at most limit samples; later ones are counted and
// dropped. limit <= 0 means DefaultLimit.
func NewRecorder(runID uuid.UUID, limit int) *Recorder {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Recorder{
		RunID:     runID,
		Started:   time.Now(),
		limit:     limit,
		writeFile: os.WriteFile,
	}
}

func (r *Recorder) Record(s Sample) {
	if len(r.samples) >= r.limit {
		r.dropped++
		return
	}
	r.samples = append(r.samples, s)
}

func (r *Recorder) Samples() []Sample { return r.samples }
func (r *Recorder) Dropped() int      { return r.dropped }

// XLSX renders the workbook: a timeline of every sample and a summary sheet.
func (r *Recorder) XLSX(sum Summary) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	for _, sheet := range []string{timelineSheet, summarySheet} {
		if index, _ := f.GetSheetIndex(sheet); index == -1 {
			if _, err := f.NewSheet(sheet); err != nil {
				return nil, err
			}
		}
	}
	// drop the default sheet so the timeline opens first
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, err
	}
	activeIndex, _ := f.GetSheetIndex(timelineSheet)
	f.SetActiveSheet(activeIndex)

	headers := []string{"Frame", "Time (ms)", "Built", "Sync", "Lag", "Yielded", "Queued", "In flight", "Outstanding"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(timelineSheet, cell, h)
	}

	row := 2
	for _, s := range r.samples {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(timelineSheet, cell, v)
		}
		write(1, s.Frame)
		write(2, s.Millis)
		write(3, s.Status.Built)
		write(4, s.Status.String())
		write(5, s.Status.Lag)
		write(6, s.Yielded)
		write(7, s.Queued)
		write(8, s.InFlight)
		write(9, s.Outstanding)
		row++
	}
	_ = f.SetColWidth(timelineSheet, "A", "C", 12)
	_ = f.SetColWidth(timelineSheet, "D", "D", 14)
	_ = f.SetColWidth(timelineSheet, "E", "I", 10)

	st := sum.Stats
	pairs := []struct {
		key string
		val any
	}{
		{"Run ID", r.RunID.String()},
		{"Started", r.Started.UTC().Format(time.RFC3339)},
		{"Elapsed", sum.Elapsed.String()},
		{"Policy", sum.Policy},
		{"Backend", sum.Backend},
		{"Workers", sum.Workers},
		{"Max window", sum.MaxWindow},
		{"Samples", len(r.samples)},
		{"Samples dropped", r.dropped},
		{"Submitted", st.Submitted},
		{"Completed", st.Completed},
		{"Failed", st.Failed},
		{"Discarded", st.Discarded},
		{"Evicted", st.Evicted},
		{"Yielded", st.Yielded},
		{"Throttled", st.Throttled},
		{"Submit errors", st.SubmitErrors},
		{"Uploads", sum.Uploads},
		{"Title", sum.Title},
		{"Resolution", fmt.Sprintf("%dx%d", sum.Width, sum.Height)},
		{"Pool executed", sum.Pool.Executed},
		{"Pool failed", sum.Pool.Failed},
		{"Pool queued", sum.Pool.Queued},
	}
	for i, p := range pairs {
		k, _ := excelize.CoordinatesToCellName(1, i+1)
		v, _ := excelize.CoordinatesToCellName(2, i+1)
		_ = f.SetCellValue(summarySheet, k, p.key)
		_ = f.SetCellValue(summarySheet, v, p.val)
	}
	_ = f.SetColWidth(summarySheet, "A", "A", 18)
	_ = f.SetColWidth(summarySheet, "B", "B", 40)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteFile renders the workbook to path. A failed write is retried with
// jittered exponential backoff per r.Retry until ctx is done.
func (r *Recorder) WriteFile(ctx context.Context, path string, sum Summary) error {
	start := time.Now()
	data, err := r.XLSX(sum)
	if err != nil {
		return err
	}

	pol := r.Retry
	def := workerpool.GetDefaultRP()
	if pol.Initial <= 0 {
		pol.Initial = def.Initial
	}
	if pol.Max < pol.Initial {
		pol.Max = max(def.Max, pol.Initial)
	}

	logger := lg.FromContext(ctx)
	bo := boff.New(pol.Initial, pol.Max, time.Now().UnixNano())
	for attempt := 1; ; attempt++ {
		err = r.writeFile(path, data, 0o644)
		if err == nil {
			break
		}
		if attempt >= pol.Attempts {
			return fmt.Errorf("write report after %d attempt(s): %w", attempt, err)
		}

		delay := bo.Next()
		logger.Warn("report write failed; backing off",
			lg.Int("attempt", attempt),
			lg.String("sleep", delay.String()),
			lg.Any("error", err),
		)
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("write report: %w", ctx.Err())
		}
	}

	logger.Info("report written",
		lg.String("path", path),
		lg.Int("rows", len(r.samples)),
		lg.Any("elapsed_ms", time.Since(start).Milliseconds()),
	)
	return nil
}
