// Package report renders the optimizer's per-epoch error as a PNG chart.
package report

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/trackfit/autobone/internal/autobone"
	"github.com/trackfit/autobone/internal/worker"
)

// ErrNoEpochs is returned by Render before any epoch was observed.
var ErrNoEpochs = errors.New("no epochs to plot")

// Chart collects epoch errors during PROCESS and writes one PNG per run.
// Each recording gets its own line; a new line starts whenever the epoch
// counter goes backwards.
type Chart struct {
	worker.NopListener

	dir    string
	logger *slog.Logger
	now    func() time.Time

	mu     sync.Mutex
	series []plotter.XYs
	last   int
	files  []string
}

func NewChart(dir string, logger *slog.Logger) *Chart {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chart{dir: dir, logger: logger, now: time.Now, last: -1}
}

func (c *Chart) OnProcessStatus(s worker.ProcessStatus) {
	if s.Type != worker.ProcessProcess {
		return
	}
	switch {
	case !s.Completed && s.Current < 0:
		c.reset()
	case s.Completed && s.Success:
		path := filepath.Join(c.dir, fmt.Sprintf("autobone_epochs_%s.png", c.now().Format("20060102_150405")))
		if err := c.Render(path); err != nil {
			c.logger.Warn("Failed to write epoch chart", "path", path, "error", err)
			return
		}
		c.logger.Info("Epoch chart written", "path", path)
	}
}

func (c *Chart) OnEpoch(e autobone.Epoch) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.series) == 0 || e.Epoch <= c.last {
		c.series = append(c.series, plotter.XYs{})
	}
	i := len(c.series) - 1
	c.series[i] = append(c.series[i], plotter.XY{X: float64(e.Epoch), Y: e.Error})
	c.last = e.Epoch
}

func (c *Chart) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.series = nil
	c.last = -1
}

// Files lists the charts written so far.
func (c *Chart) Files() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.files...)
}

// Render writes the collected series to path.
func (c *Chart) Render(path string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.series) == 0 {
		return ErrNoEpochs
	}

	p := plot.New()
	p.Title.Text = "AutoBone epoch error"
	p.X.Label.Text = "Epoch"
	p.Y.Label.Text = "Average error"

	for i, pts := range c.series {
		line, err := plotter.NewLine(pts)
		if err != nil {
			return err
		}
		line.Color = plotutil.Color(i)
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("recording %d", i+1), line)
	}
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	if err := p.Save(10*vg.Inch, 5*vg.Inch, path); err != nil {
		return fmt.Errorf("save chart: %w", err)
	}
	c.files = append(c.files, path)
	return nil
}
