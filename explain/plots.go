package explain

import (
	"bytes"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"
	"gonum.org/v1/plot/vg/vgimg"

	"github.com/YuminosukeSato/intelliml/pkg/log"
)

// Plot names.
const (
	PlotBar     = "bar"
	PlotSummary = "summary"
)

const maxPlotFeatures = 20

// attachPlots renders the bar and summary charts. A rendering failure is
// logged and leaves Plots without that chart.
func (e *Explainer) attachPlots(exp *Explanation, names []string) {
	if !e.plots || len(exp.Values) == 0 {
		return
	}
	exp.Plots = make(map[string][]byte, 2)
	for name, render := range map[string]func(*Explanation, []string) (*plot.Plot, error){
		PlotBar:     barPlot,
		PlotSummary: summaryPlot,
	} {
		p, err := render(exp, names)
		if err == nil {
			var png []byte
			png, err = encodePNG(p)
			if err == nil {
				exp.Plots[name] = png
				continue
			}
		}
		e.logger.Warn("plot rendering failed", "plot", name, log.ErrAttr(err))
	}
}

// shown returns the plotted attributions, least important first so the most
// important feature is drawn at the top.
func shown(exp *Explanation) []FeatureAttribution {
	top := exp.Importance[:min(len(exp.Importance), maxPlotFeatures)]
	out := make([]FeatureAttribution, len(top))
	for i, a := range top {
		out[len(top)-1-i] = a
	}
	return out
}

func barPlot(exp *Explanation, _ []string) (*plot.Plot, error) {
	attrs := shown(exp)
	vals := make(plotter.Values, len(attrs))
	labels := make([]string, len(attrs))
	for i, a := range attrs {
		vals[i] = a.Importance
		labels[i] = a.Feature
	}
	p := plot.New()
	p.Title.Text = "Mean |SHAP value|"
	bars, err := plotter.NewBarChart(vals, vg.Points(12))
	if err != nil {
		return nil, err
	}
	bars.Horizontal = true
	p.Add(bars)
	p.NominalY(labels...)
	return p, nil
}

// summaryPlot scatters every sample's attribution, one row per feature.
func summaryPlot(exp *Explanation, names []string) (*plot.Plot, error) {
	attrs := shown(exp)
	index := make(map[string]int, len(names))
	for j, n := range names {
		index[n] = j
	}
	var pts plotter.XYs
	labels := make([]string, len(attrs))
	for row, a := range attrs {
		labels[row] = a.Feature
		j := index[a.Feature]
		for i, v := range exp.Values {
			// spread points vertically so dense rows stay readable
			jitter := (float64(i%7) - 3) * 0.04
			pts = append(pts, plotter.XY{X: v[j], Y: float64(row) + jitter})
		}
	}
	p := plot.New()
	p.Title.Text = "SHAP values"
	p.X.Label.Text = "attribution"
	s, err := plotter.NewScatter(pts)
	if err != nil {
		return nil, err
	}
	s.GlyphStyle.Radius = vg.Points(1.5)
	p.Add(s, plotter.NewGrid())
	p.NominalY(labels...)
	return p, nil
}

func encodePNG(p *plot.Plot) ([]byte, error) {
	c := vgimg.New(6*vg.Inch, 4*vg.Inch)
	p.Draw(draw.New(c))
	var buf bytes.Buffer
	if _, err := (vgimg.PngCanvas{Canvas: c}).WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
