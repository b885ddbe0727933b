package report

import (
	"fmt"
	"io"
	"math/bits"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/colorfulnotion/opfind/kb"
)

func popcount(mask uint32) int {
	return bits.OnesCount32(mask)
}

// MaskHistogram counts facts by the number of fixed bits in their mask.
func MaskHistogram(facts []kb.Fact) [33]int {
	var h [33]int
	for _, f := range facts {
		h[popcount(f.Mask)]++
	}
	return h
}

// Chart renders the mask histogram as an HTML bar chart.
func Chart(w io.Writer, title string, facts []kb.Fact) error {
	h := MaskHistogram(facts)
	lo, hi := 0, 32
	for lo < 32 && h[lo] == 0 {
		lo++
	}
	for hi > lo && h[hi] == 0 {
		hi--
	}

	x := make([]string, 0, hi-lo+1)
	data := make([]opts.BarData, 0, hi-lo+1)
	for n := lo; n <= hi; n++ {
		x = append(x, strconv.Itoa(n))
		data = append(data, opts.BarData{Value: h[n]})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    title,
			Subtitle: fmt.Sprintf("%d facts by number of fixed mask bits", len(facts)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "fixed bits"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "facts"}),
	)
	bar.SetXAxis(x).AddSeries("facts", data)
	return bar.Render(w)
}
