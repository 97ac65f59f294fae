package render

import (
	"fmt"
	"math"
	"strings"

	"github.com/automixer/automix-go/internal/planner"
)

// buildFallbackGraph is the simplified rescue path used when the main
// graph fails: equal per-track segments, plain crossfades, delay, sum,
// limiter. It avoids tempo changes, per-style effects, and per-band
// processing so it succeeds on anything the decoder accepts.
func buildFallbackGraph(inputs []Input, plan *planner.Plan, req *planner.Request, targetDuration float64) string {
	g := &graphBuilder{}
	n := len(inputs)

	fade := meanFade(plan)
	if fade <= 0 {
		fade = 4
	}
	perSegment := (targetDuration + float64(n-1)*fade) / float64(n)

	delayed := make([]string, n)
	for i := range inputs {
		fadeIn := math.Min(fade, perSegment/2)
		filters := []string{
			"aresample=44100",
			"aformat=sample_fmts=fltp:channel_layouts=stereo",
			fmt.Sprintf("atrim=start=0:end=%s", sec(perSegment)),
			"asetpts=PTS-STARTPTS",
		}
		if i > 0 {
			filters = append(filters, fmt.Sprintf("afade=t=in:st=0:d=%s", sec(fadeIn)))
		}
		if i < n-1 {
			filters = append(filters, fmt.Sprintf("afade=t=out:st=%s:d=%s",
				sec(perSegment-fade), sec(fade)))
		}
		cur := g.chain(fmt.Sprintf("%d:a", i), filters...)

		ms := int(float64(i) * (perSegment - fade) * 1000)
		if ms < 0 {
			ms = 0
		}
		delayed[i] = g.chain(cur, fmt.Sprintf("adelay=%d|%d", ms, ms))
	}

	mixed := g.label()
	g.raw(fmt.Sprintf("[%s]amix=inputs=%d:normalize=0[%s]",
		strings.Join(delayed, "]["), n, mixed))

	out := g.chain(mixed, finalProcessing(req)...)
	g.statements[len(g.statements)-1] = strings.Replace(
		g.statements[len(g.statements)-1], "["+out+"]", "[out]", 1)
	return g.String()
}
