package render

import (
	"fmt"
	"math"
	"strings"

	"github.com/automixer/automix-go/internal/planner"
)

// graphBuilder accumulates filter_complex statements and hands out
// unique pad labels.
type graphBuilder struct {
	statements []string
	labelSeq   int
}

func (g *graphBuilder) label() string {
	g.labelSeq++
	return fmt.Sprintf("n%d", g.labelSeq)
}

// chain joins linear filters into one statement from in to a new pad.
func (g *graphBuilder) chain(in string, filters ...string) string {
	out := g.label()
	g.statements = append(g.statements,
		fmt.Sprintf("[%s]%s[%s]", in, strings.Join(filters, ","), out))
	return out
}

func (g *graphBuilder) raw(stmt string) {
	g.statements = append(g.statements, stmt)
}

func (g *graphBuilder) String() string {
	return strings.Join(g.statements, ";")
}

func sec(v float64) string   { return fmt.Sprintf("%.3f", v) }
func ratio(v float64) string { return fmt.Sprintf("%.4f", v) }

// buildTrackChain composes the per-track filter sequence. The order of
// effects is contractual; each stage only appears when its inputs call
// for it.
func buildTrackChain(g *graphBuilder, inputIdx int, pb playback, style planner.TransitionStyle, req *planner.Request) string {
	cur := g.chain(fmt.Sprintf("%d:a", inputIdx),
		"aresample=44100",
		"aformat=sample_fmts=fltp:channel_layouts=stereo",
		"loudnorm=I=-14:TP=-1:LRA=11")

	cur = applyTempo(g, cur, pb.TempoRatio, req.TempoRampSeconds)

	cur = g.chain(cur,
		fmt.Sprintf("atrim=start=%s:end=%s", sec(pb.StartOffset), sec(pb.TrimEnd)),
		"asetpts=PTS-STARTPTS")

	if req.EnableDynamicEQ {
		cur = g.chain(cur,
			"equalizer=f=500:t=q:w=1.5:g=-2",
			"equalizer=f=2500:t=q:w=1.5:g=-2")
	}

	if req.EnableMultibandCompression {
		cur = applyMultiband(g, cur)
	}

	if pb.FadeInDuration > 0 {
		cur = g.chain(cur, fmt.Sprintf("afade=t=in:st=0:d=%s", sec(pb.FadeInDuration)))
	}

	if pb.FadeOutStart != nil && pb.FadeOutDuration > 0 {
		// Times below are relative to the trimmed segment.
		fos := *pb.FadeOutStart - pb.StartOffset
		dur := pb.FadeOutDuration

		if effects := transitionEffect(style, fos, dur); len(effects) > 0 {
			cur = g.chain(cur, effects...)
		}

		cur = g.chain(cur, fmt.Sprintf("afade=t=out:st=%s:d=%s", sec(fos), sec(dur)))

		if req.EnableSidechainDucking {
			cur = g.chain(cur, fmt.Sprintf(
				"volume='1-0.3*(t-%s)/%s':eval=frame:enable='between(t,%s,%s)'",
				sec(fos), sec(dur), sec(fos), sec(fos+dur)))
		}

		if req.EnableFilterSweep {
			cur = g.chain(cur, stagedSweep(20, 2020, fos, max(dur, 0.5), 4)...)
		}
	}

	return cur
}

// applyTempo emits either a plain atempo or, when a ramp is requested
// and the ratio is meaningfully far from unity, a staged ramp: the head
// of the track is split into four windows with stepped tempo factors
// and concatenated with the remainder at full ratio.
func applyTempo(g *graphBuilder, in string, r, rampSeconds float64) string {
	if r == 1 {
		return in
	}
	if rampSeconds <= 0 || math.Abs(r-1) <= 0.01 {
		return g.chain(in, "atempo="+ratio(r))
	}

	const steps = 4
	window := rampSeconds / steps
	split := g.label()
	pads := make([]string, steps+1)
	for i := range pads {
		pads[i] = fmt.Sprintf("%s_%d", split, i)
	}
	g.raw(fmt.Sprintf("[%s]asplit=%d[%s]", in, steps+1, strings.Join(pads, "][")))

	parts := make([]string, steps+1)
	for k := 0; k < steps; k++ {
		stepRatio := 1 + (r-1)*(float64(k)+0.5)/steps
		parts[k] = g.chain(pads[k],
			fmt.Sprintf("atrim=start=%s:end=%s", sec(float64(k)*window), sec(float64(k+1)*window)),
			"asetpts=PTS-STARTPTS",
			"atempo="+ratio(stepRatio))
	}
	parts[steps] = g.chain(pads[steps],
		fmt.Sprintf("atrim=start=%s", sec(rampSeconds)),
		"asetpts=PTS-STARTPTS",
		"atempo="+ratio(r))

	out := g.label()
	g.raw(fmt.Sprintf("[%s]concat=n=%d:v=0:a=1[%s]",
		strings.Join(parts, "]["), steps+1, out))
	return out
}

// applyMultiband splits into three bands at 250 and 4000 Hz, compresses
// each, and sums them back without renormalizing.
func applyMultiband(g *graphBuilder, in string) string {
	split := g.label()
	low, mid, high := split+"_l", split+"_m", split+"_h"
	g.raw(fmt.Sprintf("[%s]asplit=3[%s][%s][%s]", in, low, mid, high))

	lb := g.chain(low, "lowpass=f=250",
		"acompressor=threshold=0.063:ratio=2:attack=20:release=100")
	mb := g.chain(mid, "highpass=f=250", "lowpass=f=4000",
		"acompressor=threshold=0.1:ratio=3:attack=20:release=100")
	hb := g.chain(high, "highpass=f=4000",
		"acompressor=threshold=0.125:ratio=4:attack=20:release=100")

	out := g.label()
	g.raw(fmt.Sprintf("[%s][%s][%s]amix=inputs=3:normalize=0[%s]", lb, mb, hb, out))
	return out
}

// transitionEffect returns the style's effect chain for the outgoing
// track, gated to the fade-out window where the effect supports it.
func transitionEffect(style planner.TransitionStyle, effectStart, duration float64) []string {
	gate := fmt.Sprintf(":enable='gte(t,%s)'", sec(effectStart))

	switch style {
	case planner.StyleFilterSweep:
		return stagedSweep(20, 20020, effectStart, duration, 4)
	case planner.StyleEchoReverb:
		return []string{"aecho=0.8:0.9:1000:0.3"}
	case planner.StyleBackspin:
		return []string{"areverse"}
	case planner.StyleTapeStop:
		return []string{"asetrate=22050", "aresample=44100"}
	case planner.StyleStutterEdit:
		return []string{"atempo=1.5", "atempo=0.66"}
	case planner.StyleThreeBandSwap:
		return []string{
			"equalizer=f=200:t=q:w=1:g=-10" + gate,
			"equalizer=f=2500:t=q:w=1:g=10" + gate,
			"equalizer=f=8000:t=q:w=1:g=-10" + gate,
		}
	case planner.StyleBassDrop:
		return []string{"lowpass=f=200" + gate}
	case planner.StyleSnareRoll:
		return []string{"highpass=f=2000" + gate}
	case planner.StyleNoiseRiser:
		return stagedSweep(500, 4500, effectStart, duration, 4)
	case planner.StyleVocalHandoff:
		return []string{"aecho=0.7:0.8:500:0.4"}
	case planner.StyleBassSwap:
		return []string{"highpass=f=200:poles=2" + gate}
	case planner.StyleReverbWash:
		return []string{"aecho=0.8:0.95:1000|1500:0.5|0.3"}
	case planner.StyleEchoOut:
		return []string{"aecho=0.8:0.85:750:0.5"}
	}
	return nil // smooth, drop, cut, energy: pure crossfade
}

// stagedSweep approximates a continuous frequency sweep with stepped
// high-pass stages, each active over its slice of the window.
func stagedSweep(fStart, fEnd, start, duration float64, steps int) []string {
	out := make([]string, 0, steps)
	for k := 0; k < steps; k++ {
		f := fStart + (fEnd-fStart)*float64(k)/float64(steps-1)
		t0 := start + duration*float64(k)/float64(steps)
		var gate string
		if k == steps-1 {
			gate = fmt.Sprintf(":enable='gte(t,%s)'", sec(t0))
		} else {
			t1 := start + duration*float64(k+1)/float64(steps)
			gate = fmt.Sprintf(":enable='between(t,%s,%s)'", sec(t0), sec(t1))
		}
		out = append(out, fmt.Sprintf("highpass=f=%.0f%s", f, gate))
	}
	return out
}

// buildFilterGraph assembles the whole filter_complex: per-track chains,
// delay alignment, the N-way sum, and final loudness processing.
func buildFilterGraph(inputs []Input, pbs []playback, plan *planner.Plan, req *planner.Request) string {
	g := &graphBuilder{}

	delayed := make([]string, len(inputs))
	for i := range inputs {
		style := planner.StyleSmooth
		if i < len(plan.Transitions) {
			style = plan.Transitions[i].Style
		}
		cur := buildTrackChain(g, i, pbs[i], style, req)

		ms := int(pbs[i].StartTime * 1000)
		delayed[i] = g.chain(cur, fmt.Sprintf("adelay=%d|%d", ms, ms))
	}

	mixed := g.label()
	g.raw(fmt.Sprintf("[%s]amix=inputs=%d:normalize=0[%s]",
		strings.Join(delayed, "]["), len(inputs), mixed))

	final := finalProcessing(req)
	out := g.chain(mixed, final...)
	g.statements[len(g.statements)-1] = strings.Replace(
		g.statements[len(g.statements)-1], "["+out+"]", "[out]", 1)
	return g.String()
}

// finalProcessing is the post-mix loudness stage: optional loudnorm per
// the requested mode, then a safety limiter.
func finalProcessing(req *planner.Request) []string {
	var filters []string
	switch req.LoudnessNormalization {
	case "peak":
		filters = append(filters, "loudnorm=TP=-1.5:I=-14:LRA=11")
	case "none":
	default: // ebu_r128
		target := -14.0
		if req.TargetLoudness != nil {
			target = *req.TargetLoudness
		}
		filters = append(filters, fmt.Sprintf("loudnorm=I=%.1f:TP=-1.5:LRA=11", target))
	}
	return append(filters, "alimiter=level_in=1:level_out=0.95")
}
