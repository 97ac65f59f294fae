package planner

// TransitionStyle identifies one of the closed set of transition
// treatments. Identifiers are stable across versions; new styles append.
type TransitionStyle string

const (
	StyleSmooth        TransitionStyle = "smooth"
	StyleDrop          TransitionStyle = "drop"
	StyleEnergy        TransitionStyle = "energy"
	StyleCut           TransitionStyle = "cut"
	StyleFilterSweep   TransitionStyle = "filter_sweep"
	StyleEchoReverb    TransitionStyle = "echo_reverb"
	StyleBackspin      TransitionStyle = "backspin"
	StyleTapeStop      TransitionStyle = "tape_stop"
	StyleStutterEdit   TransitionStyle = "stutter_edit"
	StyleThreeBandSwap TransitionStyle = "three_band_swap"
	StyleBassDrop      TransitionStyle = "bass_drop"
	StyleSnareRoll     TransitionStyle = "snare_roll"
	StyleNoiseRiser    TransitionStyle = "noise_riser"
	StyleVocalHandoff  TransitionStyle = "vocal_handoff"
	StyleBassSwap      TransitionStyle = "bass_swap"
	StyleReverbWash    TransitionStyle = "reverb_wash"
	StyleEchoOut       TransitionStyle = "echo_out"
)

// EnergyMode shapes the set's energy arc.
type EnergyMode string

const (
	EnergySteady EnergyMode = "steady"
	EnergyBuild  EnergyMode = "build"
	EnergyWave   EnergyMode = "wave"
)

// EventType nudges fade lengths toward the room.
type EventType string

const (
	EventWedding  EventType = "wedding"
	EventBirthday EventType = "birthday"
	EventSweet16  EventType = "sweet16"
	EventClub     EventType = "club"
	EventDefault  EventType = "default"
)

// FadeCurve names follow the transcoder's afade curve identifiers.
type FadeCurve string

const (
	CurveTri    FadeCurve = "tri"
	CurveExp    FadeCurve = "exp"
	CurveLog    FadeCurve = "log"
	CurveQsin   FadeCurve = "qsin"
	CurveHsin   FadeCurve = "hsin"
	CurvePar    FadeCurve = "par"
	CurveCub    FadeCurve = "cub"
	CurveLis    FadeCurve = "lis"
	CurveSqr    FadeCurve = "sqr"
	CurveNofade FadeCurve = "nofade"
)

// CrossfadePreset is the default treatment for a transition style.
type CrossfadePreset struct {
	Duration float64   // seconds
	Curve1   FadeCurve // outgoing track
	Curve2   FadeCurve // incoming track
}

// CrossfadePresets maps every style to its default fade.
var CrossfadePresets = map[TransitionStyle]CrossfadePreset{
	StyleSmooth:        {Duration: 8, Curve1: CurveTri, Curve2: CurveTri},
	StyleDrop:          {Duration: 2, Curve1: CurveExp, Curve2: CurveExp},
	StyleEnergy:        {Duration: 6, Curve1: CurveQsin, Curve2: CurveQsin},
	StyleCut:           {Duration: 0.5, Curve1: CurveNofade, Curve2: CurveNofade},
	StyleFilterSweep:   {Duration: 8, Curve1: CurvePar, Curve2: CurvePar},
	StyleEchoReverb:    {Duration: 6, Curve1: CurveLog, Curve2: CurveExp},
	StyleBackspin:      {Duration: 2, Curve1: CurveExp, Curve2: CurveTri},
	StyleTapeStop:      {Duration: 3, Curve1: CurveCub, Curve2: CurveTri},
	StyleStutterEdit:   {Duration: 4, Curve1: CurveSqr, Curve2: CurveSqr},
	StyleThreeBandSwap: {Duration: 8, Curve1: CurveTri, Curve2: CurveTri},
	StyleBassDrop:      {Duration: 4, Curve1: CurveHsin, Curve2: CurveHsin},
	StyleSnareRoll:     {Duration: 4, Curve1: CurveExp, Curve2: CurveLog},
	StyleNoiseRiser:    {Duration: 8, Curve1: CurveQsin, Curve2: CurveQsin},
	StyleVocalHandoff:  {Duration: 6, Curve1: CurveHsin, Curve2: CurveHsin},
	StyleBassSwap:      {Duration: 8, Curve1: CurveTri, Curve2: CurveTri},
	StyleReverbWash:    {Duration: 10, Curve1: CurveLog, Curve2: CurveExp},
	StyleEchoOut:       {Duration: 6, Curve1: CurveLog, Curve2: CurveTri},
}

// AllTransitionStyles lists the catalog in stable order.
var AllTransitionStyles = []TransitionStyle{
	StyleSmooth, StyleDrop, StyleEnergy, StyleCut, StyleFilterSweep,
	StyleEchoReverb, StyleBackspin, StyleTapeStop, StyleStutterEdit,
	StyleThreeBandSwap, StyleBassDrop, StyleSnareRoll, StyleNoiseRiser,
	StyleVocalHandoff, StyleBassSwap, StyleReverbWash, StyleEchoOut,
}

// AllEnergyModes lists the energy modes in stable order.
var AllEnergyModes = []EnergyMode{EnergySteady, EnergyBuild, EnergyWave}

// AllEventTypes lists the event types in stable order.
var AllEventTypes = []EventType{EventWedding, EventBirthday, EventSweet16, EventClub, EventDefault}

// Structure rules: which section labels tolerate a crossfade.
var (
	MixOutAllowed   = map[string]bool{"outro": true, "breakdown": true, "verse": true}
	MixOutForbidden = map[string]bool{"drop": true, "chorus": true, "buildup": true}
	MixInAllowed    = map[string]bool{"intro": true, "buildup": true, "verse": true}
	MixInForbidden  = map[string]bool{"drop": true, "chorus": true}
)

// vocalSections are labels likely to carry a lead vocal.
var vocalSections = map[string]bool{
	"verse": true, "chorus": true, "buildup": true, "bridge": true, "hook": true,
}

// GenreCompatibility scores adjacency between known genres. Missing rows
// mean unknown, which carries no penalty. Distance >= genreDistancePenalty
// deducts points during scoring.
var GenreCompatibility = map[string]map[string]int{
	"house":   {"house": 0, "techno": 1, "trance": 2, "edm": 1, "pop": 3, "hiphop": 4},
	"techno":  {"techno": 0, "house": 1, "trance": 1, "edm": 2, "pop": 4, "hiphop": 4},
	"trance":  {"trance": 0, "techno": 1, "house": 2, "edm": 2, "pop": 4, "hiphop": 5},
	"edm":     {"edm": 0, "house": 1, "techno": 2, "trance": 2, "pop": 2, "hiphop": 3},
	"pop":     {"pop": 0, "edm": 2, "house": 3, "hiphop": 2, "rnb": 1},
	"hiphop":  {"hiphop": 0, "rnb": 1, "pop": 2, "edm": 3},
	"rnb":     {"rnb": 0, "hiphop": 1, "pop": 1},
}

// genreDistance returns the table distance and whether both genres are known.
func genreDistance(a, b string) (int, bool) {
	if a == "" || b == "" {
		return 0, false
	}
	row, ok := GenreCompatibility[a]
	if !ok {
		return 0, false
	}
	d, ok := row[b]
	return d, ok
}

// ValidTransitionStyle reports whether s is in the closed set.
func ValidTransitionStyle(s TransitionStyle) bool {
	_, ok := CrossfadePresets[s]
	return ok
}

// ValidEnergyMode reports whether m is in the closed set.
func ValidEnergyMode(m EnergyMode) bool {
	return m == EnergySteady || m == EnergyBuild || m == EnergyWave
}

// ValidEventType reports whether e is in the closed set.
func ValidEventType(e EventType) bool {
	switch e {
	case EventWedding, EventBirthday, EventSweet16, EventClub, EventDefault:
		return true
	}
	return false
}
