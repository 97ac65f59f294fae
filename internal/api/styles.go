package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/automixer/automix-go/internal/planner"
)

const stylesCacheKey = "styles-catalog"

// styleEntry pairs a stable identifier with its default fade, enough
// for a UI menu.
type styleEntry struct {
	ID                  string  `json:"id"`
	DefaultFadeDuration float64 `json:"defaultFadeDuration"`
	Curve1              string  `json:"curve1"`
	Curve2              string  `json:"curve2"`
}

// stylesCatalog is the closed-set catalog. Identifiers are normative
// across versions; new styles append only.
type stylesCatalog struct {
	TransitionStyles  []styleEntry `json:"transitionStyles"`
	EnergyModes       []string     `json:"energyModes"`
	EventTypes        []string     `json:"eventTypes"`
	ProcessingOptions []string     `json:"processingOptions"`
	LoudnessTargets   []string     `json:"loudnessTargets"`
}

// GetStyles serves the catalog from cache; it only changes on deploy.
func (c *Controller) GetStyles(ctx echo.Context) error {
	if cached, ok := c.cache.Get(stylesCacheKey); ok {
		return ctx.JSON(http.StatusOK, cached)
	}

	catalog := buildStylesCatalog()
	c.cache.SetDefault(stylesCacheKey, catalog)
	return ctx.JSON(http.StatusOK, catalog)
}

func buildStylesCatalog() stylesCatalog {
	styles := make([]styleEntry, 0, len(planner.AllTransitionStyles))
	for _, style := range planner.AllTransitionStyles {
		preset := planner.CrossfadePresets[style]
		styles = append(styles, styleEntry{
			ID:                  string(style),
			DefaultFadeDuration: preset.Duration,
			Curve1:              string(preset.Curve1),
			Curve2:              string(preset.Curve2),
		})
	}

	modes := make([]string, 0, len(planner.AllEnergyModes))
	for _, m := range planner.AllEnergyModes {
		modes = append(modes, string(m))
	}
	eventTypes := make([]string, 0, len(planner.AllEventTypes))
	for _, e := range planner.AllEventTypes {
		eventTypes = append(eventTypes, string(e))
	}

	return stylesCatalog{
		TransitionStyles: styles,
		EnergyModes:      modes,
		EventTypes:       eventTypes,
		ProcessingOptions: []string{
			"enableMultibandCompression",
			"enableSidechainDucking",
			"enableDynamicEQ",
			"enableFilterSweep",
		},
		LoudnessTargets: []string{"ebu_r128", "peak", "none"},
	}
}
