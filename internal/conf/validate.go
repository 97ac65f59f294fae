package conf

import (
	"fmt"
	"slices"
)

var validObjectStoreDrivers = []string{"disk", "s3"}

// ValidateSettings checks configured values that would otherwise fail
// deep inside the pipeline.
func ValidateSettings(s *Settings) error {
	if s.Analysis.SampleRate <= 0 {
		return fmt.Errorf("analysis.samplerate must be positive, got %d", s.Analysis.SampleRate)
	}
	if s.Analysis.DecodeTimeout <= 0 {
		return fmt.Errorf("analysis.decodetimeout must be positive, got %d", s.Analysis.DecodeTimeout)
	}
	if s.Planner.TargetBpmDefault < 60 || s.Planner.TargetBpmDefault > 200 {
		return fmt.Errorf("planner.targetbpmdefault must be in [60,200], got %g", s.Planner.TargetBpmDefault)
	}
	if s.Queue.Concurrency < 1 {
		return fmt.Errorf("queue.concurrency must be at least 1, got %d", s.Queue.Concurrency)
	}
	if s.Render.Format != "mp3" {
		return fmt.Errorf("render.format must be mp3, got %q", s.Render.Format)
	}
	if s.Render.RenderTimeout <= 0 {
		return fmt.Errorf("render.rendertimeout must be positive, got %d", s.Render.RenderTimeout)
	}
	if !slices.Contains(validObjectStoreDrivers, s.ObjectStore.Driver) {
		return fmt.Errorf("objectstore.driver must be one of %v, got %q", validObjectStoreDrivers, s.ObjectStore.Driver)
	}
	if s.ObjectStore.Driver == "s3" && s.ObjectStore.S3.Bucket == "" {
		return fmt.Errorf("objectstore.s3.bucket is required for the s3 driver")
	}
	if len(s.Stems.Engines) == 0 {
		return fmt.Errorf("stems.engines must list at least one engine")
	}
	if s.Output.SQLite.Enabled && s.Output.MySQL.Enabled {
		return fmt.Errorf("only one catalog backend may be enabled")
	}
	if !s.Output.SQLite.Enabled && !s.Output.MySQL.Enabled {
		return fmt.Errorf("a catalog backend must be enabled")
	}
	return nil
}
