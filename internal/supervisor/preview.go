package supervisor

import (
	"context"
	"os"
	"path/filepath"

	"github.com/automixer/automix-go/internal/datastore"
	"github.com/automixer/automix-go/internal/errors"
	"github.com/automixer/automix-go/internal/objectstore"
	"github.com/automixer/automix-go/internal/planner"
)

// previewDurationSeconds bounds a preview to the transition window plus
// enough context on both sides to judge it.
const previewDurationSeconds = 60

// RenderPreview renders just the transition between two analyzed tracks
// and stores it under the preview key. It runs synchronously; previews
// are short and callers want the result in the response.
func (s *Supervisor) RenderPreview(ctx context.Context, userID, fromID, toID string, style planner.TransitionStyle) (string, error) {
	tracks, err := s.catalog.GetTracks([]string{fromID, toID})
	if err != nil {
		return "", err
	}
	if len(tracks) != 2 {
		return "", errors.Newf("preview requires two known tracks").
			Component("supervisor").
			Category(errors.CategoryNotFound).
			Build()
	}
	infos := make([]*planner.TrackInfo, 0, 2)
	for i := range tracks {
		if tracks[i].UserID != userID {
			return "", errors.Newf("track %s does not belong to the requesting user", tracks[i].ID).
				Component("supervisor").
				Category(errors.CategoryAuthorization).
				Build()
		}
		if tracks[i].Status != datastore.TrackStatusCompleted {
			return "", errors.Newf("track %s is not analyzed yet", tracks[i].ID).
				Component("supervisor").
				Category(errors.CategoryConflict).
				Build()
		}
		infos = append(infos, tracks[i].PlannerView())
	}

	req := &planner.Request{
		TrackIDs:              []string{fromID, toID},
		TargetDurationSeconds: previewDurationSeconds,
		TransitionStyle:       style,
		KeepOrder:             true,
	}
	plan := s.planner.Plan(infos, req)

	workDir, err := os.MkdirTemp("", "automix-preview-")
	if err != nil {
		return "", err
	}
	defer os.RemoveAll(workDir)

	inputs, err := s.materializeInputs(ctx, workDir, plan.Order)
	if err != nil {
		return "", err
	}

	outputPath := filepath.Join(workDir, "preview.mp3")
	res, err := s.renderer.Render(ctx, inputs, plan, req, outputPath)
	if err != nil {
		return "", err
	}

	key := objectstore.PreviewKey(fromID, toID)
	out, err := os.ReadFile(res.OutputPath)
	if err != nil {
		return "", err
	}
	if err := s.putBlob(ctx, key, out, "audio/mpeg"); err != nil {
		return "", err
	}
	return key, nil
}
