package troubleshoot

import (
	"testing"

	"github.com/stableprint/sdk/bag"
)

// The canonicalization acceptance suite. Runs only under GOSTABILITY=1 so
// routine test runs stay fast; CI sets the variable on the stability job.
func TestCanonicalizationAcceptance(t *testing.T) {
	Run(t, "canonicalization_acceptance", func(h *H) {
		suite, err := GenerateSuite("canonicalization-acceptance", baseBag(), []Pattern{
			{
				Name:           "whitespace_noise",
				Modifications:  []Modification{{Property: bag.FieldUserAgent, NewValue: "  Mozilla/5.0 (Windows NT 10.0;\tWin64; x64) "}},
				ShouldBeStable: true,
			},
			{
				Name:           "font_permutation",
				Modifications:  []Modification{{Property: bag.FieldFonts, NewValue: []any{"Verdana", "Arial", "Courier New"}}},
				ShouldBeStable: true,
			},
			{
				Name:           "numeric_string_coercion",
				Modifications:  []Modification{{Property: bag.FieldColorDepth, NewValue: "24"}},
				ShouldBeStable: true,
			},
			{
				Name:           "precision_jitter",
				Modifications:  []Modification{{Property: bag.FieldPixelRatio, NewValue: 1.2503}},
				ShouldBeStable: true,
			},
			{
				Name:           "timezone_is_not_identity",
				Modifications:  []Modification{{Property: bag.FieldTimezone, NewValue: "America/New_York"}},
				ShouldBeStable: true,
			},
			{
				Name:           "browser_update",
				Modifications:  []Modification{{Property: bag.FieldUserAgent, NewValue: "Mozilla/5.0 (X11; Linux x86_64)"}},
				ShouldBeStable: false,
			},
			{
				Name:           "resolution_change",
				Modifications:  []Modification{{Property: bag.FieldScreenResolution, NewValue: "2560x1440"}},
				ShouldBeStable: false,
			},
			{
				Name:           "gpu_model_change",
				Modifications:  []Modification{{Property: bag.FieldGPURenderer, NewValue: "NVIDIA GeForce GTX 1070"}},
				ShouldBeStable: false,
			},
		})
		if err != nil {
			h.T.Fatalf("generating suite: %v", err)
		}

		result := h.RunSuite(suite)
		h.RequirePass(result)
	})
}
