// Package sdk provides the official Software Development Kit for the Stableprint platform.
//
// The Stableprint SDK turns noisy browser and device observations into stable,
// deterministic fingerprints. It provides a comprehensive set of APIs for
// canonicalizing raw observations, generating SHA-256 digests, explaining why
// two observations hash differently, and measuring fingerprint stability
// across populations of repeated collections.
//
// # Core Concepts
//
// The SDK is organized around several key concepts:
//
//   - Observations: raw key/value attribute bags collected from a device
//   - Canonical Form: an observation after normalization, fallback
//     substitution, and noise-field removal
//   - Digest: the lowercase SHA-256 hex fingerprint of a canonical form
//   - Profiles: declarative YAML configuration for sentinels, retry policy,
//     privacy shielding, and diff severity grading
//   - Stability: population-level metrics describing how consistently the
//     same device hashes to the same digest
//
// # Architecture
//
// The SDK follows a layered architecture:
//
//   - Facade Layer: the Engine type ties one configuration to every operation
//   - Pipeline Layer: canonicalization, serialization, and hashing
//   - Analysis Layer: field-level diffing, root-cause diagnosis, and
//     population stability scoring
//   - Fleet Layer: observation storage and node registry for distributed
//     deployments
//   - Observability Layer: OpenTelemetry-based metrics and tracing
//
// # Getting Started
//
// To use the SDK, first create an engine instance:
//
//	import "github.com/stableprint/sdk"
//
//	engine, err := sdk.New()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	digest, err := engine.Generate(ctx, bag.Bag{
//		"userAgent": "Mozilla/5.0 (X11; Linux x86_64)",
//		"platform":  "Linux x86_64",
//	})
//
// The zero-argument form runs the stock profile. Production deployments load
// a profile from disk instead:
//
//	prof, err := profile.Load("/etc/stableprint")
//	if err != nil {
//		log.Fatal(err)
//	}
//	engine, err := sdk.New(sdk.WithProfile(prof))
//
// # Debugging
//
// GenerateWithDebug records every normalization decision the pipeline makes:
//
//	result, err := engine.GenerateWithDebug(ctx, observation)
//	if err != nil {
//		log.Fatal(err)
//	}
//	for _, step := range result.Session.Steps {
//		fmt.Println(step.Type, step.Property)
//	}
//
// # Stability Analysis
//
// When the same device produces different digests across collections, the
// analysis layer explains why:
//
//	report := engine.Compare(observationA, observationB)
//	for _, d := range report.Differences {
//		fmt.Println(d.Path, d.Type, d.AffectsHash)
//	}
//
//	stats, err := engine.Analyze(ctx, population)
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println(stats.Consistency, stats.Entropy)
//
// # Error Handling
//
// The SDK uses sentinel errors and structured error types for robust error
// handling:
//
//	if err != nil {
//		if errors.Is(err, sdk.ErrSecurityViolation) {
//			// Observation rejected before hashing
//		}
//		// Handle other errors
//	}
//
// # Observability
//
// The SDK integrates OpenTelemetry for distributed tracing and metrics:
//
//	engine, err := sdk.New(
//		sdk.WithMeterProvider(meterProvider),
//		sdk.WithTracerProvider(tracerProvider),
//	)
//
// Hash latency, hash counts, and fallback counts are recorded under the
// "stableprint" instrumentation scope.
//
// # Thread Safety
//
// All Engine methods are safe for concurrent use except GenerateWithDebug,
// which serializes on the debug recorder: a second concurrent debug session
// fails with recorder.ErrActiveSession.
//
// # Examples
//
// See the examples directory for complete working examples of:
//
//   - Hashing a single observation and inspecting its canonical form
//   - Measuring stability across a population of repeated collections
//   - Detecting configuration drift across a fleet of hashing nodes
package sdk
