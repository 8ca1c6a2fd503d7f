// Package rheobench turns raw capillary-rheometer trials into a corrected flow
// curve and identifies the constitutive law that governs the fluid.
//
// # Overview
//
// A capillary rheometer reports pressure, extruded mass and duration for a die
// of known diameter D and length L. These readings are confounded by the die:
// part of the pressure is lost at the entrance, the melt may slip at the wall,
// and the wall velocity profile of a non-Newtonian fluid is not parabolic.
// rheobench removes each artifact in turn and then fits five candidate models.
//
// # Architecture
//
// Data flows strictly downstream:
//
//   - ComputeFlowPoint / FlowCurve   - apparent τw and γ̇aw of each trial
//   - BagleyCorrect                  - entrance-loss removal (same D, several L)
//   - MooneyCorrect                  - wall-slip removal (same L, several D)
//   - RabinowitschCorrect            - apparent → true wall shear rate
//   - FitModels                      - bounded fit of Newtonian, Power Law,
//     Bingham, Herschel-Bulkley and Casson; best by R²
//   - Aggregate                      - replicate statistics with IQR filtering
//   - FlagResidualOutliers           - candidate removal set for a re-fit
//
// RunPipeline chains the stages and falls back to the best curve available
// (raw → Bagley-only → Bagley+Mooney) when a correction cannot produce any
// valid target.
//
// # Quick Start
//
//	res, err := rheobench.RunPipeline(rheobench.PipelineInput{
//	    Bagley: lengthSeries,   // one diameter, several lengths
//	    Mooney: diameterSeries, // one length, several diameters
//	}, rheobench.DefaultPipelineOptions())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	best := res.Best()
//	fmt.Printf("%s  R² = %.4f  params = %v\n", best.Model, best.RSquared, best.Params)
//
// # Units
//
// Geometry is given in millimetres and converted to SI internally. Pressure is
// in Pa, mass in kg, duration in s and density in kg/m³. Stresses are in Pa
// and shear rates in 1/s.
//
// # Errors
//
// Invalid geometry is fatal for its dataset (ErrInvalidGeometry). Too little
// data makes a stage fail (ErrInsufficientData) or degrade to a documented
// fallback such as n' = 1. Non-physical regression results drop the affected
// target only. A correction with no surviving targets reports ErrNoValidTargets
// rather than an empty curve.
package rheobench
