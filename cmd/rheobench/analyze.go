package main

//
// Full analysis session
//

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/alexshd/rheobench"
	"github.com/alexshd/rheobench/internal/artifact"
	"github.com/alexshd/rheobench/internal/store"
)

type analyzeOptions struct {
	bagley          []string
	mooney          []string
	reference       string
	calibration     calibrationSource
	name            string
	outDir          string
	noStore         bool
	saveCalibration bool
}

func analyzeSubcommand(a *app) *cobra.Command {
	opts := &analyzeOptions{}
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run the full correction pipeline and fit the rheological models",
		Long: `Runs raw flow curve → Bagley → Mooney → Rabinowitsch (or an external
calibration) → model fitting. A failing correction stage is reported and the
best curve obtained so far is used instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.analyze(cmd, opts)
		},
	}
	f := cmd.Flags()
	f.StringSliceVar(&opts.bagley, "bagley", nil, "measurement sets sharing one diameter (JSON)")
	f.StringSliceVar(&opts.mooney, "mooney", nil, "measurement sets sharing one length (JSON)")
	f.StringVar(&opts.reference, "reference", "", "dataset ID whose raw curve is the last-resort fallback")
	f.StringVar(&opts.calibration.path, "calibration", "", "calibration record replacing the Rabinowitsch correction")
	f.BoolVar(&opts.calibration.latest, "latest-calibration", false, "use the newest calibration in the session store")
	f.StringVar(&opts.name, "name", "", "session name")
	f.StringVarP(&opts.outDir, "out", "o", "", "directory for curve, results, model and calibration exports")
	f.BoolVar(&opts.noStore, "no-store", false, "do not record the session")
	f.BoolVar(&opts.saveCalibration, "save-calibration", false, "store the corrected curve as the new calibration")
	return cmd
}

func findDataset(id string, series ...[]rheobench.CapillaryDataset) (*rheobench.CapillaryDataset, error) {
	for _, s := range series {
		for i := range s {
			if s[i].ID == id {
				return &s[i], nil
			}
		}
	}
	return nil, fmt.Errorf("reference dataset %q not found", id)
}

func datasetIDs(series ...[]rheobench.CapillaryDataset) []string {
	seen := map[string]bool{}
	var ids []string
	for _, s := range series {
		for _, ds := range s {
			if !seen[ds.ID] {
				seen[ds.ID] = true
				ids = append(ids, ds.ID)
			}
		}
	}
	return ids
}

func (a *app) analyze(cmd *cobra.Command, opts *analyzeOptions) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	bagley, err := loadAllSets(opts.bagley)
	if err != nil {
		return err
	}
	mooney, err := loadAllSets(opts.mooney)
	if err != nil {
		return err
	}
	in := rheobench.PipelineInput{Bagley: bagley, Mooney: mooney}
	if opts.reference != "" {
		if in.Reference, err = findDataset(opts.reference, bagley, mooney); err != nil {
			return err
		}
	}
	if in.Calibration, err = opts.calibration.load(ctx, a); err != nil {
		return err
	}

	res, err := rheobench.RunPipeline(in, a.cfg.PipelineOptions(a.logger))
	if res != nil {
		printPipeline(out, res)
	}
	if err != nil {
		return err
	}

	ids := datasetIDs(bagley, mooney)
	sess := &store.Session{
		ID:             uuid.NewString(),
		Name:           opts.name,
		CreatedAt:      time.Now().UTC(),
		CorrectionType: res.CorrectionType(),
		BestModel:      res.Best().Model.String(),
		RSquared:       res.Best().RSquared,
		PointCount:     res.Curve.Len(),
		Datasets:       ids,
	}
	for _, f := range res.Failures {
		sess.Failures = append(sess.Failures, f.Error())
	}
	model, err := artifact.NewModelRecord(sess.ID, sess.CorrectionType, res.Fit)
	if err != nil {
		return err
	}
	sess.Model = &model

	var calRecord *artifact.CalibrationRecord
	if opts.saveCalibration || opts.outDir != "" {
		if res.Applied(rheobench.StageCalibration) {
			a.logger.Warn("curve already calibrated, not exporting a new calibration")
		} else {
			cal, err := rheobench.NewCalibration(sess.CorrectionType, ids, res.Curve)
			if err != nil {
				a.logger.Warn("corrected curve is not a usable calibration", "error", err)
			} else {
				rec := artifact.NewCalibrationRecord(cal, sess.CreatedAt)
				calRecord = &rec
			}
		}
	}

	if opts.outDir != "" {
		if err := a.exportSession(opts.outDir, res, in, model, calRecord, bagley, mooney); err != nil {
			return err
		}
	}

	if opts.noStore {
		return nil
	}
	s, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer s.Close()
	if err := s.Save(ctx, sess); err != nil {
		return err
	}
	if opts.saveCalibration && calRecord != nil {
		if _, err := s.SaveCalibration(ctx, sess.ID, *calRecord); err != nil {
			return err
		}
	}
	fmt.Fprintf(out, "session %s saved\n", sess.ID)
	return nil
}

// exportSession writes the corrected curve, the per-point results of every
// dataset, the model record and, when available, the calibration record.
func (a *app) exportSession(dir string, res *rheobench.PipelineResult, in rheobench.PipelineInput,
	model artifact.ModelRecord, cal *artifact.CalibrationRecord, series ...[]rheobench.CapillaryDataset) error {
	if err := writeFile(filepath.Join(dir, "curve.csv"), func(f *os.File) error {
		return artifact.WriteCurve(f, res.Curve)
	}); err != nil {
		return err
	}

	var datasets []rheobench.CapillaryDataset
	seen := map[string]bool{}
	for _, s := range series {
		for _, ds := range s {
			if !seen[ds.ID] {
				seen[ds.ID] = true
				datasets = append(datasets, ds)
			}
		}
	}
	points, err := a.processAll(datasets, in.Calibration)
	if err != nil {
		// A series the pipeline skipped as a failed stage can still hold an
		// invalid capillary.
		a.logger.Warn("results export skipped", "error", err)
	} else if err := writeFile(filepath.Join(dir, "results.csv"), func(f *os.File) error {
		return artifact.WriteResults(f, points)
	}); err != nil {
		return err
	}

	if err := writeFile(filepath.Join(dir, "model.json"), func(f *os.File) error {
		return artifact.WriteJSON(f, model)
	}); err != nil {
		return err
	}
	if cal != nil {
		if err := writeFile(filepath.Join(dir, "calibration.json"), func(f *os.File) error {
			return artifact.WriteJSON(f, cal)
		}); err != nil {
			return err
		}
	}
	a.logger.Info("session exported", "dir", dir)
	return nil
}
