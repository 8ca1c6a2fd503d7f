package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alexshd/rheobench"
	"github.com/alexshd/rheobench/internal/artifact"
)

func openTest(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "sessions.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_Memory(t *testing.T) {
	s, err := Open(context.Background(), ":memory:", nil)
	require.NoError(t, err)
	defer s.Close()

	list, err := s.List(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestOpen_MigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.db")
	s, err := Open(context.Background(), path, nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(context.Background(), path, nil)
	require.NoError(t, err)
	assert.NoError(t, s.RunMigrations())
	s.Close()
}

func TestSaveGet(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)

	sess := &Session{
		Name:           "PP batch 7",
		CorrectionType: "bagley+mooney+rabinowitsch",
		BestModel:      "Power Law",
		RSquared:       0.9993,
		PointCount:     15,
		Datasets:       []string{"D1-L10", "D1-L20"},
		Failures:       []string{},
		Model: &artifact.ModelRecord{
			BestModel:      rheobench.PowerLaw,
			RSquared:       0.9993,
			Parameters:     []float64{10, 0.5},
			ParameterNames: []string{"K", "n"},
		},
	}
	require.NoError(t, s.Save(ctx, sess))

	_, err := uuid.Parse(sess.ID)
	require.NoError(t, err, "ID assigned")
	require.False(t, sess.CreatedAt.IsZero())

	got, err := s.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.True(t, sess.CreatedAt.Equal(got.CreatedAt))
	got.CreatedAt = sess.CreatedAt
	if diff := cmp.Diff(sess, got); diff != "" {
		t.Errorf("session mismatch (-want +got):\n%s", diff)
	}

	sess.Name = "PP batch 7 (re-run)"
	require.NoError(t, s.Save(ctx, sess))
	got, err = s.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "PP batch 7 (re-run)", got.Name)

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestList_NewestFirst(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, name := range []string{"first", "second", "third"} {
		require.NoError(t, s.Save(ctx, &Session{
			Name:           name,
			CreatedAt:      base.Add(time.Duration(i) * time.Hour),
			CorrectionType: "raw",
		}))
	}

	all, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "third", all[0].Name)
	assert.Equal(t, "first", all[2].Name)
	assert.Nil(t, all[0].Model)
	assert.Empty(t, all[0].Datasets)

	two, err := s.List(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, two, 2)
}

func TestCalibrations(t *testing.T) {
	ctx := context.Background()
	s := openTest(t)

	_, err := s.LatestCalibration(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	sess := &Session{CorrectionType: "bagley+mooney"}
	require.NoError(t, s.Save(ctx, sess))

	older := artifact.CalibrationRecord{
		CorrectionType: "bagley",
		Points:         artifact.CalibrationPoints{Stress: []float64{1, 2}, ShearRate: []float64{1, 2}},
		CreatedAt:      time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	newer := artifact.CalibrationRecord{
		CorrectionType: "bagley+mooney",
		SourceIDs:      []string{"a", "b"},
		Points:         artifact.CalibrationPoints{Stress: []float64{100, 200}, ShearRate: []float64{10, 30}},
		CreatedAt:      time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	}
	_, err = s.SaveCalibration(ctx, sess.ID, newer)
	require.NoError(t, err)
	id, err := s.SaveCalibration(ctx, "", older)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	latest, err := s.LatestCalibration(ctx)
	require.NoError(t, err)
	if diff := cmp.Diff(newer, latest); diff != "" {
		t.Errorf("calibration mismatch (-want +got):\n%s", diff)
	}

	cal, err := latest.Calibration()
	require.NoError(t, err)
	rate, err := cal.ShearRateAt(150)
	require.NoError(t, err)
	assert.InDelta(t, 20, rate, 1e-12)

	require.NoError(t, s.Delete(ctx, sess.ID))
	_, err = s.LatestCalibration(ctx)
	assert.NoError(t, err, "calibrations outlive their session")
	assert.ErrorIs(t, s.Delete(ctx, sess.ID), ErrNotFound)
}
