package store_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fiberqc/internal/database"
	"fiberqc/internal/models"
	"fiberqc/internal/qc"
	"fiberqc/internal/store"
	"fiberqc/internal/testutil"
)

func newStore(t *testing.T) *store.Store {
	t.Helper()
	return store.New(testutil.SetupTestDB(t))
}

func fiber(id string, d1310, d1550 float64) models.BareFiber {
	return models.BareFiber{
		FiberID: id, FiberType: "G.652D", BatchID: "B-1",
		Distance1310: d1310, Attenuation1310: 0.34,
		Distance1550: d1550, Attenuation1550: 0.2,
		Operator: "op1",
	}
}

func cable(id string, fiberCount int) models.Cable {
	return models.Cable{
		CableID: id, TubeColor: "Blue", InsideDiameter: 1.7, OutsideDiameter: 2.5,
		FiberCount: fiberCount, CustomerName: "Acme", OperatorName: "op2",
		BobbinNumber: "BB-1", StandardLengthKM: 25, NetLengthKM: 24.9,
	}
}

func check(cableID, status string) models.QCCheck {
	return models.QCCheck{
		CableID: cableID, QCOperator: "qc1", MeasuredIDDiameter: 1.7,
		MeasuredODDiameter: 2.5, OpticalLength: 24.4, Status: status,
	}
}

func TestFiberCreate_DuplicateRejected(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	id, err := s.Fibers.Create(ctx, fiber("F001", 25.1, 25.0))
	require.NoError(t, err)
	assert.Positive(t, id)

	_, err = s.Fibers.Create(ctx, fiber("F001", 26, 26))
	require.Error(t, err)
	assert.True(t, store.IsConstraint(err), "want constraint error, got %v", err)

	all, err := s.Fibers.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, 25.0, all[0].Distance1550)
}

func TestFiberFindByFiberID(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	_, err := s.Fibers.Create(ctx, fiber("F010", 24.0, 24.2))
	require.NoError(t, err)

	f, err := s.Fibers.FindByFiberID(ctx, "F010")
	require.NoError(t, err)
	assert.Equal(t, "tested", f.Status)
	assert.True(t, f.IsShort)
	assert.NotEmpty(t, f.DateTested)

	_, err = s.Fibers.FindByFiberID(ctx, "nope")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestFiberFindAll_EmptyIsNotNil(t *testing.T) {
	s := newStore(t)
	all, err := s.Fibers.FindAll(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, all)
	assert.Empty(t, all)
}

func TestFindAvailable_ExcludesAssigned(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	for _, id := range []string{"F1", "F2", "F3"} {
		_, err := s.Fibers.Create(ctx, fiber(id, 25, 25))
		require.NoError(t, err)
	}
	_, err := s.Cables.Create(ctx, cable("C1", 12))
	require.NoError(t, err)

	res, err := s.CableFibers.AddFibersToCable(ctx, "C1", []models.FiberAssignment{
		{FiberID: "F1", StandardColor: "Blue", Position: 1},
		{FiberID: "F3", StandardColor: "Orange", Position: 2},
	})
	require.NoError(t, err)
	require.Equal(t, 2, res.Added)

	avail, err := s.Fibers.FindAvailable(ctx)
	require.NoError(t, err)
	var ids []string
	for _, f := range avail {
		ids = append(ids, f.FiberID)
	}
	assert.Equal(t, []string{"F2"}, ids)
}

func TestAddFibersToCable_PartialSuccess(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	for _, id := range []string{"F1", "F2", "F3"} {
		_, err := s.Fibers.Create(ctx, fiber(id, 25, 25))
		require.NoError(t, err)
	}
	_, err := s.Cables.Create(ctx, cable("C1", 12))
	require.NoError(t, err)
	_, err = s.Cables.Create(ctx, cable("C2", 12))
	require.NoError(t, err)

	// F2 is already in C2, so the second entry must fail alone.
	_, err = s.CableFibers.AddFibersToCable(ctx, "C2", []models.FiberAssignment{{FiberID: "F2", StandardColor: "Blue", Position: 1}})
	require.NoError(t, err)

	res, err := s.CableFibers.AddFibersToCable(ctx, "C1", []models.FiberAssignment{
		{FiberID: "F1", StandardColor: "Blue", Position: 1},
		{FiberID: "F2", StandardColor: "Orange", Position: 2},
		{FiberID: "F3", StandardColor: "Green", Position: 3},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Added)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "Fiber F2:")

	fibers, err := s.CableFibers.GetCableFibers(ctx, "C1")
	require.NoError(t, err)
	got := []string{}
	for _, f := range fibers {
		got = append(got, f.FiberID)
	}
	assert.Equal(t, []string{"F1", "F3"}, got)
}

func TestAddFibersToCable_EntryErrors(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	_, err := s.Fibers.Create(ctx, fiber("F1", 25, 25))
	require.NoError(t, err)
	_, err = s.Fibers.Create(ctx, fiber("F2", 25, 25))
	require.NoError(t, err)
	_, err = s.Cables.Create(ctx, cable("C1", 12))
	require.NoError(t, err)

	res, err := s.CableFibers.AddFibersToCable(ctx, "C1", []models.FiberAssignment{
		{FiberID: "", StandardColor: "Blue", Position: 1},
		{FiberID: "F1", StandardColor: "Blue", Position: -2},
		{FiberID: "GHOST", StandardColor: "Blue", Position: 3},
		{FiberID: "F1", StandardColor: "Blue", Position: 4},
		{FiberID: "F2", StandardColor: "Red", Position: 4},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Added)
	require.Len(t, res.Errors, 4)
	assert.Equal(t, "Fiber #1: Missing required fields: fiber_id", res.Errors[0])
	assert.Equal(t, "Fiber F1: position must be a positive integer", res.Errors[1])
	assert.Contains(t, res.Errors[2], "Fiber GHOST:")
	assert.Contains(t, res.Errors[3], "Fiber F2:")
}

func TestAddFibersToCable_UnknownCable(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	_, err := s.Fibers.Create(ctx, fiber("F1", 25, 25))
	require.NoError(t, err)

	_, err = s.CableFibers.AddFibersToCable(ctx, "NOPE", []models.FiberAssignment{{FiberID: "F1", StandardColor: "Blue", Position: 1}})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestOpticalLengthFromAssignedFibers(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	_, err := s.Fibers.Create(ctx, fiber("F1", 25.0, 24.4))
	require.NoError(t, err)
	_, err = s.Fibers.Create(ctx, fiber("F2", 24.9, 24.6))
	require.NoError(t, err)
	_, err = s.Cables.Create(ctx, cable("C1", 2))
	require.NoError(t, err)
	_, err = s.CableFibers.AddFibersToCable(ctx, "C1", []models.FiberAssignment{
		{FiberID: "F1", StandardColor: "Blue", Position: 1},
		{FiberID: "F2", StandardColor: "Orange", Position: 2},
	})
	require.NoError(t, err)

	agg, err := s.Cables.GetFullCableData(ctx, "C1")
	require.NoError(t, err)
	l, ok := qc.CableOpticalLength(agg.Fibers)
	require.True(t, ok)
	assert.Equal(t, 24.4, l)
}

func TestRecordQCCheck_MirrorsCableStatus(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	_, err := s.Cables.Create(ctx, cable("C1", 12))
	require.NoError(t, err)

	c, err := s.Cables.FindByID(ctx, "C1")
	require.NoError(t, err)
	assert.Equal(t, qc.CableInProgress, c.Status)

	_, err = s.QCChecks.RecordQCCheckAndUpdateCableStatus(ctx, check("C1", qc.Pass))
	require.NoError(t, err)
	assert.Equal(t, qc.CableQCPassed, testutil.CableStatus(t, s.DB, "C1"))

	id, err := s.QCChecks.RecordQCCheckAndUpdateCableStatus(ctx, check("C1", qc.Fail))
	require.NoError(t, err)
	assert.Equal(t, qc.CableQCFailed, testutil.CableStatus(t, s.DB, "C1"))

	latest, err := s.QCChecks.FindByCableID(ctx, "C1")
	require.NoError(t, err)
	assert.Equal(t, id, latest.ID)
	assert.Equal(t, qc.Fail, latest.Status)
}

func TestRecordQCCheck_UnknownCableWritesNothing(t *testing.T) {
	s := newStore(t)
	_, err := s.QCChecks.RecordQCCheckAndUpdateCableStatus(context.Background(), check("GHOST", qc.Pass))
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, 0, testutil.CountRows(t, s.DB, "qc_checks"))
}

func TestRecordQCCheck_InvalidStatus(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	_, err := s.Cables.Create(ctx, cable("C1", 12))
	require.NoError(t, err)

	_, err = s.QCChecks.RecordQCCheckAndUpdateCableStatus(ctx, check("C1", "maybe"))
	assert.True(t, store.IsConstraint(err))
	assert.Equal(t, qc.CableInProgress, testutil.CableStatus(t, s.DB, "C1"))
}

func TestQCCheckFindAll_JoinsCable(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	_, err := s.Cables.Create(ctx, cable("C1", 12))
	require.NoError(t, err)
	_, err = s.QCChecks.RecordQCCheckAndUpdateCableStatus(ctx, check("C1", qc.Pass))
	require.NoError(t, err)

	all, err := s.QCChecks.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "Acme", all[0].CustomerName)
	assert.Equal(t, "Blue", all[0].TubeColor)

	_, err = s.QCChecks.FindByCableID(ctx, "OTHER")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestGetFullCableData(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	_, err := s.Cables.GetFullCableData(ctx, "NOPE")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.Cables.Create(ctx, cable("C1", 12))
	require.NoError(t, err)
	agg, err := s.Cables.GetFullCableData(ctx, "C1")
	require.NoError(t, err)
	assert.Equal(t, "C1", agg.Cable.CableID)
	assert.NotNil(t, agg.Fibers)
	assert.Empty(t, agg.Fibers)
	assert.Nil(t, agg.QCCheck)

	_, err = s.QCChecks.RecordQCCheckAndUpdateCableStatus(ctx, check("C1", qc.Pass))
	require.NoError(t, err)
	agg, err = s.Cables.GetFullCableData(ctx, "C1")
	require.NoError(t, err)
	require.NotNil(t, agg.QCCheck)
	assert.Equal(t, qc.Pass, agg.QCCheck.Status)
	assert.Equal(t, qc.CableQCPassed, agg.Cable.Status)
}

func TestGetFullCableData_QueryErrorIsNotNotFound(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := store.New(db)
	testutil.SeedCable(t, db, "C1", 12)
	_, err := db.Exec("DROP TABLE qc_checks")
	require.NoError(t, err)

	_, err = s.Cables.GetFullCableData(context.Background(), "C1")
	require.Error(t, err)
	assert.False(t, errors.Is(err, store.ErrNotFound))
}

func TestCableFindAll_DerivedCounts(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := store.New(db)
	ctx := context.Background()

	testutil.SeedCable(t, db, "C1", 12)
	testutil.SeedCable(t, db, "C2", 6)
	testutil.SeedFiber(t, db, "F1", 25.2, 24.1)
	testutil.SeedFiber(t, db, "F2", 25.2, 25.0)
	testutil.SeedFiber(t, db, "F3", 25.2, 24.3)
	testutil.SeedAssignment(t, db, "C1", "F1", 1)
	testutil.SeedAssignment(t, db, "C1", "F2", 2)
	testutil.SeedAssignment(t, db, "C1", "F3", 3)

	// Two checks must not multiply the association count.
	_, err := s.QCChecks.RecordQCCheckAndUpdateCableStatus(ctx, check("C1", qc.Pass))
	require.NoError(t, err)
	_, err = s.QCChecks.RecordQCCheckAndUpdateCableStatus(ctx, check("C1", qc.Fail))
	require.NoError(t, err)

	all, err := s.Cables.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)

	byID := map[string]models.CableSummary{}
	for _, c := range all {
		byID[c.CableID] = c
	}
	type counts struct {
		Declared, Actual, Short int
		QC                      string
	}
	summarize := func(c models.CableSummary) counts {
		out := counts{Declared: c.FiberCount, Actual: c.ActualFiberCount, Short: c.ShortFiberCount}
		if c.QCStatus != nil {
			out.QC = *c.QCStatus
		}
		return out
	}
	want := map[string]counts{
		"C1": {Declared: 12, Actual: 3, Short: 2, QC: qc.Fail},
		"C2": {Declared: 6},
	}
	got := map[string]counts{"C1": summarize(byID["C1"]), "C2": summarize(byID["C2"])}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("cable summaries mismatch (-want +got):\n%s", diff)
	}
	assert.Nil(t, byID["C2"].QCStatus)
}

func TestCableCreate_DuplicateAndOptionalFields(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()

	c := cable("C1", 12)
	c.Remarks = "first bobbin"
	_, err := s.Cables.Create(ctx, c)
	require.NoError(t, err)
	_, err = s.Cables.Create(ctx, cable("C1", 6))
	assert.True(t, store.IsConstraint(err))

	got, err := s.Cables.FindByID(ctx, "C1")
	require.NoError(t, err)
	assert.Equal(t, "first bobbin", got.Remarks)
	assert.Equal(t, "", got.ReloNumber)

	_, err = s.Cables.FindByID(ctx, "C9")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestCableUpdateStatus(t *testing.T) {
	s := newStore(t)
	ctx := context.Background()
	_, err := s.Cables.Create(ctx, cable("C1", 12))
	require.NoError(t, err)

	require.NoError(t, s.Cables.UpdateStatus(ctx, "C1", qc.CableCompleted))
	assert.Equal(t, qc.CableCompleted, testutil.CableStatus(t, s.DB, "C1"))

	err = s.Cables.UpdateStatus(ctx, "C1", "shipped")
	assert.True(t, store.IsConstraint(err), "got %v", err)

	err = s.Cables.UpdateStatus(ctx, "C9", qc.CableCompleted)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRecordQCCheck_ConcurrentWritersOnFile(t *testing.T) {
	db, err := database.Open(filepath.Join(t.TempDir(), "qc.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	s := store.New(db)
	ctx := context.Background()

	const cables, writers = 8, 64
	for i := 0; i < cables; i++ {
		_, err := s.Cables.Create(ctx, cable(fmt.Sprintf("C%d", i), 12))
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			status := qc.Pass
			if i%2 == 1 {
				status = qc.Fail
			}
			_, err := s.QCChecks.RecordQCCheckAndUpdateCableStatus(ctx, check(fmt.Sprintf("C%d", i%cables), status))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, writers, testutil.CountRows(t, db, "qc_checks"))
}

func TestAddFibersToCable_ConcurrentBatchesOnFile(t *testing.T) {
	db, err := database.Open(filepath.Join(t.TempDir(), "qc.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	s := store.New(db)
	ctx := context.Background()

	const batches = 16
	for i := 0; i < batches; i++ {
		_, err := s.Cables.Create(ctx, cable(fmt.Sprintf("C%d", i), 2))
		require.NoError(t, err)
	}
	// Every batch claims the shared fiber F0 plus one of its own.
	_, err = s.Fibers.Create(ctx, fiber("F0", 25, 25))
	require.NoError(t, err)
	for i := 1; i <= batches; i++ {
		_, err := s.Fibers.Create(ctx, fiber(fmt.Sprintf("F%d", i), 25, 25))
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	results := make(chan models.BatchResult, batches)
	for i := 0; i < batches; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := s.CableFibers.AddFibersToCable(ctx, fmt.Sprintf("C%d", i), []models.FiberAssignment{
				{FiberID: "F0", StandardColor: "Blue", Position: 1},
				{FiberID: fmt.Sprintf("F%d", i+1), StandardColor: "Orange", Position: 2},
			})
			assert.NoError(t, err)
			results <- res
		}(i)
	}
	wg.Wait()
	close(results)

	added, failures := 0, 0
	for res := range results {
		added += res.Added
		failures += len(res.Errors)
	}
	// F0 lands in exactly one cable; the losers get a uniqueness error.
	assert.Equal(t, batches+1, added)
	assert.Equal(t, batches-1, failures)
	assert.Equal(t, batches+1, testutil.CountRows(t, db, "cable_fibers"))
}
