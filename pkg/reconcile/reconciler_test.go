package reconcile

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/younsl/cinder-volume/internal/models"
)

// fakeService is an in-memory volume service that records every call.
type fakeService struct {
	volumes   []models.ObservedVolume
	listErr   error
	relistErr error
	createErr error
	deleteErr map[string]error
	nextID    int

	listCalls int
	created   []models.VolumeSpec
	deleted   []string
}

func (f *fakeService) ListVolumes(ctx context.Context) ([]models.ObservedVolume, error) {
	f.listCalls++
	if f.listErr != nil {
		return nil, f.listErr
	}
	if f.relistErr != nil && f.listCalls > 1 {
		return nil, f.relistErr
	}
	out := make([]models.ObservedVolume, len(f.volumes))
	copy(out, f.volumes)
	return out, nil
}

func (f *fakeService) CreateVolume(ctx context.Context, spec models.VolumeSpec) (string, error) {
	f.created = append(f.created, spec)
	if f.createErr != nil {
		return "", f.createErr
	}
	f.nextID++
	id := fmt.Sprintf("new-%d", f.nextID)
	f.volumes = append(f.volumes, models.ObservedVolume{ID: id, Name: spec.Name, Size: spec.Size})
	return id, nil
}

func (f *fakeService) DeleteVolume(ctx context.Context, volumeID string) error {
	if err := f.deleteErr[volumeID]; err != nil {
		return err
	}
	f.deleted = append(f.deleted, volumeID)
	for i, v := range f.volumes {
		if v.ID == volumeID {
			f.volumes = append(f.volumes[:i], f.volumes[i+1:]...)
			break
		}
	}
	return nil
}

func newTestReconciler(svc *fakeService, checkMode bool) (*Reconciler, *int) {
	connects := 0
	connect := func(ctx context.Context) (VolumeService, error) {
		connects++
		return svc, nil
	}
	return New(connect, Options{CheckMode: checkMode, Logger: zerolog.Nop()}), &connects
}

func TestReconcilePresentCreatesWhenMissing(t *testing.T) {
	svc := &fakeService{}
	r, _ := newTestReconciler(svc, false)

	result, err := r.Reconcile(context.Background(), models.VolumeSpec{Name: "v1", Size: 10}, models.StatePresent)
	require.NoError(t, err)

	require.Len(t, svc.created, 1)
	assert.Equal(t, 10, svc.created[0].Size)
	assert.True(t, result.Changed)
	assert.Equal(t, "new-1", result.VolumeID)
	assert.Equal(t, models.OutcomeSuccess, result.Result)
}

func TestReconcilePresentFoundByName(t *testing.T) {
	svc := &fakeService{volumes: []models.ObservedVolume{{ID: "a1", Name: "v1"}}}
	r, _ := newTestReconciler(svc, false)

	result, err := r.Reconcile(context.Background(), models.VolumeSpec{Name: "v1", Size: 1}, models.StatePresent)
	require.NoError(t, err)

	assert.Empty(t, svc.created)
	assert.False(t, result.Changed)
	assert.Equal(t, "a1", result.VolumeID)
	assert.Equal(t, models.OutcomeSuccess, result.Result)
}

func TestReconcilePresentFirstMatchWins(t *testing.T) {
	svc := &fakeService{volumes: []models.ObservedVolume{
		{ID: "x0", Name: "other"},
		{ID: "x1", Name: "dup"},
		{ID: "x2", Name: "dup"},
	}}
	r, _ := newTestReconciler(svc, false)

	result, err := r.Reconcile(context.Background(), models.VolumeSpec{Name: "dup", Size: 1}, models.StatePresent)
	require.NoError(t, err)
	assert.Equal(t, "x1", result.VolumeID)
}

func TestReconcilePresentIsIdempotent(t *testing.T) {
	svc := &fakeService{}
	r, _ := newTestReconciler(svc, false)
	spec := models.VolumeSpec{Name: "v1", Size: 5}

	first, err := r.Reconcile(context.Background(), spec, models.StatePresent)
	require.NoError(t, err)
	second, err := r.Reconcile(context.Background(), spec, models.StatePresent)
	require.NoError(t, err)

	assert.True(t, first.Changed)
	assert.False(t, second.Changed)
	assert.Equal(t, first.VolumeID, second.VolumeID)
	assert.Len(t, svc.created, 1)
}

func TestReconcilePresentRequiresIdentity(t *testing.T) {
	svc := &fakeService{}
	r, connects := newTestReconciler(svc, false)

	_, err := r.Reconcile(context.Background(), models.VolumeSpec{Size: 10}, models.StatePresent)
	require.Error(t, err)
	assert.True(t, errors.Is(err, MissingIdentityError))
	assert.Zero(t, *connects)
	assert.Zero(t, svc.listCalls)
}

func TestReconcileAbsentDeletesByID(t *testing.T) {
	svc := &fakeService{volumes: []models.ObservedVolume{{ID: "a1", Name: "v1"}}}
	r, _ := newTestReconciler(svc, false)

	result, err := r.Reconcile(context.Background(), models.VolumeSpec{ID: "a1"}, models.StateAbsent)
	require.NoError(t, err)

	assert.Equal(t, []string{"a1"}, svc.deleted)
	assert.True(t, result.Changed)
	assert.Equal(t, models.OutcomeDeleted, result.Result)
}

func TestReconcileAbsentDeletesEveryMatch(t *testing.T) {
	svc := &fakeService{volumes: []models.ObservedVolume{
		{ID: "a1", Name: "v1"},
		{ID: "b2", Name: "keep"},
		{ID: "c3", Name: "v1"},
		{ID: "d4", Name: "v1"},
	}}
	r, _ := newTestReconciler(svc, false)

	result, err := r.Reconcile(context.Background(), models.VolumeSpec{Name: "v1"}, models.StateAbsent)
	require.NoError(t, err)

	assert.Equal(t, []string{"a1", "c3", "d4"}, svc.deleted)
	assert.Equal(t, []string{"a1", "c3", "d4"}, result.Deleted)
	assert.True(t, result.Changed)
	require.Len(t, svc.volumes, 1)
	assert.Equal(t, "b2", svc.volumes[0].ID)
}

func TestReconcileAbsentNotPresent(t *testing.T) {
	svc := &fakeService{volumes: []models.ObservedVolume{{ID: "a1", Name: "v1"}}}
	r, _ := newTestReconciler(svc, false)

	result, err := r.Reconcile(context.Background(), models.VolumeSpec{Name: "v2"}, models.StateAbsent)
	require.NoError(t, err)

	assert.Empty(t, svc.deleted)
	assert.False(t, result.Changed)
	assert.Equal(t, models.OutcomeNotPresent, result.Result)
}

func TestReconcileAbsentStopsOnFirstDeleteFailure(t *testing.T) {
	svc := &fakeService{
		volumes: []models.ObservedVolume{
			{ID: "a1", Name: "v1"},
			{ID: "b2", Name: "v1"},
			{ID: "c3", Name: "v1"},
		},
		deleteErr: map[string]error{"b2": errors.New("volume is busy")},
	}
	r, _ := newTestReconciler(svc, false)

	_, err := r.Reconcile(context.Background(), models.VolumeSpec{Name: "v1"}, models.StateAbsent)
	require.Error(t, err)
	assert.True(t, errors.Is(err, DeleteError))
	assert.Contains(t, err.Error(), "volume is busy")
	assert.Equal(t, []string{"a1"}, svc.deleted)
}

func TestReconcileAbsentRelistFailureIsDeleteError(t *testing.T) {
	svc := &fakeService{
		volumes:   []models.ObservedVolume{{ID: "a1", Name: "v1"}},
		relistErr: errors.New("service unavailable"),
	}
	r, _ := newTestReconciler(svc, false)

	_, err := r.Reconcile(context.Background(), models.VolumeSpec{Name: "v1"}, models.StateAbsent)
	require.Error(t, err)
	assert.True(t, errors.Is(err, DeleteError))
	assert.False(t, errors.Is(err, ListError))
	assert.Contains(t, err.Error(), "re-listing volumes for deletion")
	assert.Equal(t, 2, svc.listCalls)
	assert.Empty(t, svc.deleted)
}

func TestReconcileCheckModeMakesNoChanges(t *testing.T) {
	svc := &fakeService{volumes: []models.ObservedVolume{{ID: "a1", Name: "v1"}, {ID: "a2", Name: "v1"}}}
	r, _ := newTestReconciler(svc, true)

	created, err := r.Reconcile(context.Background(), models.VolumeSpec{Name: "v2", Size: 1}, models.StatePresent)
	require.NoError(t, err)
	assert.True(t, created.Changed)
	assert.Empty(t, created.VolumeID)

	deleted, err := r.Reconcile(context.Background(), models.VolumeSpec{Name: "v1"}, models.StateAbsent)
	require.NoError(t, err)
	assert.True(t, deleted.Changed)
	assert.Equal(t, []string{"a1", "a2"}, deleted.Deleted)

	assert.Empty(t, svc.created)
	assert.Empty(t, svc.deleted)
}

func TestReconcileErrorKinds(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name    string
		svc     *fakeService
		connect error
		spec    models.VolumeSpec
		state   models.State
		want    Kind
	}{
		{
			name:    "connect",
			svc:     &fakeService{},
			connect: boom,
			spec:    models.VolumeSpec{Name: "v1", Size: 1},
			state:   models.StatePresent,
			want:    ConnectionError,
		},
		{
			name:  "list",
			svc:   &fakeService{listErr: boom},
			spec:  models.VolumeSpec{Name: "v1", Size: 1},
			state: models.StatePresent,
			want:  ListError,
		},
		{
			name:  "create",
			svc:   &fakeService{createErr: boom},
			spec:  models.VolumeSpec{Name: "v1", Size: 1},
			state: models.StatePresent,
			want:  CreateError,
		},
		{
			name:  "invalid state",
			svc:   &fakeService{},
			spec:  models.VolumeSpec{Name: "v1", Size: 1},
			state: models.State("gone"),
			want:  InvalidParametersError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			connect := func(ctx context.Context) (VolumeService, error) {
				if tt.connect != nil {
					return nil, tt.connect
				}
				return tt.svc, nil
			}
			r := New(connect, Options{Logger: zerolog.Nop()})

			_, err := r.Reconcile(context.Background(), tt.spec, tt.state)
			require.Error(t, err)

			kind, ok := KindOf(err)
			require.True(t, ok)
			assert.Equal(t, tt.want, kind)
			assert.True(t, errors.Is(err, tt.want))
		})
	}
}

func TestNewErrorMessage(t *testing.T) {
	err := NewError(CreateError, errors.New("quota exceeded"), "creating volume")
	assert.Equal(t, "creating volume: quota exceeded", err.Error())
	assert.False(t, errors.Is(err, DeleteError))
}
