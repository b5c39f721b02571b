package reconcile

import (
	"context"

	"github.com/dustin/go-humanize"
	"github.com/juju/errors"
	"github.com/rs/zerolog"

	"github.com/younsl/cinder-volume/internal/models"
)

// ConnectFunc builds an authenticated handle to the storage service.
type ConnectFunc func(ctx context.Context) (VolumeService, error)

// Options tunes a Reconciler
type Options struct {
	// CheckMode resolves state but skips create and delete calls.
	CheckMode bool
	Logger    zerolog.Logger
}

// Reconciler converges one volume to its desired state
type Reconciler struct {
	connect   ConnectFunc
	checkMode bool
	logger    zerolog.Logger
}

// New creates a Reconciler that obtains its storage client from connect
func New(connect ConnectFunc, opts Options) *Reconciler {
	return &Reconciler{
		connect:   connect,
		checkMode: opts.CheckMode,
		logger:    opts.Logger.With().Str("component", "reconciler").Logger(),
	}
}

// Reconcile compares the observed volumes with spec and issues at most one
// kind of corrective action. The result is only returned once every remote
// call it depends on has succeeded.
func (r *Reconciler) Reconcile(ctx context.Context, spec models.VolumeSpec, state models.State) (models.Result, error) {
	switch state {
	case models.StatePresent:
		if !spec.HasIdentity() {
			return models.Result{}, NewError(MissingIdentityError, nil,
				"parameter 'volume_name' or 'volume_id' is required if state == 'present'")
		}
	case models.StateAbsent:
	default:
		return models.Result{}, NewError(InvalidParametersError, errors.NotValidf("state %q", state), "checking desired state")
	}

	svc, err := r.connect(ctx)
	if err != nil {
		return models.Result{}, NewError(ConnectionError, err, "connecting to volume service")
	}

	volumeID, found, err := Resolve(ctx, svc, spec)
	if err != nil {
		return models.Result{}, err
	}
	logger := r.logger.With().Str("state", string(state)).Bool("found", found).Logger()

	if state == models.StatePresent {
		return r.ensurePresent(ctx, svc, spec, volumeID, found, logger)
	}
	return r.ensureAbsent(ctx, svc, spec, found, logger)
}

func (r *Reconciler) ensurePresent(ctx context.Context, svc VolumeService, spec models.VolumeSpec,
	volumeID string, found bool, logger zerolog.Logger) (models.Result, error) {
	if found {
		logger.Debug().Str("volume_id", volumeID).Msg("volume already present")
		return models.Result{Changed: false, VolumeID: volumeID, Result: models.OutcomeSuccess}, nil
	}

	size := humanize.IBytes(uint64(spec.Size) << 30)
	if r.checkMode {
		logger.Info().Str("size", size).Msg("check mode: volume would be created")
		return models.Result{Changed: true, Result: models.OutcomeSuccess}, nil
	}

	logger.Info().Str("name", spec.Name).Str("size", size).Msg("creating volume")
	newID, err := svc.CreateVolume(ctx, spec)
	if err != nil {
		return models.Result{}, NewError(CreateError, err, "creating volume")
	}
	logger.Info().Str("volume_id", newID).Msg("volume created")
	return models.Result{Changed: true, VolumeID: newID, Result: models.OutcomeSuccess}, nil
}

func (r *Reconciler) ensureAbsent(ctx context.Context, svc VolumeService, spec models.VolumeSpec,
	found bool, logger zerolog.Logger) (models.Result, error) {
	if !found {
		logger.Debug().Msg("volume not present")
		return models.Result{Changed: false, Result: models.OutcomeNotPresent}, nil
	}

	// Every match is deleted, not only the one Resolve returned.
	volumes, err := svc.ListVolumes(ctx)
	if err != nil {
		return models.Result{}, NewError(DeleteError, err, "re-listing volumes for deletion")
	}
	matches := allMatches(volumes, spec)

	deleted := make([]string, 0, len(matches))
	for _, v := range matches {
		if r.checkMode {
			logger.Info().Str("volume_id", v.ID).Msg("check mode: volume would be deleted")
			deleted = append(deleted, v.ID)
			continue
		}
		logger.Info().Str("volume_id", v.ID).Str("name", v.Name).Msg("deleting volume")
		if err := svc.DeleteVolume(ctx, v.ID); err != nil {
			return models.Result{}, NewError(DeleteError, err, "deleting volume "+v.ID)
		}
		deleted = append(deleted, v.ID)
	}
	return models.Result{Changed: true, Result: models.OutcomeDeleted, Deleted: deleted}, nil
}
