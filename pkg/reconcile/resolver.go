package reconcile

import (
	"context"

	"github.com/younsl/cinder-volume/internal/models"
)

// VolumeService is the storage service contract the reconciler drives.
// Implementations live in pkg/openstack and pkg/aws.
type VolumeService interface {
	// ListVolumes returns every volume visible to the account, in service order.
	ListVolumes(ctx context.Context) ([]models.ObservedVolume, error)
	// CreateVolume requests a new volume and returns its identifier once
	// the service has accepted the request.
	CreateVolume(ctx context.Context, spec models.VolumeSpec) (string, error)
	DeleteVolume(ctx context.Context, volumeID string) error
}

// Resolve returns the identifier of the first listed volume matching spec by
// display name or identifier. found is false when nothing matches.
func Resolve(ctx context.Context, svc VolumeService, spec models.VolumeSpec) (volumeID string, found bool, err error) {
	volumes, err := svc.ListVolumes(ctx)
	if err != nil {
		return "", false, NewError(ListError, err, "fetching volume list")
	}
	if v, ok := firstMatch(volumes, spec); ok {
		return v.ID, true, nil
	}
	return "", false, nil
}

func firstMatch(volumes []models.ObservedVolume, spec models.VolumeSpec) (models.ObservedVolume, bool) {
	for _, v := range volumes {
		if spec.Matches(v) {
			return v, true
		}
	}
	return models.ObservedVolume{}, false
}

func allMatches(volumes []models.ObservedVolume, spec models.VolumeSpec) []models.ObservedVolume {
	var matches []models.ObservedVolume
	for _, v := range volumes {
		if spec.Matches(v) {
			matches = append(matches, v)
		}
	}
	return matches
}
