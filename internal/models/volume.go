package models

// State is the desired end-state of a volume
type State string

const (
	StatePresent State = "present"
	StateAbsent  State = "absent"
)

// Outcome strings reported back to the caller
const (
	OutcomeSuccess    = "success"
	OutcomeNotPresent = "not present"
	OutcomeDeleted    = "deleted"
)

// VolumeSpec holds the desired attributes of a block-storage volume
type VolumeSpec struct {
	Size             int // GiB
	ID               string
	Name             string
	Description      string
	SourceVolumeID   string
	SnapshotID       string
	ImageRef         string
	VolumeType       string
	AvailabilityZone string
}

// HasIdentity reports whether the spec carries a match key
func (s VolumeSpec) HasIdentity() bool {
	return s.ID != "" || s.Name != ""
}

// Matches reports whether an observed volume is identified by the spec.
// Unset keys never match.
func (s VolumeSpec) Matches(v ObservedVolume) bool {
	if s.Name != "" && v.Name == s.Name {
		return true
	}
	return s.ID != "" && v.ID == s.ID
}

// ObservedVolume is a volume as reported by the storage service at query time
type ObservedVolume struct {
	ID               string
	Name             string
	Size             int
	Status           string
	VolumeType       string
	AvailabilityZone string
}

// Result is the report of a single reconciliation
type Result struct {
	Changed  bool     `json:"changed" yaml:"changed"`
	VolumeID string   `json:"volume_id,omitempty" yaml:"volume_id,omitempty"`
	Result   string   `json:"result" yaml:"result"`
	Deleted  []string `json:"deleted,omitempty" yaml:"deleted,omitempty"`
}
