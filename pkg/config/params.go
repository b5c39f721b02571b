package config

import (
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/juju/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/younsl/cinder-volume/internal/models"
	"github.com/younsl/cinder-volume/pkg/aws"
	"github.com/younsl/cinder-volume/pkg/openstack"
)

const (
	CloudOpenStack = "openstack"
	CloudAWS       = "aws"
)

// Params are the module parameters as supplied by the calling automation engine
type Params struct {
	Cloud string `param:"cloud" validate:"oneof=openstack aws"`
	State string `param:"state" validate:"oneof=present absent"`
	Size  int    `param:"size" validate:"required,gt=0"`

	LoginUsername   string `param:"login_username" validate:"required_if=Cloud openstack"`
	LoginPassword   string `param:"login_password" validate:"required_if=Cloud openstack"`
	LoginTenantName string `param:"login_tenant_name" validate:"required_if=Cloud openstack"`
	LoginDomainName string `param:"login_domain_name"`
	AuthURL         string `param:"auth_url" validate:"required_if=Cloud openstack"`
	EndpointType    string `param:"endpoint_type" validate:"oneof=publicURL internalURL"`
	Region          string `param:"region"`

	VolumeID           string `param:"volume_id" validate:"excluded_with=VolumeName"`
	VolumeName         string `param:"volume_name"`
	DisplayDescription string `param:"display_description"`
	AvailabilityZone   string `param:"availability_zone"`
	VolumeType         string `param:"volume_type"`
	ImageRef           string `param:"image_ref" validate:"excluded_with=SourceVolID SnapshotID"`
	SourceVolID        string `param:"source_volid" validate:"excluded_with=SnapshotID"`
	SnapshotID         string `param:"snapshot_id"`

	CheckMode bool `param:"check"`
}

var validate = validator.New()

func init() {
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return fld.Tag.Get("param")
	})
}

// Key returns the viper key of a parameter. Keys use dashes so they line up
// with the command-line flags; the args file and env vars use underscores.
func Key(param string) string {
	return strings.ReplaceAll(param, "_", "-")
}

// Load reads the parameters bound in v
func Load(v *viper.Viper) Params {
	return Params{
		Cloud:              v.GetString(Key("cloud")),
		State:              v.GetString(Key("state")),
		Size:               v.GetInt(Key("size")),
		LoginUsername:      v.GetString(Key("login_username")),
		LoginPassword:      v.GetString(Key("login_password")),
		LoginTenantName:    v.GetString(Key("login_tenant_name")),
		LoginDomainName:    v.GetString(Key("login_domain_name")),
		AuthURL:            v.GetString(Key("auth_url")),
		EndpointType:       v.GetString(Key("endpoint_type")),
		Region:             v.GetString(Key("region")),
		VolumeID:           v.GetString(Key("volume_id")),
		VolumeName:         v.GetString(Key("volume_name")),
		DisplayDescription: v.GetString(Key("display_description")),
		AvailabilityZone:   v.GetString(Key("availability_zone")),
		VolumeType:         v.GetString(Key("volume_type")),
		ImageRef:           v.GetString(Key("image_ref")),
		SourceVolID:        v.GetString(Key("source_volid")),
		SnapshotID:         v.GetString(Key("snapshot_id")),
		CheckMode:          v.GetBool(Key("check")),
	}
}

// MergeArgsFile merges a YAML or JSON args file into v below flags and env.
// Keys may be written the way the automation engine passes them
// (login_username) or as flags (login-username).
func MergeArgsFile(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Annotate(err, "reading args file")
	}
	raw := make(map[string]interface{})
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return errors.Annotatef(err, "parsing args file %s", path)
	}
	normalized := make(map[string]interface{}, len(raw))
	for k, val := range raw {
		normalized[Key(k)] = val
	}
	return errors.Trace(v.MergeConfigMap(normalized))
}

// Validate checks parameter presence, enums and mutual exclusion
func (p Params) Validate() error {
	err := validate.Struct(p)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return errors.Trace(err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return errors.NewNotValid(nil, strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if":
		return "missing required parameter: " + fe.Field()
	case "gt":
		return "parameter " + fe.Field() + " must be greater than " + fe.Param()
	case "oneof":
		return "value of " + fe.Field() + " must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "excluded_with":
		return "parameters are mutually exclusive: " + fe.Field() + "|" + strings.Join(paramNames(fe.Param()), "|")
	}
	return "invalid parameter " + fe.Field()
}

func paramNames(fields string) []string {
	t := reflect.TypeOf(Params{})
	var names []string
	for _, name := range strings.Fields(fields) {
		if f, ok := t.FieldByName(name); ok {
			names = append(names, f.Tag.Get("param"))
		}
	}
	return names
}

// Spec converts the parameters into the desired volume attributes
func (p Params) Spec() models.VolumeSpec {
	return models.VolumeSpec{
		Size:             p.Size,
		ID:               p.VolumeID,
		Name:             p.VolumeName,
		Description:      p.DisplayDescription,
		SourceVolumeID:   p.SourceVolID,
		SnapshotID:       p.SnapshotID,
		ImageRef:         p.ImageRef,
		VolumeType:       p.VolumeType,
		AvailabilityZone: p.AvailabilityZone,
	}
}

// DesiredState returns the requested end-state
func (p Params) DesiredState() models.State {
	return models.State(p.State)
}

// OpenStackCredentials returns the Keystone credentials
func (p Params) OpenStackCredentials() openstack.Credentials {
	return openstack.Credentials{
		Username:     p.LoginUsername,
		Password:     p.LoginPassword,
		TenantName:   p.LoginTenantName,
		AuthURL:      p.AuthURL,
		DomainName:   p.LoginDomainName,
		Region:       p.Region,
		EndpointType: p.EndpointType,
	}
}

// EBSCredentials maps the login parameters onto AWS access keys
func (p Params) EBSCredentials() aws.EBSCredentials {
	return aws.EBSCredentials{
		Region:          p.Region,
		AccessKeyID:     p.LoginUsername,
		SecretAccessKey: p.LoginPassword,
	}
}
