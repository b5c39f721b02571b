package config

import (
	"strings"
	"time"

	"github.com/juju/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by the tool
const EnvPrefix = "CINDER_VOLUME"

// RegisterFlags declares the module parameters and host options on fs
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String(Key("cloud"), CloudOpenStack, "Storage service: openstack or aws")
	fs.String(Key("state"), "present", "Desired state of the volume: present or absent")
	fs.Int(Key("size"), 0, "Size of the volume in GB")

	fs.String(Key("login_username"), "", "Login username to authenticate to keystone (AWS: access key id)")
	fs.String(Key("login_password"), "", "Password of login user (AWS: secret access key)")
	fs.String(Key("login_tenant_name"), "", "The tenant name of the login user")
	fs.String(Key("login_domain_name"), "", "Keystone v3 domain of the login user")
	fs.String(Key("auth_url"), "", "The keystone url for authentication")
	fs.String(Key("endpoint_type"), "publicURL", "Endpoint URL type: publicURL or internalURL")
	fs.String(Key("region"), "", "Region of the volume service")

	fs.String(Key("volume_id"), "", "ID of the volume")
	fs.String(Key("volume_name"), "", "Name of the volume")
	fs.String(Key("display_description"), "", "Description of the volume")
	fs.String(Key("availability_zone"), "", "Availability zone for the volume")
	fs.String(Key("volume_type"), "", "Type of the volume")
	fs.String(Key("image_ref"), "", "Reference to an image stored in glance")
	fs.String(Key("source_volid"), "", "Create volume from volume id")
	fs.String(Key("snapshot_id"), "", "Create volume from snapshot id")

	fs.Bool(Key("check"), false, "Report what would change without creating or deleting")
	fs.String(Key("args_file"), "", "YAML or JSON file holding module parameters")
	fs.StringP(Key("output"), "o", "json", "Report format: json, yaml or table")
	fs.String(Key("log_level"), "warn", "Log level: debug, info, warn, error")
	fs.String(Key("metrics_textfile"), "", "Write Prometheus metrics to this file after the run")
	fs.Duration(Key("timeout"), 0, "Abort the run after this long (0 disables)")
	fs.Bool(Key("spinner"), false, "Show a progress spinner on stderr")
}

// NewViper binds fs and the CINDER_VOLUME_* environment into a fresh viper instance
func NewViper(fs *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	if err := v.BindPFlags(fs); err != nil {
		return nil, errors.Annotate(err, "binding flags")
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v, nil
}

// Options are the host-side settings that are not module parameters
type Options struct {
	ArgsFile        string
	Output          string
	LogLevel        string
	MetricsTextfile string
	Timeout         time.Duration
	Spinner         bool
}

// LoadOptions reads the host-side settings bound in v
func LoadOptions(v *viper.Viper) Options {
	return Options{
		ArgsFile:        v.GetString(Key("args_file")),
		Output:          v.GetString(Key("output")),
		LogLevel:        v.GetString(Key("log_level")),
		MetricsTextfile: v.GetString(Key("metrics_textfile")),
		Timeout:         v.GetDuration(Key("timeout")),
		Spinner:         v.GetBool(Key("spinner")),
	}
}
