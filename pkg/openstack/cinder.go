package openstack

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-goose/goose/v5/cinder"
	"github.com/go-goose/goose/v5/client"
	gooseerrors "github.com/go-goose/goose/v5/errors"
	"github.com/go-goose/goose/v5/identity"
	"github.com/juju/errors"
	"github.com/rs/zerolog"

	"github.com/younsl/cinder-volume/internal/models"
	"github.com/younsl/cinder-volume/pkg/logging"
)

const (
	EndpointTypePublic   = "publicURL"
	EndpointTypeInternal = "internalURL"

	// DefaultRegion is the region devstack and most single-region clouds register.
	DefaultRegion = "RegionOne"
)

// volumeServiceTypes lists catalog service types for the block-storage API,
// newest first.
var volumeServiceTypes = []string{"volumev3", "volumev2", "volume"}

// Credentials holds what is needed to authenticate against Keystone
type Credentials struct {
	Username     string
	Password     string
	TenantName   string
	AuthURL      string
	DomainName   string
	Region       string
	EndpointType string
}

// Validate checks that the mandatory credentials are non-empty. Formats are
// left to the identity service.
func (c Credentials) Validate() error {
	required := []struct{ name, value string }{
		{"login_username", c.Username},
		{"login_password", c.Password},
		{"login_tenant_name", c.TenantName},
		{"auth_url", c.AuthURL},
	}
	for _, r := range required {
		if r.value == "" {
			return errors.NotValidf("empty %s", r.name)
		}
	}
	return nil
}

// authenticatingClient is the part of goose's client.AuthenticatingClient used here.
type authenticatingClient interface {
	Authenticate() error
	EndpointsForRegion(region string) identity.ServiceURLs
	TenantId() string
	Token() string
}

// cinderAPI is the part of *cinder.Client used here.
type cinderAPI interface {
	GetVolumesDetail() (*cinder.GetVolumesDetailResults, error)
	CreateVolume(cinder.CreateVolumeVolumeParams) (*cinder.CreateVolumeResults, error)
	DeleteVolume(volumeId string) error
}

var newAuthClient = func(creds *identity.Credentials, mode identity.AuthMode, logger zerolog.Logger, httpClient *http.Client) authenticatingClient {
	return client.NewClient(creds, mode, logging.CompatLogger{Logger: logger}, client.WithHTTPClient(httpClient))
}

// newCinderClient returns a factory of Cinder clients whose requests are
// bound to the context of the call that builds them.
var newCinderClient = func(endpoint *url.URL, auth authenticatingClient, httpClient *http.Client) func(context.Context) cinderAPI {
	return func(ctx context.Context) cinderAPI {
		return cinder.NewClient(auth.TenantId(), endpoint, cinder.SetAuthHeaderFn(auth.Token, contextHandler(ctx, httpClient)))
	}
}

func contextHandler(ctx context.Context, httpClient *http.Client) func(*http.Request) (*http.Response, error) {
	return func(req *http.Request) (*http.Response, error) {
		return httpClient.Do(req.WithContext(ctx))
	}
}

// newHTTPClient bounds the whole exchange by the context deadline. goose's
// identity client takes no context, so the timeout is its only limit.
func newHTTPClient(ctx context.Context) *http.Client {
	c := &http.Client{}
	if deadline, ok := ctx.Deadline(); ok {
		c.Timeout = time.Until(deadline)
	}
	return c
}

// CinderClient talks to the Cinder block-storage API of one tenant
type CinderClient struct {
	api    func(context.Context) cinderAPI
	logger zerolog.Logger
}

// Connect authenticates against Keystone and returns a client bound to the
// tenant's volume endpoint. It performs one round-trip to the identity service.
func Connect(ctx context.Context, creds Credentials, logger zerolog.Logger) (*CinderClient, error) {
	if err := creds.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Trace(err)
	}
	logger = logger.With().Str("component", "cinder").Logger()

	region := creds.Region
	if region == "" {
		region = DefaultRegion
	}
	if creds.EndpointType == EndpointTypeInternal {
		logger.Warn().Msg("identity catalog only exposes public endpoints, using publicURL for the volume service")
	}

	httpClient := newHTTPClient(ctx)
	authClient := newAuthClient(&identity.Credentials{
		URL:        creds.AuthURL,
		User:       creds.Username,
		Secrets:    creds.Password,
		TenantName: creds.TenantName,
		Region:     region,
		Domain:     creds.DomainName,
	}, authMode(creds.AuthURL), logger, httpClient)

	if err := authenticate(ctx, authClient, logger); err != nil {
		return nil, errors.Trace(err)
	}

	endpoint, err := volumeEndpoint(authClient.EndpointsForRegion(region), region)
	if err != nil {
		return nil, errors.Trace(err)
	}
	endpointURL, err := url.Parse(endpoint)
	if err != nil {
		return nil, errors.Annotate(err, "parsing volume endpoint")
	}
	logger.Debug().Str("endpoint", endpointURL.Redacted()).Msg("using volume endpoint")

	return &CinderClient{
		api:    newCinderClient(endpointURL, authClient, httpClient),
		logger: logger,
	}, nil
}

// authenticate returns when Keystone answers or ctx is done, whichever
// comes first.
func authenticate(ctx context.Context, auth authenticatingClient, logger zerolog.Logger) error {
	done := make(chan error, 1)
	go func() { done <- auth.Authenticate() }()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		return errors.Annotate(ctx.Err(), "authentication failed")
	}
	if err != nil {
		logger.Debug().Err(err).Msg("Authenticate() failed")
		if gooseerrors.IsUnauthorised(err) {
			return errors.Annotate(err, "authentication failed, check the credentials and tenant name")
		}
		return errors.Annotate(err, "authentication failed")
	}
	return nil
}

// authMode picks Keystone v3 when the auth URL names it, v2 otherwise.
func authMode(authURL string) identity.AuthMode {
	u, err := url.Parse(authURL)
	if err != nil {
		return identity.AuthUserPass
	}
	path := strings.ToLower(strings.TrimRight(u.Path, "/"))
	if strings.HasSuffix(path, "/v3") {
		return identity.AuthUserPassV3
	}
	return identity.AuthUserPass
}

func volumeEndpoint(endpoints identity.ServiceURLs, region string) (string, error) {
	for _, serviceType := range volumeServiceTypes {
		if endpoint, ok := endpoints[serviceType]; ok && endpoint != "" {
			return endpoint, nil
		}
	}
	return "", errors.NotFoundf("volume endpoint for region %q", region)
}

// ListVolumes returns every volume visible to the tenant, in the order the
// service reports them.
func (c *CinderClient) ListVolumes(ctx context.Context) ([]models.ObservedVolume, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.Trace(err)
	}
	resp, err := c.api(ctx).GetVolumesDetail()
	if err != nil {
		return nil, errors.Trace(err)
	}
	volumes := make([]models.ObservedVolume, 0, len(resp.Volumes))
	for _, v := range resp.Volumes {
		volumes = append(volumes, models.ObservedVolume{
			ID:               v.ID,
			Name:             v.Name,
			Size:             v.Size,
			Status:           v.Status,
			VolumeType:       v.VolumeType,
			AvailabilityZone: v.AvailabilityZone,
		})
	}
	c.logger.Debug().Int("count", len(volumes)).Msg("listed volumes")
	return volumes, nil
}

// CreateVolume requests a new volume. It returns as soon as Cinder has
// accepted the request; the volume may still be provisioning.
func (c *CinderClient) CreateVolume(ctx context.Context, spec models.VolumeSpec) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", errors.Trace(err)
	}
	resp, err := c.api(ctx).CreateVolume(createParams(spec))
	if err != nil {
		return "", errors.Trace(err)
	}
	return resp.Volume.ID, nil
}

func createParams(spec models.VolumeSpec) cinder.CreateVolumeVolumeParams {
	return cinder.CreateVolumeVolumeParams{
		Size:             spec.Size,
		Name:             spec.Name,
		Description:      spec.Description,
		SnapshotId:       spec.SnapshotID,
		SourceVolid:      spec.SourceVolumeID,
		ImageRef:         spec.ImageRef,
		VolumeType:       spec.VolumeType,
		AvailabilityZone: spec.AvailabilityZone,
	}
}

// DeleteVolume deletes the volume with the given identifier
func (c *CinderClient) DeleteVolume(ctx context.Context, volumeID string) error {
	if err := ctx.Err(); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(c.api(ctx).DeleteVolume(volumeID))
}
