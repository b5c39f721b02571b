package aws

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/juju/errors"
	"github.com/rs/zerolog"

	"github.com/younsl/cinder-volume/internal/models"
	"github.com/younsl/cinder-volume/pkg/utils"
)

// EBSCredentials selects the region and, optionally, static keys.
// Without keys the default AWS credential chain is used.
type EBSCredentials struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
}

// ec2API is the part of *ec2.Client used here
type ec2API interface {
	DescribeAvailabilityZones(ctx context.Context, params *ec2.DescribeAvailabilityZonesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeAvailabilityZonesOutput, error)
	DescribeVolumes(ctx context.Context, params *ec2.DescribeVolumesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeVolumesOutput, error)
	CreateVolume(ctx context.Context, params *ec2.CreateVolumeInput, optFns ...func(*ec2.Options)) (*ec2.CreateVolumeOutput, error)
	DeleteVolume(ctx context.Context, params *ec2.DeleteVolumeInput, optFns ...func(*ec2.Options)) (*ec2.DeleteVolumeOutput, error)
}

// EBSClient struct for EBS client
type EBSClient struct {
	client ec2API
	region string
	logger zerolog.Logger
}

// NewEBSClient creates a new EBSClient and checks the credentials with one
// DescribeAvailabilityZones round-trip.
func NewEBSClient(ctx context.Context, creds EBSCredentials, logger zerolog.Logger) (*EBSClient, error) {
	region := creds.Region
	if region == "" {
		region = utils.GetDefaultRegion()
	}
	if !utils.IsValidRegion(region) {
		logger.Warn().Str("region", region).Msg("region is not in the known region list")
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}
	if creds.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(creds.AccessKeyID, creds.SecretAccessKey, "")))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Annotate(err, "loading AWS config")
	}

	c := &EBSClient{
		client: ec2.NewFromConfig(cfg),
		region: region,
		logger: logger.With().Str("component", "ebs").Str("region", region).Logger(),
	}
	if _, err := c.client.DescribeAvailabilityZones(ctx, &ec2.DescribeAvailabilityZonesInput{}); err != nil {
		return nil, errors.Annotatef(err, "reaching EC2 in %s (%s)", region, utils.GetRegionDescriptiveName(region))
	}
	return c, nil
}

// ListVolumes returns the volumes of the region as one DescribeVolumes page.
// The display name is the Name tag.
func (c *EBSClient) ListVolumes(ctx context.Context) ([]models.ObservedVolume, error) {
	result, err := c.client.DescribeVolumes(ctx, &ec2.DescribeVolumesInput{})
	if err != nil {
		return nil, errors.Annotate(err, "querying EBS volumes")
	}

	volumes := make([]models.ObservedVolume, 0, len(result.Volumes))
	for _, volume := range result.Volumes {
		volumes = append(volumes, models.ObservedVolume{
			ID:               utils.SafeDeref(volume.VolumeId),
			Name:             utils.GetName(volume.Tags),
			Size:             int(aws.ToInt32(volume.Size)),
			Status:           string(volume.State),
			VolumeType:       string(volume.VolumeType),
			AvailabilityZone: utils.SafeDeref(volume.AvailabilityZone),
		})
	}
	c.logger.Debug().Int("count", len(volumes)).Msg("listed volumes")
	return volumes, nil
}

// CreateVolume creates an EBS volume. EBS needs an availability zone and
// cannot clone volumes or build them from images.
func (c *EBSClient) CreateVolume(ctx context.Context, spec models.VolumeSpec) (string, error) {
	if spec.AvailabilityZone == "" {
		return "", errors.NotValidf("empty availability_zone for EBS volume")
	}
	if spec.ImageRef != "" {
		return "", errors.NotSupportedf("image_ref on EBS")
	}
	if spec.SourceVolumeID != "" {
		return "", errors.NotSupportedf("source_volid on EBS")
	}

	input := &ec2.CreateVolumeInput{
		AvailabilityZone: aws.String(spec.AvailabilityZone),
		Size:             aws.Int32(int32(spec.Size)),
	}
	if spec.SnapshotID != "" {
		input.SnapshotId = aws.String(spec.SnapshotID)
	}
	if spec.VolumeType != "" {
		input.VolumeType = types.VolumeType(spec.VolumeType)
	}
	if tags := volumeTags(spec); len(tags) > 0 {
		input.TagSpecifications = []types.TagSpecification{{
			ResourceType: types.ResourceTypeVolume,
			Tags:         utils.ConvertToEC2Tags(tags),
		}}
	}

	result, err := c.client.CreateVolume(ctx, input)
	if err != nil {
		return "", errors.Annotate(err, "creating EBS volume")
	}
	return utils.SafeDeref(result.VolumeId), nil
}

func volumeTags(spec models.VolumeSpec) map[string]string {
	tags := make(map[string]string)
	if spec.Name != "" {
		tags["Name"] = spec.Name
	}
	if spec.Description != "" {
		tags["Description"] = spec.Description
	}
	return tags
}

// DeleteVolume deletes the volume with the given identifier
func (c *EBSClient) DeleteVolume(ctx context.Context, volumeID string) error {
	_, err := c.client.DeleteVolume(ctx, &ec2.DeleteVolumeInput{VolumeId: aws.String(volumeID)})
	if err != nil {
		return errors.Annotatef(err, "deleting EBS volume %s", volumeID)
	}
	return nil
}
