// Package region reads the host's region and availability zone from the EC2 instance
// metadata service. Nothing is cached.
package region

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"
)

const availabilityZonePath = "placement/availability-zone"

type API interface {
	GetRegion(ctx context.Context, in *imds.GetRegionInput, optFns ...func(*imds.Options)) (*imds.GetRegionOutput, error)
	GetMetadata(ctx context.Context, in *imds.GetMetadataInput, optFns ...func(*imds.Options)) (*imds.GetMetadataOutput, error)
}

type Placement struct {
	Region string `json:"region"`
	AZ     string `json:"az"`
}

type Probe struct {
	api API
}

func NewProbe(api API) *Probe {
	return &Probe{api: api}
}

func (p *Probe) Lookup(ctx context.Context) (Placement, error) {
	reg, err := p.api.GetRegion(ctx, &imds.GetRegionInput{})
	if err != nil {
		return Placement{}, fmt.Errorf("imds region: %w", err)
	}
	out, err := p.api.GetMetadata(ctx, &imds.GetMetadataInput{Path: availabilityZonePath})
	if err != nil {
		return Placement{}, fmt.Errorf("imds availability zone: %w", err)
	}
	defer out.Content.Close()
	az, err := io.ReadAll(out.Content)
	if err != nil {
		return Placement{}, fmt.Errorf("read availability zone: %w", err)
	}
	return Placement{Region: reg.Region, AZ: strings.TrimSpace(string(az))}, nil
}
