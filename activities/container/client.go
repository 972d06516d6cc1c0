// Package container implements hsm.ActivityImpl by running a Docker
// container for the lifetime of the activity: Start creates and runs the
// container, and the returned dispose function stops and removes it.
package container

import (
	"context"
	"fmt"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/mount"
	"github.com/docker/docker/client"

	"github.com/kandev/hsm"
	"github.com/kandev/hsm/internal/hsmlog"
)

// Config holds the Docker daemon connection settings a Provider dials with.
// The container itself (image, cmd, env, mounts) comes entirely from the
// ActivityRef's Data at Start time.
type Config struct {
	Host       string
	APIVersion string
}

// MountSpec is a single bind mount read out of an ActivityRef's Data.
type MountSpec struct {
	Source   string
	Target   string
	ReadOnly bool
}

// Provider owns a Docker client and satisfies hsm.ActivityImpl via Start.
type Provider struct {
	cli    *client.Client
	logger *hsmlog.Logger
}

// NewProvider dials Docker with the same API-version-negotiation options
// the reference host uses for its agent containers.
func NewProvider(cfg Config, log *hsmlog.Logger) (*Provider, error) {
	opts := []client.Opt{client.WithAPIVersionNegotiation()}
	if cfg.Host != "" {
		opts = append(opts, client.WithHost(cfg.Host))
	}
	if cfg.APIVersion != "" {
		opts = append(opts, client.WithVersion(cfg.APIVersion))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("container: create docker client: %w", err)
	}

	return &Provider{cli: cli, logger: log}, nil
}

// Close releases the underlying Docker client.
func (p *Provider) Close() error {
	return p.cli.Close()
}

// Start implements hsm.ActivityImpl: it reads an image, command, env and
// mount list out of activity.Data, creates and starts a container, and
// returns a dispose function that stops and removes it.
func (p *Provider) Start(ctx any, activity hsm.ActivityRef) func() {
	image, _ := activity.Data["image"].(string)
	if image == "" {
		p.logger.Error("container activity missing image")
		return nil
	}

	cmd := stringSlice(activity.Data["cmd"])
	env := stringSlice(activity.Data["env"])

	containerCfg := &container.Config{
		Image: image,
		Cmd:   cmd,
		Env:   env,
		Labels: map[string]string{
			"hsm.activity": activity.ID,
		},
	}

	hostCfg := &container.HostConfig{
		Mounts:     mounts(activity.Data["mounts"]),
		AutoRemove: false,
	}

	bg := context.Background()

	resp, err := p.cli.ContainerCreate(bg, containerCfg, hostCfg, nil, nil, "hsm-"+activity.ID)
	if err != nil {
		p.logger.Error("failed to create activity container")
		return nil
	}

	if err := p.cli.ContainerStart(bg, resp.ID, container.StartOptions{}); err != nil {
		p.logger.Error("failed to start activity container")
		return nil
	}

	containerID := resp.ID
	return func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		timeoutSeconds := 5
		_ = p.cli.ContainerStop(stopCtx, containerID, container.StopOptions{Timeout: &timeoutSeconds})
		_ = p.cli.ContainerRemove(stopCtx, containerID, container.RemoveOptions{Force: true})
	}
}

func stringSlice(v any) []string {
	raw, ok := v.([]string)
	if ok {
		return raw
	}
	anySlice, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(anySlice))
	for _, item := range anySlice {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func mounts(v any) []mount.Mount {
	specs, ok := v.([]MountSpec)
	if !ok {
		return nil
	}
	out := make([]mount.Mount, 0, len(specs))
	for _, m := range specs {
		out = append(out, mount.Mount{
			Type:     mount.TypeBind,
			Source:   m.Source,
			Target:   m.Target,
			ReadOnly: m.ReadOnly,
		})
	}
	return out
}
