package rclone

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"strings"

	"clipmill/internal/command"
	"clipmill/internal/logging"
	"clipmill/internal/services"
)

// Mode selects whether uploads keep the local file.
type Mode string

const (
	ModeMove Mode = "move"
	ModeCopy Mode = "copy"
)

// Option configures optional Client behaviour.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec command.Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logging.NewComponentLogger(logger, "rclone")
	}
}

// Client runs rclone commands.
type Client struct {
	binary string
	exec   command.Executor
	logger *slog.Logger
}

// New constructs a Client.
func New(binary string, opts ...Option) (*Client, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		return nil, errors.New("rclone binary required")
	}
	c := &Client{binary: binary, exec: command.Default(), logger: logging.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// JoinRemote appends name to a remote such as "gdrive:clips" or "s3:bucket/".
func JoinRemote(remote, name string) string {
	remote = strings.TrimRight(remote, "/")
	if strings.HasSuffix(remote, ":") {
		return remote + name
	}
	return path.Join(remote, name)
}

// Transfer copies or moves a single file, naming the destination exactly.
func (c *Client) Transfer(ctx context.Context, mode Mode, src, dst string) error {
	var verb string
	switch mode {
	case ModeMove:
		verb = "moveto"
	case ModeCopy:
		verb = "copyto"
	default:
		return fmt.Errorf("unknown rclone mode %q", mode)
	}
	return c.run(ctx, nil, verb, src, dst)
}

// List returns the file names directly under remote.
func (c *Client) List(ctx context.Context, remote string) ([]string, error) {
	var names []string
	err := c.run(ctx, func(line string) {
		if name := strings.TrimSpace(line); name != "" && !strings.HasSuffix(name, "/") {
			names = append(names, name)
		}
	}, "lsf", "--files-only", remote)
	if err != nil {
		return nil, err
	}
	return names, nil
}

func (c *Client) run(ctx context.Context, onOutput func(string), args ...string) error {
	cmd := command.Command{Binary: c.binary, Args: args}
	logging.WithContext(ctx, c.logger).Debug("running rclone", logging.String("command", cmd.String()))
	if err := cmd.Run(ctx, c.exec, onOutput); err != nil {
		return services.Wrap(services.ErrExternalTool, "rclone", args[0], "", err)
	}
	return nil
}

// Uploader delivers clips to <remote>/<file name>.
type Uploader struct {
	client *Client
	remote string
	mode   Mode
}

// NewUploader constructs an Uploader.
func NewUploader(client *Client, remote string, mode Mode) (*Uploader, error) {
	if client == nil {
		return nil, errors.New("rclone client required")
	}
	if strings.TrimSpace(remote) == "" {
		return nil, errors.New("rclone remote required")
	}
	if mode == "" {
		mode = ModeMove
	}
	return &Uploader{client: client, remote: remote, mode: mode}, nil
}

// Upload transfers path to the remote.
func (u *Uploader) Upload(ctx context.Context, path string) error {
	dst := JoinRemote(u.remote, filepath.Base(path))
	if err := u.client.Transfer(ctx, u.mode, path, dst); err != nil {
		return services.Wrap(services.ErrUpload, "upload", "rclone", dst, err)
	}
	return nil
}

// Destination is the remote clips are delivered to.
func (u *Uploader) Destination() string { return u.remote }

// List returns the clip names already at the destination.
func (u *Uploader) List(ctx context.Context) ([]string, error) {
	return u.client.List(ctx, u.remote)
}
