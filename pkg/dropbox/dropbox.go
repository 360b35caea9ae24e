package dropbox

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/dropbox/dropbox-sdk-go-unofficial/v6/dropbox"
	"github.com/dropbox/dropbox-sdk-go-unofficial/v6/dropbox/files"
	"github.com/xhad/docbot/internal/types"
	"golang.org/x/time/rate"
)

// filesAPI is the subset of files.Client the lister and fetcher use.
type filesAPI interface {
	ListFolder(arg *files.ListFolderArg) (*files.ListFolderResult, error)
	ListFolderContinue(arg *files.ListFolderContinueArg) (*files.ListFolderResult, error)
	Download(arg *files.DownloadArg) (*files.FileMetadata, io.ReadCloser, error)
}

type ClientConfig struct {
	AccessToken    string
	RateLimit      float64 // downloads per second
	IgnorePatterns []string
	Timeout        time.Duration // per request, 0 means none
	OnProgress     func(path string)
}

type Client struct {
	config  ClientConfig
	api     filesAPI
	limiter *rate.Limiter
}

func NewWithConfig(config ClientConfig) (*Client, error) {
	if config.AccessToken == "" {
		return nil, fmt.Errorf("dropbox access token is required")
	}
	api := files.New(dropbox.Config{
		Token:    config.AccessToken,
		LogLevel: dropbox.LogOff,
		Client:   &http.Client{Timeout: config.Timeout},
	})

	return newWithAPI(config, api), nil
}

func newWithAPI(config ClientConfig, api filesAPI) *Client {
	if config.RateLimit == 0 {
		config.RateLimit = 5
	}

	return &Client{
		config:  config,
		api:     api,
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
	}
}

// ListFiles returns the lowercased paths of the files directly inside
// folder. Sub-folders and deleted entries are left out.
func (c *Client) ListFiles(ctx context.Context, folder string) ([]string, error) {
	result, err := c.api.ListFolder(files.NewListFolderArg(normalizeFolder(folder)))
	if err != nil {
		return nil, types.NewPathFault(types.ListingFault, "list folder", folder, err)
	}

	var paths []string
	for {
		for _, entry := range result.Entries {
			meta, ok := entry.(*files.FileMetadata)
			if !ok {
				continue
			}
			if c.shouldProcessPath(meta.PathLower) {
				paths = append(paths, meta.PathLower)
			}
		}

		if !result.HasMore {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, types.NewPathFault(types.ListingFault, "list folder", folder, err)
		}

		result, err = c.api.ListFolderContinue(files.NewListFolderContinueArg(result.Cursor))
		if err != nil {
			return nil, types.NewPathFault(types.ListingFault, "list folder", folder, err)
		}
	}

	return paths, nil
}

// Download returns the full content of the file at path.
func (c *Client) Download(ctx context.Context, path string) ([]byte, error) {
	// Apply rate limiting
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, types.NewPathFault(types.FetchFault, "download", path, err)
	}

	if c.config.OnProgress != nil {
		c.config.OnProgress(path)
	}

	_, content, err := c.api.Download(files.NewDownloadArg(path))
	if err != nil {
		return nil, types.NewPathFault(types.FetchFault, "download", path, err)
	}
	defer content.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, content); err != nil {
		return nil, types.NewPathFault(types.FetchFault, "download", path, err)
	}

	return buf.Bytes(), nil
}

func (c *Client) shouldProcessPath(path string) bool {
	for _, pattern := range c.config.IgnorePatterns {
		if ok, _ := doublestar.Match(strings.ToLower(pattern), path); ok {
			return false
		}
	}
	return true
}

// normalizeFolder maps the root folder to the empty path the API expects.
func normalizeFolder(folder string) string {
	folder = strings.TrimSpace(folder)
	if folder == "/" {
		return ""
	}
	return strings.TrimSuffix(folder, "/")
}
