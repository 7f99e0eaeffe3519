package assets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/pitchcast/pitch-orchestrator/config"
)

// Hoster publishes a local asset at a publicly reachable URL for video
// backends that cannot read local files.
type Hoster interface {
	Host(ctx context.Context, filename string, data []byte) (string, error)
}

// NewHoster selects the hosting backend from config.
func NewHoster(cfg config.Hosting) (Hoster, error) {
	switch cfg.Mode {
	case "", "anon":
		return &AnonHost{UploadURL: cfg.AnonURL, hc: &http.Client{Timeout: 60 * time.Second}}, nil
	case "s3":
		return newS3Host(cfg)
	default:
		return nil, fmt.Errorf("unknown asset host mode %q", cfg.Mode)
	}
}

// AnonHost posts files to a keyless public file host. Good enough for
// short-lived face images; nothing sensitive should go through it.
type AnonHost struct {
	UploadURL string
	hc        *http.Client
}

type anonResponse struct {
	Success bool `json:"success"`
	Files   []struct {
		URL string `json:"url"`
	} `json:"files"`
}

func (h *AnonHost) Host(ctx context.Context, filename string, data []byte) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("files[]", filepath.Base(filename))
	if err != nil {
		return "", fmt.Errorf("building upload form: %w", err)
	}
	if _, err := fw.Write(data); err != nil {
		return "", fmt.Errorf("building upload form: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("building upload form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.UploadURL, &buf)
	if err != nil {
		return "", fmt.Errorf("creating upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := h.hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("uploading to %s: %w", h.UploadURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading upload response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("upload host status %d: %s", resp.StatusCode, body)
	}

	var parsed anonResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("parsing upload response: %w", err)
	}
	if !parsed.Success || len(parsed.Files) == 0 || parsed.Files[0].URL == "" {
		return "", fmt.Errorf("upload host returned no file URL")
	}
	return parsed.Files[0].URL, nil
}

// S3Host uploads to an S3-compatible bucket (R2 works) fronted by a public
// base URL.
type S3Host struct {
	client    *s3.Client
	bucket    string
	publicURL string
}

func newS3Host(cfg config.Hosting) (*S3Host, error) {
	if cfg.Bucket == "" || cfg.PublicURL == "" {
		return nil, fmt.Errorf("s3 asset hosting needs a bucket and a public URL")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
		awsconfig.WithRegion("auto"),
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("loading s3 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = true
	})
	return &S3Host{
		client:    client,
		bucket:    cfg.Bucket,
		publicURL: strings.TrimRight(cfg.PublicURL, "/"),
	}, nil
}

func (h *S3Host) Host(ctx context.Context, filename string, data []byte) (string, error) {
	key := fmt.Sprintf("faces/%s_%s", uuid.NewString()[:8], filepath.Base(filename))
	_, err := h.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(h.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentTypeFor(filename)),
	})
	if err != nil {
		return "", fmt.Errorf("uploading to s3: %w", err)
	}
	return h.publicURL + "/" + key, nil
}

func contentTypeFor(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".png":
		return "image/png"
	default:
		return "image/jpeg"
	}
}
