// Package publish uploads finished evaluation reports to Azure Blob Storage
// so CI runs can archive them next to their build artifacts.
package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/to"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/blob"

	"github.com/pavise/maskeval/internal/models"
)

//go:generate mockgen -source=publish.go -destination=mock_publish_test.go -package=publish

// Uploader sends one serialized report to a storage destination and returns
// the destination URL.
type Uploader interface {
	Upload(ctx context.Context, name string, data []byte) (string, error)
}

// blobAPI is just an interface over [*azblob.Client]
type blobAPI interface {
	// UploadBuffer maps to [azblob.Client.UploadBuffer]
	UploadBuffer(ctx context.Context, containerName string, blobName string, buffer []byte, o *azblob.UploadBufferOptions) (azblob.UploadBufferResponse, error)

	// URL maps to [azblob.Client.URL]
	URL() string
}

// BlobUploader implements Uploader against an Azure Blob Storage container.
type BlobUploader struct {
	client    blobAPI
	container string
}

// NewBlobUploader builds an uploader for the given service URL and container
// using an explicit credential. CI pipelines inject their federated
// credential here.
func NewBlobUploader(serviceURL, container string, cred azcore.TokenCredential) (*BlobUploader, error) {
	if serviceURL == "" {
		return nil, errors.New("blob service URL is required")
	}
	if container == "" {
		return nil, errors.New("blob container is required")
	}
	client, err := azblob.NewClient(serviceURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("create blob client: %w", err)
	}
	return &BlobUploader{client: client, container: container}, nil
}

// NewDefaultBlobUploader authenticates through the default Azure credential
// chain (environment, workload identity, managed identity, developer CLI).
func NewDefaultBlobUploader(serviceURL, container string) (*BlobUploader, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("acquire azure credential: %w", err)
	}
	return NewBlobUploader(serviceURL, container, cred)
}

// Upload writes data as a block blob and returns its URL.
func (b *BlobUploader) Upload(ctx context.Context, name string, data []byte) (string, error) {
	opts := &azblob.UploadBufferOptions{
		HTTPHeaders: &blob.HTTPHeaders{BlobContentType: to.Ptr("application/json")},
	}
	if _, err := b.client.UploadBuffer(ctx, b.container, name, data, opts); err != nil {
		return "", fmt.Errorf("upload blob %s: %w", name, err)
	}
	return fmt.Sprintf("%s/%s/%s", strings.TrimSuffix(b.client.URL(), "/"), b.container, name), nil
}

// BlobName returns the deterministic destination name for a report. Repeated
// runs of the same dataset and model sort chronologically under one prefix.
func BlobName(r *models.Report) string {
	dataset := r.Dataset
	if dataset == "" {
		dataset = "report"
	}
	ts := r.CreatedAt.UTC().Format("20060102T150405Z")
	if r.Model == "" {
		return fmt.Sprintf("%s/%s.json", dataset, ts)
	}
	return fmt.Sprintf("%s/%s/%s.json", dataset, r.Model, ts)
}

// Publish serializes a report and uploads it under its deterministic name.
func Publish(ctx context.Context, up Uploader, report *models.Report) (string, error) {
	if report == nil {
		return "", errors.New("no report to publish")
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}
	url, err := up.Upload(ctx, BlobName(report), data)
	if err != nil {
		return "", fmt.Errorf("publish report: %w", err)
	}
	return url, nil
}
