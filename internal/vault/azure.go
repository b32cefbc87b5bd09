package vault

import (
	"context"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"

	"themesync/internal/config"
	"themesync/internal/themesync"
)

// azureVersionKey is the blob metadata entry holding an item's version.
// Azure metadata names must be valid C# identifiers, so no dashes.
const azureVersionKey = "themesyncversion"

// AzureVault stores snapshot items as block blobs named
// <instanceID>/<name> in one container.
type AzureVault struct {
	name      string
	container string
	client    *azblob.Client
}

// NewAzureVault creates a vault from config. A connection string takes
// precedence; otherwise the account URL is used with DefaultAzureCredential
// (environment, managed identity or Azure CLI login).
func NewAzureVault(cfg config.VaultConfig) (*AzureVault, error) {
	if cfg.AzureContainer == "" {
		return nil, fmt.Errorf("azure vault requires azure_container to be set")
	}

	var client *azblob.Client
	var err error
	switch {
	case cfg.AzureConnectionString != "":
		client, err = azblob.NewClientFromConnectionString(cfg.AzureConnectionString, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create client from connection string: %w", err)
		}
	case cfg.AzureAccountURL != "":
		cred, err := azidentity.NewDefaultAzureCredential(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create default azure credential: %w", err)
		}
		client, err = azblob.NewClient(cfg.AzureAccountURL, cred, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create blob client: %w", err)
		}
	default:
		return nil, fmt.Errorf("azure vault requires azure_connection_string or azure_account_url")
	}

	return &AzureVault{name: cfg.Name, container: cfg.AzureContainer, client: client}, nil
}

func (v *AzureVault) blobName(instanceID, name string) string {
	return path.Join(instanceID, name)
}

// PutMetadata uploads an item with its version in the blob metadata.
func (v *AzureVault) PutMetadata(ctx context.Context, instanceID, name string, r io.Reader, size int64, version int64) error {
	body := &countingReader{r: r}
	versionStr := strconv.FormatInt(version, 10)
	_, err := v.client.UploadStream(ctx, v.container, v.blobName(instanceID, name), body, &azblob.UploadStreamOptions{
		Metadata: map[string]*string{azureVersionKey: &versionStr},
	})
	if err != nil {
		return fmt.Errorf("uploading %s: %w", name, err)
	}
	if body.n != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, body.n)
	}
	return nil
}

// GetMetadataVersion returns 0 if the blob does not exist.
func (v *AzureVault) GetMetadataVersion(ctx context.Context, instanceID, name string) (int64, error) {
	blobClient := v.client.ServiceClient().NewContainerClient(v.container).NewBlobClient(v.blobName(instanceID, name))
	props, err := blobClient.GetProperties(ctx, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("reading %s version: %w", name, err)
	}

	// The service may return metadata names with different casing.
	for k, val := range props.Metadata {
		if !strings.EqualFold(k, azureVersionKey) || val == nil {
			continue
		}
		version, err := strconv.ParseInt(*val, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("parsing version: %w", err)
		}
		return version, nil
	}
	return 0, nil
}

// GetMetadata streams a named item for an instance to w.
func (v *AzureVault) GetMetadata(ctx context.Context, instanceID, name string, w io.Writer) error {
	resp, err := v.client.DownloadStream(ctx, v.container, v.blobName(instanceID, name), nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return fmt.Errorf("%w: %s for instance %s", themesync.ErrNotFound, name, instanceID)
		}
		return fmt.Errorf("downloading %s: %w", name, err)
	}
	defer resp.Body.Close()

	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("reading %s: %w", name, err)
	}
	return nil
}

// ValidateSetup checks that the container exists and is reachable.
func (v *AzureVault) ValidateSetup(ctx context.Context) error {
	_, err := v.client.ServiceClient().NewContainerClient(v.container).GetProperties(ctx, nil)
	if err != nil {
		return fmt.Errorf("azure container %s not accessible: %w", v.container, err)
	}
	return nil
}

// Compile-time check that AzureVault implements themesync.Vault
var _ themesync.Vault = (*AzureVault)(nil)
