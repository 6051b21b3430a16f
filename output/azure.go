package output

import (
	"context"
	"fmt"
	"net/url"
	"os"

	"github.com/Azure/azure-storage-blob-go/azblob"
)

// AzureStore backs queues whose data_abspath is "azblob://container/prefix",
// using the teacher's own direct dependency on azure-storage-blob-go.
// Account name/key come from the environment, the way the teacher leaves
// cloud backend credentials out of its own config tree.
type AzureStore struct {
	pipeline    azblob.Pipeline
	accountName string
}

func NewAzureStore() *AzureStore {
	account := os.Getenv("AZURE_STORAGE_ACCOUNT")
	key := os.Getenv("AZURE_STORAGE_KEY")
	if account == "" || key == "" {
		return &AzureStore{}
	}
	cred, err := azblob.NewSharedKeyCredential(account, key)
	if err != nil {
		return &AzureStore{}
	}
	return &AzureStore{
		pipeline:    azblob.NewPipeline(cred, azblob.PipelineOptions{}),
		accountName: account,
	}
}

func (s *AzureStore) blockBlobURL(container, key string) (azblob.BlockBlobURL, error) {
	if s.pipeline == nil {
		return azblob.BlockBlobURL{}, errNoClient("azure")
	}
	u, err := url.Parse(fmt.Sprintf("https://%s.blob.core.windows.net/%s", s.accountName, container))
	if err != nil {
		return azblob.BlockBlobURL{}, err
	}
	containerURL := azblob.NewContainerURL(*u, s.pipeline)
	return containerURL.NewBlockBlobURL(key), nil
}

func (s *AzureStore) Write(dataAbspath, jobID string, data []byte) error {
	container, prefix := splitBucketPrefix(dataAbspath, "azblob://")
	blobURL, err := s.blockBlobURL(container, outputPath(prefix, jobID))
	if err != nil {
		return err
	}
	_, err = azblob.UploadBufferToBlockBlob(context.Background(), data, blobURL, azblob.UploadToBlockBlobOptions{})
	return err
}

func (s *AzureStore) Remove(dataAbspath, jobID string) error {
	container, prefix := splitBucketPrefix(dataAbspath, "azblob://")
	blobURL, err := s.blockBlobURL(container, outputPath(prefix, jobID))
	if err != nil {
		return err
	}
	_, err = blobURL.Delete(context.Background(), azblob.DeleteSnapshotsOptionNone, azblob.BlobAccessConditions{})
	if stgErr, ok := err.(azblob.StorageError); ok && stgErr.ServiceCode() == azblob.ServiceCodeBlobNotFound {
		return nil
	}
	return err
}
