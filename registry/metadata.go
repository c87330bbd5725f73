package registry

import (
	"context"
	"fmt"
	"os"

	"github.com/xgov/x402/types"
	"github.com/xgov/x402/utils"
)

// MetadataSource supplies off-chain provider metadata such as service types.
// A source that drops invalid entries returns the valid ones together with a
// *PartialMetadataError.
type MetadataSource interface {
	Metadata(ctx context.Context) ([]types.ProviderMetadata, error)
}

// PartialMetadataError lists the entries left out of a metadata set.
type PartialMetadataError struct {
	Skipped []utils.InvalidEntry
}

func (e *PartialMetadataError) Error() string {
	return fmt.Sprintf("%d provider metadata entries skipped", len(e.Skipped))
}

// StaticMetadata is a fixed metadata set.
type StaticMetadata []types.ProviderMetadata

func (m StaticMetadata) Metadata(context.Context) ([]types.ProviderMetadata, error) {
	return m, nil
}

// FileMetadata reads a provider registry JSON file on every call, so edits
// take effect without a restart.
type FileMetadata struct {
	Path string
}

func (f FileMetadata) Metadata(context.Context) ([]types.ProviderMetadata, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("read provider metadata: %w", err)
	}
	entries, invalid, err := utils.ParseProviderMetadata(data)
	if err != nil {
		return nil, err
	}
	if len(invalid) > 0 {
		return entries, &PartialMetadataError{Skipped: invalid}
	}
	return entries, nil
}

// ownersOffering returns the owners of active providers offering serviceType.
func ownersOffering(entries []types.ProviderMetadata, serviceType string) map[string]struct{} {
	owners := make(map[string]struct{})
	for _, m := range entries {
		if m.ServiceType == serviceType && m.IsActive() {
			owners[m.Owner] = struct{}{}
		}
	}
	return owners
}
