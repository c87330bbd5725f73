package registry

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/gagliardetto/solana-go"
	"github.com/xgov/x402/types"
	"github.com/xgov/x402/utils"
)

type staticProfile struct {
	Owner              string `json:"owner" validate:"required"`
	Name               string `json:"name" validate:"required"`
	ReputationScore    uint16 `json:"reputation_score"`
	TotalSuccessfulTxs uint32 `json:"total_successful_txs"`
}

// ReadStaticProfiles loads a sample listing for the fallback policy from a
// JSON array of profiles. Account addresses are derived from the owners under
// programID; any address in the file is ignored.
func ReadStaticProfiles(path string, programID solana.PublicKey) ([]types.ProviderProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read static profiles: %w", err)
	}

	var raw []staticProfile
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, types.NewConfigError("static profiles %s: %v", path, err)
	}

	profiles := make([]types.ProviderProfile, 0, len(raw))
	for i, sp := range raw {
		if err := utils.ValidateStruct(&sp); err != nil {
			return nil, types.NewConfigError("static profile %d: %s", i, utils.FormatValidationError(err))
		}
		owner, err := utils.ValidatePublicKey(sp.Owner)
		if err != nil {
			return nil, types.NewConfigError("static profile %d owner: %v", i, err)
		}
		addr, err := ProfileAddress(owner, programID)
		if err != nil {
			return nil, fmt.Errorf("derive profile address of %s: %w", owner, err)
		}

		name := sp.Name
		if len(name) > MaxNameLen {
			name = name[:MaxNameLen]
		}
		profiles = append(profiles, types.ProviderProfile{
			OwnerKey:           owner,
			AccountKey:         addr,
			Name:               name,
			ReputationScore:    sp.ReputationScore,
			TotalSuccessfulTxs: sp.TotalSuccessfulTxs,
		})
	}
	return profiles, nil
}
