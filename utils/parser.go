package utils

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/xgov/x402/types"
)

var validate *validator.Validate

func init() {
	validate = validator.New()

	_ = validate.RegisterValidation("pubkey", func(fl validator.FieldLevel) bool {
		_, err := ValidatePublicKey(fl.Field().String())
		return err == nil
	})
	_ = validate.RegisterValidation("amount", func(fl validator.FieldLevel) bool {
		_, err := ValidateAmount(fl.Field().String())
		return err == nil
	})
}

// ValidateStruct checks v against its validate struct tags. The custom tags
// pubkey and amount are available.
func ValidateStruct(v any) error {
	return validate.Struct(v)
}

type metadataFile struct {
	Agents []types.ProviderMetadata `json:"agents"`
}

// InvalidEntry is a metadata entry that failed validation.
type InvalidEntry struct {
	Index   int
	AgentID string
	Err     error
}

func (e InvalidEntry) Error() string {
	return fmt.Sprintf("provider metadata entry %d (%s): %v", e.Index, e.AgentID, e.Err)
}

func (e InvalidEntry) Unwrap() error { return e.Err }

// ParseProviderMetadata parses a provider registry file. Both a bare array
// and an object with an "agents" array are accepted. Each entry is validated
// on its own: invalid entries are returned separately and do not affect the
// others. Only a file that is not JSON of either shape is an error.
func ParseProviderMetadata(data []byte) ([]types.ProviderMetadata, []InvalidEntry, error) {
	var file metadataFile

	if err := json.Unmarshal(data, &file.Agents); err != nil {
		if err := json.Unmarshal(data, &file); err != nil {
			return nil, nil, types.NewConfigError("failed to parse provider metadata: %v", err)
		}
	}

	valid := make([]types.ProviderMetadata, 0, len(file.Agents))
	var invalid []InvalidEntry
	for i, m := range file.Agents {
		if err := validateMetadata(&m); err != nil {
			invalid = append(invalid, InvalidEntry{Index: i, AgentID: m.AgentID, Err: err})
			continue
		}
		valid = append(valid, m)
	}

	return valid, invalid, nil
}

func validateMetadata(m *types.ProviderMetadata) error {
	if err := validate.Struct(m); err != nil {
		return errors.New(FormatValidationError(err))
	}
	if _, err := ValidatePublicKey(m.Owner); err != nil {
		return err
	}
	return nil
}

// SerializeProviderMetadata renders entries in the object form read by
// ParseProviderMetadata.
func SerializeProviderMetadata(entries []types.ProviderMetadata) ([]byte, error) {
	return json.MarshalIndent(metadataFile{Agents: entries}, "", "  ")
}

// FormatValidationError flattens validator errors into one line per field.
func FormatValidationError(err error) string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}

	msg := ""
	for i, fe := range verrs {
		if i > 0 {
			msg += "; "
		}
		msg += fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag())
		if fe.Param() != "" {
			msg += fmt.Sprintf(" (%s)", fe.Param())
		}
	}
	return msg
}
