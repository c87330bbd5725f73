package registry

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"strings"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/xgov/x402/types"
)

const (
	// MaxNameLen is the number of name bytes kept from a profile account.
	MaxNameLen = 50

	// ProfileSeed is the namespace tag of profile derived addresses.
	ProfileSeed = "agent"

	discriminatorLen = 8
)

// ProfileDiscriminator prefixes every provider profile account.
var ProfileDiscriminator = accountDiscriminator("AgentProfile")

func accountDiscriminator(name string) []byte {
	sum := sha256.Sum256([]byte("account:" + name))
	return sum[:discriminatorLen]
}

// field is one entry of an account layout. A prefixed field starts with a
// little-endian u32 length of width bytes followed by that many data bytes.
type field struct {
	name     string
	width    int
	prefixed bool
	decode   func(p *types.ProviderProfile, raw []byte)
}

var profileLayout = []field{
	{name: "discriminator", width: discriminatorLen},
	{name: "owner", width: solana.PublicKeyLength, decode: func(p *types.ProviderProfile, raw []byte) {
		copy(p.OwnerKey[:], raw)
	}},
	{name: "name", width: 4, prefixed: true, decode: func(p *types.ProviderProfile, raw []byte) {
		if len(raw) > MaxNameLen {
			raw = raw[:MaxNameLen]
		}
		p.Name = strings.ToValidUTF8(string(raw), "�")
	}},
	{name: "reputation_score", width: 2, decode: func(p *types.ProviderProfile, raw []byte) {
		p.ReputationScore = binary.LittleEndian.Uint16(raw)
	}},
	{name: "total_successful_txs", width: 4, decode: func(p *types.ProviderProfile, raw []byte) {
		p.TotalSuccessfulTxs = binary.LittleEndian.Uint32(raw)
	}},
}

// DecodeProfile decodes a provider profile account. The cursor advances past
// the full declared name even though only MaxNameLen bytes are kept. The
// returned profile has no AccountKey; callers derive it from the owner.
func DecodeProfile(data []byte) (*types.ProviderProfile, error) {
	p := &types.ProviderProfile{}
	if err := decodeLayout(profileLayout, data, p); err != nil {
		return nil, err
	}
	return p, nil
}

func decodeLayout(layout []field, data []byte, p *types.ProviderProfile) error {
	dec := bin.NewBorshDecoder(data)

	for _, f := range layout {
		raw, err := take(dec, f.name, f.width)
		if err != nil {
			return err
		}

		if f.prefixed {
			n := binary.LittleEndian.Uint32(raw)
			if uint64(n) > uint64(dec.Remaining()) {
				return types.NewMalformedAccountError(f.name, int(n), dec.Remaining())
			}
			if raw, err = take(dec, f.name, int(n)); err != nil {
				return err
			}
		}

		if f.decode != nil {
			f.decode(p, raw)
		}
	}
	return nil
}

func take(dec *bin.Decoder, name string, n int) ([]byte, error) {
	if dec.Remaining() < n {
		return nil, types.NewMalformedAccountError(name, n, dec.Remaining())
	}
	raw, err := dec.ReadNBytes(n)
	if err != nil {
		return nil, types.NewMalformedAccountError(name, n, dec.Remaining())
	}
	return raw, nil
}

// EncodeProfile produces the account bytes for p with the full name. It is
// the inverse of DecodeProfile for names of at most MaxNameLen bytes.
func EncodeProfile(p *types.ProviderProfile) ([]byte, error) {
	var buf bytes.Buffer
	enc := bin.NewBorshEncoder(&buf)

	if err := enc.WriteBytes(ProfileDiscriminator, false); err != nil {
		return nil, err
	}
	if err := enc.WriteBytes(p.OwnerKey[:], false); err != nil {
		return nil, err
	}
	if err := enc.WriteBytes([]byte(p.Name), true); err != nil {
		return nil, err
	}
	if err := enc.WriteUint16(p.ReputationScore, binary.LittleEndian); err != nil {
		return nil, err
	}
	if err := enc.WriteUint32(p.TotalSuccessfulTxs, binary.LittleEndian); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ProfileAddress derives the profile account address of owner.
func ProfileAddress(owner, programID solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindProgramAddress([][]byte{[]byte(ProfileSeed), owner[:]}, programID)
	if err != nil {
		return solana.PublicKey{}, err
	}
	return addr, nil
}
