package dataset

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"

	"github.com/okian/walletmatch/internal/domain/model"
)

// Wire shape of one profile in the input document. Pointers tell an absent
// field apart from a zero one.
type segmentDoc struct {
	UserCount        *float64 `json:"User Count" validate:"required,gte=0"`
	TransactionCount *float64 `json:"Transaction Count" validate:"required,gte=0"`
}

type userCountsDoc struct {
	DeFi *segmentDoc `json:"DEFI" validate:"required"`
	NFT  *segmentDoc `json:"NFT" validate:"required"`
}

type profileDoc struct {
	Balance             *float64           `json:"Ether Balance" validate:"required,gte=0"`
	TotalTxCount        *float64           `json:"Overall Transaction Count" validate:"required,gte=0"`
	AvgTxPerDay         *float64           `json:"Average Transactions Per Day" validate:"required,gte=0"`
	PlatformTxCount     map[string]float64 `json:"Platform Transaction Count" validate:"required,dive,gte=0"`
	PlatformAvgTxPerDay map[string]float64 `json:"Platform Average Transactions Per Day" validate:"required,dive,gte=0"`
	OtherPlatformCount  map[string]float64 `json:"Other Platforms Count" validate:"required,dive,gte=0"`
	UserCounts          *userCountsDoc     `json:"User Counts" validate:"required"`
	TokenTransfers      TransferList       `json:"Token Transfers" validate:"required"`
	NFTTransfers        TransferList       `json:"NFT Transfers" validate:"required"`
}

func (d *profileDoc) toProfile() *model.Profile {
	return &model.Profile{
		Balance:             *d.Balance,
		TotalTxCount:        *d.TotalTxCount,
		AvgTxPerDay:         *d.AvgTxPerDay,
		PlatformTxCount:     d.PlatformTxCount,
		PlatformAvgTxPerDay: d.PlatformAvgTxPerDay,
		OtherPlatformCount:  d.OtherPlatformCount,
		UserCounts: model.UserCounts{
			DeFi: model.Segment{UserCount: *d.UserCounts.DeFi.UserCount, TransactionCount: *d.UserCounts.DeFi.TransactionCount},
			NFT:  model.Segment{UserCount: *d.UserCounts.NFT.UserCount, TransactionCount: *d.UserCounts.NFT.TransactionCount},
		},
		TokenTransfers: d.TokenTransfers,
		NFTTransfers:   d.NFTTransfers,
	}
}

// identifierKeys are the object keys that may carry a transfer identifier,
// in lookup order.
var identifierKeys = []string{"token", "nft", "collection", "name"}

// TransferList decodes a transfer list from any of its accepted shapes:
//
//	{"USDC": 3, "WETH": 1}                 keys are the identifiers
//	["USDC", "WETH"]                        plain identifiers
//	[{"token": "USDC"}, {"nft": "BAYC"}]    records carrying an identifier
//
// Object keys keep document order. JSON null leaves the list nil.
type TransferList []model.Transfer

// UnmarshalJSON implements json.Unmarshaler.
func (l *TransferList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	switch data[0] {
	case '{':
		return l.fromObject(data)
	case '[':
		return l.fromArray(data)
	default:
		return errors.New("transfer list must be an object or an array")
	}
}

func (l *TransferList) fromObject(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	if _, err := dec.Token(); err != nil {
		return err
	}
	out := TransferList{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		out = append(out, model.Transfer{Identifier: tok.(string)})
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return err
		}
	}
	*l = out
	return nil
}

func (l *TransferList) fromArray(data []byte) error {
	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	out := make(TransferList, 0, len(items))
	for i, item := range items {
		id, err := transferIdentifier(item)
		if err != nil {
			return errors.Wrapf(err, "transfer %d", i)
		}
		out = append(out, model.Transfer{Identifier: id})
	}
	*l = out
	return nil
}

func transferIdentifier(item json.RawMessage) (string, error) {
	var s string
	if err := json.Unmarshal(item, &s); err == nil {
		return s, nil
	}

	var rec map[string]json.RawMessage
	if err := json.Unmarshal(item, &rec); err != nil {
		return "", errors.New("transfer must be a string or an object")
	}
	for _, want := range identifierKeys {
		for k, v := range rec {
			if !strings.EqualFold(k, want) {
				continue
			}
			if err := json.Unmarshal(v, &s); err != nil {
				return "", errors.Errorf("transfer field %q must be a string", k)
			}
			return s, nil
		}
	}
	return "", errors.Errorf("transfer has none of the fields %v", identifierKeys)
}
