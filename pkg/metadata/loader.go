package metadata

import (
	"github.com/Layr-Labs/pricefeed-sidecar/pkg/types"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type fileEntry struct {
	Id         string            `mapstructure:"id"`
	Attributes map[string]string `mapstructure:"attributes"`
}

// LoadFromFile reads feed metadata from a json, yaml or toml file of the form
//
//	feeds:
//	  - id: 0xe62df6c8...
//	    attributes: {symbol: Crypto.BTC/USD, asset_type: crypto}
func LoadFromFile(path string) ([]PriceFeedMetadata, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "failed to read metadata file '%s'", path)
	}

	var entries []fileEntry
	if err := v.UnmarshalKey("feeds", &entries); err != nil {
		return nil, errors.Wrapf(err, "failed to decode metadata file '%s'", path)
	}

	out := make([]PriceFeedMetadata, 0, len(entries))
	for _, e := range entries {
		id, err := types.ParseFeedId(e.Id)
		if err != nil {
			return nil, err
		}
		attrs := e.Attributes
		if attrs == nil {
			attrs = map[string]string{}
		}
		out = append(out, PriceFeedMetadata{Id: id, Attributes: attrs})
	}
	return out, nil
}
