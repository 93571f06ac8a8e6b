// Package benchmarks fetches historical price updates from a remote benchmarks
// service when the local cache no longer retains them.
package benchmarks

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Layr-Labs/pricefeed-sidecar/internal/metrics"
	"github.com/Layr-Labs/pricefeed-sidecar/internal/metrics/metricsTypes"
	"github.com/Layr-Labs/pricefeed-sidecar/pkg/types"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var (
	ErrUnexpectedStatus  = errors.New("unexpected benchmarks response status")
	ErrFeedCountMismatch = errors.New("benchmarks returned a different number of price feeds than requested")
	ErrInvalidResponse   = errors.New("invalid benchmarks response")
)

const defaultTimeout = 10 * time.Second

type BenchmarksConfig struct {
	Endpoint string
	Timeout  time.Duration
}

type BenchmarksClient struct {
	httpClient  *http.Client
	config      *BenchmarksConfig
	metricsSink *metrics.MetricsSink
	logger      *zap.Logger
}

// NewBenchmarksClient builds a client for cfg.Endpoint. When hc is nil a client with
// cfg.Timeout is created.
func NewBenchmarksClient(hc *http.Client, cfg *BenchmarksConfig, ms *metrics.MetricsSink, l *zap.Logger) *BenchmarksClient {
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	return &BenchmarksClient{
		httpClient:  hc,
		config:      cfg,
		metricsSink: ms,
		logger:      l,
	}
}

type binaryUpdate struct {
	Encoding string   `json:"encoding"`
	Data     []string `json:"data"`
}

type rpcPrice struct {
	Price       string              `json:"price"`
	Conf        string              `json:"conf"`
	Expo        int32               `json:"expo"`
	PublishTime types.UnixTimestamp `json:"publish_time"`
}

type rpcPriceFeedMetadata struct {
	Slot               *types.Slot          `json:"slot"`
	ProofAvailableTime *types.UnixTimestamp `json:"proof_available_time"`
	PrevPublishTime    *types.UnixTimestamp `json:"prev_publish_time"`
}

type rpcPriceFeed struct {
	Id       string                `json:"id"`
	Price    rpcPrice              `json:"price"`
	EmaPrice rpcPrice              `json:"ema_price"`
	Metadata *rpcPriceFeedMetadata `json:"metadata"`
}

type priceUpdateResponse struct {
	Binary binaryUpdate   `json:"binary"`
	Parsed []rpcPriceFeed `json:"parsed"`
}

func (p rpcPrice) toPrice() (types.Price, error) {
	price, err := strconv.ParseInt(p.Price, 10, 64)
	if err != nil {
		return types.Price{}, errors.Wrapf(ErrInvalidResponse, "price '%s'", p.Price)
	}
	conf, err := strconv.ParseUint(p.Conf, 10, 64)
	if err != nil {
		return types.Price{}, errors.Wrapf(ErrInvalidResponse, "conf '%s'", p.Conf)
	}
	return types.Price{
		Price:       price,
		Conf:        conf,
		Exponent:    p.Expo,
		PublishTime: p.PublishTime,
	}, nil
}

func (bc *BenchmarksClient) buildUrl(ids []types.FeedId, publishTime types.UnixTimestamp) string {
	values := url.Values{}
	for _, id := range ids {
		values.Add("ids[]", id.Hex())
	}
	values.Set("encoding", "hex")
	values.Set("parsed", "true")

	base := strings.TrimSuffix(bc.config.Endpoint, "/")
	return fmt.Sprintf("%s/v1/updates/price/%d?%s", base, publishTime, values.Encode())
}

func (bc *BenchmarksClient) recordRequest(status string) {
	_ = bc.metricsSink.Incr(metricsTypes.Metric_Incr_BenchmarksRequest, []metricsTypes.MetricsLabel{
		{Name: metricsTypes.Label_Status, Value: status},
	}, 1)
}

// GetVerifiedPriceFeeds returns the first update at or after publishTime for every id.
func (bc *BenchmarksClient) GetVerifiedPriceFeeds(ctx context.Context, ids []types.FeedId, publishTime types.UnixTimestamp) (*types.PriceFeedsWithUpdateData, error) {
	fullUrl := bc.buildUrl(ids, publishTime)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullUrl, http.NoBody)
	if err != nil {
		bc.logger.Sugar().Errorw("Failed to create the benchmarks HTTP request", zap.Error(err))
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	res, err := bc.httpClient.Do(req)
	if err != nil {
		bc.recordRequest("error")
		bc.logger.Sugar().Errorw("Failed to perform the benchmarks HTTP request",
			zap.String("url", fullUrl),
			zap.Error(err),
		)
		return nil, err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		bc.recordRequest("error")
		return nil, errors.Wrap(err, "failed to read benchmarks response")
	}

	if res.StatusCode != http.StatusOK {
		bc.recordRequest(strconv.Itoa(res.StatusCode))
		return nil, errors.Wrapf(ErrUnexpectedStatus, "status %d, response body: %s", res.StatusCode, string(body))
	}

	parsed := &priceUpdateResponse{}
	if err := json.Unmarshal(body, parsed); err != nil {
		bc.recordRequest("invalid")
		return nil, errors.Wrap(ErrInvalidResponse, err.Error())
	}

	result, err := toPriceFeedsWithUpdateData(parsed)
	if err != nil {
		bc.recordRequest("invalid")
		return nil, err
	}
	if len(result.PriceFeeds) != len(ids) {
		bc.recordRequest("invalid")
		return nil, errors.Wrapf(ErrFeedCountMismatch, "requested %d, got %d", len(ids), len(result.PriceFeeds))
	}

	bc.recordRequest("ok")
	bc.logger.Sugar().Debugw("Fetched price feeds from benchmarks",
		zap.Int64("publishTime", publishTime),
		zap.Int("count", len(result.PriceFeeds)),
	)
	return result, nil
}

func toPriceFeedsWithUpdateData(res *priceUpdateResponse) (*types.PriceFeedsWithUpdateData, error) {
	if res.Binary.Encoding != "hex" {
		return nil, errors.Wrapf(ErrInvalidResponse, "unsupported encoding '%s'", res.Binary.Encoding)
	}
	updateData := make([][]byte, 0, len(res.Binary.Data))
	for _, d := range res.Binary.Data {
		b, err := hex.DecodeString(strings.TrimPrefix(d, "0x"))
		if err != nil {
			return nil, errors.Wrap(ErrInvalidResponse, err.Error())
		}
		updateData = append(updateData, b)
	}

	feeds := make([]types.PriceFeedUpdate, 0, len(res.Parsed))
	for _, f := range res.Parsed {
		id, err := types.ParseFeedId(f.Id)
		if err != nil {
			return nil, errors.Wrap(ErrInvalidResponse, err.Error())
		}
		price, err := f.Price.toPrice()
		if err != nil {
			return nil, err
		}
		emaPrice, err := f.EmaPrice.toPrice()
		if err != nil {
			return nil, err
		}

		update := types.PriceFeedUpdate{
			PriceFeed: types.PriceFeed{
				Id:       id,
				Price:    price,
				EmaPrice: emaPrice,
			},
		}
		if f.Metadata != nil {
			update.Slot = f.Metadata.Slot
			update.ReceivedAt = f.Metadata.ProofAvailableTime
			update.PrevPublishTime = f.Metadata.PrevPublishTime
		}
		feeds = append(feeds, update)
	}

	return &types.PriceFeedsWithUpdateData{
		PriceFeeds: feeds,
		UpdateData: updateData,
	}, nil
}
