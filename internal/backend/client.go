// Package backend は外部REST APIバックエンドのクライアントを提供する。
// エンドポイントごとに1メソッドを持ち、失敗はすべて*model.FetchFailureとして返す。
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hitoshi/periodico/internal/metrics"
	"github.com/hitoshi/periodico/internal/model"
)

const (
	// maxResponseSize はレスポンスボディの読み取り上限。
	maxResponseSize = 5 << 20
	// maxErrorBodyLog はエラー時にログへ出力するボディの最大長。
	maxErrorBodyLog = 512
)

// 呼び出し結果のメトリクスラベル
const (
	outcomeOK = "ok"
)

// Client はバックエンドREST APIのクライアント。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	metrics    metrics.MetricsCollector
	baseURL    string
}

// NewClient はClientの新しいインスタンスを生成する。
// baseURLはオリジン（例: https://periodicodb-1.onrender.com）で、末尾のスラッシュは無視する。
func NewClient(httpClient *http.Client, baseURL string, logger *slog.Logger, m metrics.MetricsCollector) *Client {
	if m == nil {
		m = metrics.Nop{}
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		metrics:    m,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// request はバックエンドへの1回の呼び出しを表す。
type request struct {
	op          string
	method      string
	path        string
	query       url.Values
	body        io.Reader
	contentType string
}

// do はリクエストを実行し、2xxの場合はレスポンスボディを返す。
// 2xx以外はKindHTTP、通信失敗はKindNetworkのFetchFailureを返す。
func (c *Client) do(ctx context.Context, req request) ([]byte, error) {
	start := time.Now()
	body, err := c.roundTrip(ctx, req)

	outcome := outcomeOK
	if ff, ok := model.AsFetchFailure(err); ok {
		outcome = string(ff.Kind)
	}
	c.metrics.RecordBackendCall(req.op, outcome, time.Since(start))

	return body, err
}

func (c *Client) roundTrip(ctx context.Context, req request) ([]byte, error) {
	reqURL := c.baseURL + req.path
	if len(req.query) > 0 {
		reqURL += "?" + req.query.Encode()
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, reqURL, req.body)
	if err != nil {
		return nil, &model.FetchFailure{Kind: model.KindNetwork, Op: req.op, Err: fmt.Errorf("build request: %w", err)}
	}
	httpReq.Header.Set("Accept", "*/*")
	if req.contentType != "" {
		httpReq.Header.Set("Content-Type", req.contentType)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.ErrorContext(ctx, "バックエンドAPIの呼び出しに失敗しました",
			slog.String("op", req.op),
			slog.String("method", req.method),
			slog.String("path", req.path),
			slog.String("error", err.Error()),
		)
		return nil, &model.FetchFailure{Kind: model.KindNetwork, Op: req.op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// 診断用にエラーボディの先頭だけ読み取ってログに残す
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLog))
		c.logger.WarnContext(ctx, "バックエンドAPIがエラーステータスを返しました",
			slog.String("op", req.op),
			slog.String("method", req.method),
			slog.String("path", req.path),
			slog.Int("http_status", resp.StatusCode),
			slog.String("body", string(snippet)),
		)
		return nil, &model.FetchFailure{Kind: model.KindHTTP, Op: req.op, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, &model.FetchFailure{Kind: model.KindNetwork, Op: req.op, Err: fmt.Errorf("read body: %w", err)}
	}
	return body, nil
}

// decodeJSON はレスポンスボディをvへデコードする。失敗時はKindParseを返す。
func decodeJSON(op string, body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return &model.FetchFailure{Kind: model.KindParse, Op: op, Err: err}
	}
	return nil
}

// decodeList は配列レスポンスをデコードする。nullは空スライスとして扱う。
func decodeList[T any](op string, body []byte) ([]T, error) {
	var items []T
	if err := decodeJSON(op, body, &items); err != nil {
		return nil, err
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

// errUnusableBody は作成APIの応答が空、または期待する形でないことを示す。
var errUnusableBody = errors.New("response body is empty or not an object")

// decodeOneOrFirst はオブジェクト、またはオブジェクトの配列（先頭を採用）を受け付ける。
// 空ボディやそれ以外の形はerrUnusableBodyを返す。
func decodeOneOrFirst(body []byte) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, errUnusableBody
	}
	switch trimmed[0] {
	case '{':
		return json.RawMessage(trimmed), nil
	case '[':
		var arr []json.RawMessage
		if err := json.Unmarshal(trimmed, &arr); err != nil {
			return nil, err
		}
		if len(arr) == 0 {
			return nil, errUnusableBody
		}
		first := bytes.TrimSpace(arr[0])
		if len(first) == 0 || first[0] != '{' {
			return nil, errUnusableBody
		}
		return json.RawMessage(first), nil
	default:
		return nil, errUnusableBody
	}
}

// decodeCreated は作成APIの応答をTへデコードする。
// 応答が使えない場合（空、形が違う、idが0）はok=falseを返し、エラーにはしない。
func decodeCreated[T any](body []byte, idOf func(T) int) (T, bool) {
	var zero T
	raw, err := decodeOneOrFirst(body)
	if err != nil {
		return zero, false
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return zero, false
	}
	if idOf(v) == 0 {
		return zero, false
	}
	return v, true
}
