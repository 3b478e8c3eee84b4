package aqi

import (
	"aqi-map/internal/logger"
	"aqi-map/internal/metrics"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL：WAQI feed 接口前缀
const DefaultBaseURL = "https://api.waqi.info/feed/"

// 文档注释：AQI 数据源客户端
// 背景：凭据由启动时的配置解析得出并显式传入，不在此处读取环境变量。
// 约束：不重试、不设超时（由注入的 http.Client 决定）；每次 Fetch 恰好发出一次请求，密钥为空时同样发出。
type Client struct {
	base   string
	token  string
	client *http.Client
}

func NewClient(base, token string, client *http.Client) *Client {
	if base == "" {
		base = DefaultBaseURL
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &Client{base: base, token: token, client: client}
}

func (c *Client) requestURL(coord Coordinate) string {
	return c.base + coord.geoKey() + "/?token=" + url.QueryEscape(c.token)
}

// 文档注释：查询单个坐标的 AQI
// 返回：成功时 AQI 为非负整数，Location 可能为空串；其余情况返回 *FetchError。
func (c *Client) Fetch(ctx context.Context, coord Coordinate) (Reading, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.requestURL(coord), nil)
	if err != nil {
		return Reading{}, c.fail(&FetchError{Kind: KindTransport, Coord: coord, Err: c.redact(err)})
	}
	t0 := time.Now()
	metrics.ProviderRequestsTotal.Inc()
	logger.L().Debug("aqi_req", "lat", coord.Lat, "lng", coord.Lng)
	resp, err := c.client.Do(req)
	if err != nil {
		err = c.redact(err)
		logger.L().Error("aqi_http_error", "lat", coord.Lat, "lng", coord.Lng, "err", err)
		return Reading{}, c.fail(&FetchError{Kind: KindTransport, Coord: coord, Err: err})
	}
	defer resp.Body.Close()
	dur := time.Since(t0).Milliseconds()
	metrics.ProviderDurationMs.Observe(float64(dur))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logger.L().Error("aqi_http_status", "status", resp.StatusCode, "lat", coord.Lat, "lng", coord.Lng)
		return Reading{}, c.fail(&FetchError{Kind: KindTransport, Coord: coord, Status: resp.StatusCode, Msg: resp.Status})
	}
	var r feedResponse
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		logger.L().Error("aqi_decode_error", "err", err)
		return Reading{}, c.fail(&FetchError{Kind: KindTransport, Coord: coord, Status: resp.StatusCode, Msg: "decode body", Err: err})
	}
	logger.L().Debug("aqi_resp", "lat", coord.Lat, "lng", coord.Lng, "status", r.Status, "duration_ms", dur)
	if r.Status != "ok" {
		return Reading{}, c.fail(&FetchError{Kind: KindProvider, Coord: coord, Status: resp.StatusCode, Msg: "status " + r.Status + ": " + providerMessage(r.Data)})
	}
	var d feedData
	if err := json.Unmarshal(r.Data, &d); err != nil {
		return Reading{}, c.fail(&FetchError{Kind: KindProvider, Coord: coord, Status: resp.StatusCode, Msg: "malformed data", Err: err})
	}
	v := parseAQI(d.AQI)
	if v == Unavailable {
		return Reading{}, c.fail(&FetchError{Kind: KindProvider, Coord: coord, Status: resp.StatusCode, Msg: "aqi unavailable"})
	}
	metrics.ProviderSuccessTotal.Inc()
	return Reading{Coord: coord, AQI: v, Location: d.City.Name}, nil
}

// redact：底层错误文本可能携带完整请求地址，替换其中的 token 值
func (c *Client) redact(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		cp := *ue
		cp.URL = redactToken(ue.URL)
		return &cp
	}
	if c.token == "" {
		return err
	}
	msg := err.Error()
	if !strings.Contains(msg, c.token) && !strings.Contains(msg, url.QueryEscape(c.token)) {
		return err
	}
	msg = strings.ReplaceAll(msg, url.QueryEscape(c.token), "REDACTED")
	return errors.New(strings.ReplaceAll(msg, c.token, "REDACTED"))
}

func redactToken(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<unparseable url>"
	}
	q := u.Query()
	if q.Has("token") {
		q.Set("token", "REDACTED")
		u.RawQuery = q.Encode()
	}
	return u.String()
}

func (c *Client) fail(e *FetchError) error {
	metrics.ProviderFailTotal.WithLabelValues(e.Kind.String()).Inc()
	return e
}
