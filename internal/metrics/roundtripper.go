package metrics

import (
	"net/http"
	"time"
)

// instrumentedTransport は外部サービス呼び出しを計測するhttp.RoundTripper。
type instrumentedTransport struct {
	base      http.RoundTripper
	service   string
	collector MetricsCollector
}

// NewInstrumentedClient は外部サービス呼び出しのステータスとレイテンシを
// 記録するHTTPクライアントを返す。baseがnilの場合はデフォルト設定を使う。
func NewInstrumentedClient(base *http.Client, service string, collector MetricsCollector) *http.Client {
	if base == nil {
		base = &http.Client{Timeout: 15 * time.Second}
	}
	transport := base.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &http.Client{
		Transport: &instrumentedTransport{
			base:      transport,
			service:   service,
			collector: collector,
		},
		Timeout:       base.Timeout,
		CheckRedirect: base.CheckRedirect,
		Jar:           base.Jar,
	}
}

// RoundTrip はリクエストを委譲し、結果を記録する。
// ネットワークエラーはステータスコード0として記録する。
func (t *instrumentedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.base.RoundTrip(req)
	t.collector.RecordUpstreamLatency(t.service, time.Since(start))

	if err != nil {
		t.collector.RecordUpstreamRequest(t.service, 0)
		return nil, err
	}
	t.collector.RecordUpstreamRequest(t.service, resp.StatusCode)
	return resp, nil
}
