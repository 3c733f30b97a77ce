// Package security はアプリケーションのセキュリティ機能を提供する。
package security

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// allowedSchemes はバックエンド・画像URLで許可されるURLスキーム。
var allowedSchemes = []string{"http", "https"}

// blockedNetworks は画像URLとして許可しないネットワーク範囲。
var blockedNetworks []net.IPNet

func init() {
	cidrs := []string{
		// プライベートIPアドレス (RFC 1918)
		"10.0.0.0/8",
		"172.16.0.0/12",
		"192.168.0.0/16",
		// ループバック
		"127.0.0.0/8",
		// リンクローカル（クラウドメタデータIPを含む）
		"169.254.0.0/16",
		"0.0.0.0/8",
		"::1/128",
		"fe80::/10",
		"fc00::/7",
	}
	for _, cidr := range cidrs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(fmt.Sprintf("invalid CIDR in blockedNetworks: %s: %v", cidr, err))
		}
		blockedNetworks = append(blockedNetworks, *network)
	}
}

// BackendClientConfig はバックエンド用HTTPクライアントの設定。
type BackendClientConfig struct {
	Timeout time.Duration
	// AllowPrivate がtrueの場合はSSRF防止を行わない標準クライアントを返す。
	// ローカル開発でバックエンドをlocalhostに立てる場合に使用する。
	AllowPrivate bool
}

// NewBackendClient はバックエンドREST API呼び出し用のHTTPクライアントを生成する。
// safeurlによりプライベートIP・ループバック・メタデータIPへの接続をDialerレベルで拒否し、
// 設定ミスやDNS再バインディングで内部ネットワークに要求が向かうことを防ぐ。
func NewBackendClient(cfg BackendClientConfig) *http.Client {
	if cfg.AllowPrivate {
		return &http.Client{Timeout: cfg.Timeout}
	}

	config := safeurl.GetConfigBuilder().
		SetTimeout(cfg.Timeout).
		SetAllowedSchemes(allowedSchemes...).
		SetAllowedPorts(80, 443).
		Build()

	return safeurl.Client(config).Client
}

// SafeImageURL はテンプレートに出力してよい画像URLであればそのまま返し、
// そうでなければ空文字列を返す。
// DNS解決を伴わない静的な検証で、http/https以外のスキームやプライベートIPを拒否する。
func SafeImageURL(rawURL string) string {
	if err := validatePublicURL(rawURL); err != nil {
		return ""
	}
	return rawURL
}

func validatePublicURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("empty URL")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if !isAllowedScheme(scheme) {
		return fmt.Errorf("disallowed scheme: %s", scheme)
	}

	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("empty host in URL: %s", rawURL)
	}

	if ip := net.ParseIP(host); ip != nil {
		if isBlockedIP(ip) {
			return fmt.Errorf("blocked IP address: %s", ip.String())
		}
		return nil
	}

	if strings.EqualFold(host, "localhost") {
		return fmt.Errorf("blocked host: %s", host)
	}
	return nil
}

func isAllowedScheme(scheme string) bool {
	for _, allowed := range allowedSchemes {
		if strings.EqualFold(scheme, allowed) {
			return true
		}
	}
	return false
}

func isBlockedIP(ip net.IP) bool {
	for _, network := range blockedNetworks {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}
