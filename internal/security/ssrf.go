// Package security はアプリケーションのセキュリティ機能を提供する。
// 外部URL取得時のSSRF防止と、ユーザー入力・外部フィードのテキスト化を含む。
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

// allowedSchemes は外部URLに許可するスキーム。
var allowedSchemes = []string{"http", "https"}

// blockedNetworks は取得先として拒否するネットワーク範囲。
// safeurlはDial時に解決後のIPも検証するため、ここでの照合は事前チェックに使う。
var blockedNetworks = mustParseCIDRs(
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"127.0.0.0/8",
	"169.254.0.0/16",
	"0.0.0.0/8",
	"::1/128",
	"fe80::/10",
	"fc00::/7",
)

func mustParseCIDRs(cidrs ...string) []*net.IPNet {
	networks := make([]*net.IPNet, 0, len(cidrs))
	for _, cidr := range cidrs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(fmt.Sprintf("invalid CIDR %s: %v", cidr, err))
		}
		networks = append(networks, network)
	}
	return networks
}

// Guard は外部フィードの取得先を検証し、SSRF対策済みのHTTPクライアントを生成する。
type Guard struct{}

// NewGuard はGuardを生成する。
func NewGuard() *Guard {
	return &Guard{}
}

// NewSafeClient はプライベートIP・ループバック・リンクローカルへの接続を
// Dialレベルで拒否するHTTPクライアントを返す。ポートは80/443のみ許可する。
func (g *Guard) NewSafeClient(timeout time.Duration) *http.Client {
	config := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes(allowedSchemes...).
		SetAllowedPorts(80, 443).
		Build()
	return safeurl.Client(config).Client
}

// ValidateURL はDNS解決を伴わない静的な検証を行う。
// スキームがhttp/https以外、ホストが空、ブロック対象のIPやlocalhostの場合はエラー。
func (g *Guard) ValidateURL(rawURL string) error {
	parsed, err := parseHTTPURL(rawURL)
	if err != nil {
		return err
	}

	host := parsed.Hostname()
	if ip := net.ParseIP(host); ip != nil {
		for _, network := range blockedNetworks {
			if network.Contains(ip) {
				return fmt.Errorf("blocked IP address: %s", ip)
			}
		}
		return nil
	}
	if strings.EqualFold(host, "localhost") || strings.HasSuffix(strings.ToLower(host), ".localhost") {
		return fmt.Errorf("blocked host: %s", host)
	}
	return nil
}

// ValidateLink は投稿に含めるリンクや画像URLを検証する。
// 取得は行わないため、スキームとホストのみを確認する。空文字列は許可する。
func ValidateLink(rawURL string) error {
	if rawURL == "" {
		return nil
	}
	_, err := parseHTTPURL(rawURL)
	return err
}

func parseHTTPURL(rawURL string) (*url.URL, error) {
	if rawURL == "" {
		return nil, fmt.Errorf("empty URL")
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	allowed := false
	for _, s := range allowedSchemes {
		if scheme == s {
			allowed = true
			break
		}
	}
	if !allowed {
		return nil, fmt.Errorf("disallowed scheme: %q", parsed.Scheme)
	}
	if parsed.Hostname() == "" {
		return nil, fmt.Errorf("empty host in URL: %s", rawURL)
	}
	return parsed, nil
}
