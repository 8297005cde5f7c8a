package translate

import (
	"context"
	"crypto/md5" //nolint:gosec // the API mandates an MD5 request signature
	"encoding/hex"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bissquit/mediahook/internal/enrich"
	"golang.org/x/time/rate"
)

const defaultBaiduURL = "https://fanyi-api.baidu.com/api/trans/vip/translate"

// BaiduConfig configures the Baidu general translation API.
type BaiduConfig struct {
	AppID     string
	SecretKey string
	BaseURL   string
	Timeout   time.Duration
}

// Baidu calls the Baidu Fanyi API.
type Baidu struct {
	config     BaiduConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	salt       func() string
}

// NewBaidu creates a Baidu service. Both the app id and secret key are
// required.
func NewBaidu(config BaiduConfig) (*Baidu, error) {
	if config.AppID == "" || config.SecretKey == "" {
		return nil, errors.New("baidu translator: app id and secret key are required")
	}
	if config.BaseURL == "" {
		config.BaseURL = defaultBaiduURL
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	return &Baidu{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
		// The standard tier allows one query per second.
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
		salt: func() string {
			return strconv.Itoa(32768 + rand.Intn(32768))
		},
	}, nil
}

// ID implements Service.
func (b *Baidu) ID() string { return "baidu" }

type baiduResponse struct {
	ErrorCode   string `json:"error_code"`
	ErrorMsg    string `json:"error_msg"`
	TransResult []struct {
		Dst string `json:"dst"`
	} `json:"trans_result"`
}

// Translate implements Service.
func (b *Baidu) Translate(ctx context.Context, text string) (string, error) {
	salt := b.salt()
	params := url.Values{
		"q":     {text},
		"from":  {"auto"},
		"to":    {Target},
		"appid": {b.config.AppID},
		"salt":  {salt},
		"sign":  {baiduSign(b.config.AppID, text, salt, b.config.SecretKey)},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.config.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	var resp baiduResponse
	if err := enrich.DoJSON(b.httpClient, b.limiter, b.ID(), req, &resp); err != nil {
		return "", err
	}
	if resp.ErrorCode != "" && resp.ErrorCode != "52000" {
		return "", fmt.Errorf("baidu error %s: %s", resp.ErrorCode, resp.ErrorMsg)
	}

	lines := make([]string, 0, len(resp.TransResult))
	for _, r := range resp.TransResult {
		lines = append(lines, r.Dst)
	}
	return strings.Join(lines, "\n"), nil
}

func baiduSign(appID, text, salt, secret string) string {
	sum := md5.Sum([]byte(appID + text + salt + secret))
	return hex.EncodeToString(sum[:])
}
