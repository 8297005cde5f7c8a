package translate

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/bissquit/mediahook/internal/enrich"
	"github.com/goccy/go-json"
	"golang.org/x/time/rate"
)

const (
	defaultTencentURL    = "https://tmt.tencentcloudapi.com"
	defaultTencentRegion = "ap-guangzhou"
	tencentService       = "tmt"
	tencentAction        = "TextTranslate"
	tencentVersion       = "2018-03-21"
	tencentAlgorithm     = "TC3-HMAC-SHA256"
	tencentContentType   = "application/json; charset=utf-8"
	tencentSignedHeaders = "content-type;host"
)

// TencentConfig configures Tencent Cloud machine translation.
type TencentConfig struct {
	SecretID  string
	SecretKey string
	Region    string
	BaseURL   string
	Timeout   time.Duration
}

// Tencent calls the TextTranslate action of Tencent Cloud TMT, signing
// each request with TC3-HMAC-SHA256.
type Tencent struct {
	config     TencentConfig
	host       string
	httpClient *http.Client
	limiter    *rate.Limiter
	now        func() time.Time
}

// NewTencent creates a Tencent service. Both secrets are required.
func NewTencent(config TencentConfig) (*Tencent, error) {
	if config.SecretID == "" || config.SecretKey == "" {
		return nil, errors.New("tencent translator: secret id and secret key are required")
	}
	if config.BaseURL == "" {
		config.BaseURL = defaultTencentURL
	}
	if config.Region == "" {
		config.Region = defaultTencentRegion
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}

	u, err := url.Parse(config.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("tencent translator: parse base url: %w", err)
	}

	return &Tencent{
		config:     config,
		host:       u.Host,
		httpClient: &http.Client{Timeout: config.Timeout},
		limiter:    rate.NewLimiter(rate.Every(200*time.Millisecond), 1),
		now:        time.Now,
	}, nil
}

// ID implements Service.
func (t *Tencent) ID() string { return "tencent" }

type tencentRequest struct {
	SourceText string `json:"SourceText"`
	Source     string `json:"Source"`
	Target     string `json:"Target"`
	ProjectID  int    `json:"ProjectId"`
}

type tencentResponse struct {
	Response struct {
		TargetText string `json:"TargetText"`
		Error      *struct {
			Code    string `json:"Code"`
			Message string `json:"Message"`
		} `json:"Error"`
	} `json:"Response"`
}

// Translate implements Service.
func (t *Tencent) Translate(ctx context.Context, text string) (string, error) {
	payload, err := json.Marshal(tencentRequest{SourceText: text, Source: "auto", Target: Target})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.config.BaseURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	ts := t.now().UTC()
	req.Header.Set("Content-Type", tencentContentType)
	req.Header.Set("X-TC-Action", tencentAction)
	req.Header.Set("X-TC-Version", tencentVersion)
	req.Header.Set("X-TC-Region", t.config.Region)
	req.Header.Set("X-TC-Timestamp", strconv.FormatInt(ts.Unix(), 10))
	req.Header.Set("Authorization", t.authorization(payload, ts))

	var resp tencentResponse
	if err := enrich.DoJSON(t.httpClient, t.limiter, t.ID(), req, &resp); err != nil {
		return "", err
	}
	if e := resp.Response.Error; e != nil {
		return "", fmt.Errorf("tencent error %s: %s", e.Code, e.Message)
	}
	return resp.Response.TargetText, nil
}

// authorization builds the TC3-HMAC-SHA256 Authorization header for a
// POST of payload to the service root at ts.
func (t *Tencent) authorization(payload []byte, ts time.Time) string {
	date := ts.Format("2006-01-02")
	scope := date + "/" + tencentService + "/tc3_request"

	canonical := "POST\n/\n\n" +
		"content-type:" + tencentContentType + "\n" +
		"host:" + t.host + "\n\n" +
		tencentSignedHeaders + "\n" +
		sha256Hex(payload)

	stringToSign := tencentAlgorithm + "\n" +
		strconv.FormatInt(ts.Unix(), 10) + "\n" +
		scope + "\n" +
		sha256Hex([]byte(canonical))

	key := hmacSHA256([]byte("TC3"+t.config.SecretKey), date)
	key = hmacSHA256(key, tencentService)
	key = hmacSHA256(key, "tc3_request")
	signature := hex.EncodeToString(hmacSHA256(key, stringToSign))

	return fmt.Sprintf("%s Credential=%s/%s, SignedHeaders=%s, Signature=%s",
		tencentAlgorithm, t.config.SecretID, scope, tencentSignedHeaders, signature)
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func hmacSHA256(key []byte, msg string) []byte {
	h := hmac.New(sha256.New, key)
	h.Write([]byte(msg))
	return h.Sum(nil)
}
