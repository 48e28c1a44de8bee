package ocr

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/amishk599/autosignin/internal/config"
)

// DefaultBaiduURL is the Baidu AIP API root.
const DefaultBaiduURL = "https://aip.baidubce.com"

// BaiduClient calls the Baidu AIP general_basic OCR endpoint. The OAuth access
// token is fetched on first use and cached until it expires.
type BaiduClient struct {
	baseURL    string
	apiKey     string
	secretKey  string
	httpClient *http.Client

	mu      sync.Mutex
	token   string
	expires time.Time
}

// NewBaiduClient creates a client targeting baseURL with the given credentials.
func NewBaiduClient(baseURL string, cfg config.AipOCRConfig, httpClient *http.Client) *BaiduClient {
	return &BaiduClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     cfg.APIKey,
		secretKey:  cfg.SecretKey,
		httpClient: httpClient,
	}
}

// New returns a Baidu client when cfg carries credentials, otherwise Nop.
func New(cfg config.AipOCRConfig, httpClient *http.Client) Recognizer {
	if !cfg.Enabled() {
		return Nop{}
	}
	return NewBaiduClient(DefaultBaiduURL, cfg, httpClient)
}

// tokenResponse mirrors the OAuth token endpoint response.
type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	ExpiresIn        int    `json:"expires_in"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// ocrResponse mirrors the relevant fields of the general_basic response.
type ocrResponse struct {
	WordsResult []struct {
		Words string `json:"words"`
	} `json:"words_result"`
	ErrorCode int    `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`
}

// Recognize sends image to the OCR API and returns the recognized words
// joined without separators, with whitespace removed.
func (c *BaiduClient) Recognize(ctx context.Context, image []byte) (string, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return "", err
	}

	form := url.Values{"image": {base64.StdEncoding.EncodeToString(image)}}
	endpoint := c.baseURL + "/rest/2.0/ocr/v1/general_basic?access_token=" + url.QueryEscape(token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create ocr request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var resp ocrResponse
	if err := c.do(req, &resp); err != nil {
		return "", fmt.Errorf("ocr request: %w", err)
	}
	if resp.ErrorCode != 0 {
		return "", fmt.Errorf("ocr error (%d): %s", resp.ErrorCode, resp.ErrorMsg)
	}
	if len(resp.WordsResult) == 0 {
		return "", fmt.Errorf("ocr returned no words")
	}

	var b strings.Builder
	for _, w := range resp.WordsResult {
		b.WriteString(strings.Join(strings.Fields(w.Words), ""))
	}
	return b.String(), nil
}

func (c *BaiduClient) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && time.Now().Before(c.expires) {
		return c.token, nil
	}

	q := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {c.apiKey},
		"client_secret": {c.secretKey},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/oauth/2.0/token?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("create token request: %w", err)
	}

	var resp tokenResponse
	if err := c.do(req, &resp); err != nil {
		return "", fmt.Errorf("token request: %w", err)
	}
	if resp.Error != "" {
		return "", fmt.Errorf("token error (%s): %s", resp.Error, resp.ErrorDescription)
	}
	if resp.AccessToken == "" {
		return "", fmt.Errorf("token response has no access_token")
	}

	c.token = resp.AccessToken
	// Renew a minute early.
	c.expires = time.Now().Add(time.Duration(resp.ExpiresIn)*time.Second - time.Minute)
	return c.token, nil
}

func (c *BaiduClient) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}
