package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// CaptchaVerifier checks reCAPTCHA tokens against the siteverify endpoint.
type CaptchaVerifier struct {
	secret     string
	verifyURL  string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewCaptchaVerifier(secret, verifyURL string, logger *zap.Logger) *CaptchaVerifier {
	return &CaptchaVerifier{
		secret:     secret,
		verifyURL:  verifyURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

type siteVerifyResponse struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes"`
}

// Verify reports whether token is valid. Network and decoding failures count
// as a failed verification.
func (v *CaptchaVerifier) Verify(ctx context.Context, token, remoteIP string) bool {
	if v.secret == "" {
		v.logger.Error("reCAPTCHA secret not configured")
		return false
	}

	form := url.Values{}
	form.Set("secret", v.secret)
	form.Set("response", token)
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.verifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		v.logger.Error("failed to build reCAPTCHA request", zap.Error(err))
		return false
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		v.logger.Warn("reCAPTCHA verification error", zap.Error(err))
		return false
	}
	defer resp.Body.Close()

	var result siteVerifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		v.logger.Warn("reCAPTCHA response decode error", zap.Error(err))
		return false
	}
	if !result.Success {
		v.logger.Info("reCAPTCHA rejected token", zap.Strings("error_codes", result.ErrorCodes))
	}
	return result.Success
}
