package verify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/valyala/fasthttp"
	"golang.org/x/net/html"

	"verification-api/internal/models"
	"verification-api/internal/utils"
)

const (
	MaxCompanyNameLength = 200
	MaxWebsiteLength     = 500

	maxRedirects    = 10
	maxResponseBody = 5 << 20

	scoreWebsite = 0.4
	scoreSSL     = 0.2
	scoreSocial  = 0.1
)

var (
	ErrCompanyNameRequired = errors.New("company_name is required")
	ErrCompanyNameTooLong  = fmt.Errorf("company_name must be at most %d characters", MaxCompanyNameLength)
	ErrWebsiteTooLong      = fmt.Errorf("website must be at most %d characters", MaxWebsiteLength)
)

type socialPlatform struct {
	name    string
	domains []string
}

var socialPlatforms = []socialPlatform{
	{name: "linkedin", domains: []string{"linkedin.com"}},
	{name: "twitter", domains: []string{"twitter.com", "x.com"}},
	{name: "facebook", domains: []string{"facebook.com"}},
}

// Checker probes a company's website and scores its online presence.
type Checker struct {
	client  *fasthttp.Client
	timeout time.Duration
}

func NewChecker(timeout time.Duration) *Checker {
	return &Checker{
		client: &fasthttp.Client{
			Name:                "company-verification-api",
			ReadTimeout:         timeout,
			WriteTimeout:        timeout,
			MaxResponseBodySize: maxResponseBody,
		},
		timeout: timeout,
	}
}

func Validate(req models.CompanyVerifyRequest) error {
	switch n := utf8.RuneCountInString(req.CompanyName); {
	case strings.TrimSpace(req.CompanyName) == "":
		return ErrCompanyNameRequired
	case n > MaxCompanyNameLength:
		return ErrCompanyNameTooLong
	}
	if utf8.RuneCountInString(req.Website) > MaxWebsiteLength {
		return ErrWebsiteTooLong
	}
	return nil
}

// NormalizeWebsite prefixes schemeless addresses with https://.
func NormalizeWebsite(website string) string {
	website = strings.TrimSpace(website)
	if website == "" || strings.HasPrefix(website, "http://") || strings.HasPrefix(website, "https://") {
		return website
	}
	return "https://" + website
}

func (c *Checker) Check(ctx context.Context, companyName, website string) models.VerificationResult {
	website = NormalizeWebsite(website)
	result := models.VerificationResult{
		CompanyName:        companyName,
		Website:            website,
		VerificationStatus: models.VerificationPending,
		Checks:             models.VerificationChecks{SocialMedia: map[string]string{}},
		RiskFlags:          []string{},
		Timestamp:          time.Now().UTC(),
	}

	if website == "" {
		result.VerificationStatus = models.VerificationIncomplete
		result.RiskFlags = append(result.RiskFlags, "No website provided")
		return result
	}

	status, body, err := c.fetch(ctx, website)
	switch {
	case err != nil && isTimeout(err):
		result.RiskFlags = append(result.RiskFlags, "Website timeout")
	case err != nil:
		result.RiskFlags = append(result.RiskFlags, "Verification error: "+err.Error())
	default:
		score(&result, status, body)
	}

	utils.LogDebug("Checker", "%s scored %.1f (%s)", website, result.ConfidenceScore, result.VerificationStatus)
	return result
}

// CheckAll runs the checks concurrently and keeps the input order.
func (c *Checker) CheckAll(ctx context.Context, companies []models.CompanyVerifyRequest) []models.VerificationResult {
	results := make([]models.VerificationResult, len(companies))

	var wg sync.WaitGroup
	for i, company := range companies {
		wg.Add(1)
		go func(i int, company models.CompanyVerifyRequest) {
			defer wg.Done()
			results[i] = c.Check(ctx, company.CompanyName, company.Website)
		}(i, company)
	}
	wg.Wait()

	return results
}

func (c *Checker) fetch(ctx context.Context, website string) (int, []byte, error) {
	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}
	if err := ctx.Err(); err != nil {
		return 0, nil, err
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(website)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.SetTimeout(timeout)

	if err := c.client.DoRedirects(req, resp, maxRedirects); err != nil {
		return 0, nil, err
	}

	body, err := resp.BodyUncompressed()
	if err != nil {
		body = resp.Body()
	}
	return resp.StatusCode(), append([]byte(nil), body...), nil
}

func isTimeout(err error) bool {
	if errors.Is(err, fasthttp.ErrTimeout) ||
		errors.Is(err, fasthttp.ErrDialTimeout) ||
		errors.Is(err, fasthttp.ErrTLSHandshakeTimeout) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// score fills in the checks for a completed fetch.
func score(result *models.VerificationResult, status int, body []byte) {
	if status != fasthttp.StatusOK {
		result.RiskFlags = append(result.RiskFlags, fmt.Sprintf("Website returned status %d", status))
		return
	}

	result.Checks.WebsiteExists = true
	result.ConfidenceScore += scoreWebsite

	if strings.HasPrefix(result.Website, "https://") {
		result.Checks.SSLValid = true
		result.ConfidenceScore += scoreSSL
	}

	for platform, href := range socialLinks(body) {
		result.Checks.SocialMedia[platform] = href
		result.ConfidenceScore += scoreSocial
	}

	result.VerificationStatus = models.VerificationVerified
	if result.ConfidenceScore < 0.5 {
		result.RiskFlags = append(result.RiskFlags, "Low online presence")
	}
	if !result.Checks.SSLValid {
		result.RiskFlags = append(result.RiskFlags, "No SSL certificate")
	}
	if result.ConfidenceScore > 1.0 {
		result.ConfidenceScore = 1.0
	}
	// 0.4 + 0.1 + 0.1 is not 0.6 in binary
	result.ConfidenceScore = float64(int(result.ConfidenceScore*10+0.5)) / 10
}

// socialLinks returns the first anchor href found for each platform.
func socialLinks(body []byte) map[string]string {
	found := make(map[string]string)
	tokenizer := html.NewTokenizer(bytes.NewReader(body))

	for len(found) < len(socialPlatforms) {
		switch tokenizer.Next() {
		case html.ErrorToken:
			return found
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := tokenizer.TagName()
			if string(name) != "a" || !hasAttr {
				continue
			}
			for {
				key, val, more := tokenizer.TagAttr()
				if string(key) == "href" {
					matchPlatform(found, string(val))
				}
				if !more {
					break
				}
			}
		}
	}
	return found
}

func matchPlatform(found map[string]string, href string) {
	for _, platform := range socialPlatforms {
		if _, ok := found[platform.name]; ok {
			continue
		}
		for _, domain := range platform.domains {
			if strings.Contains(href, domain) {
				found[platform.name] = href
				break
			}
		}
	}
}
