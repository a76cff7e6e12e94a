// Package pportal implements the scraping source client for the
// government e-procurement portal. The portal has no data API: a
// session is established against the search page to pick up cookies
// and the anti-forgery token, then each query is a form-encoded POST
// whose HTML response is parsed with goquery.
package pportal

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/728jm2pczg-glitch/bid-aggregator/internal/logger"
	"github.com/728jm2pczg-glitch/bid-aggregator/internal/sources"
)

const (
	// DefaultBaseURL is the portal application root.
	DefaultBaseURL = "https://www.p-portal.go.jp/pps-web-biz"
	// DefaultTimeout is the default per-request timeout.
	DefaultTimeout = 30 * time.Second
	// DefaultRequestInterval is the default minimum interval between
	// requests. Scraping keeps a wider gap than the structured API.
	DefaultRequestInterval = 2 * time.Second

	searchPagePath = "/UAA01/OAA0101"
	searchExecPath = "/UAA01/OAA0100"

	userAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// Config holds client configuration.
type Config struct {
	BaseURL         string
	Timeout         time.Duration
	RequestInterval time.Duration

	// ProcurementTypes and OrganizationCodes narrow every search made
	// through this client. Friendly names from the code tables are
	// accepted alongside raw codes.
	ProcurementTypes  []string
	OrganizationCodes []string
	// Classification: "1" goods and services, "2" simple public works,
	// empty for all.
	Classification string
}

// WithDefaults returns a copy with defaults applied to zero values.
func (c Config) WithDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RequestInterval <= 0 {
		c.RequestInterval = DefaultRequestInterval
	}
	return c
}

// Client is the scraping source client.
type Client struct {
	cfg        Config
	httpClient *http.Client
	gate       *sources.RateGate
	log        logger.Interface

	sessionReady bool
	csrfToken    string
}

var _ sources.Client = (*Client)(nil)

// New creates a new portal client with its own cookie jar.
func New(cfg Config, log logger.Interface) *Client {
	cfg = cfg.WithDefaults()
	jar, _ := cookiejar.New(nil)
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Jar:     jar,
		},
		gate: sources.NewRateGate(cfg.RequestInterval),
		log:  log.WithComponent("pportal"),
	}
}

// Source returns the source identifier.
func (c *Client) Source() string { return sources.SourcePPortal }

// initSession fetches the search page once to obtain session cookies
// and the anti-forgery token. A missing token is logged and tolerated.
func (c *Client) initSession(ctx context.Context) error {
	if c.sessionReady {
		return nil
	}

	if err := c.gate.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+searchPagePath, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to build session request: %w", err)
	}
	c.setCommonHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &sources.TransportError{Err: err}
	}
	defer resp.Body.Close()
	c.gate.Stamp()

	if resp.StatusCode != http.StatusOK {
		return &sources.ProtocolError{StatusCode: resp.StatusCode, Message: "session init failed"}
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return &sources.ParseError{Err: fmt.Errorf("failed to parse search page: %w", err)}
	}

	token, ok := doc.Find("input[name=_csrf]").Attr("value")
	if ok && token != "" {
		c.csrfToken = token
		c.log.Debug("csrf token acquired")
	} else {
		c.log.Warn("csrf token not found on search page")
	}

	c.sessionReady = true
	return nil
}

// Fetch executes one search. Only the first result page is fetched;
// the portal's paging is stateful and not worth the session churn.
func (c *Client) Fetch(ctx context.Context, q sources.Query) (*sources.FetchResult, error) {
	var body []byte
	var status int
	var contentType string

	form := c.buildForm(q)

	fetchErr := sources.WithRetry(func() error {
		if err := c.initSession(ctx); err != nil {
			return err
		}
		var err error
		body, status, contentType, err = c.doSearch(ctx, form)
		return err
	})
	if fetchErr != nil {
		return nil, fetchErr
	}

	records, total, err := parseResults(body, c.cfg.BaseURL, c.log)
	if err != nil {
		return nil, err
	}

	c.log.Debug("pportal search complete", "total", total, "rows", len(records))

	return &sources.FetchResult{
		Records:       records,
		RawBody:       body,
		HTTPStatus:    status,
		ContentType:   contentType,
		TotalHits:     total,
		RequestParams: fingerprintParams(q, c.cfg),
	}, nil
}

// buildForm lays out the search form exactly as the portal's own page
// submits it, hidden checkbox companions included. Order matters for
// repeated checkbox fields, so the form is a value list, not a map.
func (c *Client) buildForm(q sources.Query) url.Values {
	form := url.Values{}
	if c.csrfToken != "" {
		form.Set("_csrf", c.csrfToken)
	}

	// Fixed filter fields: open cases, name search without synonyms.
	form.Set("searchConditionBean.ankenBunrui", "1")
	form.Set("searchConditionBean.bunrui", c.cfg.Classification)
	form.Set("searchConditionBean.ankenMeisho", q.Params.Query)
	form.Set("searchConditionBean.ankenMeishoKensakuHoho", "1")
	form.Set("searchConditionBean.ankenBango", "")
	form.Set("searchConditionBean.procurementCla", "")
	form.Set("searchConditionBean.procurementOrganNm", "")
	form.Set("searchConditionBean.receiptAddress", "")
	form.Set("searchConditionBean.procurementItemCla", "")

	types := c.cfg.ProcurementTypes
	if len(types) == 0 {
		types = DefaultProcurementTypes
	}
	for _, t := range types {
		if code, ok := ProcurementTypes[t]; ok {
			t = code
		}
		form.Add(procurementFieldFor(t), t)
	}

	// Hidden companions the server expects for every checkbox group.
	form.Set("_searchConditionBean.procurementClaBean.procurementClaBidNotice", "on")
	form.Set("_searchConditionBean.procurementClaBean.requestSubmissionMaterials", "on")
	form.Set("_searchConditionBean.procurementClaBean.requestComment", "on")
	form.Set("_searchConditionBean.procurementClaBean.procurementImplementNotice", "on")
	form.Set("_searchConditionBean.procurementClaBean.successfulBidNotice", "on")

	orgs := c.cfg.OrganizationCodes
	if len(orgs) == 0 && q.Params.OrganizationName != "" {
		orgs = []string{q.Params.OrganizationName}
	}
	for _, org := range orgs {
		form.Add("searchConditionBean.govementProcurementOraganBean.procurementOrgNm", ResolveOrganization(org))
	}
	form.Set("_searchConditionBean.govementProcurementOraganBean.procurementOrgNm", "on")

	// Publish-start date bounds. The portal wants slashes.
	if q.From != "" {
		form.Set("searchConditionBean.kokaiKaishiYmdFrom", strings.ReplaceAll(q.From, "-", "/"))
	}
	if q.To != "" {
		form.Set("searchConditionBean.kokaiKaishiYmdTo", strings.ReplaceAll(q.To, "-", "/"))
	}

	return form
}

// procurementFieldFor routes a category code to the checkbox group the
// portal files it under.
func procurementFieldFor(code string) string {
	switch code {
	case "01", "02":
		return "searchConditionBean.procurementClaBean.procurementClaBidNotice"
	case "03":
		return "searchConditionBean.procurementClaBean.requestSubmissionMaterials"
	case "04":
		return "searchConditionBean.procurementClaBean.requestComment"
	case "08", "15", "16":
		return "searchConditionBean.procurementClaBean.successfulBidNotice"
	default:
		return "searchConditionBean.procurementClaBean.procurementImplementNotice"
	}
}

// fingerprintParams flattens the effective query for request
// fingerprinting. The raw form carries session state (csrf token) that
// must not feed the fingerprint.
func fingerprintParams(q sources.Query, cfg Config) map[string]string {
	params := map[string]string{
		"keyword":        q.Params.Query,
		"from":           q.From,
		"to":             q.To,
		"classification": cfg.Classification,
	}
	types := cfg.ProcurementTypes
	if len(types) == 0 {
		types = DefaultProcurementTypes
	}
	params["procurement_types"] = strings.Join(types, ",")
	if len(cfg.OrganizationCodes) > 0 {
		params["organizations"] = strings.Join(cfg.OrganizationCodes, ",")
	} else if q.Params.OrganizationName != "" {
		params["organizations"] = q.Params.OrganizationName
	}
	return params
}

// doSearch performs the search POST under the rate gate.
func (c *Client) doSearch(ctx context.Context, form url.Values) ([]byte, int, string, error) {
	if err := c.gate.Wait(ctx); err != nil {
		return nil, 0, "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.cfg.BaseURL+searchExecPath, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, 0, "", fmt.Errorf("failed to build search request: %w", err)
	}
	c.setCommonHeaders(req)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Referer", c.cfg.BaseURL+searchPagePath)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, "", &sources.TransportError{Err: err}
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(resp.Body)
	c.gate.Stamp()
	if readErr != nil {
		return nil, 0, "", &sources.TransportError{Err: readErr}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, 0, "", &sources.ProtocolError{StatusCode: resp.StatusCode, Message: "search request failed"}
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "text/html"
	}
	return body, resp.StatusCode, contentType, nil
}

func (c *Client) setCommonHeaders(req *http.Request) {
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "ja,en-US;q=0.9,en;q=0.8")
}
