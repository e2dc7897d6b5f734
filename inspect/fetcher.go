package inspect

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/tebeka/selenium"
	"github.com/tebeka/selenium/chrome"

	"github.com/raushankrgupta/fitly-shop-links/utils"
)

const (
	userAgent        = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	chromeDriverPath = "/usr/local/bin/chromedriver"
)

// Fetcher loads product pages over plain HTTP and, when enabled, through
// headless Chrome (chromedp) and then a full selenium-driven browser.
type Fetcher struct {
	Client          *http.Client
	BrowserFallback bool
	ChromeDriver    string

	ports  *PortManager
	logger *utils.Logger
}

func NewFetcher(browserFallback bool, logger *utils.Logger) *Fetcher {
	if logger == nil {
		logger = utils.NopLogger()
	}
	return &Fetcher{
		Client: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				ForceAttemptHTTP2:     false,
				TLSNextProto:          make(map[string]func(string, *tls.Conn) http.RoundTripper),
				MaxIdleConns:          100,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
			},
		},
		BrowserFallback: browserFallback,
		ChromeDriver:    chromeDriverPath,
		ports:           NewPortManager(4444, 16),
		logger:          logger,
	}
}

// FetchDocument tries each strategy in turn until one yields a page the validator accepts.
func (f *Fetcher) FetchDocument(ctx context.Context, url string, validator func(*goquery.Document) bool) (*goquery.Document, error) {
	doc, err := f.FetchDocumentHTTP(ctx, url)
	if err == nil && validator(doc) {
		return doc, nil
	}
	if err != nil {
		f.logger.Debug("http fetch failed", "url", url, "error", err)
	} else {
		f.logger.Debug("http fetch yielded unusable page", "url", url)
	}
	if !f.BrowserFallback {
		return nil, fmt.Errorf("http fetch unusable for %s", url)
	}

	doc, err = f.FetchDocumentChromeDP(ctx, url)
	if err == nil && validator(doc) {
		return doc, nil
	}
	if err != nil {
		f.logger.Debug("chromedp fetch failed", "url", url, "error", err)
	}

	doc, err = f.FetchDocumentSelenium(ctx, url)
	if err == nil && validator(doc) {
		return doc, nil
	}
	if err != nil {
		f.logger.Debug("selenium fetch failed", "url", url, "error", err)
	}
	return nil, fmt.Errorf("all strategies failed for %s", url)
}

// isValidDocument rejects bot walls and near-empty pages.
func isValidDocument(doc *goquery.Document) bool {
	title := strings.ToLower(strings.TrimSpace(doc.Find("title").Text()))
	if strings.Contains(title, "robot check") ||
		strings.Contains(title, "captcha") ||
		strings.Contains(title, "access denied") {
		return false
	}
	if _, ok := imageFrom(doc); ok {
		return true
	}
	return len(strings.TrimSpace(doc.Find("body").Text())) > 200
}

func (f *Fetcher) FetchDocumentHTTP(ctx context.Context, url string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
	req.Header.Set("Sec-Fetch-Dest", "document")
	req.Header.Set("Sec-Fetch-Mode", "navigate")
	req.Header.Set("Sec-Fetch-Site", "cross-site")

	res, err := f.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status code error: %d %s", res.StatusCode, res.Status)
	}
	return goquery.NewDocumentFromReader(res.Body)
}

func (f *Fetcher) FetchDocumentChromeDP(ctx context.Context, url string) (*goquery.Document, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.UserAgent(userAgent),
	)
	allocCtx, cancel := chromedp.NewExecAllocator(ctx, opts...)
	defer cancel()

	taskCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	headers := map[string]interface{}{
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Accept-Language": "en-US,en;q=0.5",
	}
	if err := chromedp.Run(taskCtx, network.SetExtraHTTPHeaders(network.Headers(headers))); err != nil {
		return nil, fmt.Errorf("chromedp header error: %w", err)
	}

	var htmlContent string
	err := chromedp.Run(taskCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(2*time.Second),
		chromedp.OuterHTML("html", &htmlContent),
	)
	if err != nil {
		return nil, fmt.Errorf("chromedp navigation error: %w", err)
	}
	return goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
}

func (f *Fetcher) FetchDocumentSelenium(ctx context.Context, url string) (*goquery.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	port, err := f.ports.GetPort()
	if err != nil {
		return nil, fmt.Errorf("port error: %w", err)
	}
	defer f.ports.ReleasePort(port)

	service, err := selenium.NewChromeDriverService(f.ChromeDriver, port)
	if err != nil {
		return nil, fmt.Errorf("error starting Chrome driver service: %w", err)
	}
	defer service.Stop()

	caps := selenium.Capabilities{"browserName": "chrome"}
	caps.AddChrome(chrome.Capabilities{
		Args: []string{
			"--headless=new",
			"--no-sandbox",
			"--disable-dev-shm-usage",
			"--disable-blink-features=AutomationControlled",
			"--disable-gpu",
			"--window-size=1920,1080",
			fmt.Sprintf("--user-agent=%s", userAgent),
		},
		ExcludeSwitches: []string{"enable-automation"},
	})

	driver, err := selenium.NewRemote(caps, fmt.Sprintf("http://localhost:%d/wd/hub", port))
	if err != nil {
		return nil, fmt.Errorf("error creating WebDriver: %w", err)
	}
	defer driver.Quit()

	if err := driver.SetPageLoadTimeout(45 * time.Second); err != nil {
		return nil, fmt.Errorf("page load timeout: %w", err)
	}
	if err := driver.Get(url); err != nil {
		return nil, fmt.Errorf("navigation error: %w", err)
	}

	html, err := driver.PageSource()
	if err != nil {
		return nil, fmt.Errorf("page source error: %w", err)
	}
	return goquery.NewDocumentFromReader(strings.NewReader(html))
}
