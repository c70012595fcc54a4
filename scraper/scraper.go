package scraper

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/aluiziolira/go-scrape-reviews/config"
	"github.com/aluiziolira/go-scrape-reviews/models"
	"github.com/aluiziolira/go-scrape-reviews/parser"
	"github.com/aluiziolira/go-scrape-reviews/pipeline"
	"github.com/gocolly/colly/v2"
)

const (
	ctxStart = "start"
	ctxDoc   = "doc"
	ctxErr   = "err"
)

// Harvester fetches review pages one at a time and feeds their rows to a
// pipeline. It is not safe for concurrent use.
type Harvester struct {
	cfg              *config.Config
	collector        *colly.Collector
	selectors        parser.Selectors
	profileSelectors parser.ProfileSelectors
	Metrics          *Metrics

	requestCount int
	errorCount   int
	failedURLs   []string
	errorsByType map[string]int

	handlersOnce sync.Once
}

// NewHarvester builds a harvester configured from cfg. The collector is
// synchronous so exactly one request is in flight at a time.
func NewHarvester(cfg *config.Config) (*Harvester, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	collector := colly.NewCollector(
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
	)

	collector.SetRequestTimeout(cfg.Timeout)
	collector.IgnoreRobotsTxt = !cfg.RespectRobotsTxt
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 1,
		Delay:       cfg.Delay,
		RandomDelay: cfg.RandomDelay,
	}); err != nil {
		return nil, fmt.Errorf("configure rate limits: %w", err)
	}

	return &Harvester{
		cfg:              cfg,
		collector:        collector,
		selectors:        parser.DefaultSelectors(),
		profileSelectors: parser.DefaultProfileSelectors(),
		Metrics:          NewMetrics(),
		errorsByType:     make(map[string]int),
	}, nil
}

// Harvest reads page 1 of baseURL, derives the page count from the declared
// review total and appends every page's rows to the output returned by open.
//
// A failure on page 1 aborts the run before open is called. A failure or an
// empty page later on ends pagination and is not an error.
func (h *Harvester) Harvest(ctx context.Context, baseURL string, open pipeline.OpenFunc) (*models.HarvestResult, error) {
	h.reset()
	start := time.Now()

	first, err := h.Fetch(baseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFirstPage, err)
	}

	target := models.Target{
		URL:           baseURL,
		Name:          first.Name,
		DeclaredTotal: parser.ParseDeclaredTotal(first.TotalText),
	}
	pageCount := parser.PageCount(target.DeclaredTotal, h.cfg.PageSize)
	h.Metrics.SetDeclared(target.Name, target.DeclaredTotal)
	slog.Info("target resolved",
		slog.String("name", target.Name),
		slog.Int("declared_total", target.DeclaredTotal),
		slog.Int("pages", pageCount),
	)

	writer, err := open(target)
	if err != nil {
		return nil, fmt.Errorf("open output: %w", err)
	}
	p := pipeline.NewPipeline(writer)
	if h.cfg.Verbose {
		p.StartMetricsReporting(10 * time.Second)
	}

	result := &models.HarvestResult{
		Target:       target,
		PageCount:    pageCount,
		PagesFetched: 1,
		StartTime:    start,
	}

	runErr := h.write(p, target, first)
	for index := 1; runErr == nil && index < pageCount; index++ {
		if err := ctx.Err(); err != nil {
			slog.Warn("harvest interrupted", slog.Int("page", index+1), slog.Any("error", err))
			break
		}

		pageURL := parser.PageURL(baseURL, index, h.cfg.PageSize)
		slog.Info("fetching page", slog.Int("page", index+1), slog.String("url", pageURL))

		page, err := h.Fetch(pageURL)
		if err != nil {
			slog.Warn("page unavailable, ending pagination", slog.Int("page", index+1))
			break
		}
		result.PagesFetched++

		if len(page.Rows) == 0 {
			slog.Info("no reviews on page, ending pagination", slog.Int("page", index+1))
			break
		}
		runErr = h.write(p, target, page)
	}

	if err := p.Close(); err != nil && runErr == nil {
		runErr = err
	}
	if err := writer.Validate(); err != nil && runErr == nil {
		runErr = fmt.Errorf("validate output: %w", err)
	}
	if err := writer.Close(); err != nil && runErr == nil {
		runErr = fmt.Errorf("close output: %w", err)
	}

	if rows, ok := p.GetMetrics()["written_rows"].(int64); ok {
		result.RowsWritten = int(rows)
	}
	result.EndTime = time.Now()
	result.RequestCount = h.requestCount
	result.ErrorCount = h.errorCount
	result.FailedURLs = append([]string(nil), h.failedURLs...)
	result.ErrorsByType = make(map[string]int, len(h.errorsByType))
	for k, v := range h.errorsByType {
		result.ErrorsByType[k] = v
	}

	return result, runErr
}

// Fetch downloads pageURL and extracts its header and review rows.
func (h *Harvester) Fetch(pageURL string) (*models.Page, error) {
	doc, err := h.fetchDocument(pageURL)
	if err != nil {
		return nil, err
	}
	return h.selectors.ExtractPage(doc.Selection, pageURL), nil
}

// FetchProfile downloads a restaurant main page and extracts its details.
func (h *Harvester) FetchProfile(pageURL string) (*models.Profile, error) {
	doc, err := h.fetchDocument(pageURL)
	if err != nil {
		return nil, err
	}
	return h.profileSelectors.ExtractProfile(doc.Selection), nil
}

func (h *Harvester) write(p *pipeline.Pipeline, target models.Target, page *models.Page) error {
	if err := p.Process(target, page.Rows); err != nil {
		return err
	}
	h.Metrics.AddRows(len(page.Rows))
	return nil
}

func (h *Harvester) fetchDocument(pageURL string) (*goquery.Document, error) {
	h.configureHandlers()

	ctx := colly.NewContext()
	if err := h.collector.Request(http.MethodGet, pageURL, nil, ctx, nil); err != nil {
		classified, ok := ctx.GetAny(ctxErr).(error)
		if !ok {
			classified = classifyError(err, 0)
		}
		h.recordError(pageURL, classified)
		return nil, classified
	}

	if err, ok := ctx.GetAny(ctxErr).(error); ok {
		h.recordError(pageURL, err)
		return nil, err
	}
	doc, ok := ctx.GetAny(ctxDoc).(*goquery.Document)
	if !ok {
		err := errors.New("no document received")
		h.recordError(pageURL, err)
		return nil, err
	}
	h.Metrics.IncPages()
	return doc, nil
}

func (h *Harvester) configureHandlers() {
	h.handlersOnce.Do(func() {
		h.collector.OnRequest(func(r *colly.Request) {
			r.Ctx.Put(ctxStart, time.Now())
			h.requestCount++
			h.Metrics.IncRequest("started")
			slog.Debug("request", slog.String("url", r.URL.String()))
		})

		h.collector.OnResponse(func(r *colly.Response) {
			if start, ok := r.Ctx.GetAny(ctxStart).(time.Time); ok {
				h.Metrics.ObserveDuration(time.Since(start))
			}
			h.Metrics.IncRequest("completed")

			doc, err := goquery.NewDocumentFromReader(bytes.NewReader(r.Body))
			if err != nil {
				r.Ctx.Put(ctxErr, fmt.Errorf("parse html: %w", err))
				return
			}
			r.Ctx.Put(ctxDoc, doc)
		})

		h.collector.OnError(func(r *colly.Response, err error) {
			statusCode := 0
			if r != nil {
				statusCode = r.StatusCode
			}
			if r != nil && r.Ctx != nil {
				r.Ctx.Put(ctxErr, classifyError(err, statusCode))
			}
		})
	})
}

func (h *Harvester) recordError(pageURL string, err error) {
	category := errorTypeLabel(err)
	h.errorCount++
	h.errorsByType[category]++
	h.failedURLs = append(h.failedURLs, pageURL)
	h.Metrics.IncError(category)

	slog.Error("request error",
		slog.String("url", pageURL),
		slog.String("category", category),
		slog.Any("error", err),
	)
}

func (h *Harvester) reset() {
	h.requestCount = 0
	h.errorCount = 0
	h.failedURLs = nil
	h.errorsByType = make(map[string]int)
}
