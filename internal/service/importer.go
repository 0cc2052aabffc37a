package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"golang.org/x/time/rate"

	"github.com/shelfwise/shelfwise-server/internal/config"
	"github.com/shelfwise/shelfwise-server/internal/domain"
	domainerrors "github.com/shelfwise/shelfwise-server/internal/errors"
	"github.com/shelfwise/shelfwise-server/internal/id"
	"github.com/shelfwise/shelfwise-server/internal/store"
)

const (
	openLibrarySearchURL = "https://openlibrary.org/search.json"
	importMaxRetries     = 3
	importRequestTimeout = 20 * time.Second
	importMaxCount       = 5000
	importMaxBatchSize   = 100
)

var importJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// searchResponse is the slice of the Open Library search payload we consume.
type searchResponse struct {
	Docs []searchDoc `json:"docs"`
}

type searchDoc struct {
	Key              string   `json:"key"`
	Title            string   `json:"title"`
	TitleSuggest     string   `json:"title_suggest"`
	AuthorName       []string `json:"author_name"`
	ISBN             []string `json:"isbn"`
	Subject          []string `json:"subject"`
	Publisher        []string `json:"publisher"`
	PublishDate      []string `json:"publish_date"`
	FirstPublishYear int      `json:"first_publish_year"`
}

// ImportService pulls titles from the Open Library search API into the
// catalog. Requests are rate limited; results are deduplicated against both
// the current run and the existing catalog before insert.
type ImportService struct {
	store   store.Store
	client  *http.Client
	limiter *rate.Limiter
	copies  int
	logger  *slog.Logger

	baseURL    string
	retryDelay time.Duration
}

// NewImportService creates a new importer.
func NewImportService(st store.Store, cfg config.ImportConfig, logger *slog.Logger) *ImportService {
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = 1
	}
	copies := cfg.DefaultCopies
	if copies <= 0 {
		copies = 1
	}
	return &ImportService{
		store:      st,
		client:     &http.Client{Timeout: importRequestTimeout},
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		copies:     copies,
		logger:     logger,
		baseURL:    openLibrarySearchURL,
		retryDelay: 1500 * time.Millisecond,
	}
}

// ImportRequest bounds one import run.
type ImportRequest struct {
	Query     string `json:"query" validate:"required,max=256"`
	Count     int    `json:"count" validate:"gte=0"`
	BatchSize int    `json:"batch_size" validate:"gte=0"`
}

// ImportResult reports what one run did.
type ImportResult struct {
	Stored  int `json:"stored"`
	Skipped int `json:"skipped"`
}

// Import pulls up to req.Count titles matching req.Query and stores the new
// ones. Duplicate ISBNs and title/author pairs are skipped, not errors.
func (s *ImportService) Import(ctx context.Context, req ImportRequest) (*ImportResult, error) {
	if err := validate.Validate(req); err != nil {
		return nil, err
	}

	count := req.Count
	if count <= 0 {
		count = 100
	}
	if count > importMaxCount {
		count = importMaxCount
	}
	batchSize := req.BatchSize
	if batchSize <= 0 {
		batchSize = 50
	}
	if batchSize > importMaxBatchSize {
		batchSize = importMaxBatchSize
	}

	result := &ImportResult{}
	seenISBNs := make(map[string]bool)
	seenTitles := make(map[string]bool)

	s.logger.Info("open library import started", "query", req.Query, "count", count)

	for page := 1; result.Stored < count; page++ {
		docs, err := s.fetchBatch(ctx, req.Query, page, batchSize)
		if err != nil {
			return nil, err
		}
		if len(docs) == 0 {
			s.logger.Info("open library returned no more results", "page", page)
			break
		}

		for _, doc := range docs {
			if result.Stored >= count {
				break
			}

			book, ok := s.buildBook(doc)
			if !ok {
				result.Skipped++
				continue
			}

			titleKey := book.Title + "\x00" + book.Author
			if seenISBNs[book.ISBN] || seenTitles[titleKey] {
				result.Skipped++
				continue
			}

			if _, err := s.store.GetBookByISBN(ctx, book.ISBN); err == nil {
				result.Skipped++
				continue
			} else if !errors.Is(err, store.ErrNotFound) {
				return nil, domainerrors.Storage(err, "check existing isbn")
			}

			if err := s.store.CreateBook(ctx, book); err != nil {
				if errors.Is(err, store.ErrAlreadyExists) {
					result.Skipped++
					continue
				}
				return nil, domainerrors.Storage(err, "store imported book")
			}

			result.Stored++
			seenISBNs[book.ISBN] = true
			seenTitles[titleKey] = true
		}
	}

	s.logger.Info("open library import finished",
		"stored", result.Stored, "skipped", result.Skipped)
	return result, nil
}

// fetchBatch requests one page of search results, rate limited and retried.
func (s *ImportService) fetchBatch(ctx context.Context, query string, page, limit int) ([]searchDoc, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("page", strconv.Itoa(page))
	params.Set("limit", strconv.Itoa(limit))
	reqURL := s.baseURL + "?" + params.Encode()

	var lastErr error
	for attempt := 1; attempt <= importMaxRetries; attempt++ {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		docs, err := s.fetchOnce(ctx, reqURL)
		if err == nil {
			return docs, nil
		}
		lastErr = err
		s.logger.Warn("open library request failed",
			"page", page, "attempt", attempt, "error", err)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt) * s.retryDelay):
		}
	}
	return nil, fmt.Errorf("fetch open library page %d: %w", page, lastErr)
}

func (s *ImportService) fetchOnce(ctx context.Context, reqURL string) ([]searchDoc, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var payload searchResponse
	if err := importJSON.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return payload.Docs, nil
}

// buildBook maps one search document onto a catalog entry. Documents
// without a usable title or ISBN are rejected.
func (s *ImportService) buildBook(doc searchDoc) (*domain.Book, bool) {
	title := strings.TrimSpace(doc.Title)
	if title == "" {
		title = strings.TrimSpace(doc.TitleSuggest)
	}
	if title == "" {
		return nil, false
	}
	title = truncate(title, 200)

	author := strings.TrimSpace(strings.Join(doc.AuthorName, ", "))
	if author == "" {
		author = "Unknown"
	}
	author = truncate(author, 100)

	isbn := pickISBN(doc)
	if isbn == "" {
		return nil, false
	}

	category := "Unknown"
	if len(doc.Subject) > 0 {
		category = truncate(strings.Join(doc.Subject, ", "), 50)
	}

	publisher := "Open Library"
	if len(doc.Publisher) > 0 {
		publisher = truncate(doc.Publisher[0], 100)
	}

	bookID, err := id.Generate("book")
	if err != nil {
		return nil, false
	}

	return &domain.Book{
		ID:          bookID,
		Title:       title,
		Author:      author,
		ISBN:        isbn,
		Category:    category,
		Publisher:   publisher,
		PublishDate: choosePublishDate(doc),
		TotalCopies: s.copies,
		CreatedAt:   time.Now(),
	}, true
}

// pickISBN prefers a 13-digit ISBN, then 10-digit, then falls back to the
// work key so every imported title carries a dedupe key.
func pickISBN(doc searchDoc) string {
	var best string
	for _, raw := range doc.ISBN {
		cleaned := strings.TrimSpace(strings.ReplaceAll(raw, "-", ""))
		if len(cleaned) <= 9 || len(cleaned) > 20 {
			continue
		}
		if len(cleaned) == 13 {
			return cleaned
		}
		if best == "" {
			best = cleaned
		}
	}
	if best != "" {
		return best
	}

	if doc.Key == "" {
		return ""
	}
	fallback := strings.ReplaceAll(doc.Key, "/works/", "")
	fallback = strings.ReplaceAll(fallback, "/books/", "")
	return truncate(fallback, 18) + "OL"
}

// choosePublishDate formats the publish date as YYYY-01-01, defaulting to
// 1900-01-01 when the document carries no usable year.
func choosePublishDate(doc searchDoc) string {
	if doc.FirstPublishYear > 0 && doc.FirstPublishYear < 3000 {
		return fmt.Sprintf("%04d-01-01", doc.FirstPublishYear)
	}

	for _, value := range doc.PublishDate {
		var digits strings.Builder
		for _, ch := range value {
			if ch >= '0' && ch <= '9' {
				digits.WriteRune(ch)
			}
		}
		if digits.Len() >= 4 {
			year, err := strconv.Atoi(digits.String()[:4])
			if err == nil && year > 0 && year < 3000 {
				return fmt.Sprintf("%04d-01-01", year)
			}
		}
	}
	return "1900-01-01"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
