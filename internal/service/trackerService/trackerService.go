package trackerService

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/KotFed0t/portfolio_tracker/internal/holdingsReader/csvReader"
	"github.com/KotFed0t/portfolio_tracker/internal/holdingsReader/xlsxReader"
	"github.com/KotFed0t/portfolio_tracker/internal/model"
	"github.com/KotFed0t/portfolio_tracker/internal/portfolio"
	"github.com/KotFed0t/portfolio_tracker/internal/service"
	"github.com/KotFed0t/portfolio_tracker/utils"
)

type HoldingsReader interface {
	ReadFile(ctx context.Context, path string) ([]model.RawHolding, error)
}

// QuoteInvalidator is implemented by market data sources that cache quotes.
type QuoteInvalidator interface {
	Invalidate(ctx context.Context, symbols []string) error
}

type ReportGenerator interface {
	Generate(ctx context.Context, portfolios []model.PortfolioFullInfo) (fileBytes []byte, fileExtension string, err error)
}

type CloudStorage interface {
	UploadFile(ctx context.Context, reader io.Reader, filename string) (downloadLink string, err error)
	DeleteOldFiles(ctx context.Context) error
}

// ReadOptions locate the holdings table inside the input file. Sheet and
// StartColumn apply to XLSX input only.
type ReadOptions struct {
	Sheet       string
	StartRow    int
	StartColumn string
}

// TrackerService owns the loaded portfolio. A nil CloudStorage disables
// report uploads. When the market data source is a QuoteInvalidator, the
// cached quotes of removed symbols are dropped so a re-added symbol is
// fetched fresh.
type TrackerService struct {
	marketData      portfolio.MarketData
	invalidator     QuoteInvalidator
	reportGenerator ReportGenerator
	cloudStorage    CloudStorage
	portfolioOpts   []portfolio.Option
	now             func() time.Time

	mu        sync.RWMutex
	portfolio *portfolio.Portfolio
}

func New(
	marketData portfolio.MarketData,
	reportGenerator ReportGenerator,
	cloudStorage CloudStorage,
	portfolioOpts ...portfolio.Option,
) *TrackerService {
	invalidator, _ := marketData.(QuoteInvalidator)

	return &TrackerService{
		marketData:      marketData,
		invalidator:     invalidator,
		reportGenerator: reportGenerator,
		cloudStorage:    cloudStorage,
		portfolioOpts:   portfolioOpts,
		now:             time.Now,
	}
}

// NewHoldingsReader picks the input adapter by file extension.
func NewHoldingsReader(path string, opts ReadOptions) (HoldingsReader, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return csvReader.New(csvReader.Options{StartRow: opts.StartRow}), nil
	case ".xlsx", ".xlsm":
		return xlsxReader.New(xlsxReader.Options{
			Sheet:       opts.Sheet,
			StartRow:    opts.StartRow,
			StartColumn: opts.StartColumn,
		}), nil
	default:
		return nil, fmt.Errorf("%w: %q", service.ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// PortfolioName derives the portfolio name from the input file name.
func PortfolioName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Load reads the holdings file, prices the portfolio and replaces the
// loaded one. It returns the symbols removed for lack of market data.
func (s *TrackerService) Load(ctx context.Context, path string, opts ReadOptions) (removed []string, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "TrackerService.Load"

	slog.Debug("Load start", slog.String("rqID", rqID), slog.String("op", op), slog.String("path", path))
	defer func() {
		slog.Debug("Load finished", slog.String("rqID", rqID), slog.String("op", op), slog.String("path", path))
	}()

	reader, err := NewHoldingsReader(path, opts)
	if err != nil {
		return nil, err
	}

	raw, err := reader.ReadFile(ctx, path)
	if err != nil {
		slog.Error("got error from reader.ReadFile", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, fmt.Errorf("read holdings: %w", err)
	}

	return s.LoadHoldings(ctx, PortfolioName(path), raw)
}

// LoadHoldings prices already parsed holdings and replaces the loaded portfolio.
func (s *TrackerService) LoadHoldings(ctx context.Context, name string, raw []model.RawHolding) (removed []string, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "TrackerService.LoadHoldings"

	opts := append([]portfolio.Option{portfolio.WithName(name)}, s.portfolioOpts...)

	p, err := portfolio.New(raw, s.marketData, opts...)
	if err != nil {
		slog.Error("got error from portfolio.New", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, err
	}

	removed, err = p.FetchAndPrice(ctx)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, removed)

	s.mu.Lock()
	s.portfolio = p
	s.mu.Unlock()

	slog.Info(
		"portfolio loaded",
		slog.String("rqID", rqID),
		slog.String("op", op),
		slog.String("portfolio", name),
		slog.Int("holdings", p.Len()),
		slog.Any("removed", removed),
	)

	return removed, nil
}

// Refresh reprices every holding with one batch request.
func (s *TrackerService) Refresh(ctx context.Context) (removed []string, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "TrackerService.Refresh"

	p, err := s.loaded()
	if err != nil {
		return nil, err
	}

	removed, err = p.FetchAndPrice(ctx)
	if err != nil {
		slog.Error("got error from portfolio.FetchAndPrice", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, err
	}
	s.invalidate(ctx, removed)

	slog.Info("portfolio refreshed", slog.String("rqID", rqID), slog.String("op", op), slog.Int("holdings", p.Len()), slog.Any("removed", removed))

	return removed, nil
}

// RefreshJob adapts Refresh to the scheduler task signature.
func (s *TrackerService) RefreshJob(ctx context.Context) error {
	_, err := s.Refresh(ctx)
	return err
}

func (s *TrackerService) AddHolding(ctx context.Context, symbol string, quantity, costPerShare float64) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "TrackerService.AddHolding"

	p, err := s.loaded()
	if err != nil {
		return err
	}

	slog.Debug("AddHolding start", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol))

	if err = p.AddHolding(ctx, symbol, quantity, costPerShare); err != nil {
		slog.Warn("can't add holding", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol), slog.String("err", err.Error()))
		if errors.Is(err, portfolio.ErrSymbolUnavailable) {
			s.invalidate(ctx, []string{portfolio.NormalizeSymbol(symbol)})
		}
		return err
	}

	return nil
}

func (s *TrackerService) RemoveHolding(ctx context.Context, symbol string) error {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "TrackerService.RemoveHolding"

	p, err := s.loaded()
	if err != nil {
		return err
	}

	if err = p.RemoveHolding(symbol); err != nil {
		slog.Warn("can't remove holding", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol), slog.String("err", err.Error()))
		return err
	}

	slog.Debug("holding removed", slog.String("rqID", rqID), slog.String("op", op), slog.String("symbol", symbol))
	s.invalidate(ctx, []string{portfolio.NormalizeSymbol(symbol)})

	return nil
}

func (s *TrackerService) Summary(ctx context.Context) (model.PortfolioSummary, error) {
	p, err := s.loaded()
	if err != nil {
		return model.PortfolioSummary{}, err
	}

	summary, ok := p.Summary()
	if !ok {
		return model.PortfolioSummary{}, service.ErrNotLoaded
	}

	return summary, nil
}

func (s *TrackerService) FullInfo(ctx context.Context) (model.PortfolioFullInfo, error) {
	p, err := s.loaded()
	if err != nil {
		return model.PortfolioFullInfo{}, err
	}

	return p.FullInfo(), nil
}

func (s *TrackerService) Holding(ctx context.Context, symbol string) (model.HoldingSummary, error) {
	p, err := s.loaded()
	if err != nil {
		return model.HoldingSummary{}, err
	}

	h, ok := p.Holding(symbol)
	if !ok {
		return model.HoldingSummary{}, fmt.Errorf("%w: %q", service.ErrNotFound, symbol)
	}

	return h, nil
}

// Report renders the loaded portfolio as a workbook.
func (s *TrackerService) Report(ctx context.Context) (fileBytes []byte, fileExtension string, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "TrackerService.Report"

	info, err := s.FullInfo(ctx)
	if err != nil {
		return nil, "", err
	}

	fileBytes, fileExtension, err = s.reportGenerator.Generate(ctx, []model.PortfolioFullInfo{info})
	if err != nil {
		slog.Error("got error from reportGenerator.Generate", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return nil, "", err
	}

	return fileBytes, fileExtension, nil
}

// UploadReport uploads the report and returns a public download link.
func (s *TrackerService) UploadReport(ctx context.Context) (downloadLink string, err error) {
	rqID := utils.GetRequestIDFromCtx(ctx)
	op := "TrackerService.UploadReport"

	if s.cloudStorage == nil {
		return "", service.ErrUploadDisabled
	}

	fileBytes, fileExtension, err := s.Report(ctx)
	if err != nil {
		return "", err
	}

	info, _ := s.FullInfo(ctx)
	filename := ReportFilename(info.PortfolioName, s.now(), fileExtension)

	downloadLink, err = s.cloudStorage.UploadFile(ctx, bytes.NewReader(fileBytes), filename)
	if err != nil {
		slog.Error("got error from cloudStorage.UploadFile", slog.String("rqID", rqID), slog.String("op", op), slog.String("err", err.Error()))
		return "", err
	}

	slog.Info("report uploaded", slog.String("rqID", rqID), slog.String("op", op), slog.String("filename", filename), slog.String("link", downloadLink))

	return downloadLink, nil
}

// CleanupUploads deletes expired reports from cloud storage.
func (s *TrackerService) CleanupUploads(ctx context.Context) error {
	if s.cloudStorage == nil {
		return service.ErrUploadDisabled
	}
	return s.cloudStorage.DeleteOldFiles(ctx)
}

func ReportFilename(portfolioName string, at time.Time, fileExtension string) string {
	if portfolioName == "" {
		portfolioName = "portfolio"
	}
	return fmt.Sprintf("%s_%s%s", portfolioName, at.UTC().Format("2006-01-02_15-04-05"), fileExtension)
}

// invalidate drops cached quotes; a failure only costs a stale cache entry.
func (s *TrackerService) invalidate(ctx context.Context, symbols []string) {
	if s.invalidator == nil || len(symbols) == 0 {
		return
	}

	if err := s.invalidator.Invalidate(ctx, symbols); err != nil {
		slog.Warn(
			"can't invalidate cached quotes",
			slog.String("rqID", utils.GetRequestIDFromCtx(ctx)),
			slog.String("op", "TrackerService.invalidate"),
			slog.Any("symbols", symbols),
			slog.String("err", err.Error()),
		)
	}
}

func (s *TrackerService) loaded() (*portfolio.Portfolio, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.portfolio == nil {
		return nil, service.ErrNotLoaded
	}
	return s.portfolio, nil
}
