package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/nao1215/markdown"
	"golang.org/x/sync/errgroup"

	"github.com/spacedown/spacedown/internal/config"
	"github.com/spacedown/spacedown/internal/confluence"
	"github.com/spacedown/spacedown/internal/convert"
	"github.com/spacedown/spacedown/internal/hierarchy"
	"github.com/spacedown/spacedown/internal/model"
)

// FetchStep retrieves the full page listing of the space.
//
// Design decision: Space existence is verified before listing because the
// listing endpoint returns an empty result for unknown keys, and exporting
// nothing silently would look like success.
type FetchStep struct {
	// client is the Confluence REST client.
	client *confluence.Client

	// spaceKey identifies the space to export.
	spaceKey string

	// logger for structured logging.
	logger *slog.Logger
}

// FetchStepOption configures a FetchStep.
type FetchStepOption func(*FetchStep)

// WithFetchLogger sets a custom logger for the fetch step.
func WithFetchLogger(logger *slog.Logger) FetchStepOption {
	return func(s *FetchStep) {
		s.logger = logger
	}
}

// NewFetchStep creates a new page listing step.
func NewFetchStep(client *confluence.Client, spaceKey string, opts ...FetchStepOption) *FetchStep {
	s := &FetchStep{
		client:   client,
		spaceKey: spaceKey,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *FetchStep) Name() string {
	return "fetch_pages"
}

// Do executes the fetch step.
func (s *FetchStep) Do(ctx context.Context, run *Run) error {
	info, err := s.client.CheckSpace(ctx, s.spaceKey)
	if err != nil {
		return err
	}
	s.logger.Info("space found", "key", info.Key, "name", info.Name)

	records, err := s.client.FetchPages(ctx, s.spaceKey)
	if err != nil {
		return fmt.Errorf("failed to list pages of space %s: %w", s.spaceKey, err)
	}

	run.Records = records
	run.Report.SetFetched(len(records), 0)
	s.logger.Info("pages fetched", "count", len(records))
	return nil
}

// FilterStep narrows the listing to pages modified on or after the cutoff
// date. Pages whose timestamp could not be parsed stay included: silently
// losing content is worse than exporting one page too many.
//
// Children of an excluded page are not excluded with it; the layout step
// re-parents them as roots.
type FilterStep struct {
	// since is the cutoff date, nil when no filter was requested.
	since *time.Time

	// logger for structured logging.
	logger *slog.Logger
}

// FilterStepOption configures a FilterStep.
type FilterStepOption func(*FilterStep)

// WithFilterLogger sets a custom logger for the filter step.
func WithFilterLogger(logger *slog.Logger) FilterStepOption {
	return func(s *FilterStep) {
		s.logger = logger
	}
}

// NewFilterStep creates a new date filter step.
func NewFilterStep(since *time.Time, opts ...FilterStepOption) *FilterStep {
	s := &FilterStep{
		since:  since,
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *FilterStep) Name() string {
	return "filter_pages"
}

// Do executes the filter step.
func (s *FilterStep) Do(_ context.Context, run *Run) error {
	if s.since == nil {
		s.logger.Debug("no date filter configured")
		return nil
	}

	kept := make([]model.PageRecord, 0, len(run.Records))
	for _, rec := range run.Records {
		if rec.ModifiedOnOrAfter(*s.since) {
			kept = append(kept, rec)
		}
	}

	fetched := len(run.Records)
	run.Report.SetSince(*s.since)
	run.Report.SetFetched(fetched, fetched-len(kept))
	run.Records = kept

	s.logger.Info("pages filtered by date",
		"since", s.since.Format(config.SinceLayout),
		"kept", len(kept),
		"excluded", fetched-len(kept),
	)
	return nil
}

// AttachmentListStep fetches attachment metadata for every page.
//
// Listings run concurrently in a bounded group. Each goroutine writes only
// its own record slot, so no lock is needed. A listing failure aborts the
// export: the layout plan must know every attachment before any file is
// written.
type AttachmentListStep struct {
	// client is the Confluence REST client.
	client *confluence.Client

	// concurrency bounds the number of in-flight listing calls.
	concurrency int

	// logger for structured logging.
	logger *slog.Logger
}

// AttachmentListStepOption configures an AttachmentListStep.
type AttachmentListStepOption func(*AttachmentListStep)

// WithListConcurrency bounds the number of concurrent listing calls.
func WithListConcurrency(n int) AttachmentListStepOption {
	return func(s *AttachmentListStep) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithListLogger sets a custom logger for the attachment listing step.
func WithListLogger(logger *slog.Logger) AttachmentListStepOption {
	return func(s *AttachmentListStep) {
		s.logger = logger
	}
}

// NewAttachmentListStep creates a new attachment metadata step.
func NewAttachmentListStep(client *confluence.Client, opts ...AttachmentListStepOption) *AttachmentListStep {
	s := &AttachmentListStep{
		client:      client,
		concurrency: config.DefaultConcurrency,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *AttachmentListStep) Name() string {
	return "list_attachments"
}

// Do executes the attachment listing step.
func (s *AttachmentListStep) Do(ctx context.Context, run *Run) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for i := range run.Records {
		g.Go(func() error {
			refs, err := s.client.FetchAttachments(ctx, run.Records[i].ID)
			if err != nil {
				return fmt.Errorf("failed to list attachments of page %s: %w", run.Records[i].ID, err)
			}
			run.Records[i].Attachments = refs
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	total := 0
	for i := range run.Records {
		total += len(run.Records[i].Attachments)
	}
	s.logger.Info("attachment metadata fetched", "attachments", total)
	return nil
}

// PlanStep turns the flat records into the on-disk layout: it builds the
// forest, allocates a directory per page, and plans attachment filenames.
// Every naming decision happens here, before anything touches the
// filesystem.
type PlanStep struct{}

// NewPlanStep creates a new layout planning step.
func NewPlanStep() *PlanStep {
	return &PlanStep{}
}

// Name returns the step name.
func (s *PlanStep) Name() string {
	return "plan_layout"
}

// Do executes the layout planning step.
func (s *PlanStep) Do(_ context.Context, run *Run) error {
	run.Forest = hierarchy.BuildForest(run.Records)
	hierarchy.Allocate(run.Forest, run.Report)
	_ = run.Forest.Walk(func(n *model.Node, _ int) error {
		hierarchy.PlanAttachments(n, run.Report)
		return nil
	})
	return nil
}

// RenderStep converts every page and writes its index.md, creating page
// directories as it walks. Rendering is sequential: it is dominated by
// local CPU and disk, and writing in traversal order keeps logs aligned
// with the final INDEX.md.
type RenderStep struct {
	// outputRoot is the export root directory.
	outputRoot string

	// siteURL is the site root, forwarded to the converter so absolute
	// attachment links in page bodies resolve to local paths.
	siteURL string

	// logger for structured logging.
	logger *slog.Logger
}

// RenderStepOption configures a RenderStep.
type RenderStepOption func(*RenderStep)

// WithRenderLogger sets a custom logger for the render step.
func WithRenderLogger(logger *slog.Logger) RenderStepOption {
	return func(s *RenderStep) {
		s.logger = logger
	}
}

// WithRenderSiteURL sets the site base URL used when rewriting attachment
// references in page bodies.
func WithRenderSiteURL(siteURL string) RenderStepOption {
	return func(s *RenderStep) {
		s.siteURL = siteURL
	}
}

// NewRenderStep creates a new page rendering step.
func NewRenderStep(outputRoot string, opts ...RenderStepOption) *RenderStep {
	s := &RenderStep{
		outputRoot: outputRoot,
		logger:     slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *RenderStep) Name() string {
	return "render_pages"
}

// Do executes the render step.
func (s *RenderStep) Do(ctx context.Context, run *Run) error {
	if err := os.MkdirAll(s.outputRoot, 0o750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	conv := convert.NewConverter(run.Forest, convert.WithSiteURL(s.siteURL))
	return run.Forest.Walk(func(n *model.Node, _ int) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		dir := filepath.Join(s.outputRoot, filepath.FromSlash(n.Path))
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}

		doc, err := conv.Convert(n, run.Report)
		if err != nil {
			return err
		}
		if err := os.WriteFile(filepath.Join(dir, "index.md"), doc, 0o600); err != nil {
			return fmt.Errorf("failed to write page %s: %w", n.Page.ID, err)
		}

		run.Report.PageExported()
		s.logger.Debug("page exported", "id", n.Page.ID, "path", n.Path)
		return nil
	})
}

// DownloadStep fetches attachment binaries into each page's attachments
// directory.
//
// Downloads run concurrently in a bounded group. A failed download is
// removed from disk, recorded on the report, and skipped; one unreachable
// file must not abort the rest of the export. Only filesystem errors and
// cancellation are fatal.
type DownloadStep struct {
	// client is the Confluence REST client.
	client *confluence.Client

	// outputRoot is the export root directory.
	outputRoot string

	// concurrency bounds the number of in-flight downloads.
	concurrency int

	// logger for structured logging.
	logger *slog.Logger
}

// DownloadStepOption configures a DownloadStep.
type DownloadStepOption func(*DownloadStep)

// WithDownloadConcurrency bounds the number of concurrent downloads.
func WithDownloadConcurrency(n int) DownloadStepOption {
	return func(s *DownloadStep) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithDownloadLogger sets a custom logger for the download step.
func WithDownloadLogger(logger *slog.Logger) DownloadStepOption {
	return func(s *DownloadStep) {
		s.logger = logger
	}
}

// NewDownloadStep creates a new attachment download step.
func NewDownloadStep(client *confluence.Client, outputRoot string, opts ...DownloadStepOption) *DownloadStep {
	s := &DownloadStep{
		client:      client,
		outputRoot:  outputRoot,
		concurrency: config.DefaultConcurrency,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Name returns the step name.
func (s *DownloadStep) Name() string {
	return "download_attachments"
}

// downloadJob pairs one planned attachment with the page that owns it.
type downloadJob struct {
	node    *model.Node
	planned model.PlannedAttachment
}

// Do executes the download step.
func (s *DownloadStep) Do(ctx context.Context, run *Run) error {
	var jobs []downloadJob
	err := run.Forest.Walk(func(n *model.Node, _ int) error {
		if len(n.Attachments) == 0 {
			return nil
		}
		dir := filepath.Join(s.outputRoot, filepath.FromSlash(n.Path), "attachments")
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
		for _, pa := range n.Attachments {
			jobs = append(jobs, downloadJob{node: n, planned: pa})
		}
		return nil
	})
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, job := range jobs {
		g.Go(func() error {
			return s.download(ctx, run, job)
		})
	}
	return g.Wait()
}

// download fetches one attachment. Transport failures are recorded on the
// report and return nil so the remaining downloads continue.
func (s *DownloadStep) download(ctx context.Context, run *Run, job downloadJob) error {
	dest := filepath.Join(s.outputRoot, filepath.FromSlash(job.node.Path), "attachments", job.planned.Name)

	f, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dest, err)
	}

	if err := s.client.Download(ctx, job.planned.Ref, f); err != nil {
		// No partial files: a truncated attachment is worse than a
		// missing one.
		_ = f.Close()
		_ = os.Remove(dest)

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		run.Report.AddAttachmentFailure(model.AttachmentFailure{
			PageID:    job.node.Page.ID,
			PageTitle: job.node.Page.Title,
			Filename:  job.planned.Name,
			Reason:    err.Error(),
		})
		s.logger.Warn("attachment download failed",
			"page", job.node.Page.Title,
			"filename", job.planned.Name,
			"error", err,
		)
		return nil
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", dest, err)
	}

	run.Report.AttachmentDownloaded()
	s.logger.Debug("attachment downloaded",
		"filename", job.planned.Name,
		"page", job.node.Page.ID,
	)
	return nil
}

// IndexStep writes INDEX.md at the export root: one nested bullet per page
// linking to its index.md, in the same traversal order the pages were
// written in.
type IndexStep struct {
	// outputRoot is the export root directory.
	outputRoot string

	// spaceKey identifies the exported space in the heading.
	spaceKey string
}

// NewIndexStep creates a new index generation step.
func NewIndexStep(outputRoot, spaceKey string) *IndexStep {
	return &IndexStep{
		outputRoot: outputRoot,
		spaceKey:   spaceKey,
	}
}

// Name returns the step name.
func (s *IndexStep) Name() string {
	return "write_index"
}

// Do executes the index step.
func (s *IndexStep) Do(_ context.Context, run *Run) error {
	f, err := os.OpenFile(filepath.Join(s.outputRoot, "INDEX.md"), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create INDEX.md: %w", err)
	}

	md := markdown.NewMarkdown(f)
	md.H1(s.spaceKey + " Space Export")
	md.PlainText("")
	md.PlainTextf("Exported %d pages.", run.Forest.Count())
	md.PlainText("")
	md.H2("Page Structure")
	md.PlainText("")
	_ = run.Forest.Walk(func(n *model.Node, depth int) error {
		md.PlainText(fmt.Sprintf("%s- [%s](%s/index.md)",
			strings.Repeat("  ", depth), n.Page.Title, n.Path))
		return nil
	})

	if err := md.Build(); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write INDEX.md: %w", err)
	}
	return f.Close()
}

// NewExportPipeline assembles the standard export sequence: fetch pages,
// filter by date, list attachments, plan the layout, render pages, download
// attachments, and write the index.
func NewExportPipeline(client *confluence.Client, cfg *config.Config, opts ...Option) *Pipeline {
	p := New(opts...)

	p.AddSteps(
		NewFetchStep(client, cfg.SpaceKey, WithFetchLogger(p.logger)),
		NewFilterStep(cfg.Since, WithFilterLogger(p.logger)),
		NewAttachmentListStep(client,
			WithListConcurrency(cfg.Concurrency),
			WithListLogger(p.logger),
		),
		NewPlanStep(),
		NewRenderStep(cfg.OutputDir,
			WithRenderLogger(p.logger),
			WithRenderSiteURL(client.BaseURL()),
		),
		NewDownloadStep(client, cfg.OutputDir,
			WithDownloadConcurrency(cfg.Concurrency),
			WithDownloadLogger(p.logger),
		),
		NewIndexStep(cfg.OutputDir, cfg.SpaceKey),
	)

	return p
}
