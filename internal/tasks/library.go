package tasks

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/desertthunder/marquee/internal/formatter"
	"github.com/desertthunder/marquee/internal/shared"
)

// Uploader stores an exported file remotely and returns its location.
type Uploader interface {
	Upload(ctx context.Context, object, localPath, contentType string) (string, error)
}

// LibraryExportOpts contains configuration for library exports.
type LibraryExportOpts struct {
	Formats      []string // csv, markdown, txt, json (default: all)
	OutputDir    string   // Base output directory (default: library_export_{epoch})
	ImageBaseURL string   // Poster base URL for markdown; empty skips poster downloads
	NumWorkers   int      // Concurrent format writers (default: 2)
	Uploader     Uploader // Optional remote copy of every written file
	UploadPrefix string   // Object name prefix for uploads
	RateLimit    float64  // Uploads per second (default: 5)
}

// FormatResult is the outcome of writing one export format.
type FormatResult struct {
	Format string
	Files  []string
	Error  error
}

// LibraryExportResult summarizes an export run.
type LibraryExportResult struct {
	Results      []FormatResult
	Uploaded     []string
	Manifest     *formatter.Manifest
	ManifestPath string
}

// ExportLibrary writes lib in every requested format using a small worker pool,
// then uploads the files when an [Uploader] is configured. Format failures are
// recorded in the manifest rather than aborting the run.
func ExportLibrary(
	ctx context.Context,
	prog chan<- ProgressUpdate,
	lib *formatter.Library,
	opts LibraryExportOpts,
) (*LibraryExportResult, error) {
	if lib == nil {
		return nil, fmt.Errorf("%w: library is nil", shared.ErrInvalidInput)
	}
	if len(opts.Formats) == 0 {
		opts.Formats = []string{"csv", "markdown", "txt", "json"}
	}
	for _, f := range opts.Formats {
		if !validFormat(f) {
			return nil, fmt.Errorf("%w: unknown export format %q", shared.ErrInvalidFlag, f)
		}
	}
	if opts.OutputDir == "" {
		opts.OutputDir = fmt.Sprintf("library_export_%d", time.Now().Unix())
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 2
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 5.0
	}

	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	jobs := make(chan string, len(opts.Formats))
	results := make(chan FormatResult, len(opts.Formats))

	var wg sync.WaitGroup
	for i := 0; i < opts.NumWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for format := range jobs {
				if ctx.Err() != nil {
					results <- FormatResult{Format: format, Error: ctx.Err()}
					continue
				}
				results <- writeFormat(lib, format, opts)
			}
		}()
	}

	total := len(opts.Formats)
	for i, format := range opts.Formats {
		SendProgress(prog, exportingUpdate(i+1, total, format))
		jobs <- format
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	out := &LibraryExportResult{}
	manifest := &formatter.Manifest{
		Directory: opts.OutputDir,
		Movies:    len(lib.Rows()),
		CreatedAt: time.Now().UTC(),
	}
	completed := 0
	for res := range results {
		completed++
		out.Results = append(out.Results, res)
		if res.Error != nil {
			manifest.Errors = append(manifest.Errors, fmt.Sprintf("%s: %v", res.Format, res.Error))
			SendProgress(prog, exportFailedUpdate(completed, total, res.Format, res.Error))
			continue
		}
		manifest.Files = append(manifest.Files, res.Files...)
		SendProgress(prog, exportCompletedUpdate(completed, total, res.Format, len(res.Files)))
	}
	manifest.Format = strings.Join(opts.Formats, ",")
	for _, p := range lib.Purchases {
		if p.Batch != nil {
			manifest.Orders++
		}
	}

	if opts.Uploader != nil && len(manifest.Files) > 0 {
		limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
		for i, file := range manifest.Files {
			if err := limiter.Wait(ctx); err != nil {
				manifest.Errors = append(manifest.Errors, fmt.Sprintf("upload: %v", err))
				break
			}
			object := uploadObjectName(opts.UploadPrefix, opts.OutputDir, file)
			location, err := opts.Uploader.Upload(ctx, object, file, contentType(file))
			SendProgress(prog, uploadUpdate(i+1, len(manifest.Files), object, err))
			if err != nil {
				manifest.Errors = append(manifest.Errors, fmt.Sprintf("upload %s: %v", object, err))
				continue
			}
			manifest.Uploaded = append(manifest.Uploaded, location)
		}
		out.Uploaded = manifest.Uploaded
	}

	manifestPath := filepath.Join(opts.OutputDir, "export_manifest.json")
	out.Manifest = manifest
	if err := formatter.WriteManifest(manifest, manifestPath); err != nil {
		return out, fmt.Errorf("export completed but failed to write manifest: %w", err)
	}
	out.ManifestPath = manifestPath
	return out, nil
}

func writeFormat(lib *formatter.Library, format string, opts LibraryExportOpts) FormatResult {
	res := FormatResult{Format: format}

	switch format {
	case "csv":
		csvRes, err := formatter.WriteCSVExport(lib, filepath.Join(opts.OutputDir, "library"))
		if err != nil {
			res.Error = fmt.Errorf("CSV export failed: %w", err)
			return res
		}
		res.Files = []string{csvRes.MoviesFile, csvRes.MetadataFile}
	case "markdown":
		mdRes, err := formatter.WriteMarkdownExport(lib, filepath.Join(opts.OutputDir, "markdown"), opts.ImageBaseURL)
		if err != nil {
			res.Error = fmt.Errorf("markdown export failed: %w", err)
			return res
		}
		res.Files = mdRes.Files
	case "txt":
		p, err := formatter.WriteTextExport(lib, filepath.Join(opts.OutputDir, "library.txt"))
		if err != nil {
			res.Error = fmt.Errorf("text export failed: %w", err)
			return res
		}
		res.Files = []string{p}
	case "json":
		p, err := formatter.WriteJSONExport(lib, filepath.Join(opts.OutputDir, "library.json"))
		if err != nil {
			res.Error = fmt.Errorf("JSON export failed: %w", err)
			return res
		}
		res.Files = []string{p}
	}
	return res
}

func validFormat(f string) bool {
	switch f {
	case "csv", "markdown", "txt", "json":
		return true
	}
	return false
}

// uploadObjectName maps a local file under dir to "<prefix>/<dir base>/<relative path>".
func uploadObjectName(prefix, dir, file string) string {
	rel, err := filepath.Rel(dir, file)
	if err != nil {
		rel = filepath.Base(file)
	}
	return path.Join(prefix, filepath.Base(dir), filepath.ToSlash(rel))
}

func contentType(file string) string {
	switch filepath.Ext(file) {
	case ".md":
		return "text/markdown; charset=utf-8"
	case ".csv":
		return "text/csv; charset=utf-8"
	}
	if ct := mime.TypeByExtension(filepath.Ext(file)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
