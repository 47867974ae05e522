// package formatter exports a user's movie library and cart to CSV, Markdown, plain text and JSON
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/desertthunder/marquee/internal/models"
	"github.com/desertthunder/marquee/internal/shared"
)

var httpClient = &http.Client{Timeout: 30 * time.Second}

// Library is a user's purchase history prepared for export.
type Library struct {
	Owner      string           `json:"owner"`
	Email      string           `json:"email,omitempty"`
	Purchases  models.Purchases `json:"purchases"`
	ExportedAt time.Time        `json:"exportedAt"`
}

// LibraryRow is one purchased movie with the order it came from.
// Single-movie purchases have no order id or timestamp.
type LibraryRow struct {
	OrderID     string
	PurchasedAt time.Time
	Movie       models.Movie
}

// Rows flattens the library in purchase order. A movie bought twice is listed once.
func (l *Library) Rows() []LibraryRow {
	seen := make(map[models.MovieID]struct{})
	var rows []LibraryRow
	for _, p := range l.Purchases {
		var orderID string
		if p.Batch != nil {
			orderID = p.Batch.OrderID
		}
		for _, m := range p.Movies() {
			if _, ok := seen[m.Key()]; ok {
				continue
			}
			seen[m.Key()] = struct{}{}
			rows = append(rows, LibraryRow{OrderID: orderID, PurchasedAt: p.Time(), Movie: m})
		}
	}
	return rows
}

func (l *Library) orderCount() int {
	n := 0
	for _, p := range l.Purchases {
		if p.Batch != nil {
			n++
		}
	}
	return n
}

// ExportToCSV converts a Library to CSV format with columns: ID, Title, Year, Runtime, Rating, Order, PurchasedAt
func ExportToCSV(lib *Library) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Title", "Year", "Runtime", "Rating", "Order", "PurchasedAt"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, row := range lib.Rows() {
		purchasedAt := ""
		if !row.PurchasedAt.IsZero() {
			purchasedAt = row.PurchasedAt.UTC().Format(time.RFC3339)
		}
		record := []string{
			string(row.Movie.Key()),
			row.Movie.Title,
			row.Movie.Year(),
			strconv.Itoa(row.Movie.Runtime),
			strconv.FormatFloat(row.Movie.VoteAverage, 'f', 1, 64),
			row.OrderID,
			purchasedAt,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// CartToCSV converts a cart to CSV with columns: ID, Title, Year
func CartToCSV(cart models.Cart) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	if err := writer.Write([]string{"ID", "Title", "Year"}); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, m := range cart.Movies() {
		if err := writer.Write([]string{string(m.Key()), m.Title, m.Year()}); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}
	writer.Flush()
	return buf.Bytes(), writer.Error()
}

// ExportToMarkdown converts a Library to Markdown. posters maps movie ids to image
// references; movies without an entry are listed without a poster.
func ExportToMarkdown(lib *Library, posters map[models.MovieID]string) ([]byte, error) {
	var buf bytes.Buffer

	title := "Movie Library"
	if lib.Owner != "" {
		title = fmt.Sprintf("%s's Library", lib.Owner)
	}
	buf.WriteString(fmt.Sprintf("# %s\n\n", title))

	rows := lib.Rows()
	buf.WriteString(fmt.Sprintf("**Movies**: %d\n", len(rows)))
	buf.WriteString(fmt.Sprintf("**Orders**: %d\n", lib.orderCount()))
	if !lib.ExportedAt.IsZero() {
		buf.WriteString(fmt.Sprintf("**Exported**: %s\n", lib.ExportedAt.UTC().Format("2006-01-02")))
	}
	buf.WriteString("\n## Movies\n\n")

	for i, row := range rows {
		year := ""
		if y := row.Movie.Year(); y != "" {
			year = fmt.Sprintf(" (%s)", y)
		}
		buf.WriteString(fmt.Sprintf("%d. **%s**%s", i+1, row.Movie.Title, year))
		if row.Movie.VoteAverage > 0 {
			buf.WriteString(fmt.Sprintf(" ★ %.1f", row.Movie.VoteAverage))
		}
		buf.WriteString("\n")
		if ref, ok := posters[row.Movie.Key()]; ok && ref != "" {
			buf.WriteString(fmt.Sprintf("   ![%s](%s)\n", row.Movie.Title, ref))
		}
	}

	return buf.Bytes(), nil
}

// ExportToText converts a Library to plain text format
func ExportToText(lib *Library) ([]byte, error) {
	var buf bytes.Buffer

	if lib.Owner != "" {
		buf.WriteString(fmt.Sprintf("Library: %s\n", lib.Owner))
	}
	rows := lib.Rows()
	buf.WriteString(fmt.Sprintf("Movies: %d\n\n", len(rows)))

	for i, row := range rows {
		if y := row.Movie.Year(); y != "" {
			buf.WriteString(fmt.Sprintf("%d. %s (%s)\n", i+1, row.Movie.Title, y))
		} else {
			buf.WriteString(fmt.Sprintf("%d. %s\n", i+1, row.Movie.Title))
		}
	}

	return buf.Bytes(), nil
}

// ExportToJSON converts a Library to indented JSON, preserving both purchase shapes.
func ExportToJSON(lib *Library) ([]byte, error) {
	return shared.MarshalJSON(lib, true)
}

// libraryMetadata is the summary written next to CSV exports.
type libraryMetadata struct {
	Owner      string    `json:"owner"`
	Email      string    `json:"email,omitempty"`
	Movies     int       `json:"movies"`
	Orders     int       `json:"orders"`
	ExportedAt time.Time `json:"exportedAt"`
}

// ToMetadataJSON generates a JSON summary of a library (without the movies)
func ToMetadataJSON(lib *Library) ([]byte, error) {
	return shared.MarshalJSON(libraryMetadata{
		Owner:      lib.Owner,
		Email:      lib.Email,
		Movies:     len(lib.Rows()),
		Orders:     lib.orderCount(),
		ExportedAt: lib.ExportedAt,
	}, true)
}

// DownloadImage downloads an image from the given URL and returns the raw bytes
func DownloadImage(url string) ([]byte, error) {
	if url == "" {
		return nil, fmt.Errorf("empty URL provided")
	}

	resp, err := httpClient.Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: status %d", resp.StatusCode)
	}

	imageData, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}

	return imageData, nil
}

// CSVExportResult contains the paths of files created by WriteCSVExport
type CSVExportResult struct {
	MoviesFile   string
	MetadataFile string
}

// WriteCSVExport writes {base}_movies.csv and {base}_metadata.json.
func WriteCSVExport(lib *Library, baseFilepath string) (*CSVExportResult, error) {
	if baseFilepath == "" {
		baseFilepath = "library"
	}

	csvData, err := ExportToCSV(lib)
	if err != nil {
		return nil, fmt.Errorf("failed to generate CSV: %w", err)
	}

	moviesFile := baseFilepath + "_movies.csv"
	if err := os.WriteFile(moviesFile, csvData, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write CSV file: %w", err)
	}

	metadataJSON, err := ToMetadataJSON(lib)
	if err != nil {
		return nil, fmt.Errorf("failed to generate metadata JSON: %w", err)
	}

	metadataFile := baseFilepath + "_metadata.json"
	if err := os.WriteFile(metadataFile, metadataJSON, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write metadata file: %w", err)
	}

	return &CSVExportResult{MoviesFile: moviesFile, MetadataFile: metadataFile}, nil
}

// MarkdownExportResult contains information about files created by WriteMarkdownExport
type MarkdownExportResult struct {
	Directory string
	Files     []string
	Posters   []string
}

// WriteMarkdownExport writes {dir}/README.md. When imageBaseURL is set, posters are
// downloaded into {dir}/posters/ and referenced relatively; failed downloads fall back
// to the remote URL.
func WriteMarkdownExport(lib *Library, outputDir string, imageBaseURL string) (*MarkdownExportResult, error) {
	if outputDir == "" {
		outputDir = "library"
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	result := &MarkdownExportResult{Directory: outputDir, Files: []string{}}
	posters := make(map[models.MovieID]string)

	if imageBaseURL != "" {
		posterDir := filepath.Join(outputDir, "posters")
		for _, row := range lib.Rows() {
			path := row.Movie.Poster()
			if path == "" {
				continue
			}
			remote := imageBaseURL + path
			posters[row.Movie.Key()] = remote

			data, err := DownloadImage(remote)
			if err != nil {
				continue
			}
			if err := os.MkdirAll(posterDir, 0o755); err != nil {
				continue
			}
			name := string(row.Movie.Key()) + filepath.Ext(path)
			if err := os.WriteFile(filepath.Join(posterDir, name), data, 0o644); err != nil {
				continue
			}
			posters[row.Movie.Key()] = "posters/" + name
			result.Posters = append(result.Posters, filepath.Join(posterDir, name))
			result.Files = append(result.Files, filepath.Join(posterDir, name))
		}
	}

	mdData, err := ExportToMarkdown(lib, posters)
	if err != nil {
		return nil, fmt.Errorf("failed to generate Markdown: %w", err)
	}

	mdFile := filepath.Join(outputDir, "README.md")
	if err := os.WriteFile(mdFile, mdData, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write Markdown file: %w", err)
	}
	result.Files = append(result.Files, mdFile)

	return result, nil
}

// WriteTextExport exports a library to plain text. Defaults to library.txt.
func WriteTextExport(lib *Library, path string) (string, error) {
	if path == "" {
		path = "library.txt"
	}

	textData, err := ExportToText(lib)
	if err != nil {
		return "", fmt.Errorf("failed to generate text: %w", err)
	}

	if err := os.WriteFile(path, textData, 0o644); err != nil {
		return "", fmt.Errorf("failed to write text file: %w", err)
	}

	return path, nil
}

// WriteJSONExport exports a library to JSON. Defaults to library.json.
func WriteJSONExport(lib *Library, path string) (string, error) {
	if path == "" {
		path = "library.json"
	}

	data, err := ExportToJSON(lib)
	if err != nil {
		return "", fmt.Errorf("failed to generate JSON: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write JSON file: %w", err)
	}

	return path, nil
}

// Manifest summarizes one library export run.
type Manifest struct {
	Format    string    `json:"format"`
	Directory string    `json:"directory"`
	Files     []string  `json:"files"`
	Uploaded  []string  `json:"uploaded,omitempty"`
	Movies    int       `json:"movies"`
	Orders    int       `json:"orders"`
	Errors    []string  `json:"errors,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// WriteManifest writes m as indented JSON to path.
func WriteManifest(m *Manifest, path string) error {
	data, err := shared.MarshalJSON(m, true)
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}
