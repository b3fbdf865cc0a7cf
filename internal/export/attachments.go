package export

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/wesm/inboxctl/internal/fileutil"
	"github.com/wesm/inboxctl/internal/mail"
)

// ExportStats contains structured results of an attachment export operation.
type ExportStats struct {
	Count      int
	Size       int64
	Errors     []string
	ZipPath    string
	WriteError bool // true if a write error occurred and the zip was removed
}

// Attachments downloads every attachment into a zip archive at zipPath.
// Download failures are recorded and skipped; a failure writing the archive
// removes it.
func Attachments(ctx context.Context, zipPath string, f Fetcher, atts []mail.Attachment) ExportStats {
	zipFile, err := os.Create(zipPath)
	if err != nil {
		return ExportStats{Errors: []string{fmt.Sprintf("failed to create zip file: %v", err)}}
	}

	zipWriter := zip.NewWriter(zipFile)

	var stats ExportStats
	var writeError bool

	usedNames := make(map[string]int)
	for _, att := range atts {
		if err := ctx.Err(); err != nil {
			stats.Errors = append(stats.Errors, err.Error())
			break
		}
		n, err := addAttachmentToZip(ctx, zipWriter, f, att, usedNames)
		if err != nil {
			stats.Errors = append(stats.Errors, fmt.Sprintf("%s: %v", att.FileName, err))
			if isWriteError(err) {
				writeError = true
				break
			}
			continue
		}

		stats.Count++
		stats.Size += n
	}

	if err := zipWriter.Close(); err != nil {
		stats.Errors = append(stats.Errors, fmt.Sprintf("zip finalization error: %v", err))
		writeError = true
	}
	if err := zipFile.Close(); err != nil {
		stats.Errors = append(stats.Errors, fmt.Sprintf("file close error: %v", err))
		writeError = true
	}

	if stats.Count == 0 || writeError {
		os.Remove(zipPath)
		stats.WriteError = writeError
		return stats
	}

	if abs, err := filepath.Abs(zipPath); err == nil {
		zipPath = abs
	}
	stats.ZipPath = zipPath
	return stats
}

// FormatExportResult formats ExportStats into a human-readable string for display.
func FormatExportResult(stats ExportStats) string {
	// Write error is fatal - zip was removed regardless of count
	if stats.WriteError {
		msg := "Export failed due to write errors. Zip file removed."
		if len(stats.Errors) > 0 {
			msg += "\n\nErrors:\n" + strings.Join(stats.Errors, "\n")
		}
		return msg
	}

	if stats.Count == 0 {
		msg := "No attachments exported."
		if len(stats.Errors) > 0 {
			msg += "\n\nErrors:\n" + strings.Join(stats.Errors, "\n")
		}
		return msg
	}

	result := fmt.Sprintf("Exported %d attachment(s) (%s)\n\nSaved to:\n%s",
		stats.Count, FormatBytesLong(stats.Size), stats.ZipPath)
	if len(stats.Errors) > 0 {
		result += "\n\nErrors:\n" + strings.Join(stats.Errors, "\n")
	}
	return result
}

// SaveAttachment downloads one attachment into dir under the name the
// service reports, never overwriting an existing file. It returns the path
// written.
func SaveAttachment(ctx context.Context, f Fetcher, att mail.Attachment, dir string) (string, error) {
	if err := fileutil.SecureMkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".attachment-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	name, err := f.FetchAttachment(ctx, att.ID, tmp)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", fmt.Errorf("download attachment %d: %w", att.ID, err)
	}
	if name == "" {
		name = att.FileName
	}

	out, path, err := fileutil.CreateUnique(dir, safeName(name, att.ID), 0600)
	if err != nil {
		return "", err
	}
	out.Close()
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("move attachment into place: %w", err)
	}
	return path, nil
}

type zipWriteError struct {
	err error
}

func (e *zipWriteError) Error() string { return e.err.Error() }
func (e *zipWriteError) Unwrap() error { return e.err }

func isWriteError(err error) bool {
	_, ok := err.(*zipWriteError)
	return ok
}

func addAttachmentToZip(ctx context.Context, zw *zip.Writer, f Fetcher, att mail.Attachment, usedNames map[string]int) (int64, error) {
	var buf strings.Builder
	name, err := f.FetchAttachment(ctx, att.ID, &buf)
	if err != nil {
		return 0, err
	}
	if name == "" {
		name = att.FileName
	}

	w, err := zw.Create(resolveUniqueFilename(name, att.ID, usedNames))
	if err != nil {
		return 0, &zipWriteError{fmt.Errorf("zip write error: %w", err)}
	}
	n, err := io.Copy(w, strings.NewReader(buf.String()))
	if err != nil {
		return 0, &zipWriteError{fmt.Errorf("zip write error: %w", err)}
	}
	return n, nil
}

func safeName(original string, id int64) string {
	filename := SanitizeFilename(filepath.Base(original))
	if filename == "" || filename == "." || filename == ".." {
		filename = "attachment-" + strconv.FormatInt(id, 10)
	}
	return filename
}

func resolveUniqueFilename(original string, id int64, usedNames map[string]int) string {
	filename := safeName(original, id)

	baseKey := filename
	if count, exists := usedNames[baseKey]; exists {
		ext := filepath.Ext(filename)
		base := filename[:len(filename)-len(ext)]
		filename = fmt.Sprintf("%s_%d%s", base, count+1, ext)
		usedNames[baseKey] = count + 1
	} else {
		usedNames[baseKey] = 1
	}

	return filename
}

// SanitizeFilename removes or replaces characters that are invalid in filenames.
func SanitizeFilename(s string) string {
	var result []rune
	for _, r := range s {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', '\n', '\r', '\t':
			result = append(result, '_')
		default:
			result = append(result, r)
		}
	}
	return string(result)
}

// FormatBytesLong formats bytes with full precision for export results.
func FormatBytesLong(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}
