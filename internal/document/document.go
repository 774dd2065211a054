// Package document implements the document pipeline: discovery of candidate
// files under a size/extension budget, and loading of individual files into
// uniform records.
//
// Per-file failures are data, not errors: a record with Error set is
// excluded downstream, and a single bad file never aborts its batch.
package document

import (
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/ashita-ai/kotae/internal/model"
	"github.com/ashita-ai/kotae/internal/pathguard"
)

// DefaultExtensions is the allow-list applied when a scan passes none.
var DefaultExtensions = []string{".txt", ".md", ".json", ".csv", ".pdf"}

// progressInterval is how many discovered files pass between progress
// callbacks, so a large scan is not mistaken for a stall.
const progressInterval = 10

// Pipeline discovers and loads documents under a guarded root.
// Stateless; safe for concurrent use.
type Pipeline struct {
	guard *pathguard.Guard
}

// New creates a Pipeline over the given path guard.
func New(guard *pathguard.Guard) *Pipeline {
	return &Pipeline{guard: guard}
}

// Scan walks the validated directory tree under dir and returns the
// root-relative paths of files whose extension is allowed, in lexical walk
// order. The scan stops (without error) once the next file would push the
// running total past maxTotalSizeMB; partial results are valid. progress,
// if non-nil, is invoked every few files with the count found so far.
func (p *Pipeline) Scan(dir string, allowedExts []string, maxTotalSizeMB int, progress func(found int)) ([]string, error) {
	resolved, err := p.guard.ValidateDirectory(dir)
	if err != nil {
		return nil, err
	}

	if len(allowedExts) == 0 {
		allowedExts = DefaultExtensions
	}
	allowed := make(map[string]bool, len(allowedExts))
	for _, ext := range allowedExts {
		allowed[strings.ToLower(ext)] = true
	}

	budget := int64(maxTotalSizeMB) * 1024 * 1024
	var total int64
	var files []string

	err = filepath.WalkDir(resolved, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if !allowed[strings.ToLower(filepath.Ext(path))] {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		if total+info.Size() > budget {
			// Budget reached: stop with what we have.
			return fs.SkipAll
		}
		total += info.Size()

		rel, err := p.guard.Relative(path)
		if err != nil {
			return err
		}
		files = append(files, rel)

		if progress != nil && len(files)%progressInterval == 0 {
			progress(len(files))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("document: scan %q: %w", dir, err)
	}

	return files, nil
}

// Read loads a single root-relative file into a FileRecord. Every failure
// mode (path validation, unsupported extension, decoder error) is
// recorded on the returned record instead of escaping.
func (p *Pipeline) Read(path string, maxFileSizeMB int) model.FileRecord {
	rec := model.FileRecord{
		Path: path,
		Name: filepath.Base(path),
		Kind: KindForPath(path),
	}

	resolved, err := p.guard.ValidateFile(path, maxFileSizeMB)
	if err != nil {
		rec.Error = err.Error()
		return rec
	}

	switch rec.Kind {
	case model.FileKindText:
		content, size, err := readText(resolved)
		rec.SizeBytes = size
		if err != nil {
			rec.Error = err.Error()
			return rec
		}
		rec.Content = content
	case model.FileKindPDF:
		content, size, err := readPDF(resolved)
		rec.SizeBytes = size
		if err != nil {
			rec.Error = err.Error()
			return rec
		}
		rec.Content = content
	default:
		rec.Error = fmt.Sprintf("unsupported file type: %s", strings.ToLower(filepath.Ext(path)))
	}

	return rec
}

// KindForPath classifies a path by extension into the closed decoder set.
func KindForPath(path string) model.FileKind {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md", ".json", ".csv":
		return model.FileKindText
	case ".pdf":
		return model.FileKindPDF
	default:
		return model.FileKindUnsupported
	}
}
