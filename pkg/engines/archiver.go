package engines

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/reveriehq/reverie/pkg/journal"
	"github.com/reveriehq/reverie/pkg/pipeline"
	"github.com/reveriehq/reverie/pkg/queue"
)

const manifestName = "journals.json"

// TarArchiver backs a user's journals up into a tar.gz: a JSON manifest of
// the journal rows plus the referenced media files. Restore is the inverse.
type TarArchiver struct {
	Journals journal.Store
}

// CreateArchive writes destDir/<userID>-<timestamp>.tar.gz.
func (a *TarArchiver) CreateArchive(ctx context.Context, userID, destDir string, report queue.ProgressFunc) (*pipeline.BackupResult, error) {
	journals, err := a.Journals.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list journals: %w", err)
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("create backup dir: %w", err)
	}
	archivePath := filepath.Join(destDir, fmt.Sprintf("%s-%s.tar.gz", userID, time.Now().Format("20060102T150405")))

	f, err := os.Create(archivePath)
	if err != nil {
		return nil, fmt.Errorf("create archive: %w", err)
	}
	defer f.Close()

	gw := gzip.NewWriter(f)
	tw := tar.NewWriter(gw)

	report("manifest", 1, 2, 5)
	manifest, err := json.MarshalIndent(journals, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := writeTarBytes(tw, manifestName, manifest); err != nil {
		return nil, err
	}

	for i, j := range journals {
		report("media", 2, 2, 10+(i*85)/max(len(journals), 1))
		if j.MediaPath == "" {
			continue
		}
		if err := writeTarFile(tw, j.MediaPath, filepath.Join("media", j.ID+filepath.Ext(j.MediaPath))); err != nil {
			return nil, fmt.Errorf("archive media for %s: %w", j.ID, err)
		}
	}

	if err := tw.Close(); err != nil {
		return nil, err
	}
	if err := gw.Close(); err != nil {
		return nil, err
	}
	if err := f.Close(); err != nil {
		return nil, err
	}

	info, err := os.Stat(archivePath)
	if err != nil {
		return nil, err
	}
	return &pipeline.BackupResult{
		ArchivePath: archivePath,
		SizeBytes:   info.Size(),
	}, nil
}

// RestoreArchive re-creates journal rows and media files from an archive.
// Rows that already exist are skipped rather than overwritten.
func (a *TarArchiver) RestoreArchive(ctx context.Context, userID, archivePath string, report queue.ProgressFunc) (*pipeline.RestoreSummary, error) {
	f, err := os.Open(archivePath)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer f.Close()

	gr, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("read archive: %w", err)
	}
	defer gr.Close()

	var summary pipeline.RestoreSummary
	var journals []*journal.Journal
	mediaByID := map[string]string{}

	report("extract", 1, 2, 5)
	tr := tar.NewReader(gr)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read archive: %w", err)
		}

		switch {
		case hdr.Name == manifestName:
			if err := json.NewDecoder(tr).Decode(&journals); err != nil {
				return nil, fmt.Errorf("decode manifest: %w", err)
			}
		case filepath.Dir(hdr.Name) == "media":
			dest := filepath.Join(filepath.Dir(archivePath), "restored", hdr.Name)
			if err := extractFile(tr, dest); err != nil {
				return nil, fmt.Errorf("restore %s: %w", hdr.Name, err)
			}
			base := filepath.Base(hdr.Name)
			id := base[:len(base)-len(filepath.Ext(base))]
			mediaByID[id] = dest
			summary.FilesRestored++
		}
	}

	report("journals", 2, 2, 80)
	for _, j := range journals {
		if j.UserID != userID {
			continue
		}
		if _, err := a.Journals.Get(ctx, j.ID); err == nil {
			continue
		}
		if path, ok := mediaByID[j.ID]; ok {
			j.MediaPath = path
		}
		if err := a.Journals.Create(ctx, j); err != nil {
			return nil, fmt.Errorf("restore journal %s: %w", j.ID, err)
		}
		summary.JournalsRestored++
	}

	return &summary, nil
}

func writeTarBytes(tw *tar.Writer, name string, data []byte) error {
	hdr := &tar.Header{
		Name:    name,
		Mode:    0o644,
		Size:    int64(len(data)),
		ModTime: time.Now(),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err := tw.Write(data)
	return err
}

func writeTarFile(tw *tar.Writer, src, name string) error {
	f, err := os.Open(src)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	hdr := &tar.Header{
		Name:    filepath.ToSlash(name),
		Mode:    0o644,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return err
	}
	_, err = io.Copy(tw, f)
	return err
}

func extractFile(r io.Reader, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return err
	}
	f, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := io.Copy(f, r); err != nil {
		return err
	}
	return f.Close()
}
