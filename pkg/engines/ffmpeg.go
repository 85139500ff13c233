package engines

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/reveriehq/reverie/pkg/pipeline"
	"github.com/reveriehq/reverie/pkg/queue"
)

// rendition is one rung of the HLS ladder.
type rendition struct {
	Name      string
	Scale     string
	Bandwidth string
}

var hlsLadder = []rendition{
	{Name: "720p", Scale: "-2:720", Bandwidth: "2800000"},
	{Name: "480p", Scale: "-2:480", Bandwidth: "1400000"},
}

// FFmpegTranscoder builds HLS renditions by shelling out to ffmpeg. Output
// lands under OutputDir/<media base name>/.
type FFmpegTranscoder struct {
	BinaryPath string
	OutputDir  string
}

// BuildRenditions encodes each ladder rung and writes a master playlist
// referencing them. One step per rendition plus the manifest write.
func (t *FFmpegTranscoder) BuildRenditions(ctx context.Context, mediaPath string, report queue.ProgressFunc) (*pipeline.HLSResult, error) {
	base := strings.TrimSuffix(filepath.Base(mediaPath), filepath.Ext(mediaPath))
	outDir := filepath.Join(t.OutputDir, base)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	totalSteps := len(hlsLadder) + 1
	renditions := make([]string, 0, len(hlsLadder))

	for i, r := range hlsLadder {
		report("encode "+r.Name, i+1, totalSteps, (i*90)/len(hlsLadder))

		playlist := filepath.Join(outDir, r.Name+".m3u8")
		args := []string{
			"-y", "-i", mediaPath,
			"-vf", "scale=" + r.Scale,
			"-c:v", "libx264", "-c:a", "aac",
			"-b:v", r.Bandwidth,
			"-hls_time", "6",
			"-hls_playlist_type", "vod",
			"-hls_segment_filename", filepath.Join(outDir, r.Name+"_%03d.ts"),
			playlist,
		}
		cmd := exec.CommandContext(ctx, t.BinaryPath, args...)
		if out, err := cmd.CombinedOutput(); err != nil {
			return nil, fmt.Errorf("ffmpeg %s: %w: %s", r.Name, err, tail(out))
		}
		renditions = append(renditions, playlist)
	}

	report("manifest", totalSteps, totalSteps, 95)
	manifest := filepath.Join(outDir, "master.m3u8")
	if err := writeMasterPlaylist(manifest); err != nil {
		return nil, err
	}

	return &pipeline.HLSResult{
		ManifestPath: manifest,
		Renditions:   renditions,
	}, nil
}

func writeMasterPlaylist(path string) error {
	var b strings.Builder
	b.WriteString("#EXTM3U\n#EXT-X-VERSION:3\n")
	for _, r := range hlsLadder {
		fmt.Fprintf(&b, "#EXT-X-STREAM-INF:BANDWIDTH=%s\n%s.m3u8\n", r.Bandwidth, r.Name)
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write master playlist: %w", err)
	}
	return nil
}

// tail trims ffmpeg output to its last line, which carries the error.
func tail(out []byte) string {
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	if len(lines) == 0 {
		return ""
	}
	return lines[len(lines)-1]
}
