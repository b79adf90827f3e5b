// Package publisher renders generated posts and exports a batch to disk.
package publisher

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"

	"video_social_generator/generator"
	"video_social_generator/pipeline"
)

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.Linkify, extension.Strikethrough),
	// 社交文案里的换行就是段内换行。
	goldmark.WithRendererOptions(gmhtml.WithHardWraps()),
)

// RenderHTML converts a post body (Markdown-ish plain text) to an HTML fragment.
func RenderHTML(md string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(md), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// RenderedPost is a post with its HTML rendering.
type RenderedPost struct {
	generator.Post
	HTML string `json:"html"`
}

// RenderPosts renders every post, in order.
func RenderPosts(posts []generator.Post) ([]RenderedPost, error) {
	out := make([]RenderedPost, 0, len(posts))
	for _, p := range posts {
		h, err := RenderHTML(p.Content)
		if err != nil {
			return nil, fmt.Errorf("render %s: %w", p.Platform, err)
		}
		out = append(out, RenderedPost{Post: p, HTML: h})
	}
	return out, nil
}

type manifest struct {
	VideoID           string   `json:"video_id"`
	TranscriptPreview string   `json:"transcript_preview"`
	Files             []string `json:"files"`
}

// WriteBatch writes each post as <platform>.md and <platform>.html under dir,
// plus a manifest.json. It returns the written paths.
func WriteBatch(dir string, res *pipeline.Result, logger *slog.Logger) ([]string, error) {
	if res == nil {
		return nil, errors.New("nothing to write")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	var written []string
	used := map[string]int{}
	for _, p := range res.Posts {
		name := slug(p.Platform)
		if n := used[name]; n > 0 {
			name = fmt.Sprintf("%s-%d", name, n+1)
		}
		used[slug(p.Platform)]++

		mdPath := filepath.Join(dir, name+".md")
		if err := os.WriteFile(mdPath, []byte(p.Content+"\n"), 0o644); err != nil {
			return written, err
		}
		written = append(written, mdPath)

		body, err := RenderHTML(p.Content)
		if err != nil {
			return written, err
		}
		htmlPath := filepath.Join(dir, name+".html")
		if err := os.WriteFile(htmlPath, []byte(htmlDocument(p.Platform, body)), 0o644); err != nil {
			return written, err
		}
		written = append(written, htmlPath)
		logger.Info("post exported", slog.String("platform", p.Platform), slog.String("path", mdPath))
	}

	m := manifest{VideoID: res.VideoID, TranscriptPreview: res.TranscriptPreview}
	for _, w := range written {
		m.Files = append(m.Files, filepath.Base(w))
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return written, err
	}
	manifestPath := filepath.Join(dir, "manifest.json")
	if err := os.WriteFile(manifestPath, data, 0o644); err != nil {
		return written, err
	}
	return append(written, manifestPath), nil
}

func htmlDocument(title, body string) string {
	return fmt.Sprintf("<!doctype html>\n<html>\n<head><meta charset=\"utf-8\"><title>%s</title></head>\n<body>\n%s</body>\n</html>\n",
		html.EscapeString(title), body)
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

func slug(platform string) string {
	s := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(platform), "-"), "-")
	if s == "" {
		return "post"
	}
	return s
}
