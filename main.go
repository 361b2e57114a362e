// Command perch renders a page to a PNG.
//
//	perch -o out.png page.html
//	perch -o out.png -w 1024 -h 768 -scroll 200 https://example.com/
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"perch/css"
	"perch/html"
	"perch/images"
	"perch/layout"
	"perch/network"
	"perch/render"
	"perch/tasks"
	"perch/text"
)

func main() {
	var (
		out     = flag.String("o", "out.png", "output PNG path")
		width   = flag.Int("w", 800, "viewport width")
		height  = flag.Int("h", 600, "viewport height")
		scroll  = flag.Float64("scroll", 0, "vertical scroll offset")
		debug   = flag.Bool("debug", false, "paint layout box overlay")
		assets  = flag.String("assets", "", "assets directory for about: pages")
		wait    = flag.Duration("wait", 5*time.Second, "max time to wait for images")
		verbose = flag.Bool("v", false, "debug logging")
	)
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: perch [flags] <file-or-url>")
		flag.Usage()
		os.Exit(2)
	}

	if err := run(flag.Arg(0), *out, *width, *height, *scroll, *debug, *assets, *wait, logger); err != nil {
		logger.Error("render failed", "error", err)
		os.Exit(1)
	}
}

func run(target, out string, width, height int, scroll float64, debug bool, assets string, wait time.Duration, logger *slog.Logger) error {
	fetcher, err := network.NewClient()
	if err != nil {
		return err
	}

	markup, base, err := loadPage(fetcher, target)
	if err != nil {
		return err
	}
	logger.Debug("page loaded", "base", base, "bytes", len(markup))

	sched := tasks.NewScheduler(0, logger)
	defer sched.Close()
	loader := images.NewLoader(
		images.WithFetcher(fetcher),
		images.WithScheduler(sched),
		images.WithAssetsDir(assets),
		images.WithLogger(logger),
	)

	styled := css.StyleDocument(html.Parse(markup), "")
	pipeline := render.NewPipeline(text.NewService(),
		render.WithLoader(loader),
		render.WithScheduler(sched),
		render.WithDebugOverlay(debug),
		render.WithPipelineLogger(logger),
	)

	surface := render.NewImageSurface(width, height)
	doc := pipeline.Render(surface, styled, float64(width), float64(height), scroll, base)

	// Keep rendering frames until every referenced image settles or
	// the wait budget runs out.
	deadline := time.Now().Add(wait)
	for imagesPending(loader, doc) && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
		doc = pipeline.Render(surface, styled, float64(width), float64(height), scroll, base)
	}

	if err := surface.SavePNG(out); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	logger.Info("rendered", "output", out, "lines", len(doc.Lines), "images", len(doc.Images), "height", doc.Height)
	return nil
}

func imagesPending(loader *images.Loader, doc *layout.Document) bool {
	for _, box := range doc.Images {
		if box.Locator == "" {
			continue
		}
		if state, _ := loader.Lookup(box.Locator); state == images.StatePending {
			return true
		}
	}
	return false
}

func loadPage(fetcher network.Fetcher, target string) (markup, base string, err error) {
	if strings.HasPrefix(target, "http://") || strings.HasPrefix(target, "https://") {
		resp, err := fetcher.Fetch(context.Background(), target)
		if err != nil {
			return "", "", err
		}
		if resp.StatusCode >= 400 {
			return "", "", fmt.Errorf("fetch %s: %s", target, resp.Status)
		}
		return string(resp.Body), resp.URL.String(), nil
	}

	data, err := os.ReadFile(target)
	if err != nil {
		return "", "", err
	}
	abs, err := filepath.Abs(target)
	if err != nil {
		abs = target
	}
	return string(data), "file://" + filepath.ToSlash(abs), nil
}
