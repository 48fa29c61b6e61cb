// Command linkgraph crawls a list of site pages and prints their internal
// link graph as a rules overlay for the server's rules_file.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ichi-a/geo-shock/internal/classify"
	"github.com/ichi-a/geo-shock/internal/linkgraph"
	"github.com/ichi-a/geo-shock/internal/server"
)

func main() {
	site := flag.String("site", "", "site base URL, e.g. https://www.example.com")
	pages := flag.String("pages", "/", "comma-separated page paths to crawl")
	out := flag.String("out", "", "output file (default stdout)")
	flag.Parse()

	logger := server.SetupLogger(server.LogOptions{Level: os.Getenv("LOG_LEVEL"), Stderr: true})

	base, err := url.Parse(*site)
	if err != nil || base.Host == "" {
		fmt.Fprintln(os.Stderr, "linkgraph: -site must be an absolute URL")
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var list []string
	for _, p := range strings.Split(*pages, ",") {
		if p = strings.TrimSpace(p); p != "" {
			list = append(list, p)
		}
	}

	crawler := linkgraph.NewCrawler(classify.DefaultRules().Traps, logger)
	graph, err := crawler.Build(ctx, base, list)
	if err != nil {
		logger.Error("linkgraph: build failed", "err", err)
		os.Exit(1)
	}

	if err := write(*out, graph); err != nil {
		logger.Error("linkgraph: write failed", "err", err)
		os.Exit(1)
	}
	logger.Info("linkgraph: done", "pages", len(graph))
}

func write(path string, graph map[string][]string) error {
	if path == "" {
		return linkgraph.WriteYAML(os.Stdout, graph)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := linkgraph.WriteYAML(f, graph); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
