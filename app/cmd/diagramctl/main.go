package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/alecthomas/kingpin"
	"github.com/mark3labs/mcp-go/server"

	"diagrammer/internal/infrastructure/apiclient"
	"diagrammer/internal/infrastructure/catalog"
	"diagrammer/internal/infrastructure/mcptool"
	"diagrammer/internal/infrastructure/renderer"
	"diagrammer/internal/infrastructure/validator"
)

var version = "dev"

var (
	app     = kingpin.New("diagramctl", "Architecture diagram generator client")
	apiURL  = app.Flag("api", "diagram API base URL").Envar("API_URL").Default("http://localhost:8000").String()
	timeout = app.Flag("timeout", "request timeout").Default("5m").Duration()

	generateCmd    = app.Command("generate", "generate a diagram from a description")
	generatePrompt = generateCmd.Arg("prompt", "architecture description").Required().Strings()
	generateOut    = generateCmd.Flag("output", "output PNG path").Short('o').Default("diagram.png").String()
	generateCode   = generateCmd.Flag("code", "also write the generated source to this path").Short('c').String()

	historyCmd = app.Command("history", "list past requests")

	renderCmd     = app.Command("render", "render a diagrams source file locally without calling the model")
	renderFile    = renderCmd.Arg("file", "python source with a `with Diagram(...)` block").Required().ExistingFile()
	renderOut     = renderCmd.Flag("output", "output path").Short('o').Default("diagram.png").String()
	renderCatalog = renderCmd.Flag("catalog", "node catalog HCL file").ExistingFile()
	renderDot     = renderCmd.Flag("dot", "write graphviz source instead of PNG").Bool()
	renderBinary  = renderCmd.Flag("dot-binary", "graphviz binary").Envar("DOT_BINARY").Default("dot").String()

	mcpCmd = app.Command("mcp", "serve the diagram tool over MCP stdio")
)

func main() {
	app.Version(version)
	cmd := kingpin.MustParse(app.Parse(os.Args[1:]))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	var err error
	switch cmd {
	case generateCmd.FullCommand():
		err = runGenerate(ctx)
	case historyCmd.FullCommand():
		err = runHistory(ctx, os.Stdout)
	case renderCmd.FullCommand():
		err = runRender(ctx)
	case mcpCmd.FullCommand():
		err = server.ServeStdio(mcptool.NewServer(apiclient.New(*apiURL, *timeout), version))
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func runGenerate(ctx context.Context) error {
	client := apiclient.New(*apiURL, *timeout)
	resp, err := client.Generate(ctx, strings.Join(*generatePrompt, " "))
	if err != nil {
		return err
	}

	png, err := base64.StdEncoding.DecodeString(resp.DiagramImage)
	if err != nil {
		return fmt.Errorf("decode image: %w", err)
	}
	if err := os.WriteFile(*generateOut, png, 0o644); err != nil {
		return err
	}
	if *generateCode != "" {
		if err := os.WriteFile(*generateCode, []byte(resp.DiagramCode), 0o644); err != nil {
			return err
		}
	}
	fmt.Printf("request %d: wrote %s\n", resp.ID, *generateOut)
	return nil
}

func runHistory(ctx context.Context, out io.Writer) error {
	history, err := apiclient.New(*apiURL, *timeout).History(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCREATED\tSTATUS\tPROMPT\tERROR")
	for _, h := range history {
		errMsg := ""
		if h.ErrorMessage != nil {
			errMsg = truncate(*h.ErrorMessage, 60)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", h.ID, h.CreatedAt.Local().Format(time.DateTime), h.Status, truncate(h.Prompt, 50), errMsg)
	}
	return w.Flush()
}

func runRender(ctx context.Context) error {
	src, err := os.ReadFile(*renderFile)
	if err != nil {
		return err
	}

	cat := catalog.Default()
	if *renderCatalog != "" {
		if cat, err = catalog.Load(*renderCatalog); err != nil {
			return err
		}
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	r := renderer.NewGraphvizRenderer(cat, validator.NewDiagramAnalyzer(), renderer.Options{
		DotBinary: *renderBinary,
		Timeout:   *timeout,
	}, logger)

	d, err := r.Parse(string(src))
	if err != nil {
		return err
	}

	var data []byte
	if *renderDot {
		data, err = renderer.BuildDOT(d, cat)
	} else {
		data, err = r.RenderDiagram(ctx, d, 0)
	}
	if err != nil {
		return err
	}
	return os.WriteFile(*renderOut, data, 0o644)
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n-1]) + "…"
}
