package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/xhad/docbot/internal/types"
	"github.com/xhad/docbot/pkg/chatbot"
	"github.com/xhad/docbot/pkg/index"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with a Dropbox folder in the terminal",
	Long: `Start an interactive session in the terminal.

Commands:
  :load [folder]   load a Dropbox folder (default: the current folder)
  exit             quit
Anything else is sent as a question.`,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	deps, err := chatbot.NewDeps(cfg)
	if err != nil {
		return err
	}
	defer deps.Close()

	reporter := newTermReporter(os.Stdout)
	session, err := deps.NewSession(reporter)
	if err != nil {
		return err
	}
	defer session.Close(context.Background()) //nolint:errcheck

	r := &repl{
		in:       os.Stdin,
		out:      os.Stdout,
		session:  session,
		reporter: reporter,
		folder:   cfg.Dropbox.Folder,
	}
	return r.run(cmd.Context())
}

type chatSession interface {
	LoadDocuments(ctx context.Context, folder string) (*chatbot.LoadResult, error)
	SubmitQuestion(ctx context.Context, question string) (string, error)
}

type repl struct {
	in       io.Reader
	out      io.Writer
	session  chatSession
	reporter *termReporter
	folder   string
}

func (r *repl) run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	title := color.New(color.FgCyan, color.Bold)
	userPrompt := color.New(color.FgGreen)

	title.Fprintf(r.out, "\n%s\n", chatbot.Title)
	fmt.Fprintln(r.out, chatbot.Description)

	scanner := bufio.NewScanner(r.in)

	userPrompt.Fprintf(r.out, "\nDropbox folder path (example: /my_documents) [%s]: ", r.folder)
	if !scanner.Scan() {
		return scanner.Err()
	}
	if f := strings.TrimSpace(scanner.Text()); f != "" {
		r.folder = f
	}
	color.New(color.FgBlue).Fprintf(r.out, "Type :load to load documents from %s, 'exit' to quit\n", r.folder)

	for {
		userPrompt.Fprint(r.out, "\nYou: ")
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == "":
			continue
		case strings.ToLower(line) == "exit":
			return nil
		case line == ":load" || strings.HasPrefix(line, ":load "):
			if f := strings.TrimSpace(strings.TrimPrefix(line, ":load")); f != "" {
				r.folder = f
			}
			r.load(ctx)
		default:
			r.ask(ctx, line)
		}
	}

	return scanner.Err()
}

func (r *repl) load(ctx context.Context) {
	color.New(color.FgBlue).Fprintf(r.out, "\nDownloading and processing documents from %s...\n", r.folder)

	result, err := r.session.LoadDocuments(ctx, r.folder)
	r.reporter.finish()
	if err != nil {
		r.printError(err)
		return
	}

	color.New(color.FgGreen).Fprintf(r.out, "✓ %d documents loaded successfully.\n", result.Documents)
	fmt.Fprintf(r.out, "Example document sources: %s\n", strings.Join(result.Sources, ", "))
	if len(result.Skipped) > 0 {
		fmt.Fprintf(r.out, "Skipped %d files\n", len(result.Skipped))
	}
}

func (r *repl) ask(ctx context.Context, question string) {
	spinner := getSpinner(r.out, " Processing question...")
	answer, err := r.session.SubmitQuestion(ctx, question)
	spinner.Finish()
	fmt.Fprint(r.out, "\r")

	if err != nil {
		r.printError(err)
		return
	}
	color.New(color.FgCyan).Fprintf(r.out, "\nAnswer: %s\n", answer)
}

func (r *repl) printError(err error) {
	red := color.New(color.FgRed)
	switch {
	case errors.Is(err, chatbot.ErrNoDocuments):
		red.Fprintln(r.out, "No documents were found in that folder.")
	case errors.Is(err, index.ErrNotBuilt):
		red.Fprintln(r.out, "Load documents with :load before asking a question.")
	default:
		red.Fprintf(r.out, "Error: %v\n", err)
	}
}

// termReporter renders load progress as a bar over the listed files.
type termReporter struct {
	out io.Writer
	bar *progressbar.ProgressBar
}

func newTermReporter(out io.Writer) *termReporter {
	return &termReporter{out: out}
}

func (t *termReporter) Status(msg string) {
	t.finish()
	color.New(color.FgBlue).Fprintln(t.out, msg)
}

func (t *termReporter) Progress(done, total int, path string) {
	if t.bar == nil {
		t.bar = getProgressBar(t.out, total, " Processing documents")
	}
	t.bar.Describe(color.BlueString(" %s", path))
	t.bar.Set(done)
}

func (t *termReporter) Error(err error) {
	t.finish()
	if types.IsKind(err, types.ListingFault) {
		color.New(color.FgRed).Fprintf(t.out, "Could not list folder: %v\n", err)
		return
	}
	color.New(color.FgRed).Fprintf(t.out, "Error: %v\n", err)
}

func (t *termReporter) finish() {
	if t.bar != nil {
		t.bar.Finish()
		fmt.Fprintln(t.out)
		t.bar = nil
	}
}

func getProgressBar(out io.Writer, total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(out),
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetItsString("files"),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func getSpinner(out io.Writer, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(out),
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}
