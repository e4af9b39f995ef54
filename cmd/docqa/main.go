package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"
	"github.com/xhad/docqa/internal/models"
	"github.com/xhad/docqa/pkg/config"
	"github.com/xhad/docqa/pkg/logging"
	"github.com/xhad/docqa/pkg/pipeline"
)

type questionList []string

func (q *questionList) String() string { return strings.Join(*q, "; ") }

func (q *questionList) Set(v string) error {
	if strings.TrimSpace(v) == "" {
		return errors.New("question cannot be empty")
	}
	*q = append(*q, v)
	return nil
}

type options struct {
	configPath string
	document   string
	ollamaURL  string
	storeType  string
	jsonOut    bool
	questions  questionList
}

func main() {
	opts := parseFlags()
	if err := run(opts); err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}

func parseFlags() options {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "Path to config file")
	flag.StringVar(&opts.document, "doc", "", "URL of the document to query")
	flag.StringVar(&opts.ollamaURL, "ollama-url", "", "Ollama server URL")
	flag.StringVar(&opts.storeType, "store", "", "Vector store: memory or pgvector")
	flag.BoolVar(&opts.jsonOut, "json", false, "Print the response as JSON")
	flag.Var(&opts.questions, "q", "Question to ask (repeatable)")
	flag.Parse()

	// Remaining arguments are questions too
	for _, arg := range flag.Args() {
		_ = opts.questions.Set(arg)
	}
	return opts
}

func run(opts options) error {
	if opts.document == "" {
		flag.Usage()
		return errors.New("-doc is required")
	}

	// .env is optional
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return err
	}
	if opts.ollamaURL != "" {
		cfg.LLM.BaseURL = opts.ollamaURL
	}
	if opts.storeType != "" {
		cfg.Store.Type = opts.storeType
	}
	if errs := cfg.Validate(); len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %v", errs[0])
	}

	// Keep the terminal for the progress bar and answers.
	logger, err := logging.New("error", "console")
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, closeStore, err := pipeline.NewFromConfig(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	var bar *progressbar.ProgressBar
	if !opts.jsonOut && len(opts.questions) > 0 {
		bar = getProgressBar(len(opts.questions), "Answering questions")
		p = p.WithProgress(func(done, _ int) {
			_ = bar.Set(done)
		})
	}

	resp, err := p.Run(ctx, models.QueryRequest{
		Documents: opts.document,
		Questions: opts.questions,
	})
	if bar != nil {
		_ = bar.Finish()
		fmt.Println()
	}
	if err != nil {
		return err
	}

	if opts.jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(resp)
	}

	printAnswers(opts.questions, resp.Answers)
	return nil
}

func printAnswers(questions, answers []string) {
	questionPrompt := color.New(color.FgGreen, color.Bold).PrintfFunc()
	answerPrompt := color.New(color.FgCyan).PrintfFunc()

	if len(answers) == 0 {
		color.Yellow("No questions asked; the document was fetched and indexed successfully.")
		return
	}

	for i, answer := range answers {
		questionPrompt("\n%d. %s\n", i+1, questions[i])
		if strings.HasPrefix(answer, "Error processing question:") {
			color.Red("   %s\n", answer)
			continue
		}
		answerPrompt("   %s\n", answer)
	}
}

func getProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetItsString("questions"),
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
