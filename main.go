package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"chat-drama-pipeline/audio"
	"chat-drama-pipeline/config"
	"chat-drama-pipeline/pipeline"
	"chat-drama-pipeline/render"
	"chat-drama-pipeline/scheduler"
	"chat-drama-pipeline/story"
	"chat-drama-pipeline/trends"
	"chat-drama-pipeline/upload"
	"chat-drama-pipeline/video"
)

const usage = `chat-drama-pipeline - automated chat drama shorts

Usage:
  chat-drama-pipeline run      [--theme T] [--messages N] [--music PATH] [--trending] [--no-upload]
  chat-drama-pipeline batch    [--count N] [--themes a,b,c] [--no-upload]
  chat-drama-pipeline list     [--status S]
  chat-drama-pipeline retry    [--no-upload]
  chat-drama-pipeline auth
  chat-drama-pipeline schedule [--interval HOURS | --daily N | --times HH:MM,HH:MM] [--no-upload]
`

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := loadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.EnsureDirs(); err != nil {
		log.Fatal().Err(err).Msg("failed to create data dirs")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch os.Args[1] {
	case "run":
		err = cmdRun(ctx, cfg, os.Args[2:])
	case "batch":
		err = cmdBatch(ctx, cfg, os.Args[2:])
	case "list":
		err = cmdList(cfg, os.Args[2:])
	case "retry":
		err = cmdRetry(ctx, cfg, os.Args[2:])
	case "auth":
		err = upload.NewUploader(cfg).Authenticate(ctx)
	case "schedule":
		err = cmdSchedule(ctx, cfg, os.Args[2:])
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		log.Fatal().Err(err).Msgf("%s failed", os.Args[1])
	}
}

func loadConfig() (*config.Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config.yaml"
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		log.Warn().Msgf("no config file at %s, using defaults", path)
		return config.Default(), nil
	}
	return config.Load(path)
}

func buildPipeline(cfg *config.Config) (*pipeline.Pipeline, error) {
	store, err := pipeline.NewStore(cfg.Paths.Jobs)
	if err != nil {
		return nil, err
	}
	gen, err := story.NewGenerator(cfg)
	if err != nil {
		return nil, err
	}
	renderer, err := render.NewRenderer(cfg)
	if err != nil {
		return nil, err
	}
	return pipeline.New(cfg, store, gen, renderer,
		audio.NewMixer(cfg), video.NewComposer(cfg), upload.NewUploader(cfg)), nil
}

func cmdRun(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	theme := fs.String("theme", "", "story theme (random if empty)")
	messages := fs.Int("messages", 0, "message count (random in configured range if 0)")
	music := fs.String("music", "", "background music file (random library track if empty)")
	trending := fs.Bool("trending", false, "seed the story from a trending Reddit topic")
	noUpload := fs.Bool("no-upload", false, "skip the YouTube upload stage")
	fs.Parse(args)

	p, err := buildPipeline(cfg)
	if err != nil {
		return err
	}
	opts := pipeline.RunOptions{
		Upload:    !*noUpload,
		MusicPath: *music,
		Messages:  *messages,
	}

	runTheme := *theme
	if *trending {
		fetcher, err := trends.NewFetcher(cfg)
		if err != nil {
			return err
		}
		topic, err := fetcher.PickTopic(ctx)
		if err != nil {
			return err
		}
		opts.Topic = topic.Title
		if runTheme == "" {
			runTheme = topic.Theme
		}
	}

	_, err = p.Run(ctx, runTheme, opts)
	return err
}

func cmdBatch(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("batch", flag.ExitOnError)
	count := fs.Int("count", 3, "number of jobs to run")
	themesFlag := fs.String("themes", "", "comma-separated themes, assigned cyclically")
	noUpload := fs.Bool("no-upload", false, "skip the YouTube upload stage")
	fs.Parse(args)

	p, err := buildPipeline(cfg)
	if err != nil {
		return err
	}
	var themes []string
	if *themesFlag != "" {
		themes = strings.Split(*themesFlag, ",")
	}
	_, err = p.RunBatch(ctx, *count, themes, pipeline.RunOptions{Upload: !*noUpload})
	return err
}

func cmdList(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	statusFlag := fs.String("status", "", "filter by status")
	fs.Parse(args)

	var status pipeline.Status
	if *statusFlag != "" {
		parsed, err := pipeline.ParseStatus(*statusFlag)
		if err != nil {
			return err
		}
		status = parsed
	}

	store, err := pipeline.NewStore(cfg.Paths.Jobs)
	if err != nil {
		return err
	}
	p := pipeline.New(cfg, store, nil, nil, nil, nil, nil)
	jobs, err := p.ListJobs(status)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		fmt.Println("no jobs")
		return nil
	}
	for _, j := range jobs {
		line := fmt.Sprintf("%s  %-16s  %s", j.ID, j.Status, j.CreatedAt.Local().Format("2006-01-02 15:04"))
		if j.Story != nil {
			line += "  " + j.Story.Title
		}
		if j.YouTubeID != "" {
			line += "  yt:" + j.YouTubeID
		}
		if j.Error != "" {
			line += "  error: " + j.Error
		}
		fmt.Println(line)
	}
	return nil
}

func cmdRetry(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("retry", flag.ExitOnError)
	noUpload := fs.Bool("no-upload", false, "skip the YouTube upload stage")
	fs.Parse(args)

	p, err := buildPipeline(cfg)
	if err != nil {
		return err
	}
	_, err = p.RetryFailed(ctx, pipeline.RunOptions{Upload: !*noUpload})
	return err
}

func cmdSchedule(ctx context.Context, cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("schedule", flag.ExitOnError)
	interval := fs.Float64("interval", 0, "hours between runs")
	daily := fs.Int("daily", 0, "runs per day with randomized spacing")
	timesFlag := fs.String("times", "", "comma-separated HH:MM daily run times")
	noUpload := fs.Bool("no-upload", false, "skip the YouTube upload stage")
	fs.Parse(args)

	p, err := buildPipeline(cfg)
	if err != nil {
		return err
	}
	opts := pipeline.RunOptions{Upload: !*noUpload}
	sched := scheduler.New(func(ctx context.Context) error {
		_, err := p.Run(ctx, "", opts)
		return err
	})

	switch {
	case *interval > 0:
		return sched.RunInterval(ctx, time.Duration(*interval*float64(time.Hour)))
	case *daily > 0:
		return sched.RunPerDay(ctx, *daily)
	case *timesFlag != "":
		return sched.RunAtTimes(ctx, strings.Split(*timesFlag, ","))
	default:
		return fmt.Errorf("schedule: one of --interval, --daily or --times is required")
	}
}
