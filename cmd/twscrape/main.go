// Command twscrape prints tweets from X/Twitter as JSON lines.
//
// Usage:
//
//	twscrape tweets <username> [limit]
//	twscrape tweet <id>
//	twscrape latest [--retweets] <username>
//	twscrape list <listID> [limit]
//	twscrape search <query> [limit]
//	twscrape profile <username>
//
// Configuration comes from the environment, an optional .env file and an
// optional twscrape.yaml in the working directory.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	twitter "github.com/anatolykoptev/go-twitter-scraper"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the CLI configuration.
type Config struct {
	Accounts   string `mapstructure:"TWITTER_ACCOUNTS"`
	Proxy      string `mapstructure:"TWITTER_PROXY"`
	SessionDir string `mapstructure:"TWITTER_SESSION_DIR"`
	PageSize   int    `mapstructure:"TWITTER_PAGE_SIZE"`
	LogLevel   string `mapstructure:"LOG_LEVEL"`
}

func loadConfig() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("twscrape")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AutomaticEnv()
	// Unmarshal only sees keys viper knows about.
	v.SetDefault("TWITTER_ACCOUNTS", "")
	v.SetDefault("TWITTER_PROXY", "")
	v.SetDefault("TWITTER_SESSION_DIR", "")
	v.SetDefault("TWITTER_PAGE_SIZE", 20)
	v.SetDefault("LOG_LEVEL", "info")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

func setupLogging(level string) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		l = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})))
}

func main() {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	setupLogging(cfg.LogLevel)

	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := twitter.NewClient(twitter.ClientConfig{
		Accounts:     twitter.ParseAccounts(cfg.Accounts),
		DefaultProxy: cfg.Proxy,
		SessionDir:   cfg.SessionDir,
		PageSize:     cfg.PageSize,
	})
	if err != nil {
		slog.Error("create client", slog.Any("error", err))
		os.Exit(1)
	}

	if err := run(ctx, client, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			usage(os.Stderr)
			os.Exit(2)
		}
		slog.Error("command failed", slog.String("command", os.Args[1]), slog.Any("error", err))
		os.Exit(1)
	}
}

var errUsage = errors.New("usage")

func usage(w io.Writer) {
	fmt.Fprintln(w, `usage:
  twscrape tweets <username> [limit]
  twscrape tweet <id>
  twscrape latest [--retweets] <username>
  twscrape list <listID> [limit]
  twscrape search <query> [limit]
  twscrape profile <username>`)
}

// run executes one subcommand and writes its results to out, one JSON
// document per line.
func run(ctx context.Context, c *twitter.Client, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	enc := json.NewEncoder(out)
	cmd, args := args[0], args[1:]

	switch cmd {
	case "tweets", "list", "search":
		if len(args) < 1 {
			return fmt.Errorf("%s: %w", cmd, errUsage)
		}
		limit, err := parseLimit(args[1:])
		if err != nil {
			return err
		}
		var it *twitter.TweetIterator
		switch cmd {
		case "tweets":
			it = c.GetTweets(args[0], limit)
		case "list":
			it = c.GetListTweets(args[0], limit)
		default:
			it = c.SearchTweets(args[0], limit)
		}
		return emitAll(ctx, enc, it)

	case "tweet":
		if len(args) != 1 {
			return fmt.Errorf("%s: %w", cmd, errUsage)
		}
		tw, err := c.GetTweet(ctx, args[0])
		if err != nil {
			return err
		}
		if tw == nil {
			return fmt.Errorf("tweet %s not found", args[0])
		}
		return enc.Encode(tw)

	case "latest":
		fs := flag.NewFlagSet("latest", flag.ContinueOnError)
		fs.SetOutput(io.Discard)
		retweets := fs.Bool("retweets", false, "consider retweets")
		if err := fs.Parse(args); err != nil || fs.NArg() != 1 {
			return fmt.Errorf("%s: %w", cmd, errUsage)
		}
		tw, err := c.GetLatestTweet(ctx, fs.Arg(0), *retweets)
		if err != nil {
			return err
		}
		if tw == nil {
			return fmt.Errorf("no recent tweet for %s", fs.Arg(0))
		}
		return enc.Encode(tw)

	case "profile":
		if len(args) != 1 {
			return fmt.Errorf("%s: %w", cmd, errUsage)
		}
		p, err := c.GetProfile(ctx, args[0])
		if err != nil {
			return err
		}
		return enc.Encode(p)
	}
	return fmt.Errorf("unknown command %q: %w", cmd, errUsage)
}

func emitAll(ctx context.Context, enc *json.Encoder, it *twitter.TweetIterator) error {
	n := 0
	for tw, err := range it.All(ctx) {
		if err != nil {
			return fmt.Errorf("after %d tweets: %w", n, err)
		}
		if err := enc.Encode(tw); err != nil {
			return err
		}
		n++
	}
	slog.Debug("done", slog.Int("tweets", n), slog.Int("pages", it.Pages()))
	return nil
}

// parseLimit reads the optional trailing limit argument; 0 means unbounded.
func parseLimit(args []string) (int, error) {
	if len(args) == 0 {
		return 0, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(args[0]))
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid limit %q", args[0])
	}
	return n, nil
}
