package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/pollevbot/pollevbot"
	"github.com/pollevbot/pollevbot/service/event"
)

var requiredVars = map[string]string{
	"POLLEV_USERNAME": "username for the polling platform",
	"POLLEV_PASSWORD": "password for the polling platform",
	"POLLEV_HOST":     `poll host to watch (e.g. "uwpsych")`,
}

func main() {
	configURL := flag.String("config", "", "optional YAML configuration file")
	lifetime := flag.Duration("lifetime", 0, "stop after this duration (0 runs until interrupted)")
	traceFile := flag.String("trace", "", "write traces to this file instead of stdout")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	config, err := loadConfig(ctx, *configURL)
	if err != nil {
		log.Fatal(err)
	}
	if *lifetime > 0 {
		config.Watcher.Lifetime = *lifetime
	}

	options := []pollevbot.Option{
		pollevbot.WithStatusHandler(printStatus),
	}
	if *traceFile != "" {
		options = append(options, pollevbot.WithTracing("pollevbot", "1.0", *traceFile))
	}

	bot, err := pollevbot.New(config, options...)
	if err != nil {
		log.Fatal(err)
	}
	if err := bot.Run(ctx); err != nil {
		log.Fatal(err)
	}
}

func loadConfig(ctx context.Context, configURL string) (*pollevbot.Config, error) {
	if configURL != "" {
		return pollevbot.LoadConfig(ctx, configURL)
	}

	// fall back to environment variables, optionally from a .env file
	_ = godotenv.Load()
	if missing := missingVars(); len(missing) > 0 {
		fmt.Fprintln(os.Stderr, "missing required environment variables:")
		for _, name := range missing {
			fmt.Fprintf(os.Stderr, "  %v: %v\n", name, requiredVars[name])
		}
		return nil, fmt.Errorf("incomplete environment")
	}

	config := pollevbot.DefaultConfig()
	config.Session.Username = os.Getenv("POLLEV_USERNAME")
	config.Session.Password = os.Getenv("POLLEV_PASSWORD")
	config.Session.Host = os.Getenv("POLLEV_HOST")
	if mode := os.Getenv("POLLEV_LOGIN_MODE"); mode != "" {
		config.Session.LoginMode = mode
	}
	if url := os.Getenv("POLLEV_RESPONSE_LOG"); url != "" {
		config.ResponseLogURL = url
	}
	return config, nil
}

// missingVars returns the unset required variables in a stable order so the
// hints always print the same way.
func missingVars() []string {
	missing := []string{}
	for name := range requiredVars {
		if os.Getenv(name) == "" {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing
}

func printStatus(e *event.Event) {
	log.Printf("[%v] %v %v", e.Severity, e.CreatedAt.Format(time.TimeOnly), e.Message)
}
