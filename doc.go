// Package pollevbot automates responding to live audience polls.
//
// The bot logs in to the polling platform, watches the poll feed, answers
// each newly opened poll once and submits the result. Multiple-choice polls
// are answered by the configured generator or a uniform random pick;
// free-text answers are generated, validated with bounded retries and held
// for human approval before anything is submitted.
//
// End-users typically interact with the bot via the high-level Service
// façade exposed by the root package:
//
//	cfg := pollevbot.DefaultConfig()
//	cfg.Session.Username = "user@example.com"
//	cfg.Session.Password = "secret"
//	cfg.Session.Host = "uwpsych"
//
//	bot, err := pollevbot.New(cfg, pollevbot.WithGenerator(gen))
//	if err != nil {
//		log.Fatal(err)
//	}
//	err = bot.Run(ctx)
//
// For more details see the README and individual sub-packages.
package pollevbot
