package main

import (
	"flag"
	"log"

	"github.com/slack-go/slack"
)

func main() {
	pmJobs := flag.Bool("pm-jobs", false, "run the PM jobs pipeline once and exit")
	scheduled := flag.Bool("schedule", false, "run the complaint pipeline on the configured cron schedule")
	flag.Parse()

	cfg := LoadConfig()

	db, err := InitDB(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to init database: %v", err)
	}
	defer db.Close()

	llm := NewLLMClient(cfg)

	var api *slack.Client
	if cfg.SlackBotToken != "" {
		api = slack.New(cfg.SlackBotToken)
	}

	switch {
	case *pmJobs:
		if err := RunPMJobsAgent(cfg, db, llm); err != nil {
			log.Fatalf("PM jobs agent failed: %v", err)
		}
	case *scheduled:
		if cfg.AgentSchedule == "" {
			log.Fatalf("agent_schedule is required with -schedule")
		}
		log.Println("Starting App Complaint Intelligence Agent...")
		if err := RunAgentScheduler(cfg, db, llm, api); err != nil {
			log.Fatalf("Scheduler error: %v", err)
		}
	default:
		if err := RunDailyAgent(cfg, db, llm, api); err != nil {
			log.Fatalf("Agent failed: %v", err)
		}
	}
}
