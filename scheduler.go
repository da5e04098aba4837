package main

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/slack-go/slack"
)

// RunAgentScheduler blocks forever, running the complaint pipeline on the
// configured cron schedule. The schedule is a standard 5-field cron
// expression (minute hour day-of-month month day-of-week), e.g. "0 2 * * *"
// for 2am daily. A failed run is logged and the next one proceeds; the
// dedup gate and idempotent aggregation make re-runs safe.
func RunAgentScheduler(cfg Config, db *sql.DB, llm *LLMClient, api *slack.Client) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser.Parse(cfg.AgentSchedule)
	if err != nil {
		return fmt.Errorf("invalid agent_schedule '%s': %v", cfg.AgentSchedule, err)
	}
	log.Printf("Agent scheduled (cron: %s)", cfg.AgentSchedule)

	for {
		now := time.Now().In(cfg.Location)
		next := sched.Next(now)
		wait := next.Sub(now)
		log.Printf("Next agent run at %s (in %s)", next.Format("Mon Jan 2 15:04"), wait.Round(time.Minute))

		time.Sleep(wait)

		if err := RunDailyAgent(cfg, db, llm, api); err != nil {
			log.Printf("Scheduled run error: %v", err)
		}
	}
}
