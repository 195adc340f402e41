package scheduler

import (
	"log"
	"time"

	"ttss_backend/models"
	"ttss_backend/services/datafetcher"
	"ttss_backend/services/signals"
)

// retentionDays is how long match results and summaries stay in Postgres.
// Older rows live on in the Mongo archive.
const retentionDays = 90

// RunDailyB1 executes the B1 watch-signal calculation for the latest date
func RunDailyB1() {
	log.Println("Scheduled job: daily B1 calculation starting")
	if _, err := signals.GetCalculationService().Run("", models.StrategyB1, "schedule", nil); err != nil {
		log.Printf("Scheduled job: B1 calculation failed: %v", err)
	}
}

// RunDailyS1 executes the S1 sell-signal calculation for the latest date
func RunDailyS1() {
	log.Println("Scheduled job: daily S1 calculation starting")
	if _, err := signals.GetCalculationService().Run("", models.StrategyS1, "schedule", nil); err != nil {
		log.Printf("Scheduled job: S1 calculation failed: %v", err)
	}
}

// RunWeeklyCleanup prunes result rows older than the retention window
func RunWeeklyCleanup() {
	cutoff := time.Now().AddDate(0, 0, -retentionDays).Format("20060102")
	deleted, err := signals.GetCalculationService().CleanupOldRows(cutoff)
	if err != nil {
		log.Printf("Scheduled job: cleanup failed: %v", err)
		return
	}
	log.Printf("Scheduled job: cleanup removed %d rows older than %s", deleted, cutoff)
}

// RunStockListRefresh rebuilds the instrument universe from latest bars
func RunStockListRefresh() {
	n, err := datafetcher.GetFetcher().RefreshStockList()
	if err != nil {
		log.Printf("Scheduled job: stock list refresh failed: %v", err)
		return
	}
	log.Printf("Scheduled job: stock list refresh updated %d instruments", n)
}
