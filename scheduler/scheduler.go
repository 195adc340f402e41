package scheduler

import (
	"log"
	"time"

	"github.com/go-co-op/gocron"
)

var scheduler *gocron.Scheduler

// Start creates the scheduler and registers all jobs. Times are CST
// (Asia/Shanghai), after A-share market close.
func Start() {
	loc, err := time.LoadLocation("Asia/Shanghai")
	if err != nil {
		log.Printf("Scheduler: failed to load timezone, using UTC: %v", err)
		loc = time.UTC
	}

	scheduler = gocron.NewScheduler(loc)

	// daily B1 calculation after close
	if _, err := scheduler.Every(1).Day().At("17:30").Do(RunDailyB1); err != nil {
		log.Printf("Scheduler: failed to register B1 job: %v", err)
	}

	// daily S1 calculation, staggered behind B1
	if _, err := scheduler.Every(1).Day().At("17:45").Do(RunDailyS1); err != nil {
		log.Printf("Scheduler: failed to register S1 job: %v", err)
	}

	// weekly cleanup of aged result rows
	if _, err := scheduler.Every(1).Week().Sunday().At("01:00").Do(RunWeeklyCleanup); err != nil {
		log.Printf("Scheduler: failed to register cleanup job: %v", err)
	}

	// keep the instrument universe fresh
	if _, err := scheduler.Every(6).Hours().Do(RunStockListRefresh); err != nil {
		log.Printf("Scheduler: failed to register stock list refresh: %v", err)
	}

	scheduler.StartAsync()
	log.Println("Scheduler started")
}

// Stop halts the scheduler
func Stop() {
	if scheduler != nil {
		scheduler.Stop()
		log.Println("Scheduler stopped")
	}
}
