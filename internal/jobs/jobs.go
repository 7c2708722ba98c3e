package jobs

import (
	"log"
	"time"

	"github.com/go-co-op/gocron"
)

// StartSchedule runs task every interval on a background scheduler. A
// zero interval disables scheduling and returns nil. Runs never overlap.
func StartSchedule(name string, interval time.Duration, task func()) (*gocron.Scheduler, error) {
	if interval <= 0 {
		log.Printf("Interval for '%s' is 0, scheduled runs are disabled.", name)
		return nil, nil
	}

	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()

	log.Printf("Scheduling job: '%s' to run every %v.", name, interval)
	_, err := s.Every(interval).WaitForSchedule().Do(func() {
		log.Println("Scheduler is triggering job:", name)
		task()
	})
	if err != nil {
		return nil, err
	}

	s.StartAsync()
	return s, nil
}
