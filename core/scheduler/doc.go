// Package scheduler drives time-based capacity maintenance: cron-scheduled
// rebalance passes per hub and a periodic sweep that lifts expired throttles
// and checks utilization thresholds.
package scheduler
