package db

// Timestamp layouts used for stored values.
const (
	// sqlTimeLayout matches SQLite's datetime() output.
	sqlTimeLayout = "2006-01-02 15:04:05"
	// sqlHourBucket truncates event_time to its hour.
	sqlHourBucket = "strftime('%Y-%m-%d %H:00:00', event_time)"
)
