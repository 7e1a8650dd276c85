package redis

import "fmt"

const ns = "checkin:v1"

func KeyFlightSummary(flightID int64) string {
	return fmt.Sprintf("%s:flight:%d:summary", ns, flightID)
}

func KeyRateLimit(scope, id string) string {
	return fmt.Sprintf("%s:rl:%s:%s", ns, scope, id)
}

func KeyIdemCheckIn(idemKey string) string {
	return fmt.Sprintf("%s:idem:checkin:%s", ns, idemKey)
}

func ChannelFlightStatus() string {
	return ns + ":flights:status"
}
