package metrics

import (
	"strconv"
	"time"
)

// GatewayCall records one remote API call. status is the HTTP status, or 0
// when the request never got a response.
func GatewayCall(resource, method string, status int, duration time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	GatewayRequestsTotal.WithLabelValues(resource, method, label).Inc()
	GatewayRequestDuration.WithLabelValues(resource, method).Observe(duration.Seconds())
}

// CacheRefreshed records a list fetch outcome.
func CacheRefreshed(resource string, err error) {
	CacheRefreshesTotal.WithLabelValues(resource, outcome(err)).Inc()
}

// CacheStaleDiscarded records a fetch result that lost to a newer write.
func CacheStaleDiscarded(resource string) {
	CacheStaleDiscardsTotal.WithLabelValues(resource).Inc()
}

// GridMutation records a create, update or delete issued by a grid.
func GridMutation(resource, op string, err error) {
	GridMutationsTotal.WithLabelValues(resource, op, outcome(err)).Inc()
}

// Notified records a message sent to the user.
func Notified(kind string) {
	NotificationsTotal.WithLabelValues(kind).Inc()
}

func outcome(err error) string {
	if err != nil {
		return "failed"
	}
	return "ok"
}
