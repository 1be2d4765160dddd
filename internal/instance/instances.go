package instance

import (
	"github.com/juggernaut-live/roster/data/events"
	"github.com/juggernaut-live/roster/data/query"
	"github.com/juggernaut-live/roster/internal/svc/prometheus"
	"github.com/juggernaut-live/roster/internal/svc/redis"
	"github.com/juggernaut-live/roster/internal/svc/roster"
)

type Instances struct {
	Redis      redis.Instance
	Events     events.Instance
	Roster     roster.Instance
	Prometheus prometheus.Instance

	Query *query.Query
}
