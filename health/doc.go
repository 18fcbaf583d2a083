// Package health reports whether the upstreams behind remote sources are
// usable.
//
// A Checker reports one component. BreakerChecker maps a circuit
// breaker's state onto a Status (closed is healthy, half-open degraded,
// open unhealthy). RedisChecker pings the Redis backing a distributed
// rate limiter. An Aggregator runs a set of checkers in parallel under one
// deadline and folds their reports into an overall Status.
//
//	agg := health.NewAggregator()
//	agg.Register(health.NewBreakerChecker("github", breaker))
//	agg.Register(health.NewRedisChecker("ratelimit-redis", client))
//	reports := agg.CheckAll(ctx)
//	status := health.Overall(reports)
//
// LivenessHandler and ReadinessHandler expose the same reports over HTTP;
// readiness answers 503 while any checker is unhealthy.
//
//	mux := http.NewServeMux()
//	health.RegisterHandlers(mux, agg)
package health
