/*
Package api provides the HTTP surfaces of remindsync: the health server used
by every long-running process and the device registration API served by the
fanout service.

# Health Server

HealthServer exposes three endpoints on a plain net/http mux:

	GET /health   liveness, always 200 while the process runs
	GET /ready    runs every Check; 503 until all of them pass
	GET /metrics  Prometheus exposition

Checks are registered as the critical components of the metrics health
registry, so readiness reported here and in pkg/metrics agree:

	hs := api.NewHealthServer(api.StoreCheck(store))
	go hs.Start(":9090")
	defer hs.Shutdown(ctx)

The daemon starts a HealthServer only when daemon.metrics_addr is set.

# Device Registration API

Server is a gin engine in front of a fanout.Registry:

	PUT    /v1/users/:uid/devices/:deviceId   {"fcmToken": "...", "platform": "ios"}
	DELETE /v1/users/:uid/devices/:deviceId

PUT upserts the registration and stamps lastActiveAt with the current time,
so a device that keeps re-registering is never swept as stale. DELETE of an
unknown device still answers 204.

The health endpoints of the HealthServer passed to NewServer are mounted on
the same engine. Every request is counted in remindsync_api_requests_total
and timed in remindsync_api_request_duration_seconds, labelled by route
pattern rather than concrete path.

Authentication is left to the deployment (an authenticating proxy or a
Firebase Hosting rewrite in front of the service).
*/
package api
