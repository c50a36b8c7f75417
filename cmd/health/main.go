// Lean sidecar probe: answers liveness checks without touching the main
// server's handler stack, and relays readiness from the main server so
// orchestrators can point a single check at the probe port.
package main

import (
	"flag"
	"fmt"
	"time"

	"github.com/valyala/fasthttp"
)

func main() {
	addr := flag.String("addr", ":8081", "listen address for the health probe")
	ver := flag.String("version", "dev", "version string to return")
	target := flag.String("target", "http://127.0.0.1:8080", "base URL of the channeld server to relay readiness from")
	flag.Parse()

	h := func(ctx *fasthttp.RequestCtx) {
		switch string(ctx.Path()) {
		case "/health", "/healthz":
			ctx.Response.Header.Set("Content-Type", "application/json")
			ctx.SetStatusCode(fasthttp.StatusOK)
			_, _ = ctx.WriteString(fmt.Sprintf("{\"status\":\"ok\",\"version\":\"%s\"}", *ver))
		case "/readyz":
			relayReadiness(ctx, *target)
		default:
			ctx.SetStatusCode(fasthttp.StatusNotFound)
		}
	}

	srv := &fasthttp.Server{
		Handler:            h,
		Name:               "channeld-health",
		ReadTimeout:        5 * time.Second,
		WriteTimeout:       5 * time.Second,
		MaxRequestBodySize: 1 << 20,
	}
	fmt.Printf("health probe listening on %s\n", *addr)
	if err := srv.ListenAndServe(*addr); err != nil {
		fmt.Printf("health probe exit: %v\n", err)
	}
}

// relayReadiness asks the main server's /readyz and mirrors its answer.
// An unreachable server reads as not ready.
func relayReadiness(ctx *fasthttp.RequestCtx, target string) {
	status, body, err := fasthttp.GetTimeout(nil, target+"/readyz", 2*time.Second)
	if err != nil {
		ctx.Response.Header.Set("Content-Type", "application/json")
		ctx.SetStatusCode(fasthttp.StatusServiceUnavailable)
		_, _ = ctx.WriteString("{\"status\":\"unreachable\"}")
		return
	}
	ctx.Response.Header.Set("Content-Type", "application/json")
	ctx.SetStatusCode(status)
	_, _ = ctx.Write(body)
}
