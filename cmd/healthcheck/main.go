// Command healthcheck probes the bot's /healthz endpoint and exits non-zero
// when it is unreachable or unhealthy. It is meant for container health checks.
package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"time"
)

func main() {
	if err := probe(context.Background(), healthURL(os.Getenv("HEALTHCHECK_URL"), os.Getenv("HTTP_ADDR"))); err != nil {
		log.Print(err)
		os.Exit(1)
	}
}

// healthURL prefers an explicit URL, then the bot's listen address, then the
// default port.
func healthURL(explicit, addr string) string {
	if explicit != "" {
		return explicit
	}
	host, port := "localhost", "8080"
	if addr != "" {
		if h, p, err := net.SplitHostPort(addr); err == nil {
			if h != "" && h != "0.0.0.0" && h != "::" {
				host = h
			}
			if p != "" {
				port = p
			}
		}
	}
	return "http://" + net.JoinHostPort(host, port) + "/healthz"
}

func probe(ctx context.Context, url string) error {
	client := &http.Client{Timeout: 3 * time.Second}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Printf("failed to close response body: %v", err)
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("healthz returned %d", resp.StatusCode)
	}
	return nil
}
