package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/nulzo/reliability-forge/internal/agent"
	"github.com/nulzo/reliability-forge/internal/config"
	"github.com/nulzo/reliability-forge/internal/gateway"
	"github.com/nulzo/reliability-forge/internal/pipeline"
	"github.com/nulzo/reliability-forge/internal/platform/metrics"
	"github.com/nulzo/reliability-forge/internal/server"
	"github.com/nulzo/reliability-forge/internal/templates"
	vegeta "github.com/tsenart/vegeta/v12/lib"
	"go.uber.org/zap"
)

const benchModel = "bench-local"

var (
	extractResp  = `{"selected_design_pattern": "circuit breaker", "source_code": "public class Client { }"}`
	identifyResp = `{"formatted_design_pattern_name": "circuit_breaker"}`
	codeResp     = "```csharp\npublic class Client { /* guarded */ }\n```"
)

func main() {
	duration := flag.Duration("duration", 10*time.Second, "Duration of the test")
	rate := flag.Int("rate", 50, "Requests per second")
	mode := flag.String("mode", "chat", "Endpoint to attack: chat or run")
	latency := flag.Duration("upstream-latency", 10*time.Millisecond, "Simulated model latency")
	chaos := flag.Bool("chaos", false, "Simulate random client disconnections")
	templatesDir := flag.String("templates", "templates", "Templates directory used in run mode")
	flag.Parse()

	upstream := httptest.NewServer(mockUpstream(*latency))
	defer upstream.Close()

	cfg := &config.Config{
		Server: config.ServerConfig{Env: "production"},
		LLM: config.LLMConfig{
			ReadTimeout:  30 * time.Second,
			MaxRetries:   1,
			RetryWaitMin: 10 * time.Millisecond,
			RetryWaitMax: 50 * time.Millisecond,
			MaxTokens:    256,
		},
		Models: []config.ModelDescriptor{
			{Name: benchModel, Provider: config.ProviderLocalAI, Endpoint: upstream.URL},
		},
		Credentials: config.Credentials{DefaultModel: benchModel},
	}

	logger := zap.NewNop()
	m := metrics.New()

	router, err := gateway.New(cfg, gateway.WithLogger(logger), gateway.WithMetrics(m))
	if err != nil {
		log.Fatalf("Failed to build router: %v", err)
	}
	resolver := templates.NewResolver(*templatesDir)
	p := pipeline.New(router, resolver, pipeline.WithLogger(logger), pipeline.WithMetrics(m))

	app := httptest.NewServer(server.New(cfg, logger, server.Deps{
		Gateway:  router,
		Agent:    agent.New(p, agent.WithLogger(logger)),
		Patterns: resolver,
		Metrics:  m,
	}).Handler())
	defer app.Close()

	target, body := app.URL+"/v1/chat", `{"prompt": "Hello"}`
	if *mode == "run" {
		target = app.URL + "/v1/run"
		body = `{"messages": [{"role": "user", "content": "Add a circuit breaker to: public class Client { }"}]}`
	}

	targeter := func(t *vegeta.Target) error {
		t.Method = http.MethodPost
		t.URL = target
		t.Body = []byte(body)
		t.Header = http.Header{"Content-Type": []string{"application/json"}}
		return nil
	}

	done := make(chan struct{})
	go monitorResources(done)

	if *chaos {
		fmt.Println("CHAOS MODE ENABLED: Starting Chaos Monkey sidecar...")
		chaosConcurrency := min(max(*rate/10, 5), 50)
		go startChaosMonkey(target, body, chaosConcurrency, done)
	}

	fmt.Printf("Running %s benchmark: %s duration, %d req/s\n", *mode, *duration, *rate)

	attacker := vegeta.NewAttacker(vegeta.KeepAlive(true))
	var res vegeta.Metrics
	for r := range attacker.Attack(targeter, vegeta.Rate{Freq: *rate, Per: time.Second}, *duration, "Benchmark") {
		res.Add(r)
	}
	res.Close()
	close(done)

	fmt.Println("--------------------------------------------------")
	fmt.Println("99th percentile: ", res.Latencies.P99)
	fmt.Println("Mean:            ", res.Latencies.Mean)
	fmt.Println("Max:             ", res.Latencies.Max)
	fmt.Printf("Success:         %.2f%%\n", res.Success*100)
	fmt.Printf("Throughput:      %.2f req/s\n", res.Throughput)
	fmt.Println("Status codes:    ", res.StatusCodes)
	fmt.Println("--------------------------------------------------")

	if len(res.Errors) > 0 {
		fmt.Println("Error Set (first 5 unique):")
		seen := make(map[string]bool)
		for _, msg := range res.Errors {
			if len(seen) == 5 {
				break
			}
			if !seen[msg] {
				fmt.Println(msg)
				seen[msg] = true
			}
		}
	}
}

// mockUpstream answers like a LocalAI server. The pipeline prompts are told
// apart by the JSON keys they ask for.
func mockUpstream(latency time.Duration) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)

		prompt := ""
		if n := len(req.Messages); n > 0 {
			prompt = req.Messages[n-1].Content
		}

		content := "Hello"
		switch {
		case strings.Contains(prompt, "selected_design_pattern"):
			content = extractResp
		case strings.Contains(prompt, "formatted_design_pattern_name"):
			content = identifyResp
		case strings.Contains(prompt, "Polly"), strings.Contains(prompt, "circuit"):
			content = codeResp
		}

		time.Sleep(latency)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "bench-123",
			"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": content}}},
		})
	})
	return mux
}

func startChaosMonkey(url, payload string, concurrency int, done chan struct{}) {
	fmt.Printf("Starting Chaos Monkey with %d concurrent disrupters (random disconnects 1-200ms)\n", concurrency)
	var wg sync.WaitGroup
	wg.Add(concurrency)

	for i := 0; i < concurrency; i++ {
		go func() {
			defer wg.Done()
			client := &http.Client{}

			for {
				select {
				case <-done:
					return
				default:
					timeout := time.Duration(rand.Intn(200)+1) * time.Millisecond

					ctx, cancel := context.WithTimeout(context.Background(), timeout)
					req, _ := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(payload))
					req.Header.Set("Content-Type", "application/json")

					resp, err := client.Do(req)
					if err == nil {
						_ = resp.Body.Close()
					}
					cancel()

					time.Sleep(time.Duration(rand.Intn(50)) * time.Millisecond)
				}
			}
		}()
	}
	wg.Wait()
}

func monitorResources(done chan struct{}) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	fmt.Println("\n--- Resource Usage ---")
	fmt.Printf("%-10s %-10s %-10s %-10s\n", "Time", "Heap(MB)", "Alloc(MB)", "Goroutines")

	var ms runtime.MemStats
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			runtime.ReadMemStats(&ms)
			fmt.Printf("%-10s %-10.2f %-10.2f %-10d\n",
				time.Now().Format("15:04:05"),
				float64(ms.HeapInuse)/1024/1024,
				float64(ms.Alloc)/1024/1024,
				runtime.NumGoroutine(),
			)
		}
	}
}
